package gar

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) ReadWeights(ctx context.Context) (*Weights, error) {
	var w Weights
	err := s.DB.QueryRow(ctx, `
    SELECT w_tcr, w_goal, w_timeliness, w_quality
    FROM gar_settings
    WHERE singleton
  `).Scan(&w.TCR, &w.GoalProgress, &w.Timeliness, &w.Quality)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// UpsertWeights relies on the singleton primary key so concurrent first
// writes collapse onto one row.
func (s *Store) UpsertWeights(ctx context.Context, update WeightsUpdate) (Weights, error) {
	var w Weights
	err := s.DB.QueryRow(ctx, `
    INSERT INTO gar_settings (singleton, w_tcr, w_goal, w_timeliness, w_quality)
    VALUES (true,
      COALESCE($1::float8, $5::float8),
      COALESCE($2::float8, $6::float8),
      COALESCE($3::float8, $7::float8),
      COALESCE($4::float8, $8::float8))
    ON CONFLICT (singleton) DO UPDATE SET
      w_tcr = COALESCE($1::float8, gar_settings.w_tcr),
      w_goal = COALESCE($2::float8, gar_settings.w_goal),
      w_timeliness = COALESCE($3::float8, gar_settings.w_timeliness),
      w_quality = COALESCE($4::float8, gar_settings.w_quality),
      updated_at = now()
    RETURNING w_tcr, w_goal, w_timeliness, w_quality
  `, update.TCR, update.GoalProgress, update.Timeliness, update.Quality,
		DefaultWeights.TCR, DefaultWeights.GoalProgress, DefaultWeights.Timeliness, DefaultWeights.Quality,
	).Scan(&w.TCR, &w.GoalProgress, &w.Timeliness, &w.Quality)
	return w, err
}

func (s *Store) ListTasks(ctx context.Context, employeeID string, window Window) ([]Task, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, status, deadline, completed_at, is_quantitative, goal_target, goal_progress, created_at
    FROM tasks
    WHERE assignee_id = $1
      AND ($2::timestamptz IS NULL OR created_at >= $2)
      AND ($3::timestamptz IS NULL OR created_at <= $3)
    ORDER BY created_at, id
  `, employeeID, window.Since, window.Until)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.Status, &t.Deadline, &t.CompletedAt, &t.IsQuantitative, &t.GoalTarget, &t.GoalProgress, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) ListSubtasks(ctx context.Context, taskIDs []string) (map[string][]Subtask, error) {
	out := map[string][]Subtask{}
	if len(taskIDs) == 0 {
		return out, nil
	}
	rows, err := s.DB.Query(ctx, `
    SELECT task_id, weight, completed
    FROM subtasks
    WHERE task_id = ANY($1::uuid[])
    ORDER BY task_id, created_at, id
  `, taskIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var st Subtask
		if err := rows.Scan(&st.TaskID, &st.Weight, &st.Completed); err != nil {
			return nil, err
		}
		out[st.TaskID] = append(out[st.TaskID], st)
	}
	return out, rows.Err()
}

func (s *Store) ListReviewRatings(ctx context.Context, employeeID string) ([]float64, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT mr.rating
    FROM manager_reviews mr
    JOIN tasks t ON mr.task_id = t.id
    WHERE t.assignee_id = $1 AND mr.rating IS NOT NULL
    ORDER BY mr.created_at, mr.id
  `, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var rating float64
		if err := rows.Scan(&rating); err != nil {
			return nil, err
		}
		out = append(out, rating)
	}
	return out, rows.Err()
}

// Snapshot is one stored daily rating.
type Snapshot struct {
	TakenOn   time.Time `json:"takenOn"`
	GAR       float64   `json:"gar"`
	TaskCount int       `json:"taskCount"`
}

func (s *Store) SaveSnapshot(ctx context.Context, employeeID string, takenOn time.Time, res Result) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO gar_snapshots (employee_id, taken_on, gar, task_count)
    VALUES ($1,$2,$3,$4)
    ON CONFLICT (employee_id, taken_on) DO UPDATE
      SET gar = EXCLUDED.gar, task_count = EXCLUDED.task_count, created_at = now()
  `, employeeID, takenOn, res.GAR, res.TaskCount)
	return err
}

func (s *Store) ListSnapshots(ctx context.Context, employeeID string, limit int) ([]Snapshot, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT taken_on, gar, task_count
    FROM gar_snapshots
    WHERE employee_id = $1
    ORDER BY taken_on DESC
    LIMIT $2
  `, employeeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Snapshot{}
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(&snap.TakenOn, &snap.GAR, &snap.TaskCount); err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}
