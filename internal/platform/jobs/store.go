package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Run struct {
	ID          string          `json:"id"`
	JobType     string          `json:"jobType"`
	Status      string          `json:"status"`
	Details     json.RawMessage `json:"details,omitempty"`
	StartedAt   time.Time       `json:"startedAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

type RunStore interface {
	StartRun(ctx context.Context, jobType string) (string, error)
	FinishRun(ctx context.Context, runID, status string, details []byte) error
	ListRuns(ctx context.Context, jobType string, limit, offset int) ([]Run, error)
}

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) StartRun(ctx context.Context, jobType string) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO job_runs (job_type, status)
    VALUES ($1,$2)
    RETURNING id
  `, jobType, StatusRunning).Scan(&id)
	return id, err
}

func (s *Store) FinishRun(ctx context.Context, runID, status string, details []byte) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE job_runs
    SET status = $1, details_json = $2, completed_at = now()
    WHERE id = $3
  `, status, details, runID)
	return err
}

func (s *Store) ListRuns(ctx context.Context, jobType string, limit, offset int) ([]Run, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, job_type, status, details_json, started_at, completed_at
    FROM job_runs
    WHERE ($1 = '' OR job_type = $1)
    ORDER BY started_at DESC
    LIMIT $2 OFFSET $3
  `, jobType, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Run{}
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.JobType, &run.Status, &run.Details, &run.StartedAt, &run.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}
