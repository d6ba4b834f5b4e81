package stats

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"wink/internal/platform/db"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) IncrementCompleted(ctx context.Context, employeeID string, at time.Time) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO employee_stats (employee_id, total_tasks_completed, last_activity)
    VALUES ($1, 1, $2)
    ON CONFLICT (employee_id) DO UPDATE
      SET total_tasks_completed = employee_stats.total_tasks_completed + 1,
          last_activity = EXCLUDED.last_activity,
          updated_at = now()
  `, employeeID, at)
	return err
}

func (s *Store) DecrementCompleted(ctx context.Context, employeeID string, at time.Time) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE employee_stats
    SET total_tasks_completed = GREATEST(total_tasks_completed - 1, 0),
        last_activity = $2,
        updated_at = now()
    WHERE employee_id = $1
  `, employeeID, at)
	return err
}

func (s *Store) AddRating(ctx context.Context, employeeID string, rating float64, at time.Time) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO employee_stats (employee_id, average_rating, total_rating, rating_count, last_activity)
    VALUES ($1, $2, $2, 1, $3)
    ON CONFLICT (employee_id) DO UPDATE
      SET total_rating = employee_stats.total_rating + EXCLUDED.total_rating,
          rating_count = employee_stats.rating_count + 1,
          average_rating = (employee_stats.total_rating + EXCLUDED.total_rating) / (employee_stats.rating_count + 1),
          last_activity = EXCLUDED.last_activity,
          updated_at = now()
  `, employeeID, rating, at)
	return err
}

func (s *Store) Rebuild(ctx context.Context) (int, error) {
	tag, err := s.DB.Exec(ctx, `
    INSERT INTO employee_stats (employee_id, total_tasks_completed, average_rating, total_rating, rating_count, last_activity)
    SELECT u.id,
           COALESCE(t.completed, 0),
           COALESCE(r.total / NULLIF(r.cnt, 0), 0),
           COALESCE(r.total, 0),
           COALESCE(r.cnt, 0),
           GREATEST(t.last_completed, r.last_review)
    FROM users u
    LEFT JOIN (
      SELECT assignee_id, COUNT(1) AS completed, MAX(completed_at) AS last_completed
      FROM tasks WHERE status = 'completed'
      GROUP BY assignee_id
    ) t ON t.assignee_id = u.id
    LEFT JOIN (
      SELECT tk.assignee_id, SUM(mr.rating) AS total, COUNT(mr.rating) AS cnt, MAX(mr.created_at) AS last_review
      FROM manager_reviews mr
      JOIN tasks tk ON tk.id = mr.task_id
      GROUP BY tk.assignee_id
    ) r ON r.assignee_id = u.id
    WHERE u.is_active = true
    ON CONFLICT (employee_id) DO UPDATE
      SET total_tasks_completed = EXCLUDED.total_tasks_completed,
          average_rating = EXCLUDED.average_rating,
          total_rating = EXCLUDED.total_rating,
          rating_count = EXCLUDED.rating_count,
          last_activity = EXCLUDED.last_activity,
          updated_at = now()
  `)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) Get(ctx context.Context, employeeID string) (*EmployeeStats, error) {
	var out EmployeeStats
	err := s.DB.QueryRow(ctx, `
    SELECT employee_id, total_tasks_completed, average_rating, total_rating, rating_count, last_activity
    FROM employee_stats
    WHERE employee_id = $1
  `, employeeID).Scan(&out.EmployeeID, &out.TotalTasksCompleted, &out.AverageRating, &out.TotalRating, &out.RatingCount, &out.LastActivity)
	if db.NoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) EmployeeName(ctx context.Context, employeeID string) (string, error) {
	var name string
	err := s.DB.QueryRow(ctx, "SELECT full_name FROM users WHERE id = $1", employeeID).Scan(&name)
	if db.NoRows(err) {
		return "", ErrNotFound
	}
	return name, err
}

func (s *Store) CountCompleted(ctx context.Context, employeeID string) (int, error) {
	var total int
	err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM tasks WHERE assignee_id = $1 AND status = 'completed'", employeeID).Scan(&total)
	return total, err
}

func (s *Store) RecentReviews(ctx context.Context, employeeID string, limit int) ([]RecentReview, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT mr.task_id, t.title, mr.rating, mr.comment, mr.created_at
    FROM manager_reviews mr
    JOIN tasks t ON t.id = mr.task_id
    WHERE t.assignee_id = $1
    ORDER BY mr.created_at DESC
    LIMIT $2
  `, employeeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []RecentReview{}
	for rows.Next() {
		var r RecentReview
		if err := rows.Scan(&r.TaskID, &r.TaskTitle, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Company(ctx context.Context) (Company, error) {
	var out Company
	err := s.DB.QueryRow(ctx, `
    SELECT (SELECT COUNT(1) FROM users WHERE is_active = true),
           (SELECT COUNT(1) FROM tasks WHERE status = 'completed'),
           (SELECT COUNT(1) FROM manager_reviews)
  `).Scan(&out.TotalEmployees, &out.TotalTasksCompleted, &out.ManagerReviewsTotal)
	return out, err
}

func (s *Store) ActiveEmployeeIDs(ctx context.Context) ([]string, error) {
	rows, err := s.DB.Query(ctx, "SELECT id FROM users WHERE is_active = true ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
