package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"wink/internal/platform/db"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

const taskColumns = `id, title, description, status, priority, assignee_id, creator_id, department,
  deadline, completed_at, is_quantitative, goal_target, goal_progress, min_comments, created_at, updated_at`

func scanTask(row pgx.Row) (Task, error) {
	var t Task
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.AssigneeID, &t.CreatorID, &t.Department,
		&t.Deadline, &t.CompletedAt, &t.IsQuantitative, &t.GoalTarget, &t.GoalProgress, &t.MinComments, &t.CreatedAt, &t.UpdatedAt)
	if db.NoRows(err) {
		return Task{}, ErrNotFound
	}
	return t, err
}

func (s *Store) AssigneeActive(ctx context.Context, userID string) (bool, error) {
	var active bool
	err := s.DB.QueryRow(ctx, "SELECT is_active FROM users WHERE id = $1", userID).Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return active, err
}

func (s *Store) CreateTask(ctx context.Context, task Task) (Task, error) {
	return scanTask(s.DB.QueryRow(ctx, `
    INSERT INTO tasks (title, description, status, priority, assignee_id, creator_id, department,
      deadline, completed_at, is_quantitative, goal_target, goal_progress, min_comments)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
    RETURNING `+taskColumns,
		task.Title, task.Description, task.Status, task.Priority, task.AssigneeID, task.CreatorID, task.Department,
		task.Deadline, task.CompletedAt, task.IsQuantitative, task.GoalTarget, task.GoalProgress, task.MinComments))
}

func (s *Store) GetTask(ctx context.Context, taskID string) (Task, error) {
	return scanTask(s.DB.QueryRow(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = $1", taskID))
}

func buildFilter(prefix string, filter Filter) (string, []any) {
	query := prefix + " FROM tasks WHERE 1=1"
	args := []any{}
	add := func(clause string, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		query += fmt.Sprintf(" AND %s = $%d", clause, len(args))
	}
	add("assignee_id", filter.AssigneeID)
	add("creator_id", filter.CreatorID)
	add("status", filter.Status)
	add("department", filter.Department)
	return query, args
}

func (s *Store) ListTasks(ctx context.Context, filter Filter, limit, offset int) ([]Task, error) {
	query, args := buildFilter("SELECT "+taskColumns, filter)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

func (s *Store) CountTasks(ctx context.Context, filter Filter) (int, error) {
	query, args := buildFilter("SELECT COUNT(1)", filter)
	var total int
	if err := s.DB.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) UpdateTask(ctx context.Context, task Task) (Task, error) {
	return scanTask(s.DB.QueryRow(ctx, `
    UPDATE tasks SET
      title = $2, description = $3, status = $4, priority = $5, assignee_id = $6, department = $7,
      deadline = $8, completed_at = $9, is_quantitative = $10, goal_target = $11, goal_progress = $12,
      min_comments = $13, updated_at = now()
    WHERE id = $1
    RETURNING `+taskColumns,
		task.ID, task.Title, task.Description, task.Status, task.Priority, task.AssigneeID, task.Department,
		task.Deadline, task.CompletedAt, task.IsQuantitative, task.GoalTarget, task.GoalProgress, task.MinComments))
}

func (s *Store) DeleteTask(ctx context.Context, taskID string) error {
	tag, err := s.DB.Exec(ctx, "DELETE FROM tasks WHERE id = $1", taskID)
	if db.NoRows(err) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanSubtask(row pgx.Row) (Subtask, error) {
	var st Subtask
	err := row.Scan(&st.ID, &st.TaskID, &st.Title, &st.Weight, &st.Completed, &st.CreatedAt)
	if db.NoRows(err) {
		return Subtask{}, ErrSubtaskNotFound
	}
	return st, err
}

func (s *Store) ListSubtasks(ctx context.Context, taskID string) ([]Subtask, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, task_id, title, weight, completed, created_at
    FROM subtasks
    WHERE task_id = $1
    ORDER BY created_at, id
  `, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Subtask{}
	for rows.Next() {
		st, err := scanSubtask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *Store) CreateSubtask(ctx context.Context, subtask Subtask) (Subtask, error) {
	return scanSubtask(s.DB.QueryRow(ctx, `
    INSERT INTO subtasks (task_id, title, weight, completed)
    VALUES ($1,$2,$3,$4)
    RETURNING id, task_id, title, weight, completed, created_at
  `, subtask.TaskID, subtask.Title, subtask.Weight, subtask.Completed))
}

func (s *Store) GetSubtask(ctx context.Context, taskID, subtaskID string) (Subtask, error) {
	return scanSubtask(s.DB.QueryRow(ctx, `
    SELECT id, task_id, title, weight, completed, created_at
    FROM subtasks
    WHERE task_id = $1 AND id = $2
  `, taskID, subtaskID))
}

func (s *Store) UpdateSubtask(ctx context.Context, subtask Subtask) (Subtask, error) {
	return scanSubtask(s.DB.QueryRow(ctx, `
    UPDATE subtasks SET title = $3, weight = $4, completed = $5
    WHERE task_id = $1 AND id = $2
    RETURNING id, task_id, title, weight, completed, created_at
  `, subtask.TaskID, subtask.ID, subtask.Title, subtask.Weight, subtask.Completed))
}

func (s *Store) DeleteSubtask(ctx context.Context, taskID, subtaskID string) error {
	tag, err := s.DB.Exec(ctx, "DELETE FROM subtasks WHERE task_id = $1 AND id = $2", taskID, subtaskID)
	if db.NoRows(err) {
		return ErrSubtaskNotFound
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSubtaskNotFound
	}
	return nil
}

func (s *Store) CreateComment(ctx context.Context, comment Comment) (Comment, error) {
	out := comment
	err := s.DB.QueryRow(ctx, `
    INSERT INTO employee_comments (task_id, employee_id, comment)
    VALUES ($1,$2,$3)
    RETURNING id, created_at
  `, comment.TaskID, comment.EmployeeID, comment.Comment).Scan(&out.ID, &out.CreatedAt)
	return out, err
}

func (s *Store) ListComments(ctx context.Context, taskID string) ([]Comment, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, task_id, employee_id, comment, created_at
    FROM employee_comments
    WHERE task_id = $1
    ORDER BY created_at, id
  `, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Comment{}
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.TaskID, &c.EmployeeID, &c.Comment, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) CountComments(ctx context.Context, taskID string) (int, error) {
	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM employee_comments WHERE task_id = $1", taskID).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) CreateReview(ctx context.Context, review Review) (Review, error) {
	out := review
	err := s.DB.QueryRow(ctx, `
    INSERT INTO manager_reviews (task_id, manager_id, rating, comment)
    VALUES ($1,$2,$3,$4)
    RETURNING id, created_at
  `, review.TaskID, review.ManagerID, review.Rating, review.Comment).Scan(&out.ID, &out.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return Review{}, ErrReviewExists
	}
	return out, err
}

func (s *Store) GetReview(ctx context.Context, taskID string) (*Review, error) {
	var r Review
	err := s.DB.QueryRow(ctx, `
    SELECT id, task_id, manager_id, rating, comment, created_at
    FROM manager_reviews
    WHERE task_id = $1
  `, taskID).Scan(&r.ID, &r.TaskID, &r.ManagerID, &r.Rating, &r.Comment, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}
