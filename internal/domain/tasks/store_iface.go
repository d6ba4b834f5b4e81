package tasks

import "context"

type StoreAPI interface {
	AssigneeActive(ctx context.Context, userID string) (bool, error)
	CreateTask(ctx context.Context, task Task) (Task, error)
	GetTask(ctx context.Context, taskID string) (Task, error)
	ListTasks(ctx context.Context, filter Filter, limit, offset int) ([]Task, error)
	CountTasks(ctx context.Context, filter Filter) (int, error)
	UpdateTask(ctx context.Context, task Task) (Task, error)
	DeleteTask(ctx context.Context, taskID string) error

	ListSubtasks(ctx context.Context, taskID string) ([]Subtask, error)
	CreateSubtask(ctx context.Context, subtask Subtask) (Subtask, error)
	GetSubtask(ctx context.Context, taskID, subtaskID string) (Subtask, error)
	UpdateSubtask(ctx context.Context, subtask Subtask) (Subtask, error)
	DeleteSubtask(ctx context.Context, taskID, subtaskID string) error

	CreateComment(ctx context.Context, comment Comment) (Comment, error)
	ListComments(ctx context.Context, taskID string) ([]Comment, error)
	CountComments(ctx context.Context, taskID string) (int, error)

	// CreateReview returns ErrReviewExists when the task already has one.
	CreateReview(ctx context.Context, review Review) (Review, error)
	GetReview(ctx context.Context, taskID string) (*Review, error)
}

// Notifier delivers in-app notifications.
type Notifier interface {
	Notify(ctx context.Context, userID, ntype, title, message, relatedID string) error
}

// StatsRecorder keeps per-employee aggregates current as tasks progress.
type StatsRecorder interface {
	RecordCompletion(ctx context.Context, employeeID string) error
	// RecordReopen takes back a completion when a task leaves completed.
	RecordReopen(ctx context.Context, employeeID string) error
	RecordRating(ctx context.Context, employeeID string, rating float64) error
}
