package gar

import "context"

// WeightStore persists the singleton weights row.
type WeightStore interface {
	// ReadWeights returns nil when the row has not been created yet.
	ReadWeights(ctx context.Context) (*Weights, error)
	// UpsertWeights creates the row from defaults if needed, applies the
	// supplied fields and returns the stored result.
	UpsertWeights(ctx context.Context, update WeightsUpdate) (Weights, error)
}

// DataSource supplies the rows a rating is computed from.
type DataSource interface {
	ListTasks(ctx context.Context, employeeID string, window Window) ([]Task, error)
	// ListSubtasks returns subtasks grouped by task id.
	ListSubtasks(ctx context.Context, taskIDs []string) (map[string][]Subtask, error)
	// ListReviewRatings returns every non-null review rating on tasks
	// assigned to the employee, regardless of any window.
	ListReviewRatings(ctx context.Context, employeeID string) ([]float64, error)
}
