package stats

import (
	"context"
	"time"

	"wink/internal/domain/gar"
)

type StoreAPI interface {
	IncrementCompleted(ctx context.Context, employeeID string, at time.Time) error
	// DecrementCompleted never takes the count below zero.
	DecrementCompleted(ctx context.Context, employeeID string, at time.Time) error
	AddRating(ctx context.Context, employeeID string, rating float64, at time.Time) error
	// Rebuild recomputes every row from tasks and reviews and returns the
	// number of employees written.
	Rebuild(ctx context.Context) (int, error)
	Get(ctx context.Context, employeeID string) (*EmployeeStats, error)

	EmployeeName(ctx context.Context, employeeID string) (string, error)
	CountCompleted(ctx context.Context, employeeID string) (int, error)
	RecentReviews(ctx context.Context, employeeID string, limit int) ([]RecentReview, error)
	Company(ctx context.Context) (Company, error)
	ActiveEmployeeIDs(ctx context.Context) ([]string, error)
}

// SnapshotStore persists daily GAR values.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, employeeID string, takenOn time.Time, res gar.Result) error
	ListSnapshots(ctx context.Context, employeeID string, limit int) ([]gar.Snapshot, error)
}

type Calculator interface {
	Calculate(ctx context.Context, employeeID string, window gar.Window) (gar.Result, error)
}
