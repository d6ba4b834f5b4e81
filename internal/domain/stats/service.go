package stats

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"wink/internal/domain/gar"
)

type Service struct {
	store      StoreAPI
	snapshots  SnapshotStore
	calculator Calculator
	now        func() time.Time
}

func NewService(store StoreAPI, snapshots SnapshotStore, calculator Calculator) *Service {
	return &Service{store: store, snapshots: snapshots, calculator: calculator, now: time.Now}
}

func (s *Service) RecordCompletion(ctx context.Context, employeeID string) error {
	return s.store.IncrementCompleted(ctx, employeeID, s.now())
}

func (s *Service) RecordReopen(ctx context.Context, employeeID string) error {
	return s.store.DecrementCompleted(ctx, employeeID, s.now())
}

func (s *Service) RecordRating(ctx context.Context, employeeID string, rating float64) error {
	return s.store.AddRating(ctx, employeeID, rating, s.now())
}

// Rebuild is the stats_rebuild job body.
func (s *Service) Rebuild(ctx context.Context) (any, error) {
	count, err := s.store.Rebuild(ctx)
	if err != nil {
		return nil, fmt.Errorf("rebuild employee stats: %w", err)
	}
	return map[string]any{"employees": count}, nil
}

// SnapshotAll is the gar_snapshot job body. It stores today's all-time GAR
// for every active employee; one failing employee does not stop the rest.
func (s *Service) SnapshotAll(ctx context.Context) (any, error) {
	ids, err := s.store.ActiveEmployeeIDs(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	takenOn := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	saved, failed := 0, 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := s.calculator.Calculate(ctx, id, gar.Window{})
		if err == nil {
			err = s.snapshots.SaveSnapshot(ctx, id, takenOn, res)
		}
		if err != nil {
			failed++
			slog.Warn("gar snapshot failed", "employeeId", id, "err", err)
			continue
		}
		saved++
	}
	details := map[string]any{"saved": saved, "failed": failed, "takenOn": takenOn.Format("2006-01-02")}
	if failed > 0 && saved == 0 {
		return details, fmt.Errorf("gar snapshot failed for all %d employees", failed)
	}
	return details, nil
}

func (s *Service) EmployeeDetails(ctx context.Context, employeeID string) (Details, error) {
	name, err := s.store.EmployeeName(ctx, employeeID)
	if err != nil {
		return Details{}, err
	}
	completed, err := s.store.CountCompleted(ctx, employeeID)
	if err != nil {
		return Details{}, err
	}
	reviews, err := s.store.RecentReviews(ctx, employeeID, recentReviewLimit)
	if err != nil {
		return Details{}, err
	}
	totals, err := s.store.Get(ctx, employeeID)
	if err != nil {
		return Details{}, err
	}
	trend := []gar.Snapshot{}
	if s.snapshots != nil {
		trend, err = s.snapshots.ListSnapshots(ctx, employeeID, trendLimit)
		if err != nil {
			return Details{}, err
		}
	}
	return Details{
		EmployeeID:     employeeID,
		EmployeeName:   name,
		TasksCompleted: completed,
		AverageRating:  averageRating(reviews),
		RecentReviews:  reviews,
		Totals:         totals,
		Trend:          trend,
	}, nil
}

func (s *Service) Company(ctx context.Context) (Company, error) {
	return s.store.Company(ctx)
}

func averageRating(reviews []RecentReview) *float64 {
	var sum float64
	var n int
	for _, r := range reviews {
		if r.Rating == nil {
			continue
		}
		sum += *r.Rating
		n++
	}
	if n == 0 {
		return nil
	}
	avg := math.Round(sum/float64(n)*100) / 100
	return &avg
}
