package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type Purger interface {
	Purge(ctx context.Context, category string, cutoff time.Time) (int64, error)
}

// Policy maps a category to how long its rows are kept. Categories missing
// from the policy, or with a non-positive age, are skipped.
type Policy map[string]time.Duration

func DefaultPolicy(readNotificationAge, jobRunAge time.Duration) Policy {
	return Policy{
		CategoryPasswordResets:  24 * time.Hour,
		CategoryInvitations:     7 * 24 * time.Hour,
		CategoryIdempotencyKeys: 24 * time.Hour,
		CategoryNotifications:   readNotificationAge,
		CategoryJobRuns:         jobRunAge,
		CategorySessions:        7 * 24 * time.Hour,
	}
}

type Service struct {
	store  Purger
	policy Policy
	now    func() time.Time
}

func NewService(store Purger, policy Policy) *Service {
	return &Service{store: store, policy: policy, now: time.Now}
}

// Run purges every category in the policy and reports deleted counts. A
// failing category is logged and the rest still run; the run only fails
// when every attempted category failed.
func (s *Service) Run(ctx context.Context) (any, error) {
	now := s.now().UTC()
	deleted := map[string]int64{}
	attempted, failed := 0, 0
	for _, category := range Categories {
		age, ok := s.policy[category]
		if !ok || age <= 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		attempted++
		n, err := s.store.Purge(ctx, category, now.Add(-age))
		if err != nil {
			failed++
			slog.Warn("retention purge failed", "category", category, "err", err)
			continue
		}
		deleted[category] = n
	}
	details := map[string]any{"deleted": deleted, "failed": failed}
	if attempted > 0 && failed == attempted {
		return details, fmt.Errorf("retention failed for all %d categories", failed)
	}
	return details, nil
}
