package retention

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

// Purge deletes rows of one category older than cutoff. Unknown categories
// delete nothing.
func (s *Store) Purge(ctx context.Context, category string, cutoff time.Time) (int64, error) {
	switch category {
	case CategoryPasswordResets:
		tag, err := s.DB.Exec(ctx, `
      DELETE FROM password_resets
      WHERE expires_at < $1 OR (used_at IS NOT NULL AND used_at < $1)
    `, cutoff)
		return tag.RowsAffected(), err
	case CategoryInvitations:
		tag, err := s.DB.Exec(ctx, `
      DELETE FROM invitations
      WHERE is_activated = false AND expires_at < $1
    `, cutoff)
		return tag.RowsAffected(), err
	case CategoryIdempotencyKeys:
		tag, err := s.DB.Exec(ctx, `
      DELETE FROM idempotency_keys
      WHERE created_at < $1
    `, cutoff)
		return tag.RowsAffected(), err
	case CategoryNotifications:
		tag, err := s.DB.Exec(ctx, `
      DELETE FROM notifications
      WHERE read_at IS NOT NULL AND read_at < $1
    `, cutoff)
		return tag.RowsAffected(), err
	case CategoryJobRuns:
		tag, err := s.DB.Exec(ctx, `
      DELETE FROM job_runs
      WHERE status <> 'running' AND started_at < $1
    `, cutoff)
		return tag.RowsAffected(), err
	case CategorySessions:
		tag, err := s.DB.Exec(ctx, `
      DELETE FROM sessions
      WHERE expires_at < $1 OR (revoked_at IS NOT NULL AND revoked_at < $1)
    `, cutoff)
		return tag.RowsAffected(), err
	default:
		return 0, nil
	}
}
