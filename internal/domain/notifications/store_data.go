package notifications

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"wink/internal/platform/db"
)

func (s *Store) CreateNotification(ctx context.Context, n Notification) (Notification, error) {
	out := n
	err := s.DB.QueryRow(ctx, `
    INSERT INTO notifications (user_id, type, title, message, related_entity_id)
    VALUES ($1,$2,$3,$4,$5)
    RETURNING id, created_at
  `, n.UserID, n.Type, n.Title, n.Message, nullIfEmpty(n.RelatedEntityID)).Scan(&out.ID, &out.CreatedAt)
	return out, err
}

func (s *Store) UserEmail(ctx context.Context, userID string) (string, error) {
	var email string
	err := s.DB.QueryRow(ctx, "SELECT email FROM users WHERE id = $1 AND is_active = true", userID).Scan(&email)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return email, err
}

func (s *Store) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]Notification, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, user_id, type, title, message, COALESCE(related_entity_id, ''), read_at, created_at
    FROM notifications
    WHERE user_id = $1 AND ($2 = false OR read_at IS NULL)
    ORDER BY created_at DESC
    LIMIT $3 OFFSET $4
  `, userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.RelatedEntityID, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) CountNotifications(ctx context.Context, userID string, unreadOnly bool) (int, error) {
	var total int
	if err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1) FROM notifications
    WHERE user_id = $1 AND ($2 = false OR read_at IS NULL)
  `, userID, unreadOnly).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) MarkRead(ctx context.Context, userID, notificationID string) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE notifications SET read_at = COALESCE(read_at, now())
    WHERE user_id = $1 AND id = $2
  `, userID, notificationID)
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

func (s *Store) MarkAllRead(ctx context.Context, userID string) (int, error) {
	tag, err := s.DB.Exec(ctx, "UPDATE notifications SET read_at = now() WHERE user_id = $1 AND read_at IS NULL", userID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
