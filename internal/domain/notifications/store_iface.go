package notifications

import "context"

type StoreAPI interface {
	CreateNotification(ctx context.Context, n Notification) (Notification, error)
	UserEmail(ctx context.Context, userID string) (string, error)
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]Notification, error)
	CountNotifications(ctx context.Context, userID string, unreadOnly bool) (int, error)
	// MarkRead returns ErrNotFound when the notification does not belong to
	// the user.
	MarkRead(ctx context.Context, userID, notificationID string) error
	MarkAllRead(ctx context.Context, userID string) (int, error)
}
