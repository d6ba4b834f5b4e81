package notifications

import (
	"context"
	"log/slog"
)

type Mailer interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

type Service struct {
	store        StoreAPI
	Mailer       Mailer
	From         string
	EmailEnabled bool
}

func New(store StoreAPI, mailer Mailer, from string, emailEnabled bool) *Service {
	if from == "" {
		from = "noreply@wink.ru"
	}
	return &Service{store: store, Mailer: mailer, From: from, EmailEnabled: emailEnabled}
}

// Notify stores an in-app notification and, when email is on, mails the
// recipient. Email failures are logged and never fail the call.
func (s *Service) Notify(ctx context.Context, userID, ntype, title, message, relatedID string) error {
	if _, err := s.store.CreateNotification(ctx, Notification{
		UserID:          userID,
		Type:            ntype,
		Title:           title,
		Message:         message,
		RelatedEntityID: relatedID,
	}); err != nil {
		return err
	}

	if s.Mailer == nil || !s.EmailEnabled {
		return nil
	}
	email, err := s.store.UserEmail(ctx, userID)
	if err != nil {
		slog.Warn("notification email lookup failed", "userId", userID, "err", err)
		return nil
	}
	if email == "" {
		return nil
	}
	if err := s.Mailer.Send(ctx, s.From, email, title, message); err != nil {
		slog.Warn("notification email send failed", "userId", userID, "err", err)
	}
	return nil
}

func (s *Service) List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]Notification, int, error) {
	items, err := s.store.ListNotifications(ctx, userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.CountNotifications(ctx, userID, unreadOnly)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Service) MarkRead(ctx context.Context, userID, notificationID string) error {
	return s.store.MarkRead(ctx, userID, notificationID)
}

func (s *Service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return s.store.MarkAllRead(ctx, userID)
}
