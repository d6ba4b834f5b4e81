package users

import (
	"context"
	"time"
)

type StoreAPI interface {
	ListUsers(ctx context.Context, filter Filter, limit, offset int) ([]User, error)
	CountUsers(ctx context.Context, filter Filter) (int, error)
	GetUser(ctx context.Context, userID string) (User, error)
	// CreateUser returns ErrEmailTaken on a duplicate email.
	CreateUser(ctx context.Context, in CreateInput, passwordHash string) (User, error)
	UpdateRole(ctx context.Context, userID, role string) (User, error)
	UpdateStatus(ctx context.Context, userID string, active bool) (User, error)

	// EmailTaken reports whether a user or an open invitation already holds
	// the address.
	EmailTaken(ctx context.Context, email string) (bool, error)
	CreateInvitation(ctx context.Context, inv Invitation, tokenHash string) (Invitation, error)
	ListInvitations(ctx context.Context, limit, offset int) ([]Invitation, error)
	// ActivateInvitation consumes an unexpired, unused invitation and
	// creates its employee account in one transaction. It returns
	// ErrInvitationInvalid when no such invitation exists.
	ActivateInvitation(ctx context.Context, tokenHash, passwordHash string, now time.Time) (User, error)
}
