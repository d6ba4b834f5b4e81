package users

import "errors"

var (
	ErrNotFound          = errors.New("user not found")
	ErrEmailTaken        = errors.New("email already registered")
	ErrInvalidRole       = errors.New("invalid role")
	ErrInvitationInvalid = errors.New("invitation token is invalid or expired")
	ErrSelfDemotion      = errors.New("cannot change own role or status")
)
