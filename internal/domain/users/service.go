package users

import (
	"context"
	"fmt"
	"strings"
	"time"

	"wink/internal/domain/auth"
	"wink/internal/domain/notifications"
)

const invitationTTL = 7 * 24 * time.Hour

type Options struct {
	CorporateDomain string
	BaseURL         string
	MailFrom        string
}

type Service struct {
	store  StoreAPI
	mailer notifications.Mailer
	opts   Options
	now    func() time.Time
}

func NewService(store StoreAPI, mailer notifications.Mailer, opts Options) *Service {
	if opts.CorporateDomain == "" {
		opts.CorporateDomain = "wink.ru"
	}
	return &Service{store: store, mailer: mailer, opts: opts, now: time.Now}
}

func (s *Service) List(ctx context.Context, filter Filter, limit, offset int) ([]User, int, error) {
	items, err := s.store.ListUsers(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.CountUsers(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Service) Get(ctx context.Context, userID string) (User, error) {
	return s.store.GetUser(ctx, userID)
}

func (s *Service) Create(ctx context.Context, in CreateInput) (User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FullName = strings.TrimSpace(in.FullName)
	if in.Role == "" {
		in.Role = auth.RoleEmployee
	}
	if !auth.ValidRole(in.Role) {
		return User{}, ErrInvalidRole
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		return User{}, fmt.Errorf("%w: %s", auth.ErrWeakPassword, err.Error())
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return User{}, err
	}
	return s.store.CreateUser(ctx, in, hash)
}

// UpdateRole returns the user before and after the change.
func (s *Service) UpdateRole(ctx context.Context, actor auth.UserContext, userID, role string) (User, User, error) {
	if !auth.ValidRole(role) {
		return User{}, User{}, ErrInvalidRole
	}
	if actor.UserID == userID {
		return User{}, User{}, ErrSelfDemotion
	}
	before, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return User{}, User{}, err
	}
	after, err := s.store.UpdateRole(ctx, userID, role)
	if err != nil {
		return User{}, User{}, err
	}
	return before, after, nil
}

func (s *Service) UpdateStatus(ctx context.Context, actor auth.UserContext, userID string, active bool) (User, error) {
	if actor.UserID == userID && !active {
		return User{}, ErrSelfDemotion
	}
	return s.store.UpdateStatus(ctx, userID, active)
}

// Invite reserves a corporate mailbox for a new hire and mails the personal
// address a link to set a password. The raw token is returned so callers in
// environments without email can hand it over another way.
func (s *Service) Invite(ctx context.Context, actor auth.UserContext, in InviteInput) (Invitation, string, error) {
	corporate, err := s.corporateEmail(ctx, in.FullName)
	if err != nil {
		return Invitation{}, "", err
	}
	token, err := auth.NewOpaqueToken()
	if err != nil {
		return Invitation{}, "", err
	}
	inv, err := s.store.CreateInvitation(ctx, Invitation{
		Email:          strings.ToLower(strings.TrimSpace(in.Email)),
		FullName:       strings.TrimSpace(in.FullName),
		CorporateEmail: corporate,
		Department:     in.Department,
		InvitedBy:      actor.UserID,
		ExpiresAt:      s.now().Add(invitationTTL),
	}, auth.HashToken(token))
	if err != nil {
		return Invitation{}, "", fmt.Errorf("create invitation: %w", err)
	}

	if s.mailer != nil {
		link := strings.TrimRight(s.opts.BaseURL, "/") + "/activate?token=" + token
		body := fmt.Sprintf("Hello %s,\n\nYour corporate account %s is ready. Set your password here:\n%s\n\nThe link expires in 7 days.\n",
			inv.FullName, inv.CorporateEmail, link)
		if err := s.mailer.Send(ctx, s.opts.MailFrom, inv.Email, "Your Wink account", body); err != nil {
			return inv, token, fmt.Errorf("send invitation: %w", err)
		}
	}
	return inv, token, nil
}

func (s *Service) ListInvitations(ctx context.Context, limit, offset int) ([]Invitation, error) {
	return s.store.ListInvitations(ctx, limit, offset)
}

// Activate turns an invitation into an active employee account.
func (s *Service) Activate(ctx context.Context, token, password string) (User, error) {
	if strings.TrimSpace(token) == "" {
		return User{}, ErrInvitationInvalid
	}
	if err := auth.ValidatePassword(password); err != nil {
		return User{}, fmt.Errorf("%w: %s", auth.ErrWeakPassword, err.Error())
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return User{}, err
	}
	return s.store.ActivateInvitation(ctx, auth.HashToken(token), hash, s.now())
}

// corporateEmail derives first.last@domain from a full name, appending .1,
// .2 and so on until the address is free.
func (s *Service) corporateEmail(ctx context.Context, fullName string) (string, error) {
	base := mailboxName(fullName)
	if base == "" {
		return "", fmt.Errorf("full name is required")
	}
	candidate := base + "@" + s.opts.CorporateDomain
	for n := 1; ; n++ {
		taken, err := s.store.EmailTaken(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s.%d@%s", base, n, s.opts.CorporateDomain)
	}
}

func mailboxName(fullName string) string {
	var parts []string
	for _, field := range strings.Fields(strings.ToLower(fullName)) {
		cleaned := strings.Map(func(r rune) rune {
			switch {
			case r == '-', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r > 127:
				return r
			}
			return -1
		}, field)
		if cleaned != "" {
			parts = append(parts, cleaned)
		}
	}
	return strings.Join(parts, ".")
}
