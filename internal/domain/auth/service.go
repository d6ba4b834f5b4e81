package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	cryptoutil "wink/internal/platform/crypto"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMFARequired        = errors.New("mfa code required")
	ErrMFAInvalid         = errors.New("invalid mfa code")
	ErrMFAUnavailable     = errors.New("mfa requires encryption key")
	ErrMFANotSetUp        = errors.New("mfa setup required")
	ErrSessionExpired     = errors.New("session expired")
	ErrResetTokenInvalid  = errors.New("invalid or expired token")
	ErrWeakPassword       = errors.New("weak password")
)

const (
	PasswordResetTTL = 2 * time.Hour
	mfaIssuer        = "Wink Tasks"
)

type Service struct {
	store  StoreAPI
	secret string
	ttl    time.Duration
	crypto *cryptoutil.Service
}

func NewService(store StoreAPI, secret string, ttl time.Duration, crypto *cryptoutil.Service) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{store: store, secret: secret, ttl: ttl, crypto: crypto}
}

type LoginResult struct {
	Token string
	User  AuthUser
}

func (s *Service) Login(ctx context.Context, email, password, mfaCode string) (LoginResult, error) {
	user, err := s.store.FindActiveUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	if err := CheckPassword(user.Password, password); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	if user.MFAEnabled {
		if mfaCode == "" {
			return LoginResult{}, ErrMFARequired
		}
		secret, err := s.crypto.DecryptString(user.MFASecretEn)
		if err != nil || secret == "" || !totp.Validate(mfaCode, secret) {
			return LoginResult{}, ErrMFAInvalid
		}
	}

	token, err := s.issue(ctx, user.ID, user.Role)
	if err != nil {
		return LoginResult{}, err
	}
	if err := s.store.UpdateLastLogin(ctx, user.ID); err != nil {
		slog.Warn("update last_login failed", "userId", user.ID, "err", err)
	}
	return LoginResult{Token: token, User: user}, nil
}

func (s *Service) issue(ctx context.Context, userID, role string) (string, error) {
	sessionID, err := NewOpaqueToken()
	if err != nil {
		return "", err
	}
	if err := s.store.CreateSession(ctx, userID, HashToken(sessionID), time.Now().Add(s.ttl)); err != nil {
		return "", fmt.Errorf("start session: %w", err)
	}
	return GenerateToken(s.secret, Claims{UserID: userID, Role: role, SessionID: sessionID}, s.ttl)
}

func (s *Service) Logout(ctx context.Context, user UserContext) error {
	if user.SessionID == "" {
		return nil
	}
	return s.store.RevokeSession(ctx, user.UserID, HashToken(user.SessionID))
}

// Refresh rotates the session behind a still-valid token and issues a new
// one. The role is re-read so demotions take effect on the next refresh.
func (s *Service) Refresh(ctx context.Context, tokenString string) (string, error) {
	claims, err := ParseToken(s.secret, tokenString)
	if err != nil {
		return "", ErrSessionExpired
	}
	oldHash := HashToken(claims.SessionID)
	valid, err := s.store.SessionValid(ctx, claims.UserID, oldHash)
	if err != nil {
		return "", err
	}
	if !valid {
		return "", ErrSessionExpired
	}
	role, err := s.store.ActiveUserRole(ctx, claims.UserID)
	if err != nil {
		return "", err
	}

	newSessionID, err := NewOpaqueToken()
	if err != nil {
		return "", err
	}
	if err := s.store.RotateSession(ctx, claims.UserID, oldHash, HashToken(newSessionID), time.Now().Add(s.ttl)); err != nil {
		return "", fmt.Errorf("rotate session: %w", err)
	}
	return GenerateToken(s.secret, Claims{UserID: claims.UserID, Role: role, SessionID: newSessionID}, s.ttl)
}

// RequestReset creates a reset token for an active account. Unknown emails
// yield an empty token and no error so callers cannot probe for accounts.
func (s *Service) RequestReset(ctx context.Context, email string) (string, error) {
	userID, err := s.store.UserIDByEmail(ctx, email)
	if err != nil {
		return "", nil
	}
	token, err := NewOpaqueToken()
	if err != nil {
		return "", err
	}
	if err := s.store.CreatePasswordReset(ctx, userID, HashToken(token), time.Now().Add(PasswordResetTTL)); err != nil {
		return "", err
	}
	return token, nil
}

func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := ValidatePassword(newPassword); err != nil {
		return fmt.Errorf("%w: %s", ErrWeakPassword, err.Error())
	}
	hashed := HashToken(token)
	userID, err := s.store.PasswordResetUserID(ctx, hashed)
	if err != nil {
		return err
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.store.UpdateUserPassword(ctx, userID, hash); err != nil {
		return err
	}
	if err := s.store.MarkPasswordResetUsed(ctx, hashed); err != nil {
		slog.Warn("password reset mark used failed", "userId", userID, "err", err)
	}
	return nil
}

type MFASetup struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauthUrl"`
}

func (s *Service) SetupMFA(ctx context.Context, userID, accountName string) (MFASetup, error) {
	if !s.crypto.Configured() {
		return MFASetup{}, ErrMFAUnavailable
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      mfaIssuer,
		AccountName: accountName,
		Period:      30,
		Digits:      otp.DigitsSix,
	})
	if err != nil {
		return MFASetup{}, err
	}
	encrypted, err := s.crypto.EncryptString(key.Secret())
	if err != nil {
		return MFASetup{}, err
	}
	if err := s.store.UpdateMFASecret(ctx, userID, encrypted); err != nil {
		return MFASetup{}, err
	}
	return MFASetup{Secret: key.Secret(), OTPAuthURL: key.URL()}, nil
}

// SetMFA toggles MFA after the caller proves possession of the secret.
func (s *Service) SetMFA(ctx context.Context, userID, code string, enabled bool) error {
	if !s.crypto.Configured() {
		return ErrMFAUnavailable
	}
	secretEnc, err := s.store.GetMFASecret(ctx, userID)
	if err != nil || len(secretEnc) == 0 {
		return ErrMFANotSetUp
	}
	secret, err := s.crypto.DecryptString(secretEnc)
	if err != nil || !totp.Validate(code, secret) {
		return ErrMFAInvalid
	}
	return s.store.SetMFAEnabled(ctx, userID, enabled)
}

func (s *Service) HasPermission(ctx context.Context, role, permission string) (bool, error) {
	return s.store.HasPermission(ctx, role, permission)
}
