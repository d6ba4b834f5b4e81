package authhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"wink/internal/domain/auth"
	"wink/internal/domain/notifications"
	"wink/internal/domain/users"
	"wink/internal/transport/http/api"
	"wink/internal/transport/http/middleware"
	"wink/internal/transport/http/shared"
)

const defaultResetBaseURL = "http://localhost:8080"

// Service is the subset of auth.Service the handlers drive.
type Service interface {
	Login(ctx context.Context, email, password, mfaCode string) (auth.LoginResult, error)
	Logout(ctx context.Context, user auth.UserContext) error
	Refresh(ctx context.Context, token string) (string, error)
	RequestReset(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, token, newPassword string) error
	SetupMFA(ctx context.Context, userID, accountName string) (auth.MFASetup, error)
	SetMFA(ctx context.Context, userID, code string, enabled bool) error
}

type ProfileReader interface {
	Get(ctx context.Context, userID string) (users.User, error)
}

type Handler struct {
	Service   Service
	Profiles  ProfileReader
	Mailer    notifications.Mailer
	EmailFrom string
	BaseURL   string
	ResetTTL  time.Duration
}

func NewHandler(service Service, profiles ProfileReader, mailer notifications.Mailer, emailFrom, baseURL string) *Handler {
	return &Handler{
		Service:   service,
		Profiles:  profiles,
		Mailer:    mailer,
		EmailFrom: emailFrom,
		BaseURL:   baseURL,
		ResetTTL:  auth.PasswordResetTTL,
	}
}

// RegisterRoutes mounts the public endpoints. Authenticated ones go through
// RegisterProtectedRoutes behind RequireAuth.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/login", h.HandleLogin)
	r.Post("/auth/refresh", h.HandleRefresh)
	r.Post("/auth/request-reset", h.HandleRequestReset)
	r.Post("/auth/reset", h.HandleResetPassword)
}

func (h *Handler) RegisterProtectedRoutes(r chi.Router) {
	r.Post("/auth/logout", h.HandleLogout)
	r.Get("/auth/me", h.HandleMe)
	r.Post("/auth/mfa/setup", h.HandleMFASetup)
	r.Post("/auth/mfa/enable", h.HandleMFAEnable)
	r.Post("/auth/mfa/disable", h.HandleMFADisable)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	MFACode  string `json:"mfaCode"`
}

type resetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

type mfaCodeRequest struct {
	Code string `json:"code" validate:"required"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var payload loginRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	validator := shared.NewValidator()
	validator.ValidateStruct(payload)
	if validator.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	result, err := h.Service.Login(r.Context(), strings.ToLower(strings.TrimSpace(payload.Email)), payload.Password, payload.MFACode)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials", middleware.GetRequestID(r.Context()))
		return
	case errors.Is(err, auth.ErrMFARequired):
		api.Fail(w, http.StatusUnauthorized, "mfa_required", "mfa code required", middleware.GetRequestID(r.Context()))
		return
	case errors.Is(err, auth.ErrMFAInvalid):
		api.Fail(w, http.StatusUnauthorized, "mfa_invalid", "invalid mfa code", middleware.GetRequestID(r.Context()))
		return
	case err != nil:
		slog.Error("login failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "token_error", "failed to issue token", middleware.GetRequestID(r.Context()))
		return
	}

	api.Success(w, map[string]any{
		"token": result.Token,
		"user": map[string]string{
			"id":       result.User.ID,
			"email":    result.User.Email,
			"fullName": result.User.FullName,
			"role":     result.User.Role,
		},
	}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if user, ok := middleware.GetUser(r.Context()); ok {
		if err := h.Service.Logout(r.Context(), user); err != nil {
			slog.Warn("logout session revoke failed", "userId", user.UserID, "err", err)
		}
	}
	api.Success(w, map[string]string{"status": "logged_out"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(r.Header.Get("Authorization"), " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	token, err := h.Service.Refresh(r.Context(), parts[1])
	if errors.Is(err, auth.ErrSessionExpired) {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "session expired", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		slog.Error("session refresh failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "session_error", "failed to rotate session", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]any{"token": token}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	profile, err := h.Profiles.Get(r.Context(), user.UserID)
	if errors.Is(err, users.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "user not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "profile_failed", "failed to load profile", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, profile, middleware.GetRequestID(r.Context()))
}

func (h *Handler) HandleMFASetup(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	account := user.UserID
	if h.Profiles != nil {
		if profile, err := h.Profiles.Get(r.Context(), user.UserID); err == nil && profile.Email != "" {
			account = profile.Email
		}
	}

	setup, err := h.Service.SetupMFA(r.Context(), user.UserID, account)
	if errors.Is(err, auth.ErrMFAUnavailable) {
		api.Fail(w, http.StatusBadRequest, "mfa_unavailable", "mfa requires encryption key", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "mfa_setup_failed", "failed to store mfa secret", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, setup, middleware.GetRequestID(r.Context()))
}

func (h *Handler) HandleMFAEnable(w http.ResponseWriter, r *http.Request) {
	h.toggleMFA(w, r, true)
}

func (h *Handler) HandleMFADisable(w http.ResponseWriter, r *http.Request) {
	h.toggleMFA(w, r, false)
}

func (h *Handler) toggleMFA(w http.ResponseWriter, r *http.Request, enabled bool) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	var payload mfaCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	err := h.Service.SetMFA(r.Context(), user.UserID, payload.Code, enabled)
	switch {
	case errors.Is(err, auth.ErrMFAUnavailable):
		api.Fail(w, http.StatusBadRequest, "mfa_unavailable", "mfa requires encryption key", middleware.GetRequestID(r.Context()))
		return
	case errors.Is(err, auth.ErrMFANotSetUp):
		api.Fail(w, http.StatusBadRequest, "mfa_missing", "mfa setup required", middleware.GetRequestID(r.Context()))
		return
	case errors.Is(err, auth.ErrMFAInvalid):
		api.Fail(w, http.StatusBadRequest, "mfa_invalid", "invalid mfa code", middleware.GetRequestID(r.Context()))
		return
	case err != nil:
		api.Fail(w, http.StatusInternalServerError, "mfa_update_failed", "failed to update mfa", middleware.GetRequestID(r.Context()))
		return
	}

	status := "disabled"
	if enabled {
		status = "enabled"
	}
	api.Success(w, map[string]string{"status": status}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) HandleRequestReset(w http.ResponseWriter, r *http.Request) {
	var payload resetRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	email := strings.ToLower(strings.TrimSpace(payload.Email))
	token, err := h.Service.RequestReset(r.Context(), email)
	if err != nil {
		slog.Warn("password reset request failed", "err", err)
	}
	if token != "" && h.Mailer != nil {
		link := buildResetLink(h.BaseURL, token)
		if err := h.Mailer.Send(r.Context(), h.EmailFrom, email, "Reset your Wink password", buildResetEmailMessage(link, h.ResetTTL)); err != nil {
			slog.Warn("password reset email failed", "err", err)
		}
	}

	api.Success(w, map[string]string{"status": "reset_requested"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var payload resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	validator := shared.NewValidator()
	validator.ValidateStruct(payload)
	if payload.NewPassword != "" {
		if err := auth.ValidatePassword(payload.NewPassword); err != nil {
			validator.Add("newPassword", err.Error())
		}
	}
	if validator.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	err := h.Service.ResetPassword(r.Context(), payload.Token, payload.NewPassword)
	if errors.Is(err, auth.ErrResetTokenInvalid) {
		api.Fail(w, http.StatusBadRequest, "invalid_token", "invalid or expired token", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "update_failed", "failed to update password", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]string{"status": "password_reset"}, middleware.GetRequestID(r.Context()))
}

func buildResetLink(baseURL, token string) string {
	parsed, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		parsed, _ = url.Parse(defaultResetBaseURL)
	}
	parsed.Path = path.Join("/", parsed.Path, "reset")
	query := parsed.Query()
	query.Set("token", token)
	parsed.RawQuery = query.Encode()
	return parsed.String()
}

func buildResetEmailMessage(link string, ttl time.Duration) string {
	hours := int(ttl.Hours())
	if hours < 1 {
		hours = 1
	}
	return fmt.Sprintf("A password reset was requested for your Wink account.\n\nOpen this link to choose a new password:\n%s\n\nThe link expires in %d hour(s). If you did not ask for a reset, ignore this message.\n", link, hours)
}
