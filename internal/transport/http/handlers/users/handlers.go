package usershandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"wink/internal/domain/audit"
	"wink/internal/domain/auth"
	"wink/internal/domain/users"
	"wink/internal/transport/http/api"
	"wink/internal/transport/http/middleware"
	"wink/internal/transport/http/shared"
)

type Service interface {
	List(ctx context.Context, filter users.Filter, limit, offset int) ([]users.User, int, error)
	Get(ctx context.Context, userID string) (users.User, error)
	Create(ctx context.Context, in users.CreateInput) (users.User, error)
	UpdateRole(ctx context.Context, actor auth.UserContext, userID, role string) (users.User, users.User, error)
	UpdateStatus(ctx context.Context, actor auth.UserContext, userID string, active bool) (users.User, error)
	Invite(ctx context.Context, actor auth.UserContext, in users.InviteInput) (users.Invitation, string, error)
	ListInvitations(ctx context.Context, limit, offset int) ([]users.Invitation, error)
	Activate(ctx context.Context, token, password string) (users.User, error)
}

type Handler struct {
	Service Service
	Perms   middleware.PermissionStore
	Audit   shared.AuditRecorder
	// ExposeTokens returns the raw invitation token in the response, for
	// environments without outbound email.
	ExposeTokens bool
}

func NewHandler(service Service, perms middleware.PermissionStore, auditor shared.AuditRecorder) *Handler {
	return &Handler{Service: service, Perms: perms, Audit: auditor}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/users", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermUsersRead, h.Perms)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermUsersWrite, h.Perms)).Post("/", h.handleCreate)
		r.With(middleware.RequirePermission(auth.PermUsersRead, h.Perms)).Get("/{userID}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermUsersWrite, h.Perms)).Put("/{userID}/role", h.handleUpdateRole)
		r.With(middleware.RequirePermission(auth.PermUsersWrite, h.Perms)).Put("/{userID}/status", h.handleUpdateStatus)
	})
	r.Route("/invitations", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermUsersInvite, h.Perms)).Get("/", h.handleListInvitations)
		r.With(middleware.RequirePermission(auth.PermUsersInvite, h.Perms)).Post("/", h.handleInvite)
	})
}

// RegisterPublicRoutes mounts the invitation activation endpoint, which is
// reached before the invitee has an account.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/invitations/activate", h.handleActivate)
}

type createUserRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	FullName   string `json:"fullName" validate:"required,max=200"`
	Role       string `json:"role" validate:"omitempty,oneof=employee manager hr admin"`
	Department string `json:"department" validate:"max=120"`
}

type roleRequest struct {
	Role string `json:"role" validate:"required,oneof=employee manager hr admin"`
}

type statusRequest struct {
	IsActive *bool `json:"isActive" validate:"required"`
}

type inviteRequest struct {
	Email      string `json:"email" validate:"required,email"`
	FullName   string `json:"fullName" validate:"required,max=200"`
	Department string `json:"department" validate:"max=120"`
}

type activateRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePagination(r, 50, 200)
	query := r.URL.Query()
	filter := users.Filter{
		Role:       strings.TrimSpace(query.Get("role")),
		Department: strings.TrimSpace(query.Get("department")),
		ActiveOnly: query.Get("active") == "true",
	}

	items, total, err := h.Service.List(r.Context(), filter, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "user_list_failed", "failed to list users", middleware.GetRequestID(r.Context()))
		return
	}
	shared.SetTotalCount(w, total)
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	user, err := h.Service.Get(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.failUser(w, r, err, "user_fetch_failed", "failed to load user")
		return
	}
	api.Success(w, user, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetUser(r.Context())
	var payload createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	validator := shared.NewValidator()
	validator.ValidateStruct(payload)
	if payload.Password != "" {
		if err := auth.ValidatePassword(payload.Password); err != nil {
			validator.Add("password", err.Error())
		}
	}
	if validator.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	created, err := h.Service.Create(r.Context(), users.CreateInput{
		Email:      payload.Email,
		Password:   payload.Password,
		FullName:   payload.FullName,
		Role:       payload.Role,
		Department: strings.TrimSpace(payload.Department),
	})
	if err != nil {
		h.failUser(w, r, err, "user_create_failed", "failed to create user")
		return
	}
	shared.RecordAudit(r.Context(), h.Audit, actor.UserID, audit.ActionUserCreate, "user", created.ID, nil, created)
	api.Created(w, created, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetUser(r.Context())
	var payload roleRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	validator := shared.NewValidator()
	validator.ValidateStruct(payload)
	if validator.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	userID := chi.URLParam(r, "userID")
	before, after, err := h.Service.UpdateRole(r.Context(), actor, userID, payload.Role)
	if err != nil {
		h.failUser(w, r, err, "user_update_failed", "failed to update role")
		return
	}
	shared.RecordAudit(r.Context(), h.Audit, actor.UserID, audit.ActionUserRoleUpdate, "user", userID,
		map[string]string{"role": before.Role}, map[string]string{"role": after.Role})
	api.Success(w, after, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetUser(r.Context())
	var payload statusRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	validator := shared.NewValidator()
	validator.ValidateStruct(payload)
	if validator.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	userID := chi.URLParam(r, "userID")
	updated, err := h.Service.UpdateStatus(r.Context(), actor, userID, *payload.IsActive)
	if err != nil {
		h.failUser(w, r, err, "user_update_failed", "failed to update status")
		return
	}
	shared.RecordAudit(r.Context(), h.Audit, actor.UserID, audit.ActionUserStatusUpdate, "user", userID,
		nil, map[string]bool{"isActive": updated.IsActive})
	api.Success(w, updated, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListInvitations(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePagination(r, 50, 200)
	items, err := h.Service.ListInvitations(r.Context(), page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "invitation_list_failed", "failed to list invitations", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleInvite(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.GetUser(r.Context())
	var payload inviteRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	validator := shared.NewValidator()
	validator.ValidateStruct(payload)
	if validator.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	inv, token, err := h.Service.Invite(r.Context(), actor, users.InviteInput{
		Email:      payload.Email,
		FullName:   payload.FullName,
		Department: strings.TrimSpace(payload.Department),
	})
	emailSent := true
	if err != nil {
		if inv.ID == "" {
			api.Fail(w, http.StatusInternalServerError, "invitation_failed", "failed to create invitation", middleware.GetRequestID(r.Context()))
			return
		}
		slog.Warn("invitation email failed", "invitationId", inv.ID, "err", err)
		emailSent = false
	}
	shared.RecordAudit(r.Context(), h.Audit, actor.UserID, audit.ActionInvitationCreate, "invitation", inv.ID, nil, inv)

	resp := map[string]any{"invitation": inv, "emailSent": emailSent}
	if h.ExposeTokens {
		resp["token"] = token
	}
	api.Created(w, resp, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleActivate(w http.ResponseWriter, r *http.Request) {
	var payload activateRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	validator := shared.NewValidator()
	validator.ValidateStruct(payload)
	if payload.Password != "" {
		if err := auth.ValidatePassword(payload.Password); err != nil {
			validator.Add("password", err.Error())
		}
	}
	if validator.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	user, err := h.Service.Activate(r.Context(), payload.Token, payload.Password)
	if errors.Is(err, users.ErrInvitationInvalid) {
		api.Fail(w, http.StatusBadRequest, "invalid_token", "invitation is invalid or expired", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		h.failUser(w, r, err, "activation_failed", "failed to activate invitation")
		return
	}
	shared.RecordAudit(r.Context(), h.Audit, user.ID, audit.ActionInvitationActivate, "user", user.ID, nil, user)
	api.Created(w, user, middleware.GetRequestID(r.Context()))
}

func (h *Handler) failUser(w http.ResponseWriter, r *http.Request, err error, code, message string) {
	requestID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, users.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "user not found", requestID)
	case errors.Is(err, users.ErrEmailTaken):
		api.Fail(w, http.StatusConflict, "email_taken", "email already registered", requestID)
	case errors.Is(err, users.ErrInvalidRole):
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "role", Reason: "must be one of: " + strings.Join(auth.Roles, ", ")}})
	case errors.Is(err, users.ErrSelfDemotion):
		api.Fail(w, http.StatusBadRequest, "self_update_forbidden", "cannot change your own role or status", requestID)
	case errors.Is(err, auth.ErrWeakPassword):
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "password", Reason: err.Error()}})
	default:
		slog.Error(message, "err", err)
		api.Fail(w, http.StatusInternalServerError, code, message, requestID)
	}
}
