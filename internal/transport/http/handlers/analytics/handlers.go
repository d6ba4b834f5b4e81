package analyticshandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"wink/internal/domain/audit"
	"wink/internal/domain/auth"
	"wink/internal/domain/gar"
	"wink/internal/domain/users"
	"wink/internal/transport/http/api"
	"wink/internal/transport/http/middleware"
	"wink/internal/transport/http/shared"
)

type Calculator interface {
	Calculate(ctx context.Context, employeeID string, window gar.Window) (gar.Result, error)
}

type WeightService interface {
	Get(ctx context.Context) (gar.Weights, error)
	Update(ctx context.Context, update gar.WeightsUpdate) (gar.Weights, error)
}

type Directory interface {
	Get(ctx context.Context, userID string) (users.User, error)
}

type Handler struct {
	Calculator Calculator
	Weights    WeightService
	Directory  Directory
	Perms      middleware.PermissionStore
	Audit      shared.AuditRecorder
}

func NewHandler(calculator Calculator, weights WeightService, directory Directory, perms middleware.PermissionStore, auditor shared.AuditRecorder) *Handler {
	return &Handler{Calculator: calculator, Weights: weights, Directory: directory, Perms: perms, Audit: auditor}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/analytics", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermAnalyticsRead, h.Perms)).Get("/employee/{employeeID}/gar", h.handleEmployeeGAR)
		r.With(middleware.RequirePermission(auth.PermAnalyticsRead, h.Perms)).Get("/gar-weights", h.handleGetWeights)
		r.With(middleware.RequirePermission(auth.PermAnalyticsWeights, h.Perms)).Put("/gar-weights", h.handleUpdateWeights)
	})
}

type garResponse struct {
	EmployeeID   string      `json:"employee_id"`
	EmployeeName string      `json:"employee_name"`
	Metrics      gar.Metrics `json:"metrics"`
	GAR          float64     `json:"GAR"`
	Weights      gar.Weights `json:"weights"`
}

func (h *Handler) handleEmployeeGAR(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	employeeID := chi.URLParam(r, "employeeID")
	if !auth.CanViewEmployee(user, employeeID) {
		api.Fail(w, http.StatusForbidden, "forbidden", "not enough permissions", middleware.GetRequestID(r.Context()))
		return
	}

	validator := shared.NewValidator()
	since, until := validator.Window("since", r.URL.Query().Get("since"), "until", r.URL.Query().Get("until"))
	if validator.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	employee, err := h.Directory.Get(r.Context(), employeeID)
	if errors.Is(err, users.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "employee not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		slog.Error("employee lookup failed", "employeeId", employeeID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "gar_failed", "failed to calculate gar", middleware.GetRequestID(r.Context()))
		return
	}

	result, err := h.Calculator.Calculate(r.Context(), employeeID, gar.Window{Since: since, Until: until})
	if errors.Is(err, gar.ErrInvalidWindow) {
		shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.ValidationIssue{{Field: "since", Reason: "must be on or before until"}})
		return
	}
	if err != nil {
		slog.Error("gar calculation failed", "employeeId", employeeID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "gar_failed", "failed to calculate gar", middleware.GetRequestID(r.Context()))
		return
	}

	api.Success(w, garResponse{
		EmployeeID:   employee.ID,
		EmployeeName: employee.FullName,
		Metrics:      result.Metrics,
		GAR:          result.GAR,
		Weights:      result.Weights,
	}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetWeights(w http.ResponseWriter, r *http.Request) {
	weights, err := h.Weights.Get(r.Context())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "weights_failed", "failed to load weights", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, weights, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateWeights(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	var payload gar.WeightsUpdate
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	before, err := h.Weights.Get(r.Context())
	if err != nil {
		slog.Warn("weights read before update failed", "err", err)
	}
	updated, err := h.Weights.Update(r.Context(), payload)
	if errors.Is(err, gar.ErrInvalidWeights) {
		shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.ValidationIssue{{Field: "weights", Reason: err.Error()}})
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "weights_update_failed", "failed to update weights", middleware.GetRequestID(r.Context()))
		return
	}
	shared.RecordAudit(r.Context(), h.Audit, user.UserID, audit.ActionWeightsUpdate, "gar_settings", "singleton", before, updated)

	api.Success(w, map[string]any{"message": "updated", "weights": updated}, middleware.GetRequestID(r.Context()))
}
