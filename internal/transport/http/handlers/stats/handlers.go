package statshandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"wink/internal/domain/auth"
	"wink/internal/domain/stats"
	"wink/internal/transport/http/api"
	"wink/internal/transport/http/middleware"
)

type Service interface {
	EmployeeDetails(ctx context.Context, employeeID string) (stats.Details, error)
	Company(ctx context.Context) (stats.Company, error)
}

type Handler struct {
	Service Service
	Perms   middleware.PermissionStore
}

func NewHandler(service Service, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/stats", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermStatsRead, h.Perms)).Get("/employees/{employeeID}", h.handleEmployee)
		r.With(middleware.RequirePermission(auth.PermReportsRead, h.Perms)).Get("/company", h.handleCompany)
	})
}

func (h *Handler) handleEmployee(w http.ResponseWriter, r *http.Request) {
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

	details, err := h.Service.EmployeeDetails(r.Context(), employeeID)
	if errors.Is(err, stats.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "employee not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		slog.Error("employee stats failed", "employeeId", employeeID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "stats_failed", "failed to load stats", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, details, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCompany(w http.ResponseWriter, r *http.Request) {
	company, err := h.Service.Company(r.Context())
	if err != nil {
		slog.Error("company stats failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "stats_failed", "failed to load stats", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, company, middleware.GetRequestID(r.Context()))
}
