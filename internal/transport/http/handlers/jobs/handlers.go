package jobshandler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"wink/internal/domain/auth"
	"wink/internal/platform/jobs"
	"wink/internal/transport/http/api"
	"wink/internal/transport/http/middleware"
	"wink/internal/transport/http/shared"
)

type Runner interface {
	RunNow(ctx context.Context, jobType string, run jobs.RunFunc) (any, error)
	ListRuns(ctx context.Context, jobType string, limit, offset int) ([]jobs.Run, error)
}

// Handler exposes job history and lets admins trigger a registered job
// outside its schedule.
type Handler struct {
	Runner Runner
	Jobs   map[string]jobs.RunFunc
	Perms  middleware.PermissionStore
}

func NewHandler(runner Runner, registered map[string]jobs.RunFunc, perms middleware.PermissionStore) *Handler {
	return &Handler{Runner: runner, Jobs: registered, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/jobs", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermAuditRead, h.Perms)).Get("/runs", h.handleListRuns)
		r.With(middleware.RequireRole(auth.RoleAdmin)).Post("/{jobType}/run", h.handleRun)
	})
}

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePagination(r, 50, 200)
	runs, err := h.Runner.ListRuns(r.Context(), r.URL.Query().Get("jobType"), page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "job_runs_failed", "failed to list job runs", middleware.GetRequestID(r.Context()))
		return
	}
	if runs == nil {
		runs = []jobs.Run{}
	}
	api.Success(w, runs, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	jobType := chi.URLParam(r, "jobType")
	run, ok := h.Jobs[jobType]
	if !ok {
		api.Fail(w, http.StatusNotFound, "not_found", "unknown job type", middleware.GetRequestID(r.Context()))
		return
	}

	details, err := h.Runner.RunNow(r.Context(), jobType, run)
	if err != nil {
		slog.Error("manual job run failed", "jobType", jobType, "err", err)
		api.Fail(w, http.StatusInternalServerError, "job_failed", "job run failed", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]any{"jobType": jobType, "status": jobs.StatusCompleted, "details": details}, middleware.GetRequestID(r.Context()))
}
