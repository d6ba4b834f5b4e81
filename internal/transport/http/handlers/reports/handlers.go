package reportshandler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"wink/internal/domain/auth"
	"wink/internal/domain/gar"
	"wink/internal/domain/reports"
	"wink/internal/transport/http/api"
	"wink/internal/transport/http/middleware"
	"wink/internal/transport/http/shared"
)

const (
	contentTypePDF  = "application/pdf"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type Service interface {
	TeamGAR(ctx context.Context, department string, window gar.Window) (reports.TeamReport, error)
}

type Handler struct {
	Service Service
	Perms   middleware.PermissionStore
}

func NewHandler(service Service, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermReportsRead, h.Perms)).Get("/gar", h.handleTeamGAR)
	})
}

func (h *Handler) handleTeamGAR(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format := strings.ToLower(strings.TrimSpace(q.Get("format")))
	if format == "" {
		format = reports.FormatJSON
	}

	validator := shared.NewValidator()
	validator.Enum("format", format, []string{reports.FormatJSON, reports.FormatPDF, reports.FormatXLSX}, "must be one of: json, pdf, xlsx")
	since, until := validator.Window("since", q.Get("since"), "until", q.Get("until"))
	if validator.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	department := strings.TrimSpace(q.Get("department"))
	report, err := h.Service.TeamGAR(r.Context(), department, gar.Window{Since: since, Until: until})
	if errors.Is(err, gar.ErrInvalidWindow) {
		shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.ValidationIssue{{Field: "since", Reason: "must be on or before until"}})
		return
	}
	if err != nil {
		slog.Error("team gar report failed", "department", department, "err", err)
		api.Fail(w, http.StatusInternalServerError, "report_failed", "failed to build report", middleware.GetRequestID(r.Context()))
		return
	}

	switch format {
	case reports.FormatPDF:
		h.writeFile(w, r, report, contentTypePDF, "pdf", reports.RenderPDF)
	case reports.FormatXLSX:
		h.writeFile(w, r, report, contentTypeXLSX, "xlsx", reports.RenderXLSX)
	default:
		api.Success(w, report, middleware.GetRequestID(r.Context()))
	}
}

func (h *Handler) writeFile(w http.ResponseWriter, r *http.Request, report reports.TeamReport, contentType, ext string, render func(reports.TeamReport) ([]byte, error)) {
	body, err := render(report)
	if err != nil {
		slog.Error("report render failed", "format", ext, "err", err)
		api.Fail(w, http.StatusInternalServerError, "report_failed", "failed to render report", middleware.GetRequestID(r.Context()))
		return
	}
	filename := fmt.Sprintf("gar-report-%s.%s", report.GeneratedAt.Format("20060102"), ext)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		slog.Warn("report write failed", "err", err)
	}
}
