package taskshandler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"wink/internal/domain/audit"
	"wink/internal/domain/auth"
	"wink/internal/domain/tasks"
	"wink/internal/transport/http/api"
	"wink/internal/transport/http/middleware"
	"wink/internal/transport/http/shared"
)

const createEndpoint = "tasks.create"

type Service interface {
	Create(ctx context.Context, actor auth.UserContext, in tasks.CreateInput) (tasks.Task, error)
	Get(ctx context.Context, taskID string) (tasks.Task, error)
	Details(ctx context.Context, taskID string) (tasks.Details, error)
	List(ctx context.Context, filter tasks.Filter, limit, offset int) ([]tasks.Task, int, error)
	Update(ctx context.Context, actor auth.UserContext, taskID string, patch tasks.Patch) (tasks.Task, tasks.Task, error)
	Delete(ctx context.Context, taskID string) (tasks.Task, error)
	AddSubtask(ctx context.Context, taskID, title string, weight *float64) (tasks.Subtask, error)
	UpdateSubtask(ctx context.Context, actor auth.UserContext, taskID, subtaskID string, patch tasks.SubtaskPatch) (tasks.Subtask, error)
	DeleteSubtask(ctx context.Context, taskID, subtaskID string) error
	AddComment(ctx context.Context, actor auth.UserContext, taskID, text string) (tasks.Comment, error)
	ListComments(ctx context.Context, taskID string) ([]tasks.Comment, tasks.CommentStats, error)
	Review(ctx context.Context, actor auth.UserContext, taskID string, rating float64, comment string) (tasks.Review, error)
}

type Handler struct {
	Service     Service
	Perms       middleware.PermissionStore
	Audit       shared.AuditRecorder
	Idempotency middleware.Idempotency
}

func NewHandler(service Service, perms middleware.PermissionStore, auditor shared.AuditRecorder, idem middleware.Idempotency) *Handler {
	return &Handler{Service: service, Perms: perms, Audit: auditor, Idempotency: idem}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/tasks", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermTasksRead, h.Perms)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermTasksWrite, h.Perms)).Post("/", h.handleCreate)
		r.With(middleware.RequirePermission(auth.PermTasksRead, h.Perms)).Get("/{taskID}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermTasksRead, h.Perms)).Patch("/{taskID}", h.handleUpdate)
		r.With(middleware.RequirePermission(auth.PermTasksWrite, h.Perms)).Delete("/{taskID}", h.handleDelete)
		r.With(middleware.RequirePermission(auth.PermTasksWrite, h.Perms)).Post("/{taskID}/subtasks", h.handleAddSubtask)
		r.With(middleware.RequirePermission(auth.PermTasksRead, h.Perms)).Patch("/{taskID}/subtasks/{subtaskID}", h.handleUpdateSubtask)
		r.With(middleware.RequirePermission(auth.PermTasksWrite, h.Perms)).Delete("/{taskID}/subtasks/{subtaskID}", h.handleDeleteSubtask)
		r.With(middleware.RequirePermission(auth.PermTasksComment, h.Perms)).Post("/{taskID}/comments", h.handleAddComment)
		r.With(middleware.RequirePermission(auth.PermTasksRead, h.Perms)).Get("/{taskID}/comments", h.handleListComments)
		r.With(middleware.RequirePermission(auth.PermTasksReview, h.Perms)).Post("/{taskID}/review", h.handleReview)
	})
}

type createRequest struct {
	Title          string   `json:"title" validate:"required,max=200"`
	Description    string   `json:"description" validate:"max=5000"`
	Priority       string   `json:"priority" validate:"omitempty,oneof=low medium high critical"`
	AssigneeID     string   `json:"assigneeId" validate:"required,uuid"`
	Department     string   `json:"department" validate:"max=120"`
	Deadline       string   `json:"deadline"`
	IsQuantitative bool     `json:"isQuantitative"`
	GoalTarget     *float64 `json:"goalTarget" validate:"omitempty,gte=0"`
	GoalProgress   *float64 `json:"goalProgress" validate:"omitempty,gte=0"`
	MinComments    *int     `json:"minComments" validate:"omitempty,gte=0"`
}

type updateRequest struct {
	Title          *string  `json:"title" validate:"omitempty,min=1,max=200"`
	Description    *string  `json:"description" validate:"omitempty,max=5000"`
	Status         *string  `json:"status" validate:"omitempty,oneof=pending in_progress completed rejected under_review"`
	Priority       *string  `json:"priority" validate:"omitempty,oneof=low medium high critical"`
	AssigneeID     *string  `json:"assigneeId" validate:"omitempty,uuid"`
	Department     *string  `json:"department" validate:"omitempty,max=120"`
	Deadline       *string  `json:"deadline"`
	IsQuantitative *bool    `json:"isQuantitative"`
	GoalTarget     *float64 `json:"goalTarget" validate:"omitempty,gte=0"`
	GoalProgress   *float64 `json:"goalProgress" validate:"omitempty,gte=0"`
	MinComments    *int     `json:"minComments" validate:"omitempty,gte=0"`
	// Clear names nullable fields to reset to null.
	Clear []string `json:"clear"`
}

type subtaskRequest struct {
	Title  string   `json:"title" validate:"required,max=200"`
	Weight *float64 `json:"weight" validate:"omitempty,gte=0"`
}

type subtaskPatchRequest struct {
	Title     *string  `json:"title" validate:"omitempty,min=1,max=200"`
	Weight    *float64 `json:"weight" validate:"omitempty,gte=0"`
	Completed *bool    `json:"completed"`
}

type commentRequest struct {
	Comment string `json:"comment" validate:"required,max=5000"`
}

type reviewRequest struct {
	Rating  *float64 `json:"rating" validate:"required,gte=1,lte=10"`
	Comment string   `json:"comment" validate:"max=5000"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	query := r.URL.Query()
	filter := tasks.Filter{
		AssigneeID: strings.TrimSpace(query.Get("assigneeId")),
		CreatorID:  strings.TrimSpace(query.Get("creatorId")),
		Status:     strings.TrimSpace(query.Get("status")),
		Department: strings.TrimSpace(query.Get("department")),
	}
	if filter.Status != "" && !tasks.ValidStatus(filter.Status) {
		shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.ValidationIssue{{Field: "status", Reason: "must be a valid task status"}})
		return
	}
	if !auth.IsPrivileged(user.Role) {
		filter.AssigneeID = user.UserID
	}

	page := shared.ParsePagination(r, 50, 200)
	items, total, err := h.Service.List(r.Context(), filter, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "task_list_failed", "failed to list tasks", middleware.GetRequestID(r.Context()))
		return
	}
	shared.SetTotalCount(w, total)
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	details, err := h.Service.Details(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		h.failTask(w, r, err, "task_fetch_failed", "failed to load task")
		return
	}
	if !canSee(user, details.Task) {
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed to view this task", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, details, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	requestHash := middleware.RequestHash(body)
	if idempotencyKey != "" && h.Idempotency != nil {
		stored, found, err := h.Idempotency.Check(r.Context(), user.UserID, createEndpoint, idempotencyKey, requestHash)
		if errors.Is(err, middleware.ErrIdempotencyConflict) {
			api.Fail(w, http.StatusConflict, "idempotency_conflict", "idempotency key reused with a different payload", middleware.GetRequestID(r.Context()))
			return
		}
		if err != nil {
			slog.Warn("idempotency check failed", "err", err)
		}
		if found {
			api.Created(w, json.RawMessage(stored), middleware.GetRequestID(r.Context()))
			return
		}
	}

	var payload createRequest
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	validator := shared.NewValidator()
	validator.ValidateStruct(payload)
	deadline := validator.Timestamp("deadline", payload.Deadline)
	if payload.IsQuantitative && payload.GoalTarget == nil {
		validator.Add("goalTarget", "is required for quantitative tasks")
	}
	if validator.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	task, err := h.Service.Create(r.Context(), user, tasks.CreateInput{
		Title:          payload.Title,
		Description:    payload.Description,
		Priority:       payload.Priority,
		AssigneeID:     payload.AssigneeID,
		Department:     strings.TrimSpace(payload.Department),
		Deadline:       deadline,
		IsQuantitative: payload.IsQuantitative,
		GoalTarget:     payload.GoalTarget,
		GoalProgress:   payload.GoalProgress,
		MinComments:    payload.MinComments,
	})
	if err != nil {
		h.failTask(w, r, err, "task_create_failed", "failed to create task")
		return
	}
	shared.RecordAudit(r.Context(), h.Audit, user.UserID, audit.ActionTaskCreate, "task", task.ID, nil, task)

	if idempotencyKey != "" && h.Idempotency != nil {
		if encoded, err := json.Marshal(task); err != nil {
			slog.Warn("task response marshal failed", "err", err)
		} else if err := h.Idempotency.Save(r.Context(), user.UserID, createEndpoint, idempotencyKey, requestHash, encoded); err != nil {
			slog.Warn("idempotency save failed", "err", err)
		}
	}
	api.Created(w, task, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	var payload updateRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	validator := shared.NewValidator()
	validator.ValidateStruct(payload)
	var deadline *time.Time
	if payload.Deadline != nil {
		deadline = validator.Timestamp("deadline", *payload.Deadline)
	}
	cleared := clearedFields(validator, payload)
	if validator.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	taskID := chi.URLParam(r, "taskID")
	before, after, err := h.Service.Update(r.Context(), user, taskID, tasks.Patch{
		ClearDeadline:     cleared["deadline"],
		ClearGoalTarget:   cleared["goalTarget"],
		ClearGoalProgress: cleared["goalProgress"],
		Title:          payload.Title,
		Description:    payload.Description,
		Status:         payload.Status,
		Priority:       payload.Priority,
		AssigneeID:     payload.AssigneeID,
		Department:     payload.Department,
		Deadline:       deadline,
		IsQuantitative: payload.IsQuantitative,
		GoalTarget:     payload.GoalTarget,
		GoalProgress:   payload.GoalProgress,
		MinComments:    payload.MinComments,
	})
	if err != nil {
		h.failTask(w, r, err, "task_update_failed", "failed to update task")
		return
	}
	shared.RecordAudit(r.Context(), h.Audit, user.UserID, audit.ActionTaskUpdate, "task", taskID, before, after)
	api.Success(w, after, middleware.GetRequestID(r.Context()))
}

// clearedFields validates the clear list. A field cannot be set and cleared
// in one request.
func clearedFields(validator *shared.Validator, payload updateRequest) map[string]bool {
	set := map[string]bool{
		"deadline":     payload.Deadline != nil,
		"goalTarget":   payload.GoalTarget != nil,
		"goalProgress": payload.GoalProgress != nil,
	}
	out := map[string]bool{}
	for _, name := range payload.Clear {
		isSet, known := set[name]
		switch {
		case !known:
			validator.Add("clear", fmt.Sprintf("%q cannot be cleared", name))
		case isSet:
			validator.Add("clear", fmt.Sprintf("%q cannot be set and cleared together", name))
		default:
			out[name] = true
		}
	}
	return out
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	taskID := chi.URLParam(r, "taskID")
	deleted, err := h.Service.Delete(r.Context(), taskID)
	if err != nil {
		h.failTask(w, r, err, "task_delete_failed", "failed to delete task")
		return
	}
	shared.RecordAudit(r.Context(), h.Audit, user.UserID, audit.ActionTaskDelete, "task", taskID, deleted, nil)
	api.Success(w, map[string]string{"status": "deleted"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleAddSubtask(w http.ResponseWriter, r *http.Request) {
	var payload subtaskRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	validator := shared.NewValidator()
	validator.ValidateStruct(payload)
	if validator.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	subtask, err := h.Service.AddSubtask(r.Context(), chi.URLParam(r, "taskID"), payload.Title, payload.Weight)
	if err != nil {
		h.failTask(w, r, err, "subtask_create_failed", "failed to create subtask")
		return
	}
	api.Created(w, subtask, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateSubtask(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	var payload subtaskPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	validator := shared.NewValidator()
	validator.ValidateStruct(payload)
	if validator.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	subtask, err := h.Service.UpdateSubtask(r.Context(), user, chi.URLParam(r, "taskID"), chi.URLParam(r, "subtaskID"), tasks.SubtaskPatch{
		Title:     payload.Title,
		Weight:    payload.Weight,
		Completed: payload.Completed,
	})
	if err != nil {
		h.failTask(w, r, err, "subtask_update_failed", "failed to update subtask")
		return
	}
	api.Success(w, subtask, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDeleteSubtask(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteSubtask(r.Context(), chi.URLParam(r, "taskID"), chi.URLParam(r, "subtaskID")); err != nil {
		h.failTask(w, r, err, "subtask_delete_failed", "failed to delete subtask")
		return
	}
	api.Success(w, map[string]string{"status": "deleted"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleAddComment(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	var payload commentRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	validator := shared.NewValidator()
	validator.ValidateStruct(payload)
	if strings.TrimSpace(payload.Comment) == "" {
		validator.Add("comment", "is required")
	}
	if validator.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	comment, err := h.Service.AddComment(r.Context(), user, chi.URLParam(r, "taskID"), payload.Comment)
	if err != nil {
		h.failTask(w, r, err, "comment_create_failed", "failed to add comment")
		return
	}
	api.Created(w, comment, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListComments(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	taskID := chi.URLParam(r, "taskID")
	task, err := h.Service.Get(r.Context(), taskID)
	if err != nil {
		h.failTask(w, r, err, "comment_list_failed", "failed to list comments")
		return
	}
	if !canSee(user, task) {
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed to view this task", middleware.GetRequestID(r.Context()))
		return
	}

	comments, stats, err := h.Service.ListComments(r.Context(), taskID)
	if err != nil {
		h.failTask(w, r, err, "comment_list_failed", "failed to list comments")
		return
	}
	api.Success(w, map[string]any{"comments": comments, "stats": stats}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleReview(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	var payload reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	validator := shared.NewValidator()
	validator.ValidateStruct(payload)
	if validator.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	taskID := chi.URLParam(r, "taskID")
	review, err := h.Service.Review(r.Context(), user, taskID, *payload.Rating, payload.Comment)
	if err != nil {
		h.failTask(w, r, err, "review_create_failed", "failed to create review")
		return
	}
	shared.RecordAudit(r.Context(), h.Audit, user.UserID, audit.ActionReviewCreate, "task", taskID, nil, review)
	api.Created(w, review, middleware.GetRequestID(r.Context()))
}

func (h *Handler) failTask(w http.ResponseWriter, r *http.Request, err error, code, message string) {
	requestID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, tasks.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "task not found", requestID)
	case errors.Is(err, tasks.ErrSubtaskNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "subtask not found", requestID)
	case errors.Is(err, tasks.ErrForbidden), errors.Is(err, tasks.ErrAssigneeFields), errors.Is(err, tasks.ErrCommentNotAllowed):
		api.Fail(w, http.StatusForbidden, "forbidden", err.Error(), requestID)
	case errors.Is(err, tasks.ErrReviewExists):
		api.Fail(w, http.StatusConflict, "review_exists", "task already reviewed", requestID)
	case errors.Is(err, tasks.ErrTaskNotCompleted):
		api.Fail(w, http.StatusBadRequest, "task_not_completed", "only completed tasks can be reviewed", requestID)
	case errors.Is(err, tasks.ErrAssigneeNotFound):
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "assigneeId", Reason: err.Error()}})
	case errors.Is(err, tasks.ErrInvalidStatus):
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "status", Reason: err.Error()}})
	case errors.Is(err, tasks.ErrInvalidPriority):
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "priority", Reason: err.Error()}})
	case errors.Is(err, tasks.ErrInvalidWeight):
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "weight", Reason: err.Error()}})
	case errors.Is(err, tasks.ErrGoalTargetNeeded):
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "goalTarget", Reason: err.Error()}})
	case errors.Is(err, tasks.ErrInvalidRating):
		shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "rating", Reason: err.Error()}})
	default:
		slog.Error(message, "err", err)
		api.Fail(w, http.StatusInternalServerError, code, message, requestID)
	}
}

func canSee(user auth.UserContext, task tasks.Task) bool {
	return auth.IsPrivileged(user.Role) || task.AssigneeID == user.UserID
}
