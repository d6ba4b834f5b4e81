package analyticshandler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wink/internal/domain/audit"
	"wink/internal/domain/auth"
	"wink/internal/domain/gar"
	"wink/internal/domain/tasks"
	"wink/internal/domain/users"
	"wink/internal/transport/http/middleware"
)

type rolePerms struct{}

func (rolePerms) HasPermission(ctx context.Context, role, permission string) (bool, error) {
	for _, p := range auth.RolePermissions[role] {
		if p == permission {
			return true, nil
		}
	}
	return false, nil
}

type memoryWeights struct {
	stored *gar.Weights
}

func (m *memoryWeights) ReadWeights(ctx context.Context) (*gar.Weights, error) {
	if m.stored == nil {
		return nil, nil
	}
	w := *m.stored
	return &w, nil
}

func (m *memoryWeights) UpsertWeights(ctx context.Context, update gar.WeightsUpdate) (gar.Weights, error) {
	current := gar.DefaultWeights
	if m.stored != nil {
		current = *m.stored
	}
	next := update.Apply(current)
	m.stored = &next
	return next, nil
}

type memoryData struct {
	tasks   map[string][]gar.Task
	ratings map[string][]float64
}

func (m memoryData) ListTasks(ctx context.Context, employeeID string, window gar.Window) ([]gar.Task, error) {
	var out []gar.Task
	for _, task := range m.tasks[employeeID] {
		if window.Contains(task.CreatedAt) {
			out = append(out, task)
		}
	}
	return out, nil
}

func (m memoryData) ListSubtasks(ctx context.Context, taskIDs []string) (map[string][]gar.Subtask, error) {
	return map[string][]gar.Subtask{}, nil
}

func (m memoryData) ListReviewRatings(ctx context.Context, employeeID string) ([]float64, error) {
	return m.ratings[employeeID], nil
}

type directory map[string]users.User

func (d directory) Get(ctx context.Context, userID string) (users.User, error) {
	u, ok := d[userID]
	if !ok {
		return users.User{}, users.ErrNotFound
	}
	return u, nil
}

type recordingAudit struct {
	actions []string
	before  []any
}

func (a *recordingAudit) Record(ctx context.Context, actorID, action, entityType, entityID string, before, after any) error {
	a.actions = append(a.actions, action)
	a.before = append(a.before, before)
	return nil
}

type envelope struct {
	Data struct {
		EmployeeID   string      `json:"employee_id"`
		EmployeeName string      `json:"employee_name"`
		Metrics      gar.Metrics `json:"metrics"`
		GAR          float64     `json:"GAR"`
		Weights      gar.Weights `json:"weights"`
		Message      string      `json:"message"`
	} `json:"data"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func fixture(t *testing.T) (*Handler, *memoryWeights, *recordingAudit) {
	t.Helper()
	deadline := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)
	completedAt := time.Date(2026, 1, 18, 0, 0, 0, 0, time.UTC)
	data := memoryData{
		tasks: map[string][]gar.Task{
			"emp1": {
				{ID: "t1", Status: tasks.StatusCompleted, Deadline: &deadline, CompletedAt: &completedAt, CreatedAt: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)},
				{ID: "t2", Status: tasks.StatusPending, CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
			},
		},
		ratings: map[string][]float64{"emp1": {8}},
	}
	weights := &memoryWeights{}
	weightService := gar.NewWeightService(weights, false)
	calc := gar.NewCalculator(data, weightService, gar.Options{})
	dir := directory{
		"emp1": {ID: "emp1", FullName: "Ivan Petrov"},
		"emp2": {ID: "emp2", FullName: "Anna Smirnova"},
	}
	recorder := &recordingAudit{}
	return NewHandler(calc, weightService, dir, rolePerms{}, recorder), weights, recorder
}

func serve(t *testing.T, h *Handler, actor auth.UserContext, method, path string, body []byte) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithUser(req.Context(), actor)))
		})
	})
	h.RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, bytes.NewReader(body)))
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

var (
	employee = auth.UserContext{UserID: "emp1", Role: auth.RoleEmployee}
	manager  = auth.UserContext{UserID: "mgr1", Role: auth.RoleManager}
	admin    = auth.UserContext{UserID: "adm1", Role: auth.RoleAdmin}
)

func TestEmployeeGARForSelf(t *testing.T) {
	h, _, _ := fixture(t)
	rec, env := serve(t, h, employee, http.MethodGet, "/analytics/employee/emp1/gar", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "emp1", env.Data.EmployeeID)
	assert.Equal(t, "Ivan Petrov", env.Data.EmployeeName)
	assert.Equal(t, gar.Metrics{TCR: "1/2", GoalProgress: "50.0%", Timeliness: "1/1", Quality: 8}, env.Data.Metrics)
	assert.InDelta(t, 0.71, env.Data.GAR, 1e-9)
	assert.Equal(t, gar.DefaultWeights, env.Data.Weights)
}

func TestEmployeeGARWindowIncludesWholeUntilDay(t *testing.T) {
	h, _, _ := fixture(t)
	rec, env := serve(t, h, manager, http.MethodGet, "/analytics/employee/emp1/gar?since=2026-01-01&until=2026-01-15", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1/1", env.Data.Metrics.TCR)
	assert.InDelta(t, 1.06, env.Data.GAR, 1e-9)
}

func TestEmployeeGARZeroTasksIsAValidScore(t *testing.T) {
	h, _, _ := fixture(t)
	rec, env := serve(t, h, manager, http.MethodGet, "/analytics/employee/emp2/gar", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, gar.Metrics{TCR: "0/0", GoalProgress: "0%", Timeliness: "0/0", Quality: 0}, env.Data.Metrics)
	assert.Zero(t, env.Data.GAR)
}

func TestEmployeeGARErrors(t *testing.T) {
	h, _, _ := fixture(t)

	rec, env := serve(t, h, employee, http.MethodGet, "/analytics/employee/emp2/gar", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", env.Error.Code)

	rec, env = serve(t, h, manager, http.MethodGet, "/analytics/employee/ghost/gar", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", env.Error.Code)

	rec, env = serve(t, h, manager, http.MethodGet, "/analytics/employee/emp1/gar?since=2026-02-01&until=2026-01-01", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", env.Error.Code)

	rec, _ = serve(t, h, manager, http.MethodGet, "/analytics/employee/emp1/gar?since=last-week", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateWeightsPartialAndAudited(t *testing.T) {
	h, store, recorder := fixture(t)

	rec, _ := serve(t, h, manager, http.MethodPut, "/analytics/gar-weights", []byte(`{"TCR":0.5}`))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Nil(t, store.stored)

	rec, env := serve(t, h, admin, http.MethodPut, "/analytics/gar-weights", []byte(`{"TCR":0.5,"Quality":0}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "updated", env.Data.Message)
	assert.Equal(t, gar.Weights{TCR: 0.5, GoalProgress: 0.3, Timeliness: 0.2, Quality: 0}, env.Data.Weights)

	require.Equal(t, []string{audit.ActionWeightsUpdate}, recorder.actions)
	assert.Equal(t, gar.DefaultWeights, recorder.before[0])

	rec, _ = serve(t, h, employee, http.MethodGet, "/analytics/gar-weights", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stored struct {
		Data gar.Weights `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stored))
	assert.Equal(t, 0.5, stored.Data.TCR)
	assert.Equal(t, 0.0, stored.Data.Quality)

	rec, _ = serve(t, h, employee, http.MethodGet, "/analytics/employee/emp1/gar", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdateWeightsRejectsMalformedBody(t *testing.T) {
	h, _, _ := fixture(t)
	rec, env := serve(t, h, admin, http.MethodPut, "/analytics/gar-weights", []byte(`{"TCR":"high"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_payload", env.Error.Code)
}

func TestUpdateWeightsStrictModeRejectsNegatives(t *testing.T) {
	store := &memoryWeights{}
	strict := gar.NewWeightService(store, true)
	h := NewHandler(nil, strict, directory{}, rolePerms{}, nil)

	rec, env := serve(t, h, admin, http.MethodPut, "/analytics/gar-weights", []byte(`{"Timeliness":-0.2}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", env.Error.Code)
	assert.Nil(t, store.stored)
}
