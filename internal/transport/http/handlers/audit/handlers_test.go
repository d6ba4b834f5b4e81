package audithandler

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wink/internal/domain/audit"
	"wink/internal/domain/auth"
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

type memoryService struct {
	events []audit.Event
}

func (m memoryService) match(filter audit.Filter) []audit.Event {
	var out []audit.Event
	for _, e := range m.events {
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		if filter.EntityType != "" && e.EntityType != filter.EntityType {
			continue
		}
		if filter.ActorUser != "" && e.ActorID != filter.ActorUser {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (m memoryService) Count(ctx context.Context, filter audit.Filter) (int, error) {
	return len(m.match(filter)), nil
}

func (m memoryService) List(ctx context.Context, filter audit.Filter, includeDetails bool, limit, offset int) ([]audit.Event, error) {
	out := m.match(filter)
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func serve(t *testing.T, actor auth.UserContext, path string) *httptest.ResponseRecorder {
	t.Helper()
	created := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	svc := memoryService{events: []audit.Event{
		{ID: "e1", ActorID: "adm1", Action: audit.ActionWeightsUpdate, EntityType: "gar_settings", EntityID: "singleton", CreatedAt: created},
		{ID: "e2", ActorID: "mgr1", Action: audit.ActionTaskCreate, EntityType: "task", EntityID: "t1", CreatedAt: created},
		{ID: "e3", ActorID: "mgr1", Action: audit.ActionTaskDelete, EntityType: "task", EntityID: "t1", CreatedAt: created},
	}}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithUser(req.Context(), actor)))
		})
	})
	NewHandler(svc, rolePerms{}).RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

var (
	hr      = auth.UserContext{UserID: "hr1", Role: auth.RoleHR}
	manager = auth.UserContext{UserID: "mgr1", Role: auth.RoleManager}
)

func TestListFiltersByEntityType(t *testing.T) {
	rec := serve(t, hr, "/audit?entityType=task&limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-Total-Count"))

	var env struct {
		Data []audit.Event `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Len(t, env.Data, 1)
	assert.Equal(t, audit.ActionTaskCreate, env.Data[0].Action)
}

func TestListRequiresAuditPermission(t *testing.T) {
	rec := serve(t, manager, "/audit")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestExportWritesCSV(t *testing.T) {
	rec := serve(t, hr, "/audit/export?action="+audit.ActionWeightsUpdate)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))

	rows, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "action", rows[0][2])
	assert.Equal(t, []string{"e1", "adm1", audit.ActionWeightsUpdate, "gar_settings", "singleton", "", "", "2026-02-01T10:00:00Z"}, rows[1])
}
