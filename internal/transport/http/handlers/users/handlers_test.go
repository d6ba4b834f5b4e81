package usershandler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wink/internal/domain/audit"
	"wink/internal/domain/auth"
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

type auditEntry struct {
	actor, action, entityID string
}

type recordingAudit struct {
	entries []auditEntry
}

func (a *recordingAudit) Record(ctx context.Context, actorID, action, entityType, entityID string, before, after any) error {
	a.entries = append(a.entries, auditEntry{actor: actorID, action: action, entityID: entityID})
	return nil
}

type fakeService struct {
	users      map[string]users.User
	inviteErr  error
	activateOK bool
}

func newFakeService() *fakeService {
	return &fakeService{users: map[string]users.User{
		"u1": {ID: "u1", Email: "ivan.petrov@wink.ru", Role: auth.RoleEmployee, IsActive: true},
	}}
}

func (f *fakeService) List(ctx context.Context, filter users.Filter, limit, offset int) ([]users.User, int, error) {
	var out []users.User
	for _, u := range f.users {
		if filter.Role == "" || u.Role == filter.Role {
			out = append(out, u)
		}
	}
	return out, len(out), nil
}

func (f *fakeService) Get(ctx context.Context, userID string) (users.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return users.User{}, users.ErrNotFound
	}
	return u, nil
}

func (f *fakeService) Create(ctx context.Context, in users.CreateInput) (users.User, error) {
	for _, u := range f.users {
		if u.Email == in.Email {
			return users.User{}, users.ErrEmailTaken
		}
	}
	u := users.User{ID: "u2", Email: in.Email, Role: in.Role, IsActive: true}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeService) UpdateRole(ctx context.Context, actor auth.UserContext, userID, role string) (users.User, users.User, error) {
	if actor.UserID == userID {
		return users.User{}, users.User{}, users.ErrSelfDemotion
	}
	before, err := f.Get(ctx, userID)
	if err != nil {
		return users.User{}, users.User{}, err
	}
	after := before
	after.Role = role
	f.users[userID] = after
	return before, after, nil
}

func (f *fakeService) UpdateStatus(ctx context.Context, actor auth.UserContext, userID string, active bool) (users.User, error) {
	u, err := f.Get(ctx, userID)
	if err != nil {
		return users.User{}, err
	}
	u.IsActive = active
	f.users[userID] = u
	return u, nil
}

func (f *fakeService) Invite(ctx context.Context, actor auth.UserContext, in users.InviteInput) (users.Invitation, string, error) {
	inv := users.Invitation{ID: "inv1", Email: in.Email, FullName: in.FullName, CorporateEmail: "anna.smirnova@wink.ru"}
	return inv, "raw-token", f.inviteErr
}

func (f *fakeService) ListInvitations(ctx context.Context, limit, offset int) ([]users.Invitation, error) {
	return []users.Invitation{{ID: "inv1"}}, nil
}

func (f *fakeService) Activate(ctx context.Context, token, password string) (users.User, error) {
	if !f.activateOK || token != "raw-token" {
		return users.User{}, users.ErrInvitationInvalid
	}
	f.activateOK = false
	return users.User{ID: "u3", Email: "anna.smirnova@wink.ru", Role: auth.RoleEmployee, IsActive: true}, nil
}

func newRouter(h *Handler, actor *auth.UserContext) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if actor != nil {
				req = req.WithContext(middleware.WithUser(req.Context(), *actor))
			}
			next.ServeHTTP(w, req)
		})
	})
	h.RegisterPublicRoutes(r)
	h.RegisterRoutes(r)
	return r
}

func send(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))
	return rec
}

var (
	hrActor       = &auth.UserContext{UserID: "hr1", Role: auth.RoleHR}
	employeeActor = &auth.UserContext{UserID: "u1", Role: auth.RoleEmployee}
)

func TestListUsersRequiresPermission(t *testing.T) {
	h := NewHandler(newFakeService(), rolePerms{}, &recordingAudit{})

	rec := send(t, newRouter(h, employeeActor), http.MethodGet, "/users", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = send(t, newRouter(h, hrActor), http.MethodGet, "/users?role=employee", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-Total-Count"))
}

func TestGetUserNotFound(t *testing.T) {
	h := NewHandler(newFakeService(), rolePerms{}, nil)
	rec := send(t, newRouter(h, hrActor), http.MethodGet, "/users/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateUserValidatesAndAudits(t *testing.T) {
	recorder := &recordingAudit{}
	h := NewHandler(newFakeService(), rolePerms{}, recorder)
	router := newRouter(h, hrActor)

	rec := send(t, router, http.MethodPost, "/users", map[string]string{"email": "x@wink.ru", "password": "short", "fullName": "X"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"password"`)

	rec = send(t, router, http.MethodPost, "/users", map[string]string{"email": "ivan.petrov@wink.ru", "password": "Strong123", "fullName": "Ivan"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = send(t, router, http.MethodPost, "/users", map[string]string{"email": "new@wink.ru", "password": "Strong123", "fullName": "New", "role": "manager"})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, recorder.entries, 1)
	assert.Equal(t, auditEntry{actor: "hr1", action: audit.ActionUserCreate, entityID: "u2"}, recorder.entries[0])
}

func TestUpdateRoleAndStatus(t *testing.T) {
	recorder := &recordingAudit{}
	h := NewHandler(newFakeService(), rolePerms{}, recorder)
	router := newRouter(h, hrActor)

	rec := send(t, router, http.MethodPut, "/users/u1/role", map[string]string{"role": "boss"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = send(t, router, http.MethodPut, "/users/u1/role", map[string]string{"role": "manager"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"role":"manager"`)

	rec = send(t, router, http.MethodPut, "/users/hr1/role", map[string]string{"role": "employee"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "self_update_forbidden")

	rec = send(t, router, http.MethodPut, "/users/u1/status", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = send(t, router, http.MethodPut, "/users/u1/status", map[string]any{"isActive": false})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"isActive":false`)

	require.Len(t, recorder.entries, 2)
	assert.Equal(t, audit.ActionUserRoleUpdate, recorder.entries[0].action)
	assert.Equal(t, audit.ActionUserStatusUpdate, recorder.entries[1].action)
}

func TestInviteReportsEmailFailureWithoutFailing(t *testing.T) {
	svc := newFakeService()
	svc.inviteErr = errors.New("smtp down")
	h := NewHandler(svc, rolePerms{}, &recordingAudit{})
	router := newRouter(h, hrActor)

	rec := send(t, router, http.MethodPost, "/invitations", map[string]string{"email": "anna@gmail.com", "fullName": "Anna Smirnova"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"emailSent":false`)
	assert.NotContains(t, rec.Body.String(), "raw-token")

	h.ExposeTokens = true
	svc.inviteErr = nil
	rec = send(t, router, http.MethodPost, "/invitations", map[string]string{"email": "anna@gmail.com", "fullName": "Anna Smirnova"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"token":"raw-token"`)

	rec = send(t, newRouter(h, employeeActor), http.MethodPost, "/invitations", map[string]string{"email": "anna@gmail.com", "fullName": "Anna"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestActivateIsPublicAndSingleUse(t *testing.T) {
	svc := newFakeService()
	svc.activateOK = true
	recorder := &recordingAudit{}
	router := newRouter(NewHandler(svc, rolePerms{}, recorder), nil)

	rec := send(t, router, http.MethodPost, "/invitations/activate", map[string]string{"token": "raw-token", "password": "weak"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "validation_error")

	rec = send(t, router, http.MethodPost, "/invitations/activate", map[string]string{"token": "raw-token", "password": "Welcome123"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "anna.smirnova@wink.ru")
	require.Len(t, recorder.entries, 1)
	assert.Equal(t, audit.ActionInvitationActivate, recorder.entries[0].action)

	rec = send(t, router, http.MethodPost, "/invitations/activate", map[string]string{"token": "raw-token", "password": "Welcome123"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_token")
}
