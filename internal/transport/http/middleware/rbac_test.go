package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"wink/internal/domain/auth"
)

type staticPermissions struct {
	err error
}

func (s staticPermissions) HasPermission(ctx context.Context, role, permission string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	for _, p := range auth.RolePermissions[role] {
		if p == permission {
			return true, nil
		}
	}
	return false, nil
}

func serveAs(user *auth.UserContext, mw func(http.Handler) http.Handler) int {
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodPut, "/api/v1/analytics/gar-weights", nil)
	if user != nil {
		req = req.WithContext(WithUser(req.Context(), *user))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec.Code
}

func TestRequirePermission(t *testing.T) {
	mw := RequirePermission(auth.PermAnalyticsWeights, staticPermissions{})

	assert.Equal(t, http.StatusUnauthorized, serveAs(nil, mw))
	assert.Equal(t, http.StatusForbidden, serveAs(&auth.UserContext{UserID: "m", Role: auth.RoleManager}, mw))
	assert.Equal(t, http.StatusNoContent, serveAs(&auth.UserContext{UserID: "a", Role: auth.RoleAdmin}, mw))

	failing := RequirePermission(auth.PermAnalyticsWeights, staticPermissions{err: errors.New("db down")})
	assert.Equal(t, http.StatusInternalServerError, serveAs(&auth.UserContext{UserID: "a", Role: auth.RoleAdmin}, failing))
}

func TestRequireRole(t *testing.T) {
	mw := RequireRole(auth.RoleAdmin, auth.RoleHR)

	assert.Equal(t, http.StatusUnauthorized, serveAs(nil, mw))
	assert.Equal(t, http.StatusForbidden, serveAs(&auth.UserContext{UserID: "e", Role: auth.RoleEmployee}, mw))
	assert.Equal(t, http.StatusNoContent, serveAs(&auth.UserContext{UserID: "h", Role: auth.RoleHR}, mw))
}
