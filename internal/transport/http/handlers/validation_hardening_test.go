package handlers_test

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"wink/internal/domain/auth"
)

func TestHighRiskEndpointsReturnValidationErrors(t *testing.T) {
	_, ts, cfg := startApp(t)
	client := ts.Client()

	adminToken := login(t, client, ts.URL, cfg.SeedAdminEmail, cfg.SeedAdminPassword)
	email := fmt.Sprintf("validation-%d@example.com", time.Now().UnixNano())
	employeeID := createUser(t, client, ts.URL, adminToken, email, "Employee123!", auth.RoleEmployee)

	taskResp := postJSONStatus(t, client, ts.URL+"/api/v1/tasks", adminToken, map[string]any{
		"title":          "",
		"assigneeId":     "not-a-uuid",
		"priority":       "urgent",
		"isQuantitative": true,
	}, http.StatusBadRequest)
	assertValidationErrorField(t, taskResp, "title")
	assertValidationErrorField(t, taskResp, "assigneeId")
	assertValidationErrorField(t, taskResp, "priority")
	assertValidationErrorField(t, taskResp, "goalTarget")

	taskID := createTask(t, client, ts.URL, adminToken, employeeID, "")
	reviewResp := postJSONStatus(t, client, ts.URL+"/api/v1/tasks/"+taskID+"/review", adminToken, map[string]any{
		"rating": 11,
	}, http.StatusBadRequest)
	assertValidationErrorField(t, reviewResp, "rating")

	weightsResp := putJSONStatus(t, client, ts.URL+"/api/v1/analytics/gar-weights", adminToken, map[string]any{
		"TCR": "heavy",
	}, http.StatusBadRequest)
	if code := envelopeErrorCode(weightsResp); code != "invalid_payload" {
		t.Fatalf("expected invalid_payload, got %s", code)
	}

	garResp := getJSONStatus(t, client, ts.URL+"/api/v1/analytics/employee/"+employeeID+"/gar?since=2026-03-01&until=2026-02-01", adminToken, http.StatusBadRequest)
	assertValidationErrorField(t, garResp, "since")

	roleResp := putJSONStatus(t, client, ts.URL+"/api/v1/users/"+employeeID+"/role", adminToken, map[string]any{
		"role": "owner",
	}, http.StatusBadRequest)
	assertValidationErrorField(t, roleResp, "role")

	resetResp := postJSONStatus(t, client, ts.URL+"/api/v1/auth/reset", "", map[string]any{
		"token":       "",
		"newPassword": "weak",
	}, http.StatusBadRequest)
	assertValidationErrorField(t, resetResp, "token")
	assertValidationErrorField(t, resetResp, "newPassword")
}

func TestMalformedPathIDsAreNotFound(t *testing.T) {
	_, ts, cfg := startApp(t)
	client := ts.Client()

	adminToken := login(t, client, ts.URL, cfg.SeedAdminEmail, cfg.SeedAdminPassword)
	email := fmt.Sprintf("malformed-%d@example.com", time.Now().UnixNano())
	employeeID := createUser(t, client, ts.URL, adminToken, email, "Employee123!", auth.RoleEmployee)
	taskID := createTask(t, client, ts.URL, adminToken, employeeID, "")

	for _, path := range []string{
		"/api/v1/analytics/employee/42/gar",
		"/api/v1/stats/employees/42",
		"/api/v1/users/42",
		"/api/v1/tasks/42",
		"/api/v1/tasks/42/comments",
	} {
		env := getJSONStatus(t, client, ts.URL+path, adminToken, http.StatusNotFound)
		if code := envelopeErrorCode(env); code != "not_found" {
			t.Fatalf("%s: expected not_found, got %s", path, code)
		}
	}

	patchJSON(t, client, ts.URL+"/api/v1/tasks/42", adminToken, map[string]any{"status": "in_progress"}, http.StatusNotFound)
	patchJSON(t, client, ts.URL+"/api/v1/tasks/"+taskID+"/subtasks/42", adminToken, map[string]any{"completed": true}, http.StatusNotFound)
	putJSONStatus(t, client, ts.URL+"/api/v1/users/42/status", adminToken, map[string]any{"isActive": false}, http.StatusNotFound)
	postJSONStatus(t, client, ts.URL+"/api/v1/notifications/42/read", adminToken, nil, http.StatusNotFound)

	for _, path := range []string{"/api/v1/tasks/42", "/api/v1/tasks/" + taskID + "/subtasks/42"} {
		if status, _, raw := doJSON(t, client, http.MethodDelete, ts.URL+path, adminToken, nil, nil); status != http.StatusNotFound {
			t.Fatalf("DELETE %s: expected 404, got %d: %s", path, status, raw)
		}
	}
}

func assertValidationErrorField(t *testing.T, env envelope, field string) {
	t.Helper()
	if code := envelopeErrorCode(env); code != "validation_error" {
		t.Fatalf("expected validation_error, got %+v", env.Error)
	}
	errMap, ok := env.Error.(map[string]any)
	if !ok {
		t.Fatalf("expected error object, got %T", env.Error)
	}
	details, ok := errMap["details"].(map[string]any)
	if !ok {
		t.Fatalf("expected details object, got %+v", errMap["details"])
	}
	fieldsRaw, ok := details["fields"].([]any)
	if !ok {
		t.Fatalf("expected details.fields array, got %+v", details["fields"])
	}
	for _, item := range fieldsRaw {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if value, _ := entry["field"].(string); value == field {
			return
		}
	}
	t.Fatalf("expected validation field %q in %+v", field, fieldsRaw)
}
