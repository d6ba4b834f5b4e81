package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"wink/internal/app/server"
	"wink/internal/domain/auth"
	"wink/internal/platform/jobs"
)

func TestJobRunsTriggerAndFilter(t *testing.T) {
	app, ts, cfg := startApp(t)
	client := ts.Client()

	adminToken := login(t, client, ts.URL, cfg.SeedAdminEmail, cfg.SeedAdminPassword)
	failedID := insertJobRun(t, app, jobs.JobGARSnapshot, jobs.StatusFailed, map[string]any{"error": "snapshot query failed"}, time.Date(2026, time.January, 1, 2, 30, 0, 0, time.UTC))

	run := postJSON(t, client, ts.URL+"/api/v1/jobs/"+jobs.JobStatsRebuild+"/run", adminToken, nil)
	if status, _ := dataMap(t, run)["status"].(string); status != jobs.StatusCompleted {
		t.Fatalf("expected completed manual run, got %v", dataMap(t, run)["status"])
	}
	postJSONStatus(t, client, ts.URL+"/api/v1/jobs/nightly_export/run", adminToken, nil, http.StatusNotFound)

	rebuilds := dataSlice(t, getJSON(t, client, ts.URL+"/api/v1/jobs/runs?jobType="+jobs.JobStatsRebuild+"&limit=1", adminToken))
	if len(rebuilds) != 1 {
		t.Fatalf("expected one paginated stats rebuild run, got %d", len(rebuilds))
	}
	if status, _ := rebuilds[0]["status"].(string); status != jobs.StatusCompleted {
		t.Fatalf("expected completed rebuild run, got %v", rebuilds[0]["status"])
	}

	snapshots := dataSlice(t, getJSON(t, client, ts.URL+"/api/v1/jobs/runs?jobType="+jobs.JobGARSnapshot+"&limit=200", adminToken))
	found := false
	for _, row := range snapshots {
		if id, _ := row["id"].(string); id == failedID {
			found = true
			details, _ := row["details"].(map[string]any)
			if msg, _ := details["error"].(string); msg == "" {
				t.Fatalf("expected failed run details to include the error, got %+v", details)
			}
		}
	}
	if !found {
		t.Fatalf("expected inserted run %s in gar_snapshot runs", failedID)
	}
}

func TestTeamReportFormats(t *testing.T) {
	_, ts, cfg := startApp(t)
	client := ts.Client()

	adminToken := login(t, client, ts.URL, cfg.SeedAdminEmail, cfg.SeedAdminPassword)
	department := fmt.Sprintf("Reports-%d", time.Now().UnixNano())
	email := fmt.Sprintf("report-%d@example.com", time.Now().UnixNano())
	resp := postJSON(t, client, ts.URL+"/api/v1/users", adminToken, map[string]any{
		"email":      email,
		"password":   "Employee123!",
		"fullName":   "Report Subject",
		"role":       auth.RoleEmployee,
		"department": department,
	})
	employeeID, _ := dataMap(t, resp)["id"].(string)

	report := dataMap(t, getJSON(t, client, ts.URL+"/api/v1/reports/gar?department="+department+"&since=2026-01-01", adminToken))
	rows, _ := report["rows"].([]any)
	if len(rows) != 1 {
		t.Fatalf("expected one row for department %s, got %d", department, len(rows))
	}
	row, _ := rows[0].(map[string]any)
	if id, _ := row["employeeId"].(string); id != employeeID {
		t.Fatalf("expected row for %s, got %v", employeeID, row["employeeId"])
	}

	status, header, body := doJSON(t, client, http.MethodGet, ts.URL+"/api/v1/reports/gar?format=pdf&department="+department, adminToken, nil, nil)
	if status != http.StatusOK || header.Get("Content-Type") != "application/pdf" || !bytes.HasPrefix(body, []byte("%PDF")) {
		t.Fatalf("unexpected pdf response: status=%d type=%s", status, header.Get("Content-Type"))
	}

	status, _, body = doJSON(t, client, http.MethodGet, ts.URL+"/api/v1/reports/gar?format=xlsx&department="+department, adminToken, nil, nil)
	if status != http.StatusOK || !bytes.HasPrefix(body, []byte("PK")) {
		t.Fatalf("unexpected xlsx response: status=%d", status)
	}
}

func insertJobRun(t *testing.T, app *server.App, jobType, status string, details map[string]any, startedAt time.Time) string {
	t.Helper()
	detailsRaw, err := json.Marshal(details)
	if err != nil {
		t.Fatalf("failed to marshal job details: %v", err)
	}

	var runID string
	if err := app.DB.QueryRow(context.Background(), `
    INSERT INTO job_runs (job_type, status, details_json, started_at, completed_at)
    VALUES ($1, $2, $3, $4, $5)
    RETURNING id
  `, jobType, status, detailsRaw, startedAt, startedAt.Add(time.Minute)).Scan(&runID); err != nil {
		t.Fatalf("failed to insert job run: %v", err)
	}
	return runID
}

func TestRetentionCleanupPurgesExpiredKeys(t *testing.T) {
	app, ts, cfg := startApp(t)
	client := ts.Client()
	adminToken := login(t, client, ts.URL, cfg.SeedAdminEmail, cfg.SeedAdminPassword)

	var adminID string
	if err := app.DB.QueryRow(context.Background(), "SELECT id FROM users WHERE lower(email) = lower($1)", cfg.SeedAdminEmail).Scan(&adminID); err != nil {
		t.Fatalf("failed to load admin id: %v", err)
	}
	staleKey := fmt.Sprintf("stale-%d", time.Now().UnixNano())
	if _, err := app.DB.Exec(context.Background(), `
    INSERT INTO idempotency_keys (user_id, key, endpoint, request_hash, response_json, created_at)
    VALUES ($1, $2, 'tasks.create', 'hash', '{}'::jsonb, now() - interval '2 days')
  `, adminID, staleKey); err != nil {
		t.Fatalf("failed to insert idempotency key: %v", err)
	}

	run := postJSON(t, client, ts.URL+"/api/v1/jobs/"+jobs.JobRetention+"/run", adminToken, nil)
	if status, _ := dataMap(t, run)["status"].(string); status != jobs.StatusCompleted {
		t.Fatalf("expected completed retention run, got %v", dataMap(t, run)["status"])
	}

	var remaining int
	if err := app.DB.QueryRow(context.Background(), "SELECT COUNT(1) FROM idempotency_keys WHERE key = $1", staleKey).Scan(&remaining); err != nil {
		t.Fatalf("failed to count idempotency keys: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected stale idempotency key to be purged, %d left", remaining)
	}
}
