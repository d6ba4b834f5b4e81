package shared

import (
	"context"
	"log/slog"
)

// AuditRecorder is satisfied by audit.Service.
type AuditRecorder interface {
	Record(ctx context.Context, actorID, action, entityType, entityID string, before, after any) error
}

// RecordAudit writes an audit event and only logs when that fails; the
// mutation it describes has already been committed.
func RecordAudit(ctx context.Context, recorder AuditRecorder, actorID, action, entityType, entityID string, before, after any) {
	if recorder == nil {
		return
	}
	if err := recorder.Record(ctx, actorID, action, entityType, entityID, before, after); err != nil {
		slog.Warn("audit log failed", "action", action, "entityId", entityID, "err", err)
	}
}
