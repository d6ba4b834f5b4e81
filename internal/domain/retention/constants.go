package retention

const (
	CategoryPasswordResets  = "password_resets"
	CategoryInvitations     = "invitations"
	CategoryIdempotencyKeys = "idempotency_keys"
	CategoryNotifications   = "notifications"
	CategoryJobRuns         = "job_runs"
	CategorySessions        = "sessions"
)

// Categories is the order a cleanup run walks through.
var Categories = []string{
	CategoryPasswordResets,
	CategoryInvitations,
	CategoryIdempotencyKeys,
	CategoryNotifications,
	CategoryJobRuns,
	CategorySessions,
}
