package audit

import (
	"encoding/json"
	"time"
)

const (
	ActionWeightsUpdate      = "gar_weights.update"
	ActionTaskCreate         = "task.create"
	ActionTaskUpdate         = "task.update"
	ActionTaskDelete         = "task.delete"
	ActionReviewCreate       = "review.create"
	ActionUserCreate         = "user.create"
	ActionUserRoleUpdate     = "user.role_update"
	ActionUserStatusUpdate   = "user.status_update"
	ActionInvitationCreate   = "invitation.create"
	ActionInvitationActivate = "invitation.activate"
)

type Event struct {
	ID         string          `json:"id"`
	ActorID    string          `json:"actorId"`
	Action     string          `json:"action"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	RequestID  string          `json:"requestId"`
	IP         string          `json:"ip"`
	CreatedAt  time.Time       `json:"createdAt"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`
}

type Filter struct {
	Action     string
	EntityType string
	ActorUser  string
}
