package shared

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type invitePayload struct {
	Email    string   `json:"email" validate:"required,email"`
	FullName string   `json:"fullName" validate:"required,max=10"`
	Rating   *float64 `json:"rating,omitempty" validate:"omitempty,gte=1,lte=10"`
	Role     string   `json:"role" validate:"omitempty,oneof=employee manager"`
}

func TestValidateStructUsesJSONNames(t *testing.T) {
	rating := 11.0
	v := NewValidator()
	v.ValidateStruct(invitePayload{Email: "nope", FullName: "A very long name", Rating: &rating, Role: "boss"})

	issues := v.Issues()
	require.Len(t, issues, 4)
	assert.Equal(t, ValidationIssue{Field: "email", Reason: "must be a valid email"}, issues[0])
	assert.Equal(t, ValidationIssue{Field: "fullName", Reason: "must be at most 10 characters"}, issues[1])
	assert.Equal(t, ValidationIssue{Field: "rating", Reason: "must be less than or equal to 10"}, issues[2])
	assert.Equal(t, ValidationIssue{Field: "role", Reason: "must be one of: employee, manager"}, issues[3])
}

func TestValidateStructPassesValidPayload(t *testing.T) {
	v := NewValidator()
	v.ValidateStruct(invitePayload{Email: "a@b.ru", FullName: "Ivan"})
	assert.False(t, v.HasIssues())
}

func TestValidatorRejectWritesEnvelope(t *testing.T) {
	v := NewValidator()
	v.ValidateStruct(invitePayload{})
	rec := httptest.NewRecorder()

	require.True(t, v.Reject(rec, "req-1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"validation_error"`)
	assert.Contains(t, rec.Body.String(), `"field":"email"`)
}
