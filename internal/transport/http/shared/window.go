package shared

import (
	"strings"
	"time"
)

const (
	dateLayout      = "2006-01-02"
	timestampReason = "must be an RFC3339 timestamp or a date in YYYY-MM-DD format"
)

// Window parses optional since/until query bounds. Both accept RFC3339 or
// YYYY-MM-DD; a date-only until covers the whole of that day.
func (v *Validator) Window(sinceField, sinceRaw, untilField, untilRaw string) (*time.Time, *time.Time) {
	since := v.bound(sinceField, sinceRaw, false)
	until := v.bound(untilField, untilRaw, true)
	if since != nil && until != nil && since.After(*until) {
		v.Add(sinceField, "must be on or before "+untilField)
	}
	return since, until
}

// Timestamp parses an optional RFC3339 or YYYY-MM-DD value. A date-only
// value means midnight UTC.
func (v *Validator) Timestamp(field, raw string) *time.Time {
	return v.bound(field, raw, false)
}

func (v *Validator) bound(field, raw string, endOfDay bool) *time.Time {
	parsed, dateOnly, err := parseTimestamp(raw)
	if err != nil {
		v.Add(field, timestampReason)
		return nil
	}
	if parsed.IsZero() {
		return nil
	}
	if endOfDay && dateOnly {
		parsed = parsed.Add(24*time.Hour - time.Nanosecond)
	}
	return &parsed
}

func parseTimestamp(raw string) (time.Time, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false, nil
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed, false, nil
	}
	parsed, err := time.Parse(dateLayout, raw)
	return parsed, true, err
}
