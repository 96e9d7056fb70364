package booking

import (
	"strings"
	"time"
)

// ParseInstant parses an RFC 3339 timestamp supplied for field. An empty or
// unparseable value is a ValidationError. Fractional seconds are dropped, as
// the Calendar API only receives whole seconds.
func ParseInstant(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, NewValidationError(field, "is required")
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, NewValidationError(field, "must be an RFC 3339 timestamp")
	}
	return t.UTC().Truncate(time.Second), nil
}

// ParseOptionalInstant is ParseInstant for fields that may be omitted; an
// empty value yields the zero time.
func ParseOptionalInstant(field, s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	return ParseInstant(field, s)
}

// validateWindow compares at whole-second precision so a window that passes
// never reaches the backend as an empty one.
func validateWindow(startField, endField string, start, end time.Time) error {
	if start.IsZero() {
		return NewValidationError(startField, "is required")
	}
	if end.IsZero() {
		return NewValidationError(endField, "is required")
	}
	if !start.Truncate(time.Second).Before(end.Truncate(time.Second)) {
		return NewValidationError(endField, startField+" must be before "+endField)
	}
	return nil
}
