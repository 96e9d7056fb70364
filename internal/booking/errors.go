package booking

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
)

// ErrCancelled is returned when an operation targets a booking that has
// already been cancelled.
var ErrCancelled = errors.New("booking is cancelled")

// ValidationError reports a missing or malformed request field.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid request: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ConferencingAttachError is returned when a conferencing link could not be
// attached and the policy does not allow proceeding without one.
type ConferencingAttachError struct {
	Policy ConferencePolicy
	Err    error
}

func (e *ConferencingAttachError) Error() string {
	return fmt.Sprintf("failed to attach conferencing (policy %s): %v", e.Policy, e.Err)
}

func (e *ConferencingAttachError) Unwrap() error { return e.Err }

// UpstreamBookingError is returned when the calendar backend rejects an
// event operation.
type UpstreamBookingError struct {
	Op  string
	Err error
}

// NewUpstreamBookingError wraps err as the failure of op.
func NewUpstreamBookingError(op string, err error) *UpstreamBookingError {
	return &UpstreamBookingError{Op: op, Err: err}
}

func (e *UpstreamBookingError) Error() string {
	return fmt.Sprintf("calendar %s failed: %v", e.Op, e.Err)
}

func (e *UpstreamBookingError) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status reported by the calendar backend, or 0
// when the failure did not come from an API response.
func (e *UpstreamBookingError) StatusCode() int {
	return upstreamStatus(e.Err)
}

// IsNotFound reports whether err is an upstream 404 or 410 for the event.
func IsNotFound(err error) bool {
	switch upstreamStatus(err) {
	case http.StatusNotFound, http.StatusGone:
		return true
	}
	return false
}

func upstreamStatus(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}
