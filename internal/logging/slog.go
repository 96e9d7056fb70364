package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
)

// Common log attribute keys for consistent naming across the codebase.
const (
	KeyOperation  = "operation"
	KeyBookingID  = "booking_id"
	KeyAuthMode   = "auth_mode"
	KeyCalendarID = "calendar_id"
	KeyUserHash   = "user_hash"
	KeyDuration   = "duration"
	KeyStatus     = "status"
	KeyError      = "error"
	KeyTool       = "tool"
	KeyPolicy     = "conference_policy"
)

// Status values for consistent logging.
// Duplicated from the instrumentation package, which imports this one.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// WithOperation returns a logger with the operation attribute set.
func WithOperation(logger *slog.Logger, operation string) *slog.Logger {
	return logger.With(slog.String(KeyOperation, operation))
}

// WithTool returns a logger with the tool attribute set.
func WithTool(logger *slog.Logger, tool string) *slog.Logger {
	return logger.With(slog.String(KeyTool, tool))
}

// WithCalendar returns a logger scoped to a calendar id.
func WithCalendar(logger *slog.Logger, calendarID string) *slog.Logger {
	return logger.With(slog.String(KeyCalendarID, calendarID))
}

// Operation returns a slog attribute for the operation name.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// BookingID returns a slog attribute for a booking (event) id.
func BookingID(id string) slog.Attr {
	return slog.String(KeyBookingID, id)
}

// AuthMode returns a slog attribute for the active credential mode.
func AuthMode(mode string) slog.Attr {
	return slog.String(KeyAuthMode, mode)
}

// Policy returns a slog attribute for the conferencing policy.
func Policy(policy string) slog.Attr {
	return slog.String(KeyPolicy, policy)
}

// Tool returns a slog attribute for the tool name.
func Tool(tool string) slog.Attr {
	return slog.String(KeyTool, tool)
}

// Status returns a slog attribute for the status.
func Status(status string) slog.Attr {
	return slog.String(KeyStatus, status)
}

// Err returns a slog attribute for an error.
// A nil error yields an empty group, which slog drops from the output:
//
//	logger.Info("booking created", logging.Err(err))
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// AnonymizeEmail returns a hashed representation of an email for logging purposes.
// Addresses are lower-cased first so the same mailbox always hashes the same way.
func AnonymizeEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(email))
	return "user:" + hex.EncodeToString(hash[:8])
}

// UserHash returns a slog attribute with the anonymized attendee email.
//
//	logger.Info("booking created", logging.UserHash(req.AttendeeEmail))
func UserHash(email string) slog.Attr {
	return slog.String(KeyUserHash, AnonymizeEmail(email))
}

// SanitizeToken returns a masked version of a token or assertion for logging.
// Only the length is kept; even a JWT header prefix is withheld.
func SanitizeToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	return fmt.Sprintf("[token:%d chars]", len(token))
}

// ExtractDomain extracts the domain part from an email address.
func ExtractDomain(email string) string {
	if email == "" {
		return ""
	}
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return ""
	}
	return strings.ToLower(parts[1])
}

// Domain returns a slog attribute for the email domain (lower cardinality than full email).
func Domain(email string) slog.Attr {
	return slog.String("user_domain", ExtractDomain(email))
}
