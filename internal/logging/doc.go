// Package logging provides structured logging utilities for meetingbroker.
//
// Everything logs through the standard library's slog package. This package
// holds the shared attribute keys, the process logger constructor and the
// helpers that keep attendee data out of operational logs.
//
// # Key Features
//
//   - Text or JSON handlers selected at startup
//   - Consistent attribute naming (operation, booking_id, auth_mode)
//   - Email anonymization for attendee identifiers
//   - Token masking for access tokens and signed assertions
//
// # Usage Patterns
//
//	logger := logging.WithOperation(slog.Default(), "booking.create")
//	logger.Info("booking created",
//	    logging.BookingID(b.ID),
//	    logging.UserHash(req.AttendeeEmail))
//
// # Security Considerations
//
// Attendee emails are hashed, never logged raw, outside of the audit stream.
// Access tokens and assertions are reduced to their length.
package logging
