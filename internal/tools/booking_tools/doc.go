// Package booking_tools exposes the booking service as MCP tools.
//
// # Available Tools
//
// Always registered:
//   - booking_availability: busy intervals of the booking calendar in a window
//   - booking_list: bookings in a window, optionally for one attendee
//
// Registered unless the server is read-only:
//   - booking_create: book a virtual or in-person session
//   - booking_amend: move a booking or change its location
//   - booking_cancel: cancel a booking
//
// Times are RFC 3339 strings. Results are indented JSON using the same shapes
// as the REST API. Failures are tool error results of the form
// "code: message" with the REST error codes.
package booking_tools
