// Package booking implements the booking orchestrator and the availability
// reader on top of a single Google Calendar.
//
// Every operation opens a fresh Session through a Connector, which resolves a
// new credential and dials a new calendar client. Nothing is cached between
// operations.
//
// # Ownership
//
// Who a booking is for is recorded in one of two ways. When the credential
// impersonates a user, the attendee is invited and notified (sendUpdates=all).
// Otherwise the attendee's email, name, mode and location are stamped as
// private extended properties and nobody is notified. List matches an email
// filter against both.
//
// # Conferencing
//
// Virtual bookings ask for a Meet conference inline. If the backend rejects
// that, the plain event is inserted and the conference is patched on with the
// same request id. PolicyAuto keeps the event when the patch also fails;
// PolicyForce removes it and returns a ConferencingAttachError.
package booking
