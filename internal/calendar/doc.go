// Package calendar is a thin client for the Google Calendar API bound to one
// calendar.
//
// A Dialer turns a resolved credential into a Client. The Client exposes the
// event and free/busy calls the booking layer needs, each traced and counted.
//
//	dialer := calendar.NewDialer("bookings@example.com", metrics)
//	client, err := dialer.Dial(ctx, res.Credential)
//	if err != nil {
//	    return err
//	}
//	busy, err := client.QueryFreeBusy(ctx, start, end)
package calendar
