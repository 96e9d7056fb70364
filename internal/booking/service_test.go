package booking

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gcal "google.golang.org/api/calendar/v3"

	"github.com/teemow/meetingbroker/internal/calendar"
	"github.com/teemow/meetingbroker/internal/google"
)

var (
	slotStart = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	slotEnd   = time.Date(2025, 3, 1, 11, 0, 0, 0, time.UTC)
)

func rejectInline(ev *gcal.Event, _ calendar.WriteOptions) error {
	if ev.ConferenceData != nil {
		return apiError(http.StatusBadRequest, "Invalid conference type value.")
	}
	return nil
}

func TestCreate_InlineConference(t *testing.T) {
	cal := newFakeCalendar()
	svc := newTestService(&countingConnector{cal: cal, cred: ambientCredential(t)}, PolicyAuto)

	res, err := svc.Create(context.Background(), Request{Start: slotStart, End: slotEnd})
	require.NoError(t, err)

	require.Len(t, cal.inserts, 1)
	assert.Empty(t, cal.patches)
	assert.Equal(t, int64(1), cal.inserts[0].Opts.ConferenceDataVersion)
	assert.Equal(t, "req-1", cal.inserts[0].Event.ConferenceData.CreateRequest.RequestId)
	assert.Equal(t, calendar.ConferenceSolutionMeet, cal.inserts[0].Event.ConferenceData.CreateRequest.ConferenceSolutionKey.Type)

	assert.True(t, res.ConferenceAttached)
	assert.Equal(t, "https://meet.google.com/req-1", res.Booking.ConferenceLink)
	assert.Equal(t, StatusConfirmed, res.Booking.Status)
	assert.Equal(t, ModeVirtual, res.Booking.Mode)
}

func TestCreate_FallbackInsertThenPatch(t *testing.T) {
	cal := newFakeCalendar()
	cal.insertErr = rejectInline
	svc := newTestService(&countingConnector{cal: cal, cred: ambientCredential(t)}, PolicyAuto)

	res, err := svc.Create(context.Background(), Request{Start: slotStart, End: slotEnd, Mode: ModeVirtual})
	require.NoError(t, err)

	require.Len(t, cal.inserts, 2)
	assert.NotNil(t, cal.inserts[0].Event.ConferenceData)
	assert.Nil(t, cal.inserts[1].Event.ConferenceData, "fallback insert carries no conference request")
	assert.Equal(t, int64(0), cal.inserts[1].Opts.ConferenceDataVersion)

	require.Len(t, cal.patches, 1)
	patch := cal.patches[0]
	assert.Equal(t, res.Booking.ID, patch.ID)
	assert.Equal(t, "req-1", patch.Patch.ConferenceData.CreateRequest.RequestId, "patch reuses the inline request id")
	assert.Equal(t, int64(1), patch.Opts.ConferenceDataVersion)

	assert.True(t, res.ConferenceAttached)
	assert.NotEmpty(t, res.Booking.ConferenceLink)
	assert.Equal(t, StatusConfirmed, res.Booking.Status)
	assert.True(t, res.Booking.Start.Before(res.Booking.End))
	assert.Equal(t, slotStart, res.Booking.Start)
	assert.Equal(t, slotEnd, res.Booking.End)
}

func TestCreate_AutoProceedsWithoutLink(t *testing.T) {
	cal := newFakeCalendar()
	cal.insertErr = rejectInline
	cal.patchErr = func(string, *gcal.Event) error { return apiError(http.StatusForbidden, "conferencing disabled") }
	svc := newTestService(&countingConnector{cal: cal, cred: ambientCredential(t)}, PolicyAuto)

	res, err := svc.Create(context.Background(), Request{Start: slotStart, End: slotEnd})
	require.NoError(t, err)

	assert.False(t, res.ConferenceAttached)
	assert.Empty(t, res.Booking.ConferenceLink)
	assert.Equal(t, slotStart, res.Booking.Start)
	assert.Empty(t, cal.deletes, "the event is kept under auto")
}

func TestCreate_ForceFailsAndRemovesEvent(t *testing.T) {
	cal := newFakeCalendar()
	cal.insertErr = rejectInline
	cal.patchErr = func(string, *gcal.Event) error { return apiError(http.StatusForbidden, "conferencing disabled") }
	svc := newTestService(&countingConnector{cal: cal, cred: ambientCredential(t)}, PolicyForce)

	res, err := svc.Create(context.Background(), Request{Start: slotStart, End: slotEnd})
	require.Error(t, err)
	assert.Nil(t, res)

	var attachErr *ConferencingAttachError
	require.ErrorAs(t, err, &attachErr)
	assert.Equal(t, PolicyForce, attachErr.Policy)
	assert.Equal(t, http.StatusForbidden, upstreamStatus(err))

	require.Len(t, cal.deletes, 1)
	assert.Equal(t, "evt-1", cal.deletes[0].ID)
	assert.Equal(t, calendar.SendUpdatesNone, cal.deletes[0].SendUpdates)
}

func TestCreate_PlainInsertFailure(t *testing.T) {
	cal := newFakeCalendar()
	cal.insertErr = func(*gcal.Event, calendar.WriteOptions) error { return apiError(http.StatusForbidden, "no write access") }
	svc := newTestService(&countingConnector{cal: cal, cred: ambientCredential(t)}, PolicyAuto)

	_, err := svc.Create(context.Background(), Request{Start: slotStart, End: slotEnd})
	var upstream *UpstreamBookingError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, "insert", upstream.Op)
	assert.Equal(t, http.StatusForbidden, upstream.StatusCode())
	assert.Len(t, cal.inserts, 2)
	assert.Empty(t, cal.patches)
}

func TestCreate_PolicyNeverSkipsConference(t *testing.T) {
	cal := newFakeCalendar()
	svc := newTestService(&countingConnector{cal: cal, cred: ambientCredential(t)}, PolicyNever)

	res, err := svc.Create(context.Background(), Request{Start: slotStart, End: slotEnd})
	require.NoError(t, err)

	require.Len(t, cal.inserts, 1)
	assert.Nil(t, cal.inserts[0].Event.ConferenceData)
	assert.Equal(t, int64(0), cal.inserts[0].Opts.ConferenceDataVersion)
	assert.False(t, res.ConferenceAttached)
}

func TestCreate_InPerson(t *testing.T) {
	tests := []struct {
		name         string
		location     string
		wantLocation string
	}{
		{name: "default location", wantLocation: DefaultLocation},
		{name: "explicit location", location: "  Studio B ", wantLocation: "Studio B"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cal := newFakeCalendar()
			svc := newTestService(&countingConnector{cal: cal, cred: ambientCredential(t)}, PolicyForce)

			res, err := svc.Create(context.Background(), Request{
				Start: slotStart, End: slotEnd, Mode: ModeInPerson, Location: tt.location,
			})
			require.NoError(t, err)

			require.Len(t, cal.inserts, 1, "in-person sessions never request conferencing")
			assert.Nil(t, cal.inserts[0].Event.ConferenceData)
			assert.Equal(t, tt.wantLocation, cal.inserts[0].Event.Location)
			assert.Equal(t, tt.wantLocation, res.Booking.Location)
			assert.Equal(t, ModeInPerson, res.Booking.Mode)
			assert.Equal(t, tt.wantLocation, cal.inserts[0].Event.ExtendedProperties.Private[PropBookingLocation])
		})
	}
}

func TestCreate_VirtualIgnoresLocation(t *testing.T) {
	cal := newFakeCalendar()
	svc := newTestService(&countingConnector{cal: cal, cred: ambientCredential(t)}, PolicyAuto)

	_, err := svc.Create(context.Background(), Request{Start: slotStart, End: slotEnd, Location: "Studio B"})
	require.NoError(t, err)
	assert.Empty(t, cal.inserts[0].Event.Location)
}

func TestCreate_EventBody(t *testing.T) {
	tests := []struct {
		name            string
		req             Request
		wantSummary     string
		wantDescription string
	}{
		{
			name:            "name and email",
			req:             Request{AttendeeName: "Ada Lovelace", AttendeeEmail: "ada@example.com"},
			wantSummary:     "Ada Lovelace: Virtual Session",
			wantDescription: "Booked by Ada Lovelace (ada@example.com)",
		},
		{
			name:            "email only",
			req:             Request{AttendeeEmail: "grace@example.com", Mode: ModeInPerson},
			wantSummary:     "grace: In-Person Session",
			wantDescription: "Booked via app (grace@example.com)",
		},
		{
			name:            "name only",
			req:             Request{AttendeeName: "Linus"},
			wantSummary:     "Linus: Virtual Session",
			wantDescription: "Booked by Linus",
		},
		{
			name:            "anonymous",
			req:             Request{},
			wantSummary:     "Client: Virtual Session",
			wantDescription: "Booked via app",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cal := newFakeCalendar()
			svc := newTestService(&countingConnector{cal: cal, cred: ambientCredential(t)}, PolicyNever)

			tt.req.Start, tt.req.End = slotStart, slotEnd
			_, err := svc.Create(context.Background(), tt.req)
			require.NoError(t, err)

			ev := cal.inserts[0].Event
			assert.Equal(t, tt.wantSummary, ev.Summary)
			assert.Equal(t, tt.wantDescription, ev.Description)
			assert.Equal(t, "2025-03-01T10:00:00Z", ev.Start.DateTime)
			assert.Equal(t, "2025-03-01T11:00:00Z", ev.End.DateTime)

			assert.False(t, ev.GuestsCanModify)
			assert.Contains(t, ev.ForceSendFields, "GuestsCanModify")
			require.NotNil(t, ev.GuestsCanInviteOthers)
			assert.False(t, *ev.GuestsCanInviteOthers)
			require.NotNil(t, ev.GuestsCanSeeOtherGuests)
			assert.False(t, *ev.GuestsCanSeeOtherGuests)
		})
	}
}

func TestCreate_AmbientRecordsOwnerAsMetadata(t *testing.T) {
	cal := newFakeCalendar()
	warnings := []google.Warning{{Code: google.WarningSubjectIgnored, Message: "ambient identity cannot impersonate"}}
	svc := newTestService(&countingConnector{cal: cal, cred: ambientCredential(t), warnings: warnings}, PolicyAuto)

	res, err := svc.Create(context.Background(), Request{
		Start: slotStart, End: slotEnd, AttendeeEmail: "Ada@Example.com", AttendeeName: "Ada",
	})
	require.NoError(t, err)

	ev := cal.inserts[0].Event
	assert.Empty(t, ev.Attendees, "no real invitee without impersonation")
	assert.Equal(t, calendar.SendUpdatesNone, cal.inserts[0].Opts.SendUpdates)
	assert.Equal(t, map[string]string{
		PropUserEmail:       "Ada@Example.com",
		PropUserName:        "Ada",
		PropBookingMode:     "virtual",
		PropBookingLocation: "",
	}, ev.ExtendedProperties.Private)
	assert.Equal(t, warnings, res.Warnings)
	require.NotNil(t, res.Booking.Owner)
	assert.Equal(t, "Ada@Example.com", res.Booking.Owner.Email)

	listed, err := svc.List(context.Background(), ListFilter{Email: "ada@example.com"})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, res.Booking.ID, listed[0].ID)
}

func TestCreate_ImpersonatingInvitesAttendee(t *testing.T) {
	cal := newFakeCalendar()
	svc := newTestService(&countingConnector{cal: cal, cred: impersonatingCredential(t)}, PolicyAuto)

	res, err := svc.Create(context.Background(), Request{
		Start: slotStart, End: slotEnd, AttendeeEmail: "ada@example.com", AttendeeName: "Ada",
	})
	require.NoError(t, err)

	ev := cal.inserts[0].Event
	require.Len(t, ev.Attendees, 1)
	assert.Equal(t, "ada@example.com", ev.Attendees[0].Email)
	assert.Equal(t, "Ada", ev.Attendees[0].DisplayName)
	assert.Nil(t, ev.ExtendedProperties)
	assert.Equal(t, calendar.SendUpdatesAll, cal.inserts[0].Opts.SendUpdates)

	require.Len(t, res.Booking.Attendees, 1)
	require.NotNil(t, res.Booking.Owner)
	assert.Equal(t, "ada@example.com", res.Booking.Owner.Email)
}

func TestCreate_ValidationBeforeRemoteCalls(t *testing.T) {
	tests := []struct {
		name      string
		req       Request
		wantField string
	}{
		{name: "missing start", req: Request{End: slotEnd}, wantField: "start"},
		{name: "missing end", req: Request{Start: slotStart}, wantField: "end"},
		{name: "start equals end", req: Request{Start: slotStart, End: slotStart}, wantField: "end"},
		{name: "start after end", req: Request{Start: slotEnd, End: slotStart}, wantField: "end"},
		{
			name:      "sub-second window",
			req:       Request{Start: slotStart.Add(200 * time.Millisecond), End: slotStart.Add(700 * time.Millisecond)},
			wantField: "end",
		},
		{name: "unknown mode", req: Request{Start: slotStart, End: slotEnd, Mode: "hybrid"}, wantField: "mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &countingConnector{cal: newFakeCalendar(), cred: ambientCredential(t)}
			svc := newTestService(conn, PolicyAuto)

			_, err := svc.Create(context.Background(), tt.req)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantField, verr.Field)
			assert.Zero(t, conn.calls)
		})
	}
}

func TestCreate_ConnectorError(t *testing.T) {
	cfgErr := google.NewConfigurationError(google.ModeKeylessDelegated, "GOOGLE_DELEGATED_USER")
	svc := newTestService(&countingConnector{err: cfgErr}, PolicyAuto)

	_, err := svc.Create(context.Background(), Request{Start: slotStart, End: slotEnd})
	var got *google.ConfigurationError
	require.ErrorAs(t, err, &got)
}

func seedEvent(cal *fakeCalendar, id, status string, mutate func(*gcal.Event)) *gcal.Event {
	ev := &gcal.Event{
		Id:       id,
		Status:   status,
		Summary:  "Seeded: Virtual Session",
		Location: "Room 1",
		Start:    calendar.NewEventTime(slotStart),
		End:      calendar.NewEventTime(slotEnd),
	}
	if mutate != nil {
		mutate(ev)
	}
	return cal.add(ev)
}

func TestList_FiltersAndNormalizes(t *testing.T) {
	cal := newFakeCalendar()
	seedEvent(cal, "invited", "confirmed", func(ev *gcal.Event) {
		ev.Attendees = []*gcal.EventAttendee{{Email: "Ada@Example.com", DisplayName: "Ada"}}
		ev.HangoutLink = "https://meet.google.com/abc"
	})
	seedEvent(cal, "metadata", "confirmed", func(ev *gcal.Event) {
		ev.ExtendedProperties = &gcal.EventExtendedProperties{Private: map[string]string{
			PropUserEmail: "ada@example.com", PropUserName: "Ada", PropBookingMode: "inperson",
		}}
	})
	seedEvent(cal, "someone-else", "confirmed", func(ev *gcal.Event) {
		ev.Attendees = []*gcal.EventAttendee{{Email: "bob@example.com"}}
	})
	seedEvent(cal, "cancelled", "cancelled", func(ev *gcal.Event) {
		ev.Attendees = []*gcal.EventAttendee{{Email: "ada@example.com"}}
	})

	svc := newTestService(&countingConnector{cal: cal, cred: ambientCredential(t)}, PolicyAuto)

	t.Run("no filter drops cancelled", func(t *testing.T) {
		got, err := svc.List(context.Background(), ListFilter{})
		require.NoError(t, err)
		ids := make([]string, 0, len(got))
		for _, b := range got {
			ids = append(ids, b.ID)
		}
		assert.Equal(t, []string{"invited", "metadata", "someone-else"}, ids)
	})

	t.Run("email matches attendee or metadata", func(t *testing.T) {
		got, err := svc.List(context.Background(), ListFilter{Email: "ADA@example.com"})
		require.NoError(t, err)
		require.Len(t, got, 2)

		assert.Equal(t, "invited", got[0].ID)
		assert.Equal(t, ModeVirtual, got[0].Mode)
		assert.Equal(t, "https://meet.google.com/abc", got[0].ConferenceLink)
		assert.Equal(t, &Owner{Email: "Ada@Example.com", Name: "Ada"}, got[0].Owner)

		assert.Equal(t, "metadata", got[1].ID)
		assert.Equal(t, ModeInPerson, got[1].Mode)
		assert.Empty(t, got[1].Attendees)
		assert.Equal(t, &Owner{Email: "ada@example.com", Name: "Ada"}, got[1].Owner)
	})

	t.Run("unknown email yields empty list", func(t *testing.T) {
		got, err := svc.List(context.Background(), ListFilter{Email: "nobody@example.com"})
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}

func TestList_Query(t *testing.T) {
	cal := newFakeCalendar()
	svc := newTestService(&countingConnector{cal: cal, cred: ambientCredential(t)}, PolicyAuto)

	_, err := svc.List(context.Background(), ListFilter{})
	require.NoError(t, err)
	require.Len(t, cal.lists, 1)
	assert.Equal(t, testNow, cal.lists[0].TimeMin)
	assert.Equal(t, testNow.Add(90*24*time.Hour), cal.lists[0].TimeMax)
	assert.Equal(t, int64(DefaultMaxResults), cal.lists[0].MaxResults)

	_, err = svc.List(context.Background(), ListFilter{TimeMin: slotStart, TimeMax: slotEnd, MaxResults: 10})
	require.NoError(t, err)
	assert.Equal(t, slotStart, cal.lists[1].TimeMin)
	assert.Equal(t, slotEnd, cal.lists[1].TimeMax)
	assert.Equal(t, int64(10), cal.lists[1].MaxResults)
}

func TestList_EmailFilterScansWindowAndCapsMatches(t *testing.T) {
	cal := newFakeCalendar()
	for _, id := range []string{"other-1", "ada-1", "other-2", "ada-2", "ada-3"} {
		email := "bob@example.com"
		if strings.HasPrefix(id, "ada") {
			email = "ada@example.com"
		}
		seedEvent(cal, id, "confirmed", func(ev *gcal.Event) {
			ev.Attendees = []*gcal.EventAttendee{{Email: email}}
		})
	}
	svc := newTestService(&countingConnector{cal: cal, cred: ambientCredential(t)}, PolicyAuto)

	got, err := svc.List(context.Background(), ListFilter{Email: "ada@example.com", MaxResults: 2})
	require.NoError(t, err)
	require.Len(t, cal.lists, 1)
	assert.Zero(t, cal.lists[0].MaxResults, "email filter lists the whole window")
	require.Len(t, got, 2)
	assert.Equal(t, "ada-1", got[0].ID)
	assert.Equal(t, "ada-2", got[1].ID)

	got, err = svc.List(context.Background(), ListFilter{MaxResults: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(2), cal.lists[1].MaxResults)
	assert.Len(t, got, 2)
}

func TestList_Validation(t *testing.T) {
	tests := []struct {
		name   string
		filter ListFilter
		field  string
	}{
		{name: "max too large", filter: ListFilter{MaxResults: 2501}, field: "maxResults"},
		{name: "max negative", filter: ListFilter{MaxResults: -1}, field: "maxResults"},
		{name: "inverted window", filter: ListFilter{TimeMin: slotEnd, TimeMax: slotStart}, field: "timeMax"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &countingConnector{cal: newFakeCalendar(), cred: ambientCredential(t)}
			_, err := newTestService(conn, PolicyAuto).List(context.Background(), tt.filter)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.Zero(t, conn.calls)
		})
	}
}

func TestList_UpstreamError(t *testing.T) {
	cal := newFakeCalendar()
	cal.listErr = apiError(http.StatusInternalServerError, "backend error")
	_, err := newTestService(&countingConnector{cal: cal, cred: ambientCredential(t)}, PolicyAuto).
		List(context.Background(), ListFilter{})

	var upstream *UpstreamBookingError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, "list", upstream.Op)
}

func timePtr(t time.Time) *time.Time { return &t }
func strPtr(s string) *string        { return &s }

func TestAmend_ChangesOnlySuppliedFields(t *testing.T) {
	newStart := slotStart.Add(30 * time.Minute)
	newEnd := slotEnd.Add(30 * time.Minute)

	tests := []struct {
		name   string
		amend  AmendRequest
		expect func(before Booking) Booking
	}{
		{
			name:  "start only",
			amend: AmendRequest{Start: timePtr(newStart)},
			expect: func(b Booking) Booking {
				b.Start = newStart
				return b
			},
		},
		{
			name:  "start and end",
			amend: AmendRequest{Start: timePtr(newStart), End: timePtr(newEnd)},
			expect: func(b Booking) Booking {
				b.Start, b.End = newStart, newEnd
				return b
			},
		},
		{
			name:  "location only",
			amend: AmendRequest{Location: strPtr("Room 2")},
			expect: func(b Booking) Booking {
				b.Location = "Room 2"
				return b
			},
		},
		{
			name:  "clear location",
			amend: AmendRequest{Location: strPtr("")},
			expect: func(b Booking) Booking {
				b.Location = ""
				return b
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cal := newFakeCalendar()
			before := FromEvent(seedEvent(cal, "evt", "confirmed", func(ev *gcal.Event) {
				ev.Attendees = []*gcal.EventAttendee{{Email: "ada@example.com"}}
			}))
			svc := newTestService(&countingConnector{cal: cal, cred: impersonatingCredential(t)}, PolicyAuto)

			got, err := svc.Amend(context.Background(), "evt", tt.amend)
			require.NoError(t, err)
			assert.Equal(t, tt.expect(before), *got)

			require.Len(t, cal.patches, 1)
			patch := cal.patches[0].Patch
			assert.Equal(t, tt.amend.Start != nil, patch.Start != nil)
			assert.Equal(t, tt.amend.End != nil, patch.End != nil)
			assert.Empty(t, patch.Summary)
			assert.Nil(t, patch.Attendees)
			assert.Equal(t, calendar.SendUpdatesAll, cal.patches[0].Opts.SendUpdates)
		})
	}
}

func TestAmend_MetadataLocationWithoutImpersonation(t *testing.T) {
	cal := newFakeCalendar()
	seedEvent(cal, "evt", "confirmed", func(ev *gcal.Event) {
		ev.ExtendedProperties = &gcal.EventExtendedProperties{Private: map[string]string{
			PropUserEmail: "ada@example.com", PropBookingMode: "in_person", PropBookingLocation: "Room 1",
		}}
	})
	svc := newTestService(&countingConnector{cal: cal, cred: ambientCredential(t)}, PolicyAuto)

	_, err := svc.Amend(context.Background(), "evt", AmendRequest{Location: strPtr("Room 2")})
	require.NoError(t, err)

	call := cal.patches[0]
	assert.Equal(t, calendar.SendUpdatesNone, call.Opts.SendUpdates)
	require.NotNil(t, call.Patch.ExtendedProperties)
	assert.Equal(t, "Room 2", call.Patch.ExtendedProperties.Private[PropBookingLocation])
	assert.Equal(t, "ada@example.com", call.Patch.ExtendedProperties.Private[PropUserEmail])
}

func TestAmend_Errors(t *testing.T) {
	cal := newFakeCalendar()
	seedEvent(cal, "evt", "confirmed", nil)
	seedEvent(cal, "gone", "cancelled", nil)
	svc := newTestService(&countingConnector{cal: cal, cred: ambientCredential(t)}, PolicyAuto)
	ctx := context.Background()

	_, err := svc.Amend(ctx, "evt", AmendRequest{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = svc.Amend(ctx, " ", AmendRequest{Location: strPtr("x")})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "id", verr.Field)

	_, err = svc.Amend(ctx, "evt", AmendRequest{Start: timePtr(slotEnd.Add(time.Hour))})
	require.ErrorAs(t, err, &verr, "merged window must keep start before end")
	assert.Empty(t, cal.patches)

	_, err = svc.Amend(ctx, "gone", AmendRequest{Location: strPtr("x")})
	assert.ErrorIs(t, err, ErrCancelled)

	_, err = svc.Amend(ctx, "missing", AmendRequest{Location: strPtr("x")})
	var upstream *UpstreamBookingError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, "get", upstream.Op)
	assert.True(t, IsNotFound(err))
}

func TestCancel(t *testing.T) {
	tests := []struct {
		name        string
		cred        func(*testing.T) google.Credential
		wantUpdates string
	}{
		{name: "impersonating notifies", cred: impersonatingCredential, wantUpdates: calendar.SendUpdatesAll},
		{name: "ambient stays silent", cred: ambientCredential, wantUpdates: calendar.SendUpdatesNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cal := newFakeCalendar()
			seedEvent(cal, "evt", "confirmed", nil)
			svc := newTestService(&countingConnector{cal: cal, cred: tt.cred(t)}, PolicyAuto)

			require.NoError(t, svc.Cancel(context.Background(), "evt"))
			require.Len(t, cal.deletes, 1)
			assert.Equal(t, deleteCall{ID: "evt", SendUpdates: tt.wantUpdates}, cal.deletes[0])

			err := svc.Cancel(context.Background(), "evt")
			var upstream *UpstreamBookingError
			require.ErrorAs(t, err, &upstream)
			assert.Equal(t, http.StatusGone, upstream.StatusCode())
			assert.True(t, IsNotFound(err))
		})
	}
}

func TestCancel_RequiresID(t *testing.T) {
	conn := &countingConnector{cal: newFakeCalendar(), cred: ambientCredential(t)}
	err := newTestService(conn, PolicyAuto).Cancel(context.Background(), "")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Zero(t, conn.calls)
}

func TestFreeBusy(t *testing.T) {
	cal := newFakeCalendar()
	cal.busy = []calendar.TimeRange{{Start: slotStart, End: slotEnd}}
	svc := newTestService(&countingConnector{cal: cal, cred: ambientCredential(t)}, PolicyAuto)

	busy, err := svc.FreeBusy(context.Background(), slotStart.Add(-time.Hour), slotEnd.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, cal.busy, busy)
	assert.Equal(t, 1, cal.fbCalls)
}

func TestFreeBusy_ValidationBeforeRemoteCalls(t *testing.T) {
	tests := []struct {
		name       string
		start, end time.Time
	}{
		{name: "start equals end", start: slotStart, end: slotStart},
		{name: "start after end", start: slotEnd, end: slotStart},
		{name: "sub-second window", start: slotStart.Add(200 * time.Millisecond), end: slotStart.Add(700 * time.Millisecond)},
		{name: "missing start", end: slotEnd},
		{name: "missing end", start: slotStart},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cal := newFakeCalendar()
			conn := &countingConnector{cal: cal, cred: ambientCredential(t)}

			_, err := newTestService(conn, PolicyAuto).FreeBusy(context.Background(), tt.start, tt.end)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Zero(t, conn.calls)
			assert.Zero(t, cal.remoteCalls())
		})
	}
}

func TestFreeBusy_UpstreamError(t *testing.T) {
	cal := newFakeCalendar()
	cal.fbErr = errors.New("calendar bookings@example.com: notFound")
	_, err := newTestService(&countingConnector{cal: cal, cred: ambientCredential(t)}, PolicyAuto).
		FreeBusy(context.Background(), slotStart, slotEnd)

	var upstream *UpstreamBookingError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, 0, upstream.StatusCode())
	assert.False(t, IsNotFound(err))
}

func TestService_FreshSessionPerOperation(t *testing.T) {
	conn := &countingConnector{cal: newFakeCalendar(), cred: ambientCredential(t)}
	svc := newTestService(conn, PolicyAuto)
	ctx := context.Background()

	_, err := svc.List(ctx, ListFilter{})
	require.NoError(t, err)
	_, err = svc.FreeBusy(ctx, slotStart, slotEnd)
	require.NoError(t, err)
	assert.Equal(t, 2, conn.calls)
}
