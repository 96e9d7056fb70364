package booking

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"

	"github.com/teemow/meetingbroker/internal/calendar"
	"github.com/teemow/meetingbroker/internal/google"
)

type insertCall struct {
	Event *gcal.Event
	Opts  calendar.WriteOptions
}

type patchCall struct {
	ID    string
	Patch *gcal.Event
	Opts  calendar.WriteOptions
}

type deleteCall struct {
	ID          string
	SendUpdates string
}

// fakeCalendar is an in-memory Calendar. Err hooks return a non-nil error to
// make the matching call fail.
type fakeCalendar struct {
	events  map[string]*gcal.Event
	order   []string
	nextID  int
	busy    []calendar.TimeRange
	inserts []insertCall
	patches []patchCall
	deletes []deleteCall
	gets    []string
	lists   []calendar.ListQuery
	fbCalls int

	insertErr func(ev *gcal.Event, opts calendar.WriteOptions) error
	patchErr  func(id string, patch *gcal.Event) error
	deleteErr error
	listErr   error
	fbErr     error
}

func newFakeCalendar() *fakeCalendar {
	return &fakeCalendar{events: map[string]*gcal.Event{}}
}

func apiError(code int, msg string) error {
	return &googleapi.Error{Code: code, Message: msg}
}

// add stores ev as-is and returns it.
func (f *fakeCalendar) add(ev *gcal.Event) *gcal.Event {
	f.events[ev.Id] = ev
	f.order = append(f.order, ev.Id)
	return ev
}

func (f *fakeCalendar) InsertEvent(_ context.Context, ev *gcal.Event, opts calendar.WriteOptions) (*gcal.Event, error) {
	f.inserts = append(f.inserts, insertCall{Event: ev, Opts: opts})
	if f.insertErr != nil {
		if err := f.insertErr(ev, opts); err != nil {
			return nil, err
		}
	}

	f.nextID++
	stored := *ev
	stored.Id = fmt.Sprintf("evt-%d", f.nextID)
	stored.Status = "confirmed"
	applyConference(&stored, ev.ConferenceData, opts)
	f.add(&stored)

	out := stored
	return &out, nil
}

func (f *fakeCalendar) PatchEvent(_ context.Context, id string, patch *gcal.Event, opts calendar.WriteOptions) (*gcal.Event, error) {
	f.patches = append(f.patches, patchCall{ID: id, Patch: patch, Opts: opts})
	if f.patchErr != nil {
		if err := f.patchErr(id, patch); err != nil {
			return nil, err
		}
	}
	ev, ok := f.events[id]
	if !ok {
		return nil, apiError(http.StatusNotFound, "Not Found")
	}

	if patch.Start != nil {
		ev.Start = patch.Start
	}
	if patch.End != nil {
		ev.End = patch.End
	}
	if patch.Location != "" {
		ev.Location = patch.Location
	}
	for _, field := range patch.NullFields {
		if field == "Location" {
			ev.Location = ""
		}
	}
	if patch.ExtendedProperties != nil {
		ev.ExtendedProperties = patch.ExtendedProperties
	}
	applyConference(ev, patch.ConferenceData, opts)

	out := *ev
	return &out, nil
}

func applyConference(ev *gcal.Event, conf *gcal.ConferenceData, opts calendar.WriteOptions) {
	if conf == nil || conf.CreateRequest == nil || opts.ConferenceDataVersion != 1 {
		return
	}
	ev.HangoutLink = "https://meet.google.com/" + conf.CreateRequest.RequestId
	ev.ConferenceData = conf
}

func (f *fakeCalendar) GetEvent(_ context.Context, id string) (*gcal.Event, error) {
	f.gets = append(f.gets, id)
	ev, ok := f.events[id]
	if !ok {
		return nil, apiError(http.StatusNotFound, "Not Found")
	}
	out := *ev
	return &out, nil
}

func (f *fakeCalendar) DeleteEvent(_ context.Context, id, sendUpdates string) error {
	f.deletes = append(f.deletes, deleteCall{ID: id, SendUpdates: sendUpdates})
	if f.deleteErr != nil {
		return f.deleteErr
	}
	ev, ok := f.events[id]
	if !ok {
		return apiError(http.StatusNotFound, "Not Found")
	}
	if ev.Status == "cancelled" {
		return apiError(http.StatusGone, "Resource has been deleted")
	}
	ev.Status = "cancelled"
	return nil
}

func (f *fakeCalendar) ListEvents(_ context.Context, q calendar.ListQuery) ([]*gcal.Event, error) {
	f.lists = append(f.lists, q)
	if f.listErr != nil {
		return nil, f.listErr
	}
	items := make([]*gcal.Event, 0, len(f.order))
	for _, id := range f.order {
		ev := *f.events[id]
		items = append(items, &ev)
	}
	return items, nil
}

func (f *fakeCalendar) QueryFreeBusy(_ context.Context, _, _ time.Time) ([]calendar.TimeRange, error) {
	f.fbCalls++
	if f.fbErr != nil {
		return nil, f.fbErr
	}
	return f.busy, nil
}

func (f *fakeCalendar) remoteCalls() int {
	return len(f.inserts) + len(f.patches) + len(f.deletes) + len(f.gets) + len(f.lists) + f.fbCalls
}

func ambientCredential(t *testing.T) google.Credential {
	t.Helper()
	cred, err := google.NewAmbientCredential(&googleoauth.Credentials{
		TokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "ambient"}),
	}, google.DefaultScopes)
	require.NoError(t, err)
	return cred
}

func impersonatingCredential(t *testing.T) google.Credential {
	t.Helper()
	cred, err := google.NewStaticKeyCredential(context.Background(), &google.ServiceAccountKey{
		ClientEmail: "broker@proj.iam.gserviceaccount.com",
		PrivateKey:  "unused",
	}, "owner@example.com", google.DefaultScopes, "")
	require.NoError(t, err)
	return cred
}

// countingConnector hands out sessions on cal with cred and counts Connect calls.
type countingConnector struct {
	cal      *fakeCalendar
	cred     google.Credential
	warnings []google.Warning
	err      error
	calls    int
}

func (c *countingConnector) Connect(context.Context) (*Session, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &Session{Calendar: c.cal, Credential: c.cred, Warnings: c.warnings}, nil
}

var testNow = time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)

func newTestService(conn Connector, policy ConferencePolicy) *Service {
	return NewService(conn, Config{
		Policy:       policy,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:          func() time.Time { return testNow },
		NewRequestID: func() string { return "req-1" },
	})
}
