package booking

import (
	"context"
	"fmt"
	"time"

	gcal "google.golang.org/api/calendar/v3"

	"github.com/teemow/meetingbroker/internal/calendar"
	"github.com/teemow/meetingbroker/internal/google"
)

// Calendar is the subset of the calendar backend the service drives.
// *calendar.Client implements it.
type Calendar interface {
	InsertEvent(ctx context.Context, event *gcal.Event, opts calendar.WriteOptions) (*gcal.Event, error)
	PatchEvent(ctx context.Context, eventID string, patch *gcal.Event, opts calendar.WriteOptions) (*gcal.Event, error)
	GetEvent(ctx context.Context, eventID string) (*gcal.Event, error)
	DeleteEvent(ctx context.Context, eventID, sendUpdates string) error
	ListEvents(ctx context.Context, q calendar.ListQuery) ([]*gcal.Event, error)
	QueryFreeBusy(ctx context.Context, timeMin, timeMax time.Time) ([]calendar.TimeRange, error)
}

var _ Calendar = (*calendar.Client)(nil)

// Session is a calendar handle authorized by a freshly resolved credential.
type Session struct {
	Calendar   Calendar
	Credential google.Credential
	Warnings   []google.Warning
}

func (s *Session) impersonates() bool {
	return s.Credential != nil && google.Impersonates(s.Credential)
}

func (s *Session) authMode() string {
	if s.Credential == nil {
		return ""
	}
	return string(s.Credential.Mode())
}

// sendUpdates is the notification policy for writes in this session: invited
// attendees exist only when the credential acts as a real user.
func (s *Session) sendUpdates() string {
	if s.impersonates() {
		return calendar.SendUpdatesAll
	}
	return calendar.SendUpdatesNone
}

// Connector opens a Session for one operation.
type Connector interface {
	Connect(ctx context.Context) (*Session, error)
}

// ConnectorFunc adapts a function to Connector.
type ConnectorFunc func(ctx context.Context) (*Session, error)

// Connect implements Connector.
func (f ConnectorFunc) Connect(ctx context.Context) (*Session, error) {
	return f(ctx)
}

// NewConnector resolves a new credential and dials a new calendar client on
// every Connect. Nothing is shared between sessions.
func NewConnector(resolver *google.Resolver, dialer *calendar.Dialer) Connector {
	return ConnectorFunc(func(ctx context.Context) (*Session, error) {
		res, err := resolver.Resolve(ctx)
		if err != nil {
			return nil, err
		}
		client, err := dialer.Dial(ctx, res.Credential)
		if err != nil {
			return nil, fmt.Errorf("failed to dial calendar: %w", err)
		}
		return &Session{
			Calendar:   client,
			Credential: res.Credential,
			Warnings:   res.Warnings,
		}, nil
	})
}
