package booking

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"

	"github.com/teemow/meetingbroker/internal/calendar"
	"github.com/teemow/meetingbroker/internal/google"
	"github.com/teemow/meetingbroker/internal/instrumentation"
	"github.com/teemow/meetingbroker/internal/logging"
)

// DefaultLocation is used for in-person bookings that name no location.
const DefaultLocation = "Office"

// Config tunes a Service.
type Config struct {
	// Policy defaults to PolicyAuto.
	Policy ConferencePolicy

	// DefaultLocation defaults to DefaultLocation.
	DefaultLocation string

	Metrics *instrumentation.Metrics
	Logger  *slog.Logger

	// Now and NewRequestID are replaced in tests.
	Now          func() time.Time
	NewRequestID func() string
}

// Service implements booking and availability operations against the
// configured calendar.
type Service struct {
	connector       Connector
	policy          ConferencePolicy
	defaultLocation string
	metrics         *instrumentation.Metrics
	logger          *slog.Logger
	now             func() time.Time
	newRequestID    func() string
}

// NewService creates a Service.
func NewService(connector Connector, cfg Config) *Service {
	if cfg.Policy == "" {
		cfg.Policy = PolicyAuto
	}
	if strings.TrimSpace(cfg.DefaultLocation) == "" {
		cfg.DefaultLocation = DefaultLocation
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewRequestID == nil {
		cfg.NewRequestID = uuid.NewString
	}
	return &Service{
		connector:       connector,
		policy:          cfg.Policy,
		defaultLocation: cfg.DefaultLocation,
		metrics:         cfg.Metrics,
		logger:          cfg.Logger,
		now:             cfg.Now,
		newRequestID:    cfg.NewRequestID,
	}
}

// Policy returns the conferencing policy.
func (s *Service) Policy() ConferencePolicy {
	return s.policy
}

// CreateResult is the outcome of Create.
type CreateResult struct {
	Booking            Booking          `json:"booking"`
	ConferenceAttached bool             `json:"conferenceAttached"`
	Warnings           []google.Warning `json:"warnings"`
}

// Create books a new session. Virtual sessions get a Meet link unless the
// policy is never; see insert for the fallback order.
func (s *Service) Create(ctx context.Context, req Request) (*CreateResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	attrs := instrumentation.NewSpanAttributeBuilder().
		WithConferencePolicy(string(s.policy)).
		Build()

	var result *CreateResult
	err := s.run(ctx, instrumentation.OperationBookingCreate, req.AttendeeEmail, attrs, func(ctx context.Context, sess *Session) error {
		event := s.newEvent(req, sess)
		created, attached, err := s.insert(ctx, sess.Calendar, event, req.Mode, sess.sendUpdates())
		if err != nil {
			return err
		}

		b := FromEvent(created)
		if b.Start.IsZero() || b.End.IsZero() {
			b.Start, b.End = req.Start, req.End
		}
		result = &CreateResult{Booking: b, ConferenceAttached: attached, Warnings: sess.Warnings}

		s.logger.InfoContext(ctx, "booking created",
			logging.BookingID(created.Id),
			logging.AuthMode(sess.authMode()),
			logging.UserHash(req.AttendeeEmail),
			slog.String("mode", string(req.Mode)),
			slog.Bool("conference_attached", attached))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// newEvent builds the canonical event body. Ownership goes into the attendee
// list when the session impersonates a user and into private metadata
// otherwise.
func (s *Service) newEvent(req Request, sess *Session) *gcal.Event {
	ev := &gcal.Event{
		Summary:                 req.summary(),
		Description:             req.description(),
		Start:                   calendar.NewEventTime(req.Start),
		End:                     calendar.NewEventTime(req.End),
		GuestsCanModify:         false,
		GuestsCanInviteOthers:   googleapi.Bool(false),
		GuestsCanSeeOtherGuests: googleapi.Bool(false),
		ForceSendFields:         []string{"GuestsCanModify"},
	}

	var location string
	if req.Mode == ModeInPerson {
		location = req.Location
		if location == "" {
			location = s.defaultLocation
		}
		ev.Location = location
	}

	if sess.impersonates() {
		if req.AttendeeEmail != "" {
			ev.Attendees = []*gcal.EventAttendee{{
				Email:       req.AttendeeEmail,
				DisplayName: req.AttendeeName,
			}}
		}
		return ev
	}

	ev.ExtendedProperties = &gcal.EventExtendedProperties{
		Private: map[string]string{
			PropUserEmail:       req.AttendeeEmail,
			PropUserName:        req.AttendeeName,
			PropBookingMode:     string(req.Mode),
			PropBookingLocation: location,
		},
	}
	return ev
}

// insert creates the event. For virtual sessions it first asks for a Meet
// conference inline; if that is rejected it inserts the plain event and
// patches the conference on with the same request id. Under PolicyForce a
// failed patch removes the plain event and fails the booking.
func (s *Service) insert(ctx context.Context, cal Calendar, ev *gcal.Event, mode Mode, sendUpdates string) (*gcal.Event, bool, error) {
	plainOpts := calendar.WriteOptions{SendUpdates: sendUpdates}

	if mode != ModeVirtual || s.policy == PolicyNever {
		created, err := cal.InsertEvent(ctx, ev, plainOpts)
		if err != nil {
			return nil, false, NewUpstreamBookingError("insert", err)
		}
		s.metrics.RecordConferenceAttach(ctx, instrumentation.ConferenceSkipped)
		return created, false, nil
	}

	requestID := s.newRequestID()
	confOpts := calendar.WriteOptions{SendUpdates: sendUpdates, ConferenceDataVersion: 1}
	span := trace.SpanFromContext(ctx)

	inline := *ev
	inline.ConferenceData = calendar.MeetCreateRequest(requestID)
	created, err := cal.InsertEvent(ctx, &inline, confOpts)
	if err == nil {
		s.metrics.RecordConferenceAttach(ctx, instrumentation.ConferenceInline)
		return created, true, nil
	}
	s.logger.WarnContext(ctx, "inline conference creation rejected, falling back to insert and patch", logging.Err(err))
	instrumentation.AddSpanEvent(span, "conference.inline_rejected")

	plain, err := cal.InsertEvent(ctx, ev, plainOpts)
	if err != nil {
		return nil, false, NewUpstreamBookingError("insert", err)
	}

	patched, patchErr := cal.PatchEvent(ctx, plain.Id, &gcal.Event{ConferenceData: calendar.MeetCreateRequest(requestID)}, confOpts)
	if patchErr == nil {
		s.metrics.RecordConferenceAttach(ctx, instrumentation.ConferencePatched)
		return patched, true, nil
	}
	s.metrics.RecordConferenceAttach(ctx, instrumentation.ConferenceFailed)
	instrumentation.AddSpanEvent(span, "conference.patch_rejected", attribute.String(instrumentation.SpanAttrBookingID, plain.Id))

	if s.policy == PolicyForce {
		if err := cal.DeleteEvent(ctx, plain.Id, sendUpdates); err != nil {
			s.logger.ErrorContext(ctx, "failed to remove event after conference attach failure",
				logging.BookingID(plain.Id), logging.Err(err))
		}
		return nil, false, &ConferencingAttachError{Policy: s.policy, Err: patchErr}
	}

	s.logger.WarnContext(ctx, "booking kept without conferencing link",
		logging.BookingID(plain.Id), logging.Err(patchErr))
	return plain, false, nil
}

// List returns confirmed bookings in the filter window, ordered by start.
// An email filter matches invited attendees and private owner metadata.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Booking, error) {
	q, err := s.listQuery(f)
	if err != nil {
		return nil, err
	}

	// An email filter scans the whole window so owners past the first page
	// are found; the cap then applies to the matches.
	limit := int(q.MaxResults)
	if f.Email != "" {
		q.MaxResults = 0
	}

	bookings := []Booking{}
	err = s.run(ctx, instrumentation.OperationBookingList, f.Email, nil, func(ctx context.Context, sess *Session) error {
		events, err := sess.Calendar.ListEvents(ctx, q)
		if err != nil {
			return NewUpstreamBookingError("list", err)
		}
		for _, ev := range events {
			if len(bookings) == limit {
				break
			}
			if ev == nil || ev.Status == string(StatusCancelled) {
				continue
			}
			if f.Email != "" && !OwnedBy(ev, f.Email) {
				continue
			}
			bookings = append(bookings, FromEvent(ev))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

func (s *Service) listQuery(f ListFilter) (calendar.ListQuery, error) {
	maxResults := f.MaxResults
	if maxResults == 0 {
		maxResults = DefaultMaxResults
	}
	if maxResults < 1 || maxResults > MaxMaxResults {
		return calendar.ListQuery{}, NewValidationError("maxResults", fmt.Sprintf("must be between 1 and %d", MaxMaxResults))
	}

	from := f.TimeMin
	if from.IsZero() {
		from = s.now()
	}
	to := f.TimeMax
	if to.IsZero() {
		to = from.Add(DefaultListWindow)
	}
	if err := validateWindow("timeMin", "timeMax", from, to); err != nil {
		return calendar.ListQuery{}, err
	}

	return calendar.ListQuery{
		TimeMin:    from.UTC(),
		TimeMax:    to.UTC(),
		MaxResults: int64(maxResults),
	}, nil
}

// Amend changes the supplied attributes of a booking and leaves the rest as
// they are. Cancelled bookings cannot be amended.
func (s *Service) Amend(ctx context.Context, id string, a AmendRequest) (*Booking, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, NewValidationError("id", "is required")
	}
	if a.empty() {
		return nil, NewValidationError("", "at least one of start, end or location is required")
	}

	attrs := instrumentation.NewSpanAttributeBuilder().WithBooking(id).Build()

	var amended *Booking
	err := s.run(ctx, instrumentation.OperationBookingAmend, "", attrs, func(ctx context.Context, sess *Session) error {
		current, err := sess.Calendar.GetEvent(ctx, id)
		if err != nil {
			return NewUpstreamBookingError("get", err)
		}
		if current.Status == string(StatusCancelled) {
			return fmt.Errorf("cannot amend %s: %w", id, ErrCancelled)
		}

		patch, err := amendPatch(current, a, sess.impersonates())
		if err != nil {
			return err
		}

		updated, err := sess.Calendar.PatchEvent(ctx, id, patch, calendar.WriteOptions{SendUpdates: sess.sendUpdates()})
		if err != nil {
			return NewUpstreamBookingError("patch", err)
		}
		b := FromEvent(updated)
		amended = &b

		s.logger.InfoContext(ctx, "booking amended",
			logging.BookingID(id),
			logging.AuthMode(sess.authMode()))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return amended, nil
}

// amendPatch builds a patch body carrying only the supplied fields, after
// checking the merged window.
func amendPatch(current *gcal.Event, a AmendRequest, impersonating bool) (*gcal.Event, error) {
	start, _ := calendar.EventTime(current.Start)
	end, _ := calendar.EventTime(current.End)

	patch := &gcal.Event{}
	if a.Start != nil {
		start = *a.Start
		patch.Start = calendar.NewEventTime(start)
	}
	if a.End != nil {
		end = *a.End
		patch.End = calendar.NewEventTime(end)
	}
	if err := validateWindow("start", "end", start, end); err != nil {
		return nil, err
	}

	if a.Location != nil {
		location := strings.TrimSpace(*a.Location)
		if location == "" {
			patch.NullFields = append(patch.NullFields, "Location")
		} else {
			patch.Location = location
		}

		if props := privateProps(current); !impersonating && props != nil {
			props = maps.Clone(props)
			props[PropBookingLocation] = location
			patch.ExtendedProperties = &gcal.EventExtendedProperties{Private: props}
		}
	}
	return patch, nil
}

// Cancel deletes a booking. Invited attendees are notified only when the
// session impersonates a user.
func (s *Service) Cancel(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return NewValidationError("id", "is required")
	}

	attrs := instrumentation.NewSpanAttributeBuilder().WithBooking(id).Build()
	return s.run(ctx, instrumentation.OperationBookingCancel, "", attrs, func(ctx context.Context, sess *Session) error {
		if err := sess.Calendar.DeleteEvent(ctx, id, sess.sendUpdates()); err != nil {
			return NewUpstreamBookingError("delete", err)
		}
		s.logger.InfoContext(ctx, "booking cancelled", logging.BookingID(id))
		return nil
	})
}

// FreeBusy returns the busy intervals of the calendar within [start, end).
// The window is validated before any remote call.
func (s *Service) FreeBusy(ctx context.Context, start, end time.Time) ([]calendar.TimeRange, error) {
	if err := validateWindow("start", "end", start, end); err != nil {
		return nil, err
	}

	var busy []calendar.TimeRange
	err := s.run(ctx, instrumentation.OperationFreeBusy, "", nil, func(ctx context.Context, sess *Session) error {
		var err error
		busy, err = sess.Calendar.QueryFreeBusy(ctx, start.UTC(), end.UTC())
		if err != nil {
			return NewUpstreamBookingError("freebusy", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return busy, nil
}

// run opens a session and executes fn inside a booking span, recording the
// outcome.
func (s *Service) run(ctx context.Context, op, attendee string, attrs []attribute.KeyValue, fn func(context.Context, *Session) error) error {
	ctx, span := instrumentation.StartBookingSpan(ctx, op, attrs...)
	defer span.End()
	start := time.Now()

	err := func() error {
		sess, err := s.connector.Connect(ctx)
		if err != nil {
			return err
		}
		span.SetAttributes(attribute.String(instrumentation.SpanAttrAuthMode, sess.authMode()))
		return fn(ctx, sess)
	}()

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
		s.logger.WarnContext(ctx, "booking operation failed", logging.Operation(op), logging.Err(err))
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	s.metrics.RecordBookingOperation(ctx, op, status, attendee, time.Since(start))
	return err
}
