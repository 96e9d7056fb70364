package calendar

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/teemow/meetingbroker/internal/google"
	"github.com/teemow/meetingbroker/internal/instrumentation"
)

// Client wraps the Google Calendar service for a single calendar.
type Client struct {
	svc        *calendar.Service
	calendarID string
	metrics    *instrumentation.Metrics
}

// CalendarID returns the calendar this client operates on.
func (c *Client) CalendarID() string {
	return c.calendarID
}

// Dialer builds calendar clients from resolved credentials.
type Dialer struct {
	calendarID string
	options    []option.ClientOption
	metrics    *instrumentation.Metrics
}

// NewDialer creates a Dialer for calendarID. Extra client options are applied
// after authentication, so an endpoint override keeps the credential.
func NewDialer(calendarID string, metrics *instrumentation.Metrics, opts ...option.ClientOption) *Dialer {
	return &Dialer{
		calendarID: calendarID,
		options:    opts,
		metrics:    metrics,
	}
}

// Dial returns a Client authorized by cred.
func (d *Dialer) Dial(ctx context.Context, cred google.Credential) (*Client, error) {
	if cred == nil {
		return nil, fmt.Errorf("credential cannot be nil")
	}

	client := oauth2.NewClient(ctx, cred.TokenSource())

	// Force HTTP/1.1 by disabling HTTP/2
	if transport, ok := client.Transport.(*oauth2.Transport); ok {
		base := http.DefaultTransport.(*http.Transport).Clone()
		base.ForceAttemptHTTP2 = false
		transport.Base = base
	}

	opts := append([]option.ClientOption{option.WithHTTPClient(client)}, d.options...)
	return NewClient(ctx, d.calendarID, d.metrics, opts...)
}

// NewClient creates a Client from raw client options.
func NewClient(ctx context.Context, calendarID string, metrics *instrumentation.Metrics, opts ...option.ClientOption) (*Client, error) {
	if calendarID == "" {
		return nil, fmt.Errorf("calendar id cannot be empty")
	}

	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	return &Client{
		svc:        svc,
		calendarID: calendarID,
		metrics:    metrics,
	}, nil
}

// InsertEvent creates an event.
func (c *Client) InsertEvent(ctx context.Context, event *calendar.Event, opts WriteOptions) (*calendar.Event, error) {
	var created *calendar.Event
	err := c.observe(ctx, instrumentation.OperationCreate, "", func(ctx context.Context) error {
		call := c.svc.Events.Insert(c.calendarID, event).Context(ctx)
		if opts.SendUpdates != "" {
			call = call.SendUpdates(opts.SendUpdates)
		}
		if opts.ConferenceDataVersion > 0 {
			call = call.ConferenceDataVersion(opts.ConferenceDataVersion)
		}
		var err error
		created, err = call.Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	return created, nil
}

// PatchEvent applies a partial update; fields left zero in patch are untouched.
func (c *Client) PatchEvent(ctx context.Context, eventID string, patch *calendar.Event, opts WriteOptions) (*calendar.Event, error) {
	var updated *calendar.Event
	err := c.observe(ctx, instrumentation.OperationPatch, eventID, func(ctx context.Context) error {
		call := c.svc.Events.Patch(c.calendarID, eventID, patch).Context(ctx)
		if opts.SendUpdates != "" {
			call = call.SendUpdates(opts.SendUpdates)
		}
		if opts.ConferenceDataVersion > 0 {
			call = call.ConferenceDataVersion(opts.ConferenceDataVersion)
		}
		var err error
		updated, err = call.Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to patch event: %w", err)
	}
	return updated, nil
}

// GetEvent retrieves a specific event by ID
func (c *Client) GetEvent(ctx context.Context, eventID string) (*calendar.Event, error) {
	var event *calendar.Event
	err := c.observe(ctx, instrumentation.OperationGet, eventID, func(ctx context.Context) error {
		var err error
		event, err = c.svc.Events.Get(c.calendarID, eventID).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return event, nil
}

// DeleteEvent deletes a calendar event
func (c *Client) DeleteEvent(ctx context.Context, eventID, sendUpdates string) error {
	err := c.observe(ctx, instrumentation.OperationDelete, eventID, func(ctx context.Context) error {
		call := c.svc.Events.Delete(c.calendarID, eventID).Context(ctx)
		if sendUpdates != "" {
			call = call.SendUpdates(sendUpdates)
		}
		return call.Do()
	})
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return nil
}

// ListEvents lists single-occurrence events ordered by start time, following
// page tokens until q.MaxResults events are collected. A zero MaxResults
// returns every event in the window.
func (c *Client) ListEvents(ctx context.Context, q ListQuery) ([]*calendar.Event, error) {
	var items []*calendar.Event
	err := c.observe(ctx, instrumentation.OperationList, "", func(ctx context.Context) error {
		pageToken := ""
		for {
			call := c.svc.Events.List(c.calendarID).
				Context(ctx).
				TimeMin(q.TimeMin.Format(time.RFC3339)).
				TimeMax(q.TimeMax.Format(time.RFC3339)).
				SingleEvents(true).
				OrderBy("startTime")
			if q.MaxResults > 0 {
				call = call.MaxResults(min(q.MaxResults-int64(len(items)), maxPageSize))
			}
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}

			events, err := call.Do()
			if err != nil {
				return err
			}
			items = append(items, events.Items...)

			if q.MaxResults > 0 && int64(len(items)) >= q.MaxResults {
				items = items[:q.MaxResults]
				return nil
			}
			if events.NextPageToken == "" {
				return nil
			}
			pageToken = events.NextPageToken
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return items, nil
}

// QueryFreeBusy returns the busy intervals of the client's calendar.
func (c *Client) QueryFreeBusy(ctx context.Context, timeMin, timeMax time.Time) ([]TimeRange, error) {
	var busy []TimeRange
	err := c.observe(ctx, instrumentation.OperationFreeBusy, "", func(ctx context.Context) error {
		query := &calendar.FreeBusyRequest{
			TimeMin: timeMin.Format(time.RFC3339),
			TimeMax: timeMax.Format(time.RFC3339),
			Items:   []*calendar.FreeBusyRequestItem{{Id: c.calendarID}},
		}

		result, err := c.svc.Freebusy.Query(query).Context(ctx).Do()
		if err != nil {
			return err
		}

		cal, ok := result.Calendars[c.calendarID]
		if !ok {
			return nil
		}
		if len(cal.Errors) > 0 {
			return fmt.Errorf("calendar %s: %s", c.calendarID, cal.Errors[0].Reason)
		}

		busy = make([]TimeRange, 0, len(cal.Busy))
		for _, period := range cal.Busy {
			start, err := time.Parse(time.RFC3339, period.Start)
			if err != nil {
				return fmt.Errorf("invalid busy start %q: %w", period.Start, err)
			}
			end, err := time.Parse(time.RFC3339, period.End)
			if err != nil {
				return fmt.Errorf("invalid busy end %q: %w", period.End, err)
			}
			busy = append(busy, TimeRange{Start: start, End: end})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query freebusy: %w", err)
	}
	if busy == nil {
		busy = []TimeRange{}
	}
	return busy, nil
}

// observe wraps a Calendar API call with a span and operation metrics.
func (c *Client) observe(ctx context.Context, operation, eventID string, fn func(context.Context) error) error {
	attrs := instrumentation.NewSpanAttributeBuilder().
		WithCalendar(c.calendarID).
		WithBooking(eventID).
		Build()
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceCalendar, operation, attrs...)
	defer span.End()

	start := time.Now()
	err := fn(ctx)

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	c.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceCalendar, operation, status, time.Since(start))
	return err
}
