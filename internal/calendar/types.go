package calendar

import (
	"time"

	calendar "google.golang.org/api/calendar/v3"
)

// Notification policies for the sendUpdates parameter.
const (
	SendUpdatesAll  = "all"
	SendUpdatesNone = "none"
)

// ConferenceSolutionMeet is the conference solution key for Google Meet.
const ConferenceSolutionMeet = "hangoutsMeet"

// entryPointVideo marks the video join link among conference entry points.
const entryPointVideo = "video"

// WriteOptions carries the per-call flags for insert and patch.
type WriteOptions struct {
	// SendUpdates is "all" or "none".
	SendUpdates string

	// ConferenceDataVersion is 1 when the body carries conferenceData the
	// backend must act on, 0 otherwise.
	ConferenceDataVersion int64
}

// maxPageSize is the largest page Events.List serves.
const maxPageSize = 2500

// ListQuery bounds an events listing. MaxResults caps the total across pages;
// zero means no cap.
type ListQuery struct {
	TimeMin    time.Time
	TimeMax    time.Time
	MaxResults int64
}

// TimeRange represents a time range
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// EventTime parses an event boundary. Timed events use DateTime; all-day
// events only carry a Date. ok is false when neither parses.
func EventTime(edt *calendar.EventDateTime) (t time.Time, ok bool) {
	if edt == nil {
		return time.Time{}, false
	}
	if edt.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, edt.DateTime); err == nil {
			return t, true
		}
	}
	if edt.Date != "" {
		if t, err := time.Parse("2006-01-02", edt.Date); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NewEventTime formats an instant as a timed event boundary in UTC.
func NewEventTime(t time.Time) *calendar.EventDateTime {
	return &calendar.EventDateTime{
		DateTime: t.UTC().Format(time.RFC3339),
		TimeZone: "UTC",
	}
}

// ConferenceLink returns the join link of an event: the top-level hangout
// link when present, else the first video entry point.
func ConferenceLink(event *calendar.Event) string {
	if event == nil {
		return ""
	}
	if event.HangoutLink != "" {
		return event.HangoutLink
	}
	if event.ConferenceData != nil {
		for _, ep := range event.ConferenceData.EntryPoints {
			if ep != nil && ep.EntryPointType == entryPointVideo && ep.Uri != "" {
				return ep.Uri
			}
		}
	}
	return ""
}

// MeetCreateRequest builds conference data asking the backend to create a
// Meet conference, correlated by requestID.
func MeetCreateRequest(requestID string) *calendar.ConferenceData {
	return &calendar.ConferenceData{
		CreateRequest: &calendar.CreateConferenceRequest{
			RequestId: requestID,
			ConferenceSolutionKey: &calendar.ConferenceSolutionKey{
				Type: ConferenceSolutionMeet,
			},
		},
	}
}
