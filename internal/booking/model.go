package booking

import (
	"fmt"
	"strings"
	"time"

	gcal "google.golang.org/api/calendar/v3"

	"github.com/teemow/meetingbroker/internal/calendar"
)

// Mode is how a session takes place.
type Mode string

const (
	ModeVirtual  Mode = "virtual"
	ModeInPerson Mode = "in_person"
)

// ParseMode parses a booking mode. The empty string means virtual.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "virtual":
		return ModeVirtual, nil
	case "in_person", "inperson", "in-person":
		return ModeInPerson, nil
	}
	return "", NewValidationError("mode", fmt.Sprintf("unknown mode %q, want virtual or in_person", s))
}

// ConferencePolicy governs whether and how hard Create tries to attach a
// conferencing link.
type ConferencePolicy string

const (
	PolicyAuto  ConferencePolicy = "auto"
	PolicyNever ConferencePolicy = "never"
	PolicyForce ConferencePolicy = "force"
)

// ParseConferencePolicy parses USE_MEET style values. Boolean spellings are
// accepted: true means auto, false means never.
func ParseConferencePolicy(s string) (ConferencePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto", "true", "1", "yes":
		return PolicyAuto, nil
	case "never", "false", "0", "no", "off":
		return PolicyNever, nil
	case "force", "always", "required":
		return PolicyForce, nil
	}
	return "", fmt.Errorf("unknown conference policy %q, want auto, never or force", s)
}

// Status is the lifecycle state of a booking.
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// Private extended property keys recording ownership when the broker cannot
// invite the attendee.
const (
	PropUserEmail       = "userEmail"
	PropUserName        = "userName"
	PropBookingMode     = "bookingMode"
	PropBookingLocation = "bookingLocation"
)

// DefaultListWindow is how far ahead List looks when no upper bound is given.
const DefaultListWindow = 90 * 24 * time.Hour

// Listing limits.
const (
	DefaultMaxResults = 50
	MaxMaxResults     = 2500
)

// Request asks for a new booking.
type Request struct {
	Start         time.Time
	End           time.Time
	AttendeeEmail string
	AttendeeName  string
	Mode          Mode
	Location      string
}

// Validate checks required fields and defaults the mode.
func (r *Request) Validate() error {
	if err := validateWindow("start", "end", r.Start, r.End); err != nil {
		return err
	}
	if r.Mode == "" {
		r.Mode = ModeVirtual
	}
	if _, err := ParseMode(string(r.Mode)); err != nil {
		return err
	}
	r.AttendeeEmail = strings.TrimSpace(r.AttendeeEmail)
	r.AttendeeName = strings.TrimSpace(r.AttendeeName)
	r.Location = strings.TrimSpace(r.Location)
	return nil
}

// displayName is the name used in the event summary.
func (r Request) displayName() string {
	if r.AttendeeName != "" {
		return r.AttendeeName
	}
	if local, _, _ := strings.Cut(r.AttendeeEmail, "@"); local != "" {
		return local
	}
	return "Client"
}

func (r Request) summary() string {
	suffix := "Virtual Session"
	if r.Mode == ModeInPerson {
		suffix = "In-Person Session"
	}
	return r.displayName() + ": " + suffix
}

func (r Request) description() string {
	var b strings.Builder
	if r.AttendeeName != "" {
		b.WriteString("Booked by " + r.AttendeeName)
	} else {
		b.WriteString("Booked via app")
	}
	if r.AttendeeEmail != "" {
		b.WriteString(" (" + r.AttendeeEmail + ")")
	}
	return b.String()
}

// AmendRequest changes some attributes of an existing booking. Nil fields
// are left untouched.
type AmendRequest struct {
	Start    *time.Time
	End      *time.Time
	Location *string
}

func (a AmendRequest) empty() bool {
	return a.Start == nil && a.End == nil && a.Location == nil
}

// ListFilter narrows List. Zero values select the defaults.
type ListFilter struct {
	Email      string
	TimeMin    time.Time
	TimeMax    time.Time
	MaxResults int
}

// Attendee is an invited participant of a booking.
type Attendee struct {
	Email          string `json:"email"`
	Name           string `json:"name,omitempty"`
	ResponseStatus string `json:"responseStatus,omitempty"`
}

// Owner is the external party a booking was made for.
type Owner struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Booking is the normalized view of a calendar event.
type Booking struct {
	ID             string     `json:"id"`
	Start          time.Time  `json:"start"`
	End            time.Time  `json:"end"`
	Status         Status     `json:"status"`
	Summary        string     `json:"summary"`
	Location       string     `json:"location,omitempty"`
	ConferenceLink string     `json:"conferenceLink,omitempty"`
	Attendees      []Attendee `json:"attendees"`
	Owner          *Owner     `json:"owner,omitempty"`
	Mode           Mode       `json:"mode"`
}

// FromEvent normalizes an upstream event. Ownership is read from private
// metadata first and from the invited attendees otherwise.
func FromEvent(ev *gcal.Event) Booking {
	b := Booking{
		ID:             ev.Id,
		Status:         StatusConfirmed,
		Summary:        ev.Summary,
		Location:       ev.Location,
		ConferenceLink: calendar.ConferenceLink(ev),
		Attendees:      make([]Attendee, 0, len(ev.Attendees)),
	}
	if ev.Status == string(StatusCancelled) {
		b.Status = StatusCancelled
	}
	b.Start, _ = calendar.EventTime(ev.Start)
	b.End, _ = calendar.EventTime(ev.End)

	for _, a := range ev.Attendees {
		if a == nil || a.Email == "" {
			continue
		}
		b.Attendees = append(b.Attendees, Attendee{
			Email:          a.Email,
			Name:           a.DisplayName,
			ResponseStatus: a.ResponseStatus,
		})
	}

	props := privateProps(ev)
	if email := props[PropUserEmail]; email != "" {
		b.Owner = &Owner{Email: email, Name: props[PropUserName]}
	} else {
		for _, a := range ev.Attendees {
			if a != nil && a.Email != "" && !a.Organizer && !a.Self {
				b.Owner = &Owner{Email: a.Email, Name: a.DisplayName}
				break
			}
		}
	}

	if mode, err := ParseMode(props[PropBookingMode]); err == nil && props[PropBookingMode] != "" {
		b.Mode = mode
	} else if b.ConferenceLink != "" {
		b.Mode = ModeVirtual
	} else {
		b.Mode = ModeInPerson
	}
	return b
}

// OwnedBy reports whether email matches an invited attendee or the private
// owner metadata of ev, ignoring case.
func OwnedBy(ev *gcal.Event, email string) bool {
	want := strings.ToLower(strings.TrimSpace(email))
	if want == "" {
		return false
	}
	for _, a := range ev.Attendees {
		if a != nil && strings.ToLower(a.Email) == want {
			return true
		}
	}
	return strings.ToLower(privateProps(ev)[PropUserEmail]) == want
}

func privateProps(ev *gcal.Event) map[string]string {
	if ev.ExtendedProperties == nil {
		return nil
	}
	return ev.ExtendedProperties.Private
}
