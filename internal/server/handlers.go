package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/teemow/meetingbroker/internal/booking"
	"github.com/teemow/meetingbroker/internal/calendar"
	"github.com/teemow/meetingbroker/internal/google"
	"github.com/teemow/meetingbroker/internal/instrumentation"
)

// maxBodyBytes bounds booking request bodies.
const maxBodyBytes = 1 << 20

// CreateBookingRequest is the body of POST /bookings. Times are RFC 3339.
type CreateBookingRequest struct {
	Start    string `json:"start"`
	End      string `json:"end"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	Mode     string `json:"mode,omitempty"`
	Location string `json:"location,omitempty"`
}

// AmendBookingRequest is the body of PATCH /bookings/{id}. Absent fields are
// left unchanged; an empty location clears it.
type AmendBookingRequest struct {
	Start    *string `json:"start,omitempty"`
	End      *string `json:"end,omitempty"`
	Location *string `json:"location,omitempty"`
}

// AvailabilityResponse is the body of GET /availability.
type AvailabilityResponse struct {
	Busy []calendar.TimeRange `json:"busy"`
}

// ListBookingsResponse is the body of GET /bookings.
type ListBookingsResponse struct {
	Bookings []booking.Booking `json:"bookings"`
}

// AmendBookingResponse is the body of PATCH /bookings/{id}.
type AmendBookingResponse struct {
	Booking booking.Booking `json:"booking"`
}

// ToRequest validates the wire fields and converts them.
func (b CreateBookingRequest) ToRequest() (booking.Request, error) {
	start, err := booking.ParseInstant("start", b.Start)
	if err != nil {
		return booking.Request{}, err
	}
	end, err := booking.ParseInstant("end", b.End)
	if err != nil {
		return booking.Request{}, err
	}
	mode, err := booking.ParseMode(b.Mode)
	if err != nil {
		return booking.Request{}, err
	}
	return booking.Request{
		Start:         start,
		End:           end,
		AttendeeEmail: b.Email,
		AttendeeName:  b.Name,
		Mode:          mode,
		Location:      b.Location,
	}, nil
}

// ToAmendRequest validates the wire fields and converts them.
func (b AmendBookingRequest) ToAmendRequest() (booking.AmendRequest, error) {
	var out booking.AmendRequest
	if b.Start != nil {
		t, err := booking.ParseInstant("start", *b.Start)
		if err != nil {
			return out, err
		}
		out.Start = &t
	}
	if b.End != nil {
		t, err := booking.ParseInstant("end", *b.End)
		if err != nil {
			return out, err
		}
		out.End = &t
	}
	out.Location = b.Location
	return out, nil
}

type bookingHandlers struct {
	sc *ServerContext
}

func (h *bookingHandlers) routes(r chi.Router) {
	r.Get("/availability", h.availability)
	r.Get("/bookings", h.list)

	r.Group(func(r chi.Router) {
		r.Use(h.requireWritable)
		r.Post("/bookings", h.create)
		r.Patch("/bookings/{id}", h.amend)
		r.Delete("/bookings/{id}", h.cancel)
	})
}

func (h *bookingHandlers) requireWritable(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.sc.ReadOnly() {
			writeJSON(w, http.StatusForbidden, ErrorResponse{
				Error: "bookings are read-only on this server",
				Code:  CodeReadOnly,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *bookingHandlers) availability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := booking.ParseInstant("start", q.Get("start"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	end, err := booking.ParseInstant("end", q.Get("end"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	busy, err := h.sc.Bookings().FreeBusy(r.Context(), start, end)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if busy == nil {
		busy = []calendar.TimeRange{}
	}
	writeJSON(w, http.StatusOK, AvailabilityResponse{Busy: busy})
}

func (h *bookingHandlers) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := booking.ListFilter{Email: strings.TrimSpace(q.Get("email"))}

	var err error
	if f.TimeMin, err = booking.ParseOptionalInstant("timeMin", q.Get("timeMin")); err != nil {
		h.writeError(w, r, err)
		return
	}
	if f.TimeMax, err = booking.ParseOptionalInstant("timeMax", q.Get("timeMax")); err != nil {
		h.writeError(w, r, err)
		return
	}
	if v := strings.TrimSpace(q.Get("maxResults")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			h.writeError(w, r, booking.NewValidationError("maxResults", "must be a number"))
			return
		}
		f.MaxResults = n
	}

	bookings, err := h.sc.Bookings().List(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ListBookingsResponse{Bookings: bookings})
}

func (h *bookingHandlers) create(w http.ResponseWriter, r *http.Request) {
	var body CreateBookingRequest
	if err := decodeBody(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}

	inv := h.invocation(r, instrumentation.OperationBookingCreate).WithAttendee(body.Email)
	req, err := body.ToRequest()
	if err != nil {
		h.audit(r, inv, err)
		h.writeError(w, r, err)
		return
	}

	result, err := h.sc.Bookings().Create(r.Context(), req)
	if err != nil {
		h.audit(r, inv, err)
		h.writeError(w, r, err)
		return
	}
	inv.WithBooking(result.Booking.ID)
	h.audit(r, inv, nil)

	if result.Warnings == nil {
		result.Warnings = []google.Warning{}
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *bookingHandlers) amend(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body AmendBookingRequest
	if err := decodeBody(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}

	inv := h.invocation(r, instrumentation.OperationBookingAmend).WithBooking(id)
	req, err := body.ToAmendRequest()
	if err != nil {
		h.audit(r, inv, err)
		h.writeError(w, r, err)
		return
	}

	updated, err := h.sc.Bookings().Amend(r.Context(), id, req)
	h.audit(r, inv, err)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AmendBookingResponse{Booking: *updated})
}

func (h *bookingHandlers) cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	inv := h.invocation(r, instrumentation.OperationBookingCancel).WithBooking(id)

	err := h.sc.Bookings().Cancel(r.Context(), id)
	h.audit(r, inv, err)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *bookingHandlers) invocation(r *http.Request, operation string) *instrumentation.Invocation {
	name := r.Method + " " + r.URL.Path
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			name = r.Method + " " + pattern
		}
	}
	return instrumentation.NewInvocation(instrumentation.SurfaceHTTP, name, operation).
		WithAuthMode(h.sc.AuthMode()).
		WithSpanContext(r.Context())
}

func (h *bookingHandlers) audit(r *http.Request, inv *instrumentation.Invocation, err error) {
	h.sc.AuditLogger().Log(r.Context(), inv.Complete(err))
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return booking.NewValidationError("", "request body too large")
		}
		return booking.NewValidationError("", "malformed JSON body: "+err.Error())
	}
	return nil
}
