package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/teemow/meetingbroker/internal/booking"
	"github.com/teemow/meetingbroker/internal/google"
	"github.com/teemow/meetingbroker/internal/logging"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeInvalidRequest = "invalid_request"
	CodeNotFound       = "not_found"
	CodeConflict       = "conflict"
	CodeGone           = "gone"
	CodeReadOnly       = "read_only"
	CodeConferencing   = "conferencing_failed"
	CodeUpstream       = "upstream_error"
	CodeIdentity       = "identity_error"
	CodeConfiguration  = "configuration_error"
	CodeInternal       = "internal_error"
)

// ErrorResponse is the JSON body of every non-2xx booking response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Classify maps an error from the booking core to an HTTP status and an
// error code.
func Classify(err error) (int, string) {
	var (
		validationErr *booking.ValidationError
		attachErr     *booking.ConferencingAttachError
		upstreamErr   *booking.UpstreamBookingError
		configErr     *google.ConfigurationError
		keyErr        *google.MalformedKeyError
		signErr       *google.SigningError
		exchangeErr   *google.TokenExchangeError
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, CodeInvalidRequest
	case errors.Is(err, booking.ErrCancelled):
		return http.StatusConflict, CodeConflict
	case errors.As(err, &configErr), errors.As(err, &keyErr):
		return http.StatusInternalServerError, CodeConfiguration
	case errors.As(err, &signErr), errors.As(err, &exchangeErr):
		return http.StatusBadGateway, CodeIdentity
	case errors.As(err, &attachErr):
		return http.StatusBadGateway, CodeConferencing
	case errors.As(err, &upstreamErr):
		switch upstreamErr.StatusCode() {
		case http.StatusNotFound:
			return http.StatusNotFound, CodeNotFound
		case http.StatusConflict:
			return http.StatusConflict, CodeConflict
		case http.StatusGone:
			return http.StatusGone, CodeGone
		}
		return http.StatusBadGateway, CodeUpstream
	}
	return http.StatusInternalServerError, CodeInternal
}

// NewErrorResponse classifies err and builds the body clients see.
// Identity and configuration details are replaced by the status text.
func NewErrorResponse(err error) (int, ErrorResponse) {
	status, code := Classify(err)
	msg := err.Error()
	switch code {
	case CodeConfiguration, CodeIdentity, CodeInternal:
		msg = http.StatusText(status)
	}
	return status, ErrorResponse{Error: msg, Code: code}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *bookingHandlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := NewErrorResponse(err)
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.sc.Logger().LogAttrs(r.Context(), level, "booking request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		logging.Err(err))

	writeJSON(w, status, resp)
}
