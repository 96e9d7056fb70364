package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/teemow/meetingbroker/internal/logging"
)

// Surfaces a booking request can arrive through.
const (
	SurfaceHTTP = "http"
	SurfaceMCP  = "mcp"
)

// Invocation captures one booking operation for audit logging, whichever
// surface it came in on.
//
// # Privacy Considerations
//
// AttendeeEmail is PII. LogAttrs only emits its hash and domain; LogAuditAttrs
// emits the address itself and belongs in access-controlled log streams.
type Invocation struct {
	Surface   string // http or mcp
	Name      string // route pattern or tool name
	Operation string // create, list, amend, cancel, freebusy

	AttendeeEmail string
	BookingID     string
	AuthMode      string

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	TraceID string
	SpanID  string
}

// NewInvocation starts timing an invocation.
func NewInvocation(surface, name, operation string) *Invocation {
	return &Invocation{
		Surface:   surface,
		Name:      name,
		Operation: operation,
		StartTime: time.Now(),
	}
}

// WithAttendee sets the attendee the operation acts for.
func (inv *Invocation) WithAttendee(email string) *Invocation {
	inv.AttendeeEmail = email
	return inv
}

// WithBooking sets the affected booking id.
func (inv *Invocation) WithBooking(id string) *Invocation {
	inv.BookingID = id
	return inv
}

// WithAuthMode records the credential mode used.
func (inv *Invocation) WithAuthMode(mode string) *Invocation {
	inv.AuthMode = mode
	return inv
}

// WithSpanContext copies trace and span ids from the current span.
func (inv *Invocation) WithSpanContext(ctx context.Context) *Invocation {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if sc.IsValid() {
		inv.TraceID = sc.TraceID().String()
		inv.SpanID = sc.SpanID().String()
	}
	return inv
}

// Complete stops the timer and records the outcome.
func (inv *Invocation) Complete(err error) *Invocation {
	inv.Duration = time.Since(inv.StartTime)
	inv.Success = err == nil
	if err != nil {
		inv.Error = err.Error()
	}
	return inv
}

// Status returns "success" or "error".
func (inv *Invocation) Status() string {
	if inv.Success {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns attributes safe for operational logs.
func (inv *Invocation) LogAttrs() []slog.Attr {
	attrs := inv.baseAttrs()
	if inv.AttendeeEmail != "" {
		attrs = append(attrs,
			logging.UserHash(inv.AttendeeEmail),
			logging.Domain(inv.AttendeeEmail))
	}
	return inv.appendTail(attrs, false)
}

// LogAuditAttrs returns attributes including the raw attendee email.
func (inv *Invocation) LogAuditAttrs() []slog.Attr {
	attrs := inv.baseAttrs()
	if inv.AttendeeEmail != "" {
		attrs = append(attrs, slog.String("attendee", inv.AttendeeEmail))
	}
	return inv.appendTail(attrs, true)
}

func (inv *Invocation) baseAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("surface", inv.Surface),
		slog.String("name", inv.Name),
		logging.Operation(inv.Operation),
		slog.Duration(logging.KeyDuration, inv.Duration),
		slog.Bool("success", inv.Success),
	}
}

func (inv *Invocation) appendTail(attrs []slog.Attr, withSpan bool) []slog.Attr {
	if inv.BookingID != "" {
		attrs = append(attrs, logging.BookingID(inv.BookingID))
	}
	if inv.AuthMode != "" {
		attrs = append(attrs, logging.AuthMode(inv.AuthMode))
	}
	if inv.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", inv.TraceID))
	}
	if withSpan && inv.SpanID != "" {
		attrs = append(attrs, slog.String("span_id", inv.SpanID))
	}
	if inv.Error != "" {
		attrs = append(attrs, slog.String(logging.KeyError, inv.Error))
	}
	return attrs
}

// AuditLogger writes one line per booking invocation.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates an AuditLogger from config. A nil logger means slog.Default().
func NewAuditLogger(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger,
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// Log writes inv at info level on success and warn level on failure.
// A nil AuditLogger is a no-op.
func (al *AuditLogger) Log(ctx context.Context, inv *Invocation) {
	if al == nil || !al.enabled || inv == nil {
		return
	}

	attrs := inv.LogAttrs()
	if al.includePII {
		attrs = inv.LogAuditAttrs()
	}

	level := slog.LevelInfo
	msg := "booking_audit"
	if !inv.Success {
		level = slog.LevelWarn
		msg = "booking_audit_failed"
	}
	al.logger.LogAttrs(ctx, level, msg, attrs...)
}
