package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/teemow/meetingbroker/internal/booking"
	"github.com/teemow/meetingbroker/internal/calendar"
	"github.com/teemow/meetingbroker/internal/instrumentation"
)

// BookingService is the booking core as seen by the REST and MCP surfaces.
// *booking.Service implements it.
type BookingService interface {
	Create(ctx context.Context, req booking.Request) (*booking.CreateResult, error)
	List(ctx context.Context, f booking.ListFilter) ([]booking.Booking, error)
	Amend(ctx context.Context, id string, a booking.AmendRequest) (*booking.Booking, error)
	Cancel(ctx context.Context, id string) error
	FreeBusy(ctx context.Context, start, end time.Time) ([]calendar.TimeRange, error)
}

var _ BookingService = (*booking.Service)(nil)

// ServerContext holds the dependencies shared by the HTTP handlers and the
// MCP tools.
type ServerContext struct {
	ctx      context.Context
	cancel   context.CancelFunc
	bookings BookingService
	authMode string
	readOnly bool
	logger   *slog.Logger

	metrics     *instrumentation.Metrics
	auditLogger *instrumentation.AuditLogger

	mu       sync.RWMutex
	shutdown bool
}

// Option configures a ServerContext.
type Option func(*ServerContext)

// WithReadOnly rejects booking mutations.
func WithReadOnly(readOnly bool) Option {
	return func(sc *ServerContext) { sc.readOnly = readOnly }
}

// WithAuthMode records the configured authentication mode for health output
// and audit records.
func WithAuthMode(mode string) Option {
	return func(sc *ServerContext) { sc.authMode = mode }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(sc *ServerContext) { sc.logger = logger }
}

// NewServerContext creates a new server context
func NewServerContext(ctx context.Context, bookings BookingService, opts ...Option) *ServerContext {
	shutdownCtx, cancel := context.WithCancel(ctx)
	sc := &ServerContext{
		ctx:      shutdownCtx,
		cancel:   cancel,
		bookings: bookings,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(sc)
	}
	return sc
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Bookings returns the booking service.
func (sc *ServerContext) Bookings() BookingService {
	return sc.bookings
}

// ReadOnly reports whether mutations are disabled.
func (sc *ServerContext) ReadOnly() bool {
	return sc.readOnly
}

// AuthMode returns the configured authentication mode, if known.
func (sc *ServerContext) AuthMode() string {
	return sc.authMode
}

// Logger returns the logger.
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// SetMetrics sets the metrics recorder.
func (sc *ServerContext) SetMetrics(m *instrumentation.Metrics) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.metrics = m
}

// Metrics returns the metrics recorder. It may be nil, which the recorder
// methods tolerate.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.metrics
}

// SetAuditLogger sets the audit logger.
func (sc *ServerContext) SetAuditLogger(al *instrumentation.AuditLogger) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.auditLogger = al
}

// AuditLogger returns the audit logger, possibly nil.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.auditLogger
}

// IsShutdown reports whether Shutdown has been called.
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown cancels the server context. It is safe to call more than once.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.shutdown {
		return nil
	}
	sc.shutdown = true
	sc.cancel()
	return nil
}
