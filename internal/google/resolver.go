package google

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	googleoauth "golang.org/x/oauth2/google"

	"github.com/teemow/meetingbroker/internal/instrumentation"
	"github.com/teemow/meetingbroker/internal/logging"
)

// WarningSubjectIgnored is raised when an impersonation subject is configured
// but the selected mode cannot impersonate.
const WarningSubjectIgnored = "subject_ignored"

// Warning is a non-fatal condition observed while resolving credentials.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	return w.Code + ": " + w.Message
}

// Resolution is the result of a successful Resolve.
type Resolution struct {
	Credential Credential
	Warnings   []Warning
}

// DefaultCredentialsFinder locates Application Default Credentials.
type DefaultCredentialsFinder func(ctx context.Context, scopes ...string) (*googleoauth.Credentials, error)

// Resolver turns Settings into a fresh Credential on every call.
// It holds no mutable state and is safe for concurrent use.
type Resolver struct {
	settings    Settings
	exchanger   *Exchanger
	findDefault DefaultCredentialsFinder
	metrics     *instrumentation.Metrics
	logger      *slog.Logger
}

// ResolverOption customizes a Resolver.
type ResolverOption func(*Resolver)

// WithExchanger sets the exchanger used for keyless delegation.
func WithExchanger(ex *Exchanger) ResolverOption {
	return func(r *Resolver) {
		r.exchanger = ex
	}
}

// WithDefaultCredentialsFinder replaces google.FindDefaultCredentials.
func WithDefaultCredentialsFinder(find DefaultCredentialsFinder) ResolverOption {
	return func(r *Resolver) {
		r.findDefault = find
	}
}

// WithMetrics records resolution outcomes.
func WithMetrics(m *instrumentation.Metrics) ResolverOption {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// NewResolver creates a Resolver for the given settings.
func NewResolver(settings Settings, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		settings:    settings,
		findDefault: googleoauth.FindDefaultCredentials,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.exchanger == nil {
		r.exchanger = NewExchanger(
			WithTokenURL(settings.TokenURL),
			WithExchangeLogger(r.logger),
			WithExchangeMetrics(r.metrics),
		)
	}
	return r
}

// Mode returns the mode Resolve will use without contacting any service.
func (r *Resolver) Mode() (AuthMode, error) {
	return SelectMode(r.settings)
}

// Resolve produces a new credential. Nothing is cached between calls.
func (r *Resolver) Resolve(ctx context.Context) (*Resolution, error) {
	start := time.Now()

	mode, err := SelectMode(r.settings)
	if err != nil {
		r.record(ctx, "unknown", err, start)
		return nil, err
	}

	res, err := r.resolve(ctx, mode)
	r.record(ctx, string(mode), err, start)
	if err != nil {
		r.logger.Error("credential resolution failed", logging.AuthMode(string(mode)), logging.Err(err))
		return nil, err
	}

	for _, w := range res.Warnings {
		r.logger.Warn("credential resolution warning",
			logging.AuthMode(string(mode)),
			slog.String("code", w.Code),
			slog.String("message", w.Message))
	}
	return res, nil
}

func (r *Resolver) resolve(ctx context.Context, mode AuthMode) (*Resolution, error) {
	scopes := r.settings.scopes()

	switch mode {
	case ModeStaticKey:
		key, err := LoadServiceAccountKey(r.settings)
		if err != nil {
			return nil, err
		}
		cred, err := NewStaticKeyCredential(ctx, key, r.settings.Subject, scopes, r.settings.TokenURL)
		if err != nil {
			return nil, err
		}
		return &Resolution{Credential: cred}, nil

	case ModeKeylessDelegated:
		cred, err := NewKeylessDelegatedCredential(ctx, r.exchanger, r.settings.ServiceAccountEmail, r.settings.Subject, scopes)
		if err != nil {
			return nil, err
		}
		return &Resolution{Credential: cred}, nil

	case ModeAmbient:
		creds, err := r.findDefault(ctx, scopes...)
		if err != nil {
			return nil, &ConfigurationError{Mode: ModeAmbient, Reason: fmt.Sprintf("no default credentials: %v", err)}
		}
		cred, err := NewAmbientCredential(creds, scopes)
		if err != nil {
			return nil, &ConfigurationError{Mode: ModeAmbient, Reason: err.Error()}
		}
		res := &Resolution{Credential: cred}
		if r.settings.Subject != "" {
			res.Warnings = append(res.Warnings, Warning{
				Code:    WarningSubjectIgnored,
				Message: "impersonation subject ignored: ambient identity cannot impersonate",
			})
		}
		return res, nil

	default:
		return nil, &ConfigurationError{Reason: fmt.Sprintf("unsupported auth mode %q", mode)}
	}
}

func (r *Resolver) record(ctx context.Context, mode string, err error, start time.Time) {
	if r.metrics == nil {
		return
	}
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	r.metrics.RecordCredentialResolution(ctx, mode, status, time.Since(start))
}
