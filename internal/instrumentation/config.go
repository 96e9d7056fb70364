package instrumentation

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
)

// Label values shared by metrics and spans.
const (
	StatusSuccess = "success"
	StatusError   = "error"

	// Google services the broker calls.
	ServiceCalendar       = "calendar"
	ServiceIAMCredentials = "iamcredentials"

	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"
)

// Config configures the Provider.
type Config struct {
	ServiceName    string // default: meetingbroker
	ServiceVersion string

	// ServiceInstanceID defaults to the hostname. K8sNamespace and K8sPodName
	// are added to the resource when set.
	ServiceInstanceID string
	K8sNamespace      string
	K8sPodName        string

	// Enabled turns metrics and tracing on (INSTRUMENTATION_ENABLED, default true).
	Enabled bool

	// MetricsExporter is prometheus, otlp or stdout.
	MetricsExporter string

	// TracingExporter is otlp, stdout or none.
	TracingExporter string

	// OTLPEndpoint is host:port without a scheme. OTLPInsecure disables TLS;
	// spans carry calendar and booking ids, so keep it off outside development.
	OTLPEndpoint string
	OTLPInsecure bool

	// TraceSamplingRate is between 0 and 1 (default 0.1).
	TraceSamplingRate float64

	// DetailedLabels adds the attendee email domain to booking metrics.
	// Keep it off in production to bound label cardinality.
	DetailedLabels bool

	AuditLogging AuditLoggingConfig

	// Logger receives audit records and exporter warnings. Nil means
	// slog.Default() at NewProvider time.
	Logger *slog.Logger
}

// AuditLoggingConfig holds configuration for audit logging.
type AuditLoggingConfig struct {
	// Enabled determines if booking mutations are audit logged (default: true)
	Enabled bool

	// IncludePII logs full attendee emails instead of hashes (default: false).
	// Route audit output to access-controlled storage when enabling this.
	IncludePII bool
}

// DefaultConfig reads the instrumentation settings from the process environment.
func DefaultConfig() Config {
	return ConfigFromEnv(os.Getenv)
}

// ConfigFromEnv builds a Config from getenv. Unparseable booleans and floats
// fall back to their defaults.
func ConfigFromEnv(getenv func(string) string) Config {
	env := envReader(getenv)
	return Config{
		ServiceName:       env.str("OTEL_SERVICE_NAME", "meetingbroker"),
		ServiceVersion:    "unknown",
		ServiceInstanceID: env.str("OTEL_SERVICE_INSTANCE_ID", ""),
		K8sNamespace:      env.str("K8S_NAMESPACE", env.str("POD_NAMESPACE", "")),
		K8sPodName:        env.str("K8S_POD_NAME", env.str("HOSTNAME", "")),
		Enabled:           env.boolean("INSTRUMENTATION_ENABLED", true),
		MetricsExporter:   env.str("METRICS_EXPORTER", ExporterPrometheus),
		TracingExporter:   env.str("TRACING_EXPORTER", ExporterNone),
		OTLPEndpoint:      env.str("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTLPInsecure:      env.boolean("OTEL_EXPORTER_OTLP_INSECURE", false),
		TraceSamplingRate: env.float("OTEL_TRACES_SAMPLER_ARG", 0.1),
		DetailedLabels:    env.boolean("METRICS_DETAILED_LABELS", false),
		AuditLogging: AuditLoggingConfig{
			Enabled:    env.boolean("AUDIT_LOGGING_ENABLED", true),
			IncludePII: env.boolean("AUDIT_LOGGING_INCLUDE_PII", false),
		},
	}
}

// Validate checks exporter names, the sampling rate and that OTLP exporters
// have an endpoint.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service name is required")
	}
	if c.TraceSamplingRate < 0 || c.TraceSamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be between 0.0 and 1.0, got %f", c.TraceSamplingRate)
	}

	switch c.MetricsExporter {
	case "", ExporterPrometheus, ExporterOTLP, ExporterStdout:
	default:
		return fmt.Errorf("invalid metrics exporter %q, must be one of: prometheus, otlp, stdout", c.MetricsExporter)
	}
	switch c.TracingExporter {
	case "", ExporterOTLP, ExporterStdout, ExporterNone:
	default:
		return fmt.Errorf("invalid tracing exporter %q, must be one of: otlp, stdout, none", c.TracingExporter)
	}

	if c.OTLPEndpoint == "" && (c.TracingExporter == ExporterOTLP || c.MetricsExporter == ExporterOTLP) {
		return fmt.Errorf("OTLP endpoint is required when an OTLP exporter is selected")
	}
	return nil
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

type envReader func(string) string

func (e envReader) str(key, def string) string {
	if v := e(key); v != "" {
		return v
	}
	return def
}

func (e envReader) boolean(key string, def bool) bool {
	v, err := strconv.ParseBool(e(key))
	if err != nil {
		return def
	}
	return v
}

func (e envReader) float(key string, def float64) float64 {
	v, err := strconv.ParseFloat(e(key), 64)
	if err != nil {
		return def
	}
	return v
}
