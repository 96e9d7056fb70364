package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/teemow/meetingbroker/internal/config"
	"github.com/teemow/meetingbroker/internal/instrumentation"
	"github.com/teemow/meetingbroker/internal/logging"
	"github.com/teemow/meetingbroker/internal/server"
	"github.com/teemow/meetingbroker/internal/tools/booking_tools"
)

// Transports accepted by --transport.
const (
	transportHTTP  = "http"
	transportStdio = "stdio"
)

// MetricsConfig holds configuration for the metrics server
type MetricsConfig struct {
	// Enabled determines whether to start the metrics server (default: true)
	Enabled bool

	// Addr is the address for the metrics server (e.g., ":9090")
	Addr string
}

type serveFlags struct {
	commonFlags

	transport string
	port      int
	readOnly  bool
	metrics   MetricsConfig
}

func newServeCmd() *cobra.Command {
	var f serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the booking server",
		Long: `Start the booking broker.

Supports two transport types:
  - http: REST API, health probes and the streamable HTTP MCP endpoint at /mcp
    on PORT (default 8080)
  - stdio: MCP over standard input/output

Read-only mode (--read-only or READ_ONLY=true) rejects bookings, amendments and
cancellations on every surface.

Authentication is selected by AUTH_MODE (default auto):
  - static-key: GOOGLE_CREDENTIALS, GOOGLE_CREDENTIALS_B64 or
    GOOGLE_SERVICE_ACCOUNT_EMAIL + GOOGLE_PRIVATE_KEY
  - keyless-delegated: GOOGLE_SERVICE_ACCOUNT_EMAIL + GOOGLE_DELEGATED_USER,
    signed through the IAM Credentials API by the ambient identity
  - ambient: Application Default Credentials`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, f)
		},
	}

	f.register(cmd)
	return cmd
}

func (f *serveFlags) register(cmd *cobra.Command) {
	f.commonFlags.register(cmd)
	cmd.Flags().StringVar(&f.transport, "transport", transportHTTP, "Transport type: http or stdio")
	cmd.Flags().IntVar(&f.port, "port", config.DefaultPort, "REST API port. Overrides PORT.")
	cmd.Flags().BoolVar(&f.readOnly, "read-only", false, "Reject booking mutations. Overrides READ_ONLY.")
	cmd.Flags().BoolVar(&f.metrics.Enabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&f.metrics.Addr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")
}

// load reads the settings with --port and --read-only applied before
// validation, then picks up METRICS_* from the environment the dotenv files
// have populated.
func (f *serveFlags) load(cmd *cobra.Command) (*config.Settings, error) {
	settings, err := f.loadSettings(cmd, func(s *config.Settings) {
		if cmd.Flags().Changed("port") {
			s.Port = f.port
		}
		if cmd.Flags().Changed("read-only") {
			s.ReadOnly = f.readOnly
		}
	})
	if err != nil {
		return nil, err
	}
	loadMetricsEnvVars(cmd, &f.metrics)
	return settings, nil
}

func runServe(cmd *cobra.Command, f serveFlags) error {
	if f.transport != transportHTTP && f.transport != transportStdio {
		return fmt.Errorf("unsupported transport type: %s (supported: %s, %s)", f.transport, transportHTTP, transportStdio)
	}

	shutdownCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger, err := f.newLogger(cmd)
	if err != nil {
		return err
	}

	settings, err := f.load(cmd)
	if err != nil {
		return err
	}

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	instrConfig.Logger = logger
	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			logger.Error("instrumentation shutdown failed", logging.Err(err))
		}
	}()

	svc, resolver := newBookingService(settings, provider.Metrics(), logger)
	mode, err := resolver.Mode()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	serverContext := server.NewServerContext(shutdownCtx, svc,
		server.WithReadOnly(settings.ReadOnly),
		server.WithAuthMode(string(mode)),
		server.WithLogger(logger),
	)
	serverContext.SetMetrics(provider.Metrics())
	serverContext.SetAuditLogger(provider.AuditLogger())
	defer func() {
		_ = serverContext.Shutdown()
	}()

	mcpSrv, err := newMCPServer(serverContext)
	if err != nil {
		return err
	}

	logging.WithCalendar(logger, settings.CalendarID).Info("booking broker configured",
		logging.AuthMode(string(mode)),
		logging.Policy(string(settings.ConferencePolicy)),
		slog.Bool("read_only", settings.ReadOnly),
		slog.String("transport", f.transport))

	if f.transport == transportStdio {
		return runStdioServer(mcpSrv)
	}

	if f.metrics.Enabled && provider.Enabled() && provider.Gatherer() != nil {
		metricsServer, err := startMetricsServer(f.metrics, provider, logger)
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(ctx); err != nil {
				logger.Error("metrics server shutdown failed", logging.Err(err))
			}
		}()
	}

	return runHTTPServer(shutdownCtx, server.NewHTTPServer(serverContext, mcpSrv), settings.Addr(), logger)
}

// newMCPServer creates the MCP server with the booking tools registered.
func newMCPServer(sc *server.ServerContext) (*mcpserver.MCPServer, error) {
	mcpSrv := mcpserver.NewMCPServer("meetingbroker", version,
		mcpserver.WithToolCapabilities(true),
	)
	if err := booking_tools.RegisterBookingTools(mcpSrv, sc); err != nil {
		return nil, fmt.Errorf("failed to register booking tools: %w", err)
	}
	return mcpSrv, nil
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

func startMetricsServer(cfg MetricsConfig, provider *instrumentation.Provider, logger *slog.Logger) (*server.MetricsServer, error) {
	metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:                    cfg.Addr,
		InstrumentationProvider: provider,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics server: %w", err)
	}

	// Use ready channel to confirm metrics server started successfully
	metricsReady := make(chan struct{})
	metricsErr := make(chan error, 1)
	go func() {
		if err := metricsServer.StartWithReadySignal(metricsReady); err != nil && !errors.Is(err, http.ErrServerClosed) {
			metricsErr <- err
		}
		close(metricsErr)
	}()

	select {
	case <-metricsReady:
		logger.Info("metrics server started", slog.String("addr", metricsServer.Addr()))
		return metricsServer, nil
	case err := <-metricsErr:
		return nil, fmt.Errorf("metrics server failed to start: %w", err)
	case <-time.After(5 * time.Second):
		return nil, fmt.Errorf("metrics server startup timed out")
	}
}

func runHTTPServer(ctx context.Context, httpServer *server.HTTPServer, addr string, logger *slog.Logger) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpServer.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
	}

	logger.Info("HTTP server gracefully stopped")
	return nil
}

// loadMetricsEnvVars applies METRICS_ENABLED and METRICS_ADDR when the
// matching flag was not set explicitly.
func loadMetricsEnvVars(cmd *cobra.Command, cfg *MetricsConfig) {
	if !cmd.Flags().Changed("metrics-enabled") {
		switch os.Getenv("METRICS_ENABLED") {
		case "true":
			cfg.Enabled = true
		case "false":
			cfg.Enabled = false
		}
	}
	if !cmd.Flags().Changed("metrics-addr") {
		if addr := os.Getenv("METRICS_ADDR"); addr != "" {
			cfg.Addr = addr
		}
	}
}
