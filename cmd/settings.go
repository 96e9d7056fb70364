package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/teemow/meetingbroker/internal/booking"
	"github.com/teemow/meetingbroker/internal/calendar"
	"github.com/teemow/meetingbroker/internal/config"
	"github.com/teemow/meetingbroker/internal/google"
	"github.com/teemow/meetingbroker/internal/instrumentation"
	"github.com/teemow/meetingbroker/internal/logging"
)

// commonFlags are shared by every command that talks to Google.
type commonFlags struct {
	envFiles   []string
	calendarID string
	authMode   string
	logFormat  string
	debug      bool
}

func (f *commonFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.envFiles, "env-file", nil, "Dotenv files to load (default: .env). Variables already in the environment win.")
	cmd.Flags().StringVar(&f.calendarID, "calendar-id", "", "Calendar to book on. Overrides CALENDAR_ID.")
	cmd.Flags().StringVar(&f.authMode, "auth-mode", "", "Authentication mode: auto, static-key, keyless-delegated or ambient. Overrides AUTH_MODE.")
	cmd.Flags().StringVar(&f.logFormat, "log-format", logging.FormatText, "Log format: text or json")
	cmd.Flags().BoolVar(&f.debug, "debug", false, "Enable debug logging")
}

// newLogger builds the process logger and installs it as the slog default so
// libraries logging through slog.Default() share the format.
func (f *commonFlags) newLogger(cmd *cobra.Command) (*slog.Logger, error) {
	logger, err := logging.New(logging.Options{
		Format: f.logFormat,
		Debug:  f.debug,
		Writer: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}

// loadSettings reads dotenv files and the environment, applies explicitly set
// flags and any command-specific overrides on top and validates the result.
func (f *commonFlags) loadSettings(cmd *cobra.Command, overrides ...func(*config.Settings)) (*config.Settings, error) {
	settings, err := config.Load(f.envFiles...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := f.apply(cmd, settings); err != nil {
		return nil, err
	}
	for _, override := range overrides {
		override(settings)
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return settings, nil
}

func (f *commonFlags) apply(cmd *cobra.Command, settings *config.Settings) error {
	if cmd.Flags().Changed("calendar-id") {
		settings.CalendarID = f.calendarID
	}
	if cmd.Flags().Changed("auth-mode") {
		mode, err := google.ParseAuthMode(f.authMode)
		if err != nil {
			return err
		}
		settings.AuthMode = mode
	}
	return nil
}

// newBookingService wires the credential resolver, the calendar dialer and
// the booking core together.
func newBookingService(settings *config.Settings, metrics *instrumentation.Metrics, logger *slog.Logger) (*booking.Service, *google.Resolver) {
	resolver := google.NewResolver(settings.Google(),
		google.WithMetrics(metrics),
		google.WithLogger(logger),
	)
	dialer := calendar.NewDialer(settings.CalendarID, metrics)

	svc := booking.NewService(booking.NewConnector(resolver, dialer), booking.Config{
		Policy:          settings.ConferencePolicy,
		DefaultLocation: settings.DefaultLocation,
		Metrics:         metrics,
		Logger:          logger,
	})
	return svc, resolver
}
