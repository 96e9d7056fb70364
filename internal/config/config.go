package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/teemow/meetingbroker/internal/booking"
	"github.com/teemow/meetingbroker/internal/google"
)

// DefaultPort is the REST listener port when PORT is unset.
const DefaultPort = 8080

// Environment variable names.
const (
	EnvCalendarID        = "CALENDAR_ID"
	EnvAuthMode          = "AUTH_MODE"
	EnvCredentials       = "GOOGLE_CREDENTIALS"
	EnvCredentialsBase64 = "GOOGLE_CREDENTIALS_B64"
	EnvPrivateKey        = "GOOGLE_PRIVATE_KEY"
	EnvTokenURL          = "GOOGLE_TOKEN_URL"
	EnvUseMeet           = "USE_MEET"
	EnvDefaultLocation   = "DEFAULT_LOCATION"
	EnvPort              = "PORT"
	EnvReadOnly          = "READ_ONLY"
)

// Aliases are checked in order; the first non-empty value wins.
var (
	serviceAccountEmailVars = []string{"GOOGLE_SERVICE_ACCOUNT_EMAIL", "DWD_SA_EMAIL", "SERVICE_ACCOUNT_EMAIL"}
	subjectVars             = []string{"GOOGLE_DELEGATED_USER", "IMPERSONATE_USER"}
)

// Settings is the broker configuration read once at startup.
type Settings struct {
	CalendarID string

	AuthMode            google.AuthMode
	CredentialsJSON     string
	CredentialsBase64   string
	ServiceAccountEmail string
	PrivateKey          string
	Subject             string
	TokenURL            string

	ConferencePolicy booking.ConferencePolicy
	DefaultLocation  string

	Port     int
	ReadOnly bool
}

// Load reads the given dotenv files (".env" when none are named) into the
// process environment and builds Settings from it. Missing files are ignored
// and variables already set in the environment take precedence over the files.
func Load(files ...string) (*Settings, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}
	return FromEnv()
}

// FromEnv builds Settings from the current environment without touching any
// dotenv file.
func FromEnv() (*Settings, error) {
	s := &Settings{
		CalendarID:          env(EnvCalendarID),
		CredentialsJSON:     env(EnvCredentials),
		CredentialsBase64:   env(EnvCredentialsBase64),
		ServiceAccountEmail: firstEnv(serviceAccountEmailVars...),
		PrivateKey:          env(EnvPrivateKey),
		Subject:             firstEnv(subjectVars...),
		TokenURL:            env(EnvTokenURL),
		DefaultLocation:     env(EnvDefaultLocation),
		Port:                DefaultPort,
		ReadOnly:            envBool(EnvReadOnly, false),
	}

	var errs []error

	mode, err := google.ParseAuthMode(env(EnvAuthMode))
	if err != nil {
		errs = append(errs, err)
	}
	s.AuthMode = mode

	policy, err := booking.ParseConferencePolicy(env(EnvUseMeet))
	if err != nil {
		errs = append(errs, fmt.Errorf("invalid %s: %w", EnvUseMeet, err))
	}
	s.ConferencePolicy = policy

	if v := env(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s %q: must be a number", EnvPort, v))
		} else {
			s.Port = port
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate reports settings the broker cannot start with, including
// authentication inputs that do not satisfy the selected mode.
func (s *Settings) Validate() error {
	if s.CalendarID == "" {
		return google.NewConfigurationError("", EnvCalendarID)
	}
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("invalid %s %d: must be between 1 and 65535", EnvPort, s.Port)
	}
	if _, err := google.SelectMode(s.Google()); err != nil {
		return err
	}
	return nil
}

// Google returns the credential settings for the resolver.
func (s *Settings) Google() google.Settings {
	return google.Settings{
		Mode:                s.AuthMode,
		CredentialsJSON:     s.CredentialsJSON,
		CredentialsBase64:   s.CredentialsBase64,
		ServiceAccountEmail: s.ServiceAccountEmail,
		PrivateKey:          s.PrivateKey,
		Subject:             s.Subject,
		TokenURL:            s.TokenURL,
	}
}

// Addr is the listen address for the REST server.
func (s *Settings) Addr() string {
	return ":" + strconv.Itoa(s.Port)
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if v := env(key); v != "" {
			return v
		}
	}
	return ""
}

func envBool(key string, def bool) bool {
	v := env(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
