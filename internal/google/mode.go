package google

import (
	"fmt"
	"strings"
)

// AuthMode names the trust model behind a resolved credential.
type AuthMode string

const (
	// ModeAuto picks a mode from whichever settings are present.
	ModeAuto AuthMode = "auto"

	// ModeStaticKey signs assertions locally with service account key material,
	// optionally impersonating a user.
	ModeStaticKey AuthMode = "static-key"

	// ModeKeylessDelegated has IAM Credentials sign the assertion remotely and
	// impersonates a user without any private key in the process.
	ModeKeylessDelegated AuthMode = "keyless-delegated"

	// ModeAmbient uses Application Default Credentials and never impersonates.
	ModeAmbient AuthMode = "ambient"
)

// ParseAuthMode parses a configured mode name. The empty string means auto.
// Underscores are accepted in place of hyphens.
func ParseAuthMode(s string) (AuthMode, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-") {
	case "", "auto":
		return ModeAuto, nil
	case "static-key", "static", "key":
		return ModeStaticKey, nil
	case "keyless-delegated", "keyless", "delegated", "dwd":
		return ModeKeylessDelegated, nil
	case "ambient", "adc":
		return ModeAmbient, nil
	default:
		return "", &ConfigurationError{
			Reason: fmt.Sprintf("unknown auth mode %q, must be one of: auto, static-key, keyless-delegated, ambient", s),
		}
	}
}

// CanImpersonate reports whether credentials of this mode may act as a user.
func (m AuthMode) CanImpersonate() bool {
	return m == ModeStaticKey || m == ModeKeylessDelegated
}

// Settings is the typed credential configuration read once at startup.
type Settings struct {
	// Mode is the requested mode. Key material overrides it.
	Mode AuthMode

	// CredentialsJSON is a raw service account key file.
	CredentialsJSON string

	// CredentialsBase64 is a base64-encoded service account key file.
	CredentialsBase64 string

	// ServiceAccountEmail is the delegated signer identity. It also serves as
	// the issuer when PrivateKey is supplied without a key file.
	ServiceAccountEmail string

	// PrivateKey is a PEM private key supplied on its own, typically with
	// escaped newlines from a single-line environment variable.
	PrivateKey string

	// Subject is the user to impersonate.
	Subject string

	// Scopes default to DefaultScopes.
	Scopes []string

	// TokenURL defaults to DefaultTokenURL.
	TokenURL string
}

// HasKeyMaterial reports whether any static key source is configured.
func (s Settings) HasKeyMaterial() bool {
	return strings.TrimSpace(s.CredentialsJSON) != "" ||
		strings.TrimSpace(s.CredentialsBase64) != "" ||
		strings.TrimSpace(s.PrivateKey) != ""
}

func (s Settings) scopes() []string {
	if len(s.Scopes) == 0 {
		return DefaultScopes
	}
	return s.Scopes
}

func (s Settings) tokenURL() string {
	if s.TokenURL == "" {
		return DefaultTokenURL
	}
	return s.TokenURL
}

// SelectMode returns the mode a Resolver would use for these settings.
// It is a pure function of the settings: key material always wins, then a
// signer plus subject selects keyless delegation, otherwise ambient identity.
func SelectMode(s Settings) (AuthMode, error) {
	if s.HasKeyMaterial() {
		return ModeStaticKey, nil
	}

	switch s.Mode {
	case ModeStaticKey:
		return "", NewConfigurationError(ModeStaticKey, "GOOGLE_CREDENTIALS or GOOGLE_CREDENTIALS_B64 or GOOGLE_PRIVATE_KEY")
	case ModeKeylessDelegated:
		var missing []string
		if s.ServiceAccountEmail == "" {
			missing = append(missing, "signer service account email")
		}
		if s.Subject == "" {
			missing = append(missing, "impersonation subject")
		}
		if len(missing) > 0 {
			return "", NewConfigurationError(ModeKeylessDelegated, missing...)
		}
		return ModeKeylessDelegated, nil
	case ModeAmbient:
		return ModeAmbient, nil
	case "", ModeAuto:
		if s.ServiceAccountEmail != "" && s.Subject != "" {
			return ModeKeylessDelegated, nil
		}
		return ModeAmbient, nil
	default:
		return "", &ConfigurationError{Reason: fmt.Sprintf("unknown auth mode %q", s.Mode)}
	}
}
