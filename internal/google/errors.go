package google

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyAssertion is wrapped by SigningError when the signing service
// answered successfully but returned no signed JWT.
var ErrEmptyAssertion = errors.New("signing service returned no signed assertion")

// ConfigurationError reports missing or contradictory authentication settings.
type ConfigurationError struct {
	Mode    AuthMode // Mode being configured, empty when selection itself failed
	Missing []string // Settings that were required but absent
	Reason  string   // Free-form explanation when Missing does not cover it
}

// Error implements the error interface
func (e *ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString("credential configuration error")
	if e.Mode != "" {
		fmt.Fprintf(&b, " for mode %s", e.Mode)
	}
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, ": missing %s", strings.Join(e.Missing, ", "))
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	}
	return b.String()
}

// NewConfigurationError creates a ConfigurationError listing missing settings.
func NewConfigurationError(mode AuthMode, missing ...string) *ConfigurationError {
	return &ConfigurationError{Mode: mode, Missing: missing}
}

// MalformedKeyError reports key material that could not be decoded or parsed,
// even after newline normalization.
type MalformedKeyError struct {
	Source string // Where the key came from (GOOGLE_CREDENTIALS, GOOGLE_PRIVATE_KEY, ...)
	Err    error
}

// Error implements the error interface
func (e *MalformedKeyError) Error() string {
	return fmt.Sprintf("malformed key material in %s: %v", e.Source, e.Err)
}

// Unwrap returns the underlying parse error
func (e *MalformedKeyError) Unwrap() error {
	return e.Err
}

// SigningError reports a failed or empty remote JWT signing call.
type SigningError struct {
	Signer string
	Err    error
}

// Error implements the error interface
func (e *SigningError) Error() string {
	return fmt.Sprintf("failed to sign assertion as %s: %v", e.Signer, e.Err)
}

// Unwrap returns the underlying signing failure
func (e *SigningError) Unwrap() error {
	return e.Err
}

// TokenExchangeError reports a non-success answer from the token endpoint.
// StatusCode and Body are the upstream values, kept verbatim for diagnosis.
type TokenExchangeError struct {
	StatusCode int
	Body       string
	Err        error
}

// Error implements the error interface
func (e *TokenExchangeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("token exchange failed with status %d: %v: %s", e.StatusCode, e.Err, e.Body)
	}
	return fmt.Sprintf("token exchange failed with status %d: %s", e.StatusCode, e.Body)
}

// Unwrap returns the underlying transport or decode error, if any
func (e *TokenExchangeError) Unwrap() error {
	return e.Err
}
