package google

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Sources reported in MalformedKeyError.
const (
	SourceCredentialsJSON   = "GOOGLE_CREDENTIALS"
	SourceCredentialsBase64 = "GOOGLE_CREDENTIALS_B64"
	SourcePrivateKey        = "GOOGLE_PRIVATE_KEY"
)

// ServiceAccountKey holds the fields of a service account key file that the
// broker uses.
type ServiceAccountKey struct {
	Type         string `json:"type"`
	ProjectID    string `json:"project_id"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	ClientEmail  string `json:"client_email"`
	TokenURI     string `json:"token_uri"`
}

// NormalizePrivateKey turns literal backslash-n sequences into line breaks and
// strips wrapping quotes left over from single-line environment variables.
func NormalizePrivateKey(key string) string {
	key = strings.TrimSpace(key)
	if len(key) >= 2 && key[0] == '"' && key[len(key)-1] == '"' {
		key = key[1 : len(key)-1]
	}
	key = strings.ReplaceAll(key, `\r\n`, "\n")
	key = strings.ReplaceAll(key, `\n`, "\n")
	return key
}

// ParseServiceAccountKey decodes a key file and normalizes its private key.
func ParseServiceAccountKey(data []byte, source string) (*ServiceAccountKey, error) {
	var key ServiceAccountKey
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, &MalformedKeyError{Source: source, Err: fmt.Errorf("invalid key file JSON: %w", err)}
	}
	key.PrivateKey = NormalizePrivateKey(key.PrivateKey)
	return &key, nil
}

// LoadServiceAccountKey builds the static key from whichever source the
// settings carry. Raw JSON wins over base64, which wins over a bare PEM key.
// The private key is checked to be a parseable RSA key.
func LoadServiceAccountKey(s Settings) (*ServiceAccountKey, error) {
	var (
		key    *ServiceAccountKey
		source string
		err    error
	)

	switch {
	case strings.TrimSpace(s.CredentialsJSON) != "":
		source = SourceCredentialsJSON
		key, err = ParseServiceAccountKey([]byte(s.CredentialsJSON), source)
	case strings.TrimSpace(s.CredentialsBase64) != "":
		source = SourceCredentialsBase64
		raw, decodeErr := base64.StdEncoding.DecodeString(strings.TrimSpace(s.CredentialsBase64))
		if decodeErr != nil {
			return nil, &MalformedKeyError{Source: source, Err: fmt.Errorf("invalid base64: %w", decodeErr)}
		}
		key, err = ParseServiceAccountKey(raw, source)
	case strings.TrimSpace(s.PrivateKey) != "":
		source = SourcePrivateKey
		key = &ServiceAccountKey{
			Type:        "service_account",
			ClientEmail: s.ServiceAccountEmail,
			PrivateKey:  NormalizePrivateKey(s.PrivateKey),
		}
	default:
		return nil, NewConfigurationError(ModeStaticKey, "key material")
	}
	if err != nil {
		return nil, err
	}

	var missing []string
	if key.ClientEmail == "" {
		missing = append(missing, "client_email")
	}
	if key.PrivateKey == "" {
		missing = append(missing, "private_key")
	}
	if len(missing) > 0 {
		return nil, NewConfigurationError(ModeStaticKey, missing...)
	}

	if _, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(key.PrivateKey)); err != nil {
		return nil, &MalformedKeyError{Source: source, Err: err}
	}

	return key, nil
}
