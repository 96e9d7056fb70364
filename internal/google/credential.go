package google

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	oauth2jwt "golang.org/x/oauth2/jwt"
)

// Credential is an authenticated, scope-bound handle for calling Google APIs.
// The set of implementations is closed: StaticKeyCredential,
// KeylessDelegatedCredential and AmbientCredential.
type Credential interface {
	// Mode reports the trust model that produced the credential.
	Mode() AuthMode

	// Scopes returns the OAuth scopes the credential was requested with.
	Scopes() []string

	// Subject returns the impersonated user, or "" when acting as the
	// service identity itself.
	Subject() string

	// TokenSource authorizes outgoing requests.
	TokenSource() oauth2.TokenSource

	sealed()
}

// Impersonates reports whether requests made with c act as a real user who
// can send calendar invitations.
func Impersonates(c Credential) bool {
	return c != nil && c.Mode().CanImpersonate() && c.Subject() != ""
}

// StaticKeyCredential signs assertions locally with a service account key.
type StaticKeyCredential struct {
	email   string
	subject string
	scopes  []string
	ts      oauth2.TokenSource
}

// NewStaticKeyCredential builds a credential from a parsed key. subject may be
// empty, in which case the service account acts as itself.
func NewStaticKeyCredential(ctx context.Context, key *ServiceAccountKey, subject string, scopes []string, tokenURL string) (*StaticKeyCredential, error) {
	if key == nil || key.ClientEmail == "" || key.PrivateKey == "" {
		return nil, NewConfigurationError(ModeStaticKey, "client_email and private_key")
	}
	if tokenURL == "" {
		tokenURL = key.TokenURI
	}
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}

	cfg := &oauth2jwt.Config{
		Email:        key.ClientEmail,
		PrivateKey:   []byte(key.PrivateKey),
		PrivateKeyID: key.PrivateKeyID,
		Scopes:       slices.Clone(scopes),
		TokenURL:     tokenURL,
		Subject:      subject,
	}

	return &StaticKeyCredential{
		email:   key.ClientEmail,
		subject: subject,
		scopes:  slices.Clone(scopes),
		ts:      cfg.TokenSource(ctx),
	}, nil
}

// Mode implements Credential.
func (c *StaticKeyCredential) Mode() AuthMode { return ModeStaticKey }

// Scopes implements Credential.
func (c *StaticKeyCredential) Scopes() []string { return slices.Clone(c.scopes) }

// Subject implements Credential.
func (c *StaticKeyCredential) Subject() string { return c.subject }

// TokenSource implements Credential.
func (c *StaticKeyCredential) TokenSource() oauth2.TokenSource { return c.ts }

// Email returns the service account the key belongs to.
func (c *StaticKeyCredential) Email() string { return c.email }

func (c *StaticKeyCredential) sealed() {}

// KeylessDelegatedCredential wraps a token obtained through Exchanger.
type KeylessDelegatedCredential struct {
	signer  string
	subject string
	scopes  []string
	token   *oauth2.Token
}

// NewKeylessDelegatedCredential performs the signing and exchange round-trips
// and returns a credential holding the resulting access token.
func NewKeylessDelegatedCredential(ctx context.Context, ex *Exchanger, signer, subject string, scopes []string) (*KeylessDelegatedCredential, error) {
	if ex == nil {
		return nil, &ConfigurationError{Mode: ModeKeylessDelegated, Reason: "no token exchanger configured"}
	}

	token, err := ex.Exchange(ctx, signer, subject, scopes)
	if err != nil {
		return nil, err
	}

	return &KeylessDelegatedCredential{
		signer:  signer,
		subject: subject,
		scopes:  slices.Clone(scopes),
		token:   token,
	}, nil
}

// Mode implements Credential.
func (c *KeylessDelegatedCredential) Mode() AuthMode { return ModeKeylessDelegated }

// Scopes implements Credential.
func (c *KeylessDelegatedCredential) Scopes() []string { return slices.Clone(c.scopes) }

// Subject implements Credential.
func (c *KeylessDelegatedCredential) Subject() string { return c.subject }

// TokenSource implements Credential. The token is never refreshed; callers
// resolve a new credential per operation.
func (c *KeylessDelegatedCredential) TokenSource() oauth2.TokenSource {
	return oauth2.StaticTokenSource(c.token)
}

// Signer returns the service account that signed the assertion.
func (c *KeylessDelegatedCredential) Signer() string { return c.signer }

func (c *KeylessDelegatedCredential) sealed() {}

// AmbientCredential uses the platform's default identity.
type AmbientCredential struct {
	scopes    []string
	projectID string
	ts        oauth2.TokenSource
}

// NewAmbientCredential wraps Application Default Credentials.
func NewAmbientCredential(creds *googleoauth.Credentials, scopes []string) (*AmbientCredential, error) {
	if creds == nil || creds.TokenSource == nil {
		return nil, fmt.Errorf("failed to find default credentials: no token source")
	}
	return &AmbientCredential{
		scopes:    slices.Clone(scopes),
		projectID: creds.ProjectID,
		ts:        creds.TokenSource,
	}, nil
}

// Mode implements Credential.
func (c *AmbientCredential) Mode() AuthMode { return ModeAmbient }

// Scopes implements Credential.
func (c *AmbientCredential) Scopes() []string { return slices.Clone(c.scopes) }

// Subject implements Credential. Ambient credentials never impersonate.
func (c *AmbientCredential) Subject() string { return "" }

// TokenSource implements Credential.
func (c *AmbientCredential) TokenSource() oauth2.TokenSource { return c.ts }

// ProjectID returns the project the default credentials belong to, if known.
func (c *AmbientCredential) ProjectID() string { return c.projectID }

func (c *AmbientCredential) sealed() {}

var (
	_ Credential = (*StaticKeyCredential)(nil)
	_ Credential = (*KeylessDelegatedCredential)(nil)
	_ Credential = (*AmbientCredential)(nil)
)
