package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"google.golang.org/api/iamcredentials/v1"
	"google.golang.org/api/option"

	"github.com/teemow/meetingbroker/internal/instrumentation"
	"github.com/teemow/meetingbroker/internal/logging"
)

const (
	// JWTBearerGrantType is the RFC 7523 grant type used for the exchange.
	JWTBearerGrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	// AssertionLifetime is the validity window written into signed assertions.
	AssertionLifetime = time.Hour

	// maxErrorBody caps how much of a failed token response is kept.
	maxErrorBody = 64 << 10
)

// AssertionClaims is the claim set signed on behalf of the signer identity.
type AssertionClaims struct {
	Issuer    string           `json:"iss"`
	Subject   string           `json:"sub"`
	Scope     string           `json:"scope"`
	Audience  string           `json:"aud"`
	IssuedAt  *jwt.NumericDate `json:"iat"`
	ExpiresAt *jwt.NumericDate `json:"exp"`
}

// NewAssertionClaims builds claims valid from now for AssertionLifetime.
func NewAssertionClaims(signer, subject string, scopes []string, audience string, now time.Time) AssertionClaims {
	return AssertionClaims{
		Issuer:    signer,
		Subject:   subject,
		Scope:     strings.Join(scopes, " "),
		Audience:  audience,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(AssertionLifetime)),
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Exchanger implements the keyless delegation path: IAM Credentials signs the
// assertion, then the token endpoint trades it for an access token.
type Exchanger struct {
	tokenURL   string
	httpClient *http.Client
	signerOpts []option.ClientOption
	now        func() time.Time
	logger     *slog.Logger
	metrics    *instrumentation.Metrics
}

// ExchangerOption customizes an Exchanger.
type ExchangerOption func(*Exchanger)

// WithTokenURL overrides the token endpoint (and assertion audience).
func WithTokenURL(tokenURL string) ExchangerOption {
	return func(e *Exchanger) {
		if tokenURL != "" {
			e.tokenURL = tokenURL
		}
	}
}

// WithExchangeHTTPClient sets the client used for the token endpoint call.
func WithExchangeHTTPClient(client *http.Client) ExchangerOption {
	return func(e *Exchanger) {
		e.httpClient = client
	}
}

// WithSignerOptions passes client options to the IAM Credentials service.
// Without options the service authenticates with Application Default Credentials.
func WithSignerOptions(opts ...option.ClientOption) ExchangerOption {
	return func(e *Exchanger) {
		e.signerOpts = append(e.signerOpts, opts...)
	}
}

// WithClock replaces time.Now for assertion timestamps.
func WithClock(now func() time.Time) ExchangerOption {
	return func(e *Exchanger) {
		e.now = now
	}
}

// WithExchangeLogger sets the logger.
func WithExchangeLogger(logger *slog.Logger) ExchangerOption {
	return func(e *Exchanger) {
		e.logger = logger
	}
}

// WithExchangeMetrics records signJwt calls as iamcredentials API operations.
func WithExchangeMetrics(m *instrumentation.Metrics) ExchangerOption {
	return func(e *Exchanger) {
		e.metrics = m
	}
}

// NewExchanger creates an Exchanger targeting DefaultTokenURL unless overridden.
func NewExchanger(opts ...ExchangerOption) *Exchanger {
	e := &Exchanger{
		tokenURL:   DefaultTokenURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TokenURL returns the endpoint assertions are exchanged at.
func (e *Exchanger) TokenURL() string {
	return e.tokenURL
}

// Exchange signs an assertion for subject as signer and trades it for an
// access token. Both steps are attempted once; any failure is returned and
// no partial token is produced.
func (e *Exchanger) Exchange(ctx context.Context, signer, subject string, scopes []string) (*oauth2.Token, error) {
	var missing []string
	if signer == "" {
		missing = append(missing, "signer service account email")
	}
	if subject == "" {
		missing = append(missing, "impersonation subject")
	}
	if len(missing) > 0 {
		return nil, NewConfigurationError(ModeKeylessDelegated, missing...)
	}

	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceIAMCredentials, instrumentation.OperationSignJWT)
	defer span.End()

	now := e.now()
	claims := NewAssertionClaims(signer, subject, scopes, e.tokenURL, now)

	signStart := time.Now()
	assertion, err := e.sign(ctx, signer, claims)
	signStatus := instrumentation.StatusSuccess
	if err != nil {
		signStatus = instrumentation.StatusError
	}
	e.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceIAMCredentials, instrumentation.OperationSignJWT, signStatus, time.Since(signStart))
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return nil, err
	}

	token, err := e.exchange(ctx, assertion, now)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return nil, err
	}

	e.logger.Debug("delegated token issued",
		logging.UserHash(subject),
		slog.String("token", logging.SanitizeToken(token.AccessToken)),
		slog.Time("expiry", token.Expiry))

	instrumentation.SetSpanSuccess(span)
	return token, nil
}

func (e *Exchanger) sign(ctx context.Context, signer string, claims AssertionClaims) (string, error) {
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", &SigningError{Signer: signer, Err: fmt.Errorf("failed to encode claims: %w", err)}
	}

	svc, err := iamcredentials.NewService(ctx, e.signerOpts...)
	if err != nil {
		return "", &SigningError{Signer: signer, Err: fmt.Errorf("failed to create IAM credentials client: %w", err)}
	}

	name := "projects/-/serviceAccounts/" + signer
	resp, err := svc.Projects.ServiceAccounts.SignJwt(name, &iamcredentials.SignJwtRequest{
		Payload: string(payload),
	}).Context(ctx).Do()
	if err != nil {
		return "", &SigningError{Signer: signer, Err: err}
	}
	if resp.SignedJwt == "" {
		return "", &SigningError{Signer: signer, Err: ErrEmptyAssertion}
	}

	return resp.SignedJwt, nil
}

func (e *Exchanger) exchange(ctx context.Context, assertion string, now time.Time) (*oauth2.Token, error) {
	data := url.Values{}
	data.Set("grant_type", JWTBearerGrantType)
	data.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, &TokenExchangeError{Err: fmt.Errorf("failed to create token request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, &TokenExchangeError{Err: fmt.Errorf("failed to call token endpoint: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return nil, &TokenExchangeError{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read token response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TokenExchangeError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, &TokenExchangeError{StatusCode: resp.StatusCode, Body: string(body), Err: fmt.Errorf("failed to decode token response: %w", err)}
	}
	if tr.AccessToken == "" {
		return nil, &TokenExchangeError{StatusCode: resp.StatusCode, Body: string(body), Err: fmt.Errorf("response has no access_token")}
	}

	tokenType := tr.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	lifetime := AssertionLifetime
	if tr.ExpiresIn > 0 {
		lifetime = time.Duration(tr.ExpiresIn) * time.Second
	}

	return &oauth2.Token{
		AccessToken: tr.AccessToken,
		TokenType:   tokenType,
		Expiry:      now.Add(lifetime),
	}, nil
}
