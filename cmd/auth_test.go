package cmd

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"

	"github.com/teemow/meetingbroker/internal/google"
)

func fakeDefaultCredentials(token *oauth2.Token) google.DefaultCredentialsFinder {
	return func(ctx context.Context, scopes ...string) (*googleoauth.Credentials, error) {
		return &googleoauth.Credentials{TokenSource: oauth2.StaticTokenSource(token)}, nil
	}
}

func TestReportAuth_Ambient(t *testing.T) {
	expiry := time.Date(2025, 3, 1, 11, 0, 0, 0, time.UTC)
	resolver := google.NewResolver(
		google.Settings{Mode: google.ModeAmbient, Subject: "owner@example.com"},
		google.WithDefaultCredentialsFinder(fakeDefaultCredentials(&oauth2.Token{AccessToken: "ya29.secret-value", Expiry: expiry})),
		google.WithLogger(discardLogger()),
	)

	var out bytes.Buffer
	require.NoError(t, reportAuth(context.Background(), &out, resolver, true))

	got := out.String()
	assert.Contains(t, got, "mode: ambient\n")
	assert.Contains(t, got, "subject: (none)\n")
	assert.Contains(t, got, "impersonates: false\n")
	assert.Contains(t, got, "scopes: "+google.CalendarScope+"\n")
	assert.Contains(t, got, "warning: "+google.WarningSubjectIgnored+": ")
	assert.Contains(t, got, "token: [token:17 chars]\n")
	assert.Contains(t, got, "expires: 2025-03-01T11:00:00Z\n")
	assert.NotContains(t, got, "secret-value")
}

func TestReportAuth_WithoutToken(t *testing.T) {
	resolver := google.NewResolver(
		google.Settings{Mode: google.ModeAmbient},
		google.WithDefaultCredentialsFinder(fakeDefaultCredentials(&oauth2.Token{AccessToken: "ya29.x"})),
		google.WithLogger(discardLogger()),
	)

	var out bytes.Buffer
	require.NoError(t, reportAuth(context.Background(), &out, resolver, false))
	assert.NotContains(t, out.String(), "token:")
	assert.NotContains(t, out.String(), "warning:")
}

func TestReportAuth_ResolutionFails(t *testing.T) {
	resolver := google.NewResolver(
		google.Settings{Mode: google.ModeAmbient},
		google.WithDefaultCredentialsFinder(func(ctx context.Context, scopes ...string) (*googleoauth.Credentials, error) {
			return nil, errors.New("metadata server unreachable")
		}),
		google.WithLogger(discardLogger()),
	)

	var out bytes.Buffer
	err := reportAuth(context.Background(), &out, resolver, false)
	require.Error(t, err)

	var cfgErr *google.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
	assert.Empty(t, out.String())
}
