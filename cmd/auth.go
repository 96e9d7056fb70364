package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/meetingbroker/internal/google"
	"github.com/teemow/meetingbroker/internal/logging"
)

func newAuthCmd() *cobra.Command {
	var (
		f          commonFlags
		fetchToken bool
	)

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Check the configured Google credentials",
		Long: `Resolve credentials exactly as the server would and print the selected
authentication mode, the impersonated subject, the requested scopes and any
warnings. With --token an access token is fetched as well, proving the
credential works end to end; only a sanitized form of it is printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := f.newLogger(cmd)
			if err != nil {
				return err
			}
			settings, err := f.loadSettings(cmd)
			if err != nil {
				return err
			}

			resolver := google.NewResolver(settings.Google(), google.WithLogger(logger))
			fmt.Fprintf(cmd.OutOrStdout(), "calendar: %s\n", settings.CalendarID)
			return reportAuth(cmd.Context(), cmd.OutOrStdout(), resolver, fetchToken)
		},
	}

	f.register(cmd)
	cmd.Flags().BoolVar(&fetchToken, "token", false, "Fetch an access token and print it sanitized")

	return cmd
}

// reportAuth resolves a credential and writes a human readable summary to w.
func reportAuth(ctx context.Context, w io.Writer, resolver *google.Resolver, fetchToken bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	res, err := resolver.Resolve(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve credentials: %w", err)
	}
	cred := res.Credential

	subject := cred.Subject()
	if subject == "" {
		subject = "(none)"
	}
	fmt.Fprintf(w, "mode: %s\n", cred.Mode())
	fmt.Fprintf(w, "subject: %s\n", subject)
	fmt.Fprintf(w, "impersonates: %t\n", google.Impersonates(cred))
	fmt.Fprintf(w, "scopes: %s\n", strings.Join(cred.Scopes(), " "))
	for _, warning := range res.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}

	if !fetchToken {
		return nil
	}
	tok, err := cred.TokenSource().Token()
	if err != nil {
		return fmt.Errorf("failed to fetch access token: %w", err)
	}
	fmt.Fprintf(w, "token: %s\n", logging.SanitizeToken(tok.AccessToken))
	if !tok.Expiry.IsZero() {
		fmt.Fprintf(w, "expires: %s\n", tok.Expiry.UTC().Format(time.RFC3339))
	}
	return nil
}
