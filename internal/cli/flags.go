package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/pacsops/dcmmove/internal/auth"
	"github.com/pacsops/dcmmove/internal/config"
	"github.com/pacsops/dcmmove/internal/dcm4chee"
	"github.com/pacsops/dcmmove/internal/logging"
)

// connFlags are the archive connection flags shared by the network commands.
// Config file values become the flag defaults, so flag > config > built-in.
type connFlags struct {
	baseURL        string
	aet            string
	timeoutSeconds int
	insecure       bool
}

func addConnFlags(cmd *cobra.Command, cfg *config.Config, f *connFlags) {
	cmd.Flags().StringVar(&f.baseURL, "base-url", cfg.BaseURL, "Archive base URL, e.g. https://pacs:8443")
	cmd.Flags().StringVar(&f.aet, "aet", cfg.AET, "Archive AE title, e.g. CUFVNAQUAA")
	cmd.Flags().IntVar(&f.timeoutSeconds, "timeout", cfg.TimeoutSeconds, "HTTP timeout in seconds")
	cmd.Flags().BoolVar(&f.insecure, "insecure", cfg.Insecure, "Skip TLS certificate verification")
}

// validate checks the connection flags and returns a usage error listing what
// is missing.
func (f *connFlags) validate() error {
	return requireFlags([]flagValue{
		{"base-url", f.baseURL},
		{"aet", f.aet},
	})
}

// client builds the archive client from the resolved connection flags.
func (f *connFlags) client(cmd *cobra.Command) (*dcm4chee.Client, error) {
	log := logging.FromContext(cmd.Context())
	return dcm4chee.NewClient(dcm4chee.Options{
		BaseURL:  f.baseURL,
		AET:      f.aet,
		Timeout:  secondsToTimeout(f.timeoutSeconds),
		Insecure: f.insecure,
		Logger:   logging.ComponentLogger(*log, "dcm4chee"),
	})
}

// authFlags are the credential flags shared by the network commands.
type authFlags struct {
	token         string
	tokenEndpoint string
	clientID      string
	clientSecret  string
	scope         string
}

func addAuthFlags(cmd *cobra.Command, cfg *config.Config, f *authFlags) {
	cmd.Flags().StringVar(&f.token, "token", cfg.Auth.Token, "Static bearer token")
	cmd.Flags().StringVar(&f.tokenEndpoint, "token-endpoint", cfg.Auth.TokenEndpoint, "OAuth2 token endpoint")
	cmd.Flags().StringVar(&f.clientID, "client-id", cfg.Auth.ClientID, "OAuth2 client_id")
	cmd.Flags().StringVar(&f.clientSecret, "client-secret", cfg.Auth.ClientSecret, "OAuth2 client_secret")
	cmd.Flags().StringVar(&f.scope, "scope", cfg.Auth.Scope, "OAuth2 scope")
}

// manager builds the credential manager. Providing neither a static token nor
// OAuth2 client credentials is a usage error with exit code 2.
func (f *authFlags) manager(conn *connFlags) (*auth.Manager, error) {
	if f.token == "" && f.tokenEndpoint == "" {
		return nil, &ExitError{
			Code:   2,
			Reason: "provide either --token or OAuth2 options (--token-endpoint, --client-id, --client-secret)",
		}
	}
	m, err := auth.NewManager(auth.Options{
		StaticToken:   f.token,
		TokenEndpoint: f.tokenEndpoint,
		ClientID:      f.clientID,
		ClientSecret:  f.clientSecret,
		Scope:         f.scope,
		Timeout:       secondsToTimeout(conn.timeoutSeconds),
		Insecure:      conn.insecure,
	})
	if err != nil {
		return nil, &ExitError{Code: 2, Reason: err.Error()}
	}
	return m, nil
}

// secondsToTimeout converts a whole-second flag value to a duration, flooring
// at one second so a zero flag cannot disable timeouts entirely.
func secondsToTimeout(seconds int) time.Duration {
	if seconds < 1 {
		seconds = 1
	}
	return time.Duration(seconds) * time.Second
}
