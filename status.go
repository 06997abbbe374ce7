package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/murka/selectel-storage-client/internal/tokenfile"
)

// Session states for status reporting.
const (
	sessionStateMissing   = "missing"
	sessionStateExpired   = "expired"
	sessionStateValid     = "valid"
	sessionStateOtherUser = "other user"
	sessionStateInvalid   = "unreadable"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the configured user and saved session",
		Long: `Show the effective configuration and the state of the saved session.
Reads local files only; nothing is sent to the service.`,
		Args: cobra.NoArgs,
		RunE: runStatus,
	}
}

// statusOutput is the JSON schema for `status --json`.
type statusOutput struct {
	ConfigPath    string    `json:"config_path"`
	TokenPath     string    `json:"token_path"`
	User          string    `json:"user"`
	AuthVersion   int       `json:"auth_version"`
	TLS           bool      `json:"tls"`
	Session       string    `json:"session"`
	ExpiresAt     time.Time `json:"expires_at,omitzero"`
	NumericDomain int       `json:"numeric_domain,omitempty"`
}

// sessionState classifies a saved session for the configured user.
func sessionState(s *tokenfile.Session, user string, authVersion int, now time.Time) string {
	switch {
	case s == nil:
		return sessionStateMissing
	case s.User != user || s.AuthVersion != authVersion:
		return sessionStateOtherUser
	case s.Usable(user, authVersion, now):
		return sessionStateValid
	default:
		return sessionStateExpired
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	cfg := cc.Cfg

	out := statusOutput{
		ConfigPath:  cfg.ConfigPath,
		TokenPath:   cfg.TokenPath,
		User:        cfg.User,
		AuthVersion: cfg.AuthVersion,
		TLS:         cfg.SSL,
	}

	saved, err := tokenfile.Load(cfg.TokenPath)
	if err != nil {
		out.Session = sessionStateInvalid
	} else {
		out.Session = sessionState(saved, cfg.User, cfg.AuthVersion, time.Now())
	}

	if saved != nil {
		out.ExpiresAt = saved.ExpireAt
		out.NumericDomain = saved.NumericDomain
	}

	if cc.Flags.JSON {
		return printJSON(cc.Out, out)
	}

	user := out.User
	if user == "" {
		user = "(not set)"
	}

	fmt.Fprintf(cc.Out, "Config:   %s\n", out.ConfigPath)
	fmt.Fprintf(cc.Out, "User:     %s\n", user)
	fmt.Fprintf(cc.Out, "Protocol: v%d\n", out.AuthVersion)
	fmt.Fprintf(cc.Out, "Session:  %s\n", out.Session)

	if !out.ExpiresAt.IsZero() {
		fmt.Fprintf(cc.Out, "Expires:  %s\n", out.ExpiresAt.Local().Format(time.RFC1123))
	}

	if out.NumericDomain > 0 {
		fmt.Fprintf(cc.Out, "Domain:   %d\n", out.NumericDomain)
	}

	return nil
}
