package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/murka/selectel-storage-client/internal/tokenfile"
	"github.com/murka/selectel-storage-client/pkg/selectel"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authenticate and save the session",
		Long: `Authenticate with the configured user and password, resolve the
account's storage domain and save both for later commands. Commands log in
on their own when needed; login only does it eagerly.`,
		Args: cobra.NoArgs,
		RunE: runLogin,
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the saved session",
		Args:  cobra.NoArgs,
		RunE:  runLogout,
	}
}

// loginOutput is the JSON schema for `login --json`.
type loginOutput struct {
	User       string    `json:"user"`
	Protocol   string    `json:"protocol"`
	ExpiresAt  time.Time `json:"expires_at,omitzero"`
	StorageURL string    `json:"storage_url"`
}

func runLogin(cmd *cobra.Command, _ []string) error {
	return withSession(cmd.Context(), func(ctx context.Context, cc *CLIContext, c *selectel.Client) error {
		state, err := c.Authenticate(ctx)
		if err != nil {
			return err
		}

		storageURL, err := c.StorageAddress(ctx)
		if err != nil {
			return err
		}

		cc.Logger.Info("login successful",
			slog.String("user", cc.Cfg.User),
			slog.String("storage_url", storageURL),
		)

		if cc.Flags.JSON {
			return printJSON(cc.Out, loginOutput{
				User:       cc.Cfg.User,
				Protocol:   c.Credentials().Protocol.String(),
				ExpiresAt:  state.ExpireAt,
				StorageURL: storageURL,
			})
		}

		cc.Statusf("Logged in as %s (%s).\n", cc.Cfg.User, storageURL)

		if !state.ExpireAt.IsZero() {
			cc.Statusf("Token expires %s.\n", state.ExpireAt.Local().Format(time.RFC1123))
		}

		return nil
	})
}

func runLogout(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	if err := tokenfile.Remove(cc.Cfg.TokenPath); err != nil {
		return fmt.Errorf("logging out: %w", err)
	}

	cc.Logger.Info("logout successful", slog.String("path", cc.Cfg.TokenPath))
	cc.Statusf("Logged out.\n")

	return nil
}
