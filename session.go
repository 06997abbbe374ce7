package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/murka/selectel-storage-client/internal/config"
	"github.com/murka/selectel-storage-client/internal/tokenfile"
	"github.com/murka/selectel-storage-client/pkg/selectel"
)

// newHTTPClient builds the transport for the storage client. Tests replace it
// to route every host to a local server.
var newHTTPClient = defaultHTTPClient

// defaultHTTPClient honors the configured timeouts. The overall timeout
// is off by default so large uploads are not cut short.
func defaultHTTPClient(cfg *config.Resolved) *http.Client {
	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout()}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	transport.TLSHandshakeTimeout = cfg.ConnectTimeout()

	return &http.Client{Transport: transport, Timeout: cfg.DataTimeout()}
}

// storageSession pairs a client with the token file it was seeded from.
type storageSession struct {
	client *selectel.Client
	cc     *CLIContext
}

// openSession builds a client for the configured user. The saved token is
// reused when it belongs to the same user and protocol and is not expired;
// the saved numeric domain only needs the same user.
func openSession(cc *CLIContext) (*storageSession, error) {
	if err := cc.Cfg.RequireCredentials(); err != nil {
		return nil, err
	}

	opts := cc.Cfg.ClientOptions()

	saved, err := tokenfile.Load(cc.Cfg.TokenPath)
	if err != nil {
		// A corrupt session file only costs a fresh login.
		cc.Logger.Warn("ignoring unreadable session file",
			slog.String("path", cc.Cfg.TokenPath),
			slog.String("error", err.Error()),
		)

		saved = nil
	}

	if saved.Usable(cc.Cfg.User, cc.Cfg.AuthVersion, time.Now()) {
		cc.Logger.Debug("reusing saved session", slog.String("path", cc.Cfg.TokenPath))

		opts.Token = saved.Token
		opts.TokenExpireAt = saved.ExpireAt
	}

	// The shard is fixed per account, so it outlives the token.
	if opts.NumericDomain == 0 && saved.BelongsTo(cc.Cfg.User) {
		opts.NumericDomain = saved.NumericDomain
	}

	client, err := selectel.NewClient(opts, newHTTPClient(cc.Cfg), cc.Logger)
	if err != nil {
		return nil, err
	}

	return &storageSession{client: client, cc: cc}, nil
}

// save persists the client's current session if it changed since it was
// loaded.
func (s *storageSession) save() error {
	state := s.client.Token()
	if state.Token == "" {
		return nil
	}

	saved, err := tokenfile.Load(s.cc.Cfg.TokenPath)
	if err == nil && saved != nil && saved.Token == state.Token && saved.NumericDomain == state.NumericDomain {
		return nil
	}

	return tokenfile.Save(s.cc.Cfg.TokenPath, &tokenfile.Session{
		User:          s.cc.Cfg.User,
		AuthVersion:   int(s.client.Credentials().Protocol),
		Token:         state.Token,
		ExpireAt:      state.ExpireAt,
		NumericDomain: state.NumericDomain,
	})
}

// withSession runs fn with a ready client and persists the session
// afterwards, even when fn fails after logging in. A rejected token is
// dropped so the next run logs in again.
func withSession(ctx context.Context, fn func(ctx context.Context, cc *CLIContext, c *selectel.Client) error) error {
	cc := mustCLIContext(ctx)

	s, err := openSession(cc)
	if err != nil {
		return err
	}

	runErr := fn(ctx, cc, s.client)

	if errors.Is(runErr, selectel.ErrUnauthorized) {
		cc.Logger.Info("token rejected, discarding saved session")

		if err := tokenfile.Remove(cc.Cfg.TokenPath); err != nil {
			cc.Logger.Warn("removing session file", slog.String("error", err.Error()))
		}

		return fmt.Errorf("%w (saved session discarded, retry to log in again)", runErr)
	}

	if err := s.save(); err != nil {
		cc.Logger.Warn("saving session", slog.String("error", err.Error()))
	}

	return runErr
}
