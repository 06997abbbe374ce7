package selectel

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Protocol selects the auth exchange used to obtain a token.
type Protocol int

// Supported auth protocol versions.
const (
	ProtocolV1 Protocol = 1 // legacy Swift auth: GET auth/v1.0 with user/key headers
	ProtocolV2 Protocol = 2 // Keystone v2.0 password credentials
	ProtocolV3 Protocol = 3 // Keystone v3 password identity
)

// DefaultProtocol is used when Options.Protocol is zero.
const DefaultProtocol = ProtocolV3

func (p Protocol) String() string {
	return fmt.Sprintf("v%d", int(p))
}

// Options configures a Client. Only UserID and Password are required.
type Options struct {
	UserID   string
	Password string
	Protocol Protocol

	// DisableTLS switches every endpoint to plain http.
	DisableTLS bool

	// Token and TokenExpireAt pre-seed the session, e.g. from a saved token
	// file. A zero TokenExpireAt means the token never expires locally.
	Token         string
	TokenExpireAt time.Time

	// NumericDomain pins the storage shard. When non-zero, resolution is
	// skipped for the lifetime of the client.
	NumericDomain int

	Endpoints Endpoints
	UserAgent string

	// Authenticator replaces the exchange chosen by Protocol, e.g. one from
	// NewAuthenticator wrapped with extra behavior.
	Authenticator Authenticator
}

// Credentials is the validated, immutable identity of a Client.
type Credentials struct {
	UserID    string
	Password  string
	AccountID string
	Protocol  Protocol
	UseTLS    bool
}

// NewCredentials validates opts and derives the account id.
// Returns an error wrapping ErrConfig when user or password is missing or the
// protocol is unknown.
func NewCredentials(opts Options) (Credentials, error) {
	if opts.Protocol == 0 {
		opts.Protocol = DefaultProtocol
	}

	if err := validation.ValidateStruct(&opts,
		validation.Field(&opts.UserID, validation.Required),
		validation.Field(&opts.Password, validation.Required),
		validation.Field(&opts.Protocol, validation.In(ProtocolV1, ProtocolV2, ProtocolV3)),
		validation.Field(&opts.NumericDomain, validation.Min(0)),
	); err != nil {
		return Credentials{}, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	return Credentials{
		UserID:    opts.UserID,
		Password:  opts.Password,
		AccountID: AccountID(opts.UserID),
		Protocol:  opts.Protocol,
		UseTLS:    !opts.DisableTLS,
	}, nil
}

// AccountID returns the part of a user id before the first underscore, or the
// whole id when it has none ("123_bob" -> "123", "bob" -> "bob").
func AccountID(userID string) string {
	account, _, _ := strings.Cut(userID, "_")

	return account
}

// Scheme returns the URL scheme for all endpoints.
func (c Credentials) Scheme() string {
	if c.UseTLS {
		return "https"
	}

	return "http"
}

// LogValue keeps the password out of structured logs.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("user", c.UserID),
		slog.String("account", c.AccountID),
		slog.String("protocol", c.Protocol.String()),
		slog.Bool("tls", c.UseTLS),
	)
}
