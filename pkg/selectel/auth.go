package selectel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Auth exchange paths, relative to the API host.
const (
	pathAuthV1 = "/auth/v1.0"
	pathAuthV2 = "/v2.0/tokens"
	pathAuthV3 = "/v3/auth/tokens"
)

// AuthResult is the normalized outcome of a login exchange.
type AuthResult struct {
	Token    string
	ExpireAt time.Time
}

// Authenticator performs one protocol-specific login exchange. It does not
// retry and does not touch any cached state.
type Authenticator interface {
	Authenticate(ctx context.Context, hc *http.Client, ep Endpoints, creds Credentials) (AuthResult, error)
}

// NewAuthenticator returns the Authenticator for protocol p.
func NewAuthenticator(p Protocol) (Authenticator, error) {
	switch p {
	case ProtocolV1, ProtocolV2, ProtocolV3:
		return newAuthenticator(p, time.Now), nil
	default:
		return nil, fmt.Errorf("%w: unknown auth protocol %d", ErrConfig, int(p))
	}
}

// newAuthenticator maps a validated protocol to its implementation.
// now is read when a v1 response arrives to anchor its relative lifetime.
func newAuthenticator(p Protocol, now func() time.Time) Authenticator {
	switch p {
	case ProtocolV1:
		return authV1{now: now}
	case ProtocolV2:
		return authV2{}
	default:
		return authV3{}
	}
}

// authResponse is the raw result of an auth exchange. v3 needs both parts
// of the same response: the token travels in a header, the expiry in the body.
type authResponse struct {
	Header http.Header
	Body   []byte
}

// authExchange sends one auth-flavored request and reads the whole response.
// Transport failures and non-2xx statuses are reported as ErrAuth.
func authExchange(
	ctx context.Context, hc *http.Client, method, target string, header http.Header, body []byte,
) (*authResponse, error) {
	var reqBody io.Reader = http.NoBody
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %w", ErrAuth, err)
	}

	for key, values := range header {
		req.Header[key] = values
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrAuth, method, target, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", ErrAuth, err)
	}

	if !isSuccess(resp.StatusCode) {
		return nil, fmt.Errorf("%w: %w", ErrAuth, newAPIError(resp, respBody))
	}

	return &authResponse{Header: resp.Header, Body: respBody}, nil
}

// credentialHeaders are the raw user/key headers of v1 auth and the domain probe.
func credentialHeaders(creds Credentials) http.Header {
	h := make(http.Header)
	h.Set(headerAuthUser, creds.UserID)
	h.Set(headerAuthKey, creds.Password)

	return h
}

// authV1 is the legacy Swift auth: user and key in headers, token and its
// remaining lifetime in seconds back in headers.
type authV1 struct {
	now func() time.Time
}

func (a authV1) Authenticate(ctx context.Context, hc *http.Client, ep Endpoints, creds Credentials) (AuthResult, error) {
	resp, err := authExchange(ctx, hc, http.MethodGet, ep.APIURL(creds)+pathAuthV1, credentialHeaders(creds), nil)
	if err != nil {
		return AuthResult{}, err
	}

	token := resp.Header.Get(headerAuthToken)
	if token == "" {
		return AuthResult{}, fmt.Errorf("%w: missing %s header", ErrParse, headerAuthToken)
	}

	raw := resp.Header.Get(headerExpireToken)

	seconds, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return AuthResult{}, fmt.Errorf("%w: %s header %q: %w", ErrParse, headerExpireToken, raw, err)
	}

	return AuthResult{
		Token:    token,
		ExpireAt: a.now().Add(time.Duration(seconds) * time.Second),
	}, nil
}

type v2Request struct {
	Auth struct {
		PasswordCredentials struct {
			Username string `json:"username"`
			Password string `json:"password"`
		} `json:"passwordCredentials"`
	} `json:"auth"`
}

type v2Response struct {
	Access struct {
		Token struct {
			ID      string `json:"id"`
			Expires string `json:"expires"`
		} `json:"token"`
	} `json:"access"`
}

// authV2 is Keystone v2.0: password credentials in, access.token out.
type authV2 struct{}

func (authV2) Authenticate(ctx context.Context, hc *http.Client, ep Endpoints, creds Credentials) (AuthResult, error) {
	var reqBody v2Request
	reqBody.Auth.PasswordCredentials.Username = creds.UserID
	reqBody.Auth.PasswordCredentials.Password = creds.Password

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return AuthResult{}, fmt.Errorf("%w: marshaling v2 request: %w", ErrAuth, err)
	}

	resp, err := authExchange(ctx, hc, http.MethodPost, ep.APIURL(creds)+pathAuthV2, nil, bodyBytes)
	if err != nil {
		return AuthResult{}, err
	}

	var decoded v2Response
	if err := json.Unmarshal(resp.Body, &decoded); err != nil {
		return AuthResult{}, fmt.Errorf("%w: decoding v2 token response: %w", ErrParse, err)
	}

	if decoded.Access.Token.ID == "" {
		return AuthResult{}, fmt.Errorf("%w: missing access.token.id", ErrParse)
	}

	expireAt, err := parseExpiry("access.token.expires", decoded.Access.Token.Expires)
	if err != nil {
		return AuthResult{}, err
	}

	return AuthResult{Token: decoded.Access.Token.ID, ExpireAt: expireAt}, nil
}

type v3Request struct {
	Auth struct {
		Identity v3Identity `json:"identity"`
	} `json:"auth"`
}

type v3Identity struct {
	Methods  []string `json:"methods"`
	Password struct {
		User struct {
			ID       string `json:"id"`
			Password string `json:"password"`
		} `json:"user"`
	} `json:"password"`
}

type v3Response struct {
	Token struct {
		ExpiresAt string `json:"expires_at"`
	} `json:"token"`
}

// authV3 is Keystone v3 password identity. The token comes back in the
// X-Subject-Token header and its expiry in the JSON body.
type authV3 struct{}

func (authV3) Authenticate(ctx context.Context, hc *http.Client, ep Endpoints, creds Credentials) (AuthResult, error) {
	var reqBody v3Request
	reqBody.Auth.Identity.Methods = []string{"password"}
	reqBody.Auth.Identity.Password.User.ID = creds.UserID
	reqBody.Auth.Identity.Password.User.Password = creds.Password

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return AuthResult{}, fmt.Errorf("%w: marshaling v3 request: %w", ErrAuth, err)
	}

	resp, err := authExchange(ctx, hc, http.MethodPost, ep.APIURL(creds)+pathAuthV3, nil, bodyBytes)
	if err != nil {
		return AuthResult{}, err
	}

	token := resp.Header.Get(headerSubjectToken)
	if token == "" {
		return AuthResult{}, fmt.Errorf("%w: missing %s header", ErrParse, headerSubjectToken)
	}

	var decoded v3Response
	if err := json.Unmarshal(resp.Body, &decoded); err != nil {
		return AuthResult{}, fmt.Errorf("%w: decoding v3 token response: %w", ErrParse, err)
	}

	expireAt, err := parseExpiry("token.expires_at", decoded.Token.ExpiresAt)
	if err != nil {
		return AuthResult{}, err
	}

	return AuthResult{Token: token, ExpireAt: expireAt}, nil
}

// parseExpiry parses an ISO 8601 instant. Timestamps without a zone are UTC.
func parseExpiry(field, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("%w: missing %s", ErrParse, field)
	}

	t, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s %q: %w", ErrParse, field, raw, err)
	}

	return t, nil
}
