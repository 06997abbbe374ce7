package selectel

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/singleflight"
)

// Default endpoints of the Selectel Cloud Storage service.
const (
	DefaultAPIHost           = "api.selcdn.ru"
	DefaultAuthHost          = "auth.selcdn.ru"
	DefaultStorageHostSuffix = "selcdn.ru"
	defaultUserAgent         = "selstorage/0.1"
)

// Request and response headers shared by the auth protocols and the dispatcher.
const (
	headerAuthUser     = "X-Auth-User"
	headerAuthKey      = "X-Auth-Key"
	headerAuthToken    = "X-Auth-Token"
	headerExpireToken  = "X-Expire-Auth-Token"
	headerSubjectToken = "X-Subject-Token"
	headerStorageURL   = "X-Storage-Url"
)

// singleflight keys.
const (
	flightAuth   = "auth"
	flightDomain = "numeric-domain"
)

// Endpoints names the hosts a Client talks to. Empty fields take the defaults.
type Endpoints struct {
	// APIHost serves the auth exchanges and the object write paths.
	APIHost string
	// AuthHost answers the numeric domain probe.
	AuthHost string
	// StorageHostSuffix is appended to the numeric domain to form the shard host.
	StorageHostSuffix string
}

func (e Endpoints) withDefaults() Endpoints {
	if e.APIHost == "" {
		e.APIHost = DefaultAPIHost
	}

	if e.AuthHost == "" {
		e.AuthHost = DefaultAuthHost
	}

	if e.StorageHostSuffix == "" {
		e.StorageHostSuffix = DefaultStorageHostSuffix
	}

	return e
}

// APIURL returns the base URL of the API host, without trailing slash.
func (e Endpoints) APIURL(creds Credentials) string {
	return creds.Scheme() + "://" + e.APIHost
}

// Client talks to one Selectel storage account. It is safe for concurrent use.
type Client struct {
	creds      Credentials
	endpoints  Endpoints
	httpClient *http.Client
	auth       Authenticator
	logger     *slog.Logger
	userAgent  string

	// storageURL is the account URL on the API host, fixed at construction.
	storageURL string

	cache  tokenCache
	flight singleflight.Group

	// now is the clock used for token expiry checks. Tests override it.
	now func() time.Time
}

// NewClient validates opts and creates a Client. The session starts empty
// unless opts pre-seeds a token or numeric domain. A nil httpClient means
// http.DefaultClient; a nil logger means slog.Default().
func NewClient(opts Options, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	creds, err := NewCredentials(opts)
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	endpoints := opts.Endpoints.withDefaults()

	c := &Client{
		creds:      creds,
		endpoints:  endpoints,
		httpClient: httpClient,
		logger:     logger,
		userAgent:  userAgent,
		storageURL: endpoints.APIURL(creds) + "/v1/SEL_" + creds.AccountID,
		now:        time.Now,
	}

	c.auth = opts.Authenticator
	if c.auth == nil {
		c.auth = newAuthenticator(creds.Protocol, func() time.Time { return c.now() })
	}

	c.cache.state = TokenState{
		Token:         opts.Token,
		ExpireAt:      opts.TokenExpireAt,
		NumericDomain: opts.NumericDomain,
	}

	return c, nil
}

// Credentials returns the validated identity of the client.
func (c *Client) Credentials() Credentials {
	return c.creds
}

// StorageURL returns the account URL on the API host, used by uploads,
// deletes and container creation.
func (c *Client) StorageURL() string {
	return c.storageURL
}

// Token returns a snapshot of the current session.
func (c *Client) Token() TokenState {
	return c.cache.load()
}

// Invalidate drops the cached token. The next dispatch authenticates again.
func (c *Client) Invalidate() {
	c.cache.invalidate()
}

// Authenticate performs a login exchange unconditionally and stores the
// resulting token. Most callers never need it: Dispatch authenticates on
// demand.
func (c *Client) Authenticate(ctx context.Context) (TokenState, error) {
	c.logger.Info("authenticating", slog.Any("credentials", c.creds))

	res, err := c.auth.Authenticate(ctx, c.httpClient, c.endpoints, c.creds)
	if err != nil {
		return TokenState{}, err
	}

	state := c.cache.setToken(res.Token, res.ExpireAt)

	c.logger.Info("authenticated",
		slog.String("protocol", c.creds.Protocol.String()),
		slog.Time("expire_at", res.ExpireAt),
	)

	return state, nil
}

// ensureToken returns a usable token, authenticating when the cached one is
// missing or expired. Concurrent callers share a single login exchange.
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	if state := c.cache.load(); state.Valid(c.now()) {
		return state.Token, nil
	}

	ch := c.flight.DoChan(flightAuth, func() (any, error) {
		// A login that finished just before this flight started already
		// refreshed the cache.
		if state := c.cache.load(); state.Valid(c.now()) {
			return state.Token, nil
		}

		state, err := c.Authenticate(context.WithoutCancel(ctx))
		if err != nil {
			return "", err
		}

		return state.Token, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}

		return res.Val.(string), nil //nolint:forcetypeassert // flight always returns string
	case <-ctx.Done():
		return "", fmt.Errorf("selectel: waiting for authentication: %w", ctx.Err())
	}
}

// Request is a single outbound storage call.
type Request struct {
	Method string
	// URL is absolute; Query is merged into it.
	URL    string
	Query  url.Values
	Header http.Header
	// Body, when set, is streamed as the request body without buffering.
	Body io.Reader
	// ContentLength of Body; zero or negative means unknown (chunked).
	ContentLength int64
}

// Dispatch authenticates if needed, attaches the token and sends r. The
// response is returned as is, whatever its status; the caller closes the
// body. A 401 does not trigger re-authentication: only the cached expiry does.
func (c *Client) Dispatch(ctx context.Context, r *Request) (*http.Response, error) {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return nil, err
	}

	target := r.URL
	if len(r.Query) > 0 {
		target += "?" + r.Query.Encode()
	}

	body := r.Body
	if body == nil {
		body = http.NoBody
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("selectel: creating request: %w", err)
	}

	for key, values := range r.Header {
		req.Header[key] = append([]string(nil), values...)
	}

	req.Header.Set(headerAuthToken, token)
	req.Header.Set("User-Agent", c.userAgent)

	if r.Body != nil && r.ContentLength > 0 {
		req.ContentLength = r.ContentLength
	}

	c.logger.Debug("dispatching request",
		slog.String("method", r.Method),
		slog.String("url", r.URL),
		slog.Bool("streamed", r.Body != nil),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("selectel: %s %s: %w", r.Method, r.URL, err)
	}

	c.logger.Debug("response received",
		slog.String("method", r.Method),
		slog.String("url", r.URL),
		slog.Int("status", resp.StatusCode),
	)

	return resp, nil
}

// do dispatches r and turns a non-2xx response into an *APIError.
// On success the caller closes the response body.
func (c *Client) do(ctx context.Context, r *Request) (*http.Response, error) {
	resp, err := c.Dispatch(ctx, r)
	if err != nil {
		return nil, err
	}

	if isSuccess(resp.StatusCode) {
		return resp, nil
	}

	errBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()

	if readErr != nil {
		errBody = []byte("(failed to read response body)")
	}

	return nil, newAPIError(resp, errBody)
}

// doDiscard is do for calls whose response body carries nothing of interest.
func (c *Client) doDiscard(ctx context.Context, r *Request) (*http.Response, error) {
	resp, err := c.do(ctx, r)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// Drain body to reuse connection.
	if _, drainErr := io.Copy(io.Discard, resp.Body); drainErr != nil {
		return nil, fmt.Errorf("selectel: draining response body: %w", drainErr)
	}

	return resp, nil
}
