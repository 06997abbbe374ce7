package selectel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testUser      = "123_bob"
	testPassword  = "secret"
	testAccount   = "123"
	testAPIHost   = DefaultAPIHost
	testAuthHost  = DefaultAuthHost
	testShardHost = "41812.selcdn.ru"
	testShardURL  = "https://41812.selcdn.ru/v1/SEL_123"
)

// routeAll returns an http.Client that connects every request to the given
// handler, whatever host the URL names. This lets tests exercise the real
// api/auth/shard host names.
func routeAll(t *testing.T, h http.Handler) *http.Client {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	addr := srv.Listener.Addr().String()
	dialer := &net.Dialer{}

	return &http.Client{Transport: &http.Transport{
		DialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
			return dialer.DialContext(ctx, network, addr)
		},
	}}
}

// unreachable returns an http.Client whose connections always fail.
func unreachable() *http.Client {
	return &http.Client{Transport: &http.Transport{
		DialContext: func(context.Context, string, string) (net.Conn, error) {
			return nil, errors.New("connection refused")
		},
	}}
}

// fakeClock is a settable time source for expiry tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = t
}

// fakeStorage mimics the service: v3 auth on the API host, the numeric
// domain probe on the auth host, and everything else handed to storage.
type fakeStorage struct {
	t            *testing.T
	authCalls    atomic.Int32
	probeCalls   atomic.Int32
	storageCalls atomic.Int32
	expiresAt    string
	authDelay    time.Duration
	storage      http.HandlerFunc
}

func newFakeStorage(t *testing.T, storage http.HandlerFunc) *fakeStorage {
	t.Helper()

	return &fakeStorage{t: t, expiresAt: "2099-01-01T00:00:00Z", storage: storage}
}

func (f *fakeStorage) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Host == testAuthHost:
		f.probeCalls.Add(1)
		w.Header().Set("X-Storage-Url", testShardURL)
		w.WriteHeader(http.StatusNoContent)

	case r.Host == testAPIHost && r.URL.Path == pathAuthV3:
		n := f.authCalls.Add(1)

		if f.authDelay > 0 {
			time.Sleep(f.authDelay)
		}

		w.Header().Set("X-Subject-Token", fmt.Sprintf("token-%d", n))
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"token":{"expires_at":%q}}`, f.expiresAt)

	default:
		f.storageCalls.Add(1)

		if f.storage == nil {
			f.t.Errorf("unexpected storage request: %s %s%s", r.Method, r.Host, r.URL.Path)
			w.WriteHeader(http.StatusInternalServerError)

			return
		}

		f.storage(w, r)
	}
}

// newTestClient builds a plain-http client for testUser whose requests all
// land on h.
func newTestClient(t *testing.T, h http.Handler, opts Options) *Client {
	t.Helper()

	if opts.UserID == "" {
		opts.UserID = testUser
	}

	if opts.Password == "" {
		opts.Password = testPassword
	}

	opts.DisableTLS = true

	c, err := NewClient(opts, routeAll(t, h), slog.Default())
	require.NoError(t, err)

	return c
}

func TestNewClient_ConfigError(t *testing.T) {
	_, err := NewClient(Options{UserID: testUser}, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestNewClient_StorageURL(t *testing.T) {
	c, err := NewClient(Options{UserID: testUser, Password: testPassword}, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "https://api.selcdn.ru/v1/SEL_123", c.StorageURL())
	assert.Equal(t, ProtocolV3, c.Credentials().Protocol)
}

func TestNewClient_PreseededToken(t *testing.T) {
	expireAt := time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)

	c, err := NewClient(Options{
		UserID:        testUser,
		Password:      testPassword,
		Token:         "seeded",
		TokenExpireAt: expireAt,
		NumericDomain: 7,
	}, nil, nil)
	require.NoError(t, err)

	state := c.Token()
	assert.Equal(t, "seeded", state.Token)
	assert.True(t, state.ExpireAt.Equal(expireAt))
	assert.Equal(t, 7, state.NumericDomain)
}

func TestDispatch_AuthenticatesAndAttachesToken(t *testing.T) {
	fake := newFakeStorage(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "token-1", r.Header.Get("X-Auth-Token"))
		assert.Equal(t, "kept", r.Header.Get("X-Custom"))
		assert.Equal(t, defaultUserAgent, r.Header.Get("User-Agent"))
		assert.Equal(t, "a=1", r.URL.RawQuery)

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	c := newTestClient(t, fake, Options{})

	header := make(http.Header)
	header.Set("X-Custom", "kept")

	resp, err := c.Dispatch(context.Background(), &Request{
		Method: http.MethodGet,
		URL:    c.StorageURL(),
		Query:  map[string][]string{"a": {"1"}},
		Header: header,
	})
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(1), fake.authCalls.Load())
	assert.Equal(t, "token-1", c.Token().Token)
}

// countingAuthenticator wraps another Authenticator and counts exchanges.
type countingAuthenticator struct {
	next  Authenticator
	calls atomic.Int32
}

func (a *countingAuthenticator) Authenticate(
	ctx context.Context, hc *http.Client, ep Endpoints, creds Credentials,
) (AuthResult, error) {
	a.calls.Add(1)

	return a.next.Authenticate(ctx, hc, ep, creds)
}

func TestDispatch_UsesInjectedAuthenticator(t *testing.T) {
	fake := newFakeStorage(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "token-1", r.Header.Get("X-Auth-Token"))
		w.WriteHeader(http.StatusNoContent)
	})

	next, err := NewAuthenticator(ProtocolV3)
	require.NoError(t, err)

	auth := &countingAuthenticator{next: next}
	c := newTestClient(t, fake, Options{Protocol: ProtocolV1, Authenticator: auth})

	resp, err := c.Dispatch(context.Background(), &Request{Method: http.MethodHead, URL: c.StorageURL()})
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, int32(1), auth.calls.Load())
	assert.Equal(t, int32(1), fake.authCalls.Load(), "v3 exchange used despite v1 protocol")
}

func TestDispatch_ReturnsErrorStatusUnmodified(t *testing.T) {
	fake := newFakeStorage(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("missing"))
	})

	c := newTestClient(t, fake, Options{})

	resp, err := c.Dispatch(context.Background(), &Request{Method: http.MethodGet, URL: c.StorageURL()})
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "missing", string(body))
}

func TestDispatch_AuthFailurePropagates(t *testing.T) {
	var storageCalls atomic.Int32

	srv := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == pathAuthV3 {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("bad credentials"))

			return
		}

		storageCalls.Add(1)
		w.WriteHeader(http.StatusOK)
	})

	c := newTestClient(t, srv, Options{})

	_, err := c.Dispatch(context.Background(), &Request{Method: http.MethodGet, URL: c.StorageURL()})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuth)
	assert.ErrorIs(t, err, ErrUnauthorized)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "bad credentials", apiErr.Message)
	assert.Equal(t, int32(0), storageCalls.Load())
	assert.False(t, c.Token().Valid(time.Now()))
}

func TestDispatch_PreseededTokenSkipsAuth(t *testing.T) {
	fake := newFakeStorage(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "seeded", r.Header.Get("X-Auth-Token"))
		w.WriteHeader(http.StatusNoContent)
	})

	c := newTestClient(t, fake, Options{Token: "seeded"})

	resp, err := c.Dispatch(context.Background(), &Request{Method: http.MethodHead, URL: c.StorageURL()})
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, int32(0), fake.authCalls.Load())
}

func TestDispatch_ExpiredSeedReauthenticates(t *testing.T) {
	fake := newFakeStorage(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "token-1", r.Header.Get("X-Auth-Token"))
		w.WriteHeader(http.StatusNoContent)
	})

	c := newTestClient(t, fake, Options{
		Token:         "stale",
		TokenExpireAt: time.Now().Add(-time.Minute),
	})

	resp, err := c.Dispatch(context.Background(), &Request{Method: http.MethodHead, URL: c.StorageURL()})
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, int32(1), fake.authCalls.Load())
}

func TestDispatch_UnauthorizedDoesNotReauthenticate(t *testing.T) {
	fake := newFakeStorage(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	c := newTestClient(t, fake, Options{})

	for _i := 0; _i < 2; _i++ {
		resp, err := c.Dispatch(context.Background(), &Request{Method: http.MethodGet, URL: c.StorageURL()})
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	assert.Equal(t, int32(1), fake.authCalls.Load())
	assert.Equal(t, int32(2), fake.storageCalls.Load())
}

func TestDispatch_InvalidateForcesReauthentication(t *testing.T) {
	fake := newFakeStorage(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	c := newTestClient(t, fake, Options{})

	for _i := 0; _i < 2; _i++ {
		resp, err := c.Dispatch(context.Background(), &Request{Method: http.MethodHead, URL: c.StorageURL()})
		require.NoError(t, err)
		resp.Body.Close()
		c.Invalidate()
	}

	assert.Equal(t, int32(2), fake.authCalls.Load())
}

func TestDispatch_StreamsBody(t *testing.T) {
	fake := newFakeStorage(t, func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Equal(t, "chunk-1chunk-2", string(body))
		assert.Equal(t, int64(-1), r.ContentLength)

		w.WriteHeader(http.StatusCreated)
	})

	c := newTestClient(t, fake, Options{})

	pr, pw := io.Pipe()

	go func() {
		_, _ = pw.Write([]byte("chunk-1"))
		_, _ = pw.Write([]byte("chunk-2"))
		pw.Close()
	}()

	resp, err := c.Dispatch(context.Background(), &Request{
		Method: http.MethodPut,
		URL:    c.StorageURL() + "/pics/a.jpg",
		Body:   pr,
	})
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

// errReader fails on the first Read.
type errReader struct {
	err error
}

func (r errReader) Read([]byte) (int, error) {
	return 0, r.err
}

func TestDispatch_StreamErrorRejects(t *testing.T) {
	fake := newFakeStorage(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusCreated)
	})

	c := newTestClient(t, fake, Options{})

	boom := errors.New("disk on fire")

	_, err := c.Dispatch(context.Background(), &Request{
		Method: http.MethodPut,
		URL:    c.StorageURL() + "/pics/a.jpg",
		Body:   errReader{err: boom},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestDispatch_ConcurrentCallersShareOneLogin(t *testing.T) {
	fake := newFakeStorage(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	fake.authDelay = 50 * time.Millisecond

	c := newTestClient(t, fake, Options{})

	const callers = 8

	var wg sync.WaitGroup

	errs := make(chan error, callers)

	for _i := 0; _i < callers; _i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			resp, err := c.Dispatch(context.Background(), &Request{Method: http.MethodHead, URL: c.StorageURL()})
			if err != nil {
				errs <- err

				return
			}

			resp.Body.Close()
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	assert.Equal(t, int32(1), fake.authCalls.Load())
	assert.Equal(t, int32(callers), fake.storageCalls.Load())
}

func TestDispatch_CanceledWhileWaitingForLogin(t *testing.T) {
	fake := newFakeStorage(t, nil)
	fake.authDelay = 200 * time.Millisecond

	c := newTestClient(t, fake, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := c.Dispatch(ctx, &Request{Method: http.MethodHead, URL: c.StorageURL()})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, strings.Contains(err.Error(), "waiting for authentication"))
}
