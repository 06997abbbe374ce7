package selectel

import (
	"sync"
	"time"
)

// TokenState is the mutable session of a Client: the current token, the
// instant it expires and the resolved storage shard. Zero values mean absent.
type TokenState struct {
	Token         string
	ExpireAt      time.Time
	NumericDomain int
}

// Valid reports whether the token can be used at now: a token is present and
// either has no expiry or expires strictly after now.
func (s TokenState) Valid(now time.Time) bool {
	if s.Token == "" {
		return false
	}

	return s.ExpireAt.IsZero() || s.ExpireAt.After(now)
}

// tokenCache owns the TokenState of one Client. The state is replaced
// wholesale under mu; readers get copies.
type tokenCache struct {
	mu    sync.Mutex
	state TokenState
}

func (c *tokenCache) load() TokenState {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

func (c *tokenCache) valid(now time.Time) bool {
	return c.load().Valid(now)
}

// setToken replaces the token and expiry, keeping the numeric domain.
func (c *tokenCache) setToken(token string, expireAt time.Time) TokenState {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = TokenState{
		Token:         token,
		ExpireAt:      expireAt,
		NumericDomain: c.state.NumericDomain,
	}

	return c.state
}

// setNumericDomain replaces the numeric domain, keeping the token.
func (c *tokenCache) setNumericDomain(domain int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = TokenState{
		Token:         c.state.Token,
		ExpireAt:      c.state.ExpireAt,
		NumericDomain: domain,
	}
}

// invalidate clears the token so the next dispatch authenticates again.
func (c *tokenCache) invalidate() {
	c.setToken("", time.Time{})
}
