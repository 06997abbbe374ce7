package selectel

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

// NumericDomain returns the storage shard number of the account. The first
// call probes the auth host with the raw credentials and caches the answer;
// later calls, and clients built with Options.NumericDomain, make no request.
func (c *Client) NumericDomain(ctx context.Context) (int, error) {
	if domain := c.cache.load().NumericDomain; domain != 0 {
		return domain, nil
	}

	ch := c.flight.DoChan(flightDomain, func() (any, error) {
		if domain := c.cache.load().NumericDomain; domain != 0 {
			return domain, nil
		}

		return c.resolveNumericDomain(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return 0, res.Err
		}

		return res.Val.(int), nil //nolint:forcetypeassert // flight always returns int
	case <-ctx.Done():
		return 0, fmt.Errorf("selectel: waiting for numeric domain: %w", ctx.Err())
	}
}

func (c *Client) resolveNumericDomain(ctx context.Context) (int, error) {
	probeURL := c.creds.Scheme() + "://" + c.endpoints.AuthHost + "/"

	resp, err := authExchange(ctx, c.httpClient, http.MethodGet, probeURL, credentialHeaders(c.creds), nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDomainResolution, err)
	}

	domain, err := ParseNumericDomain(resp.Header.Get(headerStorageURL))
	if err != nil {
		return 0, err
	}

	c.cache.setNumericDomain(domain)

	c.logger.Info("numeric domain resolved",
		slog.String("account", c.creds.AccountID),
		slog.Int("numeric_domain", domain),
	)

	return domain, nil
}

// ParseNumericDomain extracts the shard number from a storage URL such as
// "https://41812.selcdn.ru/v1/SEL_123": the leading dot-separated segment of
// the host, which must be all digits and greater than zero. The scheme is
// optional.
func ParseNumericDomain(storageURL string) (int, error) {
	raw := strings.TrimSpace(storageURL)
	if raw == "" {
		return 0, fmt.Errorf("%w: %w: missing %s header", ErrDomainResolution, ErrParse, headerStorageURL)
	}

	if _, rest, found := strings.Cut(raw, "://"); found {
		raw = rest
	}

	host, _, _ := strings.Cut(raw, "/")
	lead, _, _ := strings.Cut(host, ".")

	if lead == "" || strings.TrimLeft(lead, "0123456789") != "" {
		return 0, fmt.Errorf("%w: %w: no numeric domain in %q", ErrDomainResolution, ErrParse, storageURL)
	}

	domain, err := strconv.Atoi(lead)
	if err != nil || domain <= 0 {
		return 0, fmt.Errorf("%w: %w: no numeric domain in %q", ErrDomainResolution, ErrParse, storageURL)
	}

	return domain, nil
}

// StorageAddress returns the account URL on the shard host,
// scheme://<numericDomain>.<suffix>/v1/SEL_<account>, resolving the numeric
// domain first if needed.
func (c *Client) StorageAddress(ctx context.Context) (string, error) {
	domain, err := c.NumericDomain(ctx)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s://%d.%s/v1/SEL_%s",
		c.creds.Scheme(), domain, c.endpoints.StorageHostSuffix, c.creds.AccountID), nil
}
