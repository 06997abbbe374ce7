package selectel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ContainerType is the access mode stored in X-Container-Meta-Type.
type ContainerType string

// Container types accepted by the service.
const (
	ContainerPrivate ContainerType = "private"
	ContainerPublic  ContainerType = "public"
	ContainerGallery ContainerType = "gallery"
)

// Container and account headers read from HEAD responses.
const (
	headerContainerType        = "X-Container-Meta-Type"
	headerContainerObjectCount = "X-Container-Object-Count"
	headerContainerBytesUsed   = "X-Container-Bytes-Used"
	headerAccountContainers    = "X-Account-Container-Count"
	headerAccountObjectCount   = "X-Account-Object-Count"
	headerAccountBytesUsed     = "X-Account-Bytes-Used"
)

// Container is one entry of a container listing.
type Container struct {
	Name  string        `json:"name"`
	Count int64         `json:"count"`
	Bytes int64         `json:"bytes"`
	Type  ContainerType `json:"type"`
}

// ContainerListing holds the names of the listed containers and, for
// FormatJSON, their details.
type ContainerListing struct {
	Names      []string
	Containers []Container
}

// ContainerInfo is the metadata returned by a container HEAD.
type ContainerInfo struct {
	Name        string
	ObjectCount int64
	BytesUsed   int64
	Type        ContainerType
}

// AccountInfo is the account summary returned by an account HEAD.
type AccountInfo struct {
	ContainerCount int64
	ObjectCount    int64
	BytesUsed      int64
}

// AccountInfo fetches the summary storage information of the account.
//
// The service is known to reject this request for many accounts whatever
// client sends it. Failures are returned unchanged so callers can decide how
// to degrade.
func (c *Client) AccountInfo(ctx context.Context) (*AccountInfo, error) {
	base, err := c.StorageAddress(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.doDiscard(ctx, &Request{Method: http.MethodHead, URL: base})
	if err != nil {
		return nil, err
	}

	info := &AccountInfo{}

	fields := []struct {
		header string
		dst    *int64
	}{
		{headerAccountContainers, &info.ContainerCount},
		{headerAccountObjectCount, &info.ObjectCount},
		{headerAccountBytesUsed, &info.BytesUsed},
	}

	for _, f := range fields {
		if *f.dst, err = headerInt(resp.Header, f.header); err != nil {
			return nil, err
		}
	}

	return info, nil
}

// ListContainers lists the containers of the account.
func (c *Client) ListContainers(ctx context.Context, opts ListOptions) (*ContainerListing, error) {
	q, err := opts.query()
	if err != nil {
		return nil, err
	}

	base, err := c.StorageAddress(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, &Request{Method: http.MethodGet, URL: base, Query: q})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("selectel: reading container listing: %w", err)
	}

	if opts.Format == FormatPlain {
		return &ContainerListing{Names: splitLines(string(body))}, nil
	}

	var containers []Container
	if err := json.Unmarshal(body, &containers); err != nil {
		return nil, fmt.Errorf("%w: decoding container listing: %w", ErrParse, err)
	}

	listing := &ContainerListing{
		Names:      make([]string, 0, len(containers)),
		Containers: containers,
	}

	for _, ct := range containers {
		listing.Names = append(listing.Names, ct.Name)
	}

	return listing, nil
}

// CreateContainer creates a container of the given type. An empty type
// creates a private container.
func (c *Client) CreateContainer(ctx context.Context, name string, typ ContainerType) error {
	if typ == "" {
		typ = ContainerPrivate
	}

	if err := checkArgs(validation.Errors{
		"container": required(name),
		"type":      validation.Validate(typ, validation.In(ContainerPrivate, ContainerPublic, ContainerGallery)),
	}); err != nil {
		return err
	}

	c.logger.Info("creating container",
		slog.String("container", name),
		slog.String("type", string(typ)),
	)

	header := make(http.Header)
	header.Set(headerContainerType, string(typ))

	_, err := c.doDiscard(ctx, &Request{
		Method: http.MethodPut,
		URL:    c.containerURL(name),
		Header: header,
	})

	return err
}

// ContainerInfo reads the object count, size and type of a container.
func (c *Client) ContainerInfo(ctx context.Context, name string) (*ContainerInfo, error) {
	if err := checkArgs(validation.Errors{"container": required(name)}); err != nil {
		return nil, err
	}

	base, err := c.StorageAddress(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.doDiscard(ctx, &Request{
		Method: http.MethodHead,
		URL:    base + "/" + encodePathSegments(name),
	})
	if err != nil {
		return nil, err
	}

	info := &ContainerInfo{
		Name: name,
		Type: ContainerType(resp.Header.Get(headerContainerType)),
	}

	if info.ObjectCount, err = headerInt(resp.Header, headerContainerObjectCount); err != nil {
		return nil, err
	}

	if info.BytesUsed, err = headerInt(resp.Header, headerContainerBytesUsed); err != nil {
		return nil, err
	}

	return info, nil
}

// DeleteContainer removes an empty container.
func (c *Client) DeleteContainer(ctx context.Context, name string) error {
	if err := checkArgs(validation.Errors{"container": required(name)}); err != nil {
		return err
	}

	c.logger.Info("deleting container", slog.String("container", name))

	_, err := c.doDiscard(ctx, &Request{Method: http.MethodDelete, URL: c.containerURL(name)})

	return err
}

func (c *Client) containerURL(name string) string {
	return c.storageURL + "/" + encodePathSegments(name)
}

// headerInt parses an integer response header. An absent header reads as zero.
func headerInt(h http.Header, key string) (int64, error) {
	raw := h.Get(key)
	if raw == "" {
		return 0, nil
	}

	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s header %q: %w", ErrParse, key, raw, err)
	}

	return n, nil
}
