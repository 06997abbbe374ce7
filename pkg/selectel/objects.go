package selectel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Object upload headers.
const (
	headerDeleteAt    = "X-Delete-At"
	headerDeleteAfter = "X-Delete-After"
	headerETag        = "Etag"
	headerMetaPrefix  = "X-Object-Meta-"
)

// ArchiveFormat is the value of the extract-archive query parameter.
type ArchiveFormat string

// Archive formats the service can expand.
const (
	ArchiveTar    ArchiveFormat = "tar"
	ArchiveTarGz  ArchiveFormat = "tar.gz"
	ArchiveGzip   ArchiveFormat = "gzip"
	ArchiveTarBz2 ArchiveFormat = "tar.bz2"
)

// Object is one entry of a JSON object listing. Pseudo-directories produced
// by a delimiter listing have Dir set and only Name filled.
type Object struct {
	Name         string
	Hash         string
	Bytes        int64
	ContentType  string
	LastModified time.Time
	Dir          bool
}

type objectResponse struct {
	Name         string `json:"name"`
	Hash         string `json:"hash"`
	Bytes        int64  `json:"bytes"`
	ContentType  string `json:"content_type"`
	LastModified string `json:"last_modified"`
	Subdir       string `json:"subdir"`
}

// toObject normalizes a listing entry. Unparseable timestamps become zero.
func (o *objectResponse) toObject(logger *slog.Logger) Object {
	if o.Subdir != "" {
		return Object{Name: o.Subdir, Dir: true}
	}

	obj := Object{
		Name:        o.Name,
		Hash:        o.Hash,
		Bytes:       o.Bytes,
		ContentType: o.ContentType,
	}

	if o.LastModified != "" {
		t, err := dateparse.ParseIn(o.LastModified, time.UTC)
		if err != nil {
			logger.Warn("invalid last_modified in listing, using zero time",
				slog.String("name", o.Name),
				slog.String("raw", o.LastModified),
			)
		}

		obj.LastModified = t
	}

	return obj
}

// FileListing holds the names of the listed objects and, for FormatJSON,
// their details.
type FileListing struct {
	Names   []string
	Objects []Object
}

// UploadOptions tunes an object upload. Zero fields are not sent.
type UploadOptions struct {
	// DeleteAt schedules removal at an absolute instant.
	DeleteAt time.Time
	// DeleteAfter schedules removal relative to the upload. It is sent in
	// whole seconds, rounded up so a sub-second value never becomes zero.
	DeleteAfter time.Duration
	// ETag is the hex MD5 of the content, checked by the server.
	ETag        string
	ContentType string
	Meta        map[string]string
	// ContentLength avoids chunked transfer encoding when known.
	ContentLength int64
}

func (o UploadOptions) header() http.Header {
	h := make(http.Header)

	if !o.DeleteAt.IsZero() {
		h.Set(headerDeleteAt, strconv.FormatInt(o.DeleteAt.Unix(), 10))
	}

	if o.DeleteAfter > 0 {
		seconds := (o.DeleteAfter + time.Second - 1) / time.Second
		h.Set(headerDeleteAfter, strconv.FormatInt(int64(seconds), 10))
	}

	if o.ETag != "" {
		h.Set(headerETag, o.ETag)
	}

	if o.ContentType != "" {
		h.Set("Content-Type", o.ContentType)
	}

	for key, value := range o.Meta {
		h.Set(headerMetaPrefix+key, value)
	}

	return h
}

// BulkResult is the JSON report of a bulk delete or archive extraction.
type BulkResult struct {
	Deleted  int
	NotFound int
	Created  int
	Status   string
	// Errors pairs an object path with the status it failed with.
	Errors [][]string
}

type bulkResponse struct {
	Deleted  int        `json:"Number Deleted"`       //nolint:tagliatelle // Swift bulk middleware key
	NotFound int        `json:"Number Not Found"`     //nolint:tagliatelle // Swift bulk middleware key
	Created  int        `json:"Number Files Created"` //nolint:tagliatelle // Swift bulk middleware key
	Status   string     `json:"Response Status"`      //nolint:tagliatelle // Swift bulk middleware key
	Errors   [][]string `json:"Errors"`               //nolint:tagliatelle // Swift bulk middleware key
}

// ListFiles lists the objects of a container.
func (c *Client) ListFiles(ctx context.Context, container string, opts ListOptions) (*FileListing, error) {
	if err := checkArgs(validation.Errors{"container": required(container)}); err != nil {
		return nil, err
	}

	q, err := opts.query()
	if err != nil {
		return nil, err
	}

	base, err := c.StorageAddress(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, &Request{
		Method: http.MethodGet,
		URL:    base + "/" + encodePathSegments(container),
		Query:  q,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("selectel: reading object listing: %w", err)
	}

	if opts.Format == FormatPlain {
		return &FileListing{Names: splitLines(string(body))}, nil
	}

	var entries []objectResponse
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("%w: decoding object listing: %w", ErrParse, err)
	}

	listing := &FileListing{
		Names:   make([]string, 0, len(entries)),
		Objects: make([]Object, 0, len(entries)),
	}

	for i := range entries {
		obj := entries[i].toObject(c.logger)
		listing.Names = append(listing.Names, obj.Name)
		listing.Objects = append(listing.Objects, obj)
	}

	return listing, nil
}

// UploadFile streams r into container/name. The reader is consumed once and
// never rewound, so a failed upload must be retried by the caller with a
// fresh reader.
func (c *Client) UploadFile(ctx context.Context, container, name string, r io.Reader, opts UploadOptions) error {
	if err := checkArgs(validation.Errors{
		"container": required(container),
		"name":      required(name),
		"body":      validation.Validate(r, validation.NotNil),
	}); err != nil {
		return err
	}

	c.logger.Info("uploading object",
		slog.String("container", container),
		slog.String("name", name),
		slog.Int64("size", opts.ContentLength),
	)

	_, err := c.doDiscard(ctx, &Request{
		Method:        http.MethodPut,
		URL:           c.objectURL(container, name),
		Header:        opts.header(),
		Body:          r,
		ContentLength: opts.ContentLength,
	})

	return err
}

// DeleteFile removes container/name.
func (c *Client) DeleteFile(ctx context.Context, container, name string) error {
	if err := checkArgs(validation.Errors{
		"container": required(container),
		"name":      required(name),
	}); err != nil {
		return err
	}

	c.logger.Info("deleting object",
		slog.String("container", container),
		slog.String("name", name),
	)

	_, err := c.doDiscard(ctx, &Request{Method: http.MethodDelete, URL: c.objectURL(container, name)})

	return err
}

// DeleteFiles removes several objects of one container in a single request.
func (c *Client) DeleteFiles(ctx context.Context, container string, names []string) (*BulkResult, error) {
	if err := checkArgs(validation.Errors{
		"container": required(container),
		"names":     validation.Validate(names, validation.Required, validation.Each(validation.Required)),
	}); err != nil {
		return nil, err
	}

	c.logger.Info("bulk deleting objects",
		slog.String("container", container),
		slog.Int("count", len(names)),
	)

	header := make(http.Header)
	header.Set("Content-Type", "text/plain")
	header.Set("Accept", "application/json")

	body := bulkDeleteBody(container, names)

	resp, err := c.do(ctx, &Request{
		Method:        http.MethodPost,
		URL:           c.storageURL,
		Query:         url.Values{"bulk-delete": {"true"}},
		Header:        header,
		Body:          strings.NewReader(body),
		ContentLength: int64(len(body)),
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return decodeBulkResult(resp.Body)
}

// ExtractArchive streams an archive into container; the service expands it
// into objects named after the archive entries.
func (c *Client) ExtractArchive(
	ctx context.Context, container string, r io.Reader, format ArchiveFormat,
) (*BulkResult, error) {
	if err := checkArgs(validation.Errors{
		"container": required(container),
		"body":      validation.Validate(r, validation.NotNil),
		"format": validation.Validate(format, validation.Required,
			validation.In(ArchiveTar, ArchiveTarGz, ArchiveGzip, ArchiveTarBz2)),
	}); err != nil {
		return nil, err
	}

	c.logger.Info("extracting archive",
		slog.String("container", container),
		slog.String("format", string(format)),
	)

	header := make(http.Header)
	header.Set("Accept", "application/json")

	resp, err := c.do(ctx, &Request{
		Method: http.MethodPut,
		URL:    c.containerURL(container),
		Query:  url.Values{"extract-archive": {string(format)}},
		Header: header,
		Body:   r,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return decodeBulkResult(resp.Body)
}

func (c *Client) objectURL(container, name string) string {
	return c.containerURL(container) + "/" + encodePathSegments(name)
}

// bulkDeleteBody joins container/name paths with newlines, no trailing newline.
func bulkDeleteBody(container string, names []string) string {
	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = encodePathSegments(container) + "/" + encodePathSegments(name)
	}

	return strings.Join(paths, "\n")
}

// decodeBulkResult reads a bulk middleware report. An empty body is an
// empty report.
func decodeBulkResult(r io.Reader) (*BulkResult, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("selectel: reading bulk response: %w", err)
	}

	if len(strings.TrimSpace(string(body))) == 0 {
		return &BulkResult{}, nil
	}

	var br bulkResponse
	if err := json.Unmarshal(body, &br); err != nil {
		return nil, fmt.Errorf("%w: decoding bulk response: %w", ErrParse, err)
	}

	return &BulkResult{
		Deleted:  br.Deleted,
		NotFound: br.NotFound,
		Created:  br.Created,
		Status:   br.Status,
		Errors:   br.Errors,
	}, nil
}
