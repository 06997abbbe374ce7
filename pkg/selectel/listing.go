package selectel

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ListFormat selects the shape of a listing response.
type ListFormat string

// Listing formats. FormatPlain is one name per line.
const (
	FormatPlain ListFormat = ""
	FormatJSON  ListFormat = "json"
	FormatXML   ListFormat = "xml"
)

// ListOptions filters and pages a container or object listing.
type ListOptions struct {
	Format    ListFormat
	Limit     int
	Marker    string
	Prefix    string
	Delimiter string
}

// query builds the listing query string. XML is rejected up front.
func (o ListOptions) query() (url.Values, error) {
	switch o.Format {
	case FormatPlain, FormatJSON:
	case FormatXML:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, o.Format)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(o.Format))
	}

	if err := validation.Validate(o.Limit, validation.Min(0)); err != nil {
		return nil, fmt.Errorf("%w: limit: %w", ErrValidation, err)
	}

	q := make(url.Values)
	if o.Format != FormatPlain {
		q.Set("format", string(o.Format))
	}

	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}

	if o.Marker != "" {
		q.Set("marker", o.Marker)
	}

	if o.Prefix != "" {
		q.Set("prefix", o.Prefix)
	}

	if o.Delimiter != "" {
		q.Set("delimiter", o.Delimiter)
	}

	return q, nil
}

// splitLines parses a plain listing body: one name per line, the trailing
// newline does not produce an empty element.
func splitLines(body string) []string {
	body = strings.TrimSuffix(body, "\n")
	if body == "" {
		return []string{}
	}

	return strings.Split(body, "\n")
}

// encodePathSegments URL-encodes each segment of a slash-separated path.
// Characters like #, ?, %, and spaces are encoded per-segment so the
// resulting path is safe for interpolation into storage URLs.
func encodePathSegments(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}

	return strings.Join(segments, "/")
}

// checkArgs wraps the non-nil entries of errs in ErrValidation.
func checkArgs(errs validation.Errors) error {
	if err := errs.Filter(); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	return nil
}

func required(value any) error {
	return validation.Validate(value, validation.Required)
}
