package webfinger

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
)

const (
	// WellKnownPath is the path every WebFinger query is sent to (RFC 7033 section 10.1).
	WellKnownPath = "/.well-known/webfinger"
	// ContentTypeJRD is the media type of a JRD document.
	ContentTypeJRD = "application/jrd+json"

	SchemeHTTPS = "https"
	SchemeHTTP  = "http"
)

// Request is a WebFinger query: the resource asked about, an optional host to send the query
// to, and the link relation types the caller is interested in.
//
// A Request is immutable. Rels keep the order they were given in, duplicates included.
type Request struct {
	resource Resource
	host     Host
	rels     []Rel
}

// NewRequest returns a request for resource filtered to rels. The host is derived from the
// resource unless WithHost is used.
func NewRequest(resource Resource, rels ...Rel) Request {
	return Request{resource: resource, rels: slices.Clone(rels)}
}

func (r Request) Resource() Resource {
	return r.resource
}

// Host returns the explicit host of the request, if one was set.
func (r Request) Host() (Host, bool) {
	return r.host, !r.host.IsZero()
}

func (r Request) Rels() []Rel {
	return slices.Clone(r.rels)
}

// WithHost returns a copy of r that is sent to host instead of the resource's authority.
func (r Request) WithHost(host Host) Request {
	r.host = host
	return r
}

// Query returns the encoded query string: the resource parameter followed by one rel
// parameter per rel, in order.
func (r Request) Query() string {
	var b strings.Builder
	b.WriteString("resource=")
	b.WriteString(escapeQueryValue(r.resource.String()))
	for _, rel := range r.rels {
		b.WriteString("&rel=")
		b.WriteString(escapeQueryValue(rel.String()))
	}
	return b.String()
}

func (r Request) String() string {
	return WellKnownPath + "?" + r.Query()
}

type urlOptions struct {
	scheme string
}

// URLOption changes how Request.URL builds the query URL.
type URLOption func(*urlOptions)

// WithScheme overrides the default https scheme. Only http and https are accepted; plain http
// is meant for local testing.
func WithScheme(scheme string) URLOption {
	return func(o *urlOptions) {
		o.scheme = scheme
	}
}

// URL returns the absolute URL the request is sent to.
func (r Request) URL(opts ...URLOption) (*url.URL, error) {
	o := urlOptions{scheme: SchemeHTTPS}
	for _, opt := range opts {
		opt(&o)
	}
	if o.scheme != SchemeHTTPS && o.scheme != SchemeHTTP {
		return nil, invalid("scheme", o.scheme, "must be http or https")
	}
	if r.resource.IsZero() {
		return nil, ErrMissingResource
	}
	host, err := r.authority()
	if err != nil {
		return nil, err
	}
	return &url.URL{
		Scheme:   o.scheme,
		Host:     host.String(),
		Path:     WellKnownPath,
		RawQuery: r.Query(),
	}, nil
}

func (r Request) authority() (Host, error) {
	if !r.host.IsZero() {
		return r.host, nil
	}
	authority, ok := r.resource.Authority()
	if !ok {
		return Host{}, fmt.Errorf("%w: %s", ErrMissingHost, r.resource)
	}
	host, err := ParseHost(authority)
	if err != nil {
		return Host{}, fmt.Errorf("%w: %w", ErrMissingHost, err)
	}
	return host, nil
}

// ParseQuery parses the raw query string of an inbound WebFinger request.
//
// Only the first resource parameter is used. Every rel parameter is kept, in order. Unknown
// parameters are ignored. The returned request has no host; adapters that know the authority
// of the inbound request can add it with WithHost.
func ParseQuery(rawQuery string) (Request, error) {
	var (
		rawResource string
		hasResource bool
		rawRels     []string
	)
	for rawQuery != "" {
		var pair string
		pair, rawQuery, _ = strings.Cut(rawQuery, "&")
		if pair == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			continue
		}
		switch key {
		case "resource":
			if !hasResource {
				rawResource, hasResource = rawValue, true
			}
		case "rel":
			rawRels = append(rawRels, rawValue)
		}
	}

	if !hasResource || rawResource == "" {
		return Request{}, ErrMissingResource
	}
	value, err := url.QueryUnescape(rawResource)
	if err != nil {
		return Request{}, fmt.Errorf("%w: %w", ErrInvalidResource, err)
	}
	if value == "" {
		return Request{}, ErrMissingResource
	}
	resource, err := ParseResource(value)
	if err != nil {
		return Request{}, fmt.Errorf("%w: %w", ErrInvalidResource, err)
	}

	var rels []Rel
	for _, raw := range rawRels {
		value, err := url.QueryUnescape(raw)
		if err != nil {
			return Request{}, fmt.Errorf("%w: %q: %w", ErrInvalidRel, raw, err)
		}
		if value == "" {
			return Request{}, fmt.Errorf("%w: empty value", ErrInvalidRel)
		}
		rel, err := ParseRel(value)
		if err != nil {
			return Request{}, fmt.Errorf("%w: %w", ErrInvalidRel, err)
		}
		rels = append(rels, rel)
	}
	return Request{resource: resource, rels: rels}, nil
}

// escapeQueryValue percent-encodes everything but RFC 3986 unreserved characters. Spaces
// become %20 rather than '+', so servers that do not apply form decoding see the same value.
func escapeQueryValue(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// RequestBuilder assembles a Request from unvalidated strings. All values are checked when
// Build is called.
type RequestBuilder struct {
	resource string
	host     string
	hasHost  bool
	rels     []string
}

func NewRequestBuilder(resource string) *RequestBuilder {
	return &RequestBuilder{resource: resource}
}

// Host sets the host the request is sent to.
func (b *RequestBuilder) Host(host string) *RequestBuilder {
	b.host, b.hasHost = host, true
	return b
}

// Rel appends link relation types to the request.
func (b *RequestBuilder) Rel(rels ...string) *RequestBuilder {
	b.rels = append(b.rels, rels...)
	return b
}

// Build validates every value given to the builder and returns the request. All validation
// failures are reported together.
func (b *RequestBuilder) Build() (Request, error) {
	var errs []error
	resource, err := ParseResource(b.resource)
	if err != nil {
		errs = append(errs, err)
	}
	var host Host
	if b.hasHost {
		if host, err = ParseHost(b.host); err != nil {
			errs = append(errs, err)
		}
	}
	var rels []Rel
	for _, s := range b.rels {
		rel, err := ParseRel(s)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		rels = append(rels, rel)
	}
	if len(errs) > 0 {
		return Request{}, errors.Join(errs...)
	}
	return Request{resource: resource, host: host, rels: rels}, nil
}
