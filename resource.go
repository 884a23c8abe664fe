package webfinger

import (
	"errors"
	"net/url"
	"strings"
)

// Resource is the URI of the entity a WebFinger query is about, e.g. acct:carol@example.com.
//
// A Resource keeps the exact string it was parsed from, so two resources are equal only if
// their strings are byte-for-byte identical. The zero value is not a valid Resource.
type Resource struct {
	uri string
}

// ParseResource validates s as an absolute URI and returns it as a Resource.
func ParseResource(s string) (Resource, error) {
	if s == "" {
		return Resource{}, invalid("resource", s, "empty")
	}
	u, err := url.Parse(s)
	if err != nil {
		return Resource{}, invalid("resource", s, urlReason(err))
	}
	if u.Scheme == "" {
		return Resource{}, invalid("resource", s, "missing scheme")
	}
	if u.Opaque == "" && u.Host == "" && u.Path == "" {
		return Resource{}, invalid("resource", s, "nothing after scheme")
	}
	return Resource{uri: s}, nil
}

// MustParseResource is like ParseResource but panics if s is not a valid resource.
func MustParseResource(s string) Resource {
	r, err := ParseResource(s)
	if err != nil {
		panic(err)
	}
	return r
}

func (r Resource) String() string {
	return r.uri
}

// IsZero reports whether r was never set.
func (r Resource) IsZero() bool {
	return r.uri == ""
}

// Scheme returns the URI scheme in lower case.
func (r Resource) Scheme() string {
	u, err := url.Parse(r.uri)
	if err != nil {
		return ""
	}
	return u.Scheme
}

// Authority returns the host a query for r should be sent to when no explicit host is given.
//
// For hierarchical URIs this is the URI authority without user info. For opaque URIs such as
// acct: and mailto: it is whatever follows the last '@'.
func (r Resource) Authority() (string, bool) {
	u, err := url.Parse(r.uri)
	if err != nil {
		return "", false
	}
	if u.Host != "" {
		return u.Host, true
	}
	opaque := u.Opaque
	if i := strings.IndexByte(opaque, '/'); i >= 0 {
		opaque = opaque[:i]
	}
	i := strings.LastIndexByte(opaque, '@')
	if i < 0 || i == len(opaque)-1 {
		return "", false
	}
	return opaque[i+1:], true
}

func (r Resource) Compare(other Resource) int {
	return strings.Compare(r.uri, other.uri)
}

// Host is the authority a WebFinger query is sent to: a domain name or IP address with an
// optional port, and nothing else.
type Host struct {
	host string
}

// ParseHost validates s as a bare host[:port].
func ParseHost(s string) (Host, error) {
	if s == "" {
		return Host{}, invalid("host", s, "empty")
	}
	if strings.Contains(s, "://") {
		return Host{}, invalid("host", s, "must not contain a scheme")
	}
	if strings.ContainsAny(s, "/?#") {
		return Host{}, invalid("host", s, "must not contain a path, query or fragment")
	}
	if strings.Contains(s, "@") {
		return Host{}, invalid("host", s, "must not contain user info")
	}
	u, err := url.Parse("//" + s)
	if err != nil {
		return Host{}, invalid("host", s, urlReason(err))
	}
	if u.Host != s || u.Hostname() == "" {
		return Host{}, invalid("host", s, "not a valid host")
	}
	return Host{host: s}, nil
}

// MustParseHost is like ParseHost but panics if s is not a valid host.
func MustParseHost(s string) Host {
	h, err := ParseHost(s)
	if err != nil {
		panic(err)
	}
	return h
}

func (h Host) String() string {
	return h.host
}

// IsZero reports whether h was never set.
func (h Host) IsZero() bool {
	return h.host == ""
}

func (h Host) Compare(other Host) int {
	return strings.Compare(h.host, other.host)
}

// Rel is a link relation type, either a URI or a registered name such as "self".
type Rel struct {
	rel string
}

// Relation types that show up in most WebFinger deployments.
var (
	RelSelf         = MustParseRel("self")
	RelProfilePage  = MustParseRel("http://webfinger.net/rel/profile-page")
	RelAvatar       = MustParseRel("http://webfinger.net/rel/avatar")
	RelOpenIDIssuer = MustParseRel("http://openid.net/specs/connect/1.0/issuer")
)

// ParseRel validates s as a link relation type.
func ParseRel(s string) (Rel, error) {
	if s == "" {
		return Rel{}, invalid("rel", s, "empty")
	}
	if strings.TrimSpace(s) != s {
		return Rel{}, invalid("rel", s, "surrounding whitespace")
	}
	return Rel{rel: s}, nil
}

// MustParseRel is like ParseRel but panics if s is not a valid rel.
func MustParseRel(s string) Rel {
	r, err := ParseRel(s)
	if err != nil {
		panic(err)
	}
	return r
}

func (r Rel) String() string {
	return r.rel
}

func (r Rel) Compare(other Rel) int {
	return strings.Compare(r.rel, other.rel)
}

func urlReason(err error) string {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err.Error()
	}
	return err.Error()
}
