package webfinger

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

type propertyKind uint8

const (
	propertyNull propertyKind = iota
	propertyString
)

// PropertyValue is the value of a JRD property. JRD allows a property to be present with a
// null value, which is different from the property being absent, so a value is either a
// string or null. Absence is expressed by the key missing from the property map.
//
// The zero value is null.
type PropertyValue struct {
	kind  propertyKind
	value string
}

// NullValue returns a property value that is present but null.
func NullValue() PropertyValue {
	return PropertyValue{kind: propertyNull}
}

// StringValue returns a property value holding s.
func StringValue(s string) PropertyValue {
	return PropertyValue{kind: propertyString, value: s}
}

func (v PropertyValue) IsNull() bool {
	return v.kind == propertyNull
}

// Value returns the string held by v, and false if v is null.
func (v PropertyValue) Value() (string, bool) {
	return v.value, v.kind == propertyString
}

// Link is one entry of the links array of a JRD (RFC 7033 section 4.4.4).
type Link struct {
	rel        Rel
	typ        string
	hasType    bool
	href       string
	hasHref    bool
	titles     map[string]string
	properties map[string]PropertyValue
}

func (l Link) Rel() Rel {
	return l.rel
}

// Type returns the media type of the link target.
func (l Link) Type() (string, bool) {
	return l.typ, l.hasType
}

// Href returns the link target.
func (l Link) Href() (string, bool) {
	return l.href, l.hasHref
}

// Titles returns the titles of the link keyed by language tag.
func (l Link) Titles() map[string]string {
	return maps.Clone(l.titles)
}

func (l Link) Title(language string) (string, bool) {
	t, ok := l.titles[language]
	return t, ok
}

func (l Link) Properties() map[string]PropertyValue {
	return maps.Clone(l.properties)
}

func (l Link) Property(key string) (PropertyValue, bool) {
	v, ok := l.properties[key]
	return v, ok
}

func (l Link) Equal(other Link) bool {
	return l.rel == other.rel &&
		l.hasType == other.hasType && l.typ == other.typ &&
		l.hasHref == other.hasHref && l.href == other.href &&
		maps.Equal(l.titles, other.titles) &&
		maps.Equal(l.properties, other.properties)
}

// Response is a JRD document (RFC 7033 section 4.4). The order of aliases and links is kept
// as given; a server lists the preferred link first.
type Response struct {
	subject    Resource
	aliases    []Resource
	properties map[string]PropertyValue
	links      []Link
}

func (r Response) Subject() Resource {
	return r.subject
}

func (r Response) Aliases() []Resource {
	return slices.Clone(r.aliases)
}

func (r Response) Properties() map[string]PropertyValue {
	return maps.Clone(r.properties)
}

func (r Response) Property(key string) (PropertyValue, bool) {
	v, ok := r.properties[key]
	return v, ok
}

func (r Response) Links() []Link {
	return slices.Clone(r.links)
}

// Equal reports whether r and other describe the same document. Absent and empty
// collections are equal.
func (r Response) Equal(other Response) bool {
	return r.subject == other.subject &&
		slices.Equal(r.aliases, other.aliases) &&
		maps.Equal(r.properties, other.properties) &&
		slices.EqualFunc(r.links, other.links, Link.Equal)
}

// LinkBuilder assembles a Link. The relation type and property keys are validated by Build.
type LinkBuilder struct {
	rel  string
	link Link
}

func NewLinkBuilder(rel string) *LinkBuilder {
	return &LinkBuilder{rel: rel}
}

// Type sets the media type of the link target.
func (b *LinkBuilder) Type(mediaType string) *LinkBuilder {
	b.link.typ, b.link.hasType = mediaType, true
	return b
}

// Href sets the link target.
func (b *LinkBuilder) Href(href string) *LinkBuilder {
	b.link.href, b.link.hasHref = href, true
	return b
}

// Title adds a human readable title in the given language. Use "und" when the language is
// unknown.
func (b *LinkBuilder) Title(language, title string) *LinkBuilder {
	if b.link.titles == nil {
		b.link.titles = make(map[string]string)
	}
	b.link.titles[language] = title
	return b
}

func (b *LinkBuilder) Property(key, value string) *LinkBuilder {
	b.link.properties = setProperty(b.link.properties, key, StringValue(value))
	return b
}

// NullProperty adds a property that is present with a null value.
func (b *LinkBuilder) NullProperty(key string) *LinkBuilder {
	b.link.properties = setProperty(b.link.properties, key, NullValue())
	return b
}

func (b *LinkBuilder) Build() (Link, error) {
	var errs []error
	rel, err := ParseRel(b.rel)
	if err != nil {
		errs = append(errs, err)
	}
	for language := range b.link.titles {
		if language == "" {
			errs = append(errs, invalid("title language", language, "empty"))
		}
	}
	errs = append(errs, checkPropertyKeys(b.link.properties)...)
	if len(errs) > 0 {
		return Link{}, errors.Join(errs...)
	}
	link := b.link
	link.rel = rel
	link.titles = cloneNonEmpty(b.link.titles)
	link.properties = cloneNonEmpty(b.link.properties)
	return link, nil
}

// ResponseBuilder assembles a Response. The subject, aliases and property keys are validated
// by Build.
type ResponseBuilder struct {
	subject    string
	aliases    []string
	properties map[string]PropertyValue
	links      []Link
}

func NewResponseBuilder(subject string) *ResponseBuilder {
	return &ResponseBuilder{subject: subject}
}

// Alias appends aliases of the subject.
func (b *ResponseBuilder) Alias(aliases ...string) *ResponseBuilder {
	b.aliases = append(b.aliases, aliases...)
	return b
}

func (b *ResponseBuilder) Property(key, value string) *ResponseBuilder {
	b.properties = setProperty(b.properties, key, StringValue(value))
	return b
}

// NullProperty adds a property that is present with a null value.
func (b *ResponseBuilder) NullProperty(key string) *ResponseBuilder {
	b.properties = setProperty(b.properties, key, NullValue())
	return b
}

// Link appends links in order of preference.
func (b *ResponseBuilder) Link(links ...Link) *ResponseBuilder {
	b.links = append(b.links, links...)
	return b
}

func (b *ResponseBuilder) Build() (Response, error) {
	var errs []error
	subject, err := ParseResource(b.subject)
	if err != nil {
		errs = append(errs, fmt.Errorf("subject: %w", err))
	}
	var aliases []Resource
	for _, s := range b.aliases {
		alias, err := ParseResource(s)
		if err != nil {
			errs = append(errs, fmt.Errorf("alias: %w", err))
			continue
		}
		aliases = append(aliases, alias)
	}
	errs = append(errs, checkPropertyKeys(b.properties)...)
	for i, link := range b.links {
		if link.rel == (Rel{}) {
			errs = append(errs, fmt.Errorf("link %d: %w", i, invalid("rel", "", "empty")))
		}
	}
	if len(errs) > 0 {
		return Response{}, errors.Join(errs...)
	}
	return Response{
		subject:    subject,
		aliases:    aliases,
		properties: cloneNonEmpty(b.properties),
		links:      slices.Clone(b.links),
	}, nil
}

func setProperty(m map[string]PropertyValue, key string, v PropertyValue) map[string]PropertyValue {
	if m == nil {
		m = make(map[string]PropertyValue)
	}
	m[key] = v
	return m
}

func checkPropertyKeys(m map[string]PropertyValue) []error {
	var errs []error
	for key := range m {
		if key == "" {
			errs = append(errs, invalid("property key", key, "empty"))
		}
	}
	return errs
}

func cloneNonEmpty[M ~map[K]V, K comparable, V any](m M) M {
	if len(m) == 0 {
		return nil
	}
	return maps.Clone(m)
}
