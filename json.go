package webfinger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/buger/jsonparser"
)

type jrdLink struct {
	Rel        string             `json:"rel"`
	Type       *string            `json:"type,omitempty"`
	Href       *string            `json:"href,omitempty"`
	Titles     map[string]string  `json:"titles,omitempty"`
	Properties map[string]*string `json:"properties,omitempty"`
}

type jrd struct {
	Subject    string             `json:"subject"`
	Aliases    []string           `json:"aliases,omitempty"`
	Properties map[string]*string `json:"properties,omitempty"`
	Links      []jrdLink          `json:"links,omitempty"`
}

func (l Link) wire() jrdLink {
	w := jrdLink{
		Rel:        l.rel.String(),
		Titles:     l.titles,
		Properties: wireProperties(l.properties),
	}
	if l.hasType {
		w.Type = &l.typ
	}
	if l.hasHref {
		w.Href = &l.href
	}
	return w
}

func (r Response) wire() jrd {
	w := jrd{
		Subject:    r.subject.String(),
		Properties: wireProperties(r.properties),
	}
	for _, alias := range r.aliases {
		w.Aliases = append(w.Aliases, alias.String())
	}
	for _, link := range r.links {
		w.Links = append(w.Links, link.wire())
	}
	return w
}

func wireProperties(m map[string]PropertyValue) map[string]*string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]*string, len(m))
	for key, v := range m {
		if s, ok := v.Value(); ok {
			out[key] = &s
		} else {
			out[key] = nil
		}
	}
	return out
}

func encode(v any, indent bool) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// MarshalJSON encodes l with its members in the order rel, type, href, titles, properties.
// Absent members are left out.
func (l Link) MarshalJSON() ([]byte, error) {
	return encode(l.wire(), false)
}

// MarshalJSON encodes r as a JRD document with its members in the order subject, aliases,
// properties, links. Empty members are left out and null properties are written as null.
func (r Response) MarshalJSON() ([]byte, error) {
	return encode(r.wire(), false)
}

// String returns r as indented JSON.
func (r Response) String() string {
	b, err := encode(r.wire(), true)
	if err != nil {
		return fmt.Sprintf("webfinger.Response{subject: %s}", r.subject)
	}
	return string(b)
}

func (r *Response) UnmarshalJSON(data []byte) error {
	resp, err := ParseResponse(data)
	if err != nil {
		return err
	}
	*r = resp
	return nil
}

func (l *Link) UnmarshalJSON(data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("%w: not valid JSON", ErrInvalidLink)
	}
	obj, typ, _, err := jsonparser.Get(data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidLink, err)
	}
	link, err := parseLink(obj, typ)
	if err != nil {
		return err
	}
	*l = link
	return nil
}

// ParseResponse decodes a JRD document.
//
// The subject is required. Aliases, properties and links that are missing or null are treated
// as empty. Unknown members are ignored at every level. A links entry without a usable rel
// fails the whole document with ErrInvalidLink; other structural problems are reported as
// ErrMalformedResponse.
func ParseResponse(data []byte) (Response, error) {
	if !json.Valid(data) {
		return Response{}, fmt.Errorf("%w: not valid JSON", ErrMalformedResponse)
	}
	doc, typ, _, err := jsonparser.Get(data)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if typ != jsonparser.Object {
		return Response{}, fmt.Errorf("%w: top level is a %s, not an object", ErrMalformedResponse, typ)
	}

	var resp Response
	raw, typ, err := member(doc, "subject")
	if err != nil {
		return Response{}, fmt.Errorf("%w: subject: %w", ErrMalformedResponse, err)
	}
	switch typ {
	case jsonparser.String:
	case jsonparser.NotExist:
		return Response{}, fmt.Errorf("%w: missing subject", ErrMalformedResponse)
	default:
		return Response{}, fmt.Errorf("%w: subject is a %s, not a string", ErrMalformedResponse, typ)
	}
	subject, err := parseString(raw)
	if err != nil {
		return Response{}, fmt.Errorf("%w: subject: %w", ErrMalformedResponse, err)
	}
	if resp.subject, err = ParseResource(subject); err != nil {
		return Response{}, fmt.Errorf("%w: subject: %w", ErrMalformedResponse, err)
	}

	if resp.aliases, err = parseAliases(doc); err != nil {
		return Response{}, fmt.Errorf("%w: aliases: %w", ErrMalformedResponse, err)
	}

	raw, typ, err = member(doc, "properties")
	if err != nil {
		return Response{}, fmt.Errorf("%w: properties: %w", ErrMalformedResponse, err)
	}
	if resp.properties, err = parseProperties(raw, typ); err != nil {
		return Response{}, fmt.Errorf("%w: properties: %w", ErrMalformedResponse, err)
	}

	raw, typ, err = member(doc, "links")
	if err != nil {
		return Response{}, fmt.Errorf("%w: links: %w", ErrMalformedResponse, err)
	}
	switch typ {
	case jsonparser.NotExist, jsonparser.Null:
	case jsonparser.Array:
		if resp.links, err = parseLinks(raw); err != nil {
			return Response{}, err
		}
	default:
		return Response{}, fmt.Errorf("%w: links is a %s, not an array", ErrMalformedResponse, typ)
	}
	return resp, nil
}

// member looks up key in a JSON object. A missing key is reported as jsonparser.NotExist with
// no error. Of duplicate keys the first one wins.
func member(obj []byte, key string) ([]byte, jsonparser.ValueType, error) {
	raw, typ, _, err := jsonparser.Get(obj, key)
	if err != nil {
		if typ == jsonparser.NotExist || errors.Is(err, jsonparser.KeyPathNotFoundError) {
			return nil, jsonparser.NotExist, nil
		}
		return nil, typ, err
	}
	return raw, typ, nil
}

func parseString(raw []byte) (string, error) {
	s, err := jsonparser.ParseString(raw)
	if err != nil {
		return "", fmt.Errorf("failed to decode string: %w", err)
	}
	return s, nil
}

func parseAliases(doc []byte) ([]Resource, error) {
	raw, typ, err := member(doc, "aliases")
	if err != nil {
		return nil, err
	}
	switch typ {
	case jsonparser.NotExist, jsonparser.Null:
		return nil, nil
	case jsonparser.Array:
	default:
		return nil, fmt.Errorf("is a %s, not an array", typ)
	}

	var (
		aliases []Resource
		failed  error
		i       int
	)
	_, err = jsonparser.ArrayEach(raw, func(value []byte, typ jsonparser.ValueType, _ int, _ error) {
		defer func() { i++ }()
		if failed != nil {
			return
		}
		if typ != jsonparser.String {
			failed = fmt.Errorf("entry %d is a %s, not a string", i, typ)
			return
		}
		s, err := parseString(value)
		if err != nil {
			failed = fmt.Errorf("entry %d: %w", i, err)
			return
		}
		alias, err := ParseResource(s)
		if err != nil {
			failed = fmt.Errorf("entry %d: %w", i, err)
			return
		}
		aliases = append(aliases, alias)
	})
	if err != nil {
		return nil, err
	}
	if failed != nil {
		return nil, failed
	}
	return aliases, nil
}

func parseProperties(raw []byte, typ jsonparser.ValueType) (map[string]PropertyValue, error) {
	switch typ {
	case jsonparser.NotExist, jsonparser.Null:
		return nil, nil
	case jsonparser.Object:
	default:
		return nil, fmt.Errorf("is a %s, not an object", typ)
	}

	properties := make(map[string]PropertyValue)
	err := jsonparser.ObjectEach(raw, func(key, value []byte, typ jsonparser.ValueType, _ int) error {
		switch typ {
		case jsonparser.Null:
			properties[string(key)] = NullValue()
		case jsonparser.String:
			s, err := parseString(value)
			if err != nil {
				return fmt.Errorf("%q: %w", key, err)
			}
			properties[string(key)] = StringValue(s)
		default:
			return fmt.Errorf("%q is a %s, not a string or null", key, typ)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cloneNonEmpty(properties), nil
}

func parseTitles(raw []byte, typ jsonparser.ValueType) (map[string]string, error) {
	switch typ {
	case jsonparser.NotExist, jsonparser.Null:
		return nil, nil
	case jsonparser.Object:
	default:
		return nil, fmt.Errorf("is a %s, not an object", typ)
	}

	titles := make(map[string]string)
	err := jsonparser.ObjectEach(raw, func(key, value []byte, typ jsonparser.ValueType, _ int) error {
		if typ != jsonparser.String {
			return fmt.Errorf("%q is a %s, not a string", key, typ)
		}
		s, err := parseString(value)
		if err != nil {
			return fmt.Errorf("%q: %w", key, err)
		}
		titles[string(key)] = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cloneNonEmpty(titles), nil
}

func parseLinks(raw []byte) ([]Link, error) {
	var (
		links  []Link
		failed error
		i      int
	)
	_, err := jsonparser.ArrayEach(raw, func(value []byte, typ jsonparser.ValueType, _ int, _ error) {
		defer func() { i++ }()
		if failed != nil {
			return
		}
		link, err := parseLink(value, typ)
		if err != nil {
			failed = fmt.Errorf("links[%d]: %w", i, err)
			return
		}
		links = append(links, link)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: links: %w", ErrMalformedResponse, err)
	}
	if failed != nil {
		return nil, failed
	}
	return links, nil
}

func parseLink(obj []byte, typ jsonparser.ValueType) (Link, error) {
	if typ != jsonparser.Object {
		return Link{}, fmt.Errorf("%w: entry is a %s, not an object", ErrInvalidLink, typ)
	}

	var link Link
	raw, typ, err := member(obj, "rel")
	if err != nil {
		return Link{}, fmt.Errorf("%w: rel: %w", ErrInvalidLink, err)
	}
	switch typ {
	case jsonparser.String:
	case jsonparser.NotExist:
		return Link{}, fmt.Errorf("%w: missing rel", ErrInvalidLink)
	default:
		return Link{}, fmt.Errorf("%w: rel is a %s, not a string", ErrInvalidLink, typ)
	}
	s, err := parseString(raw)
	if err != nil {
		return Link{}, fmt.Errorf("%w: rel: %w", ErrInvalidLink, err)
	}
	if link.rel, err = ParseRel(s); err != nil {
		return Link{}, fmt.Errorf("%w: %w", ErrInvalidLink, err)
	}

	if link.typ, link.hasType, err = optionalString(obj, "type"); err != nil {
		return Link{}, fmt.Errorf("%w: type: %w", ErrInvalidLink, err)
	}
	if link.href, link.hasHref, err = optionalString(obj, "href"); err != nil {
		return Link{}, fmt.Errorf("%w: href: %w", ErrInvalidLink, err)
	}

	raw, typ, err = member(obj, "titles")
	if err == nil {
		link.titles, err = parseTitles(raw, typ)
	}
	if err != nil {
		return Link{}, fmt.Errorf("%w: titles: %w", ErrInvalidLink, err)
	}

	raw, typ, err = member(obj, "properties")
	if err == nil {
		link.properties, err = parseProperties(raw, typ)
	}
	if err != nil {
		return Link{}, fmt.Errorf("%w: properties: %w", ErrInvalidLink, err)
	}
	return link, nil
}

func optionalString(obj []byte, key string) (string, bool, error) {
	raw, typ, err := member(obj, key)
	if err != nil {
		return "", false, err
	}
	switch typ {
	case jsonparser.NotExist, jsonparser.Null:
		return "", false, nil
	case jsonparser.String:
		s, err := parseString(raw)
		if err != nil {
			return "", false, err
		}
		return s, true, nil
	default:
		return "", false, fmt.Errorf("is a %s, not a string", typ)
	}
}
