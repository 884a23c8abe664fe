package webfinger

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("webfinger: invalid value")

	// ErrMissingResource is returned when an inbound query has no usable resource parameter.
	ErrMissingResource = errors.New("webfinger: missing resource parameter")
	// ErrInvalidResource is returned when the resource parameter cannot be decoded or is not a URI.
	ErrInvalidResource = errors.New("webfinger: invalid resource parameter")
	// ErrInvalidRel is returned when a rel parameter is empty, cannot be decoded or is not a valid rel.
	ErrInvalidRel = errors.New("webfinger: invalid rel parameter")
	// ErrMissingHost is returned when a request has no host and none can be derived from its resource.
	ErrMissingHost = errors.New("webfinger: no host given and none derivable from resource")

	// ErrMalformedResponse is returned when a JRD document cannot be parsed.
	ErrMalformedResponse = errors.New("webfinger: malformed response")
	// ErrInvalidLink is returned when an entry of a JRD links array is unusable.
	ErrInvalidLink = errors.New("webfinger: invalid link")

	// ErrResourceNotFound is returned by a Resolver that has no record for the requested resource.
	ErrResourceNotFound = errors.New("webfinger: resource not found")
)

// ValidationError describes why a Resource, Host or Rel could not be constructed.
type ValidationError struct {
	Kind   string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("webfinger: invalid %s %q: %s", e.Kind, e.Value, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(kind, value, reason string) error {
	return &ValidationError{Kind: kind, Value: value, Reason: reason}
}
