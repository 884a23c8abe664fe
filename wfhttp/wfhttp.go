// Package wfhttp serves WebFinger queries from net/http.
package wfhttp

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/0dayfall/webfinger"
	"github.com/sirupsen/logrus"
)

const (
	ContentType = "Content-Type"
	allowed     = "GET, HEAD"
)

// ErrMethodNotAllowed is returned by ParseRequest for anything but GET and HEAD.
var ErrMethodNotAllowed = errors.New("wfhttp: method not allowed")

// ParseRequest reads a WebFinger query from r. The host of the returned request is taken from
// r.Host when it is a valid host.
func ParseRequest(r *http.Request) (webfinger.Request, error) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return webfinger.Request{}, ErrMethodNotAllowed
	}
	req, err := webfinger.ParseQuery(r.URL.RawQuery)
	if err != nil {
		return webfinger.Request{}, err
	}
	if host, err := webfinger.ParseHost(r.Host); err == nil {
		req = req.WithHost(host)
	}
	return req, nil
}

// WriteResponse writes resp as a JRD document. The body is encoded before anything is sent so
// an encoding failure does not leave a partial response behind.
func WriteResponse(w http.ResponseWriter, status int, resp webfinger.Response) error {
	var buf bytes.Buffer
	b, err := resp.MarshalJSON()
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return err
	}
	buf.Write(b)
	buf.WriteByte('\n')

	w.Header().Set(ContentType, webfinger.ContentTypeJRD)
	w.WriteHeader(status)
	_, err = buf.WriteTo(w)
	return err
}

// StatusCode maps an error returned by ParseRequest or a Resolver to an HTTP status.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed
	case errors.Is(err, webfinger.ErrMissingResource),
		errors.Is(err, webfinger.ErrInvalidResource),
		errors.Is(err, webfinger.ErrInvalidRel),
		errors.Is(err, webfinger.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, webfinger.ErrResourceNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes a plain text error response for err. Internal errors are not echoed to
// the client.
func WriteError(w http.ResponseWriter, err error) {
	status := StatusCode(err)
	msg := err.Error()
	switch status {
	case http.StatusMethodNotAllowed:
		w.Header().Set("Allow", allowed)
	case http.StatusInternalServerError:
		msg = http.StatusText(status)
	}
	http.Error(w, msg, status)
}

// Handler answers WebFinger queries with Resolver.
type Handler struct {
	Resolver webfinger.Resolver
	// ErrorLog receives resolver failures that end in a 500. Nil discards them.
	ErrorLog logrus.FieldLogger
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, err := ParseRequest(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	resp, err := h.Resolver.Resolve(r.Context(), req)
	if err != nil {
		if StatusCode(err) == http.StatusInternalServerError && h.ErrorLog != nil {
			h.ErrorLog.WithError(err).WithField("resource", req.Resource().String()).Error("failed to resolve resource")
		}
		WriteError(w, err)
		return
	}

	if err := WriteResponse(w, http.StatusOK, req.Filter(resp)); err != nil && h.ErrorLog != nil {
		h.ErrorLog.WithError(err).Warn("failed to write response")
	}
}
