// Package client sends WebFinger queries over HTTP.
package client

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/0dayfall/webfinger"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultTimeout = 10 * time.Second
	// DefaultMaxBodySize caps how much of a response body is read.
	DefaultMaxBodySize int64 = 1 << 20
	DefaultUserAgent         = "webfinger-go"
)

var tracer = otel.Tracer("webfinger.client")

// Doer sends an HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	httpClient  *http.Client
	doer        Doer
	userAgent   string
	scheme      string
	maxBodySize int64
	logger      logrus.FieldLogger
}

type Option func(*Client)

// WithHTTPClient sends requests with doer instead of the client's own *http.Client. The
// timeout and TLS options have no effect on a custom Doer.
func WithHTTPClient(doer Doer) Option {
	return func(c *Client) {
		c.doer = doer
	}
}

// WithInsecureSkipVerify disables TLS certificate verification.
func WithInsecureSkipVerify() Option {
	return func(c *Client) {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
		c.httpClient.Transport = transport
	}
}

// WithTimeout bounds the whole exchange, body included.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithScheme sends queries over scheme, which must be http or https.
func WithScheme(scheme string) Option {
	return func(c *Client) {
		c.scheme = scheme
	}
}

func WithMaxBodySize(n int64) Option {
	return func(c *Client) {
		c.maxBodySize = n
	}
}

func New(opts ...Option) *Client {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	c := &Client{
		httpClient:  &http.Client{Timeout: defaultTimeout},
		userAgent:   DefaultUserAgent,
		scheme:      webfinger.SchemeHTTPS,
		maxBodySize: DefaultMaxBodySize,
		logger:      discard,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.doer == nil {
		c.doer = c.httpClient
	}
	return c
}

// TransportError is returned when no HTTP response could be obtained or its body could not be
// read.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusError is returned by Fetch for a response outside the 2xx range.
type StatusError struct {
	Code   int
	Status string
	Body   []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.Code, e.Status)
}

// Perform sends a request without a body and returns the status, headers and body of the
// response. Any status is returned without error; only transport failures are errors.
func (c *Client) Perform(ctx context.Context, method, uri string, header http.Header) (int, http.Header, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, uri, nil)
	if err != nil {
		return 0, nil, nil, &TransportError{Method: method, URL: uri, Err: errors.Wrap(err, "failed to create request")}
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.doer.Do(req)
	if err != nil {
		return 0, nil, nil, &TransportError{Method: method, URL: uri, Err: errors.Wrap(err, "failed to perform request")}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		return resp.StatusCode, resp.Header, nil, &TransportError{Method: method, URL: uri, Err: errors.Wrap(err, "failed to read response body")}
	}
	if int64(len(body)) > c.maxBodySize {
		return resp.StatusCode, resp.Header, nil, &TransportError{Method: method, URL: uri, Err: errors.Errorf("response body exceeds %d bytes", c.maxBodySize)}
	}
	return resp.StatusCode, resp.Header, body, nil
}

// Fetch sends req and decodes the JRD document in the response.
//
// Errors building the URL are returned as they come from webfinger.Request.URL. A response
// outside 2xx is a *StatusError and an undecodable body wraps webfinger.ErrMalformedResponse.
func (c *Client) Fetch(ctx context.Context, req webfinger.Request) (webfinger.Response, error) {
	ctx, span := tracer.Start(ctx, "Client.Fetch", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("webfinger.resource", req.Resource().String()))

	u, err := req.URL(webfinger.WithScheme(c.scheme))
	if err != nil {
		span.SetStatus(codes.Error, "invalid request")
		span.RecordError(err)
		return webfinger.Response{}, err
	}
	span.SetAttributes(attribute.String("url.full", u.String()))

	log := c.logger.WithField("url", u.String())
	log.Debug("sending webfinger query")

	status, header, body, err := c.Perform(ctx, http.MethodGet, u.String(), http.Header{
		"Accept": []string{webfinger.ContentTypeJRD + ", application/json;q=0.9"},
	})
	if err != nil {
		span.SetStatus(codes.Error, "transport failure")
		span.RecordError(err)
		return webfinger.Response{}, err
	}
	span.SetAttributes(attribute.Int("http.response.status_code", status))
	log.WithFields(logrus.Fields{
		"status":       status,
		"content_type": header.Get("Content-Type"),
		"bytes":        len(body),
	}).Debug("received webfinger response")
	log.Trace(string(body))

	if status < 200 || status > 299 {
		err := &StatusError{Code: status, Status: http.StatusText(status), Body: body}
		span.SetStatus(codes.Error, err.Error())
		return webfinger.Response{}, err
	}

	resp, err := webfinger.ParseResponse(body)
	if err != nil {
		span.SetStatus(codes.Error, "malformed response")
		span.RecordError(err)
		return webfinger.Response{}, err
	}
	return resp, nil
}
