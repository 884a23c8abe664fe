package client

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/0dayfall/webfinger"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

const carolJRD = `{"subject":"acct:carol@example.com","links":[{"rel":"http://webfinger.net/rel/avatar","href":"https://example.com/avatar.jpg"}]}`

func newServer(t *testing.T, h http.HandlerFunc) (*httptest.Server, webfinger.Host) {
	t.Helper()
	srv := httptest.NewTLSServer(h)
	t.Cleanup(srv.Close)
	return srv, webfinger.MustParseHost(strings.TrimPrefix(srv.URL, "https://"))
}

func carolRequest(host webfinger.Host, rels ...webfinger.Rel) webfinger.Request {
	return webfinger.NewRequest(webfinger.MustParseResource("acct:carol@example.com"), rels...).WithHost(host)
}

func TestFetch(t *testing.T) {
	t.Run("Fetches and parses the JRD", func(t *testing.T) {
		// Arrange
		var got *http.Request
		srv, host := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			got = r
			w.Header().Set("Content-Type", webfinger.ContentTypeJRD)
			_, _ = w.Write([]byte(carolJRD))
		})
		c := New(WithHTTPClient(srv.Client()), WithUserAgent("test-agent"))

		// Act
		resp, err := c.Fetch(context.Background(), carolRequest(host, webfinger.RelAvatar))

		// Assert
		require.NoError(t, err)
		require.Equal(t, "acct:carol@example.com", resp.Subject().String())
		require.Len(t, resp.Links(), 1)
		require.Equal(t, webfinger.WellKnownPath, got.URL.Path)
		require.Equal(t, "resource=acct%3Acarol%40example.com&rel=http%3A%2F%2Fwebfinger.net%2Frel%2Favatar", got.URL.RawQuery)
		require.Equal(t, http.MethodGet, got.Method)
		require.Contains(t, got.Header.Get("Accept"), webfinger.ContentTypeJRD)
		require.Equal(t, "test-agent", got.Header.Get("User-Agent"))
	})

	t.Run("Insecure skips certificate checks", func(t *testing.T) {
		_, host := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(carolJRD))
		})

		_, err := New().Fetch(context.Background(), carolRequest(host))
		require.Error(t, err)
		var terr *TransportError
		require.ErrorAs(t, err, &terr)

		_, err = New(WithInsecureSkipVerify()).Fetch(context.Background(), carolRequest(host))
		require.NoError(t, err)
	})

	t.Run("Plain http", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(carolJRD))
		}))
		t.Cleanup(srv.Close)
		host := webfinger.MustParseHost(strings.TrimPrefix(srv.URL, "http://"))

		resp, err := New(WithScheme(webfinger.SchemeHTTP)).Fetch(context.Background(), carolRequest(host))

		require.NoError(t, err)
		require.Equal(t, "acct:carol@example.com", resp.Subject().String())
	})

	t.Run("Non-2xx is a StatusError", func(t *testing.T) {
		srv, host := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "no such user", http.StatusNotFound)
		})

		_, err := New(WithHTTPClient(srv.Client())).Fetch(context.Background(), carolRequest(host))

		var serr *StatusError
		require.ErrorAs(t, err, &serr)
		require.Equal(t, http.StatusNotFound, serr.Code)
		require.Equal(t, "Not Found", serr.Status)
		require.Contains(t, string(serr.Body), "no such user")
	})

	t.Run("Malformed body", func(t *testing.T) {
		srv, host := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		})

		_, err := New(WithHTTPClient(srv.Client())).Fetch(context.Background(), carolRequest(host))

		require.ErrorIs(t, err, webfinger.ErrMalformedResponse)
	})

	t.Run("Body over the limit", func(t *testing.T) {
		srv, host := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(carolJRD))
		})

		_, err := New(WithHTTPClient(srv.Client()), WithMaxBodySize(16)).Fetch(context.Background(), carolRequest(host))

		var terr *TransportError
		require.ErrorAs(t, err, &terr)
		require.Contains(t, err.Error(), "exceeds 16 bytes")
	})

	t.Run("Timeout", func(t *testing.T) {
		_, host := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		})
		c := New(WithInsecureSkipVerify(), WithTimeout(50*time.Millisecond))

		_, err := c.Fetch(context.Background(), carolRequest(host))

		var netErr net.Error
		require.ErrorAs(t, err, &netErr)
		require.True(t, netErr.Timeout())
	})

	t.Run("Missing host is not sent", func(t *testing.T) {
		c := New(WithHTTPClient(doerFunc(func(*http.Request) (*http.Response, error) {
			t.Fatal("request must not be sent")
			return nil, nil
		})))

		_, err := c.Fetch(context.Background(), webfinger.NewRequest(webfinger.MustParseResource("urn:isbn:0451450523")))

		require.ErrorIs(t, err, webfinger.ErrMissingHost)
	})

	t.Run("Logs the exchange", func(t *testing.T) {
		srv, host := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(carolJRD))
		})
		logger, hook := test.NewNullLogger()
		logger.SetLevel(logrus.DebugLevel)

		_, err := New(WithHTTPClient(srv.Client()), WithLogger(logger)).Fetch(context.Background(), carolRequest(host))

		require.NoError(t, err)
		require.Len(t, hook.AllEntries(), 2)
		require.Equal(t, 200, hook.LastEntry().Data["status"])
	})
}

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(r *http.Request) (*http.Response, error) {
	return f(r)
}

func TestPerform(t *testing.T) {
	t.Run("Caller headers win", func(t *testing.T) {
		var ua string
		srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			ua = r.UserAgent()
			w.WriteHeader(http.StatusTeapot)
		})

		status, _, _, err := New(WithHTTPClient(srv.Client())).Perform(context.Background(), http.MethodGet, srv.URL, http.Header{"User-Agent": {"mine"}})

		require.NoError(t, err)
		require.Equal(t, http.StatusTeapot, status)
		require.Equal(t, "mine", ua)
	})

	t.Run("Bad URL", func(t *testing.T) {
		_, _, _, err := New().Perform(context.Background(), http.MethodGet, "://nope", nil)

		var terr *TransportError
		require.ErrorAs(t, err, &terr)
		require.Equal(t, "://nope", terr.URL)
	})

	t.Run("Cancelled context", func(t *testing.T) {
		srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, _, _, err := New(WithHTTPClient(srv.Client())).Perform(ctx, http.MethodGet, srv.URL, nil)

		require.True(t, errors.Is(err, context.Canceled))
	})
}
