package wfecho

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/0dayfall/webfinger"
	"github.com/kinbiko/jsonassert"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) *echo.Echo {
	t.Helper()
	link, err := webfinger.NewLinkBuilder("self").Type("application/activity+json").Href("https://example.com/users/carol").Build()
	require.NoError(t, err)
	carol, err := webfinger.NewResponseBuilder("acct:carol@example.com").Link(link).Build()
	require.NoError(t, err)

	e := echo.New()
	Register(e, webfinger.ResolverFunc(func(_ context.Context, req webfinger.Request) (webfinger.Response, error) {
		switch req.Resource() {
		case carol.Subject():
			return carol, nil
		case webfinger.MustParseResource("acct:broken@example.com"):
			return webfinger.Response{}, errors.New("connection refused")
		}
		return webfinger.Response{}, webfinger.ErrResourceNotFound
	}))
	return e
}

func TestRegister(t *testing.T) {
	t.Run("Serves the JRD", func(t *testing.T) {
		// Arrange
		e := setup(t)
		req := httptest.NewRequest(http.MethodGet, "/.well-known/webfinger?resource=acct%3Acarol%40example.com", nil)
		rec := httptest.NewRecorder()

		// Act
		e.ServeHTTP(rec, req)

		// Assert
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, webfinger.ContentTypeJRD, rec.Header().Get(echo.HeaderContentType))
		jsonassert.New(t).Assertf(rec.Body.String(), `{
			"subject": "acct:carol@example.com",
			"links": [{"rel": "self", "type": "application/activity+json", "href": "https://example.com/users/carol"}]
		}`)
	})

	t.Run("HEAD has no body", func(t *testing.T) {
		e := setup(t)
		req := httptest.NewRequest(http.MethodHead, "/.well-known/webfinger?resource=acct%3Acarol%40example.com", nil)
		rec := httptest.NewRecorder()

		e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("Filters by rel", func(t *testing.T) {
		e := setup(t)
		req := httptest.NewRequest(http.MethodGet, "/.well-known/webfinger?resource=acct%3Acarol%40example.com&rel=http%3A%2F%2Fwebfinger.net%2Frel%2Favatar", nil)
		rec := httptest.NewRecorder()

		e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		jsonassert.New(t).Assertf(rec.Body.String(), `{"subject": "acct:carol@example.com"}`)
	})

	errorCases := []struct {
		name   string
		target string
		status int
		body   string
	}{
		{"missing resource", "/.well-known/webfinger", http.StatusBadRequest, "missing resource"},
		{"invalid rel", "/.well-known/webfinger?resource=acct%3Acarol%40example.com&rel=", http.StatusBadRequest, "invalid rel"},
		{"unknown resource", "/.well-known/webfinger?resource=acct%3Adave%40example.com", http.StatusNotFound, "not found"},
		{"resolver failure", "/.well-known/webfinger?resource=acct%3Abroken%40example.com", http.StatusInternalServerError, "Internal Server Error"},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			e := setup(t)
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			rec := httptest.NewRecorder()

			e.ServeHTTP(rec, req)

			require.Equal(t, tt.status, rec.Code)
			require.Contains(t, rec.Body.String(), tt.body)
			require.NotContains(t, rec.Body.String(), "connection refused")
		})
	}
}

func TestHTTPError(t *testing.T) {
	herr := HTTPError(webfinger.ErrInvalidRel)

	require.Equal(t, http.StatusBadRequest, herr.Code)
	require.ErrorIs(t, herr.Internal, webfinger.ErrInvalidRel)
}
