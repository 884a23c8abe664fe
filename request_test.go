package webfinger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestURL(t *testing.T) {
	t.Run("Builds the well-known URL", func(t *testing.T) {
		// Arrange
		req, err := NewRequestBuilder("acct:carol@example.com").
			Host("example.com").
			Rel("http://webfinger.net/rel/avatar").
			Build()
		require.NoError(t, err)

		// Act
		u, err := req.URL()

		// Assert
		require.NoError(t, err)
		require.Equal(t,
			"https://example.com/.well-known/webfinger?resource=acct%3Acarol%40example.com&rel=http%3A%2F%2Fwebfinger.net%2Frel%2Favatar",
			u.String())
	})

	t.Run("Derives the host from the resource", func(t *testing.T) {
		req := NewRequest(MustParseResource("acct:carol@example.org:8443"))

		u, err := req.URL()

		require.NoError(t, err)
		require.Equal(t, "example.org:8443", u.Host)
	})

	t.Run("Explicit host wins over the resource", func(t *testing.T) {
		req := NewRequest(MustParseResource("acct:carol@example.org")).WithHost(MustParseHost("localhost:8080"))

		u, err := req.URL(WithScheme(SchemeHTTP))

		require.NoError(t, err)
		require.Equal(t, "http://localhost:8080/.well-known/webfinger?resource=acct%3Acarol%40example.org", u.String())
	})

	t.Run("Fails without a derivable host", func(t *testing.T) {
		req := NewRequest(MustParseResource("urn:isbn:0451450523"))

		_, err := req.URL()

		require.ErrorIs(t, err, ErrMissingHost)
	})

	t.Run("Fails when the derived host is not a host", func(t *testing.T) {
		req := NewRequest(MustParseResource("acct:carol@exa mple.com"))

		_, err := req.URL()

		require.ErrorIs(t, err, ErrMissingHost)
		require.ErrorIs(t, err, ErrValidation)
	})

	t.Run("Rejects other schemes", func(t *testing.T) {
		req := NewRequest(MustParseResource("acct:carol@example.com"))

		_, err := req.URL(WithScheme("ftp"))

		require.ErrorIs(t, err, ErrValidation)
	})

	t.Run("Rejects the zero request", func(t *testing.T) {
		_, err := Request{}.URL()

		require.ErrorIs(t, err, ErrMissingResource)
	})
}

func TestRequestQueryRoundTrip(t *testing.T) {
	resources := []string{
		"acct:carol@example.com",
		"https://example.com/users/carol?tab=posts",
		"acct:a&b=c+d e@example.com",
		"acct:日本語@例え.jp",
		"mailto:~carol.o-k_1@example.com",
	}
	relSets := [][]string{
		nil,
		{"self"},
		{"http://webfinger.net/rel/avatar", "self", "http://webfinger.net/rel/avatar"},
		{"a b", "x&y=z", "ü"},
	}
	for _, resource := range resources {
		for _, rels := range relSets {
			name := resource + " " + strings.Join(rels, ",")
			t.Run(name, func(t *testing.T) {
				// Arrange
				req, err := NewRequestBuilder(resource).Host("example.com").Rel(rels...).Build()
				require.NoError(t, err)

				// Act
				parsed, err := ParseQuery(req.Query())

				// Assert
				require.NoError(t, err)
				require.Equal(t, req.Resource(), parsed.Resource())
				require.Equal(t, req.Rels(), parsed.Rels())
				_, hasHost := parsed.Host()
				require.False(t, hasHost)
			})
		}
	}
}

func TestRequestQueryEncoding(t *testing.T) {
	req, err := NewRequestBuilder("acct:a&b=c+d e@example.com").Rel("self", "self").Build()
	require.NoError(t, err)

	query := req.Query()

	require.Equal(t, "resource=acct%3Aa%26b%3Dc%2Bd%20e%40example.com&rel=self&rel=self", query)
	require.Equal(t, "/.well-known/webfinger?"+query, req.String())
}

func TestRequestQueryKeepsUnreserved(t *testing.T) {
	req := NewRequest(MustParseResource("acct:A-z_0.9~@example.com"))

	require.Equal(t, "resource=acct%3AA-z_0.9~%40example.com", req.Query())
}

func TestParseQuery(t *testing.T) {
	t.Run("Accepts plus as space", func(t *testing.T) {
		req, err := ParseQuery("resource=acct%3Ajohn+doe%40example.com&rel=a+b")

		require.NoError(t, err)
		require.Equal(t, "acct:john doe@example.com", req.Resource().String())
		require.Equal(t, []Rel{MustParseRel("a b")}, req.Rels())
	})

	t.Run("First resource wins and unknown keys are ignored", func(t *testing.T) {
		req, err := ParseQuery("foo=bar&resource=acct%3Afirst%40example.com&&resource=acct%3Asecond%40example.com")

		require.NoError(t, err)
		require.Equal(t, "acct:first@example.com", req.Resource().String())
		require.Empty(t, req.Rels())
	})

	t.Run("Keeps rel order and duplicates", func(t *testing.T) {
		req, err := ParseQuery("rel=b&resource=acct%3Acarol%40example.com&rel=a&rel=b")

		require.NoError(t, err)
		require.Equal(t, []Rel{MustParseRel("b"), MustParseRel("a"), MustParseRel("b")}, req.Rels())
	})

	errorCases := []struct {
		name  string
		query string
		want  error
	}{
		{"empty query", "", ErrMissingResource},
		{"no resource", "rel=self", ErrMissingResource},
		{"empty resource", "resource=", ErrMissingResource},
		{"bare resource key", "resource", ErrMissingResource},
		{"bad escape in resource", "resource=acct%3Acarol%ZZ", ErrInvalidResource},
		{"resource without scheme", "resource=carol%40example.com", ErrInvalidResource},
		{"resource with nothing after scheme", "resource=acct:", ErrInvalidResource},
		{"empty rel", "resource=acct%3Acarol%40example.com&rel=", ErrInvalidRel},
		{"bad escape in rel", "resource=acct%3Acarol%40example.com&rel=%G1", ErrInvalidRel},
		{"padded rel", "resource=acct%3Acarol%40example.com&rel=%20self", ErrInvalidRel},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseQuery(tt.query)

			require.ErrorIs(t, err, tt.want)
			require.True(t, req.Resource().IsZero())
		})
	}
}

func TestRequestBuilder(t *testing.T) {
	t.Run("Reports every invalid value", func(t *testing.T) {
		_, err := NewRequestBuilder("carol").Host("https://example.com").Rel("self", "").Build()

		require.ErrorIs(t, err, ErrValidation)
		msg := err.Error()
		assert.Contains(t, msg, `invalid resource "carol"`)
		assert.Contains(t, msg, `invalid host "https://example.com"`)
		assert.Contains(t, msg, `invalid rel ""`)
	})

	t.Run("Host is optional", func(t *testing.T) {
		req, err := NewRequestBuilder("acct:carol@example.com").Build()

		require.NoError(t, err)
		_, ok := req.Host()
		require.False(t, ok)
		require.Nil(t, req.Rels())
	})

	t.Run("Rels are copied out", func(t *testing.T) {
		req, err := NewRequestBuilder("acct:carol@example.com").Rel("self").Build()
		require.NoError(t, err)

		rels := req.Rels()
		rels[0] = RelAvatar

		require.Equal(t, []Rel{RelSelf}, req.Rels())
	})
}
