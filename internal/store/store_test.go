package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/0dayfall/webfinger"
	"github.com/stretchr/testify/require"
)

func TestSeed(t *testing.T) {
	resp, err := Seed("example.com")

	require.NoError(t, err)
	require.Equal(t, "acct:carol@example.com", resp.Subject().String())
	require.Len(t, resp.Links(), 3)
	require.Equal(t, webfinger.RelProfilePage, resp.Links()[0].Rel())
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	carol, err := Seed("example.com")
	require.NoError(t, err)
	s := NewMemoryStore(carol)

	t.Run("Finds by subject", func(t *testing.T) {
		resp, err := s.Lookup(ctx, webfinger.MustParseResource("acct:carol@example.com"))

		require.NoError(t, err)
		require.True(t, carol.Equal(resp))
	})

	t.Run("Finds by alias", func(t *testing.T) {
		resp, err := s.Lookup(ctx, webfinger.MustParseResource("https://example.com/~carol"))

		require.NoError(t, err)
		require.Equal(t, carol.Subject(), resp.Subject())
	})

	t.Run("Unknown resource", func(t *testing.T) {
		_, err := s.Lookup(ctx, webfinger.MustParseResource("acct:dave@example.com"))

		require.ErrorIs(t, err, webfinger.ErrResourceNotFound)
	})

	t.Run("Put replaces and drops stale aliases", func(t *testing.T) {
		s := NewMemoryStore(carol)
		updated, err := webfinger.NewResponseBuilder("acct:carol@example.com").Alias("https://example.com/@carol").Build()
		require.NoError(t, err)

		require.NoError(t, s.Put(ctx, updated))

		require.Equal(t, 1, s.Len())
		_, err = s.Lookup(ctx, webfinger.MustParseResource("https://example.com/~carol"))
		require.ErrorIs(t, err, webfinger.ErrResourceNotFound)
		resp, err := s.Lookup(ctx, webfinger.MustParseResource("https://example.com/@carol"))
		require.NoError(t, err)
		require.True(t, updated.Equal(resp))
	})

	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Close())
}

func TestParseRecords(t *testing.T) {
	t.Run("Valid file", func(t *testing.T) {
		data := []byte(`[
			{
				"subject": "acct:carol@example.com",
				"aliases": ["https://example.com/~carol"],
				"properties": {"http://schema.org/name": "Carol", "http://example.com/ns/x": null},
				"links": [{"rel": "self", "type": "application/activity+json", "href": "https://example.com/users/carol"}]
			},
			{"subject": "acct:dave@example.com"}
		]`)

		records, err := ParseRecords(data)

		require.NoError(t, err)
		require.Len(t, records, 2)
		v, ok := records[0].Property("http://example.com/ns/x")
		require.True(t, ok)
		require.True(t, v.IsNull())
		require.Equal(t, "acct:dave@example.com", records[1].Subject().String())
	})

	invalid := map[string]string{
		"not JSON":          `[`,
		"not an array":      `{"subject": "acct:carol@example.com"}`,
		"missing subject":   `[{"aliases": []}]`,
		"subject not a URI": `[{"subject": "carol"}]`,
		"link without rel":  `[{"subject": "acct:carol@example.com", "links": [{"href": "https://example.com/"}]}]`,
		"numeric property":  `[{"subject": "acct:carol@example.com", "properties": {"a": 1}}]`,
	}
	for name, data := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRecords([]byte(data))

			require.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	t.Run("Loads records", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "jrd.json")
		require.NoError(t, os.WriteFile(path, []byte(`[{"subject": "acct:carol@example.com"}]`), 0o600))

		s, err := LoadFile(path)

		require.NoError(t, err)
		require.Equal(t, 1, s.Len())
	})

	t.Run("Missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "nope.json"))

		require.ErrorContains(t, err, "failed to read records")
	})
}
