package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/0dayfall/webfinger"
	"github.com/0dayfall/webfinger/internal/config"
	"github.com/0dayfall/webfinger/internal/middleware"
	"github.com/0dayfall/webfinger/internal/store"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Chdir(t.TempDir())
	cfg, err := config.Load(config.New(), "")
	require.NoError(t, err)
	cfg.Server.Domain = "example.com"
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Env = "test"
	cfg.Logging.Level = "error"
	return cfg
}

func newServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	s, err := New(context.Background(), cfg, "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestHandler(t *testing.T) {
	for _, framework := range []string{"mux", "echo"} {
		t.Run(framework, func(t *testing.T) {
			// Arrange
			cfg := testConfig(t)
			cfg.Server.Framework = framework
			h := newServer(t, cfg).Handler()
			req := httptest.NewRequest(http.MethodGet, "/.well-known/webfinger?resource=acct%3Acarol%40example.com", nil)
			req.Header.Set("Origin", "https://client.example.org")
			rr := httptest.NewRecorder()

			// Act
			h.ServeHTTP(rr, req)

			// Assert
			require.Equal(t, http.StatusOK, rr.Code)
			require.Equal(t, webfinger.ContentTypeJRD, rr.Header().Get("Content-Type"))
			require.NotEmpty(t, rr.Header().Get(middleware.HeaderRequestID))
			require.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
			resp, err := webfinger.ParseResponse(rr.Body.Bytes())
			require.NoError(t, err)
			require.Equal(t, "acct:carol@example.com", resp.Subject().String())
		})
	}
}

func TestHandlerRateLimits(t *testing.T) {
	cfg := testConfig(t)
	cfg.Security.RateLimitRPS = 1
	cfg.Security.RateLimitBurst = 1
	h := newServer(t, cfg).Handler()

	codes := make([]int, 0, 2)
	for range 2 {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
		codes = append(codes, rr.Code)
	}

	require.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestNew(t *testing.T) {
	t.Run("Unknown store driver", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Store.Driver = "bolt"

		_, err := New(context.Background(), cfg, "test")

		require.ErrorContains(t, err, `unknown store driver "bolt"`)
	})

	t.Run("Bad log level", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Logging.Level = "loud"

		_, err := New(context.Background(), cfg, "test")

		require.Error(t, err)
	})

	t.Run("File store", func(t *testing.T) {
		// Arrange
		cfg := testConfig(t)
		path := filepath.Join(t.TempDir(), "jrd.json")
		require.NoError(t, os.WriteFile(path, []byte(`[{"subject":"acct:dave@example.net","links":[{"rel":"self","href":"https://example.net/dave"}]}]`), 0o600))
		cfg.Store.Driver = DriverFile
		cfg.Store.Path = path
		h := newServer(t, cfg).Handler()
		rr := httptest.NewRecorder()

		// Act
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/.well-known/webfinger?resource=acct%3Adave%40example.net", nil))

		// Assert
		require.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("Missing file", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Store.Driver = DriverFile
		cfg.Store.Path = filepath.Join(t.TempDir(), "missing.json")

		_, err := New(context.Background(), cfg, "test")

		require.Error(t, err)
	})
}

func TestServe(t *testing.T) {
	// Arrange
	s := newServer(t, testConfig(t))
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	// Act
	res, err := http.Get(fmt.Sprintf("http://%s/.well-known/webfinger?resource=acct%%3Acarol%%40example.com", ln.Addr()))
	require.NoError(t, err)
	_ = res.Body.Close()
	cancel()

	// Assert
	require.Equal(t, http.StatusOK, res.StatusCode)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	data := store.NewMemoryStore()

	require.NoError(t, seed(ctx, "example.com", data))
	require.NoError(t, seed(ctx, "example.com", data))

	require.Equal(t, 1, data.Len())
	_, err := data.Lookup(ctx, webfinger.MustParseResource("acct:carol@example.com"))
	require.NoError(t, err)
}
