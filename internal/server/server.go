// Package server wires configuration, storage and HTTP routing into the reference WebFinger
// server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/0dayfall/webfinger"
	"github.com/0dayfall/webfinger/internal/config"
	"github.com/0dayfall/webfinger/internal/middleware"
	"github.com/0dayfall/webfinger/internal/migrations"
	"github.com/0dayfall/webfinger/internal/monitoring"
	"github.com/0dayfall/webfinger/internal/rest"
	"github.com/0dayfall/webfinger/internal/store"
	"github.com/0dayfall/webfinger/internal/tracing"
	"github.com/sirupsen/logrus"
)

// Store drivers accepted in store.driver.
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

const (
	frameworkEcho = "echo"

	cleanupInterval        = time.Minute
	defaultShutdownTimeout = 10 * time.Second
)

type Server struct {
	cfg     *config.Config
	logger  *logrus.Logger
	store   store.Store
	limiter *middleware.RateLimiter
	handler http.Handler
}

// New opens the configured store and builds the handler chain. The caller must Close the
// server.
func New(ctx context.Context, cfg *config.Config, version string) (*Server, error) {
	metrics := monitoring.NewMetrics()
	if err := metrics.SetLogLevel(cfg.Logging.Level); err != nil {
		return nil, fmt.Errorf("failed to set log level: %w", err)
	}
	metrics.SetLogFormat(cfg.Logging.Format)
	logger := metrics.Logger()

	data, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		store:   data,
		limiter: middleware.NewRateLimiter(cfg.Security.RateLimitRPS, cfg.Security.RateLimitBurst),
	}

	routes := rest.Routes{
		Resolver: &rest.StoreResolver{Data: data, Driver: cfg.Store.Driver, Metrics: metrics},
		Metrics:  metrics,
		Health:   metrics.HealthCheckHandler(version, data.Ping),
		Logger:   logger,
	}
	var router http.Handler
	if cfg.Server.Framework == frameworkEcho {
		router = rest.NewEchoRouter(routes, cfg.Tracing.ServiceName)
	} else {
		router = rest.NewMuxRouter(routes)
	}

	// Outermost first.
	s.handler = middleware.Chain(router,
		middleware.Recover(logger),
		middleware.RequestID,
		middleware.Logging(logger),
		metrics.HTTPMetricsMiddleware,
		middleware.CORS(cfg.Security.AllowedOrigins),
		s.limiter.RateLimit,
	)

	return s, nil
}

// Handler is the full handler chain, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down gracefully. It returns
// nil after a clean shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	go s.limiter.Run(ctx, cleanupInterval)

	errc := make(chan error, 1)
	go func() {
		if s.cfg.TLSEnabled() {
			s.logger.Infof("Starting HTTPS server on %s", ln.Addr())
			errc <- srv.ServeTLS(ln, s.cfg.Server.CertPath, s.cfg.Server.KeyPath)
			return
		}
		s.logger.Infof("Starting HTTP server on %s", ln.Addr())
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("Shutting down server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Close() error {
	return s.store.Close()
}

// Start installs tracing, builds the server from cfg and runs it until ctx is done.
func Start(ctx context.Context, cfg *config.Config, version string) error {
	shutdown, err := tracing.Setup(ctx, cfg.Tracing, version)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdown(flushCtx)
	}()

	s, err := New(ctx, cfg, version)
	if err != nil {
		return err
	}
	defer s.Close()

	s.logger.WithFields(logrus.Fields{
		"version":   version,
		"store":     cfg.Store.Driver,
		"framework": cfg.Server.Framework,
	}).Info("Starting WebFinger server")

	return s.Run(ctx)
}

func openStore(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) (store.Store, error) {
	switch cfg.Store.Driver {
	case DriverMemory:
		carol, err := store.Seed(cfg.Server.Domain)
		if err != nil {
			return nil, fmt.Errorf("failed to build seed record: %w", err)
		}
		return store.NewMemoryStore(carol), nil

	case DriverFile:
		data, err := store.LoadFile(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		logger.Infof("Loaded %d records from %s", data.Len(), cfg.Store.Path)
		return data, nil

	case DriverPostgres:
		if cfg.Database.Migrate {
			if err := migrate(cfg.Database.URL, logger); err != nil {
				return nil, err
			}
		}
		pg, err := store.NewPostgresStore(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			return nil, err
		}
		seedIfDev(ctx, cfg, pg, logger)
		return pg, nil

	case DriverRedis:
		rs, err := store.NewRedisStore(cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.KeyPrefix)
		if err != nil {
			return nil, err
		}
		seedIfDev(ctx, cfg, rs, logger)
		return rs, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func migrate(databaseURL string, logger logrus.FieldLogger) error {
	m, err := migrations.NewMigrator(databaseURL, logger)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer m.Close()

	logger.Info("Running database migrations")
	if err := m.Up(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// seedIfDev stores the demo account in development and test environments unless it exists.
func seedIfDev(ctx context.Context, cfg *config.Config, data store.Store, logger logrus.FieldLogger) {
	if !cfg.IsTestEnv() && !cfg.IsDevelopmentEnv() {
		return
	}
	if err := seed(ctx, cfg.Server.Domain, data); err != nil {
		logger.Warnf("Failed to seed test data: %v", err)
	}
}

func seed(ctx context.Context, domain string, data store.Store) error {
	carol, err := store.Seed(domain)
	if err != nil {
		return err
	}
	_, err = data.Lookup(ctx, carol.Subject())
	switch {
	case err == nil:
		return nil
	case errors.Is(err, webfinger.ErrResourceNotFound):
		return data.Put(ctx, carol)
	default:
		return err
	}
}
