package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"ghactivity/activity"
	"ghactivity/cache"
	"ghactivity/config"
	"ghactivity/contrib"
	"ghactivity/db"
	"ghactivity/fetcher"
	"ghactivity/github"
	"ghactivity/logger"
	"ghactivity/server"
)

const (
	schemaTimeout   = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Service errors
var (
	ErrServiceInit     = fmt.Errorf("service initialization error")
	ErrServiceRun      = fmt.Errorf("service run error")
	ErrServiceShutdown = fmt.Errorf("service shutdown error")
)

// Service represents the main application service
type Service struct {
	config     *config.Config
	database   *db.DB
	tracker    *activity.Tracker
	server     *server.Server
	httpServer *http.Server
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewService wires the clients, cache, optional database and HTTP server
// described by cfg.
func NewService(cfg *config.Config) (*Service, error) {
	if err := cfg.RequireUsername(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceInit, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{config: cfg, ctx: ctx, cancel: cancel}

	if err := s.init(); err != nil {
		cancel()
		if s.database != nil {
			_ = s.database.Close()
		}
		return nil, fmt.Errorf("%w: %v", ErrServiceInit, err)
	}

	logger.Info("Service initialized successfully",
		zap.String("username", cfg.Username),
		zap.String("listen_addr", cfg.ListenAddr),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Bool("database", s.database != nil))

	return s, nil
}

func (s *Service) init() error {
	cfg := s.config

	contributions, err := contrib.NewClient(cfg.ContributionsURL)
	if err != nil {
		return fmt.Errorf("failed to create contributions client: %w", err)
	}

	client, err := github.NewClient(cfg.GitHubToken, cfg.GitHubAPIURL)
	if err != nil {
		return fmt.Errorf("failed to create GitHub client: %w", err)
	}

	var opts []cache.Option
	if cfg.Database.Enabled() {
		database, err := db.New(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		s.database = database

		ctx, cancel := context.WithTimeout(s.ctx, schemaTimeout)
		defer cancel()
		if err := database.EnsureSchema(ctx); err != nil {
			return err
		}
		opts = append(opts, cache.WithBacking(database))
	}

	events := fetcher.NewService(client, cache.New(cfg.CacheTTL, opts...))
	aggregator := activity.NewAggregator(contributions, events)
	s.tracker = activity.NewTracker(aggregator)

	s.server, err = server.New(server.Options{
		Username:     cfg.Username,
		Events:       events,
		Loader:       aggregator,
		Tracker:      s.tracker,
		CacheTTL:     cfg.CacheTTL,
		DetailWindow: cfg.DetailWindow,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.server,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// Handler returns the HTTP handler of the service.
func (s *Service) Handler() http.Handler {
	return s.server
}

// Start runs the service until an interrupt or termination signal.
func (s *Service) Start() error {
	go s.waitForShutdown()
	return s.Run(s.ctx)
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Service) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("%w: failed to listen on %s: %v", ErrServiceRun, s.config.ListenAddr, err)
	}

	if s.database != nil {
		s.startMonitoring(ctx)
	}
	go s.processInitialActivity(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", ln.Addr().String()))
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("%w: %v", ErrServiceRun, err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%w: %v", ErrServiceShutdown, err)
	}
	return nil
}

// processInitialActivity loads the configured user's activity so the first
// page view is served warm.
func (s *Service) processInitialActivity(ctx context.Context) {
	logger.Info("Loading initial activity", zap.String("username", s.config.Username))

	if ctx.Err() != nil {
		return
	}
	state := s.server.Refresh(ctx)
	logger.Info("Initial activity loaded",
		zap.String("username", state.Username),
		zap.Uint64("generation", state.Generation),
		zap.Int("days", len(state.Activity.Days)),
		zap.Ints("years", state.Activity.Years))
}

// startMonitoring starts pruning snapshots that outlived the cache TTL
func (s *Service) startMonitoring(ctx context.Context) {
	logger.Info("Starting snapshot expiry monitoring",
		zap.Duration("prune_interval", s.config.PruneInterval))

	s.database.MonitorExpiry(ctx, s.config.PruneInterval, s.config.CacheTTL)
}

// waitForShutdown waits for the shutdown signal
func (s *Service) waitForShutdown() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		s.cancel()
	case <-s.ctx.Done():
	}
}

// Close performs cleanup operations
func (s *Service) Close() error {
	logger.Info("Closing service")
	s.cancel()
	if s.database == nil {
		return nil
	}
	if err := s.database.Close(); err != nil {
		return fmt.Errorf("%w: failed to close database: %v", ErrServiceShutdown, err)
	}
	return nil
}
