package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/auth"
	"github.com/vovakirdan/wirechat-rooms/internal/blob"
	"github.com/vovakirdan/wirechat-rooms/internal/config"
	"github.com/vovakirdan/wirechat-rooms/internal/core"
	"github.com/vovakirdan/wirechat-rooms/internal/metrics"
	"github.com/vovakirdan/wirechat-rooms/internal/store"
	"github.com/vovakirdan/wirechat-rooms/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/wirechat-rooms/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	pruneInterval   time.Duration
	hub             *core.Hub
	store           store.Store
	blobs           *blob.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	blobs, err := blob.Open(blob.Options{
		Path:      cfg.Blob.Path,
		InMemory:  cfg.Blob.InMemory,
		PublicURL: cfg.PublicURL,
		MaxBytes:  cfg.Attachments.MaxBytes,
	}, st, logger)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("init blob store: %w", err)
	}
	logger.Info().Str("blob_path", cfg.Blob.Path).Bool("in_memory", cfg.Blob.InMemory).Msg("blob store initialized")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte(cfg.JWT.Secret),
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
		TTL:      cfg.JWT.TTL,
	})

	hub := core.NewHub(st, blobs, core.Options{
		ErrorScope:         core.ErrorScope(cfg.Errors.Scope),
		MaxAttachments:     cfg.Attachments.MaxCount,
		MaxAttachmentBytes: cfg.Attachments.MaxBytes,
	}, metrics.New(reg), logger)

	server := transporthttp.NewServer(transporthttp.Deps{
		Hub:      hub,
		Auth:     authService,
		Store:    st,
		Blobs:    blobs,
		Gatherer: reg,
	}, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		pruneInterval:   cfg.Blob.PruneInterval,
		hub:             hub,
		store:           st,
		blobs:           blobs,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go a.hub.Run(ctx)
	go a.pruneLoop(ctx)

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// pruneLoop periodically drops attachment bytes whose metadata is gone.
func (a *App) pruneLoop(ctx context.Context) {
	if a.pruneInterval <= 0 {
		return
	}
	ticker := time.NewTicker(a.pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.blobs.Prune(ctx); err != nil && ctx.Err() == nil {
				a.log.Warn().Err(err).Msg("blob prune failed")
			}
		}
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.blobs != nil {
		if err := a.blobs.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close blob store")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
