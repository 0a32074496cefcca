// internal/app/app.go
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/markdave123-py/docbundle/internal/config"
	"github.com/markdave123-py/docbundle/internal/core/ingestion_engine"
	"github.com/markdave123-py/docbundle/internal/services"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type App struct {
	Pool     *ingestion_engine.Pool
	Sessions *services.SessionManager
	Server   *Server
	Registry *prometheus.Registry

	log *zap.Logger
}

// NewApp wires the extraction pool, the session manager and the HTTP server.
// The pool is started here and warmed in the background.
func NewApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	registry := prometheus.NewRegistry()
	metrics := ingestion_engine.NewMetrics(registry)

	runtimeCfg := ingestion_engine.RuntimeConfig{
		ScratchDir:       cfg.ScratchDir,
		RequirePDFToText: cfg.RequirePDFToText,
	}
	pool := ingestion_engine.NewPool(ingestion_engine.PoolConfig{
		Size:           cfg.PoolSize,
		QueueSize:      cfg.QueueSize,
		ExtractTimeout: cfg.ExtractTimeout,
	}, ingestion_engine.NewDocconvFactory(runtimeCfg, log.Named("runtime")), log.Named("pool"), metrics)
	pool.Start(ctx)

	// Pay the runtime start-up cost before the first upload arrives.
	go func() {
		warmCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		if err := pool.Warm(warmCtx); err != nil {
			log.Error("extraction pool unavailable", zap.Error(err))
		}
	}()

	sessions := services.NewSessionManager(pool, cfg.SessionTTL, log.Named("sessions"), metrics)
	go sweepSessions(ctx, sessions, cfg.SessionTTL)

	server := NewServer(cfg, sessions, pool, registry, log.Named("http"))

	return &App{Pool: pool, Sessions: sessions, Server: server, Registry: registry, log: log}, nil
}

func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
	_ = a.log.Sync()
}

// sweepSessions drops idle sessions until ctx ends.
func sweepSessions(ctx context.Context, sessions *services.SessionManager, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	interval := ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sessions.Sweep()
		}
	}
}
