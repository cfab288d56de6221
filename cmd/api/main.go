package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/cfdi-reporter/internal/api"
	"github.com/dvloznov/cfdi-reporter/internal/api/handlers"
	"github.com/dvloznov/cfdi-reporter/internal/config"
	"github.com/dvloznov/cfdi-reporter/internal/logger"
	"github.com/dvloznov/cfdi-reporter/internal/metrics"
	"github.com/dvloznov/cfdi-reporter/internal/session/inmemory"
)

func main() {
	// Bootstrap logger until the configured one is ready
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Command-line flags override the environment
	port := flag.Int("port", cfg.Port, "HTTP server port (or set CFDI_PORT)")
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	flag.Parse()
	cfg.Port = *port

	configured, err := logger.NewWithLevel(*logLevel, cfg.LogFormat)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure logger")
	}
	log = configured

	store := inmemory.NewStore()
	m := metrics.New()
	m.TrackSessions(store.Len)

	sessionsHandler := handlers.NewSessionsHandler(store, m, cfg.MaxUploadBytes(), log)
	router := api.NewRouter(sessionsHandler, api.RouterConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		Metrics:        m,
		Log:            log,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	pruneCtx, stopPruning := context.WithCancel(context.Background())
	defer stopPruning()
	go pruneSessions(pruneCtx, store, cfg.SessionTTL, log)

	// Start server in a goroutine
	go func() {
		log.Info().Int("port", cfg.Port).Dur("session_ttl", cfg.SessionTTL).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	stopPruning()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// pruneSessions drops sessions idle for longer than ttl until ctx is done.
func pruneSessions(ctx context.Context, store *inmemory.Store, ttl time.Duration, log zerolog.Logger) {
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
		case now := <-ticker.C:
			removed, err := store.PruneIdle(ctx, now.Add(-ttl))
			if err != nil {
				log.Error().Err(err).Msg("Failed to prune sessions")
				continue
			}
			if removed > 0 {
				log.Info().Int("removed", removed).Int("live", store.Len()).Msg("Pruned idle sessions")
			}
		}
	}
}
