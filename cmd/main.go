package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ledomar/sideout/internal/adapters/feed"
	"github.com/ledomar/sideout/internal/adapters/http/api"
	"github.com/ledomar/sideout/internal/adapters/repository"
	pipeline "github.com/ledomar/sideout/internal/app"
	"github.com/ledomar/sideout/internal/config"
	"github.com/ledomar/sideout/internal/domain/rating"
	"github.com/ledomar/sideout/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	// Initialize logging
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, err := repository.Open(cfg.DBPath)
	if err != nil {
		log.Error(ctx, "failed to open store", logger.Error(err))
		return
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error(context.Background(), "failed to close store", logger.Error(err))
		}
	}()

	p := pipeline.New(store,
		pipeline.WithEngine(rating.New()),
		pipeline.WithLogger(log),
		pipeline.WithInitialRating(cfg.InitialRating),
	)

	// Ingestion: one-shot, or on a poll ticker. Runs are serialized by the
	// pipeline itself; this loop never overlaps them.
	if cfg.FeedPath != "" {
		source := feed.NewFileSource(cfg.FeedPath)
		ingest(ctx, log, p, source)

		if cfg.PollIntervalSec > 0 {
			go func() {
				ticker := time.NewTicker(time.Duration(cfg.PollIntervalSec) * time.Second)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						ingest(ctx, log, p, source)
					}
				}
			}()
		}
	}

	if cfg.Addr == "" {
		log.Info(ctx, "no http addr configured, exiting after ingestion")
		return
	}

	// HTTP mux and routes.
	mux := http.NewServeMux()
	apiServer := api.NewServer(p, cfg.MaxStandingsLimit)
	apiServer.Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}

// ingest fetches one feed snapshot and runs the pipeline over it. Feed and
// run failures are logged, not fatal: the next poll retries from the same
// durable state.
func ingest(ctx context.Context, log logger.Logger, p *pipeline.Pipeline, source feed.Source) {
	doc, err := source.Fetch(ctx)
	if err != nil {
		log.Error(ctx, "feed fetch failed", logger.Error(err))
		return
	}

	if registered, err := p.EnsureTeams(ctx, doc.Teams); err != nil {
		log.Error(ctx, "team registration failed", logger.Error(err))
		return
	} else if registered > 0 {
		log.Info(ctx, "registered new teams", logger.Int("count", registered))
	}

	summary, err := p.Run(ctx, doc.Matches)
	if err != nil {
		log.Error(ctx, "ingestion run failed",
			logger.String("run_id", summary.RunID),
			logger.Error(err),
		)
		return
	}
}
