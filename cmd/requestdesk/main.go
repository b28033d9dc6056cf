// Command requestdesk runs the request-desk webhook service: it receives chat
// platform updates over HTTP, drives the request lifecycle, and sweeps stale
// requests in the background.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nmehta/go-request-desk/internal/config"
	"github.com/nmehta/go-request-desk/internal/counters"
	"github.com/nmehta/go-request-desk/internal/guard"
	httpapi "github.com/nmehta/go-request-desk/internal/http"
	"github.com/nmehta/go-request-desk/internal/http/handlers"
	"github.com/nmehta/go-request-desk/internal/observability"
	"github.com/nmehta/go-request-desk/internal/platform"
	"github.com/nmehta/go-request-desk/internal/repo"
	"github.com/nmehta/go-request-desk/internal/services"
	"github.com/nmehta/go-request-desk/internal/store"
	"github.com/nmehta/go-request-desk/internal/sysutil"
	"github.com/nmehta/go-request-desk/internal/texts"
)

var version = "dev"

func main() {
	// .env is optional; real deployments use environment variables.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	logger := log.With().Str("service", "request-desk").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OTEL, version)
	if err != nil {
		logger.Fatal().Err(err).Msg("tracing setup failed")
	}
	defer func() {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shCtx); err != nil {
			logger.Warn().Err(err).Msg("tracing shutdown")
		}
	}()

	cs := buildCounters(cfg, logger)

	st := store.New()
	g := guard.New(cs, cfg.Cooldown, cfg.QuotaWindow, cfg.QuotaLimit, logger)
	prefs := texts.NewPrefs()

	messenger, directory := buildPlatform(cfg, logger)
	orch := services.New(st, g, cs, messenger, directory, prefs, cfg.OwnerID, cfg.AutoApproveKeywords, logger)
	query := services.NewQuery(st, directory)
	h := handlers.New(orch, query, prefs, messenger)

	gin.SetMode(cfg.GinMode)
	engine := gin.New()
	httpapi.RegisterRoutes(engine, h, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go sweepLoop(ctx, orch, cfg, logger)

	go func() {
		logger.Info().Str("addr", srv.Addr).Str("version", version).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// buildCounters picks the durable counters backend: Redis when configured,
// else SQLite, else process memory.
func buildCounters(cfg config.Config, logger zerolog.Logger) counters.Store {
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			logger.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable")
		}
		logger.Info().Str("addr", cfg.RedisAddr).Msg("counters: redis")
		return counters.NewRedis(client)
	}
	if cfg.DBPath != "" {
		db, err := repo.OpenSQLite(cfg.DBPath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.DBPath).Msg("sqlite open failed")
		}
		if err := repo.AutoMigrate(db); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
		logger.Info().Str("path", cfg.DBPath).Msg("counters: sqlite")
		return counters.NewSQL(db)
	}
	logger.Warn().Msg("counters: in-memory (no REDIS_ADDR or DB_PATH; counters reset on restart)")
	return counters.NewMemory()
}

// buildPlatform selects the real bot API client when a token is configured,
// or the dry-run messenger with an owner-only directory for development.
func buildPlatform(cfg config.Config, logger zerolog.Logger) (platform.Messenger, platform.Directory) {
	if cfg.BotToken != "" {
		api := platform.NewAPIClient(cfg.BotAPIBase, cfg.BotToken)
		return api, api
	}
	logger.Warn().Msg("no BOT_TOKEN: running with dry-run messenger")
	return platform.LogMessenger{Log: logger}, platform.OwnerDirectory{OwnerID: cfg.OwnerID, OwnerName: "owner"}
}

// sweepLoop closes requests that have sat pending past the auto-close age.
func sweepLoop(ctx context.Context, orch *services.Orchestrator, cfg config.Config, logger zerolog.Logger) {
	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := orch.AutoClose(ctx, now, cfg.AutoCloseAge); n > 0 {
				logger.Info().Int("closed", n).Msg("sweep")
			}
		}
	}
}
