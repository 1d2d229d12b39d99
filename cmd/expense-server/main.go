package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"

	"github.com/orchestra-mcp/expense/config"
	"github.com/orchestra-mcp/expense/providers"
	"github.com/orchestra-mcp/expense/src/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Debug() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	logger := log.Logger

	var deps providers.Deps
	if cfg.Database.URL == "" {
		logger.Warn().Msg("database.url not set, user and expense routes disabled")
	} else {
		db, err := store.Open(ctx, cfg.Database.URL, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open database")
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to migrate database")
		}
		deps.Users = db
		deps.Expenses = db
	}

	if rl := providers.InitRevocations(ctx, cfg.Redis, logger); rl != nil {
		defer rl.Close()
		deps.Revocations = rl
	}

	srv := providers.NewServer(cfg, deps, logger)
	if err := srv.Activate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to activate server")
	}

	httpSrv := &fasthttp.Server{
		Handler:     srv.Handler(),
		Name:        "expense",
		IdleTimeout: 2 * time.Minute,
	}

	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("expense server started")
		if err := httpSrv.ListenAndServe(cfg.Addr); err != nil {
			logger.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")
	_ = srv.Deactivate()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpSrv.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	logger.Info().Msg("server exited gracefully")
}
