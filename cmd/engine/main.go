// Trading Engine - On-chain grid trading decision core
//
// Ingests price ticks and whale trades, drives grid strategies, gates
// every trade through the risk engine and watches open positions for
// take-profit and stop-loss exits.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Dipraise1/trading-engine/core"
	"github.com/Dipraise1/trading-engine/internal/config"
)

const version = "1.0.0"

func main() {
	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Load environment
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}

	cfg := config.Load()
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().
		Str("version", version).
		Bool("dry_run", cfg.DryRun).
		Msg("⚙️ Trading engine starting...")

	engine, err := core.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize engine")
	}

	// Graceful shutdown on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Info().Msg("🛑 Received shutdown signal")
		cancel()
	}()

	log.Info().Msg("✅ All systems online")

	if err := engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("Engine exited with error")
	}

	log.Info().Msg("👋 Goodbye!")
}
