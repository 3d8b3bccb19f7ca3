// Command pumpsniper trades newly launched pump.fun tokens on trade-flow momentum.
// It scores each new token over a short window, buys when the buy/sell flow passes
// the configured filters, and exits on take profit, stop loss or max hold.
//
// Usage:
//
//	pumpsniper --preset mover
//	pumpsniper --config config.yaml
//	pumpsniper --setup
//
// Environment variables (a .env file in the working directory is loaded when present):
//
//	SOLANA_PRIVATE_KEY    base58 wallet key, required in live mode
//	SOLANA_RPC_URL        RPC endpoint, defaults to mainnet-beta
//	PUMPPORTAL_WS_URL     data stream endpoint
//	PUMPPORTAL_TRADE_URL  trade construction endpoint
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/vadiminshakov/pumpsniper/config"
	"github.com/vadiminshakov/pumpsniper/internal"
	"github.com/vadiminshakov/pumpsniper/internal/setup"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("load .env: %v", err)
	}

	flags, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}
	if flags.Setup {
		path, err := setup.RunTUI()
		if err != nil {
			log.Fatal(err)
		}
		flags.Path = path
	}

	cfg, err := config.Get(flags)
	if err != nil {
		log.Fatal(err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	bot, err := internal.NewSniperBotFromConfig(cfg, logger)
	if err != nil {
		logger.Fatal("failed to create sniper", zap.Error(err))
	}
	defer func() {
		if err := bot.Close(); err != nil {
			logger.Warn("close journal", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := bot.Initialize(ctx); err != nil {
		logger.Error("initialize", zap.Error(err))
		return
	}
	if err := bot.Run(ctx); err != nil {
		logger.Error("sniper stopped with error", zap.Error(err))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}

	return zap.NewProduction()
}
