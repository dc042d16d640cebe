package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rewired-gh/spotfit/internal/analysis"
	"github.com/rewired-gh/spotfit/internal/config"
	"github.com/rewired-gh/spotfit/internal/logger"
	"github.com/rewired-gh/spotfit/internal/sampler"
	"github.com/rewired-gh/spotfit/internal/storage"
	"github.com/rewired-gh/spotfit/internal/telegram"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Setup logging with level support
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	// Initialize chain cache
	var cache sampler.ChainCache
	if cfg.Cache.Enabled {
		store, err := storage.Open(cfg.Cache.Path, cfg.Cache.MaxEntries, os.FileMode(cfg.Output.DirPermission))
		if err != nil {
			logger.Fatal("Failed to initialize chain cache: %v", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Error("Failed to close chain cache: %v", err)
			}
		}()
		cache = store
	} else {
		logger.Debug("Chain cache disabled")
	}

	// Initialize Telegram client
	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, 3, time.Second)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	// Signals only interrupt cache access; a started chain runs to completion.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	run, err := analysis.Run(ctx, cfg, cache)
	if err != nil {
		var degenerate *sampler.DegeneratePosteriorError
		if errors.As(err, &degenerate) {
			logger.Error("No finite posterior region; active terms: %v", degenerate.ActiveTerms)
		}
		logger.Fatal("Analysis failed: %v", err)
	}
	logger.Info("Analysis %q finished in %v", run.Label, time.Since(start).Round(time.Millisecond))

	if telegramClient != nil {
		if err := telegramClient.Send(run, time.Since(start)); err != nil {
			logger.Warn("Failed to send Telegram notification: %v", err)
		}
	}
}
