package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"land-registry/registry-backend/internal/config"
	"land-registry/registry-backend/internal/database"
	"land-registry/registry-backend/internal/scheduler"
	"land-registry/registry-backend/internal/server"
)

// The finalize worker retries on-chain finalization for transactions that
// are government approved but were never completed, typically because the
// chain was unreachable when an official pressed finalize.
func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	once := flag.Bool("once", false, "run a single sweep and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := cfg.Logging.NewLogger()
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := database.Open(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	files, err := server.NewFileStore(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal("Failed to set up file storage", zap.Error(err))
	}
	chain, closeChain, err := server.DialChain(ctx, cfg.Blockchain, logger)
	if err != nil {
		logger.Fatal("Failed to connect to blockchain", zap.Error(err))
	}
	defer closeChain()
	channels, err := server.EmailChannels(ctx, cfg.Notifications, logger)
	if err != nil {
		logger.Fatal("Failed to set up notifications", zap.Error(err))
	}

	app := server.New(cfg, db, files, chain, logger, channels...)
	defer app.Close()

	sweeperCfg := scheduler.DefaultConfig()
	sweeperCfg.Schedule = cfg.Workflow.FinalizeSchedule
	sweeperCfg.BatchSize = cfg.Workflow.FinalizeBatchSize
	sweeper := scheduler.NewFinalizeSweeper(app.Engine, logger, sweeperCfg)

	if *once {
		res := sweeper.Sweep(ctx)
		logger.Info("Finalize sweep done",
			zap.Int("attempted", res.Attempted),
			zap.Int("finalized", res.Finalized),
			zap.Int("failed", res.Failed))
		return
	}

	if err := sweeper.Start(ctx); err != nil {
		logger.Fatal("Failed to start finalize sweeper", zap.Error(err))
	}
	logger.Info("Finalize worker started", zap.String("schedule", sweeperCfg.Schedule))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutdown signal received")

	sweeper.Stop()
	logger.Info("Finalize worker stopped")
}
