package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"land-registry/registry-backend/internal/config"
	"land-registry/registry-backend/internal/database"
	"land-registry/registry-backend/internal/server"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
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

	if cfg.Security.JWTSecret == "" {
		logger.Fatal("JWT_SECRET must be set")
	}
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Open(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	if err := database.Migrate(db, server.ModelRegistry, logger); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}

	ctx := context.Background()
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

	srv := app.HTTPServer(cfg.Server)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", srv.Addr))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}
