// Package server assembles the registry services into an HTTP router.
package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"land-registry/registry-backend/internal/auth"
	"land-registry/registry-backend/internal/blockchain"
	"land-registry/registry-backend/internal/chat"
	"land-registry/registry-backend/internal/config"
	"land-registry/registry-backend/internal/ledger"
	"land-registry/registry-backend/internal/notifications"
	"land-registry/registry-backend/internal/notifications/websocket"
	"land-registry/registry-backend/internal/properties"
	"land-registry/registry-backend/internal/reports"
	"land-registry/registry-backend/internal/settings"
	"land-registry/registry-backend/internal/transactions"
	"land-registry/registry-backend/pkg/storage"
)

const statsTTL = 30 * time.Second

// Server holds the wired services and the router exposing them.
type Server struct {
	Router        *gin.Engine
	Engine        *transactions.Engine
	Notifications *notifications.Service
	hub           *websocket.Manager
	logger        *zap.Logger
}

// New wires every service against db. Extra channels (email) are added to
// the websocket push channel the server always runs.
func New(cfg *config.Config, db *gorm.DB, files storage.FileStore, chain blockchain.Chain, logger *zap.Logger, channels ...notifications.Channel) *Server {
	tokens := auth.NewTokenIssuer(cfg.Security.JWTSecret, cfg.Security.TokenTTL)
	authService := auth.NewService(auth.NewRepository(db), tokens, logger)

	propertyService := properties.NewService(properties.NewRepository(db), files, logger)
	settingsService := settings.NewService(settings.NewRepository(db), logger)

	hub := websocket.NewManager(logger)
	notifier := notifications.NewService(db, settingsService, logger, append([]notifications.Channel{hub}, channels...)...)

	engine := transactions.NewEngine(transactions.NewStore(db), chain, files, logger,
		transactions.WithPropertyLookup(propertyService),
		transactions.WithAccounts(authService),
		transactions.WithNotifier(notifier),
		transactions.WithConfig(transactions.EngineConfig{
			FinalizeTimeout:   cfg.Workflow.FinalizeTimeout,
			ExclusiveRequests: cfg.Workflow.ExclusiveRequests,
		}),
	)

	reportService := reports.NewService(authService, propertyService, engine, statsTTL, logger)
	chatService := chat.NewService(db, files, logger)
	ledgerService := ledger.NewService(chain, propertyService, files, cfg.Workflow.FinalizeTimeout, logger)

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger), corsMiddleware(), limitBody(cfg.Server.MaxUploadBytes))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
		})
	})

	api := router.Group("/api")
	auth.NewHandler(authService, tokens, logger).RegisterRoutes(api)

	protected := api.Group("", auth.RequireActor(tokens))
	{
		properties.NewHandler(propertyService, logger).RegisterRoutes(protected)
		transactions.NewHandler(engine, logger).RegisterRoutes(protected)
		ledger.NewHandler(ledgerService, logger).RegisterRoutes(protected)
		reports.NewHandler(reportService, logger).RegisterRoutes(protected)
		chat.NewHandler(chatService, logger).RegisterRoutes(protected)
		settings.NewHandler(settingsService, logger).RegisterRoutes(protected)
		notifications.NewHandler(notifier, hub.Upgrade, logger).RegisterRoutes(protected)
	}

	return &Server{
		Router:        router,
		Engine:        engine,
		Notifications: notifier,
		hub:           hub,
		logger:        logger,
	}
}

// HTTPServer returns an http.Server serving the router with the configured
// address and timeouts.
func (s *Server) HTTPServer(cfg config.ServerConfig) *http.Server {
	return &http.Server{
		Addr:         cfg.GetServerAddr(),
		Handler:      s.Router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

// Close drains pending notification deliveries and drops websocket clients.
func (s *Server) Close() {
	s.Notifications.Wait()
	s.hub.Close()
}
