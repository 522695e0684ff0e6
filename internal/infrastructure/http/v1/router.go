// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"lotledger/internal/domain/lot"
	"lotledger/internal/domain/receiving"
	"lotledger/internal/domain/transfer"
	"lotledger/internal/infrastructure/http/v1/handlers"
	"lotledger/internal/infrastructure/http/v1/middleware"
	"lotledger/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation. When nil, the API runs without
	// authentication (tests, local demo mode).
	JWTValidator middleware.JWTValidator

	// Storage reachability check for the readiness probe. Nil for the
	// in-memory backend.
	Storage handlers.Pinger

	// Audit serves lot audit trails. Nil disables the endpoint.
	Audit handlers.AuditReader

	Lots       *lot.Service
	Transfers  *transfer.Coordinator
	Reconciler *receiving.Reconciler
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth required)
	healthHandler := handlers.NewHealthHandler(cfg.Storage)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	// API v1
	api := router.Group("/api/v1")
	if cfg.JWTValidator != nil {
		api.Use(middleware.Auth(cfg.JWTValidator))
	} else {
		api.Use(middleware.StaticActor("anonymous"))
	}

	baseHandler := handlers.NewBaseHandler()

	// --- LOTS ---
	{
		handler := handlers.NewLotHandler(baseHandler, cfg.Lots)

		lots := api.Group("/lots")
		lots.POST("", handler.Create)
		lots.GET("", handler.List)
		lots.GET("/:lotId", handler.Get)
		lots.POST("/:lotId/movements", handler.RecordMovement)
		lots.GET("/:lotId/movements", handler.ListMovements)
		lots.POST("/:lotId/reserve", handler.Reserve)
		lots.POST("/:lotId/release", handler.Release)
		lots.POST("/:lotId/verify", handler.VerifyLedger)
		lots.POST("/:lotId/alerts/:alertId/acknowledge", handler.AcknowledgeAlert)

		api.GET("/alerts/low-stock", handler.ListLowStockAlerts)
	}

	// --- AUDIT ---
	if cfg.Audit != nil {
		handler := handlers.NewAuditHandler(baseHandler, cfg.Audit)

		// The trail exposes who did what; restrict it when the API is
		// authenticated at all.
		trail := api.Group("/lots/:lotId/audit")
		if cfg.JWTValidator != nil {
			trail.Use(middleware.RequireRole("auditor", "admin"))
		}
		trail.GET("", handler.History)
	}

	// --- TRANSFERS ---
	{
		handler := handlers.NewTransferHandler(baseHandler, cfg.Transfers)
		api.POST("/transfers", handler.Transfer)
	}

	// --- RECEIVING ---
	{
		handler := handlers.NewReceivingHandler(baseHandler, cfg.Reconciler)
		receivingGroup := api.Group("/receiving")
		receivingGroup.POST("/preview", handler.Preview)
		receivingGroup.POST("/confirm", handler.Confirm)
	}

	return router
}
