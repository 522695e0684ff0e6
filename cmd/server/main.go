// Package main is the entry point for the lot ledger API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"lotledger/internal/auth"
	"lotledger/internal/core/lock"
	"lotledger/internal/core/tx"
	"lotledger/internal/domain/alert"
	"lotledger/internal/domain/audit"
	"lotledger/internal/domain/ledger"
	"lotledger/internal/domain/lot"
	"lotledger/internal/domain/receiving"
	"lotledger/internal/domain/transfer"
	v1 "lotledger/internal/infrastructure/http/v1"
	"lotledger/internal/infrastructure/http/v1/handlers"
	"lotledger/internal/infrastructure/http/v1/middleware"
	"lotledger/internal/infrastructure/storage/memory"
	"lotledger/internal/infrastructure/storage/postgres"
	"lotledger/pkg/logger"
	"lotledger/pkg/numerator"
)

func main() {
	// Local overrides; absence is fine in containers.
	_ = godotenv.Load()

	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := logger.WithLogger(context.Background(), log)
	log.Info("starting lot ledger server")

	// --- Storage backend ---
	var (
		lotRepo      lot.Repository
		movementRepo ledger.Repository
		txm          tx.ReadOnlyManager
		numbers      lot.NumberGenerator
		auditor      audit.Recorder
		auditTrail   handlers.AuditReader
		pinger       handlers.Pinger
	)

	switch getEnv("STORAGE", "postgres") {
	case "memory":
		store := memory.NewStore()
		memTxm := memory.NewTxManager(store)
		lotRepo = memory.NewLotRepo(store)
		movementRepo = memory.NewMovementRepo(store)
		numbers = memory.NewNumberGenerator(store)
		recorder := memory.NewAuditRecorder(store)
		auditor = recorder
		auditTrail = recorder
		txm = memTxm
		log.Info("using in-memory storage")

	default:
		dsn := mustEnv("DATABASE_URL")
		poolCfg := postgres.DefaultPoolConfig(dsn)
		if maxConns := getEnvInt("DB_MAX_CONNS", 25); maxConns > 0 {
			poolCfg.MaxConns = int32(maxConns)
		}

		pool, err := postgres.NewPool(ctx, poolCfg)
		if err != nil {
			log.Fatalw("failed to connect to database", "error", err)
		}
		defer pool.Close()
		log.Info("database connection established")

		pgTxm := postgres.NewTxManager(pool)
		lotRepo = postgres.NewLotRepo(pgTxm)
		movementRepo = postgres.NewMovementRepo(pgTxm)
		numbers = numerator.NewLotNumbers(numerator.New(pool))

		auditService, err := postgres.NewAuditService(pgTxm)
		if err != nil {
			log.Fatalw("failed to initialize audit service", "error", err)
		}
		auditor = auditService
		auditTrail = auditService
		txm = pgTxm
		pinger = pool
	}

	// --- Alert evaluator ---
	alertCfg := alert.DefaultConfig()
	if lead := getEnvDuration("ALERT_EXPIRY_LEAD_TIME", alertCfg.ExpiryLeadTime); lead > 0 {
		alertCfg.ExpiryLeadTime = lead
	}
	evaluator, err := alert.NewDefaultEvaluator(alertCfg)
	if err != nil {
		log.Fatalw("failed to compile alert rules", "error", err)
	}

	// --- Domain services ---
	ledgerService := ledger.NewService(movementRepo)
	lotService := lot.NewService(lotRepo, ledgerService, evaluator, numbers, lock.NewKeyed(), txm, auditor)
	transferCoordinator := transfer.NewCoordinator(lotService, txm, auditor)
	reconciler := receiving.NewReconciler(lotService)

	// --- JWT validation ---
	var validator middleware.JWTValidator
	if secret := getEnv("JWT_SECRET", ""); secret != "" {
		validator = auth.NewJWTService(auth.DefaultJWTConfig(secret))
	} else {
		log.Warn("JWT_SECRET not set, API runs without authentication")
	}

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Logger:       log,
		JWTValidator: validator,
		Storage:      pinger,
		Audit:        auditTrail,
		Lots:         lotService,
		Transfers:    transferCoordinator,
		Reconciler:   reconciler,
	})

	// --- HTTP Server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
