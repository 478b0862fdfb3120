package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx as database/sql driver
	"github.com/revenuelab/modelgate/internal/api"
	"github.com/revenuelab/modelgate/internal/auditlog"
	"github.com/revenuelab/modelgate/internal/auth"
	"github.com/revenuelab/modelgate/internal/authz"
	"github.com/revenuelab/modelgate/internal/ledger"
	"github.com/revenuelab/modelgate/internal/registry"
	"github.com/revenuelab/modelgate/internal/router"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// Logger
	logger := mustBuildLogger(envOrDefault("MODELGATE_LOG_LEVEL", "info"))
	defer logger.Sync() //nolint:errcheck // best-effort flush

	// Config from env
	httpPort := envOrDefault("MODELGATE_HTTP_PORT", "8080")
	postgresDSN := os.Getenv("POSTGRES_DSN")
	clickhouseDSN := os.Getenv("CLICKHOUSE_DSN")
	policyCacheTTL := envOrDefaultInt("MODELGATE_POLICY_CACHE_TTL_S", 60)
	authCacheTTL := envOrDefaultInt("MODELGATE_AUTH_CACHE_TTL_S", 30)

	logger.Info("starting modelgate server",
		zap.String("http_port", httpPort),
		zap.Int("policy_cache_ttl_s", policyCacheTTL),
		zap.Int("auth_cache_ttl_s", authCacheTTL),
	)

	// Registry, denial store, ledger and authenticator share the Postgres
	// pool. Without POSTGRES_DSN the server runs in development mode on
	// in-memory state.
	var (
		reg           registry.Registry
		denials       authz.DenialStore
		decisionStore ledger.Ledger
		authenticator auth.Authenticator
	)
	if postgresDSN != "" {
		db, err := sql.Open("pgx", postgresDSN)
		if err != nil {
			logger.Fatal("failed to open postgres", zap.Error(err))
		}
		defer func() { _ = db.Close() }()
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(context.Background()); err != nil {
			logger.Fatal("failed to ping postgres", zap.Error(err))
		}
		logger.Info("postgres connected")

		reg = registry.NewPostgresRegistry(registry.PostgresRegistryConfig{
			DB:       db,
			CacheTTL: time.Duration(policyCacheTTL) * time.Second,
			Logger:   logger,
		})
		denials = authz.NewPostgresDenialStore(db)
		decisionStore = ledger.NewPostgresLedger(db)
		authenticator = auth.NewPostgresAuthenticator(auth.PostgresAuthConfig{
			DB:       db,
			CacheTTL: time.Duration(authCacheTTL) * time.Second,
			Logger:   logger,
		})
	} else {
		logger.Warn("no POSTGRES_DSN set, running on in-memory state")
		reg = registry.NewStaticRegistry()
		denials = authz.NewMemoryDenialStore()
		decisionStore = ledger.NewMemoryLedger()
		authenticator = auth.NewStaticAuthenticator()
	}

	// Envelope audit — ClickHouse or LogWriter fallback
	var auditor auditlog.Writer
	if clickhouseDSN != "" {
		chWriter, err := auditlog.NewClickHouseWriter(clickhouseDSN, logger)
		if err != nil {
			logger.Warn("clickhouse connection failed, falling back to log writer",
				zap.Error(err),
			)
			auditor = auditlog.NewLogWriter(logger)
		} else {
			auditor = chWriter
			logger.Info("clickhouse audit writer connected")
		}
	} else {
		auditor = auditlog.NewLogWriter(logger)
		logger.Info("no CLICKHOUSE_DSN set, using log audit writer")
	}
	defer auditor.Close()

	// ClickHouse reader (for the audit listing endpoint)
	var auditReader *auditlog.Reader
	if clickhouseDSN != "" {
		var err error
		auditReader, err = auditlog.NewReader(clickhouseDSN, logger)
		if err != nil {
			logger.Warn("clickhouse reader connection failed", zap.Error(err))
		} else {
			defer func() { _ = auditReader.Close() }()
			logger.Info("clickhouse audit reader connected")
		}
	}

	modelRouter := router.NewRouter(reg, logger)
	deps := &api.Dependencies{
		Registry:   reg,
		Authorizer: authz.NewAuthorizer(reg, denials, logger),
		Router:     modelRouter,
		Ledger:     decisionStore,
		Verifier:   ledger.NewVerifier(decisionStore, reg, reg, modelRouter, logger),
		Auditor:    auditor,
		Reader:     auditReader,
		Auth:       authenticator,
		Logger:     logger,
	}

	httpServer := &http.Server{
		Addr:         ":" + httpPort,
		Handler:      api.NewRouter(deps),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	// Block until shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", zap.String("signal", sig.String()))

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}

	logger.Info("modelgate server stopped")
}

func mustBuildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	return logger
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
