package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/auth"
	"fintrack/internal/backend"
	"fintrack/internal/charts"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	apphttp "fintrack/internal/http"
	"fintrack/internal/log"
	"fintrack/internal/report"
	"fintrack/internal/services"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	ctx := context.Background()

	analyticsStore := cli.InitAnalytics(ctx, logger, cfg.AnalyticsDBPath)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid ledger configuration", "error", err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateLedger(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize ledger", "error", err, "backend", backendCfg.Type)
		os.Exit(1)
	}
	store := result.Ledger

	// Export is optional; without AMQP the ledger still works.
	var publisher services.SyncPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, transactions will not be exported", "error", err)
		} else {
			publisher = client
			logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	appLogger := log.FromSlog(logger, log.ComponentHTTP)
	txService := services.NewTransactionService(store, publisher, appLogger.WithComponent(log.ComponentLedger))

	engine := report.NewEngine(report.FromStore(analyticsStore))
	checkUserMap(ctx, logger, engine, cfg.UserDirectory())

	widgets, err := charts.NewRenderer(engine, store)
	if err != nil {
		logger.Error("Failed to initialize chart renderer", "error", err)
		os.Exit(1)
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Accounts:     store,
		Transactions: txService,
		Widgets:      widgets,
		Issuer:       auth.NewIssuer(cfg.SessionSecret, cfg.SessionTTL),
		Users:        cfg.UserDirectory(),
		Period:       cfg.ReportPeriod,
		Checks: map[string]apphttp.Check{
			"analytics": analyticsStore.Ping,
			"ledger":    store.Ping,
		},
		Logger:         appLogger,
		UploadMaxBytes: cfg.UploadMaxBytes,
		SecureCookies:  cfg.SecureCookies,
	})
	if err != nil {
		logger.Error("Failed to initialize HTTP server", "error", err)
		os.Exit(1)
	}

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if err := srv.Shutdown(stopCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if err := txService.Close(); err != nil {
			logger.Error("Ledger close error", "error", err)
		}
		if err := analyticsStore.Close(); err != nil {
			logger.Error("Analytics close error", "error", err)
		}
	})

	logger.Info("Starting fintrack server",
		"port", cfg.Port,
		"ledger_backend", backendCfg.Type,
		"analytics_db", cfg.AnalyticsDBPath,
		"export", publisher != nil,
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}

// checkUserMap warns about ANALYTICS_USER_MAP targets the snapshot does not know.
// Those logins still work but every analytics widget stays empty for them.
func checkUserMap(ctx context.Context, logger *slog.Logger, engine *report.Engine, users config.UserDirectory) {
	known, err := engine.LookupAllUsers(ctx)
	if err != nil {
		logger.Warn("Could not list analytics users", "error", err)
		return
	}
	for _, target := range users.MissingTargets(known) {
		logger.Warn("ANALYTICS_USER_MAP target not in analytics snapshot", "user", target)
	}
}
