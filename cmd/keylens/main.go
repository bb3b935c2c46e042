package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"

	entraadapter "github.com/keylens/keylens/internal/adapter/driven/entra"
	keyvaultadapter "github.com/keylens/keylens/internal/adapter/driven/keyvault"
	sinkadapter "github.com/keylens/keylens/internal/adapter/driven/sink"
	sqliteadapter "github.com/keylens/keylens/internal/adapter/driven/sqlite"
	httphandler "github.com/keylens/keylens/internal/adapter/driving/http"
	"github.com/keylens/keylens/internal/application"
	"github.com/keylens/keylens/internal/config"
	"github.com/keylens/keylens/internal/domain/port/driven"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"scan_interval", cfg.ScanInterval,
		"entra_enabled", cfg.EntraEnabled,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open notification history database (dual reader/writer, WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Service credential for background discovery. Per-request web
	// discovery exchanges the caller's token instead (see userSource).
	appCred, err := azidentity.NewClientSecretCredential(cfg.TenantID, cfg.ClientID, cfg.ClientSecret, nil)
	if err != nil {
		return err
	}

	sources := []driven.CredentialSource{keyvaultadapter.NewSource(appCred)}
	if cfg.EntraEnabled {
		sources = append(sources, entraadapter.NewSource(appCred, cfg.TenantID))
	}

	// 6. Wire notification sinks and history store.
	store := sqliteadapter.NewNotificationRepo(db)
	sinks := []driven.NotificationSink{sinkadapter.NewLogSink(slog.Default())}
	if cfg.WebhookURL != "" {
		sinks = append(sinks, sinkadapter.NewWebhookSink(cfg.WebhookURL))
		slog.Info("webhook sink enabled")
	}
	sinks = append(sinks, sinkadapter.NewHistorySink(store))

	// 7. Create and start the scan service.
	aggregator := application.NewAggregator(slog.Default())
	broker := application.NewNotificationBroker(sinks, slog.Default())
	scanSvc := application.NewScanService(aggregator, sources, broker, cfg.ScanInterval, slog.Default())
	go scanSvc.Start(ctx)

	// 8. Create HTTP handler and register API routes. Web requests add a
	// Key Vault source running on behalf of the caller.
	userSource := func(userAssertion string) (driven.CredentialSource, error) {
		return keyvaultadapter.NewOnBehalfOfSource(cfg.TenantID, cfg.ClientID, cfg.ClientSecret, userAssertion)
	}

	apiHandler := httphandler.NewHandler(
		aggregator,
		scanSvc,
		store,
		sources,
		sources,
		userSource,
		cfg.ClientID,
		cfg.Scope,
		slog.Default(),
	)
	handler := httphandler.NewServeMux(apiHandler, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("keylens started",
		"listen_addr", cfg.ListenAddr,
		"scan_interval", cfg.ScanInterval,
	)

	// 9. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 10. Graceful shutdown with 10s timeout for HTTP server drain.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
		return err
	}

	slog.Info("shutdown complete")
	return nil
}
