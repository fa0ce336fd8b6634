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

	"github.com/fundgateapp/fundgate/internal/config"
	"github.com/fundgateapp/fundgate/internal/database"
	"github.com/fundgateapp/fundgate/internal/docstore"
	"github.com/fundgateapp/fundgate/internal/email"
	"github.com/fundgateapp/fundgate/internal/logging"
	"github.com/fundgateapp/fundgate/internal/payments"
	"github.com/fundgateapp/fundgate/internal/server"
)

const (
	linkSweepInterval    = time.Hour
	counterSweepInterval = 5 * time.Minute
	shutdownTimeout      = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Setup("info", false).Error("load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.LogLevel, cfg.Production())

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	mailer := email.NewClient(cfg.ResendAPIKey, cfg.EmailFrom)
	pay := payments.NewClient(payments.Config{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
	})
	objects := docstore.New(docstore.Config{
		Bucket:     cfg.S3Bucket,
		Region:     cfg.S3Region,
		Endpoint:   cfg.S3Endpoint,
		AccessKey:  cfg.S3AccessKey,
		SecretKey:  cfg.S3SecretKey,
		Passphrase: cfg.DocPassphrase,
	})

	srv := server.New(cfg, db, mailer, pay, objects, logger)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sweepExpired(ctx, srv, logger)

	go func() {
		logger.Info("listening", "port", cfg.Port, "env", cfg.Env)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
}

// sweepExpired runs the periodic maintenance loops: expired magic links are
// purged hourly, stale rate-limit windows every few minutes.
func sweepExpired(ctx context.Context, srv *server.Server, logger *slog.Logger) {
	linkTicker := time.NewTicker(linkSweepInterval)
	counterTicker := time.NewTicker(counterSweepInterval)
	defer linkTicker.Stop()
	defer counterTicker.Stop()

	for {
		select {
		case <-linkTicker.C:
			n, err := srv.MagicLinks().DeleteExpired()
			if err != nil {
				logger.Error("magic link sweep", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("purged expired magic links", "count", n)
			}
		case <-counterTicker.C:
			srv.Counters().Cleanup()
		case <-ctx.Done():
			return
		}
	}
}
