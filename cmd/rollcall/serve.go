package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/rollcall/internal/channel"
	"github.com/alfredjeanlab/rollcall/internal/config"
	"github.com/alfredjeanlab/rollcall/internal/events"
	"github.com/alfredjeanlab/rollcall/internal/notify"
	"github.com/alfredjeanlab/rollcall/internal/processor"
	"github.com/alfredjeanlab/rollcall/internal/retry"
	"github.com/alfredjeanlab/rollcall/internal/sequence"
	"github.com/alfredjeanlab/rollcall/internal/server"
	"github.com/alfredjeanlab/rollcall/internal/store/postgres"
	ledgersync "github.com/alfredjeanlab/rollcall/internal/sync"
	"github.com/alfredjeanlab/rollcall/internal/verify"
)

const healthInterval = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the webhook, API and health servers",
	GroupID: "system",
	// Override PersistentPreRunE so we don't create an API client.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		ledger, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer func() {
			if err := ledger.Close(); err != nil {
				logger.Error("error closing ledger", "err", err)
			}
		}()

		alloc, err := sequence.New(cfg.RollPolicy, cfg.RollBase)
		if err != nil {
			return err
		}

		// Domain events.
		var publisher events.Publisher
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				return err
			}
			publisher = pub
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			publisher = &events.NoopPublisher{}
			logger.Info("events disabled (ROLLCALL_NATS_URL not set)")
		}
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Error("error closing publisher", "err", err)
			}
		}()

		// Delivery session.
		var (
			ch        notify.Channel
			readiness server.Readiness
		)
		if cfg.ChannelURL != "" {
			sess := channel.New(channel.Config{
				URL:    cfg.ChannelURL,
				Prefix: cfg.ChannelPrefix,
				Logger: logger,
			})
			sess.OnDisconnect(func(err error) {
				logger.Warn("delivery channel unavailable", "err", err)
			})
			openCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := sess.Open(openCtx)
			cancel()
			if err != nil {
				return err
			}
			defer sess.Close()
			ch, readiness = sess, sess
			logger.Info("delivery channel enabled", "url", cfg.ChannelURL, "prefix", cfg.ChannelPrefix)
		} else {
			ch = &notify.LogChannel{Logger: logger}
			logger.Info("delivery channel disabled (ROLLCALL_CHANNEL_URL not set)")
		}

		policy := retry.Policy{
			Attempts: cfg.DeliveryAttempts,
			Delay:    cfg.DeliveryDelay,
			OnRetry: func(attempt int, err error) {
				logger.Warn("delivery attempt failed", "attempt", attempt, "err", err)
			},
		}
		formatter := notify.NewFormatter(notify.Template{
			Title:     cfg.MessageTitle,
			Footer:    cfg.MessageFooter,
			InviteURL: cfg.InviteURL,
		}, cfg.ChannelDomain)
		notifier := notify.NewNotifier(formatter, ch, policy, cfg.SendTimeout, logger)

		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		proc := processor.New(processor.Deps{
			Verifier:  verify.New(cfg.WebhookSecret),
			Ledger:    ledger,
			Allocator: alloc,
			Notifier:  notifier,
			Publisher: publisher,
			Metrics:   processor.NewMetrics(registry),
			Logger:    logger,
		}, cfg.LedgerTimeout)

		srv := server.NewServer(proc, readiness, registry, logger)
		grpcServer := server.NewGRPCServer(srv, cfg.AuthToken)

		healthCtx, stopHealth := context.WithCancel(context.Background())
		defer stopHealth()
		go srv.WatchHealth(healthCtx, healthInterval)

		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return err
		}
		go func() {
			logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server error", "err", err)
			}
		}()

		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           srv.NewHTTPHandler(cfg.AuthToken),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		scheduler := startSync(cfg, ledger, logger)

		logger.Info("rollcall server started",
			"grpc_addr", cfg.GRPCAddr,
			"http_addr", cfg.HTTPAddr,
			"roll_policy", cfg.RollPolicy,
			"roll_base", cfg.RollBase,
		)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		if scheduler != nil {
			scheduler.Stop()
			logger.Info("sync scheduler stopped")
		}

		stopHealth()
		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")

		// In-flight webhooks finish their ledger append and delivery before
		// the HTTP server returns.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		logger.Info("shutdown complete")
		return nil
	},
}

// startSync starts the ledger mirror when an interval and at least one
// destination are configured. It returns nil otherwise.
func startSync(cfg *config.Config, ledger ledgersync.RowLister, logger *slog.Logger) *ledgersync.Scheduler {
	if cfg.SyncInterval <= 0 || cfg.SyncS3Bucket == "" {
		return nil
	}
	dest, err := ledgersync.NewS3Destination(
		context.Background(),
		cfg.SyncS3Bucket,
		cfg.SyncS3Prefix,
		cfg.SyncS3Region,
		cfg.SyncS3Endpoint,
	)
	if err != nil {
		logger.Error("failed to create S3 sync destination", "err", err)
		return nil
	}
	logger.Info("sync S3 destination enabled", "bucket", cfg.SyncS3Bucket, "prefix", cfg.SyncS3Prefix)

	s := ledgersync.NewScheduler(ledger, []ledgersync.Destination{dest}, cfg.SyncInterval, logger)
	s.Start()
	logger.Info("sync scheduler started", "interval", cfg.SyncInterval)
	return s
}
