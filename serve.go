package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"pagoda/config"
	"pagoda/cron"
	"pagoda/database"
	journalRepo "pagoda/database/repository/journal"
	snapshotRepo "pagoda/database/repository/snapshot"
	"pagoda/handlers"
	"pagoda/middleware"
	"pagoda/routes"
	"pagoda/services/bookingapi"
	"pagoda/services/pages"
	"pagoda/services/payment"
	"pagoda/services/reservation"
	"pagoda/services/tasks"
	"pagoda/utils"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the booking page HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config.LoadConfig(rootOpts.ConfigPath)
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	cfg := config.AppConfig
	logger := utils.GetLogger()
	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	metrics := utils.NewMetrics(prometheus.DefaultRegisterer)
	outcomes := []reservation.OutcomeRecorder{metrics}

	// Mongo and Redis back auditing and read replicas of snapshots; pages run without them.
	if err := database.InitDB(ctx); err != nil {
		logger.Warn("main: outcome journal disabled", zap.Error(err))
	} else {
		journal := journalRepo.NewMongoOutcomeJournal(database.Database())
		if err := journal.EnsureIndexes(ctx); err != nil {
			logger.Warn("main: failed to ensure journal indexes", zap.Error(err))
		}
		outcomes = append(outcomes, journalRepo.Recorder{Journal: journal, Logger: logger})
	}

	var snapshots snapshotRepo.SnapshotStore
	if err := utils.InitSnapshotCache(); err != nil {
		logger.Warn("main: snapshot mirror disabled", zap.Error(err))
	} else {
		snapshots = snapshotRepo.NewRedisSnapshotStore(utils.SnapshotClient, cfg.PageIdleTTL)
	}

	queue := asynq.NewClient(cron.ReceiptQueueOpt())
	defer queue.Close()

	var references reservation.ReferenceIssuer
	if cfg.StripeKey != "" {
		references = payment.NewStripeIssuer(cfg.StripeKey, cfg.StripeCurrency, logger)
	}

	backend := bookingapi.Instrument(
		bookingapi.New(cfg.BookingAPIURL, cfg.BookingAPIToken, &http.Client{Timeout: cfg.BookingAPITimeout}, logger),
		metrics,
	)

	registry, err := pages.NewRegistry(pages.Config{
		Backend:              backend,
		References:           references,
		Outcomes:             outcomes,
		Snapshots:            snapshots,
		Receipts:             tasks.NewReceiptQueue(queue),
		Observer:             metrics,
		TickInterval:         cfg.TickInterval,
		UrgencyThreshold:     cfg.UrgencyThreshold,
		ExpiryRedirectDelay:  cfg.ExpiryRedirectDelay,
		ConfirmRedirectDelay: cfg.ConfirmRedirectDelay,
		IdleTTL:              cfg.PageIdleTTL,
		BookingsListEnabled:  cfg.BookingsListEnabled,
		Logger:               logger,
	})
	if err != nil {
		return fmt.Errorf("main: failed to build page registry: %w", err)
	}
	janitor := registry.StartJanitor(time.Minute)

	utils.StartHealthMonitor(ctx, 30*time.Second, utils.SnapshotClient, database.MongoClient)

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.RateLimitMiddleware(cfg.MaxRequestsPerMin))

	handlerBundle := handlers.NewHandlerBundle(
		handlers.NewPageHandler(registry),
		handlers.Health,
		gin.WrapH(promhttp.Handler()),
	)
	routes.RegisterRoutes(router, handlerBundle)

	port := cfg.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	errCh := make(chan error, 1)
	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("main: server failed to start: %w", err)
		}
	}
	logger.Sugar().Info("main: server is shutting down...")

	// Closing the pages first ends open event streams and cancels held reservations.
	janitor.Stop()
	registry.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("main: server forced to shutdown: %w", err)
	}
	if err := database.Close(shutdownCtx); err != nil {
		logger.Warn("main: failed to disconnect MongoDB", zap.Error(err))
	}

	logger.Sugar().Info("main: server stopped gracefully")
	return nil
}
