package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"gitlab.com/servio/api/station-feedback-service/internal/auth"
	"gitlab.com/servio/api/station-feedback-service/internal/config"
	"gitlab.com/servio/api/station-feedback-service/internal/mailer"
	"gitlab.com/servio/api/station-feedback-service/internal/observer"
	"gitlab.com/servio/api/station-feedback-service/internal/report"
	"gitlab.com/servio/api/station-feedback-service/internal/server"
	"gitlab.com/servio/api/station-feedback-service/internal/storage"
	"gitlab.com/servio/api/station-feedback-service/internal/usecase"
	"gitlab.com/servio/api/station-feedback-service/internal/whatsapp"
	"gitlab.com/servio/api/station-feedback-service/pkg/logger"
	"gitlab.com/servio/api/station-feedback-service/pkg/utils"
)

func main() {
	// Set timezone to UTC
	time.Local = time.UTC

	// Load configuration
	cfg, err := config.LoadConfig("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	metricsEnabled := cfg.Metrics.Enabled
	observer.InitMetrics(metricsEnabled)

	logger.Log.Info("Starting Station Feedback Service",
		zap.String("environment", cfg.Environment),
		zap.Int("port", cfg.Server.Port),
		zap.Bool("whatsapp_enabled", cfg.WhatsApp.Enabled),
	)

	// Initialize repositories
	postgresRepo, err := initPostgresRepo(cfg.Database.PostgresDSN, cfg.Database.PostgresAutoMigrate)
	if err != nil {
		logger.Log.Fatal("Failed to initialize Postgres repository", zap.Error(err))
	}

	feedbackRepo := storage.NewFeedbackRepoAdapter(postgresRepo)
	conversationRepo := storage.NewConversationRepoAdapter(postgresRepo)

	// Outbound channels
	waClient := whatsapp.NewGraphClient(cfg.WhatsApp, nil)
	smtpMailer := mailer.NewSMTPMailer(cfg.Mail)

	// Report pipeline
	reportInterval := time.Duration(cfg.Report.IntervalMinutes) * time.Minute
	dispatcher := report.NewDispatcher(feedbackRepo, smtpMailer, reportInterval)
	scheduler := report.NewScheduler(dispatcher, reportInterval)
	scheduler.Start()

	// Conversation engine and its worker pool
	conversationSvc := usecase.NewConversationService(conversationRepo, feedbackRepo, waClient, dispatcher)
	eventWorker, err := usecase.NewEventWorker(cfg.WorkerPools.Events, conversationSvc, logger.Log)
	if err != nil {
		logger.Log.Fatal("Failed to initialize event worker pool", zap.Error(err))
	}

	// Web intake and administration
	feedbackSvc := usecase.NewFeedbackService(feedbackRepo, waClient, dispatcher)
	authenticator := auth.NewAuthenticator(*cfg)

	httpServer := server.NewServer(cfg, feedbackSvc, eventWorker, authenticator, postgresRepo.Ping)

	// Run the HTTP server; a listener failure triggers shutdown.
	sigChan := make(chan os.Signal, 1)
	utils.SafeGo(func() {
		if err := httpServer.Run(); err != nil {
			logger.Log.Error("HTTP server failed, initiating shutdown", zap.Error(err))
			select {
			case sigChan <- syscall.SIGTERM:
			default:
				logger.Log.Warn("Could not send SIGTERM to signal channel immediately")
			}
		}
	}, nil)

	// Wait for termination signal
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Log.Info("Received termination signal", zap.String("signal", sig.String()))

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Log.Info("Starting graceful shutdown", zap.Duration("timeout", 30*time.Second))

	var wg sync.WaitGroup
	wg.Add(4)

	// Stop accepting HTTP traffic first so no new events or submissions arrive.
	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Stopping HTTP server")
		start := time.Now()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("[shutdown] Error stopping HTTP server", zap.Error(err))
		} else {
			logger.Log.Info("[shutdown] HTTP server stopped",
				zap.Duration("duration", time.Since(start)))
		}
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while stopping HTTP server",
			zap.Any("panic", r),
			zap.ByteString("stack", stack),
		)
		wg.Done()
	})

	// Drain the event worker pool
	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Stopping event worker pool")
		start := time.Now()
		eventWorker.Stop()
		logger.Log.Info("[shutdown] Event worker pool stopped",
			zap.Duration("duration", time.Since(start)))
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while stopping event worker pool",
			zap.Any("panic", r),
			zap.ByteString("stack", stack),
		)
		wg.Done()
	})

	// Stop the report scheduler
	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Stopping report scheduler")
		start := time.Now()
		scheduler.Stop()
		logger.Log.Info("[shutdown] Report scheduler stopped",
			zap.Duration("duration", time.Since(start)))
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while stopping report scheduler",
			zap.Any("panic", r),
			zap.ByteString("stack", stack),
		)
		wg.Done()
	})

	// Close database connections last
	utils.SafeGo(func() {
		defer wg.Done()
		logger.Log.Info("[shutdown] Closing PostgreSQL connection")
		start := time.Now()
		if err := postgresRepo.Close(shutdownCtx); err != nil {
			logger.Log.Error("[shutdown] Failed to close PostgreSQL connection", zap.Error(err))
		} else {
			logger.Log.Info("[shutdown] PostgreSQL connection closed",
				zap.Duration("duration", time.Since(start)))
		}
	}, func(r interface{}, stack []byte) {
		logger.Log.Error("[shutdown] Panic while closing database connections",
			zap.Any("panic", r),
			zap.ByteString("stack", stack),
		)
		wg.Done()
	})

	// Wait with a timeout for all components to shut down
	waitCh := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
		logger.Log.Info("[shutdown] All components stopped gracefully")
	case <-shutdownCtx.Done():
		logger.Log.Warn("[shutdown] Graceful shutdown timed out, forcing exit")
	}

	logger.Log.Info("Station Feedback Service shutdown complete")
}

// Initialize PostgreSQL repository
func initPostgresRepo(dsn string, autoMigrate bool) (*storage.PostgresRepo, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	repo, err := storage.NewPostgresRepo(dsn, autoMigrate)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres repository: %w", err)
	}

	logger.Log.Info("Initialized PostgreSQL repository")
	return repo, nil
}
