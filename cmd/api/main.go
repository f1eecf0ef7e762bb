package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/leaflet/internal/api"
	"github.com/timmy/leaflet/internal/api/handler"
	"github.com/timmy/leaflet/internal/config"
	"github.com/timmy/leaflet/internal/ingest"
	"github.com/timmy/leaflet/internal/logger"
	"github.com/timmy/leaflet/internal/queue"
	"github.com/timmy/leaflet/internal/repository"
	"github.com/timmy/leaflet/internal/service"
	"github.com/timmy/leaflet/internal/storage"
)

func main() {
	appLogger := logger.NewDefault()
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to get database handle")
	}
	defer sqlDB.Close()

	jobRepo := repository.NewJobRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	publicationRepo := repository.NewPublicationRepository(db)

	// Initialize storage (supports MinIO, R2, S3)
	objectStorage, err := storage.NewStorage(&storage.S3Config{
		Type:      storage.StorageType(cfg.Storage.Type),
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		UseSSL:    cfg.Storage.UseSSL,
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
		PublicURL: cfg.Storage.PublicURL,
	})
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize storage")
	}
	if err := objectStorage.EnsureBucket(ctx); err != nil {
		appLogger.WithError(err).Fatal("Failed to ensure storage bucket")
	}

	// Initialize queue
	rdb, err := queue.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to connect to queue")
	}
	defer rdb.Close()

	taskQueue := queue.NewClient(rdb, queue.Config{
		Stream: cfg.Redis.Stream,
		Group:  cfg.Redis.Group,
	}, appLogger)
	if err := taskQueue.EnsureGroup(ctx); err != nil {
		appLogger.WithError(err).Fatal("Failed to ensure consumer group")
	}

	// Initialize services
	tracker := service.NewJobTracker(jobRepo, appLogger)
	uploadService := service.NewUploadService(objectStorage, tracker, taskQueue, appLogger, &service.UploadConfig{
		TransientPrefix: cfg.Storage.TransientPrefix,
	})
	publicationService := service.NewPublicationService(publicationRepo, documentRepo)

	router := api.SetupRouter(&api.Services{
		Uploads:      uploadService,
		Jobs:         tracker,
		Publications: publicationService,
		Checks: map[string]handler.Pinger{
			"database": sqlDB.PingContext,
			"queue": func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			},
			"storage": objectStorage.EnsureBucket,
		},
	}, cfg, appLogger)

	workerDone := make(chan struct{})
	if cfg.Ingest.EmbeddedWorker {
		worker := service.NewIngestWorker(
			objectStorage,
			ingest.NewOrchestrator(appLogger),
			ingest.NewPersister(documentRepo, objectStorage, appLogger, &ingest.PersisterConfig{
				Concurrency: cfg.Ingest.UploadConcurrency,
			}),
			tracker,
			publicationRepo,
			appLogger,
			&service.WorkerConfig{TaskTimeout: cfg.Ingest.TaskTimeout},
		)
		go func() {
			defer close(workerDone)
			worker.Run(ctx, taskQueue, cfg.Ingest.Workers)
		}()
	} else {
		close(workerDone)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port":            cfg.Server.Port,
			"mode":            cfg.Server.Mode,
			"embedded_worker": cfg.Ingest.EmbeddedWorker,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}

	cancel()
	<-workerDone

	appLogger.Info("Server exited")
}
