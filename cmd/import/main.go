package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/timmy/leaflet/internal/config"
	"github.com/timmy/leaflet/internal/logger"
	"github.com/timmy/leaflet/internal/queue"
	"github.com/timmy/leaflet/internal/repository"
	"github.com/timmy/leaflet/internal/service"
	"github.com/timmy/leaflet/internal/source"
	"github.com/timmy/leaflet/internal/source/localdir"
	"github.com/timmy/leaflet/internal/storage"
)

func main() {
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "leaflet-import",
	})
	logger.SetDefaultLogger(appLogger)

	dir := flag.String("dir", "", "Directory scanned for .epub files")
	readerID := flag.String("reader", "", "Reader that owns the imported publications")
	limit := flag.Int("limit", 100, "Maximum number of files to submit")
	batchSize := flag.Int("batch", 20, "Files fetched from the source per batch")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	if *dir == "" || *readerID == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	appLogger.WithFields(logger.Fields{
		"dir":    *dir,
		"reader": *readerID,
		"limit":  *limit,
	}).Info("Starting import")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

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

	uploadService := service.NewUploadService(
		objectStorage,
		service.NewJobTracker(repository.NewJobRepository(db), appLogger),
		taskQueue,
		appLogger,
		&service.UploadConfig{TransientPrefix: cfg.Storage.TransientPrefix},
	)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	stats := importFrom(ctx, localdir.NewAdapter(*dir), uploadService, *readerID, *limit, *batchSize, appLogger)
	appLogger.WithFields(logger.Fields{
		"source":    stats.source,
		"submitted": stats.submitted,
		"failed":    stats.failed,
	}).Info("Import completed")
}

type importStats struct {
	source    string
	submitted int
	failed    int
}

// importFrom submits up to limit files from src, one job each.
func importFrom(
	ctx context.Context,
	src source.Source,
	uploads *service.UploadService,
	readerID string,
	limit, batchSize int,
	log *logger.Logger,
) importStats {
	stats := importStats{source: src.GetDisplayName()}
	cursor := ""
	for stats.submitted+stats.failed < limit {
		if ctx.Err() != nil {
			break
		}
		n := batchSize
		if remaining := limit - stats.submitted - stats.failed; remaining < n {
			n = remaining
		}

		items, next, err := src.FetchBatch(ctx, cursor, n)
		if err != nil {
			log.WithError(err).Error("Failed to fetch batch")
			break
		}
		for _, item := range items {
			if err := submit(ctx, uploads, readerID, item, log); err != nil {
				stats.failed++
				continue
			}
			stats.submitted++
		}
		if next == "" {
			break
		}
		cursor = next
	}
	return stats
}

func submit(ctx context.Context, uploads *service.UploadService, readerID string, item source.EpubItem, log *logger.Logger) error {
	f, err := os.Open(item.LocalPath)
	if err != nil {
		log.WithError(err).WithField("path", item.LocalPath).Warn("Failed to open file")
		return err
	}
	defer f.Close()

	job, err := uploads.Submit(ctx, readerID, item.FileName, f, item.Size)
	if err != nil {
		log.WithError(err).WithField("path", item.LocalPath).Warn("Failed to submit file")
		return err
	}
	log.WithFields(logger.Fields{
		"path":   item.SourceID,
		"job_id": job.ID,
	}).Info("Submitted")
	return nil
}
