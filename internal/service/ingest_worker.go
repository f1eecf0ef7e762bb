package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/timmy/leaflet/internal/domain"
	"github.com/timmy/leaflet/internal/ingest"
	"github.com/timmy/leaflet/internal/logger"
	"github.com/timmy/leaflet/internal/queue"
	"github.com/timmy/leaflet/internal/storage"
)

// Stage is a step of the per-task state machine.
type Stage string

const (
	StageReceived   Stage = "received"
	StageParsing    Stage = "parsing"
	StagePersisting Stage = "persisting"
	StageSucceeded  Stage = "succeeded"
	StageFailed     Stage = "failed"
)

// PublicationStore saves the root publication of a finished ingestion.
type PublicationStore interface {
	Upsert(ctx context.Context, pub *domain.Publication) error
}

// TaskSource delivers tasks to a handler.
type TaskSource interface {
	Process(ctx context.Context, consumerID string, h queue.Handler) error
}

// WorkerConfig holds configuration for the ingest worker.
type WorkerConfig struct {
	TaskTimeout time.Duration
}

// IngestWorker runs ingestion tasks to a terminal job state.
type IngestWorker struct {
	storage      storage.ObjectStorage
	orchestrator *ingest.Orchestrator
	persister    *ingest.Persister
	tracker      *JobTracker
	pubs         PublicationStore
	logger       *logger.Logger
	timeout      time.Duration
}

// NewIngestWorker creates an ingest worker.
func NewIngestWorker(
	objectStorage storage.ObjectStorage,
	orchestrator *ingest.Orchestrator,
	persister *ingest.Persister,
	tracker *JobTracker,
	pubs PublicationStore,
	log *logger.Logger,
	cfg *WorkerConfig,
) *IngestWorker {
	w := &IngestWorker{
		storage:      objectStorage,
		orchestrator: orchestrator,
		persister:    persister,
		tracker:      tracker,
		pubs:         pubs,
		logger:       log,
	}
	if cfg != nil {
		w.timeout = cfg.TaskTimeout
	}
	return w
}

func (w *IngestWorker) log(ctx context.Context) *logger.Logger {
	return logger.FromContextOr(ctx, w.logger)
}

func (w *IngestWorker) enter(ctx context.Context, stage Stage) {
	w.log(ctx).WithField(logger.FieldStage, string(stage)).Debug("Ingestion stage")
}

// Handle drives one task to completion and reports the outcome to the job
// tracker. On failure the transient upload is kept and already written blobs
// are logged as orphans. The returned error is informational only.
func (w *IngestWorker) Handle(ctx context.Context, task queue.Task) error {
	ctx = logger.FromContextOr(ctx, w.logger).WithFields(logger.Fields{
		logger.FieldComponent:     "ingest_worker",
		logger.FieldJobID:         task.JobID,
		logger.FieldReaderID:      task.ReaderID,
		logger.FieldPublicationID: task.TargetID,
	}).WithContext(ctx)
	start := time.Now()

	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if w.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, w.timeout)
	}
	report, err := w.run(runCtx, task)
	timedOut := errors.Is(runCtx.Err(), context.DeadlineExceeded)
	cancel()

	// The job must reach a terminal state even if the caller is shutting down.
	finishCtx := context.WithoutCancel(ctx)

	if err != nil {
		if timedOut {
			err = &ingest.Error{
				Kind: ingest.KindTimeout,
				Op:   "ingest",
				Err:  fmt.Errorf("ingestion exceeded deadline of %s: %w", w.timeout, err),
			}
		}
		w.enter(ctx, StageFailed)

		log := w.log(ctx).WithError(err).WithFields(logger.Fields{
			"error_kind": string(ingest.KindOf(err)),
			"retryable":  ingest.Retryable(err),
		})
		if report != nil {
			if orphans := report.Orphans(); len(orphans) > 0 {
				log = log.WithField("orphans", orphans)
			}
		}
		log.Error("Ingestion failed")

		if cerr := w.tracker.Complete(finishCtx, task.JobID, Completion{
			Error:     err.Error(),
			ErrorKind: string(ingest.KindOf(err)),
		}); cerr != nil {
			w.log(ctx).WithError(cerr).Error("Failed to record job failure")
		}
		return err
	}

	if derr := w.storage.Delete(finishCtx, task.TransientFileName); derr != nil {
		w.log(ctx).WithError(derr).WithField("key", task.TransientFileName).Warn("Failed to delete transient upload")
	}
	if cerr := w.tracker.Complete(finishCtx, task.JobID, Completion{TargetID: task.TargetID}); cerr != nil {
		w.log(ctx).WithError(cerr).Error("Failed to record job success")
		return cerr
	}

	w.enter(ctx, StageSucceeded)
	logger.With(logger.Fields{
		"recorded": report.Recorded(),
		"uploaded": report.Uploaded(),
	}).Since(start).Info(ctx, "Ingestion succeeded")
	return nil
}

func (w *IngestWorker) run(ctx context.Context, task queue.Task) (*ingest.PersistReport, error) {
	w.enter(ctx, StageReceived)
	data, err := w.download(ctx, task.TransientFileName)
	if err != nil {
		return nil, err
	}

	w.enter(ctx, StageParsing)
	graph, media, archive, err := w.orchestrator.Ingest(ctx, data, task.TargetID, task.ReaderID)
	if err != nil {
		return nil, err
	}

	w.enter(ctx, StagePersisting)
	report, err := w.persister.Persist(ctx, graph, media, archive)
	if err != nil {
		return report, err
	}
	if err := ctx.Err(); err != nil {
		return report, ingest.Wrap(ingest.KindTimeout, "persist resources", err)
	}

	if err := w.pubs.Upsert(ctx, graph.Publication); err != nil {
		return report, ingest.Wrap(ingest.KindDependency, "save publication", fmt.Errorf("failed to save publication: %w", err))
	}
	return report, nil
}

func (w *IngestWorker) download(ctx context.Context, key string) ([]byte, error) {
	rc, err := w.storage.Download(ctx, key)
	if err != nil {
		return nil, ingest.Wrap(ingest.KindDependency, "download upload", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, ingest.Wrap(ingest.KindDependency, "download upload", fmt.Errorf("failed to read upload: %w", err))
	}
	w.log(ctx).WithField(logger.FieldSize, len(data)).Debug("Downloaded upload")
	return data, nil
}

// Run starts n consumers on src and blocks until ctx is cancelled.
func (w *IngestWorker) Run(ctx context.Context, src TaskSource, n int) {
	if n < 1 {
		n = 1
	}
	host, err := os.Hostname()
	if err != nil {
		host = "worker"
	}

	w.log(ctx).WithField("workers", n).Info("Starting ingest workers")

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			consumer := fmt.Sprintf("%s-%d-%d", host, os.Getpid(), workerID)
			if err := src.Process(ctx, consumer, w.Handle); err != nil {
				w.log(ctx).WithError(err).WithField("consumer", consumer).Error("Worker stopped")
			}
		}(i)
	}
	wg.Wait()

	w.log(ctx).Info("Ingest workers stopped")
}
