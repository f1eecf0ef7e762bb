package service

import (
	"context"
	"sync"
	"testing"

	"gorm.io/gorm"

	"github.com/timmy/leaflet/internal/config"
	"github.com/timmy/leaflet/internal/ingest"
	"github.com/timmy/leaflet/internal/logger"
	"github.com/timmy/leaflet/internal/queue"
	"github.com/timmy/leaflet/internal/repository"
	"github.com/timmy/leaflet/internal/storage"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repository.InitDB(&config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         ":memory:",
		MaxIdleConns: 1,
		MaxOpenConns: 1,
		AutoMigrate:  true,
	})
	if err != nil {
		t.Fatalf("InitDB() error = %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// fakeQueue records enqueued tasks and replays them to Process.
type fakeQueue struct {
	mu    sync.Mutex
	tasks []queue.Task
	err   error
}

func (q *fakeQueue) Enqueue(ctx context.Context, task queue.Task) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
	return "1-0", nil
}

func (q *fakeQueue) next() (queue.Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tasks) == 0 {
		return queue.Task{}, false
	}
	t := q.tasks[0]
	q.tasks = q.tasks[1:]
	return t, true
}

// Process drains the queue and returns.
func (q *fakeQueue) Process(ctx context.Context, consumerID string, h queue.Handler) error {
	for {
		t, ok := q.next()
		if !ok {
			return nil
		}
		_ = h(ctx, t)
	}
}

type harness struct {
	jobs    *repository.JobRepository
	docs    *repository.DocumentRepository
	pubs    *repository.PublicationRepository
	tracker *JobTracker
	store   *storage.MemoryStorage
	queue   *fakeQueue
	upload  *UploadService
	worker  *IngestWorker
}

func newHarness(t *testing.T, docStore ingest.DocumentStore, cfg *WorkerConfig) *harness {
	t.Helper()
	db := newTestDB(t)
	log := logger.NewDefault()

	h := &harness{
		jobs:  repository.NewJobRepository(db),
		docs:  repository.NewDocumentRepository(db),
		pubs:  repository.NewPublicationRepository(db),
		store: storage.NewMemoryStorage("https://cdn.example.com"),
		queue: &fakeQueue{},
	}
	if docStore == nil {
		docStore = h.docs
	}
	h.tracker = NewJobTracker(h.jobs, log)
	h.upload = NewUploadService(h.store, h.tracker, h.queue, log, &UploadConfig{TransientPrefix: "uploads"})
	h.worker = NewIngestWorker(
		h.store,
		ingest.NewOrchestrator(log),
		ingest.NewPersister(docStore, h.store, log, &ingest.PersisterConfig{Concurrency: 2}),
		h.tracker,
		h.pubs,
		log,
		cfg,
	)
	return h
}
