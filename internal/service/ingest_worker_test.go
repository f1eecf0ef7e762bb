package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/leaflet/internal/domain"
	"github.com/timmy/leaflet/internal/epub"
	"github.com/timmy/leaflet/internal/epub/epubtest"
	"github.com/timmy/leaflet/internal/ingest"
	"github.com/timmy/leaflet/internal/repository"
	"github.com/timmy/leaflet/internal/storage"
)

func farFuture() time.Time {
	return time.Now().UTC().Add(24 * time.Hour)
}

func submit(t *testing.T, h *harness, data []byte) *domain.Job {
	t.Helper()
	job, err := h.upload.Submit(context.Background(), "reader-1", "book.epub", bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	return job
}

func TestIngestWorkerEndToEnd(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, nil)
	data := epubtest.Minimal(t)
	job := submit(t, h, data)
	task := h.queue.tasks[0]

	h.worker.Run(ctx, h.queue, 1)

	status, err := h.tracker.StatusOf(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, status.Code)

	got, err := h.tracker.Get(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, got.TargetID)
	assert.Equal(t, task.TargetID, *got.TargetID)

	pub, err := h.pubs.GetByID(ctx, "reader-1", task.TargetID)
	require.NoError(t, err)
	assert.Equal(t, "Minimal", pub.Title)
	assert.Len(t, pub.ReadingOrder, 1)
	assert.Len(t, pub.Resources, 3)

	docs, err := h.docs.ListByPublication(ctx, "reader-1", task.TargetID)
	require.NoError(t, err)
	paths := make([]string, 0, len(docs))
	for _, d := range docs {
		paths = append(paths, d.Path)
	}
	assert.Equal(t, []string{"chapter1.xhtml", "content.opf", "original.epub"}, paths)

	prefix := "reader-1/" + task.TargetID + "/"
	keys := h.store.Keys()
	sort.Strings(keys)
	assert.Equal(t, []string{prefix + "chapter1.xhtml", prefix + "content.opf", prefix + "original.epub"}, keys,
		"transient upload deleted on success")

	original, _ := h.store.Object(prefix + epub.OriginalName)
	assert.Equal(t, data, original.Data)
}

func TestIngestWorkerMissingContainer(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, nil)
	job := submit(t, h, epubtest.Build(t, epubtest.Text("content.opf", epubtest.MinimalPackage)))
	task := h.queue.tasks[0]

	err := h.worker.Handle(ctx, task)
	require.ErrorIs(t, err, epub.ErrMissingRequiredEntry)

	status, err := h.tracker.StatusOf(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, status.Code)
	assert.Equal(t, "missing required entry: META-INF/container.xml", status.Message)

	got, _ := h.tracker.Get(ctx, job.ID)
	assert.Equal(t, string(ingest.KindInput), got.ErrorKind)

	assert.Equal(t, []string{task.TransientFileName}, h.store.Keys(), "no uploads; transient kept")
	count, err := h.docs.CountByPublication(ctx, task.TargetID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

type failingDocs struct{}

func (failingDocs) Create(ctx context.Context, doc *domain.Document) error {
	if doc.Path == "chapter1.xhtml" {
		return errors.New("disk I/O error")
	}
	return nil
}

func TestIngestWorkerRecordFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, failingDocs{}, nil)
	job := submit(t, h, epubtest.Minimal(t))
	task := h.queue.tasks[0]

	err := h.worker.Handle(ctx, task)
	require.Error(t, err)
	assert.Equal(t, ingest.KindDependency, ingest.KindOf(err))

	status, _ := h.tracker.StatusOf(ctx, job.ID)
	assert.Equal(t, http.StatusInternalServerError, status.Code)
	assert.Equal(t, "disk I/O error", status.Message)

	_, err = h.pubs.GetByID(ctx, "reader-1", task.TargetID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, kept := h.store.Object(task.TransientFileName)
	assert.True(t, kept)
}

// blockingStorage never finishes a download before the context ends.
type blockingStorage struct {
	*storage.MemoryStorage
}

func (s blockingStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestIngestWorkerTimeout(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, nil)
	job := submit(t, h, epubtest.Minimal(t))
	task := h.queue.tasks[0]

	worker := NewIngestWorker(
		blockingStorage{h.store},
		ingest.NewOrchestrator(nil),
		ingest.NewPersister(h.docs, h.store, nil, nil),
		h.tracker,
		h.pubs,
		nil,
		&WorkerConfig{TaskTimeout: 50 * time.Millisecond},
	)

	err := worker.Handle(ctx, task)
	require.Error(t, err)
	assert.Equal(t, ingest.KindTimeout, ingest.KindOf(err))

	got, err := h.tracker.Get(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Finished, "job must not stay pending")
	assert.Equal(t, string(ingest.KindTimeout), got.ErrorKind)
	assert.Contains(t, *got.Error, "deadline")
}

func TestIngestWorkerMissingUpload(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, nil)
	job := submit(t, h, epubtest.Minimal(t))
	task := h.queue.tasks[0]
	require.NoError(t, h.store.Delete(ctx, task.TransientFileName))

	err := h.worker.Handle(ctx, task)
	require.ErrorIs(t, err, storage.ErrNotFound)

	status, _ := h.tracker.StatusOf(ctx, job.ID)
	assert.Equal(t, http.StatusInternalServerError, status.Code)
}

func TestIngestWorkerUnreadableEntry(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil, nil)
	job := submit(t, h, epubtest.Build(t,
		epubtest.Text(epub.ContainerPath, epubtest.Container("content.opf")),
		epubtest.Text("content.opf", epubtest.MinimalPackage),
		epubtest.CorruptDeflate("chapter1.xhtml"),
	))
	task := h.queue.tasks[0]

	err := h.worker.Handle(ctx, task)
	require.Error(t, err)
	assert.Equal(t, ingest.KindInput, ingest.KindOf(err))

	status, err := h.tracker.StatusOf(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, status.Code)

	got, _ := h.tracker.Get(ctx, job.ID)
	assert.Equal(t, string(ingest.KindInput), got.ErrorKind)
	assert.Nil(t, got.TargetID)

	_, err = h.pubs.GetByID(ctx, "reader-1", task.TargetID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, kept := h.store.Object(task.TransientFileName)
	assert.True(t, kept)
}
