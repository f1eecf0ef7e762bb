package ingest

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"time"

	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"github.com/timmy/leaflet/internal/domain"
	"github.com/timmy/leaflet/internal/epub"
	"github.com/timmy/leaflet/internal/logger"
	"github.com/timmy/leaflet/internal/storage"
)

const defaultContentType = "application/octet-stream"

// DocumentStore creates document metadata records.
type DocumentStore interface {
	Create(ctx context.Context, doc *domain.Document) error
}

// PersisterConfig holds configuration for the persister.
type PersisterConfig struct {
	Concurrency int
}

// Persister writes a document graph's resources to blob storage and records
// one Document per written resource.
type Persister struct {
	docs        DocumentStore
	storage     storage.ObjectStorage
	logger      *logger.Logger
	concurrency int
}

// NewPersister creates a persister.
func NewPersister(docs DocumentStore, objectStorage storage.ObjectStorage, log *logger.Logger, cfg *PersisterConfig) *Persister {
	concurrency := 4
	if cfg != nil && cfg.Concurrency > 0 {
		concurrency = cfg.Concurrency
	}
	return &Persister{
		docs:        docs,
		storage:     objectStorage,
		logger:      log,
		concurrency: concurrency,
	}
}

func (p *Persister) log(ctx context.Context) *logger.Logger {
	return logger.FromContextOr(ctx, p.logger)
}

// ResourceOutcome is the result of persisting one resource.
type ResourceOutcome struct {
	Path      string
	Key       string
	MediaType string
	Skipped   bool // not present in the archive
	Recorded  bool
	Uploaded  bool
	Err       error
}

// PersistReport lists the outcome of every resource in a Persist call.
type PersistReport struct {
	PublicationID string
	Outcomes      []ResourceOutcome
}

// Recorded counts resources with a Document record.
func (r *PersistReport) Recorded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Recorded {
			n++
		}
	}
	return n
}

// Uploaded counts resources whose blob was written.
func (r *PersistReport) Uploaded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Uploaded {
			n++
		}
	}
	return n
}

// Failed returns the outcomes that carry an error.
func (r *PersistReport) Failed() []ResourceOutcome {
	var failed []ResourceOutcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}

// Orphans returns the keys of blobs already written. When the job fails
// these are left behind for cleanup.
func (r *PersistReport) Orphans() []string {
	var keys []string
	for _, o := range r.Outcomes {
		if o.Uploaded {
			keys = append(keys, o.Key)
		}
	}
	return keys
}

type pendingUpload struct {
	path      string
	mediaType string
	read      func() ([]byte, error)
}

// Persist writes every media entry found in the archive, plus the original
// archive and the package document. Each resource gets its record before its
// upload. Uploads are best-effort; an unreadable entry or a record failure
// fails the call once all resources have finished.
// Parameters:
//   - ctx: context for cancellation and logging.
//   - graph: document graph from Orchestrator.Ingest.
//   - media: manifest entries to upload.
//   - archive: the archive the graph was parsed from.
//
// Returns:
//   - *PersistReport: per-resource outcomes, also returned on error.
//   - error: first failure; KindInput for an unreadable entry, KindDependency
//     for a record-creation failure.
func (p *Persister) Persist(ctx context.Context, graph *Graph, media []MediaEntry, archive *epub.Archive) (*PersistReport, error) {
	start := time.Now()
	pub := graph.Publication
	pkgPath := graph.Package.Path

	pending := make([]pendingUpload, 0, len(media)+2)
	pending = append(pending,
		pendingUpload{
			path:      epub.OriginalName,
			mediaType: epub.MediaTypeEPUB,
			read:      func() ([]byte, error) { return archive.Bytes(), nil },
		},
		pendingUpload{
			path:      pkgPath,
			mediaType: epub.MediaTypePackage,
			read:      entryReader(archive, pkgPath),
		},
	)

	report := &PersistReport{PublicationID: pub.ID}
	seen := map[string]bool{pkgPath: true}
	for _, m := range media {
		if seen[m.Path] {
			continue
		}
		seen[m.Path] = true

		// The uploaded archive owns this key.
		if m.Path == epub.OriginalName {
			p.log(ctx).WithField("path", m.Path).Warn("Manifest entry shadowed by original archive")
			report.Outcomes = append(report.Outcomes, ResourceOutcome{Path: m.Path, MediaType: m.MediaType, Skipped: true})
			continue
		}

		if _, ok := archive.Entry(m.Path); !ok {
			p.log(ctx).WithField("path", m.Path).Debug("Manifest entry not in archive")
			report.Outcomes = append(report.Outcomes, ResourceOutcome{Path: m.Path, MediaType: m.MediaType, Skipped: true})
			continue
		}
		pending = append(pending, pendingUpload{path: m.Path, mediaType: m.MediaType, read: entryReader(archive, m.Path)})
	}

	offset := len(report.Outcomes)
	report.Outcomes = append(report.Outcomes, make([]ResourceOutcome, len(pending))...)

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, u := range pending {
		out := &report.Outcomes[offset+i]
		g.Go(func() error {
			return p.persistOne(ctx, pub, u, out)
		})
	}
	err := g.Wait()

	entry := logger.With(logger.Fields{
		logger.FieldPublicationID: pub.ID,
		"recorded":                report.Recorded(),
		"uploaded":                report.Uploaded(),
		"failed":                  len(report.Failed()),
	}).WithCount(len(report.Outcomes)).Since(start)
	if err != nil {
		entry.Warn(ctx, "Persisted publication resources with errors")
		return report, err
	}
	entry.Info(ctx, "Persisted publication resources")
	return report, nil
}

func (p *Persister) persistOne(ctx context.Context, pub *domain.Publication, u pendingUpload, out *ResourceOutcome) error {
	key := StorageKey(pub.ReaderID, pub.ID, u.path)
	mediaType := u.mediaType
	if mediaType == "" {
		mediaType = defaultContentType
	}
	*out = ResourceOutcome{Path: u.path, Key: key, MediaType: mediaType}
	log := p.log(ctx).WithFields(logger.Fields{"path": u.path, "key": key})

	data, err := u.read()
	if err != nil {
		out.Err = Wrap(KindInput, "read entry", err)
		log.WithError(err).Error("Failed to read archive entry")
		return out.Err
	}

	doc := &domain.Document{
		ReaderID:      pub.ReaderID,
		PublicationID: pub.ID,
		MediaType:     mediaType,
		StorageKey:    key,
		URL:           p.storage.GetURL(key),
		Path:          u.path,
		Size:          int64(len(data)),
	}
	if strings.HasPrefix(mediaType, "image/") {
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
			doc.Width, doc.Height = cfg.Width, cfg.Height
		}
	}

	if err := p.docs.Create(ctx, doc); err != nil {
		out.Err = Wrap(KindDependency, "create document record", err)
		log.WithError(err).Error("Failed to create document record")
		return out.Err
	}
	out.Recorded = true

	if err := p.storage.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), mediaType); err != nil {
		out.Err = Wrap(KindDependency, "upload resource", err)
		log.WithError(err).Warn("Failed to upload resource")
		return nil
	}
	out.Uploaded = true

	if err := p.storage.MakePublic(ctx, key); err != nil {
		out.Err = Wrap(KindDependency, "make resource public", err)
		log.WithError(err).Warn("Failed to make resource public")
	}
	return nil
}

func entryReader(archive *epub.Archive, path string) func() ([]byte, error) {
	return func() ([]byte, error) {
		f, err := archive.Require(path)
		if err != nil {
			return nil, err
		}
		return archive.ReadContent(f)
	}
}
