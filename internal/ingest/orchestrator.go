package ingest

import (
	"context"
	"fmt"

	"github.com/timmy/leaflet/internal/domain"
	"github.com/timmy/leaflet/internal/epub"
	"github.com/timmy/leaflet/internal/logger"
)

// Graph is the in-memory document graph of one ingestion: the root
// publication plus the parsed package it was built from.
type Graph struct {
	Publication *domain.Publication
	Package     *epub.Package
}

// MediaEntry is a manifest resource scheduled for upload.
type MediaEntry struct {
	Path      string
	MediaType string
	Metadata  map[string]string
}

// Orchestrator turns archive bytes into a document graph.
type Orchestrator struct {
	logger *logger.Logger
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(log *logger.Logger) *Orchestrator {
	return &Orchestrator{logger: log}
}

func (o *Orchestrator) log(ctx context.Context) *logger.Logger {
	return logger.FromContextOr(ctx, o.logger)
}

// Ingest opens the archive, locates and parses the package document and
// assembles the document graph.
// Parameters:
//   - ctx: context for logging and cancellation.
//   - data: archive bytes.
//   - targetID: identifier assigned to the root publication.
//   - readerID: owning reader.
//
// Returns:
//   - *Graph: root publication and parsed package.
//   - []MediaEntry: manifest resources to upload.
//   - *epub.Archive: the opened archive, reused for persistence.
//   - error: archive or parser error tagged KindInput.
func (o *Orchestrator) Ingest(ctx context.Context, data []byte, targetID, readerID string) (*Graph, []MediaEntry, *epub.Archive, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, nil, Wrap(KindInternal, "ingest", err)
	}

	archive, err := epub.OpenArchive(data)
	if err != nil {
		return nil, nil, nil, Wrap(KindInput, "open archive", err)
	}

	container, err := archive.Require(epub.ContainerPath)
	if err != nil {
		return nil, nil, nil, Wrap(KindInput, "locate container", err)
	}
	containerText, err := archive.ReadText(container, "")
	if err != nil {
		return nil, nil, nil, Wrap(KindInput, "read container", err)
	}
	packagePath, err := epub.ParseContainer(containerText)
	if err != nil {
		return nil, nil, nil, Wrap(KindInput, "parse container", err)
	}

	pkgFile, err := archive.Require(packagePath)
	if err != nil {
		o.log(ctx).WithFields(logger.Fields{
			"package_path": packagePath,
			"entries":      archive.Names(),
		}).Debug("Package document not in archive")
		return nil, nil, nil, Wrap(KindInput, "locate package document", err)
	}
	pkgText, err := archive.ReadText(pkgFile, "")
	if err != nil {
		return nil, nil, nil, Wrap(KindInput, "read package document", err)
	}
	pkg, err := epub.ParsePackage(pkgText, packagePath)
	if err != nil {
		return nil, nil, nil, Wrap(KindInput, "parse package document", err)
	}

	graph := &Graph{
		Publication: &domain.Publication{
			ID:           targetID,
			ReaderID:     readerID,
			Title:        pkg.Title,
			Language:     pkg.Language,
			Authors:      domain.StringArray(pkg.Authors),
			Identifier:   pkg.Identifier,
			Version:      pkg.Version,
			ReadingOrder: toRefs(pkg.ReadingOrder),
			Resources:    toRefs(pkg.Resources),
		},
		Package: pkg,
	}

	manifest := pkg.Manifest()
	media := make([]MediaEntry, 0, len(manifest))
	for _, r := range manifest {
		media = append(media, MediaEntry{Path: r.URL, MediaType: r.EncodingFormat, Metadata: map[string]string{}})
	}

	fields := logger.Fields{
		logger.FieldPublicationID: targetID,
		"package_path":            packagePath,
		"resources":               len(pkg.Resources),
		"reading_order":           len(pkg.ReadingOrder),
	}
	if cover, ok := pkg.CoverResource(); ok {
		fields["cover"] = cover.URL
	}
	if nav, ok := pkg.Contents(); ok {
		fields["contents"] = nav.URL
	}
	o.log(ctx).WithFields(fields).Debug("Parsed package document")

	return graph, media, archive, nil
}

func toRefs(resources []epub.Resource) domain.ResourceList {
	refs := make(domain.ResourceList, len(resources))
	for i, r := range resources {
		refs[i] = domain.ResourceRef{URL: r.URL, Rel: append([]string(nil), r.Rel...), EncodingFormat: r.EncodingFormat}
	}
	return refs
}

// StorageKey is the deterministic blob key of a publication resource.
func StorageKey(readerID, publicationID, path string) string {
	return fmt.Sprintf("%s/%s/%s", readerID, publicationID, path)
}
