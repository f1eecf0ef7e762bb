package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/timmy/leaflet/internal/domain"
	"github.com/timmy/leaflet/internal/repository"
)

// ErrPublicationNotFound is returned for unknown or foreign publications.
var ErrPublicationNotFound = errors.New("publication not found")

// PublicationReader loads publications scoped to a reader.
type PublicationReader interface {
	GetByID(ctx context.Context, readerID, id string) (*domain.Publication, error)
}

// DocumentLister lists the documents of a publication.
type DocumentLister interface {
	ListByPublication(ctx context.Context, readerID, publicationID string) ([]domain.Document, error)
}

// PublicationService exposes ingested publications.
type PublicationService struct {
	pubs PublicationReader
	docs DocumentLister
}

// NewPublicationService creates a publication service.
func NewPublicationService(pubs PublicationReader, docs DocumentLister) *PublicationService {
	return &PublicationService{pubs: pubs, docs: docs}
}

// Get returns a publication and its persisted documents.
func (s *PublicationService) Get(ctx context.Context, readerID, id string) (*domain.Publication, []domain.Document, error) {
	pub, err := s.pubs.GetByID(ctx, readerID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: %s", ErrPublicationNotFound, id)
		}
		return nil, nil, fmt.Errorf("failed to get publication: %w", err)
	}

	docs, err := s.docs.ListByPublication(ctx, readerID, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return pub, docs, nil
}
