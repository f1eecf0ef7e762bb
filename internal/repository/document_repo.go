package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/timmy/leaflet/internal/domain"
)

// DocumentRepository handles persisted resource records.
type DocumentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create inserts a document record.
func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

// ListByPublication returns a publication's documents ordered by path,
// scoped to the owning reader.
func (r *DocumentRepository) ListByPublication(ctx context.Context, readerID, publicationID string) ([]domain.Document, error) {
	var docs []domain.Document
	err := r.db.WithContext(ctx).
		Where("reader_id = ? AND publication_id = ?", readerID, publicationID).
		Order("path ASC").
		Find(&docs).Error
	return docs, err
}

// CountByPublication counts a publication's documents.
func (r *DocumentRepository) CountByPublication(ctx context.Context, publicationID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Document{}).
		Where("publication_id = ?", publicationID).
		Count(&count).Error
	return count, err
}
