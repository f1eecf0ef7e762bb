package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/timmy/leaflet/internal/domain"
)

// PublicationRepository handles publication data operations.
type PublicationRepository struct {
	db *gorm.DB
}

// NewPublicationRepository creates a new PublicationRepository.
func NewPublicationRepository(db *gorm.DB) *PublicationRepository {
	return &PublicationRepository{db: db}
}

// Upsert creates or replaces a publication keyed by ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - pub: publication record to create or update.
// Returns:
//   - error: non-nil if the upsert fails.
func (r *PublicationRepository) Upsert(ctx context.Context, pub *domain.Publication) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(pub).Error
}

// GetByID retrieves a publication owned by readerID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - readerID: owning reader.
//   - id: publication ID.
// Returns:
//   - *domain.Publication: publication if found.
//   - error: wraps ErrNotFound when absent.
func (r *PublicationRepository) GetByID(ctx context.Context, readerID, id string) (*domain.Publication, error) {
	var pub domain.Publication
	if err := r.db.WithContext(ctx).First(&pub, "id = ? AND reader_id = ?", id, readerID).Error; err != nil {
		return nil, mapNotFound(err, "publication", id)
	}
	return &pub, nil
}
