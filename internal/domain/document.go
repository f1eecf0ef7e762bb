package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Document is the metadata record for one resource written to blob storage.
type Document struct {
	ID            string    `gorm:"type:text;primaryKey" json:"id"`
	ReaderID      string    `gorm:"type:text;not null;index" json:"reader_id"`
	PublicationID string    `gorm:"type:text;not null;index:idx_documents_publication" json:"publication_id"`
	MediaType     string    `gorm:"type:text" json:"media_type"`
	StorageKey    string    `gorm:"type:text;not null" json:"storage_key"`
	URL           string    `gorm:"type:text" json:"url"`
	Path          string    `gorm:"type:text;not null" json:"path"`
	Size          int64     `json:"size"`
	Width         int       `json:"width,omitempty"`
	Height        int       `json:"height,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName returns the database table name for Document.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Document) TableName() string {
	return "documents"
}

// BeforeCreate assigns the identifier.
func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}
