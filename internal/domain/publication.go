package domain

import "time"

// Publication is the root document of an ingested EPUB.
type Publication struct {
	ID           string       `gorm:"type:text;primaryKey" json:"id"`
	ReaderID     string       `gorm:"type:text;not null;index" json:"reader_id"`
	Title        string       `gorm:"type:text" json:"title,omitempty"`
	Language     string       `gorm:"type:text" json:"language,omitempty"`
	Authors      StringArray  `gorm:"type:text" json:"authors"`
	Identifier   string       `gorm:"type:text" json:"identifier,omitempty"`
	Version      string       `gorm:"type:text" json:"version,omitempty"`
	ReadingOrder ResourceList `gorm:"type:text" json:"reading_order"`
	Resources    ResourceList `gorm:"type:text" json:"resources"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// TableName returns the database table name for Publication.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Publication) TableName() string {
	return "publications"
}

// Cover returns the first resource marked as cover.
func (p *Publication) Cover() (ResourceRef, bool) {
	for _, r := range p.Resources {
		for _, rel := range r.Rel {
			if rel == "cover" {
				return r, true
			}
		}
	}
	return ResourceRef{}, false
}
