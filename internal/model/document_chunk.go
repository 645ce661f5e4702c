package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DocumentChunk is one ordered slice of an uploaded document. Embedding is an
// opaque text column reserved for a future indexing pass.
type DocumentChunk struct {
	ID         string    `gorm:"type:char(36);primaryKey" json:"chunk_id"`
	DocumentID string    `gorm:"type:char(36);not null;index" json:"document_id"`
	ChunkText  string    `gorm:"type:text;not null" json:"chunk_text"`
	Embedding  string    `gorm:"type:text" json:"-"`
	ChunkOrder int       `gorm:"not null" json:"chunk_order"`
	CreatedAt  time.Time `json:"created_at"`

	Document *Document `gorm:"foreignKey:DocumentID;constraint:OnDelete:CASCADE" json:"-"`
}

func (c *DocumentChunk) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
