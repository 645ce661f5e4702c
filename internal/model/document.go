package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Document is an uploaded file belonging to a user and optionally a session.
// EmbeddingModel is recorded but unused; no vector semantics are implemented.
type Document struct {
	ID             string    `gorm:"type:char(36);primaryKey" json:"document_id"`
	UserID         string    `gorm:"type:char(36);not null;index" json:"user_id"`
	SessionID      *string   `gorm:"type:char(36);index" json:"session_id,omitempty"`
	FileName       string    `gorm:"size:255;not null" json:"file_name"`
	FilePath       string    `gorm:"type:text;not null" json:"file_path"`
	FileType       string    `gorm:"size:50" json:"file_type"`
	IsIndexed      bool      `gorm:"default:false" json:"is_indexed"`
	EmbeddingModel string    `gorm:"size:100" json:"embedding_model,omitempty"`
	UploadedAt     time.Time `gorm:"autoCreateTime" json:"uploaded_at"`

	User    *User            `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Session *ResearchSession `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"-"`
}

func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}
