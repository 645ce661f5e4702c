package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ResearchSession struct {
	ID            string    `gorm:"type:char(36);primaryKey" json:"session_id"`
	UserID        string    `gorm:"type:char(36);not null;index" json:"user_id"`
	Title         string    `gorm:"size:255;not null" json:"title"`
	IsArchived    bool      `gorm:"default:false" json:"is_archived"`
	CreatedAt     time.Time `json:"created_at"`
	LastUpdatedAt time.Time `gorm:"autoUpdateTime" json:"last_updated_at"`

	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (s *ResearchSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
