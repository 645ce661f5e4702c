package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ResearchQuery struct {
	ID             string    `gorm:"type:char(36);primaryKey" json:"query_id"`
	SessionID      string    `gorm:"type:char(36);not null;index" json:"session_id"`
	UserID         string    `gorm:"type:char(36);not null;index" json:"user_id"`
	QueryText      string    `gorm:"type:text;not null" json:"query_text"`
	LLMModelUsed   string    `gorm:"size:100" json:"llm_model_used"`
	InputTokens    int       `json:"input_tokens"`
	OutputTokens   int       `json:"output_tokens"`
	TotalCost      float64   `gorm:"type:decimal(10,6)" json:"total_cost"`
	QueryTimestamp time.Time `gorm:"autoCreateTime" json:"query_timestamp"`

	Session *ResearchSession `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"-"`
	User    *User            `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (q *ResearchQuery) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	return nil
}
