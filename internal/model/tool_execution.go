package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ToolStatusPending = "pending"
	ToolStatusSuccess = "success"
	ToolStatusFailed  = "failed"
)

type ToolExecution struct {
	ID                 string    `gorm:"type:char(36);primaryKey" json:"execution_id"`
	QueryID            string    `gorm:"type:char(36);not null;index" json:"query_id"`
	ToolName           string    `gorm:"size:100;not null" json:"tool_name"`
	ToolInput          string    `gorm:"type:text" json:"tool_input"`
	ToolOutput         string    `gorm:"type:text" json:"tool_output"`
	Status             string    `gorm:"size:50;not null" json:"status"`
	ErrorMessage       string    `gorm:"type:text" json:"error_message,omitempty"`
	ExecutionTimestamp time.Time `gorm:"autoCreateTime" json:"execution_timestamp"`

	Query *ResearchQuery `gorm:"foreignKey:QueryID;constraint:OnDelete:CASCADE" json:"-"`
}

func (e *ToolExecution) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
