package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ResearchOutput is the structured result of one query. The unique index on
// QueryID enforces the one-to-one with ResearchQuery. Sources and ToolsUsed
// are stored as JSON arrays of strings for portability.
type ResearchOutput struct {
	ID                string    `gorm:"type:char(36);primaryKey" json:"output_id"`
	QueryID           string    `gorm:"type:char(36);not null;uniqueIndex" json:"query_id"`
	Topic             string    `gorm:"size:255" json:"topic"`
	Summary           string    `gorm:"type:text" json:"summary"`
	Sources           string    `gorm:"type:text" json:"-"`
	ToolsUsedReported string    `gorm:"type:text" json:"-"`
	ParsingSuccessful bool      `gorm:"default:true" json:"parsing_successful"`
	RawOutput         string    `gorm:"type:text" json:"-"`
	CreatedAt         time.Time `json:"created_at"`

	Query *ResearchQuery `gorm:"foreignKey:QueryID;constraint:OnDelete:CASCADE" json:"-"`
}

func (o *ResearchOutput) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

// SourceList returns the parsed sources; empty on parse error.
func (o *ResearchOutput) SourceList() []string {
	return decodeStringList(o.Sources)
}

// SetSourceList stores the sources as JSON, preserving order.
func (o *ResearchOutput) SetSourceList(sources []string) {
	o.Sources = encodeStringList(sources)
}

// ToolsUsedList returns the tools the agent reported using.
func (o *ResearchOutput) ToolsUsedList() []string {
	return decodeStringList(o.ToolsUsedReported)
}

// SetToolsUsedList stores the reported tools as JSON.
func (o *ResearchOutput) SetToolsUsedList(tools []string) {
	o.ToolsUsedReported = encodeStringList(tools)
}

func encodeStringList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(items)
	return string(b)
}

func decodeStringList(raw string) []string {
	if raw == "" {
		return nil
	}
	var items []string
	_ = json.Unmarshal([]byte(raw), &items)
	return items
}
