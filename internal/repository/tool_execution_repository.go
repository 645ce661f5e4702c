package repository

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"smart-research-agent/internal/model"
)

type ToolExecutionRepository struct {
	db *gorm.DB
}

func NewToolExecutionRepository(db *gorm.DB) *ToolExecutionRepository {
	return &ToolExecutionRepository{db: db}
}

func (r *ToolExecutionRepository) Create(execution *model.ToolExecution) error {
	if err := r.db.Create(execution).Error; err != nil {
		return fmt.Errorf("create tool execution failed: %w", err)
	}
	return nil
}

// MarkSuccess transitions a pending execution to success with its output.
func (r *ToolExecutionRepository) MarkSuccess(id, output string) error {
	updates := map[string]interface{}{
		"status":              model.ToolStatusSuccess,
		"tool_output":         output,
		"execution_timestamp": time.Now(),
	}
	if err := r.db.Model(&model.ToolExecution{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("mark tool execution success failed: %w", err)
	}
	return nil
}

// MarkFailed transitions a pending execution to failed with the error text.
func (r *ToolExecutionRepository) MarkFailed(id, errorMessage string) error {
	updates := map[string]interface{}{
		"status":              model.ToolStatusFailed,
		"error_message":       errorMessage,
		"execution_timestamp": time.Now(),
	}
	if err := r.db.Model(&model.ToolExecution{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("mark tool execution failed failed: %w", err)
	}
	return nil
}

func (r *ToolExecutionRepository) ListByQueryID(queryID string) ([]model.ToolExecution, error) {
	var executions []model.ToolExecution
	if err := r.db.Where("query_id = ?", queryID).
		Order("execution_timestamp ASC").Find(&executions).Error; err != nil {
		return nil, fmt.Errorf("list tool executions failed: %w", err)
	}
	return executions, nil
}
