package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"smart-research-agent/internal/model"
)

type QueryRepository struct {
	db *gorm.DB
}

func NewQueryRepository(db *gorm.DB) *QueryRepository {
	return &QueryRepository{db: db}
}

func (r *QueryRepository) Create(query *model.ResearchQuery) error {
	if err := r.db.Create(query).Error; err != nil {
		return fmt.Errorf("create research query failed: %w", err)
	}
	return nil
}

func (r *QueryRepository) GetByID(id string) (*model.ResearchQuery, error) {
	var query model.ResearchQuery
	if err := r.db.Where("id = ?", id).First(&query).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get research query failed: %w", err)
	}
	return &query, nil
}

func (r *QueryRepository) ListBySessionID(sessionID string, limit int) ([]model.ResearchQuery, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	var queries []model.ResearchQuery
	if err := r.db.Where("session_id = ?", sessionID).
		Order("query_timestamp DESC").Limit(limit).Find(&queries).Error; err != nil {
		return nil, fmt.Errorf("list research queries failed: %w", err)
	}
	return queries, nil
}

// UpdateMetrics records token usage and cost after the agent run completes.
func (r *QueryRepository) UpdateMetrics(id string, inputTokens, outputTokens int, totalCost float64) error {
	updates := map[string]interface{}{
		"input_tokens":  inputTokens,
		"output_tokens": outputTokens,
		"total_cost":    totalCost,
	}
	if err := r.db.Model(&model.ResearchQuery{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("update query metrics failed: %w", err)
	}
	return nil
}
