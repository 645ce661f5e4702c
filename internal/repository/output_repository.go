package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"smart-research-agent/internal/model"
)

type OutputRepository struct {
	db *gorm.DB
}

func NewOutputRepository(db *gorm.DB) *OutputRepository {
	return &OutputRepository{db: db}
}

func (r *OutputRepository) Create(output *model.ResearchOutput) error {
	if err := r.db.Create(output).Error; err != nil {
		return fmt.Errorf("create research output failed: %w", err)
	}
	return nil
}

func (r *OutputRepository) GetByQueryID(queryID string) (*model.ResearchOutput, error) {
	var output model.ResearchOutput
	if err := r.db.Where("query_id = ?", queryID).First(&output).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get research output failed: %w", err)
	}
	return &output, nil
}
