package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"smart-research-agent/internal/model"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(user *model.User) error {
	if err := r.db.Create(user).Error; err != nil {
		return fmt.Errorf("create user failed: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByUsername(username string) (*model.User, error) {
	var user model.User
	if err := r.db.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query user by username failed: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) GetByEmail(email string) (*model.User, error) {
	var user model.User
	if err := r.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query user by email failed: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) GetByID(id string) (*model.User, error) {
	var user model.User
	if err := r.db.Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query user by id failed: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) UpdateLastLogin(id string, at time.Time) error {
	if err := r.db.Model(&model.User{}).Where("id = ?", id).Update("last_login_at", at).Error; err != nil {
		return fmt.Errorf("update last login failed: %w", err)
	}
	return nil
}

// DeleteCascade removes a user and every row the user owns: sessions,
// queries (with outputs and tool executions), documents (with chunks).
func (r *UserRepository) DeleteCascade(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var queryIDs []string
		if err := tx.Model(&model.ResearchQuery{}).Where("user_id = ?", id).Pluck("id", &queryIDs).Error; err != nil {
			return fmt.Errorf("list user query ids failed: %w", err)
		}
		if len(queryIDs) > 0 {
			if err := tx.Where("query_id IN ?", queryIDs).Delete(&model.ResearchOutput{}).Error; err != nil {
				return fmt.Errorf("delete user outputs failed: %w", err)
			}
			if err := tx.Where("query_id IN ?", queryIDs).Delete(&model.ToolExecution{}).Error; err != nil {
				return fmt.Errorf("delete user tool executions failed: %w", err)
			}
		}
		if err := tx.Where("user_id = ?", id).Delete(&model.ResearchQuery{}).Error; err != nil {
			return fmt.Errorf("delete user queries failed: %w", err)
		}

		var documentIDs []string
		if err := tx.Model(&model.Document{}).Where("user_id = ?", id).Pluck("id", &documentIDs).Error; err != nil {
			return fmt.Errorf("list user document ids failed: %w", err)
		}
		if len(documentIDs) > 0 {
			if err := tx.Where("document_id IN ?", documentIDs).Delete(&model.DocumentChunk{}).Error; err != nil {
				return fmt.Errorf("delete user document chunks failed: %w", err)
			}
		}
		if err := tx.Where("user_id = ?", id).Delete(&model.Document{}).Error; err != nil {
			return fmt.Errorf("delete user documents failed: %w", err)
		}

		if err := tx.Where("user_id = ?", id).Delete(&model.ResearchSession{}).Error; err != nil {
			return fmt.Errorf("delete user sessions failed: %w", err)
		}
		if err := tx.Where("id = ?", id).Delete(&model.User{}).Error; err != nil {
			return fmt.Errorf("delete user failed: %w", err)
		}
		return nil
	})
}
