package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"smart-research-agent/internal/model"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(session *model.ResearchSession) error {
	if err := r.db.Create(session).Error; err != nil {
		return fmt.Errorf("create research session failed: %w", err)
	}
	return nil
}

func (r *SessionRepository) ListByUserID(userID string) ([]model.ResearchSession, error) {
	var sessions []model.ResearchSession
	if err := r.db.Where("user_id = ?", userID).Order("last_updated_at DESC").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("list research sessions failed: %w", err)
	}
	return sessions, nil
}

func (r *SessionRepository) GetByIDAndUserID(sessionID, userID string) (*model.ResearchSession, error) {
	var session model.ResearchSession
	if err := r.db.Where("id = ? AND user_id = ?", sessionID, userID).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get research session failed: %w", err)
	}
	return &session, nil
}

// Touch refreshes last_updated_at so ListByUserID reflects research activity,
// not just title edits.
func (r *SessionRepository) Touch(sessionID string) error {
	if err := r.db.Model(&model.ResearchSession{}).
		Where("id = ?", sessionID).
		Update("last_updated_at", time.Now()).Error; err != nil {
		return fmt.Errorf("touch research session failed: %w", err)
	}
	return nil
}

func (r *SessionRepository) SetArchived(sessionID, userID string, archived bool) error {
	if err := r.db.Model(&model.ResearchSession{}).
		Where("id = ? AND user_id = ?", sessionID, userID).
		Update("is_archived", archived).Error; err != nil {
		return fmt.Errorf("archive research session failed: %w", err)
	}
	return nil
}

// DeleteCascade removes a session with its queries, their outputs and tool
// executions, and the session's documents with their chunks.
func (r *SessionRepository) DeleteCascade(sessionID, userID string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var queryIDs []string
		if err := tx.Model(&model.ResearchQuery{}).Where("session_id = ?", sessionID).Pluck("id", &queryIDs).Error; err != nil {
			return fmt.Errorf("list session query ids failed: %w", err)
		}
		if len(queryIDs) > 0 {
			if err := tx.Where("query_id IN ?", queryIDs).Delete(&model.ResearchOutput{}).Error; err != nil {
				return fmt.Errorf("delete session outputs failed: %w", err)
			}
			if err := tx.Where("query_id IN ?", queryIDs).Delete(&model.ToolExecution{}).Error; err != nil {
				return fmt.Errorf("delete session tool executions failed: %w", err)
			}
		}
		if err := tx.Where("session_id = ?", sessionID).Delete(&model.ResearchQuery{}).Error; err != nil {
			return fmt.Errorf("delete session queries failed: %w", err)
		}

		var documentIDs []string
		if err := tx.Model(&model.Document{}).Where("session_id = ?", sessionID).Pluck("id", &documentIDs).Error; err != nil {
			return fmt.Errorf("list session document ids failed: %w", err)
		}
		if len(documentIDs) > 0 {
			if err := tx.Where("document_id IN ?", documentIDs).Delete(&model.DocumentChunk{}).Error; err != nil {
				return fmt.Errorf("delete session document chunks failed: %w", err)
			}
		}
		if err := tx.Where("session_id = ?", sessionID).Delete(&model.Document{}).Error; err != nil {
			return fmt.Errorf("delete session documents failed: %w", err)
		}

		if err := tx.Where("id = ? AND user_id = ?", sessionID, userID).Delete(&model.ResearchSession{}).Error; err != nil {
			return fmt.Errorf("delete research session failed: %w", err)
		}
		return nil
	})
}
