package app

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"smart-research-agent/internal/model"
	"smart-research-agent/internal/repository"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&model.User{},
		&model.ResearchSession{},
		&model.ResearchQuery{},
		&model.ResearchOutput{},
		&model.ToolExecution{},
		&model.Document{},
		&model.DocumentChunk{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return db
}

func registerTestUser(t *testing.T, service *AuthService, username string) *model.User {
	t.Helper()
	user, err := service.Register(RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("register %s failed: %v", username, err)
	}
	return user
}

func newTestAuthService(db *gorm.DB) *AuthService {
	return NewAuthService(repository.NewUserRepository(db), "test-secret", 30*time.Minute)
}
