package app

import (
	"errors"
	"os"
	"strings"
	"testing"

	"gorm.io/gorm"

	"smart-research-agent/internal/repository"
)

func newTestDocumentService(t *testing.T, db *gorm.DB) *DocumentService {
	t.Helper()
	return NewDocumentService(
		repository.NewDocumentRepository(db),
		repository.NewChunkRepository(db),
		repository.NewSessionRepository(db),
		t.TempDir(),
	)
}

func TestUploadStoresDocumentAndChunks(t *testing.T) {
	db := newTestDB(t)
	user := registerTestUser(t, newTestAuthService(db), "alice")
	service := newTestDocumentService(t, db)

	content := strings.Repeat("lorem ipsum dolor sit amet ", 60)
	result, err := service.Upload(UploadInput{
		UserID:   user.ID,
		FileName: "notes.txt",
		FileType: "txt",
		Content:  content,
	})
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	if !result.Document.IsIndexed {
		t.Error("IsIndexed = false, want true")
	}
	if result.ChunkCount < 2 {
		t.Errorf("ChunkCount = %d, want at least 2 for long content", result.ChunkCount)
	}

	// The raw text must land on disk at the recorded path.
	stored, err := os.ReadFile(result.Document.FilePath)
	if err != nil {
		t.Fatalf("read stored file failed: %v", err)
	}
	if string(stored) != strings.TrimSpace(content) {
		t.Error("stored file does not match uploaded content")
	}

	chunks, err := service.GetChunks(user.ID, result.Document.ID)
	if err != nil {
		t.Fatalf("GetChunks failed: %v", err)
	}
	if len(chunks) != result.ChunkCount {
		t.Errorf("len(chunks) = %d, want %d", len(chunks), result.ChunkCount)
	}
	for i, chunk := range chunks {
		if chunk.ChunkOrder != i {
			t.Errorf("chunks[%d].ChunkOrder = %d, want %d", i, chunk.ChunkOrder, i)
		}
	}
}

func TestUploadSessionOwnership(t *testing.T) {
	db := newTestDB(t)
	authService := newTestAuthService(db)
	alice := registerTestUser(t, authService, "alice")
	bob := registerTestUser(t, authService, "bob")
	service := newTestDocumentService(t, db)

	researchService := newTestResearchService(db, &fakeExecutor{output: validAgentOutput}, nil)
	session, err := researchService.CreateSession(CreateSessionInput{UserID: alice.ID, Title: "s"})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	_, err = service.Upload(UploadInput{
		UserID:    bob.ID,
		SessionID: session.ID,
		FileName:  "a.txt",
		Content:   "text",
	})
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("cross-user upload error = %v, want ErrSessionNotFound", err)
	}

	result, err := service.Upload(UploadInput{
		UserID:    alice.ID,
		SessionID: session.ID,
		FileName:  "a.txt",
		Content:   "text",
	})
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if result.Document.SessionID == nil || *result.Document.SessionID != session.ID {
		t.Errorf("document session id = %v, want %s", result.Document.SessionID, session.ID)
	}
}

func TestUploadRejectsEmptyContent(t *testing.T) {
	db := newTestDB(t)
	user := registerTestUser(t, newTestAuthService(db), "alice")
	service := newTestDocumentService(t, db)

	_, err := service.Upload(UploadInput{UserID: user.ID, FileName: "a.txt", Content: "   "})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}

func TestDeleteDocumentRemovesChunks(t *testing.T) {
	db := newTestDB(t)
	authService := newTestAuthService(db)
	alice := registerTestUser(t, authService, "alice")
	bob := registerTestUser(t, authService, "bob")
	service := newTestDocumentService(t, db)

	result, err := service.Upload(UploadInput{UserID: alice.ID, FileName: "a.txt", Content: "some text"})
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	if err := service.DeleteDocument(bob.ID, result.Document.ID); !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("cross-user delete error = %v, want ErrDocumentNotFound", err)
	}

	if err := service.DeleteDocument(alice.ID, result.Document.ID); err != nil {
		t.Fatalf("DeleteDocument failed: %v", err)
	}
	docs, err := service.ListDocuments(alice.ID)
	if err != nil || len(docs) != 0 {
		t.Errorf("documents after delete = %v, %v, want none", docs, err)
	}
	if _, err := service.GetChunks(alice.ID, result.Document.ID); !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("GetChunks after delete error = %v, want ErrDocumentNotFound", err)
	}
}

func TestChunkText(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		size    int
		overlap int
		want    int
	}{
		{"empty", "", 10, 2, 0},
		{"shorter than window", "hello", 10, 2, 1},
		{"exact window", strings.Repeat("a", 10), 10, 2, 1},
		{"two windows", strings.Repeat("a", 15), 10, 2, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := chunkText(tt.text, tt.size, tt.overlap)
			if len(chunks) != tt.want {
				t.Errorf("chunkText(%d chars, size %d, overlap %d) = %d chunks, want %d",
					len(tt.text), tt.size, tt.overlap, len(chunks), tt.want)
			}
		})
	}
}

func TestChunkTextOverlap(t *testing.T) {
	text := "abcdefghij" // 10 runes
	chunks := chunkText(text, 6, 2)
	if len(chunks) != 2 {
		t.Fatalf("len(chunks) = %d, want 2", len(chunks))
	}
	if chunks[0] != "abcdef" {
		t.Errorf("chunks[0] = %q, want abcdef", chunks[0])
	}
	if chunks[1] != "efghij" {
		t.Errorf("chunks[1] = %q, want efghij", chunks[1])
	}
}
