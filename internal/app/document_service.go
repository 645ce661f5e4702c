package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"smart-research-agent/internal/model"
	"smart-research-agent/internal/repository"
)

const (
	defaultChunkSize    = 512
	defaultChunkOverlap = 64
)

var ErrDocumentNotFound = errors.New("document not found")

type DocumentService struct {
	docRepo     *repository.DocumentRepository
	chunkRepo   *repository.ChunkRepository
	sessionRepo *repository.SessionRepository
	uploadDir   string
}

func NewDocumentService(
	docRepo *repository.DocumentRepository,
	chunkRepo *repository.ChunkRepository,
	sessionRepo *repository.SessionRepository,
	uploadDir string,
) *DocumentService {
	if uploadDir == "" {
		uploadDir = "uploads"
	}
	return &DocumentService{
		docRepo:     docRepo,
		chunkRepo:   chunkRepo,
		sessionRepo: sessionRepo,
		uploadDir:   uploadDir,
	}
}

type UploadInput struct {
	UserID    string
	SessionID string // empty = not attached to a session
	FileName  string
	FileType  string
	Content   string
}

type UploadResult struct {
	Document   model.Document `json:"document"`
	ChunkCount int            `json:"chunk_count"`
}

// Upload stores the extracted text on disk, records the document, and
// persists its ordered chunks. The embedding column stays empty; chunking
// alone marks the document indexed.
func (s *DocumentService) Upload(input UploadInput) (*UploadResult, error) {
	if input.UserID == "" {
		return nil, ErrInvalidInput
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, ErrInvalidInput
	}
	fileName := strings.TrimSpace(input.FileName)
	if fileName == "" {
		fileName = "untitled.txt"
	}

	var sessionID *string
	if input.SessionID != "" {
		session, err := s.sessionRepo.GetByIDAndUserID(input.SessionID, input.UserID)
		if err != nil {
			return nil, err
		}
		if session == nil {
			return nil, ErrSessionNotFound
		}
		sessionID = &session.ID
	}

	filePath, err := s.storeFile(input.UserID, fileName, content)
	if err != nil {
		return nil, err
	}

	doc := &model.Document{
		UserID:    input.UserID,
		SessionID: sessionID,
		FileName:  fileName,
		FilePath:  filePath,
		FileType:  input.FileType,
	}
	if err := s.docRepo.Create(doc); err != nil {
		return nil, err
	}

	pieces := chunkText(content, defaultChunkSize, defaultChunkOverlap)
	chunks := make([]model.DocumentChunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = model.DocumentChunk{
			DocumentID: doc.ID,
			ChunkText:  piece,
			ChunkOrder: i,
		}
	}
	if err := s.chunkRepo.CreateBatch(chunks); err != nil {
		return nil, err
	}

	if err := s.docRepo.MarkIndexed(doc.ID); err != nil {
		return nil, err
	}
	doc.IsIndexed = true

	return &UploadResult{
		Document:   *doc,
		ChunkCount: len(chunks),
	}, nil
}

func (s *DocumentService) ListDocuments(userID string) ([]model.Document, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}
	return s.docRepo.ListByUserID(userID)
}

func (s *DocumentService) GetChunks(userID, documentID string) ([]model.DocumentChunk, error) {
	if userID == "" || documentID == "" {
		return nil, ErrInvalidInput
	}
	doc, err := s.docRepo.GetByIDAndUserID(documentID, userID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	return s.chunkRepo.ListByDocumentID(documentID)
}

func (s *DocumentService) DeleteDocument(userID, documentID string) error {
	if userID == "" || documentID == "" {
		return ErrInvalidInput
	}
	doc, err := s.docRepo.GetByIDAndUserID(documentID, userID)
	if err != nil {
		return err
	}
	if doc == nil {
		return ErrDocumentNotFound
	}
	return s.docRepo.DeleteWithChunks(documentID)
}

func (s *DocumentService) storeFile(userID, fileName, content string) (string, error) {
	dir := filepath.Join(s.uploadDir, userID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir failed: %w", err)
	}
	path := filepath.Join(dir, uuid.NewString()+"_"+filepath.Base(fileName))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write upload file failed: %w", err)
	}
	return path, nil
}

// chunkText splits text into rune-safe windows of roughly size characters
// with the given overlap between consecutive chunks.
func chunkText(text string, size, overlap int) []string {
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	step := size - overlap
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}
