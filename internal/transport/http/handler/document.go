package handler

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"smart-research-agent/internal/app"
	"smart-research-agent/internal/pkg/pdfextract"
	"smart-research-agent/internal/transport/http/middleware"
	"smart-research-agent/internal/transport/http/response"
)

const maxUploadBytes = 20 << 20 // 20 MiB

type DocumentHandler struct {
	documentService *app.DocumentService
}

func NewDocumentHandler(documentService *app.DocumentService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService}
}

// Upload handles POST /documents/upload. Accepts a multipart "file" field
// (.pdf or plain text) plus an optional "session_id" form value.
func (h *DocumentHandler) Upload(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "could not validate credentials")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file field")
		return
	}
	if fileHeader.Size > maxUploadBytes {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "file too large")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "open upload failed")
		return
	}
	defer file.Close()

	fileType := strings.TrimPrefix(strings.ToLower(filepath.Ext(fileHeader.Filename)), ".")
	var content string
	switch fileType {
	case "pdf":
		content, err = pdfextract.ExtractText(file)
		if err != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "could not extract text from pdf")
			return
		}
	default:
		raw, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
		if err != nil {
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "read upload failed")
			return
		}
		content = string(raw)
		if fileType == "" {
			fileType = "txt"
		}
	}

	result, err := h.documentService.Upload(app.UploadInput{
		UserID:    user.ID,
		SessionID: c.PostForm("session_id"),
		FileName:  filepath.Base(fileHeader.Filename),
		FileType:  fileType,
		Content:   content,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "document has no extractable text")
		case errors.Is(err, app.ErrSessionNotFound):
			response.Error(c, http.StatusNotFound, response.CodeSessionNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "document upload failed")
		}
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "could not validate credentials")
		return
	}

	docs, err := h.documentService.ListDocuments(user.ID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list documents failed")
		return
	}

	c.JSON(http.StatusOK, docs)
}

func (h *DocumentHandler) GetChunks(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "could not validate credentials")
		return
	}

	chunks, err := h.documentService.GetChunks(user.ID, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrDocumentNotFound):
			response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list document chunks failed")
		}
		return
	}

	c.JSON(http.StatusOK, chunks)
}

func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "could not validate credentials")
		return
	}

	documentID := c.Param("id")
	if err := h.documentService.DeleteDocument(user.ID, documentID); err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrDocumentNotFound):
			response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete document failed")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted_document_id": documentID})
}
