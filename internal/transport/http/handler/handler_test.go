package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"smart-research-agent/internal/agent"
	"smart-research-agent/internal/app"
	"smart-research-agent/internal/model"
	"smart-research-agent/internal/repository"
	"smart-research-agent/internal/transport/http/middleware"
)

const testJWTSecret = "handler-test-secret"

type staticExecutor struct {
	output string
	err    error
}

func (e *staticExecutor) Run(ctx context.Context, query string, hooks agent.Hooks) (agent.RunResult, error) {
	if e.err != nil {
		return agent.RunResult{}, e.err
	}
	return agent.RunResult{Output: e.output, InputTokens: 10, OutputTokens: 5}, nil
}

func newTestRouter(t *testing.T, executor agent.Executor) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

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

	authService := app.NewAuthService(repository.NewUserRepository(db), testJWTSecret, 30*time.Minute)
	researchService := app.NewResearchService(
		repository.NewSessionRepository(db),
		repository.NewQueryRepository(db),
		repository.NewOutputRepository(db),
		repository.NewToolExecutionRepository(db),
		executor,
		nil,
		nil,
		app.ResearchServiceOptions{ModelName: "test-model", AgentTimeout: time.Minute},
	)
	documentService := app.NewDocumentService(
		repository.NewDocumentRepository(db),
		repository.NewChunkRepository(db),
		repository.NewSessionRepository(db),
		t.TempDir(),
	)

	authHandler := NewAuthHandler(authService)
	researchHandler := NewResearchHandler(researchService)
	sessionHandler := NewSessionHandler(researchService)
	documentHandler := NewDocumentHandler(documentService)

	router := gin.New()
	router.POST("/users/", authHandler.Register)
	router.POST("/token", authHandler.Token)

	authed := router.Group("/")
	authed.Use(middleware.AuthJWT(testJWTSecret, authService))
	authed.GET("/users/me/", authHandler.Me)
	authed.POST("/research", researchHandler.Research)
	authed.POST("/sessions", sessionHandler.CreateSession)
	authed.GET("/sessions", sessionHandler.ListSessions)
	authed.GET("/sessions/:id/queries", sessionHandler.ListSessionQueries)
	authed.POST("/sessions/:id/archive", sessionHandler.ArchiveSession)
	authed.DELETE("/sessions/:id", sessionHandler.DeleteSession)
	authed.POST("/documents/upload", documentHandler.Upload)
	authed.GET("/documents", documentHandler.ListDocuments)
	authed.GET("/documents/:id/chunks", documentHandler.GetChunks)
	authed.DELETE("/documents/:id", documentHandler.DeleteDocument)

	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func registerAndLogin(t *testing.T, router *gin.Engine, username string) string {
	t.Helper()
	body := fmt.Sprintf(`{"username": %q, "email": "%s@example.com", "password": "password123"}`, username, username)
	rec := doJSON(t, router, http.MethodPost, "/users/", "", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body = %s", rec.Code, rec.Body.String())
	}

	form := url.Values{"username": {username}, "password": {"password123"}}
	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	loginRec := httptest.NewRecorder()
	router.ServeHTTP(loginRec, req)
	if loginRec.Code != http.StatusOK {
		t.Fatalf("token status = %d, body = %s", loginRec.Code, loginRec.Body.String())
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(loginRec.Body.Bytes(), &tokenResp); err != nil {
		t.Fatalf("decode token response failed: %v", err)
	}
	if tokenResp.TokenType != "bearer" {
		t.Errorf("token_type = %q, want bearer", tokenResp.TokenType)
	}
	if tokenResp.AccessToken == "" {
		t.Fatal("empty access token")
	}
	return tokenResp.AccessToken
}

const finalAgentOutput = `{"topic": "Go", "summary": "a compiled language", "sources": ["https://go.dev"], "tools_used": ["search"]}`

func TestRegisterLoginMe(t *testing.T) {
	router := newTestRouter(t, &staticExecutor{output: finalAgentOutput})
	token := registerAndLogin(t, router, "alice")

	rec := doJSON(t, router, http.MethodGet, "/users/me/", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("me status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var me struct {
		Username    string  `json:"username"`
		Email       string  `json:"email"`
		LastLoginAt *string `json:"last_login_at"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &me); err != nil {
		t.Fatalf("decode me response failed: %v", err)
	}
	if me.Username != "alice" || me.Email != "alice@example.com" {
		t.Errorf("me = %+v", me)
	}
	if me.LastLoginAt == nil {
		t.Error("last_login_at missing after login")
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Errorf("password material leaked in response: %s", rec.Body.String())
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	router := newTestRouter(t, &staticExecutor{output: finalAgentOutput})
	registerAndLogin(t, router, "alice")

	body := `{"username": "alice", "email": "second@example.com", "password": "password123"}`
	rec := doJSON(t, router, http.MethodPost, "/users/", "", body)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("duplicate register status = %d, want 400", rec.Code)
	}
}

func TestTokenBadCredentials(t *testing.T) {
	router := newTestRouter(t, &staticExecutor{output: finalAgentOutput})
	registerAndLogin(t, router, "alice")

	form := url.Values{"username": {"alice"}, "password": {"wrong"}}
	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad login status = %d, want 401", rec.Code)
	}
	if got := rec.Header().Get("WWW-Authenticate"); got != "Bearer" {
		t.Errorf("WWW-Authenticate = %q, want Bearer", got)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	router := newTestRouter(t, &staticExecutor{output: finalAgentOutput})

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/users/me/"},
		{http.MethodPost, "/research"},
		{http.MethodGet, "/sessions"},
		{http.MethodGet, "/documents"},
	}
	for _, p := range paths {
		rec := doJSON(t, router, p.method, p.path, "", "")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without token status = %d, want 401", p.method, p.path, rec.Code)
		}
	}

	rec := doJSON(t, router, http.MethodGet, "/users/me/", "garbage-token", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("garbage token status = %d, want 401", rec.Code)
	}
}

func TestResearchEndToEnd(t *testing.T) {
	router := newTestRouter(t, &staticExecutor{output: finalAgentOutput})
	token := registerAndLogin(t, router, "alice")

	rec := doJSON(t, router, http.MethodPost, "/research", token, `{"query": "what is go"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("research status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var result struct {
		Topic     string   `json:"topic"`
		Summary   string   `json:"summary"`
		Sources   []string `json:"sources"`
		SessionID string   `json:"session_id"`
		QueryID   string   `json:"query_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode research response failed: %v", err)
	}
	if result.Topic != "Go" || result.Summary == "" {
		t.Errorf("result = %+v", result)
	}
	if result.SessionID == "" || result.QueryID == "" {
		t.Errorf("result missing ids: %+v", result)
	}

	// The session history shows the run.
	histRec := doJSON(t, router, http.MethodGet, "/sessions/"+result.SessionID+"/queries", token, "")
	if histRec.Code != http.StatusOK {
		t.Fatalf("history status = %d, body = %s", histRec.Code, histRec.Body.String())
	}
	var views []struct {
		Query struct {
			QueryText string `json:"query_text"`
		} `json:"query"`
		Output *struct {
			Topic string `json:"topic"`
		} `json:"output"`
	}
	if err := json.Unmarshal(histRec.Body.Bytes(), &views); err != nil {
		t.Fatalf("decode history failed: %v", err)
	}
	if len(views) != 1 || views[0].Query.QueryText != "what is go" {
		t.Errorf("history = %+v", views)
	}
	if views[0].Output == nil || views[0].Output.Topic != "Go" {
		t.Errorf("history output = %+v", views[0].Output)
	}
}

func TestResearchValidationAndFailureCodes(t *testing.T) {
	t.Run("missing query", func(t *testing.T) {
		router := newTestRouter(t, &staticExecutor{output: finalAgentOutput})
		token := registerAndLogin(t, router, "alice")
		rec := doJSON(t, router, http.MethodPost, "/research", token, `{}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		router := newTestRouter(t, &staticExecutor{output: finalAgentOutput})
		token := registerAndLogin(t, router, "alice")
		rec := doJSON(t, router, http.MethodPost, "/research", token,
			`{"query": "q", "session_id": "00000000-0000-0000-0000-000000000000"}`)
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("unparsable output", func(t *testing.T) {
		router := newTestRouter(t, &staticExecutor{output: "no structure at all"})
		token := registerAndLogin(t, router, "alice")
		rec := doJSON(t, router, http.MethodPost, "/research", token, `{"query": "q"}`)
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", rec.Code)
		}
	})

	t.Run("agent timeout", func(t *testing.T) {
		router := newTestRouter(t, &staticExecutor{err: context.DeadlineExceeded})
		token := registerAndLogin(t, router, "alice")
		rec := doJSON(t, router, http.MethodPost, "/research", token, `{"query": "q"}`)
		if rec.Code != http.StatusGatewayTimeout {
			t.Errorf("status = %d, want 504", rec.Code)
		}
	})
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	router := newTestRouter(t, &staticExecutor{output: finalAgentOutput})
	token := registerAndLogin(t, router, "alice")

	rec := doJSON(t, router, http.MethodPost, "/sessions", token, `{"title": "project x"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var session struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode session failed: %v", err)
	}

	rec = doJSON(t, router, http.MethodPost, "/sessions/"+session.SessionID+"/archive", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("archive status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodDelete, "/sessions/"+session.SessionID, token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d, body = %s", rec.Code, rec.Body.String())
	}

	// Sessions are private: another user cannot touch them even before delete.
	otherToken := registerAndLogin(t, router, "bob")
	rec = doJSON(t, router, http.MethodDelete, "/sessions/"+session.SessionID, otherToken, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("cross-user delete status = %d, want 404", rec.Code)
	}
}

func TestDocumentUploadOverHTTP(t *testing.T) {
	router := newTestRouter(t, &staticExecutor{output: finalAgentOutput})
	token := registerAndLogin(t, router, "alice")

	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "notes.txt")
	if err != nil {
		t.Fatalf("create form file failed: %v", err)
	}
	if _, err := part.Write([]byte(strings.Repeat("research notes line ", 40))); err != nil {
		t.Fatalf("write form file failed: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/documents/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var result struct {
		Document struct {
			DocumentID string `json:"document_id"`
			FileName   string `json:"file_name"`
			IsIndexed  bool   `json:"is_indexed"`
		} `json:"document"`
		ChunkCount int `json:"chunk_count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode upload response failed: %v", err)
	}
	if result.Document.FileName != "notes.txt" || !result.Document.IsIndexed {
		t.Errorf("document = %+v", result.Document)
	}
	if result.ChunkCount < 1 {
		t.Errorf("chunk_count = %d, want at least 1", result.ChunkCount)
	}

	chunksRec := doJSON(t, router, http.MethodGet, "/documents/"+result.Document.DocumentID+"/chunks", token, "")
	if chunksRec.Code != http.StatusOK {
		t.Fatalf("chunks status = %d, body = %s", chunksRec.Code, chunksRec.Body.String())
	}

	listRec := doJSON(t, router, http.MethodGet, "/documents", token, "")
	if listRec.Code != http.StatusOK {
		t.Fatalf("list status = %d, body = %s", listRec.Code, listRec.Body.String())
	}

	delRec := doJSON(t, router, http.MethodDelete, "/documents/"+result.Document.DocumentID, token, "")
	if delRec.Code != http.StatusOK {
		t.Fatalf("delete status = %d, body = %s", delRec.Code, delRec.Body.String())
	}
	missingRec := doJSON(t, router, http.MethodGet, "/documents/"+result.Document.DocumentID+"/chunks", token, "")
	if missingRec.Code != http.StatusNotFound {
		t.Errorf("chunks after delete status = %d, want 404", missingRec.Code)
	}
}
