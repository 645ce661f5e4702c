package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"smart-research-agent/internal/agent"
	"smart-research-agent/internal/model"
	"smart-research-agent/internal/platform/rabbitmq"
	"smart-research-agent/internal/repository"
)

var (
	ErrSessionNotFound  = errors.New("research session not found")
	ErrQueryEmpty       = errors.New("query text is empty")
	ErrAgentTimeout     = errors.New("research agent timed out")
	ErrOutputUnparsable = errors.New("research output could not be parsed")
)

// OutputArchivePublisher enqueues completed outputs for the archive worker.
type OutputArchivePublisher interface {
	Publish(ctx context.Context, entry rabbitmq.ArchiveEntry) error
}

// SessionQueryCache caches a session's recent queries between research runs.
type SessionQueryCache interface {
	GetQueries(ctx context.Context, sessionID string) ([]model.ResearchQuery, bool, error)
	SetQueries(ctx context.Context, sessionID string, queries []model.ResearchQuery) error
	Invalidate(ctx context.Context, sessionID string) error
	MarkDirty(ctx context.Context, sessionID string) error
	IsDirty(ctx context.Context, sessionID string) (bool, error)
}

type ResearchService struct {
	sessionRepo  *repository.SessionRepository
	queryRepo    *repository.QueryRepository
	outputRepo   *repository.OutputRepository
	toolExecRepo *repository.ToolExecutionRepository
	executor     agent.Executor
	publisher    OutputArchivePublisher
	queryCache   SessionQueryCache

	modelName        string
	inputPricePer1K  float64
	outputPricePer1K float64
	agentTimeout     time.Duration
}

type ResearchServiceOptions struct {
	ModelName        string
	InputPricePer1K  float64
	OutputPricePer1K float64
	AgentTimeout     time.Duration
}

func NewResearchService(
	sessionRepo *repository.SessionRepository,
	queryRepo *repository.QueryRepository,
	outputRepo *repository.OutputRepository,
	toolExecRepo *repository.ToolExecutionRepository,
	executor agent.Executor,
	publisher OutputArchivePublisher,
	queryCache SessionQueryCache,
	opts ResearchServiceOptions,
) *ResearchService {
	if opts.AgentTimeout <= 0 {
		opts.AgentTimeout = 2 * time.Minute
	}
	return &ResearchService{
		sessionRepo:      sessionRepo,
		queryRepo:        queryRepo,
		outputRepo:       outputRepo,
		toolExecRepo:     toolExecRepo,
		executor:         executor,
		publisher:        publisher,
		queryCache:       queryCache,
		modelName:        opts.ModelName,
		inputPricePer1K:  opts.InputPricePer1K,
		outputPricePer1K: opts.OutputPricePer1K,
		agentTimeout:     opts.AgentTimeout,
	}
}

type ResearchInput struct {
	UserID    string
	Username  string
	SessionID string // empty = create a new session for this query
	Query     string
}

type ResearchResult struct {
	Topic     string    `json:"topic"`
	Summary   string    `json:"summary"`
	Sources   []string  `json:"sources"`
	ToolsUsed []string  `json:"tools_used"`
	OutputID  string    `json:"output_id"`
	QueryID   string    `json:"query_id"`
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Research runs one query end to end: resolve the owning session, persist
// the query row, drive the agent (recording one ToolExecution per tool
// callback), parse the final text, record metrics, and persist the output.
func (s *ResearchService) Research(ctx context.Context, input ResearchInput) (*ResearchResult, error) {
	if input.UserID == "" {
		return nil, ErrInvalidInput
	}
	queryText := strings.TrimSpace(input.Query)
	if queryText == "" {
		return nil, ErrQueryEmpty
	}

	session, err := s.resolveSession(input.UserID, input.SessionID, queryText)
	if err != nil {
		return nil, err
	}

	query := &model.ResearchQuery{
		SessionID:    session.ID,
		UserID:       input.UserID,
		QueryText:    queryText,
		LLMModelUsed: s.modelName,
	}
	if err := s.queryRepo.Create(query); err != nil {
		return nil, err
	}
	if err := s.sessionRepo.Touch(session.ID); err != nil {
		return nil, err
	}

	if s.queryCache != nil {
		_ = s.queryCache.MarkDirty(ctx, session.ID)
		_ = s.queryCache.Invalidate(ctx, session.ID)
	}

	runResult, err := s.runAgent(ctx, query.ID, queryText)
	if err != nil {
		return nil, err
	}

	cost := s.computeCost(runResult.InputTokens, runResult.OutputTokens)
	if err := s.queryRepo.UpdateMetrics(query.ID, runResult.InputTokens, runResult.OutputTokens, cost); err != nil {
		return nil, err
	}

	parsed, err := agent.ParseOutput(runResult.Output)
	if err != nil {
		// Fail loudly: an unparsable final answer is a server error, never a
		// degraded partial result.
		log.Printf("research query %s: unparsable agent output: %.200s", query.ID, runResult.Output)
		return nil, fmt.Errorf("%w: %v", ErrOutputUnparsable, err)
	}

	output := &model.ResearchOutput{
		QueryID:           query.ID,
		Topic:             parsed.Topic,
		Summary:           parsed.Summary,
		ParsingSuccessful: true,
		RawOutput:         runResult.Output,
	}
	output.SetSourceList(parsed.Sources)
	output.SetToolsUsedList(parsed.ToolsUsed)
	if err := s.outputRepo.Create(output); err != nil {
		return nil, err
	}

	if s.publisher != nil {
		entry := rabbitmq.ArchiveEntry{
			OutputID:  output.ID,
			QueryID:   query.ID,
			Username:  input.Username,
			Topic:     parsed.Topic,
			Summary:   parsed.Summary,
			Sources:   parsed.Sources,
			ToolsUsed: parsed.ToolsUsed,
		}
		if err := s.publisher.Publish(ctx, entry); err != nil {
			log.Printf("research query %s: archive publish failed: %v", query.ID, err)
		}
	}

	return &ResearchResult{
		Topic:     parsed.Topic,
		Summary:   parsed.Summary,
		Sources:   parsed.Sources,
		ToolsUsed: parsed.ToolsUsed,
		OutputID:  output.ID,
		QueryID:   query.ID,
		SessionID: session.ID,
		CreatedAt: output.CreatedAt,
	}, nil
}

func (s *ResearchService) resolveSession(userID, sessionID, queryText string) (*model.ResearchSession, error) {
	if sessionID != "" {
		session, err := s.sessionRepo.GetByIDAndUserID(sessionID, userID)
		if err != nil {
			return nil, err
		}
		if session == nil {
			return nil, ErrSessionNotFound
		}
		return session, nil
	}

	session := &model.ResearchSession{
		UserID: userID,
		Title:  sessionTitleFromQuery(queryText),
	}
	if err := s.sessionRepo.Create(session); err != nil {
		return nil, err
	}
	return session, nil
}

// runAgent executes the bounded agent run; the hooks persist one
// ToolExecution row per tool callback against the given query id.
func (s *ResearchService) runAgent(ctx context.Context, queryID, queryText string) (agent.RunResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, s.agentTimeout)
	defer cancel()

	hooks := agent.Hooks{
		OnToolStart: func(toolName, input string) (string, error) {
			execution := &model.ToolExecution{
				QueryID:   queryID,
				ToolName:  toolName,
				ToolInput: input,
				Status:    model.ToolStatusPending,
			}
			if err := s.toolExecRepo.Create(execution); err != nil {
				return "", err
			}
			return execution.ID, nil
		},
		OnToolEnd: func(executionID, output string) {
			if executionID == "" {
				return
			}
			if err := s.toolExecRepo.MarkSuccess(executionID, output); err != nil {
				log.Printf("tool execution %s: mark success failed: %v", executionID, err)
			}
		},
		OnToolError: func(executionID, errorMessage string) {
			if executionID == "" {
				return
			}
			if err := s.toolExecRepo.MarkFailed(executionID, errorMessage); err != nil {
				log.Printf("tool execution %s: mark failed failed: %v", executionID, err)
			}
		},
	}

	runResult, err := s.executor.Run(runCtx, queryText, hooks)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || runCtx.Err() == context.DeadlineExceeded {
			return agent.RunResult{}, ErrAgentTimeout
		}
		return agent.RunResult{}, fmt.Errorf("agent run failed: %w", err)
	}
	return runResult, nil
}

func (s *ResearchService) computeCost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)/1000*s.inputPricePer1K +
		float64(outputTokens)/1000*s.outputPricePer1K
}

type CreateSessionInput struct {
	UserID string
	Title  string
}

func (s *ResearchService) CreateSession(input CreateSessionInput) (*model.ResearchSession, error) {
	if input.UserID == "" {
		return nil, ErrInvalidInput
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = "New Research"
	}
	session := &model.ResearchSession{
		UserID: input.UserID,
		Title:  title,
	}
	if err := s.sessionRepo.Create(session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *ResearchService) ListSessions(userID string) ([]model.ResearchSession, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}
	return s.sessionRepo.ListByUserID(userID)
}

func (s *ResearchService) ArchiveSession(userID, sessionID string) error {
	if userID == "" || sessionID == "" {
		return ErrInvalidInput
	}
	session, err := s.sessionRepo.GetByIDAndUserID(sessionID, userID)
	if err != nil {
		return err
	}
	if session == nil {
		return ErrSessionNotFound
	}
	return s.sessionRepo.SetArchived(sessionID, userID, true)
}

func (s *ResearchService) DeleteSession(ctx context.Context, userID, sessionID string) error {
	if userID == "" || sessionID == "" {
		return ErrInvalidInput
	}
	session, err := s.sessionRepo.GetByIDAndUserID(sessionID, userID)
	if err != nil {
		return err
	}
	if session == nil {
		return ErrSessionNotFound
	}
	if err := s.sessionRepo.DeleteCascade(sessionID, userID); err != nil {
		return err
	}
	if s.queryCache != nil {
		_ = s.queryCache.Invalidate(ctx, sessionID)
	}
	return nil
}

// SessionQueryView is one query plus its output (nil when the run never
// produced one, e.g. a crash between metric update and output insert).
type SessionQueryView struct {
	Query  model.ResearchQuery   `json:"query"`
	Output *model.ResearchOutput `json:"output,omitempty"`
}

func (s *ResearchService) ListSessionQueries(ctx context.Context, userID, sessionID string, limit int) ([]SessionQueryView, error) {
	if userID == "" || sessionID == "" {
		return nil, ErrInvalidInput
	}
	session, err := s.sessionRepo.GetByIDAndUserID(sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	queries, err := s.sessionQueries(ctx, sessionID, limit)
	if err != nil {
		return nil, err
	}

	views := make([]SessionQueryView, 0, len(queries))
	for i := range queries {
		output, err := s.outputRepo.GetByQueryID(queries[i].ID)
		if err != nil {
			return nil, err
		}
		views = append(views, SessionQueryView{Query: queries[i], Output: output})
	}
	return views, nil
}

// recentQueryWindow is how much history one cache entry holds. The cache key
// carries no limit, so the cached value is always the full window and limits
// are applied on read.
const recentQueryWindow = 200

func (s *ResearchService) sessionQueries(ctx context.Context, sessionID string, limit int) ([]model.ResearchQuery, error) {
	if s.queryCache != nil {
		if dirty, err := s.queryCache.IsDirty(ctx, sessionID); err == nil && !dirty {
			if cached, hit, cacheErr := s.queryCache.GetQueries(ctx, sessionID); cacheErr == nil && hit {
				return trimQueries(cached, limit), nil
			}
		}
	}

	queries, err := s.queryRepo.ListBySessionID(sessionID, recentQueryWindow)
	if err != nil {
		return nil, err
	}
	if s.queryCache != nil {
		if dirty, err := s.queryCache.IsDirty(ctx, sessionID); err == nil && !dirty {
			_ = s.queryCache.SetQueries(ctx, sessionID, queries)
		}
	}
	return trimQueries(queries, limit), nil
}

func trimQueries(queries []model.ResearchQuery, limit int) []model.ResearchQuery {
	if limit <= 0 || limit >= len(queries) {
		return queries
	}
	return queries[:limit]
}

func sessionTitleFromQuery(queryText string) string {
	words := strings.Fields(queryText)
	if len(words) > 8 {
		words = words[:8]
	}
	title := strings.Join(words, " ")
	if runes := []rune(title); len(runes) > 60 {
		title = string(runes[:60])
	}
	return title
}
