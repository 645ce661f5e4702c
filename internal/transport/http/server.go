package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"smart-research-agent/internal/agent"
	appsvc "smart-research-agent/internal/app"
	"smart-research-agent/internal/bootstrap"
	"smart-research-agent/internal/cache"
	rabbitmqClient "smart-research-agent/internal/platform/rabbitmq"
	"smart-research-agent/internal/repository"
	"smart-research-agent/internal/transport/http/handler"
	"smart-research-agent/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	cfg := app.Config

	userRepo := repository.NewUserRepository(app.MySQL)
	sessionRepo := repository.NewSessionRepository(app.MySQL)
	queryRepo := repository.NewQueryRepository(app.MySQL)
	outputRepo := repository.NewOutputRepository(app.MySQL)
	toolExecRepo := repository.NewToolExecutionRepository(app.MySQL)
	docRepo := repository.NewDocumentRepository(app.MySQL)
	chunkRepo := repository.NewChunkRepository(app.MySQL)

	executor := agent.NewLoopExecutor(
		agent.NewLLMClient(),
		agent.ChatConfig{
			BaseURL: cfg.Agent.BaseURL,
			APIKey:  cfg.Agent.APIKey,
			Model:   cfg.Agent.Model,
		},
		[]agent.Tool{
			agent.NewSearchTool(cfg.Agent.SearchResultMaxHits),
			agent.NewWikipediaTool(cfg.Agent.WikipediaMaxChars),
			agent.NewSaveTextTool(cfg.Agent.OutputArchiveFile),
		},
		cfg.Agent.MaxIterations,
	)

	queryCache := cache.NewQueryCache(
		app.Redis,
		time.Duration(cfg.Redis.QueryTTLSeconds)*time.Second,
		time.Duration(cfg.Redis.QueryDirtyTTLSeconds)*time.Second,
	)
	outputPublisher := rabbitmqClient.NewOutputPublisher(app.MQConn, cfg.RabbitMQ.OutputArchiveQueue)

	authService := appsvc.NewAuthService(
		userRepo,
		cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.JWTExpireMinute)*time.Minute,
	)
	researchService := appsvc.NewResearchService(
		sessionRepo,
		queryRepo,
		outputRepo,
		toolExecRepo,
		executor,
		outputPublisher,
		queryCache,
		appsvc.ResearchServiceOptions{
			ModelName:        cfg.Agent.Model,
			InputPricePer1K:  cfg.Agent.InputPricePer1K,
			OutputPricePer1K: cfg.Agent.OutputPricePer1K,
			AgentTimeout:     time.Duration(cfg.Agent.TimeoutSeconds) * time.Second,
		},
	)
	documentService := appsvc.NewDocumentService(docRepo, chunkRepo, sessionRepo, cfg.Storage.UploadDir)

	authHandler := handler.NewAuthHandler(authService)
	researchHandler := handler.NewResearchHandler(researchService)
	sessionHandler := handler.NewSessionHandler(researchService)
	documentHandler := handler.NewDocumentHandler(documentService)
	healthHandler := handler.NewHealthHandler(app.MySQL, app.Redis, app.MQConn)

	router.GET("/healthz", healthHandler.Healthz)
	router.POST("/users/", authHandler.Register)
	router.POST("/token", authHandler.Token)

	authed := router.Group("/")
	authed.Use(middleware.AuthJWT(cfg.Auth.JWTSecret, authService))
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
