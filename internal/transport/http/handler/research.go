package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"smart-research-agent/internal/app"
	"smart-research-agent/internal/transport/http/middleware"
	"smart-research-agent/internal/transport/http/response"
)

type ResearchHandler struct {
	researchService *app.ResearchService
}

type ResearchRequest struct {
	Query     string `json:"query" binding:"required"`
	SessionID string `json:"session_id"`
}

func NewResearchHandler(researchService *app.ResearchService) *ResearchHandler {
	return &ResearchHandler{researchService: researchService}
}

// Research handles POST /research: runs the agent for one query and returns
// the structured output.
func (h *ResearchHandler) Research(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "could not validate credentials")
		return
	}

	var req ResearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.researchService.Research(c.Request.Context(), app.ResearchInput{
		UserID:    user.ID,
		Username:  user.Username,
		SessionID: req.SessionID,
		Query:     req.Query,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput), errors.Is(err, app.ErrQueryEmpty):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrSessionNotFound):
			response.Error(c, http.StatusNotFound, response.CodeSessionNotFound, err.Error())
		case errors.Is(err, app.ErrAgentTimeout):
			response.Error(c, http.StatusGatewayTimeout, response.CodeAgentTimeout, err.Error())
		case errors.Is(err, app.ErrOutputUnparsable):
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "research failed")
		}
		return
	}

	c.JSON(http.StatusOK, result)
}
