package controller

import (
	"codearena/internal/hint"
	"codearena/internal/hint/service"
	"codearena/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// HintController exposes the AI tutoring endpoint.
type HintController struct {
	hintService *service.HintService
}

func NewHintController(hintService *service.HintService) *HintController {
	return &HintController{hintService: hintService}
}

type HintRequest struct {
	ProblemID int64              `json:"problemId" binding:"required"`
	Messages  []hint.ChatMessage `json:"messages" binding:"required"`
}

// Hint answers a question about a problem.
func (h *HintController) Hint(c *gin.Context) {
	var req HintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}

	text, err := h.hintService.Hint(c.Request.Context(), service.HintInput{
		ProblemID: req.ProblemID,
		Messages:  req.Messages,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"message": text})
}
