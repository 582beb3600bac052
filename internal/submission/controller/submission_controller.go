package controller

import (
	"strconv"
	"strings"
	"time"

	"codearena/internal/common/http/middleware"
	"codearena/internal/judge"
	"codearena/internal/submission/repository"
	"codearena/internal/submission/service"
	"codearena/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// SubmissionController handles the submit, run and history endpoints.
type SubmissionController struct {
	evalService *service.EvalService
}

func NewSubmissionController(evalService *service.EvalService) *SubmissionController {
	return &SubmissionController{evalService: evalService}
}

// Submit evaluates code against the problem's hidden test cases and records
// the verdict.
func (h *SubmissionController) Submit(c *gin.Context) {
	problemID, principal, req, ok := h.bindEvalRequest(c)
	if !ok {
		return
	}

	result, err := h.evalService.Submit(c.Request.Context(), service.SubmitInput{
		UserID:     principal.UserID,
		ProblemID:  problemID,
		Language:   req.Language,
		SourceCode: req.Code,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, SubmitResponse{
		SubmissionID:    result.SubmissionID,
		Accepted:        result.Accepted,
		Status:          result.Status,
		TotalTestCases:  result.TotalTestCases,
		PassedTestCases: result.PassedTestCases,
		Runtime:         result.Runtime,
		Memory:          result.Memory,
		ErrorMessage:    result.ErrorMessage,
	})
}

// Run evaluates code against the visible test cases without persisting
// anything.
func (h *SubmissionController) Run(c *gin.Context) {
	problemID, principal, req, ok := h.bindEvalRequest(c)
	if !ok {
		return
	}

	result, err := h.evalService.Run(c.Request.Context(), service.RunInput{
		UserID:     principal.UserID,
		ProblemID:  problemID,
		Language:   req.Language,
		SourceCode: req.Code,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, RunResponse{
		Success:         result.Success,
		TestCasesPassed: result.TestCasesPassed,
		TotalTestCases:  result.TotalTestCases,
		Runtime:         result.Runtime,
		Memory:          result.Memory,
		ErrorMessage:    result.ErrorMessage,
		TestResults:     result.TestResults,
	})
}

// List returns the caller's submissions for one problem.
func (h *SubmissionController) List(c *gin.Context) {
	problemID, ok := problemID(c)
	if !ok {
		return
	}
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		response.Unauthorized(c, "missing credentials")
		return
	}

	submissions, err := h.evalService.List(c.Request.Context(), principal.UserID, problemID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]SubmissionItem, len(submissions))
	for i, submission := range submissions {
		items[i] = toSubmissionItem(submission)
	}
	response.Success(c, gin.H{"submissions": items})
}

func (h *SubmissionController) bindEvalRequest(c *gin.Context) (int64, middleware.Principal, EvalRequest, bool) {
	var req EvalRequest

	id, ok := problemID(c)
	if !ok {
		return 0, middleware.Principal{}, req, false
	}
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		response.Unauthorized(c, "missing credentials")
		return 0, middleware.Principal{}, req, false
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return 0, middleware.Principal{}, req, false
	}
	return id, principal, req, true
}

func problemID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid problem id")
		return 0, false
	}
	return id, true
}

type EvalRequest struct {
	Language string `json:"language" binding:"required"`
	Code     string `json:"code" binding:"required"`
}

type SubmitResponse struct {
	SubmissionID    string                 `json:"submissionId"`
	Accepted        bool                   `json:"accepted"`
	Status          judge.SubmissionStatus `json:"status"`
	TotalTestCases  int                    `json:"totalTestCases"`
	PassedTestCases int                    `json:"passedTestCases"`
	Runtime         float64                `json:"runtime"`
	Memory          int64                  `json:"memory"`
	ErrorMessage    string                 `json:"errorMessage,omitempty"`
}

type RunResponse struct {
	Success         bool                 `json:"success"`
	TestCasesPassed int                  `json:"testCasesPassed"`
	TotalTestCases  int                  `json:"totalTestCases"`
	Runtime         float64              `json:"runtime"`
	Memory          int64                `json:"memory"`
	ErrorMessage    string               `json:"errorMessage,omitempty"`
	TestResults     []service.CaseResult `json:"testResults"`
}

type SubmissionItem struct {
	ID              string                 `json:"id"`
	ProblemID       int64                  `json:"problemId"`
	Language        string                 `json:"language"`
	Status          judge.SubmissionStatus `json:"status"`
	TestCasesTotal  int                    `json:"testCasesTotal"`
	TestCasesPassed int                    `json:"testCasesPassed"`
	Runtime         float64                `json:"runtime"`
	Memory          int64                  `json:"memory"`
	ErrorMessage    string                 `json:"errorMessage,omitempty"`
	CreatedAt       time.Time              `json:"createdAt"`
}

func toSubmissionItem(submission *repository.Submission) SubmissionItem {
	return SubmissionItem{
		ID:              submission.ID,
		ProblemID:       submission.ProblemID,
		Language:        submission.Language,
		Status:          submission.Status,
		TestCasesTotal:  submission.TestCasesTotal,
		TestCasesPassed: submission.TestCasesPassed,
		Runtime:         submission.Runtime,
		Memory:          submission.Memory,
		ErrorMessage:    submission.ErrorMessage,
		CreatedAt:       submission.CreatedAt,
	}
}
