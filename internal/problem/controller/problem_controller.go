package controller

import (
	"strconv"
	"strings"

	"codearena/internal/common/http/middleware"
	"codearena/internal/problem/repository"
	"codearena/internal/problem/service"
	"codearena/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// ProblemController handles problem CRUD and listing endpoints.
type ProblemController struct {
	problemService *service.ProblemService
}

func NewProblemController(problemService *service.ProblemService) *ProblemController {
	return &ProblemController{problemService: problemService}
}

// Create adds a new problem. Admin-gated; the reference-solution check runs
// inside the service before anything is stored.
func (h *ProblemController) Create(c *gin.Context) {
	var req ProblemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}

	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		response.Unauthorized(c, "missing credentials")
		return
	}

	id, err := h.problemService.Create(c.Request.Context(), principal.UserID, req.toInput())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"id": id})
}

// Update replaces an existing problem. Admin-gated.
func (h *ProblemController) Update(c *gin.Context) {
	id, ok := problemID(c)
	if !ok {
		return
	}

	var req ProblemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}

	if err := h.problemService.Update(c.Request.Context(), id, req.toInput()); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"id": id})
}

// Delete removes a problem. Admin-gated.
func (h *ProblemController) Delete(c *gin.Context) {
	id, ok := problemID(c)
	if !ok {
		return
	}

	if err := h.problemService.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"id": id})
}

// Get returns one problem. Hidden test cases are stripped for everyone but
// admins.
func (h *ProblemController) Get(c *gin.Context) {
	id, ok := problemID(c)
	if !ok {
		return
	}

	problem, err := h.problemService.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	includeHidden := false
	if principal, ok := middleware.GetPrincipal(c); ok {
		includeHidden = principal.IsAdmin()
	}
	response.Success(c, toProblemResponse(problem, includeHidden))
}

// List returns summaries of every problem.
func (h *ProblemController) List(c *gin.Context) {
	summaries, err := h.problemService.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"problems": summaries})
}

// ListSolved returns summaries of the problems the caller has solved.
func (h *ProblemController) ListSolved(c *gin.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		response.Unauthorized(c, "missing credentials")
		return
	}

	summaries, err := h.problemService.ListSolved(c.Request.Context(), principal.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"problems": summaries})
}

func problemID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid problem id")
		return 0, false
	}
	return id, true
}

type TestCaseRequest struct {
	Input       string `json:"input"`
	Output      string `json:"output" binding:"required"`
	Explanation string `json:"explanation"`
}

type ReferenceSolutionRequest struct {
	Language string `json:"language" binding:"required"`
	Code     string `json:"code" binding:"required"`
}

type ProblemRequest struct {
	Title              string                     `json:"title" binding:"required"`
	Description        string                     `json:"description" binding:"required"`
	Difficulty         string                     `json:"difficulty" binding:"required"`
	Tags               []string                   `json:"tags"`
	VisibleTestCases   []TestCaseRequest          `json:"visibleTestCases" binding:"required"`
	HiddenTestCases    []TestCaseRequest          `json:"hiddenTestCases" binding:"required"`
	StarterCode        map[string]string          `json:"startCode"`
	ReferenceSolutions []ReferenceSolutionRequest `json:"referenceSolutions" binding:"required"`
}

func (req ProblemRequest) toInput() service.ProblemInput {
	visible := make([]repository.VisibleTestCase, len(req.VisibleTestCases))
	for i, tc := range req.VisibleTestCases {
		visible[i] = repository.VisibleTestCase{
			Input:       tc.Input,
			Output:      tc.Output,
			Explanation: tc.Explanation,
		}
	}
	hidden := make([]repository.HiddenTestCase, len(req.HiddenTestCases))
	for i, tc := range req.HiddenTestCases {
		hidden[i] = repository.HiddenTestCase{Input: tc.Input, Output: tc.Output}
	}
	solutions := make([]repository.ReferenceSolution, len(req.ReferenceSolutions))
	for i, sol := range req.ReferenceSolutions {
		solutions[i] = repository.ReferenceSolution{Language: sol.Language, Code: sol.Code}
	}
	return service.ProblemInput{
		Title:              strings.TrimSpace(req.Title),
		Description:        req.Description,
		Difficulty:         repository.Difficulty(strings.ToLower(strings.TrimSpace(req.Difficulty))),
		Tags:               req.Tags,
		VisibleTestCases:   visible,
		HiddenTestCases:    hidden,
		StarterCode:        req.StarterCode,
		ReferenceSolutions: solutions,
	}
}

type ProblemResponse struct {
	ID                 int64                          `json:"id"`
	Title              string                         `json:"title"`
	Description        string                         `json:"description"`
	Difficulty         repository.Difficulty          `json:"difficulty"`
	Tags               []string                       `json:"tags"`
	VisibleTestCases   []repository.VisibleTestCase   `json:"visibleTestCases"`
	HiddenTestCases    []repository.HiddenTestCase    `json:"hiddenTestCases,omitempty"`
	StarterCode        map[string]string              `json:"startCode"`
	ReferenceSolutions []repository.ReferenceSolution `json:"referenceSolutions,omitempty"`
}

func toProblemResponse(problem *repository.Problem, includeHidden bool) ProblemResponse {
	resp := ProblemResponse{
		ID:               problem.ID,
		Title:            problem.Title,
		Description:      problem.Description,
		Difficulty:       problem.Difficulty,
		Tags:             problem.Tags,
		VisibleTestCases: problem.VisibleTestCases,
		StarterCode:      problem.StarterCode,
	}
	if includeHidden {
		resp.HiddenTestCases = problem.HiddenTestCases
		resp.ReferenceSolutions = problem.ReferenceSolutions
	}
	return resp
}
