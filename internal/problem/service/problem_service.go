package service

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"codearena/internal/judge"
	"codearena/internal/problem/repository"
	pkgerrors "codearena/pkg/errors"
	"codearena/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 65535
	maxTags              = 10
)

// SolvedLister exposes the per-user solved set. The user module provides the
// production implementation.
type SolvedLister interface {
	ListSolved(ctx context.Context, userID int64) ([]int64, error)
}

// ProblemService owns problem CRUD. Every create, and every update that
// touches reference solutions or visible test cases, must pass the
// reference-solution check before anything is persisted.
type ProblemService struct {
	problems repository.ProblemRepository
	checker  SolutionChecker
	solved   SolvedLister
}

func NewProblemService(
	problems repository.ProblemRepository,
	checker SolutionChecker,
	solved SolvedLister,
) *ProblemService {
	return &ProblemService{
		problems: problems,
		checker:  checker,
		solved:   solved,
	}
}

type ProblemInput struct {
	Title              string
	Description        string
	Difficulty         repository.Difficulty
	Tags               []string
	VisibleTestCases   []repository.VisibleTestCase
	HiddenTestCases    []repository.HiddenTestCase
	StarterCode        map[string]string
	ReferenceSolutions []repository.ReferenceSolution
}

// Create validates the problem, proves every reference solution against the
// visible test cases, and only then persists. A failing solution rejects the
// whole problem.
func (s *ProblemService) Create(ctx context.Context, creatorID int64, input ProblemInput) (int64, error) {
	if err := validateProblemInput(input); err != nil {
		return 0, err
	}
	if err := s.runSolutionCheck(ctx, input.ReferenceSolutions, input.VisibleTestCases); err != nil {
		return 0, err
	}

	problem := &repository.Problem{
		Title:              input.Title,
		Description:        input.Description,
		Difficulty:         input.Difficulty,
		Tags:               input.Tags,
		VisibleTestCases:   input.VisibleTestCases,
		HiddenTestCases:    input.HiddenTestCases,
		StarterCode:        input.StarterCode,
		ReferenceSolutions: input.ReferenceSolutions,
		CreatorID:          creatorID,
	}
	id, err := s.problems.Create(ctx, nil, problem)
	if err != nil {
		return 0, pkgerrors.Wrap(fmt.Errorf("create problem failed: %w", err), pkgerrors.ProblemCreateFailed)
	}
	logger.Info(ctx, "problem created",
		zap.Int64("problem_id", id),
		zap.Int64("creator_id", creatorID),
		zap.String("difficulty", string(problem.Difficulty)))
	return id, nil
}

// Update replaces the stored problem. The reference-solution check re-runs
// only when the solutions or the visible test cases actually changed.
func (s *ProblemService) Update(ctx context.Context, id int64, input ProblemInput) error {
	if err := validateProblemInput(input); err != nil {
		return err
	}

	existing, err := s.problems.GetByID(ctx, nil, id)
	if err != nil {
		return mapProblemLookupError(err)
	}

	if solutionsOrCasesChanged(existing, input) {
		if err := s.runSolutionCheck(ctx, input.ReferenceSolutions, input.VisibleTestCases); err != nil {
			return err
		}
	}

	existing.Title = input.Title
	existing.Description = input.Description
	existing.Difficulty = input.Difficulty
	existing.Tags = input.Tags
	existing.VisibleTestCases = input.VisibleTestCases
	existing.HiddenTestCases = input.HiddenTestCases
	existing.StarterCode = input.StarterCode
	existing.ReferenceSolutions = input.ReferenceSolutions

	if err := s.problems.Update(ctx, nil, existing); err != nil {
		if stderrors.Is(err, repository.ErrProblemNotFound) {
			return pkgerrors.New(pkgerrors.ProblemNotFound)
		}
		return pkgerrors.Wrap(fmt.Errorf("update problem failed: %w", err), pkgerrors.ProblemUpdateFailed)
	}
	logger.Info(ctx, "problem updated", zap.Int64("problem_id", id))
	return nil
}

func (s *ProblemService) Delete(ctx context.Context, id int64) error {
	if err := s.problems.Delete(ctx, nil, id); err != nil {
		if stderrors.Is(err, repository.ErrProblemNotFound) {
			return pkgerrors.New(pkgerrors.ProblemNotFound)
		}
		return pkgerrors.Wrap(fmt.Errorf("delete problem failed: %w", err), pkgerrors.ProblemDeleteFailed)
	}
	logger.Info(ctx, "problem deleted", zap.Int64("problem_id", id))
	return nil
}

func (s *ProblemService) GetByID(ctx context.Context, id int64) (*repository.Problem, error) {
	problem, err := s.problems.GetByID(ctx, nil, id)
	if err != nil {
		return nil, mapProblemLookupError(err)
	}
	return problem, nil
}

func (s *ProblemService) List(ctx context.Context) ([]*repository.ProblemSummary, error) {
	summaries, err := s.problems.List(ctx, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(fmt.Errorf("list problems failed: %w", err), pkgerrors.DatabaseError)
	}
	return summaries, nil
}

// ListSolved returns summaries of every problem the user has solved.
func (s *ProblemService) ListSolved(ctx context.Context, userID int64) ([]*repository.ProblemSummary, error) {
	ids, err := s.solved.ListSolved(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(fmt.Errorf("list solved problems failed: %w", err), pkgerrors.DatabaseError)
	}
	summaries, err := s.problems.ListByIDs(ctx, nil, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(fmt.Errorf("load solved problem summaries failed: %w", err), pkgerrors.DatabaseError)
	}
	return summaries, nil
}

func (s *ProblemService) runSolutionCheck(ctx context.Context, solutions []repository.ReferenceSolution, cases []repository.VisibleTestCase) error {
	checkCases := make([]SelfCheckCase, len(cases))
	for i, tc := range cases {
		checkCases[i] = SelfCheckCase{Input: tc.Input, ExpectedOutput: tc.Output}
	}

	for _, solution := range solutions {
		outcome, err := s.checker.SelfCheck(ctx, solution.Language, solution.Code, checkCases)
		if err != nil {
			return err
		}
		if !outcome.OK() {
			logger.Warn(ctx, "reference solution failed check",
				zap.String("language", solution.Language),
				zap.Int("failed_case", outcome.FailedCase),
				zap.Int("passed", outcome.Passed),
				zap.Int("total", outcome.Total))
			msg := fmt.Sprintf("reference solution (%s) failed on visible test case %d (%d/%d passed)",
				solution.Language, outcome.FailedCase+1, outcome.Passed, outcome.Total)
			if outcome.ErrorMessage != "" {
				msg += ": " + outcome.ErrorMessage
			}
			return pkgerrors.New(pkgerrors.ReferenceSolutionFailed).WithMessage(msg)
		}
	}
	return nil
}

func validateProblemInput(input ProblemInput) error {
	if input.Title == "" || len(input.Title) > maxTitleLength {
		return pkgerrors.New(pkgerrors.ValidationFailed).WithMessage("title must be 1-200 characters")
	}
	if input.Description == "" || len(input.Description) > maxDescriptionLength {
		return pkgerrors.New(pkgerrors.ValidationFailed).WithMessage("description is required")
	}
	if !input.Difficulty.Valid() {
		return pkgerrors.New(pkgerrors.ValidationFailed).WithMessage("difficulty must be easy, medium or hard")
	}
	if len(input.Tags) > maxTags {
		return pkgerrors.New(pkgerrors.ValidationFailed).WithMessage("too many tags")
	}
	if len(input.VisibleTestCases) == 0 {
		return pkgerrors.New(pkgerrors.TestCaseInvalid).WithMessage("at least one visible test case is required")
	}
	if len(input.HiddenTestCases) == 0 {
		return pkgerrors.New(pkgerrors.TestCaseInvalid).WithMessage("at least one hidden test case is required")
	}
	for i, tc := range input.VisibleTestCases {
		if tc.Output == "" {
			return pkgerrors.New(pkgerrors.TestCaseInvalid).WithMessage(fmt.Sprintf("visible test case %d has no expected output", i+1))
		}
	}
	for i, tc := range input.HiddenTestCases {
		if tc.Output == "" {
			return pkgerrors.New(pkgerrors.TestCaseInvalid).WithMessage(fmt.Sprintf("hidden test case %d has no expected output", i+1))
		}
	}
	if len(input.ReferenceSolutions) == 0 {
		return pkgerrors.New(pkgerrors.ValidationFailed).WithMessage("at least one reference solution is required")
	}
	for _, solution := range input.ReferenceSolutions {
		if _, ok := judge.LanguageID(solution.Language); !ok {
			return pkgerrors.New(pkgerrors.LanguageNotSupported).
				WithMessage(fmt.Sprintf("unsupported reference solution language %q", solution.Language))
		}
		if solution.Code == "" {
			return pkgerrors.New(pkgerrors.ValidationFailed).WithMessage("reference solution code is required")
		}
	}
	for lang := range input.StarterCode {
		if _, ok := judge.LanguageID(lang); !ok {
			return pkgerrors.New(pkgerrors.LanguageNotSupported).
				WithMessage(fmt.Sprintf("unsupported starter code language %q", lang))
		}
	}
	return nil
}

func solutionsOrCasesChanged(existing *repository.Problem, input ProblemInput) bool {
	return !jsonEqual(existing.ReferenceSolutions, input.ReferenceSolutions) ||
		!jsonEqual(existing.VisibleTestCases, input.VisibleTestCases)
}

func jsonEqual(a, b interface{}) bool {
	left, err := json.Marshal(a)
	if err != nil {
		return false
	}
	right, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(left) == string(right)
}

func mapProblemLookupError(err error) error {
	if stderrors.Is(err, repository.ErrProblemNotFound) {
		return pkgerrors.New(pkgerrors.ProblemNotFound)
	}
	return pkgerrors.Wrap(fmt.Errorf("load problem failed: %w", err), pkgerrors.DatabaseError)
}
