package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"codearena/internal/common/db"
	"codearena/internal/judge"
	problemrepo "codearena/internal/problem/repository"
	problemservice "codearena/internal/problem/service"
	"codearena/internal/submission/repository"
	pkgerrors "codearena/pkg/errors"
	"codearena/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultMaxSourceBytes = 128 * 1024

// SolvedMarker records a problem as solved for a user. The add is a set
// operation; marking an already-solved problem is a no-op. It runs in
// the same transaction that finalizes the submission when tx is set.
type SolvedMarker interface {
	MarkSolved(ctx context.Context, tx db.Transaction, userID, problemID int64) (bool, error)
}

// EvalService runs the evaluation pipeline: validate the submission, create
// a pending record, dispatch the test cases to the judge backend, wait for
// every case to reach a terminal status, aggregate the verdict, persist it,
// and update the solved set.
type EvalService struct {
	dbProvider  db.Provider
	submissions repository.SubmissionRepository
	problems    problemrepo.ProblemRepository
	solved      SolvedMarker
	judgeClient judge.Client
	archiver    SourceArchiver
	publisher   VerdictPublisher
	maxSource   int
}

type EvalServiceOptions struct {
	DBProvider  db.Provider
	Submissions repository.SubmissionRepository
	Problems    problemrepo.ProblemRepository
	Solved      SolvedMarker
	Judge       judge.Client

	// Archiver and Publisher are optional; both are best-effort and never
	// fail a submission.
	Archiver  SourceArchiver
	Publisher VerdictPublisher

	// MaxSourceBytes bounds accepted source code size. Defaults to 128 KiB.
	MaxSourceBytes int
}

func NewEvalService(opts EvalServiceOptions) *EvalService {
	if opts.MaxSourceBytes <= 0 {
		opts.MaxSourceBytes = defaultMaxSourceBytes
	}
	return &EvalService{
		dbProvider:  opts.DBProvider,
		submissions: opts.Submissions,
		problems:    opts.Problems,
		solved:      opts.Solved,
		judgeClient: opts.Judge,
		archiver:    opts.Archiver,
		publisher:   opts.Publisher,
		maxSource:   opts.MaxSourceBytes,
	}
}

type SubmitInput struct {
	UserID     int64
	ProblemID  int64
	Language   string
	SourceCode string
}

type SubmitResult struct {
	SubmissionID    string
	Accepted        bool
	Status          judge.SubmissionStatus
	TotalTestCases  int
	PassedTestCases int
	Runtime         float64
	Memory          int64
	ErrorMessage    string
}

// Submit evaluates the source against the problem's hidden test cases and
// persists the outcome. If the judge backend fails after the pending record
// was created, the record stays pending (the sweeper reaps it later) and the
// judge error is returned to the caller.
func (s *EvalService) Submit(ctx context.Context, input SubmitInput) (*SubmitResult, error) {
	languageID, err := s.validateSubmission(input.Language, input.SourceCode)
	if err != nil {
		return nil, err
	}

	problem, err := s.loadProblem(ctx, input.ProblemID)
	if err != nil {
		return nil, err
	}
	if len(problem.HiddenTestCases) == 0 {
		return nil, pkgerrors.New(pkgerrors.TestCaseInvalid).WithMessage("problem has no hidden test cases")
	}

	submission := &repository.Submission{
		ID:             uuid.NewString(),
		UserID:         input.UserID,
		ProblemID:      input.ProblemID,
		SourceCode:     input.SourceCode,
		Language:       input.Language,
		Status:         judge.StatusPending,
		TestCasesTotal: len(problem.HiddenTestCases),
	}
	if err := s.submissions.Create(ctx, nil, submission); err != nil {
		return nil, pkgerrors.Wrap(fmt.Errorf("create submission record failed: %w", err), pkgerrors.SubmissionCreateFailed)
	}
	logger.Info(ctx, "submission created",
		zap.String("submission_id", submission.ID),
		zap.Int64("user_id", input.UserID),
		zap.Int64("problem_id", input.ProblemID),
		zap.String("language", input.Language),
		zap.Int("test_cases", submission.TestCasesTotal))

	items := make([]judge.BatchItem, len(problem.HiddenTestCases))
	for i, tc := range problem.HiddenTestCases {
		items[i] = judge.BatchItem{
			SourceCode:     input.SourceCode,
			LanguageID:     languageID,
			Stdin:          tc.Input,
			ExpectedOutput: tc.Output,
		}
	}

	results, err := s.evaluate(ctx, items)
	if err != nil {
		// Record stays pending; the sweeper turns it into an error later.
		logger.Error(ctx, "judge evaluation failed, submission left pending",
			zap.String("submission_id", submission.ID), zap.Error(err))
		return nil, err
	}

	verdict := judge.Aggregate(results, judge.Exhaustive)

	sourceKey := s.archiveSource(ctx, submission)

	finalize := repository.FinalizeInput{
		Status:          verdict.Status,
		TestCasesPassed: verdict.Passed,
		Runtime:         verdict.Runtime,
		Memory:          verdict.Memory,
		ErrorMessage:    verdict.ErrorMessage,
		SourceKey:       sourceKey,
	}
	// Finalizing the record and marking the problem solved happen in one
	// transaction so an accepted submission never lands without its
	// solved-set entry.
	database, err := db.CurrentDatabase(s.dbProvider)
	if err != nil {
		return nil, pkgerrors.Wrap(fmt.Errorf("resolve database failed: %w", err), pkgerrors.DatabaseError)
	}
	var solvedAdded bool
	err = database.Transaction(ctx, func(tx db.Transaction) error {
		if err := s.submissions.Finalize(ctx, tx, submission.ID, finalize); err != nil {
			return pkgerrors.Wrap(fmt.Errorf("finalize submission failed: %w", err), pkgerrors.DatabaseError)
		}
		if verdict.Status == judge.StatusAccepted {
			added, err := s.solved.MarkSolved(ctx, tx, input.UserID, input.ProblemID)
			if err != nil {
				return pkgerrors.Wrap(fmt.Errorf("update solved set failed: %w", err), pkgerrors.DatabaseError)
			}
			solvedAdded = added
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if solvedAdded {
		logger.Info(ctx, "problem solved",
			zap.Int64("user_id", input.UserID),
			zap.Int64("problem_id", input.ProblemID))
	}

	s.publishVerdict(ctx, submission, verdict)

	return &SubmitResult{
		SubmissionID:    submission.ID,
		Accepted:        verdict.Status == judge.StatusAccepted,
		Status:          verdict.Status,
		TotalTestCases:  submission.TestCasesTotal,
		PassedTestCases: verdict.Passed,
		Runtime:         verdict.Runtime,
		Memory:          verdict.Memory,
		ErrorMessage:    verdict.ErrorMessage,
	}, nil
}

type RunInput struct {
	UserID     int64
	ProblemID  int64
	Language   string
	SourceCode string
}

// CaseResult is the per-case detail returned by Run.
type CaseResult struct {
	StatusID     int    `json:"statusId"`
	Passed       bool   `json:"passed"`
	Time         string `json:"time"`
	Memory       int64  `json:"memory"`
	Stdout       string `json:"stdout,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

type RunResult struct {
	Success         bool
	TestCasesPassed int
	TotalTestCases  int
	Runtime         float64
	Memory          int64
	ErrorMessage    string
	TestResults     []CaseResult
}

// Run evaluates against the visible test cases only. Nothing is persisted
// and the solved set is untouched.
func (s *EvalService) Run(ctx context.Context, input RunInput) (*RunResult, error) {
	languageID, err := s.validateSubmission(input.Language, input.SourceCode)
	if err != nil {
		return nil, err
	}

	problem, err := s.loadProblem(ctx, input.ProblemID)
	if err != nil {
		return nil, err
	}
	if len(problem.VisibleTestCases) == 0 {
		return nil, pkgerrors.New(pkgerrors.TestCaseInvalid).WithMessage("problem has no visible test cases")
	}

	items := make([]judge.BatchItem, len(problem.VisibleTestCases))
	for i, tc := range problem.VisibleTestCases {
		items[i] = judge.BatchItem{
			SourceCode:     input.SourceCode,
			LanguageID:     languageID,
			Stdin:          tc.Input,
			ExpectedOutput: tc.Output,
		}
	}

	results, err := s.evaluate(ctx, items)
	if err != nil {
		return nil, err
	}

	verdict := judge.Aggregate(results, judge.Exhaustive)

	caseResults := make([]CaseResult, len(results))
	for i, result := range results {
		caseResults[i] = CaseResult{
			StatusID: result.Status.ID,
			Passed:   result.Status.ID == judge.StatusMatched,
			Time:     result.Time,
			Memory:   result.Memory,
			Stdout:   result.Stdout,
		}
		if result.Status.ID != judge.StatusMatched {
			if result.Stderr != "" {
				caseResults[i].ErrorMessage = result.Stderr
			} else {
				caseResults[i].ErrorMessage = result.CompileOutput
			}
		}
	}

	return &RunResult{
		Success:         verdict.Status == judge.StatusAccepted,
		TestCasesPassed: verdict.Passed,
		TotalTestCases:  len(results),
		Runtime:         verdict.Runtime,
		Memory:          verdict.Memory,
		ErrorMessage:    verdict.ErrorMessage,
		TestResults:     caseResults,
	}, nil
}

// SelfCheck runs reference-solution code against check cases through the
// same dispatch, poll and aggregate path as Submit. Problem creation uses
// it to prove reference solutions before persisting a problem.
func (s *EvalService) SelfCheck(ctx context.Context, language, code string, cases []problemservice.SelfCheckCase) (problemservice.SelfCheckOutcome, error) {
	outcome := problemservice.SelfCheckOutcome{FailedCase: -1, Total: len(cases)}

	languageID, err := s.validateSubmission(language, code)
	if err != nil {
		return outcome, err
	}
	if len(cases) == 0 {
		return outcome, pkgerrors.New(pkgerrors.TestCaseInvalid).WithMessage("no test cases to check against")
	}

	items := make([]judge.BatchItem, len(cases))
	for i, tc := range cases {
		items[i] = judge.BatchItem{
			SourceCode:     code,
			LanguageID:     languageID,
			Stdin:          tc.Input,
			ExpectedOutput: tc.ExpectedOutput,
		}
	}

	results, err := s.evaluate(ctx, items)
	if err != nil {
		return outcome, err
	}

	for i, result := range results {
		if result.Status.ID == judge.StatusMatched {
			outcome.Passed++
			continue
		}
		if outcome.FailedCase < 0 {
			outcome.FailedCase = i
			if result.Stderr != "" {
				outcome.ErrorMessage = result.Stderr
			} else {
				outcome.ErrorMessage = result.CompileOutput
			}
		}
	}
	return outcome, nil
}

var _ problemservice.SolutionChecker = (*EvalService)(nil)

// List returns the caller's submissions for one problem, newest first.
func (s *EvalService) List(ctx context.Context, userID, problemID int64) ([]*repository.Submission, error) {
	submissions, err := s.submissions.ListByUserProblem(ctx, nil, userID, problemID)
	if err != nil {
		return nil, pkgerrors.Wrap(fmt.Errorf("list submissions failed: %w", err), pkgerrors.DatabaseError)
	}
	return submissions, nil
}

func (s *EvalService) evaluate(ctx context.Context, items []judge.BatchItem) ([]judge.Result, error) {
	tokens, err := s.judgeClient.SubmitBatch(ctx, items)
	if err != nil {
		return nil, err
	}
	return s.judgeClient.AwaitResults(ctx, tokens)
}

func (s *EvalService) validateSubmission(language, sourceCode string) (int, error) {
	if sourceCode == "" {
		return 0, pkgerrors.New(pkgerrors.InvalidParams).WithMessage("source code is required")
	}
	if len(sourceCode) > s.maxSource {
		return 0, pkgerrors.New(pkgerrors.CodeTooLarge).
			WithMessage(fmt.Sprintf("source code exceeds %d bytes", s.maxSource))
	}
	languageID, ok := judge.LanguageID(language)
	if !ok {
		return 0, pkgerrors.New(pkgerrors.LanguageNotSupported).
			WithMessage(fmt.Sprintf("unsupported language %q", language))
	}
	return languageID, nil
}

func (s *EvalService) loadProblem(ctx context.Context, problemID int64) (*problemrepo.Problem, error) {
	problem, err := s.problems.GetByID(ctx, nil, problemID)
	if err != nil {
		if stderrors.Is(err, problemrepo.ErrProblemNotFound) {
			return nil, pkgerrors.New(pkgerrors.ProblemNotFound)
		}
		return nil, pkgerrors.Wrap(fmt.Errorf("load problem failed: %w", err), pkgerrors.DatabaseError)
	}
	return problem, nil
}

func (s *EvalService) archiveSource(ctx context.Context, submission *repository.Submission) string {
	if s.archiver == nil {
		return ""
	}
	key, err := s.archiver.Archive(ctx, submission.ID, submission.Language, submission.SourceCode)
	if err != nil {
		logger.Warn(ctx, "source archive failed",
			zap.String("submission_id", submission.ID), zap.Error(err))
		return ""
	}
	return key
}

func (s *EvalService) publishVerdict(ctx context.Context, submission *repository.Submission, verdict judge.Verdict) {
	if s.publisher == nil {
		return
	}
	event := VerdictEvent{
		SubmissionID:    submission.ID,
		UserID:          submission.UserID,
		ProblemID:       submission.ProblemID,
		Language:        submission.Language,
		Status:          verdict.Status,
		TestCasesPassed: verdict.Passed,
		TestCasesTotal:  submission.TestCasesTotal,
		Runtime:         verdict.Runtime,
		Memory:          verdict.Memory,
		FinalizedAt:     time.Now().UTC(),
	}
	if err := s.publisher.PublishVerdict(ctx, event); err != nil {
		logger.Warn(ctx, "verdict event publish failed",
			zap.String("submission_id", submission.ID), zap.Error(err))
	}
}
