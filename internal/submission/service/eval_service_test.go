package service

import (
	"context"
	"testing"
	"time"

	"codearena/internal/common/db"
	"codearena/internal/judge"
	problemrepo "codearena/internal/problem/repository"
	problemservice "codearena/internal/problem/service"
	"codearena/internal/submission/repository"
	pkgerrors "codearena/pkg/errors"
)

type fakeSubmissionRepo struct {
	records map[string]*repository.Submission
	creates int
}

func newFakeSubmissionRepo() *fakeSubmissionRepo {
	return &fakeSubmissionRepo{records: make(map[string]*repository.Submission)}
}

func (r *fakeSubmissionRepo) Create(ctx context.Context, tx db.Transaction, submission *repository.Submission) error {
	r.creates++
	clone := *submission
	clone.CreatedAt = time.Now()
	r.records[submission.ID] = &clone
	return nil
}

func (r *fakeSubmissionRepo) Finalize(ctx context.Context, tx db.Transaction, id string, input repository.FinalizeInput) error {
	record, ok := r.records[id]
	if !ok {
		return repository.ErrSubmissionNotFound
	}
	if record.Status != judge.StatusPending {
		return repository.ErrNotPending
	}
	record.Status = input.Status
	record.TestCasesPassed = input.TestCasesPassed
	record.Runtime = input.Runtime
	record.Memory = input.Memory
	record.ErrorMessage = input.ErrorMessage
	record.SourceKey = input.SourceKey
	return nil
}

func (r *fakeSubmissionRepo) GetByID(ctx context.Context, tx db.Transaction, id string) (*repository.Submission, error) {
	record, ok := r.records[id]
	if !ok {
		return nil, repository.ErrSubmissionNotFound
	}
	return record, nil
}

func (r *fakeSubmissionRepo) ListByUserProblem(ctx context.Context, tx db.Transaction, userID, problemID int64) ([]*repository.Submission, error) {
	submissions := make([]*repository.Submission, 0)
	for _, record := range r.records {
		if record.UserID == userID && record.ProblemID == problemID {
			submissions = append(submissions, record)
		}
	}
	return submissions, nil
}

func (r *fakeSubmissionRepo) MarkStalePending(ctx context.Context, tx db.Transaction, cutoff time.Time, message string) (int64, error) {
	var reaped int64
	for _, record := range r.records {
		if record.Status == judge.StatusPending && record.CreatedAt.Before(cutoff) {
			record.Status = judge.StatusError
			record.ErrorMessage = message
			reaped++
		}
	}
	return reaped, nil
}

func (r *fakeSubmissionRepo) single(t *testing.T) *repository.Submission {
	t.Helper()
	if len(r.records) != 1 {
		t.Fatalf("have %d records, want 1", len(r.records))
	}
	for _, record := range r.records {
		return record
	}
	return nil
}

type fakeProblemStore struct {
	problem *problemrepo.Problem
}

func (s *fakeProblemStore) Create(ctx context.Context, tx db.Transaction, problem *problemrepo.Problem) (int64, error) {
	return 0, nil
}

func (s *fakeProblemStore) GetByID(ctx context.Context, tx db.Transaction, id int64) (*problemrepo.Problem, error) {
	if s.problem == nil || s.problem.ID != id {
		return nil, problemrepo.ErrProblemNotFound
	}
	return s.problem, nil
}

func (s *fakeProblemStore) Update(ctx context.Context, tx db.Transaction, problem *problemrepo.Problem) error {
	return nil
}

func (s *fakeProblemStore) Delete(ctx context.Context, tx db.Transaction, id int64) error {
	return nil
}

func (s *fakeProblemStore) List(ctx context.Context, tx db.Transaction) ([]*problemrepo.ProblemSummary, error) {
	return nil, nil
}

func (s *fakeProblemStore) ListByIDs(ctx context.Context, tx db.Transaction, ids []int64) ([]*problemrepo.ProblemSummary, error) {
	return nil, nil
}

type fakeSolvedMarker struct {
	solved map[[2]int64]bool
	calls  int
}

func newFakeSolvedMarker() *fakeSolvedMarker {
	return &fakeSolvedMarker{solved: make(map[[2]int64]bool)}
}

func (m *fakeSolvedMarker) MarkSolved(ctx context.Context, tx db.Transaction, userID, problemID int64) (bool, error) {
	m.calls++
	key := [2]int64{userID, problemID}
	if m.solved[key] {
		return false, nil
	}
	m.solved[key] = true
	return true, nil
}

// fakeTxDB satisfies db.Database; the finalize transaction runs its fn
// with a nil tx, which the fake repositories ignore.
type fakeTxDB struct{}

func (fakeTxDB) Query(ctx context.Context, query string, args ...interface{}) (db.Rows, error) {
	return nil, nil
}

func (fakeTxDB) QueryRow(ctx context.Context, query string, args ...interface{}) db.Row {
	return nil
}

func (fakeTxDB) Exec(ctx context.Context, query string, args ...interface{}) (db.Result, error) {
	return nil, nil
}

func (fakeTxDB) Transaction(ctx context.Context, fn func(tx db.Transaction) error) error {
	return fn(nil)
}

func (fakeTxDB) Ping(ctx context.Context) error { return nil }
func (fakeTxDB) Close() error                   { return nil }

type fakeJudgeClient struct {
	results     []judge.Result
	submitErr   error
	awaitErr    error
	submitItems []judge.BatchItem
}

func (c *fakeJudgeClient) SubmitBatch(ctx context.Context, items []judge.BatchItem) ([]string, error) {
	c.submitItems = items
	if c.submitErr != nil {
		return nil, c.submitErr
	}
	tokens := make([]string, len(items))
	for i := range items {
		tokens[i] = string(rune('a' + i))
	}
	return tokens, nil
}

func (c *fakeJudgeClient) AwaitResults(ctx context.Context, tokens []string) ([]judge.Result, error) {
	if c.awaitErr != nil {
		return nil, c.awaitErr
	}
	return c.results, nil
}

type fakePublisher struct {
	events []VerdictEvent
}

func (p *fakePublisher) PublishVerdict(ctx context.Context, event VerdictEvent) error {
	p.events = append(p.events, event)
	return nil
}

func matched(timeSecs string, memory int64) judge.Result {
	return judge.Result{Status: judge.Status{ID: judge.StatusMatched}, Time: timeSecs, Memory: memory}
}

func testProblem() *problemrepo.Problem {
	return &problemrepo.Problem{
		ID:    1,
		Title: "Two Sum",
		VisibleTestCases: []problemrepo.VisibleTestCase{
			{Input: "1 2", Output: "3"},
		},
		HiddenTestCases: []problemrepo.HiddenTestCase{
			{Input: "1 2", Output: "3"},
			{Input: "4 5", Output: "9"},
		},
	}
}

type evalFixture struct {
	svc    *EvalService
	subs   *fakeSubmissionRepo
	solved *fakeSolvedMarker
	client *fakeJudgeClient
	events *fakePublisher
}

func newEvalFixture() *evalFixture {
	subs := newFakeSubmissionRepo()
	solved := newFakeSolvedMarker()
	client := &fakeJudgeClient{}
	events := &fakePublisher{}
	svc := NewEvalService(EvalServiceOptions{
		DBProvider:  db.NewStaticProvider(fakeTxDB{}),
		Submissions: subs,
		Problems:    &fakeProblemStore{problem: testProblem()},
		Solved:      solved,
		Judge:       client,
		Publisher:   events,
	})
	return &evalFixture{svc: svc, subs: subs, solved: solved, client: client, events: events}
}

func submitInput() SubmitInput {
	return SubmitInput{
		UserID:     7,
		ProblemID:  1,
		Language:   "cpp",
		SourceCode: "int main() { return 0; }",
	}
}

func TestSubmitAccepted(t *testing.T) {
	f := newEvalFixture()
	f.client.results = []judge.Result{matched("0.002", 1024), matched("0.010", 2048)}

	result, err := f.svc.Submit(context.Background(), submitInput())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !result.Accepted || result.Status != judge.StatusAccepted {
		t.Fatalf("result = %+v, want accepted", result)
	}
	if result.PassedTestCases != 2 || result.TotalTestCases != 2 {
		t.Fatalf("passed %d/%d, want 2/2", result.PassedTestCases, result.TotalTestCases)
	}
	if result.Memory != 2048 {
		t.Fatalf("Memory = %d, want peak 2048", result.Memory)
	}

	record := f.subs.single(t)
	if record.Status != judge.StatusAccepted {
		t.Fatalf("record status = %q, want accepted", record.Status)
	}
	if !f.solved.solved[[2]int64{7, 1}] {
		t.Fatal("problem not marked solved")
	}
	if len(f.events.events) != 1 || f.events.events[0].Status != judge.StatusAccepted {
		t.Fatalf("events = %+v, want one accepted verdict", f.events.events)
	}

	// The judge receives one item per hidden test case, expected output set.
	if len(f.client.submitItems) != 2 {
		t.Fatalf("submitted %d items, want 2", len(f.client.submitItems))
	}
	if f.client.submitItems[1].ExpectedOutput != "9" {
		t.Fatalf("ExpectedOutput = %q, want hidden case output", f.client.submitItems[1].ExpectedOutput)
	}
}

func TestSubmitAcceptedTwiceKeepsSolvedSetSemantics(t *testing.T) {
	f := newEvalFixture()
	f.client.results = []judge.Result{matched("0.001", 100), matched("0.001", 100)}
	ctx := context.Background()

	if _, err := f.svc.Submit(ctx, submitInput()); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if _, err := f.svc.Submit(ctx, submitInput()); err != nil {
		t.Fatalf("second Submit: %v", err)
	}
	if f.solved.calls != 2 {
		t.Fatalf("MarkSolved called %d times, want 2", f.solved.calls)
	}
	if len(f.solved.solved) != 1 {
		t.Fatalf("solved set has %d entries, want 1", len(f.solved.solved))
	}
}

func TestSubmitWrongAnswer(t *testing.T) {
	f := newEvalFixture()
	f.client.results = []judge.Result{
		matched("0.002", 1024),
		{Status: judge.Status{ID: 5}, Time: "0.003", Memory: 512, Stderr: "expected 9 got 8"},
	}

	result, err := f.svc.Submit(context.Background(), submitInput())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.Accepted || result.Status != judge.StatusWrong {
		t.Fatalf("result = %+v, want wrong", result)
	}
	if result.PassedTestCases != 1 {
		t.Fatalf("PassedTestCases = %d, want 1", result.PassedTestCases)
	}
	if result.ErrorMessage != "expected 9 got 8" {
		t.Fatalf("ErrorMessage = %q", result.ErrorMessage)
	}
	if len(f.solved.solved) != 0 {
		t.Fatal("wrong answer must not mark the problem solved")
	}
}

func TestSubmitJudgeFailureLeavesRecordPending(t *testing.T) {
	f := newEvalFixture()
	f.client.awaitErr = pkgerrors.New(pkgerrors.JudgeTimeout)

	_, err := f.svc.Submit(context.Background(), submitInput())
	if !pkgerrors.Is(err, pkgerrors.JudgeTimeout) {
		t.Fatalf("err = %v, want JudgeTimeout", err)
	}

	record := f.subs.single(t)
	if record.Status != judge.StatusPending {
		t.Fatalf("record status = %q, want pending", record.Status)
	}
	if len(f.events.events) != 0 {
		t.Fatal("no verdict event for an unfinished evaluation")
	}
}

func TestSubmitValidation(t *testing.T) {
	f := newEvalFixture()
	ctx := context.Background()

	input := submitInput()
	input.Language = "cobol"
	if _, err := f.svc.Submit(ctx, input); !pkgerrors.Is(err, pkgerrors.LanguageNotSupported) {
		t.Fatalf("unknown language: err = %v", err)
	}

	input = submitInput()
	input.SourceCode = ""
	if _, err := f.svc.Submit(ctx, input); !pkgerrors.Is(err, pkgerrors.InvalidParams) {
		t.Fatalf("empty source: err = %v", err)
	}

	input = submitInput()
	input.ProblemID = 99
	if _, err := f.svc.Submit(ctx, input); !pkgerrors.Is(err, pkgerrors.ProblemNotFound) {
		t.Fatalf("unknown problem: err = %v", err)
	}

	if f.subs.creates != 0 {
		t.Fatalf("created %d records for invalid submissions, want 0", f.subs.creates)
	}
}

func TestRunDoesNotPersist(t *testing.T) {
	f := newEvalFixture()
	f.client.results = []judge.Result{
		{Status: judge.Status{ID: judge.StatusRuntimeError}, Time: "0.001", Memory: 256, Stderr: "segfault"},
	}

	result, err := f.svc.Run(context.Background(), RunInput{
		UserID:     7,
		ProblemID:  1,
		Language:   "cpp",
		SourceCode: "int main() { return 1; }",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Success {
		t.Fatal("runtime error must not report success")
	}
	if len(result.TestResults) != 1 {
		t.Fatalf("TestResults = %+v, want one case", result.TestResults)
	}
	if result.TestResults[0].Passed || result.TestResults[0].ErrorMessage != "segfault" {
		t.Fatalf("case result = %+v", result.TestResults[0])
	}

	if f.subs.creates != 0 {
		t.Fatal("run must not create submission records")
	}
	if len(f.solved.solved) != 0 || len(f.events.events) != 0 {
		t.Fatal("run must not touch the solved set or publish events")
	}

	// Run dispatches the visible cases, not the hidden ones.
	if len(f.client.submitItems) != 1 {
		t.Fatalf("submitted %d items, want 1 visible case", len(f.client.submitItems))
	}
}

func TestSelfCheckReportsFirstFailure(t *testing.T) {
	f := newEvalFixture()
	f.client.results = []judge.Result{
		matched("0.001", 100),
		{Status: judge.Status{ID: 5}, CompileOutput: "mismatch"},
		{Status: judge.Status{ID: 5}},
	}

	cases := []problemservice.SelfCheckCase{
		{Input: "1", ExpectedOutput: "1"},
		{Input: "2", ExpectedOutput: "2"},
		{Input: "3", ExpectedOutput: "3"},
	}
	outcome, err := f.svc.SelfCheck(context.Background(), "java", "class Main {}", cases)
	if err != nil {
		t.Fatalf("SelfCheck: %v", err)
	}
	if outcome.OK() {
		t.Fatal("outcome must not be OK")
	}
	if outcome.FailedCase != 1 {
		t.Fatalf("FailedCase = %d, want 1", outcome.FailedCase)
	}
	if outcome.Passed != 1 || outcome.Total != 3 {
		t.Fatalf("Passed/Total = %d/%d, want 1/3", outcome.Passed, outcome.Total)
	}
	if outcome.ErrorMessage != "mismatch" {
		t.Fatalf("ErrorMessage = %q", outcome.ErrorMessage)
	}
}

func TestSelfCheckAllMatched(t *testing.T) {
	f := newEvalFixture()
	f.client.results = []judge.Result{matched("0.001", 100)}

	outcome, err := f.svc.SelfCheck(context.Background(), "cpp", "int main() {}", []problemservice.SelfCheckCase{
		{Input: "1", ExpectedOutput: "1"},
	})
	if err != nil {
		t.Fatalf("SelfCheck: %v", err)
	}
	if !outcome.OK() {
		t.Fatalf("outcome = %+v, want OK", outcome)
	}
}
