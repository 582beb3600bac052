package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"codearena/internal/common/cache"
	"codearena/internal/common/db"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is one of the known difficulty levels.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// VisibleTestCase is shown to users and doubles as the reference-solution
// check input during problem creation.
type VisibleTestCase struct {
	Input       string `json:"input"`
	Output      string `json:"output"`
	Explanation string `json:"explanation,omitempty"`
}

// HiddenTestCase is only ever fed to the judge backend, never serialized to
// clients.
type HiddenTestCase struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// ReferenceSolution is a known-good solution in one language.
type ReferenceSolution struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

type Problem struct {
	ID                 int64
	Title              string
	Description        string
	Difficulty         Difficulty
	Tags               []string
	VisibleTestCases   []VisibleTestCase
	HiddenTestCases    []HiddenTestCase
	StarterCode        map[string]string
	ReferenceSolutions []ReferenceSolution
	CreatorID          int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ProblemSummary is the listing projection: no statement, no test cases.
type ProblemSummary struct {
	ID         int64      `json:"id"`
	Title      string     `json:"title"`
	Difficulty Difficulty `json:"difficulty"`
	Tags       []string   `json:"tags"`
}

type ProblemRepository interface {
	Create(ctx context.Context, tx db.Transaction, problem *Problem) (int64, error)
	GetByID(ctx context.Context, tx db.Transaction, id int64) (*Problem, error)
	Update(ctx context.Context, tx db.Transaction, problem *Problem) error
	Delete(ctx context.Context, tx db.Transaction, id int64) error
	List(ctx context.Context, tx db.Transaction) ([]*ProblemSummary, error)
	ListByIDs(ctx context.Context, tx db.Transaction, ids []int64) ([]*ProblemSummary, error)
}

type MySQLProblemRepository struct {
	dbProvider db.Provider
	cache      cache.Cache
	ttl        time.Duration
	emptyTTL   time.Duration
}

func NewProblemRepository(provider db.Provider, cacheClient cache.Cache) ProblemRepository {
	return NewProblemRepositoryWithTTL(provider, cacheClient, defaultProblemCacheTTL, defaultProblemCacheEmptyTTL)
}

func NewProblemRepositoryWithTTL(provider db.Provider, cacheClient cache.Cache, ttl, emptyTTL time.Duration) ProblemRepository {
	if ttl <= 0 {
		ttl = defaultProblemCacheTTL
	}
	if emptyTTL <= 0 {
		emptyTTL = defaultProblemCacheEmptyTTL
	}
	return &MySQLProblemRepository{
		dbProvider: provider,
		cache:      cacheClient,
		ttl:        ttl,
		emptyTTL:   emptyTTL,
	}
}

const (
	problemColumns = "id, title, description, difficulty, tags, visible_test_cases, hidden_test_cases, starter_code, reference_solutions, creator_id, created_at, updated_at"

	problemInfoKeyPrefix = "problem:info:"

	defaultProblemCacheTTL      = 30 * time.Minute
	defaultProblemCacheEmptyTTL = 5 * time.Minute
)

func (r *MySQLProblemRepository) Create(ctx context.Context, tx db.Transaction, problem *Problem) (int64, error) {
	if problem == nil {
		return 0, errors.New("problem is nil")
	}

	cols, err := marshalProblemColumns(problem)
	if err != nil {
		return 0, err
	}

	query := `INSERT INTO problems
		(title, description, difficulty, tags, visible_test_cases, hidden_test_cases, starter_code, reference_solutions, creator_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return 0, err
	}
	result, err := querier.Exec(ctx, query,
		problem.Title, problem.Description, problem.Difficulty,
		cols.tags, cols.visible, cols.hidden, cols.starter, cols.solutions,
		problem.CreatorID,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (r *MySQLProblemRepository) GetByID(ctx context.Context, tx db.Transaction, id int64) (*Problem, error) {
	if r.cache != nil && tx == nil {
		problem, err := cache.GetWithCached[*Problem](
			ctx,
			r.cache,
			problemInfoKey(id),
			cache.JitterTTL(r.ttl),
			cache.JitterTTL(r.emptyTTL),
			func(problem *Problem) bool { return problem == nil },
			marshalProblem,
			unmarshalProblem,
			func(ctx context.Context) (*Problem, error) {
				problem, err := r.getByIDFromDB(ctx, nil, id)
				if err != nil {
					if errors.Is(err, ErrProblemNotFound) {
						return nil, nil
					}
					return nil, err
				}
				return problem, nil
			},
		)
		if err != nil {
			return nil, err
		}
		if problem == nil {
			return nil, ErrProblemNotFound
		}
		return problem, nil
	}
	return r.getByIDFromDB(ctx, tx, id)
}

func (r *MySQLProblemRepository) Update(ctx context.Context, tx db.Transaction, problem *Problem) error {
	if problem == nil {
		return errors.New("problem is nil")
	}

	cols, err := marshalProblemColumns(problem)
	if err != nil {
		return err
	}

	query := `UPDATE problems SET
		title = ?, description = ?, difficulty = ?, tags = ?,
		visible_test_cases = ?, hidden_test_cases = ?, starter_code = ?, reference_solutions = ?
		WHERE id = ?`
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return err
	}
	result, err := querier.Exec(ctx, query,
		problem.Title, problem.Description, problem.Difficulty,
		cols.tags, cols.visible, cols.hidden, cols.starter, cols.solutions,
		problem.ID,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Distinguish a no-op update from a missing row.
		if _, err := r.getByIDFromDB(ctx, tx, problem.ID); err != nil {
			return err
		}
	}
	if r.cache != nil {
		_ = r.cache.Del(ctx, problemInfoKey(problem.ID))
	}
	return nil
}

func (r *MySQLProblemRepository) Delete(ctx context.Context, tx db.Transaction, id int64) error {
	query := "DELETE FROM problems WHERE id = ?"
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return err
	}
	result, err := querier.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrProblemNotFound
	}
	if r.cache != nil {
		_ = r.cache.Del(ctx, problemInfoKey(id))
	}
	return nil
}

func (r *MySQLProblemRepository) List(ctx context.Context, tx db.Transaction) ([]*ProblemSummary, error) {
	query := "SELECT id, title, difficulty, tags FROM problems ORDER BY id"
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return nil, err
	}
	rows, err := querier.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSummaries(rows)
}

func (r *MySQLProblemRepository) ListByIDs(ctx context.Context, tx db.Transaction, ids []int64) ([]*ProblemSummary, error) {
	if len(ids) == 0 {
		return []*ProblemSummary{}, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := "SELECT id, title, difficulty, tags FROM problems WHERE id IN (" + placeholders + ") ORDER BY id"
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return nil, err
	}
	rows, err := querier.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSummaries(rows)
}

func (r *MySQLProblemRepository) getByIDFromDB(ctx context.Context, tx db.Transaction, id int64) (*Problem, error) {
	query := "SELECT " + problemColumns + " FROM problems WHERE id = ?"
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return nil, err
	}
	row := querier.QueryRow(ctx, query, id)
	problem, err := scanProblem(row)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrProblemNotFound
		}
		return nil, err
	}
	return problem, nil
}

type problemJSONColumns struct {
	tags      string
	visible   string
	hidden    string
	starter   string
	solutions string
}

func marshalProblemColumns(problem *Problem) (problemJSONColumns, error) {
	var cols problemJSONColumns
	var err error
	if cols.tags, err = marshalJSONColumn(problem.Tags); err != nil {
		return cols, fmt.Errorf("marshal tags: %w", err)
	}
	if cols.visible, err = marshalJSONColumn(problem.VisibleTestCases); err != nil {
		return cols, fmt.Errorf("marshal visible test cases: %w", err)
	}
	if cols.hidden, err = marshalJSONColumn(problem.HiddenTestCases); err != nil {
		return cols, fmt.Errorf("marshal hidden test cases: %w", err)
	}
	if cols.starter, err = marshalJSONColumn(problem.StarterCode); err != nil {
		return cols, fmt.Errorf("marshal starter code: %w", err)
	}
	if cols.solutions, err = marshalJSONColumn(problem.ReferenceSolutions); err != nil {
		return cols, fmt.Errorf("marshal reference solutions: %w", err)
	}
	return cols, nil
}

func marshalJSONColumn(v interface{}) (string, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

func scanProblem(scanner db.Scanner) (*Problem, error) {
	var (
		problem   Problem
		tags      string
		visible   string
		hidden    string
		starter   string
		solutions string
	)
	err := scanner.Scan(
		&problem.ID,
		&problem.Title,
		&problem.Description,
		&problem.Difficulty,
		&tags,
		&visible,
		&hidden,
		&starter,
		&solutions,
		&problem.CreatorID,
		&problem.CreatedAt,
		&problem.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &problem.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	if err := json.Unmarshal([]byte(visible), &problem.VisibleTestCases); err != nil {
		return nil, fmt.Errorf("unmarshal visible test cases: %w", err)
	}
	if err := json.Unmarshal([]byte(hidden), &problem.HiddenTestCases); err != nil {
		return nil, fmt.Errorf("unmarshal hidden test cases: %w", err)
	}
	if err := json.Unmarshal([]byte(starter), &problem.StarterCode); err != nil {
		return nil, fmt.Errorf("unmarshal starter code: %w", err)
	}
	if err := json.Unmarshal([]byte(solutions), &problem.ReferenceSolutions); err != nil {
		return nil, fmt.Errorf("unmarshal reference solutions: %w", err)
	}
	return &problem, nil
}

func scanSummaries(rows db.Rows) ([]*ProblemSummary, error) {
	summaries := make([]*ProblemSummary, 0)
	for rows.Next() {
		var (
			summary ProblemSummary
			tags    string
		)
		if err := rows.Scan(&summary.ID, &summary.Title, &summary.Difficulty, &tags); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(tags), &summary.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
		summaries = append(summaries, &summary)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return summaries, nil
}

func problemInfoKey(id int64) string {
	return fmt.Sprintf("%s%d", problemInfoKeyPrefix, id)
}

func marshalProblem(problem *Problem) string {
	payload, err := json.Marshal(problem)
	if err != nil {
		return ""
	}
	return string(payload)
}

func unmarshalProblem(data string) (*Problem, error) {
	if data == "" {
		return nil, nil
	}
	var problem Problem
	if err := json.Unmarshal([]byte(data), &problem); err != nil {
		return nil, err
	}
	return &problem, nil
}
