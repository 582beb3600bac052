package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"codearena/internal/common/db"
	"codearena/internal/judge"
)

// Submission is one persisted evaluation record. Runtime is the summed
// elapsed seconds over passed cases; Memory is the peak in kilobytes.
type Submission struct {
	ID              string
	UserID          int64
	ProblemID       int64
	SourceCode      string
	Language        string
	Status          judge.SubmissionStatus
	TestCasesTotal  int
	TestCasesPassed int
	Runtime         float64
	Memory          int64
	ErrorMessage    string
	SourceKey       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// FinalizeInput carries the terminal verdict applied to a pending record.
type FinalizeInput struct {
	Status          judge.SubmissionStatus
	TestCasesPassed int
	Runtime         float64
	Memory          int64
	ErrorMessage    string
	SourceKey       string
}

type SubmissionRepository interface {
	// Create inserts a new record in the pending state.
	Create(ctx context.Context, tx db.Transaction, submission *Submission) error

	// Finalize moves a pending record to its terminal state. A record is
	// finalized at most once; a second call returns ErrNotPending.
	Finalize(ctx context.Context, tx db.Transaction, id string, input FinalizeInput) error

	GetByID(ctx context.Context, tx db.Transaction, id string) (*Submission, error)

	// ListByUserProblem returns the user's submissions for one problem,
	// newest first.
	ListByUserProblem(ctx context.Context, tx db.Transaction, userID, problemID int64) ([]*Submission, error)

	// MarkStalePending flips records that have been pending longer than
	// the cutoff to the error state and returns how many were flipped.
	MarkStalePending(ctx context.Context, tx db.Transaction, cutoff time.Time, message string) (int64, error)
}

type MySQLSubmissionRepository struct {
	dbProvider db.Provider
}

func NewSubmissionRepository(provider db.Provider) SubmissionRepository {
	return &MySQLSubmissionRepository{dbProvider: provider}
}

const submissionColumns = "id, user_id, problem_id, source_code, language, status, test_cases_total, test_cases_passed, runtime, memory, error_message, source_key, created_at, updated_at"

func (r *MySQLSubmissionRepository) Create(ctx context.Context, tx db.Transaction, submission *Submission) error {
	if submission == nil {
		return errors.New("submission is nil")
	}
	if submission.Status == "" {
		submission.Status = judge.StatusPending
	}

	query := `INSERT INTO submissions
		(id, user_id, problem_id, source_code, language, status, test_cases_total)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return err
	}
	_, err = querier.Exec(ctx, query,
		submission.ID, submission.UserID, submission.ProblemID,
		submission.SourceCode, submission.Language, submission.Status,
		submission.TestCasesTotal,
	)
	return err
}

func (r *MySQLSubmissionRepository) Finalize(ctx context.Context, tx db.Transaction, id string, input FinalizeInput) error {
	query := `UPDATE submissions SET
		status = ?, test_cases_passed = ?, runtime = ?, memory = ?, error_message = ?, source_key = ?
		WHERE id = ? AND status = ?`
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return err
	}
	result, err := querier.Exec(ctx, query,
		input.Status, input.TestCasesPassed, input.Runtime, input.Memory,
		nullableString(input.ErrorMessage), nullableString(input.SourceKey),
		id, judge.StatusPending,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, err := r.GetByID(ctx, tx, id); err != nil {
			return err
		}
		return ErrNotPending
	}
	return nil
}

func (r *MySQLSubmissionRepository) GetByID(ctx context.Context, tx db.Transaction, id string) (*Submission, error) {
	query := "SELECT " + submissionColumns + " FROM submissions WHERE id = ?"
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return nil, err
	}
	row := querier.QueryRow(ctx, query, id)
	submission, err := scanSubmission(row)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}
	return submission, nil
}

func (r *MySQLSubmissionRepository) ListByUserProblem(ctx context.Context, tx db.Transaction, userID, problemID int64) ([]*Submission, error) {
	query := "SELECT " + submissionColumns + " FROM submissions WHERE user_id = ? AND problem_id = ? ORDER BY created_at DESC"
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return nil, err
	}
	rows, err := querier.Query(ctx, query, userID, problemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	submissions := make([]*Submission, 0)
	for rows.Next() {
		submission, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		submissions = append(submissions, submission)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return submissions, nil
}

func (r *MySQLSubmissionRepository) MarkStalePending(ctx context.Context, tx db.Transaction, cutoff time.Time, message string) (int64, error) {
	query := "UPDATE submissions SET status = ?, error_message = ? WHERE status = ? AND created_at < ?"
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return 0, err
	}
	result, err := querier.Exec(ctx, query, judge.StatusError, message, judge.StatusPending, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanSubmission(scanner db.Scanner) (*Submission, error) {
	var (
		submission   Submission
		errorMessage sql.NullString
		sourceKey    sql.NullString
	)
	err := scanner.Scan(
		&submission.ID,
		&submission.UserID,
		&submission.ProblemID,
		&submission.SourceCode,
		&submission.Language,
		&submission.Status,
		&submission.TestCasesTotal,
		&submission.TestCasesPassed,
		&submission.Runtime,
		&submission.Memory,
		&errorMessage,
		&sourceKey,
		&submission.CreatedAt,
		&submission.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	submission.ErrorMessage = errorMessage.String
	submission.SourceKey = sourceKey.String
	return &submission, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
