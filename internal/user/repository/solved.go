package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"codearena/internal/common/cache"
	"codearena/internal/common/db"
)

// SolvedRepository tracks which problems a user has an accepted
// submission for. The underlying table has set semantics: a (user,
// problem) pair appears at most once.
type SolvedRepository interface {
	// Add records a solved problem. It is idempotent and reports
	// whether the pair was newly inserted.
	Add(ctx context.Context, tx db.Transaction, userID, problemID int64) (bool, error)

	// Contains reports whether the user has already solved the problem.
	Contains(ctx context.Context, tx db.Transaction, userID, problemID int64) (bool, error)

	// List returns the user's solved problem ids, oldest first.
	List(ctx context.Context, tx db.Transaction, userID int64) ([]int64, error)

	// Purge removes all solved rows for a user. Account deletion calls
	// this inside the same transaction that deletes the user row.
	Purge(ctx context.Context, tx db.Transaction, userID int64) error
}

type MySQLSolvedRepository struct {
	dbProvider db.Provider
	cache      cache.Cache
	ttl        time.Duration
}

const defaultSolvedCacheTTL = time.Hour

func NewSolvedRepository(provider db.Provider, cacheClient cache.Cache) SolvedRepository {
	return &MySQLSolvedRepository{
		dbProvider: provider,
		cache:      cacheClient,
		ttl:        defaultSolvedCacheTTL,
	}
}

func (r *MySQLSolvedRepository) Add(ctx context.Context, tx db.Transaction, userID, problemID int64) (bool, error) {
	query := "INSERT IGNORE INTO user_solved_problems (user_id, problem_id) VALUES (?, ?)"
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return false, err
	}
	result, err := querier.Exec(ctx, query, userID, problemID)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	added := affected > 0
	if added && r.cache != nil {
		// Mirror into the cached set only when it is already populated,
		// otherwise the next Contains would trust a partial set.
		key := solvedSetKey(userID)
		if n, err := r.cache.Exists(ctx, key); err == nil && n > 0 {
			_ = r.cache.SAdd(ctx, key, strconv.FormatInt(problemID, 10))
			_ = r.cache.Expire(ctx, key, cache.JitterTTL(r.ttl))
		}
	}
	return added, nil
}

func (r *MySQLSolvedRepository) Contains(ctx context.Context, tx db.Transaction, userID, problemID int64) (bool, error) {
	if r.cache != nil && tx == nil {
		key := solvedSetKey(userID)
		if n, err := r.cache.Exists(ctx, key); err == nil && n > 0 {
			return r.cache.SIsMember(ctx, key, strconv.FormatInt(problemID, 10))
		}
	}

	query := "SELECT 1 FROM user_solved_problems WHERE user_id = ? AND problem_id = ?"
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return false, err
	}
	row := querier.QueryRow(ctx, query, userID, problemID)
	var one int
	if err := row.Scan(&one); err != nil {
		if db.IsNoRows(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *MySQLSolvedRepository) List(ctx context.Context, tx db.Transaction, userID int64) ([]int64, error) {
	query := "SELECT problem_id FROM user_solved_problems WHERE user_id = ? ORDER BY created_at, problem_id"
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return nil, err
	}
	rows, err := querier.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if r.cache != nil && tx == nil && len(ids) > 0 {
		key := solvedSetKey(userID)
		members := make([]interface{}, 0, len(ids))
		for _, id := range ids {
			members = append(members, strconv.FormatInt(id, 10))
		}
		_ = r.cache.SAdd(ctx, key, members...)
		_ = r.cache.Expire(ctx, key, cache.JitterTTL(r.ttl))
	}
	return ids, nil
}

func (r *MySQLSolvedRepository) Purge(ctx context.Context, tx db.Transaction, userID int64) error {
	query := "DELETE FROM user_solved_problems WHERE user_id = ?"
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return err
	}
	if _, err := querier.Exec(ctx, query, userID); err != nil {
		return err
	}
	if r.cache != nil {
		_ = r.cache.Del(ctx, solvedSetKey(userID))
	}
	return nil
}

func solvedSetKey(userID int64) string {
	return fmt.Sprintf("user:solved:%d", userID)
}
