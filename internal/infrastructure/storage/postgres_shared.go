package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"NewsRadar/internal/ports"
)

// PostgresSharedStore implements the cross-process coordination store on a
// single shared_kv table. Every mutation is one SQL statement, so concurrent
// workers in different processes never interleave partial updates.
//
// Schema:
//
//	CREATE TABLE shared_kv (
//	    key          TEXT PRIMARY KEY,
//	    value        TEXT NOT NULL DEFAULT '',
//	    num          BIGINT NOT NULL DEFAULT 0,
//	    window_start TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//	    expires_at   TIMESTAMPTZ
//	);
type PostgresSharedStore struct {
	db *sql.DB
}

var _ ports.SharedStore = (*PostgresSharedStore)(nil)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// NewPostgresSharedStore wires a sql.DB implementation.
func NewPostgresSharedStore(db *sql.DB) *PostgresSharedStore {
	return &PostgresSharedStore{db: db}
}

func (s *PostgresSharedStore) Get(ctx context.Context, key string) (string, bool, error) {
	query, args, err := psql.
		Select("COALESCE(NULLIF(value, ''), num::text)").
		From("shared_kv").
		Where(sq.Eq{"key": key}).
		Where(sq.Or{sq.Eq{"expires_at": nil}, sq.Expr("expires_at > NOW()")}).
		ToSql()
	if err != nil {
		return "", false, fmt.Errorf("build get: %w", err)
	}

	var value string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *PostgresSharedStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	query, args, err := psql.
		Insert("shared_kv").
		Columns("key", "value", "expires_at").
		Values(key, value, expiresExpr(ttl)).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, num = 0, expires_at = EXCLUDED.expires_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build set: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *PostgresSharedStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	query, args, err := psql.
		Insert("shared_kv").
		Columns("key", "value", "expires_at").
		Values(key, value, expiresExpr(ttl)).
		Suffix(`ON CONFLICT (key) DO UPDATE
		        SET value = EXCLUDED.value, num = 0, expires_at = EXCLUDED.expires_at
		        WHERE shared_kv.expires_at IS NOT NULL AND shared_kv.expires_at <= NOW()`).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build setnx: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", key, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", key, err)
	}
	return affected > 0, nil
}

func (s *PostgresSharedStore) Add(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	query, args, err := psql.
		Insert("shared_kv").
		Columns("key", "num", "expires_at").
		Values(key, delta, expiresExpr(ttl)).
		Suffix(`ON CONFLICT (key) DO UPDATE SET
		            num = CASE WHEN shared_kv.value <> '' THEN shared_kv.value::bigint ELSE shared_kv.num END + EXCLUDED.num,
		            value = ''
		        RETURNING num`).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build add: %w", err)
	}

	var num int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&num); err != nil {
		return 0, fmt.Errorf("add %s: %w", key, err)
	}
	return num, nil
}

func (s *PostgresSharedStore) AddWithLimit(ctx context.Context, key string, limit int64, ttl time.Duration) (int64, bool, error) {
	if limit <= 0 {
		current, err := s.currentNum(ctx, key)
		return current, false, err
	}

	query, args, err := psql.
		Insert("shared_kv").
		Columns("key", "num", "expires_at").
		Values(key, 1, expiresExpr(ttl)).
		Suffix(`ON CONFLICT (key) DO UPDATE SET num = shared_kv.num + 1
		        WHERE shared_kv.num < ?
		        RETURNING num`, limit).
		ToSql()
	if err != nil {
		return 0, false, fmt.Errorf("build add with limit: %w", err)
	}

	var num int64
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&num)
	if errors.Is(err, sql.ErrNoRows) {
		// The WHERE clause rejected the bump: counter is at the limit.
		current, cerr := s.currentNum(ctx, key)
		return current, false, cerr
	}
	if err != nil {
		return 0, false, fmt.Errorf("add with limit %s: %w", key, err)
	}
	return num, true, nil
}

func (s *PostgresSharedStore) WindowAdd(ctx context.Context, key string, limit int64, window time.Duration) (ports.WindowCount, error) {
	windowArg := fmt.Sprintf("%d seconds", int(window.Seconds()))

	if limit <= 0 {
		return s.peekWindow(ctx, key, windowArg)
	}

	query, args, err := psql.
		Insert("shared_kv").
		Columns("key", "num", "window_start", "expires_at").
		Values(key, 1, sq.Expr("NOW()"), sq.Expr("NOW() + (?::interval * 2)", windowArg)).
		Suffix(`ON CONFLICT (key) DO UPDATE SET
		            num = CASE WHEN NOW() >= shared_kv.window_start + ?::interval THEN 1 ELSE shared_kv.num + 1 END,
		            window_start = CASE WHEN NOW() >= shared_kv.window_start + ?::interval THEN NOW() ELSE shared_kv.window_start END,
		            expires_at = EXCLUDED.expires_at
		        WHERE NOW() >= shared_kv.window_start + ?::interval OR shared_kv.num < ?
		        RETURNING num, window_start`, windowArg, windowArg, windowArg, limit).
		ToSql()
	if err != nil {
		return ports.WindowCount{}, fmt.Errorf("build window add: %w", err)
	}

	var result ports.WindowCount
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&result.Count, &result.WindowStart)
	if errors.Is(err, sql.ErrNoRows) {
		// Denied: the live window is full. Report it without mutating.
		return s.peekWindow(ctx, key, windowArg)
	}
	if err != nil {
		return ports.WindowCount{}, fmt.Errorf("window add %s: %w", key, err)
	}
	result.Allowed = true
	return result, nil
}

func (s *PostgresSharedStore) peekWindow(ctx context.Context, key, windowArg string) (ports.WindowCount, error) {
	query, args, err := psql.
		Select("num", "window_start").
		From("shared_kv").
		Where(sq.Eq{"key": key}).
		Where(sq.Expr("NOW() < window_start + ?::interval", windowArg)).
		ToSql()
	if err != nil {
		return ports.WindowCount{}, fmt.Errorf("build window peek: %w", err)
	}

	var result ports.WindowCount
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&result.Count, &result.WindowStart)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.WindowCount{}, nil
	}
	if err != nil {
		return ports.WindowCount{}, fmt.Errorf("window peek %s: %w", key, err)
	}
	return result, nil
}

func (s *PostgresSharedStore) currentNum(ctx context.Context, key string) (int64, error) {
	query, args, err := psql.
		Select("num").
		From("shared_kv").
		Where(sq.Eq{"key": key}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build num read: %w", err)
	}

	var num int64
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&num)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read num %s: %w", key, err)
	}
	return num, nil
}

func expiresExpr(ttl time.Duration) any {
	if ttl <= 0 {
		return nil
	}
	return sq.Expr("NOW() + ?::interval", fmt.Sprintf("%d seconds", int(ttl.Seconds())))
}
