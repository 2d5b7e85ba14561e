package storage

import (
	"context"
	"database/sql"
	"fmt"

	"NewsRadar/internal/domain"
	"NewsRadar/internal/ports"
)

// PostgresSettingsStore holds provider configuration and feature flags.
//
// Schema:
//
//	CREATE TABLE news_providers (
//	    name         TEXT PRIMARY KEY,
//	    enabled      BOOLEAN NOT NULL DEFAULT TRUE,
//	    shadow       BOOLEAN NOT NULL DEFAULT FALSE,
//	    priority     INT NOT NULL DEFAULT 0,
//	    daily_limit  BIGINT NOT NULL DEFAULT 100,
//	    minute_limit BIGINT NOT NULL DEFAULT 10,
//	    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
//	CREATE TABLE feature_flags (
//	    name  TEXT PRIMARY KEY,
//	    value TEXT NOT NULL
//	);
type PostgresSettingsStore struct {
	db *sql.DB
}

var _ ports.SettingsStore = (*PostgresSettingsStore)(nil)

// NewPostgresSettingsStore wires a sql.DB implementation.
func NewPostgresSettingsStore(db *sql.DB) *PostgresSettingsStore {
	return &PostgresSettingsStore{db: db}
}

// Providers returns all provider rows ordered by priority, then name.
func (s *PostgresSettingsStore) Providers(ctx context.Context) ([]domain.ProviderConfig, error) {
	query, args, err := psql.
		Select("name", "enabled", "shadow", "priority", "daily_limit", "minute_limit").
		From("news_providers").
		OrderBy("priority DESC", "name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build providers query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query providers: %w", err)
	}
	defer rows.Close()

	var providers []domain.ProviderConfig
	for rows.Next() {
		var p domain.ProviderConfig
		if err := rows.Scan(&p.Name, &p.Enabled, &p.Shadow, &p.Priority, &p.DailyLimit, &p.MinuteLimit); err != nil {
			return nil, fmt.Errorf("scan provider: %w", err)
		}
		providers = append(providers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return providers, nil
}

// Flags returns all feature flags as a name→value map.
func (s *PostgresSettingsStore) Flags(ctx context.Context) (map[string]string, error) {
	query, args, err := psql.
		Select("name", "value").
		From("feature_flags").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build flags query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query flags: %w", err)
	}
	defer rows.Close()

	flags := map[string]string{}
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scan flag: %w", err)
		}
		flags[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return flags, nil
}

// SetProviderShadow upserts exactly one provider row. The update is scoped
// to that row, so concurrent calls for different providers never clobber
// each other.
func (s *PostgresSettingsStore) SetProviderShadow(ctx context.Context, defaults domain.ProviderConfig, shadow bool) error {
	query, args, err := psql.
		Insert("news_providers").
		Columns("name", "enabled", "shadow", "priority", "daily_limit", "minute_limit").
		Values(defaults.Name, defaults.Enabled, shadow, defaults.Priority, defaults.DailyLimit, defaults.MinuteLimit).
		Suffix("ON CONFLICT (name) DO UPDATE SET shadow = EXCLUDED.shadow, updated_at = NOW()").
		ToSql()
	if err != nil {
		return fmt.Errorf("build provider upsert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert provider %s: %w", defaults.Name, err)
	}
	return nil
}
