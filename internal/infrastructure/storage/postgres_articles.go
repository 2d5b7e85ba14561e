package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"NewsRadar/internal/domain"
	"NewsRadar/internal/ports"
)

// PostgresArticleStore persists normalized articles, symbol links, and
// per-symbol coverage timestamps.
//
// Schema:
//
//	CREATE TABLE articles (
//	    content_hash TEXT PRIMARY KEY,
//	    identity_key TEXT NOT NULL,
//	    provider     TEXT NOT NULL,
//	    title        TEXT NOT NULL DEFAULT '',
//	    summary      TEXT NOT NULL DEFAULT '',
//	    url          TEXT NOT NULL,
//	    source_name  TEXT NOT NULL DEFAULT '',
//	    event_type   TEXT NOT NULL DEFAULT '',
//	    language     TEXT NOT NULL DEFAULT '',
//	    published_at TIMESTAMPTZ,
//	    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
//	CREATE TABLE article_symbols (
//	    article_id TEXT NOT NULL REFERENCES articles(content_hash),
//	    symbol     TEXT NOT NULL,
//	    relevance  DOUBLE PRECISION NOT NULL DEFAULT 1,
//	    PRIMARY KEY (article_id, symbol)
//	);
//	CREATE TABLE symbol_coverage (
//	    symbol          TEXT PRIMARY KEY,
//	    last_covered_at TIMESTAMPTZ NOT NULL
//	);
type PostgresArticleStore struct {
	db *sql.DB
}

var _ ports.ArticleStore = (*PostgresArticleStore)(nil)

// NewPostgresArticleStore wires a sql.DB implementation.
func NewPostgresArticleStore(db *sql.DB) *PostgresArticleStore {
	return &PostgresArticleStore{db: db}
}

// ExistsByHash returns which of the given content hashes are already stored.
func (s *PostgresArticleStore) ExistsByHash(ctx context.Context, hashes []string) (map[string]bool, error) {
	result := make(map[string]bool, len(hashes))
	if len(hashes) == 0 {
		return result, nil
	}

	query, args, err := psql.
		Select("content_hash").
		From("articles").
		Where(sq.Expr("content_hash = ANY(?)", pq.StringArray(hashes))).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build exists query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query existing hashes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, fmt.Errorf("scan hash: %w", err)
		}
		result[hash] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return result, nil
}

// SaveArticle inserts a normalized article. Re-saving the same hash is a
// no-op: articles are immutable once stored.
func (s *PostgresArticleStore) SaveArticle(ctx context.Context, article domain.NormalizedArticle) error {
	query, args, err := psql.
		Insert("articles").
		Columns("content_hash", "identity_key", "provider", "title", "summary",
			"url", "source_name", "event_type", "language", "published_at").
		Values(article.ContentHash, article.IdentityKey, article.Provider,
			article.Title, article.Summary, article.URL, article.SourceName,
			article.EventType, article.Language, article.PublishedAt).
		Suffix("ON CONFLICT (content_hash) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build article insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert article %s: %w", article.ContentHash, err)
	}
	return nil
}

// SaveLink inserts one article-symbol link, ignoring repeats.
func (s *PostgresArticleStore) SaveLink(ctx context.Context, link domain.ArticleSymbolLink) error {
	query, args, err := psql.
		Insert("article_symbols").
		Columns("article_id", "symbol", "relevance").
		Values(link.ArticleID, link.Symbol, link.Relevance).
		Suffix("ON CONFLICT (article_id, symbol) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build link insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert link %s/%s: %w", link.ArticleID, link.Symbol, err)
	}
	return nil
}

// LastCoverage returns the last-ingested timestamp per symbol. Symbols with
// no coverage are simply absent from the map.
func (s *PostgresArticleStore) LastCoverage(ctx context.Context, symbols []string) (map[string]time.Time, error) {
	result := make(map[string]time.Time, len(symbols))
	if len(symbols) == 0 {
		return result, nil
	}

	query, args, err := psql.
		Select("symbol", "last_covered_at").
		From("symbol_coverage").
		Where(sq.Expr("symbol = ANY(?)", pq.StringArray(symbols))).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build coverage query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query coverage: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var symbol string
		var at time.Time
		if err := rows.Scan(&symbol, &at); err != nil {
			return nil, fmt.Errorf("scan coverage: %w", err)
		}
		result[symbol] = at
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return result, nil
}

// TouchCoverage moves a symbol's last-coverage timestamp forward. Older
// timestamps never overwrite newer ones.
func (s *PostgresArticleStore) TouchCoverage(ctx context.Context, symbol string, at time.Time) error {
	query, args, err := psql.
		Insert("symbol_coverage").
		Columns("symbol", "last_covered_at").
		Values(symbol, at).
		Suffix(`ON CONFLICT (symbol) DO UPDATE SET last_covered_at = EXCLUDED.last_covered_at
		        WHERE symbol_coverage.last_covered_at < EXCLUDED.last_covered_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build coverage upsert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("touch coverage %s: %w", symbol, err)
	}
	return nil
}
