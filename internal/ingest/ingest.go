package ingest

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"NewsRadar/internal/canonical"
	"NewsRadar/internal/dedup"
	"NewsRadar/internal/domain"
	"NewsRadar/internal/ports"
)

const (
	// MaxBatchSize bounds one ingestion call; larger batches are rejected
	// outright so in-memory dedup stays cheap.
	MaxBatchSize = 200

	explicitRelevance = 1.0
	fallbackRelevance = 0.5
)

// Ingestor accepts raw provider batches, canonicalizes and deduplicates
// them, and persists new articles with their symbol links.
type Ingestor struct {
	store  ports.ArticleStore
	canon  *canonical.Canonicalizer
	dedup  *dedup.Deduplicator
	now    func() time.Time
	logger *slog.Logger
}

// New wires the ingestion service.
func New(store ports.ArticleStore, canon *canonical.Canonicalizer, deduplicator *dedup.Deduplicator, logger *slog.Logger) *Ingestor {
	if canon == nil {
		canon = canonical.New("")
	}
	if deduplicator == nil {
		deduplicator = dedup.New(canon, logger)
	}
	return &Ingestor{
		store:  store,
		canon:  canon,
		dedup:  deduplicator,
		now:    time.Now,
		logger: logger,
	}
}

// Ingest processes one provider batch. Articles whose content hash already
// exists short-circuit before link creation and count as duplicates. Items
// without tickers fall back to defaultSymbols. Link failures never fail the
// batch; they are counted separately in the report.
func (s *Ingestor) Ingest(ctx context.Context, provider string, items []domain.RawArticle, defaultSymbols []string) (domain.IngestReport, error) {
	report := domain.IngestReport{TotalProcessed: len(items)}

	if provider == "" {
		return report, domain.Validationf("provider name is required")
	}
	if len(items) == 0 {
		return report, domain.Validationf("batch is empty")
	}
	if len(items) > MaxBatchSize {
		return report, domain.Validationf("batch has %d items, limit is %d", len(items), MaxBatchSize)
	}

	defaults := normalizeSymbols(defaultSymbols)

	normalized := make([]domain.NormalizedArticle, 0, len(items))
	for _, item := range items {
		article, err := s.canon.Normalize(provider, item)
		if err != nil {
			s.warn("dropping invalid item", "url", item.URL, "error", err)
			report.Invalid++
			continue
		}
		normalized = append(normalized, article)
	}

	batch := s.dedup.Deduplicate(normalized, MaxBatchSize)
	report.Duplicates += batch.Duplicates

	hashes := make([]string, len(batch.Kept))
	for i, article := range batch.Kept {
		hashes[i] = article.ContentHash
	}

	existing := map[string]bool{}
	if len(hashes) > 0 {
		var err error
		existing, err = s.store.ExistsByHash(ctx, hashes)
		if err != nil {
			return report, domain.Transient("check existing articles", err)
		}
	}

	for _, article := range batch.Kept {
		if existing[article.ContentHash] {
			report.Duplicates++
			continue
		}

		// The fallback is decided per kept article, after dedup, so a
		// ticker-less duplicate never downgrades the kept item's links.
		relevance := explicitRelevance
		if len(article.Tickers) == 0 {
			article.Tickers = defaults
			relevance = fallbackRelevance
		}

		if err := s.store.SaveArticle(ctx, article); err != nil {
			return report, domain.Transient("save article", err)
		}
		report.Inserted++

		for _, symbol := range article.Tickers {
			link := domain.ArticleSymbolLink{
				ArticleID: article.ContentHash,
				Symbol:    symbol,
				Relevance: relevance,
			}
			if err := s.store.SaveLink(ctx, link); err != nil {
				s.warn("symbol link failed", "article", article.ContentHash, "symbol", symbol, "error", err)
				report.LinkFailures++
				continue
			}
			report.Linked++

			if err := s.store.TouchCoverage(ctx, symbol, s.now()); err != nil {
				s.warn("coverage update failed", "symbol", symbol, "error", err)
			}
		}
	}

	s.debug("batch ingested", "provider", provider,
		"inserted", report.Inserted, "linked", report.Linked,
		"duplicates", report.Duplicates, "link_failures", report.LinkFailures)
	return report, nil
}

func normalizeSymbols(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	seen := map[string]struct{}{}
	for _, s := range symbols {
		symbol := strings.ToUpper(strings.TrimSpace(s))
		if symbol == "" {
			continue
		}
		if _, ok := seen[symbol]; ok {
			continue
		}
		seen[symbol] = struct{}{}
		out = append(out, symbol)
	}
	return out
}

func (s *Ingestor) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *Ingestor) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
