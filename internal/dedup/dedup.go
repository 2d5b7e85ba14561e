package dedup

import (
	"log/slog"
	"sort"

	"NewsRadar/internal/canonical"
	"NewsRadar/internal/domain"
)

// Result reports what happened to one batch.
type Result struct {
	Kept       []domain.NormalizedArticle
	Duplicates int
	Skipped    int
}

// Deduplicator removes repeated articles by content hash, preserving
// first-seen order, then ranks and bounds the surviving set.
type Deduplicator struct {
	canon  *canonical.Canonicalizer
	logger *slog.Logger
}

// New wires the canonicalizer used to hash items missing a content hash.
func New(canon *canonical.Canonicalizer, logger *slog.Logger) *Deduplicator {
	if canon == nil {
		canon = canonical.New("")
	}
	return &Deduplicator{canon: canon, logger: logger}
}

// Deduplicate filters a batch in input order, keeping the first article per
// content hash, then sorts survivors by PublishedAt descending and truncates
// to limit. Items whose hash cannot be computed are skipped with a warning,
// never a failure. Running the same batch twice yields the same kept set.
func (d *Deduplicator) Deduplicate(items []domain.NormalizedArticle, limit int) Result {
	seen := map[string]struct{}{}
	result := Result{Kept: make([]domain.NormalizedArticle, 0, len(items))}

	for _, item := range items {
		if item.ContentHash == "" {
			key, hash, err := d.canon.Canonicalize(domain.RawArticle{URL: item.URL, Title: item.Title})
			if err != nil {
				d.warn("skipping article without canonical key", "url", item.URL, "error", err)
				result.Skipped++
				continue
			}
			item.IdentityKey = key
			item.ContentHash = hash
		}

		if _, ok := seen[item.ContentHash]; ok {
			result.Duplicates++
			continue
		}
		seen[item.ContentHash] = struct{}{}
		result.Kept = append(result.Kept, item)
	}

	sort.SliceStable(result.Kept, func(i, j int) bool {
		return result.Kept[i].PublishedAt.After(result.Kept[j].PublishedAt)
	})
	if limit > 0 && len(result.Kept) > limit {
		result.Kept = result.Kept[:limit]
	}

	return result
}

// MergeProviderResults concatenates per-provider lists in lexical provider
// order, then applies the single-batch algorithm. The earliest provider in
// that order wins ties for a shared content hash.
func (d *Deduplicator) MergeProviderResults(byProvider map[string][]domain.NormalizedArticle, limit int) Result {
	providers := make([]string, 0, len(byProvider))
	for name := range byProvider {
		providers = append(providers, name)
	}
	sort.Strings(providers)

	var merged []domain.NormalizedArticle
	for _, name := range providers {
		merged = append(merged, byProvider[name]...)
	}

	return d.Deduplicate(merged, limit)
}

func (d *Deduplicator) warn(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Warn(msg, args...)
	}
}
