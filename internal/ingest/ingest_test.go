package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"NewsRadar/internal/domain"
)

type memArticleStore struct {
	articles map[string]domain.NormalizedArticle
	links    map[string][]domain.ArticleSymbolLink
	coverage map[string]time.Time
	linkErr  map[string]error
}

func newMemArticleStore() *memArticleStore {
	return &memArticleStore{
		articles: map[string]domain.NormalizedArticle{},
		links:    map[string][]domain.ArticleSymbolLink{},
		coverage: map[string]time.Time{},
		linkErr:  map[string]error{},
	}
}

func (m *memArticleStore) ExistsByHash(_ context.Context, hashes []string) (map[string]bool, error) {
	out := map[string]bool{}
	for _, h := range hashes {
		if _, ok := m.articles[h]; ok {
			out[h] = true
		}
	}
	return out, nil
}

func (m *memArticleStore) SaveArticle(_ context.Context, a domain.NormalizedArticle) error {
	m.articles[a.ContentHash] = a
	return nil
}

func (m *memArticleStore) SaveLink(_ context.Context, l domain.ArticleSymbolLink) error {
	if err := m.linkErr[l.Symbol]; err != nil {
		return err
	}
	m.links[l.ArticleID] = append(m.links[l.ArticleID], l)
	return nil
}

func (m *memArticleStore) LastCoverage(_ context.Context, symbols []string) (map[string]time.Time, error) {
	out := map[string]time.Time{}
	for _, s := range symbols {
		if at, ok := m.coverage[s]; ok {
			out[s] = at
		}
	}
	return out, nil
}

func (m *memArticleStore) TouchCoverage(_ context.Context, symbol string, at time.Time) error {
	m.coverage[symbol] = at
	return nil
}

func rawArticle(url string, tickers ...string) domain.RawArticle {
	return domain.RawArticle{
		URL:         url,
		Title:       "headline",
		Summary:     "body",
		Tickers:     tickers,
		PublishedAt: time.Now().UTC(),
	}
}

func TestIngestSameArticleTwice(t *testing.T) {
	t.Parallel()

	store := newMemArticleStore()
	svc := New(store, nil, nil, nil)
	ctx := context.Background()

	first, err := svc.Ingest(ctx, "newsapi", []domain.RawArticle{rawArticle("https://news.example.com/story", "AAPL")}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, first.Inserted)
	require.Equal(t, 0, first.Duplicates)

	second, err := svc.Ingest(ctx, "newsapi", []domain.RawArticle{rawArticle("https://news.example.com/story", "AAPL")}, nil)
	require.NoError(t, err)
	require.Equal(t, 0, second.Inserted)
	require.Equal(t, 1, second.Duplicates)

	require.Len(t, store.articles, 1)
	// Re-ingestion short-circuits before link creation.
	for _, links := range store.links {
		require.Len(t, links, 1)
	}
}

func TestIngestRejectsEmptyAndOversizedBatches(t *testing.T) {
	t.Parallel()

	svc := New(newMemArticleStore(), nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, "newsapi", nil, nil)
	require.True(t, domain.IsValidation(err))

	big := make([]domain.RawArticle, MaxBatchSize+1)
	for i := range big {
		big[i] = rawArticle("https://news.example.com/story")
	}
	_, err = svc.Ingest(ctx, "newsapi", big, nil)
	require.True(t, domain.IsValidation(err))
}

func TestIngestSkipsInvalidItems(t *testing.T) {
	t.Parallel()

	store := newMemArticleStore()
	svc := New(store, nil, nil, nil)

	report, err := svc.Ingest(context.Background(), "newsapi", []domain.RawArticle{
		rawArticle("https://news.example.com/good", "AAPL"),
		rawArticle("ftp://bad.example.com/file"),
		{Title: "no url"},
	}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, report.Inserted)
	require.Equal(t, 2, report.Invalid)
	require.Equal(t, 3, report.TotalProcessed)
}

func TestIngestFallsBackToDefaultSymbols(t *testing.T) {
	t.Parallel()

	store := newMemArticleStore()
	svc := New(store, nil, nil, nil)

	report, err := svc.Ingest(context.Background(), "newsapi",
		[]domain.RawArticle{rawArticle("https://news.example.com/story")},
		[]string{" aapl", "msft "})
	require.NoError(t, err)
	require.Equal(t, 1, report.Inserted)
	require.Equal(t, 2, report.Linked)

	for _, links := range store.links {
		require.Len(t, links, 2)
		for _, link := range links {
			require.Contains(t, []string{"AAPL", "MSFT"}, link.Symbol)
			require.Equal(t, 0.5, link.Relevance)
		}
	}
	require.Contains(t, store.coverage, "AAPL")
}

func TestIngestExplicitTickersGetFullRelevance(t *testing.T) {
	t.Parallel()

	store := newMemArticleStore()
	svc := New(store, nil, nil, nil)

	_, err := svc.Ingest(context.Background(), "newsapi",
		[]domain.RawArticle{rawArticle("https://news.example.com/story", "nvda")},
		[]string{"AAPL"})
	require.NoError(t, err)

	for _, links := range store.links {
		require.Len(t, links, 1)
		require.Equal(t, "NVDA", links[0].Symbol)
		require.Equal(t, 1.0, links[0].Relevance)
	}
}

func TestIngestLinkFailureDoesNotFailBatch(t *testing.T) {
	t.Parallel()

	store := newMemArticleStore()
	store.linkErr["MSFT"] = errors.New("constraint violation")
	svc := New(store, nil, nil, nil)

	report, err := svc.Ingest(context.Background(), "newsapi",
		[]domain.RawArticle{rawArticle("https://news.example.com/story", "AAPL", "MSFT")}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, report.Inserted)
	require.Equal(t, 1, report.Linked)
	require.Equal(t, 1, report.LinkFailures)
}

func TestIngestTickerlessDuplicateKeepsExplicitRelevance(t *testing.T) {
	t.Parallel()

	store := newMemArticleStore()
	svc := New(store, nil, nil, nil)

	report, err := svc.Ingest(context.Background(), "newsapi", []domain.RawArticle{
		rawArticle("https://news.example.com/story", "AAPL"),
		rawArticle("https://news.example.com/story"),
	}, []string{"SPY"})
	require.NoError(t, err)
	require.Equal(t, 1, report.Inserted)
	require.Equal(t, 1, report.Duplicates)

	for _, links := range store.links {
		require.Len(t, links, 1)
		require.Equal(t, "AAPL", links[0].Symbol)
		require.Equal(t, 1.0, links[0].Relevance)
	}
}

func TestIngestDeduplicatesWithinBatch(t *testing.T) {
	t.Parallel()

	store := newMemArticleStore()
	svc := New(store, nil, nil, nil)

	report, err := svc.Ingest(context.Background(), "newsapi", []domain.RawArticle{
		rawArticle("https://news.example.com/story?utm_source=a", "AAPL"),
		rawArticle("https://news.example.com/story", "AAPL"),
	}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, report.Inserted)
	require.Equal(t, 1, report.Duplicates)
}
