package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"NewsRadar/internal/configsvc"
	"NewsRadar/internal/domain"
	"NewsRadar/internal/infrastructure/storage"
	"NewsRadar/internal/ledger"
	"NewsRadar/internal/planner"
	"NewsRadar/internal/quota"
)

type fakeWeights struct {
	mu       sync.Mutex
	weights  map[string]float64
	failures int
}

func (f *fakeWeights) SymbolWeights(context.Context) (map[string]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("weights feed unreachable")
	}
	return f.weights, nil
}

type fakeArticles struct{}

func (fakeArticles) ExistsByHash(context.Context, []string) (map[string]bool, error) {
	return map[string]bool{}, nil
}
func (fakeArticles) SaveArticle(context.Context, domain.NormalizedArticle) error { return nil }
func (fakeArticles) SaveLink(context.Context, domain.ArticleSymbolLink) error    { return nil }
func (fakeArticles) LastCoverage(context.Context, []string) (map[string]time.Time, error) {
	return map[string]time.Time{}, nil
}
func (fakeArticles) TouchCoverage(context.Context, string, time.Time) error { return nil }

type fakeSettings struct {
	providers []domain.ProviderConfig
}

func (f *fakeSettings) Providers(context.Context) ([]domain.ProviderConfig, error) {
	return f.providers, nil
}
func (f *fakeSettings) Flags(context.Context) (map[string]string, error) {
	return map[string]string{}, nil
}
func (f *fakeSettings) SetProviderShadow(context.Context, domain.ProviderConfig, bool) error {
	return nil
}

type captureQueue struct {
	mu    sync.Mutex
	tasks []domain.FetchTask
	err   error
}

func (q *captureQueue) Enqueue(_ context.Context, task domain.FetchTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, task)
	return nil
}

type testHarness struct {
	dispatcher *Dispatcher
	queue      *captureQueue
	weights    *fakeWeights
	shared     *storage.MemorySharedStore
}

func newHarness(t *testing.T, providers []domain.ProviderConfig, weights map[string]float64, limits quota.LimitsFunc) *testHarness {
	t.Helper()

	if providers == nil {
		providers = []domain.ProviderConfig{
			{Name: "newsapi", Enabled: true, Shadow: true},
			{Name: "finnhub", Enabled: true},
		}
	}

	shared := storage.NewMemorySharedStore()
	settings := &fakeSettings{providers: providers}
	cfg := configsvc.New(settings, shared, providers, nil)

	feed := &fakeWeights{weights: weights}
	plan := planner.New(feed, fakeArticles{}, cfg, 30, nil)
	tracker := quota.New(shared, limits, time.UTC, nil)
	q := &captureQueue{}

	d := New(Deps{
		Planner: plan,
		Ledger:  ledger.New(shared),
		Quota:   tracker,
		Config:  cfg,
		Queue:   q,
		Shared:  shared,
	})
	d.sleep = func(time.Duration) {}

	return &testHarness{dispatcher: d, queue: q, weights: feed, shared: shared}
}

func TestRunDailyEnqueuesPlannedQueries(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, map[string]float64{"AAPL": 0.5, "MSFT": 0.2}, nil)
	date := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)

	report, err := h.dispatcher.RunDaily(context.Background(), date)
	require.NoError(t, err)
	require.Equal(t, 4, report.PlannedQueries)
	require.Equal(t, 4, report.EnqueuedTasks)
	require.Equal(t, 0, report.SkippedTasks)
	require.Len(t, h.queue.tasks, 4)

	for _, task := range h.queue.tasks {
		require.NotEmpty(t, task.ID)
		require.Equal(t, "2026-03-02", task.PlannedFor)
		if task.Provider == "newsapi" {
			require.True(t, task.Shadow)
		} else {
			require.False(t, task.Shadow)
		}
	}
}

func TestRunDailyIsIdempotentAcrossReruns(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, map[string]float64{"AAPL": 0.5}, nil)
	date := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	first, err := h.dispatcher.RunDaily(ctx, date)
	require.NoError(t, err)
	require.Equal(t, 2, first.EnqueuedTasks)

	second, err := h.dispatcher.RunDaily(ctx, date)
	require.NoError(t, err)
	require.Equal(t, 0, second.EnqueuedTasks)
	require.Equal(t, 2, second.SkippedTasks)
	require.Len(t, h.queue.tasks, 2)
}

func TestRunDailySkipsWhenQuotaDenied(t *testing.T) {
	t.Parallel()

	limits := func(string) domain.QuotaLimits {
		return domain.QuotaLimits{Daily: 1, Minute: 10}
	}
	providers := []domain.ProviderConfig{{Name: "newsapi", Enabled: true}}
	h := newHarness(t, providers, map[string]float64{"AAPL": 0.5, "MSFT": 0.5}, limits)
	date := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)

	report, err := h.dispatcher.RunDaily(context.Background(), date)
	require.NoError(t, err)
	require.Equal(t, 2, report.PlannedQueries)
	require.Equal(t, 1, report.EnqueuedTasks)
	require.Equal(t, 1, report.SkippedTasks)
}

func TestRunDailyRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, map[string]float64{"AAPL": 0.5}, nil)
	h.weights.failures = 2
	date := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)

	report, err := h.dispatcher.RunDaily(context.Background(), date)
	require.NoError(t, err)
	require.Equal(t, 2, report.EnqueuedTasks)
}

func TestRunDailySurfacesErrorAfterRetriesExhaust(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, map[string]float64{"AAPL": 0.5}, nil)
	h.weights.failures = 10
	date := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)

	_, err := h.dispatcher.RunDaily(context.Background(), date)
	require.Error(t, err)
}

func TestEnqueueFailureLeavesQueryPlanned(t *testing.T) {
	t.Parallel()

	providers := []domain.ProviderConfig{{Name: "newsapi", Enabled: true}}
	h := newHarness(t, providers, map[string]float64{"AAPL": 0.5}, nil)
	h.queue.err = errors.New("queue unavailable")
	date := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	report, err := h.dispatcher.RunDaily(ctx, date)
	require.NoError(t, err)
	require.Equal(t, 0, report.EnqueuedTasks)
	require.Equal(t, 1, report.SkippedTasks)

	// The query stays planned: a later run will not re-dispatch it.
	h.queue.err = nil
	rerun, err := h.dispatcher.RunDaily(ctx, date)
	require.NoError(t, err)
	require.Equal(t, 0, rerun.EnqueuedTasks)
}

func TestPlanningStatsAccumulate(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil, map[string]float64{"AAPL": 0.5}, nil)
	date := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	_, err := h.dispatcher.RunDaily(ctx, date)
	require.NoError(t, err)

	stats, err := h.dispatcher.PlanningStats(ctx, date)
	require.NoError(t, err)
	require.Equal(t, 2, stats.PlannedQueries)
	require.Equal(t, 2, stats.EnqueuedTasks)
}
