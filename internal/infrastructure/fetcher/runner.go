package fetcher

import (
	"context"
	"log/slog"

	"NewsRadar/internal/domain"
	"NewsRadar/internal/ingest"
	"NewsRadar/internal/scanner"
)

// Site binds a provider name to its fetch strategy and endpoint.
type Site struct {
	Provider string
	Kind     string
	FeedURL  string
	Options  map[string]string
}

// Runner executes dispatched fetch tasks: it resolves the provider's scanner
// strategy, fetches, and feeds the results through ingestion. Failures are
// logged and isolated; one provider's trouble never reaches another task.
type Runner struct {
	registry *scanner.Registry
	sites    map[string]Site
	ingestor *ingest.Ingestor
	logger   *slog.Logger
}

// NewRunner wires the scanner registry with config-defined provider sites.
func NewRunner(registry *scanner.Registry, sites []Site, ingestor *ingest.Ingestor, logger *slog.Logger) *Runner {
	index := make(map[string]Site, len(sites))
	for _, site := range sites {
		index[site.Provider] = site
	}
	return &Runner{
		registry: registry,
		sites:    index,
		ingestor: ingestor,
		logger:   logger,
	}
}

// Handle runs one fetch task end to end.
func (r *Runner) Handle(ctx context.Context, task domain.FetchTask) {
	site, ok := r.sites[task.Provider]
	if !ok {
		r.warn("no site configured for provider", "provider", task.Provider, "task", task.ID)
		return
	}

	strategy, err := r.registry.Resolve(site.Kind)
	if err != nil {
		r.warn("scanner resolution failed", "provider", task.Provider, "kind", site.Kind, "error", err)
		return
	}

	items, err := strategy.Scan(ctx, scanner.Request{
		Task:    task,
		FeedURL: site.FeedURL,
		Options: site.Options,
	})
	if err != nil {
		r.warn("provider fetch failed", "provider", task.Provider, "symbol", task.Symbol, "error", err)
		return
	}
	if len(items) == 0 {
		r.debug("provider returned nothing", "provider", task.Provider, "symbol", task.Symbol)
		return
	}
	if len(items) > ingest.MaxBatchSize {
		items = items[:ingest.MaxBatchSize]
	}

	report, err := r.ingestor.Ingest(ctx, task.Provider, items, []string{task.Symbol})
	if err != nil {
		r.warn("ingestion failed", "provider", task.Provider, "symbol", task.Symbol, "error", err)
		return
	}

	r.debug("task complete", "task", task.ID, "provider", task.Provider, "symbol", task.Symbol,
		"inserted", report.Inserted, "duplicates", report.Duplicates, "shadow", task.Shadow)
}

func (r *Runner) debug(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}

func (r *Runner) warn(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}
