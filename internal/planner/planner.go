package planner

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"NewsRadar/internal/configsvc"
	"NewsRadar/internal/domain"
	"NewsRadar/internal/ports"
)

// FlagNewsFetch gates the whole planning pipeline. Absent means enabled.
const FlagNewsFetch = "news_fetch_enabled"

const (
	// DefaultDroughtSaturationDays caps how long staleness keeps raising
	// priority. Past this, a symbol is simply "fully stale".
	DefaultDroughtSaturationDays = 30

	minScore = 1.0
)

// Planner computes the priority-ordered daily fetch plan from portfolio
// weights and per-symbol news drought.
type Planner struct {
	weights        ports.WeightsFeed
	articles       ports.ArticleStore
	config         *configsvc.Service
	saturationDays int
	now            func() time.Time
	logger         *slog.Logger
}

// New wires the planner's collaborators. saturationDays <= 0 selects the
// default.
func New(weights ports.WeightsFeed, articles ports.ArticleStore, config *configsvc.Service, saturationDays int, logger *slog.Logger) *Planner {
	if saturationDays <= 0 {
		saturationDays = DefaultDroughtSaturationDays
	}
	return &Planner{
		weights:        weights,
		articles:       articles,
		config:         config,
		saturationDays: saturationDays,
		now:            time.Now,
		logger:         logger,
	}
}

// WithClock overrides the time source, for tests.
func (p *Planner) WithClock(now func() time.Time) *Planner {
	p.now = now
	return p
}

// PlanDaily returns one PlannedQuery per (enabled provider, weighted symbol)
// for the given date, sorted by priority descending with symbol then
// provider as deterministic tie-breakers. An empty plan is a valid outcome,
// not an error: the caller decides whether that is a no-op.
func (p *Planner) PlanDaily(ctx context.Context, date time.Time) ([]domain.PlannedQuery, error) {
	snap, err := p.config.GetFlags(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve config: %w", err)
	}
	if !flagEnabled(snap.Flags, FlagNewsFetch) {
		p.debug("news fetch flag is off, returning empty plan")
		return nil, nil
	}

	weights, err := p.weights.SymbolWeights(ctx)
	if err != nil {
		return nil, domain.Transient("load symbol weights", err)
	}
	if len(weights) == 0 {
		return nil, nil
	}

	symbols := make([]string, 0, len(weights))
	for symbol, weight := range weights {
		if weight > 0 {
			symbols = append(symbols, symbol)
		}
	}
	sort.Strings(symbols)

	coverage, err := p.articles.LastCoverage(ctx, symbols)
	if err != nil {
		return nil, domain.Transient("load last coverage", err)
	}

	providers := enabledProviders(snap)
	if len(providers) == 0 {
		p.debug("no enabled providers, returning empty plan")
		return nil, nil
	}

	queries := make([]domain.PlannedQuery, 0, len(symbols)*len(providers))
	for _, symbol := range symbols {
		priority := p.weightScore(weights[symbol]) * p.droughtScore(coverage[symbol], date)
		for _, provider := range providers {
			queries = append(queries, domain.PlannedQuery{
				Provider: provider.Name,
				Symbol:   symbol,
				Query:    queryFor(provider.Name, symbol),
				Priority: priority,
			})
		}
	}

	sort.SliceStable(queries, func(i, j int) bool {
		if queries[i].Priority != queries[j].Priority {
			return queries[i].Priority > queries[j].Priority
		}
		if queries[i].Symbol != queries[j].Symbol {
			return queries[i].Symbol < queries[j].Symbol
		}
		return queries[i].Provider < queries[j].Provider
	})

	p.debug("daily plan built", "date", date.Format("2006-01-02"), "queries", len(queries), "symbols", len(symbols))
	return queries, nil
}

// weightScore maps aggregate position weight into [1, 2].
func (p *Planner) weightScore(weight float64) float64 {
	if weight > 1 {
		weight = 1
	}
	if weight < 0 {
		weight = 0
	}
	return minScore + weight
}

// droughtScore maps days-since-coverage into [1, 3], saturating so month-old
// staleness does not dominate indefinitely. A symbol never covered counts as
// fully stale.
func (p *Planner) droughtScore(lastCovered time.Time, date time.Time) float64 {
	days := float64(p.saturationDays)
	if !lastCovered.IsZero() {
		elapsed := date.Sub(lastCovered).Hours() / 24
		if elapsed < 0 {
			elapsed = 0
		}
		if elapsed < days {
			days = elapsed
		}
	}
	return minScore + 2*days/float64(p.saturationDays)
}

func flagEnabled(flags map[string]string, name string) bool {
	value, ok := flags[name]
	if !ok {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "false", "0", "off", "no":
		return false
	}
	return true
}

func enabledProviders(snap domain.ConfigSnapshot) []domain.ProviderConfig {
	out := make([]domain.ProviderConfig, 0, len(snap.Providers))
	for _, provider := range snap.Providers {
		if provider.Enabled {
			out = append(out, provider)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// queryFor renders the provider-specific query string for a symbol.
func queryFor(provider, symbol string) string {
	switch provider {
	case "newsapi":
		return fmt.Sprintf("%s stock", symbol)
	case "finnhub":
		return symbol
	default:
		return fmt.Sprintf("%s stock news", symbol)
	}
}

func (p *Planner) debug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}
