package domain

import "time"

// PlannedQuery is one (provider, symbol) fetch decision produced by the
// planner. It is ephemeral: every planning run builds a fresh list.
type PlannedQuery struct {
	Provider string
	Symbol   string
	Query    string
	Priority float64
}

// FetchTask is the work unit handed to the task queue for one accepted query.
type FetchTask struct {
	ID         string
	Provider   string
	Symbol     string
	Query      string
	Shadow     bool
	PlannedFor string
}

// PlanningReport is returned by a dispatch run.
type PlanningReport struct {
	Date           string
	PlannedQueries int
	EnqueuedTasks  int
	SkippedTasks   int
}

// QuotaDecision is the outcome of one check-and-increment call.
type QuotaDecision struct {
	Allowed     bool
	DailyCount  int64
	MinuteCount int64
}

// QuotaState is the read-only view of a provider's counters.
type QuotaState struct {
	Provider    string
	DailyCount  int64
	MinuteCount int64
	WindowStart time.Time
}

// QuotaLimits caps a provider's call volume per window.
type QuotaLimits struct {
	Daily  int64
	Minute int64
}

// ProviderConfig describes one news provider's durable settings.
// Shadow providers are fetched but excluded from live downstream aggregation.
type ProviderConfig struct {
	Name        string
	Enabled     bool
	Shadow      bool
	Priority    int
	DailyLimit  int64
	MinuteLimit int64
}

// ConfigSnapshot is an immutable view of effective flags and provider state.
// Holders never mutate it; the config service replaces it wholesale.
type ConfigSnapshot struct {
	Flags           map[string]string
	Providers       []ProviderConfig
	ShadowProviders map[string]struct{}
	Version         int64
}

// IsShadow reports whether a provider is currently in shadow mode.
func (s ConfigSnapshot) IsShadow(provider string) bool {
	_, ok := s.ShadowProviders[provider]
	return ok
}
