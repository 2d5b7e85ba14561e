package ports

import (
	"context"
	"time"

	"NewsRadar/internal/domain"
)

// ArticleStore persists normalized articles and their symbol links.
type ArticleStore interface {
	ExistsByHash(ctx context.Context, hashes []string) (map[string]bool, error)
	SaveArticle(ctx context.Context, article domain.NormalizedArticle) error
	SaveLink(ctx context.Context, link domain.ArticleSymbolLink) error
	LastCoverage(ctx context.Context, symbols []string) (map[string]time.Time, error)
	TouchCoverage(ctx context.Context, symbol string, at time.Time) error
}

// SettingsStore holds durable provider configuration and feature flags.
type SettingsStore interface {
	Providers(ctx context.Context) ([]domain.ProviderConfig, error)
	Flags(ctx context.Context) (map[string]string, error)
	// SetProviderShadow updates exactly one provider row, creating it with
	// the given defaults when absent. Concurrent updates for different
	// providers must not overwrite each other.
	SetProviderShadow(ctx context.Context, defaults domain.ProviderConfig, shadow bool) error
}

// WindowCount is the result of a windowed atomic counter bump.
type WindowCount struct {
	Count       int64
	WindowStart time.Time
	Allowed     bool
}

// SharedStore is a process-external key/value store used for all
// cross-worker coordination: quota counters, idempotency markers, the config
// version token, and planning stats. Every mutation is atomic with respect
// to concurrent callers in other processes.
type SharedStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetNX stores value only when key is absent; returns true when stored.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// Add bumps a numeric key by delta and returns the new value.
	Add(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)
	// AddWithLimit bumps a numeric key by one unless it already reached
	// limit. Returns the resulting count and whether the bump happened.
	AddWithLimit(ctx context.Context, key string, limit int64, ttl time.Duration) (int64, bool, error)
	// WindowAdd bumps a windowed counter, restarting the window when it is
	// older than window. The window starts at first use, not wall-aligned.
	// A limit <= 0 makes the call a read-only peek at the current window.
	WindowAdd(ctx context.Context, key string, limit int64, window time.Duration) (WindowCount, error)
}

// TaskQueue accepts fetch work units for asynchronous execution.
type TaskQueue interface {
	Enqueue(ctx context.Context, task domain.FetchTask) error
}

// WeightsFeed exposes the aggregate portfolio as symbol weights. External
// collaborator: the core only reads it.
type WeightsFeed interface {
	SymbolWeights(ctx context.Context) (map[string]float64, error)
}

// Notifier delivers planning digests to an out-of-band channel.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when planning runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
