package quota

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"NewsRadar/internal/domain"
	"NewsRadar/internal/ports"
)

const (
	DefaultDailyLimit  = 100
	DefaultMinuteLimit = 10

	dailyKeyTTL  = 48 * time.Hour
	minuteWindow = 60 * time.Second
)

// LimitsFunc resolves per-provider limits. Unknown providers never fail:
// they get the defaults.
type LimitsFunc func(provider string) domain.QuotaLimits

// Tracker enforces per-provider daily and minute call quotas on top of the
// shared store, so the check is atomic across processes.
type Tracker struct {
	shared ports.SharedStore
	limits LimitsFunc
	now    func() time.Time
	loc    *time.Location
	logger *slog.Logger
}

// New builds a tracker. limits may be nil to use defaults everywhere; loc
// defines the calendar used for daily resets.
func New(shared ports.SharedStore, limits LimitsFunc, loc *time.Location, logger *slog.Logger) *Tracker {
	if loc == nil {
		loc = time.UTC
	}
	return &Tracker{
		shared: shared,
		limits: limits,
		now:    time.Now,
		loc:    loc,
		logger: logger,
	}
}

// WithClock overrides the time source, for tests.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// CheckAndIncrement admits one call for provider if both windows have room,
// bumping both counters; otherwise it denies and leaves both untouched.
func (t *Tracker) CheckAndIncrement(ctx context.Context, provider string) (domain.QuotaDecision, error) {
	limits := t.resolveLimits(provider)
	dailyKey := t.dailyKey(provider)

	daily, allowed, err := t.shared.AddWithLimit(ctx, dailyKey, limits.Daily, dailyKeyTTL)
	if err != nil {
		return domain.QuotaDecision{}, domain.Transient("quota daily counter", err)
	}
	if !allowed {
		minute, _ := t.minuteCount(ctx, provider)
		return domain.QuotaDecision{Allowed: false, DailyCount: daily, MinuteCount: minute}, nil
	}

	win, err := t.shared.WindowAdd(ctx, t.minuteKey(provider), limits.Minute, minuteWindow)
	if err != nil {
		return domain.QuotaDecision{}, domain.Transient("quota minute counter", err)
	}
	if !win.Allowed {
		// Undo the daily bump so a denied call consumes nothing.
		if _, aerr := t.shared.Add(ctx, dailyKey, -1, dailyKeyTTL); aerr != nil {
			t.warn("quota rollback failed", "provider", provider, "error", aerr)
		}
		return domain.QuotaDecision{Allowed: false, DailyCount: daily - 1, MinuteCount: win.Count}, nil
	}

	return domain.QuotaDecision{Allowed: true, DailyCount: daily, MinuteCount: win.Count}, nil
}

// State returns the current counters without mutating anything.
func (t *Tracker) State(ctx context.Context, provider string) (domain.QuotaState, error) {
	state := domain.QuotaState{Provider: provider}

	raw, ok, err := t.shared.Get(ctx, t.dailyKey(provider))
	if err != nil {
		return state, domain.Transient("quota state", err)
	}
	if ok {
		state.DailyCount, _ = strconv.ParseInt(raw, 10, 64)
	}

	win, err := t.shared.WindowAdd(ctx, t.minuteKey(provider), 0, minuteWindow)
	if err != nil {
		return state, domain.Transient("quota state", err)
	}
	state.MinuteCount = win.Count
	state.WindowStart = win.WindowStart
	return state, nil
}

func (t *Tracker) resolveLimits(provider string) domain.QuotaLimits {
	limits := domain.QuotaLimits{Daily: DefaultDailyLimit, Minute: DefaultMinuteLimit}
	if t.limits != nil {
		custom := t.limits(provider)
		if custom.Daily > 0 {
			limits.Daily = custom.Daily
		}
		if custom.Minute > 0 {
			limits.Minute = custom.Minute
		}
	}
	return limits
}

func (t *Tracker) dailyKey(provider string) string {
	return fmt.Sprintf("quota:daily:%s:%s", provider, t.now().In(t.loc).Format("2006-01-02"))
}

func (t *Tracker) minuteKey(provider string) string {
	return "quota:minute:" + provider
}

func (t *Tracker) minuteCount(ctx context.Context, provider string) (int64, error) {
	win, err := t.shared.WindowAdd(ctx, t.minuteKey(provider), 0, minuteWindow)
	if err != nil {
		return 0, err
	}
	return win.Count, nil
}

func (t *Tracker) warn(msg string, args ...any) {
	if t.logger != nil {
		t.logger.Warn(msg, args...)
	}
}
