package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"NewsRadar/internal/configsvc"
	"NewsRadar/internal/domain"
	"NewsRadar/internal/ledger"
	"NewsRadar/internal/planner"
	"NewsRadar/internal/ports"
	"NewsRadar/internal/quota"
)

const (
	maxAttempts = 3
	retryDelay  = 2 * time.Second
	statsTTL    = 7 * 24 * time.Hour
)

// Dispatcher turns the daily plan into fetch tasks, gated by the idempotency
// ledger and provider quotas. Dispatch intent is at-most-once: a query whose
// enqueue fails stays marked planned for the day.
type Dispatcher struct {
	planner  *planner.Planner
	ledger   *ledger.Ledger
	quota    *quota.Tracker
	config   *configsvc.Service
	queue    ports.TaskQueue
	shared   ports.SharedStore
	notifier ports.Notifier
	sleep    func(time.Duration)
	logger   *slog.Logger
}

// Deps wires all dispatcher collaborators.
type Deps struct {
	Planner  *planner.Planner
	Ledger   *ledger.Ledger
	Quota    *quota.Tracker
	Config   *configsvc.Service
	Queue    ports.TaskQueue
	Shared   ports.SharedStore
	Notifier ports.Notifier
	Logger   *slog.Logger
}

// New constructs the dispatcher.
func New(deps Deps) *Dispatcher {
	return &Dispatcher{
		planner:  deps.Planner,
		ledger:   deps.Ledger,
		quota:    deps.Quota,
		config:   deps.Config,
		queue:    deps.Queue,
		shared:   deps.Shared,
		notifier: deps.Notifier,
		sleep:    time.Sleep,
		logger:   deps.Logger,
	}
}

// RunDaily executes one planning+dispatch pass for the date, retrying the
// whole pass on transient store failures with a doubling delay. Re-running
// for the same date is safe: the ledger filters already-dispatched queries.
func (d *Dispatcher) RunDaily(ctx context.Context, date time.Time) (domain.PlanningReport, error) {
	var lastErr error
	delay := retryDelay

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		report, err := d.runOnce(ctx, date)
		if err == nil {
			d.notify(ctx, report)
			return report, nil
		}
		if !domain.IsTransient(err) {
			return domain.PlanningReport{}, err
		}

		lastErr = err
		d.warn("planning pass failed, retrying", "attempt", attempt, "error", err)
		if attempt < maxAttempts {
			d.sleep(delay)
			delay *= 2
		}
	}

	return domain.PlanningReport{}, fmt.Errorf("planning run exhausted %d attempts: %w", maxAttempts, lastErr)
}

func (d *Dispatcher) runOnce(ctx context.Context, date time.Time) (domain.PlanningReport, error) {
	queries, err := d.planner.PlanDaily(ctx, date)
	if err != nil {
		return domain.PlanningReport{}, err
	}

	snap, err := d.config.GetFlags(ctx)
	if err != nil {
		return domain.PlanningReport{}, err
	}

	day := date.Format("2006-01-02")
	report := domain.PlanningReport{Date: day, PlannedQueries: len(queries)}

	for _, q := range queries {
		planned, err := d.ledger.IsQueryPlanned(ctx, date, q.Provider, q.Symbol, q.Query)
		if err != nil {
			return domain.PlanningReport{}, err
		}
		if planned {
			report.SkippedTasks++
			continue
		}

		decision, err := d.quota.CheckAndIncrement(ctx, q.Provider)
		if err != nil {
			return domain.PlanningReport{}, err
		}
		if !decision.Allowed {
			d.debug("quota exhausted", "provider", q.Provider, "daily", decision.DailyCount, "minute", decision.MinuteCount)
			report.SkippedTasks++
			continue
		}

		created, err := d.ledger.MarkQueryPlanned(ctx, date, q.Provider, q.Symbol, q.Query)
		if err != nil {
			return domain.PlanningReport{}, err
		}
		if !created {
			// A concurrent worker got here first.
			report.SkippedTasks++
			continue
		}

		task := domain.FetchTask{
			ID:         uuid.NewString(),
			Provider:   q.Provider,
			Symbol:     q.Symbol,
			Query:      q.Query,
			Shadow:     snap.IsShadow(q.Provider),
			PlannedFor: day,
		}
		if err := d.queue.Enqueue(ctx, task); err != nil {
			// The marker stands: re-dispatch requires an explicit re-run
			// with a cleared ledger, not an automatic retry here. One
			// provider's failure must not block the rest of the plan.
			d.warn("enqueue failed, query stays planned", "provider", q.Provider, "symbol", q.Symbol, "error", err)
			report.SkippedTasks++
			continue
		}
		report.EnqueuedTasks++
	}

	if err := d.recordStats(ctx, report); err != nil {
		d.warn("recording planning stats failed", "error", err)
	}

	return report, nil
}

// PlanningStats returns the accumulated dispatch counters for a date.
func (d *Dispatcher) PlanningStats(ctx context.Context, date time.Time) (domain.PlanningReport, error) {
	day := date.Format("2006-01-02")
	report := domain.PlanningReport{Date: day}

	for _, item := range []struct {
		suffix string
		target *int
	}{
		{"planned", &report.PlannedQueries},
		{"enqueued", &report.EnqueuedTasks},
		{"skipped", &report.SkippedTasks},
	} {
		raw, ok, err := d.shared.Get(ctx, statsKey(day, item.suffix))
		if err != nil {
			return domain.PlanningReport{}, domain.Transient("read planning stats", err)
		}
		if ok {
			value, _ := strconv.Atoi(raw)
			*item.target = value
		}
	}

	return report, nil
}

func (d *Dispatcher) recordStats(ctx context.Context, report domain.PlanningReport) error {
	for _, item := range []struct {
		suffix string
		value  int
	}{
		{"planned", report.PlannedQueries},
		{"enqueued", report.EnqueuedTasks},
		{"skipped", report.SkippedTasks},
	} {
		if item.value == 0 {
			continue
		}
		if _, err := d.shared.Add(ctx, statsKey(report.Date, item.suffix), int64(item.value), statsTTL); err != nil {
			return err
		}
	}
	return nil
}

func statsKey(day, suffix string) string {
	return fmt.Sprintf("plan:stats:%s:%s", day, suffix)
}

func (d *Dispatcher) notify(ctx context.Context, report domain.PlanningReport) {
	if d.notifier == nil {
		return
	}
	digest := fmt.Sprintf("News plan %s: %d queries, %d enqueued, %d skipped",
		report.Date, report.PlannedQueries, report.EnqueuedTasks, report.SkippedTasks)
	if err := d.notifier.PublishDigest(ctx, digest); err != nil {
		d.warn("digest notification failed", "error", err)
	}
}

func (d *Dispatcher) debug(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Debug(msg, args...)
	}
}

func (d *Dispatcher) warn(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Warn(msg, args...)
	}
}
