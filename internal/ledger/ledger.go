package ledger

import (
	"context"
	"fmt"
	"time"

	"NewsRadar/internal/canonical"
	"NewsRadar/internal/domain"
	"NewsRadar/internal/ports"
)

// markerTTL keeps day-scoped markers around long enough to survive late
// re-runs without accumulating forever.
const markerTTL = 48 * time.Hour

// Ledger records which planned queries have already been dispatched for a
// given day, making planning runs safely repeatable.
type Ledger struct {
	shared ports.SharedStore
}

// New wires the shared store backing the markers.
func New(shared ports.SharedStore) *Ledger {
	return &Ledger{shared: shared}
}

// IsQueryPlanned reports whether the query was already marked for the date.
func (l *Ledger) IsQueryPlanned(ctx context.Context, date time.Time, provider, symbol, query string) (bool, error) {
	_, ok, err := l.shared.Get(ctx, key(date, provider, symbol, query))
	if err != nil {
		return false, domain.Transient("read plan marker", err)
	}
	return ok, nil
}

// MarkQueryPlanned records the query as dispatched for the date. Returns
// true when this call created the marker; a duplicate mark is a harmless
// no-op returning false, never an error.
func (l *Ledger) MarkQueryPlanned(ctx context.Context, date time.Time, provider, symbol, query string) (bool, error) {
	created, err := l.shared.SetNX(ctx, key(date, provider, symbol, query), "1", markerTTL)
	if err != nil {
		return false, domain.Transient("write plan marker", err)
	}
	return created, nil
}

// key derives the day-scoped marker from all four fields. The query is
// hashed so arbitrary query text cannot break the key format.
func key(date time.Time, provider, symbol, query string) string {
	return fmt.Sprintf("plan:%s:%s:%s:%s",
		date.Format("2006-01-02"), provider, symbol, canonical.Hash(query)[:16])
}
