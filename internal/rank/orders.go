package rank

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/udisondev/mythmeta/internal/model"
	"github.com/udisondev/mythmeta/internal/store"
)

// OrderSweepInterval is how often the order maintenance sweep runs.
const OrderSweepInterval = 24 * time.Hour

// OrderMaintainer retires orders that stay below the minimum member
// count past the grace period.
type OrderMaintainer struct {
	orders store.OrderStore
	audit  store.AuditLog
	now    func() time.Time
}

// NewOrderMaintainer wires the sweep to its stores. audit may be nil.
func NewOrderMaintainer(orders store.OrderStore, audit store.AuditLog) *OrderMaintainer {
	return &OrderMaintainer{orders: orders, audit: audit, now: time.Now}
}

// SetClock overrides the time source (tests).
func (m *OrderMaintainer) SetClock(now func() time.Time) {
	m.now = now
}

// Run sweeps once at startup and then on every tick until ctx is done.
func (m *OrderMaintainer) Run(ctx context.Context) error {
	if err := m.Sweep(ctx); err != nil {
		slog.Error("order sweep", "err", err)
	}
	ticker := time.NewTicker(OrderSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := m.Sweep(ctx); err != nil {
				slog.Error("order sweep", "err", err)
			}
		}
	}
}

// Sweep walks every order: healthy rosters have their grace timestamp
// cleared, under-strength rosters start or continue the countdown, and
// orders past the grace period are marked unused.
func (m *OrderMaintainer) Sweep(ctx context.Context) error {
	now := m.now()

	var stale []*model.Order
	var shrunk []*model.Order
	var recovered []*model.Order
	err := m.orders.IterateAll(ctx, func(o *model.Order) bool {
		switch {
		case len(o.MemberIDs) >= model.OrderMinimumMembers:
			if !o.BelowMinimumSince.IsZero() {
				recovered = append(recovered, o)
			}
		case o.BelowMinimumSince.IsZero():
			shrunk = append(shrunk, o)
		case now.Sub(o.BelowMinimumSince) >= model.OrderBelowMinimumGrace:
			stale = append(stale, o)
		}
		return true
	})
	if err != nil {
		return fmt.Errorf("iterating orders: %w", err)
	}

	for _, o := range recovered {
		o.BelowMinimumSince = time.Time{}
		if err := m.orders.Update(ctx, o); err != nil {
			return fmt.Errorf("clearing grace on order %d: %w", o.ID, err)
		}
	}
	for _, o := range shrunk {
		o.BelowMinimumSince = now
		if err := m.orders.Update(ctx, o); err != nil {
			return fmt.Errorf("starting grace on order %d: %w", o.ID, err)
		}
	}
	for _, o := range stale {
		if err := m.orders.MarkUnused(ctx, o.ID); err != nil {
			return fmt.Errorf("retiring order %d: %w", o.ID, err)
		}
		slog.Info("order retired", "order", o.ID, "name", o.Name, "members", len(o.MemberIDs))
		if m.audit != nil {
			_ = m.audit.Record(ctx, store.AuditEvent{
				Kind:   "order_retired",
				Detail: fmt.Sprintf("order %d (%s) below %d members since %s", o.ID, o.Name, model.OrderMinimumMembers, o.BelowMinimumSince.Format(time.RFC3339)),
			})
		}
	}
	return nil
}
