package service

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kiwari-pos/tabs/internal/database"
)

// recompute rewrites the order's totals from its current items, then the
// owning tab's aggregate, inside the caller's transaction. Totals are never
// written anywhere else.
func (c *Core) recompute(ctx context.Context, store Store, order database.Order, items []database.OrderItem, fx *afterCommit) (database.Order, error) {
	rules, err := c.Rules.RulesAt(ctx, order.CreatedAt)
	if err != nil {
		return order, errors.Wrap(err, "load pricing rules")
	}
	t := c.Pricer.Recompute(LineItems(items), rules)

	updated, err := store.UpdateOrderTotals(ctx, database.UpdateOrderTotalsParams{
		ID:             order.ID,
		Subtotal:       decimalToNumeric(t.Subtotal),
		DiscountAmount: decimalToNumeric(t.Discount),
		TaxAmount:      decimalToNumeric(t.Tax),
		TotalAmount:    decimalToNumeric(t.Total),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return order, &TransitionError{Entity: "order", ID: order.ID, From: order.Status, Action: "reprice"}
		}
		return order, errors.Wrap(err, "update order totals")
	}

	if updated.TabID.Valid {
		if _, err := c.refreshTab(ctx, store, uuid.UUID(updated.TabID.Bytes), fx); err != nil {
			return order, err
		}
	}
	return updated, nil
}

// refreshTab sets the tab's cached totals to the sum of its non-voided
// orders. The tab row is locked before the orders are read; re-locking a
// tab the caller already holds is a no-op.
func (c *Core) refreshTab(ctx context.Context, store Store, tabID uuid.UUID, fx *afterCommit) (database.Tab, error) {
	if _, err := lockTab(ctx, store, tabID); err != nil {
		return database.Tab{}, err
	}
	orders, err := store.ListOrdersByTab(ctx, tabID)
	if err != nil {
		return database.Tab{}, errors.Wrap(err, "list tab orders")
	}
	sum := c.Pricer.SumOrders(orders)

	tab, err := store.UpdateTabTotals(ctx, database.UpdateTabTotalsParams{
		ID:             tabID,
		Subtotal:       decimalToNumeric(sum.Subtotal),
		DiscountAmount: decimalToNumeric(sum.Discount),
		TaxAmount:      decimalToNumeric(sum.Tax),
		TotalAmount:    decimalToNumeric(sum.Total),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Tab{}, &TabClosedError{TabID: tabID}
		}
		return database.Tab{}, errors.Wrap(err, "update tab totals")
	}
	fx.emit(tabEvent(EventTabTotalChanged, tab))
	return tab, nil
}
