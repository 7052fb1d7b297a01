package service

import (
	"context"
	"log"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/kiwari-pos/tabs/internal/enum"
	"github.com/shopspring/decimal"
)

const (
	DriftOrder = "order"
	DriftTab   = "tab"
)

// Drift is a cached total that no longer matches its source of truth.
type Drift struct {
	Kind     string          `json:"kind"`
	ID       uuid.UUID       `json:"id"`
	Label    string          `json:"label"`
	Stored   decimal.Decimal `json:"stored"`
	Computed decimal.Decimal `json:"computed"`
}

// Reconciler finds and repairs totals left inconsistent by a
// DataIntegrityError or a manual edit.
type Reconciler struct {
	core *Core
}

func NewReconciler(core *Core) *Reconciler {
	return &Reconciler{core: core}
}

// Scan compares every unsettled order against a fresh recompute and every
// open tab against the sum of its orders.
func (r *Reconciler) Scan(ctx context.Context) ([]Drift, error) {
	store := r.core.Reads
	var drifts []Drift

	orders, err := store.ListUnsettledOrders(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list unsettled orders")
	}
	for _, o := range orders {
		items, err := store.ListOrderItemsByOrder(ctx, o.ID)
		if err != nil {
			return nil, errors.Wrapf(err, "list items of %s", o.OrderNumber)
		}
		rules, err := r.core.Rules.RulesAt(ctx, o.CreatedAt)
		if err != nil {
			return nil, errors.Wrap(err, "load pricing rules")
		}
		fresh := r.core.Pricer.Recompute(LineItems(items), rules)
		if stored := orderTotals(o); !fresh.Equal(stored) {
			drifts = append(drifts, Drift{Kind: DriftOrder, ID: o.ID, Label: o.OrderNumber, Stored: stored.Total, Computed: fresh.Total})
		}
	}

	tabs, err := store.ListOpenTabs(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list open tabs")
	}
	for _, t := range tabs {
		tabOrders, err := store.ListOrdersByTab(ctx, t.ID)
		if err != nil {
			return nil, errors.Wrapf(err, "list orders of tab %s", t.ID)
		}
		sum := r.core.Pricer.SumOrders(tabOrders)
		if stored := tabTotals(t); !sum.Equal(stored) {
			drifts = append(drifts, Drift{Kind: DriftTab, ID: t.ID, Label: t.TableID.String(), Stored: stored.Total, Computed: sum.Total})
		}
	}
	return drifts, nil
}

// Fix rewrites each drifted total under the same locks the order and tab
// services take, and returns what was repaired.
func (r *Reconciler) Fix(ctx context.Context) ([]Drift, error) {
	drifts, err := r.Scan(ctx)
	if err != nil {
		return nil, err
	}

	var fixed []Drift
	for _, d := range drifts {
		err := r.core.inTx(ctx, func(store Store, fx *afterCommit) error {
			switch d.Kind {
			case DriftOrder:
				order, err := lockForMutation(ctx, store, d.ID)
				if err != nil {
					return err
				}
				if enum.IsTerminalOrderStatus(order.Status) {
					return nil
				}
				items, err := store.ListOrderItemsByOrder(ctx, order.ID)
				if err != nil {
					return errors.Wrap(err, "list order items")
				}
				_, err = r.core.recompute(ctx, store, order, items, fx)
				return err
			case DriftTab:
				tab, err := lockTab(ctx, store, d.ID)
				if err != nil {
					return err
				}
				if tab.Status != enum.TabStatusOpen {
					return nil
				}
				_, err = r.core.refreshTab(ctx, store, tab.ID, fx)
				return err
			}
			return nil
		})
		if err != nil {
			log.Printf("ERROR: reconcile %s %s: %v", d.Kind, d.Label, err)
			continue
		}
		fixed = append(fixed, d)
	}
	return fixed, nil
}
