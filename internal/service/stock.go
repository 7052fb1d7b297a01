package service

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kiwari-pos/tabs/internal/database"
	"github.com/kiwari-pos/tabs/internal/enum"
)

// CommitMode selects how StockLedger.Commit treats a product it cannot cover.
type CommitMode int

const (
	// CommitStrict verifies every product before applying any of them.
	CommitStrict CommitMode = iota
	// CommitBestEffort applies each product independently and reports the
	// ones it could not cover. Used once payment has already been captured.
	CommitBestEffort
)

func (m CommitMode) String() string {
	if m == CommitBestEffort {
		return "best_effort"
	}
	return "strict"
}

// Movement is one applied change to a product's on-hand quantity.
type Movement struct {
	ProductID   uuid.UUID
	Delta       int32
	Before      int32
	After       int32
	Reason      string
	ReferenceID uuid.UUID
	At          time.Time
}

// Shortfall is a product a best-effort commit could not cover.
type Shortfall struct {
	ProductID uuid.UUID `json:"product_id"`
	Requested int32     `json:"requested"`
	Available int32     `json:"available"`
}

type CommitResult struct {
	Movements  []Movement
	Shortfalls []Shortfall
}

// Availability is the cashier-facing view of a product's stock.
type Availability struct {
	ProductID uuid.UUID `json:"product_id"`
	Tracked   bool      `json:"tracked"`
	OnHand    int32     `json:"on_hand"`
	Reserved  int32     `json:"reserved"`
	Available int32     `json:"available"`
}

// StockLedger owns on-hand quantities. Products without a stock entry are
// not stock-tracked and are skipped by Commit and Return.
type StockLedger struct {
	pool     TxBeginner
	newStore NewStore
	audit    MovementStore
	now      func() time.Time
}

// NewStockLedger creates a ledger. audit receives movement records after
// the business transaction has committed.
func NewStockLedger(pool TxBeginner, newStore NewStore, audit MovementStore) *StockLedger {
	return &StockLedger{pool: pool, newStore: newStore, audit: audit, now: time.Now}
}

// Available returns on-hand minus the reservations the caller already holds
// in its draft. It never mutates stock.
func (l *StockLedger) Available(ctx context.Context, store StockStore, productID uuid.UUID, reserved int32) (Availability, error) {
	entry, err := store.GetStockEntry(ctx, productID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Availability{ProductID: productID, Reserved: reserved}, nil
		}
		return Availability{}, errors.Wrap(err, "get stock entry")
	}
	return Availability{
		ProductID: productID,
		Tracked:   true,
		OnHand:    entry.QuantityOnHand,
		Reserved:  reserved,
		Available: entry.QuantityOnHand - reserved,
	}, nil
}

// AvailableForDraft computes availability of productID given the quantities
// already sitting in a draft order's items.
func (l *StockLedger) AvailableForDraft(ctx context.Context, store StockStore, productID uuid.UUID, items []database.OrderItem) (Availability, error) {
	var reserved int32
	for _, it := range items {
		if it.ProductID == productID {
			reserved += it.Quantity
		}
	}
	return l.Available(ctx, store, productID, reserved)
}

// Commit decreases on-hand for every product in quantities. Rows are locked
// in product_id order. In strict mode the first product that cannot be
// covered fails the whole call with *InsufficientStockError and nothing is
// written.
func (l *StockLedger) Commit(ctx context.Context, store StockStore, quantities map[uuid.UUID]int32, mode CommitMode, reason string, ref uuid.UUID) (CommitResult, error) {
	ids, err := sortedProducts(quantities)
	if err != nil {
		return CommitResult{}, err
	}
	if len(ids) == 0 {
		return CommitResult{}, nil
	}

	entries, err := lockEntries(ctx, store, ids)
	if err != nil {
		return CommitResult{}, err
	}

	var result CommitResult
	if mode == CommitStrict {
		for _, id := range ids {
			entry, ok := entries[id]
			if !ok {
				continue
			}
			if quantities[id] > entry.QuantityOnHand {
				return CommitResult{}, &InsufficientStockError{
					ProductID: id,
					Requested: quantities[id],
					Available: entry.QuantityOnHand,
				}
			}
		}
	}

	at := l.now()
	for _, id := range ids {
		entry, ok := entries[id]
		if !ok {
			continue
		}
		want := quantities[id]
		if want > entry.QuantityOnHand {
			result.Shortfalls = append(result.Shortfalls, Shortfall{
				ProductID: id,
				Requested: want,
				Available: entry.QuantityOnHand,
			})
			continue
		}
		mv, err := l.apply(ctx, store, entry, -want, reason, ref, at)
		if err != nil {
			return CommitResult{}, err
		}
		result.Movements = append(result.Movements, mv)
	}

	for _, sf := range result.Shortfalls {
		log.Printf("WARN: stock shortfall product=%s requested=%d available=%d ref=%s", sf.ProductID, sf.Requested, sf.Available, ref)
		result.Movements = append(result.Movements, Movement{
			ProductID:   sf.ProductID,
			Before:      sf.Available,
			After:       sf.Available,
			Reason:      enum.MovementReasonShortfall,
			ReferenceID: ref,
			At:          at,
		})
	}
	return result, nil
}

// Return increases on-hand for every product in quantities. It never fails
// for non-negative input apart from store errors.
func (l *StockLedger) Return(ctx context.Context, store StockStore, quantities map[uuid.UUID]int32, reason string, ref uuid.UUID) ([]Movement, error) {
	ids, err := sortedProducts(quantities)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	entries, err := lockEntries(ctx, store, ids)
	if err != nil {
		return nil, err
	}

	at := l.now()
	var movements []Movement
	for _, id := range ids {
		entry, ok := entries[id]
		if !ok {
			continue
		}
		mv, err := l.apply(ctx, store, entry, quantities[id], reason, ref, at)
		if err != nil {
			return nil, err
		}
		movements = append(movements, mv)
	}
	return movements, nil
}

// Restock receives inventory for a product in its own transaction, creating
// the stock entry when the product was not tracked yet.
func (l *StockLedger) Restock(ctx context.Context, productID uuid.UUID, qty int32) (Availability, error) {
	if qty <= 0 {
		return Availability{}, ErrInvalidQuantity
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return Availability{}, errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := l.newStore(tx)

	var before int32
	entries, err := store.LockStockEntries(ctx, []uuid.UUID{productID})
	if err != nil {
		return Availability{}, errors.Wrap(err, "lock stock entry")
	}
	if len(entries) == 1 {
		before = entries[0].QuantityOnHand
	}

	entry, err := store.UpsertStockEntry(ctx, database.UpsertStockEntryParams{
		ProductID:      productID,
		QuantityOnHand: before + qty,
	})
	if err != nil {
		return Availability{}, errors.Wrap(err, "upsert stock entry")
	}

	if err := tx.Commit(ctx); err != nil {
		return Availability{}, errors.Wrap(err, "commit tx")
	}

	l.Record(ctx, []Movement{{
		ProductID: productID,
		Delta:     qty,
		Before:    before,
		After:     entry.QuantityOnHand,
		Reason:    enum.MovementReasonRestock,
		At:        l.now(),
	}})

	return Availability{
		ProductID: productID,
		Tracked:   true,
		OnHand:    entry.QuantityOnHand,
		Available: entry.QuantityOnHand,
	}, nil
}

// Record appends movements to the audit log. Failures are logged and never
// undo the quantity change they describe.
func (l *StockLedger) Record(ctx context.Context, movements []Movement) {
	if l == nil || l.audit == nil {
		return
	}
	for _, mv := range movements {
		ref := pgtype.UUID{}
		if mv.ReferenceID != uuid.Nil {
			ref = pgUUID(mv.ReferenceID)
		}
		_, err := l.audit.CreateStockMovement(ctx, database.CreateStockMovementParams{
			ProductID:   mv.ProductID,
			Delta:       mv.Delta,
			BeforeQty:   mv.Before,
			AfterQty:    mv.After,
			Reason:      mv.Reason,
			ReferenceID: ref,
			CreatedAt:   pgtype.Timestamptz{Time: mv.At, Valid: !mv.At.IsZero()},
		})
		if err != nil {
			log.Printf("WARN: record stock movement product=%s delta=%d reason=%s: %v", mv.ProductID, mv.Delta, mv.Reason, err)
		}
	}
}

func (l *StockLedger) apply(ctx context.Context, store StockStore, entry database.StockEntry, delta int32, reason string, ref uuid.UUID, at time.Time) (Movement, error) {
	after := entry.QuantityOnHand + delta
	if _, err := store.SetStockQuantity(ctx, database.SetStockQuantityParams{
		ProductID:      entry.ProductID,
		QuantityOnHand: after,
	}); err != nil {
		return Movement{}, errors.Wrapf(err, "set stock for %s", entry.ProductID)
	}
	return Movement{
		ProductID:   entry.ProductID,
		Delta:       delta,
		Before:      entry.QuantityOnHand,
		After:       after,
		Reason:      reason,
		ReferenceID: ref,
		At:          at,
	}, nil
}

func sortedProducts(quantities map[uuid.UUID]int32) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(quantities))
	for id, qty := range quantities {
		if qty < 0 {
			return nil, errors.Wrapf(ErrInvalidQuantity, "product %s", id)
		}
		if qty == 0 {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

func lockEntries(ctx context.Context, store StockStore, ids []uuid.UUID) (map[uuid.UUID]database.StockEntry, error) {
	rows, err := store.LockStockEntries(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "lock stock entries")
	}
	entries := make(map[uuid.UUID]database.StockEntry, len(rows))
	for _, r := range rows {
		entries[r.ProductID] = r
	}
	return entries, nil
}
