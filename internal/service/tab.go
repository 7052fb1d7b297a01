package service

import (
	"context"
	"log"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kiwari-pos/tabs/internal/database"
	"github.com/kiwari-pos/tabs/internal/enum"
)

const openTabConstraint = "tabs_one_open_per_table"

// TabDetail is a tab with its table and ordering rounds.
type TabDetail struct {
	Tab    database.Tab         `json:"tab"`
	Table  database.DiningTable `json:"table"`
	Orders []database.Order     `json:"orders"`
}

// Bill is the read-only aggregate shown before closing.
type Bill struct {
	TabID  uuid.UUID        `json:"tab_id"`
	Status string           `json:"status"`
	Orders []database.Order `json:"orders"`
	Totals Totals           `json:"totals"`
}

// ClosedTab is the outcome of a successful close.
type ClosedTab struct {
	Tab        database.Tab         `json:"tab"`
	Table      database.DiningTable `json:"table"`
	Orders     []database.Order     `json:"orders"`
	Totals     Totals               `json:"totals"`
	Payment    database.Payment     `json:"payment"`
	Settlement Settlement           `json:"settlement"`
}

// TabService governs tabs: one table, one continuous visit.
type TabService struct {
	*Core
}

func NewTabService(core *Core) *TabService {
	return &TabService{Core: core}
}

// OpenTab starts a visit on an available or reserved table. Opening is
// serialized per table by the row lock and the one-open-tab index.
func (s *TabService) OpenTab(ctx context.Context, tableID, openedBy uuid.UUID) (*TabDetail, error) {
	var detail *TabDetail
	err := s.inTx(ctx, func(store Store, fx *afterCommit) error {
		table, err := store.GetTableForUpdate(ctx, tableID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrTableNotFound
			}
			return errors.Wrap(err, "lock table")
		}
		if table.CurrentTabID.Valid {
			return &TableOccupiedError{TableID: table.ID, TableCode: table.Code, TabID: uuid.UUID(table.CurrentTabID.Bytes)}
		}
		if table.Status != enum.TableStatusAvailable && table.Status != enum.TableStatusReserved {
			return errors.Wrapf(ErrTableUnavailable, "table %s is %s", table.Code, table.Status)
		}

		tab, err := store.CreateTab(ctx, database.CreateTabParams{TableID: table.ID, OpenedBy: openedBy})
		if err != nil {
			if isUniqueViolation(err, openTabConstraint) {
				return &TableOccupiedError{TableID: table.ID, TableCode: table.Code}
			}
			return errors.Wrap(err, "create tab")
		}

		table, err = store.SetTableTab(ctx, database.SetTableTabParams{
			ID:           table.ID,
			CurrentTabID: pgUUID(tab.ID),
			Status:       enum.TableStatusOccupied,
		})
		if err != nil {
			return errors.Wrap(err, "occupy table")
		}

		fx.emit(tabEvent(EventTabOpened, tab))
		detail = &TabDetail{Tab: tab, Table: table, Orders: []database.Order{}}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// ResumeTab returns the open tab of a table so another round can be added
// to the same visit.
func (s *TabService) ResumeTab(ctx context.Context, tableID uuid.UUID) (*TabDetail, error) {
	table, err := s.Reads.GetTable(ctx, tableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTableNotFound
		}
		return nil, errors.Wrap(err, "get table")
	}
	tab, err := s.Reads.GetOpenTabByTable(ctx, tableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NoActiveTabError{TableID: table.ID, TableCode: table.Code}
		}
		return nil, errors.Wrap(err, "get open tab")
	}
	orders, err := s.Reads.ListOrdersByTab(ctx, tab.ID)
	if err != nil {
		return nil, errors.Wrap(err, "list tab orders")
	}
	return &TabDetail{Tab: tab, Table: table, Orders: orders}, nil
}

// Get returns a tab with its table and orders, open or closed.
func (s *TabService) Get(ctx context.Context, tabID uuid.UUID) (*TabDetail, error) {
	tab, err := s.Reads.GetTab(ctx, tabID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTabNotFound
		}
		return nil, errors.Wrap(err, "get tab")
	}
	table, err := s.Reads.GetTable(ctx, tab.TableID)
	if err != nil {
		return nil, errors.Wrap(err, "get table")
	}
	orders, err := s.Reads.ListOrdersByTab(ctx, tab.ID)
	if err != nil {
		return nil, errors.Wrap(err, "list tab orders")
	}
	return &TabDetail{Tab: tab, Table: table, Orders: orders}, nil
}

// ListOpen returns every open tab.
func (s *TabService) ListOpen(ctx context.Context) ([]database.Tab, error) {
	tabs, err := s.Reads.ListOpenTabs(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list open tabs")
	}
	return tabs, nil
}

// AddOrder starts a new draft round on an open tab.
func (s *TabService) AddOrder(ctx context.Context, tabID, createdBy uuid.UUID) (*OrderDetail, error) {
	var detail *OrderDetail
	err := s.inTx(ctx, func(store Store, fx *afterCommit) error {
		tab, err := lockTab(ctx, store, tabID)
		if err != nil {
			return err
		}
		if tab.Status != enum.TabStatusOpen {
			return &TabClosedError{TabID: tab.ID, TableID: tab.TableID}
		}
		order, err := createOrder(ctx, store, pgUUID(tab.ID), createdBy)
		if err != nil {
			return err
		}
		detail = &OrderDetail{Order: order, Items: []database.OrderItem{}, Tickets: []TicketDetail{}}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// PreviewBill aggregates the non-voided orders of a tab. It writes nothing.
func (s *TabService) PreviewBill(ctx context.Context, tabID uuid.UUID) (*Bill, error) {
	tab, err := s.Reads.GetTab(ctx, tabID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTabNotFound
		}
		return nil, errors.Wrap(err, "get tab")
	}
	orders, err := s.Reads.ListOrdersByTab(ctx, tab.ID)
	if err != nil {
		return nil, errors.Wrap(err, "list tab orders")
	}
	return &Bill{
		TabID:  tab.ID,
		Status: tab.Status,
		Orders: orders,
		Totals: s.Pricer.SumOrders(orders),
	}, nil
}

// CloseTab settles the bill and ends the visit in one transaction: every
// order must be served, completed or voided; served orders become
// completed; the table is released. Either all of it happens or none.
func (s *TabService) CloseTab(ctx context.Context, tabID uuid.UUID, pay PaymentRequest) (*ClosedTab, error) {
	if err := pay.validate(); err != nil {
		return nil, err
	}

	var (
		result  *ClosedTab
		settled *Settlement
	)
	err := s.inTx(ctx, func(store Store, fx *afterCommit) error {
		tab, err := lockTab(ctx, store, tabID)
		if err != nil {
			return err
		}
		if tab.Status != enum.TabStatusOpen {
			return &TabClosedError{TabID: tab.ID, TableID: tab.TableID}
		}

		orders, err := store.ListOrdersByTabForUpdate(ctx, tab.ID)
		if err != nil {
			return errors.Wrap(err, "lock tab orders")
		}
		var pending []PendingOrder
		for _, o := range orders {
			if !enum.IsFinalizedOrderStatus(o.Status) {
				pending = append(pending, PendingOrder{OrderID: o.ID, OrderNumber: o.OrderNumber, Status: o.Status})
			}
		}
		if len(pending) > 0 {
			return &OrdersNotFinalizedError{TabID: tab.ID, Pending: pending}
		}

		totals := s.Pricer.SumOrders(orders)
		if !totals.Equal(tabTotals(tab)) {
			log.Printf("WARN: tab %s cached total %s differs from orders %s, using orders",
				tab.ID, numericToDecimal(tab.TotalAmount).StringFixed(2), totals.Total.StringFixed(2))
			if tab, err = s.refreshTab(ctx, store, tab.ID, fx); err != nil {
				return err
			}
		}

		settlement, err := s.settle(ctx, pay, totals.Total)
		if err != nil {
			return err
		}
		settled = &settlement

		payment, err := store.CreatePayment(ctx, paymentParams(pgUUID(tab.ID), pgtype.UUID{}, settlement, pay.ProcessedBy))
		if err != nil {
			return errors.Wrap(err, "create payment")
		}

		for i, o := range orders {
			if o.Status != enum.OrderStatusServed {
				continue
			}
			if orders[i], err = s.setStatus(ctx, store, o, enum.OrderStatusCompleted, fx); err != nil {
				return err
			}
		}

		closed, err := store.CloseTab(ctx, tab.ID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return &TabClosedError{TabID: tab.ID, TableID: tab.TableID}
			}
			return errors.Wrap(err, "close tab")
		}

		table, err := store.SetTableTab(ctx, database.SetTableTabParams{
			ID:     tab.TableID,
			Status: enum.TableStatusAvailable,
		})
		if err != nil {
			return errors.Wrap(err, "release table")
		}

		fx.emit(tabEvent(EventTabClosed, closed))
		result = &ClosedTab{
			Tab:        closed,
			Table:      table,
			Orders:     orders,
			Totals:     totals,
			Payment:    payment,
			Settlement: settlement,
		}
		return nil
	})
	if err != nil {
		logSettledButFailed(settled, "tab "+tabID.String(), err)
		return nil, err
	}
	return result, nil
}

// SetTableStatus is floor housekeeping. OCCUPIED is owned by tabs and a
// table with an open tab cannot be changed here.
func (s *TabService) SetTableStatus(ctx context.Context, tableID uuid.UUID, status string) (database.DiningTable, error) {
	switch status {
	case enum.TableStatusAvailable, enum.TableStatusReserved, enum.TableStatusCleaning:
	default:
		return database.DiningTable{}, ErrInvalidTableStatus
	}

	var table database.DiningTable
	err := s.inTx(ctx, func(store Store, fx *afterCommit) error {
		cur, err := store.GetTableForUpdate(ctx, tableID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrTableNotFound
			}
			return errors.Wrap(err, "lock table")
		}
		if cur.CurrentTabID.Valid {
			return &TableOccupiedError{TableID: cur.ID, TableCode: cur.Code, TabID: uuid.UUID(cur.CurrentTabID.Bytes)}
		}
		table, err = store.UpdateTableStatus(ctx, database.UpdateTableStatusParams{ID: cur.ID, Status: status})
		if err != nil {
			return errors.Wrap(err, "update table status")
		}
		return nil
	})
	return table, err
}

func lockTab(ctx context.Context, store TabStore, id uuid.UUID) (database.Tab, error) {
	tab, err := store.GetTabForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Tab{}, ErrTabNotFound
		}
		return database.Tab{}, errors.Wrap(err, "lock tab")
	}
	return tab, nil
}
