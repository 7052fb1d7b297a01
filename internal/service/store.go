package service

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kiwari-pos/tabs/internal/database"
	"github.com/shopspring/decimal"
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// StockStore defines the DB methods the stock ledger needs.
// Satisfied by *database.Queries (and its WithTx variant).
type StockStore interface {
	GetStockEntry(ctx context.Context, productID uuid.UUID) (database.StockEntry, error)
	LockStockEntries(ctx context.Context, productIDs []uuid.UUID) ([]database.StockEntry, error)
	SetStockQuantity(ctx context.Context, arg database.SetStockQuantityParams) (database.StockEntry, error)
	UpsertStockEntry(ctx context.Context, arg database.UpsertStockEntryParams) (database.StockEntry, error)
}

// MovementStore appends to the stock movement audit log.
type MovementStore interface {
	CreateStockMovement(ctx context.Context, arg database.CreateStockMovementParams) (database.StockMovement, error)
}

// TicketStore defines the DB methods the dispatcher needs.
type TicketStore interface {
	CreateTicket(ctx context.Context, arg database.CreateTicketParams) (database.PreparationTicket, error)
	GetTicket(ctx context.Context, id uuid.UUID) (database.PreparationTicket, error)
	ListTicketsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.PreparationTicket, error)
	UpdateTicketStatus(ctx context.Context, arg database.UpdateTicketStatusParams) (database.PreparationTicket, error)
	TouchTicket(ctx context.Context, id uuid.UUID) (database.PreparationTicket, error)
	DeleteTicket(ctx context.Context, id uuid.UUID) error
}

// OrderStore defines the DB methods needed to build and mutate orders.
type OrderStore interface {
	GetNextOrderNumber(ctx context.Context) (int32, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrdersByTab(ctx context.Context, tabID uuid.UUID) ([]database.Order, error)
	ListOrdersByTabForUpdate(ctx context.Context, tabID uuid.UUID) ([]database.Order, error)
	ListUnsettledOrders(ctx context.Context) ([]database.Order, error)
	UpdateOrderTotals(ctx context.Context, arg database.UpdateOrderTotalsParams) (database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	VoidOrder(ctx context.Context, arg database.VoidOrderParams) (database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	GetOrderItem(ctx context.Context, arg database.GetOrderItemParams) (database.OrderItem, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	UpdateOrderItemQuantity(ctx context.Context, arg database.UpdateOrderItemQuantityParams) (database.OrderItem, error)
	DeleteOrderItem(ctx context.Context, id uuid.UUID) error
	GetProductForOrder(ctx context.Context, id uuid.UUID) (database.Product, error)
}

// TabStore defines the DB methods for tabs, tables and their payments.
type TabStore interface {
	CreateTab(ctx context.Context, arg database.CreateTabParams) (database.Tab, error)
	GetTab(ctx context.Context, id uuid.UUID) (database.Tab, error)
	GetTabForUpdate(ctx context.Context, id uuid.UUID) (database.Tab, error)
	GetOpenTabByTable(ctx context.Context, tableID uuid.UUID) (database.Tab, error)
	ListOpenTabs(ctx context.Context) ([]database.Tab, error)
	UpdateTabTotals(ctx context.Context, arg database.UpdateTabTotalsParams) (database.Tab, error)
	CloseTab(ctx context.Context, id uuid.UUID) (database.Tab, error)
	GetTable(ctx context.Context, id uuid.UUID) (database.DiningTable, error)
	GetTableForUpdate(ctx context.Context, id uuid.UUID) (database.DiningTable, error)
	SetTableTab(ctx context.Context, arg database.SetTableTabParams) (database.DiningTable, error)
	UpdateTableStatus(ctx context.Context, arg database.UpdateTableStatusParams) (database.DiningTable, error)
	CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error)
	ListPaymentsByTab(ctx context.Context, tabID uuid.UUID) ([]database.Payment, error)
}

// Store is everything the tab engine reads and writes.
// Satisfied by *database.Queries (and its WithTx variant).
type Store interface {
	StockStore
	MovementStore
	TicketStore
	OrderStore
	TabStore
}

// NewStore creates a Store from a DBTX (pool or tx).
type NewStore func(db database.DBTX) Store

// Core bundles the collaborators shared by the order and tab services.
type Core struct {
	Pool     TxBeginner
	NewStore NewStore
	// Reads is a pool-backed store for lookups outside a transaction.
	Reads      Store
	Ledger     *StockLedger
	Dispatcher *Dispatcher
	Pricer     PriceRecalculator
	Rules      RuleProvider
	Payments   PaymentGateway
	Notifier   Notifier

	PaymentTimeout time.Duration
}

// DB is a connection pool that can also start transactions.
// Satisfied by *pgxpool.Pool.
type DB interface {
	TxBeginner
	database.DBTX
}

// NewCore wires the services to PostgreSQL through the sqlc-shaped query
// layer. Payments are settled at the counter by a CashDrawer.
func NewCore(db DB, rules RuleProvider, notifier Notifier, paymentTimeout time.Duration) *Core {
	queries := database.New(db)
	newStore := func(d database.DBTX) Store { return database.New(d) }
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Core{
		Pool:           db,
		NewStore:       newStore,
		Reads:          queries,
		Ledger:         NewStockLedger(db, newStore, queries),
		Dispatcher:     NewDispatcher(),
		Rules:          rules,
		Payments:       NewCashDrawer(),
		Notifier:       notifier,
		PaymentTimeout: paymentTimeout,
	}
}

// afterCommit collects the side effects that must only happen once the
// business transaction is durable.
type afterCommit struct {
	movements []Movement
	events    []Event
}

func (a *afterCommit) emit(events ...Event) {
	a.events = append(a.events, events...)
}

// inTx runs fn inside a transaction. Stock movements and events collected by
// fn are flushed only after a successful commit.
func (c *Core) inTx(ctx context.Context, fn func(store Store, fx *afterCommit) error) error {
	tx, err := c.Pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	fx := &afterCommit{}
	if err := fn(c.NewStore(tx), fx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}

	c.Ledger.Record(ctx, fx.movements)
	if c.Notifier != nil && len(fx.events) > 0 {
		c.Notifier.Publish(ctx, fx.events...)
	}
	return nil
}

// isUniqueViolation checks for pgconn error code 23505 on the given constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == constraint
	}
	return false
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

func optionalText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
