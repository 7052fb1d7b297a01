package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kiwari-pos/tabs/internal/database"
	"github.com/kiwari-pos/tabs/internal/enum"
	"github.com/shopspring/decimal"
)

// --- Transactional in-memory store ---

type memState struct {
	tables    []database.DiningTable
	tabs      []database.Tab
	orders    []database.Order
	items     []database.OrderItem
	tickets   []database.PreparationTicket
	products  []database.Product
	stock     []database.StockEntry
	movements []database.StockMovement
	payments  []database.Payment
	orderSeq  int32
}

func (s memState) clone() memState {
	return memState{
		tables:    append([]database.DiningTable(nil), s.tables...),
		tabs:      append([]database.Tab(nil), s.tabs...),
		orders:    append([]database.Order(nil), s.orders...),
		items:     append([]database.OrderItem(nil), s.items...),
		tickets:   append([]database.PreparationTicket(nil), s.tickets...),
		products:  append([]database.Product(nil), s.products...),
		stock:     append([]database.StockEntry(nil), s.stock...),
		movements: append([]database.StockMovement(nil), s.movements...),
		payments:  append([]database.Payment(nil), s.payments...),
		orderSeq:  s.orderSeq,
	}
}

// memStore implements Store over plain slices. Begin snapshots the state
// and an uncommitted Rollback restores it, so a failed operation leaves no
// trace, like a real transaction.
type memStore struct {
	mu sync.Mutex
	memState
	// failOn makes the named method return the given error.
	failOn map[string]error
	now    time.Time
	// trace records row locks and tab sums in call order. It lives outside
	// memState so a rollback keeps it.
	trace []string
}

func newMemStore() *memStore {
	return &memStore{
		failOn: map[string]error{},
		now:    time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC),
	}
}

func (m *memStore) fail(method string) error {
	return m.failOn[method]
}

func (m *memStore) record(kind string, id uuid.UUID) {
	m.trace = append(m.trace, kind+":"+id.String())
}

func (m *memStore) tick() time.Time {
	m.now = m.now.Add(time.Second)
	return m.now
}

// memTx implements pgx.Tx on top of memStore snapshots.
// The unused methods panic so we catch accidental calls.
type memTx struct {
	store     *memStore
	snapshot  memState
	done      bool
	commitErr error
}

func (t *memTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (t *memTx) Commit(ctx context.Context) error {
	if t.commitErr != nil {
		return t.commitErr
	}
	t.done = true
	return nil
}
func (t *memTx) Rollback(ctx context.Context) error {
	if !t.done {
		t.store.memState = t.snapshot
		t.done = true
	}
	return nil
}
func (t *memTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (t *memTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (t *memTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (t *memTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (t *memTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (t *memTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (t *memTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (t *memTx) Conn() *pgx.Conn { panic("not implemented") }

// memPool implements TxBeginner.
type memPool struct {
	store     *memStore
	beginErr  error
	commitErr error
}

func (p *memPool) Begin(ctx context.Context) (pgx.Tx, error) {
	if p.beginErr != nil {
		return nil, p.beginErr
	}
	return &memTx{store: p.store, snapshot: p.store.clone(), commitErr: p.commitErr}, nil
}

// --- Stock ---

func (m *memStore) GetStockEntry(ctx context.Context, productID uuid.UUID) (database.StockEntry, error) {
	for _, e := range m.stock {
		if e.ProductID == productID {
			return e, nil
		}
	}
	return database.StockEntry{}, pgx.ErrNoRows
}

func (m *memStore) LockStockEntries(ctx context.Context, productIDs []uuid.UUID) ([]database.StockEntry, error) {
	if err := m.fail("LockStockEntries"); err != nil {
		return nil, err
	}
	want := map[uuid.UUID]bool{}
	for _, id := range productIDs {
		want[id] = true
	}
	out := []database.StockEntry{}
	for _, e := range m.stock {
		if want[e.ProductID] {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID.String() < out[j].ProductID.String() })
	return out, nil
}

func (m *memStore) SetStockQuantity(ctx context.Context, arg database.SetStockQuantityParams) (database.StockEntry, error) {
	if arg.QuantityOnHand < 0 {
		return database.StockEntry{}, &pgconn.PgError{Code: "23514", ConstraintName: "stock_entries_quantity_on_hand_check"}
	}
	for i, e := range m.stock {
		if e.ProductID == arg.ProductID {
			m.stock[i].QuantityOnHand = arg.QuantityOnHand
			m.stock[i].UpdatedAt = m.tick()
			return m.stock[i], nil
		}
	}
	return database.StockEntry{}, pgx.ErrNoRows
}

func (m *memStore) UpsertStockEntry(ctx context.Context, arg database.UpsertStockEntryParams) (database.StockEntry, error) {
	for i, e := range m.stock {
		if e.ProductID == arg.ProductID {
			m.stock[i].QuantityOnHand = arg.QuantityOnHand
			return m.stock[i], nil
		}
	}
	e := database.StockEntry{ProductID: arg.ProductID, QuantityOnHand: arg.QuantityOnHand, UpdatedAt: m.tick()}
	m.stock = append(m.stock, e)
	return e, nil
}

func (m *memStore) CreateStockMovement(ctx context.Context, arg database.CreateStockMovementParams) (database.StockMovement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("CreateStockMovement"); err != nil {
		return database.StockMovement{}, err
	}
	mv := database.StockMovement{
		ID:          uuid.New(),
		ProductID:   arg.ProductID,
		Delta:       arg.Delta,
		BeforeQty:   arg.BeforeQty,
		AfterQty:    arg.AfterQty,
		Reason:      arg.Reason,
		ReferenceID: arg.ReferenceID,
		CreatedAt:   arg.CreatedAt.Time,
	}
	m.movements = append(m.movements, mv)
	return mv, nil
}

// --- Tickets ---

func (m *memStore) CreateTicket(ctx context.Context, arg database.CreateTicketParams) (database.PreparationTicket, error) {
	for _, t := range m.tickets {
		if t.OrderID == arg.OrderID && t.Destination == arg.Destination {
			return database.PreparationTicket{}, &pgconn.PgError{Code: "23505", ConstraintName: "preparation_tickets_order_id_destination_key"}
		}
	}
	now := m.tick()
	t := database.PreparationTicket{
		ID:          uuid.New(),
		OrderID:     arg.OrderID,
		Destination: arg.Destination,
		Status:      enum.TicketStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.tickets = append(m.tickets, t)
	return t, nil
}

func (m *memStore) GetTicket(ctx context.Context, id uuid.UUID) (database.PreparationTicket, error) {
	for _, t := range m.tickets {
		if t.ID == id {
			return t, nil
		}
	}
	return database.PreparationTicket{}, pgx.ErrNoRows
}

func (m *memStore) ListTicketsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.PreparationTicket, error) {
	out := []database.PreparationTicket{}
	for _, t := range m.tickets {
		if t.OrderID == orderID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) UpdateTicketStatus(ctx context.Context, arg database.UpdateTicketStatusParams) (database.PreparationTicket, error) {
	for i, t := range m.tickets {
		if t.ID == arg.ID && t.Status == arg.PrevStatus {
			m.tickets[i].Status = arg.Status
			m.tickets[i].UpdatedAt = m.tick()
			if arg.Status == enum.TicketStatusServed {
				m.tickets[i].ServedAt = pgtype.Timestamptz{Time: m.now, Valid: true}
			}
			return m.tickets[i], nil
		}
	}
	return database.PreparationTicket{}, pgx.ErrNoRows
}

func (m *memStore) TouchTicket(ctx context.Context, id uuid.UUID) (database.PreparationTicket, error) {
	for i, t := range m.tickets {
		if t.ID == id {
			m.tickets[i].UpdatedAt = m.tick()
			return m.tickets[i], nil
		}
	}
	return database.PreparationTicket{}, pgx.ErrNoRows
}

func (m *memStore) DeleteTicket(ctx context.Context, id uuid.UUID) error {
	for i, t := range m.tickets {
		if t.ID == id {
			m.tickets = append(m.tickets[:i], m.tickets[i+1:]...)
			return nil
		}
	}
	return nil
}

// --- Orders ---

func (m *memStore) GetNextOrderNumber(ctx context.Context) (int32, error) {
	m.orderSeq++
	return m.orderSeq, nil
}

func (m *memStore) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	now := m.tick()
	o := database.Order{
		ID:             uuid.New(),
		TabID:          arg.TabID,
		OrderNumber:    arg.OrderNumber,
		Status:         enum.OrderStatusDraft,
		Subtotal:       makeNumeric("0"),
		DiscountAmount: makeNumeric("0"),
		TaxAmount:      makeNumeric("0"),
		TotalAmount:    makeNumeric("0"),
		Version:        1,
		CreatedBy:      arg.CreatedBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	m.orders = append(m.orders, o)
	return o, nil
}

func (m *memStore) orderIndex(id uuid.UUID) int {
	for i, o := range m.orders {
		if o.ID == id {
			return i
		}
	}
	return -1
}

func (m *memStore) GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error) {
	if i := m.orderIndex(id); i >= 0 {
		return m.orders[i], nil
	}
	return database.Order{}, pgx.ErrNoRows
}

func (m *memStore) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error) {
	m.record("order", id)
	return m.GetOrder(ctx, id)
}

func (m *memStore) ListOrdersByTab(ctx context.Context, tabID uuid.UUID) ([]database.Order, error) {
	m.record("sum", tabID)
	return m.ordersByTab(tabID), nil
}

func (m *memStore) ordersByTab(tabID uuid.UUID) []database.Order {
	out := []database.Order{}
	for _, o := range m.orders {
		if o.TabID.Valid && uuid.UUID(o.TabID.Bytes) == tabID {
			out = append(out, o)
		}
	}
	return out
}

func (m *memStore) ListOrdersByTabForUpdate(ctx context.Context, tabID uuid.UUID) ([]database.Order, error) {
	m.record("tab-orders", tabID)
	return m.ordersByTab(tabID), nil
}

func (m *memStore) ListUnsettledOrders(ctx context.Context) ([]database.Order, error) {
	out := []database.Order{}
	for _, o := range m.orders {
		if !enum.IsTerminalOrderStatus(o.Status) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memStore) UpdateOrderTotals(ctx context.Context, arg database.UpdateOrderTotalsParams) (database.Order, error) {
	if err := m.fail("UpdateOrderTotals"); err != nil {
		return database.Order{}, err
	}
	i := m.orderIndex(arg.ID)
	if i < 0 || enum.IsTerminalOrderStatus(m.orders[i].Status) {
		return database.Order{}, pgx.ErrNoRows
	}
	o := &m.orders[i]
	o.Subtotal = arg.Subtotal
	o.DiscountAmount = arg.DiscountAmount
	o.TaxAmount = arg.TaxAmount
	o.TotalAmount = arg.TotalAmount
	o.Version++
	o.UpdatedAt = m.tick()
	return *o, nil
}

func (m *memStore) UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
	i := m.orderIndex(arg.ID)
	if i < 0 || m.orders[i].Status != arg.PrevStatus {
		return database.Order{}, pgx.ErrNoRows
	}
	o := &m.orders[i]
	o.Status = arg.Status
	now := m.tick()
	switch arg.Status {
	case enum.OrderStatusConfirmed:
		o.ConfirmedAt = pgtype.Timestamptz{Time: now, Valid: true}
	case enum.OrderStatusServed:
		o.ServedAt = pgtype.Timestamptz{Time: now, Valid: true}
	case enum.OrderStatusCompleted:
		o.CompletedAt = pgtype.Timestamptz{Time: now, Valid: true}
	}
	o.Version++
	o.UpdatedAt = now
	return *o, nil
}

func (m *memStore) VoidOrder(ctx context.Context, arg database.VoidOrderParams) (database.Order, error) {
	i := m.orderIndex(arg.ID)
	if i < 0 || enum.IsTerminalOrderStatus(m.orders[i].Status) {
		return database.Order{}, pgx.ErrNoRows
	}
	o := &m.orders[i]
	o.Status = enum.OrderStatusVoided
	o.VoidReason = pgtype.Text{String: arg.VoidReason, Valid: true}
	o.VoidedAt = pgtype.Timestamptz{Time: m.tick(), Valid: true}
	o.Version++
	return *o, nil
}

func (m *memStore) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
	out := []database.OrderItem{}
	for _, it := range m.items {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *memStore) GetOrderItem(ctx context.Context, arg database.GetOrderItemParams) (database.OrderItem, error) {
	for _, it := range m.items {
		if it.ID == arg.ID && it.OrderID == arg.OrderID {
			return it, nil
		}
	}
	return database.OrderItem{}, pgx.ErrNoRows
}

func (m *memStore) CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
	if arg.Quantity <= 0 {
		return database.OrderItem{}, &pgconn.PgError{Code: "23514"}
	}
	it := database.OrderItem{
		ID:          uuid.New(),
		OrderID:     arg.OrderID,
		ProductID:   arg.ProductID,
		ProductName: arg.ProductName,
		Quantity:    arg.Quantity,
		UnitPrice:   arg.UnitPrice,
		Subtotal:    arg.Subtotal,
		Destination: arg.Destination,
		Notes:       arg.Notes,
		CreatedAt:   m.tick(),
	}
	m.items = append(m.items, it)
	return it, nil
}

func (m *memStore) UpdateOrderItemQuantity(ctx context.Context, arg database.UpdateOrderItemQuantityParams) (database.OrderItem, error) {
	if arg.Quantity <= 0 {
		return database.OrderItem{}, &pgconn.PgError{Code: "23514"}
	}
	for i, it := range m.items {
		if it.ID == arg.ID {
			m.items[i].Quantity = arg.Quantity
			m.items[i].Subtotal = arg.Subtotal
			return m.items[i], nil
		}
	}
	return database.OrderItem{}, pgx.ErrNoRows
}

func (m *memStore) DeleteOrderItem(ctx context.Context, id uuid.UUID) error {
	for i, it := range m.items {
		if it.ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memStore) GetProductForOrder(ctx context.Context, id uuid.UUID) (database.Product, error) {
	for _, p := range m.products {
		if p.ID == id && p.Active {
			return p, nil
		}
	}
	return database.Product{}, pgx.ErrNoRows
}

// --- Tabs and tables ---

func (m *memStore) CreateTab(ctx context.Context, arg database.CreateTabParams) (database.Tab, error) {
	for _, t := range m.tabs {
		if t.TableID == arg.TableID && t.Status == enum.TabStatusOpen {
			return database.Tab{}, &pgconn.PgError{Code: "23505", ConstraintName: openTabConstraint}
		}
	}
	t := database.Tab{
		ID:             uuid.New(),
		TableID:        arg.TableID,
		Status:         enum.TabStatusOpen,
		Subtotal:       makeNumeric("0"),
		DiscountAmount: makeNumeric("0"),
		TaxAmount:      makeNumeric("0"),
		TotalAmount:    makeNumeric("0"),
		OpenedBy:       arg.OpenedBy,
		OpenedAt:       m.tick(),
	}
	m.tabs = append(m.tabs, t)
	return t, nil
}

func (m *memStore) tabIndex(id uuid.UUID) int {
	for i, t := range m.tabs {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (m *memStore) GetTab(ctx context.Context, id uuid.UUID) (database.Tab, error) {
	if i := m.tabIndex(id); i >= 0 {
		return m.tabs[i], nil
	}
	return database.Tab{}, pgx.ErrNoRows
}

func (m *memStore) GetTabForUpdate(ctx context.Context, id uuid.UUID) (database.Tab, error) {
	m.record("tab", id)
	return m.GetTab(ctx, id)
}

func (m *memStore) GetOpenTabByTable(ctx context.Context, tableID uuid.UUID) (database.Tab, error) {
	for _, t := range m.tabs {
		if t.TableID == tableID && t.Status == enum.TabStatusOpen {
			return t, nil
		}
	}
	return database.Tab{}, pgx.ErrNoRows
}

func (m *memStore) ListOpenTabs(ctx context.Context) ([]database.Tab, error) {
	out := []database.Tab{}
	for _, t := range m.tabs {
		if t.Status == enum.TabStatusOpen {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) UpdateTabTotals(ctx context.Context, arg database.UpdateTabTotalsParams) (database.Tab, error) {
	if err := m.fail("UpdateTabTotals"); err != nil {
		return database.Tab{}, err
	}
	i := m.tabIndex(arg.ID)
	if i < 0 || m.tabs[i].Status != enum.TabStatusOpen {
		return database.Tab{}, pgx.ErrNoRows
	}
	t := &m.tabs[i]
	t.Subtotal = arg.Subtotal
	t.DiscountAmount = arg.DiscountAmount
	t.TaxAmount = arg.TaxAmount
	t.TotalAmount = arg.TotalAmount
	return *t, nil
}

func (m *memStore) CloseTab(ctx context.Context, id uuid.UUID) (database.Tab, error) {
	i := m.tabIndex(id)
	if i < 0 || m.tabs[i].Status != enum.TabStatusOpen {
		return database.Tab{}, pgx.ErrNoRows
	}
	m.tabs[i].Status = enum.TabStatusClosed
	m.tabs[i].ClosedAt = pgtype.Timestamptz{Time: m.tick(), Valid: true}
	return m.tabs[i], nil
}

func (m *memStore) tableIndex(id uuid.UUID) int {
	for i, t := range m.tables {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (m *memStore) GetTable(ctx context.Context, id uuid.UUID) (database.DiningTable, error) {
	if i := m.tableIndex(id); i >= 0 {
		return m.tables[i], nil
	}
	return database.DiningTable{}, pgx.ErrNoRows
}

func (m *memStore) GetTableForUpdate(ctx context.Context, id uuid.UUID) (database.DiningTable, error) {
	return m.GetTable(ctx, id)
}

func (m *memStore) SetTableTab(ctx context.Context, arg database.SetTableTabParams) (database.DiningTable, error) {
	i := m.tableIndex(arg.ID)
	if i < 0 {
		return database.DiningTable{}, pgx.ErrNoRows
	}
	m.tables[i].CurrentTabID = arg.CurrentTabID
	m.tables[i].Status = arg.Status
	m.tables[i].UpdatedAt = m.tick()
	return m.tables[i], nil
}

func (m *memStore) UpdateTableStatus(ctx context.Context, arg database.UpdateTableStatusParams) (database.DiningTable, error) {
	i := m.tableIndex(arg.ID)
	if i < 0 || m.tables[i].CurrentTabID.Valid {
		return database.DiningTable{}, pgx.ErrNoRows
	}
	m.tables[i].Status = arg.Status
	return m.tables[i], nil
}

func (m *memStore) CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error) {
	if err := m.fail("CreatePayment"); err != nil {
		return database.Payment{}, err
	}
	p := database.Payment{
		ID:              uuid.New(),
		TabID:           arg.TabID,
		OrderID:         arg.OrderID,
		PaymentMethod:   arg.PaymentMethod,
		Amount:          arg.Amount,
		AmountReceived:  arg.AmountReceived,
		ChangeAmount:    arg.ChangeAmount,
		ReferenceNumber: arg.ReferenceNumber,
		ProcessedBy:     arg.ProcessedBy,
		ProcessedAt:     m.tick(),
	}
	m.payments = append(m.payments, p)
	return p, nil
}

func (m *memStore) ListPaymentsByTab(ctx context.Context, tabID uuid.UUID) ([]database.Payment, error) {
	out := []database.Payment{}
	for _, p := range m.payments {
		if p.TabID.Valid && uuid.UUID(p.TabID.Bytes) == tabID {
			out = append(out, p)
		}
	}
	return out, nil
}

// --- Seeding helpers ---

func (m *memStore) addTable(code string) database.DiningTable {
	t := database.DiningTable{
		ID:       uuid.New(),
		Code:     code,
		Capacity: 4,
		Status:   enum.TableStatusAvailable,
	}
	m.tables = append(m.tables, t)
	return t
}

// addProduct registers an active product. A negative stock leaves it
// untracked.
func (m *memStore) addProduct(name, price, destination string, stock int32) database.Product {
	p := database.Product{
		ID:          uuid.New(),
		Name:        name,
		Price:       makeNumeric(price),
		Destination: destination,
		Active:      true,
	}
	m.products = append(m.products, p)
	if stock >= 0 {
		m.stock = append(m.stock, database.StockEntry{ProductID: p.ID, QuantityOnHand: stock})
	}
	return p
}

func (m *memStore) onHand(productID uuid.UUID) int32 {
	e, err := m.GetStockEntry(context.Background(), productID)
	if err != nil {
		return -1
	}
	return e.QuantityOnHand
}

func (m *memStore) order(id uuid.UUID) database.Order {
	o, _ := m.GetOrder(context.Background(), id)
	return o
}

func (m *memStore) tab(id uuid.UUID) database.Tab {
	t, _ := m.GetTab(context.Background(), id)
	return t
}

func (m *memStore) table(id uuid.UUID) database.DiningTable {
	t, _ := m.GetTable(context.Background(), id)
	return t
}

// --- Notifier ---

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingNotifier) Publish(ctx context.Context, events ...Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
}

func (r *recordingNotifier) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func (r *recordingNotifier) reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// --- Test helpers ---

func makeNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(val)
	return n
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type testEnv struct {
	store    *memStore
	pool     *memPool
	notifier *recordingNotifier
	core     *Core
	orders   *OrderService
	tabs     *TabService
	cashier  uuid.UUID
}

// newTestEnv wires the services over a fresh memStore with no tax or promo.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newMemStore()
	pool := &memPool{store: store}
	notifier := &recordingNotifier{}
	newStore := func(db database.DBTX) Store { return store }
	core := &Core{
		Pool:       pool,
		NewStore:   newStore,
		Reads:      store,
		Ledger:     NewStockLedger(pool, newStore, store),
		Dispatcher: NewDispatcher(),
		Rules:      ConfigRules{},
		Payments:   NewCashDrawer(),
		Notifier:   notifier,
	}
	return &testEnv{
		store:    store,
		pool:     pool,
		notifier: notifier,
		core:     core,
		orders:   NewOrderService(core, 5),
		tabs:     NewTabService(core),
		cashier:  uuid.New(),
	}
}

func (e *testEnv) cash(amount string) PaymentRequest {
	return PaymentRequest{Method: enum.PaymentMethodCash, AmountReceived: amount, ProcessedBy: e.cashier}
}

// openTabWithOrder opens a tab on a fresh table and adds a draft round.
func (e *testEnv) openTabWithOrder(t *testing.T, code string) (*TabDetail, *OrderDetail) {
	t.Helper()
	table := e.store.addTable(code)
	tab, err := e.tabs.OpenTab(context.Background(), table.ID, e.cashier)
	if err != nil {
		t.Fatalf("open tab: %v", err)
	}
	order, err := e.tabs.AddOrder(context.Background(), tab.Tab.ID, e.cashier)
	if err != nil {
		t.Fatalf("add order: %v", err)
	}
	return tab, order
}

func (e *testEnv) add(t *testing.T, orderID uuid.UUID, p database.Product, qty int32) *AddItemResult {
	t.Helper()
	res, err := e.orders.AddItem(context.Background(), orderID, AddItemRequest{ProductID: p.ID, Quantity: qty})
	if err != nil {
		t.Fatalf("add %s: %v", p.Name, err)
	}
	return res
}

// serveAll advances every ticket of the order to SERVED.
func (e *testEnv) serveAll(t *testing.T, orderID uuid.UUID) {
	t.Helper()
	tickets, _ := e.store.ListTicketsByOrder(context.Background(), orderID)
	for _, tk := range tickets {
		if tk.Status == enum.TicketStatusServed {
			continue
		}
		if _, err := e.orders.AdvanceTicket(context.Background(), tk.ID, enum.TicketStatusServed); err != nil {
			t.Fatalf("serve ticket %s: %v", tk.Destination, err)
		}
	}
}

func itemFor(items []database.OrderItem, productID uuid.UUID) database.OrderItem {
	for _, it := range items {
		if it.ProductID == productID {
			return it
		}
	}
	return database.OrderItem{}
}
