package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kiwari-pos/tabs/internal/database"
	"github.com/kiwari-pos/tabs/internal/enum"
)

const defaultMinVoidReason = 5

// MaxLineQuantity bounds a single order line.
const MaxLineQuantity = 10_000

// allowedTransitions maps current status → set of valid next statuses.
// VOIDED is handled by Void and never goes through this table.
var allowedTransitions = map[string][]string{
	enum.OrderStatusDraft:     {enum.OrderStatusConfirmed},
	enum.OrderStatusConfirmed: {enum.OrderStatusPreparing, enum.OrderStatusReady, enum.OrderStatusServed},
	enum.OrderStatusPreparing: {enum.OrderStatusReady, enum.OrderStatusServed},
	enum.OrderStatusReady:     {enum.OrderStatusServed},
	enum.OrderStatusServed:    {enum.OrderStatusCompleted},
}

func validateOrderTransition(from, to string) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// OrderDetail is an order with its lines and preparation tickets.
type OrderDetail struct {
	Order   database.Order       `json:"order"`
	Items   []database.OrderItem `json:"items"`
	Tickets []TicketDetail       `json:"tickets"`
}

// AddItemRequest is the validated input for adding a line to an order.
type AddItemRequest struct {
	ProductID uuid.UUID
	Quantity  int32
	Notes     string
}

// AddItemResult carries the stock view for draft orders so the cashier
// sees availability without it being enforced.
type AddItemResult struct {
	*OrderDetail
	Availability *Availability `json:"availability,omitempty"`
}

// SaleResult is a settled walk-in order.
type SaleResult struct {
	*OrderDetail
	Payment    database.Payment `json:"payment"`
	Settlement Settlement       `json:"settlement"`
	Shortfalls []Shortfall      `json:"shortfalls,omitempty"`
}

// OrderService governs a single order's lifecycle.
type OrderService struct {
	*Core
	minVoidReason int
}

// NewOrderService creates a new OrderService. minVoidReason is the minimum
// trimmed length of a void reason.
func NewOrderService(core *Core, minVoidReason int) *OrderService {
	if minVoidReason <= 0 {
		minVoidReason = defaultMinVoidReason
	}
	return &OrderService{Core: core, minVoidReason: minVoidReason}
}

// CreateWalkIn starts a draft order that belongs to no tab.
func (s *OrderService) CreateWalkIn(ctx context.Context, createdBy uuid.UUID) (*OrderDetail, error) {
	var detail *OrderDetail
	err := s.inTx(ctx, func(store Store, fx *afterCommit) error {
		order, err := createOrder(ctx, store, pgtype.UUID{}, createdBy)
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

// Get returns an order with its items and tickets.
func (s *OrderService) Get(ctx context.Context, orderID uuid.UUID) (*OrderDetail, error) {
	order, err := s.Reads.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, errors.Wrap(err, "get order")
	}
	return s.loadDetail(ctx, s.Reads, order, nil)
}

// AddItem adds a line to a draft or confirmed order. Lines for the same
// product, destination, note and price are merged. On a confirmed order the
// added quantity is committed strictly and routed to the destination ticket.
func (s *OrderService) AddItem(ctx context.Context, orderID uuid.UUID, req AddItemRequest) (*AddItemResult, error) {
	if req.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if req.Quantity > MaxLineQuantity {
		return nil, errors.Wrapf(ErrQuantityTooLarge, "at most %d", MaxLineQuantity)
	}
	notes := strings.TrimSpace(req.Notes)

	var result *AddItemResult
	err := s.inTx(ctx, func(store Store, fx *afterCommit) error {
		order, err := lockForMutation(ctx, store, orderID)
		if err != nil {
			return err
		}
		if order.Status != enum.OrderStatusDraft && order.Status != enum.OrderStatusConfirmed {
			return &TransitionError{Entity: "order", ID: order.ID, From: order.Status, Action: "add items to"}
		}
		if err := checkTabOpen(ctx, store, order); err != nil {
			return err
		}

		product, err := store.GetProductForOrder(ctx, req.ProductID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrProductNotFound
			}
			return errors.Wrap(err, "get product")
		}

		items, err := store.ListOrderItemsByOrder(ctx, order.ID)
		if err != nil {
			return errors.Wrap(err, "list order items")
		}

		line, merge := mergeableLine(items, product, notes)
		if merge && line.Quantity+req.Quantity > MaxLineQuantity {
			return errors.Wrapf(ErrQuantityTooLarge, "line would hold %d, at most %d",
				line.Quantity+req.Quantity, MaxLineQuantity)
		}

		confirmed := order.Status == enum.OrderStatusConfirmed
		if confirmed {
			res, err := s.Ledger.Commit(ctx, store, map[uuid.UUID]int32{product.ID: req.Quantity},
				CommitStrict, enum.MovementReasonItemAdd, order.ID)
			if err != nil {
				return withProductNames(err, map[uuid.UUID]string{product.ID: product.Name})
			}
			fx.movements = append(fx.movements, res.Movements...)
		}

		unitPrice := numericToDecimal(product.Price)
		if merge {
			qty := line.Quantity + req.Quantity
			if _, err := store.UpdateOrderItemQuantity(ctx, database.UpdateOrderItemQuantityParams{
				ID:       line.ID,
				Quantity: qty,
				Subtotal: decimalToNumeric(s.Pricer.LineSubtotal(qty, unitPrice)),
			}); err != nil {
				return errors.Wrap(err, "update order item")
			}
		} else {
			if _, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
				OrderID:     order.ID,
				ProductID:   product.ID,
				ProductName: product.Name,
				Quantity:    req.Quantity,
				UnitPrice:   product.Price,
				Subtotal:    decimalToNumeric(s.Pricer.LineSubtotal(req.Quantity, unitPrice)),
				Destination: product.Destination,
				Notes:       optionalText(notes),
			}); err != nil {
				return errors.Wrap(err, "create order item")
			}
		}

		items, err = store.ListOrderItemsByOrder(ctx, order.ID)
		if err != nil {
			return errors.Wrap(err, "list order items")
		}

		if confirmed {
			events, err := s.Dispatcher.Attach(ctx, store, order, items, product.Destination)
			if err != nil {
				return err
			}
			fx.emit(events...)
		}

		order, err = s.recompute(ctx, store, order, items, fx)
		if err != nil {
			return err
		}

		detail, err := s.loadDetail(ctx, store, order, items)
		if err != nil {
			return err
		}
		result = &AddItemResult{OrderDetail: detail}

		if !confirmed {
			avail, err := s.Ledger.AvailableForDraft(ctx, store, product.ID, items)
			if err != nil {
				return err
			}
			result.Availability = &avail
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ReduceItem lowers a line's quantity by `by`. Reducing by the full quantity
// or more removes the line.
func (s *OrderService) ReduceItem(ctx context.Context, orderID, itemID uuid.UUID, by int32) (*OrderDetail, error) {
	if by <= 0 {
		return nil, ErrInvalidQuantity
	}
	return s.changeItem(ctx, orderID, itemID, by, false)
}

// RemoveItem deletes a line and returns all of its units to stock.
func (s *OrderService) RemoveItem(ctx context.Context, orderID, itemID uuid.UUID) (*OrderDetail, error) {
	return s.changeItem(ctx, orderID, itemID, 0, true)
}

// changeItem returns stock, rewrites the line, updates the destination
// ticket and reprices the order and tab as one unit. A failure after stock
// has been returned is a *DataIntegrityError.
func (s *OrderService) changeItem(ctx context.Context, orderID, itemID uuid.UUID, by int32, removeAll bool) (*OrderDetail, error) {
	var detail *OrderDetail
	err := s.inTx(ctx, func(store Store, fx *afterCommit) error {
		order, err := lockForMutation(ctx, store, orderID)
		if err != nil {
			return err
		}
		switch order.Status {
		case enum.OrderStatusDraft, enum.OrderStatusConfirmed, enum.OrderStatusPreparing:
		default:
			return &TransitionError{Entity: "order", ID: order.ID, From: order.Status, Action: "change items of"}
		}

		item, err := store.GetOrderItem(ctx, database.GetOrderItemParams{ID: itemID, OrderID: order.ID})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrItemNotFound
			}
			return errors.Wrap(err, "get order item")
		}

		remove := removeAll || by >= item.Quantity
		returned := by
		if remove {
			returned = item.Quantity
		}

		dispatched := order.Status != enum.OrderStatusDraft
		if dispatched {
			tickets, err := store.ListTicketsByOrder(ctx, order.ID)
			if err != nil {
				return errors.Wrap(err, "list tickets")
			}
			if itemServed(item, tickets) {
				return &TransitionError{Entity: "order item", ID: item.ID, From: enum.TicketStatusServed, Action: "change"}
			}

			movements, err := s.Ledger.Return(ctx, store, map[uuid.UUID]int32{item.ProductID: returned},
				enum.MovementReasonReduce, order.ID)
			if err != nil {
				return err
			}
			fx.movements = append(fx.movements, movements...)
		}

		if remove {
			if err := store.DeleteOrderItem(ctx, item.ID); err != nil {
				return errors.Wrap(err, "delete order item")
			}
		} else {
			qty := item.Quantity - by
			if _, err := store.UpdateOrderItemQuantity(ctx, database.UpdateOrderItemQuantityParams{
				ID:       item.ID,
				Quantity: qty,
				Subtotal: decimalToNumeric(s.Pricer.LineSubtotal(qty, numericToDecimal(item.UnitPrice))),
			}); err != nil {
				return errors.Wrap(err, "update order item")
			}
		}

		op := "reduce item"
		if remove {
			op = "remove item"
		}
		fail := func(err error) error {
			if dispatched {
				log.Printf("ERROR: %s on order %s after stock return: %v", op, order.OrderNumber, err)
				return &DataIntegrityError{OrderID: order.ID, Op: op, Cause: err}
			}
			return err
		}

		remaining, err := store.ListOrderItemsByOrder(ctx, order.ID)
		if err != nil {
			return fail(errors.Wrap(err, "list order items"))
		}

		order, err = s.recompute(ctx, store, order, remaining, fx)
		if err != nil {
			return fail(err)
		}

		if dispatched {
			events, err := s.Dispatcher.Detach(ctx, store, order, remaining, item.Destination)
			if err != nil {
				return fail(err)
			}
			fx.emit(events...)

			tickets, err := store.ListTicketsByOrder(ctx, order.ID)
			if err != nil {
				return fail(errors.Wrap(err, "list tickets"))
			}
			order, err = s.syncStatus(ctx, store, order, tickets, fx)
			if err != nil {
				return fail(err)
			}
		}

		detail, err = s.loadDetail(ctx, store, order, remaining)
		return err
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// Confirm commits stock for every line, flips the order to CONFIRMED and
// dispatches its tickets. Stock is committed before the status flip; on
// insufficient stock the order stays DRAFT and nothing is written.
func (s *OrderService) Confirm(ctx context.Context, orderID uuid.UUID) (*OrderDetail, error) {
	var detail *OrderDetail
	err := s.inTx(ctx, func(store Store, fx *afterCommit) error {
		order, err := lockForMutation(ctx, store, orderID)
		if err != nil {
			return err
		}
		if order.Status != enum.OrderStatusDraft {
			return &TransitionError{Entity: "order", ID: order.ID, From: order.Status, Action: "confirm"}
		}
		if err := checkTabOpen(ctx, store, order); err != nil {
			return err
		}

		items, err := store.ListOrderItemsByOrder(ctx, order.ID)
		if err != nil {
			return errors.Wrap(err, "list order items")
		}
		if len(items) == 0 {
			return ErrEmptyOrder
		}

		quantities, names := aggregateItems(items)
		res, err := s.Ledger.Commit(ctx, store, quantities, CommitStrict, enum.MovementReasonConfirm, order.ID)
		if err != nil {
			return withProductNames(err, names)
		}
		fx.movements = append(fx.movements, res.Movements...)

		order, err = s.setStatus(ctx, store, order, enum.OrderStatusConfirmed, fx)
		if err != nil {
			return err
		}

		tickets, err := s.Dispatcher.Dispatch(ctx, store, order, items)
		if err != nil {
			return err
		}
		for _, t := range tickets {
			fx.emit(ticketEvent(EventTicketCreated, t))
		}
		if len(tickets) == 0 {
			order, err = s.setStatus(ctx, store, order, enum.OrderStatusServed, fx)
			if err != nil {
				return err
			}
		}

		order, err = s.recompute(ctx, store, order, items, fx)
		if err != nil {
			return err
		}
		detail = &OrderDetail{Order: order, Items: items, Tickets: tickets}
		if detail.Tickets == nil {
			detail.Tickets = []TicketDetail{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// AdvanceTicket moves a ticket forward and re-derives the order status as
// the least advanced status across its tickets.
func (s *OrderService) AdvanceTicket(ctx context.Context, ticketID uuid.UUID, status string) (*OrderDetail, error) {
	if enum.TicketRank(status) < 0 {
		return nil, ErrInvalidTicketStatus
	}

	var detail *OrderDetail
	err := s.inTx(ctx, func(store Store, fx *afterCommit) error {
		ticket, err := store.GetTicket(ctx, ticketID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrTicketNotFound
			}
			return errors.Wrap(err, "get ticket")
		}

		order, err := lockForMutation(ctx, store, ticket.OrderID)
		if err != nil {
			return err
		}
		switch order.Status {
		case enum.OrderStatusConfirmed, enum.OrderStatusPreparing, enum.OrderStatusReady:
		default:
			return &TransitionError{Entity: "order", ID: order.ID, From: order.Status, Action: "advance tickets of"}
		}

		// Re-read under the order lock.
		tickets, err := store.ListTicketsByOrder(ctx, order.ID)
		if err != nil {
			return errors.Wrap(err, "list tickets")
		}
		idx := -1
		for i, t := range tickets {
			if t.ID == ticketID {
				idx = i
			}
		}
		if idx < 0 {
			return ErrTicketNotFound
		}
		cur := tickets[idx]
		if enum.TicketRank(status) <= enum.TicketRank(cur.Status) {
			return &TransitionError{Entity: "ticket", ID: cur.ID, From: cur.Status, Action: "move to " + status}
		}

		updated, err := store.UpdateTicketStatus(ctx, database.UpdateTicketStatusParams{
			ID:         cur.ID,
			Status:     status,
			PrevStatus: cur.Status,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return &TransitionError{Entity: "ticket", ID: cur.ID, From: cur.Status, Action: "move to " + status}
			}
			return errors.Wrap(err, "update ticket status")
		}
		tickets[idx] = updated

		items, err := store.ListOrderItemsByOrder(ctx, order.ID)
		if err != nil {
			return errors.Wrap(err, "list order items")
		}
		fx.emit(ticketEvent(EventTicketStatusChanged, TicketDetail{
			Ticket:      updated,
			OrderNumber: order.OrderNumber,
			Items:       itemsFor(items, updated.Destination),
		}))

		order, err = s.syncStatus(ctx, store, order, tickets, fx)
		if err != nil {
			return err
		}
		detail = &OrderDetail{Order: order, Items: items, Tickets: s.Dispatcher.Details(order, tickets, items)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// Void cancels a non-terminal order. Units not yet served go back to stock
// and the owning tab is repriced without this order.
func (s *OrderService) Void(ctx context.Context, orderID uuid.UUID, reason string) (*OrderDetail, error) {
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) < s.minVoidReason {
		return nil, errors.Wrapf(ErrVoidReasonTooShort, "need at least %d characters", s.minVoidReason)
	}

	var detail *OrderDetail
	err := s.inTx(ctx, func(store Store, fx *afterCommit) error {
		order, err := lockForMutation(ctx, store, orderID)
		if err != nil {
			return err
		}
		if enum.IsTerminalOrderStatus(order.Status) {
			return &TransitionError{Entity: "order", ID: order.ID, From: order.Status, Action: "void"}
		}

		items, err := store.ListOrderItemsByOrder(ctx, order.ID)
		if err != nil {
			return errors.Wrap(err, "list order items")
		}
		tickets, err := store.ListTicketsByOrder(ctx, order.ID)
		if err != nil {
			return errors.Wrap(err, "list tickets")
		}

		returned := false
		if order.Status != enum.OrderStatusDraft {
			quantities := map[uuid.UUID]int32{}
			for _, it := range items {
				if !itemServed(it, tickets) {
					quantities[it.ProductID] += it.Quantity
				}
			}
			movements, err := s.Ledger.Return(ctx, store, quantities, enum.MovementReasonVoid, order.ID)
			if err != nil {
				return err
			}
			fx.movements = append(fx.movements, movements...)
			returned = len(movements) > 0
		}

		prev := order.Status
		voided, err := store.VoidOrder(ctx, database.VoidOrderParams{ID: order.ID, VoidReason: reason})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return &TransitionError{Entity: "order", ID: order.ID, From: prev, Action: "void"}
			}
			return errors.Wrap(err, "void order")
		}

		ev := orderStatusEvent(voided, prev)
		ev.Type = EventOrderVoided
		fx.emit(ev)
		for _, t := range s.Dispatcher.Details(voided, tickets, items) {
			if t.Ticket.Status != enum.TicketStatusServed {
				fx.emit(ticketEvent(EventTicketRemoved, t))
			}
		}

		if voided.TabID.Valid {
			if _, err := s.refreshTab(ctx, store, uuid.UUID(voided.TabID.Bytes), fx); err != nil {
				if returned {
					log.Printf("ERROR: void order %s after stock return: %v", voided.OrderNumber, err)
					return &DataIntegrityError{OrderID: voided.ID, Op: "void", Cause: err}
				}
				return err
			}
		}

		detail = &OrderDetail{Order: voided, Items: items, Tickets: s.Dispatcher.Details(voided, tickets, items)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// Complete settles a served walk-in order and marks it COMPLETED. Tab
// orders are completed by closing their tab.
func (s *OrderService) Complete(ctx context.Context, orderID uuid.UUID, pay PaymentRequest) (*SaleResult, error) {
	if err := pay.validate(); err != nil {
		return nil, err
	}

	var (
		result  *SaleResult
		settled *Settlement
	)
	err := s.inTx(ctx, func(store Store, fx *afterCommit) error {
		order, err := lockForMutation(ctx, store, orderID)
		if err != nil {
			return err
		}
		if order.TabID.Valid {
			return &TransitionError{Entity: "order", ID: order.ID, From: order.Status, Action: "complete outside its tab"}
		}
		if order.Status != enum.OrderStatusServed {
			return &TransitionError{Entity: "order", ID: order.ID, From: order.Status, Action: "complete"}
		}

		settlement, err := s.settle(ctx, pay, orderTotals(order).Total)
		if err != nil {
			return err
		}
		settled = &settlement

		payment, err := store.CreatePayment(ctx, paymentParams(pgtype.UUID{}, pgUUID(order.ID), settlement, pay.ProcessedBy))
		if err != nil {
			return errors.Wrap(err, "create payment")
		}

		order, err = s.setStatus(ctx, store, order, enum.OrderStatusCompleted, fx)
		if err != nil {
			return err
		}

		detail, err := s.loadDetail(ctx, store, order, nil)
		if err != nil {
			return err
		}
		result = &SaleResult{OrderDetail: detail, Payment: payment, Settlement: settlement}
		return nil
	})
	if err != nil {
		logSettledButFailed(settled, "order "+orderID.String(), err)
		return nil, err
	}
	return result, nil
}

// QuickSale is the counter express checkout for a draft walk-in order of
// ready-made goods: payment is captured first, then stock is committed
// best-effort because the sale can no longer be undone.
func (s *OrderService) QuickSale(ctx context.Context, orderID uuid.UUID, pay PaymentRequest) (*SaleResult, error) {
	if err := pay.validate(); err != nil {
		return nil, err
	}

	var (
		result  *SaleResult
		settled *Settlement
	)
	err := s.inTx(ctx, func(store Store, fx *afterCommit) error {
		order, err := lockForMutation(ctx, store, orderID)
		if err != nil {
			return err
		}
		if order.TabID.Valid || order.Status != enum.OrderStatusDraft {
			return &TransitionError{Entity: "order", ID: order.ID, From: order.Status, Action: "quick-sell"}
		}

		items, err := store.ListOrderItemsByOrder(ctx, order.ID)
		if err != nil {
			return errors.Wrap(err, "list order items")
		}
		if len(items) == 0 {
			return ErrEmptyOrder
		}
		for _, it := range items {
			if enum.IsStation(it.Destination) {
				return errors.Wrapf(ErrNeedsPreparation, "%s goes to %s", it.ProductName, it.Destination)
			}
		}

		order, err = s.recompute(ctx, store, order, items, fx)
		if err != nil {
			return err
		}

		settlement, err := s.settle(ctx, pay, orderTotals(order).Total)
		if err != nil {
			return err
		}
		settled = &settlement

		quantities, _ := aggregateItems(items)
		res, err := s.Ledger.Commit(ctx, store, quantities, CommitBestEffort, enum.MovementReasonSale, order.ID)
		if err != nil {
			return err
		}
		fx.movements = append(fx.movements, res.Movements...)

		payment, err := store.CreatePayment(ctx, paymentParams(pgtype.UUID{}, pgUUID(order.ID), settlement, pay.ProcessedBy))
		if err != nil {
			return errors.Wrap(err, "create payment")
		}

		for _, to := range []string{enum.OrderStatusConfirmed, enum.OrderStatusServed, enum.OrderStatusCompleted} {
			order, err = s.setStatus(ctx, store, order, to, fx)
			if err != nil {
				return err
			}
		}

		result = &SaleResult{
			OrderDetail: &OrderDetail{Order: order, Items: items, Tickets: []TicketDetail{}},
			Payment:     payment,
			Settlement:  settlement,
			Shortfalls:  res.Shortfalls,
		}
		return nil
	})
	if err != nil {
		logSettledButFailed(settled, "order "+orderID.String(), err)
		return nil, err
	}
	return result, nil
}

// setStatus applies a compare-and-set status change.
func (c *Core) setStatus(ctx context.Context, store OrderStore, order database.Order, to string, fx *afterCommit) (database.Order, error) {
	if !validateOrderTransition(order.Status, to) {
		return order, &TransitionError{Entity: "order", ID: order.ID, From: order.Status, Action: "move to " + to}
	}
	updated, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:         order.ID,
		Status:     to,
		PrevStatus: order.Status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return order, &TransitionError{Entity: "order", ID: order.ID, From: order.Status, Action: "move to " + to}
		}
		return order, errors.Wrap(err, "update order status")
	}
	fx.emit(orderStatusEvent(updated, order.Status))
	return updated, nil
}

// syncStatus moves the order forward to the status its tickets imply.
func (c *Core) syncStatus(ctx context.Context, store OrderStore, order database.Order, tickets []database.PreparationTicket, fx *afterCommit) (database.Order, error) {
	derived := deriveOrderStatus(tickets)
	if enum.OrderRank(derived) <= enum.OrderRank(order.Status) {
		return order, nil
	}
	return c.setStatus(ctx, store, order, derived, fx)
}

func (c *Core) loadDetail(ctx context.Context, store Store, order database.Order, items []database.OrderItem) (*OrderDetail, error) {
	if items == nil {
		var err error
		items, err = store.ListOrderItemsByOrder(ctx, order.ID)
		if err != nil {
			return nil, errors.Wrap(err, "list order items")
		}
	}
	tickets, err := store.ListTicketsByOrder(ctx, order.ID)
	if err != nil {
		return nil, errors.Wrap(err, "list tickets")
	}
	return &OrderDetail{Order: order, Items: items, Tickets: c.Dispatcher.Details(order, tickets, items)}, nil
}

func createOrder(ctx context.Context, store OrderStore, tabID pgtype.UUID, createdBy uuid.UUID) (database.Order, error) {
	n, err := store.GetNextOrderNumber(ctx)
	if err != nil {
		return database.Order{}, errors.Wrap(err, "get next order number")
	}
	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		TabID:       tabID,
		OrderNumber: fmt.Sprintf("ORD-%04d", n),
		CreatedBy:   createdBy,
	})
	if err != nil {
		return database.Order{}, errors.Wrap(err, "create order")
	}
	return order, nil
}

// lockForMutation locks the owning tab, then the order. CloseTab takes the
// same order. The tab id is read unlocked; an order never changes tab.
func lockForMutation(ctx context.Context, store Store, orderID uuid.UUID) (database.Order, error) {
	peek, err := store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, errors.Wrap(err, "get order")
	}
	if peek.TabID.Valid {
		if _, err := lockTab(ctx, store, uuid.UUID(peek.TabID.Bytes)); err != nil {
			return database.Order{}, err
		}
	}
	return lockOrder(ctx, store, orderID)
}

func lockOrder(ctx context.Context, store OrderStore, id uuid.UUID) (database.Order, error) {
	order, err := store.GetOrderForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, errors.Wrap(err, "lock order")
	}
	return order, nil
}

func checkTabOpen(ctx context.Context, store TabStore, order database.Order) error {
	if !order.TabID.Valid {
		return nil
	}
	tab, err := store.GetTab(ctx, uuid.UUID(order.TabID.Bytes))
	if err != nil {
		return errors.Wrap(err, "get tab")
	}
	if tab.Status != enum.TabStatusOpen {
		return &TabClosedError{TabID: tab.ID, TableID: tab.TableID}
	}
	return nil
}

// itemServed reports whether a line has already reached the guest. Lines
// with no station are handed over at confirmation.
func itemServed(item database.OrderItem, tickets []database.PreparationTicket) bool {
	if !enum.IsStation(item.Destination) {
		return true
	}
	for _, t := range tickets {
		if t.Destination == item.Destination {
			return t.Status == enum.TicketStatusServed
		}
	}
	return false
}

func mergeableLine(items []database.OrderItem, product database.Product, notes string) (database.OrderItem, bool) {
	price := numericToDecimal(product.Price)
	for _, it := range items {
		if it.ProductID == product.ID &&
			it.Destination == product.Destination &&
			it.Notes.String == notes &&
			numericToDecimal(it.UnitPrice).Equal(price) {
			return it, true
		}
	}
	return database.OrderItem{}, false
}

func aggregateItems(items []database.OrderItem) (map[uuid.UUID]int32, map[uuid.UUID]string) {
	quantities := make(map[uuid.UUID]int32, len(items))
	names := make(map[uuid.UUID]string, len(items))
	for _, it := range items {
		quantities[it.ProductID] += it.Quantity
		names[it.ProductID] = it.ProductName
	}
	return quantities, names
}

func withProductNames(err error, names map[uuid.UUID]string) error {
	var ise *InsufficientStockError
	if errors.As(err, &ise) && ise.ProductName == "" {
		ise.ProductName = names[ise.ProductID]
	}
	return err
}

// logSettledButFailed records a captured payment whose transaction did not
// commit, so it can be refunded or re-applied by hand.
func logSettledButFailed(s *Settlement, subject string, err error) {
	if s == nil {
		return
	}
	log.Printf("ERROR: payment settled for %s but not recorded: method=%s amount=%s ref=%q: %v",
		subject, s.Method, s.Amount.StringFixed(2), s.Reference, err)
}
