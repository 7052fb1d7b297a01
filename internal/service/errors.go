package service

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// Recoverable and fatal error kinds returned by the tab engine. Context-carrying
// errors below unwrap to one of these, so callers can use errors.Is.
var (
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrTableAlreadyOccupied = errors.New("table already occupied")
	ErrNoActiveTab          = errors.New("no active tab for table")
	ErrTabClosed            = errors.New("tab is closed")
	ErrOrdersNotFinalized   = errors.New("orders not finalized")
	ErrInvalidTransition    = errors.New("invalid transition")
	ErrDataIntegrity        = errors.New("data integrity error")
)

// Validation errors, rejected before any side effect.
var (
	ErrInvalidQuantity      = errors.New("quantity must be > 0")
	ErrQuantityTooLarge     = errors.New("quantity exceeds the per-line limit")
	ErrEmptyOrder           = errors.New("order has no items")
	ErrVoidReasonTooShort   = errors.New("void reason is too short")
	ErrInvalidPaymentMethod = errors.New("invalid payment_method")
	ErrInvalidAmount        = errors.New("invalid amount_received")
	ErrInsufficientTender   = errors.New("amount_received must be >= amount due")
	ErrReferenceRequired    = errors.New("reference_number is required for non-cash payments")
	ErrInvalidTableStatus   = errors.New("invalid table status")
	ErrInvalidTicketStatus  = errors.New("invalid ticket status")
	ErrNeedsPreparation     = errors.New("quick sale only accepts items without a preparation station")
)

// Lookup and collaborator failures.
var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrItemNotFound      = errors.New("order item not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrTabNotFound       = errors.New("tab not found")
	ErrTableNotFound     = errors.New("table not found")
	ErrTicketNotFound    = errors.New("ticket not found")
	ErrTableUnavailable  = errors.New("table is not available")
	ErrAlreadyDispatched = errors.New("order already dispatched")
	ErrPaymentTimeout    = errors.New("payment settlement timed out")
)

// InsufficientStockError reports the first product that could not be covered.
type InsufficientStockError struct {
	ProductID   uuid.UUID
	ProductName string
	Requested   int32
	Available   int32
}

func (e *InsufficientStockError) Error() string {
	name := e.ProductName
	if name == "" {
		name = e.ProductID.String()
	}
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", name, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// TableOccupiedError is returned when a table already references an open tab.
type TableOccupiedError struct {
	TableID   uuid.UUID
	TableCode string
	TabID     uuid.UUID
}

func (e *TableOccupiedError) Error() string {
	return fmt.Sprintf("table %s already has open tab %s", e.TableCode, e.TabID)
}

func (e *TableOccupiedError) Unwrap() error { return ErrTableAlreadyOccupied }

type NoActiveTabError struct {
	TableID   uuid.UUID
	TableCode string
}

func (e *NoActiveTabError) Error() string {
	return fmt.Sprintf("table %s has no open tab", e.TableCode)
}

func (e *NoActiveTabError) Unwrap() error { return ErrNoActiveTab }

type TabClosedError struct {
	TabID   uuid.UUID
	TableID uuid.UUID
}

func (e *TabClosedError) Error() string {
	return fmt.Sprintf("tab %s is closed", e.TabID)
}

func (e *TabClosedError) Unwrap() error { return ErrTabClosed }

// PendingOrder identifies an order that still blocks closing its tab.
type PendingOrder struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Status      string    `json:"status"`
}

type OrdersNotFinalizedError struct {
	TabID   uuid.UUID
	Pending []PendingOrder
}

func (e *OrdersNotFinalizedError) Error() string {
	parts := make([]string, len(e.Pending))
	for i, p := range e.Pending {
		parts[i] = p.OrderNumber + "=" + p.Status
	}
	return fmt.Sprintf("tab %s has unfinished orders: %s", e.TabID, strings.Join(parts, ", "))
}

func (e *OrdersNotFinalizedError) Unwrap() error { return ErrOrdersNotFinalized }

// TransitionError is a state change the current status does not allow.
type TransitionError struct {
	Entity string
	ID     uuid.UUID
	From   string
	Action string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s %s %s in status %s", e.Action, e.Entity, e.ID, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// DataIntegrityError means a stock movement was applied but the totals that
// must accompany it could not be written. It needs reconciliation and must
// never be swallowed.
type DataIntegrityError struct {
	OrderID uuid.UUID
	Op      string
	Cause   error
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("data integrity: %s on order %s: %v", e.Op, e.OrderID, e.Cause)
}

func (e *DataIntegrityError) Unwrap() error { return ErrDataIntegrity }

// IsValidationError reports whether err was rejected before any side effect.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrQuantityTooLarge) ||
		errors.Is(err, ErrEmptyOrder) ||
		errors.Is(err, ErrVoidReasonTooShort) ||
		errors.Is(err, ErrInvalidPaymentMethod) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInsufficientTender) ||
		errors.Is(err, ErrReferenceRequired) ||
		errors.Is(err, ErrInvalidTableStatus) ||
		errors.Is(err, ErrInvalidTicketStatus) ||
		errors.Is(err, ErrNeedsPreparation)
}

// IsNotFound reports whether err is a missing-entity lookup failure.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrItemNotFound) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrTabNotFound) ||
		errors.Is(err, ErrTableNotFound) ||
		errors.Is(err, ErrTicketNotFound)
}

// IsConflict reports whether err is a recoverable domain conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrTableAlreadyOccupied) ||
		errors.Is(err, ErrNoActiveTab) ||
		errors.Is(err, ErrTabClosed) ||
		errors.Is(err, ErrOrdersNotFinalized) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrTableUnavailable) ||
		errors.Is(err, ErrAlreadyDispatched)
}
