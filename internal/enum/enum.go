package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	OrderStatusDraft     = "DRAFT"
	OrderStatusConfirmed = "CONFIRMED"
	OrderStatusPreparing = "PREPARING"
	OrderStatusReady     = "READY"
	OrderStatusServed    = "SERVED"
	OrderStatusCompleted = "COMPLETED"
	OrderStatusVoided    = "VOIDED"
)

const (
	TicketStatusPending   = "PENDING"
	TicketStatusPreparing = "PREPARING"
	TicketStatusReady     = "READY"
	TicketStatusServed    = "SERVED"
)

const (
	TabStatusOpen   = "OPEN"
	TabStatusClosed = "CLOSED"
)

const (
	TableStatusAvailable = "AVAILABLE"
	TableStatusOccupied  = "OCCUPIED"
	TableStatusReserved  = "RESERVED"
	TableStatusCleaning  = "CLEANING"
)

// ── Group B: Configurable labels (no DB constraint) ──

const (
	DestinationKitchen = "KITCHEN"
	DestinationBar     = "BAR"
	DestinationNone    = "NONE"
)

// Destinations lists the preparation stations in dispatch order.
var Destinations = []string{DestinationKitchen, DestinationBar}

const (
	PaymentMethodCash     = "CASH"
	PaymentMethodQRIS     = "QRIS"
	PaymentMethodTransfer = "TRANSFER"
)

const (
	DiscountTypePercentage = "PERCENTAGE"
	DiscountTypeFixed      = "FIXED_AMOUNT"
)

const (
	MovementReasonConfirm   = "ORDER_CONFIRM"
	MovementReasonItemAdd   = "ITEM_ADD"
	MovementReasonReduce    = "ITEM_REDUCE"
	MovementReasonVoid      = "ORDER_VOID"
	MovementReasonSale      = "QUICK_SALE"
	MovementReasonRestock   = "RESTOCK"
	MovementReasonShortfall = "SHORTFALL"
)

const (
	UserRoleManager = "MANAGER"
	UserRoleCashier = "CASHIER"
	UserRoleKitchen = "KITCHEN"
	UserRoleBar     = "BAR"
)

// IsUserRole reports whether r is a staff role this service understands.
func IsUserRole(r string) bool {
	switch r {
	case UserRoleManager, UserRoleCashier, UserRoleKitchen, UserRoleBar:
		return true
	}
	return false
}

// ── Ordering helpers ──

var orderStatusRank = map[string]int{
	OrderStatusDraft:     0,
	OrderStatusConfirmed: 1,
	OrderStatusPreparing: 2,
	OrderStatusReady:     3,
	OrderStatusServed:    4,
	OrderStatusCompleted: 5,
}

var ticketStatusRank = map[string]int{
	TicketStatusPending:   0,
	TicketStatusPreparing: 1,
	TicketStatusReady:     2,
	TicketStatusServed:    3,
}

// IsTerminalOrderStatus reports whether no further transition is possible.
func IsTerminalOrderStatus(s string) bool {
	return s == OrderStatusCompleted || s == OrderStatusVoided
}

// IsFinalizedOrderStatus reports whether the order no longer blocks closing its tab.
func IsFinalizedOrderStatus(s string) bool {
	return s == OrderStatusServed || IsTerminalOrderStatus(s)
}

// TicketRank returns the position of s in the ticket lifecycle, or -1.
func TicketRank(s string) int {
	r, ok := ticketStatusRank[s]
	if !ok {
		return -1
	}
	return r
}

// OrderRank returns the position of s in the order lifecycle, or -1.
// VOIDED has no rank because it is reachable from every non-terminal state.
func OrderRank(s string) int {
	r, ok := orderStatusRank[s]
	if !ok {
		return -1
	}
	return r
}

// OrderStatusForTicket maps a ticket status onto the order status it implies.
func OrderStatusForTicket(s string) string {
	switch s {
	case TicketStatusPreparing:
		return OrderStatusPreparing
	case TicketStatusReady:
		return OrderStatusReady
	case TicketStatusServed:
		return OrderStatusServed
	}
	return OrderStatusConfirmed
}

// IsStation reports whether d routes to a preparation station.
func IsStation(d string) bool {
	return d == DestinationKitchen || d == DestinationBar
}

// IsValidDestination reports whether d is a known destination tag.
func IsValidDestination(d string) bool {
	return IsStation(d) || d == DestinationNone
}
