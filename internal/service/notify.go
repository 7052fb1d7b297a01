package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiwari-pos/tabs/internal/database"
	"github.com/shopspring/decimal"
)

// Event types published after a transaction commits.
const (
	EventTicketCreated       = "ticket.created"
	EventTicketUpdated       = "ticket.updated"
	EventTicketRemoved       = "ticket.removed"
	EventTicketStatusChanged = "ticket.status_changed"
	EventOrderStatusChanged  = "order.status_changed"
	EventOrderVoided         = "order.voided"
	EventTabOpened           = "tab.opened"
	EventTabClosed           = "tab.closed"
	EventTabTotalChanged     = "tab.total_changed"
)

// RoomFloor receives tab and order events for the floor view.
const RoomFloor = "floor"

// Event is a change notification for station displays and subscribers.
type Event struct {
	Type       string    `json:"type"`
	Room       string    `json:"room"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// IsTicketEvent reports whether e concerns a preparation ticket.
func (e Event) IsTicketEvent() bool {
	return strings.HasPrefix(e.Type, "ticket.")
}

// Notifier delivers events. Implementations must not block the caller for
// long and must not return delivery errors; failures are theirs to log.
type Notifier interface {
	Publish(ctx context.Context, events ...Event)
}

// NopNotifier discards events.
type NopNotifier struct{}

func (NopNotifier) Publish(context.Context, ...Event) {}

// StationRoom is the room name for a destination tag.
func StationRoom(destination string) string {
	return strings.ToLower(destination)
}

func ticketEvent(typ string, t TicketDetail) Event {
	return Event{Type: typ, Room: StationRoom(t.Ticket.Destination), OccurredAt: time.Now(), Payload: t}
}

type orderStatusPayload struct {
	OrderID     uuid.UUID  `json:"order_id"`
	OrderNumber string     `json:"order_number"`
	TabID       *uuid.UUID `json:"tab_id,omitempty"`
	From        string     `json:"from"`
	To          string     `json:"to"`
}

func orderStatusEvent(o database.Order, from string) Event {
	p := orderStatusPayload{OrderID: o.ID, OrderNumber: o.OrderNumber, From: from, To: o.Status}
	if o.TabID.Valid {
		id := uuid.UUID(o.TabID.Bytes)
		p.TabID = &id
	}
	return Event{Type: EventOrderStatusChanged, Room: RoomFloor, OccurredAt: time.Now(), Payload: p}
}

type tabPayload struct {
	TabID   uuid.UUID       `json:"tab_id"`
	TableID uuid.UUID       `json:"table_id"`
	Status  string          `json:"status"`
	Total   decimal.Decimal `json:"total_amount"`
}

func tabEvent(typ string, t database.Tab) Event {
	return Event{
		Type:       typ,
		Room:       RoomFloor,
		OccurredAt: time.Now(),
		Payload: tabPayload{
			TabID:   t.ID,
			TableID: t.TableID,
			Status:  t.Status,
			Total:   numericToDecimal(t.TotalAmount),
		},
	}
}
