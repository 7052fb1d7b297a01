package service

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/kiwari-pos/tabs/internal/database"
	"github.com/kiwari-pos/tabs/internal/enum"
)

// TicketPlan is one destination group of an order's items.
type TicketPlan struct {
	Destination string
	Items       []database.OrderItem
}

// TicketDetail is a ticket with the order lines it covers. A ticket covers
// every item of its order routed to the ticket's destination.
type TicketDetail struct {
	Ticket      database.PreparationTicket `json:"ticket"`
	OrderNumber string                     `json:"order_number"`
	Items       []database.OrderItem       `json:"items"`
}

// Dispatcher routes confirmed items to preparation stations.
type Dispatcher struct{}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Plan groups items by station in kitchen, bar order. Items with no
// station are skipped and empty groups are omitted.
func (d *Dispatcher) Plan(items []database.OrderItem) []TicketPlan {
	var plans []TicketPlan
	for _, dest := range enum.Destinations {
		group := itemsFor(items, dest)
		if len(group) == 0 {
			continue
		}
		plans = append(plans, TicketPlan{Destination: dest, Items: group})
	}
	return plans
}

// Dispatch persists one ticket per planned group. It runs once per order;
// an order that already has tickets yields ErrAlreadyDispatched.
func (d *Dispatcher) Dispatch(ctx context.Context, store TicketStore, order database.Order, items []database.OrderItem) ([]TicketDetail, error) {
	existing, err := store.ListTicketsByOrder(ctx, order.ID)
	if err != nil {
		return nil, errors.Wrap(err, "list tickets")
	}
	if len(existing) > 0 {
		return nil, errors.Wrapf(ErrAlreadyDispatched, "order %s", order.OrderNumber)
	}

	var tickets []TicketDetail
	for _, plan := range d.Plan(items) {
		t, err := store.CreateTicket(ctx, database.CreateTicketParams{
			OrderID:     order.ID,
			Destination: plan.Destination,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "create %s ticket", plan.Destination)
		}
		tickets = append(tickets, TicketDetail{Ticket: t, OrderNumber: order.OrderNumber, Items: plan.Items})
	}
	return tickets, nil
}

// Attach reflects an added line on the destination's ticket, creating the
// ticket only when the order has none for that destination yet.
func (d *Dispatcher) Attach(ctx context.Context, store TicketStore, order database.Order, items []database.OrderItem, destination string) ([]Event, error) {
	if !enum.IsStation(destination) {
		return nil, nil
	}
	ticket, found, err := findTicket(ctx, store, order, destination)
	if err != nil {
		return nil, err
	}

	if !found {
		t, err := store.CreateTicket(ctx, database.CreateTicketParams{OrderID: order.ID, Destination: destination})
		if err != nil {
			return nil, errors.Wrapf(err, "create %s ticket", destination)
		}
		detail := TicketDetail{Ticket: t, OrderNumber: order.OrderNumber, Items: itemsFor(items, destination)}
		return []Event{ticketEvent(EventTicketCreated, detail)}, nil
	}

	if enum.TicketRank(ticket.Status) >= enum.TicketRank(enum.TicketStatusReady) {
		return nil, &TransitionError{Entity: "ticket", ID: ticket.ID, From: ticket.Status, Action: "add items to"}
	}
	t, err := store.TouchTicket(ctx, ticket.ID)
	if err != nil {
		return nil, errors.Wrap(err, "touch ticket")
	}
	detail := TicketDetail{Ticket: t, OrderNumber: order.OrderNumber, Items: itemsFor(items, destination)}
	return []Event{ticketEvent(EventTicketUpdated, detail)}, nil
}

// Detach reflects a reduced or removed line. remaining is the order's item
// list after the change; a ticket left with no lines is deleted.
func (d *Dispatcher) Detach(ctx context.Context, store TicketStore, order database.Order, remaining []database.OrderItem, destination string) ([]Event, error) {
	if !enum.IsStation(destination) {
		return nil, nil
	}
	ticket, found, err := findTicket(ctx, store, order, destination)
	if err != nil || !found {
		return nil, err
	}

	group := itemsFor(remaining, destination)
	if len(group) == 0 {
		if err := store.DeleteTicket(ctx, ticket.ID); err != nil {
			return nil, errors.Wrap(err, "delete ticket")
		}
		detail := TicketDetail{Ticket: ticket, OrderNumber: order.OrderNumber}
		return []Event{ticketEvent(EventTicketRemoved, detail)}, nil
	}

	t, err := store.TouchTicket(ctx, ticket.ID)
	if err != nil {
		return nil, errors.Wrap(err, "touch ticket")
	}
	detail := TicketDetail{Ticket: t, OrderNumber: order.OrderNumber, Items: group}
	return []Event{ticketEvent(EventTicketUpdated, detail)}, nil
}

// Details pairs each ticket with the lines it covers.
func (d *Dispatcher) Details(order database.Order, tickets []database.PreparationTicket, items []database.OrderItem) []TicketDetail {
	out := make([]TicketDetail, len(tickets))
	for i, t := range tickets {
		out[i] = TicketDetail{Ticket: t, OrderNumber: order.OrderNumber, Items: itemsFor(items, t.Destination)}
	}
	return out
}

func findTicket(ctx context.Context, store TicketStore, order database.Order, destination string) (database.PreparationTicket, bool, error) {
	tickets, err := store.ListTicketsByOrder(ctx, order.ID)
	if err != nil {
		return database.PreparationTicket{}, false, errors.Wrap(err, "list tickets")
	}
	for _, t := range tickets {
		if t.Destination == destination {
			return t, true, nil
		}
	}
	return database.PreparationTicket{}, false, nil
}

func itemsFor(items []database.OrderItem, destination string) []database.OrderItem {
	var out []database.OrderItem
	for _, it := range items {
		if it.Destination == destination {
			out = append(out, it)
		}
	}
	return out
}

// deriveOrderStatus is the least advanced ticket status mapped onto the
// order lifecycle. An order without tickets has nothing to prepare.
func deriveOrderStatus(tickets []database.PreparationTicket) string {
	if len(tickets) == 0 {
		return enum.OrderStatusServed
	}
	least := tickets[0].Status
	for _, t := range tickets[1:] {
		if enum.TicketRank(t.Status) < enum.TicketRank(least) {
			least = t.Status
		}
	}
	return enum.OrderStatusForTicket(least)
}
