package service

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/kiwari-pos/tabs/internal/database"
	"github.com/kiwari-pos/tabs/internal/enum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func line(name, destination string, qty int32) database.OrderItem {
	return database.OrderItem{ID: uuid.New(), ProductID: uuid.New(), ProductName: name, Destination: destination, Quantity: qty}
}

func TestPlan_GroupsByStation(t *testing.T) {
	items := []database.OrderItem{
		line("Beer", enum.DestinationBar, 2),
		line("Sisig", enum.DestinationKitchen, 1),
		line("Water", enum.DestinationNone, 1),
		line("Rice", enum.DestinationKitchen, 2),
	}

	plans := NewDispatcher().Plan(items)

	require.Len(t, plans, 2)
	assert.Equal(t, enum.DestinationKitchen, plans[0].Destination)
	assert.Len(t, plans[0].Items, 2)
	assert.Equal(t, enum.DestinationBar, plans[1].Destination)
	assert.Len(t, plans[1].Items, 1)
}

func TestPlan_NoStations(t *testing.T) {
	plans := NewDispatcher().Plan([]database.OrderItem{line("Water", enum.DestinationNone, 1)})
	assert.Empty(t, plans)
}

func TestDispatch_OnlyOnce(t *testing.T) {
	store := newMemStore()
	order := database.Order{ID: uuid.New(), OrderNumber: "ORD-0001"}
	items := []database.OrderItem{line("Sisig", enum.DestinationKitchen, 1)}
	d := NewDispatcher()

	tickets, err := d.Dispatch(context.Background(), store, order, items)
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, enum.TicketStatusPending, tickets[0].Ticket.Status)

	_, err = d.Dispatch(context.Background(), store, order, items)
	assert.True(t, errors.Is(err, ErrAlreadyDispatched))
	assert.Len(t, store.tickets, 1)
}

func TestAttach_ReusesExistingTicket(t *testing.T) {
	store := newMemStore()
	order := database.Order{ID: uuid.New(), OrderNumber: "ORD-0002"}
	items := []database.OrderItem{line("Sisig", enum.DestinationKitchen, 1)}
	d := NewDispatcher()
	_, err := d.Dispatch(context.Background(), store, order, items)
	require.NoError(t, err)

	items = append(items, line("Rice", enum.DestinationKitchen, 1))
	events, err := d.Attach(context.Background(), store, order, items, enum.DestinationKitchen)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventTicketUpdated, events[0].Type)
	assert.Equal(t, "kitchen", events[0].Room)
	assert.Len(t, store.tickets, 1)

	events, err = d.Attach(context.Background(), store, order, append(items, line("Beer", enum.DestinationBar, 1)), enum.DestinationBar)
	require.NoError(t, err)
	assert.Equal(t, EventTicketCreated, events[0].Type)
	assert.Len(t, store.tickets, 2)
}

func TestAttach_RejectsReadyTicket(t *testing.T) {
	store := newMemStore()
	order := database.Order{ID: uuid.New(), OrderNumber: "ORD-0003"}
	items := []database.OrderItem{line("Beer", enum.DestinationBar, 1)}
	d := NewDispatcher()
	tickets, err := d.Dispatch(context.Background(), store, order, items)
	require.NoError(t, err)
	_, err = store.UpdateTicketStatus(context.Background(), database.UpdateTicketStatusParams{
		ID: tickets[0].Ticket.ID, Status: enum.TicketStatusReady, PrevStatus: enum.TicketStatusPending,
	})
	require.NoError(t, err)

	_, err = d.Attach(context.Background(), store, order, items, enum.DestinationBar)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}

func TestDetach_DeletesEmptiedTicket(t *testing.T) {
	store := newMemStore()
	order := database.Order{ID: uuid.New(), OrderNumber: "ORD-0004"}
	beer := line("Beer", enum.DestinationBar, 1)
	sisig := line("Sisig", enum.DestinationKitchen, 1)
	d := NewDispatcher()
	_, err := d.Dispatch(context.Background(), store, order, []database.OrderItem{beer, sisig})
	require.NoError(t, err)

	events, err := d.Detach(context.Background(), store, order, []database.OrderItem{sisig}, enum.DestinationBar)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventTicketRemoved, events[0].Type)
	require.Len(t, store.tickets, 1)
	assert.Equal(t, enum.DestinationKitchen, store.tickets[0].Destination)
}

func TestDeriveOrderStatus_LeastAdvanced(t *testing.T) {
	tk := func(status string) database.PreparationTicket { return database.PreparationTicket{Status: status} }

	assert.Equal(t, enum.OrderStatusServed, deriveOrderStatus(nil))
	assert.Equal(t, enum.OrderStatusConfirmed, deriveOrderStatus([]database.PreparationTicket{tk(enum.TicketStatusPending), tk(enum.TicketStatusServed)}))
	assert.Equal(t, enum.OrderStatusPreparing, deriveOrderStatus([]database.PreparationTicket{tk(enum.TicketStatusReady), tk(enum.TicketStatusPreparing)}))
	assert.Equal(t, enum.OrderStatusReady, deriveOrderStatus([]database.PreparationTicket{tk(enum.TicketStatusReady), tk(enum.TicketStatusServed)}))
	assert.Equal(t, enum.OrderStatusServed, deriveOrderStatus([]database.PreparationTicket{tk(enum.TicketStatusServed), tk(enum.TicketStatusServed)}))
}
