package events

import (
	"context"
	"encoding/json"
	"log"

	"github.com/kiwari-pos/tabs/internal/service"
	"github.com/kiwari-pos/tabs/internal/ws"
)

// TopicFor returns the bus subject an event is published on.
func TopicFor(e service.Event) string {
	if e.IsTicketEvent() {
		return TopicTickets
	}
	return TopicTabs
}

// BusNotifier publishes committed events on the message bus.
type BusNotifier struct {
	pub Publisher
}

func NewBusNotifier(pub Publisher) *BusNotifier {
	return &BusNotifier{pub: pub}
}

func (n *BusNotifier) Publish(ctx context.Context, events ...service.Event) {
	for _, e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			log.Printf("WARN: encode %s event: %v", e.Type, err)
			continue
		}
		if err := n.pub.Publish(ctx, TopicFor(e), data); err != nil {
			log.Printf("WARN: publish %s event: %v", e.Type, err)
		}
	}
}

// Broadcaster is satisfied by *ws.Hub.
type Broadcaster interface {
	BroadcastToRoom(room string, event ws.Event) bool
}

// HubNotifier pushes committed events to the websocket rooms.
type HubNotifier struct {
	hub Broadcaster
}

func NewHubNotifier(hub Broadcaster) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (n *HubNotifier) Publish(ctx context.Context, events ...service.Event) {
	for _, e := range events {
		payload, err := json.Marshal(e.Payload)
		if err != nil {
			log.Printf("WARN: encode %s event: %v", e.Type, err)
			continue
		}
		msg := ws.Event{Type: e.Type, Payload: payload}
		for _, room := range rooms(e) {
			if !n.hub.BroadcastToRoom(room, msg) {
				log.Printf("WARN: hub queue full, dropped %s for %s", e.Type, room)
			}
		}
	}
}

// rooms lists the rooms an event is shown in. Station progress is also
// shown on the floor so runners see what is ready to serve.
func rooms(e service.Event) []string {
	if e.Type == service.EventTicketStatusChanged && e.Room != ws.RoomFloor {
		return []string{e.Room, ws.RoomFloor}
	}
	return []string{e.Room}
}

// Fanout delivers every event to each notifier in order.
type Fanout []service.Notifier

func (f Fanout) Publish(ctx context.Context, events ...service.Event) {
	for _, n := range f {
		n.Publish(ctx, events...)
	}
}
