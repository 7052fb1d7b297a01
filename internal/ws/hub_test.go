package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/kiwari-pos/tabs/internal/enum"
)

// mockClient creates a client for testing without a real WebSocket connection
func mockClient(hub *Hub, room string) *Client {
	return &Client{
		hub:  hub,
		room: room,
		send: make(chan []byte, 256),
	}
}

func TestHubRegistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := mockClient(hub, RoomKitchen)

	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if hub.rooms[RoomKitchen] == nil {
		t.Fatal("kitchen room not created")
	}
	if !hub.rooms[RoomKitchen][client] {
		t.Fatal("client not registered in kitchen room")
	}
}

func TestHubUnregistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := mockClient(hub, RoomBar)

	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)

	if n := hub.Clients(RoomBar); n != 0 {
		t.Fatalf("expected empty bar room, got %d clients", n)
	}

	hub.mu.RLock()
	defer hub.mu.RUnlock()
	if hub.rooms[RoomBar] != nil {
		t.Fatal("room not cleaned up after last client unregistered")
	}
}

func TestBroadcastReachesOnlyItsStation(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	kitchen := mockClient(hub, RoomKitchen)
	bar := mockClient(hub, RoomBar)

	hub.register <- kitchen
	hub.register <- bar
	time.Sleep(10 * time.Millisecond)

	payload := json.RawMessage(`{"order_number":"ORD-0001","destination":"KITCHEN"}`)
	if !hub.BroadcastToRoom(RoomKitchen, Event{Type: "ticket.created", Payload: payload}) {
		t.Fatal("broadcast was dropped")
	}

	select {
	case msg := <-kitchen.send:
		var received Event
		if err := json.Unmarshal(msg, &received); err != nil {
			t.Fatalf("failed to unmarshal message: %v", err)
		}
		if received.Type != "ticket.created" {
			t.Errorf("expected type 'ticket.created', got '%s'", received.Type)
		}
		if string(received.Payload) != string(payload) {
			t.Errorf("expected payload '%s', got '%s'", payload, received.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("kitchen display did not receive the ticket")
	}

	select {
	case <-bar.send:
		t.Fatal("bar display should not receive kitchen tickets")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcastToMultipleDisplaysInRoom(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	clients := []*Client{
		mockClient(hub, RoomFloor),
		mockClient(hub, RoomFloor),
		mockClient(hub, RoomFloor),
	}
	for _, c := range clients {
		hub.register <- c
	}
	time.Sleep(10 * time.Millisecond)

	hub.BroadcastToRoom(RoomFloor, Event{Type: "tab.closed", Payload: json.RawMessage(`{"status":"CLOSED"}`)})

	for i, client := range clients {
		select {
		case msg := <-client.send:
			var received Event
			if err := json.Unmarshal(msg, &received); err != nil {
				t.Fatalf("client%d: failed to unmarshal: %v", i+1, err)
			}
			if received.Type != "tab.closed" {
				t.Errorf("client%d: expected type 'tab.closed', got '%s'", i+1, received.Type)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("client%d did not receive message", i+1)
		}
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	slow := &Client{hub: hub, room: RoomKitchen, send: make(chan []byte)}
	hub.register <- slow
	time.Sleep(10 * time.Millisecond)

	hub.BroadcastToRoom(RoomKitchen, Event{Type: "ticket.updated", Payload: json.RawMessage(`{}`)})
	time.Sleep(10 * time.Millisecond)

	if n := hub.Clients(RoomKitchen); n != 0 {
		t.Fatalf("slow client still registered: %d", n)
	}
	if _, ok := <-slow.send; ok {
		t.Fatal("send channel of dropped client should be closed")
	}
}

func TestBroadcastToEmptyRoom(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := mockClient(hub, RoomKitchen)
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.BroadcastToRoom(RoomBar, Event{Type: "ticket.created", Payload: json.RawMessage(`{"test":"data"}`)})

	select {
	case <-client.send:
		t.Fatal("client should not receive message for a different room")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCanJoin(t *testing.T) {
	tests := []struct {
		role string
		room string
		want bool
	}{
		{enum.UserRoleKitchen, RoomKitchen, true},
		{enum.UserRoleKitchen, RoomBar, false},
		{enum.UserRoleBar, RoomBar, true},
		{enum.UserRoleBar, RoomKitchen, false},
		{enum.UserRoleCashier, RoomKitchen, true},
		{enum.UserRoleKitchen, RoomFloor, true},
		{enum.UserRoleManager, RoomBar, true},
	}
	for _, tt := range tests {
		if got := canJoin(tt.role, tt.room); got != tt.want {
			t.Errorf("canJoin(%s, %s) = %v, want %v", tt.role, tt.room, got, tt.want)
		}
	}
}

func TestIsRoom(t *testing.T) {
	for _, room := range []string{RoomKitchen, RoomBar, RoomFloor} {
		if !IsRoom(room) {
			t.Errorf("%s should be a room", room)
		}
	}
	if IsRoom("grill") {
		t.Error("grill is not a room")
	}
}
