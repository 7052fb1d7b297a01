package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/kiwari-pos/tabs/internal/auth"
	"github.com/kiwari-pos/tabs/internal/enum"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10 // must stay below pongWait

	// Displays only answer pings; anything larger is a misbehaving peer.
	maxMessageSize = 512
	sendQueue      = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin is not checked: every connection carries a staff token.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is one station display or floor screen.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	room   string
	userID uuid.UUID
	role   string
	send   chan []byte
}

// stationRoles lists who may watch a station room besides managers.
var stationRoles = map[string][]string{
	RoomKitchen: {enum.UserRoleKitchen, enum.UserRoleCashier},
	RoomBar:     {enum.UserRoleBar, enum.UserRoleCashier},
}

func canJoin(role, room string) bool {
	if role == enum.UserRoleManager || room == RoomFloor {
		return true
	}
	for _, r := range stationRoles[room] {
		if r == role {
			return true
		}
	}
	return false
}

// authorize resolves the room and caller of a join request. On failure it
// returns the HTTP status and message to reject with.
func authorize(r *http.Request, jwtSecret string) (string, *auth.Claims, int, string) {
	token := r.URL.Query().Get("token")
	if token == "" {
		return "", nil, http.StatusUnauthorized, "missing token"
	}
	claims, err := auth.ValidateToken(jwtSecret, token)
	if err != nil {
		return "", nil, http.StatusUnauthorized, "invalid token"
	}

	room := chi.URLParam(r, "room")
	if !IsRoom(room) {
		return "", nil, http.StatusNotFound, "unknown room"
	}
	if !canJoin(claims.Role, room) {
		return "", nil, http.StatusForbidden, "role " + claims.Role + " may not join " + room
	}
	return room, claims, 0, ""
}

// Handler serves GET /ws/stations/{room}?token=JWT.
func Handler(hub *Hub, jwtSecret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room, claims, status, msg := authorize(r, jwtSecret)
		if status != 0 {
			http.Error(w, msg, status)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WARN: websocket upgrade for %s: %v", room, err)
			return
		}

		c := &Client{
			hub:    hub,
			conn:   conn,
			room:   room,
			userID: claims.UserID,
			role:   claims.Role,
			send:   make(chan []byte, sendQueue),
		}
		c.send <- c.joinedMessage()
		hub.register <- c

		go c.writePump()
		go c.readPump()
	}
}

// joinedMessage is the first frame a display receives. It tells the
// display to fetch current state before applying events.
func (c *Client) joinedMessage() []byte {
	payload, _ := json.Marshal(map[string]string{"room": c.room, "role": c.role})
	msg, _ := json.Marshal(Event{Type: "session.joined", Payload: payload})
	return msg
}

// readPump only watches for disconnects and pongs.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WARN: websocket %s (user %s): %v", c.room, c.userID, err)
			}
			return
		}
	}
}

// writePump sends one event per text frame and keeps the peer alive with
// pings. It exits when the hub closes send.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "dropped")) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
