package notify

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ariefcatur/go-realtime-market/internal/market"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// RoomSellers is the shared coarse channel sellers auto-join. Order placement
// does not currently target it; it exists for broadcast-to-sellers use.
const RoomSellers = "sellers"

func userRoom(userID string) string { return "user_" + userID }

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// frame is the wire shape pushed to clients.
type frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type session struct {
	conn  *websocket.Conn
	send  chan []byte
	rooms map[string]bool
}

// Hub tracks connected sessions and their room membership. Membership is
// session-lived: joined on connect, torn down on disconnect. Delivery is
// at-most-once; nothing is persisted or replayed.
type Hub struct {
	mu       sync.Mutex
	sessions map[*session]bool
	rooms    map[string]map[*session]bool
}

func NewHub() *Hub {
	return &Hub{
		sessions: make(map[*session]bool),
		rooms:    make(map[string]map[*session]bool),
	}
}

// ServeWS upgrades the connection and joins the client to its private room,
// plus the sellers room for seller sessions.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}
	role := r.URL.Query().Get("role")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("notify: upgrade: %v", err)
		return
	}

	s := &session{
		conn:  conn,
		send:  make(chan []byte, 64),
		rooms: make(map[string]bool),
	}
	h.register(s)
	h.join(s, userRoom(userID))
	if role == string(market.RoleSeller) {
		h.join(s, RoomSellers)
	}

	go s.writePump()
	go s.readPump(h)
}

func (h *Hub) register(s *session) {
	h.mu.Lock()
	h.sessions[s] = true
	h.mu.Unlock()
}

func (h *Hub) join(s *session, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.sessions[s] {
		return
	}
	s.rooms[room] = true
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*session]bool)
	}
	h.rooms[room][s] = true
}

func (h *Hub) unregister(s *session) {
	h.mu.Lock()
	h.dropLocked(s)
	h.mu.Unlock()
}

func (h *Hub) dropLocked(s *session) {
	if !h.sessions[s] {
		return
	}
	delete(h.sessions, s)
	for room := range s.rooms {
		delete(h.rooms[room], s)
		if len(h.rooms[room]) == 0 {
			delete(h.rooms, room)
		}
	}
	close(s.send)
}

// PublishToUser pushes an event to every session in the user's private room.
func (h *Hub) PublishToUser(ctx context.Context, userID, event string, payload any) error {
	return h.publish(userRoom(userID), event, payload)
}

// PublishBroadcast pushes an event to every connected session.
func (h *Hub) PublishBroadcast(ctx context.Context, event string, payload any) error {
	return h.publish("", event, payload)
}

// PublishToRoom targets a named room such as RoomSellers.
func (h *Hub) PublishToRoom(ctx context.Context, room, event string, payload any) error {
	return h.publish(room, event, payload)
}

func (h *Hub) publish(room, event string, payload any) error {
	msg, err := json.Marshal(frame{Event: event, Data: payload})
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	targets := h.sessions
	if room != "" {
		targets = h.rooms[room]
	}

	var dead []*session
	for s := range targets {
		select {
		case s.send <- msg:
		default:
			// slow consumer: drop the session rather than block the
			// transaction path behind it
			dead = append(dead, s)
		}
	}
	for _, s := range dead {
		h.dropLocked(s)
	}
	return nil
}

func (s *session) readPump(h *Hub) {
	defer func() {
		h.unregister(s)
		s.conn.Close()
	}()
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		// clients only listen; inbound frames just keep the connection alive
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("notify: read: %v", err)
			}
			return
		}
	}
}

func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
