// Package hub fans notifications out to long-lived TCP and WebSocket
// clients such as the UI and the CLI's watch command.
package hub

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"stockwatch/pkg/models"
)

const (
	writeTimeout       = 2 * time.Second
	defaultHistorySize = 50
)

type Hub struct {
	mu          sync.Mutex
	clients     map[net.Conn]struct{}
	wsClients   map[*websocket.Conn]struct{}
	history     []models.Notification
	historySize int
	log         *logrus.Entry
}

type Stats struct {
	TCPClients int `json:"tcp_clients"`
	WSClients  int `json:"ws_clients"`
	Recent     int `json:"recent_notifications"`
}

func NewHub(log *logrus.Entry) *Hub {
	return &Hub{
		clients:     make(map[net.Conn]struct{}),
		wsClients:   make(map[*websocket.Conn]struct{}),
		historySize: defaultHistorySize,
		log:         log,
	}
}

// SetHistorySize bounds how many recent notifications a joining client
// gets replayed. Zero disables replay.
func (h *Hub) SetHistorySize(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.historySize = max(n, 0)
	h.trimLocked()
}

// Join greets a TCP client, replays recent notifications and adds it to
// the broadcast set. Holding the lock throughout means a concurrent
// notification is neither missed nor sent twice.
func (h *Hub) Join(conn net.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, b := range h.greetingLocked("tcp") {
		if !writeConn(conn, b) {
			_ = conn.Close()
			return
		}
	}
	h.clients[conn] = struct{}{}
}

// JoinWS is Join for WebSocket clients.
func (h *Hub) JoinWS(ws *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, b := range h.greetingLocked("websocket") {
		if !writeWS(ws, b) {
			_ = ws.Close()
			return
		}
	}
	h.wsClients[ws] = struct{}{}
}

func (h *Hub) greetingLocked(transport string) [][]byte {
	now := time.Now().UTC()
	welcome := Event{
		Type:      EventWelcome,
		Clients:   len(h.clients) + len(h.wsClients) + 1,
		Transport: transport,
		At:        now,
	}
	out := make([][]byte, 0, len(h.history)+1)
	out = append(out, encode(welcome))
	for i := range h.history {
		n := h.history[i]
		out = append(out, encode(Event{Type: EventNotification, Notification: &n, Replayed: true, At: n.At}))
	}
	return out
}

func (h *Hub) Remove(conn net.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	_ = conn.Close()
}

func (h *Hub) RemoveWS(ws *websocket.Conn) {
	h.mu.Lock()
	delete(h.wsClients, ws)
	h.mu.Unlock()
	_ = ws.Close()
}

// BroadcastJSON writes v to every client. Clients that fail a write are
// dropped.
func (h *Hub) BroadcastJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		h.log.WithError(err).Error("marshal broadcast")
		return
	}
	b = append(b, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcastLocked(b)
}

func (h *Hub) broadcastLocked(b []byte) {
	for c := range h.clients {
		if !writeConn(c, b) {
			_ = c.Close()
			delete(h.clients, c)
		}
	}
	for ws := range h.wsClients {
		if !writeWS(ws, b) {
			_ = ws.Close()
			delete(h.wsClients, ws)
		}
	}
}

func writeConn(c net.Conn, b []byte) bool {
	_ = c.SetWriteDeadline(time.Now().Add(writeTimeout))
	w := bufio.NewWriter(c)
	if _, err := w.Write(b); err != nil {
		return false
	}
	return w.Flush() == nil
}

func writeWS(ws *websocket.Conn, b []byte) bool {
	_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return ws.WriteMessage(websocket.TextMessage, b) == nil
}

func encode(ev Event) []byte {
	b, _ := json.Marshal(ev)
	return append(b, '\n')
}

// Name and Deliver make the hub a notification sink.
func (h *Hub) Name() string { return "hub" }

func (h *Hub) Deliver(_ context.Context, n models.Notification) error {
	b := encode(Event{Type: EventNotification, Notification: &n, At: n.At})

	h.mu.Lock()
	defer h.mu.Unlock()
	h.history = append(h.history, n)
	h.trimLocked()
	h.broadcastLocked(b)
	return nil
}

func (h *Hub) trimLocked() {
	if len(h.history) > h.historySize {
		h.history = append([]models.Notification(nil), h.history[len(h.history)-h.historySize:]...)
	}
}

// Recent returns the buffered notifications, oldest first.
func (h *Hub) Recent() []models.Notification {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]models.Notification(nil), h.history...)
}

// SettingsChanged pushes a saved settings document to clients.
func (h *Hub) SettingsChanged(s models.NotificationSettings) {
	h.BroadcastJSON(Event{Type: EventSettings, Settings: &s, At: time.Now().UTC()})
}

func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients) + len(h.wsClients)
}

func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{
		TCPClients: len(h.clients),
		WSClients:  len(h.wsClients),
		Recent:     len(h.history),
	}
}

// CloseAll disconnects every client.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		_ = c.Close()
		delete(h.clients, c)
	}
	for ws := range h.wsClients {
		_ = ws.Close()
		delete(h.wsClients, ws)
	}
}
