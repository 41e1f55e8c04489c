package web

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sweeney/flow-monitor/internal/sim"
	"github.com/sweeney/flow-monitor/internal/status"
)

// LiveFrame is one websocket message, pushed to every client per tick
// and after each user action.
type LiveFrame struct {
	Label             string  `json:"label"`
	FlowLPerMin       float64 `json:"flow_l_per_min"`
	TotalVolumeLiters float64 `json:"total_volume_liters"`
	LeakFlagged       bool    `json:"leak_flagged"`
	ForcedLeak        bool    `json:"forced_leak"`
}

// FrameFromSnapshot builds the live frame for the latest sample.
func FrameFromSnapshot(snap sim.Snapshot) LiveFrame {
	label := ""
	if n := len(snap.History); n > 0 {
		label = snap.History[n-1].Label
	}
	return LiveFrame{
		Label:             label,
		FlowLPerMin:       snap.CurrentFlowLPerMin,
		TotalVolumeLiters: status.Round2(snap.TotalVolumeLiters),
		LeakFlagged:       snap.LeakFlagged,
		ForcedLeak:        snap.ForcedLeak,
	}
}

// Hub fans live frames out to connected websocket clients. Clients that
// cannot keep up are dropped rather than blocking the tick loop.
type Hub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*wsClient]struct{})}
}

// Broadcast sends the frame to every connected client. Never blocks: a
// client with a full send queue is disconnected.
func (h *Hub) Broadcast(frame LiveFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}

	h.mu.Lock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			delete(h.clients, c)
			close(c.send)
		}
	}
	h.mu.Unlock()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// CloseAll disconnects every client. Called on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  512,
	WriteBufferSize: 512,
	// Demo dashboard, same-origin only in practice.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleLive upgrades the connection and streams frames until the
// client goes away.
func (h *Hub) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade: %v", err)
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, 8)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go c.writePump()
	go h.readPump(c)
}

func (c *wsClient) writePump() {
	defer c.conn.Close()
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	// Hub closed the channel: tell the client before hanging up.
	c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
}

// readPump discards inbound messages and unregisters the client when
// the connection drops.
func (h *Hub) readPump(c *wsClient) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}
