package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"nhooyr.io/websocket"

	"github.com/griffin1995/my-private-tutor-online-sub019/internal/model"
)

const (
	pingInterval = 30 * time.Second
	readTimeout  = 60 * time.Second
)

// Hub manages WebSocket connections and broadcasts dispatched alerts
// and ingest batch notifications to dashboard listeners.
type Hub struct {
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	reg     chan *wsClient
	unreg   chan *wsClient
}

type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	subs map[model.Severity]bool // subscribed severities; empty = all
	mu   sync.Mutex
}

// NewHub creates a new WebSocket hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*wsClient]struct{}),
		reg:     make(chan *wsClient, 16),
		unreg:   make(chan *wsClient, 16),
	}
}

// Run processes register/unregister events.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.reg:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
		case c := <-h.unreg:
			h.mu.Lock()
			delete(h.clients, c)
			h.mu.Unlock()
			close(c.send)
		}
	}
}

// BroadcastAlert pushes a dispatched alert to every connected client
// whose severity subscription matches.
func (h *Hub) BroadcastAlert(ev model.AlertEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.clients) == 0 {
		return
	}

	data, err := json.Marshal(map[string]any{
		"type":  "alert",
		"alert": ev,
	})
	if err != nil {
		return
	}

	for c := range h.clients {
		if !c.wantsSeverity(ev.Severity) {
			continue
		}
		select {
		case c.send <- data:
		default:
			// client too slow, skip
		}
	}
}

// BroadcastIngest notifies clients that a metric batch was stored.
func (h *Hub) BroadcastIngest(sessionID string, processed int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.clients) == 0 {
		return
	}

	data, err := json.Marshal(map[string]any{
		"type":      "ingest",
		"sessionId": sessionID,
		"processed": processed,
	})
	if err != nil {
		return
	}

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

func (c *wsClient) wantsSeverity(s model.Severity) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.subs) == 0 {
		return true // no filter = receive all
	}
	return c.subs[s]
}

func (c *wsClient) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		}
	}
}

// HandleWS handles WebSocket upgrade and manages the connection.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // dashboard may be served from another origin
	})
	if err != nil {
		log.Warn().Err(err).Msg("[ws] accept error")
		return
	}

	client := &wsClient{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 64),
		subs: make(map[model.Severity]bool),
	}

	h.reg <- client

	ctx := r.Context()
	go client.pingLoop(ctx)
	go client.writePump(ctx)
	client.readPump(ctx)
}

func (c *wsClient) readPump(ctx context.Context) {
	defer func() {
		c.hub.unreg <- c
		c.conn.Close(websocket.StatusNormalClosure, "bye")
	}()

	for {
		readCtx, cancel := context.WithTimeout(ctx, readTimeout)
		_, data, err := c.conn.Read(readCtx)
		cancel()
		if err != nil {
			return
		}
		// Parse subscription messages
		var msg struct {
			Type       string   `json:"type"`
			Severities []string `json:"severities"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case "subscribe":
			c.mu.Lock()
			for _, s := range msg.Severities {
				if sev := model.Severity(s); sev.Valid() {
					c.subs[sev] = true
				}
			}
			c.mu.Unlock()
		case "unsubscribe":
			c.mu.Lock()
			for _, s := range msg.Severities {
				delete(c.subs, model.Severity(s))
			}
			c.mu.Unlock()
		}
	}
}

func (c *wsClient) writePump(ctx context.Context) {
	for data := range c.send {
		if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
			return
		}
	}
}
