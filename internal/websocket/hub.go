package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"stockpulse/internal/infrastructure"
)

// TypeConnection is sent to a client right after it registers
const TypeConnection = "connection"

const broadcastBuffer = 256

// Message is the envelope of every frame sent to clients
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// HubStats is a point-in-time view of hub counters
type HubStats struct {
	ActiveClients    int   `json:"active_clients"`
	TotalConnections int64 `json:"total_connections"`
	MessagesSent     int64 `json:"messages_sent"`
	MessagesDropped  int64 `json:"messages_dropped"`
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	mu      sync.RWMutex
	logger  *slog.Logger
	metrics *infrastructure.AnalysisMetrics

	done     chan struct{}
	stopOnce sync.Once

	totalConnections atomic.Int64
	messagesSent     atomic.Int64
	messagesDropped  atomic.Int64
}

// NewHub creates a hub. metrics may be nil.
func NewHub(logger *slog.Logger, metrics *infrastructure.AnalysisMetrics) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, broadcastBuffer),
		logger:     logger.With(slog.String("component", "websocket.hub")),
		metrics:    metrics,
		done:       make(chan struct{}),
	}
}

// Run is the hub's main loop. It returns when ctx is done or Stop is called,
// closing every client.
func (h *Hub) Run(ctx context.Context) {
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			h.Stop()
			return
		case <-h.done:
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			count := len(h.clients)
			h.mu.Unlock()
			h.totalConnections.Add(1)
			if h.metrics != nil {
				h.metrics.WebSocketClients.Add(ctx, 1)
			}

			h.logger.InfoContext(ctx, "client registered",
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr),
				slog.Int("total_clients", count))

			if data, err := encode(TypeConnection, map[string]string{"status": "connected", "client_id": client.id}); err == nil {
				select {
				case client.send <- data:
				default:
				}
			}

		case client := <-h.unregister:
			h.remove(ctx, client, "disconnected")

		case message := <-h.broadcast:
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for c := range h.clients {
				clients = append(clients, c)
			}
			h.mu.RUnlock()

			for _, c := range clients {
				select {
				case c.send <- message:
					h.messagesSent.Add(1)
				default:
					h.drop(ctx)
					h.remove(ctx, c, "send buffer full")
				}
			}
		}
	}
}

// Broadcast queues a typed message for every client. It never blocks: when
// the hub is stopped or its queue is full the message is dropped.
func (h *Hub) Broadcast(messageType string, data interface{}) {
	payload, err := encode(messageType, data)
	if err != nil {
		h.logger.Error("failed to marshal broadcast",
			slog.String("message_type", messageType),
			slog.String("error", err.Error()))
		return
	}

	select {
	case <-h.done:
		h.drop(context.Background())
	case h.broadcast <- payload:
	default:
		h.drop(context.Background())
		h.logger.Warn("broadcast queue full, message dropped",
			slog.String("message_type", messageType))
	}
}

// Register adds a client. It reports false if the hub is stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client. Safe to call after Stop.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns the hub counters
func (h *Hub) Stats() HubStats {
	return HubStats{
		ActiveClients:    h.ClientCount(),
		TotalConnections: h.totalConnections.Load(),
		MessagesSent:     h.messagesSent.Load(),
		MessagesDropped:  h.messagesDropped.Load(),
	}
}

// Stop terminates Run. Calling it more than once is allowed.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) remove(ctx context.Context, c *Client, reason string) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	count := len(h.clients)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.WebSocketClients.Add(ctx, -1)
	}
	h.logger.InfoContext(ctx, "client unregistered",
		slog.String("client_id", c.id),
		slog.String("reason", reason),
		slog.Duration("connection_duration", time.Since(c.connectedAt)),
		slog.Int("total_clients", count))
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
	h.logger.Info("hub stopped")
}

func (h *Hub) drop(ctx context.Context) {
	h.messagesDropped.Add(1)
	if h.metrics != nil {
		h.metrics.WebSocketDropped.Add(ctx, 1)
	}
}

func encode(messageType string, data interface{}) ([]byte, error) {
	return json.Marshal(Message{Type: messageType, Data: data, Timestamp: time.Now().UTC()})
}
