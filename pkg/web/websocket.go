package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dbehnke/rf-nexus/pkg/logger"
	"github.com/dbehnke/rf-nexus/pkg/metrics"
	"github.com/dbehnke/rf-nexus/pkg/protocols"
	"github.com/gorilla/websocket"
)

// Live feed event types
const (
	EventCodeReceived = "code_received"
	EventCodeSent     = "code_sent"
)

const writeWait = 10 * time.Second

// Event represents a WebSocket event to be broadcast to clients
type Event struct {
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Marshal converts an event to JSON bytes
func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Client represents a WebSocket client connection
type Client struct {
	ID       string
	conn     *websocket.Conn
	messages chan []byte
}

// WebSocketHub manages WebSocket client connections and broadcasts
type WebSocketHub struct {
	clients    map[*Client]bool
	broadcast  chan Event
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once
	nextID     atomic.Uint64
	collector  *metrics.Collector
	logger     *logger.Logger
	mu         sync.RWMutex
}

// NewWebSocketHub creates a new WebSocket hub
func NewWebSocketHub(log *logger.Logger) *WebSocketHub {
	return &WebSocketHub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     log,
	}
}

// Run starts the WebSocket hub event loop
func (h *WebSocketHub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			if h.collector != nil {
				h.collector.ClientConnected(client.ID)
			}
			h.logger.Debug("WebSocket client registered",
				logger.String("client_id", client.ID))

		case client := <-h.unregister:
			h.remove(client)
			h.logger.Debug("WebSocket client unregistered",
				logger.String("client_id", client.ID))

		case event := <-h.broadcast:
			data, err := event.Marshal()
			if err != nil {
				h.logger.Error("Failed to marshal event",
					logger.Error(err))
				continue
			}

			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.messages <- data:
				default:
					h.logger.Warn("Client message buffer full, skipping",
						logger.String("client_id", client.ID))
				}
			}
			h.mu.RUnlock()

		case <-ctx.Done():
			h.logger.Info("WebSocket hub shutting down")
			h.stopOnce.Do(func() { close(h.done) })
			h.mu.Lock()
			for client := range h.clients {
				close(client.messages)
				if h.collector != nil {
					h.collector.ClientDisconnected(client.ID)
				}
			}
			h.clients = make(map[*Client]bool)
			h.mu.Unlock()
			return
		}
	}
}

func (h *WebSocketHub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.messages)
	if h.collector != nil {
		h.collector.ClientDisconnected(client.ID)
	}
}

// Broadcast sends an event to all connected clients
func (h *WebSocketHub) Broadcast(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("Broadcast channel full, dropping event",
			logger.String("event_type", event.Type))
	}
}

// Handler returns an HTTP handler for WebSocket connections
func (h *WebSocketHub) Handler() http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written the error response
			h.logger.Debug("WebSocket upgrade failed", logger.Error(err))
			return
		}
		client := &Client{
			ID:       fmt.Sprintf("%s#%d", r.RemoteAddr, h.nextID.Add(1)),
			conn:     conn,
			messages: make(chan []byte, 256),
		}
		select {
		case h.register <- client:
		case <-h.done:
			_ = conn.Close()
			return
		}

		// Reader goroutine: drain reads to detect close
		go func() {
			defer func() {
				select {
				case h.unregister <- client:
				case <-h.done:
				}
				_ = client.conn.Close()
			}()
			client.conn.SetReadLimit(1024)
			for {
				if _, _, err := client.conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		// Writer loop
		go func() {
			for msg := range client.messages {
				_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := client.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					_ = client.conn.Close()
					return
				}
			}
			_ = client.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		}()
	})
}

// GetClientCount returns the number of connected clients
func (h *WebSocketHub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastCodeReceived announces a decoded code
func (h *WebSocketHub) BroadcastCodeReceived(protocol string, msg protocols.Message, pulses int) {
	h.Broadcast(codeEvent(EventCodeReceived, protocol, msg, pulses))
}

// BroadcastCodeSent announces an encoded code
func (h *WebSocketHub) BroadcastCodeSent(protocol string, msg protocols.Message, pulses int) {
	h.Broadcast(codeEvent(EventCodeSent, protocol, msg, pulses))
}

func codeEvent(kind, protocol string, msg protocols.Message, pulses int) Event {
	return Event{
		Type:      kind,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"protocol": protocol,
			"message":  msg,
			"pulses":   pulses,
		},
	}
}
