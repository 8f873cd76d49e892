// Package ws implements the WebSocket fan-out for the event feed. Every
// subscriber receives the full stream; there is no per-channel subscription
// model.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/enswatch/internal/domain"
	"github.com/alanyoungcy/enswatch/internal/metrics"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum size of an incoming message. Clients are
	// not expected to send anything beyond control frames.
	maxMessageSize = 512
)

// upgrader configures the WebSocket upgrade parameters.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS policy is enforced on the HTTP routes; the feed is open.
		return true
	},
}

// StatsProvider supplies the snapshot pushed to every new subscriber.
type StatsProvider interface {
	Snapshot() domain.StatsSnapshot
}

// client represents a single WebSocket subscriber.
type client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub manages connected subscribers and fans the event feed out to all of
// them. A subscriber whose send queue is full when a message arrives is
// evicted so one slow consumer cannot stall the feed.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	stats      StatsProvider
	queueSize  int
	logger     *slog.Logger

	// done is closed when Run returns so connection goroutines never block
	// on the register/unregister channels during shutdown.
	done  chan struct{}
	count atomic.Int64
}

// NewHub creates a Hub. queueSize is the per-subscriber send queue capacity.
func NewHub(stats StatsProvider, queueSize int, logger *slog.Logger) *Hub {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		stats:      stats,
		queueSize:  queueSize,
		logger:     logger.With(slog.String("component", "ws")),
		done:       make(chan struct{}),
	}
}

// Subscribers reports the current number of connected subscribers.
func (h *Hub) Subscribers() int {
	return int(h.count.Load())
}

// Broadcast marshals v and queues it for delivery to every subscriber. It
// blocks only on the hub's own bounded channel, never on any subscriber.
func (h *Hub) Broadcast(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("broadcast marshal failed", slog.String("error", err.Error()))
		return
	}
	h.broadcast <- data
}

// Run starts the hub's main loop: registration, unregistration, and fan-out.
// The loop exits when the provided context is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.count.Store(0)
			metrics.SubscribersConnected.Set(0)
			return ctx.Err()

		case c := <-h.register:
			h.clients[c] = true
			h.count.Store(int64(len(h.clients)))
			metrics.SubscribersConnected.Set(float64(len(h.clients)))
			h.logger.Info("subscriber connected",
				slog.String("session", c.id),
				slog.Int("total", len(h.clients)),
			)
			h.sendSnapshot(c)

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.count.Store(int64(len(h.clients)))
			metrics.SubscribersConnected.Set(float64(len(h.clients)))
			h.logger.Info("subscriber disconnected",
				slog.String("session", c.id),
				slog.Int("total", len(h.clients)),
			)

		case data := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- data:
					metrics.MessagesBroadcast.Inc()
				default:
					// Queue full: evict rather than block or silently drop.
					delete(h.clients, c)
					close(c.send)
					h.count.Store(int64(len(h.clients)))
					metrics.SubscriberEvictions.Inc()
					metrics.SubscribersConnected.Set(float64(len(h.clients)))
					h.logger.Warn("evicting slow subscriber",
						slog.String("session", c.id),
						slog.Int("queue", h.queueSize),
					)
				}
			}
		}
	}
}

// sendSnapshot queues the current stats snapshot for a just-registered
// subscriber so it has a baseline before incremental events arrive.
func (h *Hub) sendSnapshot(c *client) {
	data, err := json.Marshal(h.stats.Snapshot().Message())
	if err != nil {
		h.logger.Error("snapshot marshal failed", slog.String("error", err.Error()))
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// HandleWS upgrades an HTTP request to a WebSocket connection and registers
// the subscriber with the hub.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		id:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, h.queueSize),
	}

	select {
	case h.register <- c:
	case <-h.done:
		// The hub already shut down; never park a connection on a channel
		// nobody is draining.
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// readPump drains the connection so close frames and pongs are processed.
// Subscribers have nothing to say; any payload is ignored.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("unexpected close",
					slog.String("session", c.id),
					slog.String("error", err.Error()),
				)
			}
			return
		}
	}
}

// writePump pumps queued messages to the connection as JSON text frames and
// sends periodic pings for keepalive.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel (shutdown or eviction).
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
