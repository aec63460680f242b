package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/plantlens/plantlens/pkg/types"
	"github.com/plantlens/plantlens/server/internal/store"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong response before treating the
	// connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod controls how often the server sends WebSocket ping frames.
	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-client outgoing message buffer depth.
	sendBufSize = 16
)

// Event names.
const (
	EventReport   = "report"
	EventDatasets = "datasets"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Message is the JSON envelope sent to clients.
type Message struct {
	Event   string `json:"event"`
	Dataset string `json:"dataset,omitempty"`
	Data    any    `json:"data"`
}

// DatasetLister is the part of the store the hub reads.
type DatasetLister interface {
	List() []store.Info
}

// Hub manages WebSocket client connections and broadcasts reports and the
// dataset list to all of them.
type Hub struct {
	datasets DatasetLister
	interval time.Duration

	mu      sync.RWMutex
	clients map[*client]struct{}
	latest  map[string][]byte // last encoded report per dataset
}

// client represents one connected WebSocket client.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// New creates a Hub that lists datasets from ds every interval.
func New(ds DatasetLister, interval time.Duration) *Hub {
	return &Hub{
		datasets: ds,
		interval: interval,
		clients:  make(map[*client]struct{}),
		latest:   make(map[string][]byte),
	}
}

// Run starts the dataset broadcast loop. It blocks until ctx is cancelled,
// then closes all active connections.
func (h *Hub) Run(ctx context.Context) {
	t := time.NewTicker(h.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-t.C:
			if data, err := h.datasetsMessage(); err == nil {
				h.broadcast(data)
			}
		}
	}
}

// Publish sends r to every client and remembers it for clients that connect
// later.
func (h *Hub) Publish(dataset string, r *types.Report) {
	data, err := json.Marshal(Message{Event: EventReport, Dataset: dataset, Data: r})
	if err != nil {
		slog.Error("ws: encode report", "dataset", dataset, "err", err)
		return
	}
	h.mu.Lock()
	h.latest[dataset] = data
	h.mu.Unlock()
	h.broadcast(data)
}

// Forget drops the remembered report of dataset.
func (h *Hub) Forget(dataset string) {
	h.mu.Lock()
	delete(h.latest, dataset)
	h.mu.Unlock()
}

// ServeHTTP upgrades the HTTP connection to WebSocket and serves the client.
// It sends the dataset list and the latest reports immediately on connect,
// then continues to receive broadcasts. Blocks until the connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, sendBufSize),
	}
	h.register(c)
	defer h.unregister(c)

	if data, err := h.datasetsMessage(); err == nil {
		h.offer(c, data)
	}
	for _, data := range h.latestReports() {
		h.offer(c, data)
	}

	go c.writePump()
	c.readPump() // blocks until connection closes
}

// Count returns the number of currently connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// --- internal ---------------------------------------------------------------

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// offer queues data for c without blocking. The read lock keeps c.send from
// being closed mid-send.
func (h *Hub) offer(c *client, data []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (h *Hub) broadcast(data []byte) {
	h.mu.RLock()
	var slow []*client
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	// Clients whose outgoing buffer is full are disconnected.
	for _, c := range slow {
		h.unregister(c)
	}
}

func (h *Hub) datasetsMessage() ([]byte, error) {
	return json.Marshal(Message{Event: EventDatasets, Data: h.datasets.List()})
}

func (h *Hub) latestReports() [][]byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.latest))
	for id := range h.latest {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([][]byte, len(ids))
	for i, id := range ids {
		out[i] = h.latest[id]
	}
	return out
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// writePump drains the client's send channel and forwards messages to the
// WebSocket connection. It also sends periodic ping frames. Runs in its own
// goroutine per client.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				// Channel was closed (hub is shutting down or client removed).
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads frames from the connection to process control messages (pong,
// close) and detect disconnects. Blocks until the connection closes.
func (c *client) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
