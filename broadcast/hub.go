// Package broadcast fans ingestion events out to live client connections.
package broadcast

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// EventNewContribution is published once per persisted contribution.
const EventNewContribution = "NEW_CONTRIBUTION"

const writeWait = 5 * time.Second

// Event is the JSON message delivered to every live client.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Conn is the part of a websocket connection the hub uses. *websocket.Conn
// satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type client struct {
	id   string
	conn Conn
	open atomic.Bool
	mu   sync.Mutex // one writer per connection
}

// Hub is the registry of live connections. Create one per server with NewHub.
type Hub struct {
	log *zerolog.Logger

	mu      sync.RWMutex
	clients map[string]*client

	publishMu sync.Mutex
}

func NewHub(log *zerolog.Logger) *Hub {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &Hub{log: log, clients: make(map[string]*client)}
}

// Register adds conn to the hub and returns its id. The connection is read
// until it fails or closes, at which point it is removed.
func (h *Hub) Register(conn Conn) string {
	c := &client{id: uuid.NewString(), conn: conn}
	c.open.Store(true)

	h.mu.Lock()
	h.clients[c.id] = c
	total := len(h.clients)
	h.mu.Unlock()

	h.log.Info().Str("client_id", c.id).Int("clients", total).Msg("live client connected")

	go h.readPump(c)
	return c.id
}

// readPump drains inbound frames; clients only listen, so payloads are
// discarded.
func (h *Hub) readPump(c *client) {
	defer h.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) remove(c *client) {
	c.open.Store(false)

	h.mu.Lock()
	delete(h.clients, c.id)
	total := len(h.clients)
	h.mu.Unlock()

	_ = c.conn.Close()
	h.log.Info().Str("client_id", c.id).Int("clients", total).Msg("live client disconnected")
}

// Publish serialises ev once and writes it to every open connection. Clients
// that are not open are skipped. It returns the number of clients reached.
func (h *Hub) Publish(ev Event) (int, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return 0, fmt.Errorf("marshal event: %w", err)
	}

	// concurrent publishes are delivered in full, one after the other
	h.publishMu.Lock()
	defer h.publishMu.Unlock()

	delivered := 0
	for _, c := range h.snapshot() {
		if !c.open.Load() {
			continue
		}
		if err := c.write(payload); err != nil {
			h.log.Warn().Err(err).Str("client_id", c.id).Msg("live client write failed")
			c.open.Store(false)
			_ = c.conn.Close() // the read pump then unregisters it
			continue
		}
		delivered++
	}
	return delivered, nil
}

// Count returns the number of registered connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	for _, c := range h.snapshot() {
		c.open.Store(false)
		_ = c.conn.Close()
	}
}

func (h *Hub) snapshot() []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, c)
	}
	return out
}

func (c *client) write(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}
