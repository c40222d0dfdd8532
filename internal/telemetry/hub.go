package telemetry

import (
	"context"
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/vitarenta/internal/metrics"
	"github.com/ukydev/vitarenta/internal/models"
)

// MessageTypeTelemetry tags live telemetry messages.
const MessageTypeTelemetry = "telemetry"

// ErrHubStopped is returned when a client connects after the hub has stopped.
var ErrHubStopped = errors.New("telemetry hub stopped")

// Message is the envelope written to websocket clients.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type envelope struct {
	agenceID string
	msg      Message
}

// Hub fans telemetry out to connected clients. Clients bound to an agency
// only receive samples of that agency's vehicles.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
}

// NewHub returns a Hub. Serve must be running for it to deliver messages.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan envelope, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Serve runs the hub until ctx is done, then closes every client. Clients
// that register or unregister afterwards do not block.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			h.stopOnce.Do(func() { close(h.done) })
			return ctx.Err()
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketClients.Set(float64(n))
			log.WithFields(log.Fields{"client": c.id, "total_clients": n}).Info("Telemetry client connected")
		case c := <-h.unregister:
			h.remove(c)
		case e := <-h.broadcast:
			h.deliver(e)
		}
	}
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.WebSocketClients.Set(float64(n))
	log.WithFields(log.Fields{"client": c.id, "total_clients": n}).Info("Telemetry client disconnected")
}

func (h *Hub) deliver(e envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.agenceID != "" && c.agenceID != e.agenceID {
			continue
		}
		select {
		case c.send <- e.msg:
		default:
			// slow consumer
			close(c.send)
			delete(h.clients, c)
		}
	}
	metrics.WebSocketClients.Set(float64(len(h.clients)))
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
	metrics.WebSocketClients.Set(0)
}

// Broadcast queues a sample for delivery. It never blocks; samples are
// dropped when the queue is full.
func (h *Hub) Broadcast(agenceID string, sample *models.Telemetry) {
	select {
	case h.broadcast <- envelope{agenceID: agenceID, msg: Message{Type: MessageTypeTelemetry, Data: sample}}:
	default:
		log.WithField("vehicule_id", sample.VehiculeID).Warn("Telemetry broadcast queue full, dropping sample")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
