package ws

import (
	"context"
	"sync"

	"DemandCast/internal/domain/models"
	domrepo "DemandCast/internal/domain/repository"
	applogger "DemandCast/pkg/logger"
)

const (
	EventAlert = "alert:new"
	EventRun   = "forecast:run"
)

// Message is the envelope written to every subscriber.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub tracks connected dashboard clients and fans notifications out to them.
// Clients whose buffer is full are dropped rather than blocking the hub.
type Hub struct {
	clients    map[*client]struct{}
	broadcast  chan Message
	register   chan *client
	unregister chan *client
	done       chan struct{}
	mu         sync.RWMutex
	l          *applogger.Logger
}

var _ domrepo.Notifier = (*Hub)(nil)

func NewHub(l *applogger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]struct{}),
		broadcast:  make(chan Message, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		l:          l,
	}
}

// Run processes registrations and broadcasts until ctx is cancelled, then
// closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			h.l.Info("websocket hub stopped")
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.l.Debug("websocket client connected", applogger.Int("clients", n))
		case c := <-h.unregister:
			h.remove(c)
		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

func (h *Hub) attach(c *client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) detach(c *client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		h.l.Debug("websocket client disconnected", applogger.Int("clients", len(h.clients)))
	}
}

func (h *Hub) fanOut(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			delete(h.clients, c)
			close(c.send)
			h.l.Warn("dropping slow websocket client")
		}
	}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) publish(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.l.Warn("websocket broadcast buffer full", applogger.String("type", msg.Type))
	}
}

func (h *Hub) NotifyRun(_ context.Context, ev models.RunEvent) error {
	h.publish(Message{Type: EventRun, Data: ev})
	return nil
}

func (h *Hub) NotifyAlert(_ context.Context, alert models.RiskAlert) error {
	h.publish(Message{Type: EventAlert, Data: alert})
	return nil
}
