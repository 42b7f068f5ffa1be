package api

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/gmsas95/dosewise/internal/medication"
	"github.com/gmsas95/dosewise/internal/metrics"
	"github.com/gmsas95/dosewise/internal/reminder"
)

// Message types pushed to clients
const (
	MessageNotification      = "notification"
	MessageAgenda            = "agenda"
	MessagePermissionRequest = "permission_request"
	MessageError             = "error"
)

// inbound message type for a permission answer; anything else is an action
const messagePermission = "permission"

const (
	clientBuffer  = 32
	actionTimeout = 10 * time.Second
)

// ErrNoClients is returned by RequestPermission when nobody can answer
var ErrNoClients = errors.New("no notification clients connected")

type message struct {
	Type         string                 `json:"type"`
	Notification *reminder.Notification `json:"notification,omitempty"`
	Agenda       *medication.Snapshot   `json:"agenda,omitempty"`
	Error        string                 `json:"error,omitempty"`
}

type inbound struct {
	Type    string `json:"type"`
	Granted bool   `json:"granted"`
	reminder.ActionEvent
}

// wsConn is the part of *websocket.Conn the hub uses
type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
}

type client struct {
	send chan []byte
}

// Hub fans notifications and agenda updates out to WebSocket clients and
// routes the actions they send back. It is a reminder.Notifier and a
// reminder.PermissionSource.
type Hub struct {
	marker  reminder.Marker
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu      sync.RWMutex
	clients map[*client]struct{}
	waiters []chan bool
	closed  bool
}

func NewHub(marker reminder.Marker, logger *zap.Logger, m *metrics.Metrics) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		marker:  marker,
		logger:  logger,
		metrics: m,
		clients: make(map[*client]struct{}),
	}
}

// Show broadcasts a notification. Having no clients is not an error.
func (h *Hub) Show(ctx context.Context, n reminder.Notification) error {
	h.broadcast(message{Type: MessageNotification, Notification: &n})
	return nil
}

// PushAgenda broadcasts the latest agenda. It has the shape of a store
// listener and never blocks.
func (h *Hub) PushAgenda(snap medication.Snapshot) {
	h.broadcast(message{Type: MessageAgenda, Agenda: &snap})
}

// RequestPermission asks every client and returns the first answer
func (h *Hub) RequestPermission(ctx context.Context) (bool, error) {
	answer := make(chan bool, 1)

	h.mu.Lock()
	if len(h.clients) == 0 {
		h.mu.Unlock()
		return false, ErrNoClients
	}
	h.waiters = append(h.waiters, answer)
	h.mu.Unlock()

	h.broadcast(message{Type: MessagePermissionRequest})

	select {
	case granted := <-answer:
		return granted, nil
	case <-ctx.Done():
		h.dropWaiter(answer)
		return false, ctx.Err()
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Serve runs one WebSocket connection until it closes. The client first
// receives the current agenda.
func (h *Hub) Serve(conn *websocket.Conn, greeting medication.Snapshot) {
	h.serve(conn, greeting)
}

func (h *Hub) serve(conn wsConn, greeting medication.Snapshot) {
	c := h.register()
	if c == nil {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for data := range c.send {
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Debug("WebSocket write failed", zap.Error(err))
				return
			}
		}
	}()

	h.sendTo(c, message{Type: MessageAgenda, Agenda: &greeting})

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			h.logger.Debug("WebSocket closed", zap.Error(err))
			break
		}
		if mt == websocket.TextMessage {
			h.handle(c, data)
		}
	}

	h.unregister(c)
	<-done
}

func (h *Hub) handle(c *client, data []byte) {
	var in inbound
	if err := json.Unmarshal(data, &in); err != nil {
		h.sendTo(c, message{Type: MessageError, Error: "invalid message format"})
		return
	}

	if in.Type == messagePermission {
		h.answer(in.Granted)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()
	if err := reminder.RouteAction(ctx, h.marker, in.ActionEvent); err != nil {
		h.logger.Warn("Notification action failed",
			zap.String("action", in.Action),
			zap.String("prescription_id", in.PrescriptionID),
			zap.Error(err),
		)
		h.sendTo(c, message{Type: MessageError, Error: err.Error()})
	}
}

func (h *Hub) register() *client {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	c := &client{send: make(chan []byte, clientBuffer)}
	h.clients[c] = struct{}{}
	h.metrics.IncrementWSClients()
	h.logger.Info("Notification client connected", zap.Int("clients", len(h.clients)))
	return c
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.metrics.DecrementWSClients()
	h.logger.Info("Notification client disconnected", zap.Int("clients", len(h.clients)))
}

// Close disconnects every client and refuses new ones
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		h.metrics.DecrementWSClients()
	}
}

func (h *Hub) broadcast(msg message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to encode hub message", zap.String("type", msg.Type), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		h.enqueue(c, msg.Type, data)
	}
}

func (h *Hub) sendTo(c *client, msg message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; ok {
		h.enqueue(c, msg.Type, data)
	}
}

// enqueue must be called with h.mu held
func (h *Hub) enqueue(c *client, kind string, data []byte) {
	select {
	case c.send <- data:
	default:
		h.logger.Warn("Notification client too slow, message dropped", zap.String("type", kind))
	}
}

func (h *Hub) answer(granted bool) {
	h.mu.Lock()
	waiters := h.waiters
	h.waiters = nil
	h.mu.Unlock()

	for _, w := range waiters {
		w <- granted
	}
}

func (h *Hub) dropWaiter(w chan bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, x := range h.waiters {
		if x == w {
			h.waiters = append(h.waiters[:i], h.waiters[i+1:]...)
			return
		}
	}
}
