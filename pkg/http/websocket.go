package http

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"interview-analyzer/pkg/analysis"
	"interview-analyzer/pkg/metrics"
	"interview-analyzer/pkg/util"
)

const (
	writeWait       = 10 * time.Second
	maxClientFrame  = 4096
	broadcastBuffer = 256
)

// HubMessage is a control message exchanged with websocket clients. Lifecycle
// events are sent as analysis.Event values.
type HubMessage struct {
	Type      string    `json:"type"`
	ClientID  string    `json:"client_id,omitempty"`
	Key       string    `json:"key,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventHub pushes analysis lifecycle events to websocket clients. It is a
// push subscriber on the event bus; each client follows one key, or every
// key when its key is empty.
type EventHub struct {
	logger       *logrus.Entry
	upgrader     websocket.Upgrader
	bus          *analysis.EventBus
	panics       *util.PanicHandler
	buffer       int
	pingInterval time.Duration

	clients    map[*hubClient]bool
	clientsMu  sync.RWMutex
	register   chan *hubClient
	unregister chan *hubClient
	broadcast  chan analysis.Event

	removeSub func()
	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
	running   atomic.Bool
}

type hubClient struct {
	id   string
	hub  *EventHub
	conn *websocket.Conn
	send chan []byte

	mu  sync.RWMutex
	key string
}

// NewEventHub creates a hub for bus. Call Start before serving clients.
func NewEventHub(logger *logrus.Logger, bus *analysis.EventBus, buffer int, pingInterval time.Duration) *EventHub {
	if buffer <= 0 {
		buffer = 64
	}
	if pingInterval <= 0 {
		pingInterval = 54 * time.Second
	}
	return &EventHub{
		logger: logger.WithField("component", "event_hub"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		bus:          bus,
		panics:       util.NewPanicHandler(logger),
		buffer:       buffer,
		pingInterval: pingInterval,
		clients:      make(map[*hubClient]bool),
		register:     make(chan *hubClient),
		unregister:   make(chan *hubClient),
		broadcast:    make(chan analysis.Event, broadcastBuffer),
		done:         make(chan struct{}),
	}
}

// Start subscribes the hub to the bus and runs its event loop
func (h *EventHub) Start() {
	h.startOnce.Do(func() {
		h.running.Store(true)
		h.removeSub = h.bus.AddSubscriber(h)
		h.panics.SafeGo("event_hub", h.run)
	})
}

// Close unsubscribes from the bus and disconnects every client
func (h *EventHub) Close() {
	h.closeOnce.Do(func() {
		if h.removeSub != nil {
			h.removeSub()
		}
		close(h.done)
	})
}

// IsRunning reports whether the event loop is serving clients
func (h *EventHub) IsRunning() bool {
	return h.running.Load()
}

// ClientCount returns the number of connected clients
func (h *EventHub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// OnEvent implements analysis.Subscriber. It never blocks the bus.
func (h *EventHub) OnEvent(event analysis.Event) {
	select {
	case h.broadcast <- event:
	default:
		metrics.RecordEventDropped(string(event.Type))
		h.logger.WithFields(logrus.Fields{
			"event_type": event.Type,
			"key":        event.Key,
		}).Warn("Event hub broadcast channel full, dropping event")
	}
}

func (h *EventHub) run() {
	defer h.running.Store(false)

	for {
		select {
		case client := <-h.register:
			h.clientsMu.Lock()
			h.clients[client] = true
			h.clientsMu.Unlock()
			h.logger.WithFields(logrus.Fields{
				"client_id": client.id,
				"key":       client.filter(),
			}).Debug("WebSocket client registered")

		case client := <-h.unregister:
			h.cleanupClients([]*hubClient{client})

		case event := <-h.broadcast:
			if stale := h.broadcastEvent(event); len(stale) > 0 {
				h.cleanupClients(stale)
			}

		case <-h.done:
			h.clientsMu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.clientsMu.Unlock()
			h.logger.Info("Event hub stopped")
			return
		}
	}
}

// broadcastEvent queues an event for matching clients and returns the
// clients whose buffers are full
func (h *EventHub) broadcastEvent(event analysis.Event) []*hubClient {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal event")
		return nil
	}

	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	var stale []*hubClient
	for client := range h.clients {
		if key := client.filter(); key != "" && key != event.Key {
			continue
		}
		select {
		case client.send <- data:
		default:
			stale = append(stale, client)
		}
	}
	return stale
}

// cleanupClients removes clients and closes their send channels
func (h *EventHub) cleanupClients(clients []*hubClient) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	for _, client := range clients {
		if _, ok := h.clients[client]; ok {
			delete(h.clients, client)
			close(client.send)
			h.logger.WithField("client_id", client.id).Debug("WebSocket client unregistered")
		}
	}
}

// sendTo queues data for one registered client without blocking
func (h *EventHub) sendTo(client *hubClient, data []byte) {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	if !h.clients[client] {
		return
	}
	select {
	case client.send <- data:
	default:
	}
}

// ServeHTTP upgrades the request and follows ?key= for the new client
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.IsRunning() {
		http.Error(w, "event hub not running", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Error("Failed to upgrade to WebSocket")
		return
	}

	client := &hubClient{
		id:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, h.buffer),
		key:  r.URL.Query().Get("key"),
	}

	// queued before registering so it is always the first message
	if data, err := json.Marshal(HubMessage{
		Type:      "connected",
		ClientID:  client.id,
		Key:       client.key,
		Timestamp: time.Now(),
	}); err == nil {
		client.send <- data
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	h.panics.SafeGo("event_hub_writer", client.writePump)
	h.panics.SafeGo("event_hub_reader", client.readPump)
}

func (c *hubClient) filter() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.key
}

func (c *hubClient) setFilter(key string) {
	c.mu.Lock()
	c.key = key
	c.mu.Unlock()
}

// readPump handles incoming messages from the client
func (c *hubClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	pongWait := c.hub.pingInterval * 10 / 9
	c.conn.SetReadLimit(maxClientFrame)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.WithError(err).Debug("WebSocket read error")
			}
			return
		}
		c.handleMessage(message)
	}
}

// writePump sends queued messages and pings the client
func (c *hubClient) writePump() {
	ticker := time.NewTicker(c.hub.pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
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

// handleMessage processes subscribe, unsubscribe and ping requests
func (c *hubClient) handleMessage(message []byte) {
	var msg HubMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.hub.logger.WithError(err).Debug("Failed to parse client message")
		return
	}

	var reply HubMessage
	switch msg.Type {
	case "subscribe":
		c.setFilter(msg.Key)
		reply = HubMessage{Type: "subscribed", Key: msg.Key}
	case "unsubscribe":
		c.setFilter("")
		reply = HubMessage{Type: "unsubscribed"}
	case "ping":
		reply = HubMessage{Type: "pong"}
	default:
		c.hub.logger.WithField("type", msg.Type).Debug("Unknown message type from client")
		return
	}

	reply.ClientID = c.id
	reply.Timestamp = time.Now()
	if data, err := json.Marshal(reply); err == nil {
		c.hub.sendTo(c, data)
	}
}
