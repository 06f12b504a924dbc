// Package websocket delivers coordinator outcomes to UI clients connected over
// WebSocket and turns their requests into coordinator calls.
package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sirosfoundation/go-local-server/internal/coordinator"
	"github.com/sirosfoundation/go-local-server/internal/domain"
	"github.com/sirosfoundation/go-local-server/internal/network"
	"github.com/sirosfoundation/go-local-server/pkg/middleware"
)

// Event types sent to clients
const (
	TypeServerStarted = "server_started"
	TypeServerStopped = "server_stopped"
	TypeError         = "error"
	TypeHandshakeDone = "FIN_INIT"
	TypeProtocolError = "ERROR"
)

// Client actions
const (
	ActionStartServer = "start_server"
	ActionStopServer  = "stop_server"
)

// Event is a message sent from the hub to clients
type Event struct {
	MessageID string               `json:"message_id,omitempty"`
	Type      string               `json:"type"`
	Config    *domain.ServerConfig `json:"config,omitempty"`
	Error     *domain.ErrorKind    `json:"error,omitempty"`
}

// ClientMessage is a message received from a client
type ClientMessage struct {
	AppToken string `json:"appToken,omitempty"` // For handshake
	Action   string `json:"action,omitempty"`
}

// Coordinator is the part of the coordinator the hub drives
type Coordinator interface {
	AttachView(view coordinator.ViewSink)
	DetachView()
	StartServer()
	StopServer()
}

// writeWait bounds every write. Events are written while the coordinator lock
// is held, so a client that stops reading must not stall it.
const writeWait = 5 * time.Second

// clientConnection represents a connected WebSocket client
type clientConnection struct {
	id        string
	conn      *websocket.Conn
	writeWait time.Duration
	writeMu   sync.Mutex
}

func (c *clientConnection) writeJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(v)
}

// Hub is a coordinator.ViewSink fanning events out to every authenticated
// client. The coordinator sees the hub as attached while at least one client
// is connected.
type Hub struct {
	secret      string
	coordinator Coordinator
	source      network.Source
	logger      *zap.Logger
	upgrader    websocket.Upgrader

	// attachMu orders attach/detach decisions; it is never taken from a
	// ViewSink callback.
	attachMu sync.Mutex

	clientsMu sync.RWMutex
	clients   map[string]*clientConnection
}

// NewHub creates a Hub. secret validates the handshake token.
func NewHub(secret string, coord Coordinator, source network.Source, logger *zap.Logger) *Hub {
	return &Hub{
		secret:      secret,
		coordinator: coord,
		source:      source,
		logger:      logger.Named("websocket-hub"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Authentication happens in the handshake message
				return true
			},
		},
		clients: make(map[string]*clientConnection),
	}
}

// HandleConnection handles a new WebSocket connection
func (h *Hub) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection", zap.Error(err))
		return
	}

	h.logger.Info("WebSocket client connected")
	go h.handleClient(conn)
}

func (h *Hub) handleClient(conn *websocket.Conn) {
	defer conn.Close()

	var client *clientConnection

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				h.logger.Error("WebSocket read error", zap.Error(err))
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			h.logger.Error("Failed to parse message", zap.Error(err))
			continue
		}

		if client == nil {
			if msg.AppToken == "" {
				_ = conn.WriteJSON(Event{Type: TypeProtocolError, MessageID: "not_authenticated"})
				continue
			}
			subject, err := middleware.ValidateToken(h.secret, msg.AppToken)
			if err != nil {
				h.logger.Warn("Handshake failed - invalid token", zap.Error(err))
				_ = conn.WriteJSON(Event{Type: TypeProtocolError, MessageID: "auth_failed"})
				continue
			}

			client = &clientConnection{id: uuid.NewString(), conn: conn, writeWait: writeWait}
			if err := client.writeJSON(Event{Type: TypeHandshakeDone}); err != nil {
				return
			}
			h.logger.Info("WebSocket handshake established",
				zap.String("client_id", client.id),
				zap.String("subject", subject))
			h.register(client)
			continue
		}

		switch msg.Action {
		case ActionStartServer:
			h.coordinator.StartServer()
		case ActionStopServer:
			h.coordinator.StopServer()
		default:
			_ = client.writeJSON(Event{Type: TypeProtocolError, MessageID: "unknown_action"})
		}
	}

	if client != nil {
		h.unregister(client)
	}
}

// register adds client and (re)attaches the hub so every client, including
// the new one, receives the current state.
func (h *Hub) register(client *clientConnection) {
	h.attachMu.Lock()
	defer h.attachMu.Unlock()

	h.clientsMu.Lock()
	h.clients[client.id] = client
	h.clientsMu.Unlock()

	h.coordinator.AttachView(h)
}

// unregister removes client and detaches the hub when it was the last one
func (h *Hub) unregister(client *clientConnection) {
	h.attachMu.Lock()
	defer h.attachMu.Unlock()

	h.clientsMu.Lock()
	delete(h.clients, client.id)
	remaining := len(h.clients)
	h.clientsMu.Unlock()

	h.logger.Info("WebSocket client disconnected", zap.String("client_id", client.id))
	if remaining == 0 {
		h.coordinator.DetachView()
	}
}

// ClientCount returns the number of authenticated clients
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// OnServerStarted implements coordinator.ViewSink
func (h *Hub) OnServerStarted(cfg *domain.ServerConfig) {
	h.broadcast(Event{Type: TypeServerStarted, Config: cfg})
}

// OnServerStopped implements coordinator.ViewSink
func (h *Hub) OnServerStopped() {
	h.broadcast(Event{Type: TypeServerStopped})
}

// OnError implements coordinator.ViewSink
func (h *Hub) OnError(err domain.LifecycleError) {
	kind := err.Kind
	h.broadcast(Event{Type: TypeError, Error: &kind})
}

// SubscribeToNetworkChanges implements coordinator.ViewSink
func (h *Hub) SubscribeToNetworkChanges() {
	h.source.Subscribe()
}

func (h *Hub) broadcast(ev Event) {
	ev.MessageID = uuid.NewString()

	h.clientsMu.RLock()
	clients := make([]*clientConnection, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clientsMu.RUnlock()

	for _, c := range clients {
		if err := c.writeJSON(ev); err != nil {
			// The read loop notices the closed connection and unregisters it
			h.logger.Warn("Failed to deliver event, closing client",
				zap.String("client_id", c.id),
				zap.String("type", ev.Type),
				zap.Error(err))
			_ = c.conn.Close()
		}
	}
}

// Close closes all connections
func (h *Hub) Close() {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	for _, client := range h.clients {
		_ = client.conn.Close()
	}
}

var _ coordinator.ViewSink = (*Hub)(nil)
