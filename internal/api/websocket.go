package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/stardrift/server/internal/auth"
	"github.com/stardrift/server/internal/config"
	"github.com/stardrift/server/internal/database"
	"github.com/stardrift/server/internal/performance"
	"github.com/stardrift/server/internal/streaming"
	"github.com/stardrift/server/internal/worldmap"
)

const (
	// Supported WebSocket protocol versions
	ProtocolVersion1 = "stardrift-v1"

	// Default ping interval (30 seconds)
	defaultPingInterval = 30 * time.Second

	// Pong wait timeout (60 seconds)
	pongWait = 60 * time.Second

	// Write timeout (10 seconds)
	writeTimeout = 10 * time.Second
)

// WebSocketConnection represents an active WebSocket connection
type WebSocketConnection struct {
	conn     *websocket.Conn
	userID   int64
	username string
	role     string
	version  string
	send     chan []byte
	hub      *WebSocketHub
}

// WebSocketHub manages all active WebSocket connections
type WebSocketHub struct {
	connections map[*WebSocketConnection]bool
	broadcast   chan []byte
	register    chan *WebSocketConnection
	unregister  chan *WebSocketConnection
	mu          sync.RWMutex
}

// WebSocketMessage represents a WebSocket message
type WebSocketMessage struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// WebSocketError represents an error message sent over WebSocket
type WebSocketError struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// NewWebSocketHub creates a new WebSocket hub
func NewWebSocketHub() *WebSocketHub {
	return &WebSocketHub{
		connections: make(map[*WebSocketConnection]bool),
		broadcast:   make(chan []byte, 256),
		register:    make(chan *WebSocketConnection),
		unregister:  make(chan *WebSocketConnection),
	}
}

// Run starts the hub's main loop
func (h *WebSocketHub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.connections[conn] = true
			h.mu.Unlock()
			log.Printf("WebSocket connection registered: user_id=%d, version=%s", conn.userID, conn.version)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.connections[conn]; ok {
				delete(h.connections, conn)
				close(conn.send)
			}
			h.mu.Unlock()
			log.Printf("WebSocket connection unregistered: user_id=%d", conn.userID)

		case message := <-h.broadcast:
			// Dropping a slow consumer mutates the connection set, so the
			// write lock is required even on this delivery path.
			h.mu.Lock()
			for conn := range h.connections {
				select {
				case conn.send <- message:
				default:
					close(conn.send)
					delete(h.connections, conn)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends a message to all connected clients
func (h *WebSocketHub) Broadcast(message []byte) {
	h.broadcast <- message
}

// SendToUser sends a message to a specific user. Like the broadcast path,
// it may drop a slow consumer, so it takes the write lock.
func (h *WebSocketHub) SendToUser(userID int64, message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.connections {
		if conn.userID == userID {
			select {
			case conn.send <- message:
			default:
				close(conn.send)
				delete(h.connections, conn)
			}
		}
	}
}

// WebSocketHandlers handles WebSocket connections
type WebSocketHandlers struct {
	hub        *WebSocketHub
	config     *config.Config
	jwtService *auth.JWTService
	world      *streaming.Manager
	tracker    *streaming.TrackedPosition
	players    *database.PlayerStorage
	profiler   *performance.Profiler
	upgrader   websocket.Upgrader
}

// NewWebSocketHandlers creates a new WebSocket handlers instance. players may
// be nil when running without a database.
func NewWebSocketHandlers(cfg *config.Config, world *streaming.Manager, tracker *streaming.TrackedPosition,
	players *database.PlayerStorage, profiler *performance.Profiler) *WebSocketHandlers {
	jwtService := auth.NewJWTService(cfg)

	// Same origin allowlist as the HTTP CORS layer.
	allowedOrigins := make(map[string]bool, len(cfg.Server.AllowedOrigins))
	for _, origin := range cfg.Server.AllowedOrigins {
		allowedOrigins[origin] = true
	}

	return &WebSocketHandlers{
		hub:        NewWebSocketHub(),
		config:     cfg,
		jwtService: jwtService,
		world:      world,
		tracker:    tracker,
		players:    players,
		profiler:   profiler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					// Non-browser clients do not send an Origin header.
					return true
				}
				return allowedOrigins[origin]
			},
		},
	}
}

// ForwardWorldEvents pushes chunk lifecycle events from the streaming manager
// to every connected client. Runs until the subscription's channel closes.
func (h *WebSocketHandlers) ForwardWorldEvents() {
	events, cancel := h.world.Events().Subscribe(256)
	defer cancel()

	for event := range events {
		msg := WebSocketMessage{Type: "world_event"}
		data, err := json.Marshal(event)
		if err != nil {
			log.Printf("Failed to marshal world event: %v", err)
			continue
		}
		msg.Data = data

		messageBytes, err := json.Marshal(msg)
		if err != nil {
			log.Printf("Failed to marshal world_event message: %v", err)
			continue
		}
		h.hub.Broadcast(messageBytes)
	}
}

// HandleWebSocket handles WebSocket connection upgrades
func (h *WebSocketHandlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Authenticate the connection
	token, err := h.extractToken(r)
	if err != nil {
		log.Printf("WebSocket authentication failed: %v", err)
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	// Validate token
	claims, err := h.jwtService.ValidateAccessToken(token)
	if err != nil {
		log.Printf("WebSocket token validation failed: %v", err)
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	// Negotiate protocol version
	requestedVersions := r.Header.Get("Sec-WebSocket-Protocol")
	selectedVersion := h.negotiateVersion(requestedVersions)
	if selectedVersion == "" {
		log.Printf("WebSocket version negotiation failed: requested=%s", requestedVersions)
		http.Error(w, "Unsupported protocol version", http.StatusBadRequest)
		return
	}

	responseHeaders := http.Header{}
	responseHeaders.Set("Sec-WebSocket-Protocol", selectedVersion)

	// Upgrade connection
	conn, err := h.upgrader.Upgrade(w, r, responseHeaders)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	wsConn := &WebSocketConnection{
		conn:     conn,
		userID:   claims.UserID,
		username: claims.Username,
		role:     claims.Role,
		version:  selectedVersion,
		send:     make(chan []byte, 256),
		hub:      h.hub,
	}

	h.hub.register <- wsConn

	go wsConn.writePump()
	go wsConn.readPump(h)
}

// extractToken extracts JWT token from request (query param or header)
func (h *WebSocketHandlers) extractToken(r *http.Request) (string, error) {
	// Try query parameter first (common for WebSocket)
	token := r.URL.Query().Get("token")
	if token != "" {
		return token, nil
	}

	// Try Authorization header
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1], nil
		}
	}

	return "", fmt.Errorf("missing authentication token")
}

// negotiateVersion selects the highest supported protocol version
func (h *WebSocketHandlers) negotiateVersion(requested string) string {
	if requested == "" {
		// Default to v1 if no version specified
		return ProtocolVersion1
	}

	requestedVersions := strings.Split(requested, ",")
	for i := range requestedVersions {
		requestedVersions[i] = strings.TrimSpace(requestedVersions[i])
	}

	// Supported versions in order (highest first)
	supportedVersions := []string{ProtocolVersion1}

	for _, supported := range supportedVersions {
		for _, requested := range requestedVersions {
			if requested == supported {
				return supported
			}
		}
	}

	return ""
}

// readPump handles incoming messages from the WebSocket connection
func (c *WebSocketConnection) readPump(handlers *WebSocketHandlers) {
	defer func() {
		c.hub.unregister <- c
		if err := c.conn.Close(); err != nil {
			log.Printf("Failed to close connection: %v", err)
		}
	}()

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("Failed to set read deadline: %v", err)
		return
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			log.Printf("Failed to set read deadline in pong handler: %v", err)
			return err
		}
		return nil
	})

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var msg WebSocketMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			c.sendError("invalid_message", "Invalid message format", "InvalidMessageFormat")
			continue
		}

		handlers.handleMessage(c, &msg)
	}
}

// writePump handles outgoing messages to the WebSocket connection
func (c *WebSocketConnection) writePump() {
	ticker := time.NewTicker(defaultPingInterval)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil {
			log.Printf("Failed to close connection: %v", err)
		}
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				log.Printf("Failed to set write deadline: %v", err)
				return
			}
			if !ok {
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					log.Printf("Failed to write close message: %v", err)
				}
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			if _, err := w.Write(message); err != nil {
				if closeErr := w.Close(); closeErr != nil {
					log.Printf("Failed to close writer after write error: %v", closeErr)
				}
				return
			}

			// Send queued messages
			n := len(c.send)
			for i := 0; i < n; i++ {
				if _, err := w.Write([]byte{'\n'}); err != nil {
					if closeErr := w.Close(); closeErr != nil {
						log.Printf("Failed to close writer after write error: %v", closeErr)
					}
					return
				}
				if _, err := w.Write(<-c.send); err != nil {
					if closeErr := w.Close(); closeErr != nil {
						log.Printf("Failed to close writer after write error: %v", closeErr)
					}
					return
				}
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				log.Printf("Failed to set write deadline for ping: %v", err)
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendError sends an error message to the client
func (c *WebSocketConnection) sendError(id, errorMsg, code string) {
	errorResp := WebSocketError{
		Type:    "error",
		ID:      id,
		Error:   errorMsg,
		Message: errorMsg,
		Code:    code,
	}

	messageBytes, err := json.Marshal(errorResp)
	if err != nil {
		log.Printf("Failed to marshal error message: %v", err)
		return
	}

	select {
	case c.send <- messageBytes:
	default:
		log.Printf("Failed to send error message: channel full")
	}
}

// sendMessage marshals and queues a message for the connection.
func (c *WebSocketConnection) sendMessage(msg WebSocketMessage) {
	messageBytes, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal %s response: %v", msg.Type, err)
		return
	}

	select {
	case c.send <- messageBytes:
	default:
		log.Printf("Failed to send %s: channel full", msg.Type)
	}
}

// handleMessage routes messages to appropriate handlers
func (h *WebSocketHandlers) handleMessage(conn *WebSocketConnection, msg *WebSocketMessage) {
	switch msg.Type {
	case "ping":
		h.handlePing(conn, msg)
	case "player_move":
		h.handlePlayerMove(conn, msg)
	case "chunk_query":
		h.handleChunkQuery(conn, msg)
	default:
		conn.sendError(msg.ID, "Unknown message type", "UnknownMessageType")
	}
}

// handlePing responds to ping messages
func (h *WebSocketHandlers) handlePing(conn *WebSocketConnection, msg *WebSocketMessage) {
	conn.sendMessage(WebSocketMessage{
		Type: "pong",
		ID:   msg.ID,
	})
}

// PlayerMoveData represents the data payload for a player_move message
type PlayerMoveData struct {
	Position PositionReport `json:"position"`
}

// PlayerMoveAck represents the data payload for a player_move_ack message
type PlayerMoveAck struct {
	Chunk worldmap.ChunkCoord `json:"chunk"`
}

// handlePlayerMove handles player movement updates. The reported position
// drives the streaming window; the next tick reacts to it.
func (h *WebSocketHandlers) handlePlayerMove(conn *WebSocketConnection, msg *WebSocketMessage) {
	var moveData PlayerMoveData
	if err := json.Unmarshal(msg.Data, &moveData); err != nil {
		conn.sendError(msg.ID, "Invalid player_move format", "InvalidMessageFormat")
		return
	}

	op := h.profiler.Start("ws.player_move")
	position := worldmap.Point{X: moveData.Position.X, Y: moveData.Position.Y}
	h.tracker.MoveTo(position)

	if h.players != nil {
		if err := h.players.UpdatePosition(conn.userID, position); err != nil {
			log.Printf("Failed to persist position for player %d: %v", conn.userID, err)
		}
	}
	op.End()

	ack, err := json.Marshal(PlayerMoveAck{
		Chunk: worldmap.WorldToChunk(position, h.config.World.ChunkSize),
	})
	if err != nil {
		log.Printf("Failed to marshal player_move_ack payload: %v", err)
		return
	}

	conn.sendMessage(WebSocketMessage{
		Type: "player_move_ack",
		ID:   msg.ID,
		Data: ack,
	})
}

// ChunkQueryData represents the data payload for a chunk_query message
type ChunkQueryData struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// handleChunkQuery returns the streaming state and entities of one chunk.
func (h *WebSocketHandlers) handleChunkQuery(conn *WebSocketConnection, msg *WebSocketMessage) {
	var query ChunkQueryData
	if err := json.Unmarshal(msg.Data, &query); err != nil {
		conn.sendError(msg.ID, "Invalid chunk_query format", "InvalidMessageFormat")
		return
	}

	coord := worldmap.ChunkCoord{X: query.X, Y: query.Y}
	state := h.world.State(coord)

	data, err := json.Marshal(ChunkResponse{
		Coord:    coord,
		ChunkID:  worldmap.ChunkID(coord),
		State:    state.String(),
		Loaded:   state == streaming.StateFullDetail || state == streaming.StateLowDetail,
		Entities: h.world.EntitiesInChunk(coord),
	})
	if err != nil {
		log.Printf("Failed to marshal chunk_data payload: %v", err)
		return
	}

	conn.sendMessage(WebSocketMessage{
		Type: "chunk_data",
		ID:   msg.ID,
		Data: data,
	})
}

// GetHub returns the WebSocket hub (for use in other packages)
func (h *WebSocketHandlers) GetHub() *WebSocketHub {
	return h.hub
}
