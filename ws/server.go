// Package ws provides the spectator WebSocket endpoint.
package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/mizuho42/agent-arena/arena"
	"github.com/mizuho42/agent-arena/config"
	"github.com/mizuho42/agent-arena/hub"
)

// BaseMessage is the envelope for incoming client messages.
type BaseMessage struct {
	Type string `json:"type"`
	Ts   int64  `json:"ts,omitempty"`
}

// Server handles spectator WebSocket connections. Spectators are read-only:
// the only message they send is the hello handshake, everything else flows
// from the arena through the hub.
type Server struct {
	cfg      *config.Config
	hub      *hub.Hub
	arena    *arena.Arena
	upgrader websocket.Upgrader
}

// NewServer creates a new WebSocket server.
func NewServer(cfg *config.Config, h *hub.Hub, a *arena.Arena) *Server {
	return &Server{
		cfg:   cfg,
		hub:   h,
		arena: a,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Spectator feed is public
				return true
			},
		},
	}
}

// HandleWebSocket handles WebSocket upgrade and connection lifecycle.
func (s *Server) HandleWebSocket(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("Failed to upgrade WebSocket: %v", err)
		return err
	}

	wsConn := s.hub.NewConnection(conn)
	s.hub.Register(wsConn)

	conn.SetReadLimit(s.cfg.MaxMessageSize)

	go s.writePump(wsConn)
	go s.readPump(wsConn)

	return nil
}

// readPump reads messages from the WebSocket connection.
func (s *Server) readPump(conn *hub.Connection) {
	defer func() {
		s.hub.Unregister(conn)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		s.handleMessage(conn, message)
	}
}

// writePump writes messages to the WebSocket connection.
func (s *Server) writePump(conn *hub.Connection) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if !ok {
				// Hub closed the channel
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("Failed to write message: %v", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches incoming messages. A hello gets an ack plus an
// immediate snapshot so a late spectator catches up; anything else is
// ignored.
func (s *Server) handleMessage(conn *hub.Connection, data []byte) {
	var baseMsg BaseMessage
	if err := json.Unmarshal(data, &baseMsg); err != nil {
		return
	}

	if baseMsg.Type != "hello" {
		return
	}

	ack := hub.Event{Type: "hello_ack", Ts: time.Now().UnixMilli()}
	if err := s.hub.SendJSONToConnection(conn, ack); err != nil {
		log.Printf("WARN: failed to ack spectator %s: %v", conn.ID, err)
		return
	}

	snap := hub.Event{
		Type:    "snapshot",
		Ts:      time.Now().UnixMilli(),
		Payload: s.arena.Snapshot(),
	}
	if err := s.hub.SendJSONToConnection(conn, snap); err != nil {
		log.Printf("WARN: failed to send snapshot to spectator %s: %v", conn.ID, err)
	}
}
