// Package ws provides the WebSocket event stream for connected observers.
package ws

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/keti-tsn/trafficd/internal/config"
	"github.com/keti-tsn/trafficd/internal/hub"
	"github.com/keti-tsn/trafficd/internal/service"
)

// errBufferFull marks an observer that cannot keep up with the event flow.
var errBufferFull = errors.New("send buffer full")

// Connection is one observer: a websocket client with a buffered outbound
// queue drained by its write pump.
type Connection struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	writeMu   sync.Mutex
}

// ID implements hub.Observer.
func (c *Connection) ID() string { return c.id }

// Deliver implements hub.Observer without blocking the dispatcher: a full
// buffer counts as a dead observer and tears the connection down.
func (c *Connection) Deliver(data []byte) error {
	select {
	case c.send <- data:
		return nil
	default:
		c.close()
		return errBufferFull
	}
}

func (c *Connection) close() {
	c.closeOnce.Do(func() { c.conn.Close() })
}

func (c *Connection) writeMessage(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(messageType, data)
}

// Server upgrades client connections and bridges them onto the hub.
type Server struct {
	cfg      *config.Config
	hub      *hub.Hub
	service  *service.Service
	upgrader websocket.Upgrader
}

// NewServer creates the websocket server.
func NewServer(cfg *config.Config, h *hub.Hub, svc *service.Service) *Server {
	return &Server{
		cfg:     cfg,
		hub:     h,
		service: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// The UI is served from the same host; other origins are
				// accepted as the API carries no credentials.
				return true
			},
		},
	}
}

// HandleWebSocket upgrades the connection, registers it as an observer and
// immediately acknowledges with a connected message.
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("Failed to upgrade WebSocket: %v", err)
		return err
	}

	conn := &Connection{
		id:   uuid.New().String(),
		conn: ws,
		send: make(chan []byte, 256),
	}
	s.hub.Register(conn)

	ws.SetReadLimit(s.cfg.MaxMessageSize)

	ack, _ := json.Marshal(map[string]string{
		"type":    "connected",
		"message": "Connected to traffic control service",
	})
	conn.Deliver(ack)

	go s.writePump(conn)
	go s.readPump(conn)

	return nil
}

func (s *Server) readPump(conn *Connection) {
	defer func() {
		s.hub.Unregister(conn.ID())
		conn.close()
	}()

	conn.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	conn.conn.SetPongHandler(func(string) error {
		conn.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
		s.handleMessage(conn, message)
	}
}

func (s *Server) writePump(conn *Connection) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		conn.close()
	}()

	for {
		select {
		case message := <-conn.send:
			// send is never closed; teardown happens through conn.close(),
			// which fails the next read/write and ends both pumps.
			conn.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.writeMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			conn.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.writeMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// inboundMessage is the only client-to-server message shape.
type inboundMessage struct {
	Type string `json:"type"`
}

// handleMessage answers direct queries on the requesting connection only;
// commands go through the REST API.
func (s *Server) handleMessage(conn *Connection, data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.reply(conn, map[string]any{"type": "error", "message": "invalid JSON message"})
		return
	}

	switch msg.Type {
	case "get_stats":
		s.reply(conn, map[string]any{
			"type": "stats",
			"data": s.service.StatsAll(),
		})
	default:
		s.reply(conn, map[string]any{"type": "error", "message": "unknown message type: " + msg.Type})
	}
}

func (s *Server) reply(conn *Connection, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := conn.Deliver(data); err != nil {
		log.Printf("WARN: reply to %s failed: %v", conn.ID(), err)
	}
}
