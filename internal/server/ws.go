package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/gameontext/gameon-room-go/internal/config"
	"github.com/gameontext/gameon-room-go/internal/protocol"
	"github.com/gameontext/gameon-room-go/internal/room"
)

// sendQueueSize is the per-connection outbound buffer. A connection
// that falls this far behind the room's broadcasts is closed rather
// than allowed to stall the sender.
const sendQueueSize = 64

// WSServer serves the room's WebSocket endpoint. It satisfies the
// lifecycle Service interface: Start blocks on the HTTP listener, Stop
// shuts it down gracefully.
type WSServer struct {
	cfg    config.ServerConfig
	logger *zap.Logger
	room   *room.Room

	httpServer *http.Server
	upgrader   websocket.Upgrader
}

// NewWSServer creates the WebSocket server for the given room.
//
// Precondition: cfg must be validated; logger and rm must be non-nil.
func NewWSServer(cfg config.ServerConfig, logger *zap.Logger, rm *room.Room) *WSServer {
	s := &WSServer{
		cfg:    cfg,
		logger: logger,
		room:   rm,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The mediator connects server-to-server; there is no
			// browser origin to check.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/room", s.handleRoom)
	mux.HandleFunc("/health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
	return s
}

// Start runs the HTTP listener until Stop is called.
//
// Postcondition: Returns nil on graceful shutdown, or the listener
// error.
func (s *WSServer) Start() error {
	s.logger.Info("websocket server listening",
		zap.String("addr", s.cfg.Addr()),
		zap.String("path", "/room"),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the listener down, giving in-flight handlers a short
// drain window.
func (s *WSServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn("websocket server shutdown", zap.Error(err))
	}
}

func (s *WSServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK " + s.room.Descriptor().Name))
}

// handleRoom upgrades the connection and hands it to the room: ack
// greeting on attach, then one read loop routing envelopes to the verb
// handlers until the peer goes away.
func (s *WSServer) handleRoom(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed",
			zap.String("remote", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	conn := newWSConn(ws, s.cfg, s.logger)
	go conn.writePump()

	if err := s.room.Attach(conn); err != nil {
		s.logger.Warn("greeting new connection", zap.Error(err))
		s.room.Broadcaster().Detach(conn.ID())
		conn.close()
		return
	}

	s.logger.Info("connection opened",
		zap.String("conn_id", conn.ID()),
		zap.String("remote", r.RemoteAddr),
	)
	go s.readPump(conn)
}

// readPump consumes inbound envelopes for one connection. Malformed
// input is logged and dropped; the connection stays up. Exits on any
// read error and triggers the implicit goodbye.
func (s *WSServer) readPump(conn *wsConn) {
	sess := room.NewSession(conn.ID())
	defer func() {
		s.room.HandleDisconnect(sess)
		conn.close()
		s.logger.Info("connection closed", zap.String("conn_id", conn.ID()))
	}()

	conn.ws.SetReadLimit(s.cfg.MaxMessageBytes)
	_ = conn.ws.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	})

	for {
		_, message, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("connection read error",
					zap.String("conn_id", conn.ID()),
					zap.Error(err),
				)
			}
			return
		}
		s.route(sess, string(message))
	}
}

// route decodes one wire message and dispatches it by verb. Unknown
// verbs are ignored so protocol additions do not break older rooms.
func (s *WSServer) route(sess *room.Session, message string) {
	env, err := protocol.Decode(message)
	if err != nil {
		s.logger.Warn("dropping malformed message",
			zap.String("conn_id", sess.ConnID),
			zap.Error(err),
		)
		return
	}

	switch env.Verb {
	case protocol.VerbRoomHello:
		p, err := protocol.ParseHello(env.Payload)
		if err != nil {
			s.logger.Warn("dropping invalid roomHello", zap.String("conn_id", sess.ConnID), zap.Error(err))
			return
		}
		s.room.HandleHello(sess, p)

	case protocol.VerbRoom:
		p, err := protocol.ParseCommand(env.Payload)
		if err != nil {
			s.logger.Warn("dropping invalid room payload", zap.String("conn_id", sess.ConnID), zap.Error(err))
			return
		}
		s.room.HandleCommand(sess, p)

	case protocol.VerbRoomGoodbye:
		p, err := protocol.ParseGoodbye(env.Payload)
		if err != nil {
			s.logger.Warn("dropping invalid roomGoodbye", zap.String("conn_id", sess.ConnID), zap.Error(err))
			return
		}
		s.room.HandleGoodbye(sess, p)

	default:
		s.logger.Debug("ignoring unknown verb",
			zap.String("conn_id", sess.ConnID),
			zap.String("verb", env.Verb),
		)
	}
}

// wsConn is one upgraded connection. It implements the room's Sender
// interface: Send enqueues onto the outbound buffer, and a single
// writePump goroutine owns all writes to the socket.
type wsConn struct {
	id     string
	ws     *websocket.Conn
	cfg    config.ServerConfig
	logger *zap.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newWSConn(ws *websocket.Conn, cfg config.ServerConfig, logger *zap.Logger) *wsConn {
	return &wsConn{
		id:     uuid.New().String(),
		ws:     ws,
		cfg:    cfg,
		logger: logger,
		send:   make(chan []byte, sendQueueSize),
		done:   make(chan struct{}),
	}
}

// ID returns the connection's unique id.
func (c *wsConn) ID() string { return c.id }

// Send enqueues an outbound message. It never blocks on a slow peer: a
// full buffer or a closed connection returns an error, on which the
// broadcaster detaches the connection.
func (c *wsConn) Send(data []byte) error {
	select {
	case <-c.done:
		return errors.New("connection closed")
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		return errors.New("send buffer full")
	}
}

// close stops the write pump and closes the socket. Safe to call more
// than once and from multiple goroutines.
func (c *wsConn) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// writePump drains the send buffer onto the socket and keeps the
// connection alive with periodic pings. Sole writer to the socket.
func (c *wsConn) writePump() {
	pingPeriod := c.cfg.PongTimeout * 9 / 10
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("write failed, closing connection",
					zap.String("conn_id", c.id),
					zap.Error(err),
				)
				c.close()
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}

		case <-c.done:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
