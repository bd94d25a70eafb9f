package hub

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"PixelBoard/internal/state"
)

// SessionState is the lifecycle of one realtime connection.
type SessionState int32

const (
	Connecting SessionState = iota
	Open
	Closed
)

func (s SessionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("SessionState(%d)", int32(s))
	}
}

// Conn is the part of *websocket.Conn a Session uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// SessionConfig tunes the per-session pumps.
type SessionConfig struct {
	// SendBuffer is how many frames may queue before the session counts
	// as too slow and is evicted.
	SendBuffer int
	WriteWait  time.Duration
	PongWait   time.Duration
	// MaxMessageSize bounds inbound frames; clients have nothing to say
	// beyond control frames.
	MaxMessageSize int64
}

// DefaultSessionConfig returns the settings used when none are configured.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		SendBuffer:     256,
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		MaxMessageSize: 512,
	}
}

func (c SessionConfig) withDefaults() SessionConfig {
	d := DefaultSessionConfig()
	if c.SendBuffer <= 0 {
		c.SendBuffer = d.SendBuffer
	}
	if c.WriteWait <= 0 {
		c.WriteWait = d.WriteWait
	}
	if c.PongWait <= 0 {
		c.PongWait = d.PongWait
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = d.MaxMessageSize
	}
	return c
}

// Session is one client connection. It moves Connecting -> Open -> Closed
// and never goes back.
type Session struct {
	id     string
	conn   Conn
	cfg    SessionConfig
	logger *slog.Logger

	state     atomic.Int32
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewSession wraps an upgraded connection. The session starts Connecting.
func NewSession(conn Conn, cfg SessionConfig, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	id := uuid.NewString()
	return &Session{
		id:     id,
		conn:   conn,
		cfg:    cfg,
		logger: logger.With("session", id),
		send:   make(chan []byte, cfg.SendBuffer),
		done:   make(chan struct{}),
	}
}

func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// Deliver queues frame for the write pump without blocking.
func (s *Session) Deliver(frame []byte) error {
	if s.State() == Closed {
		return fmt.Errorf("%w: session closed", state.ErrChannel)
	}
	select {
	case <-s.done:
		return fmt.Errorf("%w: session closed", state.ErrChannel)
	default:
	}
	select {
	case s.send <- frame:
		return nil
	default:
		return fmt.Errorf("%w: send buffer full", state.ErrChannel)
	}
}

// Close moves the session to Closed and tears the connection down in the
// background. Safe to call more than once and from any goroutine.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.state.Store(int32(Closed))
		close(s.done)
		go func() {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.cfg.WriteWait))
			_ = s.conn.Close()
		}()
	})
}

// Done is closed once the session is Closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Serve registers the session with h, pumps frames until the client goes
// away or the session is evicted, then unregisters it. It blocks for the
// lifetime of the connection.
func (s *Session) Serve(h *Hub) {
	if !s.state.CompareAndSwap(int32(Connecting), int32(Open)) {
		return
	}
	h.Register(s)

	go s.writePump()
	s.readPump()

	h.Unregister(s)
	s.Close()
}

// readPump drains inbound frames so control frames (pong, close) are
// processed, and returns when the connection fails.
func (s *Session) readPump() {
	s.conn.SetReadLimit(s.cfg.MaxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && s.State() != Closed {
				s.logger.Debug("read failed", "error", err)
			}
			return
		}
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(s.cfg.PongWait * 9 / 10)
	defer ticker.Stop()

	for {
		select {
		case frame := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.logger.Debug("write failed", "error", err)
				s.Close()
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.cfg.WriteWait)); err != nil {
				s.Close()
				return
			}
		case <-s.done:
			return
		}
	}
}
