package chat

import (
	"sync"
	"sync/atomic"
	"time"

	"jircord/logger"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type SessionState int32

const (
	StateConnecting SessionState = iota
	StateActive
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Session is one authenticated connection. Its identity never changes.
// Frames queued with Enqueue are written by WritePump; a full queue closes
// the session instead of blocking the caller.
type Session struct {
	id       string
	identity string
	conn     Conn
	send     chan []byte
	state    atomic.Int32

	closeOnce   sync.Once
	done        chan struct{}
	closeCode   int
	closeReason string
	onClose     func(*Session)
}

func newSession(id, identity string, conn Conn, queue int, onClose func(*Session)) *Session {
	if queue <= 0 {
		queue = 256
	}
	return &Session{
		id:       id,
		identity: identity,
		conn:     conn,
		send:     make(chan []byte, queue),
		done:     make(chan struct{}),
		onClose:  onClose,
	}
}

func (s *Session) ID() string          { return s.id }
func (s *Session) Identity() string    { return s.identity }
func (s *Session) State() SessionState { return SessionState(s.state.Load()) }
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) activate() bool {
	return s.state.CompareAndSwap(int32(StateConnecting), int32(StateActive))
}

// Enqueue queues p for the write pump without blocking.
func (s *Session) Enqueue(p []byte) bool {
	if s.State() == StateClosed || len(p) == 0 {
		return false
	}
	select {
	case s.send <- p:
		return true
	default:
		logger.Warn("[WS] send queue full, closing session",
			zap.String("session", s.id), zap.String("user", s.identity))
		s.Close(CloseSlowConsumer, "send queue full")
		return false
	}
}

// Close moves the session to Closed exactly once. The close frame itself
// goes out from the write pump.
func (s *Session) Close(code int, reason string) {
	s.closeOnce.Do(func() {
		s.closeCode, s.closeReason = code, reason
		s.state.Store(int32(StateClosed))
		close(s.done)
		if s.onClose != nil {
			s.onClose(s)
		}
	})
}

// WritePump owns every write to the connection and returns once the
// session is closed or a write fails.
func (s *Session) WritePump(pingEvery time.Duration) {
	if pingEvery <= 0 {
		pingEvery = DefaultLiveness().PingInterval
	}
	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()

	for {
		select {
		case p := <-s.send:
			if err := s.conn.WriteFrame(p); err != nil {
				logger.Info("[WS] write failed", zap.String("session", s.id), zap.Error(err))
				s.Close(websocket.CloseAbnormalClosure, "")
				_ = s.conn.Close()
				return
			}
		case <-ticker.C:
			if err := s.conn.Ping(); err != nil {
				logger.Info("[WS] ping failed", zap.String("session", s.id), zap.Error(err))
				s.Close(websocket.CloseAbnormalClosure, "")
				_ = s.conn.Close()
				return
			}
		case <-s.done:
			s.flush()
			if err := s.conn.CloseWith(s.closeCode, s.closeReason); err != nil {
				logger.Debug("[WS] close", zap.String("session", s.id), zap.Error(err))
			}
			return
		}
	}
}

// flush writes what is already queued, so a slow-consumer close does not
// hide frames that made it into the queue.
func (s *Session) flush() {
	if s.closeCode == CloseSlowConsumer || s.closeCode == websocket.CloseAbnormalClosure {
		return
	}
	for {
		select {
		case p := <-s.send:
			if err := s.conn.WriteFrame(p); err != nil {
				return
			}
		default:
			return
		}
	}
}

// ReadLoop decodes inbound frames and hands them to the router until the
// connection fails. It closes the session on the way out.
func (s *Session) ReadLoop(r *Router) {
	defer s.Close(websocket.CloseNormalClosure, "")
	for {
		raw, err := s.conn.ReadFrame()
		if err != nil {
			if isExpectedClose(err) || s.State() == StateClosed {
				logger.Debug("[WS] peer closed", zap.String("session", s.id), zap.Error(err))
			} else {
				logger.Info("[WS] read err", zap.String("session", s.id), zap.Error(err))
			}
			return
		}
		ev, err := parseInbound(s, raw)
		if err != nil {
			sample := raw
			if len(sample) > 256 {
				sample = sample[:256]
			}
			logger.Info("[WS] dropped frame",
				zap.String("session", s.id), zap.Error(err), zap.ByteString("sample", sample))
			r.metrics.recordDrop("invalid_payload")
			continue
		}
		if !r.Submit(ev) {
			return
		}
	}
}
