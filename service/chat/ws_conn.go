package chat

import (
	"errors"
	"net"
	"time"

	"github.com/gorilla/websocket"
)

// Close codes sent to clients. 4401 mirrors HTTP 401 in the private range.
const (
	CloseUnauthorized = 4401
	CloseSlowConsumer = websocket.CloseTryAgainLater
)

// Conn is the transport a Session writes to and reads from. Closing and
// pinging may be called concurrently with a blocked ReadFrame.
type Conn interface {
	ReadFrame() ([]byte, error)
	WriteFrame(p []byte) error
	Ping() error
	CloseWith(code int, reason string) error
	Close() error
	RemoteAddr() string
}

// Liveness is the keepalive policy of a websocket connection.
type Liveness struct {
	PingInterval  time.Duration
	PongWait      time.Duration
	WriteWait     time.Duration
	MaxFrameBytes int64
}

func DefaultLiveness() Liveness {
	return Liveness{
		PingInterval:  25 * time.Second,
		PongWait:      60 * time.Second,
		WriteWait:     10 * time.Second,
		MaxFrameBytes: 64 << 10,
	}
}

func (l Liveness) norm() Liveness {
	d := DefaultLiveness()
	if l.PingInterval <= 0 {
		l.PingInterval = d.PingInterval
	}
	if l.PongWait <= 0 {
		l.PongWait = d.PongWait
	}
	if l.WriteWait <= 0 {
		l.WriteWait = d.WriteWait
	}
	if l.MaxFrameBytes <= 0 {
		l.MaxFrameBytes = d.MaxFrameBytes
	}
	return l
}

type wsConn struct {
	ws   *websocket.Conn
	live Liveness
}

// NewWSConn wraps an upgraded gorilla connection. The read deadline is
// pushed forward by every pong.
func NewWSConn(ws *websocket.Conn, live Liveness) Conn {
	live = live.norm()
	ws.SetReadLimit(live.MaxFrameBytes)
	_ = ws.SetReadDeadline(time.Now().Add(live.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(live.PongWait))
	})
	return &wsConn{ws: ws, live: live}
}

func (c *wsConn) ReadFrame() ([]byte, error) {
	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		if mt == websocket.TextMessage || mt == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (c *wsConn) WriteFrame(p []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.live.WriteWait))
	return c.ws.WriteMessage(websocket.TextMessage, p)
}

func (c *wsConn) Ping() error {
	return c.ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(c.live.WriteWait))
}

func (c *wsConn) CloseWith(code int, reason string) error {
	err := c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), time.Now().Add(c.live.WriteWait))
	if errors.Is(err, websocket.ErrCloseSent) {
		err = nil
	}
	return errors.Join(err, c.ws.Close())
}

func (c *wsConn) Close() error { return c.ws.Close() }

func (c *wsConn) RemoteAddr() string {
	if a := c.ws.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}

// isExpectedClose reports read errors that are an ordinary end of a
// connection rather than something worth a warning.
func isExpectedClose(err error) bool {
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, net.ErrClosed)
}
