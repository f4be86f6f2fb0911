package chat

import (
	"net/http"
	"time"

	"jircord/logger"
	"jircord/tools/safe"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type ServerOptions struct {
	Router      *Router
	Verifier    Verifier
	Liveness    Liveness
	AuthTimeout time.Duration
	CheckOrigin func(*http.Request) bool // nil accepts any origin
}

// Server upgrades /ws requests into router sessions.
type Server struct {
	router      *Router
	verifier    Verifier
	live        Liveness
	authTimeout time.Duration
	upgrader    websocket.Upgrader
}

func NewServer(opts ServerOptions) *Server {
	safe.MustNotNil(opts.Router, "router")
	safe.MustNotNil(opts.Verifier, "verifier")
	check := opts.CheckOrigin
	if check == nil {
		check = func(*http.Request) bool { return true }
	}
	return &Server{
		router:      opts.Router,
		verifier:    opts.Verifier,
		live:        opts.Liveness.norm(),
		authTimeout: opts.AuthTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     check,
		},
	}
}

// HandleWS authenticates the credential, upgrades the request and then
// serves the session's read side on the handler goroutine.
func (s *Server) HandleWS(c *gin.Context) {
	identity, authErr := AuthenticateWithin(c.Request.Context(), s.verifier,
		CredentialFrom(c.Request), s.authTimeout)

	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Info("[WS] upgrade failed", zap.String("remote", c.ClientIP()), zap.Error(err))
		return
	}
	conn := NewWSConn(ws, s.live)

	if authErr != nil {
		s.router.metrics.recordRejected()
		logger.Info("[WS] handshake rejected", zap.String("remote", conn.RemoteAddr()), zap.Error(authErr))
		_ = conn.CloseWith(CloseUnauthorized, "unauthorized")
		return
	}

	sess := s.router.NewSession(identity, conn)
	if !s.router.Submit(Connected{Session: sess}) {
		_ = conn.CloseWith(websocket.CloseGoingAway, "server shutting down")
		return
	}
	logger.Debug("[WS] session opened",
		zap.String("user", identity), zap.String("session", sess.ID()), zap.String("remote", conn.RemoteAddr()))

	safe.Go("ws-write", func() { sess.WritePump(s.live.PingInterval) })
	sess.ReadLoop(s.router)
}
