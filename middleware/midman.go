package middleware

import (
	"sync"
	"time"

	"jircord/logger"
	midsec "jircord/middleware/security"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	globalMgr *MiddlewareManager
	once      sync.Once
)

// MiddlewareManager holds the engine-wide middleware chain and the bearer
// auth options used by routes registered with IsAuth.
type MiddlewareManager struct {
	mu   sync.RWMutex
	mids []gin.HandlerFunc
	auth *midsec.Options
}

// Config installs the authenticator used by authenticated routes. It may
// be called again, e.g. from tests.
func Config(auth midsec.Authenticator) {
	m := Manager()
	m.mu.Lock()
	m.auth = midsec.DefaultOptions(auth)
	m.mu.Unlock()
}

func NewManager() *MiddlewareManager {
	return &MiddlewareManager{}
}

func Manager() *MiddlewareManager {
	once.Do(func() {
		globalMgr = NewManager()
	})
	return globalMgr
}

func (m *MiddlewareManager) Add(h gin.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mids = append(m.mids, h)
}

func (m *MiddlewareManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mids = nil
}

// Auth resolves the options on every request so a later Config applies to
// routes registered earlier.
func (m *MiddlewareManager) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		m.mu.RLock()
		opts := m.auth
		m.mu.RUnlock()
		midsec.Middleware(opts)(c)
	}
}

// Use mounts the registered chain on an engine.
func (m *MiddlewareManager) Use() gin.HandlerFunc {
	return func(c *gin.Context) {
		m.mu.RLock()
		handlers := append([]gin.HandlerFunc{}, m.mids...)
		m.mu.RUnlock()

		for _, h := range handlers {
			h(c)
			if c.IsAborted() {
				return
			}
		}
		c.Next()
	}
}

// AccessLog logs one line per request once the handler chain is done.
// Websocket upgrades are logged when the connection ends.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("[http] request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("remote", c.ClientIP()),
		)
	}
}

// Recovery turns a handler panic into a 500 and a logged error.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("[http] panic", zap.String("path", c.FullPath()), zap.Any("recovered", recovered))
		c.AbortWithStatus(500)
	})
}
