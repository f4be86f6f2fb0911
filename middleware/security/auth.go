package security

import (
	"context"
	"net/http"
	"strings"

	"jircord/tools/errs"

	"github.com/gin-gonic/gin"
)

// Context keys set by Middleware.
const (
	CtxAuthKey     = "authorization"
	CtxIdentityKey = "identity"
)

// Authenticator maps a bearer token to an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

type Options struct {
	Auth Authenticator
	// HeaderToken is read before Authorization: Bearer.
	HeaderToken               string
	EnableAuthorizationBearer bool
}

func DefaultOptions(auth Authenticator) *Options {
	return &Options{
		Auth:                      auth,
		EnableAuthorizationBearer: true,
	}
}

// Middleware rejects requests without a valid token with 401 and the
// Unauthorized code error as body.
func Middleware(opts *Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		if opts == nil || opts.Auth == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrUnauthorized.WithDetail("no authenticator"))
			return
		}
		token := ""
		if opts.HeaderToken != "" {
			token = strings.TrimSpace(c.GetHeader(opts.HeaderToken))
		}
		if token == "" && opts.EnableAuthorizationBearer {
			if authz := strings.TrimSpace(c.GetHeader("Authorization")); len(authz) > 7 &&
				strings.EqualFold(authz[:7], "bearer ") {
				token = strings.TrimSpace(authz[7:])
			}
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrUnauthorized.WithDetail("no token"))
			return
		}

		identity, err := opts.Auth.Authenticate(c.Request.Context(), token)
		if err != nil || identity == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrUnauthorized.WithDetail("invalid token"))
			return
		}
		c.Set(CtxAuthKey, token)
		c.Set(CtxIdentityKey, identity)
		c.Next()
	}
}

// Identity returns the identity Middleware stored, or "".
func Identity(c *gin.Context) string {
	return c.GetString(CtxIdentityKey)
}
