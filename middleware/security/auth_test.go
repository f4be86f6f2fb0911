package security

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type authFunc func(ctx context.Context, token string) (string, error)

func (f authFunc) Authenticate(ctx context.Context, token string) (string, error) {
	return f(ctx, token)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := authFunc(func(_ context.Context, token string) (string, error) {
		if token == "good" {
			return "alice", nil
		}
		return "", errors.New("bad token")
	})
	opts := DefaultOptions(auth)
	opts.HeaderToken = "X-Token"

	r := gin.New()
	r.GET("/me", Middleware(opts), func(c *gin.Context) {
		c.String(http.StatusOK, Identity(c))
	})

	cases := map[string]struct {
		header, value string
		status        int
	}{
		"bearer":      {"Authorization", "Bearer good", http.StatusOK},
		"bearer case": {"Authorization", "bearer good", http.StatusOK},
		"custom":      {"X-Token", "good", http.StatusOK},
		"bad token":   {"Authorization", "Bearer nope", http.StatusUnauthorized},
		"basic":       {"Authorization", "Basic Zm9vOmJhcg==", http.StatusUnauthorized},
		"no header":   {"", "", http.StatusUnauthorized},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set(tc.header, tc.value)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			require.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusOK {
				require.Equal(t, "alice", w.Body.String())
			}
		})
	}
}

func TestMiddlewareWithoutAuthenticator(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", Middleware(nil), func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
