package user

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"jircord/middleware"
	"jircord/module/user/service"
	"jircord/tools/security"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h, err := bcrypt.GenerateFromPassword([]byte("wonderland"), bcrypt.MinCost)
	require.NoError(t, err)

	svc := service.NewService(
		service.NewAccounts(map[string]string{"alice": string(h)}),
		service.NewMemoryDirectory(),
		security.DefaultOptions([]byte("handler-secret")),
	)
	middleware.Config(svc)

	r := gin.New()
	NewHandler(svc).Register(r)
	return r
}

func do(r http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLogin(t *testing.T) {
	r := newEngine(t)

	w := do(r, http.MethodPost, "/login", `{"username":"alice","password":"wonderland"}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	var res service.LoginResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Equal(t, "alice", res.Username)
	require.NotEmpty(t, res.Token)
	require.False(t, res.ExpiresAt.IsZero())

	cases := map[string]struct {
		body   string
		status int
	}{
		"wrong password": {`{"username":"alice","password":"x"}`, http.StatusUnauthorized},
		"unknown user":   {`{"username":"bob","password":"wonderland"}`, http.StatusUnauthorized},
		"missing field":  {`{"username":"alice"}`, http.StatusBadRequest},
		"not json":       {`username=alice`, http.StatusBadRequest},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/login", tc.body, "")
			require.Equal(t, tc.status, w.Code, w.Body.String())
		})
	}
}

func TestMeAndUsers(t *testing.T) {
	r := newEngine(t)

	w := do(r, http.MethodPost, "/login", `{"username":"alice","password":"wonderland"}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	var res service.LoginResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))

	w = do(r, http.MethodGet, "/me", "", res.Token)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"username":"alice"}`, w.Body.String())

	w = do(r, http.MethodGet, "/users", "", res.Token)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `["alice"]`, w.Body.String())

	for _, tok := range []string{"", "garbage"} {
		w = do(r, http.MethodGet, "/me", "", tok)
		require.Equal(t, http.StatusUnauthorized, w.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.EqualValues(t, 401, body["code"])
	}
}
