package user

import (
	"net/http"

	"jircord/middleware"
	midsec "jircord/middleware/security"
	"jircord/module/user/service"
	"jircord/tools/errs"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type Handler struct {
	svc *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts /login, /me and /users. The bearer routes use the
// authenticator installed with middleware.Config.
func (h *Handler) Register(r gin.IRoutes) {
	middleware.POST(r, "/login", h.Login, middleware.RouteOpt{})
	middleware.GET(r, "/me", h.Me, middleware.RouteOpt{IsAuth: true})
	middleware.GET(r, "/users", h.Users, middleware.RouteOpt{IsAuth: true})
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errs.ErrInvalidPayload.WithDetail("body must be {username, password}"))
		return
	}
	res, err := h.svc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"username": midsec.Identity(c)})
}

func (h *Handler) Users(c *gin.Context) {
	users, err := h.svc.Directory().All(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if users == nil {
		users = []string{}
	}
	c.JSON(http.StatusOK, users)
}

func writeError(c *gin.Context, err error) {
	ce := errs.As(err)
	status := http.StatusInternalServerError
	switch ce.Code {
	case errs.InvalidPayload:
		status = http.StatusBadRequest
	case errs.Unauthorized:
		status = http.StatusUnauthorized
	case errs.LogUnavailable:
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, ce)
}
