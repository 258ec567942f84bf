package ws

import (
	"context"
	"errors"
	"net/http"

	"nxfs_api/internal/domain"
	"nxfs_api/internal/http/response"
	"nxfs_api/internal/logger"
	"nxfs_api/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// UserLookup resolves the connecting user so staff-only events can be routed.
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

// HandleWS upgrades /ws?token=<JWT> connections. An empty allowedOrigin
// accepts any Origin. users may be nil, in which case no connection is staff.
func HandleWS(hub *Hub, users UserLookup, allowedOrigin string) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "" {
				return true
			}
			return r.Header.Get("Origin") == allowedOrigin
		},
	}

	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			response.Unauthorized(c, response.CodeAuthRequired, "Authentication credentials were not provided.")
			return
		}

		userID, err := service.ParseJWT(token)
		if err != nil {
			response.Unauthorized(c, response.CodeAuthFailed, "Invalid token.")
			return
		}

		staff := false
		if users != nil {
			u, err := users.GetByID(c.Request.Context(), userID)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				response.Error(c, err)
				return
			}
			if err != nil || !u.IsActive {
				response.Unauthorized(c, response.CodeAuthFailed, "User not found or inactive.")
				return
			}
			staff = u.IsStaff
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.WithContext(c.Request.Context()).Warn("ws upgrade error", "error", err)
			return
		}

		client := NewClient(userID, conn, hub)
		client.Staff = staff
		go client.Run()
	}
}
