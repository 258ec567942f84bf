package middleware

import (
	"context"
	"errors"
	"strings"

	"nxfs_api/internal/domain"
	"nxfs_api/internal/http/response"
	"nxfs_api/internal/service"

	"github.com/gin-gonic/gin"
)

// UserIDKey is the gin context key holding the authenticated user id.
const UserIDKey = "user_id"

// UserID returns the authenticated user id set by JWT or AgentAuth.
func UserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok && id > 0
}

// bearerToken extracts the credential of "Authorization: <scheme> <token>"
// for one of the accepted schemes.
func bearerToken(header string, schemes ...string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 {
		return ""
	}
	for _, s := range schemes {
		if strings.EqualFold(parts[0], s) {
			return strings.TrimSpace(parts[1])
		}
	}
	return ""
}

// JWT requires a valid "Authorization: Bearer <token>".
func JWT() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, response.CodeAuthRequired, "Authentication credentials were not provided.")
			return
		}
		token := bearerToken(header, "Bearer")
		if token == "" {
			response.Unauthorized(c, response.CodeAuthFailed, "Invalid authorization header.")
			return
		}

		userID, err := service.ParseJWT(token)
		if err != nil {
			msg := "Invalid token."
			if errors.Is(err, service.ErrTokenExpired) {
				msg = "Token has expired."
			}
			response.Unauthorized(c, response.CodeAuthFailed, msg)
			return
		}
		c.Set(UserIDKey, userID)
		c.Next()
	}
}

type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

// RequireStaff lets only active staff users through. Must run after JWT.
func RequireStaff(users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := UserID(c)
		if !ok {
			response.Unauthorized(c, response.CodeAuthRequired, "Authentication credentials were not provided.")
			return
		}
		u, err := users.GetByID(c.Request.Context(), uid)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				response.Unauthorized(c, response.CodeAuthFailed, "User not found.")
				return
			}
			response.Error(c, err)
			return
		}
		if !u.IsStaff || !u.IsActive {
			response.Forbidden(c, "You do not have permission to perform this action.")
			return
		}
		c.Next()
	}
}
