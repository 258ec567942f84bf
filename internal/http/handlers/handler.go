package handlers

import (
	"context"
	"strconv"

	"nxfs_api/internal/http/middleware"
	"nxfs_api/internal/http/response"
	"nxfs_api/internal/service"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	Tasks     *service.TaskService
	Blog      *service.BlogService
	Memo      *service.MemoService
	Geocode   *service.GeocodeService
	Queue     service.GeocodeEnqueuer
	Providers *service.ProviderService
	Users     *service.UserService
	Usage     *service.UsageService
	Docker    *service.DockerService
	Chat      *service.ChatService
	Presence  ChatPresence
	Audit     *service.AuditService
}

// getUserID returns the authenticated user, aborting with 401 when absent.
func getUserID(c *gin.Context) (int64, bool) {
	uid, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, response.CodeAuthRequired, "Authentication credentials were not provided.")
		return 0, false
	}
	return uid, true
}

// pathID parses a positive integer path parameter.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.Validation(c, name, "A valid integer is required.")
		return 0, false
	}
	return id, true
}

func orderNo(c *gin.Context) (int16, bool) {
	n, err := strconv.ParseInt(c.Param("order_no"), 10, 16)
	if err != nil || n <= 0 {
		response.Validation(c, "order_no", "A valid order number is required.")
		return 0, false
	}
	return int16(n), true
}

// queryBool treats "1", "true" and "yes" as true.
func queryBool(c *gin.Context, key string) bool {
	switch c.Query(key) {
	case "1", "true", "True", "yes":
		return true
	}
	return false
}

func (h *Handler) audit(c *gin.Context, userID int64, action, category string, details map[string]interface{}) {
	h.Audit.LogWithRequest(auditContext(c), userID, action, category, c.ClientIP(), c.Request.UserAgent(), details)
}

// auditContext detaches the audit write from request cancellation.
func auditContext(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}
