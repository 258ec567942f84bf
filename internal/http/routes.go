package http

import (
	"time"

	"nxfs_api/internal/config"
	"nxfs_api/internal/http/handlers"
	"nxfs_api/internal/http/middleware"
	"nxfs_api/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	bulkRateLimit    = 30
	agentRateLimit   = 120
	scopedRateWindow = time.Minute
)

// RegisterRoutes mounts every endpoint. users backs the staff check.
func RegisterRoutes(r *gin.Engine, h *handlers.Handler, health *handlers.HealthHandler, hub *ws.Hub, users middleware.UserLookup, cfg *config.Config) {
	r.GET("/health", health.Health)
	r.GET("/healthz", health.Liveness)
	r.GET("/readyz", health.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws", ws.HandleWS(hub, users, cfg.AllowedOrigin))

	v1 := r.Group("/api/v1")
	v1.Use(middleware.RateLimit("api", cfg.APIRateLimit, cfg.APIRateWindow))
	registerAPIRoutes(v1, h, users, cfg)
}

func registerAPIRoutes(api *gin.RouterGroup, h *handlers.Handler, users middleware.UserLookup, cfg *config.Config) {
	bulkLimit := middleware.RateLimit("bulk", bulkRateLimit, scopedRateWindow)
	agent := api.Group("", middleware.AgentAuth(cfg.AgentToken, cfg.AgentSigningSecret),
		middleware.RateLimit("agent", agentRateLimit, scopedRateWindow))
	auth := api.Group("", middleware.JWT())

	// User profile and devices
	auth.GET("/me", h.Me)
	auth.PATCH("/me", h.UpdateMe)
	auth.GET("/me/audit", h.AuditLog)
	auth.GET("/devices", h.ListDevices)
	auth.GET("/devices/active", h.ActiveDevices)
	auth.POST("/devices", h.RegisterDevice)
	auth.POST("/devices/revoke-all-others", h.RevokeOtherDevices)
	auth.POST("/devices/:id/touch", h.TouchDevice)
	auth.DELETE("/devices/:id", h.RevokeDevice)

	// Tasks
	auth.GET("/tasks", h.ListTasks)
	auth.POST("/tasks", h.CreateTask)
	auth.POST("/tasks/bulk-update", bulkLimit, h.BulkUpdateTasks)
	auth.DELETE("/tasks/bulk-delete", bulkLimit, h.BulkDeleteTasks)
	auth.GET("/tasks/:id", h.GetTask)
	auth.PATCH("/tasks/:id", h.UpdateTask)
	auth.DELETE("/tasks/:id", h.DeleteTask)
	auth.GET("/projects", h.ListProjects)
	auth.POST("/projects", h.CreateProject)
	auth.GET("/categories", h.ListCategories)
	auth.POST("/categories", h.CreateCategory)

	// Blog
	api.GET("/blog/posts", h.ListPublishedPosts)
	api.GET("/blog/posts/:slug", h.GetPublishedPost)
	api.GET("/blog/tags", h.ListTags)
	auth.POST("/blog/tags", h.CreateTag)
	auth.GET("/blog/my-posts", h.ListOwnPosts)
	auth.POST("/blog/my-posts", h.CreatePost)
	auth.GET("/blog/my-posts/:id", h.GetOwnPost)
	auth.PATCH("/blog/my-posts/:id", h.UpdatePost)

	// Memo
	auth.GET("/memo/jobs", h.ListJobs)
	auth.POST("/memo/jobs", h.CreateJob)
	auth.GET("/memo/jobs/nearby", h.NearbyJobs)
	auth.POST("/memo/jobs/geocode", bulkLimit, h.RequeueGeocoding)
	auth.GET("/memo/jobs/:order_no", h.GetJob)
	auth.PATCH("/memo/jobs/:order_no", h.UpdateJob)
	auth.POST("/memo/jobs/:order_no/complete", h.CompleteJob)
	auth.GET("/memo/jobs/:order_no/time-entries", h.ListTimeEntries)
	auth.POST("/memo/jobs/:order_no/time-entries", h.CreateTimeEntry)
	auth.GET("/memo/jobs/:order_no/materials", h.ListJobMaterials)
	auth.POST("/memo/jobs/:order_no/materials", h.AddJobMaterial)
	auth.GET("/memo/materials", h.ListMaterials)
	auth.POST("/memo/materials", h.CreateMaterial)
	auth.POST("/memo/materials/bulk-favorite", bulkLimit, h.BulkFavoriteMaterials)
	auth.GET("/memo/materials/el-nr/:el_nr", h.MaterialByElNr)
	auth.POST("/memo/materials/:id/favorite", h.SetMaterialFavorite)
	auth.GET("/memo/suppliers", h.ListSuppliers)
	auth.POST("/memo/suppliers", h.CreateSupplier)
	auth.GET("/memo/categories", h.ListElectricalCategories)
	auth.POST("/memo/categories", h.CreateElectricalCategory)

	// Chat
	auth.GET("/chat/rooms", h.ListChatRooms)
	auth.POST("/chat/rooms", h.CreateChatRoom)
	auth.POST("/chat/rooms/direct", h.DirectChatRoom)
	auth.GET("/chat/rooms/:id", h.GetChatRoom)
	auth.POST("/chat/rooms/:id/read", h.MarkChatRoomRead)
	auth.POST("/chat/rooms/:id/leave", h.LeaveChatRoom)
	auth.GET("/chat/rooms/:id/typing", h.ChatTypingUsers)
	auth.GET("/chat/rooms/:id/online", h.ChatOnlineUsers)
	auth.GET("/chat/rooms/:id/messages", h.ListChatMessages)
	auth.POST("/chat/rooms/:id/messages", h.SendChatMessage)
	auth.PATCH("/chat/rooms/:id/messages/:message_id", h.EditChatMessage)
	auth.DELETE("/chat/rooms/:id/messages/:message_id", h.DeleteChatMessage)
	auth.POST("/chat/rooms/:id/messages/:message_id/react", h.ReactChatMessage)
	auth.POST("/chat/rooms/:id/messages/:message_id/read", h.MarkChatMessageRead)
	auth.GET("/chat/search/messages", h.SearchChatMessages)
	auth.GET("/chat/search/rooms", h.SearchChatRooms)

	// LLM providers
	api.GET("/llm-providers", h.ListProviders)
	api.GET("/llm-providers/:id", h.GetProvider)
	auth.POST("/llm-providers", middleware.RequireStaff(users), h.CreateProvider)

	// Claude usage
	agent.POST("/claude-usage/agent-sync", h.UsageAgentSync)
	auth.GET("/claude-usage/stats", h.UsageStats)
	auth.GET("/claude-usage/window", h.UsageWindow)
	auth.GET("/claude-usage/windows", h.UsageWindows)
	auth.GET("/claude-usage/projects", h.UsageProjects)
	auth.GET("/claude-usage/projects/:id", h.UsageProject)
	auth.GET("/claude-usage/projects/:id/sessions", h.UsageProjectSessions)
	auth.GET("/claude-usage/sessions/:id", h.UsageSession)

	// Docker monitoring
	agent.POST("/docker/agent/sync", h.DockerAgentSync)
	auth.GET("/docker/hosts", h.DockerHosts)
	auth.GET("/docker/hosts/:id/overview", h.DockerHostOverview)
	auth.GET("/docker/hosts/:id/containers", h.DockerHostContainers)
	auth.GET("/docker/hosts/:id/stats", h.DockerHostStats)
	auth.GET("/docker/containers/running", h.DockerRunning)
}
