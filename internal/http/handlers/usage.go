package handlers

import (
	"net/http"
	"strconv"
	"time"

	"nxfs_api/internal/domain"
	"nxfs_api/internal/http/middleware"
	"nxfs_api/internal/http/response"
	"nxfs_api/internal/usage"

	"github.com/gin-gonic/gin"
)

const (
	maxSyncBody       = 10 << 20
	maxWindowHistoryH = 7 * 24
)

// UsageAgentSync: POST /claude-usage/agent-sync
func (h *Handler) UsageAgentSync(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSyncBody)
	var p usage.SyncPayload
	if err := c.ShouldBindJSON(&p); err != nil {
		response.BindError(c, err)
		return
	}
	res, err := h.Usage.Ingest(c.Request.Context(), p)
	if err != nil {
		response.Error(c, err)
		return
	}
	uid, _ := middleware.UserID(c)
	h.audit(c, uid, domain.AuditActionUsageSync, domain.AuditCategoryAgents, map[string]interface{}{
		"projects":  res.ProjectsUpdated,
		"sessions":  res.SessionsUpdated,
		"snapshots": res.SnapshotsCreated,
	})
	c.JSON(http.StatusOK, res)
}

func (h *Handler) UsageStats(c *gin.Context) {
	stats, err := h.Usage.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) UsageProjects(c *gin.Context) {
	projects, err := h.Usage.Projects(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, projects)
}

func (h *Handler) UsageProject(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	p, err := h.Usage.Project(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) UsageProjectSessions(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	sessions, err := h.Usage.ProjectSessions(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, sessions)
}

func (h *Handler) UsageSession(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	s, err := h.Usage.Session(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// UsageWindow reports the active rate-limit window.
func (h *Handler) UsageWindow(c *gin.Context) {
	st, err := h.Usage.Window(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// UsageWindows: GET /claude-usage/windows?hours=24
func (h *Handler) UsageWindows(c *gin.Context) {
	hours := 24
	if raw := c.Query("hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxWindowHistoryH {
			response.Validation(c, "hours", "Hours must be between 1 and "+strconv.Itoa(maxWindowHistoryH)+".")
			return
		}
		hours = n
	}
	windows, err := h.Usage.Windows(c.Request.Context(), time.Duration(hours)*time.Hour)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, windows)
}
