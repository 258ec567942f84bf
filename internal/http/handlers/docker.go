package handlers

import (
	"net/http"

	"nxfs_api/internal/domain"
	"nxfs_api/internal/http/middleware"
	"nxfs_api/internal/http/response"
	"nxfs_api/internal/service"

	"github.com/gin-gonic/gin"
)

// DockerAgentSync: POST /docker/agent/sync
func (h *Handler) DockerAgentSync(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSyncBody)
	var p service.DockerSyncPayload
	if err := c.ShouldBindJSON(&p); err != nil {
		response.BindError(c, err)
		return
	}
	res, err := h.Docker.Sync(c.Request.Context(), p)
	if err != nil {
		response.Error(c, err)
		return
	}
	uid, _ := middleware.UserID(c)
	h.audit(c, uid, domain.AuditActionDockerSync, domain.AuditCategoryAgents, map[string]interface{}{
		"host":               p.Host.Name,
		"containers_synced":  res.ContainersSynced,
		"containers_removed": res.ContainersRemoved,
	})
	c.JSON(http.StatusOK, res)
}

func (h *Handler) DockerHosts(c *gin.Context) {
	hosts, err := h.Docker.Hosts(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, hosts)
}

func (h *Handler) DockerHostOverview(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ov, err := h.Docker.Overview(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, ov)
}

func (h *Handler) DockerHostContainers(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	items, err := h.Docker.Containers(c.Request.Context(), id, c.Query("status"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) DockerHostStats(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	st, err := h.Docker.LatestStats(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	if st == nil {
		response.NotFound(c, "No system stats reported for this host.")
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) DockerRunning(c *gin.Context) {
	items, err := h.Docker.Running(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}
