package handlers

import (
	"net/http"

	"nxfs_api/internal/domain"
	"nxfs_api/internal/http/response"
	"nxfs_api/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListProviders(c *gin.Context) {
	providers, err := h.Providers.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, providers)
}

func (h *Handler) GetProvider(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	p, err := h.Providers.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// CreateProvider is mounted behind RequireStaff.
func (h *Handler) CreateProvider(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	var in service.ProviderInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BindError(c, err)
		return
	}
	p, err := h.Providers.Create(c.Request.Context(), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.audit(c, userID, domain.AuditActionProviderCreate, domain.AuditCategoryAdmin, map[string]interface{}{
		"provider_id": p.ID,
		"name":        p.Name,
	})
	c.JSON(http.StatusCreated, p)
}
