package handlers

import (
	"net/http"

	"nxfs_api/internal/domain"
	"nxfs_api/internal/http/response"
	"nxfs_api/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) Me(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	user, err := h.Users.Me(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

type updateMeRequest struct {
	DisplayName string `json:"display_name" binding:"required"`
}

func (h *Handler) UpdateMe(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	var req updateMeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	user, err := h.Users.UpdateDisplayName(c.Request.Context(), userID, req.DisplayName)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) ListDevices(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	devices, err := h.Users.Devices(c.Request.Context(), userID, queryBool(c, "active"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, devices)
}

func (h *Handler) ActiveDevices(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	devices, err := h.Users.Devices(c.Request.Context(), userID, true)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, devices)
}

func (h *Handler) RegisterDevice(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	var req service.DeviceInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	d, err := h.Users.RegisterDevice(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

func (h *Handler) TouchDevice(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	if err := h.Users.TouchDevice(c.Request.Context(), userID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) RevokeDevice(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if err := h.Users.RevokeDevice(c.Request.Context(), userID, id); err != nil {
		response.Error(c, err)
		return
	}
	h.audit(c, userID, domain.AuditActionDeviceRevoke, domain.AuditCategoryDevices, map[string]interface{}{
		"device_id": id,
	})
	c.JSON(http.StatusOK, gin.H{"message": "Device revoked successfully"})
}

type revokeOthersRequest struct {
	CurrentDeviceID string `json:"current_device_id" binding:"required"`
}

func (h *Handler) RevokeOtherDevices(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	var req revokeOthersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	n, err := h.Users.RevokeOthers(c.Request.Context(), userID, req.CurrentDeviceID)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.audit(c, userID, domain.AuditActionDeviceRevokeOthers, domain.AuditCategoryDevices, map[string]interface{}{
		"kept_device_id": req.CurrentDeviceID,
		"revoked_count":  n,
	})
	c.JSON(http.StatusOK, gin.H{
		"message":       "Other devices revoked successfully",
		"revoked_count": n,
	})
}

func (h *Handler) AuditLog(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	entries, err := h.Audit.List(c.Request.Context(), userID, c.Query("category"), 100)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}
