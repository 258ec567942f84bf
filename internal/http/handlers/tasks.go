package handlers

import (
	"net/http"

	"nxfs_api/internal/domain"
	"nxfs_api/internal/http/response"
	"nxfs_api/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListTasks(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	tasks, err := h.Tasks.List(c.Request.Context(), userID, c.Query("status"), c.Query("priority"), c.Query("project"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (h *Handler) GetTask(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	t, err := h.Tasks.Get(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) CreateTask(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	var in service.TaskInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BindError(c, err)
		return
	}
	t, err := h.Tasks.Create(c.Request.Context(), userID, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *Handler) UpdateTask(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in service.TaskInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BindError(c, err)
		return
	}
	t, err := h.Tasks.Update(c.Request.Context(), userID, id, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) DeleteTask(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.Tasks.Delete(c.Request.Context(), userID, id); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type bulkUpdateRequest struct {
	TaskIDs []int64            `json:"task_ids"`
	Updates domain.TaskChanges `json:"updates"`
}

func (h *Handler) BulkUpdateTasks(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	var req bulkUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	res, err := h.Tasks.BulkUpdate(c.Request.Context(), userID, req.TaskIDs, req.Updates)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.audit(c, userID, domain.AuditActionTasksBulkUpdate, domain.AuditCategoryTasks, map[string]interface{}{
		"task_ids":      req.TaskIDs,
		"updated_count": res.UpdatedCount,
		"failed_count":  len(res.FailedUpdates),
	})
	c.JSON(http.StatusOK, res)
}

type bulkDeleteRequest struct {
	TaskIDs []int64 `json:"task_ids"`
}

func (h *Handler) BulkDeleteTasks(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	var req bulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	res, err := h.Tasks.BulkDelete(c.Request.Context(), userID, req.TaskIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.audit(c, userID, domain.AuditActionTasksBulkDelete, domain.AuditCategoryTasks, map[string]interface{}{
		"task_ids":      req.TaskIDs,
		"deleted_count": res.DeletedCount,
	})
	c.JSON(http.StatusOK, res)
}

type nameRequest struct {
	Name string `json:"name" binding:"required,max=100"`
}

func (h *Handler) ListProjects(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	projects, err := h.Tasks.ListProjects(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, projects)
}

func (h *Handler) CreateProject(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	p, err := h.Tasks.CreateProject(c.Request.Context(), userID, req.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) ListCategories(c *gin.Context) {
	cats, err := h.Tasks.ListCategories(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, cats)
}

func (h *Handler) CreateCategory(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	cat, err := h.Tasks.CreateCategory(c.Request.Context(), req.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, cat)
}
