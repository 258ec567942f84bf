package handlers

import (
	"net/http"
	"strconv"

	"nxfs_api/internal/http/response"
	"nxfs_api/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListPublishedPosts(c *gin.Context) {
	posts, err := h.Blog.ListPublished(c.Request.Context(), c.Query("tag"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

// GetPublishedPost serves /blog/posts/:slug. ?author=<id> disambiguates
// slugs shared by several authors.
func (h *Handler) GetPublishedPost(c *gin.Context) {
	var authorID int64
	if raw := c.Query("author"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			response.Validation(c, "author", "A valid integer is required.")
			return
		}
		authorID = id
	}
	p, err := h.Blog.GetPublished(c.Request.Context(), c.Param("slug"), authorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) ListOwnPosts(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	posts, err := h.Blog.ListOwn(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

func (h *Handler) GetOwnPost(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	p, err := h.Blog.GetOwn(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) CreatePost(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	var in service.PostInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BindError(c, err)
		return
	}
	p, err := h.Blog.CreatePost(c.Request.Context(), userID, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) UpdatePost(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var in service.PostInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BindError(c, err)
		return
	}
	p, err := h.Blog.UpdatePost(c.Request.Context(), userID, id, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) ListTags(c *gin.Context) {
	tags, err := h.Blog.ListTags(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, tags)
}

func (h *Handler) CreateTag(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	tag, err := h.Blog.CreateTag(c.Request.Context(), req.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, tag)
}
