package handlers

import (
	"math"
	"net/http"
	"strconv"

	"nxfs_api/internal/domain"
	"nxfs_api/internal/http/response"
	"nxfs_api/internal/logger"
	"nxfs_api/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListJobs(c *gin.Context) {
	jobs, err := h.Memo.ListJobs(c.Request.Context(), queryBool(c, "include_completed"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, jobs)
}

func (h *Handler) GetJob(c *gin.Context) {
	no, ok := orderNo(c)
	if !ok {
		return
	}
	j, err := h.Memo.GetJob(c.Request.Context(), no)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, j)
}

func (h *Handler) CreateJob(c *gin.Context) {
	var in service.JobInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BindError(c, err)
		return
	}
	j, err := h.Memo.CreateJob(c.Request.Context(), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, j)
}

func (h *Handler) UpdateJob(c *gin.Context) {
	no, ok := orderNo(c)
	if !ok {
		return
	}
	var in service.JobInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BindError(c, err)
		return
	}
	j, err := h.Memo.UpdateJob(c.Request.Context(), no, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, j)
}

func (h *Handler) CompleteJob(c *gin.Context) {
	no, ok := orderNo(c)
	if !ok {
		return
	}
	j, err := h.Memo.CompleteJob(c.Request.Context(), no)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, j)
}

// NearbyJobs: GET /memo/jobs/nearby?lat=&lon=&radius=&include_completed=
func (h *Handler) NearbyJobs(c *gin.Context) {
	q := service.NearbyQuery{IncludeCompleted: queryBool(c, "include_completed")}
	verr := &domain.ValidationError{Message: "Invalid input data"}
	parse := func(key string, required bool, dst *float64) {
		raw := c.Query(key)
		if raw == "" {
			if required {
				verr.Add(key, "This field is required.")
			}
			return
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			verr.Add(key, "A valid number is required.")
			return
		}
		*dst = v
	}
	parse("lat", true, &q.Lat)
	parse("lon", true, &q.Lon)
	parse("radius", false, &q.RadiusM)
	if err := verr.OrNil(); err != nil {
		response.Error(c, err)
		return
	}

	jobs, err := h.Memo.Nearby(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(jobs), "results": jobs})
}

// RequeueGeocoding queues jobs for the geocode workers. force=true re-geocodes
// every job with an address; otherwise only jobs due for a (re)try.
func (h *Handler) RequeueGeocoding(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	force := queryBool(c, "force")

	var (
		ids []int16
		err error
	)
	if force {
		ids, err = h.Geocode.AllWithAddress(ctx)
	} else {
		ids, err = h.Geocode.DueJobs(ctx, 1000)
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	queued := 0
	for _, id := range ids {
		if h.Queue.Enqueue(id) {
			queued++
		}
	}
	if queued < len(ids) {
		logger.WithContext(ctx).Warn("geocode queue full, jobs left for the sweep", "dropped", len(ids)-queued)
	}
	h.audit(c, userID, domain.AuditActionGeocodeRequeue, domain.AuditCategoryMemo, map[string]interface{}{
		"force":  force,
		"queued": queued,
	})
	c.JSON(http.StatusAccepted, gin.H{"queued": queued, "total": len(ids)})
}

func (h *Handler) ListTimeEntries(c *gin.Context) {
	no, ok := orderNo(c)
	if !ok {
		return
	}
	sheet, err := h.Memo.TimeEntries(c.Request.Context(), no)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, sheet)
}

func (h *Handler) CreateTimeEntry(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	no, ok := orderNo(c)
	if !ok {
		return
	}
	var in service.TimeEntryInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BindError(c, err)
		return
	}
	e, err := h.Memo.AddTimeEntry(c.Request.Context(), userID, no, in)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

func (h *Handler) ListJobMaterials(c *gin.Context) {
	no, ok := orderNo(c)
	if !ok {
		return
	}
	items, err := h.Memo.JobMaterials(c.Request.Context(), no)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

type jobMaterialRequest struct {
	MaterialID int64 `json:"material_id" binding:"required,gt=0"`
	Quantity   int   `json:"quantity" binding:"omitempty,gte=1"`
}

func (h *Handler) AddJobMaterial(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	no, ok := orderNo(c)
	if !ok {
		return
	}
	var req jobMaterialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	jm, err := h.Memo.AddJobMaterial(c.Request.Context(), userID, no, req.MaterialID, req.Quantity)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, jm)
}

func (h *Handler) ListMaterials(c *gin.Context) {
	f := domain.MaterialFilter{Query: c.Query("q")}
	if raw := c.Query("supplier"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.Validation(c, "supplier", "A valid integer is required.")
			return
		}
		f.SupplierID = &id
	}
	if raw := c.Query("favorite"); raw != "" {
		fav := queryBool(c, "favorite")
		f.Favorite = &fav
	}
	items, err := h.Memo.ListMaterials(c.Request.Context(), f)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) MaterialByElNr(c *gin.Context) {
	m, err := h.Memo.MaterialByElNr(c.Request.Context(), c.Param("el_nr"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handler) CreateMaterial(c *gin.Context) {
	var m domain.Material
	if err := c.ShouldBindJSON(&m); err != nil {
		response.BindError(c, err)
		return
	}
	m.ID = 0
	created, err := h.Memo.CreateMaterial(c.Request.Context(), &m)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

type favoriteRequest struct {
	Favorite *bool `json:"favorite" binding:"required"`
}

func (h *Handler) SetMaterialFavorite(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req favoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	m, err := h.Memo.SetFavorite(c.Request.Context(), id, *req.Favorite)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

type bulkFavoriteRequest struct {
	IDs      []int64 `json:"ids"`
	Favorite *bool   `json:"favorite" binding:"required"`
}

func (h *Handler) BulkFavoriteMaterials(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	var req bulkFavoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}
	res, err := h.Memo.BulkFavorite(c.Request.Context(), req.IDs, *req.Favorite)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.audit(c, userID, domain.AuditActionMaterialsBulkFavorite, domain.AuditCategoryMemo, map[string]interface{}{
		"ids":           req.IDs,
		"favorite":      *req.Favorite,
		"updated_count": res.UpdatedCount,
	})
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ListSuppliers(c *gin.Context) {
	items, err := h.Memo.ListSuppliers(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) CreateSupplier(c *gin.Context) {
	var s domain.Supplier
	if err := c.ShouldBindJSON(&s); err != nil {
		response.BindError(c, err)
		return
	}
	s.ID = 0
	created, err := h.Memo.CreateSupplier(c.Request.Context(), &s)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) ListElectricalCategories(c *gin.Context) {
	items, err := h.Memo.ListElectricalCategories(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) CreateElectricalCategory(c *gin.Context) {
	var ec domain.ElectricalCategory
	if err := c.ShouldBindJSON(&ec); err != nil {
		response.BindError(c, err)
		return
	}
	ec.ID = 0
	created, err := h.Memo.CreateElectricalCategory(c.Request.Context(), &ec)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}
