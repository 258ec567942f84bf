package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"nxfs_api/internal/domain"
	"nxfs_api/internal/geo"
)

type JobStore interface {
	Create(ctx context.Context, j *domain.Job) error
	Get(ctx context.Context, orderNo int16) (*domain.Job, error)
	List(ctx context.Context, includeCompleted bool) ([]*domain.Job, error)
	Update(ctx context.Context, j *domain.Job) error
	WithinBox(ctx context.Context, box geo.Box, includeCompleted bool) ([]*domain.Job, error)
	CreateTimeEntry(ctx context.Context, e *domain.TimeEntry) error
	ListTimeEntries(ctx context.Context, jobID int16) ([]*domain.TimeEntry, error)
	AddMaterial(ctx context.Context, jm *domain.JobMaterial) error
	ListMaterials(ctx context.Context, jobID int16) ([]*domain.JobMaterial, error)
}

type MaterialStore interface {
	List(ctx context.Context, f domain.MaterialFilter) ([]*domain.Material, error)
	Get(ctx context.Context, id int64) (*domain.Material, error)
	GetByElNr(ctx context.Context, elNr string) (*domain.Material, error)
	Create(ctx context.Context, m *domain.Material) error
	SetFavorite(ctx context.Context, id int64, favorite bool) error
	SetFavoriteMany(ctx context.Context, ids []int64, favorite bool) ([]int64, error)
	ListSuppliers(ctx context.Context) ([]*domain.Supplier, error)
	CreateSupplier(ctx context.Context, s *domain.Supplier) error
	ListElectricalCategories(ctx context.Context) ([]*domain.ElectricalCategory, error)
	CreateElectricalCategory(ctx context.Context, c *domain.ElectricalCategory) error
}

// GeocodeEnqueuer schedules a job for background geocoding.
type GeocodeEnqueuer interface {
	Enqueue(orderNo int16) bool
}

const (
	DefaultNearbyRadiusM = 5000.0
	MaxNearbyRadiusM     = 100000.0
)

var (
	postalCodeRe  = regexp.MustCompile(`^\d{4}$`)
	blockNumberRe = regexp.MustCompile(`^\d{2}$`)
)

type MemoService struct {
	jobs      JobStore
	materials MaterialStore
	queue     GeocodeEnqueuer
	now       func() time.Time
}

func NewMemoService(jobs JobStore, materials MaterialStore, queue GeocodeEnqueuer) *MemoService {
	return &MemoService{jobs: jobs, materials: materials, queue: queue, now: time.Now}
}

type JobInput struct {
	OrderNo     *int16  `json:"order_no"`
	Title       *string `json:"title"`
	Address     *string `json:"address"`
	PostalCode  *string `json:"postal_code"`
	City        *string `json:"city"`
	Phone       *string `json:"phone"`
	Description *string `json:"description"`
	Completed   *bool   `json:"completed"`
}

func (s *MemoService) enqueue(j *domain.Job) {
	if s.queue == nil || strings.TrimSpace(j.Address) == "" {
		return
	}
	s.queue.Enqueue(j.OrderNo)
}

func (s *MemoService) CreateJob(ctx context.Context, in JobInput) (*domain.Job, error) {
	if in.OrderNo == nil || *in.OrderNo <= 0 {
		return nil, domain.NewValidationError("order_no", "A valid positive order number is required.")
	}
	j := &domain.Job{OrderNo: *in.OrderNo}
	applyJobInput(j, in)
	if err := validateJob(j); err != nil {
		return nil, err
	}
	if err := s.jobs.Create(ctx, j); err != nil {
		return nil, err
	}
	s.enqueue(j)
	return j, nil
}

// UpdateJob edits a job. An address change clears the stored coordinates
// and geocode state and re-queues the job.
func (s *MemoService) UpdateJob(ctx context.Context, orderNo int16, in JobInput) (*domain.Job, error) {
	j, err := s.jobs.Get(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	before := jobAddress(j)
	applyJobInput(j, in)
	if err := validateJob(j); err != nil {
		return nil, err
	}

	addressChanged := jobAddress(j) != before
	if addressChanged {
		j.Latitude, j.Longitude = nil, nil
		j.GeocodedAt, j.GeocodeAccuracy, j.LastGeocodeAttempt = nil, nil, nil
		j.GeocodeRetries = 0
	}
	if err := s.jobs.Update(ctx, j); err != nil {
		return nil, err
	}
	if addressChanged {
		s.enqueue(j)
	}
	return j, nil
}

func applyJobInput(j *domain.Job, in JobInput) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&j.Title, in.Title)
	set(&j.Address, in.Address)
	set(&j.PostalCode, in.PostalCode)
	set(&j.City, in.City)
	set(&j.Phone, in.Phone)
	if in.Description != nil {
		j.Description = *in.Description
	}
	if in.Completed != nil {
		j.Completed = *in.Completed
	}
}

func validateJob(j *domain.Job) error {
	verr := &domain.ValidationError{Message: "Invalid input data"}
	if j.PostalCode != "" && !postalCodeRe.MatchString(j.PostalCode) {
		verr.Add("postal_code", "Postal code must be exactly 4 digits.")
	}
	if len(j.Title) > 50 {
		verr.Add("title", "Ensure this field has no more than 50 characters.")
	}
	if len(j.Address) > 256 {
		verr.Add("address", "Ensure this field has no more than 256 characters.")
	}
	return verr.OrNil()
}

func (s *MemoService) GetJob(ctx context.Context, orderNo int16) (*domain.Job, error) {
	return s.jobs.Get(ctx, orderNo)
}

func (s *MemoService) ListJobs(ctx context.Context, includeCompleted bool) ([]*domain.Job, error) {
	return s.jobs.List(ctx, includeCompleted)
}

func (s *MemoService) CompleteJob(ctx context.Context, orderNo int16) (*domain.Job, error) {
	done := true
	return s.UpdateJob(ctx, orderNo, JobInput{Completed: &done})
}

// NearbyQuery parameters; RadiusM 0 means the default radius.
type NearbyQuery struct {
	Lat              float64
	Lon              float64
	RadiusM          float64
	IncludeCompleted bool
}

// Nearby returns geocoded jobs within the radius, nearest first. The SQL
// bounding box is a prefilter; the Haversine distance decides.
func (s *MemoService) Nearby(ctx context.Context, q NearbyQuery) ([]domain.NearbyJob, error) {
	verr := &domain.ValidationError{Message: "Invalid input data"}
	// written as in-range checks so NaN fails them too
	if !(q.Lat >= -90 && q.Lat <= 90) {
		verr.Add("lat", "Latitude must be between -90 and 90.")
	}
	if !(q.Lon >= -180 && q.Lon <= 180) {
		verr.Add("lon", "Longitude must be between -180 and 180.")
	}
	if q.RadiusM == 0 {
		q.RadiusM = DefaultNearbyRadiusM
	}
	if !(q.RadiusM > 0 && q.RadiusM <= MaxNearbyRadiusM) {
		verr.Add("radius", fmt.Sprintf("Radius must be between 1 and %.0f metres.", MaxNearbyRadiusM))
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	candidates, err := s.jobs.WithinBox(ctx, geo.BoundingBox(q.Lat, q.Lon, q.RadiusM), q.IncludeCompleted)
	if err != nil {
		return nil, err
	}

	out := []domain.NearbyJob{}
	for _, j := range candidates {
		if !j.HasCoordinates() {
			continue
		}
		d := geo.Haversine(q.Lat, q.Lon, *j.Latitude, *j.Longitude)
		if d <= q.RadiusM {
			out = append(out, domain.NearbyJob{Job: *j, DistanceM: d})
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].DistanceM < out[b].DistanceM })
	return out, nil
}

type TimeEntryInput struct {
	Description string   `json:"description"`
	Date        *string  `json:"date"`
	Hours       *float64 `json:"hours"`
}

func (s *MemoService) AddTimeEntry(ctx context.Context, userID int64, orderNo int16, in TimeEntryInput) (*domain.TimeEntry, error) {
	if _, err := s.jobs.Get(ctx, orderNo); err != nil {
		return nil, err
	}
	e := &domain.TimeEntry{UserID: userID, JobID: orderNo, Description: in.Description, Hours: in.Hours}
	verr := &domain.ValidationError{Message: "Invalid input data"}
	if in.Date != nil && *in.Date != "" {
		d, err := time.Parse("2006-01-02", *in.Date)
		if err != nil {
			verr.Add("date", "Date has wrong format. Use YYYY-MM-DD.")
		} else {
			e.Date = &d
		}
	}
	if in.Hours != nil && (*in.Hours < 0 || *in.Hours > 24) {
		verr.Add("hours", "Hours must be between 0 and 24.")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	if err := s.jobs.CreateTimeEntry(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// TimeSheet is a job's time entries with their summed hours.
type TimeSheet struct {
	Entries    []*domain.TimeEntry `json:"entries"`
	TotalHours float64             `json:"total_hours"`
}

func (s *MemoService) TimeEntries(ctx context.Context, orderNo int16) (*TimeSheet, error) {
	entries, err := s.jobs.ListTimeEntries(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	sheet := &TimeSheet{Entries: entries}
	for _, e := range entries {
		if e.Hours != nil {
			sheet.TotalHours += *e.Hours
		}
	}
	return sheet, nil
}

func (s *MemoService) AddJobMaterial(ctx context.Context, userID int64, orderNo int16, materialID int64, quantity int) (*domain.JobMaterial, error) {
	if quantity <= 0 {
		return nil, domain.NewValidationError("quantity", "Ensure this value is greater than or equal to 1.")
	}
	if _, err := s.jobs.Get(ctx, orderNo); err != nil {
		return nil, err
	}
	m, err := s.materials.Get(ctx, materialID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NewValidationError("material_id", "Invalid pk - object does not exist.")
	}
	if err != nil {
		return nil, err
	}
	uid := userID
	jm := &domain.JobMaterial{JobID: orderNo, MaterialID: materialID, Material: m, Quantity: quantity, UserID: &uid}
	if err := s.jobs.AddMaterial(ctx, jm); err != nil {
		return nil, err
	}
	return jm, nil
}

func (s *MemoService) JobMaterials(ctx context.Context, orderNo int16) ([]*domain.JobMaterial, error) {
	return s.jobs.ListMaterials(ctx, orderNo)
}

func (s *MemoService) ListMaterials(ctx context.Context, f domain.MaterialFilter) ([]*domain.Material, error) {
	return s.materials.List(ctx, f)
}

func (s *MemoService) MaterialByElNr(ctx context.Context, elNr string) (*domain.Material, error) {
	return s.materials.GetByElNr(ctx, strings.TrimSpace(elNr))
}

func (s *MemoService) CreateMaterial(ctx context.Context, m *domain.Material) (*domain.Material, error) {
	m.ElNr = strings.TrimSpace(m.ElNr)
	m.Title = strings.TrimSpace(m.Title)
	verr := &domain.ValidationError{Message: "Invalid input data"}
	if m.ElNr == "" {
		verr.Add("el_nr", "This field is required.")
	}
	if m.Title == "" {
		verr.Add("title", "This field is required.")
	}
	if m.SupplierID <= 0 {
		verr.Add("supplier_id", "This field is required.")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	if err := s.materials.Create(ctx, m); err != nil {
		return nil, err
	}
	return s.materials.Get(ctx, m.ID)
}

func (s *MemoService) SetFavorite(ctx context.Context, id int64, favorite bool) (*domain.Material, error) {
	if err := s.materials.SetFavorite(ctx, id, favorite); err != nil {
		return nil, err
	}
	return s.materials.Get(ctx, id)
}

// BulkFavorite sets the favourite flag on every existing id and reports the rest.
func (s *MemoService) BulkFavorite(ctx context.Context, ids []int64, favorite bool) (*domain.BulkFavoriteResult, error) {
	if err := validateBulkIDs("ids", ids); err != nil {
		return nil, err
	}
	ids = dedupeIDs(ids)
	updated, err := s.materials.SetFavoriteMany(ctx, ids, favorite)
	if err != nil {
		return nil, err
	}
	return &domain.BulkFavoriteResult{UpdatedCount: len(updated), FailedIDs: missingIDs(ids, updated)}, nil
}

func (s *MemoService) ListSuppliers(ctx context.Context) ([]*domain.Supplier, error) {
	return s.materials.ListSuppliers(ctx)
}

func (s *MemoService) CreateSupplier(ctx context.Context, sup *domain.Supplier) (*domain.Supplier, error) {
	sup.Name = strings.TrimSpace(sup.Name)
	if sup.Name == "" {
		return nil, domain.NewValidationError("name", "This field is required.")
	}
	if sup.PostalCode != "" && !postalCodeRe.MatchString(sup.PostalCode) {
		return nil, domain.NewValidationError("postal_code", "Postal code must be exactly 4 digits.")
	}
	if err := s.materials.CreateSupplier(ctx, sup); err != nil {
		return nil, err
	}
	return sup, nil
}

func (s *MemoService) ListElectricalCategories(ctx context.Context) ([]*domain.ElectricalCategory, error) {
	return s.materials.ListElectricalCategories(ctx)
}

func (s *MemoService) CreateElectricalCategory(ctx context.Context, c *domain.ElectricalCategory) (*domain.ElectricalCategory, error) {
	c.Name = strings.TrimSpace(c.Name)
	verr := &domain.ValidationError{Message: "Invalid input data"}
	if !blockNumberRe.MatchString(c.BlockNumber) {
		verr.Add("block_number", "Block number must be exactly 2 digits.")
	}
	if c.Name == "" {
		verr.Add("name", "This field is required.")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	if c.Slug == "" {
		c.Slug = MakeSlug(c.BlockNumber+" "+c.Name, 100, c.BlockNumber)
	}
	if err := s.materials.CreateElectricalCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}
