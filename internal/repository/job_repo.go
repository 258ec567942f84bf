package repository

import (
	"context"
	"time"

	"nxfs_api/internal/domain"
	"nxfs_api/internal/geo"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type JobRepository struct {
	db *pgxpool.Pool
}

func NewJobRepository(db *pgxpool.Pool) *JobRepository {
	return &JobRepository{db: db}
}

const jobColumns = `order_no, title, address, postal_code, city, phone, description, completed,
	latitude, longitude, geocoded_at, geocode_accuracy, geocode_retries, last_geocode_attempt,
	created_at, updated_at`

func scanJob(row pgx.Row) (*domain.Job, error) {
	var j domain.Job
	err := row.Scan(&j.OrderNo, &j.Title, &j.Address, &j.PostalCode, &j.City, &j.Phone, &j.Description,
		&j.Completed, &j.Latitude, &j.Longitude, &j.GeocodedAt, &j.GeocodeAccuracy, &j.GeocodeRetries,
		&j.LastGeocodeAttempt, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *JobRepository) queryJobs(ctx context.Context, query string, args ...any) ([]*domain.Job, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []*domain.Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (r *JobRepository) Create(ctx context.Context, j *domain.Job) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO jobs (order_no, title, address, postal_code, city, phone, description, completed)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at, updated_at`,
		j.OrderNo, j.Title, j.Address, j.PostalCode, j.City, j.Phone, j.Description, j.Completed,
	).Scan(&j.CreatedAt, &j.UpdatedAt)
	return mapError(err)
}

func (r *JobRepository) Get(ctx context.Context, orderNo int16) (*domain.Job, error) {
	j, err := scanJob(r.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE order_no = $1`, orderNo))
	if err != nil {
		return nil, mapError(err)
	}
	return j, nil
}

func (r *JobRepository) List(ctx context.Context, includeCompleted bool) ([]*domain.Job, error) {
	return r.queryJobs(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE ($1 OR NOT completed) ORDER BY order_no DESC LIMIT 500`,
		includeCompleted)
}

// Update writes the editable fields together with the geocode state.
func (r *JobRepository) Update(ctx context.Context, j *domain.Job) error {
	err := r.db.QueryRow(ctx,
		`UPDATE jobs
		 SET title = $2, address = $3, postal_code = $4, city = $5, phone = $6, description = $7,
		     completed = $8, latitude = $9, longitude = $10, geocoded_at = $11, geocode_accuracy = $12,
		     geocode_retries = $13, last_geocode_attempt = $14, updated_at = NOW()
		 WHERE order_no = $1
		 RETURNING updated_at`,
		j.OrderNo, j.Title, j.Address, j.PostalCode, j.City, j.Phone, j.Description, j.Completed,
		j.Latitude, j.Longitude, j.GeocodedAt, j.GeocodeAccuracy, j.GeocodeRetries, j.LastGeocodeAttempt,
	).Scan(&j.UpdatedAt)
	return mapError(err)
}

func (r *JobRepository) MarkGeocoded(ctx context.Context, orderNo int16, res *geo.Result, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE jobs
		 SET latitude = $2, longitude = $3, geocode_accuracy = $4, geocoded_at = $5,
		     last_geocode_attempt = $5, geocode_retries = 0, updated_at = NOW()
		 WHERE order_no = $1`,
		orderNo, res.Lat, res.Lon, res.Accuracy, at,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *JobRepository) MarkGeocodeFailed(ctx context.Context, orderNo int16, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE jobs
		 SET geocode_accuracy = 'failed', geocode_retries = geocode_retries + 1,
		     last_geocode_attempt = $2, updated_at = NOW()
		 WHERE order_no = $1`,
		orderNo, at,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// WithinBox prefilters geocoded jobs inside box.
func (r *JobRepository) WithinBox(ctx context.Context, box geo.Box, includeCompleted bool) ([]*domain.Job, error) {
	return r.queryJobs(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE latitude BETWEEN $1 AND $2
		   AND longitude BETWEEN $3 AND $4
		   AND ($5 OR NOT completed)`,
		box.LatMin, box.LatMax, box.LonMin, box.LonMax, includeCompleted)
}

// GeocodeCandidates returns jobs with an address but no coordinates whose
// retries are not exhausted. Backoff is applied by the caller.
func (r *JobRepository) GeocodeCandidates(ctx context.Context, limit int) ([]*domain.Job, error) {
	return r.queryJobs(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE address <> ''
		   AND (latitude IS NULL OR longitude IS NULL)
		   AND (geocode_accuracy IS DISTINCT FROM 'failed' OR geocode_retries < $1)
		 ORDER BY last_geocode_attempt NULLS FIRST
		 LIMIT $2`,
		domain.MaxGeocodeRetries, limit)
}

// WithAddress lists every job that has an address, for forced re-geocoding.
func (r *JobRepository) WithAddress(ctx context.Context) ([]int16, error) {
	rows, err := r.db.Query(ctx, `SELECT order_no FROM jobs WHERE address <> '' ORDER BY order_no`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []int16{}
	for rows.Next() {
		var id int16
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *JobRepository) CreateTimeEntry(ctx context.Context, e *domain.TimeEntry) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO time_entries (user_id, job_id, description, date, hours)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		e.UserID, e.JobID, e.Description, e.Date, e.Hours,
	).Scan(&e.ID, &e.CreatedAt)
	return mapError(err)
}

func (r *JobRepository) ListTimeEntries(ctx context.Context, jobID int16) ([]*domain.TimeEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, job_id, description, date, hours::float8, created_at
		 FROM time_entries WHERE job_id = $1
		 ORDER BY date DESC NULLS LAST, created_at DESC`,
		jobID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []*domain.TimeEntry{}
	for rows.Next() {
		var e domain.TimeEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.JobID, &e.Description, &e.Date, &e.Hours, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (r *JobRepository) AddMaterial(ctx context.Context, jm *domain.JobMaterial) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO job_materials (job_id, material_id, quantity, user_id, transferred)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		jm.JobID, jm.MaterialID, jm.Quantity, jm.UserID, jm.Transferred,
	).Scan(&jm.ID, &jm.CreatedAt)
	return mapError(err)
}

func (r *JobRepository) ListMaterials(ctx context.Context, jobID int16) ([]*domain.JobMaterial, error) {
	rows, err := r.db.Query(ctx,
		`SELECT jm.id, jm.job_id, jm.material_id, jm.quantity, jm.user_id, jm.transferred, jm.created_at,
		        m.el_nr, m.title, m.supplier_id, m.favorite
		 FROM job_materials jm JOIN materials m ON m.id = jm.material_id
		 WHERE jm.job_id = $1
		 ORDER BY jm.created_at`,
		jobID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []*domain.JobMaterial{}
	for rows.Next() {
		jm := domain.JobMaterial{Material: &domain.Material{}}
		if err := rows.Scan(&jm.ID, &jm.JobID, &jm.MaterialID, &jm.Quantity, &jm.UserID, &jm.Transferred, &jm.CreatedAt,
			&jm.Material.ElNr, &jm.Material.Title, &jm.Material.SupplierID, &jm.Material.Favorite); err != nil {
			return nil, err
		}
		jm.Material.ID = jm.MaterialID
		items = append(items, &jm)
	}
	return items, rows.Err()
}
