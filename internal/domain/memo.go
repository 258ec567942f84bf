package domain

import (
	"math"
	"time"
)

const (
	AccuracyExact       = "exact"
	AccuracyApproximate = "approximate"
	AccuracyFailed      = "failed"

	MaxGeocodeRetries = 3
)

// Job is an electrical work order addressed by its order number.
type Job struct {
	OrderNo            int16      `db:"order_no" json:"order_no"`
	Title              string     `db:"title" json:"title"`
	Address            string     `db:"address" json:"address"`
	PostalCode         string     `db:"postal_code" json:"postal_code"`
	City               string     `db:"city" json:"city"`
	Phone              string     `db:"phone" json:"phone"`
	Description        string     `db:"description" json:"description"`
	Completed          bool       `db:"completed" json:"completed"`
	Latitude           *float64   `db:"latitude" json:"latitude"`
	Longitude          *float64   `db:"longitude" json:"longitude"`
	GeocodedAt         *time.Time `db:"geocoded_at" json:"geocoded_at"`
	GeocodeAccuracy    *string    `db:"geocode_accuracy" json:"geocode_accuracy"`
	GeocodeRetries     int        `db:"geocode_retries" json:"geocode_retries"`
	LastGeocodeAttempt *time.Time `db:"last_geocode_attempt" json:"last_geocode_attempt"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

func (j *Job) HasCoordinates() bool {
	return j.Latitude != nil && j.Longitude != nil
}

func (j *Job) geocodeFailed() bool {
	return j.GeocodeAccuracy != nil && *j.GeocodeAccuracy == AccuracyFailed
}

// GeocodeBackoff is the wait before retry n: 60s * 2^n.
func GeocodeBackoff(retries int) time.Duration {
	return time.Duration(60*math.Pow(2, float64(retries))) * time.Second
}

// NeedsGeocoding reports whether the job should be sent to the geocoder at now.
func (j *Job) NeedsGeocoding(now time.Time) bool {
	if j.Address == "" || j.HasCoordinates() {
		return false
	}
	if !j.geocodeFailed() {
		return true
	}
	if j.GeocodeRetries >= MaxGeocodeRetries {
		return false
	}
	if j.LastGeocodeAttempt == nil {
		return true
	}
	return !now.Before(j.LastGeocodeAttempt.Add(GeocodeBackoff(j.GeocodeRetries)))
}

// NearbyJob is a job annotated with its distance from the search origin.
type NearbyJob struct {
	Job
	DistanceM float64 `json:"distance_m"`
}

type Supplier struct {
	ID         int64  `db:"id" json:"id"`
	Name       string `db:"name" json:"name"`
	Phone      string `db:"phone" json:"phone"`
	Website    string `db:"website" json:"website"`
	Address    string `db:"address" json:"address"`
	City       string `db:"city" json:"city"`
	PostalCode string `db:"postal_code" json:"postal_code"`
	Email      string `db:"email" json:"email"`
}

type ElectricalCategory struct {
	ID          int64  `db:"id" json:"id"`
	BlockNumber string `db:"block_number" json:"block_number"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
	Slug        string `db:"slug" json:"slug"`
	EtimGroup   string `db:"etim_group" json:"etim_group"`
}

type Material struct {
	ID            int64     `db:"id" json:"id"`
	ElNr          string    `db:"el_nr" json:"el_nr"`
	Title         string    `db:"title" json:"title"`
	SupplierID    int64     `db:"supplier_id" json:"supplier_id"`
	SupplierName  string    `db:"supplier_name" json:"supplier_name,omitempty"`
	CategoryID    *int64    `db:"category_id" json:"category_id"`
	Brand         string    `db:"brand" json:"brand"`
	Info          string    `db:"info" json:"info"`
	ProductNumber string    `db:"product_number" json:"product_number"`
	GTIN          string    `db:"gtin" json:"gtin"`
	Approved      bool      `db:"approved" json:"approved"`
	Discontinued  bool      `db:"discontinued" json:"discontinued"`
	InStock       bool      `db:"in_stock" json:"in_stock"`
	Favorite      bool      `db:"favorite" json:"favorite"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

type MaterialFilter struct {
	Query      string
	SupplierID *int64
	Favorite   *bool
}

type BulkFavoriteResult struct {
	UpdatedCount int     `json:"updated_count"`
	FailedIDs    []int64 `json:"failed_ids"`
}

type JobMaterial struct {
	ID          int64     `db:"id" json:"id"`
	JobID       int16     `db:"job_id" json:"job_id"`
	MaterialID  int64     `db:"material_id" json:"material_id"`
	Material    *Material `json:"material,omitempty"`
	Quantity    int       `db:"quantity" json:"quantity"`
	UserID      *int64    `db:"user_id" json:"user_id"`
	Transferred bool      `db:"transferred" json:"transferred"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

type TimeEntry struct {
	ID          int64      `db:"id" json:"id"`
	UserID      int64      `db:"user_id" json:"user_id"`
	JobID       int16      `db:"job_id" json:"job_id"`
	Description string     `db:"description" json:"description"`
	Date        *time.Time `db:"date" json:"date"`
	Hours       *float64   `db:"hours" json:"hours"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}
