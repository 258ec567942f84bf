package service

import (
	"context"
	"errors"
	"time"

	"nxfs_api/internal/domain"
	"nxfs_api/internal/geo"
	"nxfs_api/internal/logger"
)

type JobGeoStore interface {
	Get(ctx context.Context, orderNo int16) (*domain.Job, error)
	MarkGeocoded(ctx context.Context, orderNo int16, res *geo.Result, at time.Time) error
	MarkGeocodeFailed(ctx context.Context, orderNo int16, at time.Time) error
	GeocodeCandidates(ctx context.Context, limit int) ([]*domain.Job, error)
	WithAddress(ctx context.Context) ([]int16, error)
}

// GeocodeService resolves job addresses and records the outcome on the job.
type GeocodeService struct {
	store    JobGeoStore
	geocoder geo.Geocoder
	events   Publisher
	now      func() time.Time
}

func NewGeocodeService(store JobGeoStore, geocoder geo.Geocoder, events Publisher) *GeocodeService {
	return &GeocodeService{store: store, geocoder: geocoder, events: publisherOrNop(events), now: time.Now}
}

func jobAddress(j *domain.Job) geo.Address {
	return geo.Address{Street: j.Address, PostalCode: j.PostalCode, City: j.City}
}

// GeocodeJob looks up the job address. Success resets the retry counter;
// any failure marks the job "failed" and increments it. A job with no
// address is left alone.
func (s *GeocodeService) GeocodeJob(ctx context.Context, orderNo int16) error {
	j, err := s.store.Get(ctx, orderNo)
	if err != nil {
		return err
	}
	addr := jobAddress(j)
	if addr.Empty() {
		return nil
	}

	log := logger.WithContext(ctx).With("order_no", orderNo)
	res, err := s.geocoder.Geocode(ctx, addr)
	now := s.now()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		log.Warn("geocoding failed", "address", addr.String(), "retries", j.GeocodeRetries+1, "error", err)
		if merr := s.store.MarkGeocodeFailed(ctx, orderNo, now); merr != nil {
			return merr
		}
		return err
	}

	if err := s.store.MarkGeocoded(ctx, orderNo, res, now); err != nil {
		return err
	}
	log.Debug("job geocoded", "lat", res.Lat, "lon", res.Lon)
	s.events.Broadcast(EventJobGeocoded, map[string]any{
		"order_no": orderNo, "latitude": res.Lat, "longitude": res.Lon, "accuracy": res.Accuracy,
	})
	return nil
}

// DueJobs lists the jobs whose geocoding is due at now, honouring the
// exponential retry backoff.
func (s *GeocodeService) DueJobs(ctx context.Context, limit int) ([]int16, error) {
	candidates, err := s.store.GeocodeCandidates(ctx, limit)
	if err != nil {
		return nil, err
	}
	now := s.now()
	due := []int16{}
	for _, j := range candidates {
		if j.NeedsGeocoding(now) {
			due = append(due, j.OrderNo)
		}
	}
	return due, nil
}

// AllWithAddress lists every job with an address, for a forced re-run.
func (s *GeocodeService) AllWithAddress(ctx context.Context) ([]int16, error) {
	return s.store.WithAddress(ctx)
}
