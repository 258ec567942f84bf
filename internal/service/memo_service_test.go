package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"nxfs_api/internal/domain"
	"nxfs_api/internal/geo"
)

func located(orderNo int16, lat, lon float64, completed bool) *domain.Job {
	return &domain.Job{OrderNo: orderNo, Address: "x", Latitude: &lat, Longitude: &lon, Completed: completed}
}

func TestNearbySortedAndFiltered(t *testing.T) {
	// Oslo sentrum as origin
	jobs := newFakeJobStore(
		located(1, 59.9139, 10.7522, false), // origin
		located(2, 59.9300, 10.7522, false), // ~1.8 km north
		located(3, 59.9200, 10.7522, false), // ~0.7 km north
		located(4, 59.9150, 10.7522, true),  // completed
		located(5, 60.3913, 5.3221, false),  // Bergen
		&domain.Job{OrderNo: 6, Address: "Ukjent"},
	)
	svc := NewMemoService(jobs, &fakeMaterialStore{}, nil)

	got, err := svc.Nearby(context.Background(), NearbyQuery{Lat: 59.9139, Lon: 10.7522, RadiusM: 5000})
	if err != nil {
		t.Fatalf("nearby: %v", err)
	}
	var order []int16
	for _, j := range got {
		order = append(order, j.OrderNo)
	}
	if len(order) != 3 || order[0] != 1 || order[1] != 3 || order[2] != 2 {
		t.Fatalf("unexpected order %v", order)
	}
	if got[0].DistanceM != 0 || got[2].DistanceM < 1500 || got[2].DistanceM > 2000 {
		t.Fatalf("unexpected distances %v / %v", got[0].DistanceM, got[2].DistanceM)
	}

	withDone, _ := svc.Nearby(context.Background(), NearbyQuery{Lat: 59.9139, Lon: 10.7522, IncludeCompleted: true})
	if len(withDone) != 4 {
		t.Fatalf("include_completed should add the completed job, got %d", len(withDone))
	}
}

func TestNearbyValidation(t *testing.T) {
	svc := NewMemoService(newFakeJobStore(), &fakeMaterialStore{}, nil)
	_, err := svc.Nearby(context.Background(), NearbyQuery{Lat: 91, Lon: 200, RadiusM: MaxNearbyRadiusM + 1})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, f := range []string{"lat", "lon", "radius"} {
		if len(verr.Fields[f]) == 0 {
			t.Fatalf("missing field error for %s: %+v", f, verr.Fields)
		}
	}
}

func TestNearbyRejectsNonFiniteInput(t *testing.T) {
	store := newFakeJobStore()
	svc := NewMemoService(store, &fakeMaterialStore{}, nil)
	cases := []struct {
		q     NearbyQuery
		field string
	}{
		{NearbyQuery{Lat: math.NaN(), Lon: 10}, "lat"},
		{NearbyQuery{Lat: 59.9, Lon: math.NaN()}, "lon"},
		{NearbyQuery{Lat: 59.9, Lon: 10, RadiusM: math.NaN()}, "radius"},
		{NearbyQuery{Lat: math.Inf(1), Lon: 10}, "lat"},
		{NearbyQuery{Lat: 59.9, Lon: 10, RadiusM: math.Inf(1)}, "radius"},
	}
	for _, tc := range cases {
		res, err := svc.Nearby(context.Background(), tc.q)
		var verr *domain.ValidationError
		if !errors.As(err, &verr) || len(verr.Fields[tc.field]) == 0 {
			t.Fatalf("%+v: expected %s field error, got results=%v err=%v", tc.q, tc.field, res, err)
		}
	}
}

func TestJobAddressChangeResetsGeocode(t *testing.T) {
	lat, lon := 59.9, 10.7
	acc := domain.AccuracyExact
	now := time.Now()
	jobs := newFakeJobStore(&domain.Job{
		OrderNo: 10, Address: "Storgata 1", Latitude: &lat, Longitude: &lon,
		GeocodeAccuracy: &acc, GeocodedAt: &now, GeocodeRetries: 2,
	})
	q := &recordingQueue{}
	svc := NewMemoService(jobs, &fakeMaterialStore{}, q)
	ctx := context.Background()

	if _, err := svc.UpdateJob(ctx, 10, JobInput{Phone: strPtr("12345678")}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(q.queued) != 0 || jobs.jobs[10].Latitude == nil {
		t.Fatalf("non-address edit must keep coordinates")
	}

	j, err := svc.UpdateJob(ctx, 10, JobInput{Address: strPtr("Karl Johans gate 1")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if j.HasCoordinates() || j.GeocodeAccuracy != nil || j.GeocodeRetries != 0 {
		t.Fatalf("address change must clear geocode state: %+v", j)
	}
	if len(q.queued) != 1 || q.queued[0] != 10 {
		t.Fatalf("address change must enqueue the job, got %v", q.queued)
	}
}

func TestCreateJobValidatesAndEnqueues(t *testing.T) {
	q := &recordingQueue{}
	svc := NewMemoService(newFakeJobStore(), &fakeMaterialStore{}, q)
	ctx := context.Background()

	no := int16(42)
	_, err := svc.CreateJob(ctx, JobInput{OrderNo: &no, PostalCode: strPtr("12a")})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || len(verr.Fields["postal_code"]) == 0 {
		t.Fatalf("expected postal_code error, got %v", err)
	}

	if _, err := svc.CreateJob(ctx, JobInput{OrderNo: &no, Address: strPtr("Storgata 1"), PostalCode: strPtr("0155")}); err != nil {
		t.Fatalf("create job: %v", err)
	}
	if len(q.queued) != 1 {
		t.Fatalf("new job with address must be queued")
	}
}

func TestBulkFavorite(t *testing.T) {
	materials := &fakeMaterialStore{materials: map[int64]*domain.Material{
		1: {ID: 1, ElNr: "1000001"},
		2: {ID: 2, ElNr: "1000002"},
	}}
	svc := NewMemoService(newFakeJobStore(), materials, nil)

	res, err := svc.BulkFavorite(context.Background(), []int64{1, 2, 3, 2}, true)
	if err != nil {
		t.Fatalf("bulk favorite: %v", err)
	}
	if res.UpdatedCount != 2 || len(res.FailedIDs) != 1 || res.FailedIDs[0] != 3 {
		t.Fatalf("unexpected result %+v", res)
	}
	if !materials.materials[1].Favorite || !materials.materials[2].Favorite {
		t.Fatalf("favorite flag not applied")
	}
}

func TestTimeEntriesTotal(t *testing.T) {
	jobs := newFakeJobStore(&domain.Job{OrderNo: 5})
	svc := NewMemoService(jobs, &fakeMaterialStore{}, nil)
	ctx := context.Background()

	for _, h := range []float64{1.5, 2.25} {
		h := h
		if _, err := svc.AddTimeEntry(ctx, 1, 5, TimeEntryInput{Hours: &h, Date: strPtr("2026-03-01")}); err != nil {
			t.Fatalf("add entry: %v", err)
		}
	}
	bad := 25.0
	if _, err := svc.AddTimeEntry(ctx, 1, 5, TimeEntryInput{Hours: &bad}); err == nil {
		t.Fatalf("expected hours validation error")
	}
	if _, err := svc.AddTimeEntry(ctx, 1, 99, TimeEntryInput{}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown job must be not found, got %v", err)
	}

	sheet, err := svc.TimeEntries(ctx, 5)
	if err != nil {
		t.Fatalf("time entries: %v", err)
	}
	if len(sheet.Entries) != 2 || sheet.TotalHours != 3.75 {
		t.Fatalf("unexpected sheet %+v", sheet)
	}
}

func TestGeocodeJobSuccessAndFailure(t *testing.T) {
	jobs := newFakeJobStore(
		&domain.Job{OrderNo: 1, Address: "Storgata 1", City: "Oslo"},
		&domain.Job{OrderNo: 2, Address: "Nowhere 99"},
	)
	ctx := context.Background()

	pub := &recordingPublisher{}
	ok := NewGeocodeService(jobs, &stubGeocoder{res: &geo.Result{Lat: 59.9, Lon: 10.7, Accuracy: domain.AccuracyExact}}, pub)
	if err := ok.GeocodeJob(ctx, 1); err != nil {
		t.Fatalf("geocode: %v", err)
	}
	if !jobs.jobs[1].HasCoordinates() || *jobs.jobs[1].GeocodeAccuracy != domain.AccuracyExact {
		t.Fatalf("coordinates not stored: %+v", jobs.jobs[1])
	}
	if got := pub.types(); len(got) != 1 || got[0] != EventJobGeocoded {
		t.Fatalf("events = %v", got)
	}

	failing := NewGeocodeService(jobs, &stubGeocoder{err: geo.ErrNoMatch}, nil)
	if err := failing.GeocodeJob(ctx, 2); !errors.Is(err, geo.ErrNoMatch) {
		t.Fatalf("expected ErrNoMatch, got %v", err)
	}
	j := jobs.jobs[2]
	if j.GeocodeAccuracy == nil || *j.GeocodeAccuracy != domain.AccuracyFailed || j.GeocodeRetries != 1 {
		t.Fatalf("failure not recorded: %+v", j)
	}
}

func TestDueJobsHonoursBackoff(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	failed := domain.AccuracyFailed
	recent := now.Add(-30 * time.Second)
	old := now.Add(-time.Hour)
	jobs := newFakeJobStore(
		&domain.Job{OrderNo: 1, Address: "a"},
		&domain.Job{OrderNo: 2, Address: "b", GeocodeAccuracy: &failed, GeocodeRetries: 1, LastGeocodeAttempt: &recent},
		&domain.Job{OrderNo: 3, Address: "c", GeocodeAccuracy: &failed, GeocodeRetries: 2, LastGeocodeAttempt: &old},
		&domain.Job{OrderNo: 4, Address: "d", GeocodeAccuracy: &failed, GeocodeRetries: domain.MaxGeocodeRetries, LastGeocodeAttempt: &old},
	)
	svc := NewGeocodeService(jobs, &stubGeocoder{}, nil)
	svc.now = func() time.Time { return now }

	due, err := svc.DueJobs(context.Background(), 100)
	if err != nil {
		t.Fatalf("due jobs: %v", err)
	}
	if len(due) != 2 || due[0] != 1 || due[1] != 3 {
		t.Fatalf("due = %v; want [1 3]", due)
	}
}
