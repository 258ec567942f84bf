package worker

import (
	"context"
	"time"

	"nxfs_api/internal/domain"
	"nxfs_api/internal/logger"
)

type UsageCleaner interface {
	Cleanup(ctx context.Context) (*domain.UsageCleanupResult, error)
}

type StaleHostDeactivator interface {
	DeactivateStale(ctx context.Context) (int64, error)
}

type DueJobLister interface {
	DueJobs(ctx context.Context, limit int) ([]int16, error)
}

type Enqueuer interface {
	Enqueue(orderNo int16) bool
}

const sweepBatch = 500

// Intervals for the maintenance jobs.
type Intervals struct {
	UsageCleanup time.Duration
	GeocodeSweep time.Duration
	DockerStale  time.Duration
}

// RegisterJobs schedules usage cleanup, the geocode sweep and stale docker
// host deactivation.
func RegisterJobs(s *Scheduler, iv Intervals, usage UsageCleaner, due DueJobLister, queue Enqueuer, docker StaleHostDeactivator) error {
	if _, err := s.ScheduleInterval("usage_cleanup", iv.UsageCleanup, func(ctx context.Context) error {
		_, err := usage.Cleanup(ctx)
		return err
	}); err != nil {
		return err
	}
	if _, err := s.ScheduleInterval("geocode_sweep", iv.GeocodeSweep, func(ctx context.Context) error {
		return GeocodeSweep(ctx, due, queue)
	}); err != nil {
		return err
	}
	_, err := s.ScheduleInterval("docker_stale_hosts", iv.DockerStale, func(ctx context.Context) error {
		n, err := docker.DeactivateStale(ctx)
		if n > 0 {
			logger.Info("docker hosts marked inactive", "count", n)
		}
		return err
	})
	return err
}

// GeocodeSweep re-queues jobs that are due for a (re)try.
func GeocodeSweep(ctx context.Context, due DueJobLister, queue Enqueuer) error {
	ids, err := due.DueJobs(ctx, sweepBatch)
	if err != nil {
		return err
	}
	queued := 0
	for _, id := range ids {
		if queue.Enqueue(id) {
			queued++
		}
	}
	if len(ids) > 0 {
		logger.Info("geocode sweep", "due", len(ids), "queued", queued)
	}
	return nil
}
