package worker

import (
	"context"
	"fmt"
	"time"

	"nxfs_api/internal/logger"

	"github.com/robfig/cron/v3"
)

// Scheduler wraps cron-based maintenance jobs.
type Scheduler struct {
	cron *cron.Cron
	ctx  context.Context
}

// NewScheduler runs jobs with ctx; cancelling it aborts in-flight jobs.
func NewScheduler(ctx context.Context) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		ctx:  ctx,
	}
}

// ScheduleInterval registers a periodic job every given duration.
func (s *Scheduler) ScheduleInterval(name string, interval time.Duration, job func(context.Context) error) (cron.EntryID, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("%s: interval must be positive", name)
	}
	seconds := int(interval.Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	return s.cron.AddFunc(fmt.Sprintf("@every %ds", seconds), s.wrap(name, job))
}

func (s *Scheduler) wrap(name string, job func(context.Context) error) func() {
	return func() {
		if s.ctx.Err() != nil {
			return
		}
		start := time.Now()
		if err := job(s.ctx); err != nil {
			logger.Error("scheduled job failed", "job", name, "error", err)
			return
		}
		logger.Debug("scheduled job done", "job", name, "duration_ms", time.Since(start).Milliseconds())
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
