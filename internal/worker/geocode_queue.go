package worker

import (
	"context"
	"errors"
	"sync"

	"nxfs_api/internal/logger"
)

// JobGeocoder geocodes one job by order number.
type JobGeocoder interface {
	GeocodeJob(ctx context.Context, orderNo int16) error
}

// GeocodeQueue feeds order numbers to a fixed pool of workers. Enqueue never
// blocks; a full queue drops the job and the sweep picks it up later.
type GeocodeQueue struct {
	geocoder JobGeocoder
	jobs     chan int16
	workers  int

	mu      sync.Mutex
	pending map[int16]struct{}
	wg      sync.WaitGroup
}

func NewGeocodeQueue(geocoder JobGeocoder, size, workers int) *GeocodeQueue {
	if size < 1 {
		size = 1
	}
	if workers < 1 {
		workers = 1
	}
	return &GeocodeQueue{
		geocoder: geocoder,
		jobs:     make(chan int16, size),
		workers:  workers,
		pending:  make(map[int16]struct{}),
	}
}

// Enqueue reports whether the job was queued. A job already waiting in the
// queue counts as queued.
func (q *GeocodeQueue) Enqueue(orderNo int16) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.pending[orderNo]; ok {
		return true
	}
	select {
	case q.jobs <- orderNo:
		q.pending[orderNo] = struct{}{}
		return true
	default:
		return false
	}
}

// Start launches the workers. They exit when ctx is cancelled; Wait blocks
// until they have.
func (q *GeocodeQueue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.run(ctx, i)
	}
}

func (q *GeocodeQueue) Wait() {
	q.wg.Wait()
}

func (q *GeocodeQueue) run(ctx context.Context, id int) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case orderNo := <-q.jobs:
			q.mu.Lock()
			delete(q.pending, orderNo)
			q.mu.Unlock()

			if err := q.geocoder.GeocodeJob(ctx, orderNo); err != nil && !errors.Is(err, context.Canceled) {
				logger.Debug("geocode worker: job failed", "worker", id, "order_no", orderNo, "error", err)
			}
		}
	}
}
