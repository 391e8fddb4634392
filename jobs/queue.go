package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"cardwatch/store"
)

// ErrQueueClosed is returned when Submit is called after shutdown.
var ErrQueueClosed = errors.New("jobs: queue closed")

// Request asks for one retailer scrape. An empty slug means all retailers.
type Request struct {
	Slug   string
	Filter store.ProductFilter
}

// Queue decouples manual scrape triggers from their callers: requests are
// submitted fire-and-forget and executed on background workers, with the
// job record as the only completion signal.
type Queue struct {
	runner *Runner
	reqCh  chan Request

	wg sync.WaitGroup

	mu     sync.Mutex
	closed bool

	closeOnce sync.Once
}

// NewQueue builds a queue with a modest in-memory buffer.
func NewQueue(runner *Runner) *Queue {
	return &Queue{
		runner: runner,
		reqCh:  make(chan Request, 32),
	}
}

// Start launches worker goroutines that live until Close.
func (q *Queue) Start(ctx context.Context, workers int) {
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
}

// Submit enqueues a scrape request. The caller is not required to observe
// completion; outcomes land in the job records. The lock is held across
// the send so Submit can never race Close into a closed channel.
func (q *Queue) Submit(req Request) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.reqCh <- req:
		return nil
	default:
		return errors.New("jobs: queue full")
	}
}

// Close stops intake and waits for in-flight requests to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.closeOnce.Do(func() {
		close(q.reqCh)
	})
	q.mu.Unlock()

	q.wg.Wait()
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()

	for req := range q.reqCh {
		if ctx.Err() != nil {
			return
		}
		if req.Slug == "" {
			if _, err := q.runner.RunAll(ctx, req.Filter, false); err != nil {
				slog.Error("queued run failed", slog.Any("error", err))
			}
			continue
		}
		if _, err := q.runner.RunRetailer(ctx, req.Slug, req.Filter); err != nil {
			slog.Error("queued run failed",
				slog.String("retailer", req.Slug),
				slog.Any("error", err),
			)
		}
	}
}
