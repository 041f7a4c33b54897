// Package async runs verification tasks on a fixed pool of workers fed by a FIFO queue.
package async

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/idverify/constants"
	"github.com/joseph-ayodele/idverify/internal/common"
	"github.com/joseph-ayodele/idverify/internal/logging"
	"github.com/joseph-ayodele/idverify/internal/store"
	"github.com/joseph-ayodele/idverify/internal/verify"
)

// job is a pending request; the queue drops it once a worker takes it.
type job struct {
	id         string
	req        verify.Request
	enqueuedAt time.Time
}

// Stats is a point-in-time view of the queue.
type Stats struct {
	Queued   int `json:"queued"`
	InFlight int `json:"in_flight"`
	Workers  int `json:"workers"`
	Capacity int `json:"capacity"` // 0 = unbounded

	Records map[constants.TaskStatus]int `json:"records,omitempty"` // retained records by status
}

// Queue owns the pending FIFO, the worker pool and the record store.
type Queue struct {
	store     *store.Store
	extractor verify.TextExtractor
	logger    *zap.Logger
	observer  Observer
	newID     func() string

	workers  int
	capacity int
	timeout  time.Duration

	mu       sync.Mutex
	pending  []job
	inFlight int
	closed   bool

	notify  chan struct{} // buffered(1) wake-up for idle workers
	closing chan struct{} // closed when shutdown begins

	baseCtx context.Context
	cancel  context.CancelFunc

	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

type Option func(*Queue)

func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

// WithCapacity bounds the number of queued tasks; Submit rejects beyond it. 0 = unbounded.
func WithCapacity(n int) Option {
	return func(q *Queue) {
		if n >= 0 {
			q.capacity = n
		}
	}
}

func WithTaskTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func WithObserver(o Observer) Option {
	return func(q *Queue) {
		if o != nil {
			q.observer = o
		}
	}
}

// WithIDGenerator replaces the UUIDv4 task id source.
func WithIDGenerator(fn func() string) Option {
	return func(q *Queue) {
		if fn != nil {
			q.newID = fn
		}
	}
}

func NewQueue(st *store.Store, extractor verify.TextExtractor, logger *zap.Logger, opts ...Option) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		store:     st,
		extractor: extractor,
		logger:    logger.Named("queue"),
		observer:  noopObserver{},
		newID:     uuid.NewString,
		workers:   2,
		timeout:   3 * time.Minute,
		notify:    make(chan struct{}, 1),
		closing:   make(chan struct{}),
		baseCtx:   ctx,
		cancel:    cancel,
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

// Start launches the workers. Calling it more than once has no effect.
func (q *Queue) Start() {
	q.startOnce.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go q.worker(i + 1)
		}
		q.logger.Info("worker pool started",
			zap.Int("workers", q.workers),
			zap.Int("capacity", q.capacity),
			zap.Duration("task_timeout", q.timeout),
		)
	})
}

// Submit validates req, records it as queued and returns its id without
// waiting for any processing.
func (q *Queue) Submit(ctx context.Context, req verify.Request) (string, error) {
	if err := req.Validate(); err != nil {
		q.observer.Rejected("invalid")
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.observer.Rejected("shutting_down")
		return "", common.NewAppError(constants.ErrCodeShuttingDown, "not accepting new tasks", common.ErrShuttingDown)
	}
	if q.capacity > 0 && len(q.pending) >= q.capacity {
		q.mu.Unlock()
		q.observer.Rejected("full")
		q.logger.Warn("queue full, rejecting submission", zap.Int("capacity", q.capacity))
		return "", common.NewAppError("QUEUE_FULL", fmt.Sprintf("queue already holds %d tasks", q.capacity), common.ErrQueueFull)
	}
	id := q.newID()
	if _, err := q.store.Create(id, req.Filename); err != nil {
		q.mu.Unlock()
		return "", err
	}
	q.pending = append(q.pending, job{id: id, req: req, enqueuedAt: time.Now()})
	depth := len(q.pending)
	q.mu.Unlock()

	q.signal()
	q.observer.Submitted(depth)
	logging.WithTask(q.logger, id).Info("queued task for verification",
		zap.String("filename", req.Filename),
		zap.Int("image_bytes", len(req.Image)),
		zap.Int("queue_depth", depth),
	)
	return id, nil
}

// Poll returns the current record for taskID without blocking.
func (q *Queue) Poll(taskID string) (store.TaskRecord, error) {
	return q.store.Get(taskID)
}

func (q *Queue) Stats() Stats {
	q.mu.Lock()
	st := Stats{
		Queued:   len(q.pending),
		InFlight: q.inFlight,
		Workers:  q.workers,
		Capacity: q.capacity,
	}
	q.mu.Unlock()
	st.Records = q.store.Counts()
	return st
}

// Shutdown stops accepting tasks and waits for the workers to drain the queue.
// If ctx ends first, still-queued tasks are failed with SHUTTING_DOWN,
// in-flight tasks are cancelled and awaited, and ctx.Err() is returned.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.stopOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()
		close(q.closing)
	})

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-done:
		// workers never started: nothing else will take what is still pending
		q.failPending("service stopped before the task started")
		q.cancel()
		q.logger.Info("queue drained, shutdown complete")
		return nil
	case <-ctx.Done():
		n := q.failPending("service shut down before the task started")
		q.cancel()
		// in-flight tasks see the cancelled context and record their failure
		<-done
		q.logger.Warn("shutdown interrupted by context",
			zap.Int("abandoned", n),
			zap.Error(ctx.Err()),
		)
		return ctx.Err()
	}
}

func (q *Queue) failPending(message string) int {
	q.mu.Lock()
	abandoned := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, j := range abandoned {
		if err := q.store.Fail(j.id, constants.ErrCodeShuttingDown, message); err != nil {
			q.logger.Warn("failed to mark abandoned task", zap.String("task_id", j.id), zap.Error(err))
			continue
		}
		q.observer.Finished(constants.TaskStatusFailed, constants.ErrCodeShuttingDown, false, 0)
	}
	return len(abandoned)
}

func (q *Queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// next blocks until a job is available or the queue is closed and empty.
func (q *Queue) next() (job, bool) {
	for {
		q.mu.Lock()
		if len(q.pending) > 0 {
			j := q.pending[0]
			q.pending[0] = job{}
			q.pending = q.pending[1:]
			q.inFlight++
			remaining := len(q.pending)
			q.mu.Unlock()
			if remaining > 0 {
				q.signal()
			}
			return j, true
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return job{}, false
		}

		select {
		case <-q.notify:
		case <-q.closing:
		}
	}
}

func (q *Queue) worker(workerID int) {
	defer q.wg.Done()
	q.logger.Debug("worker started", zap.Int("worker_id", workerID))
	for {
		j, ok := q.next()
		if !ok {
			break
		}
		q.process(workerID, j)
	}
	q.logger.Debug("worker stopped", zap.Int("worker_id", workerID))
}
