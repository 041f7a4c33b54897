// Package store keeps verification task records in memory until they expire.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/joseph-ayodele/idverify/constants"
	"github.com/joseph-ayodele/idverify/internal/common"
	"github.com/joseph-ayodele/idverify/internal/verify"
)

const (
	DefaultRetention     = 24 * time.Hour
	DefaultSweepInterval = time.Hour
)

// TaskRecord is the pollable state of one task. Values handed out by the
// Store are copies; Result is immutable once set.
type TaskRecord struct {
	ID         string               `json:"task_id"`
	Status     constants.TaskStatus `json:"status"`
	Result     *verify.Outcome      `json:"result,omitempty"`
	Error      string               `json:"error,omitempty"`
	ErrorCode  string               `json:"error_code,omitempty"`
	Filename   string               `json:"-"`
	CreatedAt  time.Time            `json:"created_at"`
	StartedAt  *time.Time           `json:"started_at,omitempty"`
	FinishedAt *time.Time           `json:"finished_at,omitempty"`
}

// Store maps task ids to records. One mutex guards the map and is only held
// for the duration of a map access.
type Store struct {
	mu      sync.Mutex
	records map[string]*TaskRecord

	retention     time.Duration
	sweepInterval time.Duration
	now           func() time.Time
	onSweep       func(removed int)
	logger        *zap.Logger
}

type Option func(*Store)

func WithRetention(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.retention = d
		}
	}
}

func WithSweepInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.sweepInterval = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSweepObserver is called after every sweep with the number of records removed.
func WithSweepObserver(fn func(removed int)) Option {
	return func(s *Store) {
		if fn != nil {
			s.onSweep = fn
		}
	}
}

func New(logger *zap.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		records:       make(map[string]*TaskRecord),
		retention:     DefaultRetention,
		sweepInterval: DefaultSweepInterval,
		now:           time.Now,
		onSweep:       func(int) {},
		logger:        logger.Named("store"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create adds a queued record.
func (s *Store) Create(id, filename string) (TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[id]; exists {
		return TaskRecord{}, common.NewAppError("DUPLICATE_TASK", fmt.Sprintf("task %s already exists", id), common.ErrInvalidInput)
	}
	r := &TaskRecord{
		ID:        id,
		Status:    constants.TaskStatusQueued,
		Filename:  filename,
		CreatedAt: s.now().UTC(),
	}
	s.records[id] = r
	return *r, nil
}

func (s *Store) MarkProcessing(id string) error {
	return s.transition(id, constants.TaskStatusProcessing, func(r *TaskRecord, now time.Time) {
		r.StartedAt = &now
	})
}

func (s *Store) Complete(id string, outcome *verify.Outcome) error {
	if outcome == nil {
		return common.NewAppError("INVALID_RESULT", "completed task needs an outcome", common.ErrInvalidInput)
	}
	return s.transition(id, constants.TaskStatusCompleted, func(r *TaskRecord, now time.Time) {
		r.Result = outcome
		r.FinishedAt = &now
	})
}

func (s *Store) Fail(id, code, message string) error {
	return s.transition(id, constants.TaskStatusFailed, func(r *TaskRecord, now time.Time) {
		r.ErrorCode = code
		r.Error = message
		r.FinishedAt = &now
	})
}

func (s *Store) transition(id string, next constants.TaskStatus, apply func(r *TaskRecord, now time.Time)) error {
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return common.NewAppError("TASK_NOT_FOUND", fmt.Sprintf("task %s not found", id), common.ErrNotFound)
	}
	if !r.Status.CanTransition(next) {
		return common.NewAppError("INVALID_TRANSITION", fmt.Sprintf("task %s: %s -> %s", id, r.Status, next), common.ErrInvalidTransition)
	}
	r.Status = next
	apply(r, now)
	return nil
}

// Get returns a snapshot of the record. Records past retention are reported
// as not found even before the sweeper removes them.
func (s *Store) Get(id string) (TaskRecord, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok || s.expired(r, now) {
		return TaskRecord{}, common.NewAppError("TASK_NOT_FOUND", fmt.Sprintf("task %s not found", id), common.ErrNotFound)
	}
	return *r, nil
}

func (s *Store) expired(r *TaskRecord, now time.Time) bool {
	return now.Sub(r.CreatedAt) > s.retention
}

// Sweep removes every record older than the retention window, whatever its status.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	removed := 0
	for id, r := range s.records {
		if s.expired(r, now) {
			delete(s.records, id)
			removed++
		}
	}
	remaining := len(s.records)
	s.mu.Unlock()

	s.onSweep(removed)
	if removed > 0 {
		s.logger.Info("expired task records removed", zap.Int("removed", removed), zap.Int("remaining", remaining))
	}
	return removed
}

// Run sweeps every sweep interval until ctx is done.
func (s *Store) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	s.logger.Info("sweeper started", zap.Duration("interval", s.sweepInterval), zap.Duration("retention", s.retention))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return nil
		case <-ticker.C:
			s.Sweep(s.now())
		}
	}
}

// List returns snapshots of live records, oldest first.
func (s *Store) List() []TaskRecord {
	now := s.now()
	s.mu.Lock()
	out := make([]TaskRecord, 0, len(s.records))
	for _, r := range s.records {
		if !s.expired(r, now) {
			out = append(out, *r)
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Counts returns the number of records per status.
func (s *Store) Counts() map[constants.TaskStatus]int {
	counts := map[constants.TaskStatus]int{
		constants.TaskStatusQueued:     0,
		constants.TaskStatusProcessing: 0,
		constants.TaskStatusCompleted:  0,
		constants.TaskStatusFailed:     0,
	}
	s.mu.Lock()
	for _, r := range s.records {
		counts[r.Status]++
	}
	s.mu.Unlock()
	return counts
}
