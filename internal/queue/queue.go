// Package queue runs background work so that each user has at most one task
// in flight while tasks of different users run concurrently.
//
// Tasks of one user start in the order they were enqueued. A user whose
// previous task is still running never delays the tasks of other users.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrStopped is returned by Enqueue after Stop and resolves every task
	// that was still pending when the queue stopped.
	ErrStopped = errors.New("task queue is stopped")
	// ErrNilWork is returned when Enqueue is called without a work function.
	ErrNilWork = errors.New("work function is nil")
	// ErrPanic wraps a panic recovered from a work function.
	ErrPanic = errors.New("task panicked")
)

// WorkFunc is the unit of work executed by the queue.
type WorkFunc func(ctx context.Context) error

// Option configures a single task.
type Option func(*task)

// WithPriority records a priority on the task. It is kept for reporting only
// and does not affect ordering.
func WithPriority(priority int) Option {
	return func(t *task) {
		t.priority = priority
	}
}

// WithName sets a name used in log records.
func WithName(name string) Option {
	return func(t *task) {
		t.name = name
	}
}

type task struct {
	seq      uint64
	name     string
	priority int
	work     WorkFunc
	handle   *Handle
}

type inflight struct {
	handle *Handle
	cancel context.CancelFunc
}

// Stats is a snapshot of the queue.
type Stats struct {
	Pending     int `json:"pending"`
	ActiveUsers int `json:"active_users"`
}

// Queue is a process-wide per-user serial task queue.
type Queue struct {
	logger *slog.Logger

	mu      sync.Mutex
	seq     uint64
	pending map[int64][]*task
	ready   []int64
	running map[int64]*inflight
	stopped bool

	wake   chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates an empty queue. Call Run to start dispatching.
func New(logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		logger:  logger.With("component", "task_queue"),
		pending: make(map[int64][]*task),
		running: make(map[int64]*inflight),
		wake:    make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
	}
}

// Enqueue appends work to the user's FIFO and returns a handle that resolves
// when the work finishes. It never blocks.
func (q *Queue) Enqueue(userID int64, work WorkFunc, opts ...Option) (*Handle, error) {
	if work == nil {
		return nil, ErrNilWork
	}

	t := &task{
		work: work,
		handle: &Handle{
			ID:         uuid.New(),
			UserID:     userID,
			EnqueuedAt: time.Now(),
			done:       make(chan struct{}),
		},
	}
	for _, opt := range opts {
		opt(t)
	}

	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return nil, ErrStopped
	}
	q.seq++
	t.seq = q.seq
	q.pending[userID] = append(q.pending[userID], t)
	if len(q.pending[userID]) == 1 {
		q.insertReadyLocked(userID)
	}
	pendingCount := len(q.pending[userID])
	q.mu.Unlock()

	q.signal()

	q.logger.Debug("Task enqueued",
		"task_id", t.handle.ID,
		"task_name", t.name,
		"user_id", userID,
		"priority", t.priority,
		"user_pending", pendingCount)

	return t.handle, nil
}

// Run dispatches tasks until Stop is called or ctx is cancelled. Work is
// started with a context detached from ctx so that in-flight tasks complete
// during shutdown; use Cancel to abort a user's running task.
func (q *Queue) Run(ctx context.Context) error {
	q.logger.Info("Task queue dispatcher started")
	base := context.WithoutCancel(ctx)

	for {
		q.mu.Lock()
		if q.stopped {
			q.mu.Unlock()
			q.logger.Info("Task queue dispatcher stopped")
			return nil
		}
		t, taskCtx := q.nextLocked(base)
		q.mu.Unlock()

		if t != nil {
			q.logger.Debug("Starting task",
				"task_id", t.handle.ID,
				"task_name", t.name,
				"user_id", t.handle.UserID,
				"waited", time.Since(t.handle.EnqueuedAt))
			go q.execute(taskCtx, t)
			continue
		}

		select {
		case <-ctx.Done():
			q.Stop()
		case <-q.stopCh:
		case <-q.wake:
		}
	}
}

// nextLocked picks the head task of the first ready user with no task in
// flight and marks that user as running.
func (q *Queue) nextLocked(base context.Context) (*task, context.Context) {
	for i, userID := range q.ready {
		if _, busy := q.running[userID]; busy {
			continue
		}

		fifo := q.pending[userID]
		t := fifo[0]
		fifo[0] = nil
		fifo = fifo[1:]

		q.ready = append(q.ready[:i], q.ready[i+1:]...)
		if len(fifo) == 0 {
			delete(q.pending, userID)
		} else {
			q.pending[userID] = fifo
			q.insertReadyLocked(userID)
		}

		taskCtx, cancel := context.WithCancel(base)
		q.running[userID] = &inflight{handle: t.handle, cancel: cancel}
		q.wg.Add(1)
		return t, taskCtx
	}
	return nil, nil
}

// insertReadyLocked keeps ready ordered by the arrival of each user's head task.
func (q *Queue) insertReadyLocked(userID int64) {
	head := q.pending[userID][0].seq
	i := sort.Search(len(q.ready), func(i int) bool {
		return q.pending[q.ready[i]][0].seq > head
	})
	q.ready = append(q.ready, 0)
	copy(q.ready[i+1:], q.ready[i:])
	q.ready[i] = userID
}

func (q *Queue) execute(ctx context.Context, t *task) {
	defer q.wg.Done()

	start := time.Now()
	err := runSafely(ctx, t.work)

	q.mu.Lock()
	if f, ok := q.running[t.handle.UserID]; ok {
		f.cancel()
		delete(q.running, t.handle.UserID)
	}
	q.mu.Unlock()

	t.handle.resolve(err)
	q.signal()

	log := q.logger.With(
		"task_id", t.handle.ID,
		"task_name", t.name,
		"user_id", t.handle.UserID,
		"duration", time.Since(start))
	switch {
	case err == nil:
		log.Debug("Task finished")
	case errors.Is(err, context.Canceled):
		log.Info("Task cancelled")
	default:
		log.Error("Task failed", "error", err)
	}
}

func runSafely(ctx context.Context, work WorkFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return work(ctx)
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Stop makes the dispatcher exit at its next iteration. Running tasks are
// left to complete; tasks that have not started resolve with ErrStopped.
// Stop is idempotent.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	close(q.stopCh)

	var dropped []*task
	for _, userID := range q.ready {
		dropped = append(dropped, q.pending[userID]...)
	}
	q.pending = make(map[int64][]*task)
	q.ready = nil
	q.mu.Unlock()

	for _, t := range dropped {
		t.handle.resolve(ErrStopped)
	}

	q.logger.Info("Task queue stopped", "dropped_tasks", len(dropped))
}

// Wait blocks until every running task has finished or ctx is done. It must
// be called after Stop.
func (q *Queue) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for running tasks: %w", ctx.Err())
	}
}

// Stats returns the number of tasks waiting to start and the number of users
// with a task in flight.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending := 0
	for _, fifo := range q.pending {
		pending += len(fifo)
	}
	return Stats{Pending: pending, ActiveUsers: len(q.running)}
}

// Busy reports whether the user has a task running or waiting to run.
func (q *Queue) Busy(userID int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.running[userID]; ok {
		return true
	}
	return len(q.pending[userID]) > 0
}

// Cancel cancels the context of the user's running task. Work functions
// observe the cancellation cooperatively. It reports whether a task was
// running.
func (q *Queue) Cancel(userID int64) bool {
	q.mu.Lock()
	f, ok := q.running[userID]
	q.mu.Unlock()

	if !ok {
		return false
	}
	f.cancel()
	q.logger.Info("Task cancellation requested", "task_id", f.handle.ID, "user_id", userID)
	return true
}
