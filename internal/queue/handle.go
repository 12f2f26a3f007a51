package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Handle tracks a single enqueued task.
type Handle struct {
	ID         uuid.UUID
	UserID     int64
	EnqueuedAt time.Time

	once sync.Once
	done chan struct{}
	err  error
}

// Done is closed when the task has finished, failed or been dropped.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err returns the task result. It is nil until Done is closed.
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Wait blocks until the task resolves or ctx is done.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handle) resolve(err error) {
	h.once.Do(func() {
		h.err = err
		close(h.done)
	})
}
