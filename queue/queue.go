// Package queue carries derivative generation jobs from producers to
// workers. Delivery is at least once and unordered.
package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrQueueFull = errors.New("job queue is full")
	ErrClosed    = errors.New("job queue is closed")
)

// Job identifies one derivative. It carries ids only; the recipe is looked
// up when the job runs.
type Job struct {
	AttachmentID uuid.UUID `json:"attachment_id"`
	Format       string    `json:"format"`
	Breakpoint   int       `json:"breakpoint,omitempty"`
}

// Key identifies the derivative a job produces. Jobs with the same key are
// interchangeable.
func (j Job) Key() string {
	return fmt.Sprintf("%s/%s@%d", j.AttachmentID, j.Format, j.Breakpoint)
}

type Dispatcher interface {
	Enqueue(ctx context.Context, job Job) error
}

type Handler func(ctx context.Context, job Job) error

// Sync runs every job inline on Enqueue.
type Sync struct {
	Handler Handler
}

func (s Sync) Enqueue(ctx context.Context, job Job) error {
	return s.Handler(ctx, job)
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, job Job) error

func (f DispatcherFunc) Enqueue(ctx context.Context, job Job) error {
	return f(ctx, job)
}
