package queue

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	jobs []Job
}

func (r *recorder) handle(ctx context.Context, job Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
	return nil
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

func TestJobKey(t *testing.T) {
	id := uuid.MustParse("6f1c2d3e-0000-4000-8000-000000000001")
	assert.Equal(t, "6f1c2d3e-0000-4000-8000-000000000001/hero@0", Job{AttachmentID: id, Format: "hero"}.Key())
	assert.Equal(t, "6f1c2d3e-0000-4000-8000-000000000001/hero@768", Job{AttachmentID: id, Format: "hero", Breakpoint: 768}.Key())
}

func TestSync(t *testing.T) {
	rec := &recorder{}
	d := Sync{Handler: rec.handle}
	require.NoError(t, d.Enqueue(context.Background(), Job{Format: "hero"}))
	assert.Equal(t, 1, rec.len())

	failing := Sync{Handler: func(context.Context, Job) error { return errors.New("boom") }}
	assert.Error(t, failing.Enqueue(context.Background(), Job{}))
}

func TestPoolRunsAllJobs(t *testing.T) {
	rec := &recorder{}
	p := NewPool(rec.handle, 3, 10, nil)
	p.Start(context.Background())

	for i := 0; i < 10; i++ {
		require.NoError(t, p.Enqueue(context.Background(), Job{AttachmentID: uuid.New(), Format: "hero"}))
	}
	p.Stop()

	assert.Equal(t, 10, rec.len())
	assert.ErrorIs(t, p.Enqueue(context.Background(), Job{}), ErrClosed)
	p.Stop()
}

func TestPoolFull(t *testing.T) {
	rec := &recorder{}
	p := NewPool(rec.handle, 1, 1, nil)

	require.NoError(t, p.Enqueue(context.Background(), Job{Format: "a"}))
	assert.ErrorIs(t, p.Enqueue(context.Background(), Job{Format: "b"}), ErrQueueFull)

	p.Start(context.Background())
	p.Stop()
	assert.Equal(t, 1, rec.len())
}

func TestPoolSurvivesPanics(t *testing.T) {
	rec := &recorder{}
	handler := func(ctx context.Context, job Job) error {
		if job.Format == "panic" {
			panic("bad job")
		}
		return rec.handle(ctx, job)
	}
	p := NewPool(handler, 1, 4, nil)
	p.Start(context.Background())

	require.NoError(t, p.Enqueue(context.Background(), Job{Format: "panic"}))
	require.NoError(t, p.Enqueue(context.Background(), Job{Format: "ok"}))
	p.Stop()

	assert.Equal(t, 1, rec.len())
}
