package redisq

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sndcds/attachments/queue"
)

func TestEncodeDecode(t *testing.T) {
	job := queue.Job{AttachmentID: uuid.New(), Format: "hero", Breakpoint: 768}
	payload, err := encode(job)
	require.NoError(t, err)
	assert.Contains(t, payload, `"format":"hero"`)

	decoded, err := decode(payload)
	require.NoError(t, err)
	assert.Equal(t, job, decoded)
}

func TestDecodeRejectsMalformed(t *testing.T) {
	_, err := decode("not json")
	assert.Error(t, err)

	_, err = decode(`{"attachment_id":"6f1c2d3e-0000-4000-8000-000000000001"}`)
	assert.Error(t, err)
}

func TestListNames(t *testing.T) {
	q := New(redis.NewClient(&redis.Options{}), "", nil)
	assert.Equal(t, "attachments:jobs:pending", q.pending)
	assert.Equal(t, "attachments:jobs:processing", q.processing)

	q = New(redis.NewClient(&redis.Options{}), "media", nil)
	assert.Equal(t, "media:pending", q.pending)
}

func TestPauseStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	pause(ctx, time.Minute)
	assert.Less(t, time.Since(start), time.Second)
}

// memoryLists implements the list commands the queue uses. Index 0 is the
// LEFT end of a list.
type memoryLists struct {
	redis.Cmdable
	mu    sync.Mutex
	lists map[string][]string
}

func newMemoryLists() *memoryLists {
	return &memoryLists{lists: make(map[string][]string)}
}

func (m *memoryLists) pop(key, pos string) (string, bool) {
	l := m.lists[key]
	if len(l) == 0 {
		return "", false
	}
	if pos == "LEFT" {
		m.lists[key] = l[1:]
		return l[0], true
	}
	m.lists[key] = l[:len(l)-1]
	return l[len(l)-1], true
}

func (m *memoryLists) push(key, pos, v string) {
	if pos == "LEFT" {
		m.lists[key] = append([]string{v}, m.lists[key]...)
		return
	}
	m.lists[key] = append(m.lists[key], v)
}

func (m *memoryLists) snapshot(key string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.lists[key]...)
}

func (m *memoryLists) LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range values {
		m.push(key, "LEFT", v.(string))
	}
	return redis.NewIntResult(int64(len(m.lists[key])), nil)
}

func (m *memoryLists) LLen(ctx context.Context, key string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	return redis.NewIntResult(int64(len(m.lists[key])), nil)
}

func (m *memoryLists) LRem(ctx context.Context, key string, count int64, value interface{}) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.lists[key]
	for i, v := range l {
		if v == value.(string) {
			m.lists[key] = append(l[:i:i], l[i+1:]...)
			return redis.NewIntResult(1, nil)
		}
	}
	return redis.NewIntResult(0, nil)
}

func (m *memoryLists) LMove(ctx context.Context, source, destination, srcpos, destpos string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.pop(source, srcpos)
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	m.push(destination, destpos, v)
	return redis.NewStringResult(v, nil)
}

func (m *memoryLists) BLMove(ctx context.Context, source, destination, srcpos, destpos string, timeout time.Duration) *redis.StringCmd {
	if cmd := m.LMove(ctx, source, destination, srcpos, destpos); cmd.Err() == nil {
		return cmd
	}
	select {
	case <-ctx.Done():
		return redis.NewStringResult("", ctx.Err())
	case <-time.After(5 * time.Millisecond):
		return redis.NewStringResult("", redis.Nil)
	}
}

func TestConsumeAcksFinishedJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rdb := newMemoryLists()
	q := New(rdb, "", nil)

	job := queue.Job{AttachmentID: uuid.New(), Format: "hero"}
	require.NoError(t, q.Enqueue(ctx, job))
	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	var handled []queue.Job
	err = q.Consume(ctx, 2, func(ctx context.Context, j queue.Job) error {
		handled = append(handled, j)
		cancel()
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []queue.Job{job}, handled)
	assert.Empty(t, rdb.snapshot(q.pending))
	assert.Empty(t, rdb.snapshot(q.processing))
}

func TestConsumeAcksFailedJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rdb := newMemoryLists()
	q := New(rdb, "", nil)
	require.NoError(t, q.Enqueue(ctx, queue.Job{AttachmentID: uuid.New(), Format: "hero"}))

	calls := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		done <- q.Consume(ctx, 1, func(ctx context.Context, j queue.Job) error {
			calls <- struct{}{}
			return errors.New("transform failed")
		})
	}()

	<-calls
	assert.Eventually(t, func() bool {
		return len(rdb.snapshot(q.processing)) == 0 && len(rdb.snapshot(q.pending)) == 0
	}, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestInterruptedJobIsRequeued(t *testing.T) {
	rdb := newMemoryLists()
	q := New(rdb, "", nil)
	job := queue.Job{AttachmentID: uuid.New(), Format: "hero", Breakpoint: 320}
	require.NoError(t, q.Enqueue(context.Background(), job))

	ctx, cancel := context.WithCancel(context.Background())
	err := q.Consume(ctx, 1, func(ctx context.Context, j queue.Job) error {
		cancel()
		return ctx.Err()
	})
	require.NoError(t, err)

	assert.Empty(t, rdb.snapshot(q.pending))
	require.Len(t, rdb.snapshot(q.processing), 1)

	ctx, cancel = context.WithCancel(context.Background())
	defer cancel()
	var handled []queue.Job
	err = q.Consume(ctx, 1, func(ctx context.Context, j queue.Job) error {
		handled = append(handled, j)
		cancel()
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []queue.Job{job}, handled)
	assert.Empty(t, rdb.snapshot(q.pending))
	assert.Empty(t, rdb.snapshot(q.processing))
}

func TestMalformedJobIsDropped(t *testing.T) {
	rdb := newMemoryLists()
	q := New(rdb, "", nil)
	rdb.lists[q.processing] = []string{"not json"}

	called := false
	q.handle(context.Background(), "not json", func(ctx context.Context, j queue.Job) error {
		called = true
		return nil
	})

	assert.False(t, called)
	assert.Empty(t, rdb.snapshot(q.processing))
}

func TestRequeueMovesEveryProcessingJob(t *testing.T) {
	ctx := context.Background()
	rdb := newMemoryLists()
	q := New(rdb, "", nil)
	rdb.lists[q.processing] = []string{"a", "b"}

	moved, err := q.Requeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, moved)
	assert.Empty(t, rdb.snapshot(q.processing))
	assert.ElementsMatch(t, []string{"a", "b"}, rdb.snapshot(q.pending))
}
