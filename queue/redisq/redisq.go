// Package redisq is a reliable redis list queue for generation jobs.
//
// Producers LPUSH onto the pending list. Consumers BLMOVE a job onto a
// processing list, run it and LREM it afterwards, so a job picked up by a
// consumer that dies is moved back to pending on the next start.
package redisq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sndcds/attachments/logging"
	"github.com/sndcds/attachments/queue"
)

const (
	defaultPrefix = "attachments:jobs"
	pollTimeout   = 5 * time.Second
	errorPause    = time.Second
)

type Queue struct {
	rdb        redis.Cmdable
	pending    string
	processing string
	logger     *zap.Logger
}

var _ queue.Dispatcher = (*Queue)(nil)

// New creates a queue stored under prefix, "attachments:jobs" when empty.
func New(rdb redis.Cmdable, prefix string, logger *zap.Logger) *Queue {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Queue{
		rdb:        rdb,
		pending:    prefix + ":pending",
		processing: prefix + ":processing",
		logger:     logging.OrNop(logger).With(zap.String("component", "redisq")),
	}
}

func (q *Queue) Enqueue(ctx context.Context, job queue.Job) error {
	payload, err := encode(job)
	if err != nil {
		return err
	}
	if err := q.rdb.LPush(ctx, q.pending, payload).Err(); err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", job.Key(), err)
	}
	return nil
}

// Len returns the number of pending jobs.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.pending).Result()
}

// Requeue moves every job left on the processing list back to pending.
func (q *Queue) Requeue(ctx context.Context) (int, error) {
	moved := 0
	for {
		err := q.rdb.LMove(ctx, q.processing, q.pending, "RIGHT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return moved, nil
		}
		if err != nil {
			return moved, fmt.Errorf("failed to requeue jobs: %w", err)
		}
		moved++
	}
}

// Consume runs concurrency consumers until ctx is cancelled.
func (q *Queue) Consume(ctx context.Context, concurrency int, handler queue.Handler) error {
	moved, err := q.Requeue(ctx)
	if err != nil {
		return err
	}
	if moved > 0 {
		q.logger.Info("requeued unfinished jobs", zap.Int("count", moved))
	}

	if concurrency < 1 {
		concurrency = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < concurrency; i++ {
		g.Go(func() error {
			q.consume(ctx, handler)
			return nil
		})
	}
	return g.Wait()
}

func (q *Queue) consume(ctx context.Context, handler queue.Handler) {
	for ctx.Err() == nil {
		payload, err := q.rdb.BLMove(ctx, q.pending, q.processing, "RIGHT", "LEFT", pollTimeout).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			q.logger.Warn("failed to fetch job", zap.Error(err))
			pause(ctx, errorPause)
			continue
		}

		q.handle(ctx, payload, handler)
	}
}

// handle runs one job. Finished jobs are acknowledged even when the handler
// failed, since retries belong to the handler. A job interrupted by
// shutdown stays on the processing list and is requeued on the next start.
func (q *Queue) handle(ctx context.Context, payload string, handler queue.Handler) {
	job, err := decode(payload)
	if err != nil {
		q.logger.Error("dropping malformed job", zap.String("payload", payload), zap.Error(err))
		q.ack(context.WithoutCancel(ctx), payload)
		return
	}
	if err := handler(ctx, job); err != nil {
		if ctx.Err() != nil {
			q.logger.Info("job interrupted, left for requeue", zap.String("job", job.Key()))
			return
		}
		q.logger.Warn("job failed", zap.String("job", job.Key()), zap.Error(err))
	}
	q.ack(context.WithoutCancel(ctx), payload)
}

func (q *Queue) ack(ctx context.Context, payload string) {
	if err := q.rdb.LRem(ctx, q.processing, 1, payload).Err(); err != nil {
		q.logger.Warn("failed to acknowledge job", zap.Error(err))
	}
}

func encode(job queue.Job) (string, error) {
	b, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to encode job: %w", err)
	}
	return string(b), nil
}

func decode(payload string) (queue.Job, error) {
	var job queue.Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return queue.Job{}, fmt.Errorf("failed to decode job: %w", err)
	}
	if job.Format == "" {
		return queue.Job{}, errors.New("failed to decode job: missing format")
	}
	return job, nil
}

func pause(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
