// Package generator executes derivative generation jobs.
//
// A job only names an attachment, a format and a breakpoint. Everything
// else is looked up when the job runs, so jobs may be duplicated, delayed
// or outlive their attachment without harm.
package generator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/sndcds/attachments/attachment"
	"github.com/sndcds/attachments/formats"
	"github.com/sndcds/attachments/imageproc"
	"github.com/sndcds/attachments/logging"
	"github.com/sndcds/attachments/manipulations"
	"github.com/sndcds/attachments/queue"
	"github.com/sndcds/attachments/repository"
	"github.com/sndcds/attachments/storage"
)

var ErrMissingSource = errors.New("attachment source missing")

type Config struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

type Generator struct {
	repo     repository.Reader
	registry *formats.Registry
	disks    *storage.Disks
	backend  imageproc.Backend
	cfg      Config
	logger   *zap.Logger
}

func New(
	repo repository.Reader,
	registry *formats.Registry,
	disks *storage.Disks,
	backend imageproc.Backend,
	cfg Config,
	logger *zap.Logger,
) *Generator {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Generator{
		repo:     repo,
		registry: registry,
		disks:    disks,
		backend:  backend,
		cfg:      cfg,
		logger:   logging.OrNop(logger).With(zap.String("component", "generator")),
	}
}

// Execute produces the derivative named by job. It returns nil when there
// is nothing to do and when every attempt failed; only repository errors
// and cancellation are returned.
func (g *Generator) Execute(ctx context.Context, job queue.Job) error {
	start := time.Now()
	log := g.logger.With(zap.String("job", job.Key()))

	a, err := g.repo.Get(ctx, job.AttachmentID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Debug("attachment gone, skipping")
		observe(outcomeSkipped, start)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load attachment %s: %w", job.AttachmentID, err)
	}
	if !a.Manipulable() {
		observe(outcomeSkipped, start)
		return nil
	}

	def, ok := g.registry.Get(job.Format)
	if !ok {
		log.Warn("unknown format, skipping")
		observe(outcomeSkipped, start)
		return nil
	}
	target, err := def.Target(a, job.Breakpoint)
	if err != nil {
		log.Warn("unknown breakpoint, skipping", zap.Error(err))
		observe(outcomeSkipped, start)
		return nil
	}
	if target.Identity {
		observe(outcomeSkipped, start)
		return nil
	}

	disk, err := g.disks.Get(a.Disk)
	if err != nil {
		log.Error("attachment disk unavailable", zap.Error(err))
		observe(outcomeFailed, start)
		return nil
	}

	operation := func() error {
		return g.generate(ctx, disk, a, target)
	}
	notify := func(err error, wait time.Duration) {
		log.Warn("generation attempt failed", zap.Error(err), zap.Duration("retry_in", wait))
	}

	err = backoff.RetryNotify(operation, g.backOff(ctx), notify)
	if err == nil && g.deletedMeanwhile(ctx, disk, a) {
		log.Info("attachment deleted while generating, derivatives removed")
		observe(outcomeMissingSource, start)
		return nil
	}
	switch {
	case err == nil:
		log.Debug("derivative generated", zap.String("path", target.Path))
		observe(outcomeGenerated, start)
		return nil
	case errors.Is(err, ErrMissingSource):
		log.Info("source missing, skipping", zap.Error(err))
		observe(outcomeMissingSource, start)
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		log.Error("derivative generation failed", zap.Error(err), zap.Int("attempts", g.cfg.MaxAttempts))
		observe(outcomeFailed, start)
		return nil
	}
}

// generate runs one attempt: read the original, transform it and move the
// result into place. For webp capable images the webp sibling follows.
// Derivatives are only ever written into the existing attachment directory;
// once the attachment is deleted the attempt fails permanently.
func (g *Generator) generate(ctx context.Context, disk storage.Disk, a *attachment.Attachment, target formats.Target) error {
	src, err := storage.ReadAll(ctx, disk, a.FilePath())
	if errors.Is(err, storage.ErrNotFound) {
		return backoff.Permanent(fmt.Errorf("%w: %s", ErrMissingSource, a.FilePath()))
	}
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}

	out, err := g.backend.Transform(ctx, src, target.Manipulations.Params())
	if err != nil {
		return err
	}
	if err := writeDerivative(ctx, disk, target.Path, out); err != nil {
		return err
	}

	if target.Manipulations.Extension(a.Extension) == manipulations.FormatWebp {
		return nil
	}
	webp, err := g.backend.Transform(ctx, src, target.Manipulations.Format(manipulations.FormatWebp).Params())
	if err != nil {
		return err
	}
	return writeDerivative(ctx, disk, target.WebpPath, webp)
}

func writeDerivative(ctx context.Context, disk storage.Disk, p string, content []byte) error {
	err := storage.WriteAtomicExisting(ctx, disk, p, content)
	if errors.Is(err, storage.ErrNoDirectory) {
		return backoff.Permanent(fmt.Errorf("%w: %v", ErrMissingSource, err))
	}
	return err
}

// deletedMeanwhile reports whether the attachment record disappeared while
// its derivatives were written. The deleter removes the record before the
// directory, so a write that finished before that removal is swept here.
func (g *Generator) deletedMeanwhile(ctx context.Context, disk storage.Disk, a *attachment.Attachment) bool {
	_, err := g.repo.Get(ctx, a.ID)
	if !errors.Is(err, repository.ErrNotFound) {
		return false
	}
	if err := disk.DeleteDirectory(ctx, a.Directory()); err != nil {
		g.logger.Warn("failed to remove derivatives of deleted attachment",
			zap.Stringer("attachment", a.ID), zap.Error(err))
	}
	return true
}

func (g *Generator) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	if g.cfg.InitialInterval > 0 {
		exp.InitialInterval = g.cfg.InitialInterval
	}
	if g.cfg.MaxInterval > 0 {
		exp.MaxInterval = g.cfg.MaxInterval
	}
	exp.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(g.cfg.MaxAttempts-1)), ctx)
}
