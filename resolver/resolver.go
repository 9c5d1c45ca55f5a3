// Package resolver maps an attachment and a format to the URL that should
// be rendered right now. It never fails: whenever a derivative is not
// available the original is returned instead.
package resolver

import (
	"context"

	"go.uber.org/zap"

	"github.com/sndcds/attachments/attachment"
	"github.com/sndcds/attachments/formats"
	"github.com/sndcds/attachments/logging"
	"github.com/sndcds/attachments/manipulations"
	"github.com/sndcds/attachments/queue"
	"github.com/sndcds/attachments/storage"
)

type Result struct {
	URL        string `json:"url"`
	IsOriginal bool   `json:"is_original"`
	MimeType   string `json:"mime_type"`
	Webp       bool   `json:"webp"`
}

type Resolver struct {
	disks  *storage.Disks
	miss   queue.Dispatcher
	logger *zap.Logger
}

func New(disks *storage.Disks, logger *zap.Logger) *Resolver {
	return &Resolver{
		disks:  disks,
		logger: logging.OrNop(logger).With(zap.String("component", "resolver")),
	}
}

// WithMissDispatcher returns a copy of r that enqueues a generation job
// whenever a derivative is found missing.
func (r *Resolver) WithMissDispatcher(d queue.Dispatcher) *Resolver {
	c := *r
	c.miss = d
	return &c
}

// SupportsWebp reports whether a webp sibling can exist for a.
func (r *Resolver) SupportsWebp(a *attachment.Attachment) bool {
	return a.Manipulable()
}

// Resolve returns the derivative of a for def at breakpoint when it exists,
// the original otherwise. Breakpoint 0 is the base recipe.
func (r *Resolver) Resolve(ctx context.Context, a *attachment.Attachment, def formats.Definition, breakpoint int) Result {
	disk, ok := r.disk(a)
	if !ok {
		return Result{IsOriginal: true, MimeType: a.MimeType}
	}

	target, ok := r.target(a, def, breakpoint)
	if !ok {
		return original(disk, a)
	}

	exists, err := disk.Exists(ctx, target.Path)
	if err != nil {
		r.logger.Warn("failed to check derivative", zap.String("path", target.Path), zap.Error(err))
	}
	if exists {
		return Result{URL: disk.URL(target.Path), MimeType: target.MimeType}
	}

	r.dispatchMiss(ctx, a, def, breakpoint)
	return original(disk, a)
}

// ResolveWebp prefers the webp sibling of the derivative and otherwise
// behaves exactly like Resolve.
func (r *Resolver) ResolveWebp(ctx context.Context, a *attachment.Attachment, def formats.Definition, breakpoint int) Result {
	if !r.SupportsWebp(a) {
		return r.Resolve(ctx, a, def, breakpoint)
	}
	disk, ok := r.disk(a)
	if !ok {
		return r.Resolve(ctx, a, def, breakpoint)
	}
	target, ok := r.target(a, def, breakpoint)
	if !ok {
		return original(disk, a)
	}

	exists, err := disk.Exists(ctx, target.WebpPath)
	if err != nil {
		r.logger.Warn("failed to check webp derivative", zap.String("path", target.WebpPath), zap.Error(err))
	}
	if exists {
		return Result{
			URL:      disk.URL(target.WebpPath),
			MimeType: manipulations.New().Format(manipulations.FormatWebp).MimeType(""),
			Webp:     true,
		}
	}
	return r.Resolve(ctx, a, def, breakpoint)
}

// target returns the derivative target, or false when the original is the
// answer without looking at storage.
func (r *Resolver) target(a *attachment.Attachment, def formats.Definition, breakpoint int) (formats.Target, bool) {
	if !a.Manipulable() {
		return formats.Target{}, false
	}
	target, err := def.Target(a, breakpoint)
	if err != nil {
		r.logger.Debug("no such variant", zap.String("format", def.Name), zap.Error(err))
		return formats.Target{}, false
	}
	if target.Identity {
		return formats.Target{}, false
	}
	return target, true
}

func (r *Resolver) disk(a *attachment.Attachment) (storage.Disk, bool) {
	disk, err := r.disks.Get(a.Disk)
	if err != nil {
		r.logger.Error("attachment disk unavailable", zap.Stringer("attachment", a.ID), zap.Error(err))
		return nil, false
	}
	return disk, true
}

func (r *Resolver) dispatchMiss(ctx context.Context, a *attachment.Attachment, def formats.Definition, breakpoint int) {
	if r.miss == nil {
		return
	}
	job := queue.Job{AttachmentID: a.ID, Format: def.Name, Breakpoint: breakpoint}
	if err := r.miss.Enqueue(ctx, job); err != nil {
		r.logger.Warn("failed to enqueue missing derivative", zap.String("job", job.Key()), zap.Error(err))
	}
}

func original(disk storage.Disk, a *attachment.Attachment) Result {
	return Result{URL: disk.URL(a.FilePath()), IsOriginal: true, MimeType: a.MimeType}
}
