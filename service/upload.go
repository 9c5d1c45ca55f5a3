// Package service holds the attachment use cases: upload, metadata
// updates, deletion and derivative regeneration.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sndcds/attachments/attachment"
	"github.com/sndcds/attachments/formats"
	"github.com/sndcds/attachments/logging"
	"github.com/sndcds/attachments/queue"
	"github.com/sndcds/attachments/repository"
	"github.com/sndcds/attachments/storage"
)

var ErrEmptyUpload = errors.New("uploaded file is empty")

type UploadInput struct {
	Filename string
	Content  []byte
	// Disk defaults to the uploader's default disk.
	Disk string
	// EntityType selects the formats generated for the upload.
	EntityType     string
	TranslatedName attachment.Localized
	Alt            attachment.Localized
	Caption        attachment.Localized
}

type Uploader struct {
	repo        repository.Repository
	disks       *storage.Disks
	registry    *formats.Registry
	dispatcher  queue.Dispatcher
	defaultDisk string
	logger      *zap.Logger
}

func NewUploader(
	repo repository.Repository,
	disks *storage.Disks,
	registry *formats.Registry,
	dispatcher queue.Dispatcher,
	defaultDisk string,
	logger *zap.Logger,
) *Uploader {
	return &Uploader{
		repo:        repo,
		disks:       disks,
		registry:    registry,
		dispatcher:  dispatcher,
		defaultDisk: defaultDisk,
		logger:      logging.OrNop(logger).With(zap.String("component", "uploader")),
	}
}

// Upload stores the content, then creates the record and finally enqueues
// one generation job per format variant of the entity type. Failing to
// enqueue does not fail the upload.
func (u *Uploader) Upload(ctx context.Context, in UploadInput) (*attachment.Attachment, error) {
	if len(in.Content) == 0 {
		return nil, ErrEmptyUpload
	}
	diskName := in.Disk
	if diskName == "" {
		diskName = u.defaultDisk
	}
	disk, err := u.disks.Get(diskName)
	if err != nil {
		return nil, err
	}

	a := attachment.FromUpload(diskName, in.Filename, in.Content)
	a.TranslatedName = attachment.Localized(nil).Merge(in.TranslatedName)
	a.Alt = attachment.Localized(nil).Merge(in.Alt)
	a.Caption = attachment.Localized(nil).Merge(in.Caption)

	if err := storage.WriteAtomic(ctx, disk, a.FilePath(), in.Content); err != nil {
		u.removeDirectory(ctx, disk, a)
		return nil, fmt.Errorf("store attachment %s: %w", a.ID, err)
	}

	if err := u.repo.Create(ctx, a); err != nil {
		u.removeDirectory(ctx, disk, a)
		return nil, fmt.Errorf("create attachment record: %w", err)
	}

	queued := u.enqueue(ctx, a, u.registry.ForEntity(in.EntityType))
	u.logger.Info("attachment uploaded",
		zap.Stringer("attachment", a.ID),
		zap.String("mime_type", a.MimeType),
		zap.Int64("size", a.Size),
		zap.String("entity_type", in.EntityType),
		zap.Int("jobs", queued))
	return a, nil
}

// Regenerate enqueues every variant of every registered format for the
// attachment and returns the number of jobs enqueued.
func (u *Uploader) Regenerate(ctx context.Context, id uuid.UUID) (int, error) {
	a, err := u.repo.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	return u.enqueue(ctx, a, u.registry.All()), nil
}

func (u *Uploader) enqueue(ctx context.Context, a *attachment.Attachment, defs []formats.Definition) int {
	if !a.Manipulable() || u.dispatcher == nil {
		return 0
	}

	queued := 0
	for _, def := range defs {
		for _, bp := range def.Variants() {
			recipe, err := def.Recipe(bp)
			if err != nil || recipe.IsEmpty() {
				continue
			}
			job := queue.Job{AttachmentID: a.ID, Format: def.Name, Breakpoint: bp}
			if err := u.dispatcher.Enqueue(ctx, job); err != nil {
				u.logger.Warn("failed to enqueue generation job", zap.String("job", job.Key()), zap.Error(err))
				continue
			}
			queued++
		}
	}
	return queued
}

// removeDirectory drops what a failed upload left behind.
func (u *Uploader) removeDirectory(ctx context.Context, disk storage.Disk, a *attachment.Attachment) {
	if err := disk.DeleteDirectory(ctx, a.Directory()); err != nil {
		u.logger.Warn("failed to remove orphaned upload",
			zap.Stringer("attachment", a.ID), zap.Error(err))
	}
}
