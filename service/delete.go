package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sndcds/attachments/logging"
	"github.com/sndcds/attachments/repository"
	"github.com/sndcds/attachments/storage"
)

// Deleter removes attachments: the record first, then the storage
// directory with the original and every derivative.
type Deleter struct {
	repo   repository.Repository
	disks  *storage.Disks
	logger *zap.Logger
}

func NewDeleter(repo repository.Repository, disks *storage.Disks, logger *zap.Logger) *Deleter {
	return &Deleter{
		repo:   repo,
		disks:  disks,
		logger: logging.OrNop(logger).With(zap.String("component", "deleter")),
	}
}

// Delete returns repository errors only. Storage cleanup failures are
// logged.
func (d *Deleter) Delete(ctx context.Context, id uuid.UUID) error {
	a, err := d.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := d.repo.Delete(ctx, id); err != nil {
		return err
	}

	disk, err := d.disks.Get(a.Disk)
	if err != nil {
		d.logger.Error("cannot remove attachment files", zap.Stringer("attachment", id), zap.Error(err))
		return nil
	}
	if err := disk.DeleteDirectory(ctx, a.Directory()); err != nil {
		d.logger.Error("failed to remove attachment directory",
			zap.Stringer("attachment", id),
			zap.String("directory", a.Directory()),
			zap.Error(err))
		return nil
	}

	d.logger.Info("attachment deleted", zap.Stringer("attachment", id))
	return nil
}
