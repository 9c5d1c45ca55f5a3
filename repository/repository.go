// Package repository persists attachment records.
package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/sndcds/attachments/attachment"
)

var ErrNotFound = errors.New("attachment not found")

// Reader is the read side used by generation jobs and resolvers.
type Reader interface {
	Get(ctx context.Context, id uuid.UUID) (*attachment.Attachment, error)
}

type Repository interface {
	Reader
	Create(ctx context.Context, a *attachment.Attachment) error
	// Update persists the localized fields and UpdatedAt of a.
	Update(ctx context.Context, a *attachment.Attachment) error
	Delete(ctx context.Context, id uuid.UUID) error
	// Search lists attachments whose name contains search, newest first.
	Search(ctx context.Context, search string, limit int) ([]*attachment.Attachment, error)
}
