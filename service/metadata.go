package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sndcds/attachments/attachment"
	"github.com/sndcds/attachments/repository"
)

// MetadataUpdate holds localized values to merge into an attachment. An
// empty value removes that locale.
type MetadataUpdate struct {
	TranslatedName attachment.Localized `json:"translated_name"`
	Alt            attachment.Localized `json:"alt"`
	Caption        attachment.Localized `json:"caption"`
}

func (m MetadataUpdate) IsEmpty() bool {
	return len(m.TranslatedName) == 0 && len(m.Alt) == 0 && len(m.Caption) == 0
}

type Editor struct {
	repo repository.Repository
}

func NewEditor(repo repository.Repository) *Editor {
	return &Editor{repo: repo}
}

// Update merges the localized fields and returns the updated attachment.
// Content, id and storage location never change.
func (e *Editor) Update(ctx context.Context, id uuid.UUID, update MetadataUpdate) (*attachment.Attachment, error) {
	a, err := e.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if update.IsEmpty() {
		return a, nil
	}

	a.TranslatedName = a.TranslatedName.Merge(update.TranslatedName)
	a.Alt = a.Alt.Merge(update.Alt)
	a.Caption = a.Caption.Merge(update.Caption)
	a.UpdatedAt = time.Now().UTC()

	if err := e.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}
