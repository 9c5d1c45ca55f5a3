// Package memory is an in-process attachment repository.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/sndcds/attachments/attachment"
	"github.com/sndcds/attachments/repository"
)

type Store struct {
	mu      sync.RWMutex
	records map[uuid.UUID]attachment.Attachment
}

var _ repository.Repository = (*Store)(nil)

func New() *Store {
	return &Store{records: make(map[uuid.UUID]attachment.Attachment)}
}

func (s *Store) Create(ctx context.Context, a *attachment.Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[a.ID]; exists {
		return fmt.Errorf("attachment %s already exists", a.ID)
	}
	s.records[a.ID] = clone(a)
	return nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*attachment.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", repository.ErrNotFound, id)
	}
	c := clone(&a)
	c.Classify()
	return &c, nil
}

func (s *Store) Update(ctx context.Context, a *attachment.Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.records[a.ID]
	if !ok {
		return fmt.Errorf("%w: %s", repository.ErrNotFound, a.ID)
	}
	current.TranslatedName = a.TranslatedName.Merge(nil)
	current.Alt = a.Alt.Merge(nil)
	current.Caption = a.Caption.Merge(nil)
	current.UpdatedAt = a.UpdatedAt
	s.records[a.ID] = current
	return nil
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return fmt.Errorf("%w: %s", repository.ErrNotFound, id)
	}
	delete(s.records, id)
	return nil
}

func (s *Store) Search(ctx context.Context, search string, limit int) ([]*attachment.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search = strings.ToLower(search)
	var result []*attachment.Attachment
	for _, a := range s.records {
		if search != "" && !strings.Contains(strings.ToLower(a.Name), search) {
			continue
		}
		c := clone(&a)
		c.Classify()
		result = append(result, &c)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func clone(a *attachment.Attachment) attachment.Attachment {
	c := *a
	c.TranslatedName = a.TranslatedName.Merge(nil)
	c.Alt = a.Alt.Merge(nil)
	c.Caption = a.Caption.Merge(nil)
	if a.Width != nil {
		w := *a.Width
		c.Width = &w
	}
	if a.Height != nil {
		h := *a.Height
		c.Height = &h
	}
	return c
}
