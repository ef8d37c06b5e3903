package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/safesite-labs/sitelog-intake/internal/common"
	"github.com/safesite-labs/sitelog-intake/internal/entity"
)

// MemoryStore is an in-process EntryStore, used by tests and the
// throwaway "memory" driver.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*entity.CommittedEntry
	order   []string
}

var _ EntryStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*entity.CommittedEntry)}
}

func (s *MemoryStore) Put(_ context.Context, entry *entity.CommittedEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *entry
	cp.Fields = *entry.Fields.Clone()
	if _, ok := s.entries[entry.ID]; !ok {
		s.order = append(s.order, entry.ID)
	}
	s.entries[entry.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*entity.CommittedEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, common.NewAppError("ENTRY_NOT_FOUND",
			fmt.Sprintf("entry %s not found", id), common.ErrNotFound)
	}
	cp := *e
	cp.Fields = *e.Fields.Clone()
	return &cp, nil
}

func (s *MemoryStore) ListByDocument(_ context.Context, documentID uuid.UUID) ([]*entity.CommittedEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*entity.CommittedEntry
	for _, id := range s.order {
		e := s.entries[id]
		if e.DocumentID != documentID {
			continue
		}
		cp := *e
		cp.Fields = *e.Fields.Clone()
		out = append(out, &cp)
	}
	return out, nil
}

// Len reports how many entries are stored.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
