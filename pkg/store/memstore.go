package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dlparker/palaver/pkg/events"
)

// MemStore is an in-memory reference DraftStore implementation, used
// in tests and as the default when durable storage is disabled.
type MemStore struct {
	mu       sync.RWMutex
	drafts   map[uuid.UUID]events.Draft
	children map[uuid.UUID][]uuid.UUID // parent id -> child ids
}

// NewMemStore builds an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		drafts:   make(map[uuid.UUID]events.Draft),
		children: make(map[uuid.UUID][]uuid.UUID),
	}
}

func (m *MemStore) Put(ctx context.Context, draft events.Draft) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.drafts[draft.DraftID]; exists {
		return ErrDuplicateID
	}
	if draft.ParentDraftID != nil {
		if _, ok := m.drafts[*draft.ParentDraftID]; !ok {
			return ErrParentNotFound
		}
	}

	m.drafts[draft.DraftID] = draft
	if draft.ParentDraftID != nil {
		m.children[*draft.ParentDraftID] = append(m.children[*draft.ParentDraftID], draft.DraftID)
	}
	return nil
}

func (m *MemStore) Get(ctx context.Context, draftID uuid.UUID) (events.Draft, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.drafts[draftID]
	if !ok {
		return events.Draft{}, ErrNotFound
	}
	return d, nil
}

func (m *MemStore) GetSince(ctx context.Context, since time.Time, limit, offset int, order Order) ([]events.Draft, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []events.Draft
	for _, d := range m.drafts {
		if !d.Timestamp.Before(since) {
			out = append(out, d)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if order == OrderDescending {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})

	if offset > len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemStore) GetFamily(ctx context.Context, draftID uuid.UUID) (events.Draft, *events.Draft, []events.Draft, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.drafts[draftID]
	if !ok {
		return events.Draft{}, nil, nil, ErrNotFound
	}

	var parent *events.Draft
	if d.ParentDraftID != nil {
		if p, ok := m.drafts[*d.ParentDraftID]; ok {
			parent = &p
		}
	}

	var children []events.Draft
	for _, childID := range m.children[draftID] {
		if c, ok := m.drafts[childID]; ok {
			children = append(children, c)
		}
	}

	return d, parent, children, nil
}
