package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"reqbench/internal/model"
)

// HistoryCap bounds the ephemeral history list. The cap is global, not per
// user: a very active user can evict another user's items.
const HistoryCap = 100

// Memory is the in-process fallback backend. All entity slices are guarded
// by a single mutex; concurrent inserts must not interleave with the history
// truncation.
type Memory struct {
	mu          sync.Mutex
	history     []*model.HistoryItem
	collections []*model.Collection
	requests    []*model.CollectionRequest
}

// NewMemory creates an empty ephemeral backend.
func NewMemory() *Memory {
	return &Memory{}
}

// Kind implements Backend.
func (m *Memory) Kind() string { return "memory" }

// Close implements Backend. The ephemeral backend holds no resources.
func (m *Memory) Close() error { return nil }

// InsertHistory prepends the item and truncates the list to HistoryCap,
// discarding the oldest entries.
func (m *Memory) InsertHistory(_ context.Context, item *model.HistoryItem) (*model.HistoryItem, error) {
	stored := *item
	fillIdentity(&stored.ID, &stored.CreatedAt)
	if stored.UserID == "" {
		stored.UserID = model.AnonymousUser
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.history = append([]*model.HistoryItem{&stored}, m.history...)
	if len(m.history) > HistoryCap {
		m.history = m.history[:HistoryCap]
	}
	return &stored, nil
}

// ListHistory returns the user's items newest first. The backing slice is
// already newest first, so filtering preserves order.
func (m *Memory) ListHistory(_ context.Context, userID string, limit int) ([]*model.HistoryItem, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	items := make([]*model.HistoryItem, 0, limit)
	for _, it := range m.history {
		if it.UserID != userID {
			continue
		}
		items = append(items, it)
		if len(items) == limit {
			break
		}
	}
	return items, nil
}

// DeleteHistory removes the item when both id and owner match; otherwise it
// is a no-op.
func (m *Memory) DeleteHistory(_ context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, it := range m.history {
		if it.ID == id && it.UserID == userID {
			m.history = append(m.history[:i], m.history[i+1:]...)
			return nil
		}
	}
	return nil
}

// InsertCollection stores a collection after validating its name.
func (m *Memory) InsertCollection(_ context.Context, col *model.Collection) (*model.Collection, error) {
	stored := *col
	if err := validateCollection(&stored); err != nil {
		return nil, err
	}
	fillIdentity(&stored.ID, &stored.CreatedAt)
	if stored.UserID == "" {
		stored.UserID = model.AnonymousUser
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.collections = append([]*model.Collection{&stored}, m.collections...)
	return &stored, nil
}

// ListCollections returns the user's collections newest first.
func (m *Memory) ListCollections(_ context.Context, userID string) ([]*model.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var cols []*model.Collection
	for _, c := range m.collections {
		if c.UserID == userID {
			cols = append(cols, c)
		}
	}
	return cols, nil
}

// DeleteCollection removes the collection and cascades to every request
// whose CollectionID matches. No-op when missing or owned by another user.
func (m *Memory) DeleteCollection(_ context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	found := false
	for i, c := range m.collections {
		if c.ID == id && c.UserID == userID {
			m.collections = append(m.collections[:i], m.collections[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		return nil
	}

	kept := m.requests[:0]
	for _, r := range m.requests {
		if r.CollectionID != id {
			kept = append(kept, r)
		}
	}
	m.requests = kept
	return nil
}

// InsertCollectionRequest appends the request to the parent collection,
// failing with ErrNotFound when the parent does not exist.
func (m *Memory) InsertCollectionRequest(_ context.Context, collectionID string, req *model.CollectionRequest) (*model.CollectionRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.collectionExistsLocked(collectionID) {
		return nil, ErrNotFound
	}

	stored := *req
	stored.CollectionID = collectionID
	fillIdentity(&stored.ID, &stored.CreatedAt)
	if stored.Name == "" {
		stored.Name = model.DefaultRequestName(stored.Method, stored.URL)
	}

	// Requests list in insertion order; listing is oldest first.
	m.requests = append(m.requests, &stored)
	return &stored, nil
}

// ListCollectionRequests returns the collection's requests oldest first.
func (m *Memory) ListCollectionRequests(_ context.Context, collectionID string) ([]*model.CollectionRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var reqs []*model.CollectionRequest
	for _, r := range m.requests {
		if r.CollectionID == collectionID {
			reqs = append(reqs, r)
		}
	}
	return reqs, nil
}

// Clear removes the given user's entities, or everything when userID is
// empty, reporting removed counts.
func (m *Memory) Clear(_ context.Context, userID string) (*model.Counts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if userID == "" {
		counts := &model.Counts{
			History:     int64(len(m.history)),
			Collections: int64(len(m.collections)),
			Requests:    int64(len(m.requests)),
		}
		m.history = nil
		m.collections = nil
		m.requests = nil
		return counts, nil
	}

	counts := &model.Counts{}

	keptHistory := m.history[:0]
	for _, it := range m.history {
		if it.UserID == userID {
			counts.History++
			continue
		}
		keptHistory = append(keptHistory, it)
	}
	m.history = keptHistory

	owned := make(map[string]bool)
	keptCols := m.collections[:0]
	for _, c := range m.collections {
		if c.UserID == userID {
			owned[c.ID] = true
			counts.Collections++
			continue
		}
		keptCols = append(keptCols, c)
	}
	m.collections = keptCols

	keptReqs := m.requests[:0]
	for _, r := range m.requests {
		if owned[r.CollectionID] {
			counts.Requests++
			continue
		}
		keptReqs = append(keptReqs, r)
	}
	m.requests = keptReqs

	return counts, nil
}

// Counts reports entity totals, scoped to one user when userID is non-empty.
func (m *Memory) Counts(_ context.Context, userID string) (*model.Counts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := &model.Counts{}
	if userID == "" {
		counts.History = int64(len(m.history))
		counts.Collections = int64(len(m.collections))
		counts.Requests = int64(len(m.requests))
		return counts, nil
	}

	owned := make(map[string]bool)
	for _, c := range m.collections {
		if c.UserID == userID {
			owned[c.ID] = true
			counts.Collections++
		}
	}
	for _, it := range m.history {
		if it.UserID == userID {
			counts.History++
		}
	}
	for _, r := range m.requests {
		if owned[r.CollectionID] {
			counts.Requests++
		}
	}
	return counts, nil
}

func (m *Memory) collectionExistsLocked(id string) bool {
	for _, c := range m.collections {
		if c.ID == id {
			return true
		}
	}
	return false
}

// fillIdentity assigns a UUID and UTC timestamp when the caller supplied
// none. UUIDs replace time-string identifiers so that concurrent inserts in
// the same millisecond cannot collide.
func fillIdentity(id *string, createdAt *time.Time) {
	if *id == "" {
		*id = uuid.New().String()
	}
	if createdAt.IsZero() {
		*createdAt = time.Now().UTC()
	}
}
