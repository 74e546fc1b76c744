package store

import (
	"context"
	"sync"

	"github.com/vyrodovalexey/safehome-site/internal/model"
)

// MemoryStore implements Store with in-memory storage.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[model.Collection]map[string]model.Record
}

// NewMemoryStore creates a new MemoryStore instance.
func NewMemoryStore() *MemoryStore {
	collections := make(map[model.Collection]map[string]model.Record, len(model.Collections))
	for _, c := range model.Collections {
		collections[c] = make(map[string]model.Record)
	}
	return &MemoryStore{collections: collections}
}

// List returns all records of a collection.
func (s *MemoryStore) List(ctx context.Context, c model.Collection) ([]model.Record, error) {
	if err := checkContext(ctx, "list records"); err != nil {
		return nil, err
	}
	if err := checkCollection(c); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]model.Record, 0, len(s.collections[c]))
	for _, rec := range s.collections[c] {
		records = append(records, rec.Clone())
	}
	sortRecords(records)
	return records, nil
}

// Get retrieves a record by its ID.
func (s *MemoryStore) Get(ctx context.Context, c model.Collection, id string) (*model.Record, error) {
	if err := checkContext(ctx, "get record"); err != nil {
		return nil, err
	}
	if err := checkCollection(c); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.collections[c][id]
	if !exists {
		return nil, ErrNotFound
	}
	out := rec.Clone()
	return &out, nil
}

// Create adds a new record and returns it with its generated ID.
func (s *MemoryStore) Create(ctx context.Context, c model.Collection, fields model.Fields) (*model.Record, error) {
	if err := checkContext(ctx, "create record"); err != nil {
		return nil, err
	}
	if err := checkCollection(c); err != nil {
		return nil, err
	}

	rec := newRecord(fields)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.collections[c][rec.ID]; exists {
		return nil, ErrDuplicateID
	}
	s.collections[c][rec.ID] = rec
	out := rec.Clone()
	return &out, nil
}

// Update merges patch into an existing record.
func (s *MemoryStore) Update(
	ctx context.Context,
	c model.Collection,
	id string,
	patch model.Fields,
) (*model.Record, error) {
	if err := checkContext(ctx, "update record"); err != nil {
		return nil, err
	}
	if err := checkCollection(c); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.collections[c][id]
	if !exists {
		return nil, ErrNotFound
	}

	updated := applyPatch(existing, patch)
	s.collections[c][id] = updated
	out := updated.Clone()
	return &out, nil
}

// Delete removes a record by its ID.
func (s *MemoryStore) Delete(ctx context.Context, c model.Collection, id string) error {
	if err := checkContext(ctx, "delete record"); err != nil {
		return err
	}
	if err := checkCollection(c); err != nil {
		return err
	}
	if id == "" {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.collections[c][id]; !exists {
		return ErrNotFound
	}
	delete(s.collections[c], id)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
