// Package session keeps administrator login sessions server-side behind
// signed cookies.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrNotFound is returned by a Backend for an unknown or expired session.
var ErrNotFound = errors.New("session not found")

// Backend names accepted by the configuration.
const (
	BackendMemory = "memory"
	BackendBolt   = "bolt"
)

// Entry is a stored session.
type Entry struct {
	Data    []byte
	Expires time.Time
}

// Expired reports whether the entry is past its expiry at now.
func (e Entry) Expired(now time.Time) bool {
	return !e.Expires.IsZero() && !now.Before(e.Expires)
}

// Backend persists session entries by id.
type Backend interface {
	// Load returns a live entry or ErrNotFound.
	Load(ctx context.Context, id string) (Entry, error)

	// Save creates or replaces an entry.
	Save(ctx context.Context, id string, e Entry) error

	// Delete removes an entry; deleting a missing entry is not an error.
	Delete(ctx context.Context, id string) error

	// Purge removes entries expired at now and reports how many.
	Purge(ctx context.Context, now time.Time) (int, error)

	// Close releases backend resources.
	Close() error
}

// MemoryBackend keeps sessions in process memory.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string]Entry)}
}

// Load returns a live entry.
func (b *MemoryBackend) Load(_ context.Context, id string) (Entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e, ok := b.entries[id]
	if !ok || e.Expired(time.Now()) {
		return Entry{}, ErrNotFound
	}
	return Entry{Data: append([]byte(nil), e.Data...), Expires: e.Expires}, nil
}

// Save stores an entry.
func (b *MemoryBackend) Save(_ context.Context, id string, e Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[id] = Entry{Data: append([]byte(nil), e.Data...), Expires: e.Expires}
	return nil
}

// Delete removes an entry.
func (b *MemoryBackend) Delete(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.entries, id)
	return nil
}

// Purge removes expired entries.
func (b *MemoryBackend) Purge(_ context.Context, now time.Time) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for id, e := range b.entries {
		if e.Expired(now) {
			delete(b.entries, id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored entries, expired or not.
func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// Close is a no-op.
func (b *MemoryBackend) Close() error {
	return nil
}

// OpenBackend builds the backend named kind. path is used by the bolt
// backend only.
func OpenBackend(kind, path string) (Backend, error) {
	switch kind {
	case BackendMemory, "":
		return NewMemoryBackend(), nil
	case BackendBolt:
		return NewBoltBackend(path)
	default:
		return nil, fmt.Errorf("unknown session backend %q", kind)
	}
}
