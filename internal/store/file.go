package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/vyrodovalexey/safehome-site/internal/model"
)

// FileStore implements Store with one JSON array file per collection.
//
// Each mutation rewrites the whole collection file through a temporary
// file and an atomic rename, under a per-collection lock, so readers never
// observe a torn write and a failed write leaves the previous file intact.
type FileStore struct {
	dir   string
	locks map[model.Collection]*sync.RWMutex
}

// NewFileStore creates a FileStore rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("file store: data directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file store: create data directory: %w", err)
	}

	locks := make(map[model.Collection]*sync.RWMutex, len(model.Collections))
	for _, c := range model.Collections {
		locks[c] = &sync.RWMutex{}
	}

	return &FileStore{dir: dir, locks: locks}, nil
}

// Path returns the file backing collection c.
func (s *FileStore) Path(c model.Collection) string {
	return filepath.Join(s.dir, string(c)+".json")
}

// List returns all records of a collection.
func (s *FileStore) List(ctx context.Context, c model.Collection) ([]model.Record, error) {
	if err := checkContext(ctx, "list records"); err != nil {
		return nil, err
	}
	if err := checkCollection(c); err != nil {
		return nil, err
	}

	mu := s.locks[c]
	mu.RLock()
	defer mu.RUnlock()

	records, err := s.load(c)
	if err != nil {
		return nil, err
	}
	sortRecords(records)
	return records, nil
}

// Get retrieves a record by its ID.
func (s *FileStore) Get(ctx context.Context, c model.Collection, id string) (*model.Record, error) {
	if err := checkContext(ctx, "get record"); err != nil {
		return nil, err
	}
	if err := checkCollection(c); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, ErrInvalidID
	}

	mu := s.locks[c]
	mu.RLock()
	defer mu.RUnlock()

	records, err := s.load(c)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.ID == id {
			return &rec, nil
		}
	}
	return nil, ErrNotFound
}

// Create appends a new record to the collection file.
func (s *FileStore) Create(ctx context.Context, c model.Collection, fields model.Fields) (*model.Record, error) {
	if err := checkContext(ctx, "create record"); err != nil {
		return nil, err
	}
	if err := checkCollection(c); err != nil {
		return nil, err
	}

	rec := newRecord(fields)

	mu := s.locks[c]
	mu.Lock()
	defer mu.Unlock()

	records, err := s.load(c)
	if err != nil {
		return nil, err
	}
	for _, existing := range records {
		if existing.ID == rec.ID {
			return nil, ErrDuplicateID
		}
	}
	records = append(records, rec)
	if err := s.save(c, records); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Update merges patch into an existing record and rewrites the file.
func (s *FileStore) Update(
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

	mu := s.locks[c]
	mu.Lock()
	defer mu.Unlock()

	records, err := s.load(c)
	if err != nil {
		return nil, err
	}

	for i, rec := range records {
		if rec.ID != id {
			continue
		}
		updated := applyPatch(rec, patch)
		records[i] = updated
		if err := s.save(c, records); err != nil {
			return nil, err
		}
		return &updated, nil
	}
	return nil, ErrNotFound
}

// Delete removes a record and rewrites the file.
func (s *FileStore) Delete(ctx context.Context, c model.Collection, id string) error {
	if err := checkContext(ctx, "delete record"); err != nil {
		return err
	}
	if err := checkCollection(c); err != nil {
		return err
	}
	if id == "" {
		return ErrInvalidID
	}

	mu := s.locks[c]
	mu.Lock()
	defer mu.Unlock()

	records, err := s.load(c)
	if err != nil {
		return err
	}

	for i, rec := range records {
		if rec.ID == id {
			records = append(records[:i], records[i+1:]...)
			return s.save(c, records)
		}
	}
	return ErrNotFound
}

// Close is a no-op; every write is already durable.
func (s *FileStore) Close() error {
	return nil
}

// load reads the collection file. A missing file is an empty collection;
// an unreadable or corrupt file is an error, never an empty collection,
// so a later save cannot wipe data it failed to read.
func (s *FileStore) load(c model.Collection) ([]model.Record, error) {
	data, err := os.ReadFile(s.Path(c))
	if errors.Is(err, fs.ErrNotExist) {
		return []model.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c, err)
	}
	if len(data) == 0 {
		return []model.Record{}, nil
	}

	var records []model.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c, err)
	}
	if records == nil {
		records = []model.Record{}
	}
	if schema, ok := model.SchemaFor(c); ok {
		for i := range records {
			records[i].Fields = schema.Upgrade(records[i].Fields)
		}
	}
	return records, nil
}

// save replaces the collection file atomically.
func (s *FileStore) save(c model.Collection, records []model.Record) (err error) {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", c, err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+string(c)+"-*.json.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", c, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", c, err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", c, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", c, err)
	}
	if err = os.Rename(tmp.Name(), s.Path(c)); err != nil {
		return fmt.Errorf("replace %s: %w", c, err)
	}
	return nil
}
