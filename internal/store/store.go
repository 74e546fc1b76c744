// Package store provides the record store contract and its backends.
package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vyrodovalexey/safehome-site/internal/model"
)

// Store errors.
var (
	ErrNotFound          = errors.New("record not found")
	ErrInvalidID         = errors.New("invalid record ID")
	ErrDuplicateID       = errors.New("record ID already exists")
	ErrUnknownCollection = model.ErrUnknownCollection
)

// Store defines the record storage operations shared by every backend.
//
// Writes to the same collection are serialized so that the stored value
// always reflects a total order of completed writes.
type Store interface {
	// List returns every record of the collection, oldest first.
	List(ctx context.Context, c model.Collection) ([]model.Record, error)

	// Get retrieves a record by its ID.
	Get(ctx context.Context, c model.Collection, id string) (*model.Record, error)

	// Create stores a new record and returns it with its assigned ID.
	Create(ctx context.Context, c model.Collection, fields model.Fields) (*model.Record, error)

	// Update merges patch over the stored fields; keys absent from patch are kept.
	Update(ctx context.Context, c model.Collection, id string, patch model.Fields) (*model.Record, error)

	// Delete removes a record by its ID.
	Delete(ctx context.Context, c model.Collection, id string) error

	// Close releases backend resources.
	Close() error
}

// Backend names accepted by Open.
const (
	BackendMemory    = "memory"
	BackendFile      = "file"
	BackendSurrealDB = "surrealdb"
	BackendPostgres  = "postgres"
)

// checkCollection rejects collections that are not configured.
func checkCollection(c model.Collection) error {
	if !c.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCollection, c)
	}
	return nil
}

// checkContext returns the context error, if any, wrapped with op.
func checkContext(ctx context.Context, op string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
		return nil
	}
}

// newRecord builds a record for insertion. An "id" key inside fields is
// honoured so imported data keeps its identifiers.
func newRecord(fields model.Fields) model.Record {
	now := time.Now().UTC()
	f := fields.Clone()

	id := strings.TrimSpace(f[model.KeyID])
	delete(f, model.KeyID)
	if id == "" {
		id = uuid.New().String()
	}

	return model.Record{
		ID:        id,
		Fields:    f,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// applyPatch returns existing with patch merged over it.
func applyPatch(existing model.Record, patch model.Fields) model.Record {
	p := patch.Clone()
	delete(p, model.KeyID)

	updated := existing.Clone()
	updated.Fields = existing.Fields.Merge(p)
	updated.UpdatedAt = time.Now().UTC()
	return updated
}

// sortRecords orders records by creation time, then ID.
func sortRecords(records []model.Record) {
	slices.SortStableFunc(records, func(a, b model.Record) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
