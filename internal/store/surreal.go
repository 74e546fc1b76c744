package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	surrealdb "github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/vyrodovalexey/safehome-site/internal/model"
)

// SurrealConfig holds the connection settings of the document database.
type SurrealConfig struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
}

// SurrealStore implements Store on a SurrealDB document database.
//
// Each collection is a table and each record a document whose id is
// table:<record id>. Partial updates use MERGE, which the database applies
// atomically per document.
type SurrealStore struct {
	db *surrealdb.DB
}

// NewSurrealStore connects, signs in and selects the namespace/database.
func NewSurrealStore(ctx context.Context, cfg SurrealConfig) (*SurrealStore, error) {
	if cfg.URL == "" {
		return nil, errors.New("surrealdb store: URL must not be empty")
	}

	db, err := surrealdb.FromEndpointURLString(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("surrealdb store: connect: %w", err)
	}

	if cfg.Username != "" {
		if _, err := db.SignIn(ctx, surrealdb.Auth{
			Username: cfg.Username,
			Password: cfg.Password,
		}); err != nil {
			_ = db.Close(ctx)
			return nil, fmt.Errorf("surrealdb store: sign in: %w", err)
		}
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		_ = db.Close(ctx)
		return nil, fmt.Errorf("surrealdb store: use %s/%s: %w", cfg.Namespace, cfg.Database, err)
	}

	return &SurrealStore{db: db}, nil
}

// List returns all records of a collection.
func (s *SurrealStore) List(ctx context.Context, c model.Collection) ([]model.Record, error) {
	if err := checkCollection(c); err != nil {
		return nil, err
	}

	docs, err := surrealdb.Select[[]map[string]any](ctx, s.db, models.Table(c))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c, err)
	}

	records := make([]model.Record, 0)
	if docs != nil {
		for _, doc := range *docs {
			rec, ok := recordFromDocument(doc)
			if ok {
				records = append(records, rec)
			}
		}
	}
	sortRecords(records)
	return records, nil
}

// Get retrieves a record by its ID.
func (s *SurrealStore) Get(ctx context.Context, c model.Collection, id string) (*model.Record, error) {
	if err := checkCollection(c); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, ErrInvalidID
	}

	doc, err := surrealdb.Select[map[string]any](ctx, s.db, models.NewRecordID(string(c), id))
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", c, id, err)
	}
	return singleRecord(doc)
}

// Create inserts a new document.
func (s *SurrealStore) Create(ctx context.Context, c model.Collection, fields model.Fields) (*model.Record, error) {
	if err := checkCollection(c); err != nil {
		return nil, err
	}

	rec := newRecord(fields)
	doc, err := surrealdb.Create[map[string]any](
		ctx, s.db, models.NewRecordID(string(c), rec.ID), documentFromRecord(rec),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", c, err)
	}
	return singleRecord(doc)
}

// Update merges patch into the stored document.
func (s *SurrealStore) Update(
	ctx context.Context,
	c model.Collection,
	id string,
	patch model.Fields,
) (*model.Record, error) {
	if err := checkCollection(c); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, ErrInvalidID
	}

	data := make(map[string]any, len(patch)+1)
	for k, v := range patch {
		if k == model.KeyID {
			continue
		}
		data[k] = v
	}
	data[model.KeyUpdatedAt] = time.Now().UTC().Format(time.RFC3339Nano)

	// MERGE on a missing record returns no document.
	doc, err := surrealdb.Merge[map[string]any](ctx, s.db, models.NewRecordID(string(c), id), data)
	if err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", c, id, err)
	}
	return singleRecord(doc)
}

// Delete removes a document.
func (s *SurrealStore) Delete(ctx context.Context, c model.Collection, id string) error {
	if err := checkCollection(c); err != nil {
		return err
	}
	if id == "" {
		return ErrInvalidID
	}

	doc, err := surrealdb.Delete[map[string]any](ctx, s.db, models.NewRecordID(string(c), id))
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", c, id, err)
	}
	if _, err := singleRecord(doc); err != nil {
		return err
	}
	return nil
}

// Close closes the database connection.
func (s *SurrealStore) Close() error {
	return s.db.Close(context.Background())
}

func singleRecord(doc *map[string]any) (*model.Record, error) {
	if doc == nil {
		return nil, ErrNotFound
	}
	rec, ok := recordFromDocument(*doc)
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

// documentFromRecord flattens a record into the stored document shape.
// The id lives in the record id, not in the document body.
func documentFromRecord(rec model.Record) map[string]any {
	doc := make(map[string]any, len(rec.Fields)+2)
	for k, v := range rec.Fields {
		doc[k] = v
	}
	doc[model.KeyCreatedAt] = rec.CreatedAt.UTC().Format(time.RFC3339Nano)
	doc[model.KeyUpdatedAt] = rec.UpdatedAt.UTC().Format(time.RFC3339Nano)
	return doc
}

// recordFromDocument converts a stored document back into a record.
// Documents without an id (what a lookup of a missing record decodes to)
// report false.
func recordFromDocument(doc map[string]any) (model.Record, bool) {
	id := documentID(doc[model.KeyID])
	if id == "" {
		return model.Record{}, false
	}

	rec := model.Record{ID: id, Fields: model.Fields{}}
	for k, v := range doc {
		s, isString := v.(string)
		switch k {
		case model.KeyID:
		case model.KeyCreatedAt:
			rec.CreatedAt = parseTimestamp(v)
		case model.KeyUpdatedAt:
			rec.UpdatedAt = parseTimestamp(v)
		default:
			if isString {
				rec.Fields[k] = s
			}
		}
	}
	return rec, true
}

func documentID(v any) string {
	switch id := v.(type) {
	case models.RecordID:
		return fmt.Sprint(id.ID)
	case *models.RecordID:
		if id == nil {
			return ""
		}
		return fmt.Sprint(id.ID)
	case string:
		return id
	default:
		return ""
	}
}

func parseTimestamp(v any) time.Time {
	switch ts := v.(type) {
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return time.Time{}
		}
		return parsed
	case time.Time:
		return ts
	default:
		return time.Time{}
	}
}
