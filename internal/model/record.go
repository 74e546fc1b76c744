// Package model defines data structures used throughout the application.
package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strconv"
	"time"
)

// Collection names one of the entity sets owned by the record store.
type Collection string

// Known collections.
const (
	CollectionProducts     Collection = "products"
	CollectionServices     Collection = "services"
	CollectionTestimonials Collection = "testimonials"
	CollectionGallery      Collection = "gallery"
)

// Collections lists every collection in display order.
var Collections = []Collection{
	CollectionProducts,
	CollectionServices,
	CollectionTestimonials,
	CollectionGallery,
}

// ErrUnknownCollection is returned for a collection name that is not configured.
var ErrUnknownCollection = errors.New("unknown collection")

// Valid reports whether c is one of the known collections.
func (c Collection) Valid() bool {
	_, ok := schemas[c]
	return ok
}

// ParseCollection converts a raw name into a Collection.
func ParseCollection(name string) (Collection, error) {
	c := Collection(name)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCollection, name)
	}
	return c, nil
}

// Reserved keys of the flat record encoding.
const (
	KeyID        = "id"
	KeyCreatedAt = "createdAt"
	KeyUpdatedAt = "updatedAt"
)

// Fields holds the attribute values of a record, keyed by field name.
type Fields map[string]string

// Clone returns an independent copy of f.
func (f Fields) Clone() Fields {
	if f == nil {
		return Fields{}
	}
	return maps.Clone(f)
}

// Merge returns a copy of f with every key of patch written over it.
// Keys absent from patch keep their previous value.
func (f Fields) Merge(patch Fields) Fields {
	out := f.Clone()
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// Record is the store-native shape of every entity.
type Record struct {
	ID        string
	Fields    Fields
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Get returns the value of a field, or "" when unset.
func (r Record) Get(key string) string {
	return r.Fields[key]
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	r.Fields = r.Fields.Clone()
	return r
}

// MarshalJSON encodes the record as a flat object:
// {"id": "...", "<field>": "...", "createdAt": "...", "updatedAt": "..."}.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Fields)+3)
	for k, v := range r.Fields {
		out[k] = v
	}
	out[KeyID] = r.ID
	if !r.CreatedAt.IsZero() {
		out[KeyCreatedAt] = r.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	if !r.UpdatedAt.IsZero() {
		out[KeyUpdatedAt] = r.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the flat encoding produced by MarshalJSON.
// Numeric ids written by older versions of the site are kept as their
// decimal string; non-string field values are ignored.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}

	rec := Record{Fields: Fields{}}
	for k, v := range raw {
		switch k {
		case KeyID:
			id, err := idString(v)
			if err != nil {
				return err
			}
			rec.ID = id
		case KeyCreatedAt, KeyUpdatedAt:
			s, ok := v.(string)
			if !ok || s == "" {
				continue
			}
			ts, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return fmt.Errorf("decode record %s: %w", k, err)
			}
			if k == KeyCreatedAt {
				rec.CreatedAt = ts
			} else {
				rec.UpdatedAt = ts
			}
		default:
			if s, ok := v.(string); ok {
				rec.Fields[k] = s
			}
		}
	}

	*r = rec
	return nil
}

func idString(v any) (string, error) {
	switch id := v.(type) {
	case string:
		return id, nil
	case json.Number:
		return id.String(), nil
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("decode record: unsupported id type %T", v)
	}
}
