package model

import "strings"

// Field keys.
const (
	FieldName          = "name"
	FieldDescription   = "description"
	FieldImageURL      = "imageUrl"
	FieldImagePublicID = "imagePublicId"
	FieldQuote         = "quote"
	FieldFileURL       = "fileUrl"
	FieldType          = "type"
	FieldPublicID      = "publicId"
)

// Schema describes the fields a collection accepts and which of them
// reference stored media.
type Schema struct {
	Collection Collection
	// Keys lists every accepted field.
	Keys []string
	// MediaKey holds the public media URL, empty when the collection has no media.
	MediaKey string
	// HandleKey holds the storage deletion handle.
	HandleKey string
	// KindKey holds the media kind, when the collection records one.
	KindKey string
}

var schemas = map[Collection]Schema{
	CollectionProducts: {
		Collection: CollectionProducts,
		Keys:       []string{FieldName, FieldDescription, FieldImageURL, FieldImagePublicID},
		MediaKey:   FieldImageURL,
		HandleKey:  FieldImagePublicID,
	},
	CollectionServices: {
		Collection: CollectionServices,
		Keys:       []string{FieldName, FieldDescription, FieldImageURL, FieldImagePublicID},
		MediaKey:   FieldImageURL,
		HandleKey:  FieldImagePublicID,
	},
	CollectionTestimonials: {
		Collection: CollectionTestimonials,
		Keys:       []string{FieldName, FieldQuote},
	},
	CollectionGallery: {
		Collection: CollectionGallery,
		Keys:       []string{FieldFileURL, FieldDescription, FieldType, FieldPublicID},
		MediaKey:   FieldFileURL,
		HandleKey:  FieldPublicID,
		KindKey:    FieldType,
	},
}

// SchemaFor returns the schema of c.
func SchemaFor(c Collection) (Schema, bool) {
	s, ok := schemas[c]
	return s, ok
}

// HasMedia reports whether records of the collection reference stored media.
func (s Schema) HasMedia() bool {
	return s.MediaKey != ""
}

// Filter keeps only the keys the collection accepts. Values are trimmed
// and empty values are dropped, so an omitted or blank form input never
// overwrites a stored value.
func (s Schema) Filter(in map[string]string) Fields {
	out := Fields{}
	for _, k := range s.Keys {
		v, ok := in[k]
		if !ok {
			continue
		}
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out[k] = v
	}
	return out
}
