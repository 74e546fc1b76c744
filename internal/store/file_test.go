package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vyrodovalexey/safehome-site/internal/model"
)

func TestNewFileStore_EmptyDir(t *testing.T) {
	if _, err := NewFileStore(""); err == nil {
		t.Error("NewFileStore(\"\") should fail")
	}
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	ctx := context.Background()
	first, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	created, err := first.Create(ctx, model.CollectionServices, model.Fields{
		model.FieldName:        "Monitoreo",
		model.FieldDescription: "24/7",
		model.FieldImageURL:    "/uploads/m.jpg",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Act
	second, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	got, err := second.Get(ctx, model.CollectionServices, created.ID)

	// Assert
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Get(model.FieldName) != "Monitoreo" {
		t.Errorf("name = %q, want Monitoreo", got.Get(model.FieldName))
	}
	if !got.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created.CreatedAt)
	}
}

func TestFileStore_FlatEncoding(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	// Act
	created, err := s.Create(context.Background(), model.CollectionTestimonials, model.Fields{
		model.FieldName:  "Luis",
		model.FieldQuote: "Excelente",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Assert
	data, err := os.ReadFile(filepath.Join(dir, "testimonials.json"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(raw) != 1 {
		t.Fatalf("len = %d, want 1", len(raw))
	}
	if raw[0]["id"] != created.ID || raw[0]["name"] != "Luis" || raw[0]["quote"] != "Excelente" {
		t.Errorf("stored object = %v", raw[0])
	}
}

func TestFileStore_ReadsLegacyNumericIDs(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	legacy := `[{"id": 1712345678901, "name": "Cerradura", "description": "Smart", "imageUrl": "/uploads/c.jpg"}]`
	if err := os.WriteFile(filepath.Join(dir, "products.json"), []byte(legacy), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	// Act
	got, err := s.Get(context.Background(), model.CollectionProducts, "1712345678901")

	// Assert
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Get(model.FieldName) != "Cerradura" {
		t.Errorf("name = %q, want Cerradura", got.Get(model.FieldName))
	}
}

func TestFileStore_UpgradesLegacyGallery(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	legacy := `[{"id":1712345678901,"imageUrl":"https://example.com/a.jpg","description":"old"}]`
	if err := os.WriteFile(filepath.Join(dir, "gallery.json"), []byte(legacy), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	ctx := context.Background()

	// Act
	got, err := s.Get(ctx, model.CollectionGallery, "1712345678901")

	// Assert
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	item := model.GalleryItemFromRecord(*got)
	if item.FileURL != "https://example.com/a.jpg" || item.Type != model.KindImage {
		t.Errorf("item = %+v", item)
	}
	if _, ok := got.Fields[model.FieldImageURL]; ok {
		t.Errorf("imageUrl kept: %v", got.Fields)
	}
	if err := model.Validate(model.CollectionGallery, *got); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	// Act: a description-only edit
	updated, err := s.Update(ctx, model.CollectionGallery, "1712345678901", model.Fields{
		model.FieldDescription: "new",
	})

	// Assert
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Get(model.FieldDescription) != "new" || updated.Get(model.FieldFileURL) != "https://example.com/a.jpg" {
		t.Errorf("updated = %v", updated.Fields)
	}
	data, err := os.ReadFile(filepath.Join(dir, "gallery.json"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), `"fileUrl": "https://example.com/a.jpg"`) ||
		!strings.Contains(string(data), `"type": "image"`) {
		t.Errorf("saved file = %s", data)
	}
}

func TestFileStore_CorruptFileIsAnError(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	path := filepath.Join(dir, "gallery.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	ctx := context.Background()

	// Act
	_, listErr := s.List(ctx, model.CollectionGallery)
	_, createErr := s.Create(ctx, model.CollectionGallery, model.Fields{model.FieldFileURL: "/x"})

	// Assert
	if listErr == nil {
		t.Error("List() on corrupt file should fail")
	}
	if createErr == nil {
		t.Error("Create() on corrupt file should fail")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "{not json" {
		t.Errorf("corrupt file was overwritten: %q", data)
	}
}

func TestFileStore_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	ctx := context.Background()
	for range 3 {
		if _, err := s.Create(ctx, model.CollectionProducts, model.Fields{model.FieldName: "x"}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temporary file left behind: %s", e.Name())
		}
	}
}

func TestFileStore_Path(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	if got := filepath.Base(s.Path(model.CollectionGallery)); got != "gallery.json" {
		t.Errorf("Path() base = %s, want gallery.json", got)
	}
}
