package store

import (
	"context"
	"testing"

	"github.com/vyrodovalexey/safehome-site/internal/model"
)

func TestNewMemoryStore(t *testing.T) {
	// Act
	store := NewMemoryStore()

	// Assert
	if store == nil {
		t.Fatal("NewMemoryStore() returned nil")
	}
	for _, c := range model.Collections {
		if store.collections[c] == nil {
			t.Errorf("collection %s should be initialized", c)
		}
	}
}

func TestMemoryStore_Close(t *testing.T) {
	store := NewMemoryStore()

	if err := store.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestMemoryStore_UpdateDoesNotAliasPatch(t *testing.T) {
	// Arrange
	store := NewMemoryStore()
	ctx := context.Background()
	created, err := store.Create(ctx, model.CollectionProducts, model.Fields{model.FieldName: "A"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	patch := model.Fields{model.FieldName: "B"}

	// Act
	if _, err := store.Update(ctx, model.CollectionProducts, created.ID, patch); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	patch[model.FieldName] = "C"

	// Assert
	got, err := store.Get(ctx, model.CollectionProducts, created.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Get(model.FieldName) != "B" {
		t.Errorf("name = %q, want B", got.Get(model.FieldName))
	}
}
