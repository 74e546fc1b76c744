package store

import (
	"context"
	"errors"
	"testing"

	"pgregory.net/rapid"

	"github.com/vyrodovalexey/safehome-site/internal/model"
)

var fieldKeys = []string{
	model.FieldName,
	model.FieldDescription,
	model.FieldImageURL,
	model.FieldImagePublicID,
}

func drawFields(rt *rapid.T, label string) model.Fields {
	return rapid.MapOf(
		rapid.SampledFrom(fieldKeys),
		rapid.StringMatching(`[A-Za-z0-9 áéíóúñ./:_-]{1,40}`),
	).Draw(rt, label)
}

func TestProperty_CreateThenGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	rapid.Check(t, func(rt *rapid.T) {
		fields := drawFields(rt, "fields")

		created, err := s.Create(ctx, model.CollectionProducts, fields)
		if err != nil {
			rt.Fatalf("Create() error = %v", err)
		}
		got, err := s.Get(ctx, model.CollectionProducts, created.ID)
		if err != nil {
			rt.Fatalf("Get() error = %v", err)
		}

		if len(got.Fields) != len(fields) {
			rt.Fatalf("field count = %d, want %d", len(got.Fields), len(fields))
		}
		for k, v := range fields {
			if got.Get(k) != v {
				rt.Fatalf("%s = %q, want %q", k, got.Get(k), v)
			}
		}
	})
}

func TestProperty_UpdateKeepsUntouchedFields(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	rapid.Check(t, func(rt *rapid.T) {
		initial := drawFields(rt, "initial")
		patch := drawFields(rt, "patch")

		created, err := s.Create(ctx, model.CollectionServices, initial)
		if err != nil {
			rt.Fatalf("Create() error = %v", err)
		}
		updated, err := s.Update(ctx, model.CollectionServices, created.ID, patch)
		if err != nil {
			rt.Fatalf("Update() error = %v", err)
		}

		for k, v := range initial {
			if _, patched := patch[k]; patched {
				continue
			}
			if updated.Get(k) != v {
				rt.Fatalf("untouched %s = %q, want %q", k, updated.Get(k), v)
			}
		}
		for k, v := range patch {
			if updated.Get(k) != v {
				rt.Fatalf("patched %s = %q, want %q", k, updated.Get(k), v)
			}
		}
	})
}

func TestProperty_DeleteThenGetIsNotFound(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	rapid.Check(t, func(rt *rapid.T) {
		c := rapid.SampledFrom(model.Collections).Draw(rt, "collection")
		created, err := s.Create(ctx, c, drawFields(rt, "fields"))
		if err != nil {
			rt.Fatalf("Create() error = %v", err)
		}

		if err := s.Delete(ctx, c, created.ID); err != nil {
			rt.Fatalf("Delete() error = %v", err)
		}

		if _, err := s.Get(ctx, c, created.ID); !errors.Is(err, ErrNotFound) {
			rt.Fatalf("Get() after delete error = %v, want ErrNotFound", err)
		}
	})
}

func TestProperty_FileStoreMatchesMemoryStore(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		mem := NewMemoryStore()
		file, err := NewFileStore(t.TempDir())
		if err != nil {
			rt.Fatalf("NewFileStore() error = %v", err)
		}

		var ids []string
		steps := rapid.IntRange(1, 15).Draw(rt, "steps")
		for i := range steps {
			op := rapid.IntRange(0, 2).Draw(rt, "op")
			switch {
			case op == 0 || len(ids) == 0:
				fields := drawFields(rt, "create")
				id := rapid.StringMatching(`[a-z0-9]{8}`).Draw(rt, "id")
				fields = fields.Merge(model.Fields{model.KeyID: id})
				_, memErr := mem.Create(ctx, model.CollectionProducts, fields)
				_, fileErr := file.Create(ctx, model.CollectionProducts, fields)
				if (memErr == nil) != (fileErr == nil) {
					rt.Fatalf("step %d create: memory %v, file %v", i, memErr, fileErr)
				}
				ids = append(ids, id)
			case op == 1:
				id := rapid.SampledFrom(ids).Draw(rt, "update id")
				patch := drawFields(rt, "patch")
				_, memErr := mem.Update(ctx, model.CollectionProducts, id, patch)
				_, fileErr := file.Update(ctx, model.CollectionProducts, id, patch)
				if !errors.Is(fileErr, memErr) && (memErr != nil || fileErr != nil) {
					rt.Fatalf("step %d update: memory %v, file %v", i, memErr, fileErr)
				}
			default:
				id := rapid.SampledFrom(ids).Draw(rt, "delete id")
				memErr := mem.Delete(ctx, model.CollectionProducts, id)
				fileErr := file.Delete(ctx, model.CollectionProducts, id)
				if !errors.Is(fileErr, memErr) && (memErr != nil || fileErr != nil) {
					rt.Fatalf("step %d delete: memory %v, file %v", i, memErr, fileErr)
				}
			}
		}

		memList, err := mem.List(ctx, model.CollectionProducts)
		if err != nil {
			rt.Fatalf("memory List() error = %v", err)
		}
		fileList, err := file.List(ctx, model.CollectionProducts)
		if err != nil {
			rt.Fatalf("file List() error = %v", err)
		}
		memByID := make(map[string]model.Fields, len(memList))
		for _, rec := range memList {
			memByID[rec.ID] = rec.Fields
		}
		if len(fileList) != len(memByID) {
			rt.Fatalf("file has %d records, memory %d", len(fileList), len(memByID))
		}
		for _, rec := range fileList {
			want, ok := memByID[rec.ID]
			if !ok {
				rt.Fatalf("record %s only in file store", rec.ID)
			}
			for k, v := range want {
				if rec.Get(k) != v {
					rt.Fatalf("record %s field %s = %q, want %q", rec.ID, k, rec.Get(k), v)
				}
			}
		}
	})
}
