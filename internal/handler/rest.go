package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/safehome-site/internal/media"
	"github.com/vyrodovalexey/safehome-site/internal/middleware"
	"github.com/vyrodovalexey/safehome-site/internal/model"
	"github.com/vyrodovalexey/safehome-site/internal/store"
)

// EventPublisher receives change events after successful mutations.
type EventPublisher interface {
	Publish(event model.ChangeEvent)
}

// entity binds a collection to its admin route prefix.
type entity struct {
	collection model.Collection
	prefix     string
	// jsonDefault makes JSON the response format unless HTML is negotiated.
	jsonDefault bool
}

var entities = []entity{
	{collection: model.CollectionProducts, prefix: "/admin"},
	{collection: model.CollectionServices, prefix: "/admin/service"},
	{collection: model.CollectionTestimonials, prefix: "/admin/testimonial"},
	{collection: model.CollectionGallery, prefix: "/admin/gallery", jsonDefault: true},
}

// JSONPrefixes lists the admin path prefixes that answer JSON by default.
func JSONPrefixes() []string {
	var out []string
	for _, e := range entities {
		if e.jsonDefault {
			out = append(out, e.prefix+"/")
		}
	}
	return out
}

// AdminHandler serves the create, edit, delete and list endpoints of every
// collection.
type AdminHandler struct {
	responder
	store    store.Store
	ingestor *media.Ingestor
	events   EventPublisher
}

// NewAdminHandler creates a new AdminHandler instance. events may be nil.
func NewAdminHandler(s store.Store, ingestor *media.Ingestor, events EventPublisher, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		responder: responder{logger: logger},
		store:     s,
		ingestor:  ingestor,
		events:    events,
	}
}

// RegisterRoutes registers the mutating admin routes with the router.
func (h *AdminHandler) RegisterRoutes(router *mux.Router) {
	for _, e := range entities {
		router.HandleFunc(e.prefix+"/add", h.Create(e)).Methods(http.MethodPost)
		router.HandleFunc(e.prefix+"/edit/{id}", h.Update(e)).Methods(http.MethodPost, http.MethodPut)
		router.HandleFunc(e.prefix+"/delete/{id}", h.Delete(e)).Methods(http.MethodPost, http.MethodDelete)
	}
}

// RegisterListRoutes registers GET /admin/{collection}/list.
func (h *AdminHandler) RegisterListRoutes(router *mux.Router) {
	for _, e := range entities {
		router.HandleFunc("/admin/"+string(e.collection)+"/list", h.List(e.collection)).Methods(http.MethodGet)
	}
}

// List returns every record of c as a JSON array.
func (h *AdminHandler) List(c model.Collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := h.store.List(r.Context(), c)
		if err != nil {
			h.fail(w, r, true, err, "list "+string(c))
			return
		}
		if records == nil {
			records = []model.Record{}
		}
		h.writeJSON(w, http.StatusOK, records)
	}
}

// Create handles POST {prefix}/add.
func (h *AdminHandler) Create(e entity) http.HandlerFunc {
	schema := mustSchema(e.collection)
	op := "create " + string(e.collection)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		in, err := parseInput(w, r, h.ingestor.MaxBytes())
		if err != nil {
			h.fail(w, r, e.jsonDefault, err, op)
			return
		}
		defer in.cleanup()

		fields := editableFields(schema, in.values)
		src, hasMedia := mediaSource(schema, in)

		if err := model.Validate(e.collection, model.Record{Fields: withPending(schema, fields, hasMedia)}); err != nil {
			h.fail(w, r, e.jsonDefault, err, op)
			return
		}

		var stored *media.Stored
		if hasMedia {
			stored, err = h.ingest(ctx, src)
			if err != nil {
				h.fail(w, r, e.jsonDefault, err, op)
				return
			}
			applyStored(schema, fields, *stored)
		}

		rec, err := h.store.Create(ctx, e.collection, fields)
		if err != nil {
			h.discard(ctx, stored)
			h.fail(w, r, e.jsonDefault, err, op)
			return
		}

		h.publish(model.EventCreated, e.collection, rec.ID)
		h.respond(w, r, e, http.StatusCreated, *rec)
	}
}

// Update handles POST or PUT {prefix}/edit/{id}. Only submitted fields
// change. New media replaces the old object, which is released once the
// record points at the new one.
func (h *AdminHandler) Update(e entity) http.HandlerFunc {
	schema := mustSchema(e.collection)
	op := "update " + string(e.collection)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := mux.Vars(r)["id"]

		in, err := parseInput(w, r, h.ingestor.MaxBytes())
		if err != nil {
			h.fail(w, r, e.jsonDefault, err, op)
			return
		}
		defer in.cleanup()

		existing, err := h.store.Get(ctx, e.collection, id)
		if err != nil {
			h.fail(w, r, e.jsonDefault, err, op)
			return
		}

		patch := editableFields(schema, in.values)
		src, hasMedia := mediaSource(schema, in)
		if hasMedia && src.Body == nil && src.URL != "" && src.URL == existing.Get(schema.MediaKey) {
			// Resubmitting the current link leaves the media alone.
			hasMedia = false
		}

		merged := existing.Fields.Merge(withPending(schema, patch, hasMedia))
		if err := model.Validate(e.collection, model.Record{ID: id, Fields: merged}); err != nil {
			h.fail(w, r, e.jsonDefault, err, op)
			return
		}

		var stored *media.Stored
		if hasMedia {
			stored, err = h.ingest(ctx, src)
			if err != nil {
				h.fail(w, r, e.jsonDefault, err, op)
				return
			}
			applyStored(schema, patch, *stored)
		}

		rec, err := h.store.Update(ctx, e.collection, id, patch)
		if err != nil {
			h.discard(ctx, stored)
			h.fail(w, r, e.jsonDefault, err, op)
			return
		}

		if stored != nil {
			if old, ok := mediaRef(schema, *existing); ok && old.URL != stored.URL {
				h.ingestor.Release(context.WithoutCancel(ctx), old)
			}
		}

		h.publish(model.EventUpdated, e.collection, rec.ID)
		h.respond(w, r, e, http.StatusOK, *rec)
	}
}

// Delete handles POST or DELETE {prefix}/delete/{id}. Stored media is
// released after the record is gone.
func (h *AdminHandler) Delete(e entity) http.HandlerFunc {
	schema := mustSchema(e.collection)
	op := "delete " + string(e.collection)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := mux.Vars(r)["id"]

		existing, err := h.store.Get(ctx, e.collection, id)
		if err != nil {
			h.fail(w, r, e.jsonDefault, err, op)
			return
		}

		if err := h.store.Delete(ctx, e.collection, id); err != nil {
			h.fail(w, r, e.jsonDefault, err, op)
			return
		}

		if ref, ok := mediaRef(schema, *existing); ok {
			h.ingestor.Release(context.WithoutCancel(ctx), ref)
		}

		h.publish(model.EventDeleted, e.collection, id)
		if middleware.PrefersJSON(r, e.jsonDefault) {
			h.writeJSON(w, http.StatusOK, model.APIResponse[any]{Success: true})
			return
		}
		http.Redirect(w, r, AdminPath, http.StatusFound)
	}
}

func (h *AdminHandler) ingest(ctx context.Context, src media.Source) (*media.Stored, error) {
	if closer, ok := src.Body.(interface{ Close() error }); ok {
		defer closer.Close()
	}
	stored, err := h.ingestor.Ingest(ctx, src)
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// discard releases media stored for a mutation that did not commit.
func (h *AdminHandler) discard(ctx context.Context, stored *media.Stored) {
	if stored != nil {
		h.ingestor.Release(context.WithoutCancel(ctx), stored.Ref())
	}
}

func (h *AdminHandler) publish(eventType string, c model.Collection, id string) {
	if h.events != nil {
		h.events.Publish(model.NewChangeEvent(eventType, c, id))
	}
}

// respond answers a successful create or update with {success, item} or a
// redirect to the dashboard.
func (h *AdminHandler) respond(w http.ResponseWriter, r *http.Request, e entity, status int, rec model.Record) {
	if !middleware.PrefersJSON(r, e.jsonDefault) {
		http.Redirect(w, r, AdminPath, http.StatusFound)
		return
	}
	item, err := model.View(e.collection, rec)
	if err != nil {
		h.fail(w, r, e.jsonDefault, err, "render item")
		return
	}
	h.writeJSON(w, status, model.NewSuccessResponse(item))
}

func mustSchema(c model.Collection) model.Schema {
	s, ok := model.SchemaFor(c)
	if !ok {
		panic("handler: no schema for collection " + string(c))
	}
	return s
}

// editableFields keeps the client-settable fields. Media URL, handle and
// kind are set by ingestion only.
func editableFields(s model.Schema, values map[string]string) model.Fields {
	fields := s.Filter(values)
	for _, k := range []string{s.MediaKey, s.HandleKey, s.KindKey} {
		if k != "" {
			delete(fields, k)
		}
	}
	return fields
}

// mediaSource returns the uploaded file or, failing that, the media URL
// submitted in the form.
func mediaSource(s model.Schema, in *input) (media.Source, bool) {
	if !s.HasMedia() {
		return media.Source{}, false
	}
	if in.file != nil {
		f, err := in.file.Open()
		if err == nil {
			return media.Source{
				Filename:    in.file.Filename,
				ContentType: in.file.Header.Get("Content-Type"),
				Size:        in.file.Size,
				Body:        f,
			}, true
		}
		// An unreadable part is reported by ingestion as missing media.
		return media.Source{Filename: in.file.Filename}, true
	}
	if u := strings.TrimSpace(in.values[s.MediaKey]); u != "" {
		return media.Source{URL: u}, true
	}
	return media.Source{}, false
}

// withPending returns fields with placeholder media values so validation
// can run before anything is stored.
func withPending(s model.Schema, fields model.Fields, hasMedia bool) model.Fields {
	if !hasMedia {
		return fields
	}
	out := fields.Clone()
	out[s.MediaKey] = "pending"
	if s.KindKey != "" {
		out[s.KindKey] = string(model.KindImage)
	}
	return out
}

func applyStored(s model.Schema, fields model.Fields, stored media.Stored) {
	fields[s.MediaKey] = stored.URL
	if s.HandleKey != "" {
		fields[s.HandleKey] = stored.Handle
	}
	if s.KindKey != "" {
		fields[s.KindKey] = string(stored.Kind)
	}
}

// mediaRef returns the release reference of the media rec points at.
func mediaRef(s model.Schema, rec model.Record) (media.Ref, bool) {
	if !s.HasMedia() {
		return media.Ref{}, false
	}
	ref := media.Ref{
		URL:  rec.Get(s.MediaKey),
		Kind: model.KindImage,
	}
	if s.HandleKey != "" {
		ref.Handle = rec.Get(s.HandleKey)
	}
	if s.KindKey != "" {
		if k := model.MediaKind(rec.Get(s.KindKey)); k != "" {
			ref.Kind = k
		}
	}
	if ref.URL == "" && ref.Handle == "" {
		return media.Ref{}, false
	}
	return ref, true
}
