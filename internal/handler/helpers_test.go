package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/safehome-site/internal/media"
	"github.com/vyrodovalexey/safehome-site/internal/model"
	"github.com/vyrodovalexey/safehome-site/internal/store"
)

// countingStorage wraps a real storage backend and records releases.
type countingStorage struct {
	media.Storage
	mu       sync.Mutex
	puts     int
	releases []media.Ref
}

func (c *countingStorage) Put(ctx context.Context, u media.Upload) (media.Object, error) {
	c.mu.Lock()
	c.puts++
	c.mu.Unlock()
	return c.Storage.Put(ctx, u)
}

func (c *countingStorage) Release(ctx context.Context, ref media.Ref) error {
	c.mu.Lock()
	c.releases = append(c.releases, ref)
	c.mu.Unlock()
	return c.Storage.Release(ctx, ref)
}

// failingStore fails selected writes of an otherwise working store.
type failingStore struct {
	store.Store
	createErr error
	updateErr error
}

func (f *failingStore) Create(ctx context.Context, c model.Collection, fields model.Fields) (*model.Record, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.Store.Create(ctx, c, fields)
}

func (f *failingStore) Update(ctx context.Context, c model.Collection, id string, patch model.Fields) (*model.Record, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return f.Store.Update(ctx, c, id, patch)
}

// recordingPublisher collects published change events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []model.ChangeEvent
}

func (p *recordingPublisher) Publish(e model.ChangeEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

type adminFixture struct {
	store   *failingStore
	storage *countingStorage
	disk    *media.DiskStorage
	events  *recordingPublisher
	router  *mux.Router
}

func newAdminFixture(t *testing.T) *adminFixture {
	t.Helper()

	disk, err := media.NewDiskStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStorage() error = %v", err)
	}
	f := &adminFixture{
		store:   &failingStore{Store: store.NewMemoryStore()},
		storage: &countingStorage{Storage: disk},
		disk:    disk,
		events:  &recordingPublisher{},
		router:  mux.NewRouter(),
	}
	h := NewAdminHandler(f.store, media.NewIngestor(f.storage, 0, zap.NewNop()), f.events, zap.NewNop())
	h.RegisterRoutes(f.router)
	h.RegisterListRoutes(f.router)
	return f
}

func (f *adminFixture) serve(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func (f *adminFixture) seed(t *testing.T, c model.Collection, fields model.Fields) *model.Record {
	t.Helper()
	rec, err := f.store.Create(context.Background(), c, fields)
	if err != nil {
		t.Fatalf("seed %s: %v", c, err)
	}
	return rec
}

type filePart struct {
	field       string
	name        string
	contentType string
	data        []byte
}

func multipartRequest(t *testing.T, method, target string, values map[string]string, file *filePart) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range values {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+file.field+`"; filename="`+file.name+`"`)
		h.Set("Content-Type", file.contentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("CreatePart: %v", err)
		}
		if _, err := part.Write(file.data); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func formRequest(method, target string, values map[string]string) *http.Request {
	form := url.Values{}
	for k, v := range values {
		form.Set(k, v)
	}
	req := httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req
}

func jpegBytes(size int) []byte {
	data := make([]byte, size)
	copy(data, []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00})
	return data
}

func decodeJSON[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return v
}
