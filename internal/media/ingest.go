package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/safehome-site/internal/model"
)

// sniffLen is the number of leading bytes inspected to detect a type.
const sniffLen = 3072

// Prometheus metrics.
var (
	mediaIngestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_total",
			Help: "Total number of media objects stored, by kind",
		},
		[]string{"kind"},
	)

	mediaReleaseFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_release_failures_total",
			Help: "Total number of stored media objects that could not be released",
		},
	)
)

// Source is media offered for ingestion: either an uploaded stream or an
// external URL.
type Source struct {
	Filename    string
	ContentType string
	// Size is the declared length in bytes, or a negative value when unknown.
	Size int64
	Body io.Reader
	URL  string
}

// Stored is the result of a successful ingestion.
type Stored struct {
	URL    string
	Kind   model.MediaKind
	Handle string
}

// Ref returns the release reference of s.
func (s Stored) Ref() Ref {
	return Ref{URL: s.URL, Handle: s.Handle, Kind: s.Kind}
}

// Ingestor validates, classifies and stores media.
type Ingestor struct {
	storage  Storage
	maxBytes int64
	logger   *zap.Logger
}

// NewIngestor creates an Ingestor. A non-positive maxBytes selects
// DefaultMaxBytes.
func NewIngestor(storage Storage, maxBytes int64, logger *zap.Logger) *Ingestor {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Ingestor{
		storage:  storage,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// Storage returns the backend media is stored in.
func (i *Ingestor) Storage() Storage {
	return i.storage
}

// MaxBytes returns the upload ceiling.
func (i *Ingestor) MaxBytes() int64 {
	return i.maxBytes
}

// Ingest stores src and reports where it lives. Sources outside the
// allow-list or over the size ceiling are rejected before anything is
// stored.
func (i *Ingestor) Ingest(ctx context.Context, src Source) (Stored, error) {
	switch {
	case src.Body != nil:
		return i.ingestStream(ctx, src)
	case strings.TrimSpace(src.URL) != "":
		return i.ingestURL(ctx, src)
	default:
		return Stored{}, ErrNoMedia
	}
}

func (i *Ingestor) ingestStream(ctx context.Context, src Source) (Stored, error) {
	if src.Size > i.maxBytes {
		return Stored{}, ErrPayloadTooLarge
	}

	header := make([]byte, sniffLen)
	n, err := io.ReadFull(src.Body, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Stored{}, fmt.Errorf("read upload: %w", err)
	}
	header = header[:n]
	if n == 0 {
		return Stored{}, ErrNoMedia
	}

	contentType := NormalizeType(src.ContentType)
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = NormalizeType(mimetype.Detect(header).String())
	}
	if err := CheckAllowed(contentType); err != nil {
		return Stored{}, err
	}

	body := &limitedReader{
		r:      io.MultiReader(bytes.NewReader(header), src.Body),
		remain: i.maxBytes,
	}
	obj, err := i.storage.Put(ctx, Upload{
		Name:        src.Filename,
		ContentType: contentType,
		Body:        body,
	})
	if err != nil {
		if errors.Is(err, ErrPayloadTooLarge) || body.exceeded {
			return Stored{}, ErrPayloadTooLarge
		}
		return Stored{}, fmt.Errorf("store media: %w", err)
	}

	hint := obj.Format
	if hint == "" {
		hint = formatOf(src.Filename)
	}
	return i.stored(obj, contentType, hint), nil
}

func (i *Ingestor) ingestURL(ctx context.Context, src Source) (Stored, error) {
	raw := strings.TrimSpace(src.URL)
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https" && !strings.HasPrefix(raw, "/")) {
		return Stored{}, ErrInvalidURL
	}
	// Uploaded files belong to the record that uploaded them.
	if strings.HasPrefix(u.Path, DefaultURLPrefix) && u.Host == "" {
		return Stored{}, fmt.Errorf("%w: %s is an uploaded file", ErrInvalidURL, raw)
	}

	contentType := NormalizeType(src.ContentType)
	if contentType == "" {
		contentType = TypeByExtension(u.Path)
	}
	// Links without a recognisable type are kept and default to images.
	if contentType != "" {
		if err := CheckAllowed(contentType); err != nil {
			return Stored{}, err
		}
	}

	obj, err := i.storage.PutURL(ctx, raw, contentType)
	if err != nil {
		return Stored{}, fmt.Errorf("store media: %w", err)
	}

	hint := obj.Format
	if hint == "" {
		hint = formatOf(u.Path)
	}
	return i.stored(obj, contentType, hint), nil
}

func (i *Ingestor) stored(obj Object, declared, hint string) Stored {
	contentType := declared
	if obj.ContentType != "" {
		contentType = obj.ContentType
	}
	kind := Classify(contentType, hint)
	mediaIngestTotal.WithLabelValues(string(kind)).Inc()

	return Stored{URL: obj.URL, Kind: kind, Handle: obj.Handle}
}

// Release deletes stored media on a best-effort basis. Failures are
// logged and counted, never returned.
func (i *Ingestor) Release(ctx context.Context, ref Ref) {
	if ref.URL == "" && ref.Handle == "" {
		return
	}
	if err := i.storage.Release(ctx, ref); err != nil {
		mediaReleaseFailuresTotal.Inc()
		i.logger.Warn("failed to release media",
			zap.String("url", ref.URL),
			zap.String("handle", ref.Handle),
			zap.String("backend", i.storage.Name()),
			zap.Error(err),
		)
		return
	}
	i.logger.Debug("media released",
		zap.String("url", ref.URL),
		zap.String("handle", ref.Handle),
	)
}

// limitedReader fails with ErrPayloadTooLarge once more than remain bytes
// have been read.
type limitedReader struct {
	r        io.Reader
	remain   int64
	exceeded bool
}

func (l *limitedReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.remain -= int64(n)
	if l.remain < 0 {
		l.exceeded = true
		return n, ErrPayloadTooLarge
	}
	return n, err
}

func urlPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return path.Clean(u.Path)
}
