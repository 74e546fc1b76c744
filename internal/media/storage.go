package media

import (
	"context"
	"io"

	"github.com/vyrodovalexey/safehome-site/internal/model"
)

// Backend names accepted by the configuration.
const (
	BackendDisk       = "disk"
	BackendCloudinary = "cloudinary"
)

// Upload is a byte stream handed to a storage backend.
type Upload struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// Object is what a backend reports after storing media.
type Object struct {
	URL    string
	Handle string
	// ContentType and Format are the values reported by the backend;
	// empty when the backend does not inspect the content.
	ContentType string
	Format      string
}

// Ref identifies stored media for release.
type Ref struct {
	URL    string
	Handle string
	Kind   model.MediaKind
}

// Storage stores and releases media objects.
type Storage interface {
	// Put stores an uploaded stream.
	Put(ctx context.Context, u Upload) (Object, error)

	// PutURL stores, or adopts as-is, media that lives at an external URL.
	PutURL(ctx context.Context, rawURL, contentType string) (Object, error)

	// Release deletes a stored object.
	Release(ctx context.Context, ref Ref) error

	// Name returns the backend name.
	Name() string
}
