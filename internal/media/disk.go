package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// DefaultURLPrefix is where disk media is served from.
const DefaultURLPrefix = "/uploads/"

// DiskStorage stores media as files in a local directory.
type DiskStorage struct {
	dir    string
	prefix string
}

// NewDiskStorage creates a DiskStorage rooted at dir, creating it if needed.
func NewDiskStorage(dir string) (*DiskStorage, error) {
	if dir == "" {
		return nil, errors.New("disk storage: upload directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("disk storage: create upload directory: %w", err)
	}
	return &DiskStorage{dir: dir, prefix: DefaultURLPrefix}, nil
}

// Dir returns the upload directory.
func (d *DiskStorage) Dir() string {
	return d.dir
}

// Name returns the backend name.
func (d *DiskStorage) Name() string {
	return BackendDisk
}

// Put writes the stream to a new file named by a random UUID.
// Disk media carries no release handle.
func (d *DiskStorage) Put(ctx context.Context, u Upload) (obj Object, err error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}

	name := uuid.New().String() + extensionFor(u)
	target := filepath.Join(d.dir, name)

	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return Object{}, fmt.Errorf("disk storage: create %s: %w", name, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(target)
		}
	}()

	if _, err = io.Copy(f, u.Body); err != nil {
		_ = f.Close()
		return Object{}, fmt.Errorf("disk storage: write %s: %w", name, err)
	}
	if err = f.Close(); err != nil {
		return Object{}, fmt.Errorf("disk storage: close %s: %w", name, err)
	}

	return Object{
		URL:         d.prefix + name,
		ContentType: u.ContentType,
		Format:      normalizeFormat(path.Ext(name)),
	}, nil
}

// PutURL adopts an external URL without copying it.
func (d *DiskStorage) PutURL(_ context.Context, rawURL, contentType string) (Object, error) {
	return Object{
		URL:         rawURL,
		ContentType: contentType,
		Format:      formatOf(urlPath(rawURL)),
	}, nil
}

// Release removes the file behind a local /uploads/ URL. External URLs
// and files that are already gone are ignored.
func (d *DiskStorage) Release(_ context.Context, ref Ref) error {
	name, ok := d.localName(ref.URL)
	if !ok {
		return nil
	}
	err := os.Remove(filepath.Join(d.dir, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("disk storage: remove %s: %w", name, err)
	}
	return nil
}

// LocalPath returns the file behind a local media URL.
func (d *DiskStorage) LocalPath(rawURL string) (string, bool) {
	name, ok := d.localName(rawURL)
	if !ok {
		return "", false
	}
	return filepath.Join(d.dir, name), true
}

func (d *DiskStorage) localName(rawURL string) (string, bool) {
	if !strings.HasPrefix(rawURL, d.prefix) {
		return "", false
	}
	name := strings.TrimPrefix(rawURL, d.prefix)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", false
	}
	return name, true
}

func extensionFor(u Upload) string {
	if ext := path.Ext(filepath.Base(u.Name)); ext != "" && TypeByExtension(ext) != "" {
		return strings.ToLower(ext)
	}
	if m := mimetype.Lookup(NormalizeType(u.ContentType)); m != nil {
		return m.Extension()
	}
	return ""
}
