// Package media ingests uploaded or linked media files, classifies them
// and hands them to a storage backend.
package media

import (
	"errors"
	"mime"
	"path"
	"strings"

	"github.com/vyrodovalexey/safehome-site/internal/model"
)

// Ingestion errors.
var (
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrPayloadTooLarge      = errors.New("media payload too large")
	ErrNoMedia              = errors.New("no media supplied")
	ErrInvalidURL           = errors.New("invalid media URL")
)

// DefaultMaxBytes is the default upload ceiling (100 MiB).
const DefaultMaxBytes int64 = 100 << 20

// allowedTypes is the content-type allow-list.
var allowedTypes = map[string]struct{}{
	"image/jpeg":      {},
	"image/png":       {},
	"image/webp":      {},
	"image/gif":       {},
	"video/mp4":       {},
	"video/webm":      {},
	"video/quicktime": {},
	"audio/mpeg":      {},
	"audio/wav":       {},
	"audio/ogg":       {},
}

// audioFormats are audio encodings that remote hosts report inside a
// video-typed resource.
var audioFormats = map[string]struct{}{
	"mp3": {},
	"wav": {},
	"ogg": {},
	"aac": {},
	"m4a": {},
}

// extensionTypes maps file extensions to content types for sources that
// only carry a name or a URL.
var extensionTypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"webp": "image/webp",
	"gif":  "image/gif",
	"svg":  "image/svg+xml",
	"mp4":  "video/mp4",
	"webm": "video/webm",
	"mov":  "video/quicktime",
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"ogg":  "audio/ogg",
	"aac":  "audio/aac",
	"m4a":  "audio/mp4",
	"pdf":  "application/pdf",
}

// AllowedTypes returns the allow-list in a stable order.
func AllowedTypes() []string {
	return []string{
		"image/jpeg", "image/png", "image/webp", "image/gif",
		"video/mp4", "video/webm", "video/quicktime",
		"audio/mpeg", "audio/wav", "audio/ogg",
	}
}

// NormalizeType lower-cases a content type and strips its parameters.
// Unparseable values are returned trimmed and lower-cased.
func NormalizeType(contentType string) string {
	ct := strings.TrimSpace(contentType)
	if ct == "" {
		return ""
	}
	if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
		return mediaType
	}
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// CheckAllowed returns ErrUnsupportedMediaType unless contentType is on
// the allow-list.
func CheckAllowed(contentType string) error {
	if _, ok := allowedTypes[NormalizeType(contentType)]; !ok {
		return ErrUnsupportedMediaType
	}
	return nil
}

// Classify maps a content type to a media kind. formatHint is an optional
// file extension or host-reported format; an audio format inside a
// video-typed content type classifies as audio. Anything unrecognised is
// an image.
func Classify(contentType, formatHint string) model.MediaKind {
	ct := NormalizeType(contentType)
	hint := normalizeFormat(formatHint)

	switch {
	case strings.HasPrefix(ct, "image/"):
		return model.KindImage
	case strings.HasPrefix(ct, "video/"):
		if _, ok := audioFormats[hint]; ok {
			return model.KindAudio
		}
		return model.KindVideo
	case strings.HasPrefix(ct, "audio/"):
		return model.KindAudio
	default:
		return model.KindImage
	}
}

// TypeByExtension returns the content type for a file name or URL path,
// or "" when the extension is unknown.
func TypeByExtension(name string) string {
	return extensionTypes[formatOf(name)]
}

func formatOf(name string) string {
	return normalizeFormat(path.Ext(name))
}

func normalizeFormat(hint string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(hint), "."))
}
