package model

import (
	"path"
	"strings"
)

// legacyKinds maps file extensions of older gallery entries to their kind.
// Anything else was always shown as an image.
var legacyKinds = map[string]MediaKind{
	".mp4":  KindVideo,
	".webm": KindVideo,
	".mov":  KindVideo,
	".mp3":  KindAudio,
	".wav":  KindAudio,
	".ogg":  KindAudio,
	".aac":  KindAudio,
	".m4a":  KindAudio,
}

// Upgrade rewrites fields stored by older versions of the site into the
// current shape of the collection. Gallery entries used to keep their link
// under imageUrl and carried no kind.
func (s Schema) Upgrade(f Fields) Fields {
	if s.KindKey == "" {
		return f
	}
	out := f.Clone()
	if out[s.MediaKey] == "" && out[FieldImageURL] != "" && s.MediaKey != FieldImageURL {
		out[s.MediaKey] = out[FieldImageURL]
	}
	if s.MediaKey != FieldImageURL {
		delete(out, FieldImageURL)
	}
	if out[s.KindKey] == "" && out[s.MediaKey] != "" {
		out[s.KindKey] = string(kindOfLink(out[s.MediaKey]))
	}
	return out
}

func kindOfLink(link string) MediaKind {
	if i := strings.IndexAny(link, "?#"); i >= 0 {
		link = link[:i]
	}
	if kind, ok := legacyKinds[strings.ToLower(path.Ext(link))]; ok {
		return kind
	}
	return KindImage
}
