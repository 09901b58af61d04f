// Package naming derives the deterministic artifact filenames and public
// URLs for a content key. Every derived name is a pure function of the key;
// existing consumers depend on the exact scheme, so it must not change.
package naming

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/framelab/media-service/internal/model"
)

// FilenameSet holds the four derived blob names for one content key.
type FilenameSet struct {
	Video      string // {key}.webm, web-optimized
	Fallback   string // {key}.mp4, broadly compatible
	ThumbSmall string // {key}-thumb-sm.jpg, 320x240
	ThumbLarge string // {key}-thumb-lg.jpg, 1920x1080
}

// URLSet holds the public CDN URLs matching a FilenameSet. Src points at the
// fallback encoding, which is what most consumers embed directly.
type URLSet struct {
	Src        string
	WebM       string
	ThumbSmall string
	ThumbLarge string
}

// Derived is the full naming result for one content key.
type Derived struct {
	Key   string
	Files FilenameSet
	URLs  URLSet
}

// URLResolver maps a blob filename to its public URL.
type URLResolver interface {
	PublicURL(filename string) string
}

// Deriver computes filename sets and public URLs for content keys.
type Deriver struct {
	urls URLResolver
}

func NewDeriver(urls URLResolver) *Deriver {
	return &Deriver{urls: urls}
}

// NewKey returns a fresh random content key: 12 URL-safe hex characters,
// 48 bits of entropy.
func NewKey() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}

// Derive maps a caller-supplied key (or a fresh random one when empty) to
// its derived filenames and public URLs. Deterministic given the key.
func (d *Deriver) Derive(key string) Derived {
	if key == "" {
		key = NewKey()
	}

	files := FilenameSet{
		Video:      fmt.Sprintf("%s.webm", key),
		Fallback:   fmt.Sprintf("%s.mp4", key),
		ThumbSmall: fmt.Sprintf("%s-thumb-sm.jpg", key),
		ThumbLarge: fmt.Sprintf("%s-thumb-lg.jpg", key),
	}

	return Derived{
		Key:   key,
		Files: files,
		URLs: URLSet{
			Src:        d.urls.PublicURL(files.Fallback),
			WebM:       d.urls.PublicURL(files.Video),
			ThumbSmall: d.urls.PublicURL(files.ThumbSmall),
			ThumbLarge: d.urls.PublicURL(files.ThumbLarge),
		},
	}
}

// Filename returns the derived blob name for one task kind.
func (f FilenameSet) Filename(kind model.TaskKind) string {
	switch kind {
	case model.TaskWebM:
		return f.Video
	case model.TaskMP4:
		return f.Fallback
	case model.TaskThumbSmall:
		return f.ThumbSmall
	case model.TaskThumbLarge:
		return f.ThumbLarge
	}
	return ""
}
