package naming

import (
	"fmt"
	"strings"
	"testing"

	"github.com/framelab/media-service/internal/model"
)

type fakeResolver struct{}

func (fakeResolver) PublicURL(filename string) string {
	return fmt.Sprintf("https://cdn.example.com/uploads/%s", filename)
}

func TestDeriveScheme(t *testing.T) {
	d := NewDeriver(fakeResolver{})
	got := d.Derive("abc123")

	if got.Key != "abc123" {
		t.Fatalf("key = %q, want abc123", got.Key)
	}

	wantFiles := FilenameSet{
		Video:      "abc123.webm",
		Fallback:   "abc123.mp4",
		ThumbSmall: "abc123-thumb-sm.jpg",
		ThumbLarge: "abc123-thumb-lg.jpg",
	}
	if got.Files != wantFiles {
		t.Errorf("filenames = %+v, want %+v", got.Files, wantFiles)
	}

	wantURLs := URLSet{
		Src:        "https://cdn.example.com/uploads/abc123.mp4",
		WebM:       "https://cdn.example.com/uploads/abc123.webm",
		ThumbSmall: "https://cdn.example.com/uploads/abc123-thumb-sm.jpg",
		ThumbLarge: "https://cdn.example.com/uploads/abc123-thumb-lg.jpg",
	}
	if got.URLs != wantURLs {
		t.Errorf("urls = %+v, want %+v", got.URLs, wantURLs)
	}
}

func TestDeriveDeterministic(t *testing.T) {
	d := NewDeriver(fakeResolver{})

	first := d.Derive("abc123")
	second := d.Derive("abc123")

	if first != second {
		t.Errorf("derive not deterministic: %+v vs %+v", first, second)
	}
}

func TestDeriveGeneratesKey(t *testing.T) {
	d := NewDeriver(fakeResolver{})

	got := d.Derive("")
	if len(got.Key) < 8 {
		t.Errorf("generated key %q shorter than 8 characters", got.Key)
	}
	for _, r := range got.Key {
		if !strings.ContainsRune("0123456789abcdef", r) {
			t.Errorf("generated key %q contains non-URL-safe character %q", got.Key, r)
		}
	}

	other := d.Derive("")
	if other.Key == got.Key {
		t.Errorf("two generated keys collided: %q", got.Key)
	}
}

func TestFilenameByKind(t *testing.T) {
	d := NewDeriver(fakeResolver{})
	files := d.Derive("abc123").Files

	cases := map[model.TaskKind]string{
		model.TaskWebM:       "abc123.webm",
		model.TaskMP4:        "abc123.mp4",
		model.TaskThumbSmall: "abc123-thumb-sm.jpg",
		model.TaskThumbLarge: "abc123-thumb-lg.jpg",
	}
	for kind, want := range cases {
		if got := files.Filename(kind); got != want {
			t.Errorf("Filename(%s) = %q, want %q", kind, got, want)
		}
	}
}
