package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestKeyForFileKeepsExtension(t *testing.T) {
	if got := keyForFile("clip.mp4"); got != "clip.mp4" {
		t.Errorf("keyForFile(clip.mp4) = %q, want clip.mp4", got)
	}

	// Two files sharing a stem must never land on one key, or their jobs
	// would write the same derived output paths concurrently.
	if keyForFile("a.mp4") == keyForFile("a.mov") {
		t.Error("files sharing a stem collapsed onto one key")
	}
}

func TestListSourcesSkipsResultFile(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.mp4", "b.mov", resultFile} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}

	files, err := listSources(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("listSources = %v, want the two source files only", files)
	}
}
