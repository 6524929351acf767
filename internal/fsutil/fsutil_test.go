package fsutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestClassify(t *testing.T) {
	mt := DefaultMediaTypes()
	cases := map[string]MediaType{
		"a.JPEG": MediaJPEG,
		"a.jpg":  MediaJPEG,
		"b.NEF":  MediaRAW,
		"c.png":  MediaPNG,
		"d.tiff": MediaTIFF,
	}
	for name, want := range cases {
		got, ok := mt.Classify(name)
		if !ok || got != want {
			t.Fatalf("Classify(%q) = %v %v, want %v", name, got, ok, want)
		}
	}
	if _, ok := mt.Classify("notes.txt"); ok {
		t.Fatalf("txt should not be recognized")
	}
	if mt.Preferred(MediaTIFF) != "tif" {
		t.Fatalf("unexpected preferred tiff extension")
	}
}

func TestNewMediaTypesRejectsSharedExtension(t *testing.T) {
	_, err := NewMediaTypes([]MediaSpec{
		{Type: MediaJPEG, Preferred: "jpg", Extensions: []string{"jpg"}},
		{Type: MediaPNG, Preferred: "png", Extensions: []string{"JPG"}},
	})
	if err == nil {
		t.Fatalf("expected duplicate extension error")
	}
	if _, err := NewMediaTypes([]MediaSpec{{Type: MediaPNG}}); err == nil {
		t.Fatalf("expected missing preferred extension error")
	}
}

func TestListCandidatesSkipsDirectories(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"b.jpg", "a.NEF", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "album.jpg"), 0o755); err != nil {
		t.Fatal(err)
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	got, err := ListCandidates(dir, DefaultMediaTypes(), log)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, c := range got {
		names = append(names, c.Name)
	}
	if !slices.Equal(names, []string{"a.NEF", "b.jpg"}) {
		t.Fatalf("unexpected candidates %v", names)
	}
	if got[0].Type != MediaRAW || got[0].Path != filepath.Join(dir, "a.NEF") {
		t.Fatalf("unexpected candidate %+v", got[0])
	}
}

func TestStripExecute(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.jpg")
	if err := os.WriteFile(path, []byte("x"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(path, 0o755); err != nil {
		t.Fatal(err)
	}
	changed, err := StripExecute(path)
	if err != nil || !changed {
		t.Fatalf("expected mode change, got %v %v", changed, err)
	}
	st, _ := os.Stat(path)
	if st.Mode().Perm() != 0o644 {
		t.Fatalf("unexpected mode %v", st.Mode().Perm())
	}
	if changed, _ := StripExecute(path); changed {
		t.Fatalf("second call should be a no-op")
	}
}

func TestCheckDirWritable(t *testing.T) {
	dir := t.TempDir()
	if err := CheckDirWritable(dir); err != nil {
		t.Fatalf("temp dir should be writable: %v", err)
	}
	if err := CheckDirWritable(filepath.Join(dir, "missing")); err == nil {
		t.Fatalf("expected error for missing dir")
	}
	file := filepath.Join(dir, "f")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CheckDirWritable(file); err == nil {
		t.Fatalf("expected error for non-directory")
	}
	if err := CheckFileReadable(file); err != nil {
		t.Fatalf("file should be readable: %v", err)
	}
	if !Exists(file) || Exists(filepath.Join(dir, "nope")) {
		t.Fatalf("Exists misreports")
	}
}
