package fsutil

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sys/unix"
)

// Candidate is a directory entry recognized as an image.
type Candidate struct {
	Name string
	Path string
	Type MediaType
}

// ListCandidates returns the images directly inside dir, sorted by name.
// Subdirectories are never descended into; one carrying an image-like name is
// reported and skipped.
func ListCandidates(dir string, types *MediaTypes, log *slog.Logger) ([]Candidate, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []Candidate
	for _, e := range entries {
		t, ok := types.Classify(e.Name())
		if !ok {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if e.IsDir() {
			log.Warn("skipping directory", "path", path)
			continue
		}
		out = append(out, Candidate{Name: e.Name(), Path: path, Type: t})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Exists reports whether path exists without following a final symlink.
func Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// CheckDirWritable fails when dir is missing, not a directory, or not writable
// by the current user.
func CheckDirWritable(dir string) error {
	st, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("directory %s does not exist", dir)
	}
	if err != nil {
		return err
	}
	if !st.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	if err := unix.Access(dir, unix.W_OK); err != nil {
		return fmt.Errorf("directory %s is not writable", dir)
	}
	return nil
}

// CheckFileReadable fails when path is missing or not readable.
func CheckFileReadable(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("file %s does not exist", path)
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return fmt.Errorf("file %s is not readable", path)
	}
	return nil
}

// StripExecute clears the user, group and other execute bits on path.
// It reports whether the mode changed.
func StripExecute(path string) (bool, error) {
	st, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	mode := st.Mode()
	cleared := mode &^ 0o111
	if cleared == mode {
		return false, nil
	}
	return true, os.Chmod(path, cleared)
}
