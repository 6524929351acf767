package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"photorename/internal/fsutil"
	"photorename/internal/logging"
)

func TestRunTriggersOnceAfterBurst(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, fsutil.DefaultMediaTypes(), 250*time.Millisecond, logging.Discard())
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	triggered := make(chan struct{}, 4)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(context.Context) error {
			triggered <- struct{}{}
			return nil
		})
	}()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, n := range []string{"a.jpg", "b.JPG", "c.nef"} {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case <-triggered:
	case <-time.After(5 * time.Second):
		t.Fatalf("expected a batch after image writes")
	}
	select {
	case <-triggered:
		t.Fatalf("burst should collapse into one batch")
	case <-time.After(500 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not stop on cancel")
	}
}

func TestRunIgnoresNonImages(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, fsutil.DefaultMediaTypes(), 50*time.Millisecond, logging.Discard())
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	calls := 0
	_ = w.Run(ctx, func(context.Context) error {
		calls++
		return nil
	})
	if calls != 0 {
		t.Fatalf("non-image write triggered %d batches", calls)
	}
}

func TestNewFailsForMissingDir(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "missing"), fsutil.DefaultMediaTypes(), time.Second, logging.Discard()); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}
