package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"photorename/internal/catalog"
	"photorename/internal/logging"
	"photorename/internal/storage"
)

type recordingProcessor struct {
	mu      sync.Mutex
	active  int
	overlap bool
	seen    []string
}

func (p *recordingProcessor) Process(ctx context.Context, job Job) Result {
	p.mu.Lock()
	p.active++
	if p.active > 1 {
		p.overlap = true
	}
	p.mu.Unlock()

	time.Sleep(10 * time.Millisecond)

	p.mu.Lock()
	p.active--
	p.seen = append(p.seen, job.ID)
	p.mu.Unlock()
	if job.ID == "bad" {
		return Result{Job: job, Error: errors.New("boom")}
	}
	return Result{Job: job, Meta: map[string]any{"renamed": 1}}
}

func TestPipelineRunsJobsSerially(t *testing.T) {
	proc := &recordingProcessor{}
	p := newWithProcessor(context.Background(), logging.Discard(), nil, proc)
	defer p.Stop()

	var wg sync.WaitGroup
	for _, id := range []string{"one", "two", "three"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := p.RunAndWait(context.Background(), Job{ID: id, Type: JobRename}); err != nil {
				t.Errorf("job %s: %v", id, err)
			}
		}(id)
	}
	wg.Wait()

	if proc.overlap {
		t.Fatalf("jobs overlapped")
	}
	if len(proc.seen) != 3 {
		t.Fatalf("expected 3 jobs, got %v", proc.seen)
	}
}

func TestPipelineJournalsRuns(t *testing.T) {
	store, err := storage.New(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	p := newWithProcessor(context.Background(), logging.Discard(), store, &recordingProcessor{})
	defer p.Stop()

	if _, err := p.RunAndWait(context.Background(), Job{ID: "good", Type: JobRename, Dir: "/photos", Options: map[string]any{"simonSez": true}}); err != nil {
		t.Fatal(err)
	}
	if _, err := p.RunAndWait(context.Background(), Job{ID: "bad", Type: JobRename, Dir: "/photos"}); err == nil {
		t.Fatalf("expected job error")
	}

	runs, err := store.RecentRuns(10)
	if err != nil {
		t.Fatal(err)
	}
	status := map[string]string{}
	dry := map[string]bool{}
	for _, r := range runs {
		status[r.ID] = r.Status
		dry[r.ID] = r.DryRun
	}
	if status["good"] != storage.StatusCompleted || status["bad"] != storage.StatusFailed {
		t.Fatalf("unexpected statuses %v", status)
	}
	if dry["good"] || !dry["bad"] {
		t.Fatalf("unexpected dry run flags %v", dry)
	}
}

func TestPipelineRejectsAfterStop(t *testing.T) {
	p := newWithProcessor(context.Background(), logging.Discard(), nil, &recordingProcessor{})
	p.Stop()
	if err := p.Submit(Job{ID: "late"}); err == nil {
		t.Fatalf("expected error submitting to stopped pipeline")
	}
}

func TestExecutorIsolatesFailures(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a.jpg", "b.jpg", "c.jpg")
	cat := catalog.New(catalog.SuffixLexical)
	for src, dst := range map[string]string{"a.jpg": "1.jpg", "b.jpg": "2.jpg", "c.jpg": "3.jpg"} {
		cat.Add(&catalog.Entry{Source: filepath.Join(dir, src), Destination: dst})
	}

	x := &Executor{
		Resolver: catalog.NewResolver(false),
		Log:      logging.Discard(),
		rename: func(oldpath, newpath string) error {
			if filepath.Base(oldpath) == "b.jpg" {
				return errors.New("permission denied")
			}
			return os.Rename(oldpath, newpath)
		},
	}
	sum, err := x.Execute(context.Background(), cat)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Renamed != 2 || sum.Failed != 1 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	if got := listDir(t, dir); len(got) != 3 || got[0] != "1.jpg" || got[1] != "3.jpg" || got[2] != "b.jpg" {
		t.Fatalf("unexpected directory %v", got)
	}
}

func TestExecutorChecksFilesystemBeforeRename(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a.jpg", "20140816_062030.jpg")
	entry := func() *catalog.Catalog {
		cat := catalog.New(catalog.SuffixLexical)
		cat.Add(&catalog.Entry{Source: filepath.Join(dir, "a.jpg"), Destination: "20140816_062030.jpg"})
		return cat
	}

	flag := &Executor{Resolver: catalog.NewResolver(false), Log: logging.Discard()}
	sum, err := flag.Execute(context.Background(), entry())
	if err != nil {
		t.Fatal(err)
	}
	if sum.Collisions != 1 || sum.Renamed != 0 {
		t.Fatalf("existing file must not be clobbered: %+v", sum)
	}

	avoid := &Executor{Resolver: catalog.NewResolver(true), Log: logging.Discard()}
	sum, err = avoid.Execute(context.Background(), entry())
	if err != nil {
		t.Fatal(err)
	}
	if sum.Renamed != 1 {
		t.Fatalf("expected suffixed rename: %+v", sum)
	}
	if _, err := os.Stat(filepath.Join(dir, "20140816_062030-1.jpg")); err != nil {
		t.Fatalf("expected suffixed file: %v", err)
	}
}

func TestExecutorStripsExecuteBits(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.jpg")
	if err := os.WriteFile(src, []byte("x"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(src, 0o755); err != nil {
		t.Fatal(err)
	}
	cat := catalog.New(catalog.SuffixLexical)
	cat.Add(&catalog.Entry{Source: src, Destination: "b.jpg"})

	x := &Executor{Resolver: catalog.NewResolver(false), Log: logging.Discard()}
	if _, err := x.Execute(context.Background(), cat); err != nil {
		t.Fatal(err)
	}
	st, err := os.Stat(filepath.Join(dir, "b.jpg"))
	if err != nil {
		t.Fatal(err)
	}
	if st.Mode().Perm()&0o111 != 0 {
		t.Fatalf("execute bits left on %v", st.Mode().Perm())
	}
}

func TestExecutorStopsOnCancel(t *testing.T) {
	cat := catalog.New(catalog.SuffixLexical)
	cat.Add(&catalog.Entry{Source: "/nowhere/a.jpg", Destination: "b.jpg"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	x := &Executor{Resolver: catalog.NewResolver(false), Log: logging.Discard()}
	if _, err := x.Execute(ctx, cat); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}
