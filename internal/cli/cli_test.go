package cli

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"photorename/internal/config"
	"photorename/internal/fsutil"
	"photorename/internal/logging"
	"photorename/internal/pipeline"
	"photorename/internal/storage"
	"photorename/internal/watch"
)

func TestCommandsDispatchJobs(t *testing.T) {
	temp := t.TempDir()
	mapPath := filepath.Join(temp, "renames.txt")
	if err := os.WriteFile(mapPath, []byte("a\tb\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name   string
		args   []string
		typ    pipeline.JobType
		dir    string
		option string
		want   any
	}{
		{"root", []string{"-d", temp}, pipeline.JobRename, temp, "simonSez", false},
		{"rename", []string{"rename", "-d", temp, "-s"}, pipeline.JobRename, temp, "simonSez", true},
		{"avoid", []string{"rename", "-d", temp, "-a"}, pipeline.JobRename, temp, "avoidCollisions", true},
		{"natural", []string{"rename", "-d", temp, "--suffix-order", "natural"}, pipeline.JobRename, temp, "suffixOrder", "natural"},
		{"mapfile", []string{"rename", "-m", mapPath, "--delimiter", ","}, pipeline.JobRename, temp, "delimiter", ","},
		{"set-datetime", []string{"set-datetime", "-d", temp, "-t", "2017-02-27 15:19:31", "-i", "5"}, pipeline.JobSetDatetime, temp, "interval", 5},
		{"shift-datetime", []string{"shift-datetime", "-d", temp, "--delta=-60", "-s"}, pipeline.JobShiftDatetime, temp, "delta", -60},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			if err := h.execute(tc.args...); err != nil {
				t.Fatalf("run failed: %v", err)
			}
			jobs := h.pipe.submitted()
			if len(jobs) != 1 {
				t.Fatalf("expected one job, got %d", len(jobs))
			}
			job := jobs[0]
			if job.Type != tc.typ {
				t.Fatalf("expected type %s, got %s", tc.typ, job.Type)
			}
			if job.Dir != tc.dir {
				t.Fatalf("expected dir %s, got %s", tc.dir, job.Dir)
			}
			if job.Options[tc.option] != tc.want {
				t.Fatalf("expected %s=%v, got %v", tc.option, tc.want, job.Options[tc.option])
			}
			if job.ID == "" {
				t.Fatalf("job has no id")
			}
		})
	}
}

func TestCopyMetadataJobs(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	h := newHarness(t)
	if err := h.execute("copy-metadata", "-r", src, "-d", dst, "-s"); err != nil {
		t.Fatal(err)
	}
	job := h.pipe.submitted()[0]
	if job.Type != pipeline.JobCopyMetadata || job.Dir != dst || job.Options["srcDir"] != src || job.Options["simonSez"] != true {
		t.Fatalf("unexpected copy job %+v", job)
	}

	mapPath := filepath.Join(src, "renames.txt")
	h = newHarness(t)
	if err := h.execute("copy-metadata", "-m", mapPath, "-d", dst); err != nil {
		t.Fatal(err)
	}
	job = h.pipe.submitted()[0]
	if job.MapFile != mapPath || job.Options["srcDir"] != nil {
		t.Fatalf("unexpected map copy job %+v", job)
	}

	for _, args := range [][]string{
		{"copy-metadata", "-r", src},
		{"copy-metadata", "-r", src, "-m", mapPath, "-d", dst},
	} {
		h = newHarness(t)
		if err := h.execute(args...); err == nil {
			t.Fatalf("expected error for %v", args)
		}
		if len(h.pipe.submitted()) != 0 {
			t.Fatalf("no job may run for %v", args)
		}
	}
}

func TestMapFileSetsMapAndDirectory(t *testing.T) {
	h := newHarness(t)
	temp := t.TempDir()
	mapPath := filepath.Join(temp, "renames.txt")
	if err := h.execute("-m", mapPath); err != nil {
		t.Fatal(err)
	}
	job := h.pipe.submitted()[0]
	if job.MapFile != mapPath || job.Dir != temp {
		t.Fatalf("unexpected map job %+v", job)
	}
}

func TestMapFileExcludesDirectoryAndAvoidance(t *testing.T) {
	for _, args := range [][]string{
		{"-m", "renames.txt", "-d", "/tmp"},
		{"rename", "-m", "renames.txt", "-a"},
	} {
		h := newHarness(t)
		if err := h.execute(args...); err == nil {
			t.Fatalf("expected error for %v", args)
		}
		if len(h.pipe.submitted()) != 0 {
			t.Fatalf("no job may run for %v", args)
		}
	}
}

func TestConfigDefaultsApplyWithoutFlags(t *testing.T) {
	h := newHarness(t)
	h.cfg.Rename.AvoidCollisions = true
	h.cfg.Rename.Strict = true
	h.cfg.Rename.Reader = "exiftool"
	if err := h.execute("rename", "-d", t.TempDir()); err != nil {
		t.Fatal(err)
	}
	opts := h.pipe.submitted()[0].Options
	if opts["avoidCollisions"] != true || opts["strict"] != true || opts["reader"] != "exiftool" {
		t.Fatalf("config defaults not applied: %v", opts)
	}
}

func TestGlobalFlagsReachEnvFactory(t *testing.T) {
	h := newHarness(t)
	journal := filepath.Join(t.TempDir(), "journal.db")
	if err := h.execute("-v", "--journal", journal, "-d", t.TempDir()); err != nil {
		t.Fatal(err)
	}
	if h.gotCfg.Logging.Level != "debug" {
		t.Fatalf("verbose should select debug, got %s", h.gotCfg.Logging.Level)
	}
	if h.gotCfg.Paths.JournalPath != journal {
		t.Fatalf("journal flag ignored: %s", h.gotCfg.Paths.JournalPath)
	}
	if !h.closed {
		t.Fatalf("env should be closed after the command")
	}
}

func TestPipelineErrorsPropagate(t *testing.T) {
	h := newHarness(t)
	h.pipe.err = errors.New("directory is not writable")
	if err := h.execute("rename", "-d", t.TempDir()); err == nil {
		t.Fatalf("expected pipeline error")
	}
}

func TestSetDatetimeRejectsNonPositiveInterval(t *testing.T) {
	h := newHarness(t)
	if err := h.execute("set-datetime", "-d", t.TempDir(), "-t", "2017-02-27 15:19:31", "-i", "0"); err == nil {
		t.Fatalf("expected interval error")
	}
	if len(h.pipe.submitted()) != 0 {
		t.Fatalf("no job may run")
	}
}

func TestWatchRunsInitialBatchThenTriggers(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()
	w := &stubWatcher{}
	h.root.watchFn = func(d string, types *fsutil.MediaTypes, debounce time.Duration, log *slog.Logger) (batchWatcher, error) {
		if d != dir {
			t.Fatalf("watching %s, want %s", d, dir)
		}
		if debounce != 3*time.Second {
			t.Fatalf("unexpected debounce %v", debounce)
		}
		return w, nil
	}
	if err := h.execute("watch", "-d", dir, "-s", "--debounce", "3s"); err != nil {
		t.Fatal(err)
	}
	jobs := h.pipe.submitted()
	if len(jobs) != 2 {
		t.Fatalf("expected initial and triggered batches, got %d", len(jobs))
	}
	if jobs[0].ID == jobs[1].ID {
		t.Fatalf("each batch needs its own id")
	}
	if !w.closed {
		t.Fatalf("watcher should be closed")
	}
}

func TestWatchRejectsMapFile(t *testing.T) {
	h := newHarness(t)
	if err := h.execute("watch", "-m", "renames.txt"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestHistoryRequiresJournal(t *testing.T) {
	h := newHarness(t)
	if err := h.execute("history"); !errors.Is(err, errNoJournal) {
		t.Fatalf("expected errNoJournal, got %v", err)
	}
}

func TestHistoryListsRuns(t *testing.T) {
	h := newHarness(t)
	h.journal = &stubJournal{
		runs: []storage.RunRecord{
			{ID: "run-1", JobType: "rename", Status: storage.StatusCompleted, Directory: "/photos", DryRun: true, CreatedAt: time.Now()},
			{ID: "run-2", JobType: "rename", Status: storage.StatusFailed, Directory: "/photos", Error: "not writable", CreatedAt: time.Now()},
		},
		renames: []storage.RenameRecord{
			{RunID: "run-1", Source: "abc123.jpeg", Destination: "20140816_062030.jpg", Outcome: storage.RenameDryRun},
		},
	}
	if err := h.execute("history", "-n", "5"); err != nil {
		t.Fatal(err)
	}
	out := h.out.String()
	for _, want := range []string{"run-1", "dry-run", "run-2", "not writable"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output %q", want, out)
		}
	}
	if h.journal.limit != 5 {
		t.Fatalf("limit not passed, got %d", h.journal.limit)
	}

	h.out.Reset()
	if err := h.execute("history", "--run", "run-1"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(h.out.String(), "abc123.jpeg ==> 20140816_062030.jpg") {
		t.Fatalf("unexpected run output %q", h.out.String())
	}
}

func TestInfoCommandsSkipEnv(t *testing.T) {
	h := newHarness(t)
	if err := h.execute("config", "show"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(h.out.String(), "Current configuration") {
		t.Fatalf("expected configuration output, got %q", h.out.String())
	}
	if err := h.execute("version"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(h.out.String(), "photorename "+Version) {
		t.Fatalf("expected version string, got %q", h.out.String())
	}
	if h.envCalls != 0 {
		t.Fatalf("info commands should not build an env, got %d calls", h.envCalls)
	}
}

// Test helpers

type harness struct {
	t        *testing.T
	cfg      *config.Config
	root     *Root
	pipe     *fakePipeline
	journal  *stubJournal
	out      *bytes.Buffer
	gotCfg   config.Config
	envCalls int
	closed   bool
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{t: t, cfg: config.Default(), pipe: &fakePipeline{}, out: &bytes.Buffer{}}
	factory := func(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Env, error) {
		h.envCalls++
		h.gotCfg = *cfg
		env := &Env{Pipeline: h.pipe, Close: func() { h.closed = true }}
		if h.journal != nil {
			env.Journal = h.journal
		}
		return env, nil
	}
	h.root = newRoot(h.cfg, logging.Discard(), factory)
	h.root.setupLog = nil
	h.root.out = h.out
	return h
}

func (h *harness) execute(args ...string) error {
	defer h.root.close()
	cmd := newRootCmd(h.root)
	cmd.SetArgs(args)
	cmd.SetOut(h.out)
	cmd.SetErr(h.out)
	return cmd.ExecuteContext(context.Background())
}

type fakePipeline struct {
	mu   sync.Mutex
	jobs []pipeline.Job
	err  error
}

func (f *fakePipeline) RunAndWait(ctx context.Context, job pipeline.Job) (pipeline.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
	res := pipeline.Result{Job: job, Error: f.err, Meta: map[string]any{"renamed": 0}}
	return res, f.err
}

func (f *fakePipeline) submitted() []pipeline.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pipeline.Job(nil), f.jobs...)
}

type stubJournal struct {
	runs    []storage.RunRecord
	renames []storage.RenameRecord
	limit   int
}

func (s *stubJournal) RecentRuns(limit int) ([]storage.RunRecord, error) {
	s.limit = limit
	return s.runs, nil
}

func (s *stubJournal) RunRenames(runID string) ([]storage.RenameRecord, error) {
	var out []storage.RenameRecord
	for _, r := range s.renames {
		if r.RunID == runID {
			out = append(out, r)
		}
	}
	return out, nil
}

type stubWatcher struct {
	closed bool
}

func (w *stubWatcher) Run(ctx context.Context, trigger watch.Trigger) error {
	return trigger(ctx)
}

func (w *stubWatcher) Close() error {
	w.closed = true
	return nil
}
