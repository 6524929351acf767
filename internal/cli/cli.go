package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"photorename/internal/config"
	"photorename/internal/fsutil"
	"photorename/internal/logging"
	"photorename/internal/pipeline"
	"photorename/internal/storage"
	"photorename/internal/watch"
)

type pipelineClient interface {
	RunAndWait(ctx context.Context, job pipeline.Job) (pipeline.Result, error)
}

type journal interface {
	RecentRuns(limit int) ([]storage.RunRecord, error)
	RunRenames(runID string) ([]storage.RenameRecord, error)
}

type batchWatcher interface {
	Run(ctx context.Context, trigger watch.Trigger) error
	Close() error
}

// Env is what commands run against once flags and config are settled.
type Env struct {
	Pipeline pipelineClient
	// Journal is nil when journaling is disabled.
	Journal journal
	Close   func()
}

// EnvFactory builds the Env for a resolved configuration.
type EnvFactory func(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Env, error)

type watcherFactory func(dir string, types *fsutil.MediaTypes, debounce time.Duration, log *slog.Logger) (batchWatcher, error)

func defaultWatcher(dir string, types *fsutil.MediaTypes, debounce time.Duration, log *slog.Logger) (batchWatcher, error) {
	return watch.New(dir, types, debounce, log)
}

// DefaultEnv opens the journal named by cfg (if any) and starts a pipeline.
func DefaultEnv(deps pipeline.Deps) EnvFactory {
	return func(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Env, error) {
		var store *storage.Store
		if cfg.Paths.JournalPath != "" {
			path, err := config.ExpandUser(cfg.Paths.JournalPath)
			if err != nil {
				return nil, err
			}
			if store, err = storage.New(path); err != nil {
				return nil, fmt.Errorf("open journal: %w", err)
			}
		}
		pl := pipeline.New(ctx, log, store, cfg, deps)
		env := &Env{
			Pipeline: pl,
			Close: func() {
				pl.Stop()
				store.Close()
			},
		}
		if store != nil {
			env.Journal = store
		}
		return env, nil
	}
}

// Root carries state shared by all commands.
type Root struct {
	cfg        *config.Config
	log        *slog.Logger
	types      *fsutil.MediaTypes
	envFactory EnvFactory
	watchFn    watcherFactory
	setupLog   func(cfg *config.Config) (*slog.Logger, error)
	out        io.Writer

	env     *Env
	verbose bool
	journal string
}

func newRoot(cfg *config.Config, log *slog.Logger, factory EnvFactory) *Root {
	return &Root{
		cfg:        cfg,
		log:        log,
		types:      fsutil.DefaultMediaTypes(),
		envFactory: factory,
		watchFn:    defaultWatcher,
		setupLog:   logging.Setup,
		out:        os.Stdout,
	}
}

// prepare applies global flags and builds the Env.
func (r *Root) prepare(ctx context.Context) error {
	if r.verbose {
		r.cfg.Logging.Level = "debug"
	}
	if r.journal != "" {
		r.cfg.Paths.JournalPath = r.journal
	}
	if r.setupLog != nil {
		log, err := r.setupLog(r.cfg)
		if err != nil {
			return err
		}
		r.log = log
	}
	env, err := r.envFactory(ctx, r.cfg, r.log)
	if err != nil {
		return err
	}
	r.env = env
	return nil
}

func (r *Root) close() {
	if r.env != nil && r.env.Close != nil {
		r.env.Close()
	}
	r.env = nil
}

func (r *Root) run(ctx context.Context, job pipeline.Job) (pipeline.Result, error) {
	r.log.Debug("job queued", "type", job.Type, "id", job.ID, "directory", job.Dir)
	return r.env.Pipeline.RunAndWait(ctx, job)
}

// workdir resolves the directory flag; empty means the current directory.
func (r *Root) workdir(dir string) (string, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		r.log.Info("--directory not given, using current directory", "workdir", wd)
		return wd, nil
	}
	return filepath.Abs(dir)
}

func newID() string {
	return storage.NewRunID()
}
