package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"photorename/internal/catalog"
	"photorename/internal/config"
	"photorename/internal/copymeta"
	"photorename/internal/fsutil"
	"photorename/internal/mapfile"
	"photorename/internal/metadata"
	"photorename/internal/naming"
	"photorename/internal/retime"
	"photorename/internal/storage"
)

// ReaderFactory opens a metadata backend by name.
type ReaderFactory func(name string, log *slog.Logger) (metadata.Reader, error)

// WriterFactory opens a datetime writer.
type WriterFactory func(log *slog.Logger) (retime.Writer, error)

// CopierFactory opens a metadata copier.
type CopierFactory func(log *slog.Logger) (copymeta.Copier, error)

// Deps are the pluggable parts of the router. Zero fields get defaults.
type Deps struct {
	Types      *fsutil.MediaTypes
	OpenReader ReaderFactory
	OpenWriter WriterFactory
	OpenCopier CopierFactory
}

// router implements Processor and routes jobs to their concrete handlers.
type router struct {
	log        *slog.Logger
	store      *storage.Store
	cfg        *config.Config
	types      *fsutil.MediaTypes
	openReader ReaderFactory
	openWriter WriterFactory
	openCopier CopierFactory
	rename     func(oldpath, newpath string) error
}

func newRouter(logger *slog.Logger, store *storage.Store, cfg *config.Config, deps Deps) *router {
	if cfg == nil {
		cfg = config.Default()
	}
	r := &router{
		log:        logger,
		store:      store,
		cfg:        cfg,
		types:      deps.Types,
		openReader: deps.OpenReader,
		openWriter: deps.OpenWriter,
		openCopier: deps.OpenCopier,
	}
	if r.types == nil {
		r.types = fsutil.DefaultMediaTypes()
	}
	if r.openReader == nil {
		r.openReader = metadata.Open
	}
	if r.openWriter == nil {
		r.openWriter = func(log *slog.Logger) (retime.Writer, error) {
			return retime.NewExiftoolWriter(log), nil
		}
	}
	if r.openCopier == nil {
		r.openCopier = func(log *slog.Logger) (copymeta.Copier, error) {
			return copymeta.NewExiftoolCopier(log), nil
		}
	}
	return r
}

func (r *router) Process(ctx context.Context, job Job) Result {
	switch job.Type {
	case JobRename:
		return r.handleRename(ctx, job)
	case JobSetDatetime:
		return r.handleSetDatetime(ctx, job)
	case JobShiftDatetime:
		return r.handleShiftDatetime(ctx, job)
	case JobCopyMetadata:
		return r.handleCopyMetadata(ctx, job)
	default:
		return Result{Job: job, Error: fmt.Errorf("unknown job type: %s", job.Type)}
	}
}

func (r *router) handleRename(ctx context.Context, job Job) Result {
	simonSez, _ := job.Options["simonSez"].(bool)
	avoid, _ := job.Options["avoidCollisions"].(bool)
	strict, _ := job.Options["strict"].(bool)
	readerName, _ := job.Options["reader"].(string)
	if readerName == "" {
		readerName = r.cfg.Rename.Reader
	}
	delimiter, _ := job.Options["delimiter"].(string)
	if delimiter == "" {
		delimiter = r.cfg.Rename.Delimiter
	}
	maxAttempts, _ := job.Options["maxAttempts"].(int)
	if maxAttempts == 0 {
		maxAttempts = r.cfg.Rename.MaxAttempts
	}
	orderName, _ := job.Options["suffixOrder"].(string)
	if orderName == "" {
		orderName = r.cfg.Rename.SuffixOrder
	}
	order, err := catalog.ParseSuffixOrder(orderName)
	if err != nil {
		return Result{Job: job, Error: err}
	}

	if err := fsutil.CheckDirWritable(job.Dir); err != nil {
		return Result{Job: job, Error: err}
	}
	var m *mapfile.Map
	if job.MapFile != "" {
		if err := fsutil.CheckFileReadable(job.MapFile); err != nil {
			return Result{Job: job, Error: err}
		}
		if m, err = mapfile.ReadFile(job.MapFile, delimiter); err != nil {
			return Result{Job: job, Error: err}
		}
		avoid = false
	}

	resolver := catalog.Resolver{Avoid: avoid, MaxAttempts: maxAttempts}
	h := &Harvester{
		Types:    r.types,
		Deriver:  naming.NewDeriver(r.types, nil),
		Resolver: resolver,
		Order:    order,
		Strict:   strict,
		Log:      r.log,
	}

	var cat *catalog.Catalog
	if m != nil {
		cat, err = h.HarvestMap(ctx, job.Dir, m)
	} else {
		reader, rerr := r.openReader(readerName, r.log)
		if rerr != nil {
			return Result{Job: job, Error: rerr}
		}
		defer reader.Close()
		h.Reader = reader
		cat, err = h.Harvest(ctx, job.Dir)
	}
	if err != nil {
		return Result{Job: job, Error: err}
	}

	x := &Executor{
		DryRun:   !simonSez,
		Resolver: resolver,
		Log:      r.log,
		RunID:    job.ID,
		Store:    r.store,
		rename:   r.rename,
	}
	sum, err := x.Execute(ctx, cat)
	meta := sum.Meta()
	meta["run_id"] = job.ID
	return Result{Job: job, Error: err, Meta: meta}
}

func (r *router) handleSetDatetime(ctx context.Context, job Job) Result {
	start, _ := job.Options["datetime"].(string)
	interval, _ := job.Options["interval"].(int)
	if interval == 0 {
		interval = 1
	}
	t0, err := retime.ParseStart(start)
	if err != nil {
		return Result{Job: job, Error: err}
	}
	if err := fsutil.CheckDirWritable(job.Dir); err != nil {
		return Result{Job: job, Error: err}
	}
	files, err := fsutil.ListCandidates(job.Dir, r.types, r.log)
	if err != nil {
		return Result{Job: job, Error: err}
	}
	return r.applyRetime(ctx, job, nil, retime.Sequence(files, t0, time.Duration(interval)*time.Second), 0)
}

func (r *router) handleShiftDatetime(ctx context.Context, job Job) Result {
	delta, _ := job.Options["delta"].(int)
	readerName, _ := job.Options["reader"].(string)
	if readerName == "" {
		readerName = r.cfg.Rename.Reader
	}
	if err := fsutil.CheckDirWritable(job.Dir); err != nil {
		return Result{Job: job, Error: err}
	}
	files, err := fsutil.ListCandidates(job.Dir, r.types, r.log)
	if err != nil {
		return Result{Job: job, Error: err}
	}
	reader, err := r.openReader(readerName, r.log)
	if err != nil {
		return Result{Job: job, Error: err}
	}
	defer reader.Close()

	rt := &retime.Retimer{Reader: reader, Log: r.log}
	as, skipped, err := rt.Shift(ctx, files, time.Duration(delta)*time.Second)
	if err != nil {
		return Result{Job: job, Error: err}
	}
	return r.applyRetime(ctx, job, reader, as, skipped)
}

func (r *router) applyRetime(ctx context.Context, job Job, reader metadata.Reader, as []retime.Assignment, skipped int) Result {
	simonSez, _ := job.Options["simonSez"].(bool)
	rt := &retime.Retimer{Reader: reader, DryRun: !simonSez, Log: r.log}
	if simonSez {
		w, err := r.openWriter(r.log)
		if err != nil {
			return Result{Job: job, Error: err}
		}
		defer w.Close()
		rt.Writer = w
	}
	sum, err := rt.Apply(ctx, as)
	sum.Skipped = skipped
	meta := sum.Meta()
	meta["run_id"] = job.ID
	return Result{Job: job, Error: err, Meta: meta}
}

// handleCopyMetadata copies metadata onto the files of job.Dir. Sources come
// from the srcDir option, or from the map file's directory when the job
// carries one.
func (r *router) handleCopyMetadata(ctx context.Context, job Job) Result {
	simonSez, _ := job.Options["simonSez"].(bool)
	srcDir, _ := job.Options["srcDir"].(string)
	delimiter, _ := job.Options["delimiter"].(string)
	if delimiter == "" {
		delimiter = r.cfg.Rename.Delimiter
	}

	if err := fsutil.CheckDirWritable(job.Dir); err != nil {
		return Result{Job: job, Error: err}
	}
	var m *mapfile.Map
	if job.MapFile != "" {
		if err := fsutil.CheckFileReadable(job.MapFile); err != nil {
			return Result{Job: job, Error: err}
		}
		var err error
		if m, err = mapfile.ReadFile(job.MapFile, delimiter); err != nil {
			return Result{Job: job, Error: err}
		}
		srcDir = filepath.Dir(job.MapFile)
	}
	if info, err := os.Stat(srcDir); err != nil || !info.IsDir() {
		return Result{Job: job, Error: fmt.Errorf("source directory %s does not exist", srcDir)}
	}

	src, err := fsutil.ListCandidates(srcDir, r.types, r.log)
	if err != nil {
		return Result{Job: job, Error: err}
	}
	dst, err := fsutil.ListCandidates(job.Dir, r.types, r.log)
	if err != nil {
		return Result{Job: job, Error: err}
	}
	var (
		pairs     []copymeta.Pair
		unmatched int
	)
	if m != nil {
		pairs, unmatched = copymeta.MatchByMap(src, dst, m)
	} else {
		pairs, unmatched = copymeta.MatchByStem(src, dst)
	}
	r.log.Debug("metadata pairs", "pairs", len(pairs), "unmatched", unmatched)

	tr := &copymeta.Transfer{DryRun: !simonSez, Log: r.log}
	if simonSez {
		c, err := r.openCopier(r.log)
		if err != nil {
			return Result{Job: job, Error: err}
		}
		defer c.Close()
		tr.Copier = c
	}
	sum, err := tr.Apply(ctx, pairs)
	sum.Unmatched = unmatched
	meta := sum.Meta()
	meta["run_id"] = job.ID
	return Result{Job: job, Error: err, Meta: meta}
}
