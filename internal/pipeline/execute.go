package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"photorename/internal/catalog"
	"photorename/internal/fsutil"
	"photorename/internal/storage"
)

// Summary counts what a batch did.
type Summary struct {
	Planned    int
	Renamed    int
	Unchanged  int
	Collisions int
	Failed     int
	DryRun     bool
}

// Meta renders the summary for results and the journal.
func (s Summary) Meta() map[string]any {
	return map[string]any{
		"planned":    s.Planned,
		"renamed":    s.Renamed,
		"unchanged":  s.Unchanged,
		"collisions": s.Collisions,
		"failed":     s.Failed,
		"dry_run":    s.DryRun,
	}
}

// Executor applies a catalog to the filesystem.
type Executor struct {
	// DryRun only logs what would happen.
	DryRun   bool
	Resolver catalog.Resolver
	Log      *slog.Logger
	// RunID and Store tie outcomes to a journal run; Store may be nil.
	RunID string
	Store *storage.Store

	rename func(oldpath, newpath string) error
	exists func(path string) bool
}

// Execute walks cat in order. A file that fails is logged and the batch
// moves on; only cancellation stops it early.
func (x *Executor) Execute(ctx context.Context, cat *catalog.Catalog) (Summary, error) {
	rename, exists := x.rename, x.exists
	if rename == nil {
		rename = os.Rename
	}
	if exists == nil {
		exists = fsutil.Exists
	}

	sum := Summary{Planned: cat.Len(), DryRun: x.DryRun}
	for e := range cat.Get() {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if e.Collision {
			x.collision(e)
			sum.Collisions++
			continue
		}
		if x.DryRun {
			if e.Identity() {
				sum.Unchanged++
				continue
			}
			x.Log.Info(fmt.Sprintf("DRY RUN: %s ==> %s", e.Source, e.DestinationPath()))
			x.record(e, storage.RenameDryRun, nil)
			continue
		}

		// files may have appeared since planning
		err := x.Resolver.ResolveEntry(e, func(name string) bool {
			return exists(filepath.Join(e.Dir(), name))
		})
		if err != nil {
			x.Log.Error("cannot find a free name", "file", e.SourceName(), "error", err)
			x.record(e, storage.RenameFailed, err)
			sum.Failed++
			continue
		}
		if e.Collision {
			x.collision(e)
			sum.Collisions++
			continue
		}
		if e.Identity() {
			sum.Unchanged++
			continue
		}

		dst := e.DestinationPath()
		if err := rename(e.Source, dst); err != nil {
			x.Log.Error("rename failed", "file", e.Source, "error", err)
			x.record(e, storage.RenameFailed, err)
			sum.Failed++
			continue
		}
		x.Log.Info(fmt.Sprintf("%s ==> %s", e.Source, dst))
		x.record(e, storage.RenameDone, nil)
		sum.Renamed++

		if _, err := fsutil.StripExecute(dst); err != nil {
			x.Log.Warn("clearing execute bits failed", "file", dst, "error", err)
		}
	}
	return sum, nil
}

func (x *Executor) collision(e *catalog.Entry) {
	x.Log.Warn("destination exists, not renaming", "file", e.SourceName(), "destination", e.Destination)
	x.record(e, storage.RenameCollision, nil)
}

func (x *Executor) record(e *catalog.Entry, outcome string, err error) {
	if x.Store == nil {
		return
	}
	rec := storage.RenameRecord{
		RunID:       x.RunID,
		Source:      e.Source,
		Destination: e.Destination,
		Outcome:     outcome,
		Error:       errString(err),
	}
	if werr := x.Store.RecordRename(rec); werr != nil {
		x.Log.Warn("journal write failed", "file", e.Source, "error", werr)
	}
}
