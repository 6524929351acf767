package cli

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"photorename/internal/config"
)

// Version is set at build time with -ldflags.
var Version = "dev"

func (r *Root) configShow() error {
	fmt.Fprintf(r.out, "Current configuration:\n")
	fmt.Fprintf(r.out, "Config file: %s\n", config.Path())
	fmt.Fprintf(r.out, "\nRename:\n")
	fmt.Fprintf(r.out, "  Reader: %s\n", r.cfg.Rename.Reader)
	fmt.Fprintf(r.out, "  Delimiter: %q\n", r.cfg.Rename.Delimiter)
	fmt.Fprintf(r.out, "  Max attempts: %d\n", r.cfg.Rename.MaxAttempts)
	fmt.Fprintf(r.out, "  Suffix order: %s\n", r.cfg.Rename.SuffixOrder)
	fmt.Fprintf(r.out, "  Strict: %t\n", r.cfg.Rename.Strict)
	fmt.Fprintf(r.out, "  Avoid collisions: %t\n", r.cfg.Rename.AvoidCollisions)
	fmt.Fprintf(r.out, "\nJournal: %s\n", orNone(r.cfg.Paths.JournalPath))
	fmt.Fprintf(r.out, "Watch debounce: %s\n", time.Duration(r.cfg.Watch.Debounce))
	fmt.Fprintf(r.out, "\nLogging:\n")
	fmt.Fprintf(r.out, "  Level: %s\n", r.cfg.Logging.Level)
	fmt.Fprintf(r.out, "  Format: %s\n", r.cfg.Logging.Format)
	if r.cfg.Logging.FileOutput {
		fmt.Fprintf(r.out, "  Log directory: %s\n", r.cfg.Logging.LogDir)
	}
	fmt.Fprintf(r.out, "\nRecognized extensions: %v\n", r.types.Extensions())
	return nil
}

func (r *Root) cmdVersion() error {
	fmt.Fprintf(r.out, "photorename %s\n", Version)
	fmt.Fprintf(r.out, "Built with Go %s\n", runtime.Version())
	return nil
}

var errNoJournal = errors.New("no journal configured; pass --journal or set paths.journal_path")

func (r *Root) showHistory(limit int) error {
	if r.env == nil || r.env.Journal == nil {
		return errNoJournal
	}
	runs, err := r.env.Journal.RecentRuns(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(r.out, "No runs recorded.")
		return nil
	}
	for _, run := range runs {
		mode := "live"
		if run.DryRun {
			mode = "dry-run"
		}
		fmt.Fprintf(r.out, "%s  %s  %-14s %-9s %-7s %s\n",
			run.CreatedAt.Local().Format("2006-01-02 15:04:05"), run.ID, run.JobType, run.Status, mode, run.Directory)
		if run.Error != "" {
			fmt.Fprintf(r.out, "    error: %s\n", run.Error)
		}
	}
	return nil
}

func (r *Root) showRun(runID string) error {
	if r.env == nil || r.env.Journal == nil {
		return errNoJournal
	}
	recs, err := r.env.Journal.RunRenames(runID)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Fprintf(r.out, "No files recorded for run %s.\n", runID)
		return nil
	}
	for _, rec := range recs {
		line := fmt.Sprintf("%-9s %s ==> %s", rec.Outcome, rec.Source, rec.Destination)
		if rec.Error != "" {
			line += "  (" + rec.Error + ")"
		}
		fmt.Fprintln(r.out, line)
	}
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
