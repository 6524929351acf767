// Package retime rewrites capture timestamps: either a fixed sequence
// (start, start+interval, ...) across a directory, or a constant shift of each
// file's existing time.
package retime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"photorename/internal/fsutil"
	"photorename/internal/metadata"
	"photorename/internal/naming"
)

// InputLayout is how users spell a datetime on the command line.
const InputLayout = "2006-01-02 15:04:05"

// ExifLayout is the EXIF datetime format.
const ExifLayout = "2006:01:02 15:04:05"

// Writer stores a capture time in an image.
type Writer interface {
	WriteDatetime(ctx context.Context, path string, mt fsutil.MediaType, t time.Time) error
	Close() error
}

// Assignment is the time one file will receive.
type Assignment struct {
	File fsutil.Candidate
	Time time.Time
}

// Summary counts what a retime batch did.
type Summary struct {
	Files   int
	Written int
	Skipped int
	Failed  int
	DryRun  bool
}

// Meta renders the summary for results and the journal.
func (s Summary) Meta() map[string]any {
	return map[string]any{
		"files":   s.Files,
		"written": s.Written,
		"skipped": s.Skipped,
		"failed":  s.Failed,
		"dry_run": s.DryRun,
	}
}

// ParseStart parses a YYYY-MM-DD HH:MM:SS start time.
func ParseStart(s string) (time.Time, error) {
	t, err := time.ParseInLocation(InputLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid datetime %q, use YYYY-MM-DD HH:MM:SS", s)
	}
	return t, nil
}

// Sequence assigns start, start+interval, start+2*interval, ... to files in
// the order given.
func Sequence(files []fsutil.Candidate, start time.Time, interval time.Duration) []Assignment {
	out := make([]Assignment, len(files))
	for i, f := range files {
		out[i] = Assignment{File: f, Time: start.Add(time.Duration(i) * interval)}
	}
	return out
}

// originalTags lists the capture time sources, most trusted first.
var originalTags = []string{
	metadata.TagPhotoDateTimeOrg,
	metadata.TagImageDateTime,
	metadata.TagXMPCreateDate,
}

// ErrNoTimestamp is returned when a file has no usable capture time.
var ErrNoTimestamp = errors.New("no usable capture time")

// Original returns the capture time recorded in md.
func Original(md metadata.Map) (time.Time, string, error) {
	for _, tag := range originalTags {
		v, ok := md.Get(tag)
		if !ok {
			continue
		}
		norm := naming.NormalizeTimestamp(v)
		if norm == "" {
			continue
		}
		t, err := time.ParseInLocation("20060102_150405", norm, time.Local)
		if err != nil {
			continue
		}
		return t, tag, nil
	}
	return time.Time{}, "", ErrNoTimestamp
}

// Retimer applies assignments through a Writer.
type Retimer struct {
	Reader metadata.Reader
	Writer Writer
	DryRun bool
	Log    *slog.Logger
}

// Shift plans each file's current capture time plus delta. Files without a
// usable time are logged and left out.
func (r *Retimer) Shift(ctx context.Context, files []fsutil.Candidate, delta time.Duration) ([]Assignment, int, error) {
	var out []Assignment
	skipped := 0
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, skipped, err
		}
		md, err := r.Reader.Read(ctx, f.Path, f.Type)
		if err != nil && !errors.Is(err, metadata.ErrNoMetadata) {
			r.Log.Warn("metadata read failed, skipping", "file", f.Name, "error", err)
			skipped++
			continue
		}
		orig, tag, err := Original(md)
		if err != nil {
			r.Log.Warn("no capture time, skipping", "file", f.Name)
			skipped++
			continue
		}
		r.Log.Debug("capture time read", "file", f.Name, "tag", tag, "time", orig.Format(ExifLayout))
		out = append(out, Assignment{File: f, Time: orig.Add(delta)})
	}
	return out, skipped, nil
}

// Apply writes every assignment, or only logs it on a dry run. A failing
// file does not stop the batch.
func (r *Retimer) Apply(ctx context.Context, as []Assignment) (Summary, error) {
	sum := Summary{Files: len(as), DryRun: r.DryRun}
	for _, a := range as {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		msg := fmt.Sprintf("Set datetime: %s : %s", a.File.Name, a.Time.Format(ExifLayout))
		if r.DryRun {
			r.Log.Info("DRY RUN: " + msg)
			continue
		}
		if err := r.Writer.WriteDatetime(ctx, a.File.Path, a.File.Type, a.Time); err != nil {
			r.Log.Error("write datetime failed", "file", a.File.Name, "error", err)
			sum.Failed++
			continue
		}
		r.Log.Info(msg)
		sum.Written++
	}
	return sum, nil
}
