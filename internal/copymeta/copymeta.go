// Package copymeta copies image metadata from one set of files onto
// another, pairing files by name stem or through a prefix map.
package copymeta

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"photorename/internal/fsutil"
	"photorename/internal/mapfile"
)

// Copier transfers the metadata of src onto dst.
type Copier interface {
	CopyMetadata(ctx context.Context, src, dst string) error
	Close() error
}

// Pair is one source file whose metadata goes to one destination file.
type Pair struct {
	Source      fsutil.Candidate
	Destination fsutil.Candidate
}

// Summary counts what a copy batch did.
type Summary struct {
	Pairs     int
	Copied    int
	Failed    int
	Unmatched int
	DryRun    bool
}

// Meta renders the summary for results and the journal.
func (s Summary) Meta() map[string]any {
	return map[string]any{
		"pairs":     s.Pairs,
		"copied":    s.Copied,
		"failed":    s.Failed,
		"unmatched": s.Unmatched,
		"dry_run":   s.DryRun,
	}
}

func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func byStem(files []fsutil.Candidate) map[string][]fsutil.Candidate {
	out := make(map[string][]fsutil.Candidate, len(files))
	for _, f := range files {
		s := stem(f.Name)
		out[s] = append(out[s], f)
	}
	return out
}

// MatchByStem pairs every source with each destination of the same stem, so
// IMG_1.nef feeds both IMG_1.jpg and IMG_1.tif. A file is never paired with
// itself. The second return value counts sources that found no destination.
func MatchByStem(src, dst []fsutil.Candidate) ([]Pair, int) {
	return match(src, byStem(dst), func(name string) (string, bool) {
		return stem(name), true
	})
}

// MatchByMap pairs each source the map renames with the destinations whose
// stem is the mapped name.
func MatchByMap(src, dst []fsutil.Candidate, m *mapfile.Map) ([]Pair, int) {
	return match(src, byStem(dst), func(name string) (string, bool) {
		mapped, ok := m.Match(name)
		if !ok {
			return "", false
		}
		return stem(mapped), true
	})
}

func match(src []fsutil.Candidate, dst map[string][]fsutil.Candidate, key func(string) (string, bool)) ([]Pair, int) {
	var pairs []Pair
	unmatched := 0
	for _, s := range src {
		k, ok := key(s.Name)
		found := false
		if ok {
			for _, d := range dst[k] {
				if d.Path == s.Path {
					continue
				}
				pairs = append(pairs, Pair{Source: s, Destination: d})
				found = true
			}
		}
		if !found {
			unmatched++
		}
	}
	return pairs, unmatched
}

// Transfer applies pairs through a Copier.
type Transfer struct {
	Copier Copier
	DryRun bool
	Log    *slog.Logger
}

// Apply copies every pair, or only logs it on a dry run. A failing pair does
// not stop the batch.
func (t *Transfer) Apply(ctx context.Context, pairs []Pair) (Summary, error) {
	sum := Summary{Pairs: len(pairs), DryRun: t.DryRun}
	for _, p := range pairs {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		msg := fmt.Sprintf("Copying metadata from %s ==> %s", p.Source.Name, p.Destination.Name)
		if t.DryRun {
			t.Log.Info("DRY RUN: " + msg)
			continue
		}
		if err := t.Copier.CopyMetadata(ctx, p.Source.Path, p.Destination.Path); err != nil {
			t.Log.Error("copy metadata failed", "src", p.Source.Path, "dst", p.Destination.Path, "error", err)
			sum.Failed++
			continue
		}
		t.Log.Info(msg)
		sum.Copied++
	}
	return sum, nil
}
