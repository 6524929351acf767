package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"photorename/internal/catalog"
	"photorename/internal/fsutil"
	"photorename/internal/mapfile"
	"photorename/internal/metadata"
	"photorename/internal/naming"
)

// Harvester builds the rename catalog for one directory.
type Harvester struct {
	Types    *fsutil.MediaTypes
	Reader   metadata.Reader
	Deriver  *naming.Deriver
	Resolver catalog.Resolver
	Order    catalog.SuffixOrder
	// Strict skips files that carry no metadata instead of keeping their
	// names.
	Strict bool
	Log    *slog.Logger
}

// Harvest plans a rename for every image in dir from its metadata. Files
// whose metadata cannot be read or whose name cannot be made unique are
// logged and left out.
func (h *Harvester) Harvest(ctx context.Context, dir string) (*catalog.Catalog, error) {
	cands, err := fsutil.ListCandidates(dir, h.Types, h.Log)
	if err != nil {
		return nil, err
	}
	cat := newHeldCatalog(h.Order, cands)
	for _, c := range cands {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		md, err := h.Reader.Read(ctx, c.Path, c.Type)
		switch {
		case errors.Is(err, metadata.ErrNoMetadata) && !h.Strict:
			h.Log.Debug("no metadata, keeping name", "file", c.Name)
			md = metadata.Map{}
		case errors.Is(err, metadata.ErrNoMetadata):
			h.Log.Warn("no metadata, skipping", "file", c.Name)
			continue
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, err
		case err != nil:
			h.Log.Warn("metadata read failed, skipping", "file", c.Name, "error", err)
			continue
		}

		e := &catalog.Entry{
			Source:      c.Path,
			Type:        c.Type,
			Metadata:    md,
			Destination: h.Deriver.Derive(c.Name, c.Type, md),
		}
		if err := cat.Place(e, h.Resolver); err != nil {
			h.Log.Warn("cannot find a free name, skipping", "file", c.Name, "error", err)
			continue
		}
		h.Log.Debug("planned", "file", c.Name, "destination", e.Destination, "collision", e.Collision)
	}
	return cat, nil
}

// HarvestMap plans renames for the images in dir named by m. Metadata is not
// read and destinations are never suffixed.
func (h *Harvester) HarvestMap(ctx context.Context, dir string, m *mapfile.Map) (*catalog.Catalog, error) {
	cands, err := fsutil.ListCandidates(dir, h.Types, h.Log)
	if err != nil {
		return nil, err
	}
	cat := newHeldCatalog(h.Order, cands)
	for _, c := range cands {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dest, ok := m.Match(c.Name)
		if !ok {
			continue
		}
		e := &catalog.Entry{
			Source:      c.Path,
			Type:        c.Type,
			Destination: dest,
			Fixed:       true,
		}
		if err := cat.Place(e, h.Resolver); err != nil {
			h.Log.Warn("cannot place mapped file, skipping", "file", c.Name, "error", err)
			continue
		}
	}
	return cat, nil
}

// newHeldCatalog returns a catalog in which the current names of all listed
// files are taken, so a file that already has its final name keeps it.
func newHeldCatalog(order catalog.SuffixOrder, cands []fsutil.Candidate) *catalog.Catalog {
	cat := catalog.New(order)
	for _, c := range cands {
		cat.Hold(c.Name)
	}
	return cat
}
