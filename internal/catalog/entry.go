package catalog

import (
	"path/filepath"

	"photorename/internal/fsutil"
	"photorename/internal/metadata"
)

// Entry is one rename candidate.
type Entry struct {
	// Source is the fully qualified path of the file as found.
	Source   string
	Type     fsutil.MediaType
	Metadata metadata.Map
	// Destination is the target basename. It lives in the source directory.
	Destination string
	// Collision is set when Destination is taken and suffixing is disabled.
	// Flagged entries are reported and never renamed.
	Collision bool
	// Fixed marks destinations taken from a rename map; they are never suffixed.
	Fixed bool
}

// SourceName is the basename of Source.
func (e *Entry) SourceName() string { return filepath.Base(e.Source) }

// Dir is the directory holding the file.
func (e *Entry) Dir() string { return filepath.Dir(e.Source) }

// DestinationPath joins Dir and Destination.
func (e *Entry) DestinationPath() string { return filepath.Join(e.Dir(), e.Destination) }

// Identity reports whether the rename would be a no-op.
func (e *Entry) Identity() bool { return e.SourceName() == e.Destination }
