package metadata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"photorename/internal/fsutil"
)

// Common tag names, in exiv2 notation.
const (
	TagImageDateTime    = "Exif.Image.DateTime"
	TagPhotoDateTimeOrg = "Exif.Photo.DateTimeOriginal"
	TagPhotoDigitized   = "Exif.Photo.DateTimeDigitized"
	TagXMPCreateDate    = "Xmp.xmp.CreateDate"
	TagXMPModifyDate    = "Xmp.xmp.ModifyDate"
	TagXMPMetadataDate  = "Xmp.xmp.MetadataDate"
)

// ErrNoMetadata is returned by readers when a file carries no tags at all.
var ErrNoMetadata = errors.New("no metadata")

// Map is an immutable set of metadata tags read from one file.
type Map struct {
	tags map[string]string
}

// NewMap copies tags into a Map.
func NewMap(tags map[string]string) Map {
	cp := make(map[string]string, len(tags))
	for k, v := range tags {
		cp[k] = v
	}
	return Map{tags: cp}
}

// Get looks up a tag.
func (m Map) Get(tag string) (string, bool) {
	v, ok := m.tags[tag]
	return v, ok
}

// Len reports the number of tags.
func (m Map) Len() int { return len(m.tags) }

// Keys returns the tag names in sorted order.
func (m Map) Keys() []string {
	keys := make([]string, 0, len(m.tags))
	for k := range m.tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Reader extracts metadata from an image file.
type Reader interface {
	Read(ctx context.Context, path string, mt fsutil.MediaType) (Map, error)
	Close() error
}

// Reader backends selectable by name.
const (
	BackendNative   = "native"
	BackendExiftool = "exiftool"
	BackendMagick   = "magick"
)

// Open returns the pure-Go or exiftool backend. The ImageMagick backend lives
// in package magick and is wired by the binary.
func Open(name string, log *slog.Logger) (Reader, error) {
	switch name {
	case "", BackendNative:
		return NewNativeReader(log), nil
	case BackendExiftool:
		return NewExiftoolReader(log), nil
	}
	return nil, fmt.Errorf("unknown metadata reader %q", name)
}
