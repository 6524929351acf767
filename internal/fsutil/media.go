package fsutil

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// MediaType classifies an image file. It decides which metadata tag names it
// and which extension a renamed file receives.
type MediaType int

const (
	MediaUnknown MediaType = iota
	MediaRAW
	MediaJPEG
	MediaPNG
	MediaTIFF
)

func (mt MediaType) String() string {
	switch mt {
	case MediaRAW:
		return "raw"
	case MediaJPEG:
		return "jpeg"
	case MediaPNG:
		return "png"
	case MediaTIFF:
		return "tiff"
	default:
		return "unknown"
	}
}

// MediaSpec describes one media type: the extension used for renamed files and
// every extension recognized as that type.
type MediaSpec struct {
	Type       MediaType
	Preferred  string
	Extensions []string
}

// MediaTypes is an immutable extension table. Build it once with
// NewMediaTypes and pass it to whatever needs to classify files.
type MediaTypes struct {
	preferred map[MediaType]string
	byExt     map[string]MediaType
}

// DefaultMediaSpecs is the built-in table.
func DefaultMediaSpecs() []MediaSpec {
	return []MediaSpec{
		{Type: MediaRAW, Preferred: "arw", Extensions: []string{"arw", "dng", "nef", "cr2", "cr3", "rw2", "orf", "pef", "raf", "srw"}},
		{Type: MediaJPEG, Preferred: "jpg", Extensions: []string{"jpg", "jpeg"}},
		{Type: MediaPNG, Preferred: "png", Extensions: []string{"png"}},
		{Type: MediaTIFF, Preferred: "tif", Extensions: []string{"tif", "tiff"}},
	}
}

// DefaultMediaTypes returns the table built from DefaultMediaSpecs.
func DefaultMediaTypes() *MediaTypes {
	mt, err := NewMediaTypes(DefaultMediaSpecs())
	if err != nil {
		panic(err)
	}
	return mt
}

// NewMediaTypes validates specs and builds a lookup table. An extension may
// belong to one media type only.
func NewMediaTypes(specs []MediaSpec) (*MediaTypes, error) {
	mt := &MediaTypes{
		preferred: make(map[MediaType]string, len(specs)),
		byExt:     make(map[string]MediaType),
	}
	for _, spec := range specs {
		if spec.Type == MediaUnknown {
			return nil, fmt.Errorf("media spec with unknown type")
		}
		if spec.Preferred == "" {
			return nil, fmt.Errorf("media type %s has no preferred extension", spec.Type)
		}
		if _, dup := mt.preferred[spec.Type]; dup {
			return nil, fmt.Errorf("media type %s declared twice", spec.Type)
		}
		mt.preferred[spec.Type] = strings.ToLower(spec.Preferred)
		for _, ext := range spec.Extensions {
			ext = normalizeExt(ext)
			if owner, taken := mt.byExt[ext]; taken {
				return nil, fmt.Errorf("extension %q maps to both %s and %s", ext, owner, spec.Type)
			}
			mt.byExt[ext] = spec.Type
		}
	}
	return mt, nil
}

// Classify returns the media type of name based on its extension.
func (mt *MediaTypes) Classify(name string) (MediaType, bool) {
	t, ok := mt.byExt[normalizeExt(filepath.Ext(name))]
	return t, ok
}

// Preferred returns the extension (without dot) used for renamed files.
func (mt *MediaTypes) Preferred(t MediaType) string {
	return mt.preferred[t]
}

// Extensions lists every recognized extension, sorted.
func (mt *MediaTypes) Extensions() []string {
	exts := make([]string, 0, len(mt.byExt))
	for ext := range mt.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
