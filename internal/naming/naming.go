// Package naming derives canonical destination filenames from capture-time
// metadata.
//
// A file whose timestamp tag is present and shaped like
// "YYYY:MM:DD HH:MM:SS" (any single separators) is named
// YYYYMMDD_HHMMSS.<preferred extension>. Anything else keeps its base name
// and gets a lower-cased extension, so running the deriver over its own output
// changes nothing.
package naming

import (
	"path/filepath"
	"regexp"
	"strings"

	"photorename/internal/fsutil"
	"photorename/internal/metadata"
)

var timestampPattern = regexp.MustCompile(`^(\d{4})\W(\d\d)\W(\d\d).(\d\d)\W(\d\d)\W(\d\d)$`)

// DefaultTimestampTags lists, per media type, the tags consulted for the
// capture time. The first tag present wins.
func DefaultTimestampTags() map[fsutil.MediaType][]string {
	exifTags := []string{
		metadata.TagPhotoDateTimeOrg,
		metadata.TagImageDateTime,
		"DateTimeOriginal",
		"DateTime",
	}
	return map[fsutil.MediaType][]string{
		fsutil.MediaRAW:  exifTags,
		fsutil.MediaJPEG: exifTags,
		fsutil.MediaTIFF: exifTags,
		fsutil.MediaPNG:  {metadata.TagXMPCreateDate},
	}
}

// Deriver computes destination basenames. It holds no mutable state.
type Deriver struct {
	types *fsutil.MediaTypes
	tags  map[fsutil.MediaType][]string
}

// NewDeriver builds a Deriver. A nil tags map selects DefaultTimestampTags.
func NewDeriver(types *fsutil.MediaTypes, tags map[fsutil.MediaType][]string) *Deriver {
	if tags == nil {
		tags = DefaultTimestampTags()
	}
	return &Deriver{types: types, tags: tags}
}

// Timestamp returns the raw timestamp string chosen for mt and whether it is
// well formed.
func (d *Deriver) Timestamp(mt fsutil.MediaType, md metadata.Map) (string, bool) {
	for _, tag := range d.tags[mt] {
		if v, ok := md.Get(tag); ok {
			v = strings.TrimSpace(v)
			return v, timestampPattern.MatchString(v)
		}
	}
	return "", false
}

// Derive returns the destination basename for source.
func (d *Deriver) Derive(source string, mt fsutil.MediaType, md metadata.Map) string {
	if ts, ok := d.Timestamp(mt, md); ok {
		if ext := d.types.Preferred(mt); ext != "" {
			return NormalizeTimestamp(ts) + "." + ext
		}
	}
	return Fallback(source)
}

// NormalizeTimestamp turns "2014:08:16 06:20:30" or "2014-08-16T06:20:30" into
// "20140816_062030". It returns "" when ts does not match the timestamp
// pattern.
func NormalizeTimestamp(ts string) string {
	m := timestampPattern.FindStringSubmatch(ts)
	if m == nil {
		return ""
	}
	return m[1] + m[2] + m[3] + "_" + m[4] + m[5] + m[6]
}

// Fallback keeps the base name of source, lower-cases its extension and maps
// "jpeg" to "jpg". Colons are dropped and spaces become underscores.
func Fallback(source string) string {
	base := filepath.Base(source)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "jpeg" {
		ext = "jpg"
	}
	name := stem
	if ext != "" {
		name += "." + ext
	}
	name = strings.ReplaceAll(name, ":", "")
	return strings.ReplaceAll(name, " ", "_")
}
