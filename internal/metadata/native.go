package metadata

import (
	"bytes"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/dsoprea/go-exif/v3"
	jpegstructure "github.com/dsoprea/go-jpeg-image-structure"
	pngstructure "github.com/dsoprea/go-png-image-structure"
	tiffstructure "github.com/dsoprea/go-tiff-image-structure"
	riimage "github.com/dsoprea/go-utility/image"

	"photorename/internal/fsutil"
)

type mediaParser interface {
	Parse(rs io.ReadSeeker, size int) (riimage.MediaContext, error)
}

// ifdGroups maps go-exif IFD paths onto exiv2 tag groups.
var ifdGroups = map[string]string{
	"IFD":          "Exif.Image",
	"IFD/Exif":     "Exif.Photo",
	"IFD/GPSInfo":  "Exif.GPSInfo",
	"IFD/Exif/Iop": "Exif.Iop",
	"IFD1":         "Exif.Thumbnail",
}

// NativeReader reads metadata in-process: go-exif for JPEG, TIFF and PNG eXIf
// chunks, goexif for TIFF-container RAW files, and the PNG iTXt XMP packet.
type NativeReader struct {
	log *slog.Logger
}

// NewNativeReader returns a reader that needs no external tools.
func NewNativeReader(log *slog.Logger) *NativeReader {
	return &NativeReader{log: log}
}

// Close is a no-op.
func (r *NativeReader) Close() error { return nil }

// Read implements Reader.
func (r *NativeReader) Read(ctx context.Context, path string, mt fsutil.MediaType) (Map, error) {
	if err := ctx.Err(); err != nil {
		return Map{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return Map{}, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return Map{}, err
	}

	tags := map[string]string{}
	switch mt {
	case fsutil.MediaRAW:
		if err := readGoexif(f, tags); err != nil {
			r.log.Debug("goexif decode failed", "path", path, "error", err)
		}
	case fsutil.MediaPNG:
		res, err := pngstructure.NewPngMediaParser().Parse(f, int(st.Size()))
		if err != nil {
			return Map{}, fmt.Errorf("parse png %s: %w", path, err)
		}
		if cs, ok := res.(*pngstructure.ChunkSlice); ok {
			for _, c := range cs.Chunks() {
				if c.Type != "iTXt" {
					continue
				}
				if packet, ok := xmpFromITXt(c.Data); ok {
					for k, v := range ParseXMP(packet) {
						tags[k] = v
					}
				}
			}
		}
		if _, raw, err := res.Exif(); err == nil && len(raw) > 0 {
			r.flatten(raw, tags, path)
		}
	default:
		raw := r.locateExif(f, st.Size(), mt, path)
		if len(raw) > 0 {
			r.flatten(raw, tags, path)
		}
	}

	if len(tags) == 0 {
		return Map{}, ErrNoMetadata
	}
	return NewMap(tags), nil
}

func (r *NativeReader) locateExif(rs io.ReadSeeker, size int64, mt fsutil.MediaType, path string) []byte {
	var parser mediaParser
	switch mt {
	case fsutil.MediaJPEG:
		parser = jpegstructure.NewJpegMediaParser()
	case fsutil.MediaTIFF:
		parser = tiffstructure.NewTiffMediaParser()
	}
	if parser != nil {
		if res, err := parser.Parse(rs, int(size)); err == nil {
			if _, raw, err := res.Exif(); err == nil && len(raw) > 0 {
				return raw
			}
		} else {
			r.log.Debug("structured parse failed, searching for exif", "path", path, "error", err)
		}
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil
	}
	raw, err := exif.SearchAndExtractExifWithReader(rs)
	if err != nil && !errors.Is(err, exif.ErrNoExif) {
		r.log.Debug("exif search failed", "path", path, "error", err)
	}
	return raw
}

func (r *NativeReader) flatten(raw []byte, tags map[string]string, path string) {
	entries, _, err := exif.GetFlatExifData(raw, nil)
	if err != nil {
		r.log.Debug("exif flatten failed", "path", path, "error", err)
		return
	}
	for _, e := range entries {
		if e.TagName == "" {
			continue
		}
		group, ok := ifdGroups[e.IfdPath]
		if !ok {
			continue
		}
		value := strings.TrimRight(strings.ReplaceAll(e.FormattedFirst, "\x00", ""), " ")
		if value == "" {
			continue
		}
		tags[group+"."+e.TagName] = value
	}
}

const xmpKeyword = "XML:com.adobe.xmp"

// xmpFromITXt returns the text of an iTXt chunk carrying XMP, inflating it
// when the chunk is compressed.
// Layout: keyword NUL flag method language NUL translated NUL text.
func xmpFromITXt(data []byte) (string, bool) {
	null := bytes.IndexByte(data, 0)
	if null < 0 || string(data[:null]) != xmpKeyword {
		return "", false
	}
	rest := data[null+1:]
	if len(rest) < 2 {
		return "", false
	}
	compressed, method := rest[0] == 1, rest[1]
	rest = rest[2:]
	for i := 0; i < 2; i++ {
		n := bytes.IndexByte(rest, 0)
		if n < 0 {
			return "", false
		}
		rest = rest[n+1:]
	}
	if !compressed {
		return string(rest), true
	}
	if method != 0 {
		return "", false
	}
	zr, err := zlib.NewReader(bytes.NewReader(rest))
	if err != nil {
		return "", false
	}
	defer zr.Close()
	text, err := io.ReadAll(zr)
	if err != nil {
		return "", false
	}
	return string(text), true
}
