package retime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/barasher/go-exiftool"

	"photorename/internal/fsutil"
)

// xmpLayout carries the zone offset, as XMP dates do.
const xmpLayout = "2006:01:02 15:04:05-07:00"

// ExiftoolWriter writes capture times with a long-running exiftool process.
type ExiftoolWriter struct {
	log *slog.Logger
	mu  sync.Mutex
	et  *exiftool.Exiftool
}

// NewExiftoolWriter returns a writer that starts exiftool on first use.
func NewExiftoolWriter(log *slog.Logger) *ExiftoolWriter {
	return &ExiftoolWriter{log: log}
}

func (w *ExiftoolWriter) ensure() (*exiftool.Exiftool, error) {
	if w.et != nil {
		return w.et, nil
	}
	et, err := exiftool.NewExiftool()
	if err != nil {
		return nil, fmt.Errorf("start exiftool: %w", err)
	}
	w.et = et
	return et, nil
}

// Close stops the exiftool process if one was started.
func (w *ExiftoolWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.et == nil {
		return nil
	}
	err := w.et.Close()
	w.et = nil
	return err
}

// DatetimeFields returns the exiftool tags written for mt. PNG files keep
// their capture time in XMP; everything else gets EXIF and XMP.
func DatetimeFields(mt fsutil.MediaType, t time.Time) map[string]string {
	exif := t.Format(ExifLayout)
	xmp := t.Format(xmpLayout)
	fields := map[string]string{
		"XMP-xmp:CreateDate":   xmp,
		"XMP-xmp:ModifyDate":   xmp,
		"XMP-xmp:MetadataDate": xmp,
	}
	if mt != fsutil.MediaPNG {
		fields["EXIF:DateTimeOriginal"] = exif
		fields["EXIF:CreateDate"] = exif
		fields["EXIF:ModifyDate"] = exif
	}
	return fields
}

// WriteDatetime implements Writer.
func (w *ExiftoolWriter) WriteDatetime(ctx context.Context, path string, mt fsutil.MediaType, t time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	et, err := w.ensure()
	if err != nil {
		return err
	}

	fm := exiftool.EmptyFileMetadata()
	fm.File = path
	for k, v := range DatetimeFields(mt, t) {
		fm.SetString(k, v)
	}

	batch := []exiftool.FileMetadata{fm}
	et.WriteMetadata(batch)
	if batch[0].Err != nil {
		return fmt.Errorf("exiftool write %s: %w", path, batch[0].Err)
	}
	w.log.Debug("datetime written", "file", path, "time", t.Format(ExifLayout))
	return nil
}
