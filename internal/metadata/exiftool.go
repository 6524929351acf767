package metadata

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/barasher/go-exiftool"

	"photorename/internal/fsutil"
)

// exiftool names flattened without group prefixes; these are the ones the
// rest of the program asks for by their exiv2 name.
var exiftoolExifNames = map[string]string{
	"ModifyDate":       TagImageDateTime,
	"DateTimeOriginal": TagPhotoDateTimeOrg,
	"CreateDate":       TagPhotoDigitized,
}

var exiftoolXMPNames = map[string]string{
	"CreateDate":   TagXMPCreateDate,
	"ModifyDate":   TagXMPModifyDate,
	"MetadataDate": TagXMPMetadataDate,
}

// file-level fields exiftool always reports; they are not image metadata
var exiftoolFileFields = map[string]bool{
	"SourceFile": true, "ExifToolVersion": true, "FileName": true, "Directory": true,
	"FileSize": true, "FileModifyDate": true, "FileAccessDate": true,
	"FileInodeChangeDate": true, "FilePermissions": true, "FileType": true,
	"FileTypeExtension": true, "MIMEType": true,
}

// ExiftoolReader delegates to a long-running exiftool process, started on
// first use.
type ExiftoolReader struct {
	log *slog.Logger
	mu  sync.Mutex
	et  *exiftool.Exiftool
}

// NewExiftoolReader returns a reader backed by the exiftool binary.
func NewExiftoolReader(log *slog.Logger) *ExiftoolReader {
	return &ExiftoolReader{log: log}
}

func (r *ExiftoolReader) ensure() (*exiftool.Exiftool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.et != nil {
		return r.et, nil
	}
	et, err := exiftool.NewExiftool(exiftool.NoPrintConversion())
	if err != nil {
		return nil, fmt.Errorf("start exiftool: %w", err)
	}
	r.et = et
	return et, nil
}

// Close stops the exiftool process if one was started.
func (r *ExiftoolReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.et == nil {
		return nil
	}
	err := r.et.Close()
	r.et = nil
	return err
}

// Read implements Reader.
func (r *ExiftoolReader) Read(ctx context.Context, path string, mt fsutil.MediaType) (Map, error) {
	if err := ctx.Err(); err != nil {
		return Map{}, err
	}
	et, err := r.ensure()
	if err != nil {
		return Map{}, err
	}
	infos := et.ExtractMetadata(path)
	if len(infos) == 0 {
		return Map{}, ErrNoMetadata
	}
	if infos[0].Err != nil {
		return Map{}, fmt.Errorf("exiftool %s: %w", path, infos[0].Err)
	}
	tags := translateExiftool(infos[0].Fields, mt)
	if len(tags) == 0 {
		return Map{}, ErrNoMetadata
	}
	r.log.Debug("exiftool metadata read", "path", path, "tags", len(tags))
	return NewMap(tags), nil
}

func translateExiftool(fields map[string]interface{}, mt fsutil.MediaType) map[string]string {
	names := exiftoolExifNames
	if mt == fsutil.MediaPNG {
		names = exiftoolXMPNames
	}
	tags := map[string]string{}
	for k, v := range fields {
		if exiftoolFileFields[k] {
			continue
		}
		val := fmt.Sprint(v)
		if mapped, ok := names[k]; ok {
			tags[mapped] = val
			continue
		}
		tags[k] = val
	}
	return tags
}
