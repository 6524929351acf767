package copymeta

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/barasher/go-exiftool"
)

// copiedGroups are the family 0 groups carried over. File and Composite
// tags describe the file itself and are never copied.
var copiedGroups = []string{"EXIF:", "XMP:", "IPTC:"}

// ExiftoolCopier copies metadata with a long-running exiftool process.
type ExiftoolCopier struct {
	log *slog.Logger
	mu  sync.Mutex
	et  *exiftool.Exiftool
}

// NewExiftoolCopier returns a copier that starts exiftool on first use.
func NewExiftoolCopier(log *slog.Logger) *ExiftoolCopier {
	return &ExiftoolCopier{log: log}
}

func (c *ExiftoolCopier) ensure() (*exiftool.Exiftool, error) {
	if c.et != nil {
		return c.et, nil
	}
	et, err := exiftool.NewExiftool(exiftool.PrintGroupNames("0"))
	if err != nil {
		return nil, fmt.Errorf("start exiftool: %w", err)
	}
	c.et = et
	return et, nil
}

// Close stops the exiftool process if one was started.
func (c *ExiftoolCopier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.et == nil {
		return nil
	}
	err := c.et.Close()
	c.et = nil
	return err
}

// Copyable reports whether a grouped exiftool field is written to the
// destination.
func Copyable(key string, value any) bool {
	if s, ok := value.(string); ok && strings.HasPrefix(s, "(Binary data") {
		return false
	}
	for _, g := range copiedGroups {
		if strings.HasPrefix(key, g) {
			return true
		}
	}
	return false
}

// CopyMetadata implements Copier.
func (c *ExiftoolCopier) CopyMetadata(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	et, err := c.ensure()
	if err != nil {
		return err
	}

	read := et.ExtractMetadata(src)
	if len(read) != 1 {
		return fmt.Errorf("exiftool read %s: no result", src)
	}
	if read[0].Err != nil {
		return fmt.Errorf("exiftool read %s: %w", src, read[0].Err)
	}

	fm := exiftool.EmptyFileMetadata()
	fm.File = dst
	for k, v := range read[0].Fields {
		if !Copyable(k, v) {
			continue
		}
		switch v := v.(type) {
		case string:
			fm.SetString(k, v)
		case float64:
			fm.SetFloat(k, v)
		case []any:
			vals := make([]string, 0, len(v))
			for _, x := range v {
				vals = append(vals, fmt.Sprint(x))
			}
			fm.SetStrings(k, vals)
		default:
			fm.SetString(k, fmt.Sprint(v))
		}
	}
	if len(fm.Fields) == 0 {
		c.log.Debug("no metadata to copy", "src", src)
		return nil
	}

	batch := []exiftool.FileMetadata{fm}
	et.WriteMetadata(batch)
	if batch[0].Err != nil {
		return fmt.Errorf("exiftool write %s: %w", dst, batch[0].Err)
	}
	c.log.Debug("metadata copied", "src", src, "dst", dst, "fields", len(fm.Fields))
	return nil
}
