// Package magick reads image metadata through ImageMagick's MagickWand API.
// It lives apart from package metadata so that the packages and tests that
// never read through ImageMagick stay free of cgo.
package magick

import (
	"context"
	"log/slog"
	"strings"

	"gopkg.in/gographics/imagick.v3/imagick"

	"photorename/internal/fsutil"
	"photorename/internal/metadata"
)

// ImageMagick spells EXIF properties as exif:<Name> with no IFD information.
var imageIFD = map[string]bool{
	"DateTime": true, "Make": true, "Model": true, "Orientation": true,
	"Software": true, "Artist": true, "Copyright": true, "ImageDescription": true,
}

// Reader pings files with MagickWand; pixel data is never decoded.
type Reader struct {
	log *slog.Logger
}

// New initializes the ImageMagick environment. Call Close when done.
func New(log *slog.Logger) *Reader {
	imagick.Initialize()
	return &Reader{log: log}
}

// Close tears down the ImageMagick environment.
func (r *Reader) Close() error {
	imagick.Terminate()
	return nil
}

// Read implements metadata.Reader.
func (r *Reader) Read(ctx context.Context, path string, mt fsutil.MediaType) (metadata.Map, error) {
	if err := ctx.Err(); err != nil {
		return metadata.Map{}, err
	}
	mw := imagick.NewMagickWand()
	defer mw.Destroy()

	if err := mw.PingImage(path); err != nil {
		return metadata.Map{}, err
	}

	tags := map[string]string{}
	for _, prop := range mw.GetImageProperties("exif:*") {
		name := strings.TrimPrefix(prop, "exif:")
		val := strings.TrimSpace(mw.GetImageProperty(prop))
		if val == "" {
			continue
		}
		if imageIFD[name] {
			tags["Exif.Image."+name] = val
		} else {
			tags["Exif.Photo."+name] = val
		}
	}
	if packet := mw.GetImageProfile("xmp"); packet != "" {
		for k, v := range metadata.ParseXMP(packet) {
			tags[k] = v
		}
	}
	if len(tags) == 0 {
		return metadata.Map{}, metadata.ErrNoMetadata
	}
	r.log.Debug("imagemagick metadata read", "path", path, "type", mt.String(), "tags", len(tags))
	return metadata.NewMap(tags), nil
}
