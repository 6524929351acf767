package metadata

import (
	"io"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// goexif reports bare field names. Fields living in IFD0 are listed here;
// anything else belongs to the Exif sub-IFD.
var imageIFDFields = map[exif.FieldName]bool{
	exif.ImageWidth:       true,
	exif.ImageLength:      true,
	exif.Make:             true,
	exif.Model:            true,
	exif.Orientation:      true,
	exif.XResolution:      true,
	exif.YResolution:      true,
	exif.ResolutionUnit:   true,
	exif.Software:         true,
	exif.DateTime:         true,
	exif.Artist:           true,
	exif.Copyright:        true,
	exif.ImageDescription: true,
}

type tagWalker struct {
	tags map[string]string
}

func (w tagWalker) Walk(name exif.FieldName, tag *tiff.Tag) error {
	var val string
	if tag.Format() == tiff.StringVal {
		s, err := tag.StringVal()
		if err != nil {
			return nil
		}
		val = s
	} else {
		val = tag.String()
	}
	if val == "" {
		return nil
	}
	group := "Exif.Photo."
	if imageIFDFields[name] {
		group = "Exif.Image."
	}
	w.tags[group+string(name)] = val
	return nil
}

func readGoexif(r io.Reader, tags map[string]string) error {
	x, err := exif.Decode(r)
	if err != nil {
		return err
	}
	return x.Walk(tagWalker{tags: tags})
}
