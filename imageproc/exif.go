package imageproc

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"github.com/sndcds/attachments/manipulations"
)

type exifWalker struct {
	m map[string]string
}

func (w *exifWalker) Walk(name exif.FieldName, tag *tiff.Tag) error {
	w.m[string(name)] = tag.String()
	return nil
}

// Exif returns every EXIF field of src as strings. Content without EXIF
// data yields an empty map.
func Exif(src []byte) map[string]string {
	fields := make(map[string]string)
	x, err := exif.Decode(bytes.NewReader(src))
	if err != nil {
		return fields
	}
	_ = x.Walk(&exifWalker{m: fields})
	return fields
}

// exifOrientation returns the EXIF orientation tag, 1 when absent.
func exifOrientation(src []byte) int {
	x, err := exif.Decode(bytes.NewReader(src))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return v
}

// orient rotates img counter-clockwise by the given degrees, or according
// to the EXIF orientation of src for "auto".
func orient(img image.Image, orientation string, src []byte) image.Image {
	switch orientation {
	case manipulations.OrientationAuto:
		return applyExifOrientation(img, exifOrientation(src))
	case manipulations.Orientation90:
		return imaging.Rotate90(img)
	case manipulations.Orientation180:
		return imaging.Rotate180(img)
	case manipulations.Orientation270:
		return imaging.Rotate270(img)
	default:
		return img
	}
}

func applyExifOrientation(img image.Image, o int) image.Image {
	switch o {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
