package imageproc

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"

	"github.com/chai2010/webp"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/sndcds/attachments/manipulations"
)

// encode writes img in format. Format names are those of the manipulations
// package plus the decoder names reported by image.Decode.
func encode(img image.Image, format string, quality int) ([]byte, error) {
	var buf bytes.Buffer
	var err error

	switch format {
	case manipulations.FormatJpg, manipulations.FormatPjpg, "jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality})
	case manipulations.FormatPng:
		err = png.Encode(&buf, img)
	case manipulations.FormatGif:
		err = gif.Encode(&buf, img, nil)
	case manipulations.FormatWebp:
		err = webp.Encode(&buf, img, &webp.Options{Quality: float32(quality)})
	case manipulations.FormatTiff:
		err = tiff.Encode(&buf, img, &tiff.Options{Compression: tiff.Deflate})
	case "bmp":
		err = bmp.Encode(&buf, img)
	default:
		return nil, fmt.Errorf("%w: unsupported output format %q", ErrTransform, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s: %v", ErrTransform, format, err)
	}
	return buf.Bytes(), nil
}
