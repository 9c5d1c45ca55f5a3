package imageproc

import (
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/sndcds/attachments/manipulations"
)

func adjust(img image.Image, params manipulations.Params) image.Image {
	if v, ok := params.Int(manipulations.KeyBrightness); ok && v != 0 {
		img = imaging.AdjustBrightness(img, float64(clampRange(v, -100, 100)))
	}
	if v, ok := params.Int(manipulations.KeyContrast); ok && v != 0 {
		img = imaging.AdjustContrast(img, float64(clampRange(v, -100, 100)))
	}
	if v, ok := params.Float(manipulations.KeyGamma); ok && v > 0 && v != 1 {
		img = imaging.AdjustGamma(img, v)
	}
	if v, ok := params.Int(manipulations.KeySharpen); ok && v > 0 {
		img = imaging.Sharpen(img, float64(clampRange(v, 0, 100))/20)
	}
	if v, ok := params.Get(manipulations.KeyFilter); ok {
		img = filter(img, v)
	}
	if v, ok := params.Get(manipulations.KeyFlip); ok {
		img = flip(img, v)
	}
	if v, ok := params.Int(manipulations.KeyBlur); ok && v > 0 {
		img = imaging.Blur(img, float64(clampRange(v, 0, 100))/10)
	}
	if v, ok := params.Int(manipulations.KeyPixelate); ok && v > 1 {
		img = pixelate(img, clampRange(v, 0, 1000))
	}
	return img
}

func filter(img image.Image, name string) image.Image {
	switch name {
	case manipulations.FilterGreyscale:
		return imaging.Grayscale(img)
	case manipulations.FilterSepia:
		return imaging.AdjustFunc(imaging.Grayscale(img), func(c color.NRGBA) color.NRGBA {
			g := float64(c.R)
			return color.NRGBA{
				R: clampByte(g * 1.07),
				G: clampByte(g * 0.74),
				B: clampByte(g * 0.43),
				A: c.A,
			}
		})
	default:
		return img
	}
}

func flip(img image.Image, v string) image.Image {
	switch v {
	case manipulations.FlipHorizontally:
		return imaging.FlipH(img)
	case manipulations.FlipVertically:
		return imaging.FlipV(img)
	case manipulations.FlipBoth:
		return imaging.Rotate180(img)
	default:
		return img
	}
}

// pixelate shrinks the image by size and scales it back up without
// interpolation.
func pixelate(img image.Image, size int) image.Image {
	b := img.Bounds()
	w := max(1, b.Dx()/size)
	h := max(1, b.Dy()/size)
	small := imaging.Resize(img, w, h, imaging.Box)
	return imaging.Resize(small, b.Dx(), b.Dy(), imaging.NearestNeighbor)
}

// border draws a frame described by "width,color,type".
func border(img image.Image, value string) (image.Image, error) {
	parts := strings.Split(value, ",")
	if len(parts) < 2 {
		return nil, fmt.Errorf("%w: invalid border %q", ErrTransform, value)
	}
	width, err := strconv.Atoi(parts[0])
	if err != nil || width < 0 {
		return nil, fmt.Errorf("%w: invalid border width %q", ErrTransform, parts[0])
	}
	c, err := parseColor(parts[1])
	if err != nil {
		return nil, err
	}
	method := manipulations.BorderOverlay
	if len(parts) > 2 && parts[2] != "" {
		method = parts[2]
	}
	if width == 0 {
		return img, nil
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	switch method {
	case manipulations.BorderExpand:
		canvas := imaging.New(w+2*width, h+2*width, c)
		return imaging.Paste(canvas, img, image.Pt(width, width)), nil
	case manipulations.BorderShrink:
		innerW, innerH := max(1, w-2*width), max(1, h-2*width)
		canvas := imaging.New(w, h, c)
		return imaging.PasteCenter(canvas, imaging.Resize(img, innerW, innerH, imaging.Lanczos)), nil
	case manipulations.BorderOverlay:
		canvas := imaging.Clone(img)
		frame := imaging.New(w, h, c)
		inner := image.Rect(width, width, max(width, w-width), max(width, h-width))
		if !inner.Empty() {
			frame = imaging.Paste(frame, imaging.Crop(canvas, inner), inner.Min)
		}
		return frame, nil
	default:
		return nil, fmt.Errorf("%w: unknown border type %q", ErrTransform, method)
	}
}

var namedColors = map[string]color.NRGBA{
	"black":       {0, 0, 0, 255},
	"white":       {255, 255, 255, 255},
	"red":         {255, 0, 0, 255},
	"green":       {0, 128, 0, 255},
	"blue":        {0, 0, 255, 255},
	"transparent": {0, 0, 0, 0},
}

// parseColor accepts color names and 3, 6 or 8 digit hex values with or
// without a leading '#'.
func parseColor(s string) (color.NRGBA, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := namedColors[s]; ok {
		return c, nil
	}
	s = strings.TrimPrefix(s, "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) == 6 {
		s += "ff"
	}
	if len(s) != 8 {
		return color.NRGBA{}, fmt.Errorf("%w: invalid color %q", ErrTransform, s)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("%w: invalid color %q", ErrTransform, s)
	}
	return color.NRGBA{R: b[0], G: b[1], B: b[2], A: b[3]}, nil
}

func clampRange(v, lo, hi int) int {
	return max(lo, min(hi, v))
}

func clampByte(v float64) uint8 {
	return uint8(math.Max(0, math.Min(255, math.Round(v))))
}
