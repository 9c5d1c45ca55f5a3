package imageproc

import (
	"fmt"
	"image"
	"math"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"

	"github.com/sndcds/attachments/manipulations"
)

var cropAnchors = map[string]imaging.Anchor{
	manipulations.CropTopLeft:     imaging.TopLeft,
	manipulations.CropTop:         imaging.Top,
	manipulations.CropTopRight:    imaging.TopRight,
	manipulations.CropLeft:        imaging.Left,
	manipulations.CropCenter:      imaging.Center,
	manipulations.CropRight:       imaging.Right,
	manipulations.CropBottomLeft:  imaging.BottomLeft,
	manipulations.CropBottom:      imaging.Bottom,
	manipulations.CropBottomRight: imaging.BottomRight,
}

// focal is a crop centered on a point given in percent of the source size.
type focal struct {
	x, y float64 // 0..1
	zoom float64 // >= 1
}

// parseFocal parses "crop-<x>-<y>-<zoom>".
func parseFocal(method string) (focal, bool) {
	parts := strings.Split(strings.TrimPrefix(method, "crop-"), "-")
	if len(parts) != 3 {
		return focal{}, false
	}
	x, errX := strconv.Atoi(parts[0])
	y, errY := strconv.Atoi(parts[1])
	zoom, errZoom := strconv.ParseFloat(parts[2], 64)
	if errX != nil || errY != nil || errZoom != nil {
		return focal{}, false
	}
	return focal{
		x:    clamp01(float64(x) / 100),
		y:    clamp01(float64(y) / 100),
		zoom: math.Max(zoom, 1),
	}, true
}

// targetSize fills in a missing dimension from the source aspect ratio.
func targetSize(img image.Image, width, height int) (int, int) {
	b := img.Bounds()
	srcW, srcH := b.Dx(), b.Dy()
	switch {
	case width > 0 && height > 0:
		return width, height
	case width > 0:
		return width, max(1, int(math.Round(float64(width)*float64(srcH)/float64(srcW))))
	case height > 0:
		return max(1, int(math.Round(float64(height)*float64(srcW)/float64(srcH)))), height
	default:
		return srcW, srcH
	}
}

func crop(img image.Image, method string, width, height int) (image.Image, error) {
	if width == 0 && height == 0 {
		return img, nil
	}
	width, height = targetSize(img, width, height)

	if f, ok := parseFocal(method); ok {
		return cropWithFocus(img, f, width, height), nil
	}
	anchor, ok := cropAnchors[method]
	if !ok {
		if method != manipulations.FitCrop && method != "" {
			return nil, fmt.Errorf("%w: unknown crop method %q", ErrTransform, method)
		}
		anchor = imaging.Center
	}
	return imaging.Fill(img, width, height, anchor, imaging.Lanczos), nil
}

// cropWithFocus cuts the largest region with the target aspect ratio,
// shrinks it by zoom, centers it on the focal point as far as the source
// bounds allow and resizes the result to width x height.
func cropWithFocus(img image.Image, f focal, width, height int) image.Image {
	b := img.Bounds()
	srcW, srcH := b.Dx(), b.Dy()
	srcRatio := float64(srcW) / float64(srcH)
	targetRatio := float64(width) / float64(height)

	var cropW, cropH float64
	if srcRatio > targetRatio {
		cropH = float64(srcH)
		cropW = cropH * targetRatio
	} else {
		cropW = float64(srcW)
		cropH = cropW / targetRatio
	}
	cropW /= f.zoom
	cropH /= f.zoom

	w := max(1, int(math.Round(cropW)))
	h := max(1, int(math.Round(cropH)))
	x0 := int(math.Round(f.x*float64(srcW) - cropW/2))
	y0 := int(math.Round(f.y*float64(srcH) - cropH/2))
	x0 = clampInt(x0, 0, srcW-w)
	y0 = clampInt(y0, 0, srcH-h)

	rect := image.Rect(b.Min.X+x0, b.Min.Y+y0, b.Min.X+x0+w, b.Min.Y+y0+h)
	return imaging.Resize(imaging.Crop(img, rect), width, height, imaging.Lanczos)
}

// resizeToFit scales img into the box according to the fit method. A zero
// dimension is derived from the source aspect ratio.
func resizeToFit(img image.Image, fit string, width, height int) image.Image {
	b := img.Bounds()
	srcW, srcH := b.Dx(), b.Dy()

	switch fit {
	case manipulations.FitStretch:
		w, h := targetSize(img, width, height)
		return resize.Resize(uint(w), uint(h), img, resize.Lanczos3)

	case manipulations.FitCrop:
		w, h := targetSize(img, width, height)
		return imaging.Fill(img, w, h, imaging.Center, imaging.Lanczos)

	case manipulations.FitMax:
		w, h := containSize(srcW, srcH, width, height)
		if w >= srcW || h >= srcH {
			return img
		}
		return imaging.Resize(img, w, h, imaging.Lanczos)

	case manipulations.FitFill, manipulations.FitFillMax:
		boxW, boxH := targetSize(img, width, height)
		w, h := containSize(srcW, srcH, boxW, boxH)
		scaled := img
		if fit == manipulations.FitFill || w < srcW {
			scaled = imaging.Resize(img, w, h, imaging.Lanczos)
		}
		canvas := imaging.New(boxW, boxH, image.White.C)
		return imaging.PasteCenter(canvas, scaled)

	default:
		// contain
		w, h := containSize(srcW, srcH, width, height)
		return imaging.Resize(img, w, h, imaging.Lanczos)
	}
}

// containSize is the largest size with the source aspect ratio that fits
// into the box. A zero box dimension is unconstrained.
func containSize(srcW, srcH, width, height int) (int, int) {
	scale := math.Inf(1)
	if width > 0 {
		scale = float64(width) / float64(srcW)
	}
	if height > 0 {
		scale = math.Min(scale, float64(height)/float64(srcH))
	}
	if math.IsInf(scale, 1) {
		return srcW, srcH
	}
	return max(1, int(math.Round(float64(srcW)*scale))), max(1, int(math.Round(float64(srcH)*scale)))
}

func clamp01(v float64) float64 {
	if v < 0.0 {
		return 0.0
	}
	if v > 1.0 {
		return 1.0
	}
	return v
}

func clampInt(value, min, max int) int {
	if value > max {
		value = max
	}
	if value < min {
		return min
	}
	return value
}
