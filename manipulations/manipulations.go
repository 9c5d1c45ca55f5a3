// Package manipulations describes an image transform as an ordered set of
// keyed parameters. It does not validate values; the image backend decides
// what it accepts.
package manipulations

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	CropTopLeft     = "crop-top-left"
	CropTop         = "crop-top"
	CropTopRight    = "crop-top-right"
	CropLeft        = "crop-left"
	CropCenter      = "crop-center"
	CropRight       = "crop-right"
	CropBottomLeft  = "crop-bottom-left"
	CropBottom      = "crop-bottom"
	CropBottomRight = "crop-bottom-right"

	OrientationAuto = "auto"
	Orientation0    = "0"
	Orientation90   = "90"
	Orientation180  = "180"
	Orientation270  = "270"

	FlipHorizontally = "h"
	FlipVertically   = "v"
	FlipBoth         = "both"

	FitContain = "contain"
	FitMax     = "max"
	FitFill    = "fill"
	FitFillMax = "fill-max"
	FitStretch = "stretch"
	FitCrop    = "crop"

	BorderOverlay = "overlay"
	BorderShrink  = "shrink"
	BorderExpand  = "expand"

	FormatJpg  = "jpg"
	FormatPjpg = "pjpg"
	FormatPng  = "png"
	FormatGif  = "gif"
	FormatWebp = "webp"
	FormatAvif = "avif"
	FormatTiff = "tiff"

	FilterGreyscale = "greyscale"
	FilterSepia     = "sepia"
)

// Parameter keys
const (
	KeyOrientation = "orientation"
	KeyFlip        = "flip"
	KeyCrop        = "crop"
	KeyWidth       = "width"
	KeyHeight      = "height"
	KeyFit         = "fit"
	KeyBrightness  = "brightness"
	KeyGamma       = "gamma"
	KeyContrast    = "contrast"
	KeySharpen     = "sharpen"
	KeyBlur        = "blur"
	KeyPixelate    = "pixelate"
	KeyFilter      = "filter"
	KeyBorder      = "border"
	KeyQuality     = "quality"
	KeyFormat      = "format"
)

type Param struct {
	Key   string
	Value string
}

// Params is the serialized form of a Manipulations value, in the order the
// keys were first set. It is what the image backend receives.
type Params []Param

// Get returns the value stored for key.
func (p Params) Get(key string) (string, bool) {
	for _, param := range p {
		if param.Key == key {
			return param.Value, true
		}
	}
	return "", false
}

// Int returns the value of key parsed as an integer.
func (p Params) Int(key string) (int, bool) {
	v, ok := p.Get(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Float returns the value of key parsed as a float.
func (p Params) Float(key string) (float64, bool) {
	v, ok := p.Get(key)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Encode returns the canonical query encoding, keys sorted.
func (p Params) Encode() string {
	values := url.Values{}
	for _, param := range p {
		values.Set(param.Key, param.Value)
	}
	return values.Encode()
}

// ParseParams reads a canonical encoding produced by Encode. Key order of
// the result follows the encoding, which is sorted.
func ParseParams(s string) (Params, error) {
	if s == "" {
		return nil, nil
	}
	var params Params
	for _, pair := range strings.Split(s, "&") {
		k, v, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			return nil, fmt.Errorf("invalid key %q: %w", k, err)
		}
		value, err := url.QueryUnescape(v)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %q: %w", key, err)
		}
		params = append(params, Param{Key: key, Value: value})
	}
	return params, nil
}

// Manipulations is an immutable builder. Every method returns an updated
// copy and leaves the receiver untouched, so a base recipe can be shared
// between formats and breakpoints.
type Manipulations struct {
	params Params
}

// New returns an empty set of manipulations.
func New() Manipulations {
	return Manipulations{}
}

// FromParams builds a Manipulations value from already serialized params.
func FromParams(params Params) Manipulations {
	m := Manipulations{}
	for _, p := range params {
		m = m.set(p.Key, p.Value)
	}
	return m
}

// set overwrites an existing key in place, keeping its original position.
func (m Manipulations) set(key, value string) Manipulations {
	params := make(Params, len(m.params), len(m.params)+1)
	copy(params, m.params)
	for i := range params {
		if params[i].Key == key {
			params[i].Value = value
			return Manipulations{params: params}
		}
	}
	return Manipulations{params: append(params, Param{Key: key, Value: value})}
}

func (m Manipulations) Orientation(orientation string) Manipulations {
	return m.set(KeyOrientation, orientation)
}

func (m Manipulations) Flip(flip string) Manipulations {
	return m.set(KeyFlip, flip)
}

// CropWithFocal crops around a focal point given in percent of the source
// dimensions. The method is encoded as crop-<x>-<y>-<zoom>.
func (m Manipulations) CropWithFocal(width, height, x, y int, zoom float64) Manipulations {
	method := fmt.Sprintf("crop-%d-%d-%s", x, y, formatFloat(zoom))
	return m.Crop(method, width, height)
}

// Crop sets width and height as well as the crop method.
func (m Manipulations) Crop(method string, width, height int) Manipulations {
	return m.Width(width).Height(height).set(KeyCrop, method)
}

func (m Manipulations) Width(width int) Manipulations {
	return m.set(KeyWidth, strconv.Itoa(width))
}

func (m Manipulations) Height(height int) Manipulations {
	return m.set(KeyHeight, strconv.Itoa(height))
}

// Fit sets width and height as well as the fit method.
func (m Manipulations) Fit(method string, width, height int) Manipulations {
	return m.Width(width).Height(height).set(KeyFit, method)
}

func (m Manipulations) Brightness(brightness int) Manipulations {
	return m.set(KeyBrightness, strconv.Itoa(brightness))
}

func (m Manipulations) Gamma(gamma float64) Manipulations {
	return m.set(KeyGamma, formatFloat(gamma))
}

func (m Manipulations) Contrast(contrast int) Manipulations {
	return m.set(KeyContrast, strconv.Itoa(contrast))
}

func (m Manipulations) Sharpen(sharpen int) Manipulations {
	return m.set(KeySharpen, strconv.Itoa(sharpen))
}

func (m Manipulations) Blur(blur int) Manipulations {
	return m.set(KeyBlur, strconv.Itoa(blur))
}

func (m Manipulations) Pixelate(pixelate int) Manipulations {
	return m.set(KeyPixelate, strconv.Itoa(pixelate))
}

func (m Manipulations) Filter(filter string) Manipulations {
	return m.set(KeyFilter, filter)
}

func (m Manipulations) Greyscale() Manipulations {
	return m.Filter(FilterGreyscale)
}

func (m Manipulations) Sepia() Manipulations {
	return m.Filter(FilterSepia)
}

// Border is serialized as "width,color,type". An empty borderType means
// BorderOverlay.
func (m Manipulations) Border(width int, color, borderType string) Manipulations {
	if borderType == "" {
		borderType = BorderOverlay
	}
	return m.set(KeyBorder, fmt.Sprintf("%d,%s,%s", width, color, borderType))
}

func (m Manipulations) Quality(quality int) Manipulations {
	return m.set(KeyQuality, strconv.Itoa(quality))
}

func (m Manipulations) Format(format string) Manipulations {
	return m.set(KeyFormat, format)
}

// Get returns the serialized value of key.
func (m Manipulations) Get(key string) (string, bool) {
	return m.params.Get(key)
}

func (m Manipulations) IsEmpty() bool {
	return len(m.params) == 0
}

// Params returns a copy of the serialized parameters in insertion order.
func (m Manipulations) Params() Params {
	params := make(Params, len(m.params))
	copy(params, m.params)
	return params
}

// Canonical is the order independent encoding used to address derivatives.
func (m Manipulations) Canonical() string {
	return m.params.Encode()
}

// Hash is a short digest of Canonical, stable across processes.
func (m Manipulations) Hash() string {
	sum := sha1.Sum([]byte(m.Canonical()))
	return hex.EncodeToString(sum[:4])
}

// Extension returns the file extension the result will have. Without an
// explicit format the source extension is kept.
func (m Manipulations) Extension(fallback string) string {
	format, ok := m.Get(KeyFormat)
	if !ok || format == "" {
		return fallback
	}
	return FormatExtension(format)
}

// MimeType returns the mime type of the result, or fallback when the source
// format is kept.
func (m Manipulations) MimeType(fallback string) string {
	format, ok := m.Get(KeyFormat)
	if !ok || format == "" {
		return fallback
	}
	if mime, ok := formatMimeTypes[format]; ok {
		return mime
	}
	return fallback
}

// String implements fmt.Stringer.
func (m Manipulations) String() string {
	return m.Canonical()
}

// FormatExtension maps an output format to the file extension it is stored
// under.
func FormatExtension(format string) string {
	switch format {
	case FormatPjpg:
		return FormatJpg
	default:
		return format
	}
}

var formatMimeTypes = map[string]string{
	FormatJpg:  "image/jpeg",
	FormatPjpg: "image/jpeg",
	FormatPng:  "image/png",
	FormatGif:  "image/gif",
	FormatWebp: "image/webp",
	FormatAvif: "image/avif",
	FormatTiff: "image/tiff",
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
