package app

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sndcds/attachments/formats"
	"github.com/sndcds/attachments/manipulations"
)

// ParseAspectRatio parses "16:9" or "16by9" into width / height.
func ParseAspectRatio(s string) (float64, error) {
	sep := ":"
	if !strings.Contains(s, sep) {
		sep = "by"
	}
	parts := strings.Split(s, sep)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid ratio %q", s)
	}
	w, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	h, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil || w <= 0 || h <= 0 {
		return 0, fmt.Errorf("invalid ratio %q", s)
	}
	return w / h, nil
}

// Manipulations converts the recipe. A ratio fills in whichever of width
// and height is missing.
func (r RecipeConfig) Manipulations() (manipulations.Manipulations, error) {
	width, height := r.Width, r.Height
	if r.Ratio != "" {
		ratio, err := ParseAspectRatio(r.Ratio)
		if err != nil {
			return manipulations.Manipulations{}, err
		}
		switch {
		case width > 0 && height == 0:
			height = int(math.Round(float64(width) / ratio))
		case height > 0 && width == 0:
			width = int(math.Round(float64(height) * ratio))
		}
	}

	m := manipulations.New()
	switch {
	case r.Crop != "":
		m = m.Crop(r.Crop, width, height)
	case r.Fit != "":
		m = m.Fit(r.Fit, width, height)
	default:
		if width > 0 {
			m = m.Width(width)
		}
		if height > 0 {
			m = m.Height(height)
		}
	}
	if r.Filter != "" {
		m = m.Filter(r.Filter)
	}
	if r.Sharpen > 0 {
		m = m.Sharpen(r.Sharpen)
	}
	if r.Quality > 0 {
		m = m.Quality(r.Quality)
	}
	if r.Format != "" {
		m = m.Format(r.Format)
	}
	return m, nil
}

// Definition converts a configured format into a format definition.
func (f FormatConfig) Definition() (formats.Definition, error) {
	if f.Name == "" {
		return formats.Definition{}, fmt.Errorf("format without name")
	}
	base, err := f.Recipe.Manipulations()
	if err != nil {
		return formats.Definition{}, fmt.Errorf("format %s: %w", f.Name, err)
	}

	def := formats.New(f.Name, base)
	for _, bp := range f.Breakpoints {
		if bp.MaxWidth <= 0 {
			return formats.Definition{}, fmt.Errorf("format %s: breakpoint needs a positive max_width", f.Name)
		}
		m, err := bp.Recipe.Manipulations()
		if err != nil {
			return formats.Definition{}, fmt.Errorf("format %s@%d: %w", f.Name, bp.MaxWidth, err)
		}
		def = def.WithBreakpoint(bp.MaxWidth, m)
	}
	return def, nil
}

// RegisterFormats adds every configured format to registry.
func RegisterFormats(registry *formats.Registry, configs []FormatConfig) error {
	for _, f := range configs {
		def, err := f.Definition()
		if err != nil {
			return err
		}
		registry.Register(def, f.EntityTypes...)
	}
	return nil
}
