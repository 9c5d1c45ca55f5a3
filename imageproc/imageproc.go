// Package imageproc turns source bytes plus serialized manipulations into
// derivative bytes.
package imageproc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/sndcds/attachments/logging"
	"github.com/sndcds/attachments/manipulations"
)

// ErrTransform wraps every failure to decode, manipulate or encode an image.
// Callers treat it as retryable.
var ErrTransform = errors.New("image transform failed")

// Backend is the image engine used by generation jobs.
type Backend interface {
	Transform(ctx context.Context, src []byte, params manipulations.Params) ([]byte, error)
}

const DefaultQuality = 90

// Processor is the pure Go Backend.
type Processor struct {
	logger *zap.Logger
}

var _ Backend = (*Processor)(nil)

func NewProcessor(logger *zap.Logger) *Processor {
	return &Processor{logger: logging.OrNop(logger).With(zap.String("component", "imageproc"))}
}

// Transform applies params in a fixed order: orientation, crop, size,
// adjustments, filter, flip, blur, pixelate, border, encoding.
func (p *Processor) Transform(ctx context.Context, src []byte, params manipulations.Params) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, sourceFormat, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrTransform, err)
	}

	if v, ok := params.Get(manipulations.KeyOrientation); ok {
		img = orient(img, v, src)
	}

	width, _ := params.Int(manipulations.KeyWidth)
	height, _ := params.Int(manipulations.KeyHeight)
	if width < 0 || height < 0 {
		return nil, fmt.Errorf("%w: negative size %dx%d", ErrTransform, width, height)
	}

	if method, ok := params.Get(manipulations.KeyCrop); ok {
		img, err = crop(img, method, width, height)
		if err != nil {
			return nil, err
		}
	} else if width > 0 || height > 0 {
		fit, _ := params.Get(manipulations.KeyFit)
		img = resizeToFit(img, fit, width, height)
	}

	img = adjust(img, params)

	if v, ok := params.Get(manipulations.KeyBorder); ok {
		img, err = border(img, v)
		if err != nil {
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	format, _ := params.Get(manipulations.KeyFormat)
	if format == "" {
		format = sourceFormat
	}
	quality := DefaultQuality
	if q, ok := params.Int(manipulations.KeyQuality); ok && q > 0 && q <= 100 {
		quality = q
	}

	out, err := encode(img, format, quality)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("transformed image",
		zap.String("params", params.Encode()),
		zap.Int("source_bytes", len(src)),
		zap.Int("result_bytes", len(out)))
	return out, nil
}
