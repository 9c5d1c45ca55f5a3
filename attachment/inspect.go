package attachment

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedMimeType is returned for content whose dimensions cannot be
// read, e.g. vector images or non-images. It is not a failure of the upload.
var ErrUnsupportedMimeType = errors.New("unsupported mime type")

var vectorMimeTypes = map[string]bool{
	"image/svg+xml": true,
	"image/svg":     true,
}

// IsVector reports whether mimeType denotes vector content.
func IsVector(mimeType string) bool {
	return vectorMimeTypes[strings.ToLower(mimeType)]
}

// DetectMimeType sniffs the content. Parameters such as charset are dropped.
func DetectMimeType(content []byte) string {
	detected := mimetype.Detect(content).String()
	mimeType, _, _ := strings.Cut(detected, ";")
	return strings.TrimSpace(mimeType)
}

// TypeFor maps a mime type to the logical attachment type.
func TypeFor(mimeType string) Type {
	if strings.HasPrefix(mimeType, "image/") {
		return TypeImage
	}
	return TypeFile
}

// Dimensions reads width and height of raster content. Vector and non-image
// content yields ErrUnsupportedMimeType with both values nil.
func Dimensions(mimeType string, content []byte) (*int, *int, error) {
	if TypeFor(mimeType) != TypeImage || IsVector(mimeType) {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedMimeType, mimeType)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		return nil, nil, fmt.Errorf("decode image config: %w", err)
	}

	width, height := cfg.Width, cfg.Height
	return &width, &height, nil
}

// SplitFilename returns a storage safe base name and the lower case
// extension of an uploaded file name. Directory components are dropped.
func SplitFilename(filename string) (name, extension string) {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	extension = strings.ToLower(strings.TrimPrefix(filepath.Ext(base), "."))
	name = strings.TrimSuffix(base, filepath.Ext(base))

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	name = strings.Trim(b.String(), "-")
	if name == "" || name == "." {
		name = "file"
	}
	return name, extension
}

// FromUpload builds a new attachment for content uploaded as filename onto
// disk. The id is freshly generated; nothing is stored yet.
func FromUpload(disk, filename string, content []byte) *Attachment {
	mimeType := DetectMimeType(content)
	name, extension := SplitFilename(filename)
	if extension == "" {
		extension = strings.TrimPrefix(mimetype.Detect(content).Extension(), ".")
	}
	if extension == "" {
		extension = "bin"
	}

	sum := md5.Sum(content)
	now := time.Now().UTC()

	a := &Attachment{
		ID:          uuid.New(),
		Extension:   extension,
		MimeType:    mimeType,
		ContentHash: hex.EncodeToString(sum[:]),
		Type:        TypeFor(mimeType),
		Size:        int64(len(content)),
		Disk:        disk,
		Name:        name,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// Undecodable or vector content simply has no dimensions.
	if width, height, err := Dimensions(mimeType, content); err == nil {
		a.Width, a.Height = width, height
	}

	a.Classify()
	return a
}
