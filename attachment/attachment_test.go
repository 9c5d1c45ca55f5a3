package attachment

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

const svgContent = `<svg xmlns="http://www.w3.org/2000/svg" width="10" height="10"><rect width="10" height="10"/></svg>`

func TestDimensions(t *testing.T) {
	content := jpegBytes(t, 100, 100)

	width, height, err := Dimensions("image/jpeg", content)
	require.NoError(t, err)
	require.NotNil(t, width)
	require.NotNil(t, height)
	assert.Equal(t, 100, *width)
	assert.Equal(t, 100, *height)

	for _, mimeType := range []string{"image/svg+xml", "image/svg", "application/pdf"} {
		width, height, err := Dimensions(mimeType, []byte(svgContent))
		assert.ErrorIs(t, err, ErrUnsupportedMimeType, mimeType)
		assert.Nil(t, width, mimeType)
		assert.Nil(t, height, mimeType)
	}
}

func TestFromUploadRaster(t *testing.T) {
	content := jpegBytes(t, 100, 100)

	a := FromUpload("public", "test.jpg", content)

	assert.NotEqual(t, uuid.Nil, a.ID)
	assert.Equal(t, "test", a.Name)
	assert.Equal(t, "jpg", a.Extension)
	assert.Equal(t, "image/jpeg", a.MimeType)
	assert.Equal(t, TypeImage, a.Type)
	assert.Equal(t, int64(len(content)), a.Size)
	assert.Equal(t, "public", a.Disk)
	assert.Len(t, a.ContentHash, 32)
	assert.Equal(t, CapabilityWebp, a.Capability)

	w, h, ok := a.Dimensions()
	require.True(t, ok)
	assert.Equal(t, 100, w)
	assert.Equal(t, 100, h)
}

func TestFromUploadVector(t *testing.T) {
	a := FromUpload("public", "logo.svg", []byte(svgContent))

	assert.Equal(t, "image/svg+xml", a.MimeType)
	assert.Equal(t, TypeImage, a.Type)
	assert.Nil(t, a.Width)
	assert.Nil(t, a.Height)
	assert.Equal(t, CapabilityPlainImage, a.Capability)
	assert.False(t, a.Manipulable())
}

func TestFromUploadFile(t *testing.T) {
	a := FromUpload("local", "notes.txt", []byte("hello world"))

	assert.Equal(t, "text/plain", a.MimeType)
	assert.Equal(t, TypeFile, a.Type)
	assert.Equal(t, "txt", a.Extension)
	assert.Equal(t, CapabilityNone, a.Capability)
	_, _, ok := a.Dimensions()
	assert.False(t, ok)
}

func TestFromUploadExtensionFromContent(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 3, 2))))

	a := FromUpload("public", "noextension", buf.Bytes())

	assert.Equal(t, "png", a.Extension)
	assert.Equal(t, "noextension", a.Name)
}

func TestPaths(t *testing.T) {
	id := uuid.MustParse("6f1c2f1e-8c8e-4c1b-9d59-2a0a4f3f6a10")
	a := &Attachment{ID: id, Name: "photo", Extension: "jpg"}

	assert.Equal(t, "attachments/6f1c2f1e-8c8e-4c1b-9d59-2a0a4f3f6a10", a.Directory())
	assert.Equal(t, "photo.jpg", a.Filename())
	assert.Equal(t, "attachments/6f1c2f1e-8c8e-4c1b-9d59-2a0a4f3f6a10/photo.jpg", a.FilePath())
}

func TestSplitFilename(t *testing.T) {
	tests := []struct {
		in, name, ext string
	}{
		{"test.jpg", "test", "jpg"},
		{"Holiday Photo.JPEG", "Holiday-Photo", "jpeg"},
		{"../../etc/passwd", "passwd", ""},
		{`C:\Users\me\scan.pdf`, "scan", "pdf"},
		{".hidden", "file", "hidden"},
		{"", "file", ""},
	}
	for _, tt := range tests {
		name, ext := SplitFilename(tt.in)
		assert.Equal(t, tt.name, name, tt.in)
		assert.Equal(t, tt.ext, ext, tt.in)
	}
}

func TestLocalized(t *testing.T) {
	alt := Localized{"en": "A cat", "nl": ""}

	assert.Equal(t, "A cat", alt.Get("en", "en"))
	assert.Equal(t, "A cat", alt.Get("nl", "en"))
	assert.Equal(t, "", alt.Get("fr", "de"))

	merged := alt.Merge(Localized{"nl": "Een kat", "en": ""})
	assert.Equal(t, Localized{"nl": "Een kat"}, merged)
	assert.Equal(t, "A cat", alt["en"], "merge must not modify the receiver")
}

func TestCapabilityFor(t *testing.T) {
	assert.Equal(t, CapabilityWebp, CapabilityFor(TypeImage, "image/png"))
	assert.Equal(t, CapabilityPlainImage, CapabilityFor(TypeImage, "image/SVG+XML"))
	assert.Equal(t, CapabilityNone, CapabilityFor(TypeFile, "application/pdf"))
	assert.Equal(t, "webp-image", CapabilityWebp.String())
}
