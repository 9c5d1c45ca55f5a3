// Package attachment holds the attachment model: identity, content metadata,
// localized display fields and the deterministic storage layout.
package attachment

import (
	"path"
	"time"

	"github.com/google/uuid"
)

// RootDirectory is the directory every attachment directory lives under.
const RootDirectory = "attachments"

type Type string

const (
	TypeImage Type = "image"
	TypeFile  Type = "file"
)

// Capability tells consumers what can be done with an attachment's content.
// It is computed once when the model is built.
type Capability int

const (
	// CapabilityNone is a non-image attachment. It has no derivatives.
	CapabilityNone Capability = iota
	// CapabilityPlainImage is an image served as-is, e.g. SVG.
	CapabilityPlainImage
	// CapabilityWebp is a raster image that can be manipulated and re-encoded.
	CapabilityWebp
)

func (c Capability) String() string {
	switch c {
	case CapabilityPlainImage:
		return "plain-image"
	case CapabilityWebp:
		return "webp-image"
	default:
		return "none"
	}
}

// Localized maps a locale code to a translated value.
type Localized map[string]string

// Get returns the value for locale, then for fallback, then the empty string.
func (l Localized) Get(locale, fallback string) string {
	if v, ok := l[locale]; ok && v != "" {
		return v
	}
	return l[fallback]
}

// Merge returns a copy of l with all entries of other applied on top. An
// empty value removes the locale.
func (l Localized) Merge(other Localized) Localized {
	merged := make(Localized, len(l)+len(other))
	for k, v := range l {
		merged[k] = v
	}
	for k, v := range other {
		if v == "" {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	return merged
}

type Attachment struct {
	ID             uuid.UUID  `json:"id"`
	Extension      string     `json:"extension"`
	MimeType       string     `json:"mime_type"`
	ContentHash    string     `json:"md5"`
	Type           Type       `json:"type"`
	Size           int64      `json:"size"`
	Width          *int       `json:"width"`
	Height         *int       `json:"height"`
	Disk           string     `json:"disk"`
	Name           string     `json:"name"`
	TranslatedName Localized  `json:"translated_name,omitempty"`
	Alt            Localized  `json:"alt,omitempty"`
	Caption        Localized  `json:"caption,omitempty"`
	Capability     Capability `json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Classify sets Capability from the type and mime type. Repositories call it
// after loading a record.
func (a *Attachment) Classify() {
	a.Capability = CapabilityFor(a.Type, a.MimeType)
}

// CapabilityFor derives the capability of content with the given type and
// mime type.
func CapabilityFor(t Type, mimeType string) Capability {
	if t != TypeImage {
		return CapabilityNone
	}
	if IsVector(mimeType) {
		return CapabilityPlainImage
	}
	return CapabilityWebp
}

// Directory is the storage directory holding the original and every
// derivative of the attachment.
func (a *Attachment) Directory() string {
	return path.Join(RootDirectory, a.ID.String())
}

func (a *Attachment) Filename() string {
	return a.Name + "." + a.Extension
}

// FilePath is the storage path of the original upload.
func (a *Attachment) FilePath() string {
	return path.Join(a.Directory(), a.Filename())
}

func (a *Attachment) IsImage() bool {
	return a.Type == TypeImage
}

// Manipulable reports whether derivatives can be generated for a.
func (a *Attachment) Manipulable() bool {
	return a != nil && a.Capability == CapabilityWebp
}

// Dimensions returns width and height when both are known.
func (a *Attachment) Dimensions() (width, height int, ok bool) {
	if a.Width == nil || a.Height == nil {
		return 0, 0, false
	}
	return *a.Width, *a.Height, true
}
