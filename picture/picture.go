// Package picture assembles the responsive sources of an attachment for a
// format. The output is data for a template; no markup is produced here.
package picture

import (
	"context"
	"fmt"
	"strings"

	"github.com/sndcds/attachments/attachment"
	"github.com/sndcds/attachments/formats"
	"github.com/sndcds/attachments/resolver"
)

const (
	DefaultClass  = "img-fluid"
	LazyloadClass = "lazyload"
)

// Resolver is the part of resolver.Resolver the selector needs.
type Resolver interface {
	Resolve(ctx context.Context, a *attachment.Attachment, def formats.Definition, breakpoint int) resolver.Result
	ResolveWebp(ctx context.Context, a *attachment.Attachment, def formats.Definition, breakpoint int) resolver.Result
	SupportsWebp(a *attachment.Attachment) bool
}

type Options struct {
	Class        string
	PictureClass string
	// Alt and Title override the attachment's localized alt text and name.
	Alt      string
	Title    string
	Lazyload bool
	// Locale picks the localized fields, falling back to FallbackLocale.
	Locale         string
	FallbackLocale string
}

func (o Options) classes() []string {
	class := o.Class
	if class == "" {
		class = DefaultClass
	}
	classes := []string{class}
	if o.Lazyload {
		classes = append(classes, LazyloadClass)
	}
	return classes
}

type Source struct {
	// MediaMaxWidth is 0 for the default source.
	MediaMaxWidth int    `json:"media_max_width,omitempty"`
	MimeType      string `json:"type"`
	Srcset        string `json:"srcset"`
}

// Media is the media query of the source, empty for the default source.
func (s Source) Media() string {
	if s.MediaMaxWidth == 0 {
		return ""
	}
	return fmt.Sprintf("(max-width: %dpx)", s.MediaMaxWidth)
}

type Img struct {
	URL     string   `json:"src"`
	Width   *int     `json:"width"`
	Height  *int     `json:"height"`
	Classes []string `json:"classes"`
	Alt     string   `json:"alt"`
	Title   string   `json:"title"`
}

func (i Img) Class() string {
	return strings.Join(i.Classes, " ")
}

// Placeholder stands in for attachments that cannot be rendered as a
// picture. Width and Height come from the format.
type Placeholder struct {
	Format       string   `json:"format"`
	Width        int      `json:"width,omitempty"`
	Height       int      `json:"height,omitempty"`
	Classes      []string `json:"classes"`
	PictureClass string   `json:"picture_class,omitempty"`
	Alt          string   `json:"alt"`
}

// Picture is either a list of sources plus a fallback image, or a
// placeholder.
type Picture struct {
	Class       string       `json:"class,omitempty"`
	Sources     []Source     `json:"sources,omitempty"`
	Img         *Img         `json:"img,omitempty"`
	Placeholder *Placeholder `json:"placeholder,omitempty"`
}

type Selector struct {
	resolver Resolver
}

func NewSelector(r Resolver) *Selector {
	return &Selector{resolver: r}
}

// Select builds the picture of a for def. Breakpoint sources come narrowest
// first, followed by the default source. Webp capable attachments resolve
// every source to its webp sibling where one exists. Attachments without a
// URL render as a placeholder.
func (s *Selector) Select(ctx context.Context, a *attachment.Attachment, def formats.Definition, opts Options) Picture {
	if a == nil || a.Capability == attachment.CapabilityNone {
		return placeholder(a, def, opts)
	}
	base := s.resolver.Resolve(ctx, a, def, 0)
	if base.URL == "" {
		return placeholder(a, def, opts)
	}

	resolve := s.resolver.Resolve
	if s.resolver.SupportsWebp(a) {
		resolve = s.resolver.ResolveWebp
	}

	sources := make([]Source, 0, len(def.Breakpoints)+1)
	for _, bp := range def.Breakpoints {
		res := resolve(ctx, a, def, bp.MaxWidth)
		sources = append(sources, Source{MediaMaxWidth: bp.MaxWidth, MimeType: res.MimeType, Srcset: res.URL})
	}
	res := resolve(ctx, a, def, 0)
	sources = append(sources, Source{MimeType: res.MimeType, Srcset: res.URL})

	alt := opts.Alt
	if alt == "" {
		alt = a.Alt.Get(opts.Locale, opts.FallbackLocale)
	}
	title := opts.Title
	if title == "" {
		title = a.TranslatedName.Get(opts.Locale, opts.FallbackLocale)
	}

	return Picture{
		Class:   opts.PictureClass,
		Sources: sources,
		Img: &Img{
			URL:     base.URL,
			Width:   a.Width,
			Height:  a.Height,
			Classes: opts.classes(),
			Alt:     alt,
			Title:   title,
		},
	}
}

func placeholder(a *attachment.Attachment, def formats.Definition, opts Options) Picture {
	width, height := def.Size()
	alt := opts.Alt
	if alt == "" && a != nil {
		alt = a.Alt.Get(opts.Locale, opts.FallbackLocale)
	}
	return Picture{Placeholder: &Placeholder{
		Format:       def.Name,
		Width:        width,
		Height:       height,
		Classes:      opts.classes(),
		PictureClass: opts.PictureClass,
		Alt:          alt,
	}}
}
