// Package formats holds named, reusable manipulation recipes and maps an
// (attachment, format, breakpoint) triple to the storage location of its
// derivative.
package formats

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/sndcds/attachments/attachment"
	"github.com/sndcds/attachments/manipulations"
)

var ErrUnknownBreakpoint = errors.New("unknown breakpoint")

// Breakpoint is an alternate recipe used for viewports up to MaxWidth pixels.
type Breakpoint struct {
	MaxWidth      int
	Manipulations manipulations.Manipulations
}

// Definition is a format. Breakpoints are kept sorted narrowest first; that
// order is used for rendering every branch of a picture.
type Definition struct {
	Name          string
	Manipulations manipulations.Manipulations
	Breakpoints   []Breakpoint
}

func New(name string, m manipulations.Manipulations) Definition {
	return Definition{Name: name, Manipulations: m}
}

// WithBreakpoint returns a copy of d with a breakpoint added or replaced.
func (d Definition) WithBreakpoint(maxWidth int, m manipulations.Manipulations) Definition {
	breakpoints := make([]Breakpoint, 0, len(d.Breakpoints)+1)
	for _, bp := range d.Breakpoints {
		if bp.MaxWidth != maxWidth {
			breakpoints = append(breakpoints, bp)
		}
	}
	breakpoints = append(breakpoints, Breakpoint{MaxWidth: maxWidth, Manipulations: m})
	sort.SliceStable(breakpoints, func(i, j int) bool {
		return breakpoints[i].MaxWidth < breakpoints[j].MaxWidth
	})
	d.Breakpoints = breakpoints
	return d
}

// Recipe returns the manipulations for a breakpoint; 0 selects the base
// recipe.
func (d Definition) Recipe(breakpoint int) (manipulations.Manipulations, error) {
	if breakpoint == 0 {
		return d.Manipulations, nil
	}
	for _, bp := range d.Breakpoints {
		if bp.MaxWidth == breakpoint {
			return bp.Manipulations, nil
		}
	}
	return manipulations.Manipulations{}, fmt.Errorf("%w: %s@%d", ErrUnknownBreakpoint, d.Name, breakpoint)
}

// Variants lists every addressable breakpoint key, base (0) first.
func (d Definition) Variants() []int {
	keys := make([]int, 0, len(d.Breakpoints)+1)
	keys = append(keys, 0)
	for _, bp := range d.Breakpoints {
		keys = append(keys, bp.MaxWidth)
	}
	return keys
}

// Size returns the width and height the base recipe asks for, 0 when unset.
func (d Definition) Size() (width, height int) {
	params := d.Manipulations.Params()
	width, _ = params.Int(manipulations.KeyWidth)
	height, _ = params.Int(manipulations.KeyHeight)
	return width, height
}

// Slug is the lower case form of the name used in storage paths.
func (d Definition) Slug() string {
	return Slug(d.Name)
}

func Slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// Target is where the derivative of one attachment for one format and
// breakpoint lives, and the recipe that produces it.
type Target struct {
	Format        string
	Breakpoint    int
	Manipulations manipulations.Manipulations
	Path          string
	WebpPath      string
	MimeType      string
	// Identity targets have no manipulations; the original is the result.
	Identity bool
}

// Target computes the deterministic derivative location. The recipe hash is
// part of the file name so a changed definition never serves stale output.
func (d Definition) Target(a *attachment.Attachment, breakpoint int) (Target, error) {
	recipe, err := d.Recipe(breakpoint)
	if err != nil {
		return Target{}, err
	}

	t := Target{
		Format:        d.Name,
		Breakpoint:    breakpoint,
		Manipulations: recipe,
	}
	if recipe.IsEmpty() {
		t.Identity = true
		t.Path = a.FilePath()
		t.MimeType = a.MimeType
		return t, nil
	}

	stem := d.Slug()
	if breakpoint > 0 {
		stem += "-" + strconv.Itoa(breakpoint)
	}
	stem = fmt.Sprintf("%s-%s__%s", stem, recipe.Hash(), a.Name)

	t.Path = path.Join(a.Directory(), stem+"."+recipe.Extension(a.Extension))
	t.WebpPath = path.Join(a.Directory(), stem+"."+manipulations.FormatWebp)
	t.MimeType = recipe.MimeType(a.MimeType)
	return t, nil
}
