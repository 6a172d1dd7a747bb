package postproc

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

const fontDPI = 72

// typesetter measures and draws text with optional uniform letter-spacing.
// Letter-spaced text is drawn glyph by glyph, which also replaces the face's
// default kerning with the fixed gap.
type typesetter struct {
	face    font.Face
	spacing fixed.Int26_6
}

func newTypesetter(f *sfnt.Font, size float64, spacing float64) (*typesetter, error) {
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     fontDPI,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("postproc: build font face: %w", err)
	}
	return &typesetter{face: face, spacing: fixed.Int26_6(spacing * 64)}, nil
}

func (t *typesetter) lineHeight() int {
	return t.face.Metrics().Height.Ceil()
}

func (t *typesetter) ascent() int {
	return t.face.Metrics().Ascent.Ceil()
}

// measure returns the rendered width of s in pixels.
func (t *typesetter) measure(s string) int {
	if t.spacing == 0 {
		return font.MeasureString(t.face, s).Ceil()
	}
	var width fixed.Int26_6
	runes := []rune(s)
	for i, r := range runes {
		advance, ok := t.face.GlyphAdvance(r)
		if !ok {
			advance, _ = t.face.GlyphAdvance('?')
		}
		width += advance
		if i < len(runes)-1 {
			width += t.spacing
		}
	}
	return width.Ceil()
}

// draw renders s with its baseline at (x, y).
func (t *typesetter) draw(dst *image.NRGBA, s string, x, y int, col color.NRGBA) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: t.face,
		Dot:  fixed.P(x, y),
	}
	if t.spacing == 0 {
		d.DrawString(s)
		return
	}
	for _, r := range s {
		d.DrawString(string(r))
		d.Dot.X += t.spacing
	}
}

// wrap splits text into lines no wider than maxWidth. Words are accumulated
// greedily; a word that alone exceeds maxWidth still gets its own line.
func (t *typesetter) wrap(text string, maxWidth int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	current := words[0]
	for _, word := range words[1:] {
		candidate := current + " " + word
		if t.measure(candidate) > maxWidth {
			lines = append(lines, current)
			current = word
			continue
		}
		current = candidate
	}
	lines = append(lines, current)
	return lines
}

// maxLineWidth returns the widest rendered line.
func (t *typesetter) maxLineWidth(lines []string) int {
	widest := 0
	for _, line := range lines {
		if w := t.measure(line); w > widest {
			widest = w
		}
	}
	return widest
}
