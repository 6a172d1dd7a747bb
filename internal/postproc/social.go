package postproc

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"strings"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Aspect names a fixed social-post pixel geometry.
type Aspect string

const (
	AspectSquare    Aspect = "square"
	AspectPortrait  Aspect = "portrait"
	AspectLandscape Aspect = "landscape"
	AspectStory     Aspect = "story"
)

// ErrUnknownAspect is returned for aspect names outside the supported set.
var ErrUnknownAspect = fmt.Errorf("postproc: unknown aspect ratio")

// Dimensions returns the pixel geometry for the aspect. All dimensions are
// divisible by 8, which the generation backends require.
func (a Aspect) Dimensions() (width, height int, err error) {
	switch a {
	case AspectSquare:
		return 1080, 1080, nil
	case AspectPortrait:
		return 1080, 1352, nil
	case AspectLandscape:
		return 1080, 568, nil
	case AspectStory:
		return 1080, 1920, nil
	default:
		return 0, 0, fmt.Errorf("%w: %q", ErrUnknownAspect, a)
	}
}

// ParseAspect validates free-form input against the supported aspect set.
func ParseAspect(s string) (Aspect, error) {
	a := Aspect(strings.ToLower(strings.TrimSpace(s)))
	if _, _, err := a.Dimensions(); err != nil {
		return "", err
	}
	return a, nil
}

// Aspects lists the supported aspect names in a stable order.
func Aspects() []string {
	return []string{string(AspectSquare), string(AspectPortrait), string(AspectLandscape), string(AspectStory)}
}

// Position places a text overlay vertically.
type Position string

const (
	PositionTop    Position = "top"
	PositionCenter Position = "center"
	PositionBottom Position = "bottom"
)

// OverlayStyle selects the typography preset for a text overlay.
type OverlayStyle string

const (
	// OverlayClassic draws mixed-case text with the regular face.
	OverlayClassic OverlayStyle = "classic"
	// OverlayBold draws uppercase, letter-spaced text with the bold face
	// and adds a drop shadow when no background box is requested.
	OverlayBold OverlayStyle = "bold"
)

// TextOverlay describes a plain text overlay on a social post.
type TextOverlay struct {
	Text     string
	Position Position
	Color    color.NRGBA
	// Box, when non-nil, draws a solid background behind the wrapped text.
	Box   *color.NRGBA
	Style OverlayStyle
}

// CardLayout composes the image onto a solid canvas with wrapped text below.
type CardLayout struct {
	Text      string
	TextColor color.NRGBA
	// Background fills the canvas. The zero value means white.
	Background color.NRGBA
	// ImageFraction is the share of canvas height the image region covers.
	// The zero value means the default fraction.
	ImageFraction float64
}

// SocialProfile describes the social-post transform.
type SocialProfile struct {
	Aspect  Aspect
	Overlay *TextOverlay
	Card    *CardLayout
}

const (
	// Typography presets: font size as a fraction of canvas width.
	classicFontDivisor = 18
	boldFontDivisor    = 12

	// Uniform letter-spacing for the bold preset, as a fraction of font size.
	boldLetterSpacing = 0.06

	// Fixed extra inset above/below top- and bottom-positioned overlays.
	overlayInset = 60

	defaultCardImageFraction = 0.6
	cardTextGap              = 48
)

var white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}

var upperCaser = cases.Upper(language.Und)

// ProcessSocial converts one raw image into a single social-post artifact.
func (p *Processor) ProcessSocial(ctx context.Context, raw []byte, prof SocialProfile) ([]Artifact, error) {
	width, height, err := prof.Aspect.Dimensions()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	decoded, err := decodeImage(raw)
	if err != nil {
		return nil, err
	}

	var canvas *image.NRGBA
	if prof.Card != nil {
		canvas, err = p.composeCard(decoded, width, height, *prof.Card)
	} else {
		canvas, err = p.composePlain(decoded, width, height, prof.Overlay)
	}
	if err != nil {
		return nil, err
	}

	data, err := encodePNG(sharpen(canvas))
	if err != nil {
		return nil, err
	}
	return []Artifact{{
		Label:    string(prof.Aspect),
		Filename: fmt.Sprintf("instagram-%s.png", prof.Aspect),
		Data:     data,
	}}, nil
}

func (p *Processor) composePlain(src image.Image, width, height int, overlay *TextOverlay) (*image.NRGBA, error) {
	working := image.Image(src)
	if hasTransparency(src) {
		working = flattenOnto(src, white)
	}
	canvas := resizeTo(working, width, height)
	if overlay != nil && strings.TrimSpace(overlay.Text) != "" {
		if err := p.drawOverlay(canvas, *overlay); err != nil {
			return nil, err
		}
	}
	return canvas, nil
}

func (p *Processor) drawOverlay(canvas *image.NRGBA, overlay TextOverlay) error {
	width := canvas.Bounds().Dx()
	height := canvas.Bounds().Dy()

	text := overlay.Text
	fontSize := float64(width) / classicFontDivisor
	spacing := 0.0
	face := p.regular
	if overlay.Style == OverlayBold {
		fontSize = float64(width) / boldFontDivisor
		spacing = fontSize * boldLetterSpacing
		face = p.bold
		text = upperCaser.String(text)
	}

	ts, err := newTypesetter(face, fontSize, spacing)
	if err != nil {
		return err
	}

	margin := width / classicFontDivisor
	padding := int(fontSize / 2)
	maxWidth := width - 2*margin - 2*padding
	lines := ts.wrap(text, maxWidth)
	if len(lines) == 0 {
		return nil
	}

	lineHeight := ts.lineHeight()
	textWidth := ts.maxLineWidth(lines)
	boxWidth := textWidth + 2*padding
	boxHeight := lineHeight*len(lines) + 2*padding

	var boxTop int
	switch overlay.Position {
	case PositionCenter:
		boxTop = (height - boxHeight) / 2
	case PositionBottom:
		boxTop = height - boxHeight - overlayInset
	default:
		boxTop = overlayInset
	}

	boxLeft := (width - boxWidth) / 2
	if overlay.Box != nil {
		fillRect(canvas, image.Rect(boxLeft, boxTop, boxLeft+boxWidth, boxTop+boxHeight), *overlay.Box)
	}

	shadow := overlay.Box == nil && overlay.Style == OverlayBold
	shadowOffset := max(2, int(fontSize)/20)
	shadowColor := color.NRGBA{A: 160}

	baseline := boxTop + padding + ts.ascent()
	for i, line := range lines {
		lineWidth := ts.measure(line)
		x := (width - lineWidth) / 2
		y := baseline + i*lineHeight
		if shadow {
			ts.draw(canvas, line, x+shadowOffset, y+shadowOffset, shadowColor)
		}
		ts.draw(canvas, line, x, y, overlay.Color)
	}
	return nil
}

func (p *Processor) composeCard(src image.Image, width, height int, card CardLayout) (*image.NRGBA, error) {
	background := card.Background
	if background.A == 0 {
		background = white
	}

	working := image.Image(src)
	if hasTransparency(src) {
		working = flattenOnto(src, background)
	}

	canvas := image.NewNRGBA(image.Rect(0, 0, width, height))
	xdraw.Draw(canvas, canvas.Bounds(), image.NewUniform(background), image.Point{}, xdraw.Src)

	fraction := card.ImageFraction
	if fraction <= 0 || fraction >= 1 {
		fraction = defaultCardImageFraction
	}
	regionHeight := int(float64(height) * fraction)

	// Fit the image inside the top region, centered horizontally.
	srcBounds := working.Bounds()
	scale := min(float64(width)/float64(srcBounds.Dx()), float64(regionHeight)/float64(srcBounds.Dy()))
	fitWidth := int(float64(srcBounds.Dx()) * scale)
	fitHeight := int(float64(srcBounds.Dy()) * scale)
	fitted := resizeTo(working, fitWidth, fitHeight)
	offsetX := (width - fitWidth) / 2
	xdraw.Draw(canvas, image.Rect(offsetX, 0, offsetX+fitWidth, fitHeight), fitted, image.Point{}, xdraw.Over)

	if strings.TrimSpace(card.Text) == "" {
		return canvas, nil
	}

	fontSize := float64(width) / classicFontDivisor
	ts, err := newTypesetter(p.regular, fontSize, 0)
	if err != nil {
		return nil, err
	}

	textColor := card.TextColor
	if textColor.A == 0 {
		textColor = color.NRGBA{A: 255}
	}

	margin := width / classicFontDivisor
	lines := ts.wrap(card.Text, width-2*margin)
	baseline := regionHeight + cardTextGap + ts.ascent()
	for i, line := range lines {
		ts.draw(canvas, line, margin, baseline+i*ts.lineHeight(), textColor)
	}
	return canvas, nil
}

func fillRect(dst *image.NRGBA, rect image.Rectangle, col color.NRGBA) {
	xdraw.Draw(dst, rect.Intersect(dst.Bounds()), image.NewUniform(col), image.Point{}, xdraw.Src)
}
