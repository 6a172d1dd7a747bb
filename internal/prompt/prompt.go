package prompt

import (
	"errors"
	"fmt"
	"strings"
)

// Style selects one of the built-in prompt templates.
type Style string

const (
	StyleIOS    Style = "ios"
	StyleFlat   Style = "flat"
	StyleVector Style = "vector"
	StyleCustom Style = "custom"
)

// ErrUnknownStyle is returned when a style is not one of the supported values.
var ErrUnknownStyle = errors.New("prompt: unknown style")

// Styles lists the supported style names in a stable order.
func Styles() []string {
	return []string{string(StyleIOS), string(StyleFlat), string(StyleVector), string(StyleCustom)}
}

// ParseStyle validates free-form user input against the supported styles.
func ParseStyle(s string) (Style, error) {
	switch Style(strings.ToLower(strings.TrimSpace(s))) {
	case StyleIOS:
		return StyleIOS, nil
	case StyleFlat:
		return StyleFlat, nil
	case StyleVector:
		return StyleVector, nil
	case StyleCustom:
		return StyleCustom, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStyle, s)
	}
}

// Params carries the optional knobs a template may substitute.
type Params struct {
	// Extra is an additional stylistic direction appended to template styles.
	Extra string
	// Color is the background color hint used by the flat template.
	Color string
	// CustomStyle is the full positive prompt used when Style is custom.
	CustomStyle string
}

const (
	defaultExtraStyle = "modern, colorful"
	defaultFlatColor  = "gradient"
)

const (
	iosPositive = "app icon, iOS app icon, %s, %s, " +
		"rounded corners, gradient background, modern design, " +
		"clean, professional, high quality, centered composition, " +
		"simple, minimalist, digital art"
	iosNegative = "text, letters, words, watermark, signature, blurry, " +
		"low quality, distorted, ugly, deformed, realistic photo, " +
		"complex background, cluttered"

	flatPositive = "flat icon design, %s, %s background, " +
		"minimalist, simple shapes, solid colors, vector style, " +
		"2D design, clean lines, modern, professional"
	flatNegative = "3D, realistic, shadows, gradients, texture, " +
		"text, letters, watermark, complex, detailed, photo"

	vectorPositive = "%s, vector illustration, smooth curves, " +
		"clean lines, vibrant colors, professional icon design, " +
		"simple composition, centered, high quality vector art"
	vectorNegative = "realistic, photo, 3D render, text, watermark, " +
		"blurry, low quality, complex background"

	customNegative = "text, letters, words, watermark, signature, blurry, " +
		"low quality, distorted, ugly, deformed"
)

// Build renders the positive and negative prompts for a subject and style.
// For the custom style the positive prompt is the caller-supplied text
// verbatim; the negative prompt keeps the default exclusion list.
func Build(subject string, style Style, p Params) (positive, negative string, err error) {
	extra := strings.TrimSpace(p.Extra)
	if extra == "" {
		extra = defaultExtraStyle
	}
	color := strings.TrimSpace(p.Color)
	if color == "" {
		color = defaultFlatColor
	}

	switch style {
	case StyleIOS:
		return fmt.Sprintf(iosPositive, subject, extra), iosNegative, nil
	case StyleFlat:
		return fmt.Sprintf(flatPositive, subject, color), flatNegative, nil
	case StyleVector:
		return fmt.Sprintf(vectorPositive, subject), vectorNegative, nil
	case StyleCustom:
		return p.CustomStyle, customNegative, nil
	default:
		return "", "", fmt.Errorf("%w: %q", ErrUnknownStyle, style)
	}
}

var articlePrefixes = []string{"icon of", "a ", "an ", "the "}

// EnhanceSubject prefixes an indefinite article when the subject does not
// already begin with an article-like phrase. Purely cosmetic; the subject
// text itself is never altered.
func EnhanceSubject(subject string) string {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return subject
	}

	lower := strings.ToLower(subject)
	for _, prefix := range articlePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return subject
		}
	}

	if strings.ContainsRune("aeiou", rune(lower[0])) {
		return "an " + subject
	}
	return "a " + subject
}
