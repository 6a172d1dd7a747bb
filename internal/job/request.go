package job

import (
	"errors"
	"fmt"
	"strings"

	"icongen/internal/postproc"
	"icongen/internal/prompt"
)

// OutputFormat selects which post-processing profile a job runs.
type OutputFormat string

const (
	FormatIcon       OutputFormat = "icon"
	FormatSocialPost OutputFormat = "social-post"
)

// ErrValidation marks request-shape errors. They surface synchronously at
// submission; a job carrying an invalid request never enters PROCESSING.
var ErrValidation = errors.New("invalid request")

const (
	// DefaultVariations is used when the caller does not ask for a count.
	DefaultVariations = 4
	// MaxVariations bounds the per-job fan-out.
	MaxVariations = 8

	minSteps    = 10
	maxSteps    = 100
	minGuidance = 1.0
	maxGuidance = 20.0
)

// GenerationRequest is the immutable input of a job.
type GenerationRequest struct {
	Subject     string
	Style       prompt.Style
	CustomStyle string
	Variations  int
	// Color is the background color hint for the flat style.
	Color string

	// Steps and GuidanceScale override the backend defaults when non-nil.
	Steps         *int
	GuidanceScale *float64

	RemoveBackground bool
	ApplyMask        bool

	Format OutputFormat
	// AspectRatio is required when Format is social-post.
	AspectRatio postproc.Aspect
	// IconSizes overrides the default icon size list when non-empty.
	IconSizes []int

	Overlay *postproc.TextOverlay
	Card    *postproc.CardLayout
}

// Validate checks the request shape. All failures wrap ErrValidation.
func (r *GenerationRequest) Validate() error {
	if strings.TrimSpace(r.Subject) == "" {
		return fmt.Errorf("%w: subject is required", ErrValidation)
	}
	if _, err := prompt.ParseStyle(string(r.Style)); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if r.Style == prompt.StyleCustom && strings.TrimSpace(r.CustomStyle) == "" {
		return fmt.Errorf("%w: custom_style is required when style is %q", ErrValidation, prompt.StyleCustom)
	}
	if r.Variations < 1 || r.Variations > MaxVariations {
		return fmt.Errorf("%w: variations must be between 1 and %d", ErrValidation, MaxVariations)
	}
	if r.Steps != nil && (*r.Steps < minSteps || *r.Steps > maxSteps) {
		return fmt.Errorf("%w: steps must be between %d and %d", ErrValidation, minSteps, maxSteps)
	}
	if r.GuidanceScale != nil && (*r.GuidanceScale < minGuidance || *r.GuidanceScale > maxGuidance) {
		return fmt.Errorf("%w: guidance_scale must be between %.0f and %.0f", ErrValidation, minGuidance, maxGuidance)
	}

	switch r.Format {
	case FormatIcon:
		for _, size := range r.IconSizes {
			if size <= 0 {
				return fmt.Errorf("%w: icon sizes must be positive", ErrValidation)
			}
		}
	case FormatSocialPost:
		if _, err := postproc.ParseAspect(string(r.AspectRatio)); err != nil {
			return fmt.Errorf("%w: aspect_ratio is required for social-post format", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown output format %q", ErrValidation, r.Format)
	}

	return nil
}
