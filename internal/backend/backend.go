// Package backend models the heterogeneous image-synthesis services the
// orchestrator can drive. Each backend is described by a static capability
// record; the parameter adapter folds one uniform request shape into the
// parameter schema a given backend accepts.
package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ID identifies one of the supported generation backends.
type ID string

const (
	SDXL        ID = "sdxl"
	FluxSchnell ID = "flux-schnell"
	FluxDev     ID = "flux-dev"
	FluxPro     ID = "flux-pro"
	Synthetic   ID = "synthetic"
)

// ErrUnsupportedBackend is returned for backend ids outside the closed set.
var ErrUnsupportedBackend = errors.New("backend: unsupported backend")

// SizeShape describes how a backend expects output dimensions.
type SizeShape int

const (
	// SizeWidthHeight backends take explicit width/height parameters.
	SizeWidthHeight SizeShape = iota
	// SizeAspectRatio backends only take a named aspect ratio.
	SizeAspectRatio
)

// Capabilities is the static per-backend record driving parameter adaptation.
type Capabilities struct {
	ModelID                string
	SupportsNegativePrompt bool
	SupportsMultiOutput    bool
	SizeShape              SizeShape
	DefaultSteps           int
	// DefaultGuidance of zero means the backend does not use guidance.
	DefaultGuidance float64
	// OutputFormat, when non-empty, forces the backend's output encoding.
	OutputFormat string
	Description  string
}

// ParseID validates free-form input against the closed backend set.
func ParseID(s string) (ID, error) {
	id := ID(strings.ToLower(strings.TrimSpace(s)))
	switch id {
	case SDXL, FluxSchnell, FluxDev, FluxPro, Synthetic:
		return id, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedBackend, s)
	}
}

// Lookup returns the capability record for a backend id.
func Lookup(id ID) (Capabilities, error) {
	switch id {
	case SDXL:
		return Capabilities{
			ModelID:                "stability-ai/sdxl",
			SupportsNegativePrompt: true,
			SupportsMultiOutput:    true,
			SizeShape:              SizeWidthHeight,
			DefaultSteps:           30,
			DefaultGuidance:        7.0,
			Description:            "Stable Diffusion XL - good quality, flexible",
		}, nil
	case FluxSchnell:
		return Capabilities{
			ModelID:             "black-forest-labs/flux-schnell",
			SupportsMultiOutput: true,
			SizeShape:           SizeAspectRatio,
			DefaultSteps:        4,
			Description:         "Flux Schnell - fast generation, decent text",
		}, nil
	case FluxDev:
		return Capabilities{
			ModelID:             "black-forest-labs/flux-dev",
			SupportsMultiOutput: true,
			SizeShape:           SizeAspectRatio,
			DefaultSteps:        28,
			DefaultGuidance:     3.5,
			Description:         "Flux Dev - better quality, good text rendering",
		}, nil
	case FluxPro:
		return Capabilities{
			ModelID:         "black-forest-labs/flux-1.1-pro",
			SizeShape:       SizeAspectRatio,
			DefaultSteps:    25,
			DefaultGuidance: 3.0,
			OutputFormat:    "png",
			Description:     "Flux Pro 1.1 - best quality, best text rendering",
		}, nil
	case Synthetic:
		return Capabilities{
			ModelID:                "synthetic/local",
			SupportsNegativePrompt: true,
			SupportsMultiOutput:    true,
			SizeShape:              SizeWidthHeight,
			DefaultSteps:           1,
			OutputFormat:           "png",
			Description:            "Deterministic local placeholder renderer",
		}, nil
	default:
		return Capabilities{}, fmt.Errorf("%w: %q", ErrUnsupportedBackend, id)
	}
}

// Port is the contract the orchestrator uses to drive a generation backend.
// Execute returns one raw image payload per logical variation, in variation
// order.
type Port interface {
	Execute(ctx context.Context, id ID, params Params) ([][]byte, error)
}
