package backend

import "math"

// Tunables carries caller overrides for per-backend generation knobs. Nil
// fields mean "use the backend default".
type Tunables struct {
	Steps    *int
	Guidance *float64
}

// Params is the adapted parameter set sent to a backend. Field tags match the
// wire schema shared by the supported models; zero-valued optional fields are
// omitted.
type Params struct {
	Prompt            string  `json:"prompt"`
	NegativePrompt    string  `json:"negative_prompt,omitempty"`
	NumOutputs        int     `json:"num_outputs,omitempty"`
	Width             int     `json:"width,omitempty"`
	Height            int     `json:"height,omitempty"`
	AspectRatio       string  `json:"aspect_ratio,omitempty"`
	NumInferenceSteps int     `json:"num_inference_steps,omitempty"`
	GuidanceScale     float64 `json:"guidance_scale,omitempty"`
	OutputFormat      string  `json:"output_format,omitempty"`
}

// BuildParams folds one uniform request into the parameter schema the given
// backend accepts. The rules are applied in a fixed order:
//
//  1. the prompt is always set;
//  2. the negative prompt is forwarded only when supported and non-empty;
//  3. an output count is forwarded only when the backend batches, otherwise
//     the caller must invoke the backend once per variation;
//  4. width/height backends get explicit dimensions plus a step count
//     (caller override, else backend default);
//  5. aspect-ratio backends get the nearest named ratio, and a step count
//     only when the caller explicitly set one;
//  6. guidance is forwarded only for backends that use it;
//  7. a forced output encoding is propagated when the backend declares one.
func BuildParams(caps Capabilities, positive, negative string, width, height, variations int, tun Tunables) Params {
	params := Params{Prompt: positive}

	if caps.SupportsNegativePrompt && negative != "" {
		params.NegativePrompt = negative
	}

	if caps.SupportsMultiOutput {
		params.NumOutputs = variations
	}

	switch caps.SizeShape {
	case SizeWidthHeight:
		params.Width = width
		params.Height = height
		if tun.Steps != nil {
			params.NumInferenceSteps = *tun.Steps
		} else {
			params.NumInferenceSteps = caps.DefaultSteps
		}
	case SizeAspectRatio:
		params.AspectRatio = NearestAspectRatio(width, height)
		if tun.Steps != nil {
			params.NumInferenceSteps = *tun.Steps
		}
	}

	if caps.DefaultGuidance > 0 {
		if tun.Guidance != nil {
			params.GuidanceScale = *tun.Guidance
		} else {
			params.GuidanceScale = caps.DefaultGuidance
		}
	}

	if caps.OutputFormat != "" {
		params.OutputFormat = caps.OutputFormat
	}

	return params
}

// aspectCandidates is tested in priority order; the first ratio within
// tolerance wins. The ordering determines which near-square dimensions snap
// to which label, so it must stay fixed.
var aspectCandidates = []struct {
	label string
	ratio float64
}{
	{"1:1", 1},
	{"16:9", 16.0 / 9.0},
	{"9:16", 9.0 / 16.0},
	{"4:5", 4.0 / 5.0},
	{"5:4", 5.0 / 4.0},
	{"4:3", 4.0 / 3.0},
	{"3:4", 3.0 / 4.0},
	{"3:2", 3.0 / 2.0},
	{"2:3", 2.0 / 3.0},
}

const aspectTolerance = 0.1

// NearestAspectRatio maps explicit dimensions onto the named ratios the
// aspect-ratio backends support, falling back to the default landscape or
// portrait label when nothing is close enough.
func NearestAspectRatio(width, height int) string {
	r := float64(width) / float64(height)
	for _, c := range aspectCandidates {
		if math.Abs(r-c.ratio) < aspectTolerance {
			return c.label
		}
	}
	if width > height {
		return "16:9"
	}
	return "9:16"
}
