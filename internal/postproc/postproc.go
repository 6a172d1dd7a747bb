// Package postproc turns one raw generated image into a profile-specific set
// of derived artifacts: multi-size masked app icons, or social-post images
// with optional text overlay or card layout.
package postproc

import (
	"fmt"
	"os"

	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
)

// Artifact is one derived image produced from a raw variant.
type Artifact struct {
	// Size is the square pixel size for icon artifacts, zero otherwise.
	Size int
	// Label is the nominal label for non-square artifacts (aspect name).
	Label    string
	Filename string
	Data     []byte
}

// Options configures a Processor.
type Options struct {
	// Remover handles background removal. May be nil; icon requests that ask
	// for background removal then fail with a descriptive error.
	Remover BackgroundRemover
	// FontPath and BoldFontPath point at preferred TTF/OTF files. When unset
	// or unreadable the bundled Go fonts are used instead.
	FontPath     string
	BoldFontPath string
}

// Processor is the deterministic transform engine. It is safe for concurrent
// use; all methods read the source image and produce new buffers.
type Processor struct {
	remover BackgroundRemover
	regular *sfnt.Font
	bold    *sfnt.Font
}

// New builds a Processor. A missing preferred font falls back to the bundled
// Go Regular/Bold faces rather than failing.
func New(opts Options) (*Processor, error) {
	regular, err := loadFont(opts.FontPath, goregular.TTF)
	if err != nil {
		return nil, err
	}
	bold, err := loadFont(opts.BoldFontPath, gobold.TTF)
	if err != nil {
		return nil, err
	}
	return &Processor{
		remover: opts.Remover,
		regular: regular,
		bold:    bold,
	}, nil
}

func loadFont(path string, fallback []byte) (*sfnt.Font, error) {
	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if f, err := opentype.Parse(data); err == nil {
				return f, nil
			}
		}
	}
	f, err := opentype.Parse(fallback)
	if err != nil {
		return nil, fmt.Errorf("postproc: parse bundled font: %w", err)
	}
	return f, nil
}
