package postproc

import (
	"context"
	"fmt"
	"image"
	"math"
	"sort"
)

// iOS-style continuous corner radius, as a fraction of the icon size.
const maskCornerRatio = 0.2237

// IconProfile describes the multi-size icon transform.
type IconProfile struct {
	// Sizes are the square target sizes. The largest size is processed first
	// so the canonical artifact is available as early as possible.
	Sizes            []int
	ApplyMask        bool
	RemoveBackground bool
}

// DefaultIconSizes covers the standard iOS icon set, App Store size first.
func DefaultIconSizes() []int {
	return []int{1024, 180, 167, 152, 120, 76, 60, 40, 29, 20}
}

// ProcessIcon converts one raw image into the icon artifact set. For a fixed
// input and size list the output bytes and filenames are identical across
// runs.
func (p *Processor) ProcessIcon(ctx context.Context, raw []byte, prof IconProfile) ([]Artifact, error) {
	sizes := append([]int(nil), prof.Sizes...)
	if len(sizes) == 0 {
		sizes = DefaultIconSizes()
	}
	sort.Sort(sort.Reverse(sort.IntSlice(sizes)))

	if prof.RemoveBackground {
		if p.remover == nil {
			return nil, fmt.Errorf("postproc: background removal requested but not configured")
		}
		cut, err := p.remover.Remove(ctx, raw)
		if err != nil {
			return nil, fmt.Errorf("postproc: remove background: %w", err)
		}
		raw = cut
	}

	decoded, err := decodeImage(raw)
	if err != nil {
		return nil, err
	}
	working := toNRGBA(decoded)

	artifacts := make([]Artifact, 0, len(sizes))
	for _, size := range sizes {
		if size <= 0 {
			return nil, fmt.Errorf("postproc: invalid icon size %d", size)
		}
		resized := resizeTo(working, size, size)
		if prof.ApplyMask {
			applyRoundedMask(resized, size)
		}
		data, err := encodePNG(resized)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, Artifact{
			Size:     size,
			Filename: fmt.Sprintf("AppIcon-%d.png", size),
			Data:     data,
		})
	}
	return artifacts, nil
}

// MaskCornerRadius returns the rounded-corner radius used for a given icon
// size.
func MaskCornerRadius(size int) int {
	return int(math.Round(float64(size) * maskCornerRatio))
}

// applyRoundedMask makes every pixel outside the rounded rectangle fully
// transparent, in place. Pixels inside keep their own alpha.
func applyRoundedMask(img *image.NRGBA, size int) {
	radius := MaskCornerRadius(size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if !insideRoundedRect(x, y, size, radius) {
				o := img.PixOffset(x, y)
				img.Pix[o] = 0
				img.Pix[o+1] = 0
				img.Pix[o+2] = 0
				img.Pix[o+3] = 0
			}
		}
	}
}

func insideRoundedRect(x, y, size, radius int) bool {
	// Interior band: only the four corner squares need the circle test.
	cx, cy := -1, -1
	switch {
	case x < radius && y < radius:
		cx, cy = radius-1, radius-1
	case x >= size-radius && y < radius:
		cx, cy = size-radius, radius-1
	case x < radius && y >= size-radius:
		cx, cy = radius-1, size-radius
	case x >= size-radius && y >= size-radius:
		cx, cy = size-radius, size-radius
	default:
		return true
	}
	dx, dy := x-cx, y-cy
	return dx*dx+dy*dy <= radius*radius
}
