package backend

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"
	"strings"
)

// renderSyntheticImages produces deterministic placeholder PNGs for the
// synthetic backend. The palette and stripe pattern are derived from a hash
// of the prompt and variation index, so identical inputs always yield
// identical bytes.
func renderSyntheticImages(params Params, variations int) [][]byte {
	width, height := params.Width, params.Height
	if width <= 0 {
		width = 1024
	}
	if height <= 0 {
		height = 1024
	}

	images := make([][]byte, 0, variations)
	for i := 0; i < variations; i++ {
		seed := syntheticSeed(params.Prompt, i)
		images = append(images, renderSyntheticImage(width, height, seed))
	}
	return images
}

func renderSyntheticImage(width, height int, seed string) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	base := colorFromSeed(seed, 0)
	accent := colorFromSeed(seed, 1)
	draw.Draw(img, img.Bounds(), &image.Uniform{base}, image.Point{}, draw.Src)

	stripeHeight := max(32, height/12)
	for y := 0; y < height; y += stripeHeight * 2 {
		stripe := image.Rect(0, y, width, min(height, y+stripeHeight))
		draw.Draw(img, stripe, &image.Uniform{accent}, image.Point{}, draw.Over)
	}

	diagonal := colorFromSeed(seed, 2)
	step := max(16, width/32)
	for i := 0; i < max(width, height); i += step {
		for y := 0; y < height; y++ {
			x := i + y
			if x >= width {
				break
			}
			img.Set(x, y, diagonal)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}

func syntheticSeed(prompt string, index int) string {
	hasher := sha256.New()
	hasher.Write([]byte(prompt))
	hasher.Write([]byte{'|'})
	hasher.Write([]byte(fmt.Sprint(index)))
	return hex.EncodeToString(hasher.Sum(nil))[:16]
}

func colorFromSeed(seed string, shift int) color.RGBA {
	if len(seed) < 6 {
		seed = "000000"
	}
	doubled := seed + seed
	start := (shift * 6) % len(seed)
	segment := doubled[start : start+6]
	return color.RGBA{
		R: parseHexByte(segment[0:2]),
		G: parseHexByte(segment[2:4]),
		B: parseHexByte(segment[4:6]),
		A: 255,
	}
}

func parseHexByte(s string) uint8 {
	v, err := strconv.ParseUint(strings.ToLower(s), 16, 8)
	if err != nil {
		return 0
	}
	return uint8(v)
}
