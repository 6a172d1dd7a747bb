package postproc

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	_ "image/gif"
	_ "image/jpeg"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// decodeImage decodes raw backend output. PNG, JPEG, GIF and WebP payloads
// are accepted; anything else is a post-processing error.
func decodeImage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("postproc: empty image payload")
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("postproc: decode image: %w", err)
	}
	return img, nil
}

// EncodePNG re-encodes an arbitrary raw image payload as PNG. Used to
// normalize backend output before it is stored or post-processed.
func EncodePNG(data []byte) ([]byte, error) {
	img, err := decodeImage(data)
	if err != nil {
		return nil, err
	}
	return encodePNG(img)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("postproc: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// toNRGBA ensures the working image carries an alpha channel.
func toNRGBA(img image.Image) *image.NRGBA {
	if nrgba, ok := img.(*image.NRGBA); ok {
		return nrgba
	}
	bounds := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	xdraw.Draw(dst, dst.Bounds(), img, bounds.Min, xdraw.Src)
	return dst
}

// hasTransparency reports whether any pixel is not fully opaque.
func hasTransparency(img image.Image) bool {
	if opaquer, ok := img.(interface{ Opaque() bool }); ok {
		return !opaquer.Opaque()
	}
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0xffff {
				return true
			}
		}
	}
	return false
}

// flattenOnto composites the image over a solid background, discarding alpha.
func flattenOnto(img image.Image, background color.NRGBA) *image.NRGBA {
	bounds := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	xdraw.Draw(dst, dst.Bounds(), image.NewUniform(background), image.Point{}, xdraw.Src)
	xdraw.Draw(dst, dst.Bounds(), img, bounds.Min, xdraw.Over)
	return dst
}

// resizeTo scales the image to exactly width x height with the CatmullRom
// filter. The same filter parameters are used on every call so repeated runs
// produce identical pixels.
func resizeTo(img image.Image, width, height int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return dst
}

// sharpenAmount controls the strength of the final sharpening pass, scaled
// by 1/256 in integer math below.
const sharpenAmount = 96

// sharpen applies a mild laplacian sharpening pass. Edge pixels are left
// untouched.
func sharpen(src *image.NRGBA) *image.NRGBA {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	copy(dst.Pix, src.Pix)

	if w < 3 || h < 3 {
		return dst
	}

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			o := src.PixOffset(x, y)
			up := src.PixOffset(x, y-1)
			down := src.PixOffset(x, y+1)
			left := src.PixOffset(x-1, y)
			right := src.PixOffset(x+1, y)
			for c := 0; c < 3; c++ {
				center := int(src.Pix[o+c])
				lap := 4*center - int(src.Pix[up+c]) - int(src.Pix[down+c]) - int(src.Pix[left+c]) - int(src.Pix[right+c])
				dst.Pix[o+c] = clampByte(center + lap*sharpenAmount/256)
			}
			dst.Pix[o+3] = src.Pix[o+3]
		}
	}
	return dst
}

func clampByte(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
