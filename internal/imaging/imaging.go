// Package imaging inspects and normalizes uploaded face photos.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // register GIF decoder
	"image/jpeg"
	_ "image/png" // register PNG decoder
	"io"
	"math/bits"

	_ "golang.org/x/image/bmp" // register BMP decoder
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoder
)

// MaxDimension is the largest width or height an upload is stored at.
// Larger photos are downscaled before the browser runs face detection on them.
const MaxDimension = 1920

// DuplicateDistance is the largest dHash Hamming distance at which two uploads
// are reported as the same photo.
const DuplicateDistance = 5

// jpegQuality is used when re-encoding downscaled photos.
const jpegQuality = 90

// ErrNotImage is returned when data cannot be decoded by any registered format.
var ErrNotImage = errors.New("not a supported image")

// Photo is a decoded upload.
type Photo struct {
	Image  image.Image
	Format string
}

// Width of the photo in pixels.
func (p *Photo) Width() int { return p.Image.Bounds().Dx() }

// Height of the photo in pixels.
func (p *Photo) Height() int { return p.Image.Bounds().Dy() }

// Decode reads a full image from r.
func Decode(r io.Reader) (*Photo, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotImage, err)
	}
	return &Photo{Image: img, Format: format}, nil
}

// FitWithin returns the size of a width x height box scaled down to fit maxSize
// on its longest side. The second result is false when no scaling is needed.
func FitWithin(width, height, maxSize int) (int, int, bool) {
	if width <= maxSize && height <= maxSize {
		return width, height, false
	}
	if width > height {
		return maxSize, max(1, height*maxSize/width), true
	}
	return max(1, width*maxSize/height), maxSize, true
}

// Downscale returns p scaled to fit maxSize, re-encoded as JPEG.
// ok is false when p already fits and nothing was encoded.
func Downscale(p *Photo, maxSize int) (data []byte, width, height int, ok bool, err error) {
	width, height, ok = FitWithin(p.Width(), p.Height(), maxSize)
	if !ok {
		return nil, width, height, false, nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), p.Image, p.Image.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, 0, 0, false, fmt.Errorf("encoding jpeg: %w", err)
	}
	return buf.Bytes(), width, height, true, nil
}

// DHash computes a 64-bit difference hash: the image is shrunk to 9x8 gray
// pixels and each bit records whether a pixel is brighter than its right neighbour.
func DHash(img image.Image) uint64 {
	small := image.NewRGBA(image.Rect(0, 0, 9, 8))
	draw.BiLinear.Scale(small, small.Bounds(), img, img.Bounds(), draw.Over, nil)

	var hash uint64
	bit := 63
	for y := range 8 {
		for x := range 8 {
			if luma(small, x, y) > luma(small, x+1, y) {
				hash |= 1 << bit
			}
			bit--
		}
	}
	return hash
}

// FormatHash renders a hash as 16 lowercase hex digits.
func FormatHash(hash uint64) string {
	return fmt.Sprintf("%016x", hash)
}

// HammingDistance counts the differing bits of two hashes.
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Similar reports whether two hashes differ in at most threshold bits.
func Similar(a, b uint64, threshold int) bool {
	return HammingDistance(a, b) <= threshold
}

// luma uses the ITU-R BT.601 weights.
func luma(img *image.RGBA, x, y int) float64 {
	c := img.RGBAAt(x, y)
	return 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
}
