// load.go: Decode overlay images into RGBA buffers.
package transform

import (
	"image"
	"image/draw"
	"os"

	// Registered decoders for overlay assets.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/xob0t/ReelStencil/internal/pkg/errors"
)

// Load decodes the image at path and converts it to RGBA. A missing file
// yields an OVERLAY_SKIPPED error that still matches os.ErrNotExist.
func Load(path string) (*image.RGBA, error) {
	const op = "transform.load"

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeOverlaySkipped, op, "open image")
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeOverlaySkipped, op, "decode "+path)
	}
	return ToRGBA(img), nil
}

// ToRGBA returns img as an RGBA buffer anchored at the origin. RGBA inputs
// already at the origin are returned as is.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
