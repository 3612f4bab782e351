// Package transform implements the per-overlay image operations: resize,
// fit, mat, rotation, opacity and full-canvas backgrounds. Every operation
// returns a new buffer and never mutates its input.
package transform

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Resize scales img to exactly w×h with Catmull-Rom resampling.
func Resize(img *image.RGBA, w, h int) *image.RGBA {
	w, h = max(w, 1), max(h, 1)
	if b := img.Bounds(); b.Dx() == w && b.Dy() == h {
		return clone(img)
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// Scale resizes img uniformly by factor. Factors of 1 or below zero return
// a copy.
func Scale(img *image.RGBA, factor float64) *image.RGBA {
	if factor <= 0 || factor == 1 {
		return clone(img)
	}
	b := img.Bounds()
	return Resize(img,
		int(math.Round(float64(b.Dx())*factor)),
		int(math.Round(float64(b.Dy())*factor)),
	)
}

// Rotate rotates img clockwise by deg degrees. The canvas grows to fit the
// rotated bounds and uncovered pixels stay fully transparent.
func Rotate(img *image.RGBA, deg float64) *image.RGBA {
	if math.Mod(deg, 360) == 0 {
		return clone(img)
	}

	rad := deg * math.Pi / 180
	sin, cos := math.Sincos(rad)

	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	const eps = 1e-9
	nw := int(math.Ceil(math.Abs(w*cos) + math.Abs(h*sin) - eps))
	nh := int(math.Ceil(math.Abs(w*sin) + math.Abs(h*cos) - eps))
	nw, nh = max(nw, 1), max(nh, 1)

	// Source-to-destination affine map: rotate about the source center,
	// then translate to the destination center. y points down, so this
	// matrix turns the image clockwise on screen.
	cx, cy := float64(b.Min.X)+w/2, float64(b.Min.Y)+h/2
	ncx, ncy := float64(nw)/2, float64(nh)/2
	s2d := f64.Aff3{
		cos, -sin, ncx - (cos*cx - sin*cy),
		sin, cos, ncy - (sin*cx + cos*cy),
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.BiLinear.Transform(dst, s2d, img, b, draw.Src, nil)
	return dst
}

// ApplyOpacity scales every pixel's alpha by opacity. The buffer is
// premultiplied, so color channels scale with it: a pixel at alpha 128
// ends at alpha 64 for opacity 0.5.
func ApplyOpacity(img *image.RGBA, opacity float64) *image.RGBA {
	out := clone(img)
	if opacity >= 1 {
		return out
	}
	if opacity <= 0 {
		clear(out.Pix)
		return out
	}
	for i, v := range out.Pix {
		out.Pix[i] = uint8(float64(v) * opacity)
	}
	return out
}

// Mat surrounds img with a solid border of inset pixels.
func Mat(img *image.RGBA, inset int, c color.Color) *image.RGBA {
	inset = max(inset, 0)
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()+2*inset, b.Dy()+2*inset))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(inset, inset, inset+b.Dx(), inset+b.Dy()), img, b.Min, draw.Over)
	return dst
}

// FullCanvas centers img on an opaque canvas of the given size filled with c.
func FullCanvas(img *image.RGBA, size image.Point, c color.NRGBA) *image.RGBA {
	c.A = 255
	dst := image.NewRGBA(image.Rect(0, 0, max(size.X, 1), max(size.Y, 1)))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)

	b := img.Bounds()
	x := floorDiv(size.X-b.Dx(), 2)
	y := floorDiv(size.Y-b.Dy(), 2)
	draw.Draw(dst, image.Rect(x, y, x+b.Dx(), y+b.Dy()), img, b.Min, draw.Over)
	return dst
}

// Solid returns a w×h buffer filled with c.
func Solid(w, h int, c color.Color) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, max(w, 1), max(h, 1)))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return dst
}

// Crop copies r out of img into a new buffer anchored at the origin.
func Crop(img *image.RGBA, r image.Rectangle) *image.RGBA {
	r = r.Intersect(img.Bounds())
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst
}

func clone(img *image.RGBA) *image.RGBA {
	out := &image.RGBA{
		Pix:    make([]uint8, len(img.Pix)),
		Stride: img.Stride,
		Rect:   img.Rect,
	}
	copy(out.Pix, img.Pix)
	return out
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
