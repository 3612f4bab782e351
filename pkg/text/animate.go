package text

import (
	"image"

	"github.com/rivo/uniseg"
	"golang.org/x/image/font"
	"golang.org/x/text/unicode/norm"
)

// Animation reveals a text block one grapheme at a time. Grapheme i starts
// fading in at i*delay and is fully shown fade seconds later. Frames are
// computed on demand.
type Animation struct {
	base  *image.RGBA // background only
	final *image.RGBA // fully revealed text
	boxes []image.Rectangle
	fade  float64
	delay float64
}

// Animate lays out s like Rasterize and derives one reveal box per
// grapheme cluster. Spaces count as characters; line breaks do not.
func (r *Rasterizer) Animate(s string, st Style, fade, delay float64) (*Animation, error) {
	a := &Animation{fade: max(fade, 0), delay: max(delay, 0)}

	s = norm.NFC.String(s)
	if s == "" {
		a.base = image.NewRGBA(image.Rect(0, 0, 1, 1))
		a.final = a.base
		return a, nil
	}

	l := r.layout(s, st)
	base := l.background()
	final := image.NewRGBA(base.Rect)
	copy(final.Pix, base.Pix)
	l.drawText(final)

	a.base = finish(base, st.Opacity)
	a.final = finish(final, st.Opacity)
	a.boxes = l.graphemeBoxes()
	return a, nil
}

// graphemeBoxes splits each line's box into adjacent, non-overlapping
// columns, one per grapheme, cut at the measured pen advances. The first
// and last columns absorb the stroke margins.
func (l *layout) graphemeBoxes() []image.Rectangle {
	sw := max(l.style.StrokeWidth, 0)
	var boxes []image.Rectangle

	for _, ln := range l.lines {
		if ln.text == "" {
			continue
		}
		var starts []int
		var prefix string
		g := uniseg.NewGraphemes(ln.text)
		for g.Next() {
			starts = append(starts, ln.x+sw+font.MeasureString(l.face, prefix).Round())
			prefix += g.Str()
		}

		for i, x0 := range starts {
			x1 := ln.x + ln.width
			if i+1 < len(starts) {
				x1 = starts[i+1]
			}
			if i == 0 {
				x0 = ln.x
			}
			x1 = max(x1, x0)
			boxes = append(boxes, image.Rect(x0, ln.top, x1, ln.top+l.lineH))
		}
	}
	return boxes
}

// Size is the size of every frame.
func (a *Animation) Size() image.Point { return a.final.Rect.Size() }

// Boxes returns the reveal box of each grapheme in reveal order.
func (a *Animation) Boxes() []image.Rectangle { return a.boxes }

// Final is the fully revealed frame.
func (a *Animation) Final() *image.RGBA { return a.final }

// RevealTime is the time after which every frame equals Final.
func (a *Animation) RevealTime() float64 {
	if len(a.boxes) == 0 {
		return 0
	}
	return float64(len(a.boxes)-1)*a.delay + a.fade
}

// Alpha is the reveal level of grapheme i at time t: 0 before i*delay,
// rising linearly to 1 over fade seconds.
func (a *Animation) Alpha(i int, t float64) float64 {
	start := float64(i) * a.delay
	if t < start {
		return 0
	}
	if a.fade <= 0 {
		return 1
	}
	return min((t-start)/a.fade, 1)
}

// Frame returns the block at time t seconds after the layer starts. The
// returned buffer must not be modified; it may be shared between calls.
func (a *Animation) Frame(t float64) *image.RGBA {
	if t >= a.RevealTime() {
		return a.final
	}

	out := image.NewRGBA(a.final.Rect)
	copy(out.Pix, a.final.Pix)

	for i, box := range a.boxes {
		alpha := a.Alpha(i, t)
		if alpha >= 1 {
			continue
		}
		box = box.Intersect(out.Rect)
		for y := box.Min.Y; y < box.Max.Y; y++ {
			off := out.PixOffset(box.Min.X, y)
			end := off + 4*box.Dx()
			for p := off; p < end; p++ {
				b, f := float64(a.base.Pix[p]), float64(a.final.Pix[p])
				out.Pix[p] = uint8(b + (f-b)*alpha + 0.5)
			}
		}
	}
	return out
}
