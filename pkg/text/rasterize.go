package text

import (
	"image"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/unicode/norm"

	"github.com/xob0t/ReelStencil/pkg/transform"
)

// Rasterizer turns text into RGBA buffers.
type Rasterizer struct {
	fonts *FontManager
}

// NewRasterizer creates a rasterizer. A nil font manager uses the embedded
// fonts only.
func NewRasterizer(fonts *FontManager) *Rasterizer {
	if fonts == nil {
		fonts = NewFontManager(FontOptions{})
	}
	return &Rasterizer{fonts: fonts}
}

// line is one laid-out line. x and top locate its box, stroke included.
type line struct {
	text  string
	x     int
	top   int
	width int
}

type layout struct {
	face   font.Face
	style  Style
	lines  []line
	size   image.Point
	lineH  int
	ascent int
}

func (r *Rasterizer) layout(s string, st Style) *layout {
	face := r.fonts.Face(st.Font, st.FontSize, st.Bold)
	sw := max(st.StrokeWidth, 0)
	m := face.Metrics()

	l := &layout{
		face:   face,
		style:  st,
		ascent: m.Ascent.Ceil(),
		lineH:  m.Ascent.Ceil() + m.Descent.Ceil() + 2*sw,
	}

	wrapW := st.MaxWidth
	if wrapW > 0 {
		wrapW = max(wrapW-2*sw, 1)
	}
	wrapped := Wrap(s, wrapW, face)
	maxW := 0
	for _, t := range wrapped {
		w := 0
		if t != "" {
			w = font.MeasureString(face, t).Ceil() + 2*sw
		}
		maxW = max(maxW, w)
		l.lines = append(l.lines, line{text: t, width: w})
	}

	pad := max(st.Padding, 0)
	y := pad
	for i := range l.lines {
		ln := &l.lines[i]
		switch st.Align {
		case AlignCenter:
			ln.x = pad + (maxW-ln.width)/2
		case AlignRight:
			ln.x = pad + maxW - ln.width
		default:
			ln.x = pad
		}
		ln.top = y
		y += l.lineH + st.LineSpacing
	}

	n := len(l.lines)
	l.size = image.Pt(
		max(maxW+2*pad, 1),
		max(n*l.lineH+st.LineSpacing*(n-1)+2*pad, 1),
	)
	return l
}

// background returns the block filled with the gradient, the solid
// background or nothing.
func (l *layout) background() *image.RGBA {
	img := image.NewRGBA(image.Rectangle{Max: l.size})
	st := l.style

	switch {
	case st.Gradient != nil:
		fillGradient(img, *st.Gradient)
	case st.Background != nil:
		draw.Draw(img, img.Bounds(), image.NewUniform(*st.Background), image.Point{}, draw.Src)
	}
	return img
}

func fillGradient(img *image.RGBA, g Gradient) {
	b := img.Bounds()
	steps := b.Dy()
	if g.Direction == Horizontal {
		steps = b.Dx()
	}
	for i := 0; i < steps; i++ {
		t := 0.0
		if steps > 1 {
			t = float64(i) / float64(steps-1)
		}
		r := image.Rect(b.Min.X, b.Min.Y+i, b.Max.X, b.Min.Y+i+1)
		if g.Direction == Horizontal {
			r = image.Rect(b.Min.X+i, b.Min.Y, b.Min.X+i+1, b.Max.Y)
		}
		draw.Draw(img, r, image.NewUniform(g.At(t)), image.Point{}, draw.Src)
	}
}

// drawText draws every line with its stroke onto dst.
func (l *layout) drawText(dst *image.RGBA) {
	st := l.style
	sw := max(st.StrokeWidth, 0)
	fill := image.NewUniform(st.Color)
	stroke := image.NewUniform(st.StrokeColor)

	for _, ln := range l.lines {
		if ln.text == "" {
			continue
		}

		mask := image.NewAlpha(image.Rect(0, 0, ln.width, l.lineH))
		d := &font.Drawer{
			Dst:  mask,
			Src:  image.Opaque,
			Face: l.face,
			Dot:  fixed.P(sw, sw+l.ascent),
		}
		d.DrawString(ln.text)

		at := image.Rect(ln.x, ln.top, ln.x+ln.width, ln.top+l.lineH)
		if sw > 0 {
			for dy := -sw; dy <= sw; dy++ {
				for dx := -sw; dx <= sw; dx++ {
					if dx*dx+dy*dy > sw*sw {
						continue
					}
					draw.DrawMask(dst, at.Add(image.Pt(dx, dy)), stroke, image.Point{}, mask, image.Point{}, draw.Over)
				}
			}
		}
		draw.DrawMask(dst, at, fill, image.Point{}, mask, image.Point{}, draw.Over)
	}
}

// Rasterize renders s as a static text block. Empty text yields a 1×1
// transparent image.
func (r *Rasterizer) Rasterize(s string, st Style) (*image.RGBA, error) {
	s = norm.NFC.String(s)
	if s == "" {
		return image.NewRGBA(image.Rect(0, 0, 1, 1)), nil
	}

	l := r.layout(s, st)
	img := l.background()
	l.drawText(img)
	return finish(img, st.Opacity), nil
}

func finish(img *image.RGBA, opacity float64) *image.RGBA {
	if opacity >= 1 {
		return img
	}
	return transform.ApplyOpacity(img, opacity)
}

// Measure returns the size Rasterize would produce for s.
func (r *Rasterizer) Measure(s string, st Style) image.Point {
	s = norm.NFC.String(s)
	if s == "" {
		return image.Pt(1, 1)
	}
	return r.layout(s, st).size
}
