// Package text rasterizes styled text blocks and per-character reveal
// animations into RGBA buffers.
package text

import (
	"image/color"
	"strings"
)

// DefaultFontSize is used when a style sets no size.
const DefaultFontSize = 48

// Align is the horizontal alignment of lines inside the text block.
type Align int

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

// ParseAlign reads left, center or right. Compound values such as
// "top-center" use their horizontal part. Anything else is left.
func ParseAlign(s string) Align {
	parts := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == '-' || r == '_' || r == ' '
	})
	for i := len(parts) - 1; i >= 0; i-- {
		switch parts[i] {
		case "center", "centre", "middle":
			return AlignCenter
		case "right":
			return AlignRight
		case "left":
			return AlignLeft
		}
	}
	return AlignLeft
}

func (a Align) String() string {
	switch a {
	case AlignCenter:
		return "center"
	case AlignRight:
		return "right"
	default:
		return "left"
	}
}

// Direction is the axis a gradient runs along.
type Direction int

const (
	Vertical   Direction = iota // top to bottom
	Horizontal                  // left to right
)

// ParseDirection reads "vertical" or "horizontal"; anything else is vertical.
func ParseDirection(s string) Direction {
	if strings.EqualFold(strings.TrimSpace(s), "horizontal") {
		return Horizontal
	}
	return Vertical
}

// Gradient is a linear two-stop background.
type Gradient struct {
	Start     color.NRGBA
	End       color.NRGBA
	Direction Direction
}

// At returns the gradient color at t in [0,1], each channel interpolated
// independently.
func (g Gradient) At(t float64) color.NRGBA {
	t = min(max(t, 0), 1)
	lerp := func(a, b uint8) uint8 {
		return uint8(float64(a) + (float64(b)-float64(a))*t + 0.5)
	}
	return color.NRGBA{
		R: lerp(g.Start.R, g.End.R),
		G: lerp(g.Start.G, g.End.G),
		B: lerp(g.Start.B, g.End.B),
		A: lerp(g.Start.A, g.End.A),
	}
}

// Style controls text layout and appearance.
type Style struct {
	Font     string
	FontSize float64
	Bold     bool

	Color       color.NRGBA
	StrokeColor color.NRGBA
	StrokeWidth int

	Padding     int
	Align       Align
	LineSpacing int
	// MaxWidth bounds line width in pixels for word wrapping; 0 disables it.
	MaxWidth int

	// Gradient takes priority over Background. Both nil is transparent.
	Gradient   *Gradient
	Background *color.NRGBA

	// Opacity scales the block's alpha: 1 is opaque, 0 is invisible. The
	// zero Style is therefore invisible; start from DefaultStyle.
	Opacity float64
}

// DefaultStyle is white 48pt text, opaque, no background.
func DefaultStyle() Style {
	return Style{
		FontSize:    DefaultFontSize,
		Color:       color.NRGBA{255, 255, 255, 255},
		StrokeColor: color.NRGBA{0, 0, 0, 255},
		Opacity:     1,
	}
}
