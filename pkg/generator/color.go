// color.go: Unified color parsing and solid image creation.
package generator

import (
	"encoding/json"
	"image"
	"image/color"
	"image/draw"
	"strconv"
	"strings"

	"github.com/xob0t/ReelStencil/internal/pkg/errors"
)

// ErrInvalidColorFormat is returned for color values that are not
// "#RRGGBB", "#RRGGBBAA", [r,g,b] or [r,g,b,a].
var ErrInvalidColorFormat = errors.Sentinel(errors.CodeInvalidColor, "invalid color format")

// ParseColor parses a color from a decoded JSON value: a hex string or an
// array of 3 or 4 integer channels in 0..255.
func ParseColor(v any) (color.NRGBA, error) {
	switch val := v.(type) {
	case string:
		return ParseHex(val)
	case []any:
		return parseChannels(val)
	case []int:
		vals := make([]any, len(val))
		for i, c := range val {
			vals[i] = c
		}
		return parseChannels(vals)
	case color.NRGBA:
		return val, nil
	default:
		return color.NRGBA{}, errors.Newf(errors.CodeInvalidColor, "unsupported color value %v (%T)", v, v)
	}
}

// ParseHex parses "#RRGGBB" or "#RRGGBBAA". The leading "#" is optional.
func ParseHex(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 && len(hex) != 8 {
		return color.NRGBA{}, errors.Newf(errors.CodeInvalidColor, "invalid color %q: expected #RRGGBB or #RRGGBBAA", s)
	}

	var ch [4]uint8
	ch[3] = 255
	for i := 0; i < len(hex)/2; i++ {
		v, err := strconv.ParseUint(hex[i*2:i*2+2], 16, 8)
		if err != nil {
			return color.NRGBA{}, errors.Newf(errors.CodeInvalidColor, "invalid channel %q in %q", hex[i*2:i*2+2], s)
		}
		ch[i] = uint8(v)
	}
	return color.NRGBA{R: ch[0], G: ch[1], B: ch[2], A: ch[3]}, nil
}

func parseChannels(vals []any) (color.NRGBA, error) {
	if len(vals) != 3 && len(vals) != 4 {
		return color.NRGBA{}, errors.Newf(errors.CodeInvalidColor, "color tuple needs 3 or 4 channels, got %d", len(vals))
	}

	ch := [4]uint8{0, 0, 0, 255}
	for i, raw := range vals {
		var n float64
		switch c := raw.(type) {
		case float64:
			n = c
		case int:
			n = float64(c)
		case json.Number:
			f, err := c.Float64()
			if err != nil {
				return color.NRGBA{}, errors.Newf(errors.CodeInvalidColor, "invalid channel %v", raw)
			}
			n = f
		default:
			return color.NRGBA{}, errors.Newf(errors.CodeInvalidColor, "invalid channel %v (%T)", raw, raw)
		}
		if n < 0 || n > 255 || n != float64(int(n)) {
			return color.NRGBA{}, errors.Newf(errors.CodeInvalidColor, "channel %v out of range 0..255", raw)
		}
		ch[i] = uint8(n)
	}
	return color.NRGBA{R: ch[0], G: ch[1], B: ch[2], A: ch[3]}, nil
}

// Hex formats c as "#RRGGBBAA".
func Hex(c color.NRGBA) string {
	return "#" + strings.ToUpper(strconv.FormatUint(uint64(c.R)<<24|uint64(c.G)<<16|uint64(c.B)<<8|uint64(c.A)|1<<32, 16)[1:])
}

// NewSolidImage creates a uniform solid-color image using draw.Draw (O(1) fill).
func NewSolidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{c}, image.Point{}, draw.Src)
	return img
}
