// position.go: Resolve overlay position descriptors to pixel anchors.
// A position is a keyword ("center", "top-right", ...), a ratio-or-pixel
// pair [x, y], or an object {"x": .., "y": ..}.
package geometry

import (
	"encoding/json"
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/xob0t/ReelStencil/internal/pkg/errors"
)

var (
	// ErrInvalidPosition is returned for unknown position keywords.
	ErrInvalidPosition = errors.Sentinel(errors.CodeInvalidPosition, "invalid position")
	// ErrUnsupportedPositionType is returned for values that are neither a
	// keyword, a pair nor an {x,y} object.
	ErrUnsupportedPositionType = errors.Sentinel(errors.CodeUnsupportedPos, "unsupported position type")
)

// Anchor places content along one axis of a keyword position.
type Anchor int

const (
	AnchorStart Anchor = iota
	AnchorCenter
	AnchorEnd
)

// Position is a parsed position descriptor. The zero value is top-left.
type Position struct {
	keyword    string
	horizontal Anchor
	vertical   Anchor
	numeric    bool
	x, y       float64
}

// keywords maps each keyword to its (horizontal, vertical) anchors.
var keywords = map[string][2]Anchor{
	"center":       {AnchorCenter, AnchorCenter},
	"top":          {AnchorCenter, AnchorStart},
	"bottom":       {AnchorCenter, AnchorEnd},
	"left":         {AnchorStart, AnchorCenter},
	"right":        {AnchorEnd, AnchorCenter},
	"top-left":     {AnchorStart, AnchorStart},
	"top-right":    {AnchorEnd, AnchorStart},
	"bottom-left":  {AnchorStart, AnchorEnd},
	"bottom-right": {AnchorEnd, AnchorEnd},
}

// Center is the default overlay position.
var Center = Keyword("center")

// Keyword returns the position for a known keyword. It panics on unknown
// keywords; use ParseKeyword for untrusted input.
func Keyword(name string) Position {
	p, err := ParseKeyword(name)
	if err != nil {
		panic(err)
	}
	return p
}

// ParseKeyword parses a keyword position. Matching is case-insensitive and
// accepts "_" or " " in place of "-".
func ParseKeyword(name string) (Position, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.NewReplacer("_", "-", " ", "-").Replace(key)
	anchors, ok := keywords[key]
	if !ok {
		return Position{}, errors.Newf(errors.CodeInvalidPosition, "unknown position keyword %q", name)
	}
	return Position{keyword: key, horizontal: anchors[0], vertical: anchors[1]}, nil
}

// At returns a numeric position. Each axis is a ratio when |v| <= 1 and an
// absolute pixel offset otherwise.
func At(x, y float64) Position {
	return Position{numeric: true, x: x, y: y}
}

// ParsePosition parses a decoded JSON value into a Position.
func ParsePosition(v any) (Position, error) {
	switch val := v.(type) {
	case string:
		return ParseKeyword(val)
	case []any:
		if len(val) != 2 {
			return Position{}, errors.Newf(errors.CodeUnsupportedPos, "position pair needs 2 values, got %d", len(val))
		}
		x, okx := number(val[0])
		y, oky := number(val[1])
		if !okx || !oky {
			return Position{}, errors.New(errors.CodeUnsupportedPos, "position pair must be numeric")
		}
		return At(x, y), nil
	case []float64:
		if len(val) != 2 {
			return Position{}, errors.Newf(errors.CodeUnsupportedPos, "position pair needs 2 values, got %d", len(val))
		}
		return At(val[0], val[1]), nil
	case map[string]any:
		x, okx := number(val["x"])
		y, oky := number(val["y"])
		if !okx || !oky {
			return Position{}, errors.New(errors.CodeUnsupportedPos, "position object needs numeric x and y")
		}
		return At(x, y), nil
	case Position:
		return val, nil
	default:
		return Position{}, errors.Newf(errors.CodeUnsupportedPos, "unsupported position value of type %T", v)
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Position) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParsePosition(raw)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// MarshalJSON implements json.Marshaler.
func (p Position) MarshalJSON() ([]byte, error) {
	if p.numeric {
		return json.Marshal(map[string]float64{"x": p.x, "y": p.y})
	}
	if p.keyword == "" {
		return json.Marshal("top-left")
	}
	return json.Marshal(p.keyword)
}

// String implements fmt.Stringer.
func (p Position) String() string {
	if p.numeric {
		return fmt.Sprintf("(%g, %g)", p.x, p.y)
	}
	if p.keyword == "" {
		return "top-left"
	}
	return p.keyword
}

// Resolve returns the top-left pixel at which content of the given size is
// placed inside container.
func Resolve(p Position, container, content image.Point) image.Point {
	if p.numeric {
		return image.Pt(axisValue(p.x, container.X), axisValue(p.y, container.Y))
	}
	return image.Pt(
		anchor(p.horizontal, container.X, content.X),
		anchor(p.vertical, container.Y, content.Y),
	)
}

// ResolveValue parses v and resolves it in one step.
func ResolveValue(v any, container, content image.Point) (image.Point, error) {
	p, err := ParsePosition(v)
	if err != nil {
		return image.Point{}, err
	}
	return Resolve(p, container, content), nil
}

// ResolveDim converts a width/height descriptor to pixels: values <= 1 are a
// ratio of the container dimension, larger values are absolute pixels.
func ResolveDim(v float64, container int) int {
	var px int
	if v <= 1.0 {
		px = int(float64(container) * v)
	} else {
		px = int(v)
	}
	return max(px, 1)
}

func anchor(a Anchor, container, content int) int {
	switch a {
	case AnchorCenter:
		return floorDiv(container-content, 2)
	case AnchorEnd:
		return container - content
	default:
		return 0
	}
}

func axisValue(v float64, container int) int {
	if math.Abs(v) <= 1.0 {
		return int(math.RoundToEven(float64(container) * v))
	}
	return int(v)
}

// floorDiv divides rounding toward negative infinity, so oversized content
// centers the same way integer floor division does.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
