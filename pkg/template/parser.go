// parser.go: Turn decoded overlay documents into typed Overlays.
package template

import (
	"encoding/json"
	"image/color"
	"strings"

	"github.com/xob0t/ReelStencil/internal/pkg/errors"
	"github.com/xob0t/ReelStencil/pkg/generator"
	"github.com/xob0t/ReelStencil/pkg/geometry"
	"github.com/xob0t/ReelStencil/pkg/text"
	"github.com/xob0t/ReelStencil/pkg/transform"
)

// ParseOverlays validates every entry of an overlay document. The document
// is {"overlays": [...]}, a bare list, or either as JSON text. A document
// that cannot be read is a fatal input error; a bad entry is dropped with a
// warning and parsing goes on.
func ParseOverlays(doc any) ([]Overlay, []Warning, error) {
	list, err := overlayList(doc)
	if err != nil {
		return nil, nil, err
	}

	var (
		out      []Overlay
		warnings []Warning
	)
	for i, raw := range list {
		o, warns, err := parseOverlay(i, raw)
		warnings = append(warnings, warns...)
		if err != nil {
			warnings = append(warnings, Warning{Index: i, Code: errors.GetCode(err), Message: message(err), Dropped: true})
			continue
		}
		out = append(out, o)
	}
	return out, warnings, nil
}

func overlayList(doc any) ([]any, error) {
	const op = "template.parse"

	switch v := doc.(type) {
	case nil:
		return nil, errors.FatalInput(op, nil, "no overlay document")
	case string:
		return overlayList([]byte(v))
	case []byte:
		var decoded any
		if err := json.Unmarshal(v, &decoded); err != nil {
			return nil, errors.FatalInput(op, err, "overlay document is not valid JSON")
		}
		if _, isString := decoded.(string); isString {
			return nil, errors.FatalInput(op, nil, "overlay document is a bare string")
		}
		return overlayList(decoded)
	case map[string]any:
		raw, ok := v["overlays"]
		if !ok {
			return nil, errors.FatalInput(op, nil, `overlay document has no "overlays" key`)
		}
		list, ok := raw.([]any)
		if !ok {
			if raw == nil {
				return nil, nil
			}
			return nil, errors.FatalInput(op, nil, `"overlays" must be a list`)
		}
		return list, nil
	case []any:
		return v, nil
	case []map[string]any:
		list := make([]any, len(v))
		for i := range v {
			list[i] = v[i]
		}
		return list, nil
	default:
		return nil, errors.FatalInput(op, nil, "unsupported overlay document")
	}
}

func parseOverlay(index int, raw any) (Overlay, []Warning, error) {
	var warnings []Warning

	m, ok := raw.(map[string]any)
	if !ok {
		return Overlay{}, nil, errors.Newf(errors.CodeValidation, "overlay is a %T, not an object", raw)
	}

	o := Overlay{
		Index:    index,
		Scale:    1,
		Opacity:  1,
		Position: geometry.Center,
		Fit:      transform.FitStretch,
	}

	typ, err := str(m, "type")
	if err != nil {
		return o, nil, err
	}

	if o.Start, err = numOr(m, "start_time", 0); err != nil {
		return o, nil, err
	}
	if o.Start < 0 {
		return o, nil, errors.Newf(errors.CodeValidation, "negative start_time %g", o.Start)
	}
	if _, ok := m["duration"]; !ok {
		return o, nil, errors.New(errors.CodeValidation, "duration is required")
	}
	if o.Duration, err = numOr(m, "duration", 0); err != nil {
		return o, nil, err
	}

	if p, ok := m["position"]; ok && p != nil {
		if o.Position, err = geometry.ParsePosition(p); err != nil {
			return o, nil, err
		}
	}

	if o.Scale, err = numOr(m, "scale", 1); err != nil {
		return o, nil, err
	}
	if o.Rotation, err = numOr(m, "rotation", 0); err != nil {
		return o, nil, err
	}
	if o.Opacity, err = numOr(m, "opacity", 1); err != nil {
		return o, nil, err
	}
	o.Opacity = min(max(o.Opacity, 0), 1)

	if o.Width, err = dim(m, "width"); err != nil {
		return o, nil, err
	}
	if o.Height, err = dim(m, "height"); err != nil {
		return o, nil, err
	}

	fit, err := str(m, "fit_mode")
	if err != nil {
		return o, nil, err
	}
	mode, ok := transform.ParseFitMode(fit)
	o.Fit = mode
	if !ok {
		warnings = append(warnings, Warning{Index: index, Code: errors.CodeInvalidStyle, Message: "unknown fit_mode " + quote(fit) + ", using contain"})
	}

	mat, err := numOr(m, "mat_width", 0)
	if err != nil {
		return o, nil, err
	}
	o.MatWidth = int(mat)

	imagePath, err := str(m, "image_path")
	if err != nil {
		return o, nil, err
	}
	imagePaths, hasPaths, err := strList(m, "image_paths")
	if err != nil {
		return o, nil, err
	}
	_, hasPath := m["image_path"]
	_, hasText := m["text"]

	kind := Kind(strings.ToLower(strings.TrimSpace(typ)))
	if kind == "" {
		switch {
		case hasPaths:
			kind = KindStack
		case hasPath:
			kind = KindImage
		case hasText:
			kind = KindText
		default:
			return o, nil, errors.New(errors.CodeValidation, "cannot infer overlay type: no image_path, image_paths or text")
		}
	}
	o.Kind = kind

	switch kind {
	case KindImage:
		o.Image = &ImageSpec{Path: imagePath}
	case KindStack:
		rr, err := numOr(m, "rotation_range", 0)
		if err != nil {
			return o, nil, err
		}
		o.Stack = &StackSpec{Paths: imagePaths, RotationRange: rr}
	case KindText:
		if !hasText {
			return o, nil, errors.New(errors.CodeValidation, "text overlay has no text")
		}
		if hasPaths {
			rr, err := numOr(m, "rotation_range", 0)
			if err != nil {
				return o, nil, err
			}
			o.Stack = &StackSpec{Paths: imagePaths, RotationRange: rr}
		} else if hasPath {
			o.Image = &ImageSpec{Path: imagePath}
		}
	default:
		return o, nil, errors.Newf(errors.CodeValidation, "unknown overlay type %q", typ)
	}

	if bg, ok := m["bg_color"]; ok && bg != nil {
		c, err := generator.ParseColor(bg)
		if err != nil {
			return o, nil, err
		}
		if o.Image != nil || o.Stack != nil {
			o.BgColor = &c
		}
	}

	if hasText {
		ts, err := parseText(m, kind == KindText && o.Image == nil && o.Stack == nil)
		if err != nil {
			return o, nil, err
		}
		ts.Style.Opacity = o.Opacity
		o.Text = &ts
	}

	return o, warnings, nil
}

// parseText reads text and text_style. Text-only overlays also take the
// overlay-level bg_color and bg_gradient as the block background.
func parseText(m map[string]any, textOnly bool) (TextSpec, error) {
	var ts TextSpec

	s, err := str(m, "text")
	if err != nil {
		return ts, err
	}
	ts.Text = s
	ts.Style = text.DefaultStyle()
	ts.FadeDuration = DefaultCharFade
	ts.CharDelay = DefaultCharDelay

	if p, ok := m["text_position"]; ok && p != nil {
		pos, err := geometry.ParsePosition(p)
		if err != nil {
			return ts, err
		}
		ts.Position = &pos
	}

	style := map[string]any{}
	if raw, ok := m["text_style"]; ok && raw != nil {
		if style, ok = raw.(map[string]any); !ok {
			return ts, errors.New(errors.CodeInvalidStyle, "text_style must be an object")
		}
	}
	st := &ts.Style

	if st.Font, err = str(style, "font"); err != nil {
		return ts, err
	}
	if st.FontSize, err = numOr(style, "font_size", text.DefaultFontSize); err != nil {
		return ts, err
	}
	if st.Bold, err = boolOr(style, "bold", false); err != nil {
		return ts, err
	}
	if st.Color, err = colorOr(style, "color", st.Color); err != nil {
		return ts, err
	}
	if st.StrokeColor, err = colorOr(style, "stroke_color", st.StrokeColor); err != nil {
		return ts, err
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"stroke_width", &st.StrokeWidth},
		{"padding", &st.Padding},
		{"line_spacing", &st.LineSpacing},
	}
	for _, f := range ints {
		v, err := numOr(style, f.key, 0)
		if err != nil {
			return ts, err
		}
		*f.dst = int(v)
	}

	align, err := str(style, "align")
	if err != nil {
		return ts, err
	}
	st.Align = text.ParseAlign(align)

	if ts.MaxWidth, err = dim(style, "max_width"); err != nil {
		return ts, err
	}

	if ts.Animate, err = boolOr(style, "char_animation", false); err != nil {
		return ts, err
	}
	if ts.FadeDuration, err = numOr(style, "char_fade_duration", DefaultCharFade); err != nil {
		return ts, err
	}
	if ts.CharDelay, err = numOr(style, "char_delay", DefaultCharDelay); err != nil {
		return ts, err
	}

	sources := []map[string]any{style}
	if textOnly {
		sources = append(sources, m)
	}
	for _, src := range sources {
		if raw, ok := src["bg_gradient"]; ok && raw != nil {
			g, err := parseGradient(raw)
			if err != nil {
				return ts, err
			}
			st.Gradient = &g
			break
		}
		if raw, ok := src["bg_color"]; ok && raw != nil {
			c, err := generator.ParseColor(raw)
			if err != nil {
				return ts, err
			}
			st.Background = &c
			break
		}
	}

	return ts, nil
}

func parseGradient(raw any) (text.Gradient, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return text.Gradient{}, errors.New(errors.CodeInvalidStyle, "bg_gradient must be an object")
	}
	var g text.Gradient
	for _, stop := range []struct {
		key string
		dst *color.NRGBA
	}{{"start", &g.Start}, {"end", &g.End}} {
		v, ok := m[stop.key]
		if !ok || v == nil {
			return g, errors.Newf(errors.CodeInvalidStyle, "bg_gradient needs %q", stop.key)
		}
		c, err := generator.ParseColor(v)
		if err != nil {
			return g, err
		}
		*stop.dst = c
	}
	dir, err := str(m, "direction")
	if err != nil {
		return g, err
	}
	g.Direction = text.ParseDirection(dir)
	return g, nil
}

// ── Field helpers ──

func num(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func numOr(m map[string]any, key string, def float64) (float64, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return def, nil
	}
	f, ok := num(v)
	if !ok {
		return 0, errors.Newf(errors.CodeValidation, "%s must be a number, got %T", key, v)
	}
	return f, nil
}

// dim reads an optional ratio-or-pixel dimension. Values must be positive.
func dim(m map[string]any, key string) (*float64, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	f, ok := num(v)
	if !ok {
		return nil, errors.Newf(errors.CodeValidation, "%s must be a number, got %T", key, v)
	}
	if f <= 0 {
		return nil, errors.Newf(errors.CodeValidation, "%s must be positive, got %g", key, f)
	}
	return &f, nil
}

func str(m map[string]any, key string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", errors.Newf(errors.CodeValidation, "%s must be a string, got %T", key, v)
	}
	return s, nil
}

func strList(m map[string]any, key string) ([]string, bool, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, false, nil
	}
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...), true, nil
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, true, errors.Newf(errors.CodeValidation, "%s entries must be strings, got %T", key, item)
			}
			out = append(out, s)
		}
		return out, true, nil
	default:
		return nil, true, errors.Newf(errors.CodeValidation, "%s must be a list, got %T", key, v)
	}
}

func boolOr(m map[string]any, key string, def bool) (bool, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, errors.Newf(errors.CodeValidation, "%s must be a boolean, got %T", key, v)
	}
	return b, nil
}

func colorOr(m map[string]any, key string, def color.NRGBA) (color.NRGBA, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return def, nil
	}
	return generator.ParseColor(v)
}

func quote(s string) string { return `"` + s + `"` }

// message returns the human part of a coded error.
func message(err error) string {
	var e *errors.Error
	if errors.As(err, &e) {
		if e.Err != nil {
			return e.Message + ": " + e.Err.Error()
		}
		return e.Message
	}
	return err.Error()
}
