// validator.go: Pre-render checks and human-readable overlay summaries.
package template

import (
	"fmt"
	"os"
	"strings"

	"github.com/xob0t/ReelStencil/internal/pkg/errors"
	"github.com/xob0t/ReelStencil/pkg/transform"
)

// CheckAssets reports image files that do not exist. Returns warnings
// (never fatal errors): the renderer skips those layers on its own.
func CheckAssets(overlays []Overlay) []Warning {
	var warnings []Warning
	missing := func(index int, path string) {
		if path == "" || path == transform.WhiteFrame {
			return
		}
		if _, err := os.Stat(path); err != nil {
			warnings = append(warnings, Warning{
				Index:   index,
				Code:    errors.CodeNotFound,
				Message: fmt.Sprintf("image %q not found, layer will be skipped", path),
			})
		}
	}

	for _, o := range overlays {
		if o.Image != nil {
			missing(o.Index, o.Image.Path)
		}
		if o.Stack != nil {
			if len(o.Stack.Paths) == 0 {
				warnings = append(warnings, Warning{Index: o.Index, Code: errors.CodeOverlaySkipped, Message: "image_stack has no images"})
			}
			for _, p := range o.Stack.Paths {
				missing(o.Index, p)
			}
		}
	}
	return warnings
}

// Describe returns a human-readable listing of overlays and warnings.
func Describe(overlays []Overlay, warnings []Warning) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Overlays: %d\n", len(overlays))
	for _, o := range overlays {
		fmt.Fprintf(&b, "\n  [%d] %s  %.2fs → %.2fs  at %s\n", o.Index, o.Kind, o.Start, o.End(), o.Position)
		if o.Scale != 1 || o.Rotation != 0 || o.Opacity != 1 {
			fmt.Fprintf(&b, "    %-12s scale %g, rotation %g°, opacity %g\n", "transform:", o.Scale, o.Rotation, o.Opacity)
		}
		if o.Width != nil || o.Height != nil {
			fmt.Fprintf(&b, "    %-12s %s × %s (%s)\n", "size:", dimString(o.Width), dimString(o.Height), o.Fit)
		}
		if o.Image != nil {
			fmt.Fprintf(&b, "    %-12s %s\n", "image:", o.Image.Path)
		}
		if o.Stack != nil {
			fmt.Fprintf(&b, "    %-12s %d images, ±%g°\n", "stack:", len(o.Stack.Paths), o.Stack.RotationRange)
		}
		if o.Text != nil {
			mode := "static"
			if o.Text.Animate {
				mode = fmt.Sprintf("animated (fade %gs, delay %gs)", o.Text.FadeDuration, o.Text.CharDelay)
			}
			fmt.Fprintf(&b, "    %-12s %q, %s\n", "text:", o.Text.Text, mode)
		}
	}

	if len(warnings) > 0 {
		fmt.Fprintf(&b, "\nWarnings: %d\n", len(warnings))
		for _, w := range warnings {
			fmt.Fprintf(&b, "  - %s\n", w)
		}
	}
	return b.String()
}

func dimString(v *float64) string {
	if v == nil {
		return "auto"
	}
	if *v <= 1 {
		return fmt.Sprintf("%g%%", *v*100)
	}
	return fmt.Sprintf("%gpx", *v)
}
