package template

import (
	"github.com/xob0t/ReelStencil/internal/pkg/errors"
)

// AssignImages hands local image paths to overlays that lack them. Paths go
// in order to image overlays without an image_path first; what is left goes
// to the first image_stack without image_paths. Image overlays still
// without a path lose their image: the overlay is dropped, or kept as text
// only when it also carries text. The input slice is not modified.
func AssignImages(overlays []Overlay, paths []string) ([]Overlay, []Warning) {
	remaining := append([]string(nil), paths...)
	out := make([]Overlay, 0, len(overlays))
	var warnings []Warning

	for _, o := range overlays {
		if o.Image != nil && o.Image.Path == "" {
			if len(remaining) > 0 {
				o.Image = &ImageSpec{Path: remaining[0]}
				remaining = remaining[1:]
			}
		}
		out = append(out, o)
	}

	for i := range out {
		if len(remaining) == 0 {
			break
		}
		if s := out[i].Stack; s != nil && len(s.Paths) == 0 {
			out[i].Stack = &StackSpec{Paths: remaining, RotationRange: s.RotationRange}
			remaining = nil
		}
	}

	kept := out[:0]
	for _, o := range out {
		if o.Image == nil || o.Image.Path != "" {
			kept = append(kept, o)
			continue
		}
		w := Warning{Index: o.Index, Code: errors.CodeOverlaySkipped, Message: "no image available for image overlay", Dropped: true}
		if o.Text != nil {
			o.Image = nil
			w.Message += "; keeping its text"
			kept = append(kept, o)
		}
		warnings = append(warnings, w)
	}
	return kept, warnings
}
