package transform

import (
	"image"
	"math"
	"strings"
)

// FitMode reconciles an image's aspect ratio with a target box.
type FitMode string

const (
	// FitStretch resizes to the exact box, ignoring aspect ratio.
	FitStretch FitMode = "stretch"
	// FitContain keeps aspect ratio and stays inside the box.
	FitContain FitMode = "contain"
	// FitCover keeps aspect ratio, fills the box and crops the overflow.
	FitCover FitMode = "cover"
)

// ParseFitMode maps a fit_mode string to a FitMode. An empty string is
// stretch. Unknown values report false and fall back to contain.
func ParseFitMode(s string) (FitMode, bool) {
	switch FitMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", FitStretch:
		return FitStretch, true
	case FitContain:
		return FitContain, true
	case FitCover:
		return FitCover, true
	default:
		return FitContain, false
	}
}

// Fit resizes img toward a target box. A nil side is unconstrained: stretch
// keeps the current size on that side, contain and cover scale
// proportionally to the given side.
func Fit(img *image.RGBA, w, h *int, mode FitMode) *image.RGBA {
	if w == nil && h == nil {
		return clone(img)
	}

	b := img.Bounds()
	sw, sh := b.Dx(), b.Dy()

	if mode == FitStretch {
		tw, th := sw, sh
		if w != nil {
			tw = *w
		}
		if h != nil {
			th = *h
		}
		return Resize(img, tw, th)
	}

	var s float64
	switch {
	case w != nil && h != nil:
		rw := float64(*w) / float64(sw)
		rh := float64(*h) / float64(sh)
		if mode == FitCover {
			s = math.Max(rw, rh)
		} else {
			s = math.Min(rw, rh)
		}
	case w != nil:
		s = float64(*w) / float64(sw)
	default:
		s = float64(*h) / float64(sh)
	}

	nw := max(int(math.Round(float64(sw)*s)), 1)
	nh := max(int(math.Round(float64(sh)*s)), 1)

	if mode != FitCover || w == nil || h == nil {
		if w != nil {
			nw = min(nw, max(*w, 1))
		}
		if h != nil {
			nh = min(nh, max(*h, 1))
		}
		return Resize(img, nw, nh)
	}

	tw, th := max(*w, 1), max(*h, 1)
	nw, nh = max(nw, tw), max(nh, th)
	scaled := Resize(img, nw, nh)
	x := (nw - tw) / 2
	y := (nh - th) / 2
	return Crop(scaled, image.Rect(x, y, x+tw, y+th))
}
