package transform

import (
	"image"
	"image/color"

	"github.com/xob0t/ReelStencil/internal/pkg/logger"
	"github.com/xob0t/ReelStencil/pkg/geometry"
)

// DefaultMatInset is the mat border width used when none is configured.
const DefaultMatInset = 20

// WhiteFrame is the image_path sentinel that asks for a generated white
// rectangle instead of a file.
const WhiteFrame = "WHITE_FRAME"

// Params are the per-overlay transform parameters. Opacity 1 is fully
// opaque and 0 is invisible, so callers must set it; Scale 0 is treated
// as 1.
type Params struct {
	Scale    float64
	Rotation float64 // degrees, clockwise
	Opacity  float64

	// Width and Height are ratio-or-pixel descriptors resolved against
	// Container. Either one disables Scale.
	Width, Height *float64
	Fit           FitMode

	// Mat draws a border of MatInset pixels around the fitted image before
	// rotation.
	Mat      *color.NRGBA
	MatInset int

	// Background places the result centered on an opaque canvas the size
	// of Container.
	Background *color.NRGBA

	Container image.Point
}

// Override reports whether a width or height descriptor is set.
func (p Params) Override() bool {
	return p.Width != nil || p.Height != nil
}

// Target resolves the width/height descriptors to pixels.
func (p Params) Target() (w, h *int) {
	if p.Width != nil {
		v := geometry.ResolveDim(*p.Width, p.Container.X)
		w = &v
	}
	if p.Height != nil {
		v := geometry.ResolveDim(*p.Height, p.Container.Y)
		h = &v
	}
	return w, h
}

// Pipeline runs the fixed transform order: scale or fit, mat, rotate,
// opacity, background.
type Pipeline struct {
	log *logger.Logger
}

// NewPipeline returns a pipeline logging to log. A nil log discards.
func NewPipeline(log *logger.Logger) *Pipeline {
	if log == nil {
		log = logger.Discard()
	}
	return &Pipeline{log: log.WithComponent("transform")}
}

// Apply transforms src. src is never modified.
func (pl *Pipeline) Apply(src *image.RGBA, p Params) *image.RGBA {
	img := src
	b := img.Bounds()

	if p.Override() {
		w, h := p.Target()
		img = Fit(img, w, h, p.Fit)
	} else if p.Scale > 0 && p.Scale != 1 {
		img = Scale(img, p.Scale)
	}

	if p.Mat != nil {
		inset := p.MatInset
		if inset <= 0 {
			inset = DefaultMatInset
		}
		img = Mat(img, inset, *p.Mat)
	}

	if p.Rotation != 0 {
		img = Rotate(img, p.Rotation)
	}

	if p.Opacity < 1 {
		img = ApplyOpacity(img, p.Opacity)
	}

	if p.Background != nil {
		img = FullCanvas(img, p.Container, *p.Background)
	}

	if img == src {
		img = clone(src)
	}

	pl.log.Debug("image transformed",
		"from", b.Size().String(),
		"to", img.Bounds().Size().String(),
		"fit", string(p.Fit),
		"rotation", p.Rotation,
		"opacity", p.Opacity,
	)
	return img
}

// NewWhiteFrame builds the WHITE_FRAME image: a white rectangle the size of
// the container unless width/height are given, then rotated and faded like
// any other image.
func (pl *Pipeline) NewWhiteFrame(p Params) *image.RGBA {
	w, h := p.Container.X, p.Container.Y
	tw, th := p.Target()
	if tw != nil {
		w = *tw
	}
	if th != nil {
		h = *th
	}

	img := Solid(w, h, color.White)
	if p.Rotation != 0 {
		img = Rotate(img, p.Rotation)
	}
	if p.Opacity < 1 {
		img = ApplyOpacity(img, p.Opacity)
	}
	return img
}
