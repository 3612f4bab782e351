package compositor

import (
	"context"
	"fmt"
	"image"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"

	"github.com/xob0t/ReelStencil/internal/pkg/errors"
	"github.com/xob0t/ReelStencil/pkg/generator"
	"github.com/xob0t/ReelStencil/pkg/geometry"
	"github.com/xob0t/ReelStencil/pkg/template"
	"github.com/xob0t/ReelStencil/pkg/text"
	"github.com/xob0t/ReelStencil/pkg/transform"
)

// layer is one time-boxed visual contribution to the composite. Static
// layers carry img; animated text carries anim and renders per frame.
type layer struct {
	overlay int
	name    string
	start   float64
	end     float64

	img    *image.RGBA
	origin image.Point

	anim     *text.Animation
	rotation float64
	settled  *image.RGBA // rotated final frame of anim
}

func (l *layer) active(t float64) bool {
	return t >= l.start && t < l.end
}

// frame returns the buffer to draw at absolute time t.
func (l *layer) frame(t float64) *image.RGBA {
	if l.anim == nil {
		return l.img
	}
	local := t - l.start
	if local >= l.anim.RevealTime() {
		return l.settled
	}
	return rotate(l.anim.Frame(local), l.rotation)
}

func rotate(img *image.RGBA, deg float64) *image.RGBA {
	if deg == 0 {
		return img
	}
	return transform.Rotate(img, deg)
}

// prepared is the outcome of one overlay's preparation.
type prepared struct {
	layers []*layer
	drops  []Drop
}

// prepare builds the layers of every overlay. Work runs on up to
// Options.Workers goroutines; the result keeps overlay list order.
func (e *Engine) prepare(ctx context.Context, info generator.VideoInfo, overlays []template.Overlay) ([]*layer, []Drop, error) {
	out := make([]prepared, len(overlays))
	seed := e.seed()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i := range overlays {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = e.prepareOverlay(info, overlays[i], seed)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, errors.WrapWithCode(err, errors.CodeInternal, "compositor.prepare", "layer preparation interrupted")
	}

	var (
		layers []*layer
		drops  []Drop
	)
	for _, p := range out {
		layers = append(layers, p.layers...)
		drops = append(drops, p.drops...)
	}
	return layers, drops, nil
}

// prepareOverlay turns one overlay into its layers. It never fails: every
// problem becomes a Drop and the rest of the overlay carries on.
func (e *Engine) prepareOverlay(info generator.VideoInfo, o template.Overlay, seed uint64) prepared {
	var p prepared
	log := e.log.WithOverlay(o.Index)

	drop := func(name string, err error) {
		code := errors.GetCode(err)
		if code == errors.CodeInternal {
			code = errors.CodeOverlaySkipped
		}
		d := Drop{Index: o.Index, Layer: name, Code: code, Reason: err.Error()}
		log.Warn("layer dropped", "layer", name, "code", string(code), "reason", d.Reason)
		p.drops = append(p.drops, d)
	}

	switch {
	case o.Duration <= 0:
		drop(string(o.Kind), errors.Newf(errors.CodeOverlaySkipped, "non-positive duration %g", o.Duration))
		return p
	case o.Start >= info.Duration:
		drop(string(o.Kind), errors.Newf(errors.CodeOverlaySkipped, "starts at %.2fs, after the video ends (%.2fs)", o.Start, info.Duration))
		return p
	}

	params := o.Params()
	params.Container = info.Size()

	switch {
	case o.Image != nil:
		l, err := e.imageLayer(o, params)
		if err != nil {
			drop("image", err)
		} else {
			p.layers = append(p.layers, l)
		}
	case o.Stack != nil:
		rng := rand.New(rand.NewPCG(seed, uint64(o.Index)))
		layers, errs := e.stackLayers(o, params, rng)
		p.layers = append(p.layers, layers...)
		for i, err := range errs {
			if err != nil {
				drop(fmt.Sprintf("stack[%d]", i), err)
			}
		}
	}

	if o.Text != nil {
		l, err := e.textLayer(o, info)
		if err != nil {
			drop("text", err)
		} else {
			p.layers = append(p.layers, l)
		}
	}

	log.Debug("overlay prepared", "overlay", o.String(), "layers", len(p.layers))
	return p
}

// imageLayer renders a single image. A bg_color puts the image on a
// full-frame canvas, which is then placed at the frame origin.
func (e *Engine) imageLayer(o template.Overlay, params transform.Params) (*layer, error) {
	var img *image.RGBA
	if o.Image.Path == transform.WhiteFrame {
		img = e.pipeline.NewWhiteFrame(params)
	} else {
		src, err := transform.Load(o.Image.Path)
		if err != nil {
			return nil, err
		}
		params.Background = o.BgColor
		img = e.pipeline.Apply(src, params)
	}

	l := &layer{overlay: o.Index, name: "image", start: o.Start, end: o.End(), img: img}
	if params.Background == nil {
		l.origin = geometry.Resolve(o.Position, params.Container, img.Rect.Size())
	}
	return l, nil
}

// stackLayers spreads the stack images evenly over the overlay duration:
// image i appears at start + i*duration/n and stays until the overlay ends.
// Each image gets its own tilt in [-range, +range] on top of the overlay
// rotation, and bg_color becomes a mat around it. errs[i] is set for
// images that could not be used.
func (e *Engine) stackLayers(o template.Overlay, params transform.Params, rng *rand.Rand) ([]*layer, []error) {
	paths := o.Stack.Paths
	if len(paths) == 0 {
		return nil, []error{errors.New(errors.CodeOverlaySkipped, "image stack has no images")}
	}

	step := o.Duration / float64(len(paths))
	params.Mat = o.BgColor
	if params.MatInset <= 0 {
		params.MatInset = e.opts.MatInset
	}

	var (
		layers []*layer
		errs   = make([]error, len(paths))
	)
	for i, path := range paths {
		// Draw the tilt before loading so a missing image does not shift
		// the rotations of the ones after it.
		tilt := 0.0
		if r := o.Stack.RotationRange; r > 0 {
			tilt = (rng.Float64()*2 - 1) * r
		}

		var img *image.RGBA
		ip := params
		ip.Rotation = o.Rotation + tilt
		if path == transform.WhiteFrame {
			img = e.pipeline.NewWhiteFrame(ip)
		} else {
			src, err := transform.Load(path)
			if err != nil {
				errs[i] = err
				continue
			}
			img = e.pipeline.Apply(src, ip)
		}

		layers = append(layers, &layer{
			overlay: o.Index,
			name:    fmt.Sprintf("stack[%d]", i),
			start:   o.Start + float64(i)*step,
			end:     o.End(),
			img:     img,
			origin:  geometry.Resolve(o.Position, params.Container, img.Rect.Size()),
		})
	}
	return layers, errs
}

// textLayer rasterizes the overlay text, static or animated, and rotates it
// as a whole. text_position overrides the overlay position.
func (e *Engine) textLayer(o template.Overlay, info generator.VideoInfo) (*layer, error) {
	ts := o.Text
	style := ts.Style
	if ts.MaxWidth != nil {
		style.MaxWidth = geometry.ResolveDim(*ts.MaxWidth, info.Width)
	}
	pos := o.Position
	if ts.Position != nil {
		pos = *ts.Position
	}

	l := &layer{overlay: o.Index, name: "text", start: o.Start, end: o.End()}
	var size image.Point
	if ts.Animate {
		anim, err := e.raster.Animate(ts.Text, style, ts.FadeDuration, ts.CharDelay)
		if err != nil {
			return nil, err
		}
		l.anim, l.rotation = anim, o.Rotation
		l.settled = rotate(anim.Final(), o.Rotation)
		size = l.settled.Rect.Size()
	} else {
		img, err := e.raster.Rasterize(ts.Text, style)
		if err != nil {
			return nil, err
		}
		l.img = rotate(img, o.Rotation)
		size = l.img.Rect.Size()
	}

	l.origin = geometry.Resolve(pos, info.Size(), size)
	return l, nil
}
