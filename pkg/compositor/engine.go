// Package compositor renders overlay timelines onto a background video.
//
// A render opens the background, prepares one layer per overlay content
// (image, every stack image, text), then streams frames from decoder to
// encoder, drawing the layers active at each frame time in list order.
// Per-overlay problems drop the affected layer and are reported in
// Result.Dropped; only background and encoder failures abort the render.
package compositor

import (
	"context"
	"fmt"
	"image"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/xob0t/ReelStencil/internal/pkg/errors"
	"github.com/xob0t/ReelStencil/internal/pkg/logger"
	"github.com/xob0t/ReelStencil/pkg/generator"
	"github.com/xob0t/ReelStencil/pkg/template"
	"github.com/xob0t/ReelStencil/pkg/text"
	"github.com/xob0t/ReelStencil/pkg/transform"
)

// Options configures an Engine. Zero values pick sensible defaults.
type Options struct {
	// Workers bounds parallel layer preparation. Values below 1 mean 1.
	Workers int
	// MatInset is the stack mat width used when an overlay sets none.
	MatInset int
	// Seed fixes stack rotations. 0 draws a fresh seed per render.
	Seed uint64
	// TempDir holds partial outputs. Empty uses the output's directory so
	// the final rename never crosses filesystems.
	TempDir string

	Log      *logger.Logger
	Pipeline *transform.Pipeline
	Fonts    *text.FontManager
}

// Engine renders overlay lists. It is safe for concurrent use; every render
// owns its buffers.
type Engine struct {
	media    generator.Opener
	opts     Options
	pipeline *transform.Pipeline
	raster   *text.Rasterizer
	log      *logger.Logger
}

// New creates an engine reading and writing video through media.
func New(media generator.Opener, opts Options) *Engine {
	if opts.Log == nil {
		opts.Log = logger.Discard()
	}
	if opts.Pipeline == nil {
		opts.Pipeline = transform.NewPipeline(opts.Log)
	}
	if opts.Fonts == nil {
		opts.Fonts = text.NewFontManager(text.FontOptions{Log: opts.Log})
	}
	opts.Workers = max(opts.Workers, 1)
	if opts.MatInset <= 0 {
		opts.MatInset = transform.DefaultMatInset
	}

	return &Engine{
		media:    media,
		opts:     opts,
		pipeline: opts.Pipeline,
		raster:   text.NewRasterizer(opts.Fonts),
		log:      opts.Log.WithComponent("compositor"),
	}
}

// Drop records one overlay, or one layer of it, left out of the render.
type Drop struct {
	Index  int         `json:"index"`
	Layer  string      `json:"layer"`
	Code   errors.Code `json:"code"`
	Reason string      `json:"reason"`
}

func (d Drop) String() string {
	return fmt.Sprintf("overlay %d (%s): [%s] %s", d.Index, d.Layer, d.Code, d.Reason)
}

// Result describes a finished render.
type Result struct {
	OutputPath string        `json:"output_path"`
	Width      int           `json:"width"`
	Height     int           `json:"height"`
	Duration   float64       `json:"duration"`
	FPS        float64       `json:"fps"`
	Frames     int           `json:"frames"`
	Layers     int           `json:"layers"`
	Dropped    []Drop        `json:"dropped,omitempty"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Render composites overlays onto the video at videoPath and writes the
// result to outputPath. The output only appears at outputPath once encoding
// has finished; on error nothing is left behind.
func (e *Engine) Render(ctx context.Context, videoPath string, overlays []template.Overlay, outputPath string) (*Result, error) {
	const op = "compositor.render"
	began := time.Now()
	log := e.log.FromContext(ctx)

	src, err := e.media.Open(ctx, videoPath)
	if err != nil {
		return nil, fatal(op, err, "open background "+videoPath)
	}
	defer src.Close()

	info := src.Info()
	if err := checkInfo(info); err != nil {
		return nil, err
	}
	log.Info("render started",
		"video", videoPath,
		"size", info.Size().String(),
		"fps", info.FPS,
		"duration", info.Duration,
		"overlays", len(overlays),
	)

	layers, drops, err := e.prepare(ctx, info, overlays)
	if err != nil {
		return nil, err
	}

	tmp, err := e.tempPath(outputPath)
	if err != nil {
		return nil, err
	}
	ok := false
	defer func() {
		if !ok {
			os.Remove(tmp)
		}
	}()

	sink, err := e.media.Create(ctx, tmp, info, videoPath)
	if err != nil {
		return nil, encodeErr(op, err, "create output")
	}
	frames, err := stream(ctx, src, sink, layers, info)
	if cerr := sink.Close(); err == nil && cerr != nil {
		err = encodeErr(op, cerr, "finalize output")
	}
	if err != nil {
		return nil, err
	}

	if err := os.Rename(tmp, outputPath); err != nil {
		return nil, errors.Encode(op, err, "move output into place")
	}
	ok = true

	res := &Result{
		OutputPath: outputPath,
		Width:      info.Width,
		Height:     info.Height,
		Duration:   info.Duration,
		FPS:        info.FPS,
		Frames:     frames,
		Layers:     len(layers),
		Dropped:    drops,
		Elapsed:    time.Since(began),
	}
	log.Info("render finished",
		"output", outputPath,
		"frames", frames,
		"layers", len(layers),
		"dropped", len(drops),
		"elapsed", res.Elapsed.Round(time.Millisecond).String(),
	)
	return res, nil
}

// FrameGrabber is implemented by openers that can seek straight to a frame.
type FrameGrabber interface {
	GrabFrame(ctx context.Context, path string, at float64) (*image.RGBA, generator.VideoInfo, error)
}

// Snapshot renders the single composite frame shown at time at. Openers
// implementing FrameGrabber seek directly; others are read up to at.
func (e *Engine) Snapshot(ctx context.Context, videoPath string, overlays []template.Overlay, at float64) (*image.RGBA, *Result, error) {
	const op = "compositor.snapshot"
	began := time.Now()

	frame, info, err := e.grab(ctx, videoPath, at)
	if err != nil {
		return nil, nil, err
	}

	layers, drops, err := e.prepare(ctx, info, overlays)
	if err != nil {
		return nil, nil, err
	}
	if frame.Rect.Size() != info.Size() {
		return nil, nil, errors.FatalInput(op, nil, fmt.Sprintf("frame %v does not match %v", frame.Rect.Size(), info.Size()))
	}
	compose(frame, layers, at)

	return frame, &Result{
		Width:    info.Width,
		Height:   info.Height,
		Duration: info.Duration,
		FPS:      info.FPS,
		Frames:   1,
		Layers:   countActive(layers, at),
		Dropped:  drops,
		Elapsed:  time.Since(began),
	}, nil
}

func (e *Engine) grab(ctx context.Context, videoPath string, at float64) (*image.RGBA, generator.VideoInfo, error) {
	const op = "compositor.snapshot"

	if g, ok := e.media.(FrameGrabber); ok {
		frame, info, err := g.GrabFrame(ctx, videoPath, at)
		if err != nil {
			return nil, info, fatal(op, err, "grab frame")
		}
		return frame, info, checkInfo(info)
	}

	src, err := e.media.Open(ctx, videoPath)
	if err != nil {
		return nil, generator.VideoInfo{}, fatal(op, err, "open background "+videoPath)
	}
	defer src.Close()

	info := src.Info()
	if err := checkInfo(info); err != nil {
		return nil, info, err
	}
	if at < 0 || at >= info.Duration {
		return nil, info, errors.FatalInput(op, nil, fmt.Sprintf("time %.3fs outside video (%.3fs)", at, info.Duration))
	}

	frame := image.NewRGBA(image.Rectangle{Max: info.Size()})
	target := int(at * info.FPS)
	for i := 0; i <= target; i++ {
		if err := src.ReadFrame(frame); err != nil {
			if i == 0 {
				return nil, info, errors.FatalInput(op, err, "no frames decoded")
			}
			break
		}
	}
	return frame, info, nil
}

// tempPath reserves a partial-output file next to outputPath (or in
// TempDir) with the same extension, so format inference still works.
func (e *Engine) tempPath(outputPath string) (string, error) {
	dir := e.opts.TempDir
	if dir == "" {
		dir = filepath.Dir(outputPath)
	}
	f, err := os.CreateTemp(dir, ".reel-partial-*"+filepath.Ext(outputPath))
	if err != nil {
		return "", errors.Encode("compositor.render", err, "create temporary output")
	}
	name := f.Name()
	f.Close()
	return name, nil
}

// seed returns the stack rotation seed for one render.
func (e *Engine) seed() uint64 {
	if e.opts.Seed != 0 {
		return e.opts.Seed
	}
	return rand.Uint64()
}

func checkInfo(info generator.VideoInfo) error {
	const op = "compositor.open"
	switch {
	case info.Width <= 0 || info.Height <= 0:
		return errors.FatalInput(op, nil, fmt.Sprintf("invalid background size %dx%d", info.Width, info.Height))
	case info.FPS <= 0:
		return errors.FatalInput(op, nil, "background has no frame rate")
	case info.Duration <= 0:
		return errors.FatalInput(op, nil, "background has zero duration")
	}
	return nil
}

// fatal keeps coded errors from the opener and marks anything else as a
// fatal input problem.
func fatal(op string, err error, msg string) error {
	if errors.IsFatal(err) && errors.GetCode(err) != errors.CodeInternal {
		return errors.Wrap(err, op, msg)
	}
	return errors.FatalInput(op, err, msg)
}
