package compositor

import (
	"context"
	"image"
	"io"

	"golang.org/x/image/draw"

	"github.com/xob0t/ReelStencil/internal/pkg/errors"
	"github.com/xob0t/ReelStencil/pkg/generator"
)

// stream copies every background frame from src to sink with the active
// layers drawn on top. Frame n is shown at n/fps seconds.
func stream(ctx context.Context, src generator.Source, sink generator.Sink, layers []*layer, info generator.VideoInfo) (int, error) {
	const op = "compositor.stream"

	frame := image.NewRGBA(image.Rectangle{Max: info.Size()})
	n := 0
	for ; ; n++ {
		if err := ctx.Err(); err != nil {
			return n, errors.WrapWithCode(err, errors.CodeInternal, op, "render cancelled")
		}

		err := src.ReadFrame(frame)
		if err == io.EOF {
			break
		}
		if err != nil {
			return n, errors.FatalInput(op, err, "decode background frame")
		}

		compose(frame, layers, float64(n)/info.FPS)

		if err := sink.WriteFrame(frame); err != nil {
			return n, encodeErr(op, err, "write frame")
		}
	}

	if n == 0 {
		return 0, errors.FatalInput(op, nil, "background produced no frames")
	}
	return n, nil
}

// compose draws the layers active at t onto frame, in order, with
// Porter-Duff over.
func compose(frame *image.RGBA, layers []*layer, t float64) {
	for _, l := range layers {
		if !l.active(t) {
			continue
		}
		img := l.frame(t)
		r := img.Rect.Sub(img.Rect.Min).Add(l.origin)
		draw.Draw(frame, r, img, img.Rect.Min, draw.Over)
	}
}

// encodeErr keeps the code of an already coded sink error and classes
// anything else as an encode failure.
func encodeErr(op string, err error, msg string) error {
	var e *errors.Error
	if errors.As(err, &e) {
		return errors.Wrap(err, op, msg)
	}
	return errors.Encode(op, err, msg)
}

func countActive(layers []*layer, t float64) int {
	n := 0
	for _, l := range layers {
		if l.active(t) {
			n++
		}
	}
	return n
}
