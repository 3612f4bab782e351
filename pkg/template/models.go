// Package template turns job documents into typed overlay lists: variable
// substitution, parsing and validation, image assignment and bundle loading.
package template

import (
	"fmt"
	"image/color"

	"github.com/xob0t/ReelStencil/internal/pkg/errors"
	"github.com/xob0t/ReelStencil/pkg/geometry"
	"github.com/xob0t/ReelStencil/pkg/text"
	"github.com/xob0t/ReelStencil/pkg/transform"
)

// ── Job ──

// Job is one render request as supplied by the upstream workflow.
type Job struct {
	VideoPath  string `json:"video_path" yaml:"video_path"`
	OutputPath string `json:"output_path" yaml:"output_path"`
	// Overlays is the overlay document: {"overlays": [...]}, a bare list, or
	// either of those serialized as a JSON string.
	Overlays     any            `json:"overlays" yaml:"overlays"`
	TemplateVars map[string]any `json:"template_vars,omitempty" yaml:"template_vars,omitempty"`
	// ImagePaths are local images handed out to overlays without a path.
	ImagePaths []string `json:"image_paths,omitempty" yaml:"image_paths,omitempty"`
}

// ── Overlays ──

// Kind is the declared overlay type.
type Kind string

const (
	KindImage Kind = "image"
	KindStack Kind = "image_stack"
	KindText  Kind = "text"
)

// Overlay is one validated overlay descriptor. Image, Stack and Text are
// the content variants; a descriptor may carry an image variant and Text
// at the same time, contributing one layer for each.
type Overlay struct {
	// Index is the position in the source list, kept for drop reports.
	Index int
	Kind  Kind

	Start    float64
	Duration float64
	Position geometry.Position

	Scale    float64
	Rotation float64
	Opacity  float64

	// Width and Height are ratio-or-pixel descriptors.
	Width  *float64
	Height *float64
	Fit    transform.FitMode

	// BgColor is a full-canvas background for plain images and a mat for
	// stack images. MatWidth overrides the mat inset.
	BgColor  *color.NRGBA
	MatWidth int

	Image *ImageSpec
	Stack *StackSpec
	Text  *TextSpec
}

// End is Start + Duration.
func (o Overlay) End() float64 { return o.Start + o.Duration }

// Params returns the transform parameters shared by the overlay's image
// layers. Container is filled in by the renderer.
func (o Overlay) Params() transform.Params {
	return transform.Params{
		Scale:    o.Scale,
		Rotation: o.Rotation,
		Opacity:  o.Opacity,
		Width:    o.Width,
		Height:   o.Height,
		Fit:      o.Fit,
		MatInset: o.MatWidth,
	}
}

func (o Overlay) String() string {
	return fmt.Sprintf("#%d %s [%.2fs, %.2fs) at %s", o.Index, o.Kind, o.Start, o.End(), o.Position)
}

// ImageSpec is a single still image. Path may be the WHITE_FRAME sentinel.
type ImageSpec struct {
	Path string
}

// StackSpec is a sequence of images revealed one after another.
type StackSpec struct {
	Paths []string
	// RotationRange is the maximum random tilt in degrees, either way.
	RotationRange float64
}

// TextSpec is a text block.
type TextSpec struct {
	Text  string
	Style text.Style
	// MaxWidth is a ratio-or-pixel descriptor resolved against the video
	// width; nil leaves lines unbounded.
	MaxWidth *float64
	// Position overrides the overlay position for the text layer.
	Position *geometry.Position

	Animate      bool
	FadeDuration float64
	CharDelay    float64
}

// Defaults for animated text.
const (
	DefaultCharFade  = 0.1
	DefaultCharDelay = 0.05
)

// ── Warnings ──

// Warning describes an overlay problem that did not stop parsing. Dropped
// reports whether the overlay (or part of it) was removed.
type Warning struct {
	Index   int
	Code    errors.Code
	Message string
	Dropped bool
}

func (w Warning) String() string {
	if w.Index < 0 {
		return fmt.Sprintf("[%s] %s", w.Code, w.Message)
	}
	return fmt.Sprintf("overlay %d: [%s] %s", w.Index, w.Code, w.Message)
}
