package transform

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	rserrors "github.com/xob0t/ReelStencil/internal/pkg/errors"
)

func intp(v int) *int { return &v }

func TestApplyOpacityIsMultiplicative(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for i := range src.Pix {
		src.Pix[i] = 128 // premultiplied alpha 128
	}

	out := ApplyOpacity(src, 0.5)
	if got := out.RGBAAt(1, 1).A; got != 64 {
		t.Errorf("alpha = %d, want 64", got)
	}
	if src.Pix[3] != 128 {
		t.Error("input was mutated")
	}

	transparent := image.NewRGBA(image.Rect(0, 0, 1, 1))
	if got := ApplyOpacity(transparent, 0.7).RGBAAt(0, 0).A; got != 0 {
		t.Errorf("transparent pixel became %d", got)
	}
}

func TestFitModes(t *testing.T) {
	src := Solid(400, 200, color.White)

	tests := []struct {
		name   string
		w, h   *int
		mode   FitMode
		wantW  int
		wantH  int
		within bool // only check the result fits inside the box
	}{
		{"stretch both", intp(100), intp(100), FitStretch, 100, 100, false},
		{"stretch width only", intp(100), nil, FitStretch, 100, 200, false},
		{"contain wide", intp(100), intp(100), FitContain, 100, 50, false},
		{"contain width only", intp(200), nil, FitContain, 200, 100, false},
		{"contain height only", nil, intp(50), FitContain, 100, 50, false},
		{"cover square", intp(100), intp(100), FitCover, 100, 100, false},
		{"cover tall", intp(90), intp(300), FitCover, 90, 300, false},
		{"contain odd", intp(333), intp(77), FitContain, 333, 77, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fit(src, tt.w, tt.h, tt.mode).Bounds()
			if tt.within {
				if got.Dx() > tt.wantW || got.Dy() > tt.wantH {
					t.Errorf("size %v exceeds box %dx%d", got.Size(), tt.wantW, tt.wantH)
				}
				return
			}
			if got.Dx() != tt.wantW || got.Dy() != tt.wantH {
				t.Errorf("size = %v, want %dx%d", got.Size(), tt.wantW, tt.wantH)
			}
		})
	}
}

func TestContainNeverExceedsCoverAlwaysFills(t *testing.T) {
	sizes := []image.Point{{640, 480}, {37, 91}, {300, 7}, {3, 3}}
	boxes := []image.Point{{100, 100}, {1, 50}, {257, 13}, {108, 192}}

	for _, s := range sizes {
		src := Solid(s.X, s.Y, color.Black)
		for _, b := range boxes {
			c := Fit(src, intp(b.X), intp(b.Y), FitContain).Bounds()
			if c.Dx() > b.X || c.Dy() > b.Y {
				t.Errorf("contain %v in %v = %v", s, b, c.Size())
			}
			v := Fit(src, intp(b.X), intp(b.Y), FitCover).Bounds()
			if v.Size() != b {
				t.Errorf("cover %v in %v = %v", s, b, v.Size())
			}
		}
	}
}

func TestParseFitMode(t *testing.T) {
	tests := []struct {
		in   string
		want FitMode
		ok   bool
	}{
		{"", FitStretch, true},
		{"cover", FitCover, true},
		{"Contain", FitContain, true},
		{"fill", FitContain, false},
	}
	for _, tt := range tests {
		got, ok := ParseFitMode(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseFitMode(%q) = %v, %v", tt.in, got, ok)
		}
	}
}

func TestRotate(t *testing.T) {
	src := Solid(40, 10, color.White)

	r90 := Rotate(src, 90)
	if r90.Bounds().Size() != image.Pt(10, 40) {
		t.Errorf("90° size = %v", r90.Bounds().Size())
	}

	r45 := Rotate(src, 45)
	if r45.Bounds().Dx() != 36 || r45.Bounds().Dy() != 36 {
		t.Errorf("45° size = %v", r45.Bounds().Size())
	}
	if a := r45.RGBAAt(0, 0).A; a != 0 {
		t.Errorf("expanded corner alpha = %d, want 0", a)
	}
	if a := r45.RGBAAt(18, 18).A; a != 255 {
		t.Errorf("center alpha = %d, want 255", a)
	}

	if got := Rotate(src, 360).Bounds().Size(); got != image.Pt(40, 10) {
		t.Errorf("360° size = %v", got)
	}
}

func TestRotateIsClockwise(t *testing.T) {
	// A red pixel column on the left edge ends up on the top edge after a
	// clockwise quarter turn.
	src := Solid(20, 10, color.Transparent)
	for y := 0; y < 10; y++ {
		src.Set(0, y, color.RGBA{255, 0, 0, 255})
		src.Set(1, y, color.RGBA{255, 0, 0, 255})
	}
	out := Rotate(src, 90)
	if a := out.RGBAAt(5, 0).A; a == 0 {
		t.Error("expected left edge to move to the top")
	}
	if a := out.RGBAAt(5, out.Bounds().Dy()-1).A; a != 0 {
		t.Error("bottom edge should be empty")
	}
}

func TestMatAndFullCanvas(t *testing.T) {
	src := Solid(10, 10, color.Black)

	m := Mat(src, 5, color.White)
	if m.Bounds().Size() != image.Pt(20, 20) {
		t.Fatalf("mat size = %v", m.Bounds().Size())
	}
	if m.RGBAAt(0, 0) != (color.RGBA{255, 255, 255, 255}) || m.RGBAAt(10, 10) != (color.RGBA{0, 0, 0, 255}) {
		t.Error("mat pixels wrong")
	}

	c := FullCanvas(src, image.Pt(30, 20), color.NRGBA{0, 0, 255, 10})
	if c.Bounds().Size() != image.Pt(30, 20) {
		t.Fatalf("canvas size = %v", c.Bounds().Size())
	}
	if c.RGBAAt(0, 0) != (color.RGBA{0, 0, 255, 255}) {
		t.Errorf("canvas not opaque: %v", c.RGBAAt(0, 0))
	}
	if c.RGBAAt(15, 10) != (color.RGBA{0, 0, 0, 255}) {
		t.Error("image not centered")
	}
}

func TestPipelineOverrideWinsOverScale(t *testing.T) {
	pl := NewPipeline(nil)
	w := 0.5
	out := pl.Apply(Solid(100, 100, color.White), Params{
		Scale:     3,
		Opacity:   1,
		Width:     &w,
		Fit:       FitStretch,
		Container: image.Pt(400, 300),
	})
	if got := out.Bounds().Size(); got != image.Pt(200, 100) {
		t.Errorf("size = %v, want 200x100", got)
	}
}

func TestPipelineOrder(t *testing.T) {
	pl := NewPipeline(nil)
	white := color.NRGBA{255, 255, 255, 255}
	bg := color.NRGBA{0, 0, 0, 255}

	src := Solid(10, 10, color.Black)
	out := pl.Apply(src, Params{Scale: 2, Opacity: 0.5, Mat: &white, MatInset: 5, Rotation: 90, Container: image.Pt(100, 100)})
	if got := out.Bounds().Size(); got != image.Pt(30, 30) {
		t.Errorf("scaled+matted size = %v", got)
	}
	if a := out.RGBAAt(0, 0).A; a != 127 {
		t.Errorf("mat alpha after opacity = %d", a)
	}

	full := pl.Apply(src, Params{Opacity: 1, Background: &bg, Container: image.Pt(64, 48)})
	if got := full.Bounds().Size(); got != image.Pt(64, 48) {
		t.Errorf("background size = %v", got)
	}
}

func TestWhiteFrame(t *testing.T) {
	pl := NewPipeline(nil)
	h := 0.5
	img := pl.NewWhiteFrame(Params{Opacity: 1, Height: &h, Container: image.Pt(80, 60)})
	if got := img.Bounds().Size(); got != image.Pt(80, 30) {
		t.Errorf("size = %v", got)
	}
	if img.RGBAAt(3, 3) != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("pixel = %v", img.RGBAAt(3, 3))
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	src.SetNRGBA(1, 1, color.NRGBA{255, 0, 0, 128})
	if err := png.Encode(f, src); err != nil {
		t.Fatal(err)
	}
	f.Close()

	img, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if img.Bounds().Size() != image.Pt(3, 2) {
		t.Errorf("size = %v", img.Bounds().Size())
	}
	if a := img.RGBAAt(1, 1).A; a != 128 {
		t.Errorf("alpha = %d", a)
	}

	_, err = Load(filepath.Join(dir, "missing.png"))
	if !errors.Is(err, os.ErrNotExist) || !rserrors.IsCode(err, rserrors.CodeOverlaySkipped) {
		t.Errorf("missing file error = %v", err)
	}
}
