package generator

import (
	"errors"
	"image/color"
	"testing"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want color.NRGBA
	}{
		{"hex6", "#FF8000", color.NRGBA{255, 128, 0, 255}},
		{"hex8", "#00000080", color.NRGBA{0, 0, 0, 128}},
		{"no hash", "ffffff", color.NRGBA{255, 255, 255, 255}},
		{"lower", "#0a0b0c", color.NRGBA{10, 11, 12, 255}},
		{"rgb tuple", []any{1.0, 2.0, 3.0}, color.NRGBA{1, 2, 3, 255}},
		{"rgba tuple", []any{1.0, 2.0, 3.0, 4.0}, color.NRGBA{1, 2, 3, 4}},
		{"int slice", []int{9, 8, 7}, color.NRGBA{9, 8, 7, 255}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseColor(tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseColorErrors(t *testing.T) {
	bad := []any{
		"#FFF",
		"#GGGGGG",
		"red",
		[]any{1.0, 2.0},
		[]any{1.0, 2.0, 300.0},
		[]any{1.5, 2.0, 3.0},
		[]any{"a", "b", "c"},
		42.0,
		nil,
	}
	for _, in := range bad {
		if _, err := ParseColor(in); !errors.Is(err, ErrInvalidColorFormat) {
			t.Errorf("ParseColor(%v): expected ErrInvalidColorFormat, got %v", in, err)
		}
	}
}

func TestHex(t *testing.T) {
	if got := Hex(color.NRGBA{255, 0, 16, 1}); got != "#FF001001" {
		t.Errorf("Hex = %s", got)
	}
}

func TestNewSolidImage(t *testing.T) {
	img := NewSolidImage(3, 2, color.NRGBA{10, 20, 30, 255})
	if img.Bounds().Dx() != 3 || img.Bounds().Dy() != 2 {
		t.Fatalf("bounds = %v", img.Bounds())
	}
	if got := img.RGBAAt(2, 1); got != (color.RGBA{10, 20, 30, 255}) {
		t.Errorf("pixel = %v", got)
	}
}
