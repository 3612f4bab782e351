package template

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xob0t/ReelStencil/internal/pkg/errors"
	"github.com/xob0t/ReelStencil/pkg/transform"
)

func TestCheckAssets(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "a.png")
	if err := os.WriteFile(present, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	missing := filepath.Join(dir, "b.png")

	overlays := []Overlay{
		{Index: 0, Kind: KindImage, Image: &ImageSpec{Path: present}},
		{Index: 1, Kind: KindImage, Image: &ImageSpec{Path: transform.WhiteFrame}},
		{Index: 2, Kind: KindStack, Stack: &StackSpec{Paths: []string{present, missing}}},
		{Index: 3, Kind: KindStack, Stack: &StackSpec{}},
		{Index: 4, Kind: KindText, Text: &TextSpec{Text: "hi"}},
	}

	got := CheckAssets(overlays)
	if len(got) != 2 {
		t.Fatalf("warnings = %v", got)
	}
	if got[0].Index != 2 || got[0].Code != errors.CodeNotFound || !strings.Contains(got[0].Message, "b.png") {
		t.Errorf("missing image warning = %+v", got[0])
	}
	if got[1].Index != 3 || got[1].Code != errors.CodeOverlaySkipped {
		t.Errorf("empty stack warning = %+v", got[1])
	}
}

func TestDescribe(t *testing.T) {
	width := 0.5
	overlays := []Overlay{
		{Index: 0, Kind: KindImage, Start: 1, Duration: 2, Scale: 1, Opacity: 1, Width: &width, Fit: transform.FitContain, Image: &ImageSpec{Path: "cover.png"}},
		{Index: 1, Kind: KindText, Scale: 1, Opacity: 0.5, Text: &TextSpec{Text: "Hello", Animate: true, FadeDuration: 0.1, CharDelay: 0.05}},
	}
	warnings := []Warning{{Index: 2, Code: errors.CodeOverlaySkipped, Message: "unknown type"}}

	out := Describe(overlays, warnings)
	for _, want := range []string{
		"Overlays: 2",
		"cover.png",
		"50% × auto",
		`"Hello", animated (fade 0.1s, delay 0.05s)`,
		"opacity 0.5",
		"Warnings: 1",
		"overlay 2: [OVERLAY_SKIPPED] unknown type",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("description missing %q:\n%s", want, out)
		}
	}
}
