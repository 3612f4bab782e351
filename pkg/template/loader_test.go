package template

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xob0t/ReelStencil/internal/pkg/errors"
)

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()
}

func TestLoadJobYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.yaml")
	doc := `
video_path: bg.mp4
output_path: out.mp4
template_vars:
  runner: Kim
  category: null
image_paths: [a.jpg]
overlays:
  overlays:
    - type: image
      duration: 3
      position: [0.1, 20]
    - type: text
      text: "Runner: ${runner}\nCategory: ${category}"
      start_time: 1
      duration: 2
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	job, err := LoadJob(path)
	if err != nil {
		t.Fatalf("LoadJob: %v", err)
	}
	if job.VideoPath != "bg.mp4" || job.OutputPath != "out.mp4" {
		t.Errorf("job = %+v", job)
	}

	overlays, warnings, err := job.Resolve(PolicyDropLines)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(overlays) != 2 || len(warnings) != 0 {
		t.Fatalf("overlays %d warnings %v", len(overlays), warnings)
	}
	if overlays[0].Image.Path != "a.jpg" {
		t.Errorf("image path = %q", overlays[0].Image.Path)
	}
	if got := overlays[1].Text.Text; got != "Runner: Kim" {
		t.Errorf("text = %q", got)
	}
}

func TestJobResolveStringifiedOverlays(t *testing.T) {
	job, err := ParseJob([]byte(`{
		"video_path": "v.mp4",
		"overlays": "{\"overlays\": [{\"text\": \"${name}\", \"duration\": 1}]}",
		"template_vars": {"name": "Lee"}
	}`), ".json")
	if err != nil {
		t.Fatal(err)
	}
	overlays, _, err := job.Resolve(PolicyReplace)
	if err != nil {
		t.Fatal(err)
	}
	if len(overlays) != 1 || overlays[0].Text.Text != "Lee" {
		t.Errorf("overlays = %+v", overlays)
	}
}

func TestJobResolveWithoutVars(t *testing.T) {
	tests := []struct {
		name string
		vars string
	}{
		{"no template_vars", ""},
		{"empty template_vars", `, "template_vars": {}`},
		{"unrelated vars", `, "template_vars": {"other": "x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job, err := ParseJob([]byte(`{
				"video_path": "v.mp4",
				"overlays": {"overlays": [{"type": "text", "text": "Hello\nCategory: ${category}", "duration": 1}]}`+tt.vars+`
			}`), ".json")
			if err != nil {
				t.Fatal(err)
			}
			overlays, _, err := job.Resolve(PolicyDropLines)
			if err != nil {
				t.Fatal(err)
			}
			if len(overlays) != 1 || overlays[0].Text.Text != "Hello" {
				t.Errorf("overlays = %+v", overlays)
			}
		})
	}
}

func TestLoadJobErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte("{"), 0o644)

	for _, p := range []string{bad, filepath.Join(dir, "missing.json")} {
		if _, err := LoadJob(p); !errors.IsCode(err, errors.CodeFatalInput) {
			t.Errorf("LoadJob(%s) = %v", p, err)
		}
	}
}

func TestLoadBundle(t *testing.T) {
	dir := t.TempDir()
	bundle := filepath.Join(dir, "event"+BundleExt)
	writeZip(t, bundle, map[string]string{
		"job.json": `{
			"video_path": "media/bg.mp4",
			"output_path": "out.mp4",
			"overlays": {"overlays": [
				{"image_path": "img/a.png", "duration": 1},
				{"image_paths": ["img/b.png", "/abs/c.png"], "duration": 2},
				{"image_path": "WHITE_FRAME", "duration": 1},
				{"text": "x", "duration": 1, "text_style": {"font": "fonts/f.ttf"}}
			]}
		}`,
		"img/a.png": "not really a png",
	})

	job, cleanup, err := LoadBundle(bundle)
	if err != nil {
		t.Fatalf("LoadBundle: %v", err)
	}

	base := filepath.Dir(job.VideoPath)
	if !strings.HasSuffix(job.VideoPath, filepath.Join("media", "bg.mp4")) || !filepath.IsAbs(job.VideoPath) {
		t.Errorf("video path = %q", job.VideoPath)
	}
	if job.OutputPath != "out.mp4" {
		t.Errorf("output path changed: %q", job.OutputPath)
	}

	overlays, _, err := job.Resolve(PolicyDropLines)
	if err != nil {
		t.Fatal(err)
	}
	root := filepath.Dir(base)
	if got := overlays[0].Image.Path; got != filepath.Join(root, "img", "a.png") {
		t.Errorf("image path = %q", got)
	}
	if _, err := os.Stat(overlays[0].Image.Path); err != nil {
		t.Errorf("extracted asset missing: %v", err)
	}
	if got := overlays[1].Stack.Paths; got[0] != filepath.Join(root, "img", "b.png") || got[1] != "/abs/c.png" {
		t.Errorf("stack paths = %q", got)
	}
	if overlays[2].Image.Path != "WHITE_FRAME" {
		t.Errorf("sentinel rewritten: %q", overlays[2].Image.Path)
	}
	if got := overlays[3].Text.Style.Font; got != filepath.Join(root, "fonts", "f.ttf") {
		t.Errorf("font = %q", got)
	}

	cleanup()
	if _, err := os.Stat(root); !os.IsNotExist(err) {
		t.Errorf("temp dir not removed: %v", err)
	}
}

func TestLoadBundleRejectsZipSlip(t *testing.T) {
	bundle := filepath.Join(t.TempDir(), "evil.reel")
	writeZip(t, bundle, map[string]string{
		"job.json":      `{"overlays": []}`,
		"../escape.txt": "x",
	})
	if _, _, err := LoadBundle(bundle); !errors.IsCode(err, errors.CodeFatalInput) {
		t.Errorf("expected fatal input error, got %v", err)
	}
}

func TestLoadBundleWithoutJob(t *testing.T) {
	bundle := filepath.Join(t.TempDir(), "empty.reel")
	writeZip(t, bundle, map[string]string{"readme.txt": "hi"})
	if _, _, err := LoadBundle(bundle); err == nil {
		t.Error("expected error for bundle without job document")
	}
}

func TestSampleJobParses(t *testing.T) {
	job, err := ParseJob([]byte(SampleJob()), ".json")
	if err != nil {
		t.Fatal(err)
	}
	overlays, warnings, err := job.Resolve(PolicyDropLines)
	if err != nil {
		t.Fatal(err)
	}
	if len(overlays) != 3 || len(warnings) != 0 {
		t.Fatalf("overlays %d warnings %v", len(overlays), warnings)
	}
	if strings.Contains(overlays[1].Text.Text, "Category") {
		t.Errorf("null category line kept: %q", overlays[1].Text.Text)
	}
	if len(overlays[2].Stack.Paths) != 3 {
		t.Errorf("stack got %d images", len(overlays[2].Stack.Paths))
	}
}
