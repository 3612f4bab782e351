package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
)

func TestVarFlag(t *testing.T) {
	var v varFlag
	for _, s := range []string{"runner=Jane Doe", "bib = 42", "category", "empty="} {
		if err := v.Set(s); err != nil {
			t.Fatalf("Set(%q): %v", s, err)
		}
	}
	if err := v.Set("=x"); err == nil {
		t.Error("expected error for empty name")
	}

	want := map[string]any{"runner": "Jane Doe", "bib": " 42", "category": nil, "empty": ""}
	for k, w := range want {
		got, ok := v[k]
		if !ok || got != w {
			t.Errorf("%s = %v (%v), want %v", k, got, ok, w)
		}
	}
	if v.String() != "bib,category,empty,runner" {
		t.Errorf("String() = %q", v.String())
	}
}

func TestJobFlagsLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job.json")
	doc := `{
		"video_path": "bg.mp4",
		"template_vars": {"runner": "Kim", "category": "5K"},
		"overlays": {"overlays": [{"text": "Runner: ${runner}\nCategory: ${category}", "duration": 2}]}
	}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	var jf jobFlags
	jf.register(fs)
	if err := fs.Parse([]string{"--video", "other.mp4", "--var", "category", path}); err != nil {
		t.Fatal(err)
	}

	job, overlays, warnings, cleanup, err := jf.load(fs)
	defer cleanup()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if job.VideoPath != "other.mp4" {
		t.Errorf("video = %q", job.VideoPath)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v", warnings)
	}
	if got := overlays[0].Text.Text; got != "Runner: Kim" {
		t.Errorf("text = %q", got)
	}
}

func TestJobFlagsRequireJob(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	var jf jobFlags
	jf.register(fs)
	_ = fs.Parse(nil)
	if _, _, _, cleanup, err := jf.load(fs); err == nil {
		t.Error("expected error without a job")
	} else {
		cleanup()
	}
}
