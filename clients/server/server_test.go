package server

import (
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xob0t/ReelStencil/internal/pkg/errors"
	"github.com/xob0t/ReelStencil/pkg/compositor"
	"github.com/xob0t/ReelStencil/pkg/generator"
)

type stubMedia struct {
	openErr error
}

type stubSource struct {
	info generator.VideoInfo
	n    int
}

func (s *stubSource) Info() generator.VideoInfo { return s.info }

func (s *stubSource) ReadFrame(dst *image.RGBA) error {
	if s.n >= s.info.FrameCount() {
		return io.EOF
	}
	s.n++
	return nil
}

func (s *stubSource) Close() error { return nil }

type stubSink struct{ path string }

func (s *stubSink) WriteFrame(*image.RGBA) error { return nil }
func (s *stubSink) Close() error                 { return os.WriteFile(s.path, []byte("video"), 0o644) }

func (m *stubMedia) Open(ctx context.Context, path string) (generator.Source, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	return &stubSource{info: generator.VideoInfo{Width: 64, Height: 36, FPS: 10, Duration: 3}}, nil
}

func (m *stubMedia) Create(ctx context.Context, path string, info generator.VideoInfo, audioFrom string) (generator.Sink, error) {
	return &stubSink{path: path}, nil
}

func newTestServer(media *stubMedia) *httptest.Server {
	s := New(Options{Engine: compositor.New(media, compositor.Options{})})
	return httptest.NewServer(s.Routes())
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeEnvelope(t *testing.T, resp *http.Response) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return env
}

func TestHealth(t *testing.T) {
	ts := newTestServer(&stubMedia{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestRejectsBadRequests(t *testing.T) {
	ts := newTestServer(&stubMedia{})
	defer ts.Close()

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		code   errors.Code
	}{
		{"bad json", "/render", "{", 400, errors.CodeValidation},
		{"no video", "/render", `{"overlays": []}`, 400, errors.CodeValidation},
		{"no overlays", "/preview", `{"video_path": "bg.mp4"}`, 400, errors.CodeValidation},
		{"no output", "/render", `{"video_path": "bg.mp4", "overlays": []}`, 400, errors.CodeValidation},
		{"bad document", "/inspect", `{"video_path": "bg.mp4", "overlays": "not json"}`, 400, errors.CodeFatalInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, ts.URL+tt.path, tt.body)
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			if env := decodeEnvelope(t, resp); env.Error.Code != string(tt.code) {
				t.Errorf("code = %q, want %q", env.Error.Code, tt.code)
			}
		})
	}
}

func TestRender(t *testing.T) {
	ts := newTestServer(&stubMedia{})
	defer ts.Close()

	out := filepath.Join(t.TempDir(), "reel.mp4")
	body, _ := json.Marshal(map[string]any{
		"video_path":    "bg.mp4",
		"output_path":   out,
		"template_vars": map[string]any{"name": "Ana", "category": nil},
		"overlays": map[string]any{"overlays": []any{
			map[string]any{"text": "${name}\nCategory: ${category}", "duration": 2},
			map[string]any{"type": "image", "duration": 1},
		}},
	})

	resp := post(t, ts.URL+"/render", string(body))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %+v", resp.StatusCode, decodeEnvelope(t, resp))
	}

	var got jobResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Result == nil || got.Result.OutputPath != out || got.Result.Frames != 30 || got.Result.Layers != 1 {
		t.Errorf("result = %+v", got.Result)
	}
	if len(got.Warnings) != 1 {
		t.Errorf("warnings = %v", got.Warnings)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("output missing: %v", err)
	}
}

func TestRenderFatalBackground(t *testing.T) {
	ts := newTestServer(&stubMedia{openErr: errors.FatalInput("stub.open", nil, "corrupt video")})
	defer ts.Close()

	out := filepath.Join(t.TempDir(), "reel.mp4")
	resp := post(t, ts.URL+"/render", `{"video_path": "bad.mp4", "output_path": "`+out+`", "overlays": []}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if env := decodeEnvelope(t, resp); env.Error.Code != string(errors.CodeFatalInput) {
		t.Errorf("code = %q", env.Error.Code)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("output should not exist: %v", err)
	}
}

func TestPreview(t *testing.T) {
	ts := newTestServer(&stubMedia{})
	defer ts.Close()

	resp := post(t, ts.URL+"/preview", `{"video_path": "bg.mp4", "at": 1, "overlays": [{"text": "hi", "duration": 2}]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q", ct)
	}
	if resp.Header.Get("X-Reel-Layers") != "1" {
		t.Errorf("layers header = %q", resp.Header.Get("X-Reel-Layers"))
	}
	img, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Size() != (image.Point{64, 36}) {
		t.Errorf("preview size = %v", img.Bounds().Size())
	}
}

func TestInspect(t *testing.T) {
	ts := newTestServer(&stubMedia{})
	defer ts.Close()

	resp := post(t, ts.URL+"/inspect", `{"video_path": "bg.mp4", "overlays": [{"image_path": "/missing/a.png", "duration": 2}]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var got jobResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got.Overlays, "/missing/a.png") {
		t.Errorf("description = %q", got.Overlays)
	}
	if len(got.Warnings) != 1 || !strings.Contains(got.Warnings[0], string(errors.CodeNotFound)) {
		t.Errorf("warnings = %v", got.Warnings)
	}
}
