package generator

import (
	"math"
	"slices"
	"strings"
	"testing"

	rserrors "github.com/xob0t/ReelStencil/internal/pkg/errors"
)

const probeJSON = `{
  "streams": [
    {"codec_type": "video", "width": 1080, "height": 1920, "r_frame_rate": "30/1", "avg_frame_rate": "30000/1001", "duration": "19.9"},
    {"codec_type": "audio"}
  ],
  "format": {"duration": "20.02"}
}`

func TestParseProbe(t *testing.T) {
	info, err := parseProbe([]byte(probeJSON))
	if err != nil {
		t.Fatalf("parseProbe: %v", err)
	}
	if info.Width != 1080 || info.Height != 1920 {
		t.Errorf("size = %dx%d", info.Width, info.Height)
	}
	if math.Abs(info.FPS-29.97) > 0.01 || info.FrameRate != "30000/1001" {
		t.Errorf("fps = %v (%s)", info.FPS, info.FrameRate)
	}
	if info.Duration != 20.02 || !info.HasAudio {
		t.Errorf("duration = %v audio = %v", info.Duration, info.HasAudio)
	}
}

func TestParseProbeFatal(t *testing.T) {
	tests := map[string]string{
		"garbage":       `not json`,
		"no video":      `{"streams":[{"codec_type":"audio"}],"format":{"duration":"3"}}`,
		"zero duration": `{"streams":[{"codec_type":"video","width":2,"height":2,"r_frame_rate":"25/1"}],"format":{}}`,
		"no rate":       `{"streams":[{"codec_type":"video","width":2,"height":2,"r_frame_rate":"0/0"}],"format":{"duration":"1"}}`,
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := parseProbe([]byte(in))
			if !rserrors.IsCode(err, rserrors.CodeFatalInput) {
				t.Errorf("expected fatal input error, got %v", err)
			}
		})
	}
}

func TestParseRate(t *testing.T) {
	for in, want := range map[string]float64{"25": 25, "50/2": 25, "24000/1001": 23.976} {
		got, ok := parseRate(in)
		if !ok || math.Abs(got-want) > 0.001 {
			t.Errorf("parseRate(%q) = %v, %v", in, got, ok)
		}
	}
	if _, ok := parseRate("1/0"); ok {
		t.Error("division by zero accepted")
	}
}

func TestEncoderArgs(t *testing.T) {
	m := New(Config{Threads: 4})
	info := VideoInfo{Width: 640, Height: 360, FPS: 25, FrameRate: "25/1", HasAudio: true}

	args := m.encoderArgs("out.mp4", info, "bg.mp4")
	joined := strings.Join(args, " ")
	for _, want := range []string{"-s 640x360", "-r 25/1", "-i bg.mp4", "-c:v libx264", "-c:a aac", "-threads 4", "-crf 23"} {
		if !strings.Contains(joined, want) {
			t.Errorf("missing %q in %s", want, joined)
		}
	}
	if args[len(args)-1] != "out.mp4" {
		t.Errorf("output not last: %v", args)
	}

	info.HasAudio = false
	args = m.encoderArgs("out.mp4", info, "bg.mp4")
	if slices.Contains(args, "bg.mp4") || !slices.Contains(args, "-an") {
		t.Errorf("silent background should not map audio: %v", args)
	}
}

func TestCreatePicksAVIByExtension(t *testing.T) {
	m := New(Config{})
	sink, err := m.Create(t.Context(), t.TempDir()+"/clip.AVI", VideoInfo{Width: 4, Height: 4, FPS: 10}, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer sink.Close()
	if _, ok := sink.(*AVIWriter); !ok {
		t.Errorf("expected *AVIWriter, got %T", sink)
	}
}
