// Package generator provides the media I/O of the render engine: decoding
// the background video into RGBA frames and encoding composited frames.
//
// The output format is inferred from the file extension:
//   - ".avi" → pure-Go MJPEG AVI writer (video only, no ffmpeg needed)
//   - anything else → ffmpeg (libx264 + aac by default, audio taken from the
//     background video)
package generator

import (
	"context"
	"image"
	"math"
	"path/filepath"
	"strings"
)

// VideoInfo describes a decoded video stream. It is the container reference
// for every ratio-based overlay dimension.
type VideoInfo struct {
	Width    int
	Height   int
	FPS      float64
	Duration float64 // seconds
	HasAudio bool
	// FrameRate is the exact rate as reported by the prober ("30000/1001").
	// Empty when only FPS is known.
	FrameRate string
}

// Size returns the frame size as a point.
func (i VideoInfo) Size() image.Point {
	return image.Pt(i.Width, i.Height)
}

// FrameCount is the number of frames covering Duration at FPS.
func (i VideoInfo) FrameCount() int {
	if i.FPS <= 0 || i.Duration <= 0 {
		return 0
	}
	return int(math.Round(i.Duration * i.FPS))
}

// Source yields decoded background frames in presentation order.
type Source interface {
	Info() VideoInfo
	// ReadFrame decodes the next frame into dst, which must be Width×Height.
	// It returns io.EOF after the last frame.
	ReadFrame(dst *image.RGBA) error
	Close() error
}

// Sink consumes composited frames. Close finalizes the output file and
// reports encoder failures.
type Sink interface {
	WriteFrame(img *image.RGBA) error
	Close() error
}

// Opener opens background videos and creates output sinks.
type Opener interface {
	Open(ctx context.Context, path string) (Source, error)
	Create(ctx context.Context, path string, info VideoInfo, audioFrom string) (Sink, error)
}

// Config holds encoder and tool settings.
type Config struct {
	FFmpeg      string // ffmpeg binary (default "ffmpeg")
	FFprobe     string // ffprobe binary (default "ffprobe")
	VideoCodec  string // default "libx264"
	AudioCodec  string // default "aac"
	Preset      string // encoder preset (default "medium")
	CRF         int    // constant rate factor (default 23)
	Threads     int    // encoder worker threads (default 4)
	JPEGQuality int    // MJPEG quality for .avi output (default 95)
}

// Media implements Opener on top of ffmpeg and the AVI writer.
type Media struct {
	cfg Config
}

// New creates a Media with defaults filled in.
func New(cfg Config) *Media {
	if cfg.FFmpeg == "" {
		cfg.FFmpeg = "ffmpeg"
	}
	if cfg.FFprobe == "" {
		cfg.FFprobe = "ffprobe"
	}
	if cfg.VideoCodec == "" {
		cfg.VideoCodec = "libx264"
	}
	if cfg.AudioCodec == "" {
		cfg.AudioCodec = "aac"
	}
	if cfg.Preset == "" {
		cfg.Preset = "medium"
	}
	if cfg.CRF <= 0 {
		cfg.CRF = 23
	}
	cfg.Threads = max(cfg.Threads, 1)
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = 95
	}
	return &Media{cfg: cfg}
}

// Open probes and starts decoding the video at path.
func (m *Media) Open(ctx context.Context, path string) (Source, error) {
	info, err := m.Probe(ctx, path)
	if err != nil {
		return nil, err
	}
	src, err := m.openDecoder(ctx, path, info, -1)
	if err != nil {
		return nil, err
	}
	return src, nil
}

// Create starts an encoder writing to path. The format is inferred from the
// extension; audioFrom names the file whose audio track is carried over.
func (m *Media) Create(ctx context.Context, path string, info VideoInfo, audioFrom string) (Sink, error) {
	var (
		sink Sink
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".avi":
		sink, err = CreateAVI(path, info, m.cfg.JPEGQuality)
	default:
		sink, err = m.openEncoder(ctx, path, info, audioFrom)
	}
	if err != nil {
		return nil, err
	}
	return sink, nil
}

var _ Opener = (*Media)(nil)
