// ffmpeg.go: Background decoding and final encoding through ffmpeg pipes.
// Frames cross the process boundary as raw RGBA so compositing stays in Go.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/xob0t/ReelStencil/internal/pkg/errors"
)

// probeOutput is the subset of `ffprobe -print_format json` we read.
type probeOutput struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
		Duration     string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe reads size, frame rate, duration and audio presence of a video.
// Any failure is a fatal input error.
func (m *Media) Probe(ctx context.Context, path string) (VideoInfo, error) {
	const op = "generator.probe"

	cmd := exec.CommandContext(ctx, m.cfg.FFprobe,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return VideoInfo{}, errors.FatalInput(op, err, "cannot probe "+path+": "+strings.TrimSpace(stderr.String()))
	}
	return parseProbe(out)
}

func parseProbe(data []byte) (VideoInfo, error) {
	const op = "generator.probe"

	var p probeOutput
	if err := json.Unmarshal(data, &p); err != nil {
		return VideoInfo{}, errors.FatalInput(op, err, "unreadable ffprobe output")
	}

	var info VideoInfo
	var streamDuration float64
	found := false
	for _, s := range p.Streams {
		switch s.CodecType {
		case "video":
			if found {
				continue
			}
			found = true
			info.Width, info.Height = s.Width, s.Height
			rate := s.AvgFrameRate
			if fps, ok := parseRate(rate); !ok || fps <= 0 {
				rate = s.RFrameRate
			}
			info.FPS, _ = parseRate(rate)
			info.FrameRate = rate
			streamDuration, _ = strconv.ParseFloat(s.Duration, 64)
		case "audio":
			info.HasAudio = true
		}
	}
	if !found {
		return VideoInfo{}, errors.FatalInput(op, nil, "no video stream")
	}

	info.Duration, _ = strconv.ParseFloat(p.Format.Duration, 64)
	if info.Duration <= 0 {
		info.Duration = streamDuration
	}

	switch {
	case info.Width <= 0 || info.Height <= 0:
		return VideoInfo{}, errors.FatalInput(op, nil, fmt.Sprintf("invalid frame size %dx%d", info.Width, info.Height))
	case info.FPS <= 0:
		return VideoInfo{}, errors.FatalInput(op, nil, "unknown frame rate")
	case info.Duration <= 0:
		return VideoInfo{}, errors.FatalInput(op, nil, "zero duration")
	}
	return info, nil
}

// parseRate parses "30000/1001" or "25".
func parseRate(s string) (float64, bool) {
	num, den, ok := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	if !ok {
		return n, true
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0, false
	}
	return n / d, true
}

func rateArg(info VideoInfo) string {
	if _, ok := parseRate(info.FrameRate); ok && info.FrameRate != "" {
		return info.FrameRate
	}
	return strconv.FormatFloat(info.FPS, 'f', -1, 64)
}

// ── Decoder ──

type ffmpegSource struct {
	info   VideoInfo
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr bytes.Buffer
	done   bool
}

// openDecoder starts ffmpeg emitting raw RGBA frames. A non-negative seek
// starts decoding at that timestamp.
func (m *Media) openDecoder(ctx context.Context, path string, info VideoInfo, seek float64) (*ffmpegSource, error) {
	args := []string{"-v", "error"}
	if seek >= 0 {
		args = append(args, "-ss", strconv.FormatFloat(seek, 'f', 3, 64))
	}
	args = append(args,
		"-i", path,
		"-an",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"pipe:1",
	)

	src := &ffmpegSource{info: info}
	src.cmd = exec.CommandContext(ctx, m.cfg.FFmpeg, args...)
	src.cmd.Stderr = &src.stderr

	stdout, err := src.cmd.StdoutPipe()
	if err != nil {
		return nil, errors.FatalInput("generator.decode", err, "stdout pipe")
	}
	src.stdout = stdout

	if err := src.cmd.Start(); err != nil {
		return nil, errors.FatalInput("generator.decode", err, "start "+m.cfg.FFmpeg)
	}
	return src, nil
}

func (s *ffmpegSource) Info() VideoInfo { return s.info }

func (s *ffmpegSource) ReadFrame(dst *image.RGBA) error {
	if s.done {
		return io.EOF
	}
	if dst.Rect.Dx() != s.info.Width || dst.Rect.Dy() != s.info.Height || dst.Stride != 4*s.info.Width {
		return fmt.Errorf("frame buffer %v does not match %dx%d", dst.Rect, s.info.Width, s.info.Height)
	}
	_, err := io.ReadFull(s.stdout, dst.Pix[:4*s.info.Width*s.info.Height])
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		s.done = true
		return io.EOF
	}
	return err
}

func (s *ffmpegSource) Close() error {
	if s.cmd.Process != nil && !s.done {
		_ = s.cmd.Process.Kill()
	}
	err := s.cmd.Wait()
	if s.done && err != nil {
		return fmt.Errorf("ffmpeg decode: %w: %s", err, strings.TrimSpace(s.stderr.String()))
	}
	return nil
}

// GrabFrame decodes the single frame shown at time at.
func (m *Media) GrabFrame(ctx context.Context, path string, at float64) (*image.RGBA, VideoInfo, error) {
	info, err := m.Probe(ctx, path)
	if err != nil {
		return nil, VideoInfo{}, err
	}
	if at < 0 || at >= info.Duration {
		return nil, info, errors.FatalInput("generator.grab", nil, fmt.Sprintf("time %.3fs outside video (%.3fs)", at, info.Duration))
	}

	src, err := m.openDecoder(ctx, path, info, at)
	if err != nil {
		return nil, info, err
	}
	defer src.Close()

	frame := image.NewRGBA(image.Rect(0, 0, info.Width, info.Height))
	if err := src.ReadFrame(frame); err != nil {
		return nil, info, errors.FatalInput("generator.grab", err, "no frame at "+strconv.FormatFloat(at, 'f', 3, 64))
	}
	return frame, info, nil
}

// ── Encoder ──

type ffmpegSink struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr bytes.Buffer
	size   int
	closed bool
}

// encoderArgs builds the ffmpeg command line for an encode.
func (m *Media) encoderArgs(path string, info VideoInfo, audioFrom string) []string {
	args := []string{
		"-y", "-v", "error",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", info.Width, info.Height),
		"-r", rateArg(info),
		"-i", "pipe:0",
	}

	withAudio := info.HasAudio && audioFrom != ""
	if withAudio {
		args = append(args, "-i", audioFrom, "-map", "0:v:0", "-map", "1:a:0?")
	}

	args = append(args,
		"-vf", "pad=ceil(iw/2)*2:ceil(ih/2)*2",
		"-c:v", m.cfg.VideoCodec,
		"-preset", m.cfg.Preset,
		"-crf", strconv.Itoa(m.cfg.CRF),
		"-pix_fmt", "yuv420p",
		"-threads", strconv.Itoa(m.cfg.Threads),
	)
	if withAudio {
		args = append(args, "-c:a", m.cfg.AudioCodec, "-shortest")
	} else {
		args = append(args, "-an")
	}
	return append(args, path)
}

func (m *Media) openEncoder(ctx context.Context, path string, info VideoInfo, audioFrom string) (*ffmpegSink, error) {
	const op = "generator.encode"

	sink := &ffmpegSink{size: 4 * info.Width * info.Height}
	sink.cmd = exec.CommandContext(ctx, m.cfg.FFmpeg, m.encoderArgs(path, info, audioFrom)...)
	sink.cmd.Stderr = &sink.stderr

	stdin, err := sink.cmd.StdinPipe()
	if err != nil {
		return nil, errors.Encode(op, err, "stdin pipe")
	}
	sink.stdin = stdin

	if err := sink.cmd.Start(); err != nil {
		return nil, errors.Encode(op, err, "start "+m.cfg.FFmpeg)
	}
	return sink, nil
}

func (s *ffmpegSink) WriteFrame(img *image.RGBA) error {
	if len(img.Pix) < s.size {
		return errors.Encode("generator.encode", fmt.Errorf("short frame: %d bytes", len(img.Pix)), "write frame")
	}
	if _, err := s.stdin.Write(img.Pix[:s.size]); err != nil {
		return errors.Encode("generator.encode", err, "write frame: "+strings.TrimSpace(s.stderr.String()))
	}
	return nil
}

func (s *ffmpegSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	_ = s.stdin.Close()
	if err := s.cmd.Wait(); err != nil {
		return errors.Encode("generator.encode", err, "ffmpeg: "+strings.TrimSpace(s.stderr.String()))
	}
	return nil
}
