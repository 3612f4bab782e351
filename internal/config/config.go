package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	Encoder EncoderConfig `toml:"encoder"`
	Render  RenderConfig  `toml:"render"`
	Fonts   FontConfig    `toml:"fonts"`
	Log     LogConfig     `toml:"log"`
	Server  ServerConfig  `toml:"server"`
}

type EncoderConfig struct {
	FFmpeg     string `toml:"ffmpeg"`
	FFprobe    string `toml:"ffprobe"`
	VideoCodec string `toml:"video_codec"`
	AudioCodec string `toml:"audio_codec"`
	Preset     string `toml:"preset"`
	CRF        int    `toml:"crf"`
	Threads    int    `toml:"threads"`
}

type RenderConfig struct {
	Workers  int    `toml:"workers"`
	MatInset int    `toml:"mat_inset"`
	TempDir  string `toml:"temp_dir"`
	// Seed fixes stack rotations; 0 picks a random seed per render.
	Seed uint64 `toml:"seed"`
}

type FontConfig struct {
	Default     string   `toml:"default"`
	SearchPaths []string `toml:"search_paths"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

func DefaultConfig() *Config {
	return &Config{
		Encoder: EncoderConfig{
			FFmpeg:     "ffmpeg",
			FFprobe:    "ffprobe",
			VideoCodec: "libx264",
			AudioCodec: "aac",
			Preset:     "medium",
			CRF:        23,
			Threads:    4,
		},
		Render: RenderConfig{
			Workers:  1,
			MatInset: 20,
		},
		Fonts: FontConfig{
			SearchPaths: []string{
				"/usr/share/fonts",
				"/usr/local/share/fonts",
				"/Library/Fonts",
				"/System/Library/Fonts",
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

func ConfigDir() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "reelstencil"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads path (or the default config path when empty), then applies
// environment overrides. Variables in a .env file in the working directory
// are loaded first without replacing ones already set. Missing files are
// not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		p, err := ConfigPath()
		if err == nil {
			path = p
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		case !os.IsNotExist(err):
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	cfg.applyEnv()
	cfg.normalize()
	return cfg, nil
}

func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(c)
}

func (c *Config) applyEnv() {
	c.Encoder.FFmpeg = env("REEL_FFMPEG", c.Encoder.FFmpeg)
	c.Encoder.FFprobe = env("REEL_FFPROBE", c.Encoder.FFprobe)
	c.Encoder.Threads = intEnv("REEL_THREADS", c.Encoder.Threads)
	c.Render.Workers = intEnv("REEL_WORKERS", c.Render.Workers)
	c.Render.TempDir = env("REEL_TEMP_DIR", c.Render.TempDir)
	c.Log.Level = env("LOG_LEVEL", c.Log.Level)
	c.Log.Format = env("LOG_FORMAT", c.Log.Format)
	c.Server.Addr = env("REEL_ADDR", c.Server.Addr)
	if dirs := env("REEL_FONT_DIRS", ""); dirs != "" {
		c.Fonts.SearchPaths = append(splitList(dirs), c.Fonts.SearchPaths...)
	}
}

func (c *Config) normalize() {
	c.Encoder.Threads = max(c.Encoder.Threads, 1)
	c.Render.Workers = max(c.Render.Workers, 1)
	if c.Render.MatInset < 0 {
		c.Render.MatInset = 0
	}
}

func env(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}

func intEnv(k string, def int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, string(os.PathListSeparator)) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
