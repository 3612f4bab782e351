// ReelStencil renders personalized video reels: images, image stacks and
// (animated) text composited onto a background video.
//
// Usage:
//
//	reelstencil render --job <file> [options]
//	reelstencil preview --job <file> --at <sec> -o frame.png
//	reelstencil inspect --job <file>
//	reelstencil init
//	reelstencil serve [--addr :8080]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/xob0t/ReelStencil/clients/server"
	"github.com/xob0t/ReelStencil/internal/config"
	"github.com/xob0t/ReelStencil/internal/pkg/logger"
	"github.com/xob0t/ReelStencil/pkg/compositor"
	"github.com/xob0t/ReelStencil/pkg/generator"
	"github.com/xob0t/ReelStencil/pkg/template"
	"github.com/xob0t/ReelStencil/pkg/text"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "render":
		err = runRender(ctx, os.Args[2:])
	case "preview":
		err = runPreview(ctx, os.Args[2:])
	case "inspect":
		err = runInspect(os.Args[2:])
	case "init":
		err = runInit(os.Args[2:])
	case "serve":
		err = runServe(ctx, os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		// Default: render mode (all flags on root).
		err = runRender(ctx, os.Args[1:])
	}
	if err != nil {
		fatal(err)
	}
}

// ── Shared setup ──

type app struct {
	cfg    *config.Config
	log    *logger.Logger
	engine *compositor.Engine
}

// engineFlags are the flags shared by every command that renders.
type engineFlags struct {
	configPath string
	workers    int
	seed       uint64
	logLevel   string
}

func (f *engineFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.configPath, "config", "", "Config file (default: $XDG_CONFIG_HOME/reelstencil/config.toml)")
	fs.IntVar(&f.workers, "workers", 0, "Parallel layer preparation workers (default: from config)")
	fs.Uint64Var(&f.seed, "seed", 0, "Seed for image_stack rotations (0: random)")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
}

func newApp(f engineFlags) (*app, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if f.workers > 0 {
		cfg.Render.Workers = f.workers
	}
	if f.seed != 0 {
		cfg.Render.Seed = f.seed
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}

	log := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Output:      os.Stderr,
		ServiceName: "reelstencil",
	})

	media := generator.New(generator.Config{
		FFmpeg:     cfg.Encoder.FFmpeg,
		FFprobe:    cfg.Encoder.FFprobe,
		VideoCodec: cfg.Encoder.VideoCodec,
		AudioCodec: cfg.Encoder.AudioCodec,
		Preset:     cfg.Encoder.Preset,
		CRF:        cfg.Encoder.CRF,
		Threads:    cfg.Encoder.Threads,
	})

	fonts := text.NewFontManager(text.FontOptions{
		Default:     cfg.Fonts.Default,
		SearchPaths: cfg.Fonts.SearchPaths,
		Log:         log,
	})

	engine := compositor.New(media, compositor.Options{
		Workers:  cfg.Render.Workers,
		MatInset: cfg.Render.MatInset,
		Seed:     cfg.Render.Seed,
		TempDir:  cfg.Render.TempDir,
		Log:      log,
		Fonts:    fonts,
	})

	return &app{cfg: cfg, log: log, engine: engine}, nil
}

// jobFlags select and adjust a job document.
type jobFlags struct {
	job    string
	video  string
	policy string
	vars   varFlag
}

func (f *jobFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.job, "job", "", "Job document (.json, .yaml) or .reel bundle")
	fs.StringVar(&f.video, "video", "", "Background video (overrides the job's video_path)")
	fs.StringVar(&f.policy, "policy", "drop_lines", "Missing variables: drop_lines or replace")
	fs.Var(&f.vars, "var", "Template variable name=value (repeatable; a bare name is null)")
}

// load reads the job, applies flag overrides and resolves its overlays.
// The cleanup function removes extracted bundle files.
func (f *jobFlags) load(fs *flag.FlagSet) (*template.Job, []template.Overlay, []template.Warning, func(), error) {
	path := f.job
	if path == "" && fs.NArg() > 0 {
		path = fs.Arg(0)
	}
	if path == "" {
		return nil, nil, nil, func() {}, fmt.Errorf("a job file is required (--job)")
	}

	var (
		job     *template.Job
		cleanup = func() {}
		err     error
	)
	if strings.EqualFold(filepath.Ext(path), template.BundleExt) {
		job, cleanup, err = template.LoadBundle(path)
	} else {
		job, err = template.LoadJob(path)
	}
	if err != nil {
		return nil, nil, nil, cleanup, err
	}

	if f.video != "" {
		job.VideoPath = f.video
	}
	if len(f.vars) > 0 {
		if job.TemplateVars == nil {
			job.TemplateVars = map[string]any{}
		}
		for k, v := range f.vars {
			job.TemplateVars[k] = v
		}
	}

	overlays, warnings, err := job.Resolve(template.ParsePolicy(f.policy))
	if err != nil {
		return nil, nil, nil, cleanup, err
	}
	warnings = append(warnings, template.CheckAssets(overlays)...)
	return job, overlays, warnings, cleanup, nil
}

// varFlag collects --var name=value pairs.
type varFlag map[string]any

func (v *varFlag) String() string {
	keys := make([]string, 0, len(*v))
	for k := range *v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}

func (v *varFlag) Set(s string) error {
	if *v == nil {
		*v = varFlag{}
	}
	name, value, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("invalid variable %q: want name=value", s)
	}
	if !ok {
		(*v)[name] = nil
		return nil
	}
	(*v)[name] = value
	return nil
}

func logWarnings(log *logger.Logger, warnings []template.Warning) {
	for _, w := range warnings {
		log.WithOverlay(w.Index).Warn(w.Message, "code", string(w.Code), "dropped", w.Dropped)
	}
}

// ── Commands ──

func runRender(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("render", flag.ExitOnError)

	var (
		ef     engineFlags
		jf     jobFlags
		output string
	)
	ef.register(fs)
	jf.register(fs)
	fs.StringVar(&output, "o", "", "Output video (overrides the job's output_path; .avi uses the built-in MJPEG writer)")
	fs.StringVar(&output, "output", "", "Output video")

	fs.Usage = printUsage
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(ef)
	if err != nil {
		return err
	}
	job, overlays, warnings, cleanup, err := jf.load(fs)
	defer cleanup()
	if err != nil {
		return err
	}
	if output != "" {
		job.OutputPath = output
	}
	if job.OutputPath == "" {
		return fmt.Errorf("output file is required (-o or output_path)")
	}
	logWarnings(a.log, warnings)

	fmt.Printf("Rendering: %s → %s (%d overlays)\n", job.VideoPath, job.OutputPath, len(overlays))
	res, err := a.engine.Render(ctx, job.VideoPath, overlays, job.OutputPath)
	if err != nil {
		return err
	}

	for _, d := range res.Dropped {
		fmt.Fprintf(os.Stderr, "Dropped: %s\n", d)
	}
	fmt.Printf("Done: %s (%d frames, %d layers, %d dropped, %s)\n",
		res.OutputPath, res.Frames, res.Layers, len(res.Dropped), res.Elapsed.Round(time.Millisecond))
	return nil
}

func runPreview(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("preview", flag.ExitOnError)

	var (
		ef     engineFlags
		jf     jobFlags
		output string
		at     float64
	)
	ef.register(fs)
	jf.register(fs)
	fs.StringVar(&output, "o", "preview.png", "Output PNG")
	fs.Float64Var(&at, "at", 0, "Time in seconds")

	fs.Usage = printUsage
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(ef)
	if err != nil {
		return err
	}
	job, overlays, warnings, cleanup, err := jf.load(fs)
	defer cleanup()
	if err != nil {
		return err
	}
	logWarnings(a.log, warnings)

	frame, res, err := a.engine.Snapshot(ctx, job.VideoPath, overlays, at)
	if err != nil {
		return err
	}
	if err := generator.WritePNG(output, frame); err != nil {
		return err
	}
	fmt.Printf("Done: %s (%.2fs, %d active layers)\n", output, at, res.Layers)
	return nil
}

func runInspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	var jf jobFlags
	jf.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	job, overlays, warnings, cleanup, err := jf.load(fs)
	defer cleanup()
	if err != nil {
		return err
	}

	fmt.Printf("Video:  %s\nOutput: %s\n\n", job.VideoPath, job.OutputPath)
	fmt.Print(template.Describe(overlays, warnings))
	return nil
}

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	var jobOut, configOut string
	fs.StringVar(&jobOut, "job", "job.json", "Output path for the sample job")
	fs.StringVar(&configOut, "config", "", "Also write the default config to this path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := os.WriteFile(jobOut, []byte(template.SampleJob()), 0644); err != nil {
		return fmt.Errorf("write job: %w", err)
	}
	created := []string{jobOut}

	if configOut != "" {
		if err := config.DefaultConfig().Save(configOut); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		created = append(created, configOut)
	}

	fmt.Printf("Created: %s\n", strings.Join(created, ", "))
	fmt.Printf("Run: reelstencil inspect --job %s\n", jobOut)
	return nil
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	var (
		ef     engineFlags
		addr   string
		policy string
	)
	ef.register(fs)
	fs.StringVar(&addr, "addr", "", "Listen address (default: from config)")
	fs.StringVar(&policy, "policy", "drop_lines", "Default substitution policy")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(ef)
	if err != nil {
		return err
	}
	if addr == "" {
		addr = a.cfg.Server.Addr
	}

	srv := server.New(server.Options{
		Engine: a.engine,
		Log:    a.log,
		Policy: template.ParsePolicy(policy),
	})
	return srv.Run(ctx, addr)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func printUsage() {
	fmt.Print(`ReelStencil: Overlay compositing for personalized video reels

USAGE:
    reelstencil render --job <file> [-o <video>] [options]
    reelstencil preview --job <file> --at <sec> [-o frame.png]
    reelstencil inspect --job <file>
    reelstencil serve [--addr :8080]
    reelstencil init [--job job.json] [--config config.toml]

JOB OPTIONS:
    --job <path>           Job document (.json, .yaml) or .reel bundle
    --video <path>         Override the background video
    --var name=value       Template variable (repeatable; bare name = null)
    --policy <name>        drop_lines (default) or replace

ENGINE OPTIONS:
    --config <path>        Config file (TOML)
    --workers <n>          Parallel layer preparation
    --seed <n>             Fixed seed for image_stack rotations
    --log-level <level>    debug, info, warn, error

OUTPUT:
    -o, --output <path>    Output video; .avi uses the built-in MJPEG writer,
                           other extensions are encoded with ffmpeg

EXAMPLES:
    reelstencil init
    reelstencil inspect --job job.json
    reelstencil render --job job.json --var runner="Jane Doe" -o reel.mp4
    reelstencil preview --job event.reel --at 9.5 -o frame.png
    reelstencil serve --addr :8080
`)
}
