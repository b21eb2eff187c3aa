// Command inpaint sends an image and mask to a running gimp-kandinsky server
// and writes the results as PNG layers, the way the GIMP plugin inserts them.
//
//	inpaint -image photo.png -mask selection.png -prompt "a red apple" -n 2
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sinvec/gimp-kandinsky/client"
	"github.com/sinvec/gimp-kandinsky/coordinator"
	"github.com/sinvec/gimp-kandinsky/core"
	"github.com/sinvec/gimp-kandinsky/jobstate"
	"github.com/sinvec/gimp-kandinsky/logging"
	"github.com/sinvec/gimp-kandinsky/pixelbuf"
)

const defaultConfigPath = "inpaint.yaml"

type options struct {
	configPath string
	imagePath  string
	maskPath   string
	prompt     string
	originX    int
	originY    int
	verbose    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, opts, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return core.ExitCodeSuccess
		}
		fmt.Fprintf(stderr, "inpaint: %v\n", err)
		return core.ExitCodeConfig
	}

	level := zapcore.WarnLevel
	if opts.verbose {
		level = zapcore.DebugLevel
	}
	logger, err := logging.NewLogger(opts.verbose, filepath.Join(os.TempDir(), "kandinsky-inpaint.log"),
		logging.WithConsole(zapcore.AddSync(stderr)),
		logging.WithFileConfig(logging.FileWriterConfig{MaxSizeMB: 5, MaxBackups: 1, MaxAgeDays: 7}),
		logging.WithLevel(level))
	if err != nil {
		fmt.Fprintf(stderr, "inpaint: %v\n", err)
		return core.ExitCodeError
	}
	defer logger.Sync()

	job, err := buildJob(cfg, opts)
	if err != nil {
		fmt.Fprintf(stderr, "inpaint: %v\n", err)
		return core.ExitCodeError
	}

	sink, err := client.NewFileLayerSink(cfg.Output.Dir)
	if err != nil {
		fmt.Fprintf(stderr, "inpaint: %v\n", err)
		return core.ExitCodeError
	}

	bar := newProgressPrinter(stdout)
	session := client.NewSession(client.New(cfg.Server.URL, nil), client.SessionConfig{
		PollInterval:     cfg.Poll.Interval,
		Timeout:          cfg.Server.Timeout,
		ResultRetries:    cfg.Poll.ResultRetries,
		ResultRetryDelay: cfg.Poll.ResultRetryDelay,
		OnProgress:       bar.update,
	}, logger.Zap())

	n, err := session.Run(ctx, job, sink)
	bar.done()
	if err != nil {
		color.New(color.FgRed).Fprintf(stderr, "✗ %s\n", describe(err))
		logger.Debug("Session failed", zap.Error(err))
		return core.ExitCodeError
	}

	ok := color.New(color.FgGreen, color.Bold)
	ok.Fprintf(stdout, "✓ %d layer(s) written\n", n)
	dim := color.New(color.FgHiBlack)
	for _, l := range sink.Layers() {
		dim.Fprintf(stdout, "  %s at (%d,%d)\n", l.Path, l.Bounds.Min.X, l.Bounds.Min.Y)
	}
	return core.ExitCodeSuccess
}

// parseArgs loads the YAML config and applies flags over it.
func parseArgs(args []string, stderr io.Writer) (*Config, options, error) {
	var opts options
	fs := flag.NewFlagSet("inpaint", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.configPath, "config", defaultConfigPath, "YAML config file")
	fs.StringVar(&opts.imagePath, "image", "", "source image (png, jpeg, gif, bmp, tiff, webp)")
	fs.StringVar(&opts.maskPath, "mask", "", "mask image; white marks the area to repaint")
	fs.StringVar(&opts.prompt, "prompt", "", "text prompt")
	fs.IntVar(&opts.originX, "x", 0, "layer x offset")
	fs.IntVar(&opts.originY, "y", 0, "layer y offset")
	fs.BoolVar(&opts.verbose, "v", false, "verbose logging")

	server := fs.String("server", "", "server URL (overrides config)")
	priorSteps := fs.Int("prior-steps", -1, "prior steps (overrides config)")
	decoderSteps := fs.Int("decoder-steps", -1, "decoder steps (overrides config)")
	guidance := fs.Float64("cgs", -1, "guidance scale (overrides config)")
	images := fs.Int("n", 0, "number of images (overrides config)")
	out := fs.String("out", "", "output directory (overrides config)")

	if err := fs.Parse(args); err != nil {
		return nil, opts, err
	}

	explicit := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicit = true
		}
	})
	cfg, err := LoadConfig(opts.configPath, explicit)
	if err != nil {
		return nil, opts, err
	}

	if *server != "" {
		cfg.Server.URL = *server
	}
	if *priorSteps >= 0 {
		cfg.Generation.PriorSteps = *priorSteps
	}
	if *decoderSteps >= 0 {
		cfg.Generation.DecoderSteps = *decoderSteps
	}
	if *guidance >= 0 {
		cfg.Generation.GuidanceScale = *guidance
	}
	if *images > 0 {
		cfg.Generation.ImageNumber = *images
	}
	if *out != "" {
		cfg.Output.Dir = *out
	}

	if opts.imagePath == "" || opts.maskPath == "" {
		return nil, opts, errors.New("-image and -mask are required")
	}
	return cfg, opts, cfg.Validate()
}

// buildJob reads the image and mask and assembles the request.
func buildJob(cfg *Config, opts options) (client.Job, error) {
	img, err := loadImage(opts.imagePath)
	if err != nil {
		return client.Job{}, err
	}
	mask, err := loadImage(opts.maskPath)
	if err != nil {
		return client.Job{}, err
	}

	b := img.Bounds()
	maskBuf, err := maskBuffer(mask, b.Dx(), b.Dy())
	if err != nil {
		return client.Job{}, err
	}
	src, hasAlpha := sourceBuffer(img)

	return client.Job{
		Request: coordinator.InpaintRequest{
			Prompt:                opts.prompt,
			Image:                 pixelbuf.Encode(src),
			Mask:                  pixelbuf.Encode(maskBuf),
			HasAlpha:              hasAlpha,
			Width:                 b.Dx(),
			Height:                b.Dy(),
			PriorSteps:            cfg.Generation.PriorSteps,
			DecoderSteps:          cfg.Generation.DecoderSteps,
			GuidanceScale:         cfg.Generation.GuidanceScale,
			ImageNumber:           cfg.Generation.ImageNumber,
			NegativePriorPrompt:   cfg.Generation.NegativePriorPrompt,
			NegativeDecoderPrompt: cfg.Generation.NegativeDecoderPrompt,
		},
		Origin: image.Pt(opts.originX, opts.originY),
	}, nil
}

func describe(err error) string {
	switch {
	case errors.Is(err, client.ErrBusy):
		return "the server is busy with another job, try again shortly"
	case errors.Is(err, client.ErrBlocked):
		return "the server holds a result nobody collected"
	case errors.Is(err, client.ErrNoResult):
		return "the job finished without a result; check the server log"
	case errors.Is(err, client.ErrTimeout):
		return "timed out waiting for the job"
	}
	return err.Error()
}

// progressPrinter redraws a one-line progress bar.
type progressPrinter struct {
	w     io.Writer
	drawn bool
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w}
}

const barWidth = 30

func (p *progressPrinter) update(fraction float64, progress jobstate.ProgressVector) {
	filled := int(fraction * barWidth)
	if filled > barWidth {
		filled = barWidth
	}
	fmt.Fprint(p.w, "\r")
	color.New(color.FgCyan).Fprintf(p.w, "[%-*s]", barWidth, strings.Repeat("#", filled))
	fmt.Fprintf(p.w, " %3.0f%%  prior %d+%d  decoder %d",
		fraction*100,
		progress[jobstate.StageImageEmbeds], progress[jobstate.StageNegativeEmbeds],
		progress[jobstate.StageDecoder])
	p.drawn = true
}

func (p *progressPrinter) done() {
	if p.drawn {
		fmt.Fprintln(p.w)
	}
}
