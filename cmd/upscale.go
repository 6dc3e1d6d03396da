package cmd

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/ikawaha/tilescale/engine"
	"github.com/ikawaha/tilescale/imageio"
	"github.com/ikawaha/tilescale/model"
	"github.com/ikawaha/tilescale/resample"
)

const kernelNone = "none"

type upscaleOption struct {
	input       string
	output      string
	tile        int
	modelPath   string
	noisePath   string
	modelDir    string
	mode        string
	noise       int
	kernel      string
	scale       int
	padding     int
	parallel    int
	jobs        int
	tileTimeout time.Duration
	format      string
	quality     int
	verbose     bool
}

// NewUpscaleCmd upscales an image file.
func NewUpscaleCmd(ctx context.Context) *cobra.Command {
	opt := &upscaleOption{}
	cmd := &cobra.Command{
		Use:   "upscale",
		Short: "upscale an image",
		Long: "Upscales an image tile by tile. A waifu2x model is used when --model or --model-dir is given, " +
			"an interpolation kernel otherwise. Reads stdin and writes stdout when no files are given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("invalid argument: %v", args)
			}
			return runUpscale(ctx, cmd, opt)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opt.input, "input", "i", "", "input file (default stdin)")
	f.StringVarP(&opt.output, "output", "o", "", "output file (default stdout)")
	f.IntVar(&opt.tile, "tile", engine.DefaultTileSize, "tile size in source pixels")
	f.StringVar(&opt.modelPath, "model", "", "waifu2x scale model JSON, optionally .zst compressed")
	f.StringVar(&opt.noisePath, "noise-model", "", "waifu2x noise model JSON, optionally .zst compressed")
	f.StringVar(&opt.modelDir, "model-dir", "", "directory holding waifu2x model sets")
	f.StringVarP(&opt.mode, "mode", "m", "anime", "waifu2x mode with --model-dir, choose from 'anime' and 'photo'")
	f.IntVarP(&opt.noise, "noise", "n", 0, "noise reduction level 0 <= n <= 3 with --model-dir")
	f.StringVar(&opt.kernel, "kernel", resample.CatmullRom, fmt.Sprintf("interpolation kernel %v or %q", resample.Kernels(), kernelNone))
	f.IntVarP(&opt.scale, "scale", "s", 4, "scale multiplier")
	f.IntVar(&opt.padding, "padding", 10, "context margin in source pixels for interpolation kernels")
	f.IntVar(&opt.parallel, "parallel", runtime.NumCPU(), "number of tiles processed at once")
	f.IntVar(&opt.jobs, "jobs", 1, "goroutines per waifu2x convolution layer")
	f.DurationVar(&opt.tileTimeout, "tile-timeout", 0, "per-tile inference deadline, 0 for none")
	f.StringVar(&opt.format, "format", "", "output format png|jpeg|tiff|bmp (default from output extension, else png)")
	f.IntVar(&opt.quality, "quality", imageio.DefaultQuality, "jpeg quality")
	f.BoolVarP(&opt.verbose, "verbose", "v", false, "print tile progress to stderr")
	return cmd
}

func runUpscale(ctx context.Context, cmd *cobra.Command, opt *upscaleOption) error {
	format := opt.format
	if format == "" {
		format = imageio.FormatFromPath(opt.output, imageio.PNG)
	}
	format, err := imageio.ParseFormat(format)
	if err != nil {
		return err
	}
	m, err := buildModel(opt)
	if err != nil {
		return err
	}
	passes, err := passCount(opt.scale, m.Scale())
	if err != nil {
		return err
	}
	img, err := readInput(cmd.InOrStdin(), opt.input)
	if err != nil {
		return fmt.Errorf("input error: %w", err)
	}

	opts := []engine.Option{
		engine.TileSize(opt.tile),
		engine.Parallel(opt.parallel),
		engine.TileTimeout(opt.tileTimeout),
		engine.WithLogger(slog.Default()),
	}
	if opt.verbose {
		stderr := cmd.ErrOrStderr()
		opts = append(opts, engine.OnProgress(func(p engine.Progress) {
			fmt.Fprintf(stderr, "\x1b[2K\r%d/%d (%.1f%%)", p.Done, p.Total, float64(p.Done)/float64(p.Total)*100)
			if p.Done == p.Total {
				fmt.Fprintln(stderr)
			}
		}))
	}
	e, err := engine.New(m, opts...)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "upscale", "model", fmt.Sprintf("%T", m), "scale", m.Scale(), "padding", m.Padding(), "passes", passes)
	for i := 0; i < passes; i++ {
		rgba, err := e.ScaleUp(ctx, img)
		if err != nil {
			return fmt.Errorf("calc error: %w", err)
		}
		img = rgba
	}

	var w io.Writer = cmd.OutOrStdout()
	if opt.output != "" {
		fp, err := os.Create(opt.output)
		if err != nil {
			return fmt.Errorf("output file, %w", err)
		}
		defer fp.Close()
		w = fp
	}
	if err := imageio.Write(w, img, format, opt.quality); err != nil {
		return fmt.Errorf("output error: %w", err)
	}
	return nil
}

func buildModel(opt *upscaleOption) (engine.Model, error) {
	switch {
	case opt.modelPath != "" || opt.noisePath != "":
		set := &model.ModelSet{}
		if opt.modelPath != "" {
			m, err := model.LoadModelFile(opt.modelPath)
			if err != nil {
				return nil, fmt.Errorf("load scale model error: %w", err)
			}
			set.Scale2xModel = m
		}
		if opt.noisePath != "" {
			m, err := model.LoadModelFile(opt.noisePath)
			if err != nil {
				return nil, fmt.Errorf("load noise model error: %w", err)
			}
			set.NoiseModel = m
		}
		return model.NewWaifu2x(set, model.Jobs(opt.jobs))
	case opt.modelDir != "":
		mode, err := model.ParseMode(opt.mode)
		if err != nil {
			return nil, err
		}
		set, err := model.LoadModelSet(opt.modelDir, mode, opt.noise)
		if err != nil {
			return nil, err
		}
		return model.NewWaifu2x(set, model.Jobs(opt.jobs))
	case opt.kernel == kernelNone:
		return engine.Identity(), nil
	}
	return resample.New(opt.kernel, opt.scale, resample.Padding(opt.padding))
}

// passCount returns how many runs of a model enlarging by factor reach scale.
func passCount(scale, factor int) (int, error) {
	if scale < 1 {
		return 0, fmt.Errorf("invalid scale, %d < 1", scale)
	}
	if factor == 1 {
		if scale != 1 {
			return 0, fmt.Errorf("scale %d cannot be reached by a model that keeps the size", scale)
		}
		return 1, nil
	}
	n, total := 0, 1
	for total < scale {
		total *= factor
		n++
	}
	if total != scale || n == 0 {
		return 0, fmt.Errorf("scale %d is not a power of the model factor %d", scale, factor)
	}
	return n, nil
}

func readInput(stdin io.Reader, file string) (image.Image, error) {
	r := stdin
	if file != "" {
		fp, err := os.Open(file)
		if err != nil {
			return nil, err
		}
		defer fp.Close()
		r = fp
	}
	img, _, err := imageio.Read(r)
	return img, err
}
