package model

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ikawaha/tilescale/engine"
)

// Option represents an option of waifu2x.
type Option func(w *Waifu2x) error

// Jobs sets the number of goroutines a single convolution layer is split into.
func Jobs(n int) Option {
	return func(w *Waifu2x) error {
		if n < 1 {
			return fmt.Errorf("jobs must be a positive integer, got %d", n)
		}
		w.jobs = n
		return nil
	}
}

type layer struct {
	weight       []float64
	bias         []float64
	nOutputPlane int
}

func layers(m Model) []layer {
	ret := make([]layer, 0, len(m))
	for _, p := range m {
		ret = append(ret, layer{
			weight:       flattenWeight(p),
			bias:         p.Bias,
			nOutputPlane: p.NOutputPlane,
		})
	}
	return ret
}

// Waifu2x runs the waifu2x convolutional networks on a tile.
// The optional noise model runs first at the source resolution, then the scale model doubles the tile.
type Waifu2x struct {
	scale []layer
	noise []layer
	jobs  int
}

var (
	_ engine.Model     = (*Waifu2x)(nil)
	_ engine.Reentrant = (*Waifu2x)(nil)
)

// NewWaifu2x creates a Waifu2x from a model set. At least one of the models must be present.
func NewWaifu2x(set *ModelSet, opts ...Option) (*Waifu2x, error) {
	if set == nil || (set.Scale2xModel == nil && set.NoiseModel == nil) {
		return nil, fmt.Errorf("%w: empty model set", ErrInvalidModel)
	}
	ret := &Waifu2x{jobs: 1}
	if set.Scale2xModel != nil {
		if err := set.Scale2xModel.Validate(); err != nil {
			return nil, fmt.Errorf("scale model: %w", err)
		}
		ret.scale = layers(set.Scale2xModel)
	}
	if set.NoiseModel != nil {
		if err := set.NoiseModel.Validate(); err != nil {
			return nil, fmt.Errorf("noise model: %w", err)
		}
		ret.noise = layers(set.NoiseModel)
	}
	for _, opt := range opts {
		if err := opt(ret); err != nil {
			return nil, err
		}
	}
	return ret, nil
}

// Scale returns 2, or 1 for a noise-only set.
func (w *Waifu2x) Scale() int {
	if w.scale == nil {
		return 1
	}
	return 2
}

// Padding returns the source pixels each output pixel depends on beyond its own position.
// Every 3x3 layer reaches one pixel further; scale layers run on the doubled tile.
func (w *Waifu2x) Padding() int {
	return len(w.noise) + (len(w.scale)+1)/2
}

// Reentrant reports that a Waifu2x holds no per-call state.
func (w *Waifu2x) Reentrant() bool { return true }

// Infer transforms a tile of w x h pixels into one of w*Scale() x h*Scale().
func (w *Waifu2x) Infer(ctx context.Context, tile engine.PlanarBuffer) (engine.PlanarBuffer, error) {
	if err := tile.Validate(); err != nil {
		return engine.PlanarBuffer{}, err
	}
	planes := planesFromBuffer(tile)
	var err error
	if w.noise != nil {
		planes, err = w.convert(ctx, planes, w.noise)
		if err != nil {
			return engine.PlanarBuffer{}, err
		}
	}
	if w.scale != nil {
		for i := range planes {
			planes[i] = planes[i].Resize(2)
		}
		planes, err = w.convert(ctx, planes, w.scale)
		if err != nil {
			return engine.PlanarBuffer{}, err
		}
	}
	return bufferFromPlanes(planes), nil
}

func (w *Waifu2x) convert(ctx context.Context, planes [engine.Channels]ImagePlane, model []layer) ([engine.Channels]ImagePlane, error) {
	input := make([]ImagePlane, len(planes))
	for i := range planes {
		input[i] = planes[i].Extrapolation(len(model))
	}
	for l := range model {
		if err := ctx.Err(); err != nil {
			return planes, err
		}
		var err error
		input, err = w.convolution(ctx, input, model[l])
		if err != nil {
			return planes, err
		}
	}
	var ret [engine.Channels]ImagePlane
	copy(ret[:], input)
	return ret, nil
}

// convolution applies a 3x3 layer followed by leaky ReLU; each output plane shrinks by one pixel per side.
// Rows are split into bands across the configured jobs.
func (w *Waifu2x) convolution(ctx context.Context, inputPlanes []ImagePlane, l layer) ([]ImagePlane, error) {
	width := inputPlanes[0].Width
	height := inputPlanes[0].Height
	outputPlanes := make([]ImagePlane, l.nOutputPlane)
	for i := range outputPlanes {
		outputPlanes[i] = NewImagePlaneWidthHeight(width-2, height-2)
	}
	rows := height - 2
	jobs := min(w.jobs, rows)
	if jobs <= 1 {
		convolveRows(inputPlanes, outputPlanes, l, 1, height-1)
		return outputPlanes, nil
	}
	g, ctx := errgroup.WithContext(ctx)
	band := (rows + jobs - 1) / jobs
	for from := 1; from < height-1; from += band {
		to := min(from+band, height-1)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			convolveRows(inputPlanes, outputPlanes, l, from, to)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outputPlanes, nil
}

func convolveRows(inputPlanes, outputPlanes []ImagePlane, l layer, from, to int) {
	const square = 9
	width := inputPlanes[0].Width
	sumValues := make([]float64, l.nOutputPlane)
	for y := from; y < to; y++ {
		for x := 1; x < width-1; x++ {
			copy(sumValues, l.bias)
			wi := 0
			for i := range inputPlanes {
				a0, a1, a2, b0, b1, b2, c0, c1, c2 := inputPlanes[i].SegmentAt(x, y)
				for o := 0; o < l.nOutputPlane; o++ {
					ws := l.weight[wi : wi+square] // 3x3 square
					sumValues[o] = sumValues[o] +
						ws[0]*a0 + ws[1]*a1 + ws[2]*a2 +
						ws[3]*b0 + ws[4]*b1 + ws[5]*b2 +
						ws[6]*c0 + ws[7]*c1 + ws[8]*c2
					wi += square
				}
			}
			for o := 0; o < l.nOutputPlane; o++ {
				v := sumValues[o]
				if v < 0 {
					v *= 0.1
				}
				outputPlanes[o].SetAt(x-1, y-1, v)
			}
		}
	}
}
