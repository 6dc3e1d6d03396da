// Package resample provides classical interpolation models for the tiling engine.
package resample

import (
	"context"
	"fmt"
	"image"
	"math"
	"slices"

	xdraw "golang.org/x/image/draw"

	"github.com/ikawaha/tilescale/engine"
)

// Kernel names accepted by New.
const (
	Nearest        = "nearest"
	ApproxBiLinear = "approx-bilinear"
	BiLinear       = "bilinear"
	CatmullRom     = "catmull-rom"
)

type kernel struct {
	interpolator xdraw.Interpolator
	support      int
}

var kernels = map[string]kernel{
	Nearest:        {interpolator: xdraw.NearestNeighbor, support: 0},
	ApproxBiLinear: {interpolator: xdraw.ApproxBiLinear, support: 1},
	BiLinear:       {interpolator: xdraw.BiLinear, support: 1},
	CatmullRom:     {interpolator: xdraw.CatmullRom, support: 2},
}

// Kernels returns the accepted kernel names in sorted order.
func Kernels() []string {
	ret := make([]string, 0, len(kernels))
	for k := range kernels {
		ret = append(ret, k)
	}
	slices.Sort(ret)
	return ret
}

// Option represents an option of a Resampler.
type Option func(r *Resampler) error

// Padding overrides the context margin reported to the engine.
// It must not be smaller than the kernel support.
func Padding(p int) Option {
	return func(r *Resampler) error {
		if p < r.padding {
			return fmt.Errorf("padding %d is smaller than the %s support %d", p, r.name, r.padding)
		}
		r.padding = p
		return nil
	}
}

// Resampler enlarges tiles by an integer factor with an interpolation kernel.
type Resampler struct {
	name    string
	kernel  xdraw.Interpolator
	scale   int
	padding int
}

var (
	_ engine.Model     = (*Resampler)(nil)
	_ engine.Reentrant = (*Resampler)(nil)
)

// New returns a Resampler using the named kernel.
func New(name string, scale int, opts ...Option) (*Resampler, error) {
	k, ok := kernels[name]
	if !ok {
		return nil, fmt.Errorf("unknown kernel %q, choose from %v", name, Kernels())
	}
	if scale < 1 {
		return nil, fmt.Errorf("scale must be a positive integer, got %d", scale)
	}
	ret := &Resampler{
		name:    name,
		kernel:  k.interpolator,
		scale:   scale,
		padding: k.support,
	}
	for _, opt := range opts {
		if err := opt(ret); err != nil {
			return nil, err
		}
	}
	return ret, nil
}

// Default returns a Catmull-Rom resampler with scale 4 and padding 10.
func Default() *Resampler {
	r, err := New(CatmullRom, 4, Padding(10))
	if err != nil {
		panic(err)
	}
	return r
}

// Name returns the kernel name.
func (r *Resampler) Name() string { return r.name }

// Scale returns the enlargement factor.
func (r *Resampler) Scale() int { return r.scale }

// Padding returns the context margin in source pixels.
func (r *Resampler) Padding() int { return r.padding }

// Reentrant reports that a Resampler is safe for concurrent use.
func (r *Resampler) Reentrant() bool { return true }

// Infer scales the tile by the configured factor.
func (r *Resampler) Infer(ctx context.Context, tile engine.PlanarBuffer) (engine.PlanarBuffer, error) {
	if err := tile.Validate(); err != nil {
		return engine.PlanarBuffer{}, err
	}
	if err := ctx.Err(); err != nil {
		return engine.PlanarBuffer{}, err
	}
	src := toRGBA64(tile)
	dst := image.NewRGBA64(image.Rect(0, 0, tile.Width*r.scale, tile.Height*r.scale))
	r.kernel.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return fromRGBA64(dst), nil
}

func toRGBA64(p engine.PlanarBuffer) *image.RGBA64 {
	img := image.NewRGBA64(p.Bounds())
	n := p.Width * p.Height
	for i := 0; i < n; i++ {
		px := img.Pix[i*8 : i*8+8 : i*8+8]
		for c := 0; c < engine.Channels; c++ {
			v := to16(p.Pix[c*n+i])
			px[c*2] = uint8(v >> 8)
			px[c*2+1] = uint8(v)
		}
		px[6], px[7] = 0xff, 0xff
	}
	return img
}

func fromRGBA64(img *image.RGBA64) engine.PlanarBuffer {
	b := img.Bounds()
	p := engine.NewPlanarBuffer(b.Dx(), b.Dy())
	n := p.Width * p.Height
	for i := 0; i < n; i++ {
		px := img.Pix[i*8 : i*8+8 : i*8+8]
		for c := 0; c < engine.Channels; c++ {
			v := uint16(px[c*2])<<8 | uint16(px[c*2+1])
			p.Pix[c*n+i] = float32(v) / 0xffff
		}
	}
	return p
}

func to16(v float32) uint16 {
	if v <= 0 || math.IsNaN(float64(v)) {
		return 0
	}
	if v >= 1 {
		return 0xffff
	}
	return uint16(v*0xffff + 0.5)
}
