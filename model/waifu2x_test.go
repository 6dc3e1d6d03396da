package model

import (
	"context"
	"fmt"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ikawaha/tilescale/engine"
)

func gradientTile(w, h int) engine.PlanarBuffer {
	p := engine.NewPlanarBuffer(w, h)
	for c := 0; c < engine.Channels; c++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				p.Set(c, x, y, float32((x*7+y*13+c*29)%256)/255)
			}
		}
	}
	return p
}

func TestNewWaifu2x(t *testing.T) {
	_, err := NewWaifu2x(nil)
	assert.ErrorIs(t, err, ErrInvalidModel)
	_, err = NewWaifu2x(&ModelSet{})
	assert.ErrorIs(t, err, ErrInvalidModel)
	_, err = NewWaifu2x(&ModelSet{Scale2xModel: Model{}})
	assert.ErrorIs(t, err, ErrInvalidModel)
	_, err = NewWaifu2x(&ModelSet{Scale2xModel: passThrough(1)}, Jobs(0))
	assert.Error(t, err)
}

func TestWaifu2x_Metadata(t *testing.T) {
	tests := []struct {
		name    string
		set     ModelSet
		scale   int
		padding int
	}{
		{"scale only", ModelSet{Scale2xModel: passThrough(7)}, 2, 4},
		{"noise and scale", ModelSet{Scale2xModel: passThrough(7), NoiseModel: passThrough(7)}, 2, 11},
		{"noise only", ModelSet{NoiseModel: passThrough(3)}, 1, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := NewWaifu2x(&tt.set)
			require.NoError(t, err)
			assert.Equal(t, tt.scale, w.Scale())
			assert.Equal(t, tt.padding, w.Padding())
			assert.True(t, w.Reentrant())
		})
	}
}

func TestWaifu2x_InferPassThrough(t *testing.T) {
	tile := gradientTile(5, 4)
	for _, jobs := range []int{1, 3, 16} {
		w, err := NewWaifu2x(&ModelSet{Scale2xModel: passThrough(3), NoiseModel: passThrough(2)}, Jobs(jobs))
		require.NoError(t, err)
		out, err := w.Infer(context.Background(), tile)
		require.NoError(t, err)
		require.NoError(t, out.Validate())
		require.Equal(t, image.Rect(0, 0, 10, 8), out.Bounds())
		for c := 0; c < engine.Channels; c++ {
			for y := 0; y < out.Height; y++ {
				for x := 0; x < out.Width; x++ {
					assert.InDelta(t, tile.At(c, x/2, y/2), out.At(c, x, y), 1e-6, "jobs=%d (%d, %d, %d)", jobs, c, x, y)
				}
			}
		}
	}
}

func TestWaifu2x_InferLeakyReLU(t *testing.T) {
	m := passThrough(1)
	for o := range m[0].Bias {
		m[0].Bias[o] = -1
	}
	w, err := NewWaifu2x(&ModelSet{NoiseModel: m})
	require.NoError(t, err)
	tile := engine.NewPlanarBuffer(2, 2)
	out, err := w.Infer(context.Background(), tile)
	require.NoError(t, err)
	for _, v := range out.Pix {
		assert.InDelta(t, -0.1, v, 1e-6)
	}
}

func TestWaifu2x_InferCanceled(t *testing.T) {
	w, err := NewWaifu2x(&ModelSet{Scale2xModel: passThrough(2)})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = w.Infer(ctx, gradientTile(3, 3))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWaifu2x_InferMalformed(t *testing.T) {
	w, err := NewWaifu2x(&ModelSet{Scale2xModel: passThrough(1)})
	require.NoError(t, err)
	_, err = w.Infer(context.Background(), engine.PlanarBuffer{Width: 2, Height: 2})
	assert.ErrorIs(t, err, engine.ErrShapeMismatch)
}

// A tiled run must equal a single whole-image inference once padding covers the receptive field.
func TestWaifu2x_TiledMatchesWhole(t *testing.T) {
	m := passThrough(3)
	// blur the red channel so neighbouring pixels matter
	for l := range m {
		m[l].Weight[0][0] = [][]float64{{0.1, 0.1, 0.1}, {0.1, 0.2, 0.1}, {0.1, 0.1, 0.1}}
	}
	w, err := NewWaifu2x(&ModelSet{Scale2xModel: m}, Jobs(2))
	require.NoError(t, err)

	src := image.NewNRGBA(image.Rect(0, 0, 23, 17))
	for i := range src.Pix {
		src.Pix[i] = uint8(i * 31)
	}
	in, err := engine.Decode(src)
	require.NoError(t, err)
	whole, err := w.Infer(context.Background(), in)
	require.NoError(t, err)
	want, err := engine.Encode(whole)
	require.NoError(t, err)

	e, err := engine.New(w, engine.TileSize(8), engine.Parallel(3))
	require.NoError(t, err)
	got, err := e.ScaleUp(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, want.Pix, got.Pix)
}

func TestImagePlane_Extrapolation(t *testing.T) {
	p := NewImagePlaneWidthHeight(2, 2)
	p.Buffer = []float64{1, 2, 3, 4}
	e := p.Extrapolation(1)
	assert.Equal(t, []float64{
		1, 1, 2, 2,
		1, 1, 2, 2,
		3, 3, 4, 4,
		3, 3, 4, 4,
	}, e.Buffer)
}

func TestImagePlane_Resize(t *testing.T) {
	p := NewImagePlaneWidthHeight(2, 1)
	p.Buffer = []float64{1, 2}
	r := p.Resize(2)
	assert.Equal(t, []float64{1, 1, 2, 2, 1, 1, 2, 2}, r.Buffer)
	assert.Equal(t, 2.0, r.Value(3, 1))
	assert.Panics(t, func() { r.Value(4, 1) })
	assert.Equal(t, p, p.Resize(1))
}

func BenchmarkWaifu2x(b *testing.B) {
	tile := gradientTile(64, 64)
	for _, jobs := range []int{1, 4} {
		w, err := NewWaifu2x(&ModelSet{Scale2xModel: passThrough(7), NoiseModel: passThrough(7)}, Jobs(jobs))
		if err != nil {
			b.Fatalf("unexpected error, %v", err)
		}
		b.Run(fmt.Sprintf("jobs=%d", jobs), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := w.Infer(context.Background(), tile); err != nil {
					b.Fatalf("unexpected error, %v", err)
				}
			}
		})
	}
}
