package engine

import (
	"context"
	"fmt"
)

// Model is an upscaling inference function with a fixed magnification.
//
// Infer receives a tile of w x h and must return a tile of w*Scale() x h*Scale().
// Padding is the context margin, in source pixels, the model wants around each tile.
type Model interface {
	Infer(ctx context.Context, tile PlanarBuffer) (PlanarBuffer, error)
	Scale() int
	Padding() int
}

// Reentrant is implemented by models whose Infer may be called concurrently.
type Reentrant interface {
	Reentrant() bool
}

func isReentrant(m Model) bool {
	r, ok := m.(Reentrant)
	return ok && r.Reentrant()
}

// ModelFunc adapts a function to the Model interface.
type ModelFunc struct {
	Factor     int
	Margin     int
	Concurrent bool
	Fn         func(ctx context.Context, tile PlanarBuffer) (PlanarBuffer, error)
}

// Infer calls Fn.
func (f ModelFunc) Infer(ctx context.Context, tile PlanarBuffer) (PlanarBuffer, error) {
	return f.Fn(ctx, tile)
}

// Scale returns Factor.
func (f ModelFunc) Scale() int { return f.Factor }

// Padding returns Margin.
func (f ModelFunc) Padding() int { return f.Margin }

// Reentrant returns Concurrent.
func (f ModelFunc) Reentrant() bool { return f.Concurrent }

// Identity returns a model that copies its input: scale 1, no padding.
func Identity() Model {
	return ModelFunc{
		Factor:     1,
		Concurrent: true,
		Fn: func(_ context.Context, tile PlanarBuffer) (PlanarBuffer, error) {
			if err := tile.Validate(); err != nil {
				return PlanarBuffer{}, err
			}
			return tile.Clone(), nil
		},
	}
}

func checkModel(m Model) error {
	if m == nil {
		return fmt.Errorf("model is nil")
	}
	if m.Scale() <= 0 {
		return fmt.Errorf("invalid model scale %d", m.Scale())
	}
	if m.Padding() < 0 {
		return fmt.Errorf("invalid model padding %d", m.Padding())
	}
	return nil
}
