package engine

import (
	"fmt"
	"image"
)

// Extract copies the rectangle r of src into a new, tightly packed planar buffer.
func Extract(src PlanarBuffer, r image.Rectangle) (PlanarBuffer, error) {
	if err := src.Validate(); err != nil {
		return PlanarBuffer{}, err
	}
	if r.Empty() || !r.In(src.Bounds()) {
		return PlanarBuffer{}, fmt.Errorf("%w: rect %v in %dx%d source", ErrOutOfBounds, r, src.Width, src.Height)
	}
	tile := NewPlanarBuffer(r.Dx(), r.Dy())
	for c := 0; c < Channels; c++ {
		from := src.Plane(c)
		to := tile.Plane(c)
		for i := 0; i < tile.Height; i++ {
			s := (i+r.Min.Y)*src.Width + r.Min.X
			copy(to[i*tile.Width:(i+1)*tile.Width], from[s:s+tile.Width])
		}
	}
	return tile, nil
}
