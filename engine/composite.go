package engine

import (
	"fmt"
	"image"
)

// Composite writes the out region of dst from tile, starting at offset in the tile.
// Samples are clamped to [0, 255] before packing. Nothing is blended: callers
// must hand in disjoint regions.
func Composite(dst *PackedBuffer, out image.Rectangle, tile PlanarBuffer, offset image.Point) error {
	if err := dst.Validate(); err != nil {
		return err
	}
	if err := tile.Validate(); err != nil {
		return err
	}
	if !out.In(dst.Bounds()) {
		return fmt.Errorf("%w: output %v in %dx%d destination", ErrOutOfBounds, out, dst.Width, dst.Height)
	}
	src := image.Rectangle{Min: offset, Max: offset.Add(out.Size())}
	if !src.In(tile.Bounds()) {
		return fmt.Errorf("%w: window %v in %dx%d tile", ErrOutOfBounds, src, tile.Width, tile.Height)
	}
	r, g, b := tile.Plane(0), tile.Plane(1), tile.Plane(2)
	for i := 0; i < out.Dy(); i++ {
		row := dst.Pix[(i+out.Min.Y)*dst.Width+out.Min.X:]
		t := (i+offset.Y)*tile.Width + offset.X
		for j := 0; j < out.Dx(); j++ {
			row[j] = Pack(ToByte(r[t+j]), ToByte(g[t+j]), ToByte(b[t+j]))
		}
	}
	return nil
}
