package engine

import (
	"fmt"
	"image"
)

// Channels is the number of color planes in a planar buffer: R, G and B.
const Channels = 3

// PlanarBuffer represents an RGB image stored as three contiguous planes of normalized samples.
type PlanarBuffer struct {
	Width  int
	Height int
	Pix    []float32
}

// NewPlanarBuffer returns a zeroed planar buffer of specific width and height.
func NewPlanarBuffer(width, height int) PlanarBuffer {
	return PlanarBuffer{
		Width:  width,
		Height: height,
		Pix:    make([]float32, Channels*width*height),
	}
}

// Validate checks that the buffer length matches its dimensions.
func (p PlanarBuffer) Validate() error {
	if p.Width < 0 || p.Height < 0 {
		return fmt.Errorf("%w: negative size %dx%d", ErrShapeMismatch, p.Width, p.Height)
	}
	if want := Channels * p.Width * p.Height; len(p.Pix) != want {
		return fmt.Errorf("%w: %dx%d needs %d samples, got %d", ErrShapeMismatch, p.Width, p.Height, want, len(p.Pix))
	}
	return nil
}

// Bounds returns the rectangle covered by the buffer in its own coordinates.
func (p PlanarBuffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, p.Width, p.Height)
}

// Index returns the position of the sample of channel c at (x, y).
func (p PlanarBuffer) Index(c, x, y int) int {
	return c*p.Width*p.Height + y*p.Width + x
}

// At returns the sample of channel c at (x, y).
func (p PlanarBuffer) At(c, x, y int) float32 {
	if c < 0 || c >= Channels || x < 0 || x >= p.Width || y < 0 || y >= p.Height {
		panic(fmt.Errorf("channel %d, x %d, y %d outside %dx%d", c, x, y, p.Width, p.Height))
	}
	return p.Pix[p.Index(c, x, y)]
}

// Set sets the sample of channel c at (x, y).
func (p PlanarBuffer) Set(c, x, y int, v float32) {
	if c < 0 || c >= Channels || x < 0 || x >= p.Width || y < 0 || y >= p.Height {
		panic(fmt.Errorf("channel %d, x %d, y %d outside %dx%d", c, x, y, p.Width, p.Height))
	}
	p.Pix[p.Index(c, x, y)] = v
}

// Plane returns the samples of channel c. The slice aliases the buffer.
func (p PlanarBuffer) Plane(c int) []float32 {
	n := p.Width * p.Height
	return p.Pix[c*n : (c+1)*n : (c+1)*n]
}

// Clone returns a deep copy of the buffer.
func (p PlanarBuffer) Clone() PlanarBuffer {
	ret := PlanarBuffer{Width: p.Width, Height: p.Height, Pix: make([]float32, len(p.Pix))}
	copy(ret.Pix, p.Pix)
	return ret
}

// PackedBuffer represents an image with one ARGB word per pixel.
type PackedBuffer struct {
	Width  int
	Height int
	Pix    []uint32
}

// NewPackedBuffer returns a zeroed packed buffer of specific width and height.
func NewPackedBuffer(width, height int) PackedBuffer {
	return PackedBuffer{
		Width:  width,
		Height: height,
		Pix:    make([]uint32, width*height),
	}
}

// Validate checks that the buffer length matches its dimensions.
func (p PackedBuffer) Validate() error {
	if p.Width < 0 || p.Height < 0 {
		return fmt.Errorf("%w: negative size %dx%d", ErrShapeMismatch, p.Width, p.Height)
	}
	if want := p.Width * p.Height; len(p.Pix) != want {
		return fmt.Errorf("%w: %dx%d needs %d pixels, got %d", ErrShapeMismatch, p.Width, p.Height, want, len(p.Pix))
	}
	return nil
}

// Bounds returns the rectangle covered by the buffer.
func (p PackedBuffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, p.Width, p.Height)
}
