package engine

import (
	"fmt"
	"image"
	"iter"
)

// TileJob holds the resolved geometry of one tile.
//
//	Input       source space, aligned to the tile grid and clipped to the image.
//	PaddedInput Input grown by the padding on each side and clipped to the image.
//	Output      Input in output space (multiplied by the scale).
//	Offset      position of Output inside the model output for PaddedInput.
type TileJob struct {
	Row         int
	Col         int
	Input       image.Rectangle
	PaddedInput image.Rectangle
	Output      image.Rectangle
	Offset      image.Point
}

// PaddedOutput returns the extent of the model output for the padded tile, in tile-local output space.
func (j TileJob) PaddedOutput(scale int) image.Rectangle {
	return image.Rect(0, 0, j.PaddedInput.Dx()*scale, j.PaddedInput.Dy()*scale)
}

// Schedule computes the tile grid covering an image.
type Schedule struct {
	Width    int
	Height   int
	TileSize int
	Padding  int
	Scale    int
}

// NewSchedule returns a schedule for a width x height image.
func NewSchedule(width, height, tileSize, padding, scale int) (Schedule, error) {
	if width <= 0 || height <= 0 {
		return Schedule{}, fmt.Errorf("%w: image size %dx%d", ErrShapeMismatch, width, height)
	}
	if tileSize <= 0 {
		return Schedule{}, fmt.Errorf("%w: tile size %d", ErrShapeMismatch, tileSize)
	}
	if padding < 0 {
		return Schedule{}, fmt.Errorf("%w: padding %d", ErrShapeMismatch, padding)
	}
	if scale <= 0 {
		return Schedule{}, fmt.Errorf("%w: scale %d", ErrShapeMismatch, scale)
	}
	return Schedule{
		Width:    width,
		Height:   height,
		TileSize: tileSize,
		Padding:  padding,
		Scale:    scale,
	}, nil
}

// Cols returns the number of tile columns.
func (s Schedule) Cols() int {
	return (s.Width + s.TileSize - 1) / s.TileSize
}

// Rows returns the number of tile rows.
func (s Schedule) Rows() int {
	return (s.Height + s.TileSize - 1) / s.TileSize
}

// Len returns the number of tiles.
func (s Schedule) Len() int {
	return s.Rows() * s.Cols()
}

// OutputSize returns the size of the upscaled image.
func (s Schedule) OutputSize() (width, height int) {
	return s.Width * s.Scale, s.Height * s.Scale
}

// Job returns the tile at the grid position.
func (s Schedule) Job(row, col int) TileJob {
	ofsX := col * s.TileSize
	ofsY := row * s.TileSize
	in := image.Rect(ofsX, ofsY, min(ofsX+s.TileSize, s.Width), min(ofsY+s.TileSize, s.Height))
	// no padding where the tile touches the image border
	padded := image.Rect(
		max(in.Min.X-s.Padding, 0),
		max(in.Min.Y-s.Padding, 0),
		min(in.Max.X+s.Padding, s.Width),
		min(in.Max.Y+s.Padding, s.Height),
	)
	return TileJob{
		Row:         row,
		Col:         col,
		Input:       in,
		PaddedInput: padded,
		Output:      image.Rectangle{Min: in.Min.Mul(s.Scale), Max: in.Max.Mul(s.Scale)},
		Offset:      in.Min.Sub(padded.Min).Mul(s.Scale),
	}
}

// All returns the tiles in row-major order.
func (s Schedule) All() iter.Seq[TileJob] {
	return func(yield func(TileJob) bool) {
		rows, cols := s.Rows(), s.Cols()
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				if !yield(s.Job(r, c)) {
					return
				}
			}
		}
	}
}
