package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrShapeMismatch is returned when a buffer does not match its declared dimensions.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrOutOfBounds is returned when a rectangle falls outside the buffer it addresses.
	ErrOutOfBounds = errors.New("out of bounds")
	// ErrInference is returned when the model fails on a tile.
	ErrInference = errors.New("inference error")
	// ErrCodec is returned when an image cannot be converted into a planar buffer.
	ErrCodec = errors.New("codec error")
	// ErrRunUsed is returned when a run is executed twice.
	ErrRunUsed = errors.New("run already executed")
)

// TileError reports the tile a run failed on.
type TileError struct {
	Row int
	Col int
	Err error
}

// Error implements the error interface.
func (e *TileError) Error() string {
	return fmt.Sprintf("tile (row=%d, col=%d): %v", e.Row, e.Col, e.Err)
}

// Unwrap returns the underlying error.
func (e *TileError) Unwrap() error {
	return e.Err
}
