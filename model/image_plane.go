package model

import (
	"fmt"

	"github.com/ikawaha/tilescale/engine"
)

// ImagePlane represents a single channel in which each pixel has a continuous value.
type ImagePlane struct {
	Width  int
	Height int
	Buffer []float64
}

// NewImagePlaneWidthHeight returns an image plane of specific width and height.
func NewImagePlaneWidthHeight(width, height int) ImagePlane {
	return ImagePlane{
		Width:  width,
		Height: height,
		Buffer: make([]float64, width*height),
	}
}

// Index returns the buffer position corresponding to the specified width and height of the image.
func (p ImagePlane) Index(width, height int) int {
	return width + height*p.Width
}

// Value returns the value corresponding to the specified width and height of the image.
func (p ImagePlane) Value(width, height int) float64 {
	i := p.Index(width, height)
	if i < 0 || i >= len(p.Buffer) {
		panic(fmt.Errorf("width %d, height %d, Index %d, len(buf) %d", width, height, i, len(p.Buffer)))
	}
	return p.Buffer[i]
}

// SetAt sets the value to the buffer corresponding to the specified width and height of the image.
func (p *ImagePlane) SetAt(width, height int, v float64) {
	p.Buffer[p.Index(width, height)] = v
}

// SegmentAt returns the 3x3 pixels at the specified position.
// [a0][a1][a2]
// [b0][b1][b2]
// [c0][c1][c2]   where (x, y) is b1.
func (p ImagePlane) SegmentAt(x, y int) (a0, a1, a2, b0, b1, b2, c0, c1, c2 float64) {
	i := (x - 1) + (y-1)*p.Width
	j := i + p.Width
	k := j + p.Width
	a := p.Buffer[i : i+3 : i+3]
	b := p.Buffer[j : j+3 : j+3]
	c := p.Buffer[k : k+3 : k+3]
	return a[0], a[1], a[2], b[0], b[1], b[2], c[0], c[1], c[2]
}

// Resize returns the plane enlarged by an integer scale, repeating each pixel.
func (p ImagePlane) Resize(scale int) ImagePlane {
	if scale == 1 {
		return p
	}
	ret := NewImagePlaneWidthHeight(p.Width*scale, p.Height*scale)
	for h := 0; h < ret.Height; h++ {
		row := p.Buffer[(h/scale)*p.Width:]
		for w := 0; w < ret.Width; w++ {
			ret.Buffer[w+h*ret.Width] = row[w/scale]
		}
	}
	return ret
}

// Extrapolation grows the plane by px pixels on each side, repeating the edge pixels.
func (p ImagePlane) Extrapolation(px int) ImagePlane {
	ret := NewImagePlaneWidthHeight(p.Width+2*px, p.Height+2*px)
	for h := 0; h < ret.Height; h++ {
		sh := min(max(h-px, 0), p.Height-1)
		for w := 0; w < ret.Width; w++ {
			sw := min(max(w-px, 0), p.Width-1)
			ret.Buffer[w+h*ret.Width] = p.Buffer[sw+sh*p.Width]
		}
	}
	return ret
}

func planesFromBuffer(b engine.PlanarBuffer) [engine.Channels]ImagePlane {
	var ret [engine.Channels]ImagePlane
	for c := range ret {
		ret[c] = NewImagePlaneWidthHeight(b.Width, b.Height)
		for i, v := range b.Plane(c) {
			ret[c].Buffer[i] = float64(v)
		}
	}
	return ret
}

func bufferFromPlanes(planes [engine.Channels]ImagePlane) engine.PlanarBuffer {
	ret := engine.NewPlanarBuffer(planes[0].Width, planes[0].Height)
	for c := range planes {
		dst := ret.Plane(c)
		for i, v := range planes[c].Buffer {
			dst[i] = float32(v)
		}
	}
	return ret
}
