package engine

import (
	"fmt"
	"image"
	"image/color"
	"math"
)

// Decode converts an image to a planar buffer normalized to [0, 1]. Alpha is ignored.
func Decode(img image.Image) (PlanarBuffer, error) {
	if img == nil {
		return PlanarBuffer{}, fmt.Errorf("%w: nil image", ErrCodec)
	}
	r := img.Bounds()
	width, height := r.Dx(), r.Dy()
	if width <= 0 || height <= 0 {
		return PlanarBuffer{}, fmt.Errorf("%w: empty image %dx%d", ErrCodec, width, height)
	}
	p := NewPlanarBuffer(width, height)
	n := width * height
	switch t := img.(type) {
	case *image.RGBA:
		// premultiplied bytes equal straight ones only when opaque
		if !t.Opaque() {
			decodeColors(p, img)
			break
		}
		decodePix(p, n, t.Pix, t.Stride, t.PixOffset(r.Min.X, r.Min.Y))
	case *image.NRGBA:
		decodePix(p, n, t.Pix, t.Stride, t.PixOffset(r.Min.X, r.Min.Y))
	default:
		decodeColors(p, img)
	}
	return p, nil
}

func decodeColors(p PlanarBuffer, img image.Image) {
	r := img.Bounds()
	n := p.Width * p.Height
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			c := color.NRGBAModel.Convert(img.At(r.Min.X+x, r.Min.Y+y)).(color.NRGBA)
			i := y*p.Width + x
			p.Pix[i] = float32(c.R) / 255
			p.Pix[n+i] = float32(c.G) / 255
			p.Pix[2*n+i] = float32(c.B) / 255
		}
	}
}

func decodePix(p PlanarBuffer, n int, pix []uint8, stride, offset int) {
	for y := 0; y < p.Height; y++ {
		row := pix[offset+y*stride : offset+y*stride+4*p.Width]
		for x := 0; x < p.Width; x++ {
			i := y*p.Width + x
			p.Pix[i] = float32(row[4*x]) / 255
			p.Pix[n+i] = float32(row[4*x+1]) / 255
			p.Pix[2*n+i] = float32(row[4*x+2]) / 255
		}
	}
}

// Encode converts a planar buffer to an opaque RGBA image.
func Encode(p PlanarBuffer) (*image.RGBA, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	img := image.NewRGBA(p.Bounds())
	n := p.Width * p.Height
	for i := 0; i < n; i++ {
		img.Pix[4*i] = ToByte(p.Pix[i])
		img.Pix[4*i+1] = ToByte(p.Pix[n+i])
		img.Pix[4*i+2] = ToByte(p.Pix[2*n+i])
		img.Pix[4*i+3] = 0xff
	}
	return img, nil
}

// EncodePacked converts a packed ARGB buffer to an opaque RGBA image.
func EncodePacked(p PackedBuffer) (*image.RGBA, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	img := image.NewRGBA(p.Bounds())
	for i, v := range p.Pix {
		img.Pix[4*i] = uint8(v >> 16)
		img.Pix[4*i+1] = uint8(v >> 8)
		img.Pix[4*i+2] = uint8(v)
		img.Pix[4*i+3] = 0xff
	}
	return img, nil
}

// ToByte scales a normalized sample to 8 bits, clamping to [0, 255] before truncation.
func ToByte(v float32) uint8 {
	v *= 255
	if v < 0 || math.IsNaN(float64(v)) {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// Pack packs the channel values into an opaque ARGB word.
func Pack(r, g, b uint8) uint32 {
	return 0xff<<24 | uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}
