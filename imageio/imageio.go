// Package imageio reads and writes the image files handled by the command line.
package imageio

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // register
	"image/jpeg"
	"image/png"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp" // register
)

// Output formats.
const (
	PNG  = "png"
	JPEG = "jpeg"
	TIFF = "tiff"
	BMP  = "bmp"
)

// DefaultQuality is the JPEG quality used when none is given.
const DefaultQuality = 95

// Read decodes an image and returns it with the name of its format.
func Read(r io.Reader) (image.Image, string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, "", err
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(b))
	if err != nil {
		return nil, "", fmt.Errorf("unsupported image: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, "", fmt.Errorf("decode %s: %w", format, err)
	}
	return img, format, nil
}

// ParseFormat normalizes an output format name.
func ParseFormat(s string) (string, error) {
	switch strings.ToLower(s) {
	case "png":
		return PNG, nil
	case "jpg", "jpeg":
		return JPEG, nil
	case "tif", "tiff":
		return TIFF, nil
	case "bmp":
		return BMP, nil
	}
	return "", fmt.Errorf("unsupported output format: %q", s)
}

// FormatFromPath guesses the output format from the file extension, falling back to fallback.
func FormatFromPath(path, fallback string) string {
	if f, err := ParseFormat(strings.TrimPrefix(filepath.Ext(path), ".")); err == nil {
		return f
	}
	return fallback
}

// Write encodes img in the given format. quality applies to JPEG only.
func Write(w io.Writer, img image.Image, format string, quality int) error {
	f, err := ParseFormat(format)
	if err != nil {
		return err
	}
	switch f {
	case PNG:
		return png.Encode(w, img)
	case JPEG:
		if quality < 1 || quality > 100 {
			return fmt.Errorf("jpeg quality must be in [1,100], got %d", quality)
		}
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case TIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return bmp.Encode(w, img)
	}
}
