package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Param represents parameters of a layer.
type Param struct {
	Bias         []float64       `json:"bias"`
	KW           int             `json:"kW"` // kernel width
	KH           int             `json:"kH"` // kernel height
	Weight       [][][][]float64 `json:"weight"`
	NInputPlane  int             `json:"nInputPlane"`
	NOutputPlane int             `json:"nOutputPlane"`
}

// Model represents a trained model.
type Model []Param

// ErrInvalidModel is returned when a model does not describe an RGB to RGB network of 3x3 layers.
var ErrInvalidModel = errors.New("invalid model")

// LoadModelFile loads a trained model from the specified file.
// Files ending in .zst are decompressed on the fly.
func LoadModelFile(path string) (Model, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	if strings.EqualFold(filepath.Ext(path), ".zst") {
		dec, err := zstd.NewReader(fp)
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		defer dec.Close()
		return LoadModel(dec)
	}
	return LoadModel(fp)
}

// LoadModel loads a trained model from the io.Reader.
func LoadModel(r io.Reader) (Model, error) {
	dec := json.NewDecoder(r)
	var m Model
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks the layer shapes.
func (m Model) Validate() error {
	if len(m) == 0 {
		return fmt.Errorf("%w: no layers", ErrInvalidModel)
	}
	if m[0].NInputPlane != 3 {
		return fmt.Errorf("%w: first layer takes %d planes, want 3", ErrInvalidModel, m[0].NInputPlane)
	}
	if last := m[len(m)-1]; last.NOutputPlane != 3 {
		return fmt.Errorf("%w: last layer yields %d planes, want 3", ErrInvalidModel, last.NOutputPlane)
	}
	for l, p := range m {
		if p.KW != 3 || p.KH != 3 {
			return fmt.Errorf("%w: layer %d kernel %dx%d, want 3x3", ErrInvalidModel, l, p.KW, p.KH)
		}
		if l > 0 && p.NInputPlane != m[l-1].NOutputPlane {
			return fmt.Errorf("%w: layer %d takes %d planes, previous yields %d", ErrInvalidModel, l, p.NInputPlane, m[l-1].NOutputPlane)
		}
		if len(p.Bias) != p.NOutputPlane || len(p.Weight) != p.NOutputPlane {
			return fmt.Errorf("%w: layer %d has %d biases and %d weights for %d outputs", ErrInvalidModel, l, len(p.Bias), len(p.Weight), p.NOutputPlane)
		}
		for o := range p.Weight {
			if len(p.Weight[o]) != p.NInputPlane {
				return fmt.Errorf("%w: layer %d output %d has %d inputs, want %d", ErrInvalidModel, l, o, len(p.Weight[o]), p.NInputPlane)
			}
			for i := range p.Weight[o] {
				k := p.Weight[o][i]
				if len(k) != 3 || len(k[0]) != 3 || len(k[1]) != 3 || len(k[2]) != 3 {
					return fmt.Errorf("%w: layer %d kernel (%d, %d) is not 3x3", ErrInvalidModel, l, o, i)
				}
			}
		}
	}
	return nil
}

// flattenWeight lays out a [nOutputPlane][nInputPlane][3][3] weight as
// input-major, output-minor runs of 9 values.
func flattenWeight(p Param) []float64 {
	vec := make([]float64, 0, p.NInputPlane*p.NOutputPlane*9)
	for i := 0; i < p.NInputPlane; i++ {
		for o := 0; o < p.NOutputPlane; o++ {
			vec = append(vec, p.Weight[o][i][0]...)
			vec = append(vec, p.Weight[o][i][1]...)
			vec = append(vec, p.Weight[o][i][2]...)
		}
	}
	return vec
}

const (
	animeDir      = "anime_style_art_rgb"
	photoDir      = "photo"
	scaleFileName = "scale2.0x_model.json"
	noiseFileTmpl = "noise%d_model.json"
)

// Mode is the type of trained models.
type Mode int

const (
	// Anime model type.
	Anime Mode = iota + 1
	// Photo model type.
	Photo
)

// String returns string representation of a mode.
func (t Mode) String() string {
	switch t {
	case Anime:
		return "anime"
	case Photo:
		return "photo"
	}
	return fmt.Sprintf("unknown type=%d", t)
}

// ParseMode returns the mode named s.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "anime":
		return Anime, nil
	case "photo":
		return Photo, nil
	}
	return 0, fmt.Errorf("invalid mode %q, choose from 'anime' or 'photo'", s)
}

// ModelSet is a set of trained models.
type ModelSet struct {
	Scale2xModel Model
	NoiseModel   Model
}

// LoadModelSet loads the scale model and, when noiseLevel > 0, the noise model of the mode from dir.
// Each file may be stored as is or with a .zst suffix.
func LoadModelSet(dir string, mode Mode, noiseLevel int) (*ModelSet, error) {
	if noiseLevel < 0 || noiseLevel > 3 {
		return nil, fmt.Errorf("invalid noise level: 0...3 but %d", noiseLevel)
	}
	var sub string
	switch mode {
	case Anime:
		sub = animeDir
	case Photo:
		sub = photoDir
	default:
		return nil, fmt.Errorf("unknown model type error")
	}
	var noise Model
	if noiseLevel > 0 {
		var err error
		noise, err = loadEither(filepath.Join(dir, sub, fmt.Sprintf(noiseFileTmpl, noiseLevel)))
		if err != nil {
			return nil, fmt.Errorf("load noise model error: %w", err)
		}
	}
	scale, err := loadEither(filepath.Join(dir, sub, scaleFileName))
	if err != nil {
		return nil, fmt.Errorf("load scale model error: %w", err)
	}
	return &ModelSet{
		Scale2xModel: scale,
		NoiseModel:   noise,
	}, nil
}

func loadEither(path string) (Model, error) {
	m, err := LoadModelFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return LoadModelFile(path + ".zst")
	}
	return m, err
}
