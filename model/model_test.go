package model

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// passThrough returns a model of n 3x3 layers that copies each channel unchanged.
func passThrough(n int) Model {
	m := make(Model, n)
	for l := range m {
		p := Param{KW: 3, KH: 3, NInputPlane: 3, NOutputPlane: 3, Bias: make([]float64, 3)}
		p.Weight = make([][][][]float64, 3)
		for o := range p.Weight {
			p.Weight[o] = make([][][]float64, 3)
			for i := range p.Weight[o] {
				p.Weight[o][i] = [][]float64{{0, 0, 0}, {0, 0, 0}, {0, 0, 0}}
				if i == o {
					p.Weight[o][i][1][1] = 1
				}
			}
		}
		m[l] = p
	}
	return m
}

func TestLoadModel(t *testing.T) {
	b, err := json.Marshal(passThrough(2))
	require.NoError(t, err)
	m, err := LoadModel(bytes.NewReader(b))
	require.NoError(t, err)
	assert.Len(t, m, 2)
	assert.Equal(t, 3, m[1].NOutputPlane)
}

func TestLoadModel_Invalid(t *testing.T) {
	tests := []struct {
		name string
		edit func(m Model) Model
	}{
		{"no layers", func(Model) Model { return Model{} }},
		{"gray input", func(m Model) Model { m[0].NInputPlane = 1; return m }},
		{"kernel size", func(m Model) Model { m[0].KW = 5; return m }},
		{"bias length", func(m Model) Model { m[0].Bias = m[0].Bias[:2]; return m }},
		{"weight rows", func(m Model) Model { m[0].Weight[1][2] = m[0].Weight[1][2][:2]; return m }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.edit(passThrough(1)))
			require.NoError(t, err)
			_, err = LoadModel(bytes.NewReader(b))
			assert.ErrorIs(t, err, ErrInvalidModel)
		})
	}
	_, err := LoadModel(strings.NewReader("{"))
	assert.Error(t, err)
}

func writeModel(t *testing.T, path string, m Model, compress bool) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	b, err := json.Marshal(m)
	require.NoError(t, err)
	if compress {
		enc, err := zstd.NewWriter(nil)
		require.NoError(t, err)
		b = enc.EncodeAll(b, nil)
		require.NoError(t, enc.Close())
	}
	require.NoError(t, os.WriteFile(path, b, 0o644))
}

func TestLoadModelFile_Zstd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scale2.0x_model.json.zst")
	writeModel(t, path, passThrough(3), true)
	m, err := LoadModelFile(path)
	require.NoError(t, err)
	assert.Len(t, m, 3)
}

func TestLoadModelSet(t *testing.T) {
	dir := t.TempDir()
	writeModel(t, filepath.Join(dir, "anime_style_art_rgb", "scale2.0x_model.json"), passThrough(2), false)
	writeModel(t, filepath.Join(dir, "anime_style_art_rgb", "noise1_model.json.zst"), passThrough(1), true)

	set, err := LoadModelSet(dir, Anime, 1)
	require.NoError(t, err)
	assert.Len(t, set.Scale2xModel, 2)
	assert.Len(t, set.NoiseModel, 1)

	set, err = LoadModelSet(dir, Anime, 0)
	require.NoError(t, err)
	assert.Nil(t, set.NoiseModel)

	_, err = LoadModelSet(dir, Photo, 0)
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = LoadModelSet(dir, Anime, 2)
	assert.Error(t, err)
	_, err = LoadModelSet(dir, Anime, 4)
	assert.Error(t, err)
	_, err = LoadModelSet(dir, Mode(9), 0)
	assert.Error(t, err)
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
	}{
		{"", Anime},
		{"anime", Anime},
		{"photo", Photo},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
		assert.NotEmpty(t, got.String())
	}
	_, err := ParseMode("movie")
	assert.Error(t, err)
	assert.Equal(t, "unknown type=7", Mode(7).String())
}

func TestFlattenWeight(t *testing.T) {
	p := Param{NInputPlane: 2, NOutputPlane: 3}
	p.Weight = make([][][][]float64, 3)
	for o := range p.Weight {
		p.Weight[o] = make([][][]float64, 2)
		for i := range p.Weight[o] {
			v := float64(o*10 + i)
			p.Weight[o][i] = [][]float64{{v, v, v}, {v, v, v}, {v, v, v}}
		}
	}
	vec := flattenWeight(p)
	require.Len(t, vec, 2*3*9)
	// input-major, output-minor
	want := []float64{0, 10, 20, 1, 11, 21}
	for k, v := range want {
		assert.Equal(t, v, vec[k*9], "run %d", k)
		assert.Equal(t, v, vec[k*9+8], "run %d", k)
	}
}
