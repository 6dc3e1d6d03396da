package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerAddsContextAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := Logger(&buf, true, slog.LevelInfo)

	ctx := AppendCtx(context.Background(), slog.String("run", "abc"))
	ctx = AppendCtx(ctx, slog.Int("tiles", 4))
	log.InfoContext(ctx, "done", "ok", true)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "done", rec["msg"])
	assert.Equal(t, "abc", rec["run"])
	assert.EqualValues(t, 4, rec["tiles"])
	assert.Equal(t, true, rec["ok"])
}

func TestLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	log := Logger(&buf, false, slog.LevelWarn)
	log.Info("hidden")
	assert.Empty(t, buf.String())
	log.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestLoggerWithGroupKeepsContext(t *testing.T) {
	var buf bytes.Buffer
	log := Logger(&buf, false, slog.LevelDebug).WithGroup("engine").With("scale", 4)
	log.DebugContext(AppendCtx(context.Background(), slog.String("run", "r1")), "tile")
	assert.Contains(t, buf.String(), "engine.scale=4")
	assert.Contains(t, buf.String(), "engine.run=r1")
}

func TestDiscard(t *testing.T) {
	assert.False(t, Discard().Enabled(context.Background(), slog.LevelError))
}

func TestRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tilescale.log")
	w := RotatingFile(path)
	defer w.Close()
	log := Logger(w, false, slog.LevelInfo)
	log.Info("hello")
	assert.FileExists(t, path)
}
