package engine

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/ikawaha/tilescale/internal/logging"
)

// DefaultTileSize is the tile edge length used when none is given.
const DefaultTileSize = 512

// Option represents an option of the engine.
type Option func(e *Engine) error

// TileSize sets the tile edge length in source pixels.
func TileSize(n int) Option {
	return func(e *Engine) error {
		if n < 1 {
			return fmt.Errorf("tile size must be positive, got %d", n)
		}
		e.tileSize = n
		return nil
	}
}

// Parallel sets the number of tiles processed at once. It only takes effect
// for models that report themselves reentrant.
func Parallel(p int) Option {
	return func(e *Engine) error {
		if p < 0 {
			return fmt.Errorf("an integer value less than 0: %d", p)
		}
		e.parallel = p
		return nil
	}
}

// TileTimeout bounds the inference time of a single tile. Zero means no limit.
// A timed out call keeps running in the background; for models that are not
// reentrant, later calls through the same engine wait until it has returned.
func TileTimeout(d time.Duration) Option {
	return func(e *Engine) error {
		if d < 0 {
			return fmt.Errorf("negative tile timeout: %v", d)
		}
		e.timeout = d
		return nil
	}
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) error {
		if l == nil {
			l = logging.Discard()
		}
		e.logger = l
		return nil
	}
}

// OnProgress sets a callback invoked after each completed tile.
// Calls are serialized even when tiles run in parallel.
func OnProgress(fn func(Progress)) Option {
	return func(e *Engine) error {
		e.progress = fn
		return nil
	}
}

// Progress describes a completed tile.
type Progress struct {
	RunID   string
	Job     TileJob
	Done    int
	Total   int
	Elapsed time.Duration
}

// Engine upscales images through a model, tile by tile.
type Engine struct {
	model    Model
	tileSize int
	parallel int
	timeout  time.Duration
	logger   *slog.Logger
	progress func(Progress)

	inferMu sync.Mutex
}

// New creates an engine for the model.
func New(m Model, opts ...Option) (*Engine, error) {
	if err := checkModel(m); err != nil {
		return nil, err
	}
	ret := &Engine{
		model:    m,
		tileSize: DefaultTileSize,
		parallel: 1,
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		if err := opt(ret); err != nil {
			return nil, err
		}
	}
	return ret, nil
}

// Model returns the model of the engine.
func (e *Engine) Model() Model {
	return e.model
}

// Plan returns the tile schedule the engine would use for a width x height image.
func (e *Engine) Plan(width, height int) (Schedule, error) {
	return NewSchedule(width, height, e.tileSize, e.model.Padding(), e.model.Scale())
}

// NewRun prepares a single-use run for the image.
func (e *Engine) NewRun(img image.Image) *Run {
	return newRun(e, img)
}

// ScaleUp upscales the image by the model's scale.
func (e *Engine) ScaleUp(ctx context.Context, img image.Image) (*image.RGBA, error) {
	return e.NewRun(img).Execute(ctx)
}

func (e *Engine) concurrency() int {
	if e.parallel > 1 && isReentrant(e.model) {
		return e.parallel
	}
	return 1
}

// call runs the model, one call at a time unless the model is reentrant.
func (e *Engine) call(ctx context.Context, tile PlanarBuffer) (PlanarBuffer, error) {
	if !isReentrant(e.model) {
		e.inferMu.Lock()
		defer e.inferMu.Unlock()
		if err := ctx.Err(); err != nil {
			return PlanarBuffer{}, err
		}
	}
	return e.model.Infer(ctx, tile)
}
