package engine

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/ikawaha/tilescale/internal/logging"
)

// State is the stage of a run.
type State int

const (
	// Idle is a run that has not started.
	Idle State = iota
	// Decoding converts the source image into a planar buffer.
	Decoding
	// Tiling runs the model over every tile.
	Tiling
	// Done is a run that produced its image.
	Done
	// Failed is a run that stopped on an error.
	Failed
)

// String returns string representation of a state.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Decoding:
		return "decoding"
	case Tiling:
		return "tiling"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("unknown state=%d", int(s))
}

// Run is one execution of the engine over one image. It cannot be reused.
type Run struct {
	engine *Engine
	img    image.Image
	id     string

	mu    sync.Mutex
	state State

	progressMu sync.Mutex
	done       int
	start      time.Time
}

func newRun(e *Engine, img image.Image) *Run {
	return &Run{
		engine: e,
		img:    img,
		id:     uuid.NewString(),
	}
}

// ID returns the identifier attached to the run's log records.
func (r *Run) ID() string {
	return r.id
}

// State returns the current state of the run.
func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Run) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Execute upscales the image. Either the whole image is returned or an error,
// which wraps a *TileError when a tile failed.
func (r *Run) Execute(ctx context.Context) (*image.RGBA, error) {
	r.mu.Lock()
	if r.state != Idle {
		r.mu.Unlock()
		return nil, ErrRunUsed
	}
	r.state = Decoding
	r.mu.Unlock()

	ctx = logging.AppendCtx(ctx, slog.String("run_id", r.id))
	r.start = time.Now()
	img, err := r.execute(ctx)
	if err != nil {
		r.setState(Failed)
		r.engine.logger.ErrorContext(ctx, "run failed", "state", Failed.String(), "error", err)
		return nil, err
	}
	r.engine.logger.InfoContext(ctx, "run done",
		"width", img.Bounds().Dx(),
		"height", img.Bounds().Dy(),
		"cost", time.Since(r.start))
	return img, nil
}

func (r *Run) execute(ctx context.Context) (*image.RGBA, error) {
	log := r.engine.logger
	m := r.engine.model

	log.DebugContext(ctx, "decoding")
	src, err := Decode(r.img)
	if err != nil {
		return nil, err
	}
	s, err := NewSchedule(src.Width, src.Height, r.engine.tileSize, m.Padding(), m.Scale())
	if err != nil {
		return nil, err
	}

	r.setState(Tiling)
	ow, oh := s.OutputSize()
	dst := NewPackedBuffer(ow, oh)
	n := r.engine.concurrency()
	log.InfoContext(ctx, "tiling",
		"width", s.Width,
		"height", s.Height,
		"cols", s.Cols(),
		"rows", s.Rows(),
		"tile", s.TileSize,
		"padding", s.Padding,
		"scale", s.Scale,
		"parallel", n)
	if n > 1 {
		err = r.tileParallel(ctx, s, src, &dst, n)
	} else {
		err = r.tileSequential(ctx, s, src, &dst)
	}
	if err != nil {
		return nil, err
	}

	r.setState(Done)
	return EncodePacked(dst)
}

func (r *Run) tileSequential(ctx context.Context, s Schedule, src PlanarBuffer, dst *PackedBuffer) error {
	for job := range s.All() {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run aborted: %w", err)
		}
		if err := r.tile(ctx, s, job, src, dst); err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return fmt.Errorf("run aborted: %w", cerr)
			}
			return err
		}
	}
	return nil
}

// tileParallel runs tiles concurrently. Output rectangles are disjoint, so
// goroutines write dst without locking.
func (r *Run) tileParallel(ctx context.Context, s Schedule, src PlanarBuffer, dst *PackedBuffer, n int) error {
	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(n))
	for job := range s.All() {
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			return r.tile(gctx, s, job, src, dst)
		})
	}
	err := g.Wait()
	if cerr := ctx.Err(); cerr != nil {
		return fmt.Errorf("run aborted: %w", cerr)
	}
	return err
}

func (r *Run) tile(ctx context.Context, s Schedule, job TileJob, src PlanarBuffer, dst *PackedBuffer) error {
	in, err := Extract(src, job.PaddedInput)
	if err != nil {
		return &TileError{Row: job.Row, Col: job.Col, Err: err}
	}
	out, err := r.infer(ctx, in)
	if err != nil {
		return &TileError{Row: job.Row, Col: job.Col, Err: fmt.Errorf("%w: %w", ErrInference, err)}
	}
	if err := out.Validate(); err != nil {
		return &TileError{Row: job.Row, Col: job.Col, Err: fmt.Errorf("%w: %w", ErrInference, err)}
	}
	if want := job.PaddedOutput(s.Scale); out.Width != want.Dx() || out.Height != want.Dy() {
		err := fmt.Errorf("%w: model returned %dx%d for a %dx%d tile, want %dx%d",
			ErrShapeMismatch, out.Width, out.Height, in.Width, in.Height, want.Dx(), want.Dy())
		return &TileError{Row: job.Row, Col: job.Col, Err: fmt.Errorf("%w: %w", ErrInference, err)}
	}
	if err := Composite(dst, job.Output, out, job.Offset); err != nil {
		return &TileError{Row: job.Row, Col: job.Col, Err: err}
	}
	r.report(ctx, job, s.Len())
	return nil
}

// infer calls the model, giving up after the tile timeout even if the model
// does not watch its context.
func (r *Run) infer(ctx context.Context, tile PlanarBuffer) (PlanarBuffer, error) {
	if r.engine.timeout <= 0 {
		return r.engine.call(ctx, tile)
	}
	ctx, cancel := context.WithTimeout(ctx, r.engine.timeout)
	defer cancel()

	type result struct {
		out PlanarBuffer
		err error
	}
	ch := make(chan result, 1)
	go func() {
		out, err := r.engine.call(ctx, tile)
		ch <- result{out: out, err: err}
	}()
	select {
	case res := <-ch:
		return res.out, res.err
	case <-ctx.Done():
		return PlanarBuffer{}, ctx.Err()
	}
}

func (r *Run) report(ctx context.Context, job TileJob, total int) {
	r.progressMu.Lock()
	defer r.progressMu.Unlock()
	r.done++
	p := Progress{
		RunID:   r.id,
		Job:     job,
		Done:    r.done,
		Total:   total,
		Elapsed: time.Since(r.start),
	}
	r.engine.logger.DebugContext(ctx, "tile done",
		"row", job.Row,
		"col", job.Col,
		"done", p.Done,
		"total", p.Total)
	if r.engine.progress != nil {
		r.engine.progress(p)
	}
}
