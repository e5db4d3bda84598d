package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"gifsmith/internal/faults"
	"gifsmith/internal/logging"
)

// ErrBackendLost signals that a backend found its loaded resources gone at
// run time. The adapter parks in Failed; Dispose is the only way out.
var ErrBackendLost = errors.New("engine backend lost")

// State names one phase of the adapter lifecycle.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitializing  State = "initializing"
	StateReady         State = "ready"
	StateProcessing    State = "processing"
	StateCancelling    State = "cancelling"
	StateFailed        State = "failed"
)

// MemoryUsage reports the adapter's view of backend memory pressure.
type MemoryUsage struct {
	CurrentBytes uint64  `json:"currentBytes"`
	MaxBytes     uint64  `json:"maxBytes"`
	Percentage   float64 `json:"percentage"`
}

// Request carries one compositing job: the source animation bytes and the
// pre-rendered raster, which already holds final glyph positions. Backends
// perform no coordinate math.
type Request struct {
	SourceBytes []byte
	Raster      *image.NRGBA
	Width       int
	Height      int
	FrameCount  int
}

// Result is the encoded output of one compositing job.
type Result struct {
	EncodedBytes []byte
	Width        int
	Height       int
}

// Backend is the heavyweight transcoder behind the adapter. Load is the
// one-time expensive initialization; Run performs one job and must honor ctx
// cancellation at its execution boundary.
type Backend interface {
	Name() string
	Load(ctx context.Context) error
	Run(ctx context.Context, req Request, emit func(fraction float64)) (*Result, error)
	Release() error
}

// Adapter drives a Backend through the engine lifecycle. One adapter (and
// one backend instance) serves the whole process; each instance carries
// substantial fixed cost, so callers serialize through it.
type Adapter struct {
	backend Backend
	logger  *slog.Logger
	memory  *gauge

	mu        sync.Mutex
	state     State
	initDone  chan struct{}
	initErr   error
	runCancel context.CancelFunc
}

// NewAdapter constructs an adapter in the Uninitialized state. memoryCeiling
// of zero disables the budget check.
func NewAdapter(backend Backend, memoryCeiling uint64, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Adapter{
		backend: backend,
		logger:  logger.With(logging.FieldComponent, "engine"),
		memory:  newGauge(memoryCeiling),
		state:   StateUninitialized,
	}
}

// State returns the current lifecycle phase.
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Initialize loads the backend. It is idempotent and memoized: concurrent
// callers during the Initializing phase share the same in-flight load, and
// callers after a successful load return immediately.
func (a *Adapter) Initialize(ctx context.Context) error {
	a.mu.Lock()
	switch a.state {
	case StateReady, StateProcessing, StateCancelling:
		a.mu.Unlock()
		return nil
	case StateFailed:
		a.mu.Unlock()
		return faults.Wrap(faults.ErrInitialization, "engine", "initialize",
			"engine failed; dispose before reinitializing", nil)
	case StateInitializing:
		done := a.initDone
		a.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return faults.Wrap(faults.ErrInitialization, "engine", "initialize", "wait for load", ctx.Err())
		}
		a.mu.Lock()
		err := a.initErr
		a.mu.Unlock()
		return err
	}

	// Uninitialized: this caller performs the load.
	a.state = StateInitializing
	a.initDone = make(chan struct{})
	a.initErr = nil
	done := a.initDone
	a.mu.Unlock()

	a.logger.Info("loading engine backend", "backend", a.backend.Name())
	err := a.backend.Load(ctx)

	a.mu.Lock()
	if err != nil {
		a.state = StateFailed
		a.initErr = faults.Wrap(faults.ErrInitialization, "engine", "load", a.backend.Name(), err)
	} else {
		a.state = StateReady
	}
	result := a.initErr
	close(done)
	a.mu.Unlock()

	if result != nil {
		a.logger.Error("engine load failed", "backend", a.backend.Name(), "error", err)
	}
	return result
}

// Composite runs one job. The adapter must be Ready; the source and raster
// must share dimensions, since the filter graph composites two same-sized
// images at offset (0,0).
func (a *Adapter) Composite(ctx context.Context, req Request, emit func(fraction float64)) (*Result, error) {
	if req.Raster == nil {
		return nil, faults.Wrap(faults.ErrValidation, "engine", "composite", "raster missing", nil)
	}
	if b := req.Raster.Bounds(); b.Dx() != req.Width || b.Dy() != req.Height {
		return nil, faults.Wrap(faults.ErrValidation, "engine", "composite",
			fmt.Sprintf("raster %dx%d does not match source %dx%d", b.Dx(), b.Dy(), req.Width, req.Height), nil)
	}
	if err := a.memory.admit(req); err != nil {
		return nil, err
	}

	a.mu.Lock()
	if a.state != StateReady {
		state := a.state
		a.mu.Unlock()
		return nil, faults.Wrap(faults.ErrProcessing, "engine", "composite",
			fmt.Sprintf("engine is %s, not ready", state), nil)
	}
	runCtx, cancel := context.WithCancel(ctx)
	a.state = StateProcessing
	a.runCancel = cancel
	a.mu.Unlock()
	defer cancel()

	result, err := a.backend.Run(runCtx, req, clampEmit(emit))

	a.mu.Lock()
	cancelled := a.state == StateCancelling
	lost := !cancelled && errors.Is(err, ErrBackendLost)
	a.runCancel = nil
	if lost {
		a.state = StateFailed
	} else {
		a.state = StateReady
	}
	a.mu.Unlock()

	if cancelled || runCtx.Err() != nil && ctx.Err() == nil {
		// A cancel request beat completion: partial output is discarded.
		return nil, faults.Wrap(faults.ErrProcessing, "engine", "composite", "cancelled", context.Canceled)
	}
	if lost {
		a.logger.Error("engine backend lost mid-run", "backend", a.backend.Name(), "error", err)
		return nil, faults.Wrap(faults.ErrInitialization, "engine", "composite",
			"backend lost; dispose before reinitializing", err)
	}
	if err != nil {
		return nil, faults.ClassifyEngineFailure("engine", "composite", err)
	}
	return result, nil
}

// Cancel requests cooperative termination of the in-flight job. It returns
// immediately; the job observes the cancellation at its next execution
// boundary and the adapter returns to Ready.
func (a *Adapter) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateProcessing || a.runCancel == nil {
		return
	}
	a.state = StateCancelling
	a.runCancel()
}

// MemoryUsage reports current consumption against the configured ceiling.
func (a *Adapter) MemoryUsage() MemoryUsage {
	return a.memory.usage()
}

// Dispose releases all backend resources and resets the adapter to
// Uninitialized. It is the only exit from the Failed state.
func (a *Adapter) Dispose() error {
	a.mu.Lock()
	if a.runCancel != nil {
		a.runCancel()
		a.runCancel = nil
	}
	a.state = StateUninitialized
	a.initDone = nil
	a.initErr = nil
	a.mu.Unlock()

	if err := a.backend.Release(); err != nil {
		return faults.Wrap(faults.ErrProcessing, "engine", "dispose", a.backend.Name(), err)
	}
	return nil
}

func clampEmit(emit func(float64)) func(float64) {
	if emit == nil {
		return func(float64) {}
	}
	return func(fraction float64) {
		if fraction < 0 {
			fraction = 0
		}
		if fraction > 1 {
			fraction = 1
		}
		emit(fraction)
	}
}
