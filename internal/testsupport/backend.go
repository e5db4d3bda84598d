package testsupport

import (
	"context"
	"sync/atomic"

	"gifsmith/internal/engine"
)

// FakeBackend is a scriptable engine backend. Zero value behaves like an
// instant success that echoes the request dimensions.
type FakeBackend struct {
	LoadErr error
	RunErr  error
	Output  []byte

	// RunErrs are consumed one per call before RunErr is consulted; a nil
	// entry lets that call succeed.
	RunErrs []error

	// Fractions are emitted in order before Run returns.
	Fractions []float64

	// Block, when non-nil, is closed by the test to let Run finish; Run
	// waits on it after emitting progress so cancellation can be exercised.
	Block chan struct{}

	loads int32
	runs  int32
}

// Name identifies the fake in logs.
func (f *FakeBackend) Name() string { return "fake" }

// Load counts invocations and returns the scripted error.
func (f *FakeBackend) Load(ctx context.Context) error {
	atomic.AddInt32(&f.loads, 1)
	if f.LoadErr != nil {
		return f.LoadErr
	}
	return ctx.Err()
}

// Run emits the scripted progress, optionally blocks, then returns the
// scripted output or error.
func (f *FakeBackend) Run(ctx context.Context, req engine.Request, emit func(float64)) (*engine.Result, error) {
	run := int(atomic.AddInt32(&f.runs, 1)) - 1
	for _, fraction := range f.Fractions {
		emit(fraction)
	}
	if f.Block != nil {
		select {
		case <-f.Block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if run < len(f.RunErrs) {
		if err := f.RunErrs[run]; err != nil {
			return nil, err
		}
	} else if f.RunErr != nil {
		return nil, f.RunErr
	}
	output := f.Output
	if output == nil {
		output = []byte("encoded")
	}
	return &engine.Result{EncodedBytes: output, Width: req.Width, Height: req.Height}, nil
}

// Release is a no-op.
func (f *FakeBackend) Release() error { return nil }

// Loads returns how many times Load ran.
func (f *FakeBackend) Loads() int { return int(atomic.LoadInt32(&f.loads)) }

// Runs returns how many times Run ran.
func (f *FakeBackend) Runs() int { return int(atomic.LoadInt32(&f.runs)) }

var _ engine.Backend = (*FakeBackend)(nil)
