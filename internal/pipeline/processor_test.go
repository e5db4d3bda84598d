package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"gifsmith/internal/cache"
	"gifsmith/internal/engine"
	"gifsmith/internal/faults"
	"gifsmith/internal/geometry"
	"gifsmith/internal/overlay"
	"gifsmith/internal/pipeline"
	"gifsmith/internal/probe"
	"gifsmith/internal/testsupport"
)

func newProcessor(t *testing.T, backend engine.Backend) *pipeline.Processor {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Engine.RetryBackoffMs = 1
	cfg.Engine.RetryBackoffMaxMs = 5
	adapter := engine.NewAdapter(backend, uint64(cfg.Engine.MemoryCeilingMiB)<<20, nil)
	return pipeline.NewProcessor(cfg, adapter, nil, nil)
}

func helloOverlay() overlay.TextOverlay {
	o := overlay.New("Hello")
	o.Position = geometry.Position{X: 50, Y: 50}
	return o
}

func TestProcessRejectsEmptyOverlaysBeforeEngine(t *testing.T) {
	backend := &testsupport.FakeBackend{}
	proc := newProcessor(t, backend)

	// Neither a nil set nor overlays without text may reach the engine.
	blank := overlay.New("")
	sets := [][]overlay.TextOverlay{nil, {blank, overlay.New("   ")}}
	for _, overlays := range sets {
		_, err := proc.Process(context.Background(), probe.Descriptor{URL: "unused.gif"}, overlays)
		if !errors.Is(err, faults.ErrValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	}
	if backend.Loads() != 0 {
		t.Fatalf("engine loaded %d times for invalid input", backend.Loads())
	}
}

func TestProcessEndToEnd(t *testing.T) {
	backend := &testsupport.FakeBackend{Fractions: []float64{0.25, 0.5, 1}}
	proc := newProcessor(t, backend)
	source := testsupport.WriteGIF(t, t.TempDir(), 480, 270, 4)

	updates, cancel := proc.Subscribe()
	defer cancel()

	result, err := proc.Process(context.Background(), probe.Descriptor{URL: source}, []overlay.TextOverlay{helloOverlay()})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.Width != 480 || result.Height != 270 {
		t.Fatalf("result dimensions %dx%d, want 480x270", result.Width, result.Height)
	}
	if result.SizeBytes != int64(len(result.EncodedBytes)) || result.SizeBytes == 0 {
		t.Fatalf("size %d inconsistent with %d encoded bytes", result.SizeBytes, len(result.EncodedBytes))
	}
	if backend.Loads() != 1 {
		t.Fatalf("engine loaded %d times, want 1", backend.Loads())
	}

	last := pipeline.Progress{}
	sawStart := false
	for {
		select {
		case update := <-updates:
			if !sawStart {
				sawStart = true
			} else if update.Fraction < last.Fraction {
				t.Fatalf("fraction regressed from %v to %v", last.Fraction, update.Fraction)
			}
			last = update
			if update.Stage == pipeline.StageComplete {
				if update.Fraction != 1 {
					t.Fatalf("complete at fraction %v", update.Fraction)
				}
				return
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("never saw complete; last update %+v", last)
		}
	}
}

func TestProcessReusesInitializedEngine(t *testing.T) {
	backend := &testsupport.FakeBackend{}
	proc := newProcessor(t, backend)
	source := testsupport.WriteGIF(t, t.TempDir(), 120, 90, 2)
	overlays := []overlay.TextOverlay{helloOverlay()}

	for i := 0; i < 3; i++ {
		if _, err := proc.Process(context.Background(), probe.Descriptor{URL: source}, overlays); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if backend.Loads() != 1 {
		t.Fatalf("engine loaded %d times across runs, want 1", backend.Loads())
	}
	if backend.Runs() != 3 {
		t.Fatalf("engine ran %d times, want 3", backend.Runs())
	}
}

func TestProcessServesSecondRunFromCache(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Engine.RetryBackoffMs = 1
	cfg.Engine.RetryBackoffMaxMs = 5
	store, err := cache.Open(cfg, nil)
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	defer store.Close()

	backend := &testsupport.FakeBackend{}
	adapter := engine.NewAdapter(backend, uint64(cfg.Engine.MemoryCeilingMiB)<<20, nil)
	proc := pipeline.NewProcessor(cfg, adapter, store, nil)

	source := testsupport.WriteGIF(t, t.TempDir(), 120, 90, 2)
	overlays := []overlay.TextOverlay{helloOverlay()}

	first, err := proc.Process(context.Background(), probe.Descriptor{URL: source}, overlays)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.FromCache {
		t.Fatal("first run reported a cache hit")
	}

	second, err := proc.Process(context.Background(), probe.Descriptor{URL: source}, overlays)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !second.FromCache {
		t.Fatal("second run missed the cache")
	}
	if backend.Runs() != 1 {
		t.Fatalf("engine ran %d times, want 1", backend.Runs())
	}

	// A different overlay text must not reuse the cached entry.
	changed := helloOverlay()
	changed.Text = "Goodbye"
	third, err := proc.Process(context.Background(), probe.Descriptor{URL: source}, []overlay.TextOverlay{changed})
	if err != nil {
		t.Fatalf("third run: %v", err)
	}
	if third.FromCache {
		t.Fatal("changed overlays reused a stale cache entry")
	}
}

func TestCancelAbortsRunAndEngineRecovers(t *testing.T) {
	backend := &testsupport.FakeBackend{Block: make(chan struct{})}
	proc := newProcessor(t, backend)
	source := testsupport.WriteGIF(t, t.TempDir(), 120, 90, 2)

	type outcome struct {
		result *pipeline.Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := proc.Process(context.Background(), probe.Descriptor{URL: source}, []overlay.TextOverlay{helloOverlay()})
		done <- outcome{result, err}
	}()

	waitFor(t, func() bool { return backend.Runs() == 1 })
	proc.Cancel()

	select {
	case got := <-done:
		if got.err == nil {
			t.Fatal("cancelled run returned a result")
		}
		if !errors.Is(got.err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", got.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled run never resolved")
	}

	waitFor(t, func() bool { return proc.EngineState() == engine.StateReady })
}

func TestSecondProcessSupersedesFirst(t *testing.T) {
	backend := &testsupport.FakeBackend{Block: make(chan struct{})}
	proc := newProcessor(t, backend)
	source := testsupport.WriteGIF(t, t.TempDir(), 120, 90, 2)
	overlays := []overlay.TextOverlay{helloOverlay()}

	firstDone := make(chan error, 1)
	go func() {
		_, err := proc.Process(context.Background(), probe.Descriptor{URL: source}, overlays)
		firstDone <- err
	}()
	waitFor(t, func() bool { return backend.Runs() == 1 })

	// The superseded run's context is cancelled, so it unblocks on its
	// own; the second run waits on Block until the test releases it.
	type outcome struct {
		result *pipeline.Result
		err    error
	}
	secondDone := make(chan outcome, 1)
	go func() {
		result, err := proc.Process(context.Background(), probe.Descriptor{URL: source}, overlays)
		secondDone <- outcome{result, err}
	}()
	waitFor(t, func() bool { return backend.Runs() == 2 })

	select {
	case err := <-firstDone:
		if err == nil {
			t.Fatal("superseded run returned a result")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("superseded run never resolved")
	}

	close(backend.Block)
	select {
	case got := <-secondDone:
		if got.err != nil {
			t.Fatalf("superseding run: %v", got.err)
		}
		if got.result == nil || len(got.result.EncodedBytes) == 0 {
			t.Fatal("superseding run produced no output")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("superseding run never resolved")
	}
}

func TestMemoryFailureIsNotRetried(t *testing.T) {
	backend := &testsupport.FakeBackend{RunErr: errors.New("Cannot allocate memory")}
	proc := newProcessor(t, backend)
	source := testsupport.WriteGIF(t, t.TempDir(), 120, 90, 2)

	_, err := proc.Process(context.Background(), probe.Descriptor{URL: source}, []overlay.TextOverlay{helloOverlay()})
	if !errors.Is(err, faults.ErrMemory) {
		t.Fatalf("expected memory error, got %v", err)
	}
	if backend.Runs() != 1 {
		t.Fatalf("memory failure retried: %d runs", backend.Runs())
	}
}

func TestProcessingFailureRetriesUpToTable(t *testing.T) {
	backend := &testsupport.FakeBackend{RunErr: errors.New("filter graph rejected")}
	proc := newProcessor(t, backend)
	source := testsupport.WriteGIF(t, t.TempDir(), 120, 90, 2)

	_, err := proc.Process(context.Background(), probe.Descriptor{URL: source}, []overlay.TextOverlay{helloOverlay()})
	if !errors.Is(err, faults.ErrProcessing) {
		t.Fatalf("expected processing error, got %v", err)
	}
	if want := faults.MaxAttempts(faults.KindProcessing); backend.Runs() != want {
		t.Fatalf("engine ran %d times, want %d", backend.Runs(), want)
	}
}

func TestBackendLossRebuildsEngineAndRetries(t *testing.T) {
	backend := &testsupport.FakeBackend{
		RunErrs: []error{fmt.Errorf("%w: scratch space vanished", engine.ErrBackendLost)},
	}
	proc := newProcessor(t, backend)
	source := testsupport.WriteGIF(t, t.TempDir(), 120, 90, 2)

	result, err := proc.Process(context.Background(), probe.Descriptor{URL: source}, []overlay.TextOverlay{helloOverlay()})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(result.EncodedBytes) == 0 {
		t.Fatal("no encoded bytes after rebuild")
	}
	if backend.Loads() != 2 {
		t.Fatalf("engine loaded %d times, want a fresh load after backend loss", backend.Loads())
	}
	if backend.Runs() != 2 {
		t.Fatalf("engine ran %d times, want 2", backend.Runs())
	}
	if proc.EngineState() != engine.StateReady {
		t.Fatalf("engine state = %s, want ready", proc.EngineState())
	}
}

func TestProbeFailureSurfacesNetworkError(t *testing.T) {
	backend := &testsupport.FakeBackend{}
	proc := newProcessor(t, backend)

	_, err := proc.Process(context.Background(), probe.Descriptor{URL: "http://127.0.0.1:1/missing.gif"}, []overlay.TextOverlay{helloOverlay()})
	if !errors.Is(err, faults.ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
	if backend.Runs() != 0 {
		t.Fatalf("engine ran %d times for an unreachable source", backend.Runs())
	}
}

func TestResultMarshalsProcessingTimeInMilliseconds(t *testing.T) {
	result := pipeline.Result{Width: 10, Height: 20, ProcessingTime: 1500 * time.Millisecond, SizeBytes: 3}
	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded struct {
		ProcessingTimeMs int64 `json:"processingTimeMs"`
		Width            int   `json:"width"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.ProcessingTimeMs != 1500 {
		t.Fatalf("processingTimeMs = %d, want 1500", decoded.ProcessingTimeMs)
	}
	if decoded.Width != 10 {
		t.Fatalf("width = %d, want 10", decoded.Width)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never met")
}
