package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"gifsmith/internal/cache"
	"gifsmith/internal/config"
	"gifsmith/internal/engine"
	"gifsmith/internal/faults"
	"gifsmith/internal/logging"
	"gifsmith/internal/metrics"
	"gifsmith/internal/overlay"
	"gifsmith/internal/probe"
	"gifsmith/internal/render"
)

// Progress fractions assigned to run milestones. Engine progress is mapped
// into the processing band so the overall fraction stays monotonic.
const (
	fractionInitialized = 0.05
	fractionProbed      = 0.10
	fractionEncoding    = 0.95
	processingBand      = fractionEncoding - fractionProbed
)

// Result is the immutable outcome of one successful run. Overlay changes
// supersede a Result; they never mutate it.
type Result struct {
	EncodedBytes   []byte        `json:"-"`
	Width          int           `json:"width"`
	Height         int           `json:"height"`
	ProcessingTime time.Duration `json:"-"`
	SizeBytes      int64         `json:"sizeBytes"`
	FromCache      bool          `json:"fromCache,omitempty"`
}

// MarshalJSON reports ProcessingTime in whole milliseconds, matching the
// X-Render-Duration-Ms response header.
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	return json.Marshal(struct {
		plain
		ProcessingTimeMs int64 `json:"processingTimeMs"`
	}{plain(r), r.ProcessingTime.Milliseconds()})
}

// Processor drives the compositing pipeline. One Processor serializes all
// runs through one shared engine adapter; a run started while another is in
// flight supersedes it.
type Processor struct {
	cfg      *config.Config
	adapter  *engine.Adapter
	renderer *render.Renderer
	prober   *probe.Prober
	store    *cache.Store
	logger   *slog.Logger
	progress *broadcaster

	mu         sync.Mutex
	generation uint64
	cancelRun  context.CancelFunc

	// runMu serializes runs so a superseding call only touches the
	// engine once the superseded run has fully unwound.
	runMu sync.Mutex
}

// NewProcessor wires a Processor. store may be nil (cache disabled).
func NewProcessor(cfg *config.Config, adapter *engine.Adapter, store *cache.Store, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = logging.NewNop()
	}
	p := &Processor{
		cfg:      cfg,
		adapter:  adapter,
		renderer: render.NewRenderer(),
		prober:   probe.NewProber(time.Duration(cfg.Engine.ProbeTimeoutSecs) * time.Second),
		store:    store,
		logger:   logging.NewComponentLogger(logger, "pipeline"),
		progress: newBroadcaster(),
	}
	return p
}

// Subscribe registers a progress sink for subsequent runs. Callers must
// invoke the returned cancel once done to avoid leaking the subscription.
func (p *Processor) Subscribe() (<-chan Progress, func()) {
	return p.progress.Subscribe()
}

// MemoryUsage reports the engine's view of memory pressure.
func (p *Processor) MemoryUsage() engine.MemoryUsage {
	usage := p.adapter.MemoryUsage()
	metrics.EngineMemoryBytes.Set(float64(usage.CurrentBytes))
	return usage
}

// EngineState exposes the adapter lifecycle phase.
func (p *Processor) EngineState() engine.State {
	return p.adapter.State()
}

// Cancel aborts the in-flight run, if any. The run resolves with a
// cancellation error and the engine returns to ready within bounded time.
func (p *Processor) Cancel() {
	p.mu.Lock()
	cancel := p.cancelRun
	p.cancelRun = nil
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	p.adapter.Cancel()
}

// Process runs the full pipeline: validate overlays, ensure the engine is
// ready, resolve the source, rasterize, composite, and return the encoded
// result. Starting a new run while one is in flight supersedes the old run;
// its late progress and completion are discarded.
func (p *Processor) Process(ctx context.Context, source probe.Descriptor, overlays []overlay.TextOverlay) (*Result, error) {
	gen, runCtx, cancel := p.begin(ctx)
	defer p.finish(gen, cancel)

	p.runMu.Lock()
	defer p.runMu.Unlock()

	start := time.Now()
	p.progress.reset()

	result, err := p.run(runCtx, gen, source, overlays, start)
	if err != nil {
		kind := faults.Classify(err)
		outcome := "failure"
		if errors.Is(err, context.Canceled) {
			outcome = "cancelled"
		}
		metrics.ProcessTotal.WithLabelValues(outcome, string(kind)).Inc()
		p.logger.Error("run failed", logging.FieldErrorKind, string(kind), "error", err)
		return nil, err
	}

	metrics.ProcessTotal.WithLabelValues("success", "").Inc()
	metrics.ProcessDuration.Observe(result.ProcessingTime.Seconds())
	p.emit(gen, Progress{Stage: StageComplete, Fraction: 1})
	return result, nil
}

func (p *Processor) run(ctx context.Context, gen uint64, source probe.Descriptor, overlays []overlay.TextOverlay, start time.Time) (*Result, error) {
	// Step 1: input shape. Never retried.
	if err := p.validate(overlays); err != nil {
		return nil, err
	}

	// Step 2: lazy engine initialization.
	err := p.retryStep(ctx, "initialize", func(attempt int) error {
		if attempt > 0 && p.adapter.State() == engine.StateFailed {
			// A failed engine is never healed in place.
			if err := p.adapter.Dispose(); err != nil {
				return err
			}
		}
		if p.adapter.State() == engine.StateUninitialized {
			metrics.EngineLoads.Inc()
		}
		return p.adapter.Initialize(ctx)
	})
	if err != nil {
		return nil, err
	}
	p.emit(gen, Progress{Stage: StageLoading, Fraction: fractionInitialized})

	// Step 3: resolve natural dimensions and fetch source bytes. A retry
	// re-probes; the source may have become reachable.
	var data []byte
	err = p.retryStep(ctx, "probe", func(int) error {
		var probeErr error
		source, data, probeErr = p.prober.Probe(ctx, source.URL)
		return probeErr
	})
	if err != nil {
		return nil, err
	}
	if !source.Ready() {
		return nil, faults.Wrap(faults.ErrNotReady, "pipeline", "probe", "natural dimensions unknown", nil)
	}
	p.emit(gen, Progress{Stage: StageProcessing, Fraction: fractionProbed})

	key := cache.Key(data, overlays, source.NaturalWidth, source.NaturalHeight)
	if cached, hit, cacheErr := p.store.Get(ctx, key); cacheErr == nil && hit {
		metrics.CacheHits.Inc()
		p.emit(gen, Progress{Stage: StageEncoding, Fraction: fractionEncoding})
		return &Result{
			EncodedBytes:   cached,
			Width:          source.NaturalWidth,
			Height:         source.NaturalHeight,
			ProcessingTime: time.Since(start),
			SizeBytes:      int64(len(cached)),
			FromCache:      true,
		}, nil
	}
	metrics.CacheMisses.Inc()

	// Step 4: rasterize overlays at natural dimensions. Never retried.
	raster, _, err := p.renderer.Render(source.NaturalWidth, source.NaturalHeight, overlays)
	if err != nil {
		return nil, err
	}

	// Step 5: composite. Timeout failures get one more attempt with a
	// longer deadline.
	req := engine.Request{
		SourceBytes: data,
		Raster:      raster,
		Width:       source.NaturalWidth,
		Height:      source.NaturalHeight,
		FrameCount:  source.FrameCount,
	}
	var encoded *engine.Result
	err = p.retryStep(ctx, "composite", func(attempt int) error {
		if attempt > 0 && p.adapter.State() == engine.StateFailed {
			// The backend was lost mid-run; rebuild it from scratch.
			if err := p.adapter.Dispose(); err != nil {
				return err
			}
			metrics.EngineLoads.Inc()
			if err := p.adapter.Initialize(ctx); err != nil {
				return err
			}
		}
		deadline := time.Duration(p.cfg.Engine.TimeoutSeconds) * time.Second
		if attempt > 0 {
			deadline *= 2
		}
		attemptCtx, cancel := context.WithTimeout(ctx, deadline)
		defer cancel()

		var runErr error
		encoded, runErr = p.adapter.Composite(attemptCtx, req, func(fraction float64) {
			p.emit(gen, Progress{
				Stage:    StageProcessing,
				Fraction: fractionProbed + fraction*processingBand,
			})
		})
		if runErr != nil && ctx.Err() == nil && attemptCtx.Err() != nil {
			// The per-attempt deadline elapsed, not the caller's context.
			return faults.Wrap(faults.ErrTimeout, "pipeline", "composite", "engine deadline elapsed", runErr)
		}
		return runErr
	})
	if err != nil {
		return nil, err
	}

	p.emit(gen, Progress{Stage: StageEncoding, Fraction: fractionEncoding})
	if err := p.store.Put(ctx, key, encoded.EncodedBytes, encoded.Width, encoded.Height); err != nil {
		// Cache failures never fail the run.
		p.logger.Warn("cache store failed", "error", err)
	}

	return &Result{
		EncodedBytes:   encoded.EncodedBytes,
		Width:          encoded.Width,
		Height:         encoded.Height,
		ProcessingTime: time.Since(start),
		SizeBytes:      int64(len(encoded.EncodedBytes)),
	}, nil
}

func (p *Processor) validate(overlays []overlay.TextOverlay) error {
	if len(overlays) > p.cfg.Overlays.MaxCount {
		return faults.Wrap(faults.ErrValidation, "pipeline", "validate",
			"too many overlays", nil)
	}
	hasInk := false
	for _, o := range overlays {
		if res := overlay.Validate(o); !res.OK {
			return res.Err()
		}
		if o.HasText() {
			hasInk = true
		}
	}
	if !hasInk {
		return faults.Wrap(faults.ErrValidation, "pipeline", "validate",
			"no overlay has text to composite", nil)
	}
	return nil
}

// retryStep runs one pipeline step under the retry table. Retries re-enter
// the failed step only; earlier steps are not repeated.
func (p *Processor) retryStep(ctx context.Context, name string, op func(attempt int) error) error {
	attempt := 0
	for {
		err := op(attempt)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		kind := faults.Classify(err)
		if attempt+1 >= faults.MaxAttempts(kind) {
			return err
		}
		attempt++
		metrics.RetryTotal.WithLabelValues(string(kind)).Inc()

		delay := p.backoff(attempt)
		p.logger.Warn("step failed, retrying",
			logging.FieldStage, name,
			logging.FieldErrorKind, string(kind),
			"attempt", attempt,
			"backoff", delay,
		)
		if err := sleepWithContext(ctx, delay); err != nil {
			return err
		}
	}
}

// backoff grows exponentially with full jitter on the upper half, capped at
// the configured maximum.
func (p *Processor) backoff(attempt int) time.Duration {
	base := time.Duration(p.cfg.Engine.RetryBackoffMs) * time.Millisecond
	max := time.Duration(p.cfg.Engine.RetryBackoffMaxMs) * time.Millisecond

	delay := base * time.Duration(1<<uint(attempt-1))
	if delay > max {
		delay = max
	}
	half := delay / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}

func (p *Processor) begin(ctx context.Context) (uint64, context.Context, context.CancelFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelRun != nil {
		// Last call wins: supersede the in-flight run.
		p.cancelRun()
		p.adapter.Cancel()
	}
	p.generation++
	gen := p.generation
	runCtx, cancel := context.WithCancel(ctx)
	p.cancelRun = cancel
	return gen, runCtx, cancel
}

func (p *Processor) finish(gen uint64, cancel context.CancelFunc) {
	p.mu.Lock()
	if p.generation == gen {
		p.cancelRun = nil
	}
	p.mu.Unlock()
	cancel()
}

// emit publishes progress only for the current generation, so a superseded
// run's late updates are discarded instead of reaching subscribers.
func (p *Processor) emit(gen uint64, progress Progress) {
	p.mu.Lock()
	current := p.generation == gen
	p.mu.Unlock()
	if current {
		p.progress.publish(progress)
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
