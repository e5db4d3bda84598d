package pipeline

import "sync"

// Stage identifies a high-level step of one compositing run.
type Stage string

const (
	StageLoading    Stage = "loading"
	StageProcessing Stage = "processing"
	StageEncoding   Stage = "encoding"
	StageComplete   Stage = "complete"
)

// Progress is one monotonic update within a run. Fraction covers the whole
// run, not the current stage.
type Progress struct {
	Stage    Stage   `json:"stage"`
	Fraction float64 `json:"fraction"`
}

// broadcaster fans progress out to subscribers over buffered channels. Slow
// subscribers drop intermediate updates instead of stalling the run.
type broadcaster struct {
	mu   sync.Mutex
	subs map[int]chan Progress
	next int
	last Progress
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]chan Progress)}
}

// Subscribe registers a progress sink. The returned cancel function must be
// called once the caller is done, typically immediately after a run
// resolves, so subscriptions do not leak across runs.
func (b *broadcaster) Subscribe() (<-chan Progress, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan Progress, 16)
	b.subs[id] = ch
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if existing, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(existing)
		}
	}
}

// publish delivers an update, enforcing per-run monotonicity: a fraction
// lower than the last delivered one is lifted to it.
func (b *broadcaster) publish(p Progress) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p.Fraction < b.last.Fraction && p.Stage != StageLoading {
		p.Fraction = b.last.Fraction
	}
	b.last = p
	for _, ch := range b.subs {
		select {
		case ch <- p:
		default:
		}
	}
}

// reset starts a fresh run at {loading, 0}.
func (b *broadcaster) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = Progress{Stage: StageLoading, Fraction: 0}
	for _, ch := range b.subs {
		select {
		case ch <- b.last:
		default:
		}
	}
}
