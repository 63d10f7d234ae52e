// Package throttle coalesces rapid small text deltas into fewer, larger
// sink updates so downstream consumers (SSE writers, UI buffers) are not
// redrawn for every fragment the model emits.
package throttle

import (
	"context"
	"strings"
	"time"
)

// DefaultInterval is the minimum time between two sink flushes. A tuning
// constant, not load-bearing for correctness.
const DefaultInterval = 50 * time.Millisecond

// Sink receives one batched update. It is always invoked from the single
// goroutine running the aggregator; implementations need no locking.
type Sink func(text string)

// Aggregator accumulates deltas into a pending buffer and flushes it to the
// sink at most once per interval. The concatenation of all flushed batches,
// in flush order, equals the concatenation of all deltas in arrival order;
// batching changes chunk boundaries only.
type Aggregator struct {
	interval time.Duration
	sink     Sink
	pending  strings.Builder
}

func New(interval time.Duration, sink Sink) *Aggregator {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Aggregator{interval: interval, sink: sink}
}

// Run consumes deltas until the channel closes or ctx is cancelled. On every
// exit path the remaining pending buffer is flushed exactly once, so no
// trailing text is lost on completion, cancellation, or failure. Run returns
// only after that terminal flush; the caller may treat its return as the
// point past which no further sink writes occur.
func (a *Aggregator) Run(ctx context.Context, deltas <-chan string) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	defer a.flush()

	for {
		select {
		case d, ok := <-deltas:
			if !ok {
				return
			}
			a.pending.WriteString(d)
		case <-ticker.C:
			a.flush()
		case <-ctx.Done():
			return
		}
	}
}

func (a *Aggregator) flush() {
	if a.pending.Len() == 0 {
		return
	}
	text := a.pending.String()
	a.pending.Reset()
	a.sink(text)
}
