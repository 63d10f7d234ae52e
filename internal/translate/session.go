package translate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/streamlate/streamlate/internal/throttle"
)

// ErrCancelled is the terminal signal delivered to stream consumers whose
// session ended by cancellation, so they can tell "cancelled" apart from
// "completed" and "failed". It is not a failure for bookkeeping: records
// persist with the cancelled status, never the failed one.
var ErrCancelled = errors.New("translation cancelled")

// State is the lifecycle position of a streaming session.
type State int32

const (
	StateConnecting State = iota
	StateStreaming
	StateCompleted
	StateCancelled
	StateFailed
)

func (s State) Terminal() bool { return s >= StateCompleted }

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Streamer is the slice of the Ollama client the translator needs.
type Streamer interface {
	Stream(ctx context.Context, model, prompt string) (<-chan string, <-chan error)
}

// Session is one live, cancellable translation. It ends in exactly one of
// Completed, Cancelled, or Failed and is then discarded, never reused. Once
// it reaches a terminal state no further writes hit the output sink.
type Session struct {
	cancel context.CancelFunc
	done   chan struct{}
	state  atomic.Int32

	mu      sync.Mutex
	failure error
}

// Cancel requests cooperative cancellation. It takes effect at the next
// suspension point (stream read or throttle wait).
func (s *Session) Cancel() { s.cancel() }

// Done is closed after the session reaches a terminal state and its terminal
// flush has run.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) State() State { return State(s.state.Load()) }

// Err returns the failure for StateFailed sessions, nil otherwise.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure
}

// Wait blocks until the session is terminal and reports how it ended.
func (s *Session) Wait() (State, error) {
	<-s.done
	return s.State(), s.Err()
}

func (s *Session) finish(st State, err error) {
	s.mu.Lock()
	s.failure = err
	s.mu.Unlock()
	s.state.Store(int32(st))
}

// Translator owns the single-session invariant: at most one streaming
// translation is active at a time, and starting a new one first cancels and
// awaits the teardown of the prior one so two sessions never write into the
// same sink concurrently.
type Translator struct {
	client   Streamer
	interval time.Duration

	mu     sync.Mutex
	active *Session
}

func NewTranslator(client Streamer, interval time.Duration) *Translator {
	return &Translator{client: client, interval: interval}
}

// Start begins a new streaming translation. Batched text reaches the sink
// through a throttled aggregator; the sink is invoked by one goroutine only.
// The partial text already delivered is never rolled back on failure.
func (t *Translator) Start(ctx context.Context, model, prompt string, sink throttle.Sink) *Session {
	t.mu.Lock()
	if prev := t.active; prev != nil {
		prev.Cancel()
		<-prev.Done()
	}
	sctx, cancel := context.WithCancel(ctx)
	s := &Session{cancel: cancel, done: make(chan struct{})}
	s.state.Store(int32(StateConnecting))
	t.active = s
	client := t.client
	t.mu.Unlock()

	go func() {
		defer close(s.done)

		deltas, errs := client.Stream(sctx, model, prompt)

		agg := throttle.New(t.interval, func(text string) {
			s.state.CompareAndSwap(int32(StateConnecting), int32(StateStreaming))
			sink(text)
		})
		agg.Run(sctx, deltas)

		// The aggregator has returned, so the terminal flush already ran and
		// the sink sees nothing further. Await the client's own teardown to
		// learn how the stream ended.
		err := <-errs
		switch {
		case err == nil:
			s.finish(StateCompleted, nil)
		case errors.Is(err, context.Canceled):
			s.finish(StateCancelled, nil)
		default:
			s.finish(StateFailed, err)
		}
	}()

	return s
}
