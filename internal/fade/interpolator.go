package fade

import (
	"sync/atomic"
	"time"
)

// Interpolator animates a scalar value over a duration. It is the tween
// capability the coordinator consumes; production code uses Ticker, tests
// drive a Manual instance.
type Interpolator interface {
	// Animate interpolates linearly from from to to over d, pushing
	// intermediate values through apply. Once the final value has been
	// applied, complete is called exactly once.
	//
	// A zero or negative duration still completes asynchronously, never
	// inside the Animate call itself.
	//
	// Cancelling the returned handle halts interpolation, leaves the value
	// wherever it was last applied, and guarantees complete never runs
	// afterwards. Cancel is idempotent; cancelling an already-completed
	// tween is a no-op.
	Animate(from, to float64, d time.Duration, apply func(float64), complete func()) Canceller
}

// Canceller cancels an in-flight tween.
type Canceller interface {
	Cancel()
}

// Ticker is the production Interpolator: a goroutine stepping the value on
// a fixed tick.
type Ticker struct {
	// Step is the tick interval. Defaults to ~60 steps per second.
	Step time.Duration
}

type tickerTween struct {
	// settled flips exactly once, either by Cancel or by completion;
	// whoever wins owns the outcome.
	settled atomic.Bool
	stop    chan struct{}
}

func (t *tickerTween) Cancel() {
	if t.settled.CompareAndSwap(false, true) {
		close(t.stop)
	}
}

func (ti *Ticker) Animate(from, to float64, d time.Duration, apply func(float64), complete func()) Canceller {
	step := ti.Step
	if step <= 0 {
		step = time.Second / 60
	}

	tw := &tickerTween{stop: make(chan struct{})}
	go func() {
		if d > 0 {
			start := time.Now()
			tick := time.NewTicker(step)
			defer tick.Stop()
			for {
				select {
				case <-tw.stop:
					return
				case <-tick.C:
				}
				frac := float64(time.Since(start)) / float64(d)
				if frac >= 1 {
					break
				}
				apply(from + (to-from)*frac)
			}
		}
		if tw.settled.CompareAndSwap(false, true) {
			apply(to)
			complete()
		}
	}()
	return tw
}

// Verify Ticker implements Interpolator at compile time.
var _ Interpolator = (*Ticker)(nil)
