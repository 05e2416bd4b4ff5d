package fade

import (
	"sync"
	"sync/atomic"
	"time"
)

// Manual is a test Interpolator. Tweens do nothing until the test drives
// them with Step and Finish, making fade timing fully deterministic.
type Manual struct {
	mu     sync.Mutex
	tweens []*ManualTween
}

// NewManual creates a manual interpolator for testing.
func NewManual() *Manual {
	return &Manual{}
}

func (m *Manual) Animate(from, to float64, d time.Duration, apply func(float64), complete func()) Canceller {
	tw := &ManualTween{
		From:     from,
		To:       to,
		Duration: d,
		apply:    apply,
		complete: complete,
	}
	m.mu.Lock()
	m.tweens = append(m.tweens, tw)
	m.mu.Unlock()
	return tw
}

// Last returns the most recently started tween, or nil if none.
func (m *Manual) Last() *ManualTween {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.tweens) == 0 {
		return nil
	}
	return m.tweens[len(m.tweens)-1]
}

// Tweens returns all tweens started so far, in order.
func (m *Manual) Tweens() []*ManualTween {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*ManualTween(nil), m.tweens...)
}

// ManualTween is a tween under explicit test control.
type ManualTween struct {
	From     float64
	To       float64
	Duration time.Duration

	apply     func(float64)
	complete  func()
	settled   atomic.Bool
	cancelled atomic.Bool
}

// Step applies the value at the given fraction of the tween (0..1).
// No-op once the tween has settled.
func (t *ManualTween) Step(frac float64) {
	if t.settled.Load() {
		return
	}
	t.apply(t.From + (t.To-t.From)*frac)
}

// Finish applies the final value and fires completion, unless the tween
// was already cancelled or finished.
func (t *ManualTween) Finish() {
	if t.settled.CompareAndSwap(false, true) {
		t.apply(t.To)
		t.complete()
	}
}

func (t *ManualTween) Cancel() {
	if t.settled.CompareAndSwap(false, true) {
		t.cancelled.Store(true)
	}
}

// Cancelled reports whether Cancel won the race against Finish.
func (t *ManualTween) Cancelled() bool { return t.cancelled.Load() }

// Settled reports whether the tween has either finished or been cancelled.
func (t *ManualTween) Settled() bool { return t.settled.Load() }

// Verify Manual implements Interpolator at compile time.
var _ Interpolator = (*Manual)(nil)
