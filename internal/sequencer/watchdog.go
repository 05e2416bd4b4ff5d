package sequencer

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/llehouerou/segue/internal/audio"
)

// defaultWatchdogInterval is how often the auto-advance watchdog polls the
// current track's position. It only needs to be comfortably finer than
// any sensible crossfade window, not per-frame.
const defaultWatchdogInterval = 200 * time.Millisecond

// watchdog observes the playing track and triggers a queue advance once
// the remaining time drops inside the crossfade window, or the track ends
// naturally. It fires at most once; Stop is idempotent and a stopped
// watchdog never fires.
type watchdog struct {
	stop    chan struct{}
	settled atomic.Bool
}

// Stop disarms the watchdog. Safe to call repeatedly, and after firing.
func (w *watchdog) Stop() {
	if w.settled.CompareAndSwap(false, true) {
		close(w.stop)
	}
}

// armLocked replaces any armed watchdog with a fresh one observing t.
// Caller holds s.mu.
func (s *Sequencer) armLocked(t audio.Track) {
	s.disarmLocked()

	w := &watchdog{stop: make(chan struct{})}
	s.dog = w

	interval := s.dogInterval
	if interval <= 0 {
		interval = defaultWatchdogInterval
	}
	window := s.opts.CrossFade
	finished := t.Finished()

	go func() {
		tick := time.NewTicker(interval)
		defer tick.Stop()
		for {
			select {
			case <-w.stop:
				return
			case <-finished:
			case <-tick.C:
				d := t.Duration()
				if d <= 0 {
					continue
				}
				if d-t.Position() > window {
					continue
				}
			}
			// Claim the trigger; lose the race to a disarm and this
			// watchdog stays silent.
			if w.settled.CompareAndSwap(false, true) {
				s.advance(w)
			}
			return
		}
	}()
}

// advance runs a claimed trigger. The armed-watchdog identity is
// rechecked under the lock: a Stop that landed between the claim and
// here has already disarmed, and the advance is abandoned.
func (s *Sequencer) advance(w *watchdog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dog != w {
		return
	}
	s.dog = nil
	s.log.Debug("auto-advancing to next track")
	if err := s.playLocked(""); err != nil {
		s.log.Warn("auto-advance failed", zap.Error(err))
	}
}

// disarmLocked stops the armed watchdog, if any. Caller holds s.mu.
func (s *Sequencer) disarmLocked() {
	if s.dog != nil {
		s.dog.Stop()
		s.dog = nil
	}
}
