// Package fade runs volume fades between tracks. At most one outgoing and
// one incoming fade exist at any instant; together they form the crossfade
// window. Completion callbacks fire at most once per session and are
// severed by cancellation.
package fade

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/llehouerou/segue/internal/audio"
)

// Direction of a fade session.
type Direction int

const (
	Out Direction = iota
	In
)

func (d Direction) String() string {
	switch d {
	case Out:
		return "out"
	case In:
		return "in"
	default:
		return "unknown"
	}
}

// Session is one in-flight fade.
type Session struct {
	Direction Direction
	TrackID   int
	Track     audio.Track
	StartedAt time.Time
	Duration  time.Duration

	tween     Canceller
	cancelled atomic.Bool
}

// Cancelled reports whether the session was cancelled before completing.
func (s *Session) Cancelled() bool { return s.cancelled.Load() }

func (s *Session) cancel() {
	s.cancelled.Store(true)
	s.tween.Cancel()
}

// Coordinator owns the active fade sessions. Starting a fade in a
// direction synchronously cancels the previous session of that direction
// before the new one is installed.
//
// Completion callbacks run on interpolator goroutines with no coordinator
// lock held, so they may call back into the coordinator freely.
type Coordinator struct {
	interp Interpolator
	log    *zap.Logger

	mu  sync.Mutex
	out *Session
	in  *Session
}

// NewCoordinator creates a coordinator using the given interpolator.
func NewCoordinator(interp Interpolator, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{interp: interp, log: log}
}

// FadeOut interpolates the track's volume from its current value to zero
// over d, then stops the track and calls done. The fade starts from
// wherever the volume currently is, so a track interrupted mid fade-in
// retires smoothly instead of jumping.
func (c *Coordinator) FadeOut(id int, t audio.Track, d time.Duration, done func(*Session)) *Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.out != nil {
		c.out.cancel()
		c.out = nil
	}

	s := &Session{
		Direction: Out,
		TrackID:   id,
		Track:     t,
		StartedAt: time.Now(),
		Duration:  d,
	}
	c.log.Debug("fade-out started",
		zap.Int("track", id),
		zap.Duration("duration", d),
		zap.Float64("from", t.Volume()))
	s.tween = c.interp.Animate(t.Volume(), 0, d, t.SetVolume, func() {
		t.Stop()
		c.clear(s)
		if done != nil {
			done(s)
		}
	})
	c.out = s
	return s
}

// FadeIn resets the track's volume to zero, starts playback and
// interpolates up to target over d, then calls done.
func (c *Coordinator) FadeIn(id int, t audio.Track, target float64, d time.Duration, done func(*Session)) *Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.in != nil {
		c.in.cancel()
		c.in = nil
	}

	s := &Session{
		Direction: In,
		TrackID:   id,
		Track:     t,
		StartedAt: time.Now(),
		Duration:  d,
	}
	c.log.Debug("fade-in started",
		zap.Int("track", id),
		zap.Duration("duration", d),
		zap.Float64("target", target))
	t.SetVolume(0)
	t.Play()
	s.tween = c.interp.Animate(0, target, d, t.SetVolume, func() {
		c.clear(s)
		if done != nil {
			done(s)
		}
	})
	c.in = s
	return s
}

// CancelOut cancels the active fade-out, if any, and returns the cancelled
// session. What happens to the session's track is the caller's decision.
func (c *Coordinator) CancelOut() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.out
	if s != nil {
		s.cancel()
		c.out = nil
	}
	return s
}

// CancelIn cancels the active fade-in, if any, and returns the cancelled
// session.
func (c *Coordinator) CancelIn() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.in
	if s != nil {
		s.cancel()
		c.in = nil
	}
	return s
}

// Active reports whether any fade session is in flight.
func (c *Coordinator) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out != nil || c.in != nil
}

// FadingOut reports whether an outgoing fade is in flight.
func (c *Coordinator) FadingOut() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out != nil
}

// FadingIn reports whether an incoming fade is in flight.
func (c *Coordinator) FadingIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.in != nil
}

// clear drops the session from the active slots if it still occupies one.
// A session that was already superseded must not evict its replacement.
func (c *Coordinator) clear(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.out == s {
		c.out = nil
	}
	if c.in == s {
		c.in = nil
	}
}
