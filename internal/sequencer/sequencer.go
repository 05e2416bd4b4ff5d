// Package sequencer is the playback state machine: it owns the current
// track, orchestrates the library, the track selector and the fade
// coordinator, and schedules auto-advance.
//
// Public operations are serialized by an internal mutex; fade completions
// and the auto-advance watchdog re-enter through the same lock. Callbacks
// belonging to a cancelled fade never run, so a Stop issued mid-fade
// cannot be overtaken by the fade it just cancelled.
package sequencer

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/llehouerou/segue/internal/audio"
	"github.com/llehouerou/segue/internal/fade"
	"github.com/llehouerou/segue/internal/library"
)

// Sequencer coordinates playback over a populated library.
type Sequencer struct {
	log *zap.Logger

	mu      sync.Mutex
	lib     *library.Library
	fades   *fade.Coordinator
	opts    library.Options
	current int // current track id, 0 when idle
	paused  bool
	dog     *watchdog
	// dogInterval overrides the watchdog poll interval; zero means the
	// default. Tests shorten it.
	dogInterval time.Duration

	subs   []*Subscription
	subsMu sync.RWMutex

	done   chan struct{}
	closed bool
}

// New creates an idle sequencer. Playback does nothing until Populate has
// registered tracks.
func New(interp fade.Interpolator, log *zap.Logger) *Sequencer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sequencer{
		log:   log,
		lib:   library.New(),
		fades: fade.NewCoordinator(interp, log),
		done:  make(chan struct{}),
	}
}

// Populate replaces the library. Any current playback, fade or armed
// watchdog is torn down first; identifiers restart at 1. Entries that are
// not valid playable resources are skipped with a diagnostic. Options are
// sticky: passing nil keeps the previous configuration.
func (s *Sequencer) Populate(entries []library.Entry, opts *library.Options) {
	s.mu.Lock()
	prev := s.stateLocked()
	s.teardownLocked()

	skipped := s.lib.Populate(entries)
	for _, e := range skipped {
		s.log.Warn("skipping library entry",
			zap.String("name", e.Name),
			zap.Error(ErrInvalidResource))
	}
	if opts != nil {
		s.opts = *opts
	}
	s.log.Info("library populated",
		zap.Int("tracks", s.lib.Len()),
		zap.Int("skipped", len(skipped)),
		zap.Bool("auto_play_next", s.opts.AutoPlayNext),
		zap.Duration("crossfade", s.opts.CrossFade))
	s.emitStateLocked(prev)
	s.mu.Unlock()
}

// Play starts the requested track, or the next one in queue when name is
// empty. A current track is retired through the fade machinery first, so
// the outgoing fade-out overlaps the incoming fade-in.
func (s *Sequencer) Play(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playLocked(name)
}

func (s *Sequencer) playLocked(name string) error {
	if s.lib.Len() == 0 {
		s.fail("play", ErrLibraryNotPopulated, zap.String("track", name))
		return ErrLibraryNotPopulated
	}

	// Resolve against the outgoing current track before it is retired, so
	// "next in queue" anchors correctly.
	id, tr := library.Resolve(name, s.current, s.lib)
	if id == 0 {
		s.fail("play", ErrTrackNotFound, zap.String("track", name))
		return ErrTrackNotFound
	}

	prevState := s.stateLocked()
	prevID := s.current
	s.retireLocked(tr.Audio)

	s.current = id
	s.paused = false
	s.fades.FadeIn(id, tr.Audio, tr.OriginalVolume, s.opts.CrossFade, s.fadeInDone)
	if s.opts.AutoPlayNext {
		s.armLocked(tr.Audio)
	}

	s.log.Info("playing track",
		zap.Int("id", id),
		zap.String("name", tr.Name),
		zap.Duration("crossfade", s.opts.CrossFade))
	s.emitTrackLocked(TrackChange{PreviousID: prevID, ID: id, Name: tr.Name})
	s.emitStateLocked(prevState)
	return nil
}

// Pause pauses the current track. A no-op while idle or already paused;
// fades keep running.
func (s *Sequencer) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.lib.TrackByID(s.current)
	if cur == nil || s.paused {
		return nil
	}
	prev := s.stateLocked()
	cur.Audio.Pause()
	s.paused = true
	s.log.Info("paused", zap.Int("id", cur.ID), zap.String("name", cur.Name))
	s.emitStateLocked(prev)
	return nil
}

// Resume resumes a paused track.
func (s *Sequencer) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.lib.TrackByID(s.current)
	if cur == nil {
		s.fail("resume", ErrNoCurrentTrack)
		return ErrNoCurrentTrack
	}
	if !s.paused {
		return nil
	}
	prev := s.stateLocked()
	cur.Audio.Resume()
	s.paused = false
	s.log.Info("resumed", zap.Int("id", cur.ID), zap.String("name", cur.Name))
	s.emitStateLocked(prev)
	return nil
}

// Stop retires the current track through a fade-out and disarms the
// watchdog. Safe to call while idle.
func (s *Sequencer) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.stateLocked()
	s.stopLocked()
	s.emitStateLocked(prev)
	return nil
}

// Skip advances to the next track in queue.
func (s *Sequencer) Skip() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lib.TrackByID(s.current) == nil {
		s.fail("skip", ErrNoCurrentTrack)
		return ErrNoCurrentTrack
	}
	return s.playLocked("")
}

// stopLocked applies the interruption policy and clears the current track.
func (s *Sequencer) stopLocked() {
	s.retireLocked(nil)
}

// retireLocked applies the interruption policy and clears the current
// track.
//
// A track already fading out was being retired; retiring finishes
// immediately rather than resurrecting it. A track fading in is redirected
// into a fade-out from its partial volume, so the interruption point never
// produces an audible jump.
//
// keep, when non-nil, is a resource about to be restarted by the caller:
// its sessions are cancelled without a farewell fade-out, so no late
// fade-out completion can stop the run the caller starts next. Replaying
// the current track must not retire its own resource.
func (s *Sequencer) retireLocked(keep audio.Track) {
	s.disarmLocked()

	if out := s.fades.CancelOut(); out != nil && out.Track != keep {
		out.Track.Stop()
		s.log.Debug("fade-out interrupted, track retired", zap.Int("id", out.TrackID))
	}

	if in := s.fades.CancelIn(); in != nil {
		if s.current == in.TrackID {
			s.current = 0
			s.paused = false
		}
		if in.Track != keep {
			s.fades.FadeOut(in.TrackID, in.Track, s.opts.CrossFade, s.fadeOutDone)
			s.log.Debug("fade-in redirected to fade-out", zap.Int("id", in.TrackID))
			return
		}
	}

	if cur := s.lib.TrackByID(s.current); cur != nil {
		s.current = 0
		s.paused = false
		if cur.Audio != keep {
			// Ownership of the track transfers to the fade coordinator
			// here; it is no longer current while it fades out.
			s.fades.FadeOut(cur.ID, cur.Audio, s.opts.CrossFade, s.fadeOutDone)
		}
	}
}

// teardownLocked is the destructive variant used by Populate and Close:
// no farewell fades, everything stops now.
func (s *Sequencer) teardownLocked() {
	s.disarmLocked()
	if out := s.fades.CancelOut(); out != nil {
		out.Track.Stop()
	}
	if in := s.fades.CancelIn(); in != nil {
		in.Track.Stop()
	}
	if cur := s.lib.TrackByID(s.current); cur != nil {
		cur.Audio.Stop()
	}
	s.current = 0
	s.paused = false
}

func (s *Sequencer) fadeOutDone(sess *fade.Session) {
	// The coordinator already stopped the track.
	s.log.Debug("fade-out complete", zap.Int("id", sess.TrackID))
}

func (s *Sequencer) fadeInDone(sess *fade.Session) {
	s.log.Debug("fade-in settled", zap.Int("id", sess.TrackID))
}

// State returns the current playback state.
func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Sequencer) stateLocked() State {
	if s.lib.TrackByID(s.current) == nil {
		return StateIdle
	}
	if s.paused {
		return StatePaused
	}
	return StatePlaying
}

// IsFading reports whether any fade session is in flight.
func (s *Sequencer) IsFading() bool {
	return s.fades.Active()
}

// CurrentTrack returns the current track, or nil while idle.
func (s *Sequencer) CurrentTrack() *library.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lib.TrackByID(s.current)
}

// Track resolves a name, or "next in queue" when name is empty, without
// touching playback. Returns (0, nil) when unresolvable.
func (s *Sequencer) Track(name string) (int, *library.Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return library.Resolve(name, s.current, s.lib)
}

// TrackByID returns the track with the given identifier, or nil if the
// identifier is not part of the current library generation.
func (s *Sequencer) TrackByID(id int) *library.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lib.TrackByID(id)
}

// Status returns a snapshot for status reporting.
func (s *Sequencer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		State:  s.stateLocked(),
		Fading: s.fades.Active(),
	}
	if cur := s.lib.TrackByID(s.current); cur != nil {
		st.TrackID = cur.ID
		st.TrackName = cur.Name
		st.Position = cur.Audio.Position()
		st.Duration = cur.Audio.Duration()
	}
	return st
}

// BindRemote forwards commands from the inlet to the corresponding
// operations until the inlet closes or the sequencer shuts down. A nil
// inlet is rejected.
func (s *Sequencer) BindRemote(inlet <-chan Command) error {
	if inlet == nil {
		s.fail("bind_remote", ErrInvalidResource)
		return ErrInvalidResource
	}
	go func() {
		for {
			select {
			case <-s.done:
				return
			case cmd, ok := <-inlet:
				if !ok {
					return
				}
				s.dispatch(cmd)
			}
		}
	}()
	return nil
}

func (s *Sequencer) dispatch(cmd Command) {
	switch cmd.Action {
	case ActionPlay, "":
		_ = s.Play(cmd.Track)
	case ActionPause:
		_ = s.Pause()
	case ActionResume:
		_ = s.Resume()
	case ActionStop:
		_ = s.Stop()
	case ActionSkip:
		_ = s.Skip()
	default:
		s.log.Warn("ignoring unknown remote command",
			zap.String("action", string(cmd.Action)),
			zap.String("track", cmd.Track))
	}
}

// Subscribe creates a new event subscription.
func (s *Sequencer) Subscribe() *Subscription {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	sub := newSubscription()
	s.subs = append(s.subs, sub)
	return sub
}

// Close tears down playback and all subscriptions.
func (s *Sequencer) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.teardownLocked()
	close(s.done)
	s.mu.Unlock()

	s.subsMu.Lock()
	for _, sub := range s.subs {
		sub.close()
	}
	s.subs = nil
	s.subsMu.Unlock()
	return nil
}

// fail logs a rejected operation and notifies subscribers. The operation
// itself is a no-op for playback state.
func (s *Sequencer) fail(op string, err error, fields ...zap.Field) {
	s.log.Warn(op+" rejected", append(fields, zap.Error(err))...)
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	for _, sub := range s.subs {
		sub.sendError(ErrorEvent{Operation: op, Err: err})
	}
}

func (s *Sequencer) emitStateLocked(prev State) {
	cur := s.stateLocked()
	if cur == prev {
		return
	}
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	for _, sub := range s.subs {
		sub.sendState(StateChange{Previous: prev, Current: cur})
	}
}

func (s *Sequencer) emitTrackLocked(e TrackChange) {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	for _, sub := range s.subs {
		sub.sendTrack(e)
	}
}
