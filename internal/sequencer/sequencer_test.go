package sequencer

import (
	"errors"
	"testing"
	"time"

	"github.com/llehouerou/segue/internal/audio"
	"github.com/llehouerou/segue/internal/fade"
	"github.com/llehouerou/segue/internal/library"
)

func newTestSequencer() (*Sequencer, *fade.Manual) {
	m := fade.NewManual()
	s := New(m, nil)
	s.dogInterval = 10 * time.Millisecond
	return s, m
}

// populate registers mock tracks under the given names and returns them
// keyed by name (first occurrence wins for duplicates).
func populate(s *Sequencer, opts *library.Options, names ...string) map[string]*audio.Mock {
	mocks := make(map[string]*audio.Mock)
	entries := make([]library.Entry, len(names))
	for i, n := range names {
		m := audio.NewMock()
		entries[i] = library.Entry{Name: n, Audio: m}
		if _, ok := mocks[n]; !ok {
			mocks[n] = m
		}
	}
	s.Populate(entries, opts)
	return mocks
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func currentName(s *Sequencer) string {
	if tr := s.CurrentTrack(); tr != nil {
		return tr.Name
	}
	return ""
}

func TestPlay_EmptyLibrary(t *testing.T) {
	s, _ := newTestSequencer()
	defer s.Close()

	err := s.Play("")
	if !errors.Is(err, ErrLibraryNotPopulated) {
		t.Fatalf("Play on empty library = %v, want ErrLibraryNotPopulated", err)
	}
	if s.State() != StateIdle {
		t.Errorf("State() = %v, want Idle", s.State())
	}
	if s.IsFading() {
		t.Error("IsFading() = true after rejected Play")
	}
}

func TestPlay_UnknownName(t *testing.T) {
	s, _ := newTestSequencer()
	defer s.Close()
	populate(s, nil, "A", "B")

	err := s.Play("Z")
	if !errors.Is(err, ErrTrackNotFound) {
		t.Fatalf("Play(Z) = %v, want ErrTrackNotFound", err)
	}
	if s.State() != StateIdle {
		t.Errorf("State() = %v, want Idle (state unchanged)", s.State())
	}
}

func TestPlay_FreshStateStartsAtFirstTrack(t *testing.T) {
	s, m := newTestSequencer()
	defer s.Close()
	mocks := populate(s, nil, "A", "B", "C")

	if err := s.Play(""); err != nil {
		t.Fatalf("Play() = %v", err)
	}

	if got := currentName(s); got != "A" {
		t.Errorf("current track = %q, want A", got)
	}
	if !mocks["A"].Playing() {
		t.Error("track A not playing")
	}
	if s.State() != StatePlaying {
		t.Errorf("State() = %v, want Playing", s.State())
	}

	// Fade-in targets the track's original volume.
	if tw := m.Last(); tw.From != 0 || tw.To != 1 {
		t.Errorf("fade-in range = %v..%v, want 0..1", tw.From, tw.To)
	}
}

func TestPlay_ExplicitNameAlwaysWins(t *testing.T) {
	s, m := newTestSequencer()
	defer s.Close()
	populate(s, nil, "A", "B", "C")

	_ = s.Play("C")
	m.Last().Finish()
	if got := currentName(s); got != "C" {
		t.Fatalf("current track = %q, want C", got)
	}

	if err := s.Play("A"); err != nil {
		t.Fatalf("Play(A) = %v", err)
	}
	if got := currentName(s); got != "A" {
		t.Errorf("current track = %q, want A", got)
	}
}

func TestPlay_CrossfadesCurrentTrack(t *testing.T) {
	s, m := newTestSequencer()
	defer s.Close()
	mocks := populate(s, &library.Options{CrossFade: 2 * time.Second}, "A", "B")

	_ = s.Play("A")
	m.Last().Finish() // settle A's fade-in

	if err := s.Play("B"); err != nil {
		t.Fatalf("Play(B) = %v", err)
	}

	// A is no longer current the moment its fade-out begins.
	if got := currentName(s); got != "B" {
		t.Errorf("current track = %q, want B", got)
	}
	if !s.IsFading() {
		t.Error("IsFading() = false during crossfade")
	}
	if mocks["A"].StopCalls() != 0 {
		t.Error("A stopped before its fade-out completed")
	}
	if !mocks["B"].Playing() {
		t.Error("B not playing during crossfade")
	}

	// Finish both sides of the crossfade.
	for _, tw := range m.Tweens() {
		tw.Finish()
	}
	if mocks["A"].StopCalls() != 1 {
		t.Errorf("A StopCalls = %d, want 1", mocks["A"].StopCalls())
	}
	if s.IsFading() {
		t.Error("IsFading() = true after crossfade completed")
	}
}

func TestPlay_InterruptsInFlightFadeOut(t *testing.T) {
	s, m := newTestSequencer()
	defer s.Close()
	mocks := populate(s, &library.Options{CrossFade: 2 * time.Second}, "A", "B", "C")

	_ = s.Play("A")
	m.Last().Finish()
	_ = s.Play("B") // A now fading out, B fading in

	aOut := m.Tweens()[1]
	if err := s.Play("C"); err != nil {
		t.Fatalf("Play(C) = %v", err)
	}

	// A's fade-out was cancelled and A forcibly retired.
	if !aOut.Cancelled() {
		t.Error("A's fade-out tween not cancelled")
	}
	if mocks["A"].StopCalls() != 1 {
		t.Errorf("A StopCalls = %d, want 1 (forced stop)", mocks["A"].StopCalls())
	}

	// No late signal: finishing the dead tween must not stop A again.
	aOut.Finish()
	if mocks["A"].StopCalls() != 1 {
		t.Errorf("A StopCalls after dead tween = %d, want 1", mocks["A"].StopCalls())
	}

	// B was fading in; it gets redirected into a fade-out instead of
	// jumping silent.
	if mocks["B"].StopCalls() != 0 {
		t.Error("B stopped outright; expected a redirected fade-out")
	}
	if got := currentName(s); got != "C" {
		t.Errorf("current track = %q, want C", got)
	}
}

func TestPlay_ReplayCurrentTrackKeepsItPlaying(t *testing.T) {
	s, m := newTestSequencer()
	defer s.Close()
	mocks := populate(s, &library.Options{CrossFade: time.Second}, "A", "B")

	_ = s.Play("A")
	m.Last().Finish()

	// Replaying the current track restarts it; it must not pass through
	// a fade-out that would stop the restarted resource later.
	if err := s.Play("A"); err != nil {
		t.Fatalf("Play(A) while A is current = %v", err)
	}
	for _, tw := range m.Tweens() {
		tw.Finish()
	}

	if mocks["A"].StopCalls() != 0 {
		t.Errorf("A StopCalls = %d, want 0 (replay retired its own resource)", mocks["A"].StopCalls())
	}
	if !mocks["A"].Playing() {
		t.Error("A not playing after replay")
	}
	if got := currentName(s); got != "A" {
		t.Errorf("current track = %q, want A", got)
	}
	if s.State() != StatePlaying {
		t.Errorf("State() = %v, want Playing", s.State())
	}
	if mocks["A"].PlayCalls() != 2 {
		t.Errorf("A PlayCalls = %d, want 2 (restart)", mocks["A"].PlayCalls())
	}
}

func TestPlay_ReplayMidFadeIn(t *testing.T) {
	s, m := newTestSequencer()
	defer s.Close()
	mocks := populate(s, &library.Options{CrossFade: time.Second}, "A")

	_ = s.Play("A")
	m.Last().Step(0.5)

	// The interrupted fade-in must not be redirected into a fade-out of
	// the track being restarted.
	if err := s.Play("A"); err != nil {
		t.Fatalf("Play(A) mid fade-in = %v", err)
	}
	for _, tw := range m.Tweens() {
		tw.Finish()
	}

	if mocks["A"].StopCalls() != 0 {
		t.Errorf("A StopCalls = %d, want 0", mocks["A"].StopCalls())
	}
	if !mocks["A"].Playing() || currentName(s) != "A" {
		t.Error("A not current and playing after mid-fade replay")
	}
}

func TestStop_Idle(t *testing.T) {
	s, _ := newTestSequencer()
	defer s.Close()
	populate(s, nil, "A")

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() while idle = %v, want nil", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("second Stop() = %v, want nil", err)
	}
	if s.State() != StateIdle || s.IsFading() {
		t.Error("Stop while idle changed state")
	}
}

func TestStop_FadesOutCurrentTrack(t *testing.T) {
	s, m := newTestSequencer()
	defer s.Close()
	mocks := populate(s, &library.Options{CrossFade: time.Second}, "A")

	_ = s.Play("A")
	m.Last().Finish()

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() = %v", err)
	}
	if s.State() != StateIdle {
		t.Errorf("State() = %v, want Idle once fade-out begins", s.State())
	}
	if mocks["A"].StopCalls() != 0 {
		t.Error("track stopped before fade-out completed")
	}

	m.Last().Finish()
	if mocks["A"].StopCalls() != 1 {
		t.Errorf("StopCalls = %d, want 1 after fade-out", mocks["A"].StopCalls())
	}
}

func TestStop_MidFadeIn_RedirectsSmoothly(t *testing.T) {
	s, m := newTestSequencer()
	defer s.Close()
	mocks := populate(s, &library.Options{CrossFade: time.Second}, "A")

	_ = s.Play("A")
	in := m.Last()
	in.Step(0.5) // volume now at half the target

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() = %v", err)
	}

	if !in.Cancelled() {
		t.Error("fade-in tween not cancelled")
	}
	out := m.Last()
	if out == in {
		t.Fatal("no redirected fade-out started")
	}
	// The redirect starts from the interrupted volume; no discontinuity.
	if out.From != 0.5 {
		t.Errorf("redirected fade-out From = %v, want 0.5", out.From)
	}
	if v := mocks["A"].Volume(); v != 0.5 {
		t.Errorf("volume right after Stop = %v, want 0.5 (no jump)", v)
	}
	if got := currentName(s); got != "" {
		t.Errorf("current track = %q, want none", got)
	}

	out.Finish()
	if mocks["A"].StopCalls() != 1 {
		t.Errorf("StopCalls = %d, want 1", mocks["A"].StopCalls())
	}
}

func TestPauseResume(t *testing.T) {
	s, m := newTestSequencer()
	defer s.Close()
	mocks := populate(s, nil, "A")

	// Pause while idle is a silent no-op.
	if err := s.Pause(); err != nil {
		t.Fatalf("Pause() while idle = %v, want nil", err)
	}

	// Resume while idle is a diagnosed no-op.
	if err := s.Resume(); !errors.Is(err, ErrNoCurrentTrack) {
		t.Fatalf("Resume() while idle = %v, want ErrNoCurrentTrack", err)
	}

	_ = s.Play("A")
	m.Last().Finish()

	if err := s.Pause(); err != nil {
		t.Fatalf("Pause() = %v", err)
	}
	if !mocks["A"].Paused() {
		t.Error("track not paused")
	}
	if s.State() != StatePaused {
		t.Errorf("State() = %v, want Paused", s.State())
	}
	// Pause keeps the current track.
	if got := currentName(s); got != "A" {
		t.Errorf("current track = %q, want A", got)
	}

	if err := s.Resume(); err != nil {
		t.Fatalf("Resume() = %v", err)
	}
	if mocks["A"].Paused() {
		t.Error("track still paused after Resume")
	}
	if s.State() != StatePlaying {
		t.Errorf("State() = %v, want Playing", s.State())
	}
}

func TestSkip(t *testing.T) {
	s, m := newTestSequencer()
	defer s.Close()
	populate(s, nil, "A", "B", "C")

	if err := s.Skip(); !errors.Is(err, ErrNoCurrentTrack) {
		t.Fatalf("Skip() while idle = %v, want ErrNoCurrentTrack", err)
	}

	_ = s.Play("B")
	m.Last().Finish()

	if err := s.Skip(); err != nil {
		t.Fatalf("Skip() = %v", err)
	}
	if got := currentName(s); got != "C" {
		t.Errorf("current track after Skip = %q, want C", got)
	}
}

func TestAutoAdvance_FiresInsideCrossfadeWindow(t *testing.T) {
	s, _ := newTestSequencer()
	defer s.Close()
	opts := &library.Options{AutoPlayNext: true, CrossFade: 100 * time.Millisecond}
	mocks := populate(s, opts, "A", "B")

	_ = s.Play("A")
	mocks["A"].SetDuration(time.Minute)
	mocks["A"].SetPosition(time.Minute - 50*time.Millisecond)

	waitFor(t, func() bool { return currentName(s) == "B" },
		"watchdog did not advance to B")
}

func TestAutoAdvance_NaturalFinish(t *testing.T) {
	s, _ := newTestSequencer()
	defer s.Close()
	opts := &library.Options{AutoPlayNext: true}
	mocks := populate(s, opts, "A", "B", "C")

	_ = s.Play("A")
	mocks["A"].SimulateFinished()

	waitFor(t, func() bool { return currentName(s) == "B" },
		"natural finish did not advance to B")
}

func TestAutoAdvance_SingleTrackWrapsToItself(t *testing.T) {
	s, _ := newTestSequencer()
	defer s.Close()
	opts := &library.Options{AutoPlayNext: true, CrossFade: 100 * time.Millisecond}
	mocks := populate(s, opts, "A")

	_ = s.Play("A")
	mocks["A"].SimulateFinished()

	// A one-track queue wraps back to the same track; the restart must
	// survive its own crossfade window.
	waitFor(t, func() bool { return mocks["A"].PlayCalls() == 2 },
		"single-track library did not wrap back to the same track")
	if mocks["A"].StopCalls() != 0 {
		t.Errorf("A StopCalls = %d, want 0", mocks["A"].StopCalls())
	}
	if got := currentName(s); got != "A" {
		t.Errorf("current track = %q, want A", got)
	}
	if s.State() != StatePlaying {
		t.Errorf("State() = %v, want Playing", s.State())
	}
}

func TestAutoAdvance_StopBeatsClaimedTrigger(t *testing.T) {
	s, _ := newTestSequencer()
	defer s.Close()
	mocks := populate(s, &library.Options{AutoPlayNext: true}, "A", "B")
	_ = s.Play("A")

	s.mu.Lock()
	w := s.dog
	s.mu.Unlock()

	// Claim the trigger the way the watchdog goroutine does, then land a
	// Stop before the advance runs: the disarm must still win.
	if !w.settled.CompareAndSwap(false, true) {
		t.Fatal("watchdog settled early")
	}
	_ = s.Stop()
	s.advance(w)

	if got := currentName(s); got != "" {
		t.Errorf("current track = %q, want none after Stop", got)
	}
	if s.State() != StateIdle {
		t.Errorf("State() = %v, want Idle", s.State())
	}
	if mocks["A"].PlayCalls() != 1 {
		t.Errorf("A PlayCalls = %d, want 1 (no restart after Stop)", mocks["A"].PlayCalls())
	}

	// Release the parked watchdog goroutine.
	mocks["A"].SimulateFinished()
}

func TestAutoAdvance_DisarmedByStop(t *testing.T) {
	s, _ := newTestSequencer()
	defer s.Close()
	opts := &library.Options{AutoPlayNext: true, CrossFade: 100 * time.Millisecond}
	mocks := populate(s, opts, "A", "B")

	_ = s.Play("A")
	_ = s.Stop()
	mocks["A"].SetDuration(time.Minute)
	mocks["A"].SetPosition(time.Minute)

	time.Sleep(100 * time.Millisecond)
	if got := currentName(s); got != "" {
		t.Errorf("watchdog fired after Stop; current = %q, want none", got)
	}
}

func TestPopulate_TearsDownPlayback(t *testing.T) {
	s, _ := newTestSequencer()
	defer s.Close()
	mocks := populate(s, nil, "A", "B", "C")

	_ = s.Play("A")
	populate(s, nil, "X")

	if mocks["A"].StopCalls() == 0 {
		t.Error("previous track not stopped by repopulation")
	}
	if s.State() != StateIdle {
		t.Errorf("State() = %v, want Idle after repopulation", s.State())
	}
	if s.IsFading() {
		t.Error("fades survived repopulation")
	}
	// Stale identifiers are gone.
	if tr := s.TrackByID(2); tr != nil {
		t.Errorf("TrackByID(2) = %v, want nil", tr)
	}
}

func TestPopulate_OptionsAreSticky(t *testing.T) {
	s, m := newTestSequencer()
	defer s.Close()

	populate(s, &library.Options{CrossFade: 2 * time.Second}, "A")
	// Repopulate without options: previous configuration sticks.
	populate(s, nil, "A", "B")

	_ = s.Play("A")
	if d := m.Last().Duration; d != 2*time.Second {
		t.Errorf("fade-in duration = %v, want sticky 2s", d)
	}
}

func TestRoundTrip_TwoTrackWrap(t *testing.T) {
	s, _ := newTestSequencer()
	defer s.Close()
	populate(s, &library.Options{AutoPlayNext: false, CrossFade: 0}, "A", "B")

	_ = s.Play("B")
	_ = s.Stop()

	if err := s.Play(""); err != nil {
		t.Fatalf("Play() = %v", err)
	}
	// No current track: anchor is the last entry (B), wrapping to A.
	if got := currentName(s); got != "A" {
		t.Errorf("current track = %q, want A", got)
	}
}

func TestTrack_ResolvesWithoutSideEffects(t *testing.T) {
	s, _ := newTestSequencer()
	defer s.Close()
	populate(s, nil, "A", "B")

	id, tr := s.Track("B")
	if id != 2 || tr == nil || tr.Name != "B" {
		t.Errorf("Track(B) = (%d, %v), want (2, B)", id, tr)
	}
	if id, tr := s.Track("Z"); id != 0 || tr != nil {
		t.Errorf("Track(Z) = (%d, %v), want (0, nil)", id, tr)
	}
	if s.State() != StateIdle {
		t.Error("Track lookup changed playback state")
	}
}

func TestBindRemote(t *testing.T) {
	s, _ := newTestSequencer()
	defer s.Close()
	populate(s, nil, "A", "B")

	if err := s.BindRemote(nil); !errors.Is(err, ErrInvalidResource) {
		t.Fatalf("BindRemote(nil) = %v, want ErrInvalidResource", err)
	}

	inlet := make(chan Command, 4)
	if err := s.BindRemote(inlet); err != nil {
		t.Fatalf("BindRemote = %v", err)
	}

	inlet <- Command{Action: ActionPlay, Track: "B"}
	waitFor(t, func() bool { return currentName(s) == "B" },
		"remote play command not applied")

	// Unknown actions are logged and ignored.
	inlet <- Command{Action: "dance"}
	inlet <- Command{Action: ActionPause}
	waitFor(t, func() bool { return s.State() == StatePaused },
		"remote pause command not applied")
}

func TestSubscribe_Events(t *testing.T) {
	s, _ := newTestSequencer()
	defer s.Close()
	sub := s.Subscribe()
	populate(s, nil, "A")

	// Rejected operation emits an error event.
	_ = s.Resume()
	select {
	case e := <-sub.Error:
		if e.Operation != "resume" || !errors.Is(e.Err, ErrNoCurrentTrack) {
			t.Errorf("error event = %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no error event for rejected Resume")
	}

	_ = s.Play("A")

	select {
	case e := <-sub.TrackChanged:
		if e.ID != 1 || e.Name != "A" || e.PreviousID != 0 {
			t.Errorf("track event = %+v, want track 1 A from none", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no track event for Play")
	}

	select {
	case e := <-sub.StateChanged:
		if e.Previous != StateIdle || e.Current != StatePlaying {
			t.Errorf("state event = %+v, want Idle->Playing", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no state event for Play")
	}
}

func TestClose_Idempotent(t *testing.T) {
	s, _ := newTestSequencer()
	mocks := populate(s, nil, "A")
	_ = s.Play("A")

	sub := s.Subscribe()
	if err := s.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close() = %v", err)
	}

	select {
	case <-sub.Done:
	default:
		t.Error("subscription not closed")
	}
	if mocks["A"].StopCalls() == 0 {
		t.Error("playback not torn down by Close")
	}
}
