package audio

import "time"

// Track is the capability surface the sequencer needs from a playable
// audio resource. Volume levels are linear in [0, 1]; implementations own
// the mapping to whatever scale the output device uses.
//
// SetVolume is called from fade interpolation goroutines concurrently with
// transport calls, so implementations must be safe for that.
type Track interface {
	// Play (re)starts playback from the beginning of the track.
	Play()
	Pause()
	Resume()
	// Stop halts playback and detaches the track from the output. Safe to
	// call when not playing.
	Stop()

	Volume() float64
	SetVolume(level float64)

	Duration() time.Duration
	Position() time.Duration

	// Finished is closed when the track reaches its natural end. Each Play
	// installs a fresh channel; Stop never closes it.
	Finished() <-chan struct{}
}
