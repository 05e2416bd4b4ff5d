package sequencer

import "time"

// State represents the sequencer's playback state.
type State int

const (
	StateIdle State = iota
	StatePlaying
	StatePaused
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StatePlaying:
		return "Playing"
	case StatePaused:
		return "Paused"
	default:
		return "Unknown"
	}
}

// IsActive returns true if a track is current (playing or paused).
func (s State) IsActive() bool {
	return s == StatePlaying || s == StatePaused
}

// Status is a point-in-time snapshot of the sequencer.
type Status struct {
	State     State
	TrackID   int
	TrackName string
	Fading    bool
	Position  time.Duration
	Duration  time.Duration
}
