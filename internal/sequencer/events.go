package sequencer

// StateChange is emitted when the playback state changes.
type StateChange struct {
	Previous State
	Current  State
}

// TrackChange is emitted when a new track becomes current.
//
// Emitted by Play and Skip (and therefore by auto-advance, which goes
// through Play). Stop does not emit TrackChange; the transition to Idle
// is a StateChange.
type TrackChange struct {
	PreviousID int
	ID         int
	Name       string
}

// ErrorEvent is emitted when an operation is rejected.
type ErrorEvent struct {
	Operation string // e.g. "play", "resume"
	Err       error
}
