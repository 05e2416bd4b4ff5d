package sequencer

import "errors"

// Operation failures are diagnostics, not control flow: every public
// operation logs, returns one of these sentinels and leaves playback state
// untouched. Callers that care can compare with errors.Is or just observe
// state afterwards.
var (
	// ErrLibraryNotPopulated is returned by Play before any track is
	// registered.
	ErrLibraryNotPopulated = errors.New("library not populated")
	// ErrTrackNotFound is returned when a requested name cannot be
	// resolved to a track.
	ErrTrackNotFound = errors.New("track not found")
	// ErrNoCurrentTrack is returned by Resume and Skip while idle.
	ErrNoCurrentTrack = errors.New("no current track")
	// ErrInvalidResource marks an entry or inlet that does not satisfy the
	// expected capability.
	ErrInvalidResource = errors.New("invalid resource")
)
