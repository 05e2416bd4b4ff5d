// Package library holds the ordered track registry the sequencer plays
// from. Identifiers are dense, 1-based and positional: they are assigned
// in input order on every Populate and are only valid until the next one.
package library

import (
	"time"

	"github.com/llehouerou/segue/internal/audio"
)

// Entry is one candidate track handed to Populate.
type Entry struct {
	Name  string
	Audio audio.Track
}

// Valid reports whether the entry satisfies the playable-track capability.
func (e Entry) Valid() bool {
	return e.Audio != nil && e.Name != ""
}

// Track is a registered library entry.
type Track struct {
	ID   int
	Name string
	// Audio is the playable resource behind the track.
	Audio audio.Track
	// OriginalVolume is the resource's natural level captured at
	// population time; fade-ins target it.
	OriginalVolume float64
}

// Options control sequencer behavior for the populated generation. They
// are sticky: a Populate without options keeps the previous values.
type Options struct {
	AutoPlayNext bool
	CrossFade    time.Duration
}

// Library is an ordered registry of tracks. It is a plain container:
// callers serialize access and handle diagnostics for skipped entries.
type Library struct {
	tracks []Track
}

// New creates an empty library.
func New() *Library {
	return &Library{}
}

// Populate replaces the library contents with the valid entries, in input
// order, assigning identifiers from 1. Invalid entries are skipped and
// returned so the caller can report them. Each track's current volume is
// captured as its original volume.
func (l *Library) Populate(entries []Entry) (skipped []Entry) {
	l.tracks = l.tracks[:0]
	for _, e := range entries {
		if !e.Valid() {
			skipped = append(skipped, e)
			continue
		}
		l.tracks = append(l.tracks, Track{
			ID:             len(l.tracks) + 1,
			Name:           e.Name,
			Audio:          e.Audio,
			OriginalVolume: e.Audio.Volume(),
		})
	}
	return skipped
}

// Len returns the number of registered tracks.
func (l *Library) Len() int {
	return len(l.tracks)
}

// TrackByID returns the track with the given identifier, or nil if the
// identifier is not part of the current generation.
func (l *Library) TrackByID(id int) *Track {
	if id < 1 || id > len(l.tracks) {
		return nil
	}
	return &l.tracks[id-1]
}

// Tracks returns a copy of all registered tracks in order.
func (l *Library) Tracks() []Track {
	return append([]Track(nil), l.tracks...)
}
