package library

// Resolve maps a play request to a concrete track. It is pure: it never
// mutates the library and depends only on its arguments.
//
// With a name, the first track matching it wins; no match resolves to
// (0, nil). Under duplicate names first-match-wins is all that is
// promised.
//
// Without a name, the request means "next in queue": the reference is the
// current track's name if currentID is live, otherwise the last entry's
// name, and the target is the entry after the reference's first
// occurrence, wrapping from the last position back to 1. Anchoring on the
// last entry makes a fresh Play start the queue at entry 1.
func Resolve(name string, currentID int, l *Library) (int, *Track) {
	if l == nil || l.Len() == 0 {
		return 0, nil
	}

	if name != "" {
		for i := range l.tracks {
			if l.tracks[i].Name == name {
				return l.tracks[i].ID, &l.tracks[i]
			}
		}
		return 0, nil
	}

	ref := l.tracks[len(l.tracks)-1].Name
	if cur := l.TrackByID(currentID); cur != nil {
		ref = cur.Name
	}

	for i := range l.tracks {
		if l.tracks[i].Name != ref {
			continue
		}
		target := l.tracks[i].ID + 1
		if target > l.Len() {
			target = 1
		}
		return target, l.TrackByID(target)
	}
	return 0, nil
}
