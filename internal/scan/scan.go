// Package scan discovers playable audio files on disk and turns them into
// library entries.
package scan

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dhowden/tag"
	"go.uber.org/zap"

	"github.com/llehouerou/segue/internal/audio"
	"github.com/llehouerou/segue/internal/library"
)

var audioExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".wav":  true,
	".ogg":  true,
	".oga":  true,
}

// IsAudioFile reports whether the path has a playable audio extension.
func IsAudioFile(path string) bool {
	return audioExtensions[strings.ToLower(filepath.Ext(path))]
}

// Discover walks dir and returns all playable audio files, sorted by path
// so population order is stable across runs. Walk errors on individual
// entries are skipped; scanning continues.
func Discover(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil //nolint:nilerr // intentionally skipping errors
		}
		if d.IsDir() {
			return nil
		}
		if !IsAudioFile(path) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// Title returns the track's display name: the embedded tag title when one
// exists, otherwise the file name without extension.
func Title(path string) string {
	if f, err := os.Open(path); err == nil {
		defer f.Close()
		if m, err := tag.ReadFrom(f); err == nil {
			if t := strings.TrimSpace(m.Title()); t != "" {
				return t
			}
		}
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Entries discovers and opens every playable file under dir. Files that
// fail to decode are logged and skipped; the rest still load.
func Entries(dir string, log *zap.Logger) ([]library.Entry, error) {
	if log == nil {
		log = zap.NewNop()
	}

	files, err := Discover(dir)
	if err != nil {
		return nil, err
	}

	entries := make([]library.Entry, 0, len(files))
	for _, path := range files {
		track, err := audio.Open(path)
		if err != nil {
			log.Warn("skipping unreadable audio file",
				zap.String("path", path),
				zap.Error(err))
			continue
		}
		entries = append(entries, library.Entry{
			Name:  Title(path),
			Audio: track,
		})
	}
	return entries, nil
}
