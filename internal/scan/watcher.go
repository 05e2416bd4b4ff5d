package scan

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// debounceDelay batches bursts of filesystem events (a copy in progress
// emits many) into one change notification.
const debounceDelay = 500 * time.Millisecond

// Watcher monitors a library directory and signals when its audio
// contents change, so the caller can rescan and repopulate.
type Watcher struct {
	log     *zap.Logger
	fs      *fsnotify.Watcher
	changes chan struct{}
	done    chan struct{}
}

// Watch starts monitoring dir and its subdirectories.
func Watch(dir string, log *zap.Logger) (*Watcher, error) {
	if log == nil {
		log = zap.NewNop()
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		log:     log,
		fs:      fs,
		changes: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	if err := w.addRecursive(dir); err != nil {
		fs.Close()
		return nil, err
	}

	go w.run()
	log.Info("watching library directory", zap.String("dir", dir))
	return w, nil
}

// Changes signals at most once per debounce window that the library
// contents changed.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fs.Close()
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return w.fs.Add(path)
		}
		return nil
	})
}

func (w *Watcher) run() {
	var debounce *time.Timer
	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			w.log.Debug("library change detected",
				zap.String("path", event.Name),
				zap.String("op", event.Op.String()))

			// New directories need watching too.
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.addRecursive(event.Name)
				}
			}

			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDelay, w.notify)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warn("file watcher error", zap.Error(err))
		}
	}
}

// relevant filters out noise: hidden files, temp files, and non-audio
// files (except directory creation, which may bring audio with it).
func (w *Watcher) relevant(event fsnotify.Event) bool {
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".tmp") {
		return false
	}
	if IsAudioFile(event.Name) {
		return event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) ||
			event.Has(fsnotify.Rename) || event.Has(fsnotify.Write)
	}
	if event.Has(fsnotify.Create) {
		info, err := os.Stat(event.Name)
		return err == nil && info.IsDir()
	}
	return false
}

func (w *Watcher) notify() {
	select {
	case w.changes <- struct{}{}:
	default:
		// A change is already pending; the rescan will pick this up.
	}
}
