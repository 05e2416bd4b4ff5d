package audio

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

// mixRate is the fixed speaker sample rate. Tracks with a different native
// rate are resampled, so two tracks can overlap during a crossfade.
const mixRate = beep.SampleRate(44100)

var (
	speakerOnce sync.Once
	speakerErr  error
)

// InitSpeaker initializes the shared output device. Must be called once
// before any File is played.
func InitSpeaker() error {
	speakerOnce.Do(func() {
		speakerErr = speaker.Init(mixRate, mixRate.N(time.Second/10))
	})
	return speakerErr
}

// File is a Track backed by a decoded audio file.
type File struct {
	path     string
	streamer beep.StreamSeekCloser
	format   beep.Format
	src      *os.File

	mu       sync.Mutex
	ctrl     *beep.Ctrl
	volume   *effects.Volume
	level    float64
	playing  bool
	paused   bool
	severed  *atomic.Bool
	finished chan struct{}
}

// Open decodes the file at path and returns a playable track.
// Supported formats: mp3, flac, wav, ogg/vorbis.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	case ".flac":
		streamer, format, err = flac.Decode(f)
	case ".wav":
		streamer, format, err = wav.Decode(f)
	case ".ogg", ".oga":
		streamer, format, err = vorbis.Decode(f)
	default:
		err = fmt.Errorf("unsupported format: %s", ext)
	}
	if err != nil {
		f.Close()
		return nil, err
	}

	return &File{
		path:     path,
		streamer: streamer,
		format:   format,
		src:      f,
		level:    1,
		finished: make(chan struct{}),
	}, nil
}

// Path returns the file path the track was opened from.
func (f *File) Path() string { return f.path }

// Play starts playback from the beginning, severing any previous run of
// this track from the mixer first.
func (f *File) Play() {
	f.Stop()

	f.mu.Lock()
	defer f.mu.Unlock()

	speaker.Lock()
	_ = f.streamer.Seek(0)
	speaker.Unlock()

	severed := &atomic.Bool{}
	done := make(chan struct{})
	f.severed = severed
	f.finished = done

	var src beep.Streamer = &severable{inner: f.streamer, severed: severed}
	if f.format.SampleRate != mixRate {
		src = beep.Resample(4, f.format.SampleRate, mixRate, src)
	}
	f.ctrl = &beep.Ctrl{Streamer: src}
	f.volume = &effects.Volume{
		Streamer: f.ctrl,
		Base:     2,
		Volume:   levelToVolume(f.level),
		Silent:   f.level <= 0,
	}
	f.playing = true
	f.paused = false

	speaker.Play(beep.Seq(f.volume, beep.Callback(func() {
		// Severed streams drain through here too; only a natural end
		// counts as finished.
		if !severed.Load() {
			close(done)
		}
	})))
}

// Stop detaches the track from the mixer. The underlying streamer stays
// open so the track can be played again.
func (f *File) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.playing {
		return
	}
	f.severed.Store(true)
	speaker.Lock()
	// Unpause so the mixer pulls the severed stream and drops it.
	f.ctrl.Paused = false
	speaker.Unlock()
	f.ctrl = nil
	f.volume = nil
	f.playing = false
	f.paused = false
}

func (f *File) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.playing || f.paused || f.ctrl == nil {
		return
	}
	speaker.Lock()
	f.ctrl.Paused = true
	speaker.Unlock()
	f.paused = true
}

func (f *File) Resume() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.paused || f.ctrl == nil {
		return
	}
	speaker.Lock()
	f.ctrl.Paused = false
	speaker.Unlock()
	f.paused = false
}

// Volume returns the linear level last set, not the device value.
func (f *File) Volume() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.level
}

func (f *File) SetVolume(level float64) {
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.level = level
	if f.volume == nil {
		return
	}
	speaker.Lock()
	f.volume.Volume = levelToVolume(level)
	f.volume.Silent = level <= 0
	speaker.Unlock()
}

func (f *File) Duration() time.Duration {
	return f.format.SampleRate.D(f.streamer.Len())
}

// Position reads the streamer position without the speaker lock; it may be
// slightly stale but never deadlocks against the mixer.
func (f *File) Position() time.Duration {
	return f.format.SampleRate.D(f.streamer.Position())
}

func (f *File) Finished() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finished
}

// Close releases the decoder and the underlying file. The track must not
// be played afterwards.
func (f *File) Close() error {
	f.Stop()
	err := f.streamer.Close()
	if cerr := f.src.Close(); err == nil {
		err = cerr
	}
	return err
}

// levelToVolume converts a 0.0-1.0 linear level to beep's log scale.
// beep volume is in "decibels" with base 2: 0 means no change, -1 half
// volume, -2 quarter. 1.0 -> 0, 0.5 -> -1, 0 -> silent.
func levelToVolume(level float64) float64 {
	if level <= 0 {
		return -10
	}
	if level >= 1 {
		return 0
	}
	return math.Log2(level)
}

// severable ends its stream once the severed flag is set, so the mixer
// drops it without clearing the whole speaker.
type severable struct {
	inner   beep.Streamer
	severed *atomic.Bool
}

func (s *severable) Stream(samples [][2]float64) (int, bool) {
	if s.severed.Load() {
		return 0, false
	}
	return s.inner.Stream(samples)
}

func (s *severable) Err() error { return s.inner.Err() }

// Verify File implements Track at compile time.
var _ Track = (*File)(nil)
