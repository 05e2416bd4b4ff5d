package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/llehouerou/segue/internal/library"
)

type Config struct {
	Library  LibraryConfig  `koanf:"library"`
	Playback PlaybackConfig `koanf:"playback"`
	Remote   RemoteConfig   `koanf:"remote"`
	Log      LogConfig      `koanf:"log"`
}

// LibraryConfig tells the daemon where the tracks live.
type LibraryConfig struct {
	Source string `koanf:"source"` // directory scanned for audio files
	Watch  bool   `koanf:"watch"`  // repopulate when the directory changes
}

// PlaybackConfig holds the sequencer options.
type PlaybackConfig struct {
	AutoPlayNext     bool    `koanf:"auto_play_next"`
	CrossFadeSeconds float64 `koanf:"cross_fade_seconds"`
}

// Options converts the playback section to sequencer options.
func (p PlaybackConfig) Options() library.Options {
	return library.Options{
		AutoPlayNext: p.AutoPlayNext,
		CrossFade:    time.Duration(p.CrossFadeSeconds * float64(time.Second)),
	}
}

// RemoteConfig holds the control/status listener settings.
type RemoteConfig struct {
	Listen string `koanf:"listen"` // address for the control/status endpoints
}

// LogConfig holds logging settings. File output is optional; the console
// always gets logs.
type LogConfig struct {
	Level      string `koanf:"level"` // debug, info, warn, error
	File       string `koanf:"file"`  // empty disables file output
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
	Compress   bool   `koanf:"compress"`
}

// Load reads configuration from the default paths, later paths winning.
func Load() (*Config, error) {
	return loadFrom(configPaths()...)
}

func loadFrom(paths ...string) (*Config, error) {
	k := koanf.New(".")

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	cfg := defaults()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	cfg.Library.Source = expandPath(cfg.Library.Source)
	cfg.Log.File = expandPath(cfg.Log.File)

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Playback: PlaybackConfig{
			AutoPlayNext:     true,
			CrossFadeSeconds: 2,
		},
		Remote: RemoteConfig{
			Listen: ":8732",
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

func configPaths() []string {
	return []string{
		// XDG config dir, then pwd (highest priority).
		filepath.Join(xdg.ConfigHome, "segue", "config.toml"),
		"config.toml",
	}
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
