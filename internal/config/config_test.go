package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := loadFrom() // no files
	if err != nil {
		t.Fatalf("loadFrom() = %v", err)
	}

	if !cfg.Playback.AutoPlayNext {
		t.Error("auto_play_next default = false, want true")
	}
	if cfg.Playback.CrossFadeSeconds != 2 {
		t.Errorf("cross_fade_seconds default = %v, want 2", cfg.Playback.CrossFadeSeconds)
	}
	if cfg.Remote.Listen != ":8732" {
		t.Errorf("remote listen default = %q, want :8732", cfg.Remote.Listen)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("log level default = %q, want info", cfg.Log.Level)
	}
}

func TestLoadFrom_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[library]
source = "/music"
watch = true

[playback]
auto_play_next = false
cross_fade_seconds = 3.5

[remote]
listen = "127.0.0.1:9000"

[log]
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadFrom(path)
	if err != nil {
		t.Fatalf("loadFrom() = %v", err)
	}

	if cfg.Library.Source != "/music" || !cfg.Library.Watch {
		t.Errorf("library = %+v, want /music watched", cfg.Library)
	}
	if cfg.Playback.AutoPlayNext {
		t.Error("auto_play_next = true, want false")
	}
	if cfg.Playback.CrossFadeSeconds != 3.5 {
		t.Errorf("cross_fade_seconds = %v, want 3.5", cfg.Playback.CrossFadeSeconds)
	}
	if cfg.Remote.Listen != "127.0.0.1:9000" {
		t.Errorf("remote listen = %q", cfg.Remote.Listen)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Log.Level)
	}
}

func TestLoadFrom_LaterPathWins(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.toml")
	override := filepath.Join(dir, "override.toml")

	if err := os.WriteFile(base, []byte("[playback]\ncross_fade_seconds = 1.0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(override, []byte("[playback]\ncross_fade_seconds = 5.0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadFrom(base, override)
	if err != nil {
		t.Fatalf("loadFrom() = %v", err)
	}
	if cfg.Playback.CrossFadeSeconds != 5 {
		t.Errorf("cross_fade_seconds = %v, want 5 (later path wins)", cfg.Playback.CrossFadeSeconds)
	}
}

func TestPlaybackConfig_Options(t *testing.T) {
	p := PlaybackConfig{AutoPlayNext: true, CrossFadeSeconds: 2.5}
	opts := p.Options()

	if !opts.AutoPlayNext {
		t.Error("AutoPlayNext not carried over")
	}
	if opts.CrossFade != 2500*time.Millisecond {
		t.Errorf("CrossFade = %v, want 2.5s", opts.CrossFade)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("Could not get home dir: %v", err)
	}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "tilde expands to home", input: "~/music", expected: filepath.Join(home, "music")},
		{name: "absolute path unchanged", input: "/srv/music", expected: "/srv/music"},
		{name: "relative path unchanged", input: "music", expected: "music"},
		{name: "empty string unchanged", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := expandPath(tt.input); got != tt.expected {
				t.Errorf("expandPath(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
