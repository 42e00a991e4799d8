// Package settings holds the configuration keys the audio core consumes,
// loaded from an optional YAML file (gopkg.in/yaml.v3) with sane defaults
// so the CLI commands work with zero configuration.
package settings

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SyncType selects the streaming audio sync-controller mode.
type SyncType int

const (
	SyncDiscon SyncType = iota
	SyncSkipDup
	SyncResample
)

// PassthroughSettings mirrors audiooutput.*passthrough keys for one output slot.
type PassthroughSettings struct {
	Passthrough bool `yaml:"passthrough"`
	Config      string `yaml:"config"` // "fixed" or "variable"
	AC3         bool   `yaml:"ac3passthrough"`
	DTS         bool   `yaml:"dtspassthrough"`
	EAC3        bool   `yaml:"eac3passthrough"`
	TrueHD      bool   `yaml:"truehdpassthrough"`
	DTSHD       bool   `yaml:"dtshdpassthrough"`
}

// AudioOutput2Settings mirrors the audiooutput2.* keys.
type AudioOutput2Settings struct {
	PassthroughSettings `yaml:",inline"`
	Enabled             bool   `yaml:"enabled"`
	Mode                string `yaml:"mode"`
}

// VideoPlayerSettings mirrors the videoplayer.* keys.
type VideoPlayerSettings struct {
	UseDisplayAsClock bool     `yaml:"usedisplayasclock"`
	SyncType          SyncType `yaml:"synctype"`
	MaxSpeedAdjust    float64  `yaml:"maxspeedadjust"`
}

// MusicPlayerSettings mirrors the musicplayer.* keys.
type MusicPlayerSettings struct {
	CrossfadeSeconds    float64 `yaml:"crossfade"`
	CrossfadeAlbumTrack bool    `yaml:"crossfadealbumtracks"`
}

// LookAndFeelSettings mirrors the lookandfeel.* keys.
type LookAndFeelSettings struct {
	SoundSkin string `yaml:"soundskin"`
}

// Settings is the full set of string-keyed settings the audio core reads.
type Settings struct {
	AudioOutput  PassthroughSettings  `yaml:"audiooutput"`
	AudioOutput2 AudioOutput2Settings `yaml:"audiooutput2"`
	VideoPlayer  VideoPlayerSettings  `yaml:"videoplayer"`
	MusicPlayer  MusicPlayerSettings  `yaml:"musicplayer"`
	LookAndFeel  LookAndFeelSettings  `yaml:"lookandfeel"`
}

// Default returns the settings a fresh install would have: no
// passthrough, no dual-output, clock-feedback sync, 0s crossfade.
func Default() *Settings {
	return &Settings{
		VideoPlayer: VideoPlayerSettings{
			SyncType:       SyncDiscon,
			MaxSpeedAdjust: 0,
		},
	}
}

// Load reads settings from a YAML file, falling back to Default() for any
// field the file doesn't set (yaml.Unmarshal into a pre-populated struct).
func Load(path string) (*Settings, error) {
	s := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("settings: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("settings: parse %s: %w", path, err)
	}
	return s, nil
}

// PassthroughAllowed reports whether the given codec's passthrough key is
// enabled and the overall output config isn't pinned to "fixed" (which
// spec.md says disallows passthrough regardless of per-codec settings).
func (p PassthroughSettings) PassthroughAllowed(codecEnabled bool) bool {
	if p.Config == "fixed" {
		return false
	}
	return p.Passthrough && codecEnabled
}
