// Package guisound maps UI action IDs and window lifecycle events to
// preloaded one-shot sounds, grounded on CGUIAudioManager.
package guisound

import (
	"sync"

	"github.com/drgolem/musictools/pkg/aeengine"
	"github.com/drgolem/musictools/pkg/aesink"
)

// WindowEvent selects which of a window's two configured sounds to play.
type WindowEvent int

const (
	SoundInit WindowEvent = iota
	SoundDeinit
)

// apSound is one cached sound's handles: primary always present,
// secondary only when dual-output is enabled and the file loaded there too.
type apSound struct {
	sound  *aesink.LocalSink
	sound2 *aesink.LocalSink
	usage  int
}

type windowPair struct {
	initKey, deinitKey string
}

// Manager plays preloaded UI sounds fire-and-forget, deduplicating
// identical files across actions/windows/script triggers via a usage
// counter (m_soundCache), and is globally disabled when no sound skin is
// selected.
type Manager struct {
	factory *aeengine.Factory

	mu           sync.Mutex
	enabled      bool
	hasSecondary bool

	soundFormat aesink.Format

	cache        map[string]apSound
	actionSounds map[int]string
	windowSounds map[int]windowPair
}

// New returns a disabled Manager; call Enable once a sound skin is known.
func New(factory *aeengine.Factory, soundFormat aesink.Format) *Manager {
	return &Manager{
		factory:      factory,
		soundFormat:  soundFormat,
		cache:        make(map[string]apSound),
		actionSounds: make(map[int]string),
		windowSounds: make(map[int]windowPair),
	}
}

// Enable toggles sound playback; forced off if soundSkin is empty,
// mirroring CGUIAudioManager::Enable's "no skin selected" guard.
func (m *Manager) Enable(soundSkin string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = soundSkin != ""
}

// SetDualOutput toggles whether the secondary-slot handle of each loaded
// sound is also fired.
func (m *Manager) SetDualOutput(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hasSecondary = on
}

// loadSound opens file on the primary slot (and, if dual-output is
// enabled, the secondary slot too), reusing an existing cache entry and
// bumping its usage count. Caller must hold m.mu.
func (m *Manager) loadSound(key, file string) {
	if aps, ok := m.cache[key]; ok {
		aps.usage++
		m.cache[key] = aps
		return
	}

	aps := apSound{usage: 1}
	aps.sound = m.factory.MakeSound(aeengine.Primary, file, m.soundFormat)
	if m.hasSecondary {
		aps.sound2 = m.factory.MakeSound(aeengine.Secondary, file, m.soundFormat)
	}
	m.cache[key] = aps
}

// freeSound decrements a cached sound's usage and frees its handles once
// it reaches zero. Caller must hold m.mu.
func (m *Manager) freeSound(key string) {
	aps, ok := m.cache[key]
	if !ok {
		return
	}
	aps.usage--
	if aps.usage > 0 {
		m.cache[key] = aps
		return
	}
	if aps.sound != nil {
		m.factory.FreeStream(aeengine.Primary, aps.sound)
	}
	if aps.sound2 != nil {
		m.factory.FreeStream(aeengine.Secondary, aps.sound2)
	}
	delete(m.cache, key)
}

// BindAction associates actionID with file, loading (or reusing) it.
func (m *Manager) BindAction(actionID int, file string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := "action:" + file
	if old, ok := m.actionSounds[actionID]; ok {
		m.freeSound(old)
	}
	m.loadSound(key, file)
	m.actionSounds[actionID] = key
}

// PlayActionSound fires the sound bound to actionID, if enabled and bound.
func (m *Manager) PlayActionSound(actionID int) {
	m.mu.Lock()
	enabled := m.enabled
	hasSecondary := m.hasSecondary
	key, ok := m.actionSounds[actionID]
	var aps apSound
	if ok {
		aps = m.cache[key]
	}
	m.mu.Unlock()

	if !enabled || !ok {
		return
	}
	play(aps, hasSecondary)
}

// BindWindow associates id's init/deinit sounds.
func (m *Manager) BindWindow(id int, initFile, deinitFile string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var wp windowPair
	if initFile != "" {
		wp.initKey = "window-init:" + initFile
		m.loadSound(wp.initKey, initFile)
	}
	if deinitFile != "" {
		wp.deinitKey = "window-deinit:" + deinitFile
		m.loadSound(wp.deinitKey, deinitFile)
	}
	m.windowSounds[id] = wp
}

// PlayWindowSound fires id's sound for the given event.
func (m *Manager) PlayWindowSound(id int, event WindowEvent) {
	m.mu.Lock()
	enabled := m.enabled
	hasSecondary := m.hasSecondary
	wp, ok := m.windowSounds[id]
	var aps apSound
	if ok {
		key := wp.initKey
		if event == SoundDeinit {
			key = wp.deinitKey
		}
		if key != "" {
			aps = m.cache[key]
		} else {
			ok = false
		}
	}
	m.mu.Unlock()

	if !enabled || !ok {
		return
	}
	play(aps, hasSecondary)
}

// PlayScriptSound plays file fire-and-forget, caching the decoded sound
// for subsequent calls unless useCached is false (which forces a fresh
// load, discarding any cached handle first).
func (m *Manager) PlayScriptSound(file string, useCached bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.enabled {
		return
	}

	key := "script:" + file
	if !useCached {
		m.freeSound(key)
	}
	m.loadSound(key, file)
	play(m.cache[key], m.hasSecondary)
}

func play(aps apSound, hasSecondary bool) {
	if aps.sound == nil {
		return
	}
	aps.sound.Resume()
	if hasSecondary && aps.sound2 != nil {
		aps.sound2.Resume()
	}
}

// Stop halts every currently cached sound (pause + flush, since sinks
// have no dedicated one-shot Stop).
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, aps := range m.cache {
		if aps.sound != nil {
			aps.sound.Pause()
			aps.sound.Flush()
		}
		if aps.sound2 != nil {
			aps.sound2.Pause()
			aps.sound2.Flush()
		}
	}
}

// Unload frees every cached sound and clears all bindings.
func (m *Manager) Unload() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, aps := range m.cache {
		if aps.sound != nil {
			m.factory.FreeStream(aeengine.Primary, aps.sound)
		}
		if aps.sound2 != nil {
			m.factory.FreeStream(aeengine.Secondary, aps.sound2)
		}
	}
	m.cache = make(map[string]apSound)
	m.actionSounds = make(map[int]string)
	m.windowSounds = make(map[int]windowPair)
}
