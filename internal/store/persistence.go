package store

import (
	"encoding/json"
	"fmt"

	"engiplex.com/aura-chat/internal/logger"
)

// Storage keys, shared with the browser layout.
const (
	KeySessions     = "chatSessions"
	KeyActiveID     = "activeSessionId"
	KeySavedPrompts = "savedPrompts"
	KeyTheme        = "theme"

	KeyLegacyHistory     = "chatHistory"
	KeyLegacyInstruction = "systemInstruction"
	KeyLegacyGrounding   = "useSearchGrounding"
	KeyLegacyInputDraft  = "chatInputDraft"
)

var legacyKeys = []string{
	KeyLegacyHistory,
	KeyLegacyInstruction,
	KeyLegacyGrounding,
	KeyLegacyInputDraft,
}

// Snapshot is everything LoadAll reads back.
type Snapshot struct {
	Sessions     []ChatSession
	ActiveID     string
	SavedPrompts []SavedPrompt
}

// LegacyState is the pre multi-session layout: one conversation plus its settings.
type LegacyState struct {
	Messages           []ChatMessage
	SystemInstruction  string
	UseSearchGrounding bool
}

// Persistence serializes application state into a KV. Every call writes
// through immediately; there is no batching and no transaction spanning
// the session collection and the active id.
type Persistence struct {
	kv KV
}

func NewPersistence(kv KV) *Persistence {
	return &Persistence{kv: kv}
}

// SaveSessions writes the collection. An empty collection is never written.
func (p *Persistence) SaveSessions(sessions []ChatSession) error {
	if len(sessions) == 0 {
		return nil
	}
	return p.setJSON(KeySessions, sessions)
}

// SaveActiveID writes the active session id unless it is empty.
func (p *Persistence) SaveActiveID(id string) error {
	if id == "" {
		return nil
	}
	if err := p.kv.Set(KeyActiveID, id); err != nil {
		return fmt.Errorf("failed to save active session id: %w", err)
	}
	return nil
}

// LoadAll reads sessions, active id and saved prompts. Missing keys yield
// zero values.
func (p *Persistence) LoadAll() (Snapshot, error) {
	var snap Snapshot

	sessions, err := p.LoadSessions()
	if err != nil {
		return snap, err
	}
	snap.Sessions = sessions

	activeID, _, err := p.kv.Get(KeyActiveID)
	if err != nil {
		return snap, fmt.Errorf("failed to load active session id: %w", err)
	}
	snap.ActiveID = activeID

	prompts, err := p.LoadSavedPrompts()
	if err != nil {
		return snap, err
	}
	snap.SavedPrompts = prompts
	return snap, nil
}

func (p *Persistence) LoadSessions() ([]ChatSession, error) {
	var sessions []ChatSession
	found, err := p.getJSON(KeySessions, &sessions)
	if err != nil || !found {
		return nil, err
	}
	return sessions, nil
}

func (p *Persistence) SaveSavedPrompts(prompts []SavedPrompt) error {
	if prompts == nil {
		prompts = []SavedPrompt{}
	}
	return p.setJSON(KeySavedPrompts, prompts)
}

func (p *Persistence) LoadSavedPrompts() ([]SavedPrompt, error) {
	var prompts []SavedPrompt
	found, err := p.getJSON(KeySavedPrompts, &prompts)
	if err != nil || !found {
		return nil, err
	}
	return prompts, nil
}

func (p *Persistence) SaveTheme(theme Theme) error {
	if !theme.Valid() {
		return fmt.Errorf("invalid theme %q", theme)
	}
	if err := p.kv.Set(KeyTheme, string(theme)); err != nil {
		return fmt.Errorf("failed to save theme: %w", err)
	}
	return nil
}

// LoadTheme returns the stored theme, or ok=false when none (or an unknown
// value) is stored.
func (p *Persistence) LoadTheme() (Theme, bool, error) {
	v, ok, err := p.kv.Get(KeyTheme)
	if err != nil {
		return "", false, fmt.Errorf("failed to load theme: %w", err)
	}
	theme := Theme(v)
	if !ok || !theme.Valid() {
		return "", false, nil
	}
	return theme, true, nil
}

// LoadLegacy reads the single-conversation layout. ok is false when no
// legacy history key exists.
func (p *Persistence) LoadLegacy() (LegacyState, bool, error) {
	var state LegacyState

	found, err := p.getJSON(KeyLegacyHistory, &state.Messages)
	if err != nil || !found {
		return LegacyState{}, false, err
	}

	instruction, _, err := p.kv.Get(KeyLegacyInstruction)
	if err != nil {
		return state, false, fmt.Errorf("failed to load legacy instruction: %w", err)
	}
	state.SystemInstruction = instruction

	grounding, _, err := p.kv.Get(KeyLegacyGrounding)
	if err != nil {
		return state, false, fmt.Errorf("failed to load legacy grounding flag: %w", err)
	}
	state.UseSearchGrounding = grounding == "true"

	return state, true, nil
}

// RemoveLegacy deletes every legacy key. This cannot be undone.
func (p *Persistence) RemoveLegacy() error {
	for _, key := range legacyKeys {
		if err := p.kv.Remove(key); err != nil {
			return fmt.Errorf("failed to remove legacy key %s: %w", key, err)
		}
	}
	return nil
}

func (p *Persistence) setJSON(key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := p.kv.Set(key, string(data)); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

// getJSON decodes key into v. Corrupt values are logged and reported as
// missing so that startup never fails on bad local data.
func (p *Persistence) getJSON(key string, v interface{}) (bool, error) {
	raw, ok, err := p.kv.Get(key)
	if err != nil {
		return false, fmt.Errorf("failed to load %s: %w", key, err)
	}
	if !ok || raw == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		logger.Warnf("Ignoring unreadable %s value: %v", key, err)
		return false, nil
	}
	return true, nil
}
