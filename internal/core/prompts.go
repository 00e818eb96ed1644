package core

import (
	"fmt"
	"strings"
	"sync"

	"engiplex.com/aura-chat/internal/store"
	"github.com/google/uuid"
)

// PromptLibrary keeps the user's saved system instructions.
type PromptLibrary struct {
	mu      sync.Mutex
	persist *store.Persistence
	prompts []store.SavedPrompt
}

func NewPromptLibrary(p *store.Persistence) (*PromptLibrary, error) {
	prompts, err := p.LoadSavedPrompts()
	if err != nil {
		return nil, fmt.Errorf("failed to load saved prompts: %w", err)
	}
	return &PromptLibrary{persist: p, prompts: prompts}, nil
}

func (l *PromptLibrary) List() []store.SavedPrompt {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]store.SavedPrompt, len(l.prompts))
	copy(out, l.prompts)
	return out
}

func (l *PromptLibrary) Get(id string) (store.SavedPrompt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range l.prompts {
		if p.ID == id {
			return p, nil
		}
	}
	return store.SavedPrompt{}, ErrPromptNotFound
}

// Save adds a prompt. Name and text are trimmed and must both be non-empty.
func (l *PromptLibrary) Save(name, prompt string) (store.SavedPrompt, error) {
	name, prompt = strings.TrimSpace(name), strings.TrimSpace(prompt)
	if name == "" || prompt == "" {
		return store.SavedPrompt{}, ErrInvalidPrompt
	}

	saved := store.SavedPrompt{ID: "prompt-" + uuid.NewString(), Name: name, Prompt: prompt}

	l.mu.Lock()
	defer l.mu.Unlock()
	next := append(append([]store.SavedPrompt{}, l.prompts...), saved)
	if err := l.persist.SaveSavedPrompts(next); err != nil {
		return store.SavedPrompt{}, err
	}
	l.prompts = next
	return saved, nil
}

func (l *PromptLibrary) Delete(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := make([]store.SavedPrompt, 0, len(l.prompts))
	for _, p := range l.prompts {
		if p.ID != id {
			next = append(next, p)
		}
	}
	if len(next) == len(l.prompts) {
		return ErrPromptNotFound
	}
	if err := l.persist.SaveSavedPrompts(next); err != nil {
		return err
	}
	l.prompts = next
	return nil
}
