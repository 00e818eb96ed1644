package core

import (
	"sync"

	"engiplex.com/aura-chat/internal/store"
)

// ThemeService holds the light/dark preference. Dark is the default.
type ThemeService struct {
	mu      sync.Mutex
	persist *store.Persistence
}

func NewThemeService(p *store.Persistence) *ThemeService {
	return &ThemeService{persist: p}
}

func (t *ThemeService) Get() (store.Theme, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current()
}

func (t *ThemeService) current() (store.Theme, error) {
	theme, ok, err := t.persist.LoadTheme()
	if err != nil {
		return store.ThemeDark, err
	}
	if !ok {
		return store.ThemeDark, nil
	}
	return theme, nil
}

func (t *ThemeService) Set(theme store.Theme) error {
	if !theme.Valid() {
		return ErrInvalidTheme
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.persist.SaveTheme(theme)
}

// Toggle flips between light and dark and returns the new theme.
func (t *ThemeService) Toggle() (store.Theme, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	theme, err := t.current()
	if err != nil {
		return theme, err
	}
	next := store.ThemeLight
	if theme == store.ThemeLight {
		next = store.ThemeDark
	}
	if err := t.persist.SaveTheme(next); err != nil {
		return theme, err
	}
	return next, nil
}
