package core

import (
	"strings"
	"testing"

	"engiplex.com/aura-chat/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptLibrary(t *testing.T) {
	p := store.NewPersistence(store.NewMemoryKV())
	lib, err := NewPromptLibrary(p)
	require.NoError(t, err)
	assert.Empty(t, lib.List())

	pirate, err := lib.Save("  Pirate ", " Talk like a pirate. ")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(pirate.ID, "prompt-"))
	assert.Equal(t, "Pirate", pirate.Name)
	assert.Equal(t, "Talk like a pirate.", pirate.Prompt)

	poet, err := lib.Save("Poet", "Answer in verse.")
	require.NoError(t, err)

	_, err = lib.Save("", "text")
	assert.ErrorIs(t, err, ErrInvalidPrompt)
	_, err = lib.Save("name", "   ")
	assert.ErrorIs(t, err, ErrInvalidPrompt)

	got, err := lib.Get(poet.ID)
	require.NoError(t, err)
	assert.Equal(t, poet, got)

	reloaded, err := NewPromptLibrary(p)
	require.NoError(t, err)
	assert.Equal(t, []store.SavedPrompt{pirate, poet}, reloaded.List())

	require.NoError(t, lib.Delete(pirate.ID))
	assert.ErrorIs(t, lib.Delete(pirate.ID), ErrPromptNotFound)
	_, err = lib.Get(pirate.ID)
	assert.ErrorIs(t, err, ErrPromptNotFound)

	stored, err := p.LoadSavedPrompts()
	require.NoError(t, err)
	assert.Equal(t, []store.SavedPrompt{poet}, stored)
}

func TestThemeService(t *testing.T) {
	themes := NewThemeService(store.NewPersistence(store.NewMemoryKV()))

	theme, err := themes.Get()
	require.NoError(t, err)
	assert.Equal(t, store.ThemeDark, theme)

	theme, err = themes.Toggle()
	require.NoError(t, err)
	assert.Equal(t, store.ThemeLight, theme)

	theme, err = themes.Get()
	require.NoError(t, err)
	assert.Equal(t, store.ThemeLight, theme)

	require.NoError(t, themes.Set(store.ThemeDark))
	theme, _ = themes.Toggle()
	assert.Equal(t, store.ThemeLight, theme)

	assert.ErrorIs(t, themes.Set("sepia"), ErrInvalidTheme)
}
