package core

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"engiplex.com/aura-chat/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeSessions() []store.ChatSession {
	return []store.ChatSession{
		testSession("s0", "Relativity", 100, "explain relativity", "Relativity is..."),
		testSession("s1", "Coffee names", 300, "coffee brand names", "Bean There"),
		testSession("s2", store.DefaultTitle, 200),
	}
}

func ids(sessions []store.ChatSession) []string {
	out := make([]string, len(sessions))
	for i, s := range sessions {
		out[i] = s.ID
	}
	return out
}

func TestNewSessionStore_Normalizes(t *testing.T) {
	s, _, _ := newTestStore(t, nil, "")
	sessions := s.Sessions()
	require.Len(t, sessions, 1)
	assert.True(t, sessions[0].IsFresh())
	assert.Equal(t, sessions[0].ID, s.ActiveID())

	s2, _, _ := newTestStore(t, threeSessions(), "missing")
	assert.Equal(t, "s0", s2.ActiveID())
}

func TestNewSession(t *testing.T) {
	clock := newStepClock()
	now := clock.Now()
	s := NewSession(now, "", true)

	assert.True(t, strings.HasPrefix(s.ID, fmt.Sprintf("session-%d-", now.UnixMilli())))
	assert.Equal(t, store.DefaultTitle, s.Title)
	assert.Equal(t, store.DefaultSystemInstruction, s.SystemInstruction)
	assert.True(t, s.UseSearchGrounding)
	assert.Equal(t, now.UnixMilli(), s.LastUpdated)
	require.True(t, s.IsFresh())
	assert.Equal(t, store.AuthorModel, s.Messages[0].Author)
	assert.True(t, strings.HasPrefix(s.Messages[0].ID, "initial-message-"))

	custom := NewSession(now, "Be a pirate", false)
	assert.Equal(t, "Be a pirate", custom.SystemInstruction)
	assert.NotEqual(t, s.ID, custom.ID)
}

func TestSessionStore_NewChatPersists(t *testing.T) {
	s, p, _ := newTestStore(t, threeSessions(), "s0")

	created, err := s.NewChat()
	require.NoError(t, err)
	assert.Equal(t, created.ID, s.ActiveID())
	assert.Equal(t, []string{"s0", "s1", "s2", created.ID}, ids(s.Sessions()))

	snap, err := p.LoadAll()
	require.NoError(t, err)
	assert.Equal(t, ids(s.Sessions()), ids(snap.Sessions))
	assert.Equal(t, created.ID, snap.ActiveID)
}

func TestSessionStore_SelectUnknownIsNoop(t *testing.T) {
	s, _, _ := newTestStore(t, threeSessions(), "s1")

	require.NoError(t, s.Select("nope"))
	assert.Equal(t, "s1", s.ActiveID())

	require.NoError(t, s.Select("s2"))
	assert.Equal(t, "s2", s.ActiveID())
}

func TestSessionStore_Delete(t *testing.T) {
	tests := []struct {
		name       string
		active     string
		deleteID   string
		wantIDs    []string
		wantActive string
	}{
		{"active in the middle selects previous", "s1", "s1", []string{"s0", "s2"}, "s0"},
		{"active first selects new first", "s0", "s0", []string{"s1", "s2"}, "s1"},
		{"active last selects previous", "s2", "s2", []string{"s0", "s1"}, "s1"},
		{"inactive keeps active", "s2", "s0", []string{"s1", "s2"}, "s2"},
		{"unknown is a noop", "s1", "nope", []string{"s0", "s1", "s2"}, "s1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, p, _ := newTestStore(t, threeSessions(), tt.active)

			require.NoError(t, s.Delete(tt.deleteID))
			assert.Equal(t, tt.wantIDs, ids(s.Sessions()))
			assert.Equal(t, tt.wantActive, s.ActiveID())

			if tt.deleteID != "nope" {
				snap, err := p.LoadAll()
				require.NoError(t, err)
				assert.Equal(t, tt.wantIDs, ids(snap.Sessions))
				assert.Equal(t, tt.wantActive, snap.ActiveID)
			}
		})
	}
}

func TestSessionStore_DeleteLastCreatesFresh(t *testing.T) {
	s, _, _ := newTestStore(t, threeSessions()[:1], "s0")

	require.NoError(t, s.Delete("s0"))
	sessions := s.Sessions()
	require.Len(t, sessions, 1)
	assert.NotEqual(t, "s0", sessions[0].ID)
	assert.True(t, sessions[0].IsFresh())
	assert.Equal(t, sessions[0].ID, s.ActiveID())
}

func TestSessionStore_UpdateStampsAndCopies(t *testing.T) {
	s, p, clock := newTestStore(t, threeSessions(), "s0")

	updated, err := s.UpdateActive(func(cs store.ChatSession) store.ChatSession {
		cs.Title = "Renamed"
		cs.ID = "hijacked"
		cs.Messages = append(cs.Messages, store.ChatMessage{ID: "m", Author: store.AuthorUser, Text: "hi"})
		return cs
	})
	require.NoError(t, err)
	assert.Equal(t, "s0", updated.ID)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, clock.Peek(), updated.LastUpdated)

	updated.Messages[0].Text = "mutated by caller"
	got, ok := s.Get("s0")
	require.True(t, ok)
	assert.Equal(t, "explain relativity", got.Messages[0].Text)
	assert.Len(t, got.Messages, 3)

	stored, err := p.LoadSessions()
	require.NoError(t, err)
	assert.Equal(t, "Renamed", stored[0].Title)

	_, err = s.Update("nope", func(cs store.ChatSession) store.ChatSession { return cs })
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionStore_MutatorGetsCopy(t *testing.T) {
	s, _, _ := newTestStore(t, threeSessions(), "s0")

	var leaked store.ChatSession
	_, err := s.Update("s1", func(cs store.ChatSession) store.ChatSession {
		leaked = cs
		return cs
	})
	require.NoError(t, err)

	leaked.Messages[0].Text = "changed after the fact"
	got, _ := s.Get("s1")
	assert.Equal(t, "coffee brand names", got.Messages[0].Text)
}

func TestSessionStore_TouchOnlyStamps(t *testing.T) {
	s, _, clock := newTestStore(t, threeSessions(), "s0")
	before, _ := s.Get("s2")

	require.NoError(t, s.Touch("s2"))
	after, _ := s.Get("s2")
	assert.Equal(t, clock.Peek(), after.LastUpdated)
	before.LastUpdated = after.LastUpdated
	assert.Equal(t, before, after)
}

func TestSessionStore_SortedAndSearch(t *testing.T) {
	s, _, _ := newTestStore(t, threeSessions(), "s0")

	assert.Equal(t, []string{"s1", "s2", "s0"}, ids(s.Sorted()))
	assert.Equal(t, []string{"s0", "s1", "s2"}, ids(s.Sessions()))

	assert.Equal(t, []string{"s1", "s2", "s0"}, ids(s.Search("  ")))
	assert.Equal(t, []string{"s1"}, ids(s.Search("COFFEE")))
	assert.Equal(t, []string{"s1"}, ids(s.Search("bean there")))
	// s2's welcome message mentions relativity too but is never searched.
	assert.Equal(t, []string{"s0"}, ids(s.Search("relativity")))
	assert.Empty(t, s.Search("quantum"))
	assert.Equal(t, []string{"s2"}, ids(s.Search("new chat")))
}

func TestSessionStore_BeginEnd(t *testing.T) {
	s, _, _ := newTestStore(t, threeSessions(), "s0")

	require.NoError(t, s.Begin("s0"))
	assert.True(t, s.InFlight("s0"))
	assert.ErrorIs(t, s.Begin("s0"), ErrSubmissionInFlight)
	require.NoError(t, s.Begin("s1"))

	s.End("s0")
	assert.False(t, s.InFlight("s0"))
	require.NoError(t, s.Begin("s0"))

	assert.ErrorIs(t, s.Begin("nope"), ErrSessionNotFound)
}

func TestSessionStore_ConcurrentUpdates(t *testing.T) {
	s, p, _ := newTestStore(t, threeSessions(), "s0")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Update("s2", func(cs store.ChatSession) store.ChatSession {
				cs.Messages = append(cs.Messages, store.ChatMessage{ID: fmt.Sprintf("m%d", i), Author: store.AuthorUser, Text: "x"})
				return cs
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, _ := s.Get("s2")
	assert.Len(t, got.Messages, 51)

	stored, err := p.LoadSessions()
	require.NoError(t, err)
	assert.Len(t, stored[2].Messages, 51)
}

func TestSessionStore_Closed(t *testing.T) {
	p := store.NewPersistence(store.NewMemoryKV())
	s := NewSessionStore(p, threeSessions(), "s0")
	s.Close()
	s.Close()

	_, err := s.NewChat()
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.ErrorIs(t, s.Select("s1"), ErrStoreClosed)
	assert.Empty(t, s.Sessions())
	_, ok := s.Active()
	assert.False(t, ok)
}

func TestSessionStore_UpdateIsolatesSessions(t *testing.T) {
	s, _, _ := newTestStore(t, threeSessions(), "s0")
	before := s.Sessions()

	_, err := s.Update("s1", func(cs store.ChatSession) store.ChatSession {
		cs.Title = "changed"
		cs.Messages[0].Text = "changed"
		return cs
	})
	require.NoError(t, err)

	after := s.Sessions()
	assert.Equal(t, before[0], after[0])
	assert.Equal(t, before[2], after[2])
	assert.NotEqual(t, before[1], after[1])
}

func TestSessionStore_NeverEmpty(t *testing.T) {
	s, _, _ := newTestStore(t, threeSessions(), "s1")

	for i := 0; i < 6; i++ {
		require.NoError(t, s.Delete(s.ActiveID()))
		sessions := s.Sessions()
		require.NotEmpty(t, sessions)
		_, ok := s.Active()
		assert.True(t, ok)
	}
	require.Len(t, s.Sessions(), 1)
	assert.True(t, s.Sessions()[0].IsFresh())
}

func TestSessionStore_UpdateActiveKeepsNoAlias(t *testing.T) {
	s, _, _ := newTestStore(t, threeSessions(), "s1")

	var kept store.ChatSession
	_, err := s.UpdateActive(func(cs store.ChatSession) store.ChatSession {
		cs.Messages = append(cs.Messages, store.ChatMessage{ID: "extra", Author: store.AuthorUser, Text: "extra"})
		kept = cs
		return cs
	})
	require.NoError(t, err)

	kept.Messages[0].Text = "changed after the fact"
	kept.Messages[2].Text = "changed too"
	got, _ := s.Get("s1")
	assert.Equal(t, "coffee brand names", got.Messages[0].Text)
	assert.Equal(t, "extra", got.Messages[2].Text)
}
