package core

import (
	"fmt"
	"time"

	"engiplex.com/aura-chat/internal/logger"
	"engiplex.com/aura-chat/internal/store"
)

// Outcome reports which startup branch Migrate took.
type Outcome int

const (
	OutcomeLoaded Outcome = iota
	OutcomeMigratedLegacy
	OutcomeFresh
)

func (o Outcome) String() string {
	switch o {
	case OutcomeLoaded:
		return "loaded"
	case OutcomeMigratedLegacy:
		return "migrated_legacy"
	case OutcomeFresh:
		return "fresh"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Migrate produces the initial session collection and active id. Stored
// sessions win; otherwise a legacy single conversation is converted (and its
// keys removed); otherwise one fresh session is created. The result is
// persisted before returning, so running Migrate again takes the loaded
// branch.
func Migrate(p *store.Persistence, now time.Time) ([]store.ChatSession, string, Outcome, error) {
	snap, err := p.LoadAll()
	if err != nil {
		return nil, "", OutcomeFresh, fmt.Errorf("failed to load sessions: %w", err)
	}

	if len(snap.Sessions) > 0 {
		activeID := snap.ActiveID
		if !containsSession(snap.Sessions, activeID) {
			activeID = snap.Sessions[0].ID
		}
		return snap.Sessions, activeID, OutcomeLoaded, nil
	}

	legacy, ok, err := p.LoadLegacy()
	if err != nil {
		return nil, "", OutcomeFresh, fmt.Errorf("failed to load legacy history: %w", err)
	}

	outcome := OutcomeFresh
	var session store.ChatSession
	if ok {
		outcome = OutcomeMigratedLegacy
		session = migrateLegacy(legacy, now)
	} else {
		session = NewSession(now, "", false)
	}

	sessions := []store.ChatSession{session}
	if err := p.SaveSessions(sessions); err != nil {
		return nil, "", outcome, err
	}
	if err := p.SaveActiveID(session.ID); err != nil {
		return nil, "", outcome, err
	}

	if outcome == OutcomeMigratedLegacy {
		if err := p.RemoveLegacy(); err != nil {
			return nil, "", outcome, err
		}
		logger.Infof("Migrated legacy conversation with %d messages into session %s", len(session.Messages), session.ID)
	}
	return sessions, session.ID, outcome, nil
}

func migrateLegacy(legacy store.LegacyState, now time.Time) store.ChatSession {
	session := NewSession(now, legacy.SystemInstruction, legacy.UseSearchGrounding)
	session.Messages = legacy.Messages
	if session.Messages == nil {
		session.Messages = []store.ChatMessage{}
	}
	if len(legacy.Messages) > 1 && legacy.Messages[1].Author == store.AuthorUser {
		session.Title = store.TruncateRunes(legacy.Messages[1].Text, store.TitleMaxChars) + "..."
	}
	return session
}

func containsSession(sessions []store.ChatSession, id string) bool {
	if id == "" {
		return false
	}
	for _, s := range sessions {
		if s.ID == id {
			return true
		}
	}
	return false
}

// Bootstrap runs Migrate and hands the result to a new SessionStore.
func Bootstrap(p *store.Persistence, opts ...Option) (*SessionStore, Outcome, error) {
	probe := &SessionStore{now: time.Now}
	for _, opt := range opts {
		opt(probe)
	}

	sessions, activeID, outcome, err := Migrate(p, probe.now())
	if err != nil {
		return nil, outcome, err
	}
	logger.Infof("Session store ready (%s): %d sessions, active %s", outcome, len(sessions), activeID)
	return NewSessionStore(p, sessions, activeID, opts...), outcome, nil
}
