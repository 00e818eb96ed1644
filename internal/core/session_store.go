package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"engiplex.com/aura-chat/internal/logger"
	"engiplex.com/aura-chat/internal/store"
	"github.com/google/uuid"
)

// Mutator transforms a session. It receives a deep copy and returns the
// replacement; it must not call back into the SessionStore.
type Mutator func(s store.ChatSession) store.ChatSession

type Option func(*SessionStore)

// WithClock overrides time.Now for LastUpdated stamps and new ids.
func WithClock(now func() time.Time) Option {
	return func(s *SessionStore) { s.now = now }
}

// SessionStore owns the session collection and the active id. A single
// goroutine executes every read and mutation in submission order, and every
// mutation is written through to the Persistence adapter before it returns.
type SessionStore struct {
	persist   *store.Persistence
	now       func() time.Time
	ops       chan func()
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// Owned by the loop goroutine.
	sessions []store.ChatSession
	activeID string
	inFlight map[string]bool
}

// NewSessionStore takes ownership of sessions. An empty collection gets a
// fresh session and an unknown activeID falls back to the first session.
func NewSessionStore(p *store.Persistence, sessions []store.ChatSession, activeID string, opts ...Option) *SessionStore {
	s := &SessionStore{
		persist:  p,
		now:      time.Now,
		ops:      make(chan func()),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		sessions: store.CloneSessions(sessions),
		activeID: activeID,
		inFlight: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}

	if len(s.sessions) == 0 {
		s.sessions = []store.ChatSession{NewSession(s.now(), "", false)}
	}
	if s.indexOf(s.activeID) < 0 {
		s.activeID = s.sessions[0].ID
	}

	go s.loop()
	return s
}

func (s *SessionStore) loop() {
	defer close(s.done)
	for {
		select {
		case op := <-s.ops:
			op()
		case <-s.quit:
			return
		}
	}
}

// Close stops the owning goroutine. Later calls fail with ErrStoreClosed.
func (s *SessionStore) Close() {
	s.closeOnce.Do(func() { close(s.quit) })
	<-s.done
}

func (s *SessionStore) exec(fn func()) error {
	finished := make(chan struct{})
	select {
	case s.ops <- func() {
		defer close(finished)
		fn()
	}:
	case <-s.quit:
		return ErrStoreClosed
	}
	<-finished
	return nil
}

// NewWelcomeMessage builds the synthetic greeting every fresh session starts with.
func NewWelcomeMessage() store.ChatMessage {
	return store.ChatMessage{
		ID:               "initial-message-" + uuid.NewString(),
		Author:           store.AuthorModel,
		Text:             store.WelcomeMessageText,
		IsWelcomeMessage: true,
	}
}

// NewSession builds a session holding only the welcome message. An empty
// instruction selects the default persona. Nothing is persisted.
func NewSession(now time.Time, instruction string, useGrounding bool) store.ChatSession {
	if instruction == "" {
		instruction = store.DefaultSystemInstruction
	}
	return store.ChatSession{
		ID:                 fmt.Sprintf("session-%d-%s", now.UnixMilli(), uuid.NewString()[:8]),
		Title:              store.DefaultTitle,
		LastUpdated:        now.UnixMilli(),
		Messages:           []store.ChatMessage{NewWelcomeMessage()},
		SystemInstruction:  instruction,
		UseSearchGrounding: useGrounding,
	}
}

func (s *SessionStore) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i := range s.sessions {
		if s.sessions[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *SessionStore) persistLocked() error {
	if err := s.persist.SaveSessions(s.sessions); err != nil {
		logger.Errorf("Failed to persist sessions: %v", err)
		return err
	}
	if err := s.persist.SaveActiveID(s.activeID); err != nil {
		logger.Errorf("Failed to persist active session id: %v", err)
		return err
	}
	return nil
}

// NewChat appends a fresh default session and makes it active.
func (s *SessionStore) NewChat() (store.ChatSession, error) {
	var created store.ChatSession
	var perr error
	if err := s.exec(func() {
		created = NewSession(s.now(), "", false)
		s.sessions = append(s.sessions, created)
		s.activeID = created.ID
		perr = s.persistLocked()
	}); err != nil {
		return store.ChatSession{}, err
	}
	return created.Clone(), perr
}

// Select makes id active. Unknown ids are ignored and leave the active id as is.
func (s *SessionStore) Select(id string) error {
	var perr error
	if err := s.exec(func() {
		if s.indexOf(id) < 0 {
			return
		}
		s.activeID = id
		perr = s.persistLocked()
	}); err != nil {
		return err
	}
	return perr
}

// Delete removes a session. When the active session is deleted the session
// at the previous storage index becomes active (index 0 when it was first);
// deleting the last session creates and selects a fresh one.
func (s *SessionStore) Delete(id string) error {
	var perr error
	if err := s.exec(func() {
		idx := s.indexOf(id)
		if idx < 0 {
			return
		}

		remaining := make([]store.ChatSession, 0, len(s.sessions))
		remaining = append(remaining, s.sessions[:idx]...)
		remaining = append(remaining, s.sessions[idx+1:]...)
		s.sessions = remaining
		delete(s.inFlight, id)

		if id == s.activeID {
			if len(s.sessions) > 0 {
				next := idx - 1
				if next < 0 {
					next = 0
				}
				s.activeID = s.sessions[next].ID
			} else {
				fresh := NewSession(s.now(), "", false)
				s.sessions = append(s.sessions, fresh)
				s.activeID = fresh.ID
			}
		}
		perr = s.persistLocked()
	}); err != nil {
		return err
	}
	return perr
}

// Update applies fn to a copy of session id, stamps LastUpdated and stores
// the result.
func (s *SessionStore) Update(id string, fn Mutator) (store.ChatSession, error) {
	return s.update(id, fn, true)
}

func (s *SessionStore) update(id string, fn Mutator, stamp bool) (store.ChatSession, error) {
	var updated store.ChatSession
	var opErr error
	if err := s.exec(func() {
		idx := s.indexOf(id)
		if idx < 0 {
			opErr = ErrSessionNotFound
			return
		}
		next := fn(s.sessions[idx].Clone())
		next.ID = id
		if stamp {
			next.LastUpdated = s.now().UnixMilli()
		} else {
			next.LastUpdated = s.sessions[idx].LastUpdated
		}
		s.sessions[idx] = next.Clone()
		updated = next.Clone()
		opErr = s.persistLocked()
	}); err != nil {
		return store.ChatSession{}, err
	}
	return updated, opErr
}

// UpdateActive is Update on the active session; it does nothing when no
// session is active.
func (s *SessionStore) UpdateActive(fn Mutator) (store.ChatSession, error) {
	var updated store.ChatSession
	var opErr error
	if err := s.exec(func() {
		idx := s.indexOf(s.activeID)
		if idx < 0 {
			return
		}
		next := fn(s.sessions[idx].Clone())
		next.ID = s.activeID
		next.LastUpdated = s.now().UnixMilli()
		s.sessions[idx] = next.Clone()
		updated = next.Clone()
		opErr = s.persistLocked()
	}); err != nil {
		return store.ChatSession{}, err
	}
	return updated, opErr
}

// Touch stamps LastUpdated on session id without changing anything else.
func (s *SessionStore) Touch(id string) error {
	_, err := s.Update(id, func(cs store.ChatSession) store.ChatSession { return cs })
	return err
}

// Sessions returns copies in storage order.
func (s *SessionStore) Sessions() []store.ChatSession {
	var out []store.ChatSession
	_ = s.exec(func() { out = store.CloneSessions(s.sessions) })
	return out
}

// Sorted returns copies ordered by LastUpdated, most recent first.
func (s *SessionStore) Sorted() []store.ChatSession {
	out := s.Sessions()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastUpdated > out[j].LastUpdated
	})
	return out
}

// Search filters Sorted by a case-insensitive match on the title or on the
// text of any non-welcome message. A blank query matches everything.
func (s *SessionStore) Search(query string) []store.ChatSession {
	sorted := s.Sorted()
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return sorted
	}

	var out []store.ChatSession
	for _, cs := range sorted {
		if strings.Contains(strings.ToLower(cs.Title), q) {
			out = append(out, cs)
			continue
		}
		for _, m := range cs.Messages {
			if m.Text != "" && !m.IsWelcomeMessage && strings.Contains(strings.ToLower(m.Text), q) {
				out = append(out, cs)
				break
			}
		}
	}
	return out
}

func (s *SessionStore) ActiveID() string {
	var id string
	_ = s.exec(func() { id = s.activeID })
	return id
}

func (s *SessionStore) Active() (store.ChatSession, bool) {
	var cs store.ChatSession
	var ok bool
	_ = s.exec(func() {
		if idx := s.indexOf(s.activeID); idx >= 0 {
			cs, ok = s.sessions[idx].Clone(), true
		}
	})
	return cs, ok
}

func (s *SessionStore) Get(id string) (store.ChatSession, bool) {
	var cs store.ChatSession
	var ok bool
	_ = s.exec(func() {
		if idx := s.indexOf(id); idx >= 0 {
			cs, ok = s.sessions[idx].Clone(), true
		}
	})
	return cs, ok
}

// Begin marks a submission in flight for session id. A second Begin before
// End fails with ErrSubmissionInFlight.
func (s *SessionStore) Begin(id string) error {
	var opErr error
	if err := s.exec(func() {
		if s.indexOf(id) < 0 {
			opErr = ErrSessionNotFound
			return
		}
		if s.inFlight[id] {
			opErr = ErrSubmissionInFlight
			return
		}
		s.inFlight[id] = true
	}); err != nil {
		return err
	}
	return opErr
}

// End releases the in-flight mark set by Begin.
func (s *SessionStore) End(id string) {
	_ = s.exec(func() { delete(s.inFlight, id) })
}

func (s *SessionStore) InFlight(id string) bool {
	var busy bool
	_ = s.exec(func() { busy = s.inFlight[id] })
	return busy
}
