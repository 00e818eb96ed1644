package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"engiplex.com/aura-chat/internal/logger"
	"engiplex.com/aura-chat/internal/store"
	"engiplex.com/aura-chat/internal/utils"
	"github.com/google/uuid"
)

type Mode string

const (
	ModeChat  Mode = "chat"
	ModeImage Mode = "image"
)

var ErrInvalidMode = errors.New("mode must be chat or image")

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(s)); m {
	case "", ModeChat:
		return ModeChat, nil
	case ModeImage:
		return ModeImage, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

type SubmitRequest struct {
	Text        string
	Mode        Mode
	AspectRatio store.AspectRatio
	Image       *InlineImage
}

// ChatService runs one user turn against the active session.
type ChatService struct {
	sessions *SessionStore
	gateway  Gateway
}

func NewChatService(sessions *SessionStore, gateway Gateway) *ChatService {
	return &ChatService{
		sessions: sessions,
		gateway:  gateway,
	}
}

// Submit appends the user message to the active session and obtains the
// reply. Backend failures end up as one error message in the conversation
// and are not returned; only precondition and storage failures are.
// onUpdate observes every message added or changed along the way. The id of
// the session the turn was recorded in is returned once preconditions pass.
func (s *ChatService) Submit(ctx context.Context, req SubmitRequest, onUpdate func(store.ChatMessage)) (string, error) {
	active, ok := s.sessions.Active()
	if !ok {
		return "", ErrNoActiveSession
	}
	if strings.TrimSpace(req.Text) == "" && req.Image == nil {
		return "", ErrEmptySubmission
	}
	if req.Mode == "" {
		req.Mode = ModeChat
	}
	if req.Mode != ModeChat && req.Mode != ModeImage {
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, req.Mode)
	}

	sessionID := active.ID
	if err := s.sessions.Begin(sessionID); err != nil {
		return "", err
	}
	defer s.sessions.End(sessionID)

	userMsg := store.ChatMessage{
		ID:     "user-" + uuid.NewString(),
		Author: store.AuthorUser,
		Text:   req.Text,
	}
	if req.Image != nil {
		userMsg.UploadedImage = utils.EncodeDataURI(req.Image.MIMEType, req.Image.Data)
	}

	var history []store.ChatMessage
	if _, err := s.sessions.Update(sessionID, func(cs store.ChatSession) store.ChatSession {
		history = cs.Messages
		if cs.IsFresh() {
			cs.Messages = []store.ChatMessage{userMsg}
			cs.Title = store.TruncateRunes(req.Text, store.TitleMaxChars)
			if cs.Title == "" {
				cs.Title = store.UntitledTitle
			}
		} else {
			cs.Messages = append(cs.Messages, userMsg)
		}
		return cs
	}); err != nil {
		return sessionID, fmt.Errorf("failed to record user message: %w", err)
	}
	notify(onUpdate, userMsg)

	var err error
	switch req.Mode {
	case ModeImage:
		err = s.submitImage(ctx, sessionID, req, onUpdate)
	default:
		seq := s.gateway.StreamChat(ctx, ChatRequest{
			History:           history,
			Text:              req.Text,
			SystemInstruction: active.SystemInstruction,
			UseGrounding:      active.UseSearchGrounding,
			Image:             req.Image,
		})
		_, err = MergeStream(ctx, s.sessions, sessionID, seq, onUpdate)
	}
	if err == nil {
		return sessionID, nil
	}
	if errors.Is(err, ErrReplyDiscarded) {
		logger.WithField("session", sessionID).Warn("Reply dropped, its message was removed mid-stream")
		return sessionID, nil
	}

	logger.WithField("session", sessionID).Errorf("Error submitting message: %v", err)
	return sessionID, s.appendError(sessionID, err, onUpdate)
}

func (s *ChatService) submitImage(ctx context.Context, sessionID string, req SubmitRequest, onUpdate func(store.ChatMessage)) error {
	var imageURL string
	var err error
	if req.Image != nil {
		imageURL, err = s.gateway.EditImage(ctx, req.Text, *req.Image)
	} else {
		imageURL, err = s.gateway.GenerateImage(ctx, req.Text, req.AspectRatio)
	}
	if err != nil {
		return err
	}

	modelMsg := store.ChatMessage{
		ID:       "model-" + uuid.NewString(),
		Author:   store.AuthorModel,
		Text:     req.Text,
		ImageURL: imageURL,
	}
	if _, err := s.sessions.Update(sessionID, func(cs store.ChatSession) store.ChatSession {
		cs.Messages = append(cs.Messages, modelMsg)
		return cs
	}); err != nil {
		return err
	}
	notify(onUpdate, modelMsg)
	return nil
}

func (s *ChatService) appendError(sessionID string, cause error, onUpdate func(store.ChatMessage)) error {
	errMsg := store.ChatMessage{
		ID:      "error-" + uuid.NewString(),
		Author:  store.AuthorModel,
		Text:    DisplayText(cause),
		IsError: true,
	}
	_, err := s.sessions.Update(sessionID, func(cs store.ChatSession) store.ChatSession {
		cs.Messages = append(cs.Messages, errMsg)
		return cs
	})
	if errors.Is(err, ErrSessionNotFound) {
		logger.Warnf("Session %s was deleted before its error could be recorded", sessionID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to record error message: %w", err)
	}
	notify(onUpdate, errMsg)
	return nil
}

// ClearConversation resets the active session to a single welcome message.
// A title still starting with the default is reset to the default. A session
// with a submission in flight is left alone and ErrSubmissionInFlight returned.
func (s *ChatService) ClearConversation() (store.ChatSession, error) {
	active, ok := s.sessions.Active()
	if !ok {
		return store.ChatSession{}, ErrNoActiveSession
	}
	if err := s.sessions.Begin(active.ID); err != nil {
		return store.ChatSession{}, err
	}
	defer s.sessions.End(active.ID)

	return s.sessions.Update(active.ID, func(cs store.ChatSession) store.ChatSession {
		cs.Messages = []store.ChatMessage{NewWelcomeMessage()}
		if strings.HasPrefix(cs.Title, store.DefaultTitle) {
			cs.Title = store.DefaultTitle
		}
		return cs
	})
}

// UpdateSettings replaces the persona and grounding flag of the active session.
func (s *ChatService) UpdateSettings(instruction string, useGrounding bool) (store.ChatSession, error) {
	if _, ok := s.sessions.Active(); !ok {
		return store.ChatSession{}, ErrNoActiveSession
	}
	return s.sessions.UpdateActive(func(cs store.ChatSession) store.ChatSession {
		cs.SystemInstruction = instruction
		cs.UseSearchGrounding = useGrounding
		return cs
	})
}
