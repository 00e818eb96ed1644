package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"engiplex.com/aura-chat/internal/core"
	"engiplex.com/aura-chat/internal/logger"
	"engiplex.com/aura-chat/internal/store"
	"engiplex.com/aura-chat/internal/utils"
	"github.com/go-chi/chi/v5"
)

type SessionListResponse struct {
	Sessions        []store.ChatSession `json:"sessions"`
	ActiveSessionID string              `json:"activeSessionId"`
}

type ActiveSessionResponse struct {
	Session    store.ChatSession `json:"session"`
	Submitting bool              `json:"submitting"`
}

type SelectSessionRequest struct {
	ID string `json:"id"`
}

type SettingsRequest struct {
	SystemInstruction  string `json:"systemInstruction"`
	UseSearchGrounding bool   `json:"useSearchGrounding"`
}

type PostMessageRequest struct {
	Text        string `json:"text"`
	Mode        string `json:"mode"`
	AspectRatio string `json:"aspectRatio"`
	Image       string `json:"image"` // data URI
}

type ErrorEvent struct {
	Error string `json:"error"`
}

// ListSessionsHandler returns the history panel: most recent first,
// optionally filtered by ?q=.
func (h *APIHandler) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	sessions := h.sessions.Search(r.URL.Query().Get("q"))
	if sessions == nil {
		sessions = []store.ChatSession{}
	}
	writeJSON(w, http.StatusOK, SessionListResponse{
		Sessions:        sessions,
		ActiveSessionID: h.sessions.ActiveID(),
	})
}

func (h *APIHandler) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.NewChat()
	if err != nil {
		logger.Errorf("Error creating session: %v", err)
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h *APIHandler) GetActiveSessionHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := h.sessions.Active()
	if !ok {
		http.Error(w, "No active session", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, ActiveSessionResponse{
		Session:    session,
		Submitting: h.sessions.InFlight(session.ID),
	})
}

func (h *APIHandler) SelectSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req SelectSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if _, ok := h.sessions.Get(req.ID); !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	if err := h.sessions.Select(req.ID); err != nil {
		logger.Errorf("Error selecting session %s: %v", req.ID, err)
		http.Error(w, "Failed to select session", http.StatusInternalServerError)
		return
	}

	session, _ := h.sessions.Active()
	writeJSON(w, http.StatusOK, session)
}

func (h *APIHandler) DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if _, ok := h.sessions.Get(sessionID); !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	if err := h.sessions.Delete(sessionID); err != nil {
		logger.Errorf("Error deleting session %s: %v", sessionID, err)
		http.Error(w, "Failed to delete session", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) ClearConversationHandler(w http.ResponseWriter, r *http.Request) {
	session, err := h.chat.ClearConversation()
	if errors.Is(err, core.ErrNoActiveSession) {
		http.Error(w, "No active session", http.StatusNotFound)
		return
	}
	if errors.Is(err, core.ErrSubmissionInFlight) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		logger.Errorf("Error clearing conversation: %v", err)
		http.Error(w, "Failed to clear conversation", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *APIHandler) UpdateSettingsHandler(w http.ResponseWriter, r *http.Request) {
	var req SettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	session, err := h.chat.UpdateSettings(req.SystemInstruction, req.UseSearchGrounding)
	if errors.Is(err, core.ErrNoActiveSession) {
		http.Error(w, "No active session", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Errorf("Error updating settings: %v", err)
		http.Error(w, "Failed to update settings", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// PostMessageHandler submits a turn to the active session and streams every
// message change as a "message" event, finishing with "done" (the updated
// session) or "error". Failures before the first event are plain HTTP errors.
func (h *APIHandler) PostMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	mode, err := core.ParseMode(req.Mode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ratio, err := store.ParseAspectRatio(req.AspectRatio)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	submit := core.SubmitRequest{Text: req.Text, Mode: mode, AspectRatio: ratio}
	if req.Image != "" {
		mimeType, data, err := utils.DecodeDataURI(req.Image)
		if err != nil {
			http.Error(w, "Invalid image: "+err.Error(), http.StatusBadRequest)
			return
		}
		submit.Image = &core.InlineImage{Data: data, MIMEType: mimeType}
	}

	var sse *utils.SSEWriter
	stream := func() *utils.SSEWriter {
		if sse == nil {
			sse = utils.NewSSEWriter(w)
			w.WriteHeader(http.StatusOK)
		}
		return sse
	}

	sessionID, err := h.chat.Submit(r.Context(), submit, func(msg store.ChatMessage) {
		if werr := stream().WriteJSON("message", msg); werr != nil {
			logger.Debugf("Client stopped reading message stream: %v", werr)
		}
	})

	if err != nil && sse == nil {
		switch {
		case errors.Is(err, core.ErrSubmissionInFlight):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, core.ErrEmptySubmission), errors.Is(err, core.ErrInvalidMode):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, core.ErrNoActiveSession):
			http.Error(w, "No active session", http.StatusNotFound)
		default:
			logger.Errorf("Error submitting message: %v", err)
			http.Error(w, "Failed to submit message", http.StatusInternalServerError)
		}
		return
	}
	if err != nil {
		logger.Errorf("Error submitting message: %v", err)
		stream().WriteJSON("error", ErrorEvent{Error: err.Error()})
		return
	}

	session, _ := h.sessions.Get(sessionID)
	stream().WriteJSON("done", session)
}
