package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"engiplex.com/aura-chat/internal/auth"
	"engiplex.com/aura-chat/internal/core"
	"engiplex.com/aura-chat/internal/logger"
	"engiplex.com/aura-chat/internal/store"
	"github.com/go-chi/chi/v5"
)

type contextKey string

const userEmailKey contextKey = "userEmail"

type APIHandler struct {
	auth     *auth.Service
	sessions *core.SessionStore
	chat     *core.ChatService
	prompts  *core.PromptLibrary
	theme    *core.ThemeService
}

func NewAPIHandler(authService *auth.Service, sessions *core.SessionStore, chat *core.ChatService, prompts *core.PromptLibrary, theme *core.ThemeService) *APIHandler {
	return &APIHandler{
		auth:     authService,
		sessions: sessions,
		chat:     chat,
		prompts:  prompts,
		theme:    theme,
	}
}

func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		email, err := h.auth.Authenticated(tokenString)
		if errors.Is(err, auth.ErrUnauthorized) {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		if err != nil {
			logger.Errorf("Error in JWTAuthMiddleware: %v", err)
			http.Error(w, "Failed to process user identity", http.StatusInternalServerError)
			return
		}

		ctx := context.WithValue(r.Context(), userEmailKey, email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type SignupRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

func (h *APIHandler) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	token, err := h.auth.SignUp(req.Email, req.Password, req.ConfirmPassword)
	switch {
	case errors.Is(err, auth.ErrEmailTaken):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case errors.Is(err, auth.ErrEmailRequired), errors.Is(err, auth.ErrPasswordMismatch), errors.Is(err, auth.ErrPasswordTooShort):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		logger.Errorf("Error signing up %s: %v", req.Email, err)
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, TokenResponse{Token: token})
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.Password == "" {
		http.Error(w, "Email and password are required", http.StatusBadRequest)
		return
	}

	token, err := h.auth.SignIn(req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}
	if err != nil {
		logger.Errorf("Error signing in %s: %v", req.Email, err)
		http.Error(w, "Failed to sign in", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{Token: token})
}

func (h *APIHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.SignOut(); err != nil {
		logger.Errorf("Error signing out: %v", err)
		http.Error(w, "Failed to sign out", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type SavePromptRequest struct {
	Name   string `json:"name"`
	Prompt string `json:"prompt"`
}

func (h *APIHandler) ListPromptsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.prompts.List())
}

func (h *APIHandler) SavePromptHandler(w http.ResponseWriter, r *http.Request) {
	var req SavePromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	saved, err := h.prompts.Save(req.Name, req.Prompt)
	if errors.Is(err, core.ErrInvalidPrompt) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		logger.Errorf("Error saving prompt: %v", err)
		http.Error(w, "Failed to save prompt", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, saved)
}

func (h *APIHandler) DeletePromptHandler(w http.ResponseWriter, r *http.Request) {
	promptID := chi.URLParam(r, "promptID")

	err := h.prompts.Delete(promptID)
	if errors.Is(err, core.ErrPromptNotFound) {
		http.Error(w, "Prompt not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Errorf("Error deleting prompt %s: %v", promptID, err)
		http.Error(w, "Failed to delete prompt", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type ThemeRequest struct {
	Theme store.Theme `json:"theme"`
}

func (h *APIHandler) GetThemeHandler(w http.ResponseWriter, r *http.Request) {
	theme, err := h.theme.Get()
	if err != nil {
		logger.Errorf("Error loading theme: %v", err)
		http.Error(w, "Failed to load theme", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, ThemeRequest{Theme: theme})
}

func (h *APIHandler) SetThemeHandler(w http.ResponseWriter, r *http.Request) {
	var req ThemeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	err := h.theme.Set(req.Theme)
	if errors.Is(err, core.ErrInvalidTheme) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		logger.Errorf("Error saving theme: %v", err)
		http.Error(w, "Failed to save theme", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *APIHandler) ToggleThemeHandler(w http.ResponseWriter, r *http.Request) {
	theme, err := h.theme.Toggle()
	if err != nil {
		logger.Errorf("Error toggling theme: %v", err)
		http.Error(w, "Failed to toggle theme", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, ThemeRequest{Theme: theme})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warnf("Failed to write response: %v", err)
	}
}
