package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	// All API routes will be under /api
	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})
		r.Post("/signup", apiHandler.SignupHandler)
		r.Post("/login", apiHandler.LoginHandler)

		// User-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.JWTAuthMiddleware)

			r.Post("/logout", apiHandler.LogoutHandler)

			// Session routes
			r.Get("/sessions", apiHandler.ListSessionsHandler)
			r.Post("/sessions", apiHandler.CreateSessionHandler)
			r.Get("/sessions/active", apiHandler.GetActiveSessionHandler)
			r.Put("/sessions/active", apiHandler.SelectSessionHandler)
			r.Post("/sessions/active/clear", apiHandler.ClearConversationHandler)
			r.Put("/sessions/active/settings", apiHandler.UpdateSettingsHandler)
			r.Post("/sessions/active/messages", apiHandler.PostMessageHandler)
			r.Delete("/sessions/{sessionID}", apiHandler.DeleteSessionHandler)

			// Saved prompt routes
			r.Get("/prompts", apiHandler.ListPromptsHandler)
			r.Post("/prompts", apiHandler.SavePromptHandler)
			r.Delete("/prompts/{promptID}", apiHandler.DeletePromptHandler)

			// Theme routes
			r.Get("/theme", apiHandler.GetThemeHandler)
			r.Put("/theme", apiHandler.SetThemeHandler)
			r.Post("/theme/toggle", apiHandler.ToggleThemeHandler)
		})
	})

	return r
}
