package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/gestion-cobranzas/cobranzas-engine/pkg/auth"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/config"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/models"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/services"
)

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the token for API clients; browsers use the cookie.
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// LogoutResponse represents the response for logout.
type LogoutResponse struct {
	Success bool `json:"success"`
}

// AuthHandler handles login, logout and the current-user endpoint.
type AuthHandler struct {
	sessions services.SessionService
	config   *config.Config
	logger   *zap.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(sessions services.SessionService, cfg *config.Config, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		sessions: sessions,
		config:   cfg,
		logger:   logger,
	}
}

// RegisterRoutes registers the auth handler's routes on the given mux.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope ScopeMiddleware) {
	mux.HandleFunc("POST /api/auth/login", scope(h.Login))
	mux.HandleFunc("POST /api/auth/logout", authMiddleware.RequireAuth(h.Logout))
	mux.HandleFunc("GET /api/auth/me", authMiddleware.RequireAuth(scope(h.Me)))
}

// Login handles POST /api/auth/login.
// It sets the session as an httpOnly cookie and also returns the token in the body.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	result, err := h.sessions.Login(r.Context(), req.Username, req.Password, r.RemoteAddr)
	if err != nil {
		writeServiceError(w, h.logger, "login", err)
		return
	}

	http.SetCookie(w, auth.SessionCookie(result.Token, result.ExpiresAt, h.config.Auth.CookieSecure))

	writeResponse(w, h.logger, http.StatusOK, LoginResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		User:      result.User,
	})
}

// Logout handles POST /api/auth/logout.
// Tokens are stateless, so logout only clears the browser cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, auth.ClearSessionCookie(h.config.Auth.CookieSecure))
	writeResponse(w, h.logger, http.StatusOK, LogoutResponse{Success: true})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.sessions.CurrentUser(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "current_user", err)
		return
	}
	writeResponse(w, h.logger, http.StatusOK, user)
}
