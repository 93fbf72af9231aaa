package handlers

import (
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/sirupsen/logrus"

	"ticketer/internal/middleware"
	"ticketer/internal/models"
	"ticketer/internal/services"
)

// LoginResponse is returned by a successful login
type LoginResponse struct {
	Message string       `json:"message"`
	Token   string       `json:"token"`
	User    *models.User `json:"user"`
}

// AuthHandler handles operator login and account management
type AuthHandler struct {
	authService services.AuthServiceInterface
	store       sessions.Store
	logger      *logrus.Logger
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authService services.AuthServiceInterface, store sessions.Store, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		store:       store,
		logger:      logger,
	}
}

// Login handles POST /login. The token is returned in the body and also
// stored in the session cookie for browser clients.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if h.store != nil {
		if err := middleware.SaveSessionToken(w, r, h.store, result.Token); err != nil {
			h.logger.WithContext(r.Context()).WithError(err).Warn("failed to save session")
		}
	}

	h.logger.WithContext(r.Context()).WithField("username", result.User.Username).Info("operator logged in")

	writeJSON(w, http.StatusOK, LoginResponse{
		Message: "Login successful",
		Token:   result.Token,
		User:    result.User,
	})
}

// Logout handles POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if h.store != nil {
		if err := middleware.ClearSession(w, r, h.store); err != nil {
			h.logger.WithContext(r.Context()).WithError(err).Warn("failed to clear session")
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// CreateUser handles POST /users
func (h *AuthHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req models.UserCreateRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	user, err := h.authService.Register(r.Context(), &req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// ListUsers handles GET /users
func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.authService.ListUsers(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, users)
}
