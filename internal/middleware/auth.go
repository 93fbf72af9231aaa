package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/sessions"
	"github.com/sirupsen/logrus"
)

type contextKey string

const (
	UserIDContextKey contextKey = "user_id"
)

// CredentialVerifier resolves a bearer token to a user id
type CredentialVerifier interface {
	VerifyCredential(token string) (string, error)
}

// AuthMiddleware provides authentication functionality
type AuthMiddleware struct {
	verifier CredentialVerifier
	store    sessions.Store
	logger   *logrus.Logger
}

// NewAuthMiddleware creates a new authentication middleware. store may be
// nil, in which case only Authorization headers are accepted.
func NewAuthMiddleware(verifier CredentialVerifier, store sessions.Store, logger *logrus.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		store:    store,
		logger:   logger,
	}
}

// LoadUser resolves the caller from the Authorization header or the session
// cookie and adds the user id to the request context.
func (m *AuthMiddleware) LoadUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			token = sessionToken(r, m.store)
		}
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		userID, err := m.verifier.VerifyCredential(token)
		if err != nil {
			m.logger.WithContext(r.Context()).WithError(err).Debug("rejected credential")
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(SetUserIDContext(r.Context(), userID)))
	})
}

// RequireAuth rejects requests without a verified credential
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return RequireAuth(next)
}

// RequireAuth rejects requests whose context carries no user id
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserIDFromContext(r.Context()) == "" {
			writeJSONError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// UserIDFromContext returns the authenticated user id, or "" if none
func UserIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(UserIDContextKey).(string)
	return userID
}

// SetUserIDContext adds a user id to the context
func SetUserIDContext(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDContextKey, userID)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
