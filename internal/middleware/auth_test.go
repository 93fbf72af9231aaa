package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketer/internal/logging"
)

type stubVerifier map[string]string

func (s stubVerifier) VerifyCredential(token string) (string, error) {
	if userID, ok := s[token]; ok {
		return userID, nil
	}
	return "", errors.New("invalid credential")
}

func echoUserHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(UserIDFromContext(r.Context())))
	})
}

func TestAuthMiddleware_LoadUser(t *testing.T) {
	store := NewSessionStore("test-session-secret-32-bytes-long", false, time.Hour)
	m := NewAuthMiddleware(stubVerifier{"good-token": "user-1"}, store, logging.Discard())
	handler := m.LoadUser(echoUserHandler())

	t.Run("bearer token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/tickets", nil)
		req.Header.Set("Authorization", "Bearer good-token")
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)
		assert.Equal(t, "user-1", rr.Body.String())
	})

	t.Run("lowercase scheme", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/tickets", nil)
		req.Header.Set("Authorization", "bearer good-token")
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)
		assert.Equal(t, "user-1", rr.Body.String())
	})

	t.Run("invalid token continues anonymously", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/tickets", nil)
		req.Header.Set("Authorization", "Bearer forged")
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Empty(t, rr.Body.String())
	})

	t.Run("session cookie", func(t *testing.T) {
		login := httptest.NewRecorder()
		require.NoError(t, SaveSessionToken(login, httptest.NewRequest(http.MethodPost, "/login", nil), store, "good-token"))

		cookies := login.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, SessionName, cookies[0].Name)
		assert.True(t, cookies[0].HttpOnly)

		req := httptest.NewRequest(http.MethodGet, "/tickets", nil)
		req.AddCookie(cookies[0])
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)
		assert.Equal(t, "user-1", rr.Body.String())
	})

	t.Run("cleared session", func(t *testing.T) {
		logout := httptest.NewRecorder()
		require.NoError(t, ClearSession(logout, httptest.NewRequest(http.MethodPost, "/logout", nil), store))

		cookies := logout.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.True(t, cookies[0].MaxAge < 0)
	})
}

func TestRequireAuth(t *testing.T) {
	m := NewAuthMiddleware(stubVerifier{"good-token": "user-1"}, nil, logging.Discard())
	handler := m.LoadUser(m.RequireAuth(echoUserHandler()))

	req := httptest.NewRequest(http.MethodGet, "/tickets", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"authentication required","code":"unauthorized"}`, rr.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/tickets", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "user-1", rr.Body.String())
}
