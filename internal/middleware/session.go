package middleware

import (
	"net/http"
	"time"

	"github.com/gorilla/sessions"
)

const (
	// SessionName is the cookie holding the operator session
	SessionName = "ticketer_session"

	sessionTokenKey = "token"
)

// NewSessionStore creates the cookie store for operator sessions. The
// session only carries the signed bearer token issued at login.
func NewSessionStore(secret string, secure bool, maxAge time.Duration) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// SaveSessionToken stores the token in the session cookie
func SaveSessionToken(w http.ResponseWriter, r *http.Request, store sessions.Store, token string) error {
	session, err := store.Get(r, SessionName)
	if err != nil && session == nil {
		return err
	}

	session.Values[sessionTokenKey] = token
	return session.Save(r, w)
}

// ClearSession expires the session cookie
func ClearSession(w http.ResponseWriter, r *http.Request, store sessions.Store) error {
	session, err := store.Get(r, SessionName)
	if err != nil && session == nil {
		return err
	}

	delete(session.Values, sessionTokenKey)
	session.Options.MaxAge = -1
	return session.Save(r, w)
}

// sessionToken returns the token stored in the session cookie, if any
func sessionToken(r *http.Request, store sessions.Store) string {
	if store == nil {
		return ""
	}

	session, err := store.Get(r, SessionName)
	if err != nil {
		return ""
	}

	token, _ := session.Values[sessionTokenKey].(string)
	return token
}
