// internal/app/system/auth/auth.go
package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

// Session value keys. Only identity lives in the session; everything else
// is fetched fresh per request through the UserFetcher.
const (
	isAuthKey = "is_authenticated"
	userIDKey = "user_id"
)

// SessionUser is the per-request identity injected into r.Context() by
// LoadSessionUser. It is rebuilt from the database on every request so
// role changes and removals take effect immediately.
type SessionUser struct {
	ID        string
	Name      string
	Email     string
	StudentID string
	Role      string
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the user from the request context and a found flag.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	u, ok := r.Context().Value(currentUserKey).(*SessionUser)
	return u, ok
}

// WithTestUser injects a session user directly into the request context.
// For handler tests only; production requests go through LoadSessionUser.
func WithTestUser(r *http.Request, u *SessionUser) *http.Request {
	return withUser(r, u)
}

// UserFetcher loads fresh user data for the given user id. Implementations
// return nil when the user no longer exists or may not sign in.
type UserFetcher interface {
	FetchUser(ctx context.Context, userID string) *SessionUser
}

// SessionManager wraps the cookie session store and the middleware that
// hydrates the current user.
type SessionManager struct {
	store   *sessions.CookieStore
	name    string
	log     *zap.Logger
	fetcher UserFetcher
}

// NewSessionManager builds a SessionManager over a cookie store signed with
// sessionKey. The secure flag controls cookie Secure/SameSite handling:
// production uses Secure cookies, local dev over http needs secure=false.
func NewSessionManager(sessionKey, name, domain string, secure bool, logger *zap.Logger) (*SessionManager, error) {
	if sessionKey == "" {
		return nil, fmt.Errorf("session key is empty; provide ≥32 random chars")
	}
	if len(sessionKey) < 32 {
		logger.Warn("session key is short; 32+ chars recommended",
			zap.Int("length", len(sessionKey)))
	}

	store := sessions.NewCookieStore([]byte(sessionKey))
	opts := &sessions.Options{
		Domain:   domain,
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
	}
	if secure {
		opts.SameSite = http.SameSiteNoneMode
	} else {
		opts.SameSite = http.SameSiteLaxMode
	}
	store.Options = opts

	logger.Info("session store initialized",
		zap.Bool("secure", secure),
		zap.String("domain", domain))

	return &SessionManager{store: store, name: name, log: logger}, nil
}

// SetUserFetcher installs the fetcher used by LoadSessionUser to hydrate
// the current user from storage.
func (sm *SessionManager) SetUserFetcher(f UserFetcher) {
	sm.fetcher = f
}

// GetSession returns the request's session, creating a fresh one when the
// cookie is missing or fails to decode. The error is informational; the
// returned session is always usable.
func (sm *SessionManager) GetSession(r *http.Request) (*sessions.Session, error) {
	return sm.store.Get(r, sm.name)
}

// SignIn marks the session authenticated for the given user id.
func (sm *SessionManager) SignIn(w http.ResponseWriter, r *http.Request, sess *sessions.Session, userID string) error {
	sess.Values[isAuthKey] = true
	sess.Values[userIDKey] = userID
	return sess.Save(r, w)
}

// SignOut clears the session.
func (sm *SessionManager) SignOut(w http.ResponseWriter, r *http.Request) error {
	sess, _ := sm.GetSession(r)
	sess.Values = map[interface{}]interface{}{}
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

// LoadSessionUser injects the current user into the request context when
// the session is authenticated. With a UserFetcher installed the user row
// is re-read on every request; without one only the id is available.
func (sm *SessionManager) LoadSessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, _ := sm.GetSession(r)

		if isAuth, _ := sess.Values[isAuthKey].(bool); isAuth {
			userID, _ := sess.Values[userIDKey].(string)
			if userID != "" {
				if sm.fetcher != nil {
					if u := sm.fetcher.FetchUser(r.Context(), userID); u != nil {
						r = withUser(r, u)
					}
					// Fetcher returned nil: account gone or disabled.
					// Treat the request as signed out.
				} else {
					r = withUser(r, &SessionUser{ID: userID})
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSignedIn ensures there is a user in context (set by LoadSessionUser).
// If not signed in:
//   - HTMX: sends HX-Redirect to /login?return=...
//   - HTML: 303 redirect to /login?return=...
//   - API:  401 Unauthorized with a plain error body.
func (sm *SessionManager) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); ok {
			next.ServeHTTP(w, r)
			return
		}

		ret := url.QueryEscape(currentURI(r))

		if r.Header.Get("HX-Request") == "true" {
			w.Header().Set("HX-Redirect", "/login?return="+ret)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if wantsHTML(r) {
			http.Redirect(w, r, "/login?return="+ret, http.StatusSeeOther)
			return
		}
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})
}

// RequireRole ensures the context user has one of the allowed roles.
// Unauthenticated requests get 401 semantics, wrong-role requests 403.
func (sm *SessionManager) RequireRole(allowed ...string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		set[strings.ToLower(strings.TrimSpace(role))] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := CurrentUser(r)

			if !ok {
				ret := url.QueryEscape(currentURI(r))
				if r.Header.Get("HX-Request") == "true" {
					w.Header().Set("HX-Redirect", "/login?return="+ret)
					w.WriteHeader(http.StatusUnauthorized)
					return
				}
				if wantsHTML(r) {
					http.Redirect(w, r, "/login?return="+ret, http.StatusSeeOther)
					return
				}
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			if _, has := set[strings.ToLower(u.Role)]; !has {
				if r.Header.Get("HX-Request") == "true" {
					w.Header().Set("HX-Redirect", "/forbidden")
					w.WriteHeader(http.StatusForbidden)
					return
				}
				if wantsHTML(r) {
					http.Redirect(w, r, "/forbidden", http.StatusSeeOther)
					return
				}
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// helpers

func withUser(r *http.Request, u *SessionUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}

func wantsHTML(r *http.Request) bool {
	if r.Header.Get("HX-Request") == "true" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func currentURI(r *http.Request) string {
	u := *r.URL
	return u.RequestURI()
}
