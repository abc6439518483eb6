// internal/app/features/authgoogle/handler.go
package authgoogle

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	uierrors "github.com/dalemusser/paytrack/internal/app/features/errors"
	"github.com/dalemusser/paytrack/internal/app/store/oauthstate"
	userstore "github.com/dalemusser/paytrack/internal/app/store/users"
	"github.com/dalemusser/paytrack/internal/app/system/auditlog"
	"github.com/dalemusser/paytrack/internal/app/system/auth"
	"github.com/dalemusser/paytrack/internal/app/system/normalize"
	"github.com/dalemusser/paytrack/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"github.com/gorilla/securecookie"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Handler handles Google OAuth sign-in. Accounts are matched by the
// verified email on the Google profile; there is no separate linking
// step, so a user must register first with the same email.
type Handler struct {
	Users      *userstore.Store
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	ErrLog     *uierrors.ErrorLogger
	AuditLog   *auditlog.Logger
	StateStore *oauthstate.Store

	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// NewHandler creates a new Google OAuth handler.
func NewHandler(
	db *mongo.Database,
	sessionMgr *auth.SessionManager,
	errLog *uierrors.ErrorLogger,
	audit *auditlog.Logger,
	stateStore *oauthstate.Store,
	clientID, clientSecret, baseURL string,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Users:        userstore.New(db),
		Log:          logger,
		SessionMgr:   sessionMgr,
		ErrLog:       errLog,
		AuditLog:     audit,
		StateStore:   stateStore,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  baseURL + "/auth/google/callback",
	}
}

// oauth2Config returns the Google OAuth2 configuration.
func (h *Handler) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.ClientID,
		ClientSecret: h.ClientSecret,
		RedirectURL:  h.RedirectURL,
		Scopes: []string{
			"openid",
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}
}

// IsConfigured returns true if Google OAuth is configured.
func (h *Handler) IsConfigured() bool {
	return h.ClientID != "" && h.ClientSecret != ""
}

// ServeLogin handles GET /auth/google: redirects to Google's consent
// screen with a single-use state parameter.
func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	if !h.IsConfigured() {
		h.Log.Warn("Google OAuth not configured")
		http.Redirect(w, r, "/login?error=google_not_configured", http.StatusSeeOther)
		return
	}

	state, err := generateState()
	if err != nil {
		h.Log.Error("failed to generate OAuth state", zap.Error(err))
		http.Redirect(w, r, "/login?error=internal", http.StatusSeeOther)
		return
	}

	returnURL := query.Get(r, "return")

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	expiresAt := time.Now().UTC().Add(10 * time.Minute)
	if err := h.StateStore.Save(ctx, state, returnURL, expiresAt); err != nil {
		h.Log.Error("failed to save OAuth state", zap.Error(err))
		http.Redirect(w, r, "/login?error=internal", http.StatusSeeOther)
		return
	}

	url := h.oauth2Config().AuthCodeURL(state, oauth2.AccessTypeOffline)

	h.Log.Debug("initiating Google OAuth flow",
		zap.String("redirect_url", url),
		zap.String("return_url", returnURL))

	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// ServeCallback handles GET /auth/google/callback: validates the state,
// exchanges the code, fetches the profile, and signs the matching
// account in.
func (h *Handler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		errDesc := r.URL.Query().Get("error_description")
		h.Log.Warn("Google OAuth error",
			zap.String("error", errParam),
			zap.String("description", errDesc))
		http.Redirect(w, r, "/login?error=google_denied", http.StatusSeeOther)
		return
	}

	state := r.URL.Query().Get("state")
	if state == "" {
		h.Log.Warn("missing OAuth state parameter")
		http.Redirect(w, r, "/login?error=invalid_state", http.StatusSeeOther)
		return
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	returnURL, valid, err := h.StateStore.Validate(ctxTimeout, state)
	if err != nil {
		h.Log.Error("failed to validate OAuth state", zap.Error(err))
		http.Redirect(w, r, "/login?error=internal", http.StatusSeeOther)
		return
	}
	if !valid {
		h.Log.Warn("invalid or expired OAuth state")
		http.Redirect(w, r, "/login?error=invalid_state", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.Log.Warn("missing OAuth code parameter")
		http.Redirect(w, r, "/login?error=invalid_code", http.StatusSeeOther)
		return
	}

	token, err := h.oauth2Config().Exchange(ctx, code)
	if err != nil {
		h.Log.Error("failed to exchange OAuth code", zap.Error(err))
		http.Redirect(w, r, "/login?error=token_exchange", http.StatusSeeOther)
		return
	}

	googleUser, err := fetchGoogleUserInfo(ctx, token)
	if err != nil {
		h.Log.Error("failed to fetch Google user info", zap.Error(err))
		http.Redirect(w, r, "/login?error=user_info", http.StatusSeeOther)
		return
	}

	h.Log.Debug("Google user info fetched",
		zap.String("google_id", googleUser.ID),
		zap.String("email", googleUser.Email))

	email := normalize.Email(googleUser.Email)
	u, err := h.Users.GetByEmail(ctxTimeout, email)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		h.Log.Info("Google OAuth: no account for email",
			zap.String("google_id", googleUser.ID),
			zap.String("email", email))
		h.AuditLog.LoginFailedUserNotFound(ctx, r, email)
		http.Redirect(w, r, "/login?error=no_account", http.StatusSeeOther)
		return
	case err != nil:
		h.Log.Error("failed to look up user", zap.Error(err))
		http.Redirect(w, r, "/login?error=internal", http.StatusSeeOther)
		return
	}

	sess, err := h.SessionMgr.GetSession(r)
	if err != nil {
		if scErr, ok := err.(securecookie.Error); ok && scErr.IsDecode() {
			h.Log.Warn("session cookie invalid, using fresh session",
				zap.Error(err),
				zap.String("user_id", u.ID.Hex()))
		} else {
			h.Log.Error("session store error during login, using fresh session",
				zap.Error(err),
				zap.String("user_id", u.ID.Hex()))
		}
	}

	if err := h.SessionMgr.SignIn(w, r, sess, u.ID.Hex()); err != nil {
		h.Log.Error("save session failed", zap.Error(err), zap.String("email", email))
		http.Redirect(w, r, "/login?error=session", http.StatusSeeOther)
		return
	}

	h.AuditLog.LoginSuccess(ctx, r, u.ID, email)

	h.Log.Info("user logged in via Google OAuth",
		zap.String("user_id", u.ID.Hex()),
		zap.String("email", email))

	dest := urlutil.SafeReturn(returnURL, "", "/dashboard")
	http.Redirect(w, r, dest, http.StatusSeeOther)
}

// googleUserInfo represents user info returned from Google.
type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// fetchGoogleUserInfo retrieves user information from Google's userinfo endpoint.
func fetchGoogleUserInfo(ctx context.Context, token *oauth2.Token) (*googleUserInfo, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	resp, err := client.Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}

	return &info, nil
}

// generateState creates a cryptographically secure random state string.
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
