package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"github.com/bxcodec/dbresolver/v2"
	"github.com/gorilla/sessions"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/jmartynas/canvas-auth/internal/auth"
	"github.com/jmartynas/canvas-auth/internal/canvas"
	"github.com/jmartynas/canvas-auth/internal/middleware"
	"github.com/jmartynas/canvas-auth/internal/session"
	"github.com/jmartynas/canvas-auth/internal/user"
	"github.com/jmartynas/canvas-auth/respond"
	"github.com/jmartynas/canvas-auth/structs"
)

// AuthHandler owns the Canvas login flow and the authenticated user
// API. The OAuth redirect and code exchange happen here; everything
// Canvas-specific past the token is delegated to the Authenticator.
type AuthHandler struct {
	OAuth         *oauth2.Config
	Authenticator *canvas.Authenticator
	Sessions      session.Store
	Cookies       sessions.Store
	DB            dbresolver.DB
	Log           logrus.FieldLogger

	LoginService string
	SuccessURL   string
	SessionTTL   time.Duration
	JWTSecret    string
	TokenTTL     time.Duration
}

// LoginInfo serves login metadata for front-ends rendering the
// "Sign in with ..." button.
func (h *AuthHandler) LoginInfo(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]string{
		"login_service": h.LoginService,
		"login_url":     "/auth/canvas/login",
	})
}

// Login starts the OAuth flow: random state into the cookie session,
// redirect to the Canvas authorize endpoint.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := randomState()
	if err != nil {
		h.Log.WithError(err).Error("generating oauth state")
		respond.InternalServerError("internal error").Respond(w)
		return
	}

	cookie, _ := h.Cookies.Get(r, middleware.CookieName)
	cookie.Values["oauth_state"] = state
	if err := cookie.Save(r, w); err != nil {
		h.Log.WithError(err).Error("saving oauth state")
		respond.InternalServerError("internal error").Respond(w)
		return
	}

	http.Redirect(w, r, h.OAuth.AuthCodeURL(state), http.StatusFound)
}

// Callback finishes the OAuth flow: state check, code exchange, then
// the identity adapter. On success the identity is persisted and a
// server-side session is created. On any adapter failure the user
// gets a generic denial; the upstream status stays in the logs.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	cookie, _ := h.Cookies.Get(r, middleware.CookieName)

	state, _ := cookie.Values["oauth_state"].(string)
	delete(cookie.Values, "oauth_state")
	if state == "" || r.URL.Query().Get("state") != state {
		respond.BadRequest("state mismatch").Respond(w)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		respond.BadRequest("missing code").Respond(w)
		return
	}

	token, err := h.OAuth.Exchange(r.Context(), code, auth.ReplaceTokens)
	if err != nil {
		h.Log.WithError(err).Error("oauth exchange failed")
		respond.Unauthorized("access denied").Respond(w)
		return
	}

	identity, err := h.Authenticator.Authenticate(r.Context(), token.AccessToken)
	if err != nil {
		log := h.Log.WithError(err)
		var apiErr *canvas.APIError
		if errors.As(err, &apiErr) {
			log = log.WithField("upstream_status", apiErr.Status)
		}
		log.Warn("canvas authentication failed")
		respond.Unauthorized("access denied").Respond(w)
		return
	}

	if h.DB != nil {
		userID, err := user.Upsert(r.Context(), h.DB, identity)
		if err != nil {
			h.Log.WithError(err).WithField("username", identity.Username).Error("user upsert")
			respond.Database().Respond(w)
			return
		}
		if err := user.ReplaceGroups(r.Context(), h.DB, userID, identity.Groups); err != nil {
			h.Log.WithError(err).WithField("username", identity.Username).Error("replacing groups")
			respond.Database().Respond(w)
			return
		}
	}

	record := session.New(identity.Username, token.AccessToken, identity.AuthState, identity.Groups, h.SessionTTL)
	if err := h.Sessions.Create(r.Context(), record); err != nil {
		h.Log.WithError(err).Error("creating session")
		respond.InternalServerError("session failed").Respond(w)
		return
	}

	cookie.Values["authenticated"] = true
	cookie.Values["username"] = identity.Username
	cookie.Values["sid"] = record.ID
	cookie.Options.MaxAge = int(time.Until(record.ExpiresAt).Seconds())
	cookie.Options.HttpOnly = true
	cookie.Options.SameSite = http.SameSiteLaxMode
	if err := cookie.Save(r, w); err != nil {
		h.Log.WithError(err).Error("saving session cookie")
		respond.InternalServerError("session failed").Respond(w)
		return
	}

	h.Log.WithField("username", identity.Username).
		WithField("groups", len(identity.Groups)).
		Info("login")

	redirectTo := h.SuccessURL
	if redirectTo == "" {
		redirectTo = "/"
	}
	http.Redirect(w, r, redirectTo, http.StatusFound)
}

// Logout revokes the server-side session and clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, _ := h.Cookies.Get(r, middleware.CookieName)
	if sid, _ := cookie.Values["sid"].(string); sid != "" {
		if err := h.Sessions.Delete(r.Context(), sid); err != nil {
			h.Log.WithError(err).Warn("revoking session")
		}
	}
	delete(cookie.Values, "authenticated")
	delete(cookie.Values, "username")
	delete(cookie.Values, "sid")
	cookie.Options.MaxAge = -1
	if err := cookie.Save(r, w); err != nil {
		h.Log.WithError(err).Error("clearing session cookie")
		respond.InternalServerError("could not remove session").Respond(w)
		return
	}

	redirectTo := h.SuccessURL
	if redirectTo == "" {
		redirectTo = "/"
	}
	http.Redirect(w, r, redirectTo, http.StatusFound)
}

// User returns the identity of the current session.
func (h *AuthHandler) User(w http.ResponseWriter, r *http.Request) {
	s := middleware.GetSession(r.Context())
	if s == nil {
		respond.Unauthorized("unauthorized").Respond(w)
		return
	}
	identity := identityFromSession(s)
	respond.JSON(w, http.StatusOK, identity)
}

// Env returns the OAUTH2_* environment map spawned services receive.
func (h *AuthHandler) Env(w http.ResponseWriter, r *http.Request) {
	s := middleware.GetSession(r.Context())
	if s == nil {
		respond.Unauthorized("unauthorized").Respond(w)
		return
	}
	identity := identityFromSession(s)
	respond.JSON(w, http.StatusOK, identity.SpawnerEnv(s.AccessToken))
}

// Token mints a short-lived JWT carrying the username and groups for
// downstream services.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	s := middleware.GetSession(r.Context())
	if s == nil {
		respond.Unauthorized("unauthorized").Respond(w)
		return
	}
	signed, err := auth.MintToken(h.JWTSecret, s.Username, s.Groups, h.TokenTTL)
	if err != nil {
		h.Log.WithError(err).Error("minting token")
		respond.InternalServerError("token failed").Respond(w)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{
		"token":      signed,
		"token_type": "Bearer",
		"expires_in": int(h.TokenTTL.Seconds()),
	})
}

func identityFromSession(s *session.Session) *structs.Identity {
	identity := &structs.Identity{
		Username:  s.Username,
		Groups:    s.Groups,
		AuthState: s.AuthState,
	}
	profile := canvas.Profile(s.AuthState)
	if email, ok := profile.String("primary_email"); ok {
		identity.Email = email
	}
	if name, ok := profile.String("name"); ok {
		identity.Name = name
	}
	return identity
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
