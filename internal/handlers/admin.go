package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bxcodec/dbresolver/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/jmartynas/canvas-auth/internal/errs"
	"github.com/jmartynas/canvas-auth/internal/user"
	"github.com/jmartynas/canvas-auth/respond"
)

// AdminHandler exposes read-only user and group listings, guarded by
// a static bearer token whose bcrypt hash lives in config.
type AdminHandler struct {
	DB        dbresolver.DB
	TokenHash string
	Log       logrus.FieldLogger
}

// RequireToken compares the presented bearer token against the
// configured bcrypt hash.
func (h *AdminHandler) RequireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.TokenHash == "" {
			respond.NotFound("not found").Respond(w)
			return
		}
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" || token == r.Header.Get("Authorization") {
			respond.Unauthorized("missing bearer token").Respond(w)
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(h.TokenHash), []byte(token)); err != nil {
			respond.Forbidden("invalid admin token").Respond(w)
			return
		}
		next.ServeHTTP(w, r)
	}
}

// Users lists all known users.
func (h *AdminHandler) Users(w http.ResponseWriter, r *http.Request) {
	users, err := user.List(r.Context(), h.DB)
	if err != nil {
		h.Log.WithError(err).Error("listing users")
		respond.Database().Respond(w)
		return
	}
	out := make([]map[string]string, 0, len(users))
	for _, u := range users {
		out = append(out, map[string]string{
			"id":       u.ID.String(),
			"username": u.Username,
			"email":    u.Email,
			"name":     u.Name,
		})
	}
	respond.JSON(w, http.StatusOK, out)
}

// UserGroups lists a user's group memberships as of their last login.
func (h *AdminHandler) UserGroups(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	if username == "" {
		respond.BadRequest("missing username").Respond(w)
		return
	}
	u, err := user.GetByUsername(r.Context(), h.DB, username)
	switch {
	case err == nil: // OK
	case errors.Is(err, errs.ErrNotFound):
		respond.NotFound("unknown user").Respond(w)
		return
	default:
		h.Log.WithError(err).WithField("username", username).Error("getting user")
		respond.Database().Respond(w)
		return
	}

	groups, err := user.Groups(r.Context(), h.DB, u.ID)
	if err != nil {
		h.Log.WithError(err).WithField("username", username).Error("listing groups")
		respond.Database().Respond(w)
		return
	}
	if groups == nil {
		groups = []string{}
	}
	respond.JSON(w, http.StatusOK, map[string]any{
		"username": u.Username,
		"groups":   groups,
	})
}
