package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/pbelov/snowview/internal/auth"
	"github.com/pbelov/snowview/internal/web/middleware"
)

// LoginPage renders the login page
func (h *Handlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, "login", nil)
}

// Login handles login form submission
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderLoginError(w, "Invalid form data")
		return
	}

	email := r.FormValue("email")
	password := r.FormValue("password")

	user, err := h.authn.Authenticate(r.Context(), email, password)
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			h.logger.Error("authentication failed", "email", email, "error", err)
		}
		h.metrics.LoginsTotal.WithLabelValues("failure").Inc()
		h.renderLoginError(w, "Invalid email or password")
		return
	}

	sess, err := h.sessions.Create(r.Context(), user.ID, user.Email, h.cfg.Auth.SessionTTL)
	if err != nil {
		h.logger.Error("failed to create session", "email", user.Email, "error", err)
		h.renderLoginError(w, "Login failed, please try again")
		return
	}

	h.metrics.LoginsTotal.WithLabelValues("success").Inc()
	h.metrics.ActiveSessions.Inc()

	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Logout handles user logout
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if sess := middleware.GetSession(r); sess != nil {
		h.dropSession(w, r, sess.ID)
		http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
		return
	}

	// Logout is reachable without the auth middleware; fall back to the
	// cookie so a half-expired session still gets cleaned up.
	if cookie, err := r.Cookie("session"); err == nil {
		h.dropSession(w, r, cookie.Value)
	}
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}

func (h *Handlers) dropSession(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.sessions.Delete(r.Context(), id); err != nil {
		h.logger.Warn("failed to delete session", "error", err)
	}
	h.cache.Delete(id)
	h.metrics.ActiveSessions.Dec()

	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
	})
}

func (h *Handlers) renderLoginError(w http.ResponseWriter, message string) {
	h.render(w, "login", map[string]any{"Error": message})
}
