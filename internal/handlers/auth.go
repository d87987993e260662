package handlers

import (
	"net/http"

	"github.com/abrezinsky/chronolap/internal/auth"
)

// handleLogin validates the admin password and starts a session
func (h *Handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	token, ok := h.Auth.Login(req.Password)
	if !ok {
		respondError(w, Unauthorized("Invalid password"))
		return
	}

	auth.SetSessionCookie(w, token)
	respondSuccess(w, "Logged in")
}

// handleLogout ends the current session
func (h *Handlers) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.CookieName); err == nil {
		h.Auth.Logout(cookie.Value)
	}
	auth.ClearSessionCookie(w)
	respondSuccess(w, "Logged out")
}

// handleSession reports whether the caller has a valid admin session
func (h *Handlers) handleSession(w http.ResponseWriter, r *http.Request) {
	respondOK(w, map[string]bool{"authenticated": h.Auth.GetSessionFromRequest(r)})
}
