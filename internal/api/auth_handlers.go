package api

import (
	"net/http"

	"chesed/internal/auth"
)

type signInRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type anonymousRequest struct {
	DisplayName string `json:"displayName" validate:"max=100"`
}

func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req auth.Credentials
	if !h.decodeJSON(w, r, &req) {
		return
	}
	res, err := h.deps.Auth.SignUp(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONSuccess(w, "Signed up", res)
}

func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	res, err := h.deps.Auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONSuccess(w, "Signed in", res)
}

func (h *Handler) SignInAnonymously(w http.ResponseWriter, r *http.Request) {
	var req anonymousRequest
	if r.ContentLength != 0 && !h.decodeJSON(w, r, &req) {
		return
	}
	res, err := h.deps.Auth.Anonymous(r.Context(), req.DisplayName)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONSuccess(w, "Signed in anonymously", res)
}

func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	h.deps.Auth.SignOut(currentSession(r))
	writeJSONSuccess(w, "Signed out", nil)
}

// Me returns the caller's account and session.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r)
	user, err := h.deps.Auth.Me(r.Context(), sess)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSONSuccess(w, "Profile retrieved successfully", map[string]any{
		"user":    user,
		"session": sess,
	})
}
