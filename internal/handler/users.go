package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/event-booking/internal/auth"
	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

// RegisterUser handles POST /auth/register
func (h *Handler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeBadBody(w, r, err)
		return
	}

	user, err := h.users.Register(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// Login handles POST /auth/login
// Sets the session cookie and also returns the token for API clients.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeBadBody(w, r, err)
		return
	}

	user, token, exp, err := h.users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	auth.SetSessionCookie(w, token, exp)
	writeJSON(w, http.StatusOK, model.SessionResponse{User: user, Token: token, ExpiresAt: exp})
}

// Logout handles POST /auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w)
	h.writeMessage(w, r, http.StatusOK, "logged_out")
}

// RequestPasswordReset handles POST /auth/password-reset
// The response is the same whether or not the email is registered.
func (h *Handler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req model.PasswordResetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeBadBody(w, r, err)
		return
	}
	if err := h.users.RequestPasswordReset(r.Context(), req.Email); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeMessage(w, r, http.StatusAccepted, "password_reset_requested")
}

// ConfirmPasswordReset handles POST /auth/password-reset/confirm
func (h *Handler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req model.PasswordResetConfirm
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeBadBody(w, r, err)
		return
	}
	if err := h.users.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeMessage(w, r, http.StatusOK, "password_reset_done")
}

// Me handles GET /me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, auth.UserFrom(r.Context()))
}

// DeleteUser handles DELETE /users/{id}
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	actor := auth.UserFrom(r.Context())
	id := chi.URLParam(r, "id")
	if err := h.users.DeleteUser(r.Context(), actor, id); err != nil {
		h.writeError(w, r, err)
		return
	}
	if actor.ID == id {
		auth.ClearSessionCookie(w)
	}
	w.WriteHeader(http.StatusNoContent)
}
