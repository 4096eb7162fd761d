package handlers

import (
	"net/http"

	"github.com/25x8/velorent/internal/velorent/middleware"
	"github.com/25x8/velorent/internal/velorent/service"
)

// RegisterUser handles user registration
func (h *Handler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req service.Credentials
	if err := decodeJSON(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	profile, err := h.Auth.Register(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, profile)
}

// LoginUser handles user login
func (h *Handler) LoginUser(w http.ResponseWriter, r *http.Request) {
	var req service.Credentials
	if err := decodeJSON(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	token, err := h.Auth.Login(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	// Set cookie and header
	middleware.SetAuthCookie(w, token.AccessToken, h.TokenTTL)
	w.Header().Set("Authorization", "Bearer "+token.AccessToken)
	writeJSON(w, http.StatusOK, token)
}

// Me returns the current user's profile
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	profile, err := h.Auth.Me(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// ForgotPassword mails a reset code. The answer never reveals whether the email exists.
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.Auth.RequestPasswordReset(r.Context(), req.Email); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detailResponse{Detail: service.ResetRequestedMessage})
}

// ResetPassword sets a new password with a mailed code
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req service.PasswordResetConfirm
	if err := decodeJSON(r, &req, false); err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.Auth.ConfirmPasswordReset(r.Context(), req); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detailResponse{Detail: "Password updated"})
}
