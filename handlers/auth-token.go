package handlers

import (
	"blogging/auth"
	"blogging/storage"
	"errors"
	"net/http"
)

type CreateTokenRequestData struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	ExpiresIn   int    `json:"expiresIn"`
}

func (h *HTTPHandler) HandleCreateToken(w http.ResponseWriter, r *http.Request) {
	var data CreateTokenRequestData
	if !decodeBody(w, r, &data) {
		return
	}

	user, err := h.Storage.GetUserByUsername(r.Context(), data.Username)
	if err != nil && !errors.Is(err, storage.NotFoundError) {
		h.writeStorageError(w, r, err, "")
		return
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, data.Password) {
		h.Logger.Info(r.Context(), "failed login", "username", data.Username)
		writeError(w, http.StatusUnauthorized, "Invalid username or password.")
		return
	}

	token, err := auth.GenerateToken(user.Id, h.Secret, h.TokenTTL)
	if err != nil {
		h.Logger.Error(r.Context(), "failed to sign token", "error", err)
		writeError(w, http.StatusInternalServerError, INTERNAL_ERROR_MESSAGE)
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(h.TokenTTL.Seconds()),
	})
}
