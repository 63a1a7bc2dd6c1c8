package handlers

import (
	"blogging/auth"
	"blogging/storage"
	"blogging/storage/models"
	"errors"
	"net/http"
	"net/mail"
	"regexp"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9@.+_-]{3,150}$`)

type UserRequestData struct {
	Username *string   `json:"username"`
	Email    *string   `json:"email"`
	Password *string   `json:"password"`
	Groups   *[]string `json:"groups"`
}

func validEmail(email string) bool {
	if email == "" {
		return true
	}
	_, err := mail.ParseAddress(email)
	return err == nil
}

// hashPassword answers 400 itself when the password is rejected.
func (h *HTTPHandler) hashPassword(w http.ResponseWriter, r *http.Request, password string) (string, bool) {
	hash, err := auth.HashPassword(password)
	if errors.Is(err, auth.ErrPasswordTooShort) {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	if err != nil {
		h.Logger.Error(r.Context(), "failed to hash password", "error", err)
		writeError(w, http.StatusInternalServerError, INTERNAL_ERROR_MESSAGE)
		return "", false
	}
	return hash, true
}

// writeUserError reports a reference to a missing group as a bad request.
func (h *HTTPHandler) writeUserError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, storage.NotFoundError) {
		writeError(w, http.StatusBadRequest, "Unknown group.")
		return
	}
	h.writeStorageError(w, r, err, "User not found.")
}

func (h *HTTPHandler) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	var data UserRequestData
	if !decodeBody(w, r, &data) {
		return
	}
	if data.Username == nil || !usernamePattern.MatchString(*data.Username) {
		writeError(w, http.StatusBadRequest, "Username must be 3 to 150 letters, digits or @.+-_ characters.")
		return
	}
	if data.Password == nil {
		writeError(w, http.StatusBadRequest, "Password is required.")
		return
	}
	user := &models.User{Username: *data.Username, Groups: make([]string, 0)}
	if data.Email != nil {
		user.Email = *data.Email
	}
	if !validEmail(user.Email) {
		writeError(w, http.StatusBadRequest, "Invalid email.")
		return
	}
	if data.Groups != nil {
		user.Groups = *data.Groups
	}
	var ok bool
	if user.PasswordHash, ok = h.hashPassword(w, r, *data.Password); !ok {
		return
	}

	created, err := h.Storage.AddUser(r.Context(), user)
	if err != nil {
		h.writeUserError(w, r, err)
		return
	}
	h.Logger.Info(r.Context(), "user registered", "userId", created.Id)
	writeJSON(w, http.StatusCreated, created)
}
