package handlers

import (
	"blogging/auth"
	"blogging/storage/models"
	"net/http"

	"github.com/gorilla/mux"
)

// requireSelf loads the user named in the path and answers 403 unless it is the requester.
func (h *HTTPHandler) requireSelf(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, err := h.Storage.GetUser(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		h.writeStorageError(w, r, err, "User not found.")
		return nil, false
	}
	if user.Id != auth.UserFromContext(r.Context()).Id {
		writeError(w, http.StatusForbidden, "You can only change your own account.")
		return nil, false
	}
	return user, true
}

func (h *HTTPHandler) HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	h.updateUser(w, r, false)
}

func (h *HTTPHandler) HandlePatchUser(w http.ResponseWriter, r *http.Request) {
	h.updateUser(w, r, true)
}

func (h *HTTPHandler) updateUser(w http.ResponseWriter, r *http.Request, partial bool) {
	user, ok := h.requireSelf(w, r)
	if !ok {
		return
	}
	var data UserRequestData
	if !decodeBody(w, r, &data) {
		return
	}
	if data.Username != nil && *data.Username != user.Username {
		writeError(w, http.StatusBadRequest, "Username cannot be changed.")
		return
	}
	if !partial {
		if data.Email == nil {
			writeError(w, http.StatusBadRequest, "Email is required.")
			return
		}
		if data.Groups == nil {
			data.Groups = &[]string{}
		}
	}

	patch := models.UserPatch{Email: data.Email, Groups: data.Groups}
	if patch.Email != nil && !validEmail(*patch.Email) {
		writeError(w, http.StatusBadRequest, "Invalid email.")
		return
	}
	if data.Password != nil {
		hash, ok := h.hashPassword(w, r, *data.Password)
		if !ok {
			return
		}
		patch.PasswordHash = &hash
	}

	updated, err := h.Storage.UpdateUser(r.Context(), user.Id, patch)
	if err != nil {
		h.writeUserError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
