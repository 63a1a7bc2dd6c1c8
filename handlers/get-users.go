package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

func (h *HTTPHandler) HandleGetUsers(w http.ResponseWriter, r *http.Request) {
	page, size, ok := parsePage(w, r)
	if !ok {
		return
	}
	users, nextPage, err := h.Storage.ListUsers(r.Context(), page, size)
	if err != nil {
		h.writeStorageError(w, r, err, "User not found.")
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(users, nextPage))
}

func (h *HTTPHandler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.Storage.GetUser(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		h.writeStorageError(w, r, err, "User not found.")
		return
	}
	writeJSON(w, http.StatusOK, user)
}
