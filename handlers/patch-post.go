package handlers

import (
	"blogging/auth"
	"blogging/storage/models"
	"net/http"

	"github.com/gorilla/mux"
)

func (h *HTTPHandler) HandleUpdatePost(w http.ResponseWriter, r *http.Request) {
	h.updatePost(w, r, false)
}

func (h *HTTPHandler) HandlePatchPost(w http.ResponseWriter, r *http.Request) {
	h.updatePost(w, r, true)
}

func (h *HTTPHandler) updatePost(w http.ResponseWriter, r *http.Request, partial bool) {
	var data PostRequestData
	if !decodeBody(w, r, &data) {
		return
	}
	if msg := data.validate(!partial); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if !partial && data.IsPublic == nil {
		isPublic := false
		data.IsPublic = &isPublic
	}

	requester := auth.UserFromContext(r.Context())
	patch := models.PostPatch{Title: data.Title, Text: data.Text, IsPublic: data.IsPublic}
	post, err := h.Storage.PatchPost(r.Context(), mux.Vars(r)["postId"], requester.Id, patch)
	if err != nil {
		h.writeStorageError(w, r, err, "Post not found.")
		return
	}
	writeJSON(w, http.StatusOK, post)
}
