package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// HandleGetPublicPosts lists public posts of every author. No credentials needed.
func (h *HTTPHandler) HandleGetPublicPosts(w http.ResponseWriter, r *http.Request) {
	page, size, ok := parsePage(w, r)
	if !ok {
		return
	}
	posts, nextPage, err := h.Storage.GetPublicPosts(r.Context(), page, size)
	if err != nil {
		h.writeStorageError(w, r, err, "Post not found.")
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(posts, nextPage))
}

func (h *HTTPHandler) HandleGetPublicPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.Storage.GetPublicPost(r.Context(), mux.Vars(r)["postId"])
	if err != nil {
		h.writeStorageError(w, r, err, "Post not found.")
		return
	}
	writeJSON(w, http.StatusOK, post)
}
