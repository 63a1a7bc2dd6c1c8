package handlers

import (
	"blogging/auth"
	"net/http"

	"github.com/gorilla/mux"
)

func (h *HTTPHandler) HandleGetPost(w http.ResponseWriter, r *http.Request) {
	requester := auth.UserFromContext(r.Context())
	post, err := h.Storage.GetPostByAuthor(r.Context(), mux.Vars(r)["postId"], requester.Id)
	if err != nil {
		h.writeStorageError(w, r, err, "Post not found.")
		return
	}
	writeJSON(w, http.StatusOK, post)
}
