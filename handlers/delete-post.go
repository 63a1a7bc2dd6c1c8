package handlers

import (
	"blogging/auth"
	"net/http"

	"github.com/gorilla/mux"
)

func (h *HTTPHandler) HandleDeletePost(w http.ResponseWriter, r *http.Request) {
	requester := auth.UserFromContext(r.Context())
	if err := h.Storage.DeletePost(r.Context(), mux.Vars(r)["postId"], requester.Id); err != nil {
		h.writeStorageError(w, r, err, "Post not found.")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
