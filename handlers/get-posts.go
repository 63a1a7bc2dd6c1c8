package handlers

import (
	"blogging/auth"
	"net/http"
)

// HandleGetPosts lists the requester's own posts.
func (h *HTTPHandler) HandleGetPosts(w http.ResponseWriter, r *http.Request) {
	page, size, ok := parsePage(w, r)
	if !ok {
		return
	}
	requester := auth.UserFromContext(r.Context())
	posts, nextPage, err := h.Storage.GetPostsByAuthor(r.Context(), requester.Id, page, size)
	if err != nil {
		h.writeStorageError(w, r, err, "Post not found.")
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(posts, nextPage))
}
