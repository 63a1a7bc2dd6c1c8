package handlers

import (
	"net/http"
)

// HandleDeleteUser removes the requester's account and schedules removal of their posts.
func (h *HTTPHandler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireSelf(w, r)
	if !ok {
		return
	}
	if err := h.Storage.DeleteUser(r.Context(), user.Id); err != nil {
		h.writeStorageError(w, r, err, "User not found.")
		return
	}
	if err := h.Tasks.PurgeUserPosts(r.Context(), user.Id); err != nil {
		h.Logger.Error(r.Context(), "failed to purge posts of deleted user", "userId", user.Id, "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}
