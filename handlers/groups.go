package handlers

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gorilla/mux"
)

type GroupRequestData struct {
	Name *string `json:"name"`
}

// groupName answers 400 itself when the name is missing or blank.
func groupName(w http.ResponseWriter, r *http.Request) (string, bool) {
	var data GroupRequestData
	if !decodeBody(w, r, &data) {
		return "", false
	}
	if data.Name == nil || strings.TrimSpace(*data.Name) == "" || utf8.RuneCountInString(*data.Name) > 150 {
		writeError(w, http.StatusBadRequest, "Group name must be 1 to 150 characters.")
		return "", false
	}
	return *data.Name, true
}

func (h *HTTPHandler) HandleCreateGroup(w http.ResponseWriter, r *http.Request) {
	name, ok := groupName(w, r)
	if !ok {
		return
	}
	group, err := h.Storage.AddGroup(r.Context(), name)
	if err != nil {
		h.writeStorageError(w, r, err, "Group not found.")
		return
	}
	writeJSON(w, http.StatusCreated, group)
}

func (h *HTTPHandler) HandleGetGroups(w http.ResponseWriter, r *http.Request) {
	page, size, ok := parsePage(w, r)
	if !ok {
		return
	}
	groups, nextPage, err := h.Storage.ListGroups(r.Context(), page, size)
	if err != nil {
		h.writeStorageError(w, r, err, "Group not found.")
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(groups, nextPage))
}

func (h *HTTPHandler) HandleGetGroup(w http.ResponseWriter, r *http.Request) {
	group, err := h.Storage.GetGroup(r.Context(), mux.Vars(r)["groupId"])
	if err != nil {
		h.writeStorageError(w, r, err, "Group not found.")
		return
	}
	writeJSON(w, http.StatusOK, group)
}

// HandleUpdateGroup serves both PUT and PATCH: name is the only field.
func (h *HTTPHandler) HandleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	name, ok := groupName(w, r)
	if !ok {
		return
	}
	group, err := h.Storage.UpdateGroup(r.Context(), mux.Vars(r)["groupId"], name)
	if err != nil {
		h.writeStorageError(w, r, err, "Group not found.")
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (h *HTTPHandler) HandleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	if err := h.Storage.DeleteGroup(r.Context(), mux.Vars(r)["groupId"]); err != nil {
		h.writeStorageError(w, r, err, "Group not found.")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
