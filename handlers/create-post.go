package handlers

import (
	"blogging/auth"
	"blogging/storage/models"
	"net/http"
	"unicode/utf8"
)

const maxTitleLength = 200

type PostRequestData struct {
	Title    *string `json:"title"`
	Text     *string `json:"text"`
	IsPublic *bool   `json:"isPublic"`
}

// validate checks the fields that are present; full requires title and text.
func (d PostRequestData) validate(full bool) string {
	if full && (d.Title == nil || d.Text == nil) {
		return "Title and text are required."
	}
	if d.Title != nil && (*d.Title == "" || utf8.RuneCountInString(*d.Title) > maxTitleLength) {
		return "Title must be 1 to 200 characters."
	}
	return ""
}

func (h *HTTPHandler) HandleCreatePost(w http.ResponseWriter, r *http.Request) {
	var data PostRequestData
	if !decodeBody(w, r, &data) {
		return
	}
	if msg := data.validate(true); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	// The author is always the requester, whatever the body says.
	post := &models.Post{
		AuthorId: auth.UserFromContext(r.Context()).Id,
		Title:    *data.Title,
		Text:     *data.Text,
	}
	if data.IsPublic != nil {
		post.IsPublic = *data.IsPublic
	}

	created, err := h.Storage.AddPost(r.Context(), post)
	if err != nil {
		h.writeStorageError(w, r, err, "Post not found.")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}
