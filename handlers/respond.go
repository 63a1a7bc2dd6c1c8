package handlers

import (
	"blogging/storage"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
)

type ErrorResponse struct {
	Detail string `json:"detail"`
}

// ListResponse is the envelope of every paginated listing.
type ListResponse[T any] struct {
	Results  []T     `json:"results"`
	NextPage *string `json:"nextPage,omitempty"`
}

func newListResponse[T any](results []T, next *string) ListResponse[T] {
	if results == nil {
		results = make([]T, 0)
	}
	return ListResponse[T]{Results: results, NextPage: next}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, ErrorResponse{Detail: detail})
}

// writeStorageError maps storage sentinels onto statuses. notFound is the
// detail reported for a missing resource.
func (h *HTTPHandler) writeStorageError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	switch {
	case errors.Is(err, storage.NotFoundError):
		h.Logger.Debug(r.Context(), "not found", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusNotFound, notFound)
	case errors.Is(err, storage.CollisionError):
		h.Logger.Info(r.Context(), "collision", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusBadRequest, "Resource already exists.")
	case errors.Is(err, storage.InvalidPage):
		writeError(w, http.StatusBadRequest, "Invalid page.")
	case errors.Is(err, storage.Forbidden):
		writeError(w, http.StatusForbidden, "You do not have permission to perform this action.")
	case errors.Is(err, storage.ClientError):
		h.Logger.Info(r.Context(), "client error", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request.")
	default:
		h.Logger.Error(r.Context(), "internal error", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, INTERNAL_ERROR_MESSAGE)
	}
}

// writeBodyTooLarge answers 413 when err comes from an oversized body.
func writeBodyTooLarge(w http.ResponseWriter, err error) bool {
	var tooLarge *http.MaxBytesError
	if !errors.As(err, &tooLarge) {
		return false
	}
	writeError(w, http.StatusRequestEntityTooLarge, "Request body too large.")
	return true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if writeBodyTooLarge(w, err) {
			return false
		}
		writeError(w, http.StatusBadRequest, "Malformed JSON: "+err.Error())
		return false
	}
	return true
}

// parsePage reads the page cursor and size query parameters.
func parsePage(w http.ResponseWriter, r *http.Request) (*string, int, bool) {
	var page *string
	if cgiPage, found := r.URL.Query()["page"]; found {
		page = &cgiPage[0]
	}

	size := storage.DefaultPageSize
	if cgiSize, found := r.URL.Query()["size"]; found {
		var err error
		size, err = strconv.Atoi(cgiSize[0])
		if err != nil || !storage.ValidPageSize(size) {
			writeError(w, http.StatusBadRequest, "Invalid size.")
			return nil, 0, false
		}
	}
	return page, size, true
}
