package handlers

import (
	"blogging/auth"
	"blogging/storage"
	"errors"
	"net/http"
	"strings"
	"time"
)

const bearerPrefix = "Bearer "

// AuthMiddleware resolves a bearer token to its stored user and puts the user
// into the request context. Requests without valid credentials continue anonymously.
func (h *HTTPHandler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			next.ServeHTTP(w, r)
			return
		}

		userId, err := auth.GetUserIDFromToken(strings.TrimPrefix(header, bearerPrefix), h.Secret)
		if err != nil {
			h.Logger.Debug(r.Context(), "rejected token", "error", err)
			next.ServeHTTP(w, r)
			return
		}
		user, err := h.Storage.GetUser(r.Context(), userId)
		if err != nil {
			if !errors.Is(err, storage.NotFoundError) {
				h.writeStorageError(w, r, err, "")
				return
			}
			h.Logger.Debug(r.Context(), "token of deleted user", "userId", userId)
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), user)))
	})
}

// RequireUser answers 401 unless AuthMiddleware attached a user.
func (h *HTTPHandler) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.UserFromContext(r.Context()) == nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
			writeError(w, http.StatusUnauthorized, "Authentication credentials were not provided or are invalid.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// AccessLogMiddleware logs every request once it has been served.
func (h *HTTPHandler) AccessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.Logger.Info(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start).String(),
			"remote", r.RemoteAddr)
	})
}

// MaxBodyBytes caps every request body.
const MaxBodyBytes = 1 << 20

func BodyLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}
