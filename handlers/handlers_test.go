package handlers

import (
	"blogging/api"
	"blogging/auth"
	"blogging/logging"
	"blogging/storage"
	"blogging/storage/in_memory"
	"blogging/storage/models"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("handler-secret")

func newHandler(s storage.Storage) *HTTPHandler {
	return &HTTPHandler{Storage: s, Logger: logging.Discard(), Secret: secret, TokenTTL: time.Minute}
}

func decodeDetail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Detail
}

type brokenStorage struct {
	storage.Storage
}

func (brokenStorage) Ping(context.Context) error {
	return fmt.Errorf("down: %w", storage.InternalError)
}

func (brokenStorage) GetUser(context.Context, string) (*models.User, error) {
	return nil, fmt.Errorf("down: %w", storage.InternalError)
}

func TestHealthCheck(t *testing.T) {
	rec := httptest.NewRecorder()
	newHandler(in_memory.CreateInMemoryStorage()).HealthCheck(rec, httptest.NewRequest("GET", "/maintenance/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	newHandler(brokenStorage{}).HealthCheck(rec, httptest.NewRequest("GET", "/maintenance/ping", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestWriteStorageError(t *testing.T) {
	h := newHandler(in_memory.CreateInMemoryStorage())
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("x: %w", storage.NotFoundError), http.StatusNotFound},
		{fmt.Errorf("x: %w", storage.CollisionError), http.StatusBadRequest},
		{fmt.Errorf("x: %w", storage.InvalidPage), http.StatusBadRequest},
		{fmt.Errorf("x: %w", storage.ClientError), http.StatusBadRequest},
		{fmt.Errorf("x: %w", storage.Forbidden), http.StatusForbidden},
		{fmt.Errorf("x: %w", storage.InternalError), http.StatusInternalServerError},
		{errors.New("unexpected"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		h.writeStorageError(rec, httptest.NewRequest("GET", "/", nil), c.err, "Thing not found.")
		assert.Equal(t, c.status, rec.Code, c.err.Error())
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	}

	rec := httptest.NewRecorder()
	h.writeStorageError(rec, httptest.NewRequest("GET", "/", nil), errors.New("secret db detail"), "")
	assert.Equal(t, INTERNAL_ERROR_MESSAGE, decodeDetail(t, rec))
}

func TestParsePage(t *testing.T) {
	rec := httptest.NewRecorder()
	page, size, ok := parsePage(rec, httptest.NewRequest("GET", "/?page=abc&size=5", nil))
	require.True(t, ok)
	require.NotNil(t, page)
	assert.Equal(t, "abc", *page)
	assert.Equal(t, 5, size)

	page, size, ok = parsePage(rec, httptest.NewRequest("GET", "/", nil))
	require.True(t, ok)
	assert.Nil(t, page)
	assert.Equal(t, storage.DefaultPageSize, size)

	for _, q := range []string{"size=0", "size=101", "size=ten"} {
		rec := httptest.NewRecorder()
		_, _, ok := parsePage(rec, httptest.NewRequest("GET", "/?"+q, nil))
		assert.False(t, ok, q)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestListResponseNeverNull(t *testing.T) {
	data, err := json.Marshal(newListResponse[models.Post](nil, nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"results":[]}`, string(data))
}

// whoami echoes the id of the authenticated requester.
var whoami = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	_, _ = w.Write([]byte(user.Id))
})

func TestAuthMiddleware(t *testing.T) {
	s := in_memory.CreateInMemoryStorage()
	h := newHandler(s)
	user, err := s.AddUser(context.Background(), &models.User{Username: "alice", PasswordHash: "h"})
	require.NoError(t, err)
	token, err := auth.GenerateToken(user.Id, secret, time.Minute)
	require.NoError(t, err)

	serve := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.AuthMiddleware(whoami).ServeHTTP(rec, req)
		return rec
	}

	rec := serve("Bearer " + token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, user.Id, rec.Body.String())

	assert.Equal(t, http.StatusNoContent, serve("").Code)
	assert.Equal(t, http.StatusNoContent, serve("Basic YWxpY2U6cHc=").Code)
	assert.Equal(t, http.StatusNoContent, serve("Bearer garbage").Code)

	require.NoError(t, s.DeleteUser(context.Background(), user.Id))
	assert.Equal(t, http.StatusNoContent, serve("Bearer "+token).Code)
}

func TestAuthMiddleware_StorageFailure(t *testing.T) {
	h := newHandler(brokenStorage{})
	token, err := auth.GenerateToken("u1", secret, time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.AuthMiddleware(whoami).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequireUser(t *testing.T) {
	h := newHandler(in_memory.CreateInMemoryStorage())

	rec := httptest.NewRecorder()
	h.RequireUser(whoami).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))

	req := httptest.NewRequest("GET", "/", nil)
	req = req.WithContext(auth.WithUser(req.Context(), &models.User{Id: "u1"}))
	rec = httptest.NewRecorder()
	h.RequireUser(whoami).ServeHTTP(rec, req)
	assert.Equal(t, "u1", rec.Body.String())
}

func TestAccessLogMiddleware(t *testing.T) {
	var buf strings.Builder
	logger, err := logging.New(&buf, "info")
	require.NoError(t, err)
	h := &HTTPHandler{Logger: logger}

	rec := httptest.NewRecorder()
	h.AccessLogMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})).ServeHTTP(rec, httptest.NewRequest("DELETE", "/api/v1/posts/1", nil))

	assert.Contains(t, buf.String(), `"status":418`)
	assert.Contains(t, buf.String(), `"method":"DELETE"`)
}

func TestOpenAPIValidator(t *testing.T) {
	v, err := NewOpenAPIValidator(context.Background(), api.Spec)
	require.NoError(t, err)

	reached := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		var data PostRequestData
		require.NoError(t, json.NewDecoder(r.Body).Decode(&data))
		w.WriteHeader(http.StatusCreated)
	})

	send := func(body string) *httptest.ResponseRecorder {
		reached = false
		req := httptest.NewRequest("POST", "/api/v1/posts", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		v.Middleware(next).ServeHTTP(rec, req)
		return rec
	}

	rec := send(`{"title":"t","text":"x"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, reached)

	rec = send(`{"text":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, reached)
	assert.NotEmpty(t, decodeDetail(t, rec))

	rec = httptest.NewRecorder()
	v.Middleware(whoami).ServeHTTP(rec, httptest.NewRequest("GET", "/not/documented", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestOpenAPIValidator_BadDocument(t *testing.T) {
	_, err := NewOpenAPIValidator(context.Background(), []byte("openapi: 3.0.3\ninfo: {}\n"))
	assert.Error(t, err)
}

func TestCreateGroup_NameLengthCountsCharacters(t *testing.T) {
	h := newHandler(in_memory.CreateInMemoryStorage())
	create := func(name string) *httptest.ResponseRecorder {
		body, err := json.Marshal(GroupRequestData{Name: &name})
		require.NoError(t, err)
		rec := httptest.NewRecorder()
		h.HandleCreateGroup(rec, httptest.NewRequest("POST", "/api/v1/groups", strings.NewReader(string(body))))
		return rec
	}

	rec := create(strings.Repeat("é", 150))
	require.Equal(t, http.StatusCreated, rec.Code)
	var group models.Group
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&group))
	assert.Equal(t, strings.Repeat("é", 150), group.Name)

	rec = create(strings.Repeat("é", 151))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Group name must be 1 to 150 characters.", decodeDetail(t, rec))
}

func TestBodyLimitMiddleware(t *testing.T) {
	v, err := NewOpenAPIValidator(context.Background(), api.Spec)
	require.NoError(t, err)
	h := newHandler(in_memory.CreateInMemoryStorage())

	huge := `{"name":"` + strings.Repeat("a", MaxBodyBytes) + `"}`
	send := func(handler http.Handler) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/api/v1/groups", strings.NewReader(huge))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		BodyLimitMiddleware(handler).ServeHTTP(rec, req)
		return rec
	}

	rec := send(v.Middleware(http.HandlerFunc(h.HandleCreateGroup)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "Request body too large.", decodeDetail(t, rec))

	rec = send(http.HandlerFunc(h.HandleCreateGroup))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
