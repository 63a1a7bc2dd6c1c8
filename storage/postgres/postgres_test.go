package postgres

import (
	"blogging/storage"
	"blogging/storage/models"
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStorageWithMock(t *testing.T) (*PostgresStorage, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresStorage(db), mock
}

func q(s string) string {
	return regexp.QuoteMeta(s)
}

var postRowColumns = []string{"id", "author_id", "title", "text", "is_public", "created_at", "last_modified_at"}

func TestAddPost(t *testing.T) {
	s, mock := newStorageWithMock(t)

	mock.ExpectExec(q("INSERT INTO posts (id, author_id, title, text, is_public, created_at, last_modified_at)")).
		WithArgs(sqlmock.AnyArg(), "u1", "title", "text", true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	post, err := s.AddPost(context.Background(), &models.Post{AuthorId: "u1", Title: "title", Text: "text", IsPublic: true})
	require.NoError(t, err)
	assert.NotEmpty(t, post.Id)
	assert.Equal(t, "u1", post.AuthorId)
	assert.Equal(t, post.CreatedAt, post.LastModifiedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddPost_DBError(t *testing.T) {
	s, mock := newStorageWithMock(t)

	mock.ExpectExec(q("INSERT INTO posts")).WillReturnError(errors.New("db down"))

	_, err := s.AddPost(context.Background(), &models.Post{AuthorId: "u1", Title: "t", Text: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.InternalError)
	assert.Contains(t, err.Error(), "db down")
}

func TestGetPostByAuthor_NotFound(t *testing.T) {
	s, mock := newStorageWithMock(t)

	mock.ExpectQuery(q("FROM posts WHERE id = $1 AND author_id = $2")).
		WithArgs("p1", "u2").
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetPostByAuthor(context.Background(), "p1", "u2")
	assert.ErrorIs(t, err, storage.NotFoundError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPublicPost(t *testing.T) {
	s, mock := newStorageWithMock(t)

	mock.ExpectQuery(q("FROM posts WHERE id = $1 AND is_public")).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows(postRowColumns).AddRow("p1", "u1", "t", "x", true, "c", "m"))

	post, err := s.GetPublicPost(context.Background(), "p1")
	require.NoError(t, err)
	assert.True(t, post.IsPublic)
	assert.Equal(t, "u1", post.AuthorId)
}

func TestGetPostsByAuthor_Paged(t *testing.T) {
	s, mock := newStorageWithMock(t)

	mock.ExpectQuery(q("SELECT seq FROM posts WHERE author_id = $1 AND id = $2")).
		WithArgs("u1", "p3").
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(int64(3)))
	mock.ExpectQuery(q("FROM posts WHERE author_id = $1 AND seq <= $2 ORDER BY seq DESC LIMIT $3")).
		WithArgs("u1", int64(3), 3).
		WillReturnRows(sqlmock.NewRows(postRowColumns).
			AddRow("p3", "u1", "t3", "x", false, "c", "m").
			AddRow("p2", "u1", "t2", "x", false, "c", "m").
			AddRow("p1", "u1", "t1", "x", true, "c", "m"))

	page := "p3"
	posts, next, err := s.GetPostsByAuthor(context.Background(), "u1", &page, 2)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "p3", posts[0].Id)
	assert.Equal(t, "p2", posts[1].Id)
	require.NotNil(t, next)
	assert.Equal(t, "p1", *next)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPublicPosts_LastPage(t *testing.T) {
	s, mock := newStorageWithMock(t)

	mock.ExpectQuery(q("FROM posts WHERE is_public ORDER BY seq DESC LIMIT $1")).
		WithArgs(11).
		WillReturnRows(sqlmock.NewRows(postRowColumns).AddRow("p1", "u1", "t1", "x", true, "c", "m"))

	posts, next, err := s.GetPublicPosts(context.Background(), nil, 10)
	require.NoError(t, err)
	assert.Len(t, posts, 1)
	assert.Nil(t, next)
}

func TestGetPostsByAuthor_UnknownPage(t *testing.T) {
	s, mock := newStorageWithMock(t)

	mock.ExpectQuery(q("SELECT seq FROM posts WHERE author_id = $1 AND id = $2")).
		WithArgs("u1", "nope").
		WillReturnError(sql.ErrNoRows)

	page := "nope"
	_, _, err := s.GetPostsByAuthor(context.Background(), "u1", &page, 10)
	assert.ErrorIs(t, err, storage.InvalidPage)
	assert.ErrorIs(t, err, storage.ClientError)
}

func TestPatchPost(t *testing.T) {
	s, mock := newStorageWithMock(t)

	title := "new"
	mock.ExpectQuery(q("UPDATE posts SET title = COALESCE($3, title)")).
		WithArgs("p1", "u1", "new", nil, nil, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(postRowColumns).AddRow("p1", "u1", "new", "x", false, "c", "m2"))

	post, err := s.PatchPost(context.Background(), "p1", "u1", models.PostPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "new", post.Title)
	assert.Equal(t, "m2", post.LastModifiedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPatchPost_NotOwner(t *testing.T) {
	s, mock := newStorageWithMock(t)

	mock.ExpectQuery(q("UPDATE posts SET")).WillReturnError(sql.ErrNoRows)

	title := "new"
	_, err := s.PatchPost(context.Background(), "p1", "u2", models.PostPatch{Title: &title})
	assert.ErrorIs(t, err, storage.NotFoundError)
}

func TestDeletePost_NotFound(t *testing.T) {
	s, mock := newStorageWithMock(t)

	mock.ExpectExec(q("DELETE FROM posts WHERE id = $1 AND author_id = $2")).
		WithArgs("p1", "u2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.DeletePost(context.Background(), "p1", "u2")
	assert.ErrorIs(t, err, storage.NotFoundError)
}

func TestDeletePostsByAuthor(t *testing.T) {
	s, mock := newStorageWithMock(t)

	mock.ExpectQuery(q("DELETE FROM posts WHERE author_id = $1 RETURNING id")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("p1").AddRow("p2"))

	ids, err := s.DeletePostsByAuthor(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, ids)
}

func TestAddUser_Collision(t *testing.T) {
	s, mock := newStorageWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(q("INSERT INTO users")).
		WithArgs(sqlmock.AnyArg(), "alice", "a@example.com", "hash", sqlmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	_, err := s.AddUser(context.Background(), &models.User{Username: "alice", Email: "a@example.com", PasswordHash: "hash"})
	assert.ErrorIs(t, err, storage.CollisionError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddUser_UnknownGroup(t *testing.T) {
	s, mock := newStorageWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(q("INSERT INTO users")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(q("DELETE FROM group_members WHERE user_id = $1")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(q("INSERT INTO group_members")).
		WithArgs(sqlmock.AnyArg(), "g-missing").
		WillReturnError(&pgconn.PgError{Code: "23503"})
	mock.ExpectRollback()

	_, err := s.AddUser(context.Background(), &models.User{Username: "bob", PasswordHash: "h", Groups: []string{"g-missing"}})
	assert.ErrorIs(t, err, storage.NotFoundError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateUser_ReplacesGroups(t *testing.T) {
	s, mock := newStorageWithMock(t)

	email := "new@example.com"
	groups := []string{"g1", "g1"}

	mock.ExpectBegin()
	mock.ExpectExec(q("UPDATE users SET email = COALESCE($2, email)")).
		WithArgs("u1", "new@example.com", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("DELETE FROM group_members WHERE user_id = $1")).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(q("INSERT INTO group_members (user_id, group_id)")).
		WithArgs("u1", "g1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(q("FROM users WHERE id = $1")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "password_hash", "date_joined"}).
			AddRow("u1", "alice", "new@example.com", "hash", "d"))
	mock.ExpectQuery(q("SELECT group_id FROM group_members WHERE user_id = $1")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"group_id"}).AddRow("g1"))

	user, err := s.UpdateUser(context.Background(), "u1", models.UserPatch{Email: &email, Groups: &groups})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", user.Email)
	assert.Equal(t, []string{"g1"}, user.Groups)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateUser_NotFound(t *testing.T) {
	s, mock := newStorageWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(q("UPDATE users SET")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := s.UpdateUser(context.Background(), "ghost", models.UserPatch{})
	assert.ErrorIs(t, err, storage.NotFoundError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByUsername_WithoutGroups(t *testing.T) {
	s, mock := newStorageWithMock(t)

	mock.ExpectQuery(q("FROM users WHERE username = $1")).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email", "password_hash", "date_joined"}).
			AddRow("u1", "alice", "", "hash", "d"))
	mock.ExpectQuery(q("SELECT group_id FROM group_members")).
		WillReturnRows(sqlmock.NewRows([]string{"group_id"}))

	user, err := s.GetUserByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.NotNil(t, user.Groups)
	assert.Empty(t, user.Groups)
}

func TestGroups(t *testing.T) {
	s, mock := newStorageWithMock(t)

	mock.ExpectExec(q("INSERT INTO blog_groups (id, name)")).
		WithArgs(sqlmock.AnyArg(), "editors").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(q("UPDATE blog_groups SET name = $2 WHERE id = $1")).
		WithArgs("g1", "writers").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow("g1", "writers"))
	mock.ExpectExec(q("DELETE FROM blog_groups WHERE id = $1")).
		WithArgs("g1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	group, err := s.AddGroup(context.Background(), "editors")
	require.NoError(t, err)
	assert.Equal(t, "editors", group.Name)

	group, err = s.UpdateGroup(context.Background(), "g1", "writers")
	require.NoError(t, err)
	assert.Equal(t, "writers", group.Name)

	err = s.DeleteGroup(context.Background(), "g1")
	assert.ErrorIs(t, err, storage.NotFoundError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	orig := gooseUpContext
	defer func() { gooseUpContext = orig }()

	called := false
	gooseUpContext = func(ctx context.Context, got *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		called = true
		assert.Same(t, db, got)
		assert.Equal(t, ".", dir)
		return nil
	}
	require.NoError(t, RunMigrations(context.Background(), db))
	assert.True(t, called)

	gooseUpContext = func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	assert.EqualError(t, RunMigrations(context.Background(), db), "boom")
}

func TestPing(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	s := NewPostgresStorage(db)

	mock.ExpectPing()
	assert.NoError(t, s.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("down"))
	assert.ErrorIs(t, s.Ping(context.Background()), storage.InternalError)
}

func TestAddUser_BeginFails(t *testing.T) {
	s, mock := newStorageWithMock(t)

	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	_, err := s.AddUser(context.Background(), &models.User{Username: "alice", PasswordHash: "h"})
	assert.ErrorIs(t, err, storage.InternalError)
	assert.ErrorContains(t, err, "failed to begin transaction")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateUser_CommitFails(t *testing.T) {
	s, mock := newStorageWithMock(t)

	email := "new@example.com"
	mock.ExpectBegin()
	mock.ExpectExec(q("UPDATE users SET")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(errors.New("connection reset"))

	_, err := s.UpdateUser(context.Background(), "u1", models.UserPatch{Email: &email})
	assert.ErrorIs(t, err, storage.InternalError)
	assert.ErrorContains(t, err, "failed to commit transaction")
	assert.NoError(t, mock.ExpectationsWereMet())
}
