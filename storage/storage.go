package storage

import (
	"blogging/storage/models"
	"context"
	"errors"
	"fmt"
)

var (
	InternalError  = errors.New("storage internal error")
	ClientError    = errors.New("storage client error")
	CollisionError = fmt.Errorf("%w.collision", ClientError)
	NotFoundError  = fmt.Errorf("%w.not_found", ClientError)
	InvalidPage    = fmt.Errorf("%w.invalid_page", ClientError)
	Forbidden      = errors.New("storage forbidden")
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

type UserStorage interface {
	AddUser(ctx context.Context, user *models.User) (*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	// ListUsers returns users newest first. page is the id of the first user
	// of the requested page; the returned cursor is nil on the last page.
	ListUsers(ctx context.Context, page *string, size int) ([]models.User, *string, error)
	UpdateUser(ctx context.Context, id string, patch models.UserPatch) (*models.User, error)
	DeleteUser(ctx context.Context, id string) error
}

type GroupStorage interface {
	AddGroup(ctx context.Context, name string) (*models.Group, error)
	GetGroup(ctx context.Context, id string) (*models.Group, error)
	ListGroups(ctx context.Context, page *string, size int) ([]models.Group, *string, error)
	UpdateGroup(ctx context.Context, id string, name string) (*models.Group, error)
	// DeleteGroup also drops the group from every user's membership list.
	DeleteGroup(ctx context.Context, id string) error
}

type PostStorage interface {
	AddPost(ctx context.Context, post *models.Post) (*models.Post, error)
	GetPost(ctx context.Context, id string) (*models.Post, error)
	// GetPostByAuthor only finds the post when authorId owns it.
	GetPostByAuthor(ctx context.Context, id string, authorId string) (*models.Post, error)
	GetPostsByAuthor(ctx context.Context, authorId string, page *string, size int) ([]models.Post, *string, error)
	GetPublicPost(ctx context.Context, id string) (*models.Post, error)
	GetPublicPosts(ctx context.Context, page *string, size int) ([]models.Post, *string, error)
	PatchPost(ctx context.Context, id string, authorId string, patch models.PostPatch) (*models.Post, error)
	DeletePost(ctx context.Context, id string, authorId string) error
	// DeletePostsByAuthor removes every post of the author and reports the ids removed.
	DeletePostsByAuthor(ctx context.Context, authorId string) ([]string, error)
}

type Storage interface {
	UserStorage
	GroupStorage
	PostStorage
	Ping(ctx context.Context) error
}

// ValidPageSize reports whether size is an acceptable page size.
func ValidPageSize(size int) bool {
	return size >= 1 && size <= MaxPageSize
}
