// Package tasks runs background work that follows user deletion, either
// inline or through a machinery worker.
package tasks

import (
	"blogging/logging"
	"blogging/storage"
	"context"
	"fmt"
)

const PurgeUserPostsTask = "purgeUserPosts"

type Dispatcher interface {
	// PurgeUserPosts schedules removal of every post authored by userId.
	PurgeUserPosts(ctx context.Context, userId string) error
}

// PurgeUserPosts deletes the user's posts and reports how many were removed.
func PurgeUserPosts(ctx context.Context, s storage.PostStorage, userId string) (int, error) {
	ids, err := s.DeletePostsByAuthor(ctx, userId)
	if err != nil {
		return 0, fmt.Errorf("purge posts of %s: %w", userId, err)
	}
	return len(ids), nil
}

// Inline runs tasks synchronously in the calling goroutine.
type Inline struct {
	Storage storage.PostStorage
	Logger  logging.Logger
}

func NewInline(s storage.PostStorage, logger logging.Logger) *Inline {
	return &Inline{Storage: s, Logger: logger}
}

func (d *Inline) PurgeUserPosts(ctx context.Context, userId string) error {
	n, err := PurgeUserPosts(ctx, d.Storage, userId)
	if err != nil {
		return err
	}
	d.Logger.Info(ctx, "purged user posts", "userId", userId, "count", n)
	return nil
}
