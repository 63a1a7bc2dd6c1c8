// Package persistent_cached wraps a persistent storage with a redis
// read-through cache for single posts and users.
package persistent_cached

import (
	"blogging/logging"
	"blogging/storage"
	"blogging/storage/models"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	postPrefix = "post:"
	userPrefix = "user:"
)

type PersistentStorageWithCache struct {
	storage.Storage
	client *redis.Client
	ttl    time.Duration
	logger logging.Logger
}

func CreatePersistentStorageCachedWithRedis(persistentStorage storage.Storage, redisUrl string, ttl time.Duration, logger logging.Logger) (*PersistentStorageWithCache, error) {
	opts := &redis.Options{Addr: redisUrl}
	if strings.Contains(redisUrl, "://") {
		var err error
		if opts, err = redis.ParseURL(redisUrl); err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
	}
	return NewPersistentStorageWithCache(persistentStorage, redis.NewClient(opts), ttl, logger), nil
}

func NewPersistentStorageWithCache(persistentStorage storage.Storage, client *redis.Client, ttl time.Duration, logger logging.Logger) *PersistentStorageWithCache {
	return &PersistentStorageWithCache{
		Storage: persistentStorage,
		client:  client,
		ttl:     ttl,
		logger:  logger.With("component", "cache"),
	}
}

func (s *PersistentStorageWithCache) Close() error {
	return s.client.Close()
}

func saveToCache[T any](ctx context.Context, s *PersistentStorageWithCache, key string, value *T) {
	j, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn(ctx, "failed to encode cache entry", "key", key, "error", err)
		return
	}
	if err := s.client.Set(ctx, key, j, s.ttl).Err(); err != nil {
		s.logger.Warn(ctx, "failed to save to redis", "key", key, "error", err)
	}
}

func getFromCache[T any](ctx context.Context, s *PersistentStorageWithCache, key string) (*T, bool) {
	val, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn(ctx, "failed to get from redis", "key", key, "error", err)
		}
		return nil, false
	}
	var v T
	if err := json.Unmarshal(val, &v); err != nil {
		s.logger.Warn(ctx, "failed to decode cache entry", "key", key, "error", err)
		return nil, false
	}
	return &v, true
}

func (s *PersistentStorageWithCache) removeFromCache(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn(ctx, "failed to remove from redis", "keys", keys, "error", err)
	}
}

// removeMatching drops every key matching pattern.
func (s *PersistentStorageWithCache) removeMatching(ctx context.Context, pattern string) {
	var keys []string
	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		s.logger.Warn(ctx, "failed to scan redis", "pattern", pattern, "error", err)
	}
	s.removeFromCache(ctx, keys...)
}

func (s *PersistentStorageWithCache) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %s %w", err.Error(), storage.InternalError)
	}
	return s.Storage.Ping(ctx)
}

// cachedUser keeps the password hash that models.User hides from JSON.
type cachedUser struct {
	models.User
	PasswordHash string `json:"passwordHash"`
}

func (s *PersistentStorageWithCache) GetUser(ctx context.Context, id string) (*models.User, error) {
	if c, ok := getFromCache[cachedUser](ctx, s, userPrefix+id); ok {
		c.User.PasswordHash = c.PasswordHash
		return &c.User, nil
	}
	user, err := s.Storage.GetUser(ctx, id)
	if err == nil {
		saveToCache(ctx, s, userPrefix+id, &cachedUser{User: *user, PasswordHash: user.PasswordHash})
	}
	return user, err
}

func (s *PersistentStorageWithCache) UpdateUser(ctx context.Context, id string, patch models.UserPatch) (*models.User, error) {
	user, err := s.Storage.UpdateUser(ctx, id, patch)
	s.removeFromCache(ctx, userPrefix+id)
	return user, err
}

func (s *PersistentStorageWithCache) DeleteUser(ctx context.Context, id string) error {
	err := s.Storage.DeleteUser(ctx, id)
	s.removeFromCache(ctx, userPrefix+id)
	return err
}

func (s *PersistentStorageWithCache) DeleteGroup(ctx context.Context, id string) error {
	err := s.Storage.DeleteGroup(ctx, id)
	if err == nil {
		s.removeMatching(ctx, userPrefix+"*")
	}
	return err
}

func (s *PersistentStorageWithCache) getPost(ctx context.Context, id string) (*models.Post, bool) {
	return getFromCache[models.Post](ctx, s, postPrefix+id)
}

func (s *PersistentStorageWithCache) GetPost(ctx context.Context, id string) (*models.Post, error) {
	if p, ok := s.getPost(ctx, id); ok {
		return p, nil
	}
	post, err := s.Storage.GetPost(ctx, id)
	if err == nil {
		saveToCache(ctx, s, postPrefix+id, post)
	}
	return post, err
}

func (s *PersistentStorageWithCache) GetPostByAuthor(ctx context.Context, id string, authorId string) (*models.Post, error) {
	if p, ok := s.getPost(ctx, id); ok {
		if p.AuthorId != authorId {
			return nil, fmt.Errorf("no post with id %s for author %s: %w", id, authorId, storage.NotFoundError)
		}
		return p, nil
	}
	post, err := s.Storage.GetPostByAuthor(ctx, id, authorId)
	if err == nil {
		saveToCache(ctx, s, postPrefix+id, post)
	}
	return post, err
}

func (s *PersistentStorageWithCache) GetPublicPost(ctx context.Context, id string) (*models.Post, error) {
	if p, ok := s.getPost(ctx, id); ok {
		if !p.IsPublic {
			return nil, fmt.Errorf("no public post with id %s: %w", id, storage.NotFoundError)
		}
		return p, nil
	}
	post, err := s.Storage.GetPublicPost(ctx, id)
	if err == nil {
		saveToCache(ctx, s, postPrefix+id, post)
	}
	return post, err
}

func (s *PersistentStorageWithCache) AddPost(ctx context.Context, post *models.Post) (*models.Post, error) {
	p, err := s.Storage.AddPost(ctx, post)
	if err == nil {
		saveToCache(ctx, s, postPrefix+p.Id, p)
	}
	return p, err
}

func (s *PersistentStorageWithCache) PatchPost(ctx context.Context, id string, authorId string, patch models.PostPatch) (*models.Post, error) {
	post, err := s.Storage.PatchPost(ctx, id, authorId, patch)
	if err == nil {
		s.removeFromCache(ctx, postPrefix+id)
	}
	return post, err
}

func (s *PersistentStorageWithCache) DeletePost(ctx context.Context, id string, authorId string) error {
	err := s.Storage.DeletePost(ctx, id, authorId)
	if err == nil {
		s.removeFromCache(ctx, postPrefix+id)
	}
	return err
}

func (s *PersistentStorageWithCache) DeletePostsByAuthor(ctx context.Context, authorId string) ([]string, error) {
	ids, err := s.Storage.DeletePostsByAuthor(ctx, authorId)
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, postPrefix+id)
	}
	s.removeFromCache(ctx, keys...)
	return ids, err
}
