package persistent

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (s *MongoStorage) ensureIndexes(ctx context.Context) error {
	if err := ensureUsersIndexes(ctx, s.users); err != nil {
		return err
	}
	if err := ensureGroupsIndexes(ctx, s.groups); err != nil {
		return err
	}
	return ensurePostsIndexes(ctx, s.posts)
}

func createIndexes(ctx context.Context, coll *mongo.Collection, indexModels []mongo.IndexModel) error {
	opts := options.CreateIndexes().SetMaxTime(10 * time.Second)

	_, err := coll.Indexes().CreateMany(ctx, indexModels, opts)
	if err != nil {
		return fmt.Errorf("%s: failed to ensure indexes %w", coll.Name(), err)
	}
	return nil
}

func ensureUsersIndexes(ctx context.Context, users *mongo.Collection) error {
	return createIndexes(ctx, users, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "groups", Value: 1}},
		},
	})
}

func ensureGroupsIndexes(ctx context.Context, groups *mongo.Collection) error {
	return createIndexes(ctx, groups, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
}

func ensurePostsIndexes(ctx context.Context, posts *mongo.Collection) error {
	return createIndexes(ctx, posts, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "authorId", Value: 1},
				{Key: "_id", Value: 1},
			},
		},
		{
			Keys: bson.D{
				{Key: "isPublic", Value: 1},
				{Key: "_id", Value: 1},
			},
		},
	})
}
