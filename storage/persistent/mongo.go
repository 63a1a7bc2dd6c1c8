package persistent

import (
	"blogging/storage"
	"blogging/storage/models"
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type document interface {
	objectId() primitive.ObjectID
}

type User struct {
	Id           primitive.ObjectID `bson:"_id,omitempty"`
	Username     string             `bson:"username"`
	Email        string             `bson:"email"`
	PasswordHash string             `bson:"passwordHash"`
	Groups       []string           `bson:"groups"`
	DateJoined   string             `bson:"dateJoined"`
}

func (u User) objectId() primitive.ObjectID { return u.Id }

func (u User) toModel() models.User {
	groups := u.Groups
	if groups == nil {
		groups = make([]string, 0)
	}
	return models.User{
		Id:           u.Id.Hex(),
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Groups:       groups,
		DateJoined:   u.DateJoined,
	}
}

type Group struct {
	Id   primitive.ObjectID `bson:"_id,omitempty"`
	Name string             `bson:"name"`
}

func (g Group) objectId() primitive.ObjectID { return g.Id }

func (g Group) toModel() models.Group {
	return models.Group{Id: g.Id.Hex(), Name: g.Name}
}

type Post struct {
	Id             primitive.ObjectID `bson:"_id,omitempty"`
	AuthorId       string             `bson:"authorId"`
	Title          string             `bson:"title"`
	Text           string             `bson:"text"`
	IsPublic       bool               `bson:"isPublic"`
	CreatedAt      string             `bson:"createdAt"`
	LastModifiedAt string             `bson:"lastModifiedAt"`
}

func (p Post) objectId() primitive.ObjectID { return p.Id }

func (p Post) toModel() models.Post {
	return models.Post{
		Id:             p.Id.Hex(),
		AuthorId:       p.AuthorId,
		Title:          p.Title,
		Text:           p.Text,
		IsPublic:       p.IsPublic,
		CreatedAt:      p.CreatedAt,
		LastModifiedAt: p.LastModifiedAt,
	}
}

type MongoStorage struct {
	client *mongo.Client
	users  *mongo.Collection
	groups *mongo.Collection
	posts  *mongo.Collection
}

func CreateMongoStorage(ctx context.Context, dbUrl, dbName string) (*MongoStorage, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(dbUrl))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	db := client.Database(dbName)
	s := &MongoStorage{
		client: client,
		users:  db.Collection("users"),
		groups: db.Collection("groups"),
		posts:  db.Collection("posts"),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *MongoStorage) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStorage) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongo ping failed: %s %w", err.Error(), storage.InternalError)
	}
	return nil
}

func objectIdOrNotFound(id string, kind string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return oid, fmt.Errorf("failed to convert %s id %s to Mongo object id: %w", kind, id, storage.NotFoundError)
	}
	return oid, nil
}

// findPage returns documents matching filter sorted by _id descending,
// starting at the page cursor, and the cursor of the next page.
func findPage[D document](ctx context.Context, coll *mongo.Collection, filter bson.M, page *string, size int) (docs []D, nextPage *string, err error) {
	if page != nil {
		pageMongoId, err := primitive.ObjectIDFromHex(*page)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to convert provided page to Mongo object id: %s, %w", err.Error(), storage.InvalidPage)
		}
		filter["_id"] = bson.M{"$lte": pageMongoId}
	}

	opts := options.Find()
	opts.SetSort(bson.D{{Key: "_id", Value: -1}})
	opts.SetLimit(int64(size + 1))

	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find %s: %s, %w", coll.Name(), err.Error(), storage.InternalError)
	}
	defer func() {
		if closeErr := cursor.Close(ctx); closeErr != nil && err == nil {
			docs, nextPage = nil, nil
			err = fmt.Errorf("cursor close error: %s, %w", closeErr, storage.InternalError)
		}
	}()

	docs = make([]D, 0, size)
	for cursor.Next(ctx) {
		var next D
		if err = cursor.Decode(&next); err != nil {
			return nil, nil, fmt.Errorf("decode error: %s, %w", err, storage.InternalError)
		}
		if page != nil && len(docs) == 0 && next.objectId().Hex() != *page {
			return nil, nil, fmt.Errorf("page %s does not exist: %w", *page, storage.InvalidPage)
		}
		if len(docs) == size {
			cursorId := next.objectId().Hex()
			return docs, &cursorId, nil
		}
		docs = append(docs, next)
	}
	if err := cursor.Err(); err != nil {
		return nil, nil, fmt.Errorf("cursor error: %s, %w", err, storage.InternalError)
	}
	if page != nil && len(docs) == 0 {
		return nil, nil, fmt.Errorf("page %s does not exist: %w", *page, storage.InvalidPage)
	}
	return docs, nil, nil
}

func (s *MongoStorage) AddUser(ctx context.Context, user *models.User) (*models.User, error) {
	doc := User{
		Username:     user.Username,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Groups:       user.Groups,
		DateJoined:   user.DateJoined,
	}
	if doc.Groups == nil {
		doc.Groups = make([]string, 0)
	}
	if doc.DateJoined == "" {
		doc.DateJoined = models.Now()
	}
	if err := s.ensureGroupsExist(ctx, doc.Groups); err != nil {
		return nil, err
	}
	id, err := s.users.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("username %s is taken: %w", user.Username, storage.CollisionError)
		}
		return nil, fmt.Errorf("failed to insert user: %s %w", err.Error(), storage.InternalError)
	}
	doc.Id = id.InsertedID.(primitive.ObjectID)
	result := doc.toModel()
	return &result, nil
}

func (s *MongoStorage) findUser(ctx context.Context, filter bson.M, what string) (*models.User, error) {
	var doc User
	err := s.users.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("no user with %s: %w", what, storage.NotFoundError)
		}
		return nil, fmt.Errorf("failed to find user: %s %w", err.Error(), storage.InternalError)
	}
	result := doc.toModel()
	return &result, nil
}

func (s *MongoStorage) GetUser(ctx context.Context, id string) (*models.User, error) {
	oid, err := objectIdOrNotFound(id, "user")
	if err != nil {
		return nil, err
	}
	return s.findUser(ctx, bson.M{"_id": oid}, "id "+id)
}

func (s *MongoStorage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"username": username}, "username "+username)
}

func (s *MongoStorage) ListUsers(ctx context.Context, page *string, size int) ([]models.User, *string, error) {
	docs, next, err := findPage[User](ctx, s.users, bson.M{}, page, size)
	if err != nil {
		return nil, nil, err
	}
	users := make([]models.User, 0, len(docs))
	for _, d := range docs {
		users = append(users, d.toModel())
	}
	return users, next, nil
}

func (s *MongoStorage) ensureGroupsExist(ctx context.Context, groupIds []string) error {
	oids := make([]primitive.ObjectID, 0, len(groupIds))
	seen := make(map[primitive.ObjectID]bool)
	for _, id := range groupIds {
		oid, err := objectIdOrNotFound(id, "group")
		if err != nil {
			return err
		}
		if !seen[oid] {
			seen[oid] = true
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return nil
	}
	count, err := s.groups.CountDocuments(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return fmt.Errorf("failed to count groups: %s %w", err.Error(), storage.InternalError)
	}
	if int(count) != len(oids) {
		return fmt.Errorf("some of groups %v do not exist: %w", groupIds, storage.NotFoundError)
	}
	return nil
}

func (s *MongoStorage) UpdateUser(ctx context.Context, id string, patch models.UserPatch) (*models.User, error) {
	oid, err := objectIdOrNotFound(id, "user")
	if err != nil {
		return nil, err
	}
	set := bson.M{}
	if patch.Email != nil {
		set["email"] = *patch.Email
	}
	if patch.PasswordHash != nil {
		set["passwordHash"] = *patch.PasswordHash
	}
	if patch.Groups != nil {
		if err := s.ensureGroupsExist(ctx, *patch.Groups); err != nil {
			return nil, err
		}
		set["groups"] = *patch.Groups
	}
	if len(set) == 0 {
		return s.GetUser(ctx, id)
	}

	after := options.After
	opt := options.FindOneAndUpdateOptions{ReturnDocument: &after}
	var doc User
	err = s.users.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, &opt).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("no user with id %s: %w", id, storage.NotFoundError)
		}
		return nil, fmt.Errorf("failed to update user: %s %w", err.Error(), storage.InternalError)
	}
	result := doc.toModel()
	return &result, nil
}

func (s *MongoStorage) DeleteUser(ctx context.Context, id string) error {
	oid, err := objectIdOrNotFound(id, "user")
	if err != nil {
		return err
	}
	res, err := s.users.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("failed to delete user: %s %w", err.Error(), storage.InternalError)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("no user with id %s: %w", id, storage.NotFoundError)
	}
	return nil
}

func (s *MongoStorage) AddGroup(ctx context.Context, name string) (*models.Group, error) {
	doc := Group{Name: name}
	id, err := s.groups.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("group %s already exists: %w", name, storage.CollisionError)
		}
		return nil, fmt.Errorf("failed to insert group: %s %w", err.Error(), storage.InternalError)
	}
	doc.Id = id.InsertedID.(primitive.ObjectID)
	result := doc.toModel()
	return &result, nil
}

func (s *MongoStorage) GetGroup(ctx context.Context, id string) (*models.Group, error) {
	oid, err := objectIdOrNotFound(id, "group")
	if err != nil {
		return nil, err
	}
	var doc Group
	err = s.groups.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("no group with id %v: %w", id, storage.NotFoundError)
		}
		return nil, fmt.Errorf("failed to find group: %s %w", err.Error(), storage.InternalError)
	}
	result := doc.toModel()
	return &result, nil
}

func (s *MongoStorage) ListGroups(ctx context.Context, page *string, size int) ([]models.Group, *string, error) {
	docs, next, err := findPage[Group](ctx, s.groups, bson.M{}, page, size)
	if err != nil {
		return nil, nil, err
	}
	groups := make([]models.Group, 0, len(docs))
	for _, d := range docs {
		groups = append(groups, d.toModel())
	}
	return groups, next, nil
}

func (s *MongoStorage) UpdateGroup(ctx context.Context, id string, name string) (*models.Group, error) {
	oid, err := objectIdOrNotFound(id, "group")
	if err != nil {
		return nil, err
	}
	after := options.After
	opt := options.FindOneAndUpdateOptions{ReturnDocument: &after}
	var doc Group
	err = s.groups.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"name": name}}, &opt).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("no group with id %v: %w", id, storage.NotFoundError)
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("group %s already exists: %w", name, storage.CollisionError)
		}
		return nil, fmt.Errorf("failed to update group: %s %w", err.Error(), storage.InternalError)
	}
	result := doc.toModel()
	return &result, nil
}

func (s *MongoStorage) DeleteGroup(ctx context.Context, id string) error {
	oid, err := objectIdOrNotFound(id, "group")
	if err != nil {
		return err
	}
	res, err := s.groups.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("failed to delete group: %s %w", err.Error(), storage.InternalError)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("no group with id %v: %w", id, storage.NotFoundError)
	}
	_, err = s.users.UpdateMany(ctx, bson.M{"groups": id}, bson.M{"$pull": bson.M{"groups": id}})
	if err != nil {
		return fmt.Errorf("failed to drop group %s from users: %s %w", id, err.Error(), storage.InternalError)
	}
	return nil
}

func (s *MongoStorage) AddPost(ctx context.Context, post *models.Post) (*models.Post, error) {
	now := models.Now()
	doc := Post{
		AuthorId:       post.AuthorId,
		Title:          post.Title,
		Text:           post.Text,
		IsPublic:       post.IsPublic,
		CreatedAt:      now,
		LastModifiedAt: now,
	}
	id, err := s.posts.InsertOne(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to insert post: %s %w", err.Error(), storage.InternalError)
	}
	doc.Id = id.InsertedID.(primitive.ObjectID)
	result := doc.toModel()
	return &result, nil
}

func (s *MongoStorage) findPost(ctx context.Context, id string, filter bson.M) (*models.Post, error) {
	oid, err := objectIdOrNotFound(id, "post")
	if err != nil {
		return nil, err
	}
	filter["_id"] = oid
	var doc Post
	err = s.posts.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("no document with id %v: %w", id, storage.NotFoundError)
		}
		return nil, fmt.Errorf("failed to find post: %s %w", err.Error(), storage.InternalError)
	}
	result := doc.toModel()
	return &result, nil
}

func (s *MongoStorage) GetPost(ctx context.Context, id string) (*models.Post, error) {
	return s.findPost(ctx, id, bson.M{})
}

func (s *MongoStorage) GetPostByAuthor(ctx context.Context, id string, authorId string) (*models.Post, error) {
	return s.findPost(ctx, id, bson.M{"authorId": authorId})
}

func (s *MongoStorage) GetPublicPost(ctx context.Context, id string) (*models.Post, error) {
	return s.findPost(ctx, id, bson.M{"isPublic": true})
}

func (s *MongoStorage) postPage(ctx context.Context, filter bson.M, page *string, size int) ([]models.Post, *string, error) {
	docs, next, err := findPage[Post](ctx, s.posts, filter, page, size)
	if err != nil {
		return nil, nil, err
	}
	posts := make([]models.Post, 0, len(docs))
	for _, d := range docs {
		posts = append(posts, d.toModel())
	}
	return posts, next, nil
}

func (s *MongoStorage) GetPostsByAuthor(ctx context.Context, authorId string, page *string, size int) ([]models.Post, *string, error) {
	return s.postPage(ctx, bson.M{"authorId": authorId}, page, size)
}

func (s *MongoStorage) GetPublicPosts(ctx context.Context, page *string, size int) ([]models.Post, *string, error) {
	return s.postPage(ctx, bson.M{"isPublic": true}, page, size)
}

func (s *MongoStorage) PatchPost(ctx context.Context, postId string, userId string, patch models.PostPatch) (*models.Post, error) {
	postMongoId, err := objectIdOrNotFound(postId, "post")
	if err != nil {
		return nil, err
	}
	set := bson.M{"lastModifiedAt": models.Now()}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Text != nil {
		set["text"] = *patch.Text
	}
	if patch.IsPublic != nil {
		set["isPublic"] = *patch.IsPublic
	}

	upsert := false
	after := options.After
	opt := options.FindOneAndUpdateOptions{
		ReturnDocument: &after,
		Upsert:         &upsert,
	}
	var result Post
	err = s.posts.FindOneAndUpdate(ctx, bson.M{"_id": postMongoId, "authorId": userId}, bson.M{"$set": set}, &opt).Decode(&result)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("no document with id %v for author %s: %w", postId, userId, storage.NotFoundError)
		}
		return nil, fmt.Errorf("failed to update post: %s %s %s %w", err.Error(), postMongoId, userId, storage.InternalError)
	}
	post := result.toModel()
	return &post, nil
}

func (s *MongoStorage) DeletePost(ctx context.Context, id string, authorId string) error {
	oid, err := objectIdOrNotFound(id, "post")
	if err != nil {
		return err
	}
	res, err := s.posts.DeleteOne(ctx, bson.M{"_id": oid, "authorId": authorId})
	if err != nil {
		return fmt.Errorf("failed to delete post: %s %w", err.Error(), storage.InternalError)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("no document with id %v for author %s: %w", id, authorId, storage.NotFoundError)
	}
	return nil
}

func (s *MongoStorage) DeletePostsByAuthor(ctx context.Context, authorId string) ([]string, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cursor, err := s.posts.Find(ctx, bson.M{"authorId": authorId}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find posts by author: %s, %w", err.Error(), storage.InternalError)
	}
	var docs []Post
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode error: %s, %w", err, storage.InternalError)
	}
	ids := make([]string, 0, len(docs))
	oids := make([]primitive.ObjectID, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.Id.Hex())
		oids = append(oids, d.Id)
	}
	if len(oids) == 0 {
		return ids, nil
	}
	if _, err := s.posts.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": oids}}); err != nil {
		return nil, fmt.Errorf("failed to delete posts by author: %s, %w", err.Error(), storage.InternalError)
	}
	return ids, nil
}
