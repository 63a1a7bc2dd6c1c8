package in_memory

import (
	"blogging/storage"
	"blogging/storage/models"
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

type InMemoryStorage struct {
	mut sync.RWMutex

	users      map[string]models.User
	userIds    []string
	usernames  map[string]string
	groups     map[string]models.Group
	groupIds   []string
	groupNames map[string]string

	posts         map[string]models.Post
	postIds       []string
	postIdsByUser map[string][]string
}

func CreateInMemoryStorage() storage.Storage {
	return &InMemoryStorage{
		users:         make(map[string]models.User),
		usernames:     make(map[string]string),
		groups:        make(map[string]models.Group),
		groupNames:    make(map[string]string),
		posts:         make(map[string]models.Post),
		postIdsByUser: make(map[string][]string),
	}
}

// pageIds walks ids (oldest first) backwards starting at page and returns at
// most size ids plus the cursor of the following page.
func pageIds(ids []string, page *string, size int) ([]string, *string, error) {
	last := len(ids) - 1
	if page != nil {
		last = -1
		for i := len(ids) - 1; i >= 0; i-- {
			if ids[i] == *page {
				last = i
				break
			}
		}
		if last == -1 {
			return nil, nil, fmt.Errorf("unknown page %s: %w", *page, storage.InvalidPage)
		}
	}
	result := make([]string, 0, size)
	i := last
	for ; i >= 0 && len(result) < size; i-- {
		result = append(result, ids[i])
	}
	if i >= 0 {
		next := ids[i]
		return result, &next, nil
	}
	return result, nil, nil
}

func removeId(ids []string, id string) []string {
	for i := range ids {
		if ids[i] == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

func copyUser(u models.User) *models.User {
	u.Groups = append(make([]string, 0, len(u.Groups)), u.Groups...)
	return &u
}

func (s *InMemoryStorage) Ping(ctx context.Context) error {
	return nil
}

func (s *InMemoryStorage) AddUser(ctx context.Context, user *models.User) (*models.User, error) {
	s.mut.Lock()
	defer s.mut.Unlock()

	if _, found := s.usernames[user.Username]; found {
		return nil, fmt.Errorf("username %s is taken: %w", user.Username, storage.CollisionError)
	}
	if err := s.checkGroups(user.Groups); err != nil {
		return nil, err
	}
	u := *copyUser(*user)
	u.Id = uuid.New().String()
	if u.DateJoined == "" {
		u.DateJoined = models.Now()
	}
	s.users[u.Id] = u
	s.userIds = append(s.userIds, u.Id)
	s.usernames[u.Username] = u.Id
	return copyUser(u), nil
}

func (s *InMemoryStorage) GetUser(ctx context.Context, id string) (*models.User, error) {
	s.mut.RLock()
	defer s.mut.RUnlock()

	u, found := s.users[id]
	if !found {
		return nil, fmt.Errorf("no user with id %s: %w", id, storage.NotFoundError)
	}
	return copyUser(u), nil
}

func (s *InMemoryStorage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mut.RLock()
	defer s.mut.RUnlock()

	id, found := s.usernames[username]
	if !found {
		return nil, fmt.Errorf("no user with username %s: %w", username, storage.NotFoundError)
	}
	return copyUser(s.users[id]), nil
}

func (s *InMemoryStorage) ListUsers(ctx context.Context, page *string, size int) ([]models.User, *string, error) {
	s.mut.RLock()
	defer s.mut.RUnlock()

	ids, next, err := pageIds(s.userIds, page, size)
	if err != nil {
		return nil, nil, err
	}
	users := make([]models.User, 0, len(ids))
	for _, id := range ids {
		users = append(users, *copyUser(s.users[id]))
	}
	return users, next, nil
}

func (s *InMemoryStorage) UpdateUser(ctx context.Context, id string, patch models.UserPatch) (*models.User, error) {
	s.mut.Lock()
	defer s.mut.Unlock()

	u, found := s.users[id]
	if !found {
		return nil, fmt.Errorf("no user with id %s: %w", id, storage.NotFoundError)
	}
	if patch.Groups != nil {
		if err := s.checkGroups(*patch.Groups); err != nil {
			return nil, err
		}
	}
	patch.Apply(&u)
	s.users[id] = u
	return copyUser(u), nil
}

func (s *InMemoryStorage) checkGroups(groupIds []string) error {
	for _, g := range groupIds {
		if _, found := s.groups[g]; !found {
			return fmt.Errorf("no group with id %s: %w", g, storage.NotFoundError)
		}
	}
	return nil
}

func (s *InMemoryStorage) DeleteUser(ctx context.Context, id string) error {
	s.mut.Lock()
	defer s.mut.Unlock()

	u, found := s.users[id]
	if !found {
		return fmt.Errorf("no user with id %s: %w", id, storage.NotFoundError)
	}
	delete(s.users, id)
	delete(s.usernames, u.Username)
	s.userIds = removeId(s.userIds, id)
	return nil
}

func (s *InMemoryStorage) AddGroup(ctx context.Context, name string) (*models.Group, error) {
	s.mut.Lock()
	defer s.mut.Unlock()

	if _, found := s.groupNames[name]; found {
		return nil, fmt.Errorf("group %s already exists: %w", name, storage.CollisionError)
	}
	g := models.Group{Id: uuid.New().String(), Name: name}
	s.groups[g.Id] = g
	s.groupIds = append(s.groupIds, g.Id)
	s.groupNames[name] = g.Id
	return &g, nil
}

func (s *InMemoryStorage) GetGroup(ctx context.Context, id string) (*models.Group, error) {
	s.mut.RLock()
	defer s.mut.RUnlock()

	g, found := s.groups[id]
	if !found {
		return nil, fmt.Errorf("no group with id %s: %w", id, storage.NotFoundError)
	}
	return &g, nil
}

func (s *InMemoryStorage) ListGroups(ctx context.Context, page *string, size int) ([]models.Group, *string, error) {
	s.mut.RLock()
	defer s.mut.RUnlock()

	ids, next, err := pageIds(s.groupIds, page, size)
	if err != nil {
		return nil, nil, err
	}
	groups := make([]models.Group, 0, len(ids))
	for _, id := range ids {
		groups = append(groups, s.groups[id])
	}
	return groups, next, nil
}

func (s *InMemoryStorage) UpdateGroup(ctx context.Context, id string, name string) (*models.Group, error) {
	s.mut.Lock()
	defer s.mut.Unlock()

	g, found := s.groups[id]
	if !found {
		return nil, fmt.Errorf("no group with id %s: %w", id, storage.NotFoundError)
	}
	if owner, taken := s.groupNames[name]; taken && owner != id {
		return nil, fmt.Errorf("group %s already exists: %w", name, storage.CollisionError)
	}
	delete(s.groupNames, g.Name)
	g.Name = name
	s.groups[id] = g
	s.groupNames[name] = id
	return &g, nil
}

func (s *InMemoryStorage) DeleteGroup(ctx context.Context, id string) error {
	s.mut.Lock()
	defer s.mut.Unlock()

	g, found := s.groups[id]
	if !found {
		return fmt.Errorf("no group with id %s: %w", id, storage.NotFoundError)
	}
	delete(s.groups, id)
	delete(s.groupNames, g.Name)
	s.groupIds = removeId(s.groupIds, id)
	for userId, u := range s.users {
		u.Groups = removeId(u.Groups, id)
		s.users[userId] = u
	}
	return nil
}

func (s *InMemoryStorage) AddPost(ctx context.Context, post *models.Post) (*models.Post, error) {
	s.mut.Lock()
	defer s.mut.Unlock()

	now := models.Now()
	p := *post
	p.Id = uuid.New().String()
	p.CreatedAt = now
	p.LastModifiedAt = now
	s.posts[p.Id] = p
	s.postIds = append(s.postIds, p.Id)
	s.postIdsByUser[p.AuthorId] = append(s.postIdsByUser[p.AuthorId], p.Id)
	return &p, nil
}

func (s *InMemoryStorage) GetPost(ctx context.Context, id string) (*models.Post, error) {
	s.mut.RLock()
	defer s.mut.RUnlock()

	p, found := s.posts[id]
	if !found {
		return nil, fmt.Errorf("no post with id %s: %w", id, storage.NotFoundError)
	}
	return &p, nil
}

func (s *InMemoryStorage) GetPostByAuthor(ctx context.Context, id string, authorId string) (*models.Post, error) {
	s.mut.RLock()
	defer s.mut.RUnlock()

	p, found := s.posts[id]
	if !found || p.AuthorId != authorId {
		return nil, fmt.Errorf("no post with id %s for author %s: %w", id, authorId, storage.NotFoundError)
	}
	return &p, nil
}

func (s *InMemoryStorage) postsByIds(ids []string) []models.Post {
	posts := make([]models.Post, 0, len(ids))
	for _, id := range ids {
		posts = append(posts, s.posts[id])
	}
	return posts
}

func (s *InMemoryStorage) GetPostsByAuthor(ctx context.Context, authorId string, page *string, size int) ([]models.Post, *string, error) {
	s.mut.RLock()
	defer s.mut.RUnlock()

	ids, next, err := pageIds(s.postIdsByUser[authorId], page, size)
	if err != nil {
		return nil, nil, err
	}
	return s.postsByIds(ids), next, nil
}

func (s *InMemoryStorage) GetPublicPost(ctx context.Context, id string) (*models.Post, error) {
	s.mut.RLock()
	defer s.mut.RUnlock()

	p, found := s.posts[id]
	if !found || !p.IsPublic {
		return nil, fmt.Errorf("no public post with id %s: %w", id, storage.NotFoundError)
	}
	return &p, nil
}

func (s *InMemoryStorage) GetPublicPosts(ctx context.Context, page *string, size int) ([]models.Post, *string, error) {
	s.mut.RLock()
	defer s.mut.RUnlock()

	public := make([]string, 0, len(s.postIds))
	for _, id := range s.postIds {
		if s.posts[id].IsPublic {
			public = append(public, id)
		}
	}
	ids, next, err := pageIds(public, page, size)
	if err != nil {
		return nil, nil, err
	}
	return s.postsByIds(ids), next, nil
}

func (s *InMemoryStorage) PatchPost(ctx context.Context, id string, authorId string, patch models.PostPatch) (*models.Post, error) {
	s.mut.Lock()
	defer s.mut.Unlock()

	p, found := s.posts[id]
	if !found || p.AuthorId != authorId {
		return nil, fmt.Errorf("no post with id %s for author %s: %w", id, authorId, storage.NotFoundError)
	}
	patch.Apply(&p, models.Now())
	s.posts[id] = p
	return &p, nil
}

func (s *InMemoryStorage) DeletePost(ctx context.Context, id string, authorId string) error {
	s.mut.Lock()
	defer s.mut.Unlock()

	p, found := s.posts[id]
	if !found || p.AuthorId != authorId {
		return fmt.Errorf("no post with id %s for author %s: %w", id, authorId, storage.NotFoundError)
	}
	delete(s.posts, id)
	s.postIds = removeId(s.postIds, id)
	s.postIdsByUser[authorId] = removeId(s.postIdsByUser[authorId], id)
	return nil
}

func (s *InMemoryStorage) DeletePostsByAuthor(ctx context.Context, authorId string) ([]string, error) {
	s.mut.Lock()
	defer s.mut.Unlock()

	ids := s.postIdsByUser[authorId]
	for _, id := range ids {
		delete(s.posts, id)
		s.postIds = removeId(s.postIds, id)
	}
	delete(s.postIdsByUser, authorId)
	return append(make([]string, 0, len(ids)), ids...), nil
}
