package models

import (
	"time"
)

type User struct {
	Id           string   `json:"id"`
	Username     string   `json:"username"`
	Email        string   `json:"email"`
	PasswordHash string   `json:"-"`
	Groups       []string `json:"groups"`
	DateJoined   string   `json:"dateJoined"`
}

// UserPatch carries the mutable user fields; nil means "leave as is".
type UserPatch struct {
	Email        *string
	PasswordHash *string
	Groups       *[]string
}

type Group struct {
	Id   string `json:"id"`
	Name string `json:"name"`
}

type Post struct {
	Id             string `json:"id"`
	AuthorId       string `json:"authorId"`
	Title          string `json:"title"`
	Text           string `json:"text"`
	IsPublic       bool   `json:"isPublic"`
	CreatedAt      string `json:"createdAt"`
	LastModifiedAt string `json:"lastModifiedAt"`
}

type PostPatch struct {
	Title    *string
	Text     *string
	IsPublic *bool
}

func (p PostPatch) Empty() bool {
	return p.Title == nil && p.Text == nil && p.IsPublic == nil
}

// Apply copies the set fields of the patch onto post and bumps LastModifiedAt.
func (p PostPatch) Apply(post *Post, now string) {
	if p.Title != nil {
		post.Title = *p.Title
	}
	if p.Text != nil {
		post.Text = *p.Text
	}
	if p.IsPublic != nil {
		post.IsPublic = *p.IsPublic
	}
	post.LastModifiedAt = now
}

func (p UserPatch) Apply(user *User) {
	if p.Email != nil {
		user.Email = *p.Email
	}
	if p.PasswordHash != nil {
		user.PasswordHash = *p.PasswordHash
	}
	if p.Groups != nil {
		user.Groups = append(make([]string, 0, len(*p.Groups)), *p.Groups...)
	}
}

func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
