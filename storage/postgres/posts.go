package postgres

import (
	"blogging/storage"
	"blogging/storage/models"
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const postColumns = "id, author_id, title, text, is_public, created_at, last_modified_at"

func scanPost(row interface{ Scan(dest ...any) error }) (models.Post, error) {
	var p models.Post
	err := row.Scan(&p.Id, &p.AuthorId, &p.Title, &p.Text, &p.IsPublic, &p.CreatedAt, &p.LastModifiedAt)
	return p, err
}

func (s *PostgresStorage) AddPost(ctx context.Context, post *models.Post) (*models.Post, error) {
	now := models.Now()
	p := *post
	p.Id = uuid.New().String()
	p.CreatedAt = now
	p.LastModifiedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO posts (id, author_id, title, text, is_public, created_at, last_modified_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.Id, p.AuthorId, p.Title, p.Text, p.IsPublic, p.CreatedAt, p.LastModifiedAt)
	if err != nil {
		return nil, wrap(err, "failed to insert post")
	}
	return &p, nil
}

func (s *PostgresStorage) getPost(ctx context.Context, where string, args ...any) (*models.Post, error) {
	p, err := scanPost(s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE `+where, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("no post matching %v: %w", args, storage.NotFoundError)
		}
		return nil, wrap(err, "failed to select post")
	}
	return &p, nil
}

func (s *PostgresStorage) GetPost(ctx context.Context, id string) (*models.Post, error) {
	return s.getPost(ctx, `id = $1`, id)
}

func (s *PostgresStorage) GetPostByAuthor(ctx context.Context, id string, authorId string) (*models.Post, error) {
	return s.getPost(ctx, `id = $1 AND author_id = $2`, id, authorId)
}

func (s *PostgresStorage) GetPublicPost(ctx context.Context, id string) (*models.Post, error) {
	return s.getPost(ctx, `id = $1 AND is_public`, id)
}

func (s *PostgresStorage) postPage(ctx context.Context, where string, args []any, page *string, size int) ([]models.Post, *string, error) {
	rows, err := queryPage(ctx, s.db, pageQuery{table: "posts", columns: postColumns, where: where, args: args}, page, size)
	if err != nil {
		return nil, nil, err
	}
	return collectPage(rows, size,
		func(r *sql.Rows) (models.Post, error) { return scanPost(r) },
		func(p models.Post) string { return p.Id })
}

func (s *PostgresStorage) GetPostsByAuthor(ctx context.Context, authorId string, page *string, size int) ([]models.Post, *string, error) {
	return s.postPage(ctx, "author_id = $1", []any{authorId}, page, size)
}

func (s *PostgresStorage) GetPublicPosts(ctx context.Context, page *string, size int) ([]models.Post, *string, error) {
	return s.postPage(ctx, "is_public", nil, page, size)
}

func (s *PostgresStorage) PatchPost(ctx context.Context, id string, authorId string, patch models.PostPatch) (*models.Post, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE posts SET title = COALESCE($3, title), text = COALESCE($4, text), is_public = COALESCE($5, is_public), last_modified_at = $6
		 WHERE id = $1 AND author_id = $2
		 RETURNING `+postColumns,
		id, authorId, patch.Title, patch.Text, patch.IsPublic, models.Now())
	p, err := scanPost(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("no post with id %s for author %s: %w", id, authorId, storage.NotFoundError)
		}
		return nil, wrap(err, "failed to update post")
	}
	return &p, nil
}

func (s *PostgresStorage) DeletePost(ctx context.Context, id string, authorId string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1 AND author_id = $2`, id, authorId)
	if err != nil {
		return wrap(err, "failed to delete post")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrap(err, "rows affected error")
	}
	if n == 0 {
		return fmt.Errorf("no post with id %s for author %s: %w", id, authorId, storage.NotFoundError)
	}
	return nil
}

func (s *PostgresStorage) DeletePostsByAuthor(ctx context.Context, authorId string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `DELETE FROM posts WHERE author_id = $1 RETURNING id`, authorId)
	if err != nil {
		return nil, wrap(err, "failed to delete posts by author")
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, wrap(err, "scan error")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(err, "rows error")
	}
	return ids, nil
}
