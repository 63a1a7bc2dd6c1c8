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

func scanGroup(row interface{ Scan(dest ...any) error }) (models.Group, error) {
	var g models.Group
	err := row.Scan(&g.Id, &g.Name)
	return g, err
}

func (s *PostgresStorage) AddGroup(ctx context.Context, name string) (*models.Group, error) {
	g := models.Group{Id: uuid.New().String(), Name: name}
	_, err := s.db.ExecContext(ctx, `INSERT INTO blog_groups (id, name) VALUES ($1, $2)`, g.Id, g.Name)
	if err != nil {
		return nil, wrap(err, "failed to insert group "+name)
	}
	return &g, nil
}

func (s *PostgresStorage) GetGroup(ctx context.Context, id string) (*models.Group, error) {
	g, err := scanGroup(s.db.QueryRowContext(ctx, `SELECT id, name FROM blog_groups WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("no group with id %s: %w", id, storage.NotFoundError)
		}
		return nil, wrap(err, "failed to select group")
	}
	return &g, nil
}

func (s *PostgresStorage) ListGroups(ctx context.Context, page *string, size int) ([]models.Group, *string, error) {
	rows, err := queryPage(ctx, s.db, pageQuery{table: "blog_groups", columns: "id, name", where: "TRUE"}, page, size)
	if err != nil {
		return nil, nil, err
	}
	return collectPage(rows, size,
		func(r *sql.Rows) (models.Group, error) { return scanGroup(r) },
		func(g models.Group) string { return g.Id })
}

func (s *PostgresStorage) UpdateGroup(ctx context.Context, id string, name string) (*models.Group, error) {
	g, err := scanGroup(s.db.QueryRowContext(ctx, `UPDATE blog_groups SET name = $2 WHERE id = $1 RETURNING id, name`, id, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("no group with id %s: %w", id, storage.NotFoundError)
		}
		return nil, wrap(err, "failed to update group")
	}
	return &g, nil
}

// DeleteGroup relies on ON DELETE CASCADE to drop memberships.
func (s *PostgresStorage) DeleteGroup(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM blog_groups WHERE id = $1`, id)
	if err != nil {
		return wrap(err, "failed to delete group")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrap(err, "rows affected error")
	}
	if n == 0 {
		return fmt.Errorf("no group with id %s: %w", id, storage.NotFoundError)
	}
	return nil
}
