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

const userColumns = "id, username, email, password_hash, date_joined"

func scanUser(row interface{ Scan(dest ...any) error }) (models.User, error) {
	var u models.User
	err := row.Scan(&u.Id, &u.Username, &u.Email, &u.PasswordHash, &u.DateJoined)
	u.Groups = make([]string, 0)
	return u, err
}

func loadGroups(ctx context.Context, db DBTX, user *models.User) error {
	rows, err := db.QueryContext(ctx, `SELECT group_id FROM group_members WHERE user_id = $1 ORDER BY group_id`, user.Id)
	if err != nil {
		return wrap(err, "failed to select user groups")
	}
	defer rows.Close()

	groups := make([]string, 0)
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return wrap(err, "scan error")
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return wrap(err, "rows error")
	}
	user.Groups = groups
	return nil
}

func replaceGroups(ctx context.Context, tx DBTX, userId string, groups []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM group_members WHERE user_id = $1`, userId); err != nil {
		return wrap(err, "failed to clear user groups")
	}
	seen := make(map[string]bool)
	for _, g := range groups {
		if seen[g] {
			continue
		}
		seen[g] = true
		if _, err := tx.ExecContext(ctx, `INSERT INTO group_members (user_id, group_id) VALUES ($1, $2)`, userId, g); err != nil {
			return wrap(err, "failed to add user to group "+g)
		}
	}
	return nil
}

func (s *PostgresStorage) AddUser(ctx context.Context, user *models.User) (*models.User, error) {
	u := *user
	u.Id = uuid.New().String()
	if u.DateJoined == "" {
		u.DateJoined = models.Now()
	}
	u.Groups = append(make([]string, 0, len(user.Groups)), user.Groups...)

	err := s.inTx(ctx, func(tx DBTX) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO users (id, username, email, password_hash, date_joined) VALUES ($1, $2, $3, $4, $5)`,
			u.Id, u.Username, u.Email, u.PasswordHash, u.DateJoined)
		if err != nil {
			return wrap(err, "failed to insert user "+u.Username)
		}
		if len(u.Groups) == 0 {
			return nil
		}
		return replaceGroups(ctx, tx, u.Id, u.Groups)
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStorage) getUser(ctx context.Context, where string, arg string) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where+` = $1`, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("no user with %s %s: %w", where, arg, storage.NotFoundError)
		}
		return nil, wrap(err, "failed to select user")
	}
	if err := loadGroups(ctx, s.db, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStorage) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.getUser(ctx, "id", id)
}

func (s *PostgresStorage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUser(ctx, "username", username)
}

func (s *PostgresStorage) ListUsers(ctx context.Context, page *string, size int) ([]models.User, *string, error) {
	rows, err := queryPage(ctx, s.db, pageQuery{table: "users", columns: userColumns, where: "TRUE"}, page, size)
	if err != nil {
		return nil, nil, err
	}
	users, next, err := collectPage(rows, size,
		func(r *sql.Rows) (models.User, error) { return scanUser(r) },
		func(u models.User) string { return u.Id })
	if err != nil {
		return nil, nil, err
	}
	for i := range users {
		if err := loadGroups(ctx, s.db, &users[i]); err != nil {
			return nil, nil, err
		}
	}
	return users, next, nil
}

func (s *PostgresStorage) UpdateUser(ctx context.Context, id string, patch models.UserPatch) (*models.User, error) {
	err := s.inTx(ctx, func(tx DBTX) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE users SET email = COALESCE($2, email), password_hash = COALESCE($3, password_hash) WHERE id = $1`,
			id, patch.Email, patch.PasswordHash)
		if err != nil {
			return wrap(err, "failed to update user")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return wrap(err, "rows affected error")
		}
		if n == 0 {
			return fmt.Errorf("no user with id %s: %w", id, storage.NotFoundError)
		}
		if patch.Groups == nil {
			return nil
		}
		return replaceGroups(ctx, tx, id, *patch.Groups)
	})
	if err != nil {
		return nil, err
	}
	return s.GetUser(ctx, id)
}

func (s *PostgresStorage) DeleteUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return wrap(err, "failed to delete user")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrap(err, "rows affected error")
	}
	if n == 0 {
		return fmt.Errorf("no user with id %s: %w", id, storage.NotFoundError)
	}
	return nil
}
