// Package postgres implements storage.Storage on PostgreSQL through the pgx
// database/sql driver, with goose-managed schema migrations.
package postgres

import (
	"blogging/storage"
	"blogging/storage/postgres/migrations"
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(db *sql.DB) *PostgresStorage {
	return &PostgresStorage{db: db}
}

// CreatePostgresStorage opens dsn with the pgx driver and migrates the schema.
func CreatePostgresStorage(ctx context.Context, dsn string) (*PostgresStorage, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}
	return NewPostgresStorage(db), nil
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

func (s *PostgresStorage) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %s %w", err.Error(), storage.InternalError)
	}
	return nil
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// wrap converts a driver error into a storage error.
func wrap(err error, what string) error {
	switch pgErrorCode(err) {
	case uniqueViolation:
		return fmt.Errorf("%s: %s %w", what, err.Error(), storage.CollisionError)
	case foreignKeyViolation:
		return fmt.Errorf("%s: %s %w", what, err.Error(), storage.NotFoundError)
	}
	return fmt.Errorf("%s: db error: %s %w", what, err.Error(), storage.InternalError)
}

type pageQuery struct {
	table   string
	columns string
	// where is a condition over $1..$len(args).
	where string
	args  []any
}

// queryPage selects at most size+1 rows of q ordered by seq descending,
// starting at the row whose id is page.
func queryPage(ctx context.Context, db DBTX, q pageQuery, page *string, size int) (*sql.Rows, error) {
	args := append([]any{}, q.args...)
	where := q.where
	if page != nil {
		cursorArgs := append(append([]any{}, q.args...), *page)
		cursorQuery := fmt.Sprintf("SELECT seq FROM %s WHERE %s AND id = $%d", q.table, q.where, len(cursorArgs))
		var seq int64
		err := db.QueryRowContext(ctx, cursorQuery, cursorArgs...).Scan(&seq)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("page %s does not exist: %w", *page, storage.InvalidPage)
			}
			return nil, wrap(err, "failed to resolve page")
		}
		args = append(args, seq)
		where = fmt.Sprintf("%s AND seq <= $%d", where, len(args))
	}
	args = append(args, size+1)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY seq DESC LIMIT $%d", q.columns, q.table, where, len(args))
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap(err, "failed to select "+q.table)
	}
	return rows, nil
}

// collectPage scans rows and splits off the extra row that marks a next page.
func collectPage[T any](rows *sql.Rows, size int, scan func(*sql.Rows) (T, error), id func(T) string) ([]T, *string, error) {
	defer rows.Close()

	items := make([]T, 0, size)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, nil, wrap(err, "scan error")
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, wrap(err, "rows error")
	}
	if len(items) > size {
		next := id(items[size])
		return items[:size], &next, nil
	}
	return items, nil, nil
}
