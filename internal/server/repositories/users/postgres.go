package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/vidtube/internal/common"
	"github.com/dmitrijs2005/vidtube/internal/dbx"
	"github.com/dmitrijs2005/vidtube/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation      = "23505"
	pgInvalidTextRepresent = "22P02"
)

type PostgresRepository struct {
	db dbx.DB
}

func NewPostgresRepository(db dbx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindOne(ctx context.Context, lookup Lookup) (*models.User, error) {
	if lookup.empty() {
		return nil, common.ErrorNotFound
	}

	query :=
		`SELECT id, username, email, full_name, avatar, cover_image, password_hash, refresh_token, created_at, updated_at
		 FROM users
		 WHERE username = $1 OR email = $2
		 LIMIT 1`

	user := &models.User{}
	var refreshToken sql.NullString
	err := r.db.QueryRowContext(ctx, query, lookup.Username, lookup.Email).Scan(
		&user.ID, &user.Username, &user.Email, &user.FullName, &user.Avatar, &user.CoverImage,
		&user.PasswordHash, &refreshToken, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}

	user.RefreshToken = nullableString(refreshToken)
	return user, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string, projection Projection) (*models.User, error) {
	if projection == ProjectionPublic {
		query :=
			`SELECT id, username, email, full_name, avatar, cover_image, created_at, updated_at
			 FROM users
			 WHERE id = $1`

		user := &models.User{}
		err := r.db.QueryRowContext(ctx, query, id).Scan(
			&user.ID, &user.Username, &user.Email, &user.FullName, &user.Avatar, &user.CoverImage,
			&user.CreatedAt, &user.UpdatedAt)
		if err != nil {
			return nil, mapError(err)
		}
		return user, nil
	}

	query :=
		`SELECT id, username, email, full_name, avatar, cover_image, password_hash, refresh_token, created_at, updated_at
		 FROM users
		 WHERE id = $1`

	user := &models.User{}
	var refreshToken sql.NullString
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.Username, &user.Email, &user.FullName, &user.Avatar, &user.CoverImage,
		&user.PasswordHash, &refreshToken, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}

	user.RefreshToken = nullableString(refreshToken)
	return user, nil
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (username, email, full_name, avatar, cover_image, password_hash)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		user.Username, user.Email, user.FullName, user.Avatar, user.CoverImage, user.PasswordHash,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}

	return user, nil
}

func (r *PostgresRepository) SetRefreshToken(ctx context.Context, id string, token *string) error {
	query :=
		`UPDATE users SET refresh_token = $2, updated_at = now()
		 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, token)
	if err != nil {
		return mapError(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// SwapRefreshToken locks the row, checks the stored token and replaces it.
func (r *PostgresRepository) SwapRefreshToken(ctx context.Context, id string, expected, next string) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var current sql.NullString
		err := tx.QueryRowContext(ctx,
			`SELECT refresh_token FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&current)
		if err != nil {
			return mapError(err)
		}

		if !current.Valid || current.String != expected {
			return common.ErrorConflict
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE users SET refresh_token = $2, updated_at = now() WHERE id = $1`, id, next)
		if err != nil {
			return mapError(err)
		}
		return nil
	})
}

func mapError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrorNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return common.ErrorConflict
		case pgInvalidTextRepresent:
			// malformed uuid
			return common.ErrorNotFound
		}
	}

	return fmt.Errorf("db error: %w", err)
}

func nullableString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
