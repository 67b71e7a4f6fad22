package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, name, email, password, created_at`

type PostgresUserStorage struct {
	db querier
}

func NewPostgresUserStorage(pool *pgxpool.Pool) *PostgresUserStorage {
	return &PostgresUserStorage{db: pool}
}

func scanUser(row rowScanner) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Password, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresUserStorage) Create(ctx context.Context, user *User) error {
	query := `INSERT INTO users (id, name, email, password, created_at) VALUES ($1, $2, $3, $4, $5)`
	_, err := s.db.Exec(ctx, query, user.ID, user.Name, user.Email, user.Password, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresUserStorage) findOne(ctx context.Context, where string, arg any) (*User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select user: %w", err)
	}
	return u, nil
}

func (s *PostgresUserStorage) FindByEmail(ctx context.Context, email string) (*User, error) {
	return s.findOne(ctx, `email = $1`, email)
}

func (s *PostgresUserStorage) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.findOne(ctx, `id = $1`, id)
}

func (s *PostgresUserStorage) Update(ctx context.Context, id uuid.UUID, fields UserFields) (*User, error) {
	query := `UPDATE users
		SET name = COALESCE($2, name),
		    email = COALESCE($3, email),
		    password = COALESCE($4, password)
		WHERE id = $1
		RETURNING ` + userColumns
	u, err := scanUser(s.db.QueryRow(ctx, query, id, fields.Name, fields.Email, fields.Password))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

// Delete removes the user; short_urls and refresh_tokens cascade via foreign keys.
func (s *PostgresUserStorage) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
