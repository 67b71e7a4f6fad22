package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresTokenStorage struct {
	pool *pgxpool.Pool
}

func NewPostgresTokenStorage(pool *pgxpool.Pool) *PostgresTokenStorage {
	return &PostgresTokenStorage{pool: pool}
}

func insertToken(ctx context.Context, db querier, t *Token) error {
	query := `INSERT INTO refresh_tokens (id, token, user_id, expires_at, created_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := db.Exec(ctx, query, t.ID, t.Token, t.UserID, t.ExpiresAt, t.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

func (s *PostgresTokenStorage) Create(ctx context.Context, token *Token) error {
	return insertToken(ctx, s.pool, token)
}

func (s *PostgresTokenStorage) FindByToken(ctx context.Context, token string) (*Token, error) {
	query := `SELECT id, token, user_id, expires_at, created_at FROM refresh_tokens WHERE token = $1`
	var t Token
	err := s.pool.QueryRow(ctx, query, token).Scan(&t.ID, &t.Token, &t.UserID, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select refresh token: %w", err)
	}
	return &t, nil
}

func (s *PostgresTokenStorage) FindByUserID(ctx context.Context, userID uuid.UUID) ([]*Token, error) {
	query := `SELECT id, token, user_id, expires_at, created_at FROM refresh_tokens WHERE user_id = $1 ORDER BY created_at`
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list refresh tokens: %w", err)
	}
	defer rows.Close()

	tokens := make([]*Token, 0)
	for rows.Next() {
		var t Token
		if err := rows.Scan(&t.ID, &t.Token, &t.UserID, &t.ExpiresAt, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan refresh token: %w", err)
		}
		tokens = append(tokens, &t)
	}
	return tokens, rows.Err()
}

func (s *PostgresTokenStorage) Rotate(ctx context.Context, old string, next *Token) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // no-op after commit

	tag, err := tx.Exec(ctx, `DELETE FROM refresh_tokens WHERE token = $1`, old)
	if err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	if err := insertToken(ctx, tx, next); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresTokenStorage) Delete(ctx context.Context, token string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE token = $1`, token); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}

func (s *PostgresTokenStorage) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete user refresh tokens: %w", err)
	}
	return nil
}
