package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

const urlColumns = `id, long_url, short_url, title, COALESCE(cardinality(click_dates), 0), click_dates, created_at, updated_at, user_id`

type PostgresURLStorage struct {
	db querier
}

func NewPostgresURLStorage(pool *pgxpool.Pool) *PostgresURLStorage {
	return &PostgresURLStorage{db: pool}
}

func scanURL(row rowScanner) (*ShortenedURL, error) {
	var u ShortenedURL
	err := row.Scan(&u.ID, &u.LongURL, &u.ShortURL, &u.Title, &u.Clicks, &u.ClickDates, &u.CreatedAt, &u.UpdatedAt, &u.UserID)
	if err != nil {
		return nil, err
	}
	if u.ClickDates == nil {
		u.ClickDates = []time.Time{}
	}
	return &u, nil
}

func (s *PostgresURLStorage) Create(ctx context.Context, url *ShortenedURL) error {
	query := `INSERT INTO short_urls (id, long_url, short_url, title, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := s.db.Exec(ctx, query, url.ID, url.LongURL, url.ShortURL, url.Title, url.UserID, url.CreatedAt, url.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert short url: %w", err)
	}
	return nil
}

func (s *PostgresURLStorage) findOne(ctx context.Context, where string, arg any) (*ShortenedURL, error) {
	query := `SELECT ` + urlColumns + ` FROM short_urls WHERE ` + where
	u, err := scanURL(s.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select short url: %w", err)
	}
	return u, nil
}

func (s *PostgresURLStorage) FindByCode(ctx context.Context, code string) (*ShortenedURL, error) {
	return s.findOne(ctx, `short_url = $1`, code)
}

func (s *PostgresURLStorage) FindByID(ctx context.Context, id uuid.UUID) (*ShortenedURL, error) {
	return s.findOne(ctx, `id = $1`, id)
}

func (s *PostgresURLStorage) ListByOwner(ctx context.Context, owner uuid.UUID, filter ListFilter) ([]*ShortenedURL, error) {
	filter = filter.Normalize()

	// OrderBy and OrderDir are whitelisted by Normalize.
	orderExpr := filter.OrderBy
	if orderExpr == OrderByClicks {
		orderExpr = `COALESCE(cardinality(click_dates), 0)`
	}
	query := `SELECT ` + urlColumns + ` FROM short_urls
		WHERE user_id = $1
		  AND ($2::timestamptz IS NULL OR created_at >= $2)
		  AND ($3::timestamptz IS NULL OR created_at <= $3)
		ORDER BY ` + orderExpr + ` ` + filter.OrderDir + `, id
		LIMIT $4`

	rows, err := s.db.Query(ctx, query, owner, filter.DateFrom, filter.DateTo, filter.Limit)
	if err != nil {
		return nil, fmt.Errorf("list short urls: %w", err)
	}
	defer rows.Close()

	urls := make([]*ShortenedURL, 0)
	for rows.Next() {
		u, err := scanURL(rows)
		if err != nil {
			return nil, fmt.Errorf("scan short url: %w", err)
		}
		urls = append(urls, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate short urls: %w", err)
	}
	return urls, nil
}

func (s *PostgresURLStorage) UpdateFields(ctx context.Context, id, owner uuid.UUID, fields URLFields) (*ShortenedURL, error) {
	query := `UPDATE short_urls
		SET short_url = COALESCE($3, short_url),
		    title = COALESCE($4, title),
		    updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING ` + urlColumns
	u, err := scanURL(s.db.QueryRow(ctx, query, id, owner, fields.ShortURL, fields.Title))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("update short url: %w", err)
	}
	return u, nil
}

func (s *PostgresURLStorage) RecordClick(ctx context.Context, code string, at time.Time) error {
	query := `UPDATE short_urls SET click_dates = array_append(click_dates, $2::timestamptz) WHERE short_url = $1`
	tag, err := s.db.Exec(ctx, query, code, at)
	if err != nil {
		return fmt.Errorf("record click: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresURLStorage) Delete(ctx context.Context, id, owner uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM short_urls WHERE id = $1 AND user_id = $2`, id, owner)
	if err != nil {
		return fmt.Errorf("delete short url: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresURLStorage) DeleteByOwner(ctx context.Context, owner uuid.UUID) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM short_urls WHERE user_id = $1`, owner); err != nil {
		return fmt.Errorf("delete owner short urls: %w", err)
	}
	return nil
}
