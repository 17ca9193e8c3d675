package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresLinkStorage struct {
	pool *pgxpool.Pool
}

func NewPostgresLinkStorage(pool *pgxpool.Pool) *PostgresLinkStorage {
	return &PostgresLinkStorage{pool: pool}
}

const schema = `
CREATE TABLE IF NOT EXISTS short_links (
	code       TEXT PRIMARY KEY,
	target     TEXT NOT NULL,
	owner_id   UUID NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS short_links_owner_idx ON short_links (owner_id);
CREATE TABLE IF NOT EXISTS clicks (
	id       BIGSERIAL PRIMARY KEY,
	code     TEXT NOT NULL REFERENCES short_links (code) ON DELETE CASCADE,
	ts       TIMESTAMPTZ NOT NULL,
	referrer TEXT NOT NULL DEFAULT 'direct',
	location TEXT NOT NULL DEFAULT 'unknown'
);
CREATE INDEX IF NOT EXISTS clicks_code_idx ON clicks (code);
`

// EnsureSchema creates the tables if they do not exist yet.
func (s *PostgresLinkStorage) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Insert relies on ON CONFLICT DO NOTHING so that the existence check and
// the row creation are a single statement. Two concurrent inserts of the
// same code can never both report success.
func (s *PostgresLinkStorage) Insert(ctx context.Context, link *ShortLink) (bool, error) {
	query := `INSERT INTO short_links (code, target, owner_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code) DO NOTHING`
	tag, err := s.pool.Exec(ctx, query, link.Code, link.Target, link.OwnerID, link.CreatedAt, link.ExpiresAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

const selectLink = `SELECT s.code, s.target, s.owner_id, s.created_at, s.expires_at,
	(SELECT count(*) FROM clicks c WHERE c.code = s.code) AS click_count
	FROM short_links s`

func (s *PostgresLinkStorage) GetByCode(ctx context.Context, code string) (*ShortLink, error) {
	row := s.pool.QueryRow(ctx, selectLink+` WHERE s.code = $1`, code)
	return scanLink(row)
}

func (s *PostgresLinkStorage) GetByCodeAndOwner(ctx context.Context, code string, owner uuid.UUID) (*ShortLink, error) {
	row := s.pool.QueryRow(ctx, selectLink+` WHERE s.code = $1 AND s.owner_id = $2`, code, owner)
	return scanLink(row)
}

func (s *PostgresLinkStorage) ListByOwner(ctx context.Context, owner uuid.UUID) ([]*ShortLink, error) {
	rows, err := s.pool.Query(ctx, selectLink+` WHERE s.owner_id = $1 ORDER BY s.created_at DESC`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []*ShortLink
	for rows.Next() {
		var link ShortLink
		if err := rows.Scan(&link.Code, &link.Target, &link.OwnerID, &link.CreatedAt, &link.ExpiresAt, &link.ClickCount); err != nil {
			return nil, err
		}
		links = append(links, &link)
	}
	return links, rows.Err()
}

func (s *PostgresLinkStorage) Update(ctx context.Context, link *ShortLink) error {
	query := `UPDATE short_links SET target = $2, expires_at = $3 WHERE code = $1`
	_, err := s.pool.Exec(ctx, query, link.Code, link.Target, link.ExpiresAt)
	return err
}

func (s *PostgresLinkStorage) Delete(ctx context.Context, code string) error {
	query := `DELETE FROM short_links WHERE code = $1`
	_, err := s.pool.Exec(ctx, query, code)
	return err
}

// AppendClick inserts a fresh row per event. Concurrent appends on the same
// code interleave without touching each other.
func (s *PostgresLinkStorage) AppendClick(ctx context.Context, code string, ev ClickEvent) error {
	query := `INSERT INTO clicks (code, ts, referrer, location) VALUES ($1, $2, $3, $4)`
	_, err := s.pool.Exec(ctx, query, code, ev.Timestamp, ev.Referrer, ev.Location)
	return err
}

func (s *PostgresLinkStorage) ListClicks(ctx context.Context, code string) ([]ClickEvent, error) {
	query := `SELECT ts, referrer, location FROM clicks WHERE code = $1 ORDER BY id`
	rows, err := s.pool.Query(ctx, query, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []ClickEvent
	for rows.Next() {
		var ev ClickEvent
		if err := rows.Scan(&ev.Timestamp, &ev.Referrer, &ev.Location); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func scanLink(row pgx.Row) (*ShortLink, error) {
	var link ShortLink
	err := row.Scan(&link.Code, &link.Target, &link.OwnerID, &link.CreatedAt, &link.ExpiresAt, &link.ClickCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &link, nil
}
