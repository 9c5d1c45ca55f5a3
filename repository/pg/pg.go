// Package pg stores attachment records in PostgreSQL.
package pg

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"

	"github.com/sndcds/attachments/attachment"
	"github.com/sndcds/attachments/repository"
)

type Storage struct {
	pool   *pgxpool.Pool
	schema string
}

var _ repository.Repository = (*Storage)(nil)

// New uses pool for all queries. Tables live in schema.
func New(pool *pgxpool.Pool, schema string) *Storage {
	if schema == "" {
		schema = "public"
	}
	return &Storage{pool: pool, schema: schema}
}

// table returns the quoted, schema qualified table name.
func (s *Storage) table() string {
	return pq.QuoteIdentifier(s.schema) + ".attachment"
}

// Migrate creates the schema and table if they do not exist.
func (s *Storage) Migrate(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, pq.QuoteIdentifier(s.schema)),
		fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id              UUID PRIMARY KEY,
	extension       TEXT NOT NULL,
	mime_type       TEXT NOT NULL,
	md5             TEXT NOT NULL,
	type            TEXT NOT NULL,
	size            BIGINT NOT NULL,
	width           INTEGER,
	height          INTEGER,
	disk            TEXT NOT NULL,
	name            TEXT NOT NULL,
	translated_name JSONB NOT NULL DEFAULT '{}',
	alt             JSONB NOT NULL DEFAULT '{}',
	caption         JSONB NOT NULL DEFAULT '{}',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	CHECK ((width IS NULL) = (height IS NULL))
)`, s.table()),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS attachment_name_idx ON %s (name)`, s.table()),
	}

	return withTransaction(ctx, s.pool, func(tx pgx.Tx) error {
		for _, stmt := range statements {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}
		return nil
	})
}

func (s *Storage) Create(ctx context.Context, a *attachment.Attachment) error {
	query := fmt.Sprintf(`
INSERT INTO %s (id, extension, mime_type, md5, type, size, width, height, disk, name, translated_name, alt, caption, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		s.table())

	_, err := s.pool.Exec(ctx, query,
		a.ID.String(),
		a.Extension,
		a.MimeType,
		a.ContentHash,
		string(a.Type),
		a.Size,
		a.Width,
		a.Height,
		a.Disk,
		a.Name,
		nonNil(a.TranslatedName),
		nonNil(a.Alt),
		nonNil(a.Caption),
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert attachment: %w", err)
	}
	return nil
}

const selectColumns = `id, extension, mime_type, md5, type, size, width, height, disk, name, translated_name, alt, caption, created_at, updated_at`

func (s *Storage) Get(ctx context.Context, id uuid.UUID) (*attachment.Attachment, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, selectColumns, s.table())

	a, err := scanAttachment(s.pool.QueryRow(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", repository.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get attachment: %w", err)
	}
	return a, nil
}

func (s *Storage) Update(ctx context.Context, a *attachment.Attachment) error {
	query := fmt.Sprintf(`
UPDATE %s SET translated_name = $1, alt = $2, caption = $3, updated_at = $4
WHERE id = $5`,
		s.table())

	tag, err := s.pool.Exec(ctx, query,
		nonNil(a.TranslatedName),
		nonNil(a.Alt),
		nonNil(a.Caption),
		a.UpdatedAt,
		a.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update attachment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", repository.ErrNotFound, a.ID)
	}
	return nil
}

func (s *Storage) Delete(ctx context.Context, id uuid.UUID) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.table())

	tag, err := s.pool.Exec(ctx, query, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete attachment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", repository.ErrNotFound, id)
	}
	return nil
}

func (s *Storage) Search(ctx context.Context, search string, limit int) ([]*attachment.Attachment, error) {
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf(`
SELECT %s FROM %s
WHERE $1 = '' OR name ILIKE '%%' || $1 || '%%'
ORDER BY created_at DESC
LIMIT $2`,
		selectColumns, s.table())

	rows, err := s.pool.Query(ctx, query, escapeLike(search), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search attachments: %w", err)
	}
	defer rows.Close()

	var result []*attachment.Attachment
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func scanAttachment(row pgx.Row) (*attachment.Attachment, error) {
	var (
		a         attachment.Attachment
		id        pgtype.UUID
		typ       string
		createdAt time.Time
		updatedAt time.Time
	)
	err := row.Scan(
		&id,
		&a.Extension,
		&a.MimeType,
		&a.ContentHash,
		&typ,
		&a.Size,
		&a.Width,
		&a.Height,
		&a.Disk,
		&a.Name,
		&a.TranslatedName,
		&a.Alt,
		&a.Caption,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.ID = uuid.UUID(id.Bytes)
	a.Type = attachment.Type(typ)
	a.CreatedAt = createdAt.UTC()
	a.UpdatedAt = updatedAt.UTC()
	a.Classify()
	return &a, nil
}

func withTransaction(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func nonNil(l attachment.Localized) attachment.Localized {
	if l == nil {
		return attachment.Localized{}
	}
	return l
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
