package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/luizpinheirodev/twitter-translate-bot/internal/config"
	"github.com/luizpinheirodev/twitter-translate-bot/internal/models"
)

const uniqueViolation = "23505"

const createTableSQL = `
CREATE TABLE IF NOT EXISTS sync_records (
	record_id         UUID PRIMARY KEY,
	source_item_id    TEXT NOT NULL UNIQUE,
	author_id         TEXT NOT NULL,
	translated_text   TEXT NOT NULL,
	original_text     TEXT NOT NULL,
	source_created_at TIMESTAMPTZ NOT NULL,
	record_created_at TIMESTAMPTZ NOT NULL
)`

// ids are decimal strings, so longer means newer
const newestFirstSQL = `ORDER BY length(source_item_id) DESC, source_item_id DESC`

const selectColumnsSQL = `SELECT record_id, source_item_id, author_id, translated_text, original_text,
	source_created_at, record_created_at FROM sync_records `

// PostgreSQLStorage implements Storage interface using PostgreSQL
type PostgreSQLStorage struct {
	db *sql.DB
}

// NewPostgreSQLStorage opens the pool and creates the table when missing.
func NewPostgreSQLStorage(ctx context.Context, cfg config.StorageConfig) (*PostgreSQLStorage, error) {
	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &PostgreSQLStorage{db: db}, nil
}

func (p *PostgreSQLStorage) LatestRecord(ctx context.Context) (*models.SyncRecord, error) {
	row := p.db.QueryRowContext(ctx, selectColumnsSQL+newestFirstSQL+` LIMIT 1`)

	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest record: %w", err)
	}
	return &record, nil
}

func (p *PostgreSQLStorage) AppendRecord(ctx context.Context, record models.SyncRecord) (models.SyncRecord, error) {
	record.RecordID = uuid.NewString()

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO sync_records (record_id, source_item_id, author_id, translated_text, original_text,
			source_created_at, record_created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		record.RecordID, record.SourceItemID, record.AuthorID, record.TranslatedText, record.OriginalText,
		record.SourceCreatedAt, record.RecordCreatedAt,
	)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return models.SyncRecord{}, ErrDuplicateRecord
	}
	if err != nil {
		return models.SyncRecord{}, fmt.Errorf("failed to store record %s: %w", record.SourceItemID, err)
	}
	return record, nil
}

func (p *PostgreSQLStorage) ListRecords(ctx context.Context, limit int, offset int) ([]models.SyncRecord, error) {
	rows, err := p.db.QueryContext(ctx, selectColumnsSQL+newestFirstSQL+` LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	records := []models.SyncRecord{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (p *PostgreSQLStorage) Close() error {
	return p.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (models.SyncRecord, error) {
	var r models.SyncRecord
	err := row.Scan(&r.RecordID, &r.SourceItemID, &r.AuthorID, &r.TranslatedText, &r.OriginalText,
		&r.SourceCreatedAt, &r.RecordCreatedAt)
	if err != nil {
		return models.SyncRecord{}, err
	}
	r.SourceCreatedAt = r.SourceCreatedAt.UTC()
	r.RecordCreatedAt = r.RecordCreatedAt.UTC()
	return r, nil
}
