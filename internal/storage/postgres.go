package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"history-recorder/internal/record"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS records (
		seq BIGSERIAL PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		message_id TEXT NOT NULL,
		kind SMALLINT NOT NULL,
		sender_id TEXT NOT NULL DEFAULT '',
		sender_name TEXT NOT NULL DEFAULT '',
		accent INTEGER NOT NULL DEFAULT 0,
		timestamp BIGINT NOT NULL,
		body TEXT NOT NULL DEFAULT '',
		mime_type TEXT NOT NULL DEFAULT '',
		asset_key TEXT NOT NULL DEFAULT '',
		asset_token TEXT NOT NULL DEFAULT '',
		checksum BYTEA,
		decryption_key BYTEA,
		asset_name TEXT NOT NULL DEFAULT '',
		size_bytes BIGINT NOT NULL DEFAULT 0,
		height INTEGER NOT NULL DEFAULT 0,
		width INTEGER NOT NULL DEFAULT 0,
		deleted_at TIMESTAMPTZ,
		UNIQUE (conversation_id, message_id)
	);
	CREATE INDEX IF NOT EXISTS idx_records_conversation_seq ON records(conversation_id, seq);
`

type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}
	return &PostgresStore{pool: pool, now: time.Now}, nil
}

func (s *PostgresStore) InsertText(ctx context.Context, rec record.Record) (int64, error) {
	if err := checkInsert(rec, record.KindText); err != nil {
		return 0, err
	}
	return s.insert(ctx, rec)
}

func (s *PostgresStore) InsertAsset(ctx context.Context, rec record.Record) (int64, error) {
	if err := checkInsert(rec, record.KindAsset); err != nil {
		return 0, err
	}
	return s.insert(ctx, rec)
}

func (s *PostgresStore) insert(ctx context.Context, rec record.Record) (int64, error) {
	query := `
		INSERT INTO records (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (conversation_id, message_id) DO NOTHING`
	tag, err := s.pool.Exec(ctx, query, insertArgs(rec)...)
	if err != nil {
		return 0, fmt.Errorf("insert record %s/%s: %w", rec.ConversationID, rec.MessageID, err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) UpdateText(ctx context.Context, conversationID, messageID, body string) (int64, error) {
	query := `
		UPDATE records SET body = $1
		WHERE conversation_id = $2 AND message_id = $3 AND kind = $4 AND deleted_at IS NULL`
	tag, err := s.pool.Exec(ctx, query, body, conversationID, messageID, int(record.KindText))
	if err != nil {
		return 0, fmt.Errorf("update record %s/%s: %w", conversationID, messageID, err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) Remove(ctx context.Context, conversationID, messageID string) (int64, error) {
	query := `
		UPDATE records SET deleted_at = $1
		WHERE conversation_id = $2 AND message_id = $3 AND deleted_at IS NULL`
	tag, err := s.pool.Exec(ctx, query, s.now(), conversationID, messageID)
	if err != nil {
		return 0, fmt.Errorf("remove record %s/%s: %w", conversationID, messageID, err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) Records(ctx context.Context, conversationID string) ([]record.Record, error) {
	query := `
		SELECT ` + recordColumns + ` FROM records
		WHERE conversation_id = $1 AND deleted_at IS NULL
		ORDER BY seq`
	rows, err := s.pool.Query(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query records %s: %w", conversationID, err)
	}
	defer rows.Close()

	var out []record.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Unsubscribe(ctx context.Context, conversationID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM records WHERE conversation_id = $1`, conversationID)
	if err != nil {
		return 0, fmt.Errorf("unsubscribe %s: %w", conversationID, err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) Compact(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM records WHERE deleted_at IS NOT NULL AND deleted_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("compact tombstones: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
