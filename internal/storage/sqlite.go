package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"history-recorder/internal/record"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS records (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL,
		message_id TEXT NOT NULL,
		kind INTEGER NOT NULL,
		sender_id TEXT NOT NULL DEFAULT '',
		sender_name TEXT NOT NULL DEFAULT '',
		accent INTEGER NOT NULL DEFAULT 0,
		timestamp INTEGER NOT NULL,
		body TEXT NOT NULL DEFAULT '',
		mime_type TEXT NOT NULL DEFAULT '',
		asset_key TEXT NOT NULL DEFAULT '',
		asset_token TEXT NOT NULL DEFAULT '',
		checksum BLOB,
		decryption_key BLOB,
		asset_name TEXT NOT NULL DEFAULT '',
		size_bytes INTEGER NOT NULL DEFAULT 0,
		height INTEGER NOT NULL DEFAULT 0,
		width INTEGER NOT NULL DEFAULT 0,
		deleted_at INTEGER,
		UNIQUE (conversation_id, message_id)
	);
	CREATE INDEX IF NOT EXISTS idx_records_conversation_seq ON records(conversation_id, seq);
	CREATE INDEX IF NOT EXISTS idx_records_deleted_at ON records(deleted_at);
`

type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (or creates) a SQLite database at path, ensuring that
// the parent directory exists, and applies the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create db directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open db at %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db at %s: %w", path, err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) InsertText(ctx context.Context, rec record.Record) (int64, error) {
	if err := checkInsert(rec, record.KindText); err != nil {
		return 0, err
	}
	return s.insert(ctx, rec)
}

func (s *SQLiteStore) InsertAsset(ctx context.Context, rec record.Record) (int64, error) {
	if err := checkInsert(rec, record.KindAsset); err != nil {
		return 0, err
	}
	return s.insert(ctx, rec)
}

func (s *SQLiteStore) insert(ctx context.Context, rec record.Record) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO records (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (conversation_id, message_id) DO NOTHING`,
		insertArgs(rec)...,
	)
	if err != nil {
		return 0, fmt.Errorf("insert record %s/%s: %w", rec.ConversationID, rec.MessageID, err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) UpdateText(ctx context.Context, conversationID, messageID, body string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE records SET body = ?
		WHERE conversation_id = ? AND message_id = ? AND kind = ? AND deleted_at IS NULL`,
		body, conversationID, messageID, int(record.KindText),
	)
	if err != nil {
		return 0, fmt.Errorf("update record %s/%s: %w", conversationID, messageID, err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Remove(ctx context.Context, conversationID, messageID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE records SET deleted_at = ?
		WHERE conversation_id = ? AND message_id = ? AND deleted_at IS NULL`,
		s.now().Unix(), conversationID, messageID,
	)
	if err != nil {
		return 0, fmt.Errorf("remove record %s/%s: %w", conversationID, messageID, err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Records(ctx context.Context, conversationID string) ([]record.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM records
		WHERE conversation_id = ? AND deleted_at IS NULL
		ORDER BY seq`,
		conversationID,
	)
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

func (s *SQLiteStore) Unsubscribe(ctx context.Context, conversationID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE conversation_id = ?`, conversationID)
	if err != nil {
		return 0, fmt.Errorf("unsubscribe %s: %w", conversationID, err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Compact(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM records WHERE deleted_at IS NOT NULL AND deleted_at < ?`,
		before.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("compact tombstones: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
