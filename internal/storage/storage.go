package storage

import (
	"context"
	"fmt"
	"time"

	"history-recorder/internal/record"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store persists conversation records.
// Records must return rows in insertion order with tombstones excluded.
// Mutating calls return the number of affected rows; zero means no matching
// row and is not an error. Implementations must be safe for concurrent use.
type Store interface {
	InsertText(ctx context.Context, rec record.Record) (int64, error)
	InsertAsset(ctx context.Context, rec record.Record) (int64, error)
	UpdateText(ctx context.Context, conversationID, messageID, body string) (int64, error)
	Remove(ctx context.Context, conversationID, messageID string) (int64, error)
	Records(ctx context.Context, conversationID string) ([]record.Record, error)
	Unsubscribe(ctx context.Context, conversationID string) (int64, error)
	// Compact permanently deletes tombstones created before the given time.
	Compact(ctx context.Context, before time.Time) (int64, error)
	Close() error
}

// Open returns a store for the given driver. dsn is a file path for sqlite
// and a connection URL for postgres.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "", DriverSQLite:
		return OpenSQLite(dsn)
	case DriverPostgres:
		return OpenPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown store driver: %s", driver)
	}
}

func checkInsert(rec record.Record, kind record.Kind) error {
	if rec.Kind != kind {
		return fmt.Errorf("insert %s: record kind is %s", kind, rec.Kind)
	}
	return rec.Validate()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (record.Record, error) {
	var r record.Record
	var kind int
	err := s.Scan(
		&r.ConversationID, &r.MessageID, &kind, &r.SenderID, &r.SenderName, &r.Accent, &r.Timestamp,
		&r.Body, &r.Asset.MimeType, &r.Asset.Key, &r.Asset.Token, &r.Asset.Checksum, &r.Asset.DecryptionKey,
		&r.Asset.Name, &r.Asset.Size, &r.Asset.Height, &r.Asset.Width,
	)
	r.Kind = record.Kind(kind)
	return r, err
}

func insertArgs(rec record.Record) []any {
	return []any{
		rec.ConversationID, rec.MessageID, int(rec.Kind), rec.SenderID, rec.SenderName, rec.Accent, rec.Timestamp,
		rec.Body, rec.Asset.MimeType, rec.Asset.Key, rec.Asset.Token, rec.Asset.Checksum, rec.Asset.DecryptionKey,
		rec.Asset.Name, rec.Asset.Size, rec.Asset.Height, rec.Asset.Width,
	}
}

const recordColumns = `conversation_id, message_id, kind, sender_id, sender_name, accent, timestamp,
	body, mime_type, asset_key, asset_token, checksum, decryption_key,
	asset_name, size_bytes, height, width`
