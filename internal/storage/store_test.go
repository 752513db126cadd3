package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"history-recorder/internal/record"
)

var alice = record.Sender{ID: "u1", Name: "alice", Accent: 1}

func testSQLite(t *testing.T) Store {
	t.Helper()
	s, err := OpenSQLite(t.TempDir() + "/history.db")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testPostgres(t *testing.T) Store {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	s, err := OpenPostgres(context.Background(), dsn)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T)   { runStoreContract(t, testSQLite) }
func TestPostgresStore(t *testing.T) { runStoreContract(t, testPostgres) }

func runStoreContract(t *testing.T, open func(t *testing.T) Store) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s Store, conv string)
	}{
		{"InsertionOrder", testInsertionOrder},
		{"DuplicateInsert", testDuplicateInsert},
		{"RejectsInvalidAsset", testRejectsInvalidAsset},
		{"IdempotentEdit", testIdempotentEdit},
		{"TombstoneExclusion", testTombstoneExclusion},
		{"RemoveMissing", testRemoveMissing},
		{"Unsubscribe", testUnsubscribe},
		{"Compact", testCompact},
		{"AssetRoundTrip", testAssetRoundTrip},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := open(t)
			tc.fn(t, s, "conv-"+uuid.NewString())
		})
	}
}

func mustInsertText(t *testing.T, s Store, conv, id, body string) {
	t.Helper()
	n, err := s.InsertText(context.Background(), record.NewText(conv, id, alice, body, 100))
	if err != nil {
		t.Fatalf("insert %s: %v", id, err)
	}
	if n != 1 {
		t.Fatalf("insert %s: want 1 row, got %d", id, n)
	}
}

func testInsertionOrder(t *testing.T, s Store, conv string) {
	ctx := context.Background()
	// Timestamps deliberately out of order: replay order follows writes.
	for i, ts := range []int64{30, 10, 20, 5, 40} {
		id := fmt.Sprintf("m%d", i)
		if _, err := s.InsertText(ctx, record.NewText(conv, id, alice, id, ts)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.InsertText(ctx, record.NewText("other-"+conv, "x", alice, "x", 1)); err != nil {
		t.Fatal(err)
	}

	got, err := s.Records(ctx, conv)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 5 {
		t.Fatalf("want 5 records, got %d", len(got))
	}
	for i, r := range got {
		if want := fmt.Sprintf("m%d", i); r.MessageID != want || r.Body != want {
			t.Fatalf("record %d: want %s, got %+v", i, want, r)
		}
		if r.Kind != record.KindText || r.SenderName != "alice" || r.Accent != 1 {
			t.Fatalf("record %d fields lost: %+v", i, r)
		}
	}
}

func testDuplicateInsert(t *testing.T, s Store, conv string) {
	ctx := context.Background()
	mustInsertText(t, s, conv, "m1", "first")
	n, err := s.InsertText(ctx, record.NewText(conv, "m1", alice, "second", 101))
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("duplicate insert should affect 0 rows, got %d", n)
	}
	got, _ := s.Records(ctx, conv)
	if len(got) != 1 || got[0].Body != "first" {
		t.Fatalf("unexpected records: %+v", got)
	}
}

func testRejectsInvalidAsset(t *testing.T, s Store, conv string) {
	ctx := context.Background()
	_, err := s.InsertAsset(ctx, record.NewAsset(conv, "a1", alice, record.Asset{Name: "x.png"}, 1))
	if !errors.Is(err, record.ErrInvalidAsset) {
		t.Fatalf("want ErrInvalidAsset, got %v", err)
	}
	got, _ := s.Records(ctx, conv)
	if len(got) != 0 {
		t.Fatalf("invalid asset was stored: %+v", got)
	}
}

func testIdempotentEdit(t *testing.T, s Store, conv string) {
	ctx := context.Background()
	mustInsertText(t, s, conv, "m1", "hi")
	for i := 0; i < 2; i++ {
		if _, err := s.UpdateText(ctx, conv, "m1", "hello"); err != nil {
			t.Fatal(err)
		}
	}
	got, _ := s.Records(ctx, conv)
	if len(got) != 1 || got[0].Body != "hello" || got[0].Timestamp != 100 {
		t.Fatalf("unexpected records after edit: %+v", got)
	}
}

func testTombstoneExclusion(t *testing.T, s Store, conv string) {
	ctx := context.Background()
	mustInsertText(t, s, conv, "m1", "a")
	mustInsertText(t, s, conv, "m2", "b")
	mustInsertText(t, s, conv, "m3", "c")

	n, err := s.Remove(ctx, conv, "m2")
	if err != nil || n != 1 {
		t.Fatalf("remove: n=%d err=%v", n, err)
	}
	if n, _ := s.UpdateText(ctx, conv, "m2", "revived"); n != 0 {
		t.Fatalf("edit of tombstone should affect 0 rows, got %d", n)
	}

	got, _ := s.Records(ctx, conv)
	if len(got) != 2 || got[0].MessageID != "m1" || got[1].MessageID != "m3" {
		t.Fatalf("tombstone not excluded: %+v", got)
	}
}

func testRemoveMissing(t *testing.T, s Store, conv string) {
	ctx := context.Background()
	mustInsertText(t, s, conv, "m1", "a")
	n, err := s.Remove(ctx, conv, "nope")
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("want 0 rows, got %d", n)
	}
	got, _ := s.Records(ctx, conv)
	if len(got) != 1 {
		t.Fatalf("records changed: %+v", got)
	}
}

func testUnsubscribe(t *testing.T, s Store, conv string) {
	ctx := context.Background()
	mustInsertText(t, s, conv, "m1", "a")
	mustInsertText(t, s, conv, "m2", "b")
	n, err := s.Unsubscribe(ctx, conv)
	if err != nil || n != 2 {
		t.Fatalf("unsubscribe: n=%d err=%v", n, err)
	}
	if n, _ := s.Unsubscribe(ctx, conv); n != 0 {
		t.Fatalf("second unsubscribe should affect 0 rows, got %d", n)
	}
}

func testCompact(t *testing.T, s Store, conv string) {
	ctx := context.Background()
	mustInsertText(t, s, conv, "m1", "a")
	mustInsertText(t, s, conv, "m2", "b")
	if _, err := s.Remove(ctx, conv, "m1"); err != nil {
		t.Fatal(err)
	}
	if n, err := s.Compact(ctx, time.Now().Add(-time.Hour)); err != nil || n != 0 {
		t.Fatalf("fresh tombstone compacted: n=%d err=%v", n, err)
	}
	n, err := s.Compact(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n < 1 {
		t.Fatalf("want tombstone purged, got %d", n)
	}
	// The id is free again once the tombstone is gone.
	mustInsertText(t, s, conv, "m1", "again")
	got, _ := s.Records(ctx, conv)
	if len(got) != 2 || got[1].Body != "again" {
		t.Fatalf("unexpected records: %+v", got)
	}
}

func testAssetRoundTrip(t *testing.T, s Store, conv string) {
	ctx := context.Background()
	a := record.Asset{
		MimeType:      "image/png",
		Key:           "3-1-key",
		Token:         "tok",
		Checksum:      []byte{1, 2, 3},
		DecryptionKey: []byte{4, 5, 6},
		Name:          "cat.png",
		Size:          2048,
		Height:        480,
		Width:         640,
	}
	if n, err := s.InsertAsset(ctx, record.NewAsset(conv, "a1", alice, a, 7)); err != nil || n != 1 {
		t.Fatalf("insert asset: n=%d err=%v", n, err)
	}
	if n, _ := s.UpdateText(ctx, conv, "a1", "edited"); n != 0 {
		t.Fatalf("asset records are never edited, got %d rows", n)
	}
	got, err := s.Records(ctx, conv)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("want 1 record, got %d", len(got))
	}
	r := got[0]
	if r.Kind != record.KindAsset || r.Asset.Key != a.Key || r.Asset.Name != a.Name ||
		string(r.Asset.Checksum) != string(a.Checksum) || string(r.Asset.DecryptionKey) != string(a.DecryptionKey) ||
		r.Asset.Height != 480 || r.Asset.Width != 640 || r.Asset.Size != 2048 {
		t.Fatalf("asset fields lost: %+v", r)
	}
}
