package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"history-recorder/internal/config"
	"history-recorder/internal/record"
	"history-recorder/internal/storage"
)

func newTestServer(t *testing.T) *HistoryMCPServer {
	t.Helper()
	store, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	alice := record.Sender{ID: "1", Name: "alice", Accent: 1}
	ctx := context.Background()
	for _, rec := range []record.Record{
		record.NewText("c", "m1", alice, "hello", 100),
		record.NewText("c", "m2", alice, "world", 101),
		record.NewAsset("c", "m3", alice, record.Asset{Key: "k", MimeType: "image/png", Name: "cat.png", Size: 5}, 102),
	} {
		var err error
		if rec.Kind == record.KindAsset {
			_, err = store.InsertAsset(ctx, rec)
		} else {
			_, err = store.InsertText(ctx, rec)
		}
		if err != nil {
			t.Fatal(err)
		}
	}
	cfg := &config.Config{MessageLimit: 4000, AssetWorkers: 2, ExportTimeout: 10 * time.Second}
	return &HistoryMCPServer{store: store, cfg: cfg}
}

func text(t *testing.T, res *mcp.CallToolResultFor[any], i int) string {
	t.Helper()
	if i >= len(res.Content) {
		t.Fatalf("missing content %d in %+v", i, res.Content)
	}
	tc, ok := res.Content[i].(*mcp.TextContent)
	if !ok {
		t.Fatalf("content %d is not text", i)
	}
	return tc.Text
}

func TestGetHistory(t *testing.T) {
	s := newTestServer(t)
	res, err := s.GetHistory(context.Background(), nil, &mcp.CallToolParamsFor[GetHistoryParams]{Arguments: GetHistoryParams{ConversationID: "c", Limit: 40}})
	if err != nil || res.IsError {
		t.Fatalf("unexpected failure %v %+v", err, res)
	}
	if len(res.Content) != 2 {
		t.Fatalf("Expected 2 batches, got %d", len(res.Content))
	}
	if got := text(t, res, 0); got != "alice: hello\nalice: world" {
		t.Fatalf("unexpected first batch %q", got)
	}

	res, _ = s.GetHistory(context.Background(), nil, &mcp.CallToolParamsFor[GetHistoryParams]{Arguments: GetHistoryParams{}})
	if !res.IsError {
		t.Fatal("missing conversation id accepted")
	}
}

func TestHistoryStats(t *testing.T) {
	s := newTestServer(t)
	res, err := s.HistoryStats(context.Background(), nil, &mcp.CallToolParamsFor[HistoryStatsParams]{Arguments: HistoryStatsParams{ConversationID: "c"}})
	if err != nil || res.IsError {
		t.Fatalf("unexpected failure %v %+v", err, res)
	}
	if !strings.HasPrefix(text(t, res, 0), "3 messages") || !strings.Contains(text(t, res, 1), `"asset_records": 1`) {
		t.Fatalf("unexpected stats %q %q", text(t, res, 0), text(t, res, 1))
	}
}

func TestExportHistory(t *testing.T) {
	s := newTestServer(t)
	target := filepath.Join(t.TempDir(), "out", "c.html")
	res, err := s.ExportHistory(context.Background(), nil, &mcp.CallToolParamsFor[ExportHistoryParams]{
		Arguments: ExportHistoryParams{ConversationID: "c", Format: "html", TargetPath: target},
	})
	if err != nil || res.IsError {
		t.Fatalf("unexpected failure %v %+v", err, res)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "asset unavailable: cat.png") {
		t.Fatalf("missing placeholder in export")
	}
	if msg := text(t, res, 0); !strings.Contains(msg, "1 warnings") {
		t.Fatalf("Expected the unresolved asset to be reported, got %q", msg)
	}

	res, _ = s.ExportHistory(context.Background(), nil, &mcp.CallToolParamsFor[ExportHistoryParams]{
		Arguments: ExportHistoryParams{ConversationID: "c", Format: "docx", TargetPath: target},
	})
	if !res.IsError {
		t.Fatal("unknown format accepted")
	}
}
