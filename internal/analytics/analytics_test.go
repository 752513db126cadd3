package analytics

import (
	"strings"
	"testing"
	"time"

	"history-recorder/internal/record"
)

func TestAnalyze(t *testing.T) {
	base := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC).Unix()
	alice := record.Sender{ID: "1", Name: "alice", Accent: 1}
	bob := record.Sender{ID: "2", Name: "bob", Accent: 4}

	deleted := record.NewText("c", "m4", bob, "gone", base+500)
	deleted.Deleted = true
	records := []record.Record{
		record.NewText("c", "m1", alice, "hi", base+20),
		record.NewText("c", "m2", bob, "hello", base),
		record.NewAsset("c", "m3", alice, record.Asset{Key: "k", Name: "cat.png", Size: 100}, base+60),
		deleted,
		record.NewAsset("c", "m5", bob, record.Asset{}, base+600),
	}

	stats := Analyze("c", records)

	if stats.TotalRecords != 3 || stats.TextRecords != 2 || stats.AssetRecords != 1 {
		t.Errorf("unexpected counts: %+v", stats)
	}
	if stats.AssetBytes != 100 {
		t.Errorf("Expected 100 asset bytes, got %d", stats.AssetBytes)
	}
	if !stats.First.Equal(time.Unix(base, 0)) || !stats.Last.Equal(time.Unix(base+60, 0)) {
		t.Errorf("unexpected range %v – %v", stats.First, stats.Last)
	}
	if len(stats.Participants) != 2 {
		t.Fatalf("Expected 2 participants, got %d", len(stats.Participants))
	}
	if p := stats.Participants[0]; p.Name != "alice" || p.Messages != 2 {
		t.Errorf("unexpected first participant %+v", p)
	}
	if p := stats.Participants[1]; p.Name != "bob" || p.Messages != 1 || p.Accent != 4 {
		t.Errorf("unexpected second participant %+v", p)
	}

	summary := stats.Summary()
	if !strings.Contains(summary, "3 messages") || !strings.Contains(summary, "2 participants") {
		t.Errorf("unexpected summary %q", summary)
	}
}

func TestAnalyzeEmpty(t *testing.T) {
	stats := Analyze("c", nil)
	if stats.TotalRecords != 0 || len(stats.Participants) != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.Summary() != "No messages recorded." {
		t.Errorf("unexpected summary %q", stats.Summary())
	}
	js, err := stats.ToJSON()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(js, `"participants": []`) {
		t.Errorf("participants should encode as an empty list: %s", js)
	}
}
