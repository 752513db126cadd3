package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"history-recorder/internal/record"
)

type fakeSender struct {
	sent []string
	err  error
}

func (f *fakeSender) SendDirect(ctx context.Context, target, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, body)
	return nil
}

func text(id, sender, body string) record.Record {
	return record.NewText("c1", id, record.Sender{ID: sender, Name: sender}, body, 0)
}

func TestBatchScenario(t *testing.T) {
	b := NewBatch(20)
	var ok bool
	if b, ok = b.Add(text("1", "A", "hi")); !ok {
		t.Fatalf("first add rejected")
	}
	if b, ok = b.Add(text("2", "B", "there")); !ok {
		t.Fatalf("second add rejected")
	}
	if b.Text() != "A: hi\nB: there" || b.Size() != 14 {
		t.Fatalf("unexpected batch %q size=%d", b.Text(), b.Size())
	}

	third := text("3", "C", "overflow")
	before := b
	next, ok := b.Add(third)
	if ok {
		t.Fatalf("third add should overflow: %q", next.Text())
	}
	if next != before {
		t.Fatalf("rejected add mutated batch")
	}

	fs := &fakeSender{}
	b, err := b.Print(context.Background(), fs, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if b, ok = b.Add(third); !ok {
		t.Fatalf("add to fresh batch must succeed")
	}
	if _, err := b.Print(context.Background(), fs, "u1"); err != nil {
		t.Fatal(err)
	}
	if len(fs.sent) != 2 || fs.sent[1] != "C: overflow" {
		t.Fatalf("unexpected batches: %q", fs.sent)
	}
}

func TestPrintEmptyBatchSendsNothing(t *testing.T) {
	fs := &fakeSender{}
	if _, err := NewBatch(10).Print(context.Background(), fs, "u1"); err != nil {
		t.Fatal(err)
	}
	if len(fs.sent) != 0 {
		t.Fatalf("empty batch sent: %q", fs.sent)
	}

	warnings, err := Replay(context.Background(), nil, 10, fs, "u1")
	if err != nil || len(warnings) != 0 || len(fs.sent) != 0 {
		t.Fatalf("zero records: sent=%q warnings=%v err=%v", fs.sent, warnings, err)
	}
}

func TestRenderAsset(t *testing.T) {
	rec := record.NewAsset("c1", "a1", record.Sender{Name: "bob"}, record.Asset{Key: "k", Name: "report.pdf", Size: 1234}, 0)
	line, err := Render(rec, DefaultLimit)
	if err != nil {
		t.Fatal(err)
	}
	if line != "bob: [asset: report.pdf, 1234 bytes]" {
		t.Fatalf("unexpected line %q", line)
	}
}

func TestOversizedRecordIsTruncated(t *testing.T) {
	long := text("1", "A", strings.Repeat("ж", 100))
	line, err := Render(long, 30)
	if !errors.Is(err, ErrBatchOverflow) {
		t.Fatalf("want ErrBatchOverflow, got %v", err)
	}
	if Units(line) != 30 || !strings.HasSuffix(line, TruncationMarker) {
		t.Fatalf("bad truncation %q", line)
	}

	batches, warnings := Compile([]record.Record{text("0", "A", "x"), long}, 30)
	if len(batches) != 2 || len(warnings) != 1 || warnings[0].MessageID != "1" {
		t.Fatalf("batches=%q warnings=%v", batches, warnings)
	}
}

func TestBatchBoundAndReconstruction(t *testing.T) {
	var records []record.Record
	for i := 0; i < 200; i++ {
		records = append(records, text(fmt.Sprint(i), fmt.Sprintf("user%d", i%3), strings.Repeat("w", i%37)))
	}
	deleted := text("gone", "A", "should not appear")
	deleted.Deleted = true
	records = append(records[:50], append([]record.Record{deleted}, records[50:]...)...)

	for _, limit := range []int{40, 64, 500} {
		fs := &fakeSender{}
		if _, err := Replay(context.Background(), records, limit, fs, "u1"); err != nil {
			t.Fatal(err)
		}
		var lines []string
		for _, batch := range fs.sent {
			if n := Units(batch); n > limit {
				t.Fatalf("limit %d: batch of %d units", limit, n)
			}
			lines = append(lines, strings.Split(batch, "\n")...)
		}
		var want []string
		for _, r := range record.Renderable(records) {
			line, _ := Render(r, limit)
			want = append(want, line)
		}
		if strings.Join(lines, "\n") != strings.Join(want, "\n") {
			t.Fatalf("limit %d: batches do not reconstruct the record sequence", limit)
		}

		compiled, _ := Compile(records, limit)
		if strings.Join(compiled, "|") != strings.Join(fs.sent, "|") {
			t.Fatalf("limit %d: Compile and Replay disagree", limit)
		}
	}
}

func TestReplayStopsOnSendError(t *testing.T) {
	fs := &fakeSender{err: errors.New("boom")}
	_, err := Replay(context.Background(), []record.Record{text("1", "A", "hi")}, 10, fs, "u1")
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("want send error, got %v", err)
	}
}

func TestClip(t *testing.T) {
	if got := Clip("short", 10); got != "short" {
		t.Fatalf("unexpected %q", got)
	}
	got := Clip(strings.Repeat("я", 30), 20)
	if Units(got) != 20 || !strings.HasSuffix(got, TruncationMarker) {
		t.Fatalf("unexpected clip %q", got)
	}
}

func TestEmojiCountsAsTwoUnits(t *testing.T) {
	b := NewBatch(20)
	b, ok := b.Add(text("1", "a", strings.Repeat("😀", 8)))
	if !ok {
		t.Fatalf("first add rejected")
	}
	if b.Size() != 19 {
		t.Fatalf("want size 19, got %d", b.Size())
	}
	// Fits by rune count, but not in UTF-16 units.
	if _, ok := b.Add(text("2", "a", "b")); ok {
		t.Fatalf("batch must reject a line past the unit limit")
	}

	got := Clip(strings.Repeat("😀", 20), 16)
	if got != "😀"+TruncationMarker {
		t.Fatalf("unexpected clip %q", got)
	}
	if got := Clip(strings.Repeat("😀", 5), 3); got != "😀" {
		t.Fatalf("clip must not split a surrogate pair, got %q", got)
	}
}
