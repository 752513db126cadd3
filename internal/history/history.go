package history

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf16"

	"history-recorder/internal/record"
)

// DefaultLimit stays below Telegram's 4096 character message limit.
// Sizes are counted in UTF-16 code units, as Telegram counts them, so a
// character outside the BMP such as an emoji counts as two.
const DefaultLimit = 4000

// TruncationMarker ends a line that was cut to fit the batch limit.
const TruncationMarker = " …[truncated]"

var ErrBatchOverflow = errors.New("history: record rendering exceeds message limit")

// Sender delivers one batch as a direct message.
type Sender interface {
	SendDirect(ctx context.Context, target, body string) error
}

// Batch accumulates rendered lines up to a size limit in UTF-16 units.
// It is a value: Add and Print return the next batch and never modify the
// receiver, so a rejected Add leaves the caller's batch untouched.
type Batch struct {
	limit int
	text  string
	size  int
	lines int
}

func NewBatch(limit int) Batch {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return Batch{limit: limit}
}

func (b Batch) Limit() int { return b.limit }
func (b Batch) Len() int { return b.lines }
func (b Batch) Size() int { return b.size }
func (b Batch) Text() string { return b.text }
func (b Batch) Empty() bool { return b.lines == 0 }
func (b Batch) Reset() Batch { return NewBatch(b.limit) }

// Add appends the rendered line for rec. It returns false and the
// unchanged batch when the line would push the batch past its limit.
// Adding to an empty batch always succeeds.
func (b Batch) Add(rec record.Record) (Batch, bool) {
	line, _ := Render(rec, b.limit)
	n := Units(line)
	if b.lines > 0 {
		n++ // separator
	}
	if b.size+n > b.limit {
		return b, false
	}
	if b.lines > 0 {
		b.text += "\n"
	}
	b.text += line
	b.size += n
	b.lines++
	return b, true
}

// Print sends the batch to target and returns an empty batch. An empty
// batch sends nothing. On a send error the batch is returned unchanged.
func (b Batch) Print(ctx context.Context, s Sender, target string) (Batch, error) {
	if b.Empty() {
		return b, nil
	}
	if err := s.SendDirect(ctx, target, b.text); err != nil {
		return b, fmt.Errorf("send history batch to %s: %w", target, err)
	}
	return b.Reset(), nil
}

// Render produces the single chat line for rec, truncated to limit units.
// The error is ErrBatchOverflow when truncation happened.
func Render(rec record.Record, limit int) (string, error) {
	var line string
	switch rec.Kind {
	case record.KindAsset:
		line = fmt.Sprintf("%s: [asset: %s, %d bytes]", rec.SenderName, rec.Asset.Name, rec.Asset.Size)
	default:
		line = fmt.Sprintf("%s: %s", rec.SenderName, rec.Body)
	}
	if limit <= 0 || Units(line) <= limit {
		return line, nil
	}
	return truncate(line, limit), ErrBatchOverflow
}

// Clip shortens free text such as a summary to fit one message.
func Clip(s string, limit int) string {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if Units(s) <= limit {
		return s
	}
	return truncate(s, limit)
}

func truncate(s string, limit int) string {
	marker := Units(TruncationMarker)
	if limit <= marker {
		return prefix(s, limit)
	}
	return prefix(s, limit-marker) + TruncationMarker
}

// Units returns the length of s in UTF-16 code units.
func Units(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// prefix returns the longest prefix of s that fits in limit units
// without splitting a character.
func prefix(s string, limit int) string {
	n := 0
	for i, r := range s {
		l := utf16.RuneLen(r)
		if n+l > limit {
			return s[:i]
		}
		n += l
	}
	return s
}

// Compile splits the renderable records into batch texts in order.
func Compile(records []record.Record, limit int) ([]string, record.Warnings) {
	var out []string
	var warnings record.Warnings
	b := NewBatch(limit)
	for _, rec := range records {
		if !rec.IsRenderable() {
			continue
		}
		if _, err := Render(rec, b.limit); err != nil {
			warnings.Add(rec, err)
		}
		next, ok := b.Add(rec)
		if !ok {
			out = append(out, b.Text())
			next, _ = b.Reset().Add(rec)
		}
		b = next
	}
	if !b.Empty() {
		out = append(out, b.Text())
	}
	return out, warnings
}

// Replay delivers the history of records to target as a sequence of
// batches, flushing whenever the next record does not fit.
func Replay(ctx context.Context, records []record.Record, limit int, s Sender, target string) (record.Warnings, error) {
	var warnings record.Warnings
	b := NewBatch(limit)
	var err error
	for _, rec := range records {
		if !rec.IsRenderable() {
			continue
		}
		if _, rerr := Render(rec, b.limit); rerr != nil {
			warnings.Add(rec, rerr)
		}
		next, ok := b.Add(rec)
		if !ok {
			if b, err = b.Print(ctx, s, target); err != nil {
				return warnings, err
			}
			next, _ = b.Add(rec)
		}
		b = next
	}
	_, err = b.Print(ctx, s, target)
	return warnings, err
}
