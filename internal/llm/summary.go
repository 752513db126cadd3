package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const summaryPrompt = "You summarize chat histories. Reply with a short neutral summary of the " +
	"conversation below: main topics, decisions and open questions. Do not invent details."

// MaxSummaryInput caps the transcript sent to the model, in runes.
// Older batches are dropped first.
const MaxSummaryInput = 24000

var ErrEmptyHistory = errors.New("llm: nothing to summarize")

// Summarize asks client for a summary of the formatted history batches.
func Summarize(ctx context.Context, client Client, batches []string) (Response, error) {
	transcript := tail(batches, MaxSummaryInput)
	if transcript == "" {
		return Response{}, ErrEmptyHistory
	}
	resp, err := client.Generate(ctx, []Message{
		{Role: "system", Content: summaryPrompt},
		{Role: "user", Content: transcript},
	})
	if err != nil {
		return Response{}, fmt.Errorf("summarize: %w", err)
	}
	resp.Content = strings.TrimSpace(resp.Content)
	return resp, nil
}

// tail joins the newest batches that fit within max runes.
func tail(batches []string, max int) string {
	size, first := 0, len(batches)
	for i := len(batches) - 1; i >= 0; i-- {
		n := utf8.RuneCountInString(batches[i]) + 1
		if size+n > max && first < len(batches) {
			break
		}
		size += n
		first = i
	}
	kept := make([]string, 0, len(batches)-first)
	for _, b := range batches[first:] {
		if strings.TrimSpace(b) != "" {
			kept = append(kept, b)
		}
	}
	return strings.Join(kept, "\n")
}
