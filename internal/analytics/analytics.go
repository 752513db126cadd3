package analytics

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"history-recorder/internal/record"
)

// Stats summarizes the renderable records of one conversation.
type Stats struct {
	ConversationID string        `json:"conversation_id"`
	TotalRecords   int           `json:"total_records"`
	TextRecords    int           `json:"text_records"`
	AssetRecords   int           `json:"asset_records"`
	AssetBytes     int64         `json:"asset_bytes"`
	First          time.Time     `json:"first,omitempty"`
	Last           time.Time     `json:"last,omitempty"`
	Participants   []Participant `json:"participants"`
}

// Participant holds per-sender counts. Participants keep first-appearance order.
type Participant struct {
	SenderID string `json:"sender_id"`
	Name     string `json:"name"`
	Accent   int    `json:"accent"`
	Messages int    `json:"messages"`
}

// Analyze computes Stats over records, skipping tombstones and partial records.
func Analyze(conversationID string, records []record.Record) Stats {
	stats := Stats{ConversationID: conversationID, Participants: []Participant{}}
	index := make(map[string]int)

	for _, r := range records {
		if !r.IsRenderable() {
			continue
		}
		stats.TotalRecords++
		switch r.Kind {
		case record.KindText:
			stats.TextRecords++
		case record.KindAsset:
			stats.AssetRecords++
			stats.AssetBytes += r.Asset.Size
		}

		// Timestamps are advisory, so first/last are the extremes, not the ends.
		ts := r.Time()
		if stats.First.IsZero() || ts.Before(stats.First) {
			stats.First = ts
		}
		if ts.After(stats.Last) {
			stats.Last = ts
		}

		key := r.SenderID
		if key == "" {
			key = "name:" + r.SenderName
		}
		i, ok := index[key]
		if !ok {
			i = len(stats.Participants)
			index[key] = i
			stats.Participants = append(stats.Participants, Participant{SenderID: r.SenderID, Name: r.SenderName, Accent: r.Accent})
		}
		stats.Participants[i].Messages++
	}
	return stats
}

// Summary renders a short plain-text description used in document headers.
func (s Stats) Summary() string {
	if s.TotalRecords == 0 {
		return "No messages recorded."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d messages (%d text, %d assets) from %d participants",
		s.TotalRecords, s.TextRecords, s.AssetRecords, len(s.Participants))
	fmt.Fprintf(&b, ", %s – %s", s.First.Format(time.DateTime), s.Last.Format(time.DateTime))
	return b.String()
}

func (s Stats) ToJSON() (string, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
