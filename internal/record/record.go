package record

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Kind int

const (
	KindText Kind = iota + 1
	KindAsset
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindAsset:
		return "asset"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var (
	ErrMissingID    = errors.New("record: conversation and message id are required")
	ErrInvalidAsset = errors.New("record: asset has no resolution fields")
	ErrUnknownKind  = errors.New("record: unknown kind")
)

// Asset describes binary content that is referenced, not stored inline.
// Height and Width are zero for non-image attachments.
type Asset struct {
	MimeType      string `json:"mime_type"`
	Key           string `json:"asset_key"`
	Token         string `json:"asset_token,omitempty"`
	Checksum      []byte `json:"checksum,omitempty"`
	DecryptionKey []byte `json:"decryption_key,omitempty"`
	Name          string `json:"name"`
	Size          int64  `json:"size"`
	Height        int    `json:"height"`
	Width         int    `json:"width"`
}

func (a Asset) IsImage() bool {
	return strings.HasPrefix(strings.ToLower(a.MimeType), "image/")
}

// Resolvable reports whether at least one resolution field is present.
func (a Asset) Resolvable() bool {
	return a.Key != "" || a.Token != "" || len(a.Checksum) > 0 || len(a.DecryptionKey) > 0
}

// Record is one stored historical message. Body is set for KindText,
// Asset for KindAsset.
type Record struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	SenderID       string `json:"sender_id"`
	SenderName     string `json:"sender_name"`
	Accent         int    `json:"accent"`
	Timestamp      int64  `json:"timestamp"`
	Kind           Kind   `json:"kind"`
	Body           string `json:"body,omitempty"`
	Asset          Asset  `json:"asset,omitempty"`
	Deleted        bool   `json:"deleted,omitempty"`
}

// Sender is the display metadata attached to every record.
type Sender struct {
	ID     string
	Name   string
	Accent int
}

func NewText(conversationID, messageID string, from Sender, body string, timestamp int64) Record {
	return Record{
		ConversationID: conversationID,
		MessageID:      messageID,
		SenderID:       from.ID,
		SenderName:     from.Name,
		Accent:         from.Accent,
		Timestamp:      timestamp,
		Kind:           KindText,
		Body:           body,
	}
}

func NewAsset(conversationID, messageID string, from Sender, asset Asset, timestamp int64) Record {
	return Record{
		ConversationID: conversationID,
		MessageID:      messageID,
		SenderID:       from.ID,
		SenderName:     from.Name,
		Accent:         from.Accent,
		Timestamp:      timestamp,
		Kind:           KindAsset,
		Asset:          asset,
	}
}

func (r Record) Sender() Sender {
	return Sender{ID: r.SenderID, Name: r.SenderName, Accent: r.Accent}
}

// Validate checks the invariants a writer must enforce before persisting.
func (r Record) Validate() error {
	if r.ConversationID == "" || r.MessageID == "" {
		return ErrMissingID
	}
	switch r.Kind {
	case KindText:
		return nil
	case KindAsset:
		if !r.Asset.Resolvable() {
			return ErrInvalidAsset
		}
		return nil
	default:
		return fmt.Errorf("%w: %d", ErrUnknownKind, int(r.Kind))
	}
}

// IsRenderable is false for tombstoned and partial records.
func (r Record) IsRenderable() bool {
	return !r.Deleted && r.Validate() == nil
}

func (r Record) Time() time.Time {
	return time.Unix(r.Timestamp, 0).UTC()
}

// Renderable filters out records that must not appear in any output.
func Renderable(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if r.IsRenderable() {
			out = append(out, r)
		}
	}
	return out
}
