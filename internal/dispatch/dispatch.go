package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"history-recorder/internal/asset"
	"history-recorder/internal/document"
	"history-recorder/internal/history"
	"history-recorder/internal/llm"
	"history-recorder/internal/record"
	"history-recorder/internal/storage"
)

var (
	ErrStoreWriteFailed = errors.New("dispatch: store write failed")
	ErrStoreReadFailed  = errors.New("dispatch: store read failed")
	ErrUnknownEvent     = errors.New("dispatch: unknown event")
)

// Delivery is the outbound side of a transport.
type Delivery interface {
	SendText(ctx context.Context, conversationID, body string) error
	SendDirect(ctx context.Context, target, body string) error
	SendDocument(ctx context.Context, target, name string, data []byte, mimeType string) error
}

// Result carries the non-fatal warnings of one event and, when the
// command itself failed, Err.
type Result struct {
	Warnings record.Warnings
	Err      error
}

func (r *Result) warn(ev Event, err error) {
	r.Warnings = append(r.Warnings, record.Warning{ConversationID: ev.ConversationID, MessageID: ev.MessageID, Err: err})
}

type Options struct {
	Limit         int
	ExportTimeout time.Duration
	Workers       int
	PDFFontPath   string
	// Summarizer enables /summary when set.
	Summarizer llm.Client
	Now        func() time.Time
}

const DefaultExportTimeout = 2 * time.Minute

const (
	noticePDF          = "Generating PDF..."
	noticeHTML         = "Generating HTML..."
	noticeExportFailed = "Sorry, the %s export failed. Please try again later."
	noticeSummary      = "Sorry, the summary could not be generated."
	noticeNoHistory    = "No messages recorded yet."
)

// Handler maps inbound events to store writes and command replies. It
// keeps no per-conversation state and is safe for concurrent use.
type Handler struct {
	store    storage.Store
	delivery Delivery
	fetcher  asset.Fetcher
	opts     Options
}

func New(store storage.Store, delivery Delivery, fetcher asset.Fetcher, opts Options) *Handler {
	if opts.Limit <= 0 {
		opts.Limit = history.DefaultLimit
	}
	if opts.ExportTimeout <= 0 {
		opts.ExportTimeout = DefaultExportTimeout
	}
	if opts.Workers <= 0 {
		opts.Workers = document.DefaultWorkers
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Handler{store: store, delivery: delivery, fetcher: fetcher, opts: opts}
}

// Welcome is sent when the bot joins a conversation.
func (h *Handler) Welcome() string {
	var b strings.Builder
	b.WriteString("Recording was enabled.\nAvailable commands:\n")
	b.WriteString("/history - receive previous messages\n")
	b.WriteString("/pdf - receive previous messages in PDF format\n")
	b.WriteString("/html - receive previous messages in HTML format")
	if h.opts.Summarizer != nil {
		b.WriteString("\n/summary - receive a short summary of the conversation")
	}
	return b.String()
}

func (h *Handler) Handle(ctx context.Context, ev Event) Result {
	var res Result
	switch ev.Kind {
	case EventNewConversation:
		if err := h.delivery.SendText(ctx, ev.ConversationID, h.Welcome()); err != nil {
			res.Err = fmt.Errorf("send welcome: %w", err)
		}
	case EventMemberJoin:
		h.memberJoin(ctx, ev, &res)
	case EventBotRemoved:
		n, err := h.store.Unsubscribe(ctx, ev.ConversationID)
		h.checkWrite(&res, ev, "unsubscribe", n, err)
	case EventText:
		h.text(ctx, ev, &res)
	case EventEdit:
		n, err := h.store.UpdateText(ctx, ev.ConversationID, ev.MessageID, ev.Text)
		h.checkWrite(&res, ev, "update text record", n, err)
	case EventDelete:
		n, err := h.store.Remove(ctx, ev.ConversationID, ev.MessageID)
		h.checkWrite(&res, ev, "remove record", n, err)
	case EventImage, EventAttachment:
		a := ev.Asset
		if ev.Kind == EventAttachment {
			a.Height, a.Width = 0, 0
		}
		rec := record.NewAsset(ev.ConversationID, ev.MessageID, ev.Sender, a, h.timestamp(ev))
		n, err := h.store.InsertAsset(ctx, rec)
		h.checkWrite(&res, ev, "insert "+ev.Kind.String()+" record", n, err)
	default:
		res.Err = fmt.Errorf("%w: %s", ErrUnknownEvent, ev.Kind)
	}
	return res
}

// CommandOf returns the command carried by a text event.
func (h *Handler) CommandOf(ev Event) Command {
	if ev.Kind != EventText || ev.Caption {
		return CommandNone
	}
	return h.Command(ev.Text)
}

// Command is ParseCommand restricted to the commands this handler serves.
func (h *Handler) Command(text string) Command {
	cmd := ParseCommand(text)
	if cmd == CommandSummary && h.opts.Summarizer == nil {
		return CommandNone
	}
	return cmd
}

func (h *Handler) text(ctx context.Context, ev Event, res *Result) {
	cmd := h.CommandOf(ev)
	requester := ev.Sender.ID

	switch cmd {
	case CommandHistory:
		records, err := h.store.Records(ctx, ev.ConversationID)
		if err != nil {
			res.Err = fmt.Errorf("%w: %v", ErrStoreReadFailed, err)
			return
		}
		warnings, err := history.Replay(ctx, records, h.opts.Limit, h.delivery, requester)
		res.Warnings = append(res.Warnings, warnings...)
		if err != nil {
			res.Err = fmt.Errorf("replay history: %w", err)
		}
	case CommandPDF, CommandHTML:
		format, notice := document.FormatPDF, noticePDF
		if cmd == CommandHTML {
			format, notice = document.FormatHTML, noticeHTML
		}
		if err := h.delivery.SendDirect(ctx, requester, notice); err != nil {
			res.warn(ev, fmt.Errorf("send notice: %w", err))
		}
		warnings, err := h.Export(ctx, ev.ConversationID, []string{requester}, format)
		res.Warnings = append(res.Warnings, warnings...)
		if err != nil {
			res.Err = err
			h.notify(ctx, ev, res, requester, fmt.Sprintf(noticeExportFailed, strings.ToUpper(string(format))))
		}
	case CommandSummary:
		h.summary(ctx, ev, res, requester)
	default:
		rec := record.NewText(ev.ConversationID, ev.MessageID, ev.Sender, ev.Text, h.timestamp(ev))
		n, err := h.store.InsertText(ctx, rec)
		h.checkWrite(res, ev, "insert text record", n, err)
	}
}

func (h *Handler) memberJoin(ctx context.Context, ev Event, res *Result) {
	var users []string
	for _, id := range ev.UserIDs {
		if id != "" {
			users = append(users, id)
		}
	}
	if len(users) == 0 {
		return
	}
	warnings, err := h.Export(ctx, ev.ConversationID, users, document.FormatPDF)
	res.Warnings = append(res.Warnings, warnings...)
	if err != nil {
		res.Err = err
	}
}

// Export compiles the current history of a conversation into one
// document and delivers it privately to each recipient. The whole
// operation is bounded by the export timeout.
func (h *Handler) Export(ctx context.Context, conversationID string, recipients []string, format document.Format) (record.Warnings, error) {
	ctx, cancel := context.WithTimeout(ctx, h.opts.ExportTimeout)
	defer cancel()

	records, err := h.store.Records(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreReadFailed, err)
	}
	c := document.NewCollector(conversationID, h.fetcher, document.Options{
		Workers:     h.opts.Workers,
		PDFFontPath: h.opts.PDFFontPath,
		FileName:    "history-" + uuid.NewString()[:8],
	})
	c.AddAll(ctx, records)
	err = c.DeliverAll(ctx, h.delivery, recipients, format)
	return c.Warnings(), err
}

func (h *Handler) summary(ctx context.Context, ev Event, res *Result, requester string) {
	records, err := h.store.Records(ctx, ev.ConversationID)
	if err != nil {
		res.Err = fmt.Errorf("%w: %v", ErrStoreReadFailed, err)
		return
	}
	batches, warnings := history.Compile(records, h.opts.Limit)
	res.Warnings = append(res.Warnings, warnings...)

	resp, err := llm.Summarize(ctx, h.opts.Summarizer, batches)
	switch {
	case errors.Is(err, llm.ErrEmptyHistory):
		h.notify(ctx, ev, res, requester, noticeNoHistory)
	case err != nil:
		res.Err = err
		h.notify(ctx, ev, res, requester, noticeSummary)
	default:
		if err := h.delivery.SendDirect(ctx, requester, history.Clip(resp.Content, h.opts.Limit)); err != nil {
			res.Err = fmt.Errorf("send summary: %w", err)
		}
	}
}

func (h *Handler) notify(ctx context.Context, ev Event, res *Result, target, body string) {
	if err := h.delivery.SendDirect(ctx, target, body); err != nil {
		res.warn(ev, fmt.Errorf("send notice: %w", err))
	}
}

// checkWrite turns a failed or no-op store write into a warning.
func (h *Handler) checkWrite(res *Result, ev Event, op string, n int64, err error) {
	switch {
	case err != nil:
		res.warn(ev, fmt.Errorf("%w: %s: %w", ErrStoreWriteFailed, op, err))
	case n == 0:
		res.warn(ev, fmt.Errorf("%w: %s: no rows affected", ErrStoreWriteFailed, op))
	}
}

func (h *Handler) timestamp(ev Event) int64 {
	if ev.Timestamp > 0 {
		return ev.Timestamp
	}
	return h.opts.Now().Unix()
}
