package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"golang.org/x/sync/errgroup"

	"history-recorder/internal/analytics"
	"history-recorder/internal/asset"
	"history-recorder/internal/record"
)

type Format string

const (
	FormatPDF  Format = "pdf"
	FormatHTML Format = "html"
)

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatPDF:
		return FormatPDF, nil
	case FormatHTML:
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("unknown document format: %q", s)
	}
}

func (f Format) MimeType() string {
	if f == FormatHTML {
		return "text/html"
	}
	return "application/pdf"
}

func (f Format) Extension() string { return "." + string(f) }

var (
	ErrDeliveryFailed = errors.New("document: delivery failed")
	ErrCollectorUsed  = errors.New("document: collector already delivered")
)

// Sender delivers a rendered document privately to one recipient.
type Sender interface {
	SendDocument(ctx context.Context, target, name string, data []byte, mimeType string) error
}

// AssetState says how an entry's asset appears in the document.
type AssetState int

const (
	StateNone        AssetState = iota // text record
	StateInline                        // image bytes embedded
	StateReference                     // named, sized reference without bytes
	StateUnavailable                   // placeholder, resolution failed
)

// Entry is one item of the ordered content both renderers serialize.
type Entry struct {
	Record  record.Record
	State   AssetState
	Payload []byte
	// Width and Height are the display size in pixels for inline images.
	Width  int
	Height int
	Err    error
}

type Options struct {
	Title       string
	Workers     int
	PDFFontPath string
	FileName    string
}

const (
	DefaultTitle    = "Conversation history"
	DefaultWorkers  = 4
	DefaultFileName = "history"
)

// Collector accumulates the full ordered history of one conversation
// snapshot and delivers it once. It is not safe for concurrent use.
type Collector struct {
	conversationID string
	fetcher        asset.Fetcher
	opts           Options
	entries        []Entry
	warnings       record.Warnings
	delivered      bool
}

func NewCollector(conversationID string, fetcher asset.Fetcher, opts Options) *Collector {
	if opts.Title == "" {
		opts.Title = DefaultTitle
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.FileName == "" {
		opts.FileName = DefaultFileName
	}
	return &Collector{conversationID: conversationID, fetcher: fetcher, opts: opts}
}

// Add appends rec, resolving its asset synchronously. Failures are kept
// as placeholders and warnings; Add never fails.
func (c *Collector) Add(ctx context.Context, rec record.Record) {
	if !c.accept(rec) {
		return
	}
	c.append(c.resolve(ctx, rec))
}

// AddAll appends records in order, resolving assets on a bounded pool of
// workers. Entries keep input order regardless of completion order.
func (c *Collector) AddAll(ctx context.Context, records []record.Record) {
	var accepted []record.Record
	for _, rec := range records {
		if c.accept(rec) {
			accepted = append(accepted, rec)
		}
	}
	entries := make([]Entry, len(accepted))
	g := new(errgroup.Group)
	g.SetLimit(c.opts.Workers)
	for i, rec := range accepted {
		g.Go(func() error {
			entries[i] = c.resolve(ctx, rec)
			return nil
		})
	}
	_ = g.Wait()
	for _, e := range entries {
		c.append(e)
	}
}

func (c *Collector) accept(rec record.Record) bool {
	if c.delivered {
		c.warnings.Add(rec, ErrCollectorUsed)
		return false
	}
	return rec.IsRenderable()
}

func (c *Collector) append(e Entry) {
	c.entries = append(c.entries, e)
	if e.Err != nil {
		c.warnings.Add(e.Record, e.Err)
	}
}

func (c *Collector) resolve(ctx context.Context, rec record.Record) Entry {
	e := Entry{Record: rec}
	if rec.Kind != record.KindAsset {
		return e
	}
	if c.fetcher == nil {
		e.State, e.Err = StateUnavailable, fmt.Errorf("%w: no asset source configured", asset.ErrUnavailable)
		return e
	}
	data, err := c.fetcher.Fetch(ctx, rec.Asset)
	if err != nil {
		e.State, e.Err = StateUnavailable, err
		return e
	}
	if !rec.Asset.IsImage() || imageType(rec.Asset.MimeType) == "" {
		e.State = StateReference
		return e
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		e.State, e.Err = StateUnavailable, fmt.Errorf("%w: decode image %s: %v", asset.ErrUnavailable, rec.Asset.Name, err)
		return e
	}
	e.State, e.Payload = StateInline, data
	e.Width, e.Height = rec.Asset.Width, rec.Asset.Height
	if e.Width <= 0 || e.Height <= 0 {
		e.Width, e.Height = cfg.Width, cfg.Height
	}
	return e
}

// imageType maps embeddable image mime types to their short type name.
func imageType(mime string) string {
	switch strings.ToLower(mime) {
	case "image/jpeg", "image/jpg":
		return "JPG"
	case "image/png":
		return "PNG"
	case "image/gif":
		return "GIF"
	default:
		return ""
	}
}

func (c *Collector) Entries() []Entry { return c.entries }

func (c *Collector) Warnings() record.Warnings { return c.warnings }

func (c *Collector) Stats() analytics.Stats {
	records := make([]record.Record, len(c.entries))
	for i, e := range c.entries {
		records[i] = e.Record
	}
	return analytics.Analyze(c.conversationID, records)
}

// Render serializes the accumulated content in the requested format.
func (c *Collector) Render(format Format) ([]byte, error) {
	v := c.view()
	switch format {
	case FormatHTML:
		return renderHTML(v)
	case FormatPDF:
		return renderPDF(v, c.opts.PDFFontPath)
	default:
		return nil, fmt.Errorf("unknown document format: %q", format)
	}
}

// Deliver renders the whole document in memory, then sends it to
// recipient in a single call. It is not retried.
func (c *Collector) Deliver(ctx context.Context, s Sender, recipient string, format Format) error {
	return c.DeliverAll(ctx, s, []string{recipient}, format)
}

// DeliverAll renders once and sends the same document to every recipient.
// A failed send does not stop delivery to the remaining recipients.
func (c *Collector) DeliverAll(ctx context.Context, s Sender, recipients []string, format Format) error {
	if c.delivered {
		return ErrCollectorUsed
	}
	data, err := c.Render(format)
	if err != nil {
		return fmt.Errorf("%w: render %s: %v", ErrDeliveryFailed, format, err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	c.delivered = true

	name := c.opts.FileName + format.Extension()
	var errs []error
	for _, recipient := range recipients {
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Errorf("%w: %v", ErrDeliveryFailed, err))
			break
		}
		if err := s.SendDocument(ctx, recipient, name, data, format.MimeType()); err != nil {
			errs = append(errs, fmt.Errorf("%w: send to %s: %v", ErrDeliveryFailed, recipient, err))
		}
	}
	return errors.Join(errs...)
}

// view is the format-independent layout both renderers consume.
type view struct {
	Title   string
	Summary string
	Items   []item
}

type item struct {
	Sender    string
	Color     string
	RGB       [3]int
	Time      string
	State     AssetState
	Body      string
	AssetName string
	AssetSize string
	MimeType  string
	Payload   []byte
	Width     int
	Height    int
}

const timeLayout = "2006-01-02 15:04:05 UTC"

func (c *Collector) view() view {
	v := view{Title: c.opts.Title, Summary: c.Stats().Summary()}
	for _, e := range c.entries {
		r := e.Record
		it := item{
			Sender: r.SenderName,
			Color:  AccentColor(r.Accent),
			RGB:    accentRGB(r.Accent),
			Time:   r.Time().Format(timeLayout),
			State:  e.State,
			Body:   r.Body,
		}
		if r.Kind == record.KindAsset {
			it.AssetName = assetName(r.Asset)
			it.AssetSize = humanSize(r.Asset.Size)
			it.MimeType = r.Asset.MimeType
			it.Payload = e.Payload
			it.Width, it.Height = e.Width, e.Height
		}
		v.Items = append(v.Items, it)
	}
	return v
}

func assetName(a record.Asset) string {
	if a.Name != "" {
		return a.Name
	}
	if a.MimeType != "" {
		return a.MimeType
	}
	return "attachment"
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}

// placeholder is the text both renderers show for an unresolved asset.
func placeholder(name string) string {
	return "asset unavailable: " + name
}
