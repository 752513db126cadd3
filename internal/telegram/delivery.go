package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"history-recorder/internal/asset"
)

// Delivery sends bot output through the Bot API. Targets are chat ids;
// a user id doubles as the id of the private chat with that user.
type Delivery struct {
	s sender
}

func (d *Delivery) SendText(ctx context.Context, conversationID, body string) error {
	return d.sendMessage(ctx, conversationID, body)
}

func (d *Delivery) SendDirect(ctx context.Context, target, body string) error {
	return d.sendMessage(ctx, target, body)
}

func (d *Delivery) SendDocument(ctx context.Context, target, name string, data []byte, mimeType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	chatID, err := parseChatID(target)
	if err != nil {
		return err
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	if _, err := d.s.Send(doc); err != nil {
		return fmt.Errorf("send %s document to %d: %w", mimeType, chatID, err)
	}
	return nil
}

func (d *Delivery) sendMessage(ctx context.Context, target, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	chatID, err := parseChatID(target)
	if err != nil {
		return err
	}
	if _, err := d.s.Send(tgbotapi.NewMessage(chatID, body)); err != nil {
		return fmt.Errorf("send message to %d: %w", chatID, err)
	}
	return nil
}

func parseChatID(target string) (int64, error) {
	id, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chat id %q: %w", target, err)
	}
	return id, nil
}

// FileSource downloads assets stored on Telegram servers. The asset key
// is the Telegram file id; asset tokens are not used.
type FileSource struct {
	s      sender
	client *http.Client
	link   func(tgbotapi.File) string
}

func (f *FileSource) Download(ctx context.Context, key, _ string) ([]byte, error) {
	file, err := f.s.GetFile(tgbotapi.FileConfig{FileID: key})
	if err != nil {
		return nil, fmt.Errorf("%w: get file %s: %v", asset.ErrUnavailable, key, err)
	}
	if file.FileSize > asset.MaxAssetSize {
		return nil, fmt.Errorf("%w: file %s exceeds %d bytes", asset.ErrUnavailable, key, asset.MaxAssetSize)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.link(file), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", asset.ErrUnavailable, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: download %s: %v", asset.ErrUnavailable, key, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: download %s: status %d", asset.ErrUnavailable, key, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, asset.MaxAssetSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", asset.ErrUnavailable, key, err)
	}
	if len(data) > asset.MaxAssetSize {
		return nil, fmt.Errorf("%w: file %s exceeds %d bytes", asset.ErrUnavailable, key, asset.MaxAssetSize)
	}
	return data, nil
}

func newFileSource(s sender, token string, timeout time.Duration) *FileSource {
	return &FileSource{
		s:      s,
		client: &http.Client{Timeout: timeout},
		link:   func(f tgbotapi.File) string { return f.Link(token) },
	}
}

// NewFileSource opens its own Bot API connection for processes that read
// Telegram files without running the bot.
func NewFileSource(botToken string, timeout time.Duration) (*FileSource, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}
	return newFileSource(botAPISender{api: api}, botToken, timeout), nil
}
