package telegram

import (
	"context"
	"log"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"history-recorder/internal/dispatch"
)

// Handler processes one inbound event.
type Handler interface {
	Handle(ctx context.Context, ev dispatch.Event) dispatch.Result
	CommandOf(ev dispatch.Event) dispatch.Command
}

type Bot struct {
	api     *tgbotapi.BotAPI
	s       sender
	botID   int64
	handler Handler
	wg      sync.WaitGroup
}

func New(botToken string) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, err
	}
	log.Printf("Authorized on account @%s", api.Self.UserName)
	return &Bot{
		api:   api,
		s:     botAPISender{api: api},
		botID: api.Self.ID,
	}, nil
}

func (b *Bot) Delivery() *Delivery { return &Delivery{s: b.s} }

func (b *Bot) FileSource(timeout time.Duration) *FileSource {
	return newFileSource(b.s, b.api.Token, timeout)
}

func (b *Bot) SetHandler(h Handler) { b.handler = h }

// Start long-polls for updates until ctx is cancelled, then waits for
// running exports to finish.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.process(ctx, update)
		}
	}
}

// process handles writes inline so records keep arrival order. Commands
// only read the store and may run long, so they run in the background.
func (b *Bot) process(ctx context.Context, update tgbotapi.Update) {
	for _, ev := range EventsFromUpdate(update, b.botID) {
		if !b.isBackground(ev) {
			b.handle(ctx, ev)
			continue
		}
		b.wg.Add(1)
		go func(ev dispatch.Event) {
			defer b.wg.Done()
			b.handle(ctx, ev)
		}(ev)
	}
}

func (b *Bot) isBackground(ev dispatch.Event) bool {
	return ev.Kind == dispatch.EventMemberJoin || b.handler.CommandOf(ev) != dispatch.CommandNone
}

func (b *Bot) handle(ctx context.Context, ev dispatch.Event) {
	res := b.handler.Handle(ctx, ev)
	for _, w := range res.Warnings {
		log.Printf("%s: %v", ev.Kind, w)
	}
	if res.Err != nil {
		log.Printf("failed to handle %s in conversation %s, message %s: %v", ev.Kind, ev.ConversationID, ev.MessageID, res.Err)
	}
}
