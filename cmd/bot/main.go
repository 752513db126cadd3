package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"history-recorder/internal/config"
	"history-recorder/internal/dispatch"
	"history-recorder/internal/llm"
	"history-recorder/internal/scheduler"
	"history-recorder/internal/storage"
	"history-recorder/internal/telegram"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg := config.New()
	if cfg.TelegramBotToken == "" {
		log.Fatal("TELEGRAM_BOT_TOKEN is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, cfg.StoreDriver, cfg.DSN())
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	bot, err := telegram.New(cfg.TelegramBotToken)
	if err != nil {
		log.Fatalf("failed to create bot: %v", err)
	}

	var summarizer llm.Client
	if cfg.SummaryEnabled {
		summarizer, err = llm.NewFactory(cfg).CreateClient(string(cfg.LLMProvider), cfg.OpenAIModel)
		if err != nil {
			log.Fatalf("failed to create llm client: %v", err)
		}
	}

	handler := dispatch.New(store, bot.Delivery(), bot.AssetFetcher(cfg), dispatch.Options{
		Limit:         cfg.MessageLimit,
		ExportTimeout: cfg.ExportTimeout,
		Workers:       cfg.AssetWorkers,
		PDFFontPath:   cfg.PDFFontPath,
		Summarizer:    summarizer,
	})
	bot.SetHandler(handler)

	sched := scheduler.New(store, cfg.CompactSchedule, cfg.TombstoneRetention)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	log.Printf("Recording with %s store, %s asset source", cfg.StoreDriver, cfg.AssetSource)
	bot.Start(ctx)
}
