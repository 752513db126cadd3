package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"history-recorder/internal/asset"
	"history-recorder/internal/config"
	"history-recorder/internal/document"
	"history-recorder/internal/history"
	"history-recorder/internal/record"
	"history-recorder/internal/storage"
	"history-recorder/internal/telegram"
)

const formatText = "text"

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}
	cfg, err := config.Parse()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}

	conversation := flag.StringP("conversation", "c", "", "conversation id to export (required)")
	format := flag.StringP("format", "f", "pdf", "output format: pdf, html or text")
	out := flag.StringP("out", "o", "", "output file, - for stdout (default history-<conversation>.<format>)")
	title := flag.String("title", document.DefaultTitle, "document title")
	flag.StringVar(&cfg.StoreDriver, "driver", cfg.StoreDriver, "store driver: sqlite or postgres")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "sqlite database path")
	flag.StringVar(&cfg.DatabaseURL, "dsn", cfg.DatabaseURL, "postgres connection string")
	flag.IntVar(&cfg.MessageLimit, "limit", cfg.MessageLimit, "message size limit for text output")
	flag.IntVar(&cfg.AssetWorkers, "workers", cfg.AssetWorkers, "parallel asset downloads")
	flag.Parse()

	if *conversation == "" {
		flag.Usage()
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ExportTimeout)
	defer cancel()

	store, err := storage.Open(ctx, cfg.StoreDriver, cfg.DSN())
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	records, err := store.Records(ctx, *conversation)
	if err != nil {
		log.Fatalf("failed to read records: %v", err)
	}

	data, ext, err := render(ctx, cfg, *conversation, *format, *title, records)
	if err != nil {
		log.Fatalf("export failed: %v", err)
	}

	path := *out
	if path == "" {
		path = fmt.Sprintf("history-%s%s", *conversation, ext)
	}
	if path == "-" {
		_, err = os.Stdout.Write(data)
	} else {
		err = os.WriteFile(path, data, 0o644)
	}
	if err != nil {
		log.Fatalf("failed to write output: %v", err)
	}
	if path != "-" {
		log.Printf("Exported %d records to %s", len(records), path)
	}
}

func render(ctx context.Context, cfg *config.Config, conversation, format, title string, records []record.Record) ([]byte, string, error) {
	if strings.EqualFold(format, formatText) {
		batches, warnings := history.Compile(records, cfg.MessageLimit)
		for _, w := range warnings {
			log.Printf("warning: %v", w)
		}
		return []byte(strings.Join(batches, "\n\n") + "\n"), ".txt", nil
	}

	f, err := document.ParseFormat(format)
	if err != nil {
		return nil, "", err
	}
	c := document.NewCollector(conversation, fetcher(cfg), document.Options{
		Title:       title,
		Workers:     cfg.AssetWorkers,
		PDFFontPath: cfg.PDFFontPath,
	})
	c.AddAll(ctx, records)
	for _, w := range c.Warnings() {
		log.Printf("warning: %v", w)
	}
	data, err := c.Render(f)
	return data, f.Extension(), err
}

func fetcher(cfg *config.Config) asset.Fetcher {
	f, err := telegram.NewAssetFetcher(cfg)
	if err != nil {
		log.Printf("Warning: assets will be shown as unavailable: %v", err)
	}
	return f
}
