package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"history-recorder/internal/analytics"
	"history-recorder/internal/asset"
	"history-recorder/internal/config"
	"history-recorder/internal/document"
	"history-recorder/internal/history"
	"history-recorder/internal/storage"
	"history-recorder/internal/telegram"
)

type GetHistoryParams struct {
	ConversationID string `json:"conversation_id" mcp:"id of the conversation to replay"`
	Limit          int    `json:"limit,omitempty" mcp:"maximum characters per batch (default: MESSAGE_LIMIT)"`
}

type HistoryStatsParams struct {
	ConversationID string `json:"conversation_id" mcp:"id of the conversation"`
}

type ExportHistoryParams struct {
	ConversationID string `json:"conversation_id" mcp:"id of the conversation to export"`
	Format         string `json:"format,omitempty" mcp:"pdf or html (default: pdf)"`
	TargetPath     string `json:"target_path" mcp:"file path to write the document to"`
	Title          string `json:"title,omitempty" mcp:"document title"`
}

// HistoryMCPServer exposes recorded conversations as MCP tools.
type HistoryMCPServer struct {
	store   storage.Store
	fetcher asset.Fetcher
	cfg     *config.Config
}

func errorResult(format string, args ...any) *mcp.CallToolResultFor[any] {
	return &mcp.CallToolResultFor[any]{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
	}
}

func (s *HistoryMCPServer) GetHistory(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[GetHistoryParams]) (*mcp.CallToolResultFor[any], error) {
	args := params.Arguments
	if args.ConversationID == "" {
		return errorResult("conversation_id is required"), nil
	}
	limit := args.Limit
	if limit <= 0 {
		limit = s.cfg.MessageLimit
	}

	records, err := s.store.Records(ctx, args.ConversationID)
	if err != nil {
		return errorResult("Failed to read history: %v", err), nil
	}
	batches, warnings := history.Compile(records, limit)
	if len(batches) == 0 {
		return &mcp.CallToolResultFor[any]{
			Content: []mcp.Content{&mcp.TextContent{Text: "No messages recorded for this conversation."}},
		}, nil
	}

	content := make([]mcp.Content, 0, len(batches)+1)
	for _, b := range batches {
		content = append(content, &mcp.TextContent{Text: b})
	}
	if len(warnings) > 0 {
		content = append(content, &mcp.TextContent{Text: formatWarnings(warnings.Errors())})
	}
	log.Printf("get_history: %s, %d records, %d batches", args.ConversationID, len(records), len(batches))
	return &mcp.CallToolResultFor[any]{Content: content}, nil
}

func (s *HistoryMCPServer) HistoryStats(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[HistoryStatsParams]) (*mcp.CallToolResultFor[any], error) {
	args := params.Arguments
	if args.ConversationID == "" {
		return errorResult("conversation_id is required"), nil
	}
	records, err := s.store.Records(ctx, args.ConversationID)
	if err != nil {
		return errorResult("Failed to read history: %v", err), nil
	}
	stats := analytics.Analyze(args.ConversationID, records)
	js, err := stats.ToJSON()
	if err != nil {
		return errorResult("Failed to encode stats: %v", err), nil
	}
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{
			&mcp.TextContent{Text: stats.Summary()},
			&mcp.TextContent{Text: js},
		},
	}, nil
}

func (s *HistoryMCPServer) ExportHistory(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[ExportHistoryParams]) (*mcp.CallToolResultFor[any], error) {
	args := params.Arguments
	if args.ConversationID == "" || args.TargetPath == "" {
		return errorResult("conversation_id and target_path are required"), nil
	}
	if args.Format == "" {
		args.Format = string(document.FormatPDF)
	}
	format, err := document.ParseFormat(args.Format)
	if err != nil {
		return errorResult("%v", err), nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ExportTimeout)
	defer cancel()

	records, err := s.store.Records(ctx, args.ConversationID)
	if err != nil {
		return errorResult("Failed to read history: %v", err), nil
	}
	c := document.NewCollector(args.ConversationID, s.fetcher, document.Options{
		Title:       args.Title,
		Workers:     s.cfg.AssetWorkers,
		PDFFontPath: s.cfg.PDFFontPath,
	})
	c.AddAll(ctx, records)
	data, err := c.Render(format)
	if err != nil {
		return errorResult("Failed to render %s: %v", format, err), nil
	}

	path := filepath.Clean(args.TargetPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errorResult("Failed to create directory: %v", err), nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errorResult("Failed to write %s: %v", path, err), nil
	}

	text := fmt.Sprintf("Exported %d entries of conversation %s to %s (%d bytes)", len(c.Entries()), args.ConversationID, path, len(data))
	if w := c.Warnings(); len(w) > 0 {
		text += "\n" + formatWarnings(w.Errors())
	}
	log.Printf("export_history: %s", text)
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil
}

func formatWarnings(errs []string) string {
	return fmt.Sprintf("%d warnings:\n- %s", len(errs), strings.Join(errs, "\n- "))
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}
	cfg := config.New()

	store, err := storage.Open(context.Background(), cfg.StoreDriver, cfg.DSN())
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	fetcher, err := telegram.NewAssetFetcher(cfg)
	if err != nil {
		log.Printf("Warning: assets will be shown as unavailable: %v", err)
	}

	log.Printf("Starting history MCP server (%s store)", cfg.StoreDriver)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "history-recorder-mcp",
		Version: "1.0.0",
	}, nil)

	historyServer := &HistoryMCPServer{store: store, fetcher: fetcher, cfg: cfg}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_history",
		Description: "Returns the recorded history of a conversation as size-bounded text batches",
	}, historyServer.GetHistory)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "history_stats",
		Description: "Returns message counts, participants and time range of a conversation",
	}, historyServer.HistoryStats)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "export_history",
		Description: "Exports a conversation as a PDF or HTML document to a file",
	}, historyServer.ExportHistory)

	log.Printf("Registered %d tools: get_history, history_stats, export_history", 3)

	transport := mcp.NewStdioTransport()
	if err := server.Run(context.Background(), transport); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
