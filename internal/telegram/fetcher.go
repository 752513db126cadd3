package telegram

import (
	"errors"

	"history-recorder/internal/asset"
	"history-recorder/internal/config"
)

var errNoToken = errors.New("TELEGRAM_BOT_TOKEN not set")

// NewAssetFetcher builds the configured asset fetcher for processes that
// read history without running the bot. On error the caller has no asset
// source and assets render as unavailable.
func NewAssetFetcher(cfg *config.Config) (asset.Fetcher, error) {
	if cfg.AssetSource == config.AssetSourceHTTP {
		return asset.NewResolver(httpSource(cfg)), nil
	}
	if cfg.TelegramBotToken == "" {
		return nil, errNoToken
	}
	source, err := NewFileSource(cfg.TelegramBotToken, cfg.AssetFetchTimeout)
	if err != nil {
		return nil, err
	}
	return asset.NewResolver(source), nil
}

// AssetFetcher is NewAssetFetcher reusing the bot's own connection.
func (b *Bot) AssetFetcher(cfg *config.Config) asset.Fetcher {
	if cfg.AssetSource == config.AssetSourceHTTP {
		return asset.NewResolver(httpSource(cfg))
	}
	return asset.NewResolver(b.FileSource(cfg.AssetFetchTimeout))
}

func httpSource(cfg *config.Config) asset.Source {
	return asset.NewHTTPSource(cfg.AssetBaseURL, cfg.AssetAuthToken, cfg.AssetFetchTimeout)
}
