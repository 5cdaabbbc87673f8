package core

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"songmeta/pkg/musiclink"
)

// FetcherConfig converts the fetch settings to the page fetcher's configuration.
func (c *Config) FetcherConfig() musiclink.FetcherConfig {
	return musiclink.FetcherConfig{
		Timeout:        time.Duration(c.Fetch.TimeoutSecs) * time.Second,
		MaxRedirects:   c.Fetch.MaxRedirects,
		MaxBodyBytes:   c.Fetch.MaxBodyBytes,
		UserAgent:      c.Fetch.UserAgent,
		AcceptLanguage: c.Fetch.AcceptLanguage,
		Proxies: musiclink.ProxyConfig{
			Default: c.Fetch.ProxyURL,
			Yandex:  c.Fetch.YandexProxyURL,
			VK:      c.Fetch.VKProxyURL,
			MTS:     c.Fetch.MTSProxyURL,
		},
	}
}

// VKClientConfig converts the VK settings to the API client's configuration.
func (c *Config) VKClientConfig() musiclink.VKConfig {
	return musiclink.VKConfig{
		APIHost: c.VK.APIHost,
		Version: c.VK.APIVersion,
		Timeout: time.Duration(c.VK.TimeoutSecs) * time.Second,
	}
}

// NewMusicLinkResolver builds the resolution pipeline from config. The VK token is
// read once here; without a token the pipeline runs without enrichment.
func NewMusicLinkResolver(config *Config, logger *zap.Logger,
	enrichOpts ...musiclink.EnricherOption) (*musiclink.Manager, error) {
	fetcher, err := musiclink.NewFetcher(config.FetcherConfig(), logger.Named("fetch"))
	if err != nil {
		return nil, fmt.Errorf("failed to create page fetcher: %w", err)
	}

	opts := []musiclink.Option{musiclink.WithLogger(logger.Named("resolve"))}
	if config.App.DumpHTML != "" {
		opts = append(opts, musiclink.WithHTMLDump(config.App.DumpHTML))
	}

	token, err := musiclink.LoadVKToken(config.VK.AccessToken, config.VK.TokenFile)
	if err != nil {
		logger.Warn("Failed to load VK token, enrichment disabled", zap.Error(err))
	}
	if token != nil {
		vkLogger := logger.Named("vk")
		client := musiclink.NewVKClient(config.VKClientConfig(), vkLogger)
		enricher := musiclink.NewEnricher(client, vkLogger, enrichOpts...)
		opts = append(opts, musiclink.WithEnricher(enricher, token.AccessToken))
		logger.Debug("VK enrichment enabled")
	}

	return musiclink.NewManager(fetcher, opts...), nil
}
