// Package core holds the application configuration and the output formatting of resolved records.
package core

import (
	"time"

	"songmeta/internal/i18n"
)

const (
	// DefaultFetchTimeoutSecs is the page fetch timeout.
	DefaultFetchTimeoutSecs = 10
	// DefaultMaxRedirects caps the redirect chain.
	DefaultMaxRedirects = 10
	// DefaultMaxBodyBytes limits how much of a page is read.
	DefaultMaxBodyBytes = 1_000_000
	// DefaultUserAgent makes services serve their link-preview markup.
	DefaultUserAgent = "TelegramBot (like TwitterBot)"
	// DefaultAcceptLanguage matches the catalogs' primary locale.
	DefaultAcceptLanguage = "ru,en;q=0.9"

	// DefaultVKTokenFile is where the VK access token is read from.
	DefaultVKTokenFile = "vk_tokens.json"
	// DefaultVKAPIHost is the VK API host.
	DefaultVKAPIHost = "api.vk.com"
	// DefaultVKAPIVersion is the VK API version.
	DefaultVKAPIVersion = "5.199"
	// DefaultVKTimeoutSecs is the VK API request timeout.
	DefaultVKTimeoutSecs = 15

	// DefaultServerHost is the serve mode bind address.
	DefaultServerHost = "0.0.0.0"
	// DefaultServerPort is the serve mode port.
	DefaultServerPort = 8080
	// DefaultServerTimeoutSecs bounds reads and writes; a write covers a full resolution.
	DefaultServerTimeoutSecs = 30
	// DefaultFloodLimitPerMinute is the per-client request limit in serve mode.
	DefaultFloodLimitPerMinute = 30

	// DefaultLogLevel is the default zap level.
	DefaultLogLevel = "info"
	// DefaultLogFormat is the default log encoding.
	DefaultLogFormat = "text"
)

type Config struct {
	Fetch  FetchConfig
	VK     VKConfig
	Server ServerConfig
	Log    LogConfig
	App    AppConfig
	Flood  FloodConfig
}

type FetchConfig struct {
	TimeoutSecs    int
	MaxRedirects   int
	MaxBodyBytes   int64
	UserAgent      string
	AcceptLanguage string
	ProxyURL       string // Fallback proxy for all music services.
	YandexProxyURL string
	VKProxyURL     string
	MTSProxyURL    string
}

type VKConfig struct {
	TokenFile   string
	AccessToken string
	APIHost     string
	APIVersion  string
	TimeoutSecs int
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type AppConfig struct {
	Language string
	JSON     bool
	DumpHTML string // File the fetched page is written to when it has no usable tags.
}

type FloodConfig struct {
	LimitPerMinute int
}

func DefaultConfig() *Config {
	return &Config{
		Fetch: FetchConfig{
			TimeoutSecs:    DefaultFetchTimeoutSecs,
			MaxRedirects:   DefaultMaxRedirects,
			MaxBodyBytes:   DefaultMaxBodyBytes,
			UserAgent:      DefaultUserAgent,
			AcceptLanguage: DefaultAcceptLanguage,
		},
		VK: VKConfig{
			TokenFile:   DefaultVKTokenFile,
			APIHost:     DefaultVKAPIHost,
			APIVersion:  DefaultVKAPIVersion,
			TimeoutSecs: DefaultVKTimeoutSecs,
		},
		Server: ServerConfig{
			Host:         DefaultServerHost,
			Port:         DefaultServerPort,
			ReadTimeout:  DefaultServerTimeoutSecs * time.Second,
			WriteTimeout: DefaultServerTimeoutSecs * time.Second,
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		App: AppConfig{
			Language: i18n.DefaultLanguage,
		},
		Flood: FloodConfig{
			LimitPerMinute: DefaultFloodLimitPerMinute,
		},
	}
}
