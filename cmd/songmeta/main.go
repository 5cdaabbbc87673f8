// Package main provides the songmeta CLI application entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"songmeta/internal/core"
	"songmeta/internal/flood"
	httpserver "songmeta/internal/http"
	"songmeta/internal/i18n"
	"songmeta/pkg/musiclink"
	"songmeta/pkg/text"
)

const (
	envPrefix        = "SONGMETA"
	vkTokenEnvVar    = "VK_ACCESS_TOKEN"
	logFormatJSON    = "json"
	envExampleFile   = ".env.example"
	envExampleMode   = 0o600
	exitCodeFailure  = 1
	serviceVersion   = "1.0.0"
	defaultEnvConfig = ".env"
)

// errResolveFailed is returned after the failure report has already been printed.
var errResolveFailed = errors.New("link resolution failed")

var (
	cfgFile string
	config  *core.Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "songmeta [flags] <url or message text>",
	Short: "songmeta - music link metadata resolver",
	Long: `songmeta resolves a shared Yandex Music, VK Music or MTS Music link into
track and album metadata (title, artist, album, cover, year and catalog ids).
The input may be a forwarded chat message; the first music link in it is used.`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runResolve,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve link resolution over HTTP",
	Long:  `Starts an HTTP server exposing /resolve?url=..., /healthz, /readyz and /metrics.`,
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errResolveFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(exitCodeFailure)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	defaults := core.DefaultConfig()
	flags := rootCmd.PersistentFlags()

	flags.StringVar(&cfgFile, "config", "", "config file (default is .env)")
	flags.String("log-level", defaults.Log.Level, "log level (debug, info, warn, error)")
	flags.String("log-format", defaults.Log.Format, "log format (text, json)")
	supportedLangs := strings.Join(i18n.GetSupportedLanguages(), ", ")
	flags.String("language", defaults.App.Language, fmt.Sprintf("Output language (%s)", supportedLangs))
	flags.Bool("json", false, "Print the record as JSON")
	flags.String("dump-html", "", "Write the fetched page to this file when it has no usable meta tags")

	flags.Int("fetch-timeout-secs", defaults.Fetch.TimeoutSecs, "Page fetch timeout in seconds")
	flags.Int("max-redirects", defaults.Fetch.MaxRedirects, "Maximum redirects followed per link")
	flags.Int64("max-body-bytes", defaults.Fetch.MaxBodyBytes, "Maximum page bytes read")
	flags.String("user-agent", defaults.Fetch.UserAgent, "User-Agent sent to music services")
	flags.String("accept-language", defaults.Fetch.AcceptLanguage, "Accept-Language sent to music services")
	flags.String("music-proxy-url", "", "Proxy for all music services")
	flags.String("yandex-proxy-url", "", "Proxy for Yandex Music (overrides music-proxy-url)")
	flags.String("vk-proxy-url", "", "Proxy for VK (overrides music-proxy-url)")
	flags.String("mts-proxy-url", "", "Proxy for MTS Music (overrides music-proxy-url)")

	flags.String("vk-token-file", defaults.VK.TokenFile, "JSON file holding the VK access token")
	flags.String("vk-access-token", "", "VK access token (overrides vk-token-file)")
	flags.String("vk-api-host", defaults.VK.APIHost, "VK API host")
	flags.String("vk-api-version", defaults.VK.APIVersion, "VK API version")
	flags.Int("vk-timeout-secs", defaults.VK.TimeoutSecs, "VK API timeout in seconds")

	flags.String("server-host", defaults.Server.Host, "HTTP server host")
	flags.Int("server-port", defaults.Server.Port, "HTTP server port")
	flags.Int("flood-limit-per-minute", defaults.Flood.LimitPerMinute,
		"Maximum /resolve requests per client per minute (0 disables)")
	flags.Bool("generate-env-example", false, "Generate .env.example file from current configuration and exit")

	if err := viper.BindPFlags(flags); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bind flags: %v\n", err)
		os.Exit(exitCodeFailure)
	}

	rootCmd.AddCommand(serveCmd)
}

func initConfig() {
	envFile := defaultEnvConfig
	if cfgFile != "" {
		envFile = cfgFile
	}

	if err := gotenv.Load(envFile); err != nil {
		// Don't exit if .env file doesn't exist, just warn
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		}
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	config = buildConfig()
	logger = buildLogger(config.Log.Level, config.Log.Format)
}

func buildConfig() *core.Config {
	cfg := core.DefaultConfig()

	configureFetch(cfg)
	configureVK(cfg)
	configureServer(cfg)
	configureApp(cfg)

	return cfg
}

func configureFetch(cfg *core.Config) {
	if secs := viper.GetInt("fetch-timeout-secs"); secs > 0 {
		cfg.Fetch.TimeoutSecs = secs
	}
	if hops := viper.GetInt("max-redirects"); hops > 0 {
		cfg.Fetch.MaxRedirects = hops
	}
	if limit := viper.GetInt64("max-body-bytes"); limit > 0 {
		cfg.Fetch.MaxBodyBytes = limit
	}
	if ua := viper.GetString("user-agent"); ua != "" {
		cfg.Fetch.UserAgent = ua
	}
	cfg.Fetch.AcceptLanguage = viper.GetString("accept-language")
	cfg.Fetch.ProxyURL = viper.GetString("music-proxy-url")
	cfg.Fetch.YandexProxyURL = viper.GetString("yandex-proxy-url")
	cfg.Fetch.VKProxyURL = viper.GetString("vk-proxy-url")
	cfg.Fetch.MTSProxyURL = viper.GetString("mts-proxy-url")
}

func configureVK(cfg *core.Config) {
	cfg.VK.TokenFile = viper.GetString("vk-token-file")
	cfg.VK.AccessToken = viper.GetString("vk-access-token")
	if cfg.VK.AccessToken == "" {
		cfg.VK.AccessToken = os.Getenv(vkTokenEnvVar)
	}
	if host := viper.GetString("vk-api-host"); host != "" {
		cfg.VK.APIHost = host
	}
	if version := viper.GetString("vk-api-version"); version != "" {
		cfg.VK.APIVersion = version
	}
	if secs := viper.GetInt("vk-timeout-secs"); secs > 0 {
		cfg.VK.TimeoutSecs = secs
	}
}

func configureServer(cfg *core.Config) {
	cfg.Server.Host = viper.GetString("server-host")
	if cfg.Server.Host == "" {
		cfg.Server.Host = core.DefaultServerHost
	}
	cfg.Server.Port = viper.GetInt("server-port")
	cfg.Flood.LimitPerMinute = viper.GetInt("flood-limit-per-minute")
	cfg.Log.Level = viper.GetString("log-level")
	cfg.Log.Format = viper.GetString("log-format")
}

func configureApp(cfg *core.Config) {
	cfg.App.JSON = viper.GetBool("json")
	cfg.App.DumpHTML = viper.GetString("dump-html")

	cfg.App.Language = viper.GetString("language")
	if cfg.App.Language == "" {
		cfg.App.Language = i18n.DefaultLanguage
	}
	if !i18n.IsSupported(cfg.App.Language) {
		fmt.Fprintf(os.Stderr, "Warning: Unsupported language '%s', falling back to '%s'. Supported languages: %s\n",
			cfg.App.Language, i18n.DefaultLanguage, strings.Join(i18n.GetSupportedLanguages(), ", "))
		cfg.App.Language = i18n.DefaultLanguage
	}
}

func buildLogger(level, format string) *zap.Logger {
	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	if strings.ToLower(format) != logFormatJSON {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	builtLogger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("Failed to build logger: %v", err))
	}

	return builtLogger
}

func runResolve(cmd *cobra.Command, args []string) error {
	if viper.GetBool("generate-env-example") {
		return generateEnvExample(cmd)
	}
	if len(args) == 0 {
		return cmd.Help()
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	resolver, err := core.NewMusicLinkResolver(config, logger)
	if err != nil {
		return err
	}

	out := &output{
		stdout:    cmd.OutOrStdout(),
		stderr:    cmd.ErrOrStderr(),
		localizer: i18n.NewLocalizer(config.App.Language),
		json:      config.App.JSON,
	}
	return out.resolve(ctx, resolver, strings.Join(args, " "))
}

// output prints resolution results for the terminal.
type output struct {
	stdout    io.Writer
	stderr    io.Writer
	localizer *i18n.Localizer
	json      bool
}

func (o *output) resolve(ctx context.Context, resolver musiclink.Resolver, input string) error {
	link, ok := text.NewParser().FirstLink(input)
	if !ok {
		fmt.Fprintln(o.stderr, o.localizer.T("error.no_url", input))
		return errResolveFailed
	}

	meta, err := resolver.Resolve(ctx, link)
	if err != nil {
		o.printFailure(core.NewErrorReport(link, err))
		return errResolveFailed
	}

	if o.json {
		rendered, encodeErr := core.FormatJSON(meta)
		if encodeErr != nil {
			return encodeErr
		}
		fmt.Fprint(o.stdout, rendered)
		return nil
	}

	fmt.Fprint(o.stdout, core.FormatText(meta, o.localizer))
	return nil
}

func (o *output) printFailure(report core.ErrorReport) {
	if o.json {
		if rendered, err := core.FormatJSON(report); err == nil {
			fmt.Fprint(o.stdout, rendered)
			return
		}
	}
	fmt.Fprint(o.stderr, core.FormatErrorText(report, o.localizer))
}

func runServe(_ *cobra.Command, _ []string) error {
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("Starting songmeta",
		zap.String("version", serviceVersion),
		zap.String("vk_api_host", config.VK.APIHost),
		zap.Int("flood_limit_per_minute", config.Flood.LimitPerMinute))

	metrics := httpserver.NewMetrics()
	resolver, err := core.NewMusicLinkResolver(config, logger,
		musiclink.WithEnrichObserver(metrics.ObserveEnrichment))
	if err != nil {
		return err
	}

	var floodgate *flood.Floodgate
	if config.Flood.LimitPerMinute > 0 {
		floodgate = flood.New(config.Flood.LimitPerMinute)
		defer floodgate.Stop()
	}

	server := httpserver.NewServer(&config.Server, resolver, metrics, floodgate, logger.Named("http"))

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gCtx)
	})

	logger.Info("songmeta started successfully",
		zap.String("http_addr", fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)))

	if err := g.Wait(); err != nil {
		logger.Error("songmeta stopped with error", zap.Error(err))
		return err
	}

	logger.Info("songmeta stopped gracefully")
	return nil
}

func generateEnvExample(cmd *cobra.Command) error {
	fmt.Println("Generating .env.example file from current configuration...")

	content := generateEnvExampleContent(cmd)

	if err := os.WriteFile(envExampleFile, []byte(content), envExampleMode); err != nil {
		return fmt.Errorf("failed to write %s: %w", envExampleFile, err)
	}

	fmt.Println("✅ Successfully generated .env.example file")
	return nil
}

func generateEnvExampleContent(cmd *cobra.Command) string {
	var content strings.Builder

	content.WriteString("# =============================================================================\n")
	content.WriteString("# songmeta Configuration\n")
	content.WriteString("# =============================================================================\n")
	content.WriteString("#\n")
	content.WriteString("# Copy this file to .env and update with your values\n")
	content.WriteString("# All environment variables have CLI flag equivalents (use --help to see them)\n")
	content.WriteString("#\n")
	content.WriteString("# Format: SONGMETA_<SETTING>=value\n")
	content.WriteString("# CLI equivalent: --<setting>\n")
	content.WriteString("#\n\n")

	writeEnvSection(&content, cmd, "Output", []string{"language", "json", "dump-html"})
	writeEnvSection(&content, cmd, "Page Fetching", []string{
		"fetch-timeout-secs", "max-redirects", "max-body-bytes", "user-agent", "accept-language",
	})
	writeEnvSection(&content, cmd, "Proxies (per service proxies override the shared one)", []string{
		"music-proxy-url", "yandex-proxy-url", "vk-proxy-url", "mts-proxy-url",
	})
	writeEnvSection(&content, cmd, "VK API Enrichment (optional)", []string{
		"vk-token-file", "vk-access-token", "vk-api-host", "vk-api-version", "vk-timeout-secs",
	})
	content.WriteString("# VK_ACCESS_TOKEN is also read when SONGMETA_VK_ACCESS_TOKEN is unset.\n\n")
	writeEnvSection(&content, cmd, "HTTP Server (songmeta serve)", []string{
		"server-host", "server-port", "flood-limit-per-minute",
	})
	writeEnvSection(&content, cmd, "Logging", []string{"log-level", "log-format"})

	return content.String()
}

func writeEnvSection(content *strings.Builder, cmd *cobra.Command, title string, flagNames []string) {
	content.WriteString("# -----------------------------------------------------------------------------\n")
	fmt.Fprintf(content, "# %s\n", title)
	content.WriteString("# -----------------------------------------------------------------------------\n")

	for _, name := range flagNames {
		f := cmd.Root().PersistentFlags().Lookup(name)
		if f == nil {
			continue
		}
		fmt.Fprintf(content, "# %s (default: %q)\n", f.Usage, f.DefValue)
		fmt.Fprintf(content, "%s=%s\n", flagToEnvVar(name), f.DefValue)
	}
	content.WriteString("\n")
}

func flagToEnvVar(flagName string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}
