package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/pflag"
	"github.com/tidwall/jsonc"

	"ex-sniper/internal/cache"
	"ex-sniper/internal/gateway"
	"ex-sniper/internal/llm"
)

const (
	defaultConfigFilePath   = "config/sniper.json"
	alternateConfigFilePath = "bin/config/sniper.json"
	defaultShutdownTimeout  = 10 * time.Second
	defaultLookupTimeout    = 10 * time.Second
	defaultMaxConcurrent    = 16
	defaultUserCacheSize    = 1000
	logFormatJSON           = "json"
	logFormatText           = "text"
)

var errHelpRequested = errors.New("help requested")

type appConfig struct {
	logLevel  slog.Level
	logFormat string
	dataDir   string
	token     string
	console   bool

	gatewayURL      string
	properties      gateway.Properties
	shutdownTimeout time.Duration
	lookupTimeout   time.Duration

	maxConcurrentCommands int
	cacheCapacity         int
	userCacheCapacity     int
	resumeBumps           bool

	openAI llm.OpenAIConfig
	gemini llm.GeminiConfig
}

type fileConfig struct {
	LogLevel  string            `json:"log_level"`
	LogFormat string            `json:"log_format"`
	DataDir   string            `json:"data_dir"`
	Token     string            `json:"token"`
	Gateway   fileGatewayConfig `json:"gateway"`
	Commands  fileCommandConfig `json:"commands"`
	Cache     fileCacheConfig   `json:"cache"`
	Bumps     fileBumpConfig    `json:"bumps"`
	LLM       fileLLMConfig     `json:"llm"`
}

type fileGatewayConfig struct {
	URL             string              `json:"url"`
	ShutdownTimeout string              `json:"shutdown_timeout"`
	LookupTimeout   string              `json:"lookup_timeout"`
	Properties      *gateway.Properties `json:"properties"`
}

type fileCommandConfig struct {
	MaxConcurrent *int `json:"max_concurrent"`
}

type fileCacheConfig struct {
	Capacity     *int `json:"capacity"`
	UserCapacity *int `json:"user_capacity"`
}

type fileBumpConfig struct {
	Resume *bool `json:"resume"`
}

type fileLLMConfig struct {
	OpenAI fileProviderConfig `json:"openai"`
	Gemini fileProviderConfig `json:"gemini"`
}

type fileProviderConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
}

// envConfig holds the environment overrides; empty values keep the file value.
type envConfig struct {
	ConfigFile   string `env:"SNIPER_CONFIG_FILE"`
	Token        string `env:"SNIPER_TOKEN"`
	LogLevel     string `env:"SNIPER_LOG_LEVEL"`
	LogFormat    string `env:"SNIPER_LOG_FORMAT"`
	DataDir      string `env:"SNIPER_DATA_DIR"`
	GatewayURL   string `env:"SNIPER_GATEWAY_URL"`
	OpenAIAPIKey string `env:"SNIPER_OPENAI_API_KEY"`
	GeminiAPIKey string `env:"SNIPER_GEMINI_API_KEY"`
}

type flagConfig struct {
	configFile string
	logLevel   string
	dataDir    string
	noConsole  bool
}

func parseFlags(args []string) (flagConfig, error) {
	var flags flagConfig

	flagSet := pflag.NewFlagSet("sniper", pflag.ContinueOnError)
	flagSet.StringVar(&flags.configFile, "config", "", "path to the JSONC config file (default: "+defaultConfigFilePath+")")
	flagSet.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flagSet.StringVar(&flags.dataDir, "data-dir", "", "directory holding settings, bumps and spy documents")
	flagSet.BoolVar(&flags.noConsole, "no-console", false, "run without the interactive console")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return flagConfig{}, errHelpRequested
		}
		return flagConfig{}, fmt.Errorf("parse flags: %w", err)
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return flagConfig{}, fmt.Errorf("unexpected argument: %s", rest[0])
	}

	return flags, nil
}

// loadConfig layers defaults, the config file, the environment and flags, in
// that order. environ may be nil to read the process environment.
func loadConfig(args []string, environ map[string]string) (appConfig, error) {
	flags, err := parseFlags(args)
	if err != nil {
		return appConfig{}, err
	}

	var overrides envConfig
	if err := env.ParseWithOptions(&overrides, env.Options{Environment: environ}); err != nil {
		return appConfig{}, fmt.Errorf("parse environment: %w", err)
	}

	cfg := defaultAppConfig()
	configFile, err := resolveConfigFilePath(flags.configFile, overrides.ConfigFile)
	if err != nil {
		return appConfig{}, err
	}
	if configFile != "" {
		if err := applyConfigFile(&cfg, configFile); err != nil {
			return appConfig{}, err
		}
	}
	if err := applyEnvConfig(&cfg, overrides); err != nil {
		return appConfig{}, err
	}
	if err := applyFlagConfig(&cfg, flags); err != nil {
		return appConfig{}, err
	}
	if err := validateAppConfig(&cfg); err != nil {
		return appConfig{}, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// resolveConfigFilePath returns the explicit path when one is given, else the
// first default candidate that exists, else empty.
func resolveConfigFilePath(flagPath string, envPath string) (string, error) {
	for _, explicit := range []string{flagPath, envPath} {
		if explicit = strings.TrimSpace(explicit); explicit != "" {
			return explicit, nil
		}
	}

	for _, candidate := range []string{defaultConfigFilePath, alternateConfigFilePath} {
		info, err := os.Stat(candidate)
		if err == nil {
			if info.IsDir() {
				return "", fmt.Errorf("config file %s is a directory", candidate)
			}
			return candidate, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat config file %s: %w", candidate, err)
		}
	}

	return "", nil
}

func defaultAppConfig() appConfig {
	return appConfig{
		logLevel:  slog.LevelInfo,
		logFormat: logFormatJSON,
		dataDir:   ".",
		console:   true,

		gatewayURL:      gateway.DefaultURL,
		properties:      gateway.DefaultProperties(),
		shutdownTimeout: defaultShutdownTimeout,
		lookupTimeout:   defaultLookupTimeout,

		maxConcurrentCommands: defaultMaxConcurrent,
		cacheCapacity:         cache.DefaultCapacity,
		userCacheCapacity:     defaultUserCacheSize,
		resumeBumps:           true,
	}
}

func applyConfigFile(cfg *appConfig, path string) error {
	if cfg == nil {
		return fmt.Errorf("apply config file: nil config")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var parsed fileConfig
	if err := json.Unmarshal(jsonc.ToJSON(data), &parsed); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if rawLevel := strings.TrimSpace(parsed.LogLevel); rawLevel != "" {
		level, err := parseLogLevel(rawLevel)
		if err != nil {
			return fmt.Errorf("parse log_level: %w", err)
		}
		cfg.logLevel = level
	}
	if format := strings.TrimSpace(parsed.LogFormat); format != "" {
		cfg.logFormat = strings.ToLower(format)
	}
	if dir := strings.TrimSpace(parsed.DataDir); dir != "" {
		cfg.dataDir = dir
	}
	if token := strings.TrimSpace(parsed.Token); token != "" {
		cfg.token = token
	}

	if url := strings.TrimSpace(parsed.Gateway.URL); url != "" {
		cfg.gatewayURL = url
	}
	if err := parsePositiveDuration(parsed.Gateway.ShutdownTimeout, "gateway.shutdown_timeout", &cfg.shutdownTimeout); err != nil {
		return err
	}
	if err := parsePositiveDuration(parsed.Gateway.LookupTimeout, "gateway.lookup_timeout", &cfg.lookupTimeout); err != nil {
		return err
	}
	if parsed.Gateway.Properties != nil {
		cfg.properties = *parsed.Gateway.Properties
	}

	if err := parsePositiveInt(parsed.Commands.MaxConcurrent, "commands.max_concurrent", &cfg.maxConcurrentCommands); err != nil {
		return err
	}
	if err := parsePositiveInt(parsed.Cache.Capacity, "cache.capacity", &cfg.cacheCapacity); err != nil {
		return err
	}
	if err := parsePositiveInt(parsed.Cache.UserCapacity, "cache.user_capacity", &cfg.userCacheCapacity); err != nil {
		return err
	}
	if parsed.Bumps.Resume != nil {
		cfg.resumeBumps = *parsed.Bumps.Resume
	}

	cfg.openAI = llm.OpenAIConfig{
		APIKey:  strings.TrimSpace(parsed.LLM.OpenAI.APIKey),
		BaseURL: strings.TrimSpace(parsed.LLM.OpenAI.BaseURL),
		Model:   strings.TrimSpace(parsed.LLM.OpenAI.Model),
	}
	cfg.gemini = llm.GeminiConfig{
		APIKey:  strings.TrimSpace(parsed.LLM.Gemini.APIKey),
		BaseURL: strings.TrimSpace(parsed.LLM.Gemini.BaseURL),
		Model:   strings.TrimSpace(parsed.LLM.Gemini.Model),
	}

	return nil
}

func applyEnvConfig(cfg *appConfig, overrides envConfig) error {
	if rawLevel := strings.TrimSpace(overrides.LogLevel); rawLevel != "" {
		level, err := parseLogLevel(rawLevel)
		if err != nil {
			return fmt.Errorf("parse SNIPER_LOG_LEVEL: %w", err)
		}
		cfg.logLevel = level
	}
	if format := strings.TrimSpace(overrides.LogFormat); format != "" {
		cfg.logFormat = strings.ToLower(format)
	}
	if dir := strings.TrimSpace(overrides.DataDir); dir != "" {
		cfg.dataDir = dir
	}
	if token := strings.TrimSpace(overrides.Token); token != "" {
		cfg.token = token
	}
	if url := strings.TrimSpace(overrides.GatewayURL); url != "" {
		cfg.gatewayURL = url
	}
	if key := strings.TrimSpace(overrides.OpenAIAPIKey); key != "" {
		cfg.openAI.APIKey = key
	}
	if key := strings.TrimSpace(overrides.GeminiAPIKey); key != "" {
		cfg.gemini.APIKey = key
	}

	return nil
}

func applyFlagConfig(cfg *appConfig, flags flagConfig) error {
	if rawLevel := strings.TrimSpace(flags.logLevel); rawLevel != "" {
		level, err := parseLogLevel(rawLevel)
		if err != nil {
			return fmt.Errorf("parse --log-level: %w", err)
		}
		cfg.logLevel = level
	}
	if dir := strings.TrimSpace(flags.dataDir); dir != "" {
		cfg.dataDir = dir
	}
	if flags.noConsole {
		cfg.console = false
	}

	return nil
}

func validateAppConfig(cfg *appConfig) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	switch cfg.logFormat {
	case logFormatJSON, logFormatText:
	default:
		return fmt.Errorf("log_format %q: want %s or %s", cfg.logFormat, logFormatJSON, logFormatText)
	}
	if !strings.HasPrefix(cfg.gatewayURL, "wss://") && !strings.HasPrefix(cfg.gatewayURL, "ws://") {
		return fmt.Errorf("gateway.url %q: want a ws:// or wss:// url", cfg.gatewayURL)
	}
	if strings.TrimSpace(cfg.properties.OS) == "" || strings.TrimSpace(cfg.properties.Browser) == "" {
		return fmt.Errorf("gateway.properties: os and browser are required")
	}
	if !cfg.console && cfg.token == "" {
		return fmt.Errorf("token is required when the console is disabled")
	}

	return nil
}

func parsePositiveDuration(raw string, field string, target *time.Duration) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	duration, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse %s: %w", field, err)
	}
	if duration <= 0 {
		return fmt.Errorf("parse %s: must be > 0", field)
	}
	*target = duration

	return nil
}

func parsePositiveInt(raw *int, field string, target *int) error {
	if raw == nil {
		return nil
	}
	if *raw <= 0 {
		return fmt.Errorf("parse %s: must be > 0", field)
	}
	*target = *raw

	return nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unsupported level %q", raw)
	}
}
