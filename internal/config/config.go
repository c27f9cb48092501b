package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/docker/go-units"
	"gopkg.in/yaml.v3"
)

const (
	configPathEnv        = "PDFLIBRARY_CONFIG"
	databaseDSNEnv       = "DATABASE_DSN"
	telegramTokenEnv     = "TELEGRAM_BOT_TOKEN"
	botTokenEnv          = "BOT_TOKEN"
	geminiAPIKeyEnv      = "GEMINI_API_KEY"
	geminiModelEnv       = "GEMINI_MODEL"
	perplexityAPIKeyEnv  = "PERPLEXITY_API_KEY"
	perplexityAltKeyEnv  = "PERPLEXITYAI_API_KEY"
	perplexityModelEnv   = "PERPLEXITY_MODEL"
	gigaChatAuthKeyEnv   = "GIGACHAT_AUTH_KEY"
	gigaChatScopeEnv     = "GIGACHAT_SCOPE"
	gigaChatModelEnv     = "GIGACHAT_MODEL"
	anthropicAPIKeyEnv   = "ANTHROPIC_API_KEY"
	anthropicModelEnv    = "ANTHROPIC_MODEL"
	redisAddrEnv         = "REDIS_ADDR"
	logLevelEnv          = "LOG_LEVEL"
	logFormatEnv         = "LOG_FORMAT"
	chromePathEnv        = "CHROME_PATH"
	readTimeModeEnv      = "PDF_MCP_READTIME_MODE"
	perImageSecondsEnv   = "PDF_MCP_PER_IMAGE_SECONDS"
	maxScanPagesEnv      = "PDF_MCP_MAX_PAGES"
	defaultMaxFileSize   = "20MB"
	defaultPollTimeout   = 30
	defaultUpdateWorkers = 4
)

// Provider names understood by analysis.providers.
const (
	ProviderGemini     = "gemini"
	ProviderPerplexity = "perplexity"
	ProviderGigaChat   = "gigachat"
	ProviderAnthropic  = "anthropic"
)

var (
	// ErrMissingBotToken is returned when the bot binary has no Telegram token.
	ErrMissingBotToken = errors.New("telegram bot token is required")
	// ErrMissingDSN is returned when the bot binary has no database DSN.
	ErrMissingDSN = errors.New("database dsn is required")
	// ErrInvalidFileSize is returned for unparsable size strings.
	ErrInvalidFileSize = errors.New("invalid file size")
	// ErrUnknownProvider is returned for analysis.providers entries nobody implements.
	ErrUnknownProvider = errors.New("unknown analysis provider")
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging    LoggingConfig  `yaml:"logging"`
	Database   DatabaseConfig `yaml:"database"`
	Telegram   TelegramConfig `yaml:"telegram"`
	Analysis   AnalysisConfig `yaml:"analysis"`
	Gemini     ProviderConfig `yaml:"gemini"`
	Perplexity ProviderConfig `yaml:"perplexity"`
	GigaChat   GigaChatConfig `yaml:"gigachat"`
	Anthropic  ProviderConfig `yaml:"anthropic"`
	Parser     ParserConfig   `yaml:"parser"`
	Reading    ReadingConfig  `yaml:"reading"`
	Selector   SelectorConfig `yaml:"selector"`
	State      StateConfig    `yaml:"state"`
	Eval       EvalConfig     `yaml:"eval"`
}

// LoggingConfig selects slog level and handler format (text or json).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DatabaseConfig describes Postgres connection details.
type DatabaseConfig struct {
	DSN            string `yaml:"dsn"`
	MaxOpenConns   int    `yaml:"maxOpenConns"`
	SkipMigrations bool   `yaml:"skipMigrations"`
}

// TelegramConfig wires all data required to talk to the Bot API.
type TelegramConfig struct {
	BotToken    string `yaml:"botToken"`
	PollTimeout int    `yaml:"pollTimeout"`
	MaxFileSize string `yaml:"maxFileSize"`
	Workers     int    `yaml:"workers"`
}

// MaxFileSizeBytes parses MaxFileSize ("20MB", "512KiB").
func (t TelegramConfig) MaxFileSizeBytes() (int64, error) {
	return parseSize(t.MaxFileSize)
}

// AnalysisConfig controls the provider fallback chain.
type AnalysisConfig struct {
	Providers       []string      `yaml:"providers"`
	CallTimeout     time.Duration `yaml:"callTimeout"`
	ConsistencyRuns int           `yaml:"consistencyRuns"`
}

// ProviderConfig defines how to contact an API-key based LLM provider.
type ProviderConfig struct {
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"apiKey"`
}

// Enabled reports whether the provider has a credential.
func (p ProviderConfig) Enabled() bool { return strings.TrimSpace(p.APIKey) != "" }

// GigaChatConfig carries the OAuth flow settings for GigaChat.
type GigaChatConfig struct {
	AuthURL            string `yaml:"authUrl"`
	APIURL             string `yaml:"apiUrl"`
	AuthKey            string `yaml:"authKey"`
	Scope              string `yaml:"scope"`
	Model              string `yaml:"model"`
	InsecureSkipVerify bool   `yaml:"insecureSkipVerify"`
}

// Enabled reports whether the provider has a credential.
func (g GigaChatConfig) Enabled() bool { return strings.TrimSpace(g.AuthKey) != "" }

// ParserConfig tunes URL probing and headless rendering.
type ParserConfig struct {
	ProbeTimeout  time.Duration `yaml:"probeTimeout"`
	RenderTimeout time.Duration `yaml:"renderTimeout"`
	ChromePath    string        `yaml:"chromePath"`
	PaperFormat   string        `yaml:"paperFormat"`
	MaxPDFSize    string        `yaml:"maxPdfSize"`
}

// MaxPDFSizeBytes parses MaxPDFSize.
func (p ParserConfig) MaxPDFSizeBytes() (int64, error) {
	return parseSize(p.MaxPDFSize)
}

// ReadingConfig tunes the content-based reading time model. Mode is
// "accurate" (per-page scan) or "fast" (first-page extrapolation).
type ReadingConfig struct {
	Mode            string `yaml:"mode"`
	PerImageSeconds int    `yaml:"perImageSeconds"`
	MaxPages        int    `yaml:"maxPages"`
}

// SelectorConfig tunes material selection.
type SelectorConfig struct {
	FallbackCount int `yaml:"fallbackCount"`
}

// StateConfig chooses where dialog state lives.
type StateConfig struct {
	RedisAddr     string        `yaml:"redisAddr"`
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweepInterval"`
}

// EvalConfig defaults the batch evaluation CLI.
type EvalConfig struct {
	Concurrency     int           `yaml:"concurrency"`
	DocumentTimeout time.Duration `yaml:"documentTimeout"`
	OutputDir       string        `yaml:"outputDir"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() (Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		fileCfg, err := ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg = mergeConfig(cfg, fileCfg)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ReadFile parses a YAML config file without applying defaults.
func ReadFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var fileCfg Config
	if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return fileCfg, nil
}

// Validate checks settings shared by every binary.
func (c Config) Validate() error {
	if _, err := c.Telegram.MaxFileSizeBytes(); err != nil {
		return fmt.Errorf("telegram.maxFileSize: %w", err)
	}
	if _, err := c.Parser.MaxPDFSizeBytes(); err != nil {
		return fmt.Errorf("parser.maxPdfSize: %w", err)
	}
	for _, name := range c.Analysis.Providers {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case ProviderGemini, ProviderPerplexity, ProviderGigaChat, ProviderAnthropic:
		default:
			return fmt.Errorf("analysis.providers %q: %w", name, ErrUnknownProvider)
		}
	}
	return nil
}

// ValidateBot checks the settings only the Telegram bot needs.
func (c Config) ValidateBot() error {
	if strings.TrimSpace(c.Telegram.BotToken) == "" {
		return ErrMissingBotToken
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return ErrMissingDSN
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := firstEnv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}
	if v := firstEnv(telegramTokenEnv, botTokenEnv); v != "" {
		c.Telegram.BotToken = v
	}
	if v := firstEnv(geminiAPIKeyEnv); v != "" {
		c.Gemini.APIKey = v
	}
	if v := firstEnv(geminiModelEnv); v != "" {
		c.Gemini.Model = v
	}
	if v := firstEnv(perplexityAPIKeyEnv, perplexityAltKeyEnv); v != "" {
		c.Perplexity.APIKey = v
	}
	if v := firstEnv(perplexityModelEnv); v != "" {
		c.Perplexity.Model = v
	}
	if v := firstEnv(gigaChatAuthKeyEnv); v != "" {
		c.GigaChat.AuthKey = v
	}
	if v := firstEnv(gigaChatScopeEnv); v != "" {
		c.GigaChat.Scope = v
	}
	if v := firstEnv(gigaChatModelEnv); v != "" {
		c.GigaChat.Model = v
	}
	if v := firstEnv(anthropicAPIKeyEnv); v != "" {
		c.Anthropic.APIKey = v
	}
	if v := firstEnv(anthropicModelEnv); v != "" {
		c.Anthropic.Model = v
	}
	if v := firstEnv(redisAddrEnv); v != "" {
		c.State.RedisAddr = v
	}
	if v := firstEnv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
	if v := firstEnv(logFormatEnv); v != "" {
		c.Logging.Format = v
	}
	if v := firstEnv(chromePathEnv); v != "" {
		c.Parser.ChromePath = v
	}
	if v := firstEnv(readTimeModeEnv); v != "" {
		c.Reading.Mode = strings.ToLower(v)
	}
	// "3,10" is accepted; only the first value is used.
	if v := firstEnv(perImageSecondsEnv); v != "" {
		head, _, _ := strings.Cut(v, ",")
		if n, err := strconv.Atoi(strings.TrimSpace(head)); err == nil && n >= 0 {
			c.Reading.PerImageSeconds = n
		}
	}
	if v := firstEnv(maxScanPagesEnv); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Reading.MaxPages = n
		}
	}
}

func mergeConfig(base, override Config) Config {
	base.Logging.Level = pick(base.Logging.Level, override.Logging.Level)
	base.Logging.Format = pick(base.Logging.Format, override.Logging.Format)

	base.Database.DSN = pick(base.Database.DSN, override.Database.DSN)
	base.Database.MaxOpenConns = pick(base.Database.MaxOpenConns, override.Database.MaxOpenConns)
	base.Database.SkipMigrations = base.Database.SkipMigrations || override.Database.SkipMigrations

	base.Telegram.BotToken = pick(base.Telegram.BotToken, override.Telegram.BotToken)
	base.Telegram.PollTimeout = pick(base.Telegram.PollTimeout, override.Telegram.PollTimeout)
	base.Telegram.MaxFileSize = pick(base.Telegram.MaxFileSize, override.Telegram.MaxFileSize)
	base.Telegram.Workers = pick(base.Telegram.Workers, override.Telegram.Workers)

	if len(override.Analysis.Providers) > 0 {
		base.Analysis.Providers = override.Analysis.Providers
	}
	base.Analysis.CallTimeout = pick(base.Analysis.CallTimeout, override.Analysis.CallTimeout)
	base.Analysis.ConsistencyRuns = pick(base.Analysis.ConsistencyRuns, override.Analysis.ConsistencyRuns)

	base.Gemini = mergeProvider(base.Gemini, override.Gemini)
	base.Perplexity = mergeProvider(base.Perplexity, override.Perplexity)
	base.Anthropic = mergeProvider(base.Anthropic, override.Anthropic)

	base.GigaChat.AuthURL = pick(base.GigaChat.AuthURL, override.GigaChat.AuthURL)
	base.GigaChat.APIURL = pick(base.GigaChat.APIURL, override.GigaChat.APIURL)
	base.GigaChat.AuthKey = pick(base.GigaChat.AuthKey, override.GigaChat.AuthKey)
	base.GigaChat.Scope = pick(base.GigaChat.Scope, override.GigaChat.Scope)
	base.GigaChat.Model = pick(base.GigaChat.Model, override.GigaChat.Model)
	base.GigaChat.InsecureSkipVerify = base.GigaChat.InsecureSkipVerify || override.GigaChat.InsecureSkipVerify

	base.Parser.ProbeTimeout = pick(base.Parser.ProbeTimeout, override.Parser.ProbeTimeout)
	base.Parser.RenderTimeout = pick(base.Parser.RenderTimeout, override.Parser.RenderTimeout)
	base.Parser.ChromePath = pick(base.Parser.ChromePath, override.Parser.ChromePath)
	base.Parser.PaperFormat = pick(base.Parser.PaperFormat, override.Parser.PaperFormat)
	base.Parser.MaxPDFSize = pick(base.Parser.MaxPDFSize, override.Parser.MaxPDFSize)

	base.Reading.Mode = pick(base.Reading.Mode, override.Reading.Mode)
	base.Reading.PerImageSeconds = pick(base.Reading.PerImageSeconds, override.Reading.PerImageSeconds)
	base.Reading.MaxPages = pick(base.Reading.MaxPages, override.Reading.MaxPages)

	base.Selector.FallbackCount = pick(base.Selector.FallbackCount, override.Selector.FallbackCount)

	base.State.RedisAddr = pick(base.State.RedisAddr, override.State.RedisAddr)
	base.State.TTL = pick(base.State.TTL, override.State.TTL)
	base.State.SweepInterval = pick(base.State.SweepInterval, override.State.SweepInterval)

	base.Eval.Concurrency = pick(base.Eval.Concurrency, override.Eval.Concurrency)
	base.Eval.DocumentTimeout = pick(base.Eval.DocumentTimeout, override.Eval.DocumentTimeout)
	base.Eval.OutputDir = pick(base.Eval.OutputDir, override.Eval.OutputDir)

	return base
}

func mergeProvider(base, override ProviderConfig) ProviderConfig {
	base.Endpoint = pick(base.Endpoint, override.Endpoint)
	base.Model = pick(base.Model, override.Model)
	base.APIKey = pick(base.APIKey, override.APIKey)
	return base
}

func pick[T comparable](base, override T) T {
	var zero T
	if override != zero {
		return override
	}
	return base
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}

func parseSize(value string) (int64, error) {
	size, err := units.FromHumanSize(strings.TrimSpace(value))
	if err != nil || size <= 0 {
		return 0, fmt.Errorf("%q: %w", value, ErrInvalidFileSize)
	}
	return size, nil
}

func defaultConfig() Config {
	return Config{
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Database: DatabaseConfig{DSN: "", MaxOpenConns: 10},
		Telegram: TelegramConfig{
			PollTimeout: defaultPollTimeout,
			MaxFileSize: defaultMaxFileSize,
			Workers:     defaultUpdateWorkers,
		},
		Analysis: AnalysisConfig{
			Providers:       []string{ProviderGemini, ProviderPerplexity, ProviderGigaChat, ProviderAnthropic},
			CallTimeout:     30 * time.Second,
			ConsistencyRuns: 3,
		},
		Gemini: ProviderConfig{
			Endpoint: "https://generativelanguage.googleapis.com/v1beta",
			Model:    "gemini-2.5-flash-lite",
		},
		Perplexity: ProviderConfig{
			Endpoint: "https://api.perplexity.ai/chat/completions",
			Model:    "sonar",
		},
		GigaChat: GigaChatConfig{
			AuthURL: "https://ngw.devices.sberbank.ru:9443/api/v2/oauth",
			APIURL:  "https://gigachat.devices.sberbank.ru/api/v1",
			Scope:   "GIGACHAT_API_PERS",
			Model:   "GigaChat-2",
		},
		Anthropic: ProviderConfig{
			Endpoint: "https://api.anthropic.com/v1/messages",
			Model:    "claude-3-5-haiku-latest",
		},
		Parser: ParserConfig{
			ProbeTimeout:  10 * time.Second,
			RenderTimeout: 60 * time.Second,
			PaperFormat:   "A4",
			MaxPDFSize:    "50MB",
		},
		Reading: ReadingConfig{
			Mode:            "accurate",
			PerImageSeconds: 3,
			MaxPages:        200,
		},
		Selector: SelectorConfig{FallbackCount: 3},
		State: StateConfig{
			TTL:           30 * time.Minute,
			SweepInterval: 5 * time.Minute,
		},
		Eval: EvalConfig{
			Concurrency:     3,
			DocumentTimeout: 120 * time.Second,
			OutputDir:       "eval_results",
		},
	}
}
