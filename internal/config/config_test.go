package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		configPathEnv, databaseDSNEnv, telegramTokenEnv, botTokenEnv, geminiAPIKeyEnv, geminiModelEnv,
		perplexityAPIKeyEnv, perplexityAltKeyEnv, perplexityModelEnv, gigaChatAuthKeyEnv, gigaChatScopeEnv,
		gigaChatModelEnv, anthropicAPIKeyEnv, anthropicModelEnv, redisAddrEnv, logLevelEnv, logFormatEnv, chromePathEnv,
		readTimeModeEnv, perImageSecondsEnv, maxScanPagesEnv,
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	want := []string{ProviderGemini, ProviderPerplexity, ProviderGigaChat, ProviderAnthropic}
	if !reflect.DeepEqual(cfg.Analysis.Providers, want) {
		t.Fatalf("providers = %v, want %v", cfg.Analysis.Providers, want)
	}
	if cfg.Analysis.CallTimeout != 30*time.Second {
		t.Fatalf("call timeout = %s, want 30s", cfg.Analysis.CallTimeout)
	}
	if cfg.Gemini.Enabled() || cfg.GigaChat.Enabled() {
		t.Fatalf("providers without credentials must be disabled")
	}
	size, err := cfg.Telegram.MaxFileSizeBytes()
	if err != nil || size != 20_000_000 {
		t.Fatalf("max file size = %d (%v), want 20000000", size, err)
	}
	if err := cfg.ValidateBot(); !errors.Is(err, ErrMissingBotToken) {
		t.Fatalf("ValidateBot err = %v, want ErrMissingBotToken", err)
	}
	if cfg.Reading != (ReadingConfig{Mode: "accurate", PerImageSeconds: 3, MaxPages: 200}) {
		t.Fatalf("unexpected reading defaults %+v", cfg.Reading)
	}
}

func TestLoadReadingEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(readTimeModeEnv, "FAST")
	t.Setenv(perImageSecondsEnv, "5, 10")
	t.Setenv(maxScanPagesEnv, "50")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Reading != (ReadingConfig{Mode: "fast", PerImageSeconds: 5, MaxPages: 50}) {
		t.Fatalf("unexpected reading config %+v", cfg.Reading)
	}

	t.Setenv(perImageSecondsEnv, "many")
	t.Setenv(maxScanPagesEnv, "-1")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Reading.PerImageSeconds != 3 || cfg.Reading.MaxPages != 200 {
		t.Fatalf("invalid overrides must keep defaults, got %+v", cfg.Reading)
	}
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, `
logging:
  level: debug
  format: json
database:
  dsn: postgres://file
telegram:
  botToken: file-token
  maxFileSize: 10MB
analysis:
  providers: [gigachat, gemini]
  callTimeout: 5s
gemini:
  model: gemini-test
selector:
  fallbackCount: 5
state:
  ttl: 1h
`)
	t.Setenv(configPathEnv, path)
	t.Setenv(telegramTokenEnv, "env-token")
	t.Setenv(perplexityAltKeyEnv, "pplx")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Telegram.BotToken != "env-token" {
		t.Fatalf("bot token = %s, want env-token", cfg.Telegram.BotToken)
	}
	if cfg.Database.DSN != "postgres://file" || cfg.Logging.Format != "json" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.Analysis.Providers, []string{"gigachat", "gemini"}) {
		t.Fatalf("providers = %v", cfg.Analysis.Providers)
	}
	if cfg.Analysis.CallTimeout != 5*time.Second || cfg.State.TTL != time.Hour {
		t.Fatalf("durations not parsed: %s %s", cfg.Analysis.CallTimeout, cfg.State.TTL)
	}
	if cfg.Gemini.Model != "gemini-test" || cfg.Gemini.Endpoint == "" {
		t.Fatalf("gemini merge failed: %+v", cfg.Gemini)
	}
	if !cfg.Perplexity.Enabled() {
		t.Fatalf("perplexity alias env var not applied")
	}
	if cfg.Selector.FallbackCount != 5 {
		t.Fatalf("fallback count = %d, want 5", cfg.Selector.FallbackCount)
	}
	if cfg.Analysis.ConsistencyRuns != 3 {
		t.Fatalf("consistency runs default lost: %d", cfg.Analysis.ConsistencyRuns)
	}
	if err := cfg.ValidateBot(); err != nil {
		t.Fatalf("ValidateBot returned error: %v", err)
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	clearEnv(t)
	t.Setenv(configPathEnv, writeConfig(t, "analysis:\n  providers: [gemini, openrouter]\n"))

	if _, err := Load(); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("err = %v, want ErrUnknownProvider", err)
	}
}

func TestLoadRejectsBadSize(t *testing.T) {
	clearEnv(t)
	t.Setenv(configPathEnv, writeConfig(t, "telegram:\n  maxFileSize: lots\n"))

	if _, err := Load(); !errors.Is(err, ErrInvalidFileSize) {
		t.Fatalf("err = %v, want ErrInvalidFileSize", err)
	}
}

func TestLoadReportsUnreadableFile(t *testing.T) {
	clearEnv(t)
	t.Setenv(configPathEnv, filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestValidateBotRequiresDSN(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	cfg.Telegram.BotToken = "token"
	if err := cfg.ValidateBot(); !errors.Is(err, ErrMissingDSN) {
		t.Fatalf("err = %v, want ErrMissingDSN", err)
	}
}
