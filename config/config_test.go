package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlConfig = `
Telegram:
  Token: "tg-token"
DB:
  Host: db.internal
  DBName: bodari
  User: bodari
  Password: "${TEST_BODARI_DB_PASSWORD}"
GPT:
  APIKey: "${TEST_BODARI_GPT_KEY}"
  Model: gpt-4o-mini
  Timeout: 45s
  Temperature: 0.3
Redis:
  Enabled: true
  Addr: redis:6379
App:
  TimeZone: Europe/Berlin
  SeedRecipes: false
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o600))
	return dir
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv("TEST_BODARI_GPT_KEY", "sk-test")
	t.Setenv("TEST_BODARI_DB_PASSWORD", "s3cret")
	dir := writeConfig(t, yamlConfig)

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, "tg-token", cfg.Telegram.Token)
	assert.Equal(t, "db.internal", cfg.DB.Host)
	assert.Equal(t, "s3cret", cfg.DB.Password)
	assert.Equal(t, "sk-test", cfg.GPT.APIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.GPT.Model)
	assert.Equal(t, 45*time.Second, cfg.GPT.Timeout)
	assert.InDelta(t, 0.3, cfg.GPT.Temperature, 1e-6)
	assert.True(t, cfg.Redis.Enabled)
	assert.False(t, cfg.App.SeedRecipes)

	// defaults
	assert.Equal(t, "5432", cfg.DB.Port)
	assert.Equal(t, 2500, cfg.GPT.MaxTokens)
	assert.Equal(t, 20*time.Second, cfg.GPT.RateLimitWait)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)

	require.NoError(t, cfg.Validate())
	loc, err := cfg.App.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())
}

func TestLoadFromEnvWithoutFile(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "env-token")
	t.Setenv("GPT_API_KEY", "sk-env")
	t.Setenv("GPT_TIMEOUT", "15s")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("DB_MAX_OPEN_CONNS", "not-a-number")

	cfg, err := LoadFrom(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "env-token", cfg.Telegram.Token)
	assert.Equal(t, "sk-env", cfg.GPT.APIKey)
	assert.Equal(t, 15*time.Second, cfg.GPT.Timeout)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 20, cfg.DB.MaxOpenConns)
	assert.Equal(t, "bodari", cfg.DB.DBName)
	assert.Equal(t, 20*time.Second, cfg.GPT.RateLimitWait)
	assert.True(t, cfg.App.SeedRecipes)
}

func TestLoadFromRejectsBrokenFile(t *testing.T) {
	dir := writeConfig(t, "Telegram: [unterminated")
	_, err := LoadFrom(dir)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Telegram.Token")
	assert.Contains(t, err.Error(), "GPT.APIKey")

	cfg = &Config{
		Telegram: TelegramConfig{Token: "t"},
		GPT:      GPTConfig{APIKey: "k"},
		DB:       DBConfig{Host: "h", DBName: "d"},
		App:      AppConfig{TimeZone: "Mars/Olympus_Mons"},
	}
	assert.ErrorContains(t, cfg.Validate(), "App.TimeZone")
}
