// config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Telegram        TelegramConfig
	DB              DBConfig
	GPT             GPTConfig
	Redis           RedisConfig
	Server          ServerConfig
	App             AppConfig
	Log             LogConfig
	ShutdownTimeout time.Duration
}

type TelegramConfig struct {
	Token string
	Debug bool
}

type DBConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
}

// GPTConfig configures the chat-completion client. BaseURL is only set for
// compatible gateways and tests.
type GPTConfig struct {
	APIKey        string
	Model         string
	BaseURL       string
	Timeout       time.Duration
	MaxTokens     int
	Temperature   float32
	RateLimitWait time.Duration
	// RequestsPerMinute caps outgoing completions; 0 disables the limiter.
	RequestsPerMinute int
}

type RedisConfig struct {
	Enabled    bool
	Addr       string
	Password   string
	DB         int
	SessionTTL time.Duration
}

type ServerConfig struct {
	Port           string
	AllowedOrigins []string
}

type AppConfig struct {
	TimeZone    string
	SeedRecipes bool
	Development bool
}

type LogConfig struct {
	Level string
}

// Location resolves App.TimeZone, falling back to UTC when it is empty.
func (a AppConfig) Location() (*time.Location, error) {
	if a.TimeZone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(a.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid App.TimeZone %q: %w", a.TimeZone, err)
	}
	return loc, nil
}

var searchPaths = []string{".", "./config", "../config", "$HOME/.bodari"}

// Load loads the configuration
func Load() (*Config, error) {
	return LoadFrom(searchPaths...)
}

// LoadFrom looks for config.yaml or config.json in paths. Without a config
// file the configuration is built from environment variables.
func LoadFrom(paths ...string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		return fromEnv(), nil
	}

	// Process any ${ENV_VAR} syntax in the config values
	for _, key := range v.AllKeys() {
		value := v.GetString(key)
		if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
			envVar := strings.TrimPrefix(strings.TrimSuffix(value, "}"), "${")
			if envValue := os.Getenv(envVar); envValue != "" {
				v.Set(key, envValue)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ShutdownTimeout", 10*time.Second)
	v.SetDefault("GPT.Model", "gpt-4")
	v.SetDefault("GPT.Timeout", 60*time.Second)
	v.SetDefault("GPT.MaxTokens", 2500)
	v.SetDefault("GPT.Temperature", 0.7)
	v.SetDefault("GPT.RateLimitWait", 20*time.Second)
	v.SetDefault("GPT.RequestsPerMinute", 20)
	v.SetDefault("Server.Port", "8080")
	v.SetDefault("Server.AllowedOrigins", []string{"http://localhost:3000"})
	v.SetDefault("DB.Host", "localhost")
	v.SetDefault("DB.Port", "5432")
	v.SetDefault("DB.SSLMode", "disable")
	v.SetDefault("DB.MaxOpenConns", 20)
	v.SetDefault("DB.MaxIdleConns", 10)
	v.SetDefault("DB.ConnLifetime", 5*time.Minute)
	v.SetDefault("Redis.Addr", "localhost:6379")
	v.SetDefault("Redis.SessionTTL", 24*time.Hour)
	v.SetDefault("App.TimeZone", "UTC")
	v.SetDefault("App.SeedRecipes", true)
	v.SetDefault("Log.Level", "info")
}

func fromEnv() *Config {
	cfg := &Config{}

	cfg.Telegram.Token = os.Getenv("TELEGRAM_TOKEN")
	cfg.Telegram.Debug = getBoolOr("TELEGRAM_DEBUG", false)
	cfg.DB.Host = getEnvOr("DB_HOST", "localhost")
	cfg.DB.Port = getEnvOr("DB_PORT", "5432")
	cfg.DB.User = getEnvOr("DB_USER", "postgres")
	cfg.DB.Password = getEnvOr("DB_PASSWORD", "postgres")
	cfg.DB.DBName = getEnvOr("DB_NAME", "bodari")
	cfg.DB.SSLMode = getEnvOr("DB_SSL_MODE", "disable")
	cfg.DB.MaxOpenConns = getIntOr("DB_MAX_OPEN_CONNS", 20)
	cfg.DB.MaxIdleConns = getIntOr("DB_MAX_IDLE_CONNS", 10)
	cfg.DB.ConnLifetime = getDurationOr("DB_CONN_LIFETIME", 5*time.Minute)
	cfg.GPT.APIKey = os.Getenv("GPT_API_KEY")
	cfg.GPT.Model = getEnvOr("GPT_MODEL", "gpt-4")
	cfg.GPT.BaseURL = os.Getenv("GPT_BASE_URL")
	cfg.GPT.Timeout = getDurationOr("GPT_TIMEOUT", 60*time.Second)
	cfg.GPT.MaxTokens = getIntOr("GPT_MAX_TOKENS", 2500)
	cfg.GPT.Temperature = float32(getFloatOr("GPT_TEMPERATURE", 0.7))
	cfg.GPT.RateLimitWait = getDurationOr("GPT_RATE_LIMIT_WAIT", 20*time.Second)
	cfg.GPT.RequestsPerMinute = getIntOr("GPT_REQUESTS_PER_MINUTE", 20)
	cfg.Redis.Enabled = getBoolOr("REDIS_ENABLED", false)
	cfg.Redis.Addr = getEnvOr("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	cfg.Redis.DB = getIntOr("REDIS_DB", 0)
	cfg.Redis.SessionTTL = getDurationOr("REDIS_SESSION_TTL", 24*time.Hour)
	cfg.Server.Port = getEnvOr("SERVER_PORT", "8080")
	cfg.Server.AllowedOrigins = strings.Split(getEnvOr("SERVER_ALLOWED_ORIGINS", "http://localhost:3000"), ",")
	cfg.App.TimeZone = getEnvOr("APP_TIMEZONE", "UTC")
	cfg.App.SeedRecipes = getBoolOr("APP_SEED_RECIPES", true)
	cfg.App.Development = getBoolOr("APP_DEVELOPMENT", false)
	cfg.Log.Level = getEnvOr("LOG_LEVEL", "info")
	cfg.ShutdownTimeout = getDurationOr("SHUTDOWN_TIMEOUT", 10*time.Second)

	return cfg
}

// Validate reports every missing critical key at once.
func (c *Config) Validate() error {
	var missing []string
	if c.Telegram.Token == "" {
		missing = append(missing, "Telegram.Token")
	}
	if c.GPT.APIKey == "" {
		missing = append(missing, "GPT.APIKey")
	}
	if c.DB.Host == "" || c.DB.DBName == "" {
		missing = append(missing, "DB.Host/DB.DBName")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		missing = append(missing, "Redis.Addr")
	}
	if len(missing) > 0 {
		return fmt.Errorf("configuration incomplete: missing %s", strings.Join(missing, ", "))
	}
	if _, err := c.App.Location(); err != nil {
		return err
	}
	return nil
}

// Helper function to get environment variable with default value
func getEnvOr(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOr(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

func getFloatOr(key string, defaultValue float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return defaultValue
}

func getBoolOr(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultValue
}

func getDurationOr(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultValue
}
