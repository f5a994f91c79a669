// Package config handles application configuration using Viper.
// Viper supports YAML files, environment variables, and defaults, merged in priority order.
// Go convention: configuration is loaded into structs, not accessed as raw key-value pairs.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingAPIKey is returned by Validate when the selected provider has no credential.
// A missing key is a startup problem, never a per-request classification error.
var ErrMissingAPIKey = errors.New("missing API key for LLM provider")

// Config is the root configuration struct. Nested structs organize related settings.
// `mapstructure` tags tell Viper how to map YAML/env keys to struct fields.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Auth      AuthConfig      `mapstructure:"auth"`
	CORS      CORSConfig      `mapstructure:"cors"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Camera    CameraConfig    `mapstructure:"camera"`
	Capture   CaptureConfig   `mapstructure:"capture"`
	UI        UIConfig        `mapstructure:"ui"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type StorageConfig struct {
	// Driver is "sqlite3" (default) or "pgx" for PostgreSQL.
	Driver       string `mapstructure:"driver"`
	DatabasePath string `mapstructure:"database_path"`
	DatabaseURL  string `mapstructure:"database_url"`
	// KeepImages archives every classified image under ImageDir.
	KeepImages bool   `mapstructure:"keep_images"`
	ImageDir   string `mapstructure:"image_dir"`
	// ImageRetentionDays bounds the archive; 0 keeps images forever.
	ImageRetentionDays int `mapstructure:"image_retention_days"`
}

type AuthConfig struct {
	APIKeys   []string `mapstructure:"api_keys"`
	AdminKeys []string `mapstructure:"admin_keys"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LLMConfig struct {
	// Provider selects exactly one backend: "gemini", "openai" or "anthropic".
	// There is no fallback chain: each classification is a single external call.
	Provider      string         `mapstructure:"provider"`
	Gemini        ProviderConfig `mapstructure:"gemini"`
	OpenAI        ProviderConfig `mapstructure:"openai"`
	Anthropic     ProviderConfig `mapstructure:"anthropic"`
	Temperature   float32        `mapstructure:"temperature"`
	Language      string         `mapstructure:"language"`
	RatePerMinute int            `mapstructure:"rate_per_minute"`
	TimeoutSecs   int            `mapstructure:"timeout_seconds"`
}

type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// CameraDevice declares one capture device. Facing is "rear", "front" or "external".
type CameraDevice struct {
	ID     int    `mapstructure:"id"`
	Facing string `mapstructure:"facing"`
}

type CameraConfig struct {
	Devices     []CameraDevice `mapstructure:"devices"`
	JPEGQuality int            `mapstructure:"jpeg_quality"`
	// WarmupFrames are read and dropped before the still frame (auto-exposure settles).
	WarmupFrames int `mapstructure:"warmup_frames"`
}

type CaptureConfig struct {
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
	// SessionIdleMinutes is how long an untouched session lives before the janitor closes it.
	SessionIdleMinutes int `mapstructure:"session_idle_minutes"`
}

type UIConfig struct {
	Language string `mapstructure:"language"`
}

type TelegramConfig struct {
	Token   string `mapstructure:"token"`
	Debug   bool   `mapstructure:"debug"`
	Timeout int    `mapstructure:"timeout"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from a YAML file and environment variables.
// In Go, functions return errors as the last return value; callers must check them.
// This pattern replaces try/catch: if err != nil { handle it }.
func Load(configPath string) (*Config, error) {
	// .env is optional; a missing file is the normal production case.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()

	// Set defaults: these apply when neither file nor env provides a value
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("storage.driver", "sqlite3")
	v.SetDefault("storage.database_path", "./storage/ecosort.db")
	v.SetDefault("storage.keep_images", false)
	v.SetDefault("storage.image_dir", "./storage/images")
	v.SetDefault("storage.image_retention_days", 30)
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.gemini.model", "gemini-2.5-flash")
	v.SetDefault("llm.openai.model", "gpt-4o")
	v.SetDefault("llm.anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.language", "vi")
	v.SetDefault("llm.rate_per_minute", 30)
	v.SetDefault("llm.timeout_seconds", 60)
	v.SetDefault("camera.devices", []map[string]any{{"id": 0, "facing": "rear"}})
	v.SetDefault("camera.jpeg_quality", 90)
	v.SetDefault("camera.warmup_frames", 5)
	v.SetDefault("capture.max_upload_bytes", 10<<20)
	v.SetDefault("capture.session_idle_minutes", 15)
	v.SetDefault("ui.language", "vi")
	v.SetDefault("telegram.timeout", 60)
	v.SetDefault("rate_limit.requests_per_second", 2)
	v.SetDefault("rate_limit.burst", 5)
	v.SetDefault("log.level", "info")

	// Read from YAML config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Read config file (ignore "not found": defaults + env are enough)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// Environment variables override everything.
	// ECOSORT_ prefix + nested keys: ECOSORT_SERVER_PORT=9090 → server.port=9090
	v.SetEnvPrefix("ECOSORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Credentials also come from the conventional vendor variable names.
	// BindEnv takes the key first, then env names in priority order.
	_ = v.BindEnv("llm.gemini.api_key", "ECOSORT_LLM_GEMINI_API_KEY", "GEMINI_API_KEY", "API_KEY")
	_ = v.BindEnv("llm.openai.api_key", "ECOSORT_LLM_OPENAI_API_KEY", "OPENAI_API_KEY", "API_KEY")
	_ = v.BindEnv("llm.anthropic.api_key", "ECOSORT_LLM_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY", "API_KEY")
	_ = v.BindEnv("telegram.token", "ECOSORT_TELEGRAM_TOKEN", "TELEGRAM_BOT_TOKEN")
	_ = v.BindEnv("storage.database_url", "ECOSORT_STORAGE_DATABASE_URL", "DATABASE_URL")

	// Unmarshal into our Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Validate checks settings that must be right before anything starts.
func (c *Config) Validate() error {
	p, err := c.LLM.Selected()
	if err != nil {
		return err
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return fmt.Errorf("%w %q: set ECOSORT_LLM_%s_API_KEY", ErrMissingAPIKey, c.LLM.Provider, strings.ToUpper(c.LLM.Provider))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be within [0,2], got %v", c.LLM.Temperature)
	}
	if c.Camera.JPEGQuality < 1 || c.Camera.JPEGQuality > 100 {
		return fmt.Errorf("camera.jpeg_quality must be within [1,100], got %d", c.Camera.JPEGQuality)
	}
	switch c.Storage.Driver {
	case "sqlite3", "pgx":
	default:
		return fmt.Errorf("unknown storage driver: %s", c.Storage.Driver)
	}
	return nil
}

// Selected returns the settings of the configured provider.
func (l LLMConfig) Selected() (ProviderConfig, error) {
	switch l.Provider {
	case "gemini":
		return l.Gemini, nil
	case "openai":
		return l.OpenAI, nil
	case "anthropic":
		return l.Anthropic, nil
	default:
		return ProviderConfig{}, fmt.Errorf("unknown LLM provider: %q", l.Provider)
	}
}

// Address returns the listen address string like "0.0.0.0:8080".
// This is a method on ServerConfig. Go attaches methods to types via receiver syntax.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DSN returns the data source name for the configured driver.
func (s StorageConfig) DSN() string {
	if s.Driver == "pgx" {
		return s.DatabaseURL
	}
	return s.DatabasePath
}
