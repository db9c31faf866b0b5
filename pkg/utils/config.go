package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const devSessionSecret = "dev-session-secret-change-me"

// Config is everything the api server reads from the environment.
type Config struct {
	DatabaseURL string

	RatingsAPIKey  string
	RatingsBaseURL string
	RatingsTimeout time.Duration

	HTTPAddr string
	GinMode  string

	SessionSecret       string
	SessionTTL          time.Duration
	SessionCookieSecure bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CORSAllowedOrigins []string

	LogLevel  string
	LogFormat string
}

// Load reads .env files (if present) and the process environment.
// DATABASE_URL and the rating API key are required.
func Load() (Config, error) {
	loadEnvFiles()
	v := newViper()

	cfg := Config{
		DatabaseURL:         strings.TrimSpace(v.GetString("database_url")),
		RatingsAPIKey:       strings.TrimSpace(v.GetString("ratings_api_key")),
		RatingsBaseURL:      strings.TrimRight(v.GetString("ratings_base_url"), "/"),
		RatingsTimeout:      v.GetDuration("ratings_timeout"),
		HTTPAddr:            v.GetString("http_addr"),
		GinMode:             v.GetString("gin_mode"),
		SessionSecret:       v.GetString("session_secret"),
		SessionTTL:          v.GetDuration("session_ttl"),
		SessionCookieSecure: v.GetBool("session_cookie_secure"),
		RedisAddr:           strings.TrimSpace(v.GetString("redis_addr")),
		RedisPassword:       v.GetString("redis_password"),
		RedisDB:             v.GetInt("redis_db"),
		CORSAllowedOrigins:  splitList(v.GetString("cors_allowed_origins")),
		LogLevel:            v.GetString("log_level"),
		LogFormat:           v.GetString("log_format"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	if cfg.SessionSecret == "" {
		cfg.SessionSecret = devSessionSecret
	}
	return cfg, nil
}

// LoadDatabaseURL is the subset used by the catalog tools.
func LoadDatabaseURL() (string, error) {
	loadEnvFiles()
	v := newViper()
	u := strings.TrimSpace(v.GetString("database_url"))
	if u == "" {
		return "", fmt.Errorf("DATABASE_URL is not set")
	}
	return u, nil
}

func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is not set")
	}
	if c.RatingsAPIKey == "" {
		return fmt.Errorf("RATINGS_API_KEY (or GOODREADS_KEY) is not set")
	}
	if c.RatingsTimeout <= 0 {
		return fmt.Errorf("RATINGS_TIMEOUT must be positive")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.GinMode == "release" && c.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET is required in release mode")
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	_ = v.BindEnv("ratings_api_key", "RATINGS_API_KEY", "GOODREADS_KEY")

	v.SetDefault("ratings_base_url", "https://www.goodreads.com")
	v.SetDefault("ratings_timeout", "5s")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("gin_mode", "debug")
	v.SetDefault("session_ttl", "24h")
	v.SetDefault("session_cookie_secure", false)
	v.SetDefault("redis_db", 0)
	v.SetDefault("cors_allowed_origins", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	return v
}

// loadEnvFiles never overrides variables already set in the environment.
func loadEnvFiles() {
	for _, name := range []string{".env.local", ".env"} {
		if _, err := os.Stat(name); err == nil {
			_ = godotenv.Load(name)
			continue
		}
		cwd, err := os.Getwd()
		if err != nil {
			continue
		}
		parent := filepath.Join(filepath.Dir(cwd), name)
		if _, err := os.Stat(parent); err == nil {
			_ = godotenv.Load(parent)
		}
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
