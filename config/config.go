package config

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/zalando/go-keyring"
)

// KeyringService is the OS keyring service name holding the LLM API key.
const (
	KeyringService = "openmanus"
	KeyringUser    = "llm-api-key"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	LLM       LLMConfig
	Browser   BrowserConfig
	Fetch     FetchConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	History   HistoryConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 3000
	Mode string // "debug", "release", "test"; default: "release"

	// TrustedProxies lists proxy CIDRs whose X-Forwarded-For is honoured when
	// resolving the client IP. Empty trusts none.
	TrustedProxies []string

	// AllowedOrigins for CORS; "*" allows any origin.
	AllowedOrigins []string // default: ["*"]

	// MaxBodyBytes caps JSON request bodies.
	MaxBodyBytes int64 // default: 10 MB
}

// LLMConfig controls the OpenAI-compatible chat completion client.
type LLMConfig struct {
	// APIKey is the upstream credential. Empty means the AI service is unconfigured.
	APIKey string

	// BaseURL is the API root; "/chat/completions" is appended by the client.
	BaseURL string // default: "https://api.mistral.ai/v1"

	Model       string        // default: "mistral-large-latest"
	Temperature float32       // default: 0.7
	MaxTokens   int           // default: 4000
	Timeout     time.Duration // default: 30s
}

// BrowserConfig controls the shared Rod browser.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: true

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Stealth injects anti-bot-detection evasions into every page.
	Stealth bool // default: false

	// NavigationTimeout is the hard deadline for one advanced extraction.
	NavigationTimeout time.Duration // default: 30s

	// IdleTimeout bounds the wait-for-network-idle step.
	IdleTimeout time.Duration // default: 10s
}

// FetchConfig controls the static HTML fetcher.
type FetchConfig struct {
	UserAgent string        // identifying User-Agent for fetches and browser pages
	Timeout   time.Duration // default: 10s

	// MaxBodyBytes caps the response body read.
	MaxBodyBytes int64 // default: 10 MB

	// RespectRobots enables robots.txt checks before fetching.
	RespectRobots bool // default: false

	// HostRPS and HostBurst pace outbound fetches per target host.
	HostRPS   float64 // default: 5
	HostBurst int     // default: 10
}

// RateLimitConfig controls the per-IP fixed-window request gate.
type RateLimitConfig struct {
	Points int           // default: 10
	Window time.Duration // default: 60s
}

// CacheConfig controls the basic-scrape response cache.
type CacheConfig struct {
	MaxEntries int // default: 500
}

// HistoryConfig controls the server-side chat history store.
type HistoryConfig struct {
	// MaxSessions caps the number of tracked sessions.
	MaxSessions int // default: 1000
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Load reads configuration from the environment, after loading an optional
// .env file, with sane defaults.
func Load() *Config {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Host: envOr("OPENMANUS_HOST", "0.0.0.0"),
			Port: envIntOr("PORT", envIntOr("OPENMANUS_PORT", 3000)),
			Mode: envOr("OPENMANUS_MODE", "release"),

			TrustedProxies: envListOr("OPENMANUS_TRUSTED_PROXIES", nil),
			AllowedOrigins: envListOr("OPENMANUS_CORS_ORIGINS", []string{"*"}),
			MaxBodyBytes:   int64(envIntOr("OPENMANUS_MAX_BODY_BYTES", 10*1024*1024)),
		},
		LLM: LLMConfig{
			APIKey:      lookupAPIKey(),
			BaseURL:     envOr("OPENMANUS_LLM_BASE_URL", "https://api.mistral.ai/v1"),
			Model:       envOr("OPENMANUS_LLM_MODEL", "mistral-large-latest"),
			Temperature: float32(envFloatOr("OPENMANUS_LLM_TEMPERATURE", 0.7)),
			MaxTokens:   envIntOr("OPENMANUS_LLM_MAX_TOKENS", 4000),
			Timeout:     envDurationOr("OPENMANUS_LLM_TIMEOUT", 30*time.Second),
		},
		Browser: BrowserConfig{
			Headless:          envBoolOr("OPENMANUS_HEADLESS", true),
			NoSandbox:         envBoolOr("OPENMANUS_NO_SANDBOX", true),
			BrowserBin:        os.Getenv("OPENMANUS_BROWSER_BIN"),
			Stealth:           envBoolOr("OPENMANUS_STEALTH", false),
			NavigationTimeout: envDurationOr("OPENMANUS_NAV_TIMEOUT", 30*time.Second),
			IdleTimeout:       envDurationOr("OPENMANUS_IDLE_TIMEOUT", 10*time.Second),
		},
		Fetch: FetchConfig{
			UserAgent:     envOr("OPENMANUS_USER_AGENT", defaultUserAgent),
			Timeout:       envDurationOr("OPENMANUS_FETCH_TIMEOUT", 10*time.Second),
			MaxBodyBytes:  int64(envIntOr("OPENMANUS_FETCH_MAX_BYTES", 10*1024*1024)),
			RespectRobots: envBoolOr("OPENMANUS_RESPECT_ROBOTS", false),
			HostRPS:       envFloatOr("OPENMANUS_HOST_RPS", 5),
			HostBurst:     envIntOr("OPENMANUS_HOST_BURST", 10),
		},
		RateLimit: RateLimitConfig{
			Points: envIntOr("OPENMANUS_RATE_POINTS", 10),
			Window: envDurationOr("OPENMANUS_RATE_WINDOW", 60*time.Second),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("OPENMANUS_CACHE_MAX_ENTRIES", 500),
		},
		History: HistoryConfig{
			MaxSessions: envIntOr("OPENMANUS_HISTORY_SESSIONS", 1000),
		},
		Log: LogConfig{
			Level:  envOr("OPENMANUS_LOG_LEVEL", "info"),
			Format: envOr("OPENMANUS_LOG_FORMAT", "json"),
		},
	}
}

// lookupAPIKey prefers the environment and falls back to the OS keyring.
func lookupAPIKey() string {
	for _, key := range []string{"MISTRAL_API_KEY", "OPENMANUS_LLM_API_KEY"} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	secret, err := keyring.Get(KeyringService, KeyringUser)
	if err != nil {
		if !errors.Is(err, keyring.ErrNotFound) {
			slog.Debug("keyring lookup failed", "error", err)
		}
		return ""
	}
	return strings.TrimSpace(secret)
}

// StoreAPIKey saves the LLM API key in the OS keyring.
func StoreAPIKey(secret string) error {
	return keyring.Set(KeyringService, KeyringUser, strings.TrimSpace(secret))
}

// DeleteAPIKey removes the LLM API key from the OS keyring.
func DeleteAPIKey() error {
	err := keyring.Delete(KeyringService, KeyringUser)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envListOr(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
