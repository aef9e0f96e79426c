package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

type Config struct {
	ListenPort      string        // ex: "127.0.0.1:8787"
	ShutdownTimeout time.Duration // ex: 5s
	RequestTimeout  time.Duration // per-request deadline for the HTTP API (captures run past it)

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	SettingsFile           string        // optional YAML file seeding the Feishu settings on startup (empty = disabled)
	SettingsReloadInterval time.Duration // how often the settings file is checked for changes (0 = startup only)

	// Feishu
	FeishuBaseURL     string        // open API base (override for tests/mocks)
	FeishuTimeout     time.Duration // timeout of a single open API call (default: 10s)
	TokenSafetyMargin time.Duration // refresh a cached token this long before it expires (default: 5m)
	DirectTokenTTL    time.Duration // lifetime assumed for a configured tenant token (default: 2h)

	// Sync
	RetryBaseDelay   time.Duration // first backoff wait between write attempts (default: 1s)
	RetryMaxDelay    time.Duration // cap of a single backoff wait (default: 8s)
	CaptureTimeout   time.Duration // bound on the remote phase of one capture (default: 1m)
	FieldsCacheTTL   time.Duration // column list cache lifetime (default: 1h)
	ResyncInterval   time.Duration // interval to replay local/failed captures (default: 1h)
	CleanupInterval  time.Duration // interval to run storage cleanup (default: 24h)
	HistoryRetention time.Duration // history entries older than this are pruned (default: 720h)

	// Storage
	StoreBackend string // "redis" | "memory"

	// Redis
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	AllowedOrigins []string // CORS origins allowed to call the API (e.g. "chrome-extension://<id>")
	AllowedHosts   []string // optional, restrict access to specific Host headers
	AllowedCIDRS   []string // optional, restrict access to specific IP (e.g. "127.0.0.1/32")
	TrustProxy     bool     // true => trust X-Forwarded-For headers
	RateBurst      int      // requests allowed in a burst per client IP
	RatePerMinute  int      // sustained requests per minute per client IP
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("BITMARK_LISTEN_PORT", "127.0.0.1:8787"),
		ShutdownTimeout: mustDuration("BITMARK_SHUTDOWN_TIMEOUT", 5*time.Second),
		RequestTimeout:  mustDuration("BITMARK_REQUEST_TIMEOUT", 15*time.Second),

		// Logging
		LogLevel:  getenv("BITMARK_LOG_LEVEL", "info"),
		PrettyLog: mustBool("BITMARK_PRETTY_LOG", true),

		SettingsFile:           getenv("BITMARK_SETTINGS_FILE", ""), // Optional, empty = no seeding
		SettingsReloadInterval: mustDuration("BITMARK_SETTINGS_RELOAD_INTERVAL", time.Minute),

		// Feishu
		FeishuBaseURL:     getenv("BITMARK_FEISHU_BASE_URL", "https://open.feishu.cn/open-apis"),
		FeishuTimeout:     mustDuration("BITMARK_FEISHU_TIMEOUT", 10*time.Second),
		TokenSafetyMargin: mustDuration("BITMARK_TOKEN_SAFETY_MARGIN", 5*time.Minute),
		DirectTokenTTL:    mustDuration("BITMARK_DIRECT_TOKEN_TTL", 2*time.Hour),

		// Sync
		RetryBaseDelay:   mustDuration("BITMARK_RETRY_BASE_DELAY", time.Second),
		RetryMaxDelay:    mustDuration("BITMARK_RETRY_MAX_DELAY", 8*time.Second),
		CaptureTimeout:   mustDuration("BITMARK_CAPTURE_TIMEOUT", time.Minute),
		FieldsCacheTTL:   mustDuration("BITMARK_FIELDS_CACHE_TTL", time.Hour),
		ResyncInterval:   mustDuration("BITMARK_RESYNC_INTERVAL", time.Hour),
		CleanupInterval:  mustDuration("BITMARK_CLEANUP_INTERVAL", 24*time.Hour),
		HistoryRetention: mustDuration("BITMARK_HISTORY_RETENTION", 30*24*time.Hour),

		StoreBackend: strings.ToLower(getenv("BITMARK_STORE", StoreRedis)),

		// Redis settings
		RedisUser:             getenv("BITMARK_REDIS_USERNAME", "default"),
		RedisPasswordRequired: mustBool("BITMARK_REDIS_PASSWORD_REQUIRED", true),
		RedisPassword:         getenv("BITMARK_REDIS_PASSWORD", ""),
		RedisDT:               mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    getenvInt("REDIS_WARN_THRESHOLD", 3),

		// Access restrictions
		AllowedOrigins: splitAndTrim(getenv("BITMARK_ALLOWED_ORIGINS", "")),
		AllowedHosts:   splitAndTrim(getenv("BITMARK_ALLOWED_HOSTS", "")),
		AllowedCIDRS:   parseAllowedIPs(getenv("BITMARK_ALLOWED_CIDRS", "127.0.0.1/32, ::1/128")),
		TrustProxy:     mustBool("BITMARK_TRUST_PROXY", false),
		RateBurst:      getenvInt("BITMARK_RATE_BURST", 30),
		RatePerMinute:  getenvInt("BITMARK_RATE_PER_MINUTE", 120),
	}

	switch cfg.StoreBackend {
	case StoreRedis:
		cfg.RedisAddr = requireEnv("BITMARK_REDIS_ADDR")
		cfg.RedisDB = requireEnvInt("BITMARK_REDIS_DB")

		// Validate Redis password configuration
		if cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
			panic("❌ FATAL: BITMARK_REDIS_PASSWORD is required when BITMARK_REDIS_PASSWORD_REQUIRED=true")
		}
	case StoreMemory:
	default:
		panic(fmt.Sprintf("❌ FATAL: BITMARK_STORE must be %q or %q, got %q", StoreRedis, StoreMemory, cfg.StoreBackend))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		log.Printf("[DEBUG] cfg: %+v\n", cfg.Redacted())
	}

	return cfg
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() Config {
	cp := *c
	if cp.RedisPassword != "" {
		cp.RedisPassword = "***REDACTED***"
	}
	if cp.RedisUser != "" {
		cp.RedisUser = "***REDACTED***"
	}
	return cp
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func requireEnvInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: Invalid integer value for %s: %s", key, v))
	}
	return i
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
