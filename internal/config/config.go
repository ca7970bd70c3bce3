package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s
	RequestTimeout  time.Duration // per-request timeout applied by the router

	LogLevel      string // "debug" | "info" | "warn" | "error"
	PrettyLog     bool   // true => zap dev (color), false => zap prod (JSON)
	LogFile       string // optional rotating JSON log file
	LogMaxSizeMB  int
	LogMaxBackups int

	DatastoreFile  string        // path to bookmarks.yaml
	LockTimeout    time.Duration // how long a writer waits for the datastore lock
	ReloadInterval time.Duration // periodic datastore reload
	WatchDatastore bool          // reload on file changes (fsnotify)

	TagSeparator   string // separator used to render and parse tag lists
	DefaultPerPage int    // page size when the request does not set one
	APISecret      string // bearer token granting the authenticated view

	// Redis (optional, empty address disables the mirror and the tag cloud cache)
	RedisAddr           string        // ex: "localhost:6379"
	RedisUser           string        // optional
	RedisPassword       string        // optional
	RedisDB             int           // Redis DB number
	RedisDT             time.Duration // Redis dial timeout (ex: 5s)
	RedisRT             time.Duration // Redis read timeout (ex: 3s)
	RedisWT             time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait        time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout    time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize       int           // Redis connection pool size
	RedisConnectTimeout time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval  time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold  int           // warn after this many attempts
	TagCloudTTL         time.Duration // lifetime of a cached tag cloud

	AllowedHosts []string // optional, restrict access to specific Host headers
	AllowedCIDRS []string // optional, restrict admin endpoints to specific IPs/CIDRs
	TrustProxy   bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)

	RateLimitBurst  int // requests allowed in a burst, per client IP
	RateLimitRefill int // tokens refilled per minute, per client IP
}

// Load reads the configuration from the environment. Variables found in the
// given .env files (default ".env") are applied first, without overriding
// what is already set. A missing .env file is not an error.
func Load(envFiles ...string) *Config {
	if err := loadDotEnv(envFiles...); err != nil {
		panic(fmt.Sprintf("❌ FATAL: cannot read env file: %v", err))
	}

	cfg := &Config{
		// Server settings
		ListenPort:      getenv("MARKS_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("MARKS_SHUTDOWN_TIMEOUT", 5*time.Second),
		RequestTimeout:  mustDuration("MARKS_REQUEST_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:      getenv("MARKS_LOG_LEVEL", "info"),
		PrettyLog:     mustBool("MARKS_PRETTY_LOG", true),
		LogFile:       getenv("MARKS_LOG_FILE", ""),
		LogMaxSizeMB:  getenvInt("MARKS_LOG_MAX_SIZE_MB", 10),
		LogMaxBackups: getenvInt("MARKS_LOG_MAX_BACKUPS", 5),

		// Datastore
		DatastoreFile:  getenv("MARKS_DATASTORE_FILE", "/data/bookmarks.yaml"),
		LockTimeout:    mustDuration("MARKS_LOCK_TIMEOUT", 5*time.Second),
		ReloadInterval: mustDuration("MARKS_RELOAD_INTERVAL", time.Hour),
		WatchDatastore: mustBool("MARKS_WATCH_DATASTORE", true),

		// Search
		TagSeparator:   getenvRaw("MARKS_TAG_SEPARATOR", " "),
		DefaultPerPage: getenvInt("MARKS_DEFAULT_PAGE_SIZE", 20),
		APISecret:      requireEnv("MARKS_API_SECRET"),

		// Redis settings
		RedisAddr:           getenv("MARKS_REDIS_ADDR", ""),
		RedisUser:           getenv("MARKS_REDIS_USERNAME", "default"),
		RedisPassword:       getenv("MARKS_REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("MARKS_REDIS_DB", 0),
		RedisDT:             mustDuration("MARKS_REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:             mustDuration("MARKS_REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:             mustDuration("MARKS_REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:        mustDuration("MARKS_REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:    mustDuration("MARKS_REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:       getenvInt("MARKS_REDIS_POOL_SIZE", 10),
		RedisConnectTimeout: mustDuration("MARKS_REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:  mustDuration("MARKS_REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:  getenvInt("MARKS_REDIS_WARN_THRESHOLD", 3),
		TagCloudTTL:         mustDuration("MARKS_TAGCLOUD_TTL", 10*time.Minute),

		// Access restrictions
		AllowedHosts: splitAndTrim(getenv("MARKS_ALLOWED_HOSTS", "")),
		AllowedCIDRS: parseAllowedIPs(getenv("MARKS_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("MARKS_TRUST_PROXY", false),

		RateLimitBurst:  getenvInt("MARKS_RATE_LIMIT_BURST", 60),
		RateLimitRefill: getenvInt("MARKS_RATE_LIMIT_REFILL", 120),
	}

	if cfg.DefaultPerPage < 1 {
		panic(fmt.Sprintf("❌ FATAL: MARKS_DEFAULT_PAGE_SIZE must be positive, got %d", cfg.DefaultPerPage))
	}
	if cfg.TagSeparator == "" {
		panic("❌ FATAL: MARKS_TAG_SEPARATOR cannot be empty")
	}

	return cfg
}

// Redacted returns a copy safe to print in debug logs.
func (c Config) Redacted() Config {
	c.APISecret = "***REDACTED***"
	if c.RedisPassword != "" {
		c.RedisPassword = "***REDACTED***"
	}
	return c
}

func loadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// helpers
func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// getenvRaw keeps surrounding whitespace, a space is a valid tag separator.
func getenvRaw(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
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
