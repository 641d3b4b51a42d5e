package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s
	RequestTimeout  time.Duration // per-request timeout (ex: 15s)

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Database
	DBDriver string // "sqlite" | "postgres"
	DBDSN    string // sqlite file path or postgres URL

	// PublicURL is the externally reachable base URL, used to build
	// links in mail and the OIDC redirect target (ex: https://marque.domain.ext)
	PublicURL string

	// Auth
	JWTSecret string        // HMAC key for bearer tokens
	TokenTTL  time.Duration // bearer token lifetime (default: 12h)
	ResetTTL  time.Duration // password reset token lifetime (default: 1h)

	// OIDC (optional, enabled when client id + auth url are set)
	OIDCClientID     string
	OIDCClientSecret string
	OIDCAuthURL      string
	OIDCTokenURL     string
	OIDCUserinfoURL  string
	OIDCScopes       []string // default: openid, profile, email
	OIDCEmailClaim   string   // gjson path into the userinfo document
	OIDCNameClaim    string   // gjson path into the userinfo document

	// SMTP (optional, empty host = outgoing mail disabled)
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string

	// Redis (optional, empty addr = per-process rate limit buckets)
	RedisAddr     string
	RedisUser     string
	RedisPassword string
	RedisDB       int
	RedisDT       time.Duration // dial timeout
	RedisRT       time.Duration // read timeout
	RedisWT       time.Duration // write timeout
	RedisPoolSize int

	// Rate limiting (per client IP)
	APIBurst      int // burst for /api routes
	APIPerMin     int // refill per minute for /api routes
	ForwardBurst  int // burst for the public forwarding route
	ForwardPerMin int // refill per minute for the public forwarding route

	// JanitorInterval is how often expired reset tokens and OIDC
	// states are swept (default: 1h).
	JanitorInterval time.Duration

	AllowedHosts []string // optional, restrict access to specific Host headers
	AdminCIDRs   []string // optional, restrict /api/admin and /infra to these IPs/CIDRs
	TrustProxy   bool     // true => trust X-Forwarded-For headers
}

// Load builds the configuration from, in order of precedence:
// process environment, .env file, optional YAML file named by
// MARQUE_CONFIG (flat "ENV_KEY: value" entries), built-in defaults.
func Load() *Config {
	_ = godotenv.Load()

	if path := os.Getenv("MARQUE_CONFIG"); path != "" {
		if err := loadFile(path); err != nil {
			panic(fmt.Sprintf("❌ FATAL: Failed to load config file %s: %v", path, err))
		}
	}

	cfg := &Config{
		// Server settings
		ListenPort:      getenv("MARQUE_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("MARQUE_SHUTDOWN_TIMEOUT", 5*time.Second),
		RequestTimeout:  mustDuration("MARQUE_REQUEST_TIMEOUT", 15*time.Second),

		// Logging
		LogLevel:  getenv("MARQUE_LOG_LEVEL", "info"),
		PrettyLog: mustBool("MARQUE_PRETTY_LOG", false),

		// Database
		DBDriver: getenv("MARQUE_DB_DRIVER", "sqlite"),
		DBDSN:    getenv("MARQUE_DB_DSN", "marque.db"),

		PublicURL: strings.TrimRight(requireEnv("MARQUE_PUBLIC_URL"), "/"),

		// Auth
		JWTSecret: requireEnv("MARQUE_JWT_SECRET"),
		TokenTTL:  mustDuration("MARQUE_TOKEN_TTL", 12*time.Hour),
		ResetTTL:  mustDuration("MARQUE_RESET_TTL", time.Hour),

		// OIDC
		OIDCClientID:     getenv("MARQUE_OIDC_CLIENT_ID", ""),
		OIDCClientSecret: getenv("MARQUE_OIDC_CLIENT_SECRET", ""),
		OIDCAuthURL:      getenv("MARQUE_OIDC_AUTH_URL", ""),
		OIDCTokenURL:     getenv("MARQUE_OIDC_TOKEN_URL", ""),
		OIDCUserinfoURL:  getenv("MARQUE_OIDC_USERINFO_URL", ""),
		OIDCScopes:       getenvSlice("MARQUE_OIDC_SCOPES", []string{"openid", "profile", "email"}),
		OIDCEmailClaim:   getenv("MARQUE_OIDC_EMAIL_CLAIM", "email"),
		OIDCNameClaim:    getenv("MARQUE_OIDC_NAME_CLAIM", "name"),

		// SMTP
		SMTPHost:     getenv("MARQUE_SMTP_HOST", ""),
		SMTPPort:     getenvInt("MARQUE_SMTP_PORT", 587),
		SMTPUser:     getenv("MARQUE_SMTP_USERNAME", ""),
		SMTPPassword: getenv("MARQUE_SMTP_PASSWORD", ""),
		SMTPFrom:     getenv("MARQUE_SMTP_FROM", ""),

		// Redis
		RedisAddr:     getenv("MARQUE_REDIS_ADDR", ""),
		RedisUser:     getenv("MARQUE_REDIS_USERNAME", "default"),
		RedisPassword: getenv("MARQUE_REDIS_PASSWORD", ""),
		RedisDB:       getenvInt("MARQUE_REDIS_DB", 0),
		RedisDT:       mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:       mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:       mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisPoolSize: getenvInt("REDIS_POOL_SIZE", 10),

		// Rate limiting
		APIBurst:      getenvInt("MARQUE_API_RATE_BURST", 60),
		APIPerMin:     getenvInt("MARQUE_API_RATE_PER_MIN", 120),
		ForwardBurst:  getenvInt("MARQUE_FORWARD_RATE_BURST", 10),
		ForwardPerMin: getenvInt("MARQUE_FORWARD_RATE_PER_MIN", 30),

		JanitorInterval: mustDuration("MARQUE_JANITOR_INTERVAL", time.Hour),

		// Access restrictions
		AllowedHosts: getenvSlice("MARQUE_ALLOWED_HOSTS", nil),
		AdminCIDRs:   getenvSlice("MARQUE_ADMIN_CIDRS", nil),
		TrustProxy:   mustBool("MARQUE_TRUST_PROXY", false),
	}

	if cfg.DBDriver != "sqlite" && cfg.DBDriver != "postgres" {
		panic(fmt.Sprintf("❌ FATAL: MARQUE_DB_DRIVER must be \"sqlite\" or \"postgres\", got %q", cfg.DBDriver))
	}

	if cfg.SMTPHost != "" && cfg.SMTPFrom == "" {
		panic("❌ FATAL: MARQUE_SMTP_FROM is required when MARQUE_SMTP_HOST is set")
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.JWTSecret = "***REDACTED***"
		cfgCopy.OIDCClientSecret = "***REDACTED***"
		cfgCopy.SMTPPassword = "***REDACTED***"
		cfgCopy.RedisPassword = "***REDACTED***"
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// OIDCEnabled reports whether the OIDC login flow is configured.
func (c *Config) OIDCEnabled() bool {
	return c.OIDCClientID != "" && c.OIDCAuthURL != "" && c.OIDCTokenURL != ""
}

// MailEnabled reports whether outgoing mail is configured.
func (c *Config) MailEnabled() bool {
	return c.SMTPHost != ""
}

// RedisEnabled reports whether the shared rate-limit store is configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

// fileVals holds entries from the optional YAML config file. Process
// environment always wins over the file.
var fileVals map[string]string

func loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	vals := make(map[string]string)
	if err := yaml.Unmarshal(raw, &vals); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	fileVals = vals
	return nil
}

// lookup resolves a key from the environment first, then the config file.
func lookup(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fileVals[key]
}

// helpers
func getenv(key, def string) string {
	if v := lookup(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := lookup(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := lookup(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getenvSlice(key string, def []string) []string {
	if v := lookup(key); v != "" {
		return splitAndTrim(v)
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := lookup(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := lookup(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
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
