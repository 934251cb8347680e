package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"svinn/internal/core"
)

type Config struct {
	// HTTP Server
	Port string

	// Backend selection
	DataBackend string
	DataDir     string

	// SQLite
	SQLiteDBPath string

	// Postgres
	DatabaseURL string

	// AMQP (optional; clicks are applied directly when unset)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleCountersSheetName  string
	GoogleProfilesSheetName  string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Sessions and tokens. Empty keys are replaced by random ones at startup.
	SessionKey    string
	CSRFKey       string
	JWTSecret     string
	SecureCookies bool
	SessionMaxAge time.Duration

	// Dashboard
	Timezone           string
	DefaultWindowDays  int
	ChartCategoryOrder string
	FetchTimeout       time.Duration
	ApprovalCacheTTL   time.Duration

	// Kiosk ingestion
	IngestAPIKey string

	// Request hygiene
	RateLimitPerMinute int
	TrustedProxies     []string

	LogLevel string
}

// Backend names accepted by DATA_BACKEND.
var validBackends = []string{"memory", "sqlite", "postgres", "sheets"}

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8080"),

		DataBackend: getEnv("DATA_BACKEND", "memory"),
		DataDir:     getEnv("DATA_DIR", "data"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/svinn.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "svinn"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "daily_clicks"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleCountersSheetName:  getEnv("GOOGLE_COUNTERS_SHEET_NAME", "DailyClicks"),
		GoogleProfilesSheetName:  getEnv("GOOGLE_PROFILES_SHEET_NAME", "Profiles"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		SessionKey:    getEnv("SESSION_KEY", ""),
		CSRFKey:       getEnv("CSRF_KEY", ""),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		SecureCookies: getEnvBool("SECURE_COOKIES", false),
		SessionMaxAge: getEnvDuration("SESSION_MAX_AGE", 12*time.Hour),

		Timezone:           getEnv("TIMEZONE", "UTC"),
		DefaultWindowDays:  getEnvInt("DEFAULT_WINDOW_DAYS", int(core.DefaultWindow)),
		ChartCategoryOrder: getEnv("CHART_CATEGORY_ORDER", "1,2,3,4"),
		FetchTimeout:       getEnvDuration("FETCH_TIMEOUT", 10*time.Second),
		ApprovalCacheTTL:   getEnvDuration("APPROVAL_CACHE_TTL", 30*time.Second),

		IngestAPIKey: getEnv("INGEST_API_KEY", ""),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		TrustedProxies:     getEnvList("TRUSTED_PROXIES"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres backend")
		} else if u, err := url.Parse(c.DatabaseURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid DATABASE_URL: %v", err))
		} else if u.Scheme != "postgres" && u.Scheme != "postgresql" {
			errors = append(errors, fmt.Sprintf("invalid DATABASE_URL scheme '%s': must be 'postgres' or 'postgresql'", u.Scheme))
		}
	case "sheets":
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
		if c.GoogleCountersSheetName == "" || c.GoogleProfilesSheetName == "" {
			errors = append(errors, "Google counters and profiles sheet names cannot be empty")
		}
		hasJSON := c.GoogleServiceAccountJSON != ""
		hasFile := c.GoogleServiceAccountFile != ""
		if !hasJSON && !hasFile {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for sheets backend")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.SessionKey != "" && len(c.SessionKey) < 32 {
		errors = append(errors, "SESSION_KEY must be at least 32 bytes")
	}
	if c.CSRFKey != "" && len(c.CSRFKey) != 32 {
		errors = append(errors, "CSRF_KEY must be exactly 32 bytes")
	}
	if c.JWTSecret != "" && len(c.JWTSecret) < 32 {
		errors = append(errors, "JWT_SECRET must be at least 32 bytes")
	}
	if c.SessionMaxAge < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session max age %v: must be at least 1 minute", c.SessionMaxAge))
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}
	if !core.Window(c.DefaultWindowDays).Valid() {
		errors = append(errors, fmt.Sprintf("invalid default window %d: must be one of %v", c.DefaultWindowDays, core.Windows))
	}
	if _, err := core.ParseScheme(c.ChartCategoryOrder); err != nil {
		errors = append(errors, fmt.Sprintf("invalid chart category order '%s': %v", c.ChartCategoryOrder, err))
	}
	if c.FetchTimeout <= 0 || c.FetchTimeout > 2*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid fetch timeout %v: must be between 0 and 2 minutes", c.FetchTimeout))
	}
	if c.ApprovalCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid approval cache TTL %v: must not be negative", c.ApprovalCacheTTL))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}
	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid trusted proxy '%s': %v", cidr, err))
		}
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// Location returns the timezone used to compute "today".
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Scheme returns the configured chart category order.
func (c *Config) Scheme() core.Scheme {
	s, err := core.ParseScheme(c.ChartCategoryOrder)
	if err != nil {
		return core.DefaultScheme()
	}
	return s
}

// DefaultWindow returns the window shown before the user picks one.
func (c *Config) DefaultWindow() core.Window {
	w := core.Window(c.DefaultWindowDays)
	if !w.Valid() {
		return core.DefaultWindow
	}
	return w
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
