package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port     string
	LogLevel string

	// Analytics snapshot (read-only reporting store)
	AnalyticsDBPath string

	// Live ledger
	LedgerBackend     string
	LedgerDBPath      string
	LedgerPostgresDSN string

	// Sessions
	SessionSecret string
	SessionTTL    time.Duration
	SecureCookies bool

	// Reporting period defaults, 0 means current
	ReportYear  int
	ReportMonth int

	// Login username -> analytics username
	AnalyticsUserMap string

	// Upload
	UploadMaxBytes int64

	// AMQP (optional ledger sync)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets export
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

func Load() *Config {
	cfg := &Config{
		Port:     getEnv("PORT", "8081"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		AnalyticsDBPath: getEnv("ANALYTICS_DB_PATH", "./data/analytics.db"),

		LedgerBackend:     getEnv("LEDGER_BACKEND", "sqlite"),
		LedgerDBPath:      getEnv("LEDGER_DB_PATH", "./data/ledger.db"),
		LedgerPostgresDSN: getEnv("LEDGER_POSTGRES_DSN", ""),

		SessionSecret: getEnv("SESSION_SECRET", ""),
		SessionTTL:    getEnvDuration("SESSION_TTL", 24*time.Hour),
		SecureCookies: getEnvBool("COOKIE_SECURE", false),

		ReportYear:  getEnvInt("REPORT_YEAR", 0),
		ReportMonth: getEnvInt("REPORT_MONTH", 0),

		AnalyticsUserMap: getEnv("ANALYTICS_USER_MAP", ""),

		UploadMaxBytes: int64(getEnvInt("UPLOAD_MAX_BYTES", 5<<20)),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "fintrack"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "sync_transactions"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Transactions"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	if c.AnalyticsDBPath == "" {
		errors = append(errors, "analytics database path cannot be empty")
	}

	// Validate ledger backend
	switch c.LedgerBackend {
	case "sqlite":
		if c.LedgerDBPath == "" {
			errors = append(errors, "ledger database path cannot be empty when using sqlite ledger")
		} else if c.LedgerDBPath == c.AnalyticsDBPath {
			errors = append(errors, "ledger and analytics databases must be separate files")
		}
	case "postgres":
		if c.LedgerPostgresDSN == "" {
			errors = append(errors, "LEDGER_POSTGRES_DSN is required when using postgres ledger")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid ledger backend '%s': must be one of [sqlite postgres]", c.LedgerBackend))
	}

	if len(c.SessionSecret) < 32 {
		errors = append(errors, "SESSION_SECRET must be at least 32 characters")
	}
	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}

	if c.ReportYear != 0 && (c.ReportYear < 1900 || c.ReportYear > 9999) {
		errors = append(errors, fmt.Sprintf("invalid report year %d", c.ReportYear))
	}
	if c.ReportMonth < 0 || c.ReportMonth > 12 {
		errors = append(errors, fmt.Sprintf("invalid report month %d: must be between 1 and 12", c.ReportMonth))
	}

	if _, err := ParseUserDirectory(c.AnalyticsUserMap); err != nil {
		errors = append(errors, err.Error())
	}

	if c.UploadMaxBytes < 1024 {
		errors = append(errors, fmt.Sprintf("invalid upload limit %d: must be at least 1024 bytes", c.UploadMaxBytes))
	}

	// Validate AMQP URL if provided
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

	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateWorker checks the settings the sync worker needs. The worker serves no
// HTTP, so sessions, port and analytics are not checked.
func (c *Config) ValidateWorker() error {
	var errors []string
	switch c.LedgerBackend {
	case "sqlite":
		if c.LedgerDBPath == "" {
			errors = append(errors, "ledger database path cannot be empty when using sqlite ledger")
		}
	case "postgres":
		if c.LedgerPostgresDSN == "" {
			errors = append(errors, "LEDGER_POSTGRES_DSN is required when using postgres ledger")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid ledger backend '%s': must be one of [sqlite postgres]", c.LedgerBackend))
	}
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required for the sync worker")
	}
	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "GOOGLE_SPREADSHEET_ID is required for the sync worker")
	}
	if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
		errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided")
	}
	if len(errors) > 0 {
		return fmt.Errorf("worker configuration invalid:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ReportPeriod returns the configured reporting year and month, falling back to now.
func (c *Config) ReportPeriod(now time.Time) (year, month int) {
	year, month = c.ReportYear, c.ReportMonth
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}
	return year, month
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
