package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("lawtimeline.config")

const (
	// DefaultMaxUploadBytes is the document size ceiling used when MAX_UPLOAD_BYTES is unset
	DefaultMaxUploadBytes = 10 * 1024 * 1024 // 10MB
	// DefaultReminderSoonDelay is how far ahead an overdue reminder is re-armed
	DefaultReminderSoonDelay = 5 * time.Minute
)

// DefaultAllowedUploadTypes lists the declared content types accepted for case documents
var DefaultAllowedUploadTypes = []string{
	"application/pdf",
	"image/jpeg",
	"image/png",
	"text/plain",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

type Config struct {
	ServerPort  string
	Environment string
	LogLevel    string
	AppURL      string
	// Database
	DBType           string // sqlite, postgres, mysql, libsql
	DBPath           string
	DBDSN            string
	TursoDatabaseURL string
	TursoAuthToken   string
	// Documents
	UploadDir          string
	MaxUploadBytes     int64
	AllowedUploadTypes []string
	// Email (Resend)
	ResendAPIKey  string
	EmailFrom     string
	EmailFromName string
	EmailTestMode bool // When true, emails are logged instead of sent
	// Cloudflare R2 Storage
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicURL       string
	// Google Calendar sync
	GoogleCalendarCredentialsFile string
	GoogleCalendarID              string
	GoogleCalendarSubject         string
	// Reminders
	ReminderSoonDelay        time.Duration
	ReminderDispatchSchedule string
	// Uploads allowed per user per minute
	UploadRateLimit int
}

func Load() *Config {
	// Load .env file (ignore error if not present - use system env vars)
	if err := godotenv.Load(); err != nil {
		logger.Infof("no .env file found, using system environment variables")
	}

	return &Config{
		ServerPort:                    getEnv("SERVER_PORT", "8080"),
		Environment:                   getEnv("ENVIRONMENT", "development"),
		LogLevel:                      getEnv("LOG_LEVEL", "INFO"),
		AppURL:                        getEnv("APP_URL", "http://localhost:8080"),
		DBType:                        getEnv("DB_TYPE", "sqlite"),
		DBPath:                        getEnv("DB_PATH", "db/app.db"),
		DBDSN:                         getEnv("DB_DSN", ""),
		TursoDatabaseURL:              getEnv("TURSO_DATABASE_URL", ""),
		TursoAuthToken:                getEnv("TURSO_AUTH_TOKEN", ""),
		UploadDir:                     getEnv("UPLOAD_DIR", "static/uploads"),
		MaxUploadBytes:                getEnvInt64("MAX_UPLOAD_BYTES", DefaultMaxUploadBytes),
		AllowedUploadTypes:            getEnvList("ALLOWED_UPLOAD_TYPES", DefaultAllowedUploadTypes),
		ResendAPIKey:                  getEnv("RESEND_API_KEY", ""),
		EmailFrom:                     getEnv("EMAIL_FROM", "noreply@lexlegalcloud.org"),
		EmailFromName:                 getEnv("EMAIL_FROM_NAME", "lexlegalcloud App"),
		EmailTestMode:                 getEnvBool("EMAIL_TEST_MODE", true), // Default true for safety
		R2AccountID:                   getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:                 getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey:             getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:                  getEnv("R2_BUCKET_NAME", ""),
		R2PublicURL:                   getEnv("R2_PUBLIC_URL", ""),
		GoogleCalendarCredentialsFile: getEnv("GOOGLE_CALENDAR_CREDENTIALS_FILE", ""),
		GoogleCalendarID:              getEnv("GOOGLE_CALENDAR_ID", "primary"),
		GoogleCalendarSubject:         getEnv("GOOGLE_CALENDAR_SUBJECT", ""),
		ReminderSoonDelay:             getEnvDuration("REMINDER_SOON_DELAY", DefaultReminderSoonDelay),
		ReminderDispatchSchedule:      getEnv("REMINDER_DISPATCH_SCHEDULE", "@every 1m"),
		UploadRateLimit:               int(getEnvInt64("UPLOAD_RATE_LIMIT", 30)),
	}
}

// CalendarSyncEnabled reports whether Google Calendar credentials are configured
func (c *Config) CalendarSyncEnabled() bool {
	return c.GoogleCalendarCredentialsFile != ""
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		logger.Debugf("using default value for %s: %s", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	// Accept common boolean representations
	switch strings.ToLower(value) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return defaultValue
	}
}

func getEnvInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil || parsed <= 0 {
		logger.Warningf("invalid value for %s (%q), using %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		logger.Warningf("invalid duration for %s (%q), using %s", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// getEnvList splits a comma separated value, dropping blanks
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return append([]string(nil), defaultValue...)
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, strings.ToLower(item))
		}
	}
	if len(items) == 0 {
		return append([]string(nil), defaultValue...)
	}
	return items
}
