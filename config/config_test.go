package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"DB_TYPE", "MAX_UPLOAD_BYTES", "ALLOWED_UPLOAD_TYPES", "REMINDER_SOON_DELAY", "REMINDER_DISPATCH_SCHEDULE", "EMAIL_TEST_MODE", "UPLOAD_RATE_LIMIT", "GOOGLE_CALENDAR_CREDENTIALS_FILE"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "sqlite", cfg.DBType)
	assert.Equal(t, int64(DefaultMaxUploadBytes), cfg.MaxUploadBytes)
	assert.Equal(t, DefaultAllowedUploadTypes, cfg.AllowedUploadTypes)
	assert.Equal(t, DefaultReminderSoonDelay, cfg.ReminderSoonDelay)
	assert.Equal(t, "@every 1m", cfg.ReminderDispatchSchedule)
	assert.True(t, cfg.EmailTestMode)
	assert.Equal(t, 30, cfg.UploadRateLimit)
	assert.False(t, cfg.CalendarSyncEnabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_TYPE", "postgres")
	t.Setenv("MAX_UPLOAD_BYTES", "2048")
	t.Setenv("ALLOWED_UPLOAD_TYPES", " application/PDF , ,image/png")
	t.Setenv("REMINDER_SOON_DELAY", "90s")
	t.Setenv("EMAIL_TEST_MODE", "off")
	t.Setenv("GOOGLE_CALENDAR_CREDENTIALS_FILE", "/etc/timeline/sa.json")

	cfg := Load()
	assert.Equal(t, "postgres", cfg.DBType)
	assert.Equal(t, int64(2048), cfg.MaxUploadBytes)
	assert.Equal(t, []string{"application/pdf", "image/png"}, cfg.AllowedUploadTypes)
	assert.Equal(t, 90*time.Second, cfg.ReminderSoonDelay)
	assert.False(t, cfg.EmailTestMode)
	assert.True(t, cfg.CalendarSyncEnabled())
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("MAX_UPLOAD_BYTES", "-5")
	t.Setenv("REMINDER_SOON_DELAY", "soon")
	t.Setenv("EMAIL_TEST_MODE", "maybe")

	assert.Equal(t, int64(DefaultMaxUploadBytes), getEnvInt64("MAX_UPLOAD_BYTES", DefaultMaxUploadBytes))
	assert.Equal(t, DefaultReminderSoonDelay, getEnvDuration("REMINDER_SOON_DELAY", DefaultReminderSoonDelay))
	assert.True(t, getEnvBool("EMAIL_TEST_MODE", true))
}

func TestGetEnvListCopiesDefault(t *testing.T) {
	t.Setenv("ALLOWED_UPLOAD_TYPES", "")
	list := getEnvList("ALLOWED_UPLOAD_TYPES", DefaultAllowedUploadTypes)
	list[0] = "changed"
	assert.NotEqual(t, "changed", DefaultAllowedUploadTypes[0])
}
