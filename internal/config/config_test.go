package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMemoryDefaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("APP_TIMEZONE", "UTC")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.Equal(t, 5*time.Second, cfg.LockTTL)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, 9, cfg.Hours.StartHour)
	assert.Equal(t, 30, cfg.Hours.SlotMinutes)
	assert.Empty(t, cfg.Hours.ClosedDays)
	assert.False(t, cfg.UseRedis())
}

func TestLoadRequiresBackendSettings(t *testing.T) {
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("POSTGRES_DSN", "")
	_, err := Load()
	assert.ErrorContains(t, err, "POSTGRES_DSN")

	t.Setenv("STORE_BACKEND", "http")
	t.Setenv("CLINIC_API_URL", "")
	_, err = Load()
	assert.ErrorContains(t, err, "CLINIC_API_URL")

	t.Setenv("STORE_BACKEND", "sqlite")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "http")
	t.Setenv("CLINIC_API_URL", "http://clinic.local")
	t.Setenv("CLINIC_API_TIMEOUT", "3")
	t.Setenv("REDIS_URL", "redis://app:pw@cache:6380/2")
	t.Setenv("WORK_START_HOUR", "8")
	t.Setenv("SLOT_MINUTES", "15")
	t.Setenv("CLOSED_DAYS", "sunday, Sat")
	t.Setenv("LOCK_TTL", "250ms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, cfg.ClinicAPITimeout)
	assert.Equal(t, "cache:6380", cfg.RedisAddr)
	assert.Equal(t, "app", cfg.RedisUsername)
	assert.Equal(t, "pw", cfg.RedisPassword)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.True(t, cfg.UseRedis())
	assert.Equal(t, 8, cfg.Hours.StartHour)
	assert.Equal(t, 15, cfg.Hours.SlotMinutes)
	assert.Equal(t, []time.Weekday{time.Sunday, time.Saturday}, cfg.Hours.ClosedDays)
	assert.Equal(t, 250*time.Millisecond, cfg.LockTTL)
}

func TestLoadRejectsBadHours(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("BREAK_START_HOUR", "14")
	t.Setenv("BREAK_END_HOUR", "13")
	_, err := Load()
	assert.ErrorContains(t, err, "working hours")
}

func TestParseWeekdays(t *testing.T) {
	days, err := parseWeekdays("")
	require.NoError(t, err)
	assert.Empty(t, days)

	_, err = parseWeekdays("funday")
	assert.Error(t, err)
}

func TestParseRedisURL(t *testing.T) {
	addr, user, pw, db, err := parseRedisURL("redis://cache:6379")
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", addr)
	assert.Empty(t, user)
	assert.Empty(t, pw)
	assert.Zero(t, db)

	_, _, _, _, err = parseRedisURL("redis://cache:6379/zero")
	assert.Error(t, err)
	_, _, _, _, err = parseRedisURL("cache:6379")
	assert.Error(t, err)
}
