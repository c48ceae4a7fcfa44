package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

var envKeys = []string{
	"CALKIT_CONFIG",
	"CALKIT_BACKEND",
	"CALKIT_DATABASE_PATH",
	"CALKIT_TIMEZONE",
	"CALKIT_ENV",
	"CALKIT_LOG_LEVEL",
	"CALKIT_CALDAV_URL",
	"CALKIT_CALDAV_USERNAME",
	"CALKIT_CALDAV_PASSWORD",
	"CALKIT_CALDAV_CALENDAR",
	"CALKIT_CALDAV_LIST",
	"CALKIT_SEARCH_BACK_DAYS",
	"CALKIT_SEARCH_AHEAD_DAYS",
	"CALKIT_EVENT_LIMIT",
	"CALKIT_REMINDER_LIMIT",
	"CALKIT_SEARCH_LIMIT",
	"CALKIT_ATTRIBUTION",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendAuto, cfg.Backend)
	assert.Equal(t, "./data/calkit.db", cfg.DatabasePath)
	assert.Equal(t, "development", cfg.Env)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, zapcore.InfoLevel, cfg.LogLevel)
	assert.Equal(t, 30, cfg.SearchBackDays)
	assert.Equal(t, 90, cfg.SearchAheadDays)
	assert.Equal(t, 50, cfg.EventLimit)
	assert.Equal(t, 100, cfg.ReminderLimit)
	assert.Equal(t, 50, cfg.SearchLimit)
	assert.Equal(t, "Created by calkit", cfg.Attribution)
	assert.False(t, cfg.UseCalDAV())
}

func TestLoad_Env(t *testing.T) {
	clearEnv(t)
	t.Setenv("CALKIT_TIMEZONE", "Europe/Moscow")
	t.Setenv("CALKIT_ENV", "production")
	t.Setenv("CALKIT_LOG_LEVEL", "debug")
	t.Setenv("CALKIT_CALDAV_USERNAME", "me@example.com")
	t.Setenv("CALKIT_CALDAV_PASSWORD", "app-password")
	t.Setenv("CALKIT_EVENT_LIMIT", "10")
	t.Setenv("CALKIT_ATTRIBUTION", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Moscow", cfg.Timezone.String())
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, zapcore.DebugLevel, cfg.LogLevel)
	assert.Equal(t, 10, cfg.EventLimit)
	assert.Empty(t, cfg.Attribution)
	assert.True(t, cfg.UseCalDAV())
}

func TestLoad_FileAndPrecedence(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "calkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backend: sqlite
database_path: /var/lib/calkit/calkit.db
timezone: UTC
caldav:
  username: me@example.com
  password: from-file
search:
  back_days: 7
limits:
  reminders: 20
attribution: "Added by agent"
`), 0o600))
	t.Setenv("CALKIT_CONFIG", path)
	t.Setenv("CALKIT_SEARCH_BACK_DAYS", "14")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.False(t, cfg.UseCalDAV())
	assert.Equal(t, "/var/lib/calkit/calkit.db", cfg.DatabasePath)
	assert.Equal(t, "UTC", cfg.Timezone.String())
	assert.Equal(t, "from-file", cfg.CalDAV.Password)
	assert.Equal(t, 14, cfg.SearchBackDays)
	assert.Equal(t, 90, cfg.SearchAheadDays)
	assert.Equal(t, 20, cfg.ReminderLimit)
	assert.Equal(t, "Added by agent", cfg.Attribution)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown backend", map[string]string{"CALKIT_BACKEND": "exchange"}},
		{"caldav without credentials", map[string]string{"CALKIT_BACKEND": "caldav"}},
		{"bad timezone", map[string]string{"CALKIT_TIMEZONE": "Mars/Olympus"}},
		{"bad log level", map[string]string{"CALKIT_LOG_LEVEL": "loud"}},
		{"bad limit", map[string]string{"CALKIT_SEARCH_LIMIT": "-1"}},
		{"missing file", map[string]string{"CALKIT_CONFIG": "/nonexistent/calkit.yaml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
