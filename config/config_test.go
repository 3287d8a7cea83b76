package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/lease-settlement/generic"
	"go.uber.org/zap/zapcore"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	conf, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, conf.Server.Port)
	assert.Equal(t, 15*time.Second, conf.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, conf.Server.ShutdownTimeout)
	assert.Equal(t, "lease.db", conf.Database.Path)
	assert.Equal(t, "info", conf.Logging.Level)
	assert.Equal(t, "json", conf.Logging.Format)
	assert.False(t, conf.Scheduler.Enabled)
	assert.Equal(t, "0 6 * * *", conf.Scheduler.Spec)
	assert.Contains(t, conf.CORS.AllowedOrigins, "http://localhost:5173")
	assert.Equal(t, generic.KRW, conf.Billing.DefaultCurrency())

	loc, err := conf.Billing.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Seoul", loc.String())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  write_timeout: 5s
database:
  path: ":memory:"
logging:
  level: debug
  format: console
scheduler:
  enabled: true
  spec: "*/5 * * * *"
billing:
  currency: usd
`)
	conf, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, conf.Server.Port)
	assert.Equal(t, 5*time.Second, conf.Server.WriteTimeout)
	assert.Equal(t, ":memory:", conf.Database.Path)
	assert.Equal(t, "console", conf.Logging.Format)
	assert.True(t, conf.Scheduler.Enabled)
	assert.Equal(t, "*/5 * * * *", conf.Scheduler.Spec)
	assert.Equal(t, generic.Currency("USD"), conf.Billing.DefaultCurrency())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")
	t.Setenv("LEASE_SERVER_PORT", "7070")
	t.Setenv("LEASE_DATABASE_PATH", "/tmp/env.db")

	conf, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, conf.Server.Port)
	assert.Equal(t, "/tmp/env.db", conf.Database.Path)
}

func TestLoad_Timezone(t *testing.T) {
	t.Setenv("LEASE_BILLING_TIMEZONE", "UTC")
	conf, err := Load(writeConfig(t, "billing:\n  timezone: Asia/Seoul\n"))
	require.NoError(t, err)

	loc, err := conf.Billing.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc, "env wins over the file")

	t.Setenv("LEASE_BILLING_TIMEZONE", "Mars/Olympus_Mons")
	_, err = Load("")
	assert.Error(t, err)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	_, err := Load(writeConfig(t, "server:\n  port: 70000\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "scheduler:\n  enabled: true\n  spec: \" \"\n"))
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LoggingConfig{Level: "warn", Format: "console"}, "")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))

	logger, err = NewLogger(LoggingConfig{Level: "warn"}, "debug")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel), "override wins")

	_, err = NewLogger(LoggingConfig{Level: "loud"}, "")
	assert.Error(t, err)
	_, err = NewLogger(LoggingConfig{Format: "xml"}, "")
	assert.Error(t, err)
}

func TestNewLogger_OutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "settle.log")
	logger, err := NewLogger(LoggingConfig{Level: "info", OutputFile: path}, "")
	require.NoError(t, err)

	logger.Info("settlement run")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "settlement run")
}
