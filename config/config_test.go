package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestLoad_DefaultsAndEnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("ADMIN_USERNAMES", "Alice, bob ,")
	t.Setenv("DB_DRIVER", "postgres")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.AppPort)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, []string{"Alice", "bob"}, cfg.AdminUsernames)
	assert.Equal(t, 168, cfg.TokenTTLHours)
	assert.Equal(t, 60, cfg.RateLimitPerMinute)
	assert.Equal(t, "5432", cfg.DBPort)
	assert.Equal(t, "Web Dev Hub", cfg.SiteName)
	assert.True(t, cfg.IsAdmin("alice"))
	assert.False(t, cfg.IsAdmin("mallory"))
}

func TestLoad_InvalidIntegerIsError(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("REDIS_PORT", "not-a-port")

	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_PORT")
}

func TestLoad_YAMLFile(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
app:
  AppPort: "7000"
  JWTSecret: from-file
  RateLimitPerMinute: 30
database:
  Driver: postgres
  Port: 6543
admin:
  Usernames: [root]
notify:
  Workers: 2
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.AppPort)
	assert.Equal(t, "from-file", cfg.JWTSecret)
	assert.Equal(t, 30, cfg.RateLimitPerMinute)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "6543", cfg.DBPort)
	assert.Equal(t, []string{"root"}, cfg.AdminUsernames)
	assert.Equal(t, 2, cfg.NotifyWorkers)
}

func TestLoad_JSONFileThenEnvWins(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("SMTP_HOST", "mail.internal")
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"app":{"JWTSecret":"json-secret","TokenTTLHours":24},"smtp":{"Host":"smtp.example.com","Port":2525}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "json-secret", cfg.JWTSecret)
	assert.Equal(t, 24, cfg.TokenTTLHours)
	assert.Equal(t, "mail.internal", cfg.SMTPHost)
	assert.Equal(t, 2525, cfg.SMTPPort)
}
