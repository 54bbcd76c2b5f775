package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:3000"}, cfg.Server.CORSOrigins)
	assert.NotContains(t, cfg.Server.CORSOrigins, "*")
	assert.Equal(t, 5000, cfg.Chat.MaxContentLength)
	assert.Equal(t, 15*time.Second, cfg.Chat.StreamKeepAlive)
	assert.Equal(t, 30*time.Minute, cfg.Chat.SessionIdle)
	assert.Equal(t, 90*24*time.Hour, cfg.Chat.SessionArchive)
	assert.Equal(t, 5*time.Minute, cfg.Chat.BalanceCacheTTL)
	assert.Equal(t, 15*time.Minute, cfg.Chat.OAuthStateTTL)
	assert.Equal(t, 500*time.Millisecond, cfg.LLM.Timeouts.Classification)
	assert.Equal(t, 20, cfg.Security.RateLimit.RequestsPerMinute)
	assert.Equal(t, "https://api.kite.trade", cfg.Broker.BaseURL)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("ENV", "production")
	t.Setenv("KITE_API_KEY", "kite-key")
	t.Setenv("KITE_API_SECRET", "kite-secret")
	t.Setenv("TOKEN_ENCRYPTION_KEY", "enc-key")
	t.Setenv("FRONTEND_URL", "https://app.example.com")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "kite-key", cfg.Broker.APIKey)
	assert.Equal(t, "kite-secret", cfg.Broker.APISecret)
	assert.Equal(t, "enc-key", cfg.Security.EncryptionKey)
	assert.Equal(t, "https://app.example.com", cfg.Frontend.BaseURL)
	assert.Equal(t, "sk-test", cfg.LLM.OpenAI.APIKey)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("server:\n  port: 9090\nchat:\n  max_content_length: 100\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 100, cfg.Chat.MaxContentLength)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	c := DatabaseConfig{User: "u", Password: "p", Host: "db", Port: 5432, Database: "chat", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/chat?sslmode=disable", c.DSN())
}
