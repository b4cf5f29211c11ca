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
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "vyapar.db", cfg.Database.DSN)
	assert.Equal(t, "llama-3.1-8b-instant", cfg.LLM.Model)
	assert.Equal(t, 800, cfg.LLM.Generation.MaxTokens)
	assert.Equal(t, time.Hour, cfg.Auth.ResetTokenTTL)
	assert.Equal(t, 8000, cfg.Document.MaxChars)
	assert.Equal(t, 1500, cfg.Document.PreviewChars)
	assert.Contains(t, cfg.LLM.Prompt.System, "VyaparGPT")
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: "9090"
database:
  driver: mysql
  dsn: "root:pw@tcp(localhost:3306)/vyapar"
auth:
  reset_token_ttl: 30m
llm:
  provider: gemini
  model: gemini-2.5-flash
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("VYAPAR_LLM_API_KEY", "secret-key")
	t.Setenv("VYAPAR_SERVER_PORT", "7070")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port, "environment overrides the file")
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 30*time.Minute, cfg.Auth.ResetTokenTTL)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "secret-key", cfg.LLM.APIKey)
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}
