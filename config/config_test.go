package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(cfg))
	assert.Equal(t, "3001", cfg.Server.Port)
	assert.Equal(t, 1000, cfg.Ingest.ChunkSize)
	assert.Equal(t, 200, cfg.Ingest.ChunkOverlap)
	assert.Equal(t, 4, cfg.Retrieval.TopK)
	assert.Equal(t, ProviderGemini, cfg.Provider.Name)
}

func TestValidate_RejectsOverlapNotBelowSize(t *testing.T) {
	cfg := Default()
	cfg.Ingest.ChunkOverlap = cfg.Ingest.ChunkSize
	assert.Error(t, Validate(cfg))
}

func TestValidate_RejectsUnknownProvider(t *testing.T) {
	cfg := Default()
	cfg.Provider.Name = "ollama"
	assert.Error(t, Validate(cfg))
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PORT", "9090")
	t.Setenv("PROVIDER", "offline")
	t.Setenv("CHUNK_SIZE", "500")
	t.Setenv("CHUNK_OVERLAP", "50")
	t.Setenv("TOP_K", "6")
	t.Setenv("PROVIDER_TIMEOUT", "5s")
	t.Setenv("DEBUG", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, ProviderOffline, cfg.Provider.Name)
	assert.Equal(t, 500, cfg.Ingest.ChunkSize)
	assert.Equal(t, 50, cfg.Ingest.ChunkOverlap)
	assert.Equal(t, 6, cfg.Retrieval.TopK)
	assert.Equal(t, 5*time.Second, cfg.Provider.Timeout)
	assert.True(t, cfg.Log.Debug)
}

func TestLoad_GoogleKeyWinsOverGeminiKey(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	t.Setenv("GOOGLE_API_KEY", "google-key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "google-key", cfg.APIKey())
}

func TestLoad_BadInt(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("TOP_K", "four")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_YAMLFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pdfchat.yaml")
	data := []byte(`
server:
  port: "4000"
provider:
  name: offline
  timeout: 12s
ingest:
  chunk_size: 300
  chunk_overlap: 30
retrieval:
  top_k: 2
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "")
	t.Setenv("PROVIDER", "")
	t.Setenv("PROVIDER_TIMEOUT", "")
	t.Setenv("CHUNK_SIZE", "")
	t.Setenv("CHUNK_OVERLAP", "")
	t.Setenv("TOP_K", "3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "4000", cfg.Server.Port)
	assert.Equal(t, ProviderOffline, cfg.Provider.Name)
	assert.Equal(t, 12*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, 300, cfg.Ingest.ChunkSize)
	assert.Equal(t, 30, cfg.Ingest.ChunkOverlap)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	// untouched fields keep their defaults
	assert.Equal(t, 2048, cfg.Provider.MaxOutputTokens)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := Load()
	assert.Error(t, err)
}
