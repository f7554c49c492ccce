package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, name := range []string{
		"JWT_SECRET", "BASE_URL", "DATABASE_PATH", "PINECONE_API_KEY", "PINECONE_HOST",
		"PGVECTOR_DSN", "TWITTER_CONSUMER_KEY", "TWITTER_CONSUMER_SECRET", "PORT",
		"GEMINI_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY",
	} {
		t.Setenv(name, "")
	}
}

func TestConfig_LoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "3125", cfg.Server.Port)
	assert.Equal(t, "http://localhost:3125", cfg.Server.BaseURL)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, filepath.Join("./data", "learnshare.db"), cfg.Database.Path)
	assert.Equal(t, 1024, cfg.Embedder.Dimension)
	assert.Equal(t, "pinecone", cfg.VectorIndex.Type)
	assert.Equal(t, 10000, cfg.Chat.CacheSize)
	assert.Equal(t, 30*time.Minute, cfg.ChatCacheTTL())
	assert.Equal(t, time.Hour, cfg.TokenTTL())
	assert.Equal(t, "@every 1m", cfg.Scheduler.Tweets)
	assert.Equal(t, 5, cfg.Outbox.Workers)
	assert.Equal(t, 30, cfg.Scraper.NavigationTimeoutSecs)
	assert.Equal(t, 3, cfg.Scraper.Attempts)
}

func TestConfig_LoadYAML(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  port: "8080"
auth:
  jwt_secret: from-file
vector_index:
  type: memory
embedder:
  provider: openai
  dimension: 768
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "from-file", cfg.Auth.JWTSecret)
	assert.Equal(t, "memory", cfg.VectorIndex.Type)
	assert.Equal(t, "openai", cfg.Embedder.Provider)
	assert.Equal(t, 768, cfg.Embedder.Dimension)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_LoadTOML(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.toml")
	data := []byte(`
data_dir = "/var/lib/learnshare"

[llm]
provider = "anthropic"
model = "claude-3-5-haiku-latest"

[outbox]
workers = 2
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "claude-3-5-haiku-latest", cfg.LLM.Model)
	assert.Equal(t, 2, cfg.Outbox.Workers)
	assert.Equal(t, 50, cfg.Outbox.BatchSize)
	assert.Equal(t, filepath.Join("/var/lib/learnshare", "learnshare.db"), cfg.Database.Path)
}

func TestConfig_LoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("PORT", "9999")
	t.Setenv("GEMINI_API_KEY", "gem-key")
	t.Setenv("PINECONE_HOST", "idx.pinecone.io")
	t.Setenv("DATABASE_PATH", "/tmp/x.db")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, "http://localhost:9999", cfg.Server.BaseURL)
	assert.Equal(t, "gem-key", cfg.Embedder.APIKey)
	assert.Equal(t, "gem-key", cfg.LLM.APIKey)
	assert.Equal(t, "idx.pinecone.io", cfg.VectorIndex.Pinecone.Host)
	assert.Equal(t, "/tmp/x.db", cfg.Database.Path)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.Validate())

	cfg.Auth.JWTSecret = "s"
	assert.Error(t, cfg.Validate(), "pinecone needs a host")

	cfg.VectorIndex.Type = "memory"
	assert.NoError(t, cfg.Validate())

	cfg.VectorIndex.Type = "faiss"
	assert.Error(t, cfg.Validate())
}

func TestConfig_UseDataDir(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	cfg := Default()
	cfg.UseDataDir(dir)
	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, filepath.Join(dir, "learnshare.db"), cfg.Database.Path)
	assert.Equal(t, filepath.Join(dir, "bleve"), cfg.Search.IndexPath)

	t.Setenv("DATABASE_PATH", "/tmp/pinned.db")
	cfg = Default()
	cfg.Database.Path = "/tmp/pinned.db"
	cfg.UseDataDir(dir)
	assert.Equal(t, "/tmp/pinned.db", cfg.Database.Path)
	assert.Equal(t, filepath.Join(dir, "bleve"), cfg.Search.IndexPath)
}
