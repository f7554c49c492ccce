package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host    string `yaml:"host" toml:"host"`
	Port    string `yaml:"port" toml:"port"`
	BaseURL string `yaml:"base_url" toml:"base_url"`
}

// DatabaseConfig selects the SQLite driver and file.
// Driver is "sqlite3" (mattn, cgo) or "sqlite" (modernc, pure Go).
type DatabaseConfig struct {
	Driver string `yaml:"driver" toml:"driver"`
	Path   string `yaml:"path" toml:"path"`
}

type AuthConfig struct {
	JWTSecret       string `yaml:"jwt_secret" toml:"jwt_secret"`
	TokenTTLMinutes int    `yaml:"token_ttl_minutes" toml:"token_ttl_minutes"`
}

// EmbedderConfig selects and configures the embedding provider.
type EmbedderConfig struct {
	Provider    string `yaml:"provider" toml:"provider"` // gemini, openai, ollama
	BaseURL     string `yaml:"base_url" toml:"base_url"`
	Model       string `yaml:"model" toml:"model"`
	APIKey      string `yaml:"api_key" toml:"api_key"`
	Dimension   int    `yaml:"dimension" toml:"dimension"`
	TimeoutSecs int    `yaml:"timeout_secs" toml:"timeout_secs"`
}

type PineconeConfig struct {
	Host        string `yaml:"host" toml:"host"`
	APIKey      string `yaml:"api_key" toml:"api_key"`
	Namespace   string `yaml:"namespace" toml:"namespace"`
	TimeoutSecs int    `yaml:"timeout_secs" toml:"timeout_secs"`
}

type PGVectorConfig struct {
	DSN   string `yaml:"dsn" toml:"dsn"`
	Table string `yaml:"table" toml:"table"`
}

// VectorIndexConfig selects the vector index backend: pinecone, pgvector or memory.
type VectorIndexConfig struct {
	Type     string         `yaml:"type" toml:"type"`
	Pinecone PineconeConfig `yaml:"pinecone" toml:"pinecone"`
	PGVector PGVectorConfig `yaml:"pgvector" toml:"pgvector"`
}

// LLMConfig selects the completion provider: gemini, openai or anthropic.
type LLMConfig struct {
	Provider    string `yaml:"provider" toml:"provider"`
	BaseURL     string `yaml:"base_url" toml:"base_url"`
	Model       string `yaml:"model" toml:"model"`
	APIKey      string `yaml:"api_key" toml:"api_key"`
	MaxTokens   int    `yaml:"max_tokens" toml:"max_tokens"`
	TimeoutSecs int    `yaml:"timeout_secs" toml:"timeout_secs"`
}

type ScraperConfig struct {
	Headless              bool   `yaml:"headless" toml:"headless"`
	Browser               bool   `yaml:"browser" toml:"browser"`
	NavigationTimeoutSecs int    `yaml:"navigation_timeout_secs" toml:"navigation_timeout_secs"`
	Attempts              int    `yaml:"attempts" toml:"attempts"`
	UserAgent             string `yaml:"user_agent" toml:"user_agent"`
}

type TwitterConfig struct {
	ConsumerKey    string `yaml:"consumer_key" toml:"consumer_key"`
	ConsumerSecret string `yaml:"consumer_secret" toml:"consumer_secret"`
	CallbackURL    string `yaml:"callback_url" toml:"callback_url"`
	APIBaseURL     string `yaml:"api_base_url" toml:"api_base_url"`
}

type ChatConfig struct {
	CacheSize       int `yaml:"cache_size" toml:"cache_size"`
	CacheTTLMinutes int `yaml:"cache_ttl_minutes" toml:"cache_ttl_minutes"`
}

// SchedulerConfig holds cron expressions for the background jobs.
type SchedulerConfig struct {
	Timezone        string `yaml:"timezone" toml:"timezone"`
	Tweets          string `yaml:"tweets" toml:"tweets"`
	OutboxDrain     string `yaml:"outbox_drain" toml:"outbox_drain"`
	OutboxReconcile string `yaml:"outbox_reconcile" toml:"outbox_reconcile"`
	OAuthPurge      string `yaml:"oauth_purge" toml:"oauth_purge"`
}

type OutboxConfig struct {
	Workers   int `yaml:"workers" toml:"workers"`
	BatchSize int `yaml:"batch_size" toml:"batch_size"`
}

type SearchConfig struct {
	IndexPath string `yaml:"index_path" toml:"index_path"`
}

// Config is the root application configuration.
type Config struct {
	DataDir     string            `yaml:"data_dir" toml:"data_dir"`
	Server      ServerConfig      `yaml:"server" toml:"server"`
	Database    DatabaseConfig    `yaml:"database" toml:"database"`
	Auth        AuthConfig        `yaml:"auth" toml:"auth"`
	Embedder    EmbedderConfig    `yaml:"embedder" toml:"embedder"`
	VectorIndex VectorIndexConfig `yaml:"vector_index" toml:"vector_index"`
	LLM         LLMConfig         `yaml:"llm" toml:"llm"`
	Scraper     ScraperConfig     `yaml:"scraper" toml:"scraper"`
	Twitter     TwitterConfig     `yaml:"twitter" toml:"twitter"`
	Chat        ChatConfig        `yaml:"chat" toml:"chat"`
	Scheduler   SchedulerConfig   `yaml:"scheduler" toml:"scheduler"`
	Outbox      OutboxConfig      `yaml:"outbox" toml:"outbox"`
	Search      SearchConfig      `yaml:"search" toml:"search"`
}

// Load reads the config at path. YAML and TOML are selected by extension.
// An empty path or a missing file yields defaults. Environment overrides are
// applied last.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := decode(path, data, cfg); err != nil {
				return nil, err
			}
		}
	}
	applyDefaults(cfg)
	applyEnv(cfg)
	return cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("decode toml config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode yaml config: %w", err)
		}
	}
	return nil
}

// Validate checks the settings the HTTP server cannot run without.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.VectorIndex.Type {
	case "pinecone":
		if c.VectorIndex.Pinecone.Host == "" {
			return errors.New("PINECONE_HOST is required for the pinecone vector index")
		}
	case "pgvector":
		if c.VectorIndex.PGVector.DSN == "" {
			return errors.New("PGVECTOR_DSN is required for the pgvector vector index")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported vector index type: %s", c.VectorIndex.Type)
	}
	return nil
}

// UseDataDir relocates the database and full-text index under dir.
// DATABASE_PATH still wins for the database.
func (c *Config) UseDataDir(dir string) {
	c.DataDir = dir
	if os.Getenv("DATABASE_PATH") == "" {
		c.Database.Path = filepath.Join(dir, "learnshare.db")
	}
	c.Search.IndexPath = filepath.Join(dir, "bleve")
}

// TokenTTL returns the JWT lifetime.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLMinutes) * time.Minute
}

// ChatCacheTTL returns the conversation context lifetime.
func (c *Config) ChatCacheTTL() time.Duration {
	return time.Duration(c.Chat.CacheTTLMinutes) * time.Minute
}

// Addr returns host:port for the HTTP listener
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

func applyDefaults(cfg *Config) {
	if cfg.DataDir == "" {
		cfg.DataDir = "./data"
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = "3125"
	}
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = "http://localhost:" + cfg.Server.Port
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite3"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = filepath.Join(cfg.DataDir, "learnshare.db")
	}
	if cfg.Search.IndexPath == "" {
		cfg.Search.IndexPath = filepath.Join(cfg.DataDir, "bleve")
	}
	if cfg.Auth.TokenTTLMinutes == 0 {
		cfg.Auth.TokenTTLMinutes = 60
	}

	if cfg.Embedder.Provider == "" {
		cfg.Embedder.Provider = "gemini"
	}
	if cfg.Embedder.Dimension == 0 {
		cfg.Embedder.Dimension = 1024
	}
	if cfg.Embedder.TimeoutSecs == 0 {
		cfg.Embedder.TimeoutSecs = 60
	}

	if cfg.VectorIndex.Type == "" {
		cfg.VectorIndex.Type = "pinecone"
	}
	if cfg.VectorIndex.Pinecone.TimeoutSecs == 0 {
		cfg.VectorIndex.Pinecone.TimeoutSecs = 15
	}
	if cfg.VectorIndex.PGVector.Table == "" {
		cfg.VectorIndex.PGVector.Table = "content_vectors"
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "gemini"
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 1024
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = 60
	}

	if cfg.Scraper.NavigationTimeoutSecs == 0 {
		cfg.Scraper.NavigationTimeoutSecs = 30
	}
	if cfg.Scraper.Attempts == 0 {
		cfg.Scraper.Attempts = 3
	}

	if cfg.Twitter.APIBaseURL == "" {
		cfg.Twitter.APIBaseURL = "https://api.twitter.com"
	}

	if cfg.Chat.CacheSize == 0 {
		cfg.Chat.CacheSize = 10000
	}
	if cfg.Chat.CacheTTLMinutes == 0 {
		cfg.Chat.CacheTTLMinutes = 30
	}

	if cfg.Scheduler.Timezone == "" {
		cfg.Scheduler.Timezone = "UTC"
	}
	if cfg.Scheduler.Tweets == "" {
		cfg.Scheduler.Tweets = "@every 1m"
	}
	if cfg.Scheduler.OutboxDrain == "" {
		cfg.Scheduler.OutboxDrain = "@every 10s"
	}
	if cfg.Scheduler.OutboxReconcile == "" {
		cfg.Scheduler.OutboxReconcile = "@every 15m"
	}
	if cfg.Scheduler.OAuthPurge == "" {
		cfg.Scheduler.OAuthPurge = "@hourly"
	}

	if cfg.Outbox.Workers == 0 {
		cfg.Outbox.Workers = 5
	}
	if cfg.Outbox.BatchSize == 0 {
		cfg.Outbox.BatchSize = 50
	}
}

// applyEnv overlays the documented environment variables onto cfg.
func applyEnv(cfg *Config) {
	setFromEnv(&cfg.Auth.JWTSecret, "JWT_SECRET")
	setFromEnv(&cfg.Server.BaseURL, "BASE_URL")
	setFromEnv(&cfg.Database.Path, "DATABASE_PATH")
	setFromEnv(&cfg.VectorIndex.Pinecone.APIKey, "PINECONE_API_KEY")
	setFromEnv(&cfg.VectorIndex.Pinecone.Host, "PINECONE_HOST")
	setFromEnv(&cfg.VectorIndex.PGVector.DSN, "PGVECTOR_DSN")
	setFromEnv(&cfg.Twitter.ConsumerKey, "TWITTER_CONSUMER_KEY")
	setFromEnv(&cfg.Twitter.ConsumerSecret, "TWITTER_CONSUMER_SECRET")

	if port := os.Getenv("PORT"); port != "" {
		if cfg.Server.BaseURL == "http://localhost:"+cfg.Server.Port && os.Getenv("BASE_URL") == "" {
			cfg.Server.BaseURL = "http://localhost:" + port
		}
		cfg.Server.Port = port
	}

	if key := providerKey(cfg.Embedder.Provider); key != "" && cfg.Embedder.APIKey == "" {
		cfg.Embedder.APIKey = key
	}
	if key := providerKey(cfg.LLM.Provider); key != "" && cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = key
	}
}

func providerKey(provider string) string {
	switch provider {
	case "gemini":
		return os.Getenv("GEMINI_API_KEY")
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	default:
		return ""
	}
}

func setFromEnv(dst *string, name string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}
