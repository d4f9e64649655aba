// Package config loads server settings from defaults, an optional YAML file
// and the environment, in that order.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ProviderGemini  = "gemini"
	ProviderOpenAI  = "openai"
	ProviderOffline = "offline"

	PDFBackendLedongthuc = "ledongthuc"
	PDFBackendUnipdf     = "unipdf"

	VectorStoreMemory = "memory"
	VectorStoreChroma = "chroma"

	ChunkStrategyWindow    = "window"
	ChunkStrategyRecursive = "recursive"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Provider  ProviderConfig  `yaml:"provider"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Log       LogConfig       `yaml:"log"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

type ServerConfig struct {
	Port        string `yaml:"port" validate:"required,numeric"`
	MaxUploadMB int    `yaml:"max_upload_mb" validate:"gt=0"`
	InboxDir    string `yaml:"inbox_dir"`
}

type ProviderConfig struct {
	Name            string        `yaml:"name" validate:"oneof=gemini openai offline"`
	GoogleAPIKey    string        `yaml:"google_api_key"`
	OpenAIAPIKey    string        `yaml:"openai_api_key"`
	OpenAIBaseURL   string        `yaml:"openai_base_url"`
	EmbeddingModel  string        `yaml:"embedding_model" validate:"required"`
	ChatModel       string        `yaml:"chat_model" validate:"required"`
	MaxOutputTokens int           `yaml:"max_output_tokens" validate:"gt=0"`
	Timeout         time.Duration `yaml:"timeout" validate:"gt=0"`
	QueryCacheTTL   time.Duration `yaml:"query_cache_ttl" validate:"gte=0"`
}

type IngestConfig struct {
	PDFBackend       string `yaml:"pdf_backend" validate:"oneof=ledongthuc unipdf"`
	UnidocLicenseKey string `yaml:"unidoc_license_key"`
	ChunkStrategy    string `yaml:"chunk_strategy" validate:"oneof=window recursive"`
	ChunkSize        int    `yaml:"chunk_size" validate:"gt=0"`
	ChunkOverlap     int    `yaml:"chunk_overlap" validate:"gte=0,ltfield=ChunkSize"`
}

type RetrievalConfig struct {
	TopK             int    `yaml:"top_k" validate:"gt=0"`
	VectorStore      string `yaml:"vector_store" validate:"oneof=memory chroma"`
	ChromaCollection string `yaml:"chroma_collection"`
}

type LogConfig struct {
	Debug bool   `yaml:"debug"`
	File  string `yaml:"file"`
}

type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// Default returns the settings the server runs with when nothing is configured.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "3001",
			MaxUploadMB: 20,
		},
		Provider: ProviderConfig{
			Name:            ProviderGemini,
			EmbeddingModel:  "text-embedding-004",
			ChatModel:       "gemini-2.0-flash",
			MaxOutputTokens: 2048,
			Timeout:         30 * time.Second,
			QueryCacheTTL:   10 * time.Minute,
		},
		Ingest: IngestConfig{
			PDFBackend:    PDFBackendLedongthuc,
			ChunkStrategy: ChunkStrategyWindow,
			ChunkSize:     1000,
			ChunkOverlap:  200,
		},
		Retrieval: RetrievalConfig{
			TopK:             4,
			VectorStore:      VectorStoreMemory,
			ChromaCollection: "pdfchat",
		},
		Tracing: TracingConfig{
			Endpoint: "localhost:4318",
		},
	}
}

// Load reads .env (if present), then CONFIG_FILE (if set), then environment
// overrides, and validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables.")
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints, e.g. that chunk overlap is smaller than chunk size.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// APIKey returns the key for the configured provider, empty for the offline provider.
func (c *Config) APIKey() string {
	switch c.Provider.Name {
	case ProviderGemini:
		return c.Provider.GoogleAPIKey
	case ProviderOpenAI:
		return c.Provider.OpenAIAPIKey
	}
	return ""
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Server.InboxDir, "INBOX_DIR")
	setString(&cfg.Provider.Name, "PROVIDER")
	setString(&cfg.Provider.GoogleAPIKey, "GEMINI_API_KEY")
	setString(&cfg.Provider.GoogleAPIKey, "GOOGLE_API_KEY")
	setString(&cfg.Provider.OpenAIAPIKey, "OPENAI_API_KEY")
	setString(&cfg.Provider.OpenAIBaseURL, "OPENAI_BASE_URL")
	setString(&cfg.Provider.EmbeddingModel, "EMBEDDING_MODEL")
	setString(&cfg.Provider.ChatModel, "CHAT_MODEL")
	setString(&cfg.Ingest.PDFBackend, "PDF_BACKEND")
	setString(&cfg.Ingest.UnidocLicenseKey, "UNIDOC_LICENSE_KEY")
	setString(&cfg.Ingest.ChunkStrategy, "CHUNK_STRATEGY")
	setString(&cfg.Retrieval.VectorStore, "VECTOR_STORE")
	setString(&cfg.Retrieval.ChromaCollection, "CHROMA_COLLECTION")
	setString(&cfg.Log.File, "LOG_FILE")
	setString(&cfg.Tracing.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")

	ints := []struct {
		dst *int
		key string
	}{
		{&cfg.Server.MaxUploadMB, "MAX_UPLOAD_MB"},
		{&cfg.Provider.MaxOutputTokens, "MAX_OUTPUT_TOKENS"},
		{&cfg.Ingest.ChunkSize, "CHUNK_SIZE"},
		{&cfg.Ingest.ChunkOverlap, "CHUNK_OVERLAP"},
		{&cfg.Retrieval.TopK, "TOP_K"},
	}
	for _, e := range ints {
		if err := setInt(e.dst, e.key); err != nil {
			return err
		}
	}
	if err := setDuration(&cfg.Provider.Timeout, "PROVIDER_TIMEOUT"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Provider.QueryCacheTTL, "QUERY_CACHE_TTL"); err != nil {
		return err
	}
	if err := setBool(&cfg.Log.Debug, "DEBUG"); err != nil {
		return err
	}
	return setBool(&cfg.Tracing.Enabled, "OTEL_ENABLED")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func setBool(dst *bool, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}
