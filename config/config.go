package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/poiesic/finrag/ai"
	"gopkg.in/yaml.v2"
)

// ListingConfig controls how the filings listing is crawled.
type ListingConfig struct {
	// BaseURL is the listing URL; the page index is appended to it.
	BaseURL string `yaml:"base_url"`
	// BaseSite resolves relative report and document links.
	BaseSite      string        `yaml:"base_site"`
	Pages         int           `yaml:"pages"`
	PageDelay     time.Duration `yaml:"page_delay"`
	Timeout       time.Duration `yaml:"timeout"`
	InsecureTLS   bool          `yaml:"insecure_tls"`
	UserAgent     string        `yaml:"user_agent"`
	RespectRobots bool          `yaml:"respect_robots"`
}

// StorageConfig locates the on-disk stores.
type StorageConfig struct {
	ContentDir string `yaml:"content_dir"`
	VectorDir  string `yaml:"vector_dir"`
	Collection string `yaml:"collection"`
	LedgerDB   string `yaml:"ledger_db"`
	Compress   bool   `yaml:"compress"`
}

// EmbeddingConfig mirrors ai.Config.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"`
	Host     string `yaml:"host"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
}

// ChunkingConfig sets the window size and overlap in characters.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// IndexConfig controls vector store writes.
type IndexConfig struct {
	// Dedup keys entries by content so re-runs overwrite instead of accumulating.
	// Off by default: every run appends its own entries.
	Dedup bool `yaml:"dedup"`
}

// ExportConfig sets where the run ledger CSV is written.
type ExportConfig struct {
	Path string `yaml:"path"`
}

// Config is the complete finrag configuration.
type Config struct {
	Listing   ListingConfig   `yaml:"listing"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Index     IndexConfig     `yaml:"index"`
	Export    ExportConfig    `yaml:"export"`
}

// Default returns the configuration for the AMMC financial statements listing.
func Default() *Config {
	aiDefaults := ai.DefaultConfig()
	return &Config{
		Listing: ListingConfig{
			BaseURL:     "https://www.ammc.ma/fr/liste-etats-financiers-emetteurs?field_emetteur_target_id_verf=All&field_annee_value_1=All&page=",
			BaseSite:    "https://www.ammc.ma",
			Pages:       18,
			PageDelay:   2 * time.Second,
			Timeout:     60 * time.Second,
			InsecureTLS: true,
			UserAgent:   "finrag/1.0",
		},
		Storage: StorageConfig{
			ContentDir: "pdf_documents",
			VectorDir:  "chroma_db",
			Collection: "ammc_reports",
			LedgerDB:   "finrag_db",
		},
		Embedding: EmbeddingConfig{
			Provider: aiDefaults.Provider,
			Host:     aiDefaults.EmbeddingHost,
			Model:    aiDefaults.EmbeddingModel,
		},
		Chunking: ChunkingConfig{
			Size:    1000,
			Overlap: 200,
		},
		Index: IndexConfig{
			Dedup: false,
		},
		Export: ExportConfig{
			Path: "financial_reports_metadata.csv",
		},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults. Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if c.Embedding.APIKey != "" {
		return
	}
	switch strings.ToLower(c.Embedding.Provider) {
	case ai.ProviderGemini:
		c.Embedding.APIKey = getEnv("GEMINI_API_KEY", "")
	default:
		c.Embedding.APIKey = getEnv("OPENAI_API_KEY", "")
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// AIConfig converts the embedding section to an ai.Config.
func (c *Config) AIConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithProvider(c.Embedding.Provider),
		ai.WithEmbeddingHost(c.Embedding.Host),
		ai.WithEmbeddingModel(c.Embedding.Model),
		ai.WithAPIKey(c.Embedding.APIKey),
	)
}

// Validate checks ranges and required values.
func (c *Config) Validate() error {
	if c.Listing.BaseURL == "" {
		return errors.New("config: listing.base_url is required")
	}
	if c.Listing.Pages < 1 {
		return errors.New("config: listing.pages must be at least 1")
	}
	if c.Listing.PageDelay < 0 {
		return errors.New("config: listing.page_delay cannot be negative")
	}
	if c.Storage.ContentDir == "" || c.Storage.VectorDir == "" || c.Storage.LedgerDB == "" {
		return errors.New("config: storage.content_dir, storage.vector_dir and storage.ledger_db are required")
	}
	if c.Storage.Collection == "" {
		return errors.New("config: storage.collection is required")
	}
	if c.Chunking.Size < 1 {
		return errors.New("config: chunking.size must be positive")
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("config: chunking.overlap must be in [0, %d)", c.Chunking.Size)
	}
	if err := c.AIConfig().Validate(); err != nil {
		return err
	}
	return nil
}
