package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/anamnesis-symptom-engine/internal/domain"
)

// LiteConfig is a simplified configuration for standalone operation.
// It requires no external services: records live in SQLite and text is
// analysed in-process unless an analyzer URL is given.
type LiteConfig struct {
	// Data storage
	DataDir string // Base directory for data files

	// Symptom resources; empty paths use the embedded defaults
	CatalogPath string
	LexiconPath string
	TermsetPath string

	// Extraction
	Strategy       string // pattern or substring
	SplitSentences bool
	Concurrency    int

	// Remote analyzer; empty means the built-in rule analyzer
	AnalyzerURL    string
	AnalyzerAPIKey string

	// Cache settings
	CacheMaxItems int           // Maximum items in memory cache
	CacheTTL      time.Duration // Default cache TTL

	// Transport settings
	Transport string // Transport type: stdio, http
	HTTPPort  int    // HTTP port (if transport is http)

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".anamnesis")

	return &LiteConfig{
		DataDir:       dataDir,
		Strategy:      "pattern",
		Concurrency:   4,
		CacheMaxItems: 1000,
		CacheTTL:      24 * time.Hour,
		Transport:     "stdio",
		HTTPPort:      8080,
		LogLevel:      "info",
		LogFormat:     "json",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("ANAMNESIS_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	cfg.CatalogPath = os.Getenv("ANAMNESIS_CATALOG_PATH")
	cfg.LexiconPath = os.Getenv("ANAMNESIS_LEXICON_PATH")
	cfg.TermsetPath = os.Getenv("ANAMNESIS_TERMSET_PATH")

	if v := os.Getenv("ANAMNESIS_STRATEGY"); v != "" {
		cfg.Strategy = v
	}
	if v := os.Getenv("ANAMNESIS_SPLIT_SENTENCES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.SplitSentences = b
		}
	}
	if v := os.Getenv("ANAMNESIS_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Concurrency = n
		}
	}

	cfg.AnalyzerURL = os.Getenv("ANAMNESIS_ANALYZER_URL")
	cfg.AnalyzerAPIKey = os.Getenv("ANAMNESIS_ANALYZER_API_KEY")

	if v := os.Getenv("ANAMNESIS_CACHE_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxItems = n
		}
	}
	if v := os.Getenv("ANAMNESIS_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CacheTTL = d
		}
	}

	if v := os.Getenv("ANAMNESIS_TRANSPORT"); v != "" {
		cfg.Transport = v
	}
	if v := os.Getenv("ANAMNESIS_HTTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HTTPPort = n
		}
	}

	if v := os.Getenv("ANAMNESIS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("ANAMNESIS_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// PatientDBPath returns the path to the patient record SQLite database.
func (c *LiteConfig) PatientDBPath() string {
	return filepath.Join(c.DataDir, "patients.db")
}

// ExportDir returns the directory for JSON exports.
func (c *LiteConfig) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(c.ExportDir(), 0755)
}

// ToConfig expands the lite settings into a full configuration so both
// servers are assembled the same way.
func (c *LiteConfig) ToConfig() *domain.Config {
	mode := "local"
	if c.AnalyzerURL != "" {
		mode = "remote"
	}
	return &domain.Config{
		Server: domain.ServerConfig{Host: "127.0.0.1", Port: c.HTTPPort},
		Storage: domain.StorageConfig{
			Driver:     "sqlite",
			SQLitePath: c.PatientDBPath(),
		},
		Catalog: domain.CatalogConfig{
			Path:        c.CatalogPath,
			LexiconPath: c.LexiconPath,
			TermsetPath: c.TermsetPath,
		},
		Analyzer: domain.AnalyzerConfig{
			Mode:       mode,
			BaseURL:    c.AnalyzerURL,
			APIKey:     c.AnalyzerAPIKey,
			Timeout:    30 * time.Second,
			RateLimit:  10,
			RetryCount: 3,
			BatchSize:  32,
		},
		Extraction: domain.ExtractionConfig{
			Strategy:       c.Strategy,
			Concurrency:    c.Concurrency,
			SplitSentences: c.SplitSentences,
		},
		Cache: domain.CacheConfig{
			Enabled:    c.CacheMaxItems > 0,
			DefaultTTL: c.CacheTTL,
			MaxItems:   c.CacheMaxItems,
		},
		Logging: domain.LoggingConfig{
			Level:  c.LogLevel,
			Format: c.LogFormat,
			Output: "stderr",
		},
		MCP: domain.MCPConfig{
			ServerName:    "anamnesis-symptom-engine",
			ServerVersion: "1.0.0",
			ToolTimeout:   30 * time.Second,
		},
	}
}
