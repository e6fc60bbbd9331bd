package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	Analyzer   AnalyzerConfig   `mapstructure:"analyzer"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	MCP        MCPConfig        `mapstructure:"mcp"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	TLSEnabled     bool          `mapstructure:"tls_enabled"`
	CertFile       string        `mapstructure:"cert_file"`
	KeyFile        string        `mapstructure:"key_file"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// StorageConfig selects where accumulated patient records are kept
type StorageConfig struct {
	Driver     string `mapstructure:"driver"` // "sqlite", "postgres" or "none"
	SQLitePath string `mapstructure:"sqlite_path"`
}

// CatalogConfig points at the symptom catalog and the text resources of the
// built-in analyzer. Empty paths select the embedded defaults.
type CatalogConfig struct {
	Path        string `mapstructure:"path"`
	LexiconPath string `mapstructure:"lexicon_path"`
	TermsetPath string `mapstructure:"termset_path"`
}

// AnalyzerConfig represents text-analysis engine configuration
type AnalyzerConfig struct {
	Mode       string        `mapstructure:"mode"` // "local", "remote"
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RateLimit  int           `mapstructure:"rate_limit"`
	RetryCount int           `mapstructure:"retry_count"`
	BatchSize  int           `mapstructure:"batch_size"`
}

// ExtractionConfig represents extraction strategy configuration
type ExtractionConfig struct {
	Strategy       string `mapstructure:"strategy"` // "pattern", "substring"
	Concurrency    int    `mapstructure:"concurrency"`
	SplitSentences bool   `mapstructure:"split_sentences"`
}

// CacheConfig represents analysis cache configuration
type CacheConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	RedisURL    string        `mapstructure:"redis_url"`
	DefaultTTL  time.Duration `mapstructure:"default_ttl"`
	MaxItems    int           `mapstructure:"max_items"`
	MaxRetries  int           `mapstructure:"max_retries"`
	PoolSize    int           `mapstructure:"pool_size"`
	PoolTimeout time.Duration `mapstructure:"pool_timeout"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MCPConfig represents MCP server configuration
type MCPConfig struct {
	ServerName    string        `mapstructure:"server_name"`
	ServerVersion string        `mapstructure:"server_version"`
	ToolTimeout   time.Duration `mapstructure:"tool_timeout"`
}
