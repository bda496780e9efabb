// Package config loads and validates engine configuration.
//
// Precedence, lowest to highest: built-in defaults, YAML config file,
// environment variables (FATHOM_*). A .env file next to the config is
// loaded before environment variables are read.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Chunking defaults, sized in characters.
const (
	DefaultMaxChunkSize = 2000
	DefaultMinChunkSize = 100
	DefaultChunkOverlap = 200
)

// Search defaults.
const (
	// DefaultRRFAlpha balances lexical and vector rankings equally.
	DefaultRRFAlpha = 0.5
	// DefaultRRFConstant is the RRF smoothing parameter (industry standard).
	DefaultRRFConstant = 60
	DefaultMaxResults  = 10
)

// Scanner defaults.
const (
	// DefaultMaxFileSize is the size ceiling for indexable files (5MB).
	DefaultMaxFileSize int64 = 5 * 1024 * 1024
	// DefaultBinarySampleSize is how many leading bytes the binary
	// heuristic inspects.
	DefaultBinarySampleSize = 8192
	// DefaultBinaryMaxRatio is the non-text-byte ratio above which a file
	// is treated as binary.
	DefaultBinaryMaxRatio = 0.30
)

// Config is the complete engine configuration.
type Config struct {
	Version    int              `yaml:"version"`
	DataDir    string           `yaml:"data_dir"`
	Paths      PathsConfig      `yaml:"paths"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Search     SearchConfig     `yaml:"search"`
	Scanner    ScannerConfig    `yaml:"scanner"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	LogLevel   string           `yaml:"log_level"`
	LogFile    string           `yaml:"log_file"`
}

// PathsConfig configures which paths are indexable.
type PathsConfig struct {
	// IgnoreDirs are directory names skipped during the walk.
	IgnoreDirs []string `yaml:"ignore_dirs"`
	// IgnoreFiles are filename patterns skipped during the walk.
	IgnoreFiles []string `yaml:"ignore_files"`
	// Extensions is the supported extension set (with leading dot).
	// Files with other extensions are not indexed.
	Extensions []string `yaml:"extensions"`
}

// ChunkingConfig carries the chunk sizing tunables, in characters.
type ChunkingConfig struct {
	MaxChunkSize int `yaml:"max_chunk_size"`
	MinChunkSize int `yaml:"min_chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// SearchConfig configures hybrid retrieval.
type SearchConfig struct {
	// RRFAlpha is the blend weight for the vector ranking (0.0-1.0).
	// The lexical ranking receives 1-alpha.
	RRFAlpha float64 `yaml:"rrf_alpha"`
	// RRFConstant is the RRF smoothing parameter (k).
	RRFConstant int `yaml:"rrf_constant"`
	// MaxResults caps the default result count.
	MaxResults int `yaml:"max_results"`
}

// ScannerConfig configures change detection.
type ScannerConfig struct {
	MaxFileSize      int64   `yaml:"max_file_size"`
	BinarySampleSize int     `yaml:"binary_sample_size"`
	BinaryMaxRatio   float64 `yaml:"binary_max_ratio"`
}

// EmbeddingsConfig configures the optional embedding backend.
type EmbeddingsConfig struct {
	// Provider selects the backend: "ollama", "openai", or "none".
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	// OllamaHost is the Ollama API endpoint (default http://localhost:11434).
	OllamaHost string `yaml:"ollama_host"`
	// OpenAIKey is usually supplied via OPENAI_API_KEY instead.
	OpenAIKey string `yaml:"openai_key"`
	BatchSize int    `yaml:"batch_size"`
	CacheSize int    `yaml:"cache_size"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			IgnoreDirs: []string{
				".git", ".hg", ".svn", "node_modules", "vendor",
				"__pycache__", ".venv", "venv", "dist", "build",
				"target", ".idea", ".vscode",
			},
			IgnoreFiles: []string{
				"*.min.js", "*.min.css", "package-lock.json",
				"yarn.lock", "pnpm-lock.yaml", "go.sum",
			},
			Extensions: []string{
				".go", ".py", ".js", ".jsx", ".ts", ".tsx", ".mjs",
				".md", ".markdown", ".rst", ".txt", ".yaml", ".yml",
				".json", ".toml", ".sh", ".sql", ".html", ".css",
			},
		},
		Chunking: ChunkingConfig{
			MaxChunkSize: DefaultMaxChunkSize,
			MinChunkSize: DefaultMinChunkSize,
			ChunkOverlap: DefaultChunkOverlap,
		},
		Search: SearchConfig{
			RRFAlpha:    DefaultRRFAlpha,
			RRFConstant: DefaultRRFConstant,
			MaxResults:  DefaultMaxResults,
		},
		Scanner: ScannerConfig{
			MaxFileSize:      DefaultMaxFileSize,
			BinarySampleSize: DefaultBinarySampleSize,
			BinaryMaxRatio:   DefaultBinaryMaxRatio,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "ollama",
			Model:      "nomic-embed-text",
			OllamaHost: "http://localhost:11434",
			BatchSize:  32,
			CacheSize:  1000,
		},
		LogLevel: "info",
	}
}

// Load reads configuration from path, applying defaults and then
// environment overrides. A missing file is not an error; defaults are used.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
		// A .env beside the config supplies secrets like OPENAI_API_KEY.
		_ = godotenv.Load(filepath.Join(filepath.Dir(path), ".env"))
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv applies FATHOM_* environment overrides.
func (c *Config) applyEnv() {
	if v := os.Getenv("FATHOM_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("FATHOM_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("FATHOM_EMBEDDER"); v != "" {
		c.Embeddings.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("FATHOM_EMBED_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("FATHOM_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && c.Embeddings.OpenAIKey == "" {
		c.Embeddings.OpenAIKey = v
	}
	if v := os.Getenv("FATHOM_RRF_ALPHA"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Search.RRFAlpha = f
		}
	}
	if v := os.Getenv("FATHOM_MAX_FILE_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			c.Scanner.MaxFileSize = n
		}
	}
}

// Validate checks invariants and fills zero values with defaults.
func (c *Config) Validate() error {
	if c.Chunking.MaxChunkSize <= 0 {
		c.Chunking.MaxChunkSize = DefaultMaxChunkSize
	}
	if c.Chunking.MinChunkSize <= 0 {
		c.Chunking.MinChunkSize = DefaultMinChunkSize
	}
	if c.Chunking.MinChunkSize > c.Chunking.MaxChunkSize {
		return fmt.Errorf("min_chunk_size %d exceeds max_chunk_size %d",
			c.Chunking.MinChunkSize, c.Chunking.MaxChunkSize)
	}
	if c.Chunking.ChunkOverlap < 0 {
		return fmt.Errorf("chunk_overlap must be non-negative, got %d", c.Chunking.ChunkOverlap)
	}
	if c.Search.RRFAlpha < 0 || c.Search.RRFAlpha > 1 {
		return fmt.Errorf("rrf_alpha must be in [0,1], got %g", c.Search.RRFAlpha)
	}
	if c.Search.RRFConstant <= 0 {
		c.Search.RRFConstant = DefaultRRFConstant
	}
	if c.Search.MaxResults <= 0 {
		c.Search.MaxResults = DefaultMaxResults
	}
	if c.Scanner.MaxFileSize <= 0 {
		c.Scanner.MaxFileSize = DefaultMaxFileSize
	}
	if c.Scanner.BinarySampleSize <= 0 {
		c.Scanner.BinarySampleSize = DefaultBinarySampleSize
	}
	if c.Scanner.BinaryMaxRatio <= 0 || c.Scanner.BinaryMaxRatio > 1 {
		c.Scanner.BinaryMaxRatio = DefaultBinaryMaxRatio
	}
	if c.Embeddings.BatchSize <= 0 {
		c.Embeddings.BatchSize = 32
	}
	if c.Embeddings.CacheSize <= 0 {
		c.Embeddings.CacheSize = 1000
	}
	return nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
