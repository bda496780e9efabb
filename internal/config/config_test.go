package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, DefaultMaxChunkSize, cfg.Chunking.MaxChunkSize)
	assert.Equal(t, DefaultRRFAlpha, cfg.Search.RRFAlpha)
	assert.Equal(t, DefaultRRFConstant, cfg.Search.RRFConstant)
	assert.Equal(t, DefaultMaxFileSize, cfg.Scanner.MaxFileSize)
	assert.Equal(t, "ollama", cfg.Embeddings.Provider)
	assert.Contains(t, cfg.Paths.IgnoreDirs, "node_modules")
	assert.Contains(t, cfg.Paths.Extensions, ".go")
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Chunking, cfg.Chunking)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fathom.yaml")
	yaml := `
chunking:
  max_chunk_size: 4000
  min_chunk_size: 50
search:
  rrf_alpha: 0.8
  max_results: 25
embeddings:
  provider: none
log_level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.Chunking.MaxChunkSize)
	assert.Equal(t, 50, cfg.Chunking.MinChunkSize)
	assert.Equal(t, 0.8, cfg.Search.RRFAlpha)
	assert.Equal(t, 25, cfg.Search.MaxResults)
	assert.Equal(t, "none", cfg.Embeddings.Provider)
	assert.Equal(t, "debug", cfg.LogLevel)
	// Untouched sections keep defaults.
	assert.Equal(t, DefaultChunkOverlap, cfg.Chunking.ChunkOverlap)
	assert.Equal(t, DefaultRRFConstant, cfg.Search.RRFConstant)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fathom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("embeddings:\n  provider: ollama\n"), 0o644))

	t.Setenv("FATHOM_EMBEDDER", "OpenAI")
	t.Setenv("FATHOM_RRF_ALPHA", "0.25")
	t.Setenv("FATHOM_DATA_DIR", "/tmp/fathom-data")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Embeddings.Provider)
	assert.Equal(t, 0.25, cfg.Search.RRFAlpha)
	assert.Equal(t, "/tmp/fathom-data", cfg.DataDir)
}

func TestLoad_DotEnvBesideConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fathom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: 1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("OPENAI_API_KEY=sk-test\n"), 0o644))
	t.Setenv("OPENAI_API_KEY", "")
	os.Unsetenv("OPENAI_API_KEY")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.Embeddings.OpenAIKey)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fathom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunking: [not a map"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate_FillsZeroValues(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DefaultMaxChunkSize, cfg.Chunking.MaxChunkSize)
	assert.Equal(t, DefaultMinChunkSize, cfg.Chunking.MinChunkSize)
	assert.Equal(t, DefaultRRFConstant, cfg.Search.RRFConstant)
	assert.Equal(t, DefaultMaxResults, cfg.Search.MaxResults)
	assert.Equal(t, DefaultMaxFileSize, cfg.Scanner.MaxFileSize)
	assert.Equal(t, 32, cfg.Embeddings.BatchSize)
}

func TestValidate_Rejections(t *testing.T) {
	cfg := Default()
	cfg.Chunking.MinChunkSize = 5000
	assert.Error(t, cfg.Validate(), "min above max")

	cfg = Default()
	cfg.Chunking.ChunkOverlap = -1
	assert.Error(t, cfg.Validate(), "negative overlap")

	cfg = Default()
	cfg.Search.RRFAlpha = 1.5
	assert.Error(t, cfg.Validate(), "alpha above 1")

	cfg = Default()
	cfg.Search.RRFAlpha = -0.1
	assert.Error(t, cfg.Validate(), "alpha below 0")
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "fathom.yaml")

	cfg := Default()
	cfg.Search.RRFAlpha = 0.7
	cfg.Embeddings.Provider = "none"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.7, loaded.Search.RRFAlpha)
	assert.Equal(t, "none", loaded.Embeddings.Provider)
}
