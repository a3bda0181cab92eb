package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		configContent := `
server:
  listen: ":9090"
  timeout: 45s

llm:
  api_key: test-key
  model: gpt-4o-mini
  comparison:
    model: gpt-4o
    temperature: 0.4

search:
  keywords:
    - synthetic biology
    - crispr
  relevance_threshold: 7.5
  max_articles: 15
`
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "test-config.yml")
		err := os.WriteFile(configPath, []byte(configContent), 0o644)
		require.NoError(t, err)

		cfg, err := Load(configPath)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, ":9090", cfg.Server.Listen)
		assert.Equal(t, 45*time.Second, cfg.Server.Timeout)

		assert.Equal(t, "test-key", cfg.LLM.APIKey)
		assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
		assert.Equal(t, "gpt-4o", cfg.LLM.Comparison.Model)
		assert.InDelta(t, 0.4, cfg.LLM.Comparison.Temperature, 0.001)

		assert.Equal(t, []string{"synthetic biology", "crispr"}, cfg.Search.Keywords)
		assert.InDelta(t, 7.5, cfg.Search.RelevanceThreshold, 0.001)
		assert.Equal(t, 15, cfg.Search.MaxArticles)
	})

	t.Run("defaults", func(t *testing.T) {
		configContent := `
llm:
  api_key: test-key
`
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "test-config.yml")
		err := os.WriteFile(configPath, []byte(configContent), 0o644)
		require.NoError(t, err)

		cfg, err := Load(configPath)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		// check server defaults
		assert.Equal(t, ":8080", cfg.Server.Listen)
		assert.Equal(t, 30*time.Second, cfg.Server.Timeout)

		// check schedule defaults
		assert.Equal(t, "0 7 * * *", cfg.Schedule.DigestCron)
		assert.Equal(t, "30 3 * * *", cfg.Schedule.CleanupCron)
		assert.Equal(t, 90, cfg.Schedule.RetentionDays)

		// check LLM defaults
		assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
		assert.InDelta(t, 0.7, cfg.LLM.Temperature, 0.001)
		assert.Equal(t, 1000, cfg.LLM.MaxTokens)
		assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)

		// check comparison defaults
		assert.Equal(t, "gpt-4o", cfg.LLM.Comparison.Model)
		assert.InDelta(t, 0.5, cfg.LLM.Comparison.Temperature, 0.001)
		assert.Equal(t, 300, cfg.LLM.Comparison.MaxTokens)

		// check search defaults
		assert.Equal(t, 10, cfg.Search.MaxArticles)
		assert.InDelta(t, 6.0, cfg.Search.RelevanceThreshold, 0.001)
		assert.Equal(t, 15*time.Second, cfg.Search.Timeout)
		assert.NotEmpty(t, cfg.Search.Keywords)

		// check email defaults
		assert.False(t, cfg.Email.Enabled)
		assert.Equal(t, 587, cfg.Email.Port)
	})

	t.Run("env expansion", func(t *testing.T) {
		t.Setenv("TEST_API_KEY", "secret-from-env")
		configContent := `
llm:
  api_key: ${TEST_API_KEY}
`
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "test-config.yml")
		err := os.WriteFile(configPath, []byte(configContent), 0o644)
		require.NoError(t, err)

		cfg, err := Load(configPath)
		require.NoError(t, err)
		assert.Equal(t, "secret-from-env", cfg.LLM.APIKey)
	})

	t.Run("file not found", func(t *testing.T) {
		cfg, err := Load("/non/existent/file.yml")
		require.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "read config file")
	})

	t.Run("invalid yaml", func(t *testing.T) {
		configContent := `
invalid yaml content
  with bad indentation
    and no structure
`
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "invalid.yml")
		err := os.WriteFile(configPath, []byte(configContent), 0o644)
		require.NoError(t, err)

		cfg, err := Load(configPath)
		require.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "parse config")
	})

	t.Run("missing api key", func(t *testing.T) {
		configContent := `
server:
  listen: ":8080"
`
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "no-key.yml")
		err := os.WriteFile(configPath, []byte(configContent), 0o644)
		require.NoError(t, err)

		cfg, err := Load(configPath)
		require.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "llm.api_key is required")
	})

	t.Run("email enabled requires host", func(t *testing.T) {
		configContent := `
llm:
  api_key: test-key
email:
  enabled: true
  from: digest@example.com
`
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "email.yml")
		err := os.WriteFile(configPath, []byte(configContent), 0o644)
		require.NoError(t, err)

		cfg, err := Load(configPath)
		require.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "email.host is required")
	})

	t.Run("invalid threshold", func(t *testing.T) {
		configContent := `
llm:
  api_key: test-key
search:
  relevance_threshold: 12
`
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "threshold.yml")
		err := os.WriteFile(configPath, []byte(configContent), 0o644)
		require.NoError(t, err)

		cfg, err := Load(configPath)
		require.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "relevance_threshold")
	})
}

func TestGetters(t *testing.T) {
	configContent := `
server:
  listen: ":9191"
llm:
  api_key: test-key
email:
  enabled: false
  from: digest@example.com
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "getters.yml")
	err := os.WriteFile(configPath, []byte(configContent), 0o644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	listen, timeout := cfg.GetServerConfig()
	assert.Equal(t, ":9191", listen)
	assert.Equal(t, 30*time.Second, timeout)

	assert.Equal(t, "test-key", cfg.GetLLMConfig().APIKey)
	assert.Equal(t, 10, cfg.GetSearchConfig().MaxArticles)
	assert.Equal(t, "digest@example.com", cfg.GetEmailConfig().From)
	assert.Equal(t, "Genewire/1.0", cfg.GetExtractionConfig().UserAgent)
}
