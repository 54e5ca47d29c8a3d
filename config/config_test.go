package config_test

import (
	"testing"
	"time"

	"github.com/effective-security/askmodel/backend"
	"github.com/effective-security/askmodel/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "openai-server", cfg.Server.Name)
	assert.Equal(t, "0.1.0", cfg.Server.Version)
	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, int64(backend.DefaultMaxImageSize), cfg.Image.MaxBytes)
	assert.True(t, cfg.Image.RemoteImagesAllowed())
	assert.False(t, cfg.Dispatch.StrictValidation)

	timeout, err := cfg.Dispatch.Timeout()
	require.NoError(t, err)
	assert.Zero(t, timeout)

	require.Len(t, cfg.LLM.Providers, 1)
	p := cfg.LLM.Providers[0]
	assert.Equal(t, "openai", p.Name)
	assert.Equal(t, "gpt-4", p.DefaultModel)
	assert.Equal(t, "OPENAI", p.OpenAI.APIType)
	assert.Empty(t, p.Token)
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "fakekey")
	t.Setenv("ANTHROPIC_API_KEY", "")

	cfg, err := config.Load("testdata/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.Dispatch.StrictValidation)
	assert.Equal(t, int64(1048576), cfg.Image.MaxBytes)
	assert.False(t, cfg.Image.RemoteImagesAllowed())

	timeout, err := cfg.Dispatch.Timeout()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, timeout)

	assert.Equal(t, "openai", cfg.LLM.DefaultProvider)
	require.Len(t, cfg.LLM.Providers, 2)
	assert.Equal(t, "fakekey", cfg.LLM.Providers[0].Token)
	assert.Empty(t, cfg.LLM.Providers[1].Token)
	assert.Equal(t, "ANTHROPIC", cfg.LLM.Providers[1].OpenAI.APIType)

	// the default tool model is not sent to the anthropic provider
	assert.Equal(t, "claude-sonnet-4-5", cfg.LLM.Providers[1].FindModel("gpt-4"))
	assert.Equal(t, "claude-haiku-4-5", cfg.LLM.Providers[1].FindModel("claude-haiku-4-5"))
}

func TestLoad_LLMConfig(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "fakekey")

	cfg, err := config.Load("testdata/with_llm_config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "askmodel", cfg.Server.Name)
	assert.Equal(t, "anthropic", cfg.LLM.DefaultProvider)
	require.Len(t, cfg.LLM.Providers, 1)
	p := cfg.LLM.Providers[0]
	assert.Equal(t, "fakekey", p.Token)
	assert.Equal(t, "ANTHROPIC", p.OpenAI.APIType)
	assert.Equal(t, []string{"claude-sonnet-4-5", "claude-haiku-4-5"}, p.AvailableModels)

	_, err = config.Load("testdata/missing_llm_config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load llm config /nonexistent/llm.yaml")
}

func TestLoad_Errors(t *testing.T) {
	_, err := config.Load("testdata/missing.yaml")
	assert.Error(t, err)

	_, err = config.Load("testdata/invalid_timeout.yaml")
	assert.EqualError(t, err, `invalid call_timeout: "soon"`)

	_, err = config.Load("testdata/invalid_format.yaml")
	assert.EqualError(t, err, "unsupported log format: xml")
}
