package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/askmodel/backend"
	"github.com/effective-security/askmodel/pkg/llmfactory"
	"github.com/effective-security/x/configloader"
	"github.com/effective-security/x/values"
)

// Defaults
const (
	DefaultServerName    = "openai-server"
	DefaultServerVersion = "0.1.0"
	DefaultLogLevel      = "INFO"
	DefaultModel         = "gpt-4"
)

// Config of the server
type Config struct {
	Server   ServerConfig      `json:"server" yaml:"server"`
	LLM      llmfactory.Config `json:"llm" yaml:"llm"`
	Dispatch DispatchConfig    `json:"dispatch" yaml:"dispatch"`
	Image    ImageConfig       `json:"image" yaml:"image"`
	Logging  LoggingConfig     `json:"logging" yaml:"logging"`

	// LLMConfig is the path of a separate file with the llm providers,
	// relative to the directory of the config file.
	// When set, it replaces the llm section.
	LLMConfig string `json:"llm_config,omitempty" yaml:"llm_config,omitempty"`
}

// ServerConfig is the identity reported to the host
type ServerConfig struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
}

// DispatchConfig specifies the tool dispatch policy
type DispatchConfig struct {
	// StrictValidation rejects arguments outside of the declared
	// enum and range constraints before the backend is called.
	StrictValidation bool `json:"strict_validation" yaml:"strict_validation"`
	// CallTimeout limits each tool call, e.g. 60s. Empty means no limit.
	CallTimeout string `json:"call_timeout,omitempty" yaml:"call_timeout,omitempty"`
}

// ImageConfig specifies the image loading options
type ImageConfig struct {
	// MaxBytes is the image size limit, 20 MiB by default.
	MaxBytes int64 `json:"max_bytes,omitempty" yaml:"max_bytes,omitempty"`
	// AllowRemote allows http(s) URLs as image references.
	AllowRemote *bool `json:"allow_remote,omitempty" yaml:"allow_remote,omitempty"`
}

// LoggingConfig specifies the log level and format
type LoggingConfig struct {
	// Level is one of TRACE, DEBUG, INFO, NOTICE, WARNING, ERROR, CRITICAL
	Level string `json:"level,omitempty" yaml:"level,omitempty"`
	// Format is text or json
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// Default returns the configuration with a single OpenAI provider
func Default() *Config {
	cfg := new(Config)
	cfg.applyDefaults()
	return cfg
}

// Load returns the configuration from file,
// environment variables in the file are expanded.
// If file is empty, the defaults are returned.
func Load(file string) (*Config, error) {
	if file == "" {
		return Default(), nil
	}

	cfg := new(Config)
	err := configloader.UnmarshalAndExpand(file, cfg)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to load config %s", file)
	}

	if cfg.LLMConfig != "" {
		llmFile := cfg.LLMConfig
		if !filepath.IsAbs(llmFile) {
			llmFile = filepath.Join(filepath.Dir(file), llmFile)
		}
		llm, err := llmfactory.LoadConfig(llmFile)
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to load llm config %s", llmFile)
		}
		cfg.LLM = *llm
	}
	cfg.applyDefaults()

	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	c.Server.Name = values.StringsCoalesce(c.Server.Name, DefaultServerName)
	c.Server.Version = values.StringsCoalesce(c.Server.Version, DefaultServerVersion)
	c.Logging.Level = values.StringsCoalesce(c.Logging.Level, DefaultLogLevel)
	c.Logging.Format = values.StringsCoalesce(c.Logging.Format, "text")
	c.Image.MaxBytes = values.NumbersCoalesce(c.Image.MaxBytes, backend.DefaultMaxImageSize)
	if c.Image.AllowRemote == nil {
		allow := true
		c.Image.AllowRemote = &allow
	}

	if len(c.LLM.Providers) == 0 {
		c.LLM.Providers = []*llmfactory.ProviderConfig{
			{
				Name:         "openai",
				DefaultModel: DefaultModel,
				OpenAI: llmfactory.OpenAIConfig{
					APIType: "OPENAI",
				},
			},
		}
	}
	for _, p := range c.LLM.Providers {
		p.DefaultModel = values.StringsCoalesce(p.DefaultModel, DefaultModel)
	}
}

// Validate returns error if the configuration is invalid
func (c *Config) Validate() error {
	if _, err := c.Dispatch.Timeout(); err != nil {
		return err
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return errors.Newf("unsupported log format: %s", c.Logging.Format)
	}
	if c.Image.MaxBytes < 0 {
		return errors.Newf("invalid image max_bytes: %d", c.Image.MaxBytes)
	}
	return nil
}

// Timeout returns the parsed call timeout, zero if not set
func (c *DispatchConfig) Timeout() (time.Duration, error) {
	if c.CallTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.CallTimeout)
	if err != nil || d < 0 {
		return 0, errors.Newf("invalid call_timeout: %q", c.CallTimeout)
	}
	return d, nil
}

// RemoteImagesAllowed returns true if http(s) image references are allowed
func (c *ImageConfig) RemoteImagesAllowed() bool {
	return c.AllowRemote == nil || *c.AllowRemote
}
