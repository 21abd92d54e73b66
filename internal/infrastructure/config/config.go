// Package config assembles the runtime configuration: defaults, then an
// optional YAML file, then ZENIX_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"zenix/internal/application/port/output"
	"zenix/internal/infrastructure/browser/rod"
	"zenix/internal/infrastructure/llm/gemini"
	"zenix/internal/infrastructure/llm/proxyclient"
	"zenix/internal/infrastructure/logger"
	"zenix/internal/infrastructure/server"
	"zenix/internal/usecase/chat"
)

const (
	EnvPrefix = "ZENIX"

	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	MemoryStorage = ":memory:"
)

type Config struct {
	Server  server.Config      `yaml:"server" envconfig:"SERVER"`
	Log     logger.Config      `yaml:"log" envconfig:"LOG"`
	LLM     LLMConfig          `yaml:"llm" envconfig:"LLM"`
	Chat    chat.Config        `yaml:"chat" envconfig:"CHAT"`
	Proxy   proxyclient.Config `yaml:"proxy" envconfig:"PROXY"`
	Browser rod.BrowserConfig  `yaml:"browser" envconfig:"BROWSER"`
	Storage StorageConfig      `yaml:"storage" envconfig:"STORAGE"`
	// ContentMode is "html" or "text".
	ContentMode string `yaml:"content_mode" split_words:"true"`
}

type LLMConfig struct {
	Provider string `yaml:"provider" split_words:"true"`
	Model    string `yaml:"model" split_words:"true"`
	BaseURL  string `yaml:"base_url" split_words:"true"`
}

type StorageConfig struct {
	// Path of the sqlite database, or ":memory:".
	Path string `yaml:"path" split_words:"true"`
}

func Default() Config {
	return Config{
		Server:      server.DefaultConfig(),
		Log:         logger.DefaultConfig(),
		LLM:         LLMConfig{Provider: ProviderGemini, Model: gemini.DefaultModel},
		Chat:        chat.DefaultConfig(),
		Proxy:       proxyclient.DefaultConfig(),
		Browser:     rod.DefaultConfig(),
		Storage:     StorageConfig{Path: defaultStoragePath()},
		ContentMode: "html",
	}
}

func defaultStoragePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return MemoryStorage
	}
	return filepath.Join(dir, "zenix", "zenix.db")
}

// Load reads path when it is set and applies the environment on top. PORT
// is honored for the listen address when ZENIX_SERVER_ADDR is not set.
func Load(path string, env output.ConfigPort) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("process environment: %w", err)
	}
	if _, set := env.Lookup(EnvPrefix + "_SERVER_ADDR"); !set {
		if port := env.Get("PORT"); port != "" {
			cfg.Server.Addr = ":" + port
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	if c.LLM.Provider == ProviderOpenAI && c.LLM.Model == "" {
		return errors.New("llm model is required for the openai provider")
	}
	switch c.ContentMode {
	case "html", "text":
	default:
		return fmt.Errorf("unknown content mode %q", c.ContentMode)
	}
	if c.Chat.MaxSteps < 0 {
		return fmt.Errorf("chat max_steps must not be negative, got %d", c.Chat.MaxSteps)
	}
	return nil
}
