package openai

import (
	"fmt"
	"os"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"gopkg.in/yaml.v3"
)

const (
	DefaultModel       = goopenai.GPT4oMini
	DefaultMaxTokens   = 1000
	DefaultTemperature = 0.7
	DefaultTimeout     = 30 * time.Second
	AssistantsVersion  = "assistants=v2"

	MinTimeout   = time.Second
	MaxTimeout   = 600 * time.Second
	MaxMaxTokens = 128000
)

type Config struct {
	BaseURL      string        `yaml:"base_url"`
	DefaultModel string        `yaml:"default_model"`
	MaxTokens    int           `yaml:"max_tokens"`
	Temperature  float32       `yaml:"temperature"`
	Timeout      time.Duration `yaml:"timeout"`
	// sent as OpenAI-Beta on assistants, threads and vector store paths
	AssistantsVersion string `yaml:"assistants_version"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL:           goopenai.DefaultConfig("").BaseURL,
		DefaultModel:      DefaultModel,
		MaxTokens:         DefaultMaxTokens,
		Temperature:       DefaultTemperature,
		Timeout:           DefaultTimeout,
		AssistantsVersion: AssistantsVersion,
	}
}

func (c Config) Validate() error {
	if c.BaseURL == "" {
		return Validationf("base_url must not be empty")
	}
	if c.DefaultModel == "" {
		return Validationf("default_model must not be empty")
	}
	if c.MaxTokens < 1 || c.MaxTokens > MaxMaxTokens {
		return Validationf("max_tokens %d outside [1, %d]", c.MaxTokens, MaxMaxTokens)
	}
	if err := ValidateTemperature(c.Temperature); err != nil {
		return err
	}
	if c.Timeout < MinTimeout || c.Timeout > MaxTimeout {
		return Validationf("timeout %s outside [%s, %s]", c.Timeout, MinTimeout, MaxTimeout)
	}
	return nil
}

func ValidateTemperature(t float32) error {
	if t < 0 || t > 2 {
		return Validationf("temperature %.2f outside [0, 2]", t)
	}
	return nil
}

func ValidatePenalty(name string, p float32) error {
	if p < -2 || p > 2 {
		return Validationf("%s %.2f outside [-2, 2]", name, p)
	}
	return nil
}

func (c Config) WithModel(model string) (Config, error) {
	c.DefaultModel = model
	return c, c.Validate()
}

func (c Config) WithMaxTokens(n int) (Config, error) {
	c.MaxTokens = n
	return c, c.Validate()
}

func (c Config) WithTemperature(t float32) (Config, error) {
	c.Temperature = t
	return c, c.Validate()
}

func (c Config) WithTimeout(d time.Duration) (Config, error) {
	c.Timeout = d
	return c, c.Validate()
}

// LoadConfigFile overlays the YAML file at path onto the defaults.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, Validationf("parse config %s: %v", path, err)
	}
	return cfg, cfg.Validate()
}
