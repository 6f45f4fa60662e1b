package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type LoggingConfig struct {
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
	File    string `yaml:"file,omitempty"`
	Journal bool   `yaml:"journal,omitempty"`
}

// ModelConfig is one named model template. Node keys reference templates by
// name, so several nodes can share one provider configuration.
type ModelConfig struct {
	Type            string            `yaml:"type"`
	Model           string            `yaml:"model"`
	BaseURL         string            `yaml:"base_url,omitempty"`
	APIKey          string            `yaml:"api_key,omitempty"`
	APIKeyEnv       string            `yaml:"api_key_env,omitempty"`
	MaxOutputTokens int               `yaml:"max_output_tokens,omitempty"`
	Temperature     *float64          `yaml:"temperature,omitempty"`
	TopP            *float64          `yaml:"top_p,omitempty"`
	TimeoutMS       int               `yaml:"timeout_ms,omitempty"`
	Headers         map[string]string `yaml:"headers,omitempty"`
}

// ResolveAPIKey prefers the literal key; APIKeyEnv is consulted at build time
// so config files can stay free of secrets.
func (m ModelConfig) ResolveAPIKey() string {
	if strings.TrimSpace(m.APIKey) != "" {
		return m.APIKey
	}
	if strings.TrimSpace(m.APIKeyEnv) != "" {
		return os.Getenv(m.APIKeyEnv)
	}
	return ""
}

// NodeModels maps each node to a model template name.
type NodeModels struct {
	Observe string `yaml:"observe"`
	Plan    string `yaml:"plan"`
	Action  string `yaml:"action"`
	Review  string `yaml:"review"`
	Commit  string `yaml:"commit"`
}

func (n NodeModels) All() map[string]string {
	return map[string]string{
		"observe":    n.Observe,
		"plan":       n.Plan,
		"action_gen": n.Action,
		"review":     n.Review,
		"commit":     n.Commit,
	}
}

type LoopConfig struct {
	// MaxTransitions bounds the whole run; 0 means unbounded.
	MaxTransitions int `yaml:"max_transitions"`
	// MaxReviewCycles bounds consecutive review passes over an unchanged
	// script before the loop escalates to the operator.
	MaxReviewCycles int `yaml:"max_review_cycles"`
}

type SandboxConfig struct {
	// MaxSteps caps the interpreter's execution steps per script; 0 disables
	// the cap.
	MaxSteps int `yaml:"max_steps"`
}

type Config struct {
	Logging LoggingConfig          `yaml:"logging"`
	Models  map[string]ModelConfig `yaml:"models"`
	Nodes   NodeModels             `yaml:"nodes"`
	Loop    LoopConfig             `yaml:"loop"`
	Sandbox SandboxConfig          `yaml:"sandbox"`
}

func Default() *Config {
	cfg := &Config{
		Models: map[string]ModelConfig{
			"default": {
				Type:            "openai-compat",
				Model:           "gpt-4o-mini",
				BaseURL:         "https://api.openai.com",
				APIKeyEnv:       "OPENAI_API_KEY",
				MaxOutputTokens: 1024,
			},
		},
	}
	cfg.applyDefaults()
	return cfg
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Models == nil {
		c.Models = map[string]ModelConfig{}
	}
	fill := func(name *string) {
		if strings.TrimSpace(*name) == "" {
			*name = "default"
		}
	}
	fill(&c.Nodes.Observe)
	fill(&c.Nodes.Plan)
	fill(&c.Nodes.Action)
	fill(&c.Nodes.Review)
	fill(&c.Nodes.Commit)
	if c.Loop.MaxTransitions == 0 {
		c.Loop.MaxTransitions = 200
	}
	if c.Loop.MaxReviewCycles == 0 {
		c.Loop.MaxReviewCycles = 3
	}
	if c.Sandbox.MaxSteps == 0 {
		c.Sandbox.MaxSteps = 500_000
	}
}

func (c *Config) Validate() error {
	for node, template := range c.Nodes.All() {
		if _, ok := c.Models[template]; !ok {
			return fmt.Errorf("node %s references unknown model template %q", node, template)
		}
	}
	for name, m := range c.Models {
		switch strings.ToLower(strings.TrimSpace(m.Type)) {
		case "openai", "openai-compat", "gemini":
		default:
			return fmt.Errorf("model template %q has unsupported type %q", name, m.Type)
		}
	}
	return nil
}
