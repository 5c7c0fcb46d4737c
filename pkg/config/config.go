// Package config loads Glide's settings from a JSON or YAML file with
// GLIDE_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. GLIDE_PROVIDERS_OPENAI_API_KEY.
const EnvPrefix = "GLIDE"

// Names of the gateways and providers that can be configured from the
// environment alone.
var (
	knownGateways  = []string{"telegram", "discord"}
	knownProviders = []string{"ollama", "openai", "openrouter"}
)

type Config struct {
	App        AppConfig                 `mapstructure:"app"`
	Gateways   map[string]GatewayConfig  `mapstructure:"gateways"`
	Providers  map[string]ProviderConfig `mapstructure:"providers"`
	Memory     MemoryConfig              `mapstructure:"memory"`
	Generation GenerationConfig          `mapstructure:"generation"`
	Policy     PolicyConfig              `mapstructure:"policy"`
	Reminders  RemindersConfig           `mapstructure:"reminders"`
	Logging    LoggingConfig             `mapstructure:"logging"`
}

type AppConfig struct {
	Name      string `mapstructure:"name"`
	Workspace string `mapstructure:"workspace"`
}

type GatewayConfig struct {
	Token   string `mapstructure:"token"`
	Enabled bool   `mapstructure:"enabled"`
}

type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
	Enabled bool   `mapstructure:"enabled"`
}

type MemoryConfig struct {
	Type string `mapstructure:"type"`
	Path string `mapstructure:"path"`
}

// GenerationConfig controls breakdown and split model calls.
type GenerationConfig struct {
	Streaming  bool          `mapstructure:"streaming"`
	PromptsDir string        `mapstructure:"prompts_dir"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// PolicyConfig lists patterns that tasks and companion tool calls may not match.
type PolicyConfig struct {
	DenyPatterns []string `mapstructure:"deny_patterns"`
	DenyTools    []string `mapstructure:"deny_tools"`
}

type RemindersConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

type LoggingConfig struct {
	// LLMLog is the LLM transcript file; empty disables it.
	LLMLog string `mapstructure:"llm_log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "glide")
	v.SetDefault("app.workspace", ".")
	v.SetDefault("memory.type", "sqlite")
	v.SetDefault("memory.path", "data/glide.db")
	v.SetDefault("generation.streaming", false)
	v.SetDefault("generation.prompts_dir", "")
	v.SetDefault("generation.timeout", 90*time.Second)
	v.SetDefault("policy.deny_patterns", []string{})
	v.SetDefault("policy.deny_tools", []string{})
	v.SetDefault("reminders.poll_interval", 30*time.Second)
	v.SetDefault("logging.llm_log", "logs/llm.jsonl")

	// Register nested keys so AutomaticEnv can see them without a file.
	for _, g := range knownGateways {
		v.SetDefault("gateways."+g+".token", "")
		v.SetDefault("gateways."+g+".enabled", false)
	}
	for _, p := range knownProviders {
		v.SetDefault("providers."+p+".api_key", "")
		v.SetDefault("providers."+p+".model", "")
		v.SetDefault("providers."+p+".base_url", "")
		v.SetDefault("providers."+p+".enabled", false)
	}
}

// Load reads path, or config.{json,yaml} in the working directory when
// path is empty. A missing default file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config from %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

// GetDefaultProvider returns the enabled provider with the lowest name.
func (c *Config) GetDefaultProvider() (string, ProviderConfig) {
	names := make([]string, 0, len(c.Providers))
	for name, p := range c.Providers {
		if p.Enabled {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "", ProviderConfig{}
	}
	sort.Strings(names)
	return names[0], c.Providers[names[0]]
}

// GetGateway returns a gateway's config if it is enabled.
func (c *Config) GetGateway(name string) (GatewayConfig, bool) {
	g, ok := c.Gateways[name]
	if ok && g.Enabled {
		return g, true
	}
	return GatewayConfig{}, false
}
