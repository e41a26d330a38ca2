// Package config loads settings from tapestry.yaml, TAPESTRY_* environment
// variables and bound command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. TAPESTRY_AI_API_KEY.
const EnvPrefix = "TAPESTRY"

type Config struct {
	DataDir string
	Log     LogConfig
	AI      AIConfig
	Tools   ToolsConfig
	Plan    PlanConfig
	Server  ServerConfig
}

type LogConfig struct {
	Level string
	JSON  bool
}

type AIConfig struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	Mode     string
	Breaker  BreakerConfig
}

type BreakerConfig struct {
	Enabled  bool
	Failures uint32
	Timeout  time.Duration
}

type ToolsConfig struct {
	// Enabled lists the framework tool groups; core tools are always on.
	Enabled []string
}

type PlanConfig struct {
	MaxRetries  int
	BackoffBase time.Duration
	SettleDelay time.Duration
}

type ServerConfig struct {
	Transport string
	Addr      string
	Token     string
}

// SetDefaults registers every key with its default so environment variables
// resolve even without a config file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "./data")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.model", "")
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.base_url", "")
	v.SetDefault("ai.mode", "creative")
	v.SetDefault("ai.breaker.enabled", true)
	v.SetDefault("ai.breaker.failures", 5)
	v.SetDefault("ai.breaker.timeout", 30*time.Second)
	v.SetDefault("tools.enabled", []string{"documents", "kanban", "ui"})
	v.SetDefault("plan.max_retries", 3)
	v.SetDefault("plan.backoff_base", time.Second)
	v.SetDefault("plan.settle_delay", time.Second)
	v.SetDefault("server.transport", "stdio")
	v.SetDefault("server.addr", ":8081")
	v.SetDefault("server.token", "")
}

// NewViper returns a viper instance with defaults and environment binding.
// When file is empty it searches ./tapestry.yaml and $HOME/.tapestry/.
func NewViper(file string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("tapestry")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".tapestry"))
		}
	}
	return v
}

// Load reads the config file, if any, and decodes every key. A missing file
// is not an error; a malformed one is.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	cfg := FromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromViper decodes the current values of v without reading files.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		DataDir: v.GetString("data_dir"),
		Log: LogConfig{
			Level: v.GetString("log.level"),
			JSON:  v.GetBool("log.json"),
		},
		AI: AIConfig{
			Provider: strings.ToLower(v.GetString("ai.provider")),
			Model:    v.GetString("ai.model"),
			APIKey:   v.GetString("ai.api_key"),
			BaseURL:  v.GetString("ai.base_url"),
			Mode:     strings.ToLower(v.GetString("ai.mode")),
			Breaker: BreakerConfig{
				Enabled:  v.GetBool("ai.breaker.enabled"),
				Failures: v.GetUint32("ai.breaker.failures"),
				Timeout:  v.GetDuration("ai.breaker.timeout"),
			},
		},
		Tools: ToolsConfig{
			Enabled: v.GetStringSlice("tools.enabled"),
		},
		Plan: PlanConfig{
			MaxRetries:  v.GetInt("plan.max_retries"),
			BackoffBase: v.GetDuration("plan.backoff_base"),
			SettleDelay: v.GetDuration("plan.settle_delay"),
		},
		Server: ServerConfig{
			Transport: strings.ToLower(v.GetString("server.transport")),
			Addr:      v.GetString("server.addr"),
			Token:     v.GetString("server.token"),
		},
	}
}

// Validate rejects unknown enum values and negative durations.
func (c *Config) Validate() error {
	var errs []error
	switch c.AI.Provider {
	case "gemini", "openai":
	default:
		errs = append(errs, fmt.Errorf("ai.provider: unknown provider %q (use gemini or openai)", c.AI.Provider))
	}
	switch c.AI.Mode {
	case "creative", "strict":
	default:
		errs = append(errs, fmt.Errorf("ai.mode: unknown mode %q (use creative or strict)", c.AI.Mode))
	}
	switch c.Server.Transport {
	case "stdio", "http":
	default:
		errs = append(errs, fmt.Errorf("server.transport: unknown transport %q (use stdio or http)", c.Server.Transport))
	}
	if c.Plan.MaxRetries < 0 {
		errs = append(errs, errors.New("plan.max_retries must not be negative"))
	}
	if c.Plan.BackoffBase < 0 || c.Plan.SettleDelay < 0 {
		errs = append(errs, errors.New("plan delays must not be negative"))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}
	return errors.Join(errs...)
}
