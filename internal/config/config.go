// Package config loads server configuration from the environment.
package config

import (
	"os"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config is the fully resolved server configuration.
type Config struct {
	// Port the HTTP server listens on.
	Port int

	// ScratchpadServerURL is the base URL of the Scratchpad data service.
	ScratchpadServerURL string
	// ScratchpadAuthToken is the service secret for Agent-Token authentication.
	ScratchpadAuthToken string
	// JWTSecret is the HS256 key user tokens are signed with.
	JWTSecret string

	// LLMProviderURL is the OpenAI-compatible chat completions endpoint.
	LLMProviderURL string
	// LLMProviderKey is the opaque provider API key.
	LLMProviderKey string
	// ModelName is the default model when a turn does not name one.
	ModelName string

	LogLevel string
	AppEnv   string
}

// Load resolves configuration from an optional YAML file pointed to by
// SCRATCHPAD_AGENT_CONFIG_FILE, with environment variables taking precedence.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", 8080)
	v.SetDefault("SCRATCHPAD_SERVER_URL", "http://localhost:3010")
	v.SetDefault("LLM_PROVIDER_URL", "https://openrouter.ai/api/v1")
	v.SetDefault("MODEL_NAME", "openai/gpt-4o-mini")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("APP_ENV", "development")

	if path := os.Getenv("SCRATCHPAD_AGENT_CONFIG_FILE"); path != "" {
		if err := mergeConfigFile(v, path); err != nil {
			return nil, err
		}
	}

	c := &Config{
		Port:                v.GetInt("PORT"),
		ScratchpadServerURL: v.GetString("SCRATCHPAD_SERVER_URL"),
		ScratchpadAuthToken: v.GetString("SCRATCHPAD_AGENT_AUTH_TOKEN"),
		JWTSecret:           v.GetString("SCRATCHPAD_AGENT_JWT_SECRET"),
		LLMProviderURL:      v.GetString("LLM_PROVIDER_URL"),
		LLMProviderKey:      v.GetString("LLM_PROVIDER_KEY"),
		ModelName:           v.GetString("MODEL_NAME"),
		LogLevel:            v.GetString("LOG_LEVEL"),
		AppEnv:              v.GetString("APP_ENV"),
	}

	if c.ScratchpadAuthToken == "" {
		return nil, errors.New("SCRATCHPAD_AGENT_AUTH_TOKEN must be set")
	}
	if c.JWTSecret == "" {
		return nil, errors.New("SCRATCHPAD_AGENT_JWT_SECRET must be set")
	}
	return c, nil
}

// mergeConfigFile layers a YAML file's keys under the environment: file
// values become defaults, so any set environment variable still wins.
func mergeConfigFile(v *viper.Viper, path string) error {
	bs, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "reading config file %q", path)
	}
	var fileConf map[string]interface{}
	if err := yaml.Unmarshal(bs, &fileConf); err != nil {
		return errors.Wrapf(err, "parsing config file %q", path)
	}
	for key, value := range fileConf {
		v.SetDefault(key, value)
	}
	return nil
}
