package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kalambet/bizpulse/internal/completion"
)

type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	Completion CompletionConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir string
}

type CompletionConfig struct {
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	APIKey      string
}

type LogConfig struct {
	Level string
}

// ErrMissingAPIKey is returned by Load when no completion API key is configured.
var ErrMissingAPIKey = errors.New("missing required config: completion API key")

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4100,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Completion: CompletionConfig{
			BaseURL:     completion.DefaultBaseURL,
			Model:       completion.DefaultModel,
			Temperature: completion.DefaultTemperature,
			MaxTokens:   completion.DefaultMaxTokens,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON config file, environment variables
// and the secrets file, in increasing order of precedence for everything
// except the API key, which is read from the environment first and the
// secrets file second.
//
// The config file lives at $XDG_CONFIG_HOME/bizpulse/config.json and the
// secrets file at $XDG_DATA_HOME/bizpulse/secrets.json. Environment
// variables are named BIZPULSE_*. Load fails when no API key is found.
func Load() (Config, error) {
	cfg, err := loadWith(newPlatformBackend(), secretsFile{path: secretsFilePath()})
	if err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.Completion.APIKey) == "" {
		return Config{}, fmt.Errorf("%w. Set it via environment variable %s or `bizpulse config set %s <key>`",
			ErrMissingAPIKey, apiKeyEnv, apiKeyName)
	}
	return cfg, nil
}

// LoadForDisplay is Load without the API key requirement, for commands that
// only inspect configuration.
func LoadForDisplay() (Config, error) {
	return loadWith(newPlatformBackend(), secretsFile{path: secretsFilePath()})
}

// secretStore abstracts the secrets file for testing.
type secretStore interface {
	Get(name string) (string, error)
}

func loadWith(b ConfigBackend, secrets secretStore) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Completion.APIKey == "" {
		if key, err := secrets.Get(apiKeyName); err == nil && key != "" {
			cfg.Completion.APIKey = strings.TrimSpace(key)
		}
	}

	return cfg, nil
}
