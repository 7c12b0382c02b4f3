package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"conductor/pkg/logging"
)

const (
	userConfigDir  = ".config/conductor"
	configFileName = "config.yaml"
)

// GetDefaultConfigPathOrPanic returns the user-level configuration
// directory.
func GetDefaultConfigPathOrPanic() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		panic(fmt.Errorf("could not determine user config directory: %w", err))
	}

	return filepath.Join(homeDir, userConfigDir)
}

// LoadConfig loads configuration from the given directory. A missing
// config.yaml is not an error: the defaults apply.
func LoadConfig(configPath string) (Config, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	cfg := GetDefaultConfig()

	data, err := os.ReadFile(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
			return cfg, nil
		}
		return Config{}, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
	}
	logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration in %s: %w", configFilePath, err)
	}

	return cfg, nil
}

// Validate checks the configuration for values the runtime cannot work
// with.
func (c Config) Validate() error {
	switch c.Log.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}

	if c.HookTimeout < 0 {
		return fmt.Errorf("hookTimeout must not be negative")
	}

	for _, name := range c.ExcludeModules {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("excludeModules contains an empty name")
		}
	}

	return nil
}
