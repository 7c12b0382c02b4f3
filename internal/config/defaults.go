package config

import "time"

// GetDefaultConfig returns the default configuration.
func GetDefaultConfig() Config {
	return Config{
		ModulePaths: []string{"modules"},
		HookTimeout: Duration(30 * time.Second),
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}
