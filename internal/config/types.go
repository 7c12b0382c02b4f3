package config

// Config is the top-level configuration structure for conductor.
type Config struct {
	// ModulePaths lists the directories scanned for module manifests, in
	// priority order.
	ModulePaths []string `yaml:"modulePaths,omitempty"`

	// ExcludeModules lists module names that are never loaded.
	ExcludeModules []string `yaml:"excludeModules,omitempty"`

	// EnableHotReload reloads modules when their manifest changes.
	EnableHotReload bool `yaml:"enableHotReload,omitempty"`

	// HookTimeout bounds each lifecycle hook invocation. Zero disables
	// the per-hook deadline.
	HookTimeout Duration `yaml:"hookTimeout,omitempty"`

	Log LogConfig `yaml:"log,omitempty"`
}

// LogConfig configures the logging output.
type LogConfig struct {
	// Level is one of debug, info, warn, error (default: info).
	Level string `yaml:"level,omitempty"`

	// File enables rotating file output when set.
	File string `yaml:"file,omitempty"`

	// MaxSizeMB is the rotation threshold (default: 50).
	MaxSizeMB int `yaml:"maxSizeMB,omitempty"`

	// MaxBackups is the number of rotated files kept (default: 3).
	MaxBackups int `yaml:"maxBackups,omitempty"`

	// MaxAgeDays is the maximum age of a rotated file (default: 28).
	MaxAgeDays int `yaml:"maxAgeDays,omitempty"`
}
