package api

import (
	"context"
	"time"
)

// ModuleState represents the lifecycle state of a module.
type ModuleState string

const (
	StateNotInstalled ModuleState = "not_installed"
	StateLoaded       ModuleState = "loaded"
	StateInstalled    ModuleState = "installed"
	StateStarted      ModuleState = "started"
	StateStopped      ModuleState = "stopped"
	StateError        ModuleState = "error"
)

// Metadata is the declarative description of a module. It is read once when
// the module instance is attached and cached by the registry; the instance
// must not change it afterwards.
type Metadata struct {
	// Name uniquely identifies the module within one manager. It must be
	// non-empty and must not contain whitespace.
	Name string `yaml:"name" json:"name"`

	// Version is a free-form semantic version label. The core does not
	// interpret it.
	Version string `yaml:"version,omitempty" json:"version,omitempty"`

	// Description is optional human-readable text.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Dependencies lists the names of required modules. Order is preserved
	// for diagnostics only.
	Dependencies []string `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`

	// OptionalDependencies lists modules that are used when present.
	// A missing optional dependency is not an error.
	OptionalDependencies []string `yaml:"optionalDependencies,omitempty" json:"optionalDependencies,omitempty"`

	// ConfigSchema maps option names to expected type labels
	// (e.g. "port" -> "int"). Used by config validation when the module
	// does not implement ConfigValidator itself.
	ConfigSchema map[string]string `yaml:"configSchema,omitempty" json:"configSchema,omitempty"`
}

// Module is the minimal interface a user module must implement.
// All lifecycle hooks are optional capability interfaces discovered by type
// assertion; a module that implements none of them is driven through its
// states with no-op hooks.
type Module interface {
	// Metadata returns the module's declarative description.
	Metadata() Metadata
}

// Bootstrapper is implemented by modules that need a hook right after the
// instance is constructed, before any install.
type Bootstrapper interface {
	Bootstrap(ctx context.Context) error
}

// Installer is implemented by modules that allocate resources at install
// time. The config mapping is the one passed to InstallModule, possibly nil.
type Installer interface {
	Install(ctx context.Context, config map[string]interface{}) error
}

// Starter is implemented by modules that do work while started.
type Starter interface {
	Start(ctx context.Context) error
}

// Stopper is implemented by modules that must release runtime resources on
// stop.
type Stopper interface {
	Stop(ctx context.Context) error
}

// Uninstaller is implemented by modules that must undo their install step.
type Uninstaller interface {
	Uninstall(ctx context.Context) error
}

// Reloader is implemented by modules that want a notification after a hot
// reload has replaced their instance.
type Reloader interface {
	Reload(ctx context.Context) error
}

// ConfigValidator is implemented by modules that validate their own
// configuration. Returning false rejects the config without an install
// attempt.
type ConfigValidator interface {
	ValidateConfig(config map[string]interface{}) bool
}

// Factory produces a fresh module instance. It is invoked on initial load
// and again on every reload.
type Factory func() (Module, error)

// ModuleSource yields loadable modules. Discovery of module sources on disk
// lives outside the core; the manager only consumes this interface.
type ModuleSource interface {
	// Discover returns the names of all modules the source can load.
	Discover(ctx context.Context) ([]string, error)

	// Load returns a factory for the named module.
	Load(ctx context.Context, name string) (Factory, error)
}

// WatchableSource is an optional extension of ModuleSource. When the manager
// runs with hot reload enabled and the source implements this interface, the
// manager reloads every module whose name arrives on the channel.
type WatchableSource interface {
	ModuleSource

	// Watch emits the names of modules whose backing source changed.
	// The channel is closed when ctx is cancelled.
	Watch(ctx context.Context) (<-chan string, error)
}

// Event is the unit published on the event bus.
type Event struct {
	// ID uniquely identifies this event instance.
	ID string `json:"id"`

	// Type is a dot-delimited event type, e.g. "module.started".
	Type string `json:"type"`

	// ModuleName is the module the event concerns, empty for bus-level
	// events.
	ModuleName string `json:"moduleName,omitempty"`

	// Payload carries event-specific data.
	Payload map[string]interface{} `json:"payload,omitempty"`

	// Timestamp is when the event was published.
	Timestamp time.Time `json:"timestamp"`
}

// Event types published by the manager. The exact strings are part of the
// external contract; downstream subscribers depend on them.
const (
	EventModuleLoaded       = "module.loaded"
	EventModuleInstalled    = "module.installed"
	EventModuleStarted      = "module.started"
	EventModuleStopped      = "module.stopped"
	EventModuleUninstalled  = "module.uninstalled"
	EventModuleUnloaded     = "module.unloaded"
	EventModuleStateChanged = "module.state_changed"
	EventModuleReloaded     = "module.reloaded"
	EventModuleError        = "module.error"
)
