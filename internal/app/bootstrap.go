package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"conductor/internal/api"
	"conductor/internal/config"
	"conductor/internal/manager"
	"conductor/internal/source"
	"conductor/pkg/logging"
)

// Application bootstraps and runs the conductor runtime: it loads the
// configuration, initializes logging, builds the module source and the
// manager, and drives the discover -> load -> start-all -> stop-all cycle.
type Application struct {
	config  config.Config
	source  *source.Filesystem
	manager *manager.Manager
}

// Options controls the bootstrap sequence.
type Options struct {
	// Debug forces debug-level logging regardless of the config file.
	Debug bool

	// Silent suppresses console log output.
	Silent bool

	// ConfigPath overrides the default configuration directory.
	ConfigPath string
}

// NewApplication creates and initializes a new application instance. It
// configures logging, loads the configuration, and wires the source into a
// manager. Factories for compiled-in modules are registered afterwards via
// RegisterFactory, before Run.
func NewApplication(opts Options) (*Application, error) {
	configPath := opts.ConfigPath
	if configPath == "" {
		configPath = config.GetDefaultConfigPathOrPanic()
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	level := logging.ParseLevel(cfg.Log.Level)
	if opts.Debug {
		level = logging.LevelDebug
	}
	var logOutput io.Writer = os.Stdout
	if opts.Silent {
		logOutput = io.Discard
	}
	if cfg.Log.File != "" {
		logging.InitWithFile(level, logOutput, logging.FileOptions{
			Path:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
		})
	} else {
		logging.Init(level, logOutput)
	}

	src := source.NewFilesystem(cfg.ModulePaths)
	mgr := manager.New(manager.Config{
		ModulePaths:     cfg.ModulePaths,
		ExcludeModules:  cfg.ExcludeModules,
		EnableHotReload: cfg.EnableHotReload,
		HookTimeout:     cfg.HookTimeout.AsDuration(),
	}, src, nil)

	return &Application{
		config:  cfg,
		source:  src,
		manager: mgr,
	}, nil
}

// RegisterFactory registers a compiled-in module factory on the source.
// Modules still need an enabled manifest in one of the module paths to be
// discovered.
func (a *Application) RegisterFactory(name string, factory api.Factory) {
	a.source.Register(name, factory)
}

// Manager returns the module manager.
func (a *Application) Manager() *manager.Manager {
	return a.manager
}

// Run loads every discovered module, starts all of them in dependency
// order, then blocks until ctx is cancelled and stops everything in
// reverse order. Load failures of individual modules are logged and
// skipped; the remaining modules still run.
func (a *Application) Run(ctx context.Context) error {
	names, err := a.manager.Discover(ctx)
	if err != nil {
		return fmt.Errorf("module discovery failed: %w", err)
	}

	for _, name := range names {
		if err := a.manager.LoadModule(ctx, name); err != nil {
			logging.Error("App", err, "Failed to load module %s", name)
		}
	}

	if err := a.manager.StartAll(ctx); err != nil {
		logging.Error("App", err, "Start sweep failed, stopping already-started modules")
		if stopErr := a.manager.StopAll(ctx); stopErr != nil {
			logging.Error("App", stopErr, "Cleanup sweep reported failures")
		}
		return err
	}

	if err := a.manager.StartWatching(ctx); err != nil {
		logging.Error("App", err, "Hot reload watcher failed to start")
	}

	<-ctx.Done()

	a.manager.StopWatching()
	if err := a.manager.StopAll(context.Background()); err != nil {
		logging.Error("App", err, "Stop sweep reported failures")
	}
	return nil
}
