package source

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"conductor/internal/api"
	"conductor/pkg/logging"
)

// manifest is the on-disk declaration of a module. The file is named
// <module>.yaml and lives in one of the source's module paths.
type manifest struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	// Enabled defaults to true when omitted.
	Enabled *bool `yaml:"enabled,omitempty"`
}

func (m manifest) enabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// Filesystem is a module source that combines compiled-in factories with
// YAML manifests on disk: a module is loadable when a factory is registered
// for it and an enabled manifest declares it in one of the module paths.
// Editing a manifest is the hot-reload signal; Watch emits the module name
// whenever its manifest changes.
type Filesystem struct {
	mu        sync.RWMutex
	paths     []string
	factories map[string]api.Factory
}

// NewFilesystem creates a filesystem source over the given module paths.
func NewFilesystem(paths []string) *Filesystem {
	return &Filesystem{
		paths:     paths,
		factories: make(map[string]api.Factory),
	}
}

// Register adds a compiled-in factory under the given name.
func (f *Filesystem) Register(name string, factory api.Factory) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.factories[name] = factory
}

// Discover scans the module paths for enabled manifests with a registered
// factory and returns their names, sorted. Earlier paths win on duplicate
// names.
func (f *Filesystem) Discover(ctx context.Context) ([]string, error) {
	manifests := f.scan()

	f.mu.RLock()
	defer f.mu.RUnlock()

	names := make([]string, 0, len(manifests))
	for name, m := range manifests {
		if !m.enabled() {
			continue
		}
		if _, ok := f.factories[name]; !ok {
			logging.Warn("Source", "Manifest %s has no registered factory, skipping", name)
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Load returns the factory for a module declared by an enabled manifest.
func (f *Filesystem) Load(ctx context.Context, name string) (api.Factory, error) {
	m, ok := f.scan()[name]
	if !ok || !m.enabled() {
		return nil, api.NewNotFoundError(name)
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	factory, ok := f.factories[name]
	if !ok {
		return nil, api.NewNotFoundError(name)
	}
	return factory, nil
}

// scan reads all manifests under the module paths, keyed by module name.
func (f *Filesystem) scan() map[string]manifest {
	f.mu.RLock()
	paths := f.paths
	f.mu.RUnlock()

	manifests := make(map[string]manifest)
	for _, dir := range paths {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !os.IsNotExist(err) {
				logging.Warn("Source", "Cannot read module path %s: %v", dir, err)
			}
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || !isYAMLFile(entry.Name()) {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			m, err := readManifest(path)
			if err != nil {
				logging.Warn("Source", "Skipping malformed manifest %s: %v", path, err)
				continue
			}
			if m.Name == "" {
				m.Name = moduleNameFromPath(path)
			}
			if _, exists := manifests[m.Name]; exists {
				continue
			}
			manifests[m.Name] = m
		}
	}
	return manifests
}

func readManifest(path string) (manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return manifest{}, err
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return manifest{}, err
	}
	return m, nil
}

// moduleNameFromPath derives the module name from a manifest file name.
func moduleNameFromPath(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, ".yaml")
	return strings.TrimSuffix(name, ".yml")
}

// isYAMLFile checks if a file path is a YAML file.
func isYAMLFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
